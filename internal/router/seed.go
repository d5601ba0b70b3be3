package router

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// dialSeed sends a best-effort HELLO to seed and updates its lifecycle
// state: DIALING on entry, HEALTHY on a successful send (a send succeeding
// is sufficient — WELCOME need not have arrived yet), BACKOFF on any error.
func (r *Router) dialSeed(seed string) {
	r.setSeedStatus(seed, seedDialing)

	err := r.sendToAddr(seed, r.helloNetwork(), "HELLO", r.identityPayload())
	if err != nil {
		r.markSeedFailed(seed, err)
		r.log.WithFields(logrus.Fields{"seed": seed, "err": err.Error()}).Warn("seed_connect_failed")
		return
	}
	r.markSeedHealthy(seed)
}

func (r *Router) setSeedStatus(seed string, status seedStatus) {
	r.seedMu.Lock()
	defer r.seedMu.Unlock()
	st, ok := r.seeds[seed]
	if !ok {
		st = &seedState{}
		r.seeds[seed] = st
	}
	st.status = status
}

// markSeedHealthy resets failure bookkeeping on any successful send to, or
// WELCOME received from, a seed address.
func (r *Router) markSeedHealthy(seed string) {
	r.seedMu.Lock()
	defer r.seedMu.Unlock()
	st, ok := r.seeds[seed]
	if !ok {
		return
	}
	st.status = seedHealthy
	st.failureCount = 0
	st.lastError = ""
}

// markSeedFailed records a failure and schedules the next retry using
// min(base * 2^(failures-1), max).
func (r *Router) markSeedFailed(seed string, cause error) {
	r.seedMu.Lock()
	defer r.seedMu.Unlock()
	st, ok := r.seeds[seed]
	if !ok {
		st = &seedState{}
		r.seeds[seed] = st
	}
	st.failureCount++
	st.lastError = cause.Error()
	st.status = seedBackoff
	st.nextRetryAt = r.now().Add(backoffDuration(r.cfg.SeedRetryBase, r.cfg.SeedRetryMax, st.failureCount))
}

func backoffDuration(base, max time.Duration, failures int) time.Duration {
	if failures < 1 {
		failures = 1
	}
	d := base
	for i := 1; i < failures; i++ {
		d *= 2
		if d >= max {
			return max
		}
	}
	if d > max {
		return max
	}
	return d
}

// maintenanceLoop periodically promotes BACKOFF seeds whose retry time has
// elapsed back to DIALING, mirroring the HELLO attempt done at startup.
func (r *Router) maintenanceLoop(ctx context.Context) {
	defer r.maintenanceWG.Done()
	ticker := time.NewTicker(r.cfg.MaintenanceInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.retryDueSeeds()
		}
	}
}

func (r *Router) retryDueSeeds() {
	now := r.now()
	var due []string
	r.seedMu.Lock()
	for seed, st := range r.seeds {
		if st.status == seedBackoff && !st.nextRetryAt.After(now) {
			due = append(due, seed)
		}
	}
	r.seedMu.Unlock()
	for _, seed := range due {
		r.dialSeed(seed)
	}
}
