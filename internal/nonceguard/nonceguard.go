// Package nonceguard implements the persistent, mutex-protected replay
// guard used by POST /tx/send: a nonce may be claimed only if absent or
// expired, and claiming it re-inserts it with a fresh TTL.
package nonceguard

import (
	"encoding/json"
	"os"
	"sync"
	"time"
)

// MinTTL is the smallest TTL the guard will honor; smaller configured
// values are clamped up to this floor.
const MinTTL = time.Second

// Guard is a file-backed nonce replay guard. All access is serialized by a
// single mutex so claim-then-persist is atomic within the process.
type Guard struct {
	mu   sync.Mutex
	path string
	ttl  time.Duration
	now  func() time.Time
}

// New returns a Guard persisting to path with the given ttl (clamped to
// MinTTL).
func New(path string, ttl time.Duration) *Guard {
	if ttl < MinTTL {
		ttl = MinTTL
	}
	return &Guard{path: path, ttl: ttl, now: time.Now}
}

// load reads the persisted nonce->expiry map. A missing or corrupt file
// resets to an empty map without surfacing an error — the guard fails safe
// rather than crashing the service over a damaged state file.
func (g *Guard) load() map[string]float64 {
	data, err := os.ReadFile(g.path)
	if err != nil {
		return map[string]float64{}
	}
	var parsed map[string]float64
	if err := json.Unmarshal(data, &parsed); err != nil {
		return map[string]float64{}
	}
	if parsed == nil {
		parsed = map[string]float64{}
	}
	return parsed
}

func (g *Guard) save(data map[string]float64) error {
	buf, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(g.path, buf, 0o600)
}

// Claim atomically loads the persisted map, sweeps expired entries, rejects
// if nonce is still live, otherwise inserts it with now+ttl and persists.
// Persistence failures are swallowed and the claim still succeeds (fail
// open). The guard keeps no state between calls: each Claim reloads the
// file, so a nonce whose write failed is not remembered by later calls.
func (g *Guard) Claim(nonce string) bool {
	if nonce == "" {
		return false
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	now := float64(g.now().Unix())
	data := g.load()
	for key, expiry := range data {
		if expiry <= now {
			delete(data, key)
		}
	}
	if expiry, exists := data[nonce]; exists && expiry > now {
		return false
	}
	data[nonce] = now + g.ttl.Seconds()
	_ = g.save(data)
	return true
}
