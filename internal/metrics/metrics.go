// Package metrics implements the submission service's bounded counters and
// latency ring, plus an additive Prometheus registry mirroring the same
// numbers for operators who want to scrape them.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const ringCapacity = 500

// Transactions is the "transactions" sub-object of a metrics snapshot.
type Transactions struct {
	SendSuccess              int      `json:"send_success"`
	SendFailed               int      `json:"send_failed"`
	SuccessRate              float64  `json:"success_rate"`
	AvgConfirmationLatencyMs *float64 `json:"avg_confirmation_latency_ms"`
}

// Snapshot is the JSON shape returned by GET /metrics.
type Snapshot struct {
	UptimeSeconds          int64          `json:"uptime_seconds"`
	RequestsTotal          int            `json:"requests_total"`
	Transactions           Transactions   `json:"transactions"`
	NodeOnlineRate         float64        `json:"node_online_rate"`
	ErrorCodeDistribution  map[string]int `json:"error_code_distribution"`
}

// Counters is a lock-protected set of request/transaction/node-status
// counters plus a bounded ring of transaction confirmation latencies.
type Counters struct {
	mu sync.Mutex

	startedAt time.Time
	now       func() time.Time

	requestsTotal      int
	txSendSuccess      int
	txSendFailed       int
	nodeStatusChecks   int
	nodeStatusRunning  int
	errorCodeCounts    map[string]int
	txLatencyRingMs    []float64
	txLatencyRingPos   int

	registry         *prometheus.Registry
	requestsGauge    prometheus.Counter
	txSuccessGauge   prometheus.Counter
	txFailedGauge    prometheus.Counter
	nodeChecksGauge  prometheus.Counter
	nodeRunningGauge prometheus.Counter
}

// New returns a Counters with its own private Prometheus registry.
func New() *Counters {
	reg := prometheus.NewRegistry()
	c := &Counters{
		startedAt:       time.Now(),
		now:             time.Now,
		errorCodeCounts: make(map[string]int),
		registry:        reg,
		requestsGauge: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ezchain_submission_requests_total",
			Help: "Total HTTP requests served by the submission service.",
		}),
		txSuccessGauge: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ezchain_submission_tx_send_success_total",
			Help: "Successful POST /tx/send submissions.",
		}),
		txFailedGauge: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ezchain_submission_tx_send_failed_total",
			Help: "Failed POST /tx/send submissions.",
		}),
		nodeChecksGauge: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ezchain_submission_node_status_checks_total",
			Help: "Total GET /node/status checks.",
		}),
		nodeRunningGauge: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ezchain_submission_node_status_running_total",
			Help: "GET /node/status checks observing a running node.",
		}),
	}
	c.registry.MustRegister(c.requestsGauge, c.txSuccessGauge, c.txFailedGauge, c.nodeChecksGauge, c.nodeRunningGauge)
	return c
}

// Registry returns the private Prometheus registry backing GET /metrics/prom.
func (c *Counters) Registry() *prometheus.Registry {
	return c.registry
}

// RecordResponse tallies a completed HTTP response. errorCode is empty for a
// successful response; otherwise it is bucketed by code, with "http_error"
// used as the fallback for a >=400 response lacking a classified code.
func (c *Counters) RecordResponse(statusCode int, errorCode string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.requestsTotal++
	c.requestsGauge.Inc()
	switch {
	case errorCode != "":
		c.errorCodeCounts[errorCode]++
	case statusCode >= 400:
		c.errorCodeCounts["http_error"]++
	}
}

// RecordTxSend tallies a Tx Engine outcome, appending a latency sample to
// the bounded ring on success.
func (c *Counters) RecordTxSend(ok bool, latencyMs *float64, errorCode string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ok {
		c.txSendSuccess++
		c.txSuccessGauge.Inc()
		if latencyMs != nil {
			c.pushLatency(*latencyMs)
		}
		return
	}
	c.txSendFailed++
	c.txFailedGauge.Inc()
	if errorCode != "" {
		c.errorCodeCounts[errorCode]++
	}
}

func (c *Counters) pushLatency(ms float64) {
	if len(c.txLatencyRingMs) < ringCapacity {
		c.txLatencyRingMs = append(c.txLatencyRingMs, ms)
		return
	}
	c.txLatencyRingMs[c.txLatencyRingPos] = ms
	c.txLatencyRingPos = (c.txLatencyRingPos + 1) % ringCapacity
}

// RecordNodeStatus tallies a GET /node/status check.
func (c *Counters) RecordNodeStatus(status string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nodeStatusChecks++
	c.nodeChecksGauge.Inc()
	if status == "running" {
		c.nodeStatusRunning++
		c.nodeRunningGauge.Inc()
	}
}

// Snapshot computes the JSON metrics shape. currentNodeStatus feeds the
// online-rate fallback when no /node/status checks have happened yet.
func (c *Counters) Snapshot(currentNodeStatus string) Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	txTotal := c.txSendSuccess + c.txSendFailed
	successRate := 0.0
	if txTotal > 0 {
		successRate = float64(c.txSendSuccess) / float64(txTotal)
	}

	onlineRate := 0.0
	if c.nodeStatusChecks > 0 {
		onlineRate = float64(c.nodeStatusRunning) / float64(c.nodeStatusChecks)
	} else if currentNodeStatus == "running" {
		onlineRate = 1.0
	}

	var avgLatency *float64
	if len(c.txLatencyRingMs) > 0 {
		sum := 0.0
		for _, v := range c.txLatencyRingMs {
			sum += v
		}
		avg := sum / float64(len(c.txLatencyRingMs))
		avgLatency = &avg
	}

	errCopy := make(map[string]int, len(c.errorCodeCounts))
	for k, v := range c.errorCodeCounts {
		errCopy[k] = v
	}

	return Snapshot{
		UptimeSeconds: int64(c.now().Sub(c.startedAt).Seconds()),
		RequestsTotal: c.requestsTotal,
		Transactions: Transactions{
			SendSuccess:              c.txSendSuccess,
			SendFailed:               c.txSendFailed,
			SuccessRate:              successRate,
			AvgConfirmationLatencyMs: avgLatency,
		},
		NodeOnlineRate:        onlineRate,
		ErrorCodeDistribution: errCopy,
	}
}
