// Package submission implements C10, the local HTTP service that fronts a
// single-account wallet: bearer-token auth, oversize/malformed payload
// rejection, nonce + idempotency protected transaction submission, and an
// audit trail of every response.
package submission

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"ezchain/internal/audit"
	"ezchain/internal/idempotency"
	"ezchain/internal/metrics"
	"ezchain/internal/nodemanager"
	"ezchain/internal/nonceguard"
	"ezchain/internal/txengine"
	"ezchain/internal/walletstore"
)

const maxNonceLen = 128
const maxClientTxIDLen = 128

// Config holds the submission service's tunables, sourced from
// pkg/config.Config's app/security sections.
type Config struct {
	Token           string
	MaxPayloadBytes int64
	NetworkName     string
	BootstrapNodes  []string
}

// Service wires C5, C6, C7, C8 and the reference collaborators (Wallet
// Store, Tx Engine, Node Manager) behind the HTTP route table of spec.md
// §4.6.
type Service struct {
	cfg Config

	wallet  *walletstore.Store
	engine  *txengine.Engine
	nodeMgr *nodemanager.Manager

	nonces    *nonceguard.Guard
	idemStore *idempotency.Store
	auditLog  *audit.Logger
	metrics   *metrics.Counters

	log       *logrus.Entry
	startedAt time.Time

	mux chi.Router
}

// New constructs a Service and registers its route table.
func New(
	cfg Config,
	wallet *walletstore.Store,
	engine *txengine.Engine,
	nodeMgr *nodemanager.Manager,
	nonces *nonceguard.Guard,
	idemStore *idempotency.Store,
	auditLog *audit.Logger,
	metricCounters *metrics.Counters,
) *Service {
	s := &Service{
		cfg:       cfg,
		wallet:    wallet,
		engine:    engine,
		nodeMgr:   nodeMgr,
		nonces:    nonces,
		idemStore: idemStore,
		auditLog:  auditLog,
		metrics:   metricCounters,
		log:       logrus.WithField("component", "submission"),
		startedAt: time.Now(),
	}
	s.mux = s.routes()
	return s
}

// ServeHTTP lets Service itself be used as an http.Handler.
func (s *Service) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Service) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(s.accessLogMiddleware)

	r.Get("/health", s.handleHealth)
	r.Get("/", s.handleUI)
	r.Get("/ui", s.handleUI)
	r.Get("/wallet/show", s.handleWalletShow)
	r.Get("/wallet/balance", s.handleWalletBalance)
	r.Get("/tx/history", s.handleTxHistory)
	r.Get("/node/status", s.handleNodeStatus)
	r.Get("/metrics", s.handleMetrics)
	r.Get("/metrics/prom", s.handleMetricsProm)
	r.Get("/network/info", s.handleNetworkInfo)

	r.Post("/wallet/create", s.handleWalletCreate)
	r.Post("/wallet/import", s.handleWalletImport)
	r.Post("/tx/faucet", s.handleTxFaucet)
	r.Post("/tx/send", s.handleTxSend)
	r.Post("/node/start", s.handleNodeStart)
	r.Post("/node/stop", s.handleNodeStop)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		s.writeError(w, r, errNotFound())
	})
	return r
}

type responseRecorder struct {
	http.ResponseWriter
	status int
}

func (rr *responseRecorder) WriteHeader(status int) {
	rr.status = status
	rr.ResponseWriter.WriteHeader(status)
}

// accessLogMiddleware records every response to the Audit Logger and
// Metrics Counter after redaction, per spec.md §5's "every outcome passes
// through the Audit Logger and the Metrics Counter" requirement.
func (s *Service) accessLogMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rr := &responseRecorder{ResponseWriter: w, status: http.StatusOK}
		errCode := ""
		ctx := context.WithValue(r.Context(), errorCodeSinkKey, &errCode)
		next.ServeHTTP(rr, r.WithContext(ctx))

		s.metrics.RecordResponse(rr.status, errCode)
		event := map[string]any{
			"time":       time.Now().UTC().Format(time.RFC3339Nano),
			"remote":     r.RemoteAddr,
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     rr.status,
			"ok":         rr.status < 400,
			"error_code": errCode,
		}
		if err := s.auditLog.Log(event); err != nil {
			s.log.WithError(err).Warn("audit log write failed")
		}
	})
}

type ctxKey int

const errorCodeSinkKey ctxKey = iota

func errorCodeSinkFrom(ctx context.Context) (*string, bool) {
	sink, ok := ctx.Value(errorCodeSinkKey).(*string)
	return sink, ok
}

// writeJSON writes {ok:true, data:payload}.
func (s *Service) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"ok": true, "data": payload})
}

// writeError writes {ok:false, error:{code,message}} and records the error
// code for this request's audit/metrics line.
func (s *Service) writeError(w http.ResponseWriter, r *http.Request, apiErr *apiError) {
	if sink, ok := errorCodeSinkFrom(r.Context()); ok {
		*sink = apiErr.Code
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(apiErr.Status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"ok": false,
		"error": map[string]string{
			"code":    apiErr.Code,
			"message": apiErr.Message,
		},
	})
}

func newClientTxID() string {
	return uuid.New().String()
}

func isPrintableASCII(s string, maxLen int) bool {
	if s == "" || len(s) > maxLen {
		return false
	}
	for _, c := range s {
		if c < 0x20 || c > 0x7e {
			return false
		}
	}
	return true
}

func isValidClientTxID(s string, maxLen int) bool {
	if !isPrintableASCII(s, maxLen) {
		return false
	}
	for _, c := range s {
		if c == ' ' {
			return false
		}
	}
	return true
}

// promHandler exposes the Prometheus registry wired in internal/metrics.
func (s *Service) promHandler() http.Handler {
	return promhttp.HandlerFor(s.metrics.Registry(), promhttp.HandlerOpts{})
}
