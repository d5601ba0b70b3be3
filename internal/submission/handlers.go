package submission

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"
)

func (s *Service) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Service) handleUI(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(uiHTML))
}

func (s *Service) handleWalletShow(w http.ResponseWriter, r *http.Request) {
	summary, err := s.wallet.Summary()
	if err != nil {
		s.writeError(w, r, errWalletNotFound())
		return
	}
	s.writeJSON(w, http.StatusOK, summary)
}

func (s *Service) handleWalletBalance(w http.ResponseWriter, r *http.Request) {
	if !s.checkAuth(w, r) {
		return
	}
	password := r.Header.Get("X-EZ-Password")
	if password == "" {
		s.writeError(w, r, errPasswordRequired())
		return
	}
	loaded, err := s.wallet.Load(password)
	if err != nil {
		s.writeError(w, r, errBalanceFailed(err.Error()))
		return
	}
	balance := s.engine.Balance(loaded.Address)
	s.writeJSON(w, http.StatusOK, map[string]any{"address": loaded.Address, "balance": balance})
}

func (s *Service) handleTxHistory(w http.ResponseWriter, r *http.Request) {
	history, err := s.wallet.History()
	if err != nil {
		s.writeError(w, r, errInternal(err.Error()))
		return
	}
	s.writeJSON(w, http.StatusOK, history)
}

func (s *Service) handleNodeStatus(w http.ResponseWriter, r *http.Request) {
	status := s.nodeMgr.Status()
	statusStr := "stopped"
	if status.Running {
		statusStr = "running"
	}
	s.metrics.RecordNodeStatus(statusStr)

	resp := map[string]any{"status": statusStr}
	if status.Running {
		resp["pid"] = status.PID
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Service) handleMetrics(w http.ResponseWriter, r *http.Request) {
	currentStatus := "stopped"
	if s.nodeMgr.Status().Running {
		currentStatus = "running"
	}
	s.writeJSON(w, http.StatusOK, s.metrics.Snapshot(currentStatus))
}

func (s *Service) handleMetricsProm(w http.ResponseWriter, r *http.Request) {
	s.promHandler().ServeHTTP(w, r)
}

func (s *Service) handleNetworkInfo(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"name":            s.cfg.NetworkName,
		"bootstrap_nodes": s.cfg.BootstrapNodes,
		"mode":            "single-node",
	})
}

type walletCreateRequest struct {
	Name     string `json:"name"`
	Password string `json:"password"`
}

func (s *Service) handleWalletCreate(w http.ResponseWriter, r *http.Request) {
	if !s.checkAuth(w, r) {
		return
	}
	body, ok := s.readJSONBody(w, r)
	if !ok {
		return
	}
	var req walletCreateRequest
	if err := json.Unmarshal(body, &req); err != nil {
		s.writeError(w, r, errInvalidRequest(""))
		return
	}
	if req.Password == "" {
		s.writeError(w, r, errInvalidRequest("password is required"))
		return
	}
	wf, err := s.wallet.Create(req.Password, req.Name, "")
	if err != nil {
		s.writeError(w, r, errInternal(err.Error()))
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"address": wf.Address, "mnemonic": wf.Mnemonic})
}

type walletImportRequest struct {
	Mnemonic string `json:"mnemonic"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

func (s *Service) handleWalletImport(w http.ResponseWriter, r *http.Request) {
	if !s.checkAuth(w, r) {
		return
	}
	body, ok := s.readJSONBody(w, r)
	if !ok {
		return
	}
	var req walletImportRequest
	if err := json.Unmarshal(body, &req); err != nil {
		s.writeError(w, r, errInvalidRequest(""))
		return
	}
	if req.Password == "" {
		s.writeError(w, r, errInvalidRequest("password is required"))
		return
	}
	wf, err := s.wallet.Import(req.Mnemonic, req.Password, req.Name)
	if err != nil {
		s.writeError(w, r, errInvalidRequest(err.Error()))
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"address": wf.Address})
}

type txFaucetRequest struct {
	Amount   int64  `json:"amount"`
	Password string `json:"password"`
}

func (s *Service) handleTxFaucet(w http.ResponseWriter, r *http.Request) {
	if !s.checkAuth(w, r) {
		return
	}
	body, ok := s.readJSONBody(w, r)
	if !ok {
		return
	}
	var req txFaucetRequest
	if err := json.Unmarshal(body, &req); err != nil {
		s.writeError(w, r, errInvalidRequest(""))
		return
	}
	loaded, err := s.wallet.Load(req.Password)
	if err != nil {
		s.writeError(w, r, errInvalidRequest("invalid password"))
		return
	}
	res, err := s.engine.Faucet(loaded.Address, req.Amount)
	if err != nil {
		s.writeError(w, r, classifyTxEngineError(err))
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"tx_hash":     res.TxHash,
		"submit_hash": res.SubmitHash,
		"amount":      res.Amount,
		"recipient":   res.Recipient,
		"status":      res.Status,
	})
}

type txSendRequest struct {
	Recipient  string `json:"recipient"`
	Amount     int64  `json:"amount"`
	Password   string `json:"password"`
	ClientTxID string `json:"client_tx_id"`
}

// handleTxSend implements spec.md §4.6's nonce -> idempotency -> Tx Engine
// ordering: a duplicate client_tx_id must be rejected even with a fresh
// nonce, and a reused nonce must be rejected even for a fresh client_tx_id,
// so the nonce claim always runs first.
func (s *Service) handleTxSend(w http.ResponseWriter, r *http.Request) {
	if !s.checkAuth(w, r) {
		return
	}

	nonce := r.Header.Get("X-EZ-Nonce")
	if nonce == "" {
		s.writeError(w, r, errNonceRequired())
		return
	}
	if !isPrintableASCII(nonce, maxNonceLen) {
		s.writeError(w, r, errInvalidNonceFormat())
		return
	}

	body, ok := s.readJSONBody(w, r)
	if !ok {
		return
	}
	var req txSendRequest
	if err := json.Unmarshal(body, &req); err != nil {
		s.writeError(w, r, errInvalidRequest(""))
		return
	}
	if req.ClientTxID != "" && !isValidClientTxID(req.ClientTxID, maxClientTxIDLen) {
		s.writeError(w, r, errInvalidClientTxID())
		return
	}

	if !s.nonces.Claim(nonce) {
		s.writeError(w, r, errReplayDetected())
		return
	}

	loaded, err := s.wallet.Load(req.Password)
	if err != nil {
		s.writeError(w, r, errInvalidRequest("invalid password"))
		return
	}

	clientTxID := req.ClientTxID
	if clientTxID == "" {
		clientTxID = newClientTxID()
	}
	idemKey := idempotencyKey(loaded.Address, clientTxID)
	if _, exists := s.idemStore.Lookup(idemKey); exists {
		s.writeError(w, r, errDuplicateTransaction())
		return
	}

	start := time.Now()
	res, err := s.engine.Send(loaded.Address, req.Recipient, req.Amount)
	if err != nil {
		s.metrics.RecordTxSend(false, nil, classifyTxEngineError(err).Code)
		s.writeError(w, r, classifyTxEngineError(err))
		return
	}
	latencyMs := float64(time.Since(start).Microseconds()) / 1000.0
	s.metrics.RecordTxSend(true, &latencyMs, "")

	if err := s.idemStore.Record(idemKey, idempotencyRecord(res, time.Now())); err != nil {
		s.log.WithError(err).Warn("idempotency store write failed")
	}
	if err := s.wallet.AppendHistory(historyRecord(res, time.Now())); err != nil {
		s.log.WithError(err).Warn("history append failed")
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"tx_hash":      res.TxHash,
		"submit_hash":  res.SubmitHash,
		"amount":       res.Amount,
		"recipient":    res.Recipient,
		"status":       res.Status,
		"client_tx_id": clientTxID,
	})
}

func (s *Service) handleNodeStart(w http.ResponseWriter, r *http.Request) {
	if !s.checkAuth(w, r) {
		return
	}
	if _, ok := s.readJSONBody(w, r); !ok {
		return
	}
	res, err := s.nodeMgr.Start()
	if err != nil {
		s.writeError(w, r, errInternal(err.Error()))
		return
	}
	status := "started"
	if res.AlreadyRunning {
		status = "already_running"
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"status": status, "pid": res.PID})
}

func (s *Service) handleNodeStop(w http.ResponseWriter, r *http.Request) {
	if !s.checkAuth(w, r) {
		return
	}
	if _, ok := s.readJSONBody(w, r); !ok {
		return
	}
	if err := s.nodeMgr.Stop(); err != nil {
		s.writeJSON(w, http.StatusOK, map[string]any{"status": "not_running"})
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"status": "stopped"})
}

// checkAuth enforces the X-EZ-Token bearer check required on every POST
// route and on GET /wallet/balance.
func (s *Service) checkAuth(w http.ResponseWriter, r *http.Request) bool {
	if r.Header.Get("X-EZ-Token") != s.cfg.Token || s.cfg.Token == "" {
		s.writeError(w, r, errUnauthorized())
		return false
	}
	return true
}

// readJSONBody enforces the Content-Length / max-payload-bytes / JSON
// content-type contract before reading a single byte of the body, then
// returns the raw bytes for the caller to unmarshal.
func (s *Service) readJSONBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	clHeader := r.Header.Get("Content-Length")
	if clHeader == "" {
		s.writeError(w, r, errInvalidContentLength())
		return nil, false
	}
	cl, err := strconv.ParseInt(clHeader, 10, 64)
	if err != nil || cl < 0 {
		s.writeError(w, r, errInvalidContentLength())
		return nil, false
	}
	if s.cfg.MaxPayloadBytes > 0 && cl > s.cfg.MaxPayloadBytes {
		s.writeError(w, r, errPayloadTooLarge())
		return nil, false
	}
	if cl == 0 {
		return []byte("{}"), true
	}

	ct := r.Header.Get("Content-Type")
	if ct != "" && ct != "application/json" && ct != "application/json; charset=utf-8" {
		s.writeError(w, r, errInvalidRequest("Content-Type must be application/json"))
		return nil, false
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, cl))
	if err != nil {
		s.writeError(w, r, errInvalidRequest(""))
		return nil, false
	}
	return body, true
}
