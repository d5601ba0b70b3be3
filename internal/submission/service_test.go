package submission

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"ezchain/internal/audit"
	"ezchain/internal/idempotency"
	"ezchain/internal/metrics"
	"ezchain/internal/nodemanager"
	"ezchain/internal/nonceguard"
	"ezchain/internal/txengine"
	"ezchain/internal/walletstore"
)

const testToken = "test-token-0123456789"

func newTestService(t *testing.T, maxPayloadBytes int64) (*Service, *walletstore.Store, string) {
	t.Helper()
	dir := t.TempDir()

	wallet, err := walletstore.New(dir)
	if err != nil {
		t.Fatalf("wallet store: %v", err)
	}
	n := 0
	engine := txengine.New(func() string {
		n++
		return fmt.Sprintf("hash-%d", n)
	})
	nodeMgr := nodemanager.New(dir, "sleep", []string{"30"})
	nonces := nonceguard.New(filepath.Join(dir, "used_nonces.json"), time.Minute)
	idemStore := idempotency.New(filepath.Join(dir, "tx_idempotency.json"))
	auditLog, err := audit.New(filepath.Join(dir, "logs", "service_audit.log"))
	if err != nil {
		t.Fatalf("audit logger: %v", err)
	}
	metricCounters := metrics.New()

	cfg := Config{
		Token:           testToken,
		MaxPayloadBytes: maxPayloadBytes,
		NetworkName:     "devnet",
		BootstrapNodes:  []string{"127.0.0.1:9000"},
	}
	svc := New(cfg, wallet, engine, nodeMgr, nonces, idemStore, auditLog, metricCounters)
	return svc, wallet, dir
}

func doJSON(t *testing.T, srv *httptest.Server, method, path, token string, body map[string]any, extraHeaders map[string]string) (*http.Response, map[string]any) {
	t.Helper()
	var bodyBytes []byte
	if body != nil {
		var err error
		bodyBytes, err = json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
	}
	req, err := http.NewRequest(method, srv.URL+path, strings.NewReader(string(bodyBytes)))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("X-EZ-Token", token)
	}
	for k, v := range extraHeaders {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()
	var parsed map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp, parsed
}

func createWalletAndFaucet(t *testing.T, srv *httptest.Server, amount int64) string {
	t.Helper()
	resp, parsed := doJSON(t, srv, "POST", "/wallet/create", testToken, map[string]any{"password": "pw123"}, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("wallet create: status %d body %+v", resp.StatusCode, parsed)
	}
	data := parsed["data"].(map[string]any)
	address := data["address"].(string)

	if amount > 0 {
		resp, parsed = doJSON(t, srv, "POST", "/tx/faucet", testToken, map[string]any{"amount": amount, "password": "pw123"}, nil)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("faucet: status %d body %+v", resp.StatusCode, parsed)
		}
	}
	return address
}

func TestWalletCreateAndShow(t *testing.T) {
	svc, _, _ := newTestService(t, 65536)
	srv := httptest.NewServer(svc)
	defer srv.Close()

	address := createWalletAndFaucet(t, srv, 0)
	_, parsed := doJSON(t, srv, "GET", "/wallet/show", "", nil, nil)
	data := parsed["data"].(map[string]any)
	if data["address"] != address {
		t.Fatalf("expected address %s, got %v", address, data["address"])
	}
}

func TestAuthRequired(t *testing.T) {
	svc, _, _ := newTestService(t, 65536)
	srv := httptest.NewServer(svc)
	defer srv.Close()

	resp, parsed := doJSON(t, srv, "POST", "/wallet/create", "wrong-token", map[string]any{"password": "pw"}, nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
	errObj := parsed["error"].(map[string]any)
	if errObj["code"] != "unauthorized" {
		t.Fatalf("expected unauthorized, got %v", errObj["code"])
	}
}

func TestWalletBalanceRequiresPassword(t *testing.T) {
	svc, _, _ := newTestService(t, 65536)
	srv := httptest.NewServer(svc)
	defer srv.Close()
	createWalletAndFaucet(t, srv, 0)

	req, _ := http.NewRequest("GET", srv.URL+"/wallet/balance", nil)
	req.Header.Set("X-EZ-Token", testToken)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 password_required, got %d", resp.StatusCode)
	}
}

// TestTxSendHappyPath exercises S1.
func TestTxSendHappyPath(t *testing.T) {
	svc, _, _ := newTestService(t, 65536)
	srv := httptest.NewServer(svc)
	defer srv.Close()

	createWalletAndFaucet(t, srv, 300)

	resp, parsed := doJSON(t, srv, "POST", "/tx/send", testToken,
		map[string]any{"recipient": "0xabc123", "amount": 50, "password": "pw123", "client_tx_id": "cid-1"},
		map[string]string{"X-EZ-Nonce": "nonce-1"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d body %+v", resp.StatusCode, parsed)
	}
	data := parsed["data"].(map[string]any)
	if data["status"] != "submitted" {
		t.Fatalf("expected submitted, got %v", data["status"])
	}

	_, historyParsed := doJSON(t, srv, "GET", "/tx/history", "", nil, nil)
	history := historyParsed["data"].([]any)
	if len(history) != 1 {
		t.Fatalf("expected history length 1, got %d", len(history))
	}
}

// TestTxSendReplaySameNonce exercises S2.
func TestTxSendReplaySameNonce(t *testing.T) {
	svc, _, _ := newTestService(t, 65536)
	srv := httptest.NewServer(svc)
	defer srv.Close()
	createWalletAndFaucet(t, srv, 300)

	doJSON(t, srv, "POST", "/tx/send", testToken,
		map[string]any{"recipient": "0xabc123", "amount": 50, "password": "pw123", "client_tx_id": "cid-1"},
		map[string]string{"X-EZ-Nonce": "nonce-1"})

	resp, parsed := doJSON(t, srv, "POST", "/tx/send", testToken,
		map[string]any{"recipient": "0xabc123", "amount": 50, "password": "pw123", "client_tx_id": "cid-2"},
		map[string]string{"X-EZ-Nonce": "nonce-1"})
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409, got %d", resp.StatusCode)
	}
	errObj := parsed["error"].(map[string]any)
	if errObj["code"] != "replay_detected" {
		t.Fatalf("expected replay_detected, got %v", errObj["code"])
	}
}

// TestTxSendDuplicateClientTxID exercises S3.
func TestTxSendDuplicateClientTxID(t *testing.T) {
	svc, _, _ := newTestService(t, 65536)
	srv := httptest.NewServer(svc)
	defer srv.Close()
	createWalletAndFaucet(t, srv, 300)

	doJSON(t, srv, "POST", "/tx/send", testToken,
		map[string]any{"recipient": "0xabc123", "amount": 50, "password": "pw123", "client_tx_id": "cid-1"},
		map[string]string{"X-EZ-Nonce": "nonce-1"})

	resp, parsed := doJSON(t, srv, "POST", "/tx/send", testToken,
		map[string]any{"recipient": "0xabc123", "amount": 50, "password": "pw123", "client_tx_id": "cid-1"},
		map[string]string{"X-EZ-Nonce": "nonce-2"})
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409, got %d", resp.StatusCode)
	}
	errObj := parsed["error"].(map[string]any)
	if errObj["code"] != "duplicate_transaction" {
		t.Fatalf("expected duplicate_transaction, got %v", errObj["code"])
	}
}

// TestOversizePayloadRejectedBeforeBodyRead exercises S4: the server must
// respond 413 without requiring the declared body to ever be sent.
func TestOversizePayloadRejectedBeforeBodyRead(t *testing.T) {
	svc, _, _ := newTestService(t, 65536)
	srv := httptest.NewServer(svc)
	defer srv.Close()

	conn, err := net.DialTimeout("tcp", srv.Listener.Addr().String(), 2*time.Second)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	request := "POST /wallet/create HTTP/1.1\r\n" +
		"Host: test\r\n" +
		"Content-Type: application/json\r\n" +
		"X-EZ-Token: " + testToken + "\r\n" +
		"Content-Length: 70000\r\n" +
		"Connection: close\r\n\r\n"
	if _, err := conn.Write([]byte(request)); err != nil {
		t.Fatalf("write request: %v", err)
	}
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	reader := bufio.NewReader(conn)
	statusLine, err := reader.ReadString('\n')
	if err != nil {
		t.Fatalf("read status line: %v", err)
	}
	if !strings.Contains(statusLine, "413") {
		t.Fatalf("expected 413 status line, got %q", statusLine)
	}
}

// TestAuditRedaction exercises S6: every audit line is valid JSON and
// never carries the plaintext password, whether or not the access-log
// event happens to nest request-body fields.
func TestAuditRedaction(t *testing.T) {
	svc, _, dir := newTestService(t, 65536)
	srv := httptest.NewServer(svc)
	defer srv.Close()

	resp, _ := doJSON(t, srv, "POST", "/wallet/create", testToken, map[string]any{"name": "demo", "password": "pw123"}, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected wallet create to succeed, got %d", resp.StatusCode)
	}

	raw, err := os.ReadFile(filepath.Join(dir, "logs", "service_audit.log"))
	if err != nil {
		t.Fatalf("read audit log: %v", err)
	}
	for _, line := range strings.Split(strings.TrimSpace(string(raw)), "\n") {
		if line == "" {
			continue
		}
		var decoded map[string]any
		if err := json.Unmarshal([]byte(line), &decoded); err != nil {
			t.Fatalf("audit line is not valid JSON: %v", err)
		}
		if strings.Contains(line, "pw123") {
			t.Fatalf("audit line leaked plaintext password: %s", line)
		}
	}
}
