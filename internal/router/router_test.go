package router

import (
	"context"
	"testing"
	"time"

	"ezchain/internal/transport"
)

func freePort(t *testing.T) int {
	t.Helper()
	return 0
}

func newTestRouter(t *testing.T, role, networkID string) *Router {
	t.Helper()
	cfg := Config{
		NodeRole:        role,
		Transport:       transport.Config{Backend: "tcp", ListenHost: "127.0.0.1", ListenPort: freePort(t)},
		NetworkID:       networkID,
		ProtocolVersion: "0.1",
		MaxNeighbors:    8,
	}
	r, err := New(cfg)
	if err != nil {
		t.Fatalf("new router: %v", err)
	}
	if err := r.Start(context.Background()); err != nil {
		t.Fatalf("start router: %v", err)
	}
	t.Cleanup(func() { r.Stop() })
	return r
}

func TestHelloWelcomeAddsPeers(t *testing.T) {
	a := newTestRouter(t, "account", "devnet")
	b := newTestRouter(t, "account", "devnet")

	seedAddr := listenerAddr(t, a)
	if err := b.sendToAddr(seedAddr, "account", "HELLO", b.identityPayload()); err != nil {
		t.Fatalf("send hello: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if a.Peers().Len() > 0 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if a.Peers().Len() == 0 {
		t.Fatal("expected router A to have learned peer B via HELLO")
	}
}

func TestBackoffDurationMonotonic(t *testing.T) {
	base := time.Second
	max := 30 * time.Second
	got1 := backoffDuration(base, max, 1)
	got2 := backoffDuration(base, max, 2)
	got3 := backoffDuration(base, max, 10)
	if got1 != time.Second {
		t.Fatalf("expected 1s after first failure, got %v", got1)
	}
	if got2 != 2*time.Second {
		t.Fatalf("expected 2s after second failure, got %v", got2)
	}
	if got3 != max {
		t.Fatalf("expected backoff capped at max, got %v", got3)
	}
}

func TestHealthDegradedWithNoPeers(t *testing.T) {
	r := newTestRouter(t, "account", "devnet")
	h := r.Health()
	if !h.Degraded {
		t.Fatal("expected a fresh router with no peers to report degraded")
	}
	if h.PeerCount != 0 {
		t.Fatalf("expected 0 peers, got %d", h.PeerCount)
	}
}

func TestNetworkMatchesRole(t *testing.T) {
	accountRouter := &Router{cfg: Config{NodeRole: "account"}}
	if !accountRouter.networkMatchesRole("account") {
		t.Fatal("expected account role to accept account network")
	}
	if accountRouter.networkMatchesRole("consensus") {
		t.Fatal("expected account role to reject consensus network")
	}
	consensusRouter := &Router{cfg: Config{NodeRole: "consensus"}}
	if !consensusRouter.networkMatchesRole("consensus") {
		t.Fatal("expected consensus role to accept consensus network")
	}
	if !accountRouter.networkMatchesRole("pool_gateway") {
		t.Fatal("expected pool_gateway network to be addressable from any role")
	}
}

func listenerAddr(t *testing.T, r *Router) string {
	t.Helper()
	tcp, ok := r.transport.(*transport.TCPTransport)
	if !ok {
		t.Fatal("expected tcp transport in test router")
	}
	return tcp.ListenerAddr()
}
