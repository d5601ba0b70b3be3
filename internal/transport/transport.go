// Package transport defines the pluggable framed-message transport
// abstraction and its mandatory raw-TCP backend. A second backend built on
// libp2p streams is provided in libp2p.go and selected at configuration
// time.
package transport

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrDialFailed is returned when an outbound connection cannot be
// established.
var ErrDialFailed = errors.New("dial_failed")

// ErrSendTimeout is returned when a write does not complete within the
// configured send timeout.
var ErrSendTimeout = errors.New("send_timeout")

// ErrPayloadTooLarge is returned when data exceeds the transport's maximum
// frame size.
var ErrPayloadTooLarge = errors.New("payload_too_large")

// ErrBackendUnavailable is returned by Start when a configured backend's
// required dependency is not available — the contract requires failing
// fast rather than silently falling back to another backend.
var ErrBackendUnavailable = errors.New("transport_backend_unavailable")

// ReplyContext identifies the exact inbound connection a frame arrived on,
// so a handler can reply without dialing or touching the outbound pool.
type ReplyContext interface {
	// RemoteID is the "host:port" (or backend-specific) identity of the
	// peer this context replies to.
	RemoteID() string
}

// OnFrame is invoked for every decoded frame the transport receives. data is
// the raw frame body (not yet envelope-decoded); remoteID identifies the
// sender; ctx can be used with SendViaContext to reply on the same
// connection.
type OnFrame func(data []byte, remoteID string, ctx ReplyContext)

// Transport is the backend-agnostic contract every implementation (TCP,
// libp2p-stream, …) must satisfy.
type Transport interface {
	// SetOnFrame registers the callback invoked for every inbound frame.
	// Must be called before Start.
	SetOnFrame(OnFrame)
	// Start begins accepting inbound connections on the configured local
	// endpoint. It must fail fast (ErrBackendUnavailable) if a required
	// backend dependency is missing.
	Start(ctx context.Context) error
	// Stop closes the listener and all outbound connections.
	Stop() error
	// Send ensures (or creates) a single outbound connection to addr and
	// writes data as one frame.
	Send(addr string, data []byte) error
	// SendViaContext writes data as one frame on the exact inbound
	// connection ctx was derived from. It never dials.
	SendViaContext(ctx ReplyContext, data []byte) error
}

// Config holds the backend-independent transport settings; backend
// constructors read the fields relevant to them.
type Config struct {
	Backend        string // "tcp" | "libp2p"
	ListenHost     string
	ListenPort     int
	DialTimeout    time.Duration
	SendTimeout    time.Duration
	MaxFrameBytes  int
	LibP2PProtocol string
}

// New constructs the Transport selected by cfg.Backend, failing fast if an
// unknown or unavailable backend is requested.
func New(cfg Config, onFrame OnFrame) (Transport, error) {
	switch cfg.Backend {
	case "", "tcp":
		t := NewTCPTransport(cfg)
		t.SetOnFrame(onFrame)
		return t, nil
	case "libp2p":
		t, err := NewLibP2PTransport(cfg)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
		}
		t.SetOnFrame(onFrame)
		return t, nil
	default:
		return nil, fmt.Errorf("%w: unknown backend %q", ErrBackendUnavailable, cfg.Backend)
	}
}
