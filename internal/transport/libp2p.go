package transport

import (
	"context"
	"fmt"
	"sync"
	"time"

	"ezchain/internal/frame"

	libp2p "github.com/libp2p/go-libp2p"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/core/protocol"
	"github.com/sirupsen/logrus"
)

// defaultLibP2PProtocol is used when Config.LibP2PProtocol is unset.
const defaultLibP2PProtocol = "/ezchain/frame/1.0.0"

// LibP2PTransport is the optional second backend: it carries the same
// length-prefixed frame codec over libp2p streams instead of bare TCP
// sockets, so the router and submission code are unaware of which backend
// is in use. Grounded on the host/stream plumbing core/network.go and
// core/peer_management.go already use for the teacher's gossip network,
// adapted here to the point-to-point framed-stream contract C3 requires
// (no pubsub topics).
type LibP2PTransport struct {
	cfg      Config
	codec    *frame.Codec
	protocol protocol.ID
	log      *logrus.Entry

	onFrame OnFrame

	h host.Host

	mu      sync.Mutex
	streams map[string]network.Stream

	ctx    context.Context
	cancel context.CancelFunc
}

type libp2pReplyContext struct {
	stream   network.Stream
	remoteID string
}

func (c *libp2pReplyContext) RemoteID() string { return c.remoteID }

// NewLibP2PTransport constructs the libp2p-stream backend. Construction
// itself only validates configuration; the host is created in Start so that
// a missing/broken libp2p dependency surfaces as a Start-time
// ErrBackendUnavailable rather than at New() time.
func NewLibP2PTransport(cfg Config) (*LibP2PTransport, error) {
	proto := cfg.LibP2PProtocol
	if proto == "" {
		proto = defaultLibP2PProtocol
	}
	return &LibP2PTransport{
		cfg:      cfg,
		codec:    frame.NewCodec(cfg.MaxFrameBytes),
		protocol: protocol.ID(proto),
		log:      logrus.WithField("component", "transport.libp2p"),
		streams:  make(map[string]network.Stream),
	}, nil
}

// SetOnFrame registers the inbound-frame callback.
func (t *LibP2PTransport) SetOnFrame(cb OnFrame) { t.onFrame = cb }

// Start builds the libp2p host listening on the configured TCP multiaddr
// and registers the frame stream handler. Per the pluggable-backend
// contract, any host construction failure is returned wrapped so callers
// can treat it as ErrBackendUnavailable.
func (t *LibP2PTransport) Start(ctx context.Context) error {
	listenAddr := fmt.Sprintf("/ip4/%s/tcp/%d", t.cfg.ListenHost, t.cfg.ListenPort)
	h, err := libp2p.New(libp2p.ListenAddrStrings(listenAddr))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	t.h = h
	t.ctx, t.cancel = context.WithCancel(ctx)

	h.SetStreamHandler(t.protocol, t.handleStream)
	return nil
}

func (t *LibP2PTransport) handleStream(s network.Stream) {
	remoteID := s.Conn().RemotePeer().String()
	ctx := &libp2pReplyContext{stream: s, remoteID: remoteID}
	defer s.Close()
	for {
		body, err := t.codec.ReadFrameBytes(s)
		if err != nil {
			return
		}
		if t.onFrame != nil {
			t.onFrame(body, remoteID, ctx)
		}
	}
}

// Stop closes every pooled stream and the libp2p host.
func (t *LibP2PTransport) Stop() error {
	if t.cancel != nil {
		t.cancel()
	}
	t.mu.Lock()
	for _, s := range t.streams {
		_ = s.Close()
	}
	t.streams = make(map[string]network.Stream)
	t.mu.Unlock()
	if t.h != nil {
		return t.h.Close()
	}
	return nil
}

func (t *LibP2PTransport) ensureStream(addr string) (network.Stream, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if s, ok := t.streams[addr]; ok {
		return s, nil
	}
	info, err := peer.AddrInfoFromString(addr)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid libp2p address %q: %v", ErrDialFailed, addr, err)
	}
	dialCtx, cancel := context.WithTimeout(t.ctx, t.dialTimeout())
	defer cancel()
	if err := t.h.Connect(dialCtx, *info); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDialFailed, err)
	}
	s, err := t.h.NewStream(dialCtx, info.ID, t.protocol)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDialFailed, err)
	}
	t.streams[addr] = s
	// Read replies the remote writes back on this stream.
	go t.handleStream(s)
	return s, nil
}

func (t *LibP2PTransport) dialTimeout() time.Duration {
	if t.cfg.DialTimeout > 0 {
		return t.cfg.DialTimeout
	}
	return 3 * time.Second
}

func (t *LibP2PTransport) dropStream(addr string, s network.Stream) {
	t.mu.Lock()
	if t.streams[addr] == s {
		delete(t.streams, addr)
	}
	t.mu.Unlock()
}

// Send ensures a stream to addr (a libp2p multiaddr with a /p2p/<peerID>
// suffix) and writes data as one length-prefixed frame.
func (t *LibP2PTransport) Send(addr string, data []byte) error {
	if len(data) > t.codec.MaxFrameBytes {
		return ErrPayloadTooLarge
	}
	s, err := t.ensureStream(addr)
	if err != nil {
		return err
	}
	if err := t.writeFrame(s, data); err != nil {
		t.dropStream(addr, s)
		return err
	}
	return nil
}

// SendViaContext writes data on the exact inbound stream ctx pins.
func (t *LibP2PTransport) SendViaContext(rc ReplyContext, data []byte) error {
	ctx, ok := rc.(*libp2pReplyContext)
	if !ok {
		return fmt.Errorf("invalid reply context for libp2p transport")
	}
	if len(data) > t.codec.MaxFrameBytes {
		return ErrPayloadTooLarge
	}
	return t.writeFrame(ctx.stream, data)
}

func (t *LibP2PTransport) writeFrame(s network.Stream, data []byte) error {
	timeout := t.cfg.SendTimeout
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	_ = s.SetWriteDeadline(time.Now().Add(timeout))
	defer s.SetWriteDeadline(time.Time{})

	header := []byte{
		byte(len(data) >> 24),
		byte(len(data) >> 16),
		byte(len(data) >> 8),
		byte(len(data)),
	}
	if _, err := s.Write(header); err != nil {
		return fmt.Errorf("%w: %v", ErrSendTimeout, err)
	}
	if _, err := s.Write(data); err != nil {
		return fmt.Errorf("%w: %v", ErrSendTimeout, err)
	}
	return nil
}
