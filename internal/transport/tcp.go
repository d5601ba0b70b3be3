package transport

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"ezchain/internal/frame"

	"github.com/sirupsen/logrus"
)

// TCPTransport is the mandatory backend: one outbound connection per
// (host, port), frames read strictly via two blocking reads (header then
// body), and inbound remote ids derived as "host:port".
type TCPTransport struct {
	cfg   Config
	codec *frame.Codec
	log   *logrus.Entry

	onFrame OnFrame

	listener net.Listener

	mu      sync.Mutex
	clients map[string]net.Conn

	closing chan struct{}
	wg      sync.WaitGroup
}

// tcpReplyContext pins a reply to the exact inbound connection it arrived on.
type tcpReplyContext struct {
	conn     net.Conn
	remoteID string
}

func (c *tcpReplyContext) RemoteID() string { return c.remoteID }

// NewTCPTransport constructs the TCP backend. Missing timeouts/limits fall
// back to the framing codec's and the package's defaults.
func NewTCPTransport(cfg Config) *TCPTransport {
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 3 * time.Second
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 3 * time.Second
	}
	return &TCPTransport{
		cfg:     cfg,
		codec:   frame.NewCodec(cfg.MaxFrameBytes),
		log:     logrus.WithField("component", "transport.tcp"),
		clients: make(map[string]net.Conn),
		closing: make(chan struct{}),
	}
}

// SetOnFrame registers the inbound-frame callback.
func (t *TCPTransport) SetOnFrame(cb OnFrame) { t.onFrame = cb }

// ListenerAddr returns the address the listener is bound to, including the
// kernel-assigned port when ListenPort was 0. Only valid after Start.
func (t *TCPTransport) ListenerAddr() string {
	if t.listener == nil {
		return ""
	}
	return t.listener.Addr().String()
}

// Start opens the listener and begins accepting connections in a background
// goroutine; each accepted connection gets its own goroutine serializing
// reads for that connection, per the spec's per-connection ordering
// guarantee.
func (t *TCPTransport) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", t.cfg.ListenHost, t.cfg.ListenPort)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	t.listener = ln

	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		for {
			conn, err := ln.Accept()
			if err != nil {
				select {
				case <-t.closing:
					return
				default:
					t.log.WithError(err).Warn("accept failed")
					return
				}
			}
			t.wg.Add(1)
			go t.serveConn(conn)
		}
	}()
	return nil
}

func (t *TCPTransport) serveConn(conn net.Conn) {
	defer t.wg.Done()
	defer conn.Close()

	remoteID := conn.RemoteAddr().String()
	ctx := &tcpReplyContext{conn: conn, remoteID: remoteID}

	for {
		body, err := t.codec.ReadFrameBytes(conn)
		if err != nil {
			// Incomplete reads and resets mean the peer went away; this is
			// a plain connection close, not an error event for the router.
			return
		}
		if t.onFrame != nil {
			t.onFrame(body, remoteID, ctx)
		}
	}
}

// Stop closes the listener and every pooled outbound connection.
func (t *TCPTransport) Stop() error {
	close(t.closing)
	if t.listener != nil {
		_ = t.listener.Close()
	}
	t.mu.Lock()
	for _, c := range t.clients {
		_ = c.Close()
	}
	t.clients = make(map[string]net.Conn)
	t.mu.Unlock()
	t.wg.Wait()
	return nil
}

func (t *TCPTransport) ensureClient(addr string) (net.Conn, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if conn, ok := t.clients[addr]; ok {
		return conn, nil
	}
	conn, err := net.DialTimeout("tcp", addr, t.cfg.DialTimeout)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDialFailed, err)
	}
	t.clients[addr] = conn
	// Read replies (e.g. WELCOME, PONG) that the remote writes back on this
	// connection and hand them up like any inbound frame.
	t.wg.Add(1)
	go t.serveConn(conn)
	return conn, nil
}

func (t *TCPTransport) dropClient(addr string, conn net.Conn) {
	t.mu.Lock()
	if t.clients[addr] == conn {
		delete(t.clients, addr)
	}
	t.mu.Unlock()
}

// Send ensures a single outbound connection to addr and writes data as one
// length-prefixed frame, respecting the configured send timeout.
func (t *TCPTransport) Send(addr string, data []byte) error {
	if len(data) > t.codec.MaxFrameBytes {
		return ErrPayloadTooLarge
	}
	conn, err := t.ensureClient(addr)
	if err != nil {
		return err
	}
	if err := t.writeFrame(conn, data, t.cfg.SendTimeout); err != nil {
		t.dropClient(addr, conn)
		return err
	}
	return nil
}

// SendViaContext writes data on the exact inbound connection ctx pins,
// never dialing and never touching the outbound pool.
func (t *TCPTransport) SendViaContext(rc ReplyContext, data []byte) error {
	ctx, ok := rc.(*tcpReplyContext)
	if !ok {
		return fmt.Errorf("invalid reply context for tcp transport")
	}
	if len(data) > t.codec.MaxFrameBytes {
		return ErrPayloadTooLarge
	}
	return t.writeFrame(ctx.conn, data, t.cfg.SendTimeout)
}

func (t *TCPTransport) writeFrame(conn net.Conn, data []byte, timeout time.Duration) error {
	if timeout > 0 {
		_ = conn.SetWriteDeadline(time.Now().Add(timeout))
		defer conn.SetWriteDeadline(time.Time{})
	}
	header := []byte{
		byte(len(data) >> 24),
		byte(len(data) >> 16),
		byte(len(data) >> 8),
		byte(len(data)),
	}
	if _, err := conn.Write(header); err != nil {
		return fmt.Errorf("%w: %v", ErrSendTimeout, err)
	}
	if _, err := conn.Write(data); err != nil {
		return fmt.Errorf("%w: %v", ErrSendTimeout, err)
	}
	return nil
}
