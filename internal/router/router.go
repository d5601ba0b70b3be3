// Package router implements the role-aware P2P message router: envelope
// dispatch, built-in HELLO/WELCOME/PING/PONG handlers, broadcast/directed
// send APIs, seed reconnection with exponential backoff, and health/
// degraded-mode reporting.
package router

import (
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"ezchain/internal/frame"
	"ezchain/internal/p2pcrypto"
	"ezchain/internal/peertable"
	"ezchain/internal/transport"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Handler processes one decoded, already-validated envelope. replyCtx may
// be used with SendViaContext to reply on the same inbound connection.
type Handler func(env *frame.Envelope, remoteID string, replyCtx transport.ReplyContext)

// Config carries every setting the router needs to construct its transport,
// identity, and seed/backoff behavior.
type Config struct {
	NodeRole     string // consensus | account | pool_gateway
	NodeID       string // synthesized if empty
	Transport    transport.Config
	PeerSeeds    []string
	NetworkID    string
	ProtocolVersion string
	MaxNeighbors int

	IdentityPrivateKey *ecdsa.PrivateKey
	IdentityPublicKeyPEM []byte

	EnforceIdentityVerification bool
	SignedMessageTypes          map[string]bool

	MaintenanceInterval time.Duration
	SeedRetryBase       time.Duration
	SeedRetryMax        time.Duration
	DegradedNoPeerSec   time.Duration
}

// seedStatus is a seed's position in the lifecycle state machine.
type seedStatus string

const (
	seedIdle    seedStatus = "idle"
	seedDialing seedStatus = "dialing"
	seedHealthy seedStatus = "healthy"
	seedFailing seedStatus = "failing"
	seedBackoff seedStatus = "backoff"
)

type seedState struct {
	status           seedStatus
	failureCount     int
	nextRetryAt      time.Time
	lastError        string
}

// Health is the router's self-reported liveness view.
type Health struct {
	PeerCount int  `json:"peer_count"`
	Degraded  bool `json:"degraded"`
}

// Router dispatches decoded envelopes to registered handlers and drives
// seed lifecycle management.
type Router struct {
	cfg   Config
	log   *logrus.Entry
	codec *frame.Codec

	nodeID string

	transport transport.Transport
	peers     *peertable.Table

	mu       sync.RWMutex
	handlers map[string]Handler

	seedMu sync.Mutex
	seeds  map[string]*seedState

	lastPeerSeenMu sync.Mutex
	lastPeerSeen   time.Time

	now func() time.Time

	stopMaintenance context.CancelFunc
	maintenanceWG   sync.WaitGroup
}

// New constructs a Router and its backing transport (not yet started).
func New(cfg Config) (*Router, error) {
	if cfg.NodeID == "" {
		cfg.NodeID = uuid.NewString()
	}
	if cfg.MaintenanceInterval <= 0 {
		cfg.MaintenanceInterval = 5 * time.Second
	}
	if cfg.SeedRetryBase <= 0 {
		cfg.SeedRetryBase = time.Second
	}
	if cfg.SeedRetryMax <= 0 {
		cfg.SeedRetryMax = 30 * time.Second
	}
	if cfg.DegradedNoPeerSec <= 0 {
		cfg.DegradedNoPeerSec = 20 * time.Second
	}

	r := &Router{
		cfg:      cfg,
		log:      logrus.WithField("component", "router"),
		codec:    frame.NewCodec(cfg.Transport.MaxFrameBytes),
		nodeID:   cfg.NodeID,
		peers:    peertable.New(cfg.MaxNeighbors),
		handlers: make(map[string]Handler),
		seeds:    make(map[string]*seedState),
		now:      time.Now,
	}
	for _, seed := range cfg.PeerSeeds {
		r.seeds[seed] = &seedState{status: seedIdle}
	}

	r.RegisterHandler("HELLO", r.handleHello)
	r.RegisterHandler("WELCOME", r.handleWelcome)
	r.RegisterHandler("PING", r.handlePing)
	r.RegisterHandler("PONG", r.handlePong)

	t, err := transport.New(cfg.Transport, r.onFrame)
	if err != nil {
		return nil, err
	}
	r.transport = t
	return r, nil
}

// RegisterHandler installs (or replaces) the handler for msgType.
func (r *Router) RegisterHandler(msgType string, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[msgType] = h
}

// Peers exposes the peer table for callers (e.g. the submission service's
// /network/info) that need to read it.
func (r *Router) Peers() *peertable.Table { return r.peers }

// NodeID returns this router's identity token.
func (r *Router) NodeID() string { return r.nodeID }

// Start starts the transport, launches the maintenance loop, and attempts
// a best-effort HELLO to every configured seed without blocking on success.
func (r *Router) Start(ctx context.Context) error {
	if err := r.transport.Start(ctx); err != nil {
		return err
	}
	r.log.WithFields(logrus.Fields{"host": r.cfg.Transport.ListenHost, "port": r.cfg.Transport.ListenPort}).Info("server_listen")

	maintCtx, cancel := context.WithCancel(ctx)
	r.stopMaintenance = cancel
	r.maintenanceWG.Add(1)
	go r.maintenanceLoop(maintCtx)

	for _, seed := range r.cfg.PeerSeeds {
		r.dialSeed(seed)
	}
	return nil
}

// Stop cancels the maintenance loop and closes the transport.
func (r *Router) Stop() error {
	if r.stopMaintenance != nil {
		r.stopMaintenance()
	}
	r.maintenanceWG.Wait()
	return r.transport.Stop()
}

func (r *Router) onFrame(body []byte, remoteID string, ctx transport.ReplyContext) {
	env, err := frame.DecodeBody(body)
	if err != nil {
		r.log.WithError(err).Debug("decode_failed")
		return
	}
	r.dispatch(env, remoteID, ctx)
}

// dispatch runs the version/network/signature/handler pipeline described in
// the router's component design.
func (r *Router) dispatch(env *frame.Envelope, remoteID string, ctx transport.ReplyContext) {
	if env.Version != r.cfg.ProtocolVersion {
		r.log.WithField("version", env.Version).Debug("drop_version_mismatch")
		return
	}
	if !r.networkMatchesRole(env.Network) {
		r.log.WithFields(logrus.Fields{"network": env.Network, "role": r.cfg.NodeRole}).Debug("drop_network_mismatch")
		return
	}
	if r.requiresAuth(env.Type) {
		if !r.verifyAuth(env) {
			r.log.WithField("type", env.Type).Info("drop_auth_failed")
			return
		}
	}

	r.mu.RLock()
	handler, ok := r.handlers[env.Type]
	r.mu.RUnlock()
	if !ok {
		r.log.WithField("type", env.Type).Info("drop_unknown_type")
		return
	}
	handler(env, remoteID, ctx)
	r.markPeerSeen()
}

// networkMatchesRole pairs a node role with its expected network id per the
// role<->network pairing spec.md §4.5 requires: account-role nodes expect
// "account" traffic, every other role expects "consensus" traffic, unless
// the envelope's network is the pool_gateway network, which is addressable
// from any role.
func (r *Router) networkMatchesRole(network string) bool {
	if network == "pool_gateway" {
		return true
	}
	if r.cfg.NodeRole == "account" {
		return network == "account"
	}
	return network == "consensus"
}

func (r *Router) requiresAuth(msgType string) bool {
	if r.cfg.EnforceIdentityVerification {
		return true
	}
	return r.cfg.SignedMessageTypes[msgType]
}

func (r *Router) verifyAuth(env *frame.Envelope) bool {
	if env.Auth == nil {
		return false
	}
	if env.Auth.Algorithm != p2pcrypto.Algorithm {
		return false
	}
	pub, err := p2pcrypto.ParsePublicKeyPEM([]byte(env.Auth.PublicKey))
	if err != nil {
		return false
	}
	return p2pcrypto.Verify(env, env.Auth.Signature, pub)
}

func (r *Router) markPeerSeen() {
	r.lastPeerSeenMu.Lock()
	r.lastPeerSeen = r.now()
	r.lastPeerSeenMu.Unlock()
}

// Health reports peer_count and whether the router is in degraded mode.
func (r *Router) Health() Health {
	r.lastPeerSeenMu.Lock()
	lastSeen := r.lastPeerSeen
	r.lastPeerSeenMu.Unlock()

	peerCount := r.peers.Len()
	degraded := peerCount == 0 && !lastSeen.IsZero() && r.now().Sub(lastSeen) > r.cfg.DegradedNoPeerSec
	if peerCount == 0 && lastSeen.IsZero() {
		degraded = true
	}
	return Health{PeerCount: peerCount, Degraded: degraded}
}

// helloPayload is the payload shape for HELLO and WELCOME messages.
type helloPayload struct {
	NodeID          string `json:"node_id"`
	Role            string `json:"role"`
	ProtocolVersion string `json:"protocol_version"`
	NetworkID       string `json:"network_id"`
	LatestIndex     int64  `json:"latest_index"`
}

func (r *Router) identityPayload() helloPayload {
	return helloPayload{
		NodeID:          r.nodeID,
		Role:            r.cfg.NodeRole,
		ProtocolVersion: r.cfg.ProtocolVersion,
		NetworkID:       r.cfg.NetworkID,
		LatestIndex:     0,
	}
}

func (r *Router) buildEnvelope(network, msgType string, payload any) (*frame.Envelope, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &frame.Envelope{
		Version:   r.cfg.ProtocolVersion,
		Network:   network,
		Type:      msgType,
		MsgID:     uuid.NewString(),
		Timestamp: r.now().UnixMilli(),
		SenderID:  r.nodeID,
		Payload:   body,
	}, nil
}

func (r *Router) maybeSign(env *frame.Envelope) error {
	if !r.requiresAuth(env.Type) {
		return nil
	}
	if r.cfg.IdentityPrivateKey == nil {
		return fmt.Errorf("signed message type %q requires an identity private key", env.Type)
	}
	sig, err := p2pcrypto.Sign(env, r.cfg.IdentityPrivateKey)
	if err != nil {
		return err
	}
	env.Auth = &frame.Auth{
		Algorithm: p2pcrypto.Algorithm,
		PublicKey: string(r.cfg.IdentityPublicKeyPEM),
		Signature: sig,
	}
	return nil
}

// sendToAddr builds, optionally signs, and sends an envelope to addr.
func (r *Router) sendToAddr(addr, network, msgType string, payload any) error {
	env, err := r.buildEnvelope(network, msgType, payload)
	if err != nil {
		return err
	}
	if err := r.maybeSign(env); err != nil {
		return err
	}
	buf, err := r.codec.Encode(env)
	if err != nil {
		return err
	}
	if err := r.transport.Send(addr, buf[frame.HeaderLen:]); err != nil {
		return err
	}
	r.markPeerSeen()
	return nil
}

func (r *Router) helloNetwork() string {
	if r.cfg.NodeRole != "account" {
		return "consensus"
	}
	return "account"
}

// BroadcastToRole sends payload as msgType to every peer with the given
// role. It does not retry beyond seed-level backoff.
func (r *Router) BroadcastToRole(role, network, msgType string, payload any) {
	for _, peer := range r.peers.SelectByRole(role) {
		if err := r.sendToAddr(peer.Address, network, msgType, payload); err != nil {
			r.log.WithError(err).WithField("peer", peer.NodeID).Warn("broadcast_send_failed")
		}
	}
}

// SendToAddress is a one-shot directed send to an opaque address string.
func (r *Router) SendToAddress(addr, network, msgType string, payload any) error {
	return r.sendToAddr(addr, network, msgType, payload)
}

// ---------------- built-in handlers ----------------

func (r *Router) handleHello(env *frame.Envelope, remoteID string, ctx transport.ReplyContext) {
	var p helloPayload
	if err := json.Unmarshal(env.Payload, &p); err != nil {
		r.log.WithError(err).Debug("hello_payload_decode_failed")
		return
	}
	r.peers.Add(peertable.Entry{
		NodeID:      p.NodeID,
		Role:        p.Role,
		NetworkID:   p.NetworkID,
		LatestIndex: p.LatestIndex,
		Address:     remoteID,
	})

	reply, err := r.buildEnvelope(env.Network, "WELCOME", r.identityPayload())
	if err != nil {
		return
	}
	if err := r.maybeSign(reply); err != nil {
		r.log.WithError(err).Warn("welcome_sign_failed")
		return
	}
	buf, err := r.codec.Encode(reply)
	if err != nil {
		return
	}
	if err := r.transport.SendViaContext(ctx, buf[frame.HeaderLen:]); err != nil {
		r.log.WithError(err).Warn("welcome_send_failed")
		return
	}
	r.log.WithFields(logrus.Fields{"from": remoteID, "role": p.Role}).Info("hello_recv")
}

func (r *Router) handleWelcome(env *frame.Envelope, remoteID string, ctx transport.ReplyContext) {
	var p helloPayload
	if err := json.Unmarshal(env.Payload, &p); err != nil {
		r.log.WithError(err).Debug("welcome_payload_decode_failed")
		return
	}
	r.peers.Add(peertable.Entry{
		NodeID:      p.NodeID,
		Role:        p.Role,
		NetworkID:   p.NetworkID,
		LatestIndex: p.LatestIndex,
		Address:     remoteID,
	})
	r.markSeedHealthy(remoteID)
	r.log.WithFields(logrus.Fields{"from": remoteID, "role": p.Role}).Info("welcome_recv")
}

type pingPayload struct {
	TS int64 `json:"ts"`
}

func (r *Router) handlePing(env *frame.Envelope, remoteID string, ctx transport.ReplyContext) {
	var p pingPayload
	_ = json.Unmarshal(env.Payload, &p)

	reply, err := r.buildEnvelope(env.Network, "PONG", p)
	if err != nil {
		return
	}
	buf, err := r.codec.Encode(reply)
	if err != nil {
		return
	}
	if err := r.transport.SendViaContext(ctx, buf[frame.HeaderLen:]); err != nil {
		r.log.WithError(err).Warn("pong_send_failed")
		return
	}
	r.log.WithField("from", remoteID).Info("ping_recv")
}

func (r *Router) handlePong(env *frame.Envelope, remoteID string, ctx transport.ReplyContext) {
	r.log.WithField("from", remoteID).Info("pong_recv")
}

// Ping sends a one-shot PING to addr.
func (r *Router) Ping(addr string) error {
	return r.sendToAddr(addr, "account", "PING", pingPayload{TS: r.now().UnixMilli()})
}
