// Package pairing runs the device-pairing handshake: every subscribed
// operator connection owns one registration token that rotates on a fixed
// interval and is pushed to the operator as it changes.
package pairing

import (
	"context"
	"sync"
	"time"

	"github.com/Abraxas-365/identity/pkg/clock"
	"github.com/Abraxas-365/identity/pkg/config"
	"github.com/Abraxas-365/identity/pkg/kernel"
	"github.com/Abraxas-365/identity/pkg/kvstore"
	"github.com/Abraxas-365/identity/pkg/logx"
	"github.com/Abraxas-365/identity/pkg/metrx"
)

type State int

const (
	StateUnsubscribed State = iota
	StateSubscribed
	StateRotating
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateSubscribed:
		return "subscribed"
	case StateRotating:
		return "rotating"
	case StateTerminated:
		return "terminated"
	default:
		return "unsubscribed"
	}
}

// maxCollisionRetries bounds how often a freshly drawn token may collide
// with a live one before Generate gives up.
const maxCollisionRetries = 3

type connection struct {
	mu    sync.Mutex
	state State
}

type Coordinator struct {
	store     kvstore.Store
	publisher Publisher
	scheduler *Scheduler
	cfg       config.PairingConfig

	tokens  TokenSource
	clock   clock.Clock
	audit   Auditor
	metrics *metrx.Metrics

	mu    sync.Mutex
	conns map[kernel.ConnectionID]*connection
}

type Option func(*Coordinator)

func WithTokenSource(src TokenSource) Option { return func(c *Coordinator) { c.tokens = src } }
func WithClock(clk clock.Clock) Option       { return func(c *Coordinator) { c.clock = clk } }
func WithAuditor(a Auditor) Option           { return func(c *Coordinator) { c.audit = a } }
func WithMetrics(m *metrx.Metrics) Option    { return func(c *Coordinator) { c.metrics = m } }

func NewCoordinator(
	store kvstore.Store,
	publisher Publisher,
	scheduler *Scheduler,
	cfg config.PairingConfig,
	opts ...Option,
) *Coordinator {
	c := &Coordinator{
		store:     store,
		publisher: publisher,
		scheduler: scheduler,
		cfg:       cfg,
		tokens:    RandomTokens(cfg.TokenLength),
		clock:     clock.Real{},
		conns:     make(map[kernel.ConnectionID]*connection),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State reports the lifecycle state of connID.
func (c *Coordinator) State(connID kernel.ConnectionID) State {
	c.mu.Lock()
	conn, ok := c.conns[connID]
	c.mu.Unlock()
	if !ok {
		return StateUnsubscribed
	}
	conn.mu.Lock()
	defer conn.mu.Unlock()
	return conn.state
}

func (c *Coordinator) connection(connID kernel.ConnectionID) *connection {
	c.mu.Lock()
	defer c.mu.Unlock()
	conn, ok := c.conns[connID]
	if !ok {
		conn = &connection{}
		c.conns[connID] = conn
	}
	return conn
}

func (c *Coordinator) lookup(connID kernel.ConnectionID) (*connection, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	conn, ok := c.conns[connID]
	return conn, ok
}

// Subscribe joins connID to its own group, issues the first token and
// starts rotation. Subscribing again issues a fresh token and restarts the
// rotation interval.
func (c *Coordinator) Subscribe(ctx context.Context, connID kernel.ConnectionID) error {
	ctx = kernel.WithConnectionID(ctx, connID)
	conn := c.connection(connID)

	conn.mu.Lock()
	defer conn.mu.Unlock()

	if conn.state == StateTerminated {
		return ErrConnectionClosed()
	}

	if err := c.publisher.AddToGroup(ctx, groupFor(connID), connID); err != nil {
		return err
	}
	first := conn.state == StateUnsubscribed
	conn.state = StateSubscribed

	if _, err := c.generate(ctx, connID, false); err != nil {
		return err
	}

	conn.state = StateRotating
	c.scheduler.Schedule(connID, c.cfg.RotationInterval, func(ctx context.Context) bool {
		return c.rotate(kernel.WithConnectionID(ctx, connID), connID)
	})
	if first {
		c.metrics.ConnectionSubscribed()
	}

	logx.WithContext(ctx).Info("Connection subscribed to client registration")
	return nil
}

// Generate issues a new token for connID. With rotation set it only
// replaces an existing token, and reports false when there is none so the
// caller can stop rotating.
func (c *Coordinator) Generate(ctx context.Context, connID kernel.ConnectionID, rotation bool) bool {
	ctx = kernel.WithConnectionID(ctx, connID)
	conn := c.connection(connID)

	conn.mu.Lock()
	defer conn.mu.Unlock()

	keep, err := c.generate(ctx, connID, rotation)
	if err != nil {
		logx.WithContext(ctx).WithError(err).Error("Failed to generate registration token")
	}
	return keep
}

func (c *Coordinator) rotate(ctx context.Context, connID kernel.ConnectionID) bool {
	conn, ok := c.lookup(connID)
	if !ok {
		return false
	}

	conn.mu.Lock()
	defer conn.mu.Unlock()

	if conn.state != StateRotating {
		return false
	}
	keep, err := c.generate(ctx, connID, true)
	if err != nil {
		// A store outage must not stop rotation; the next tick retries.
		logx.WithContext(ctx).WithError(err).Warn("Registration token rotation failed")
		return true
	}
	if !keep {
		logx.WithContext(ctx).Info("No registration token left, rotation stopped")
	}
	return keep
}

// generate expects the connection lock to be held.
func (c *Coordinator) generate(ctx context.Context, connID kernel.ConnectionID, rotation bool) (bool, error) {
	old, found, err := c.store.Get(ctx, ConnKey(connID))
	if err != nil {
		return true, err
	}
	if rotation && !found {
		return false, nil
	}

	// The old token must be dead before the new one is visible.
	if found {
		if err := c.store.Delete(ctx, TokenKey(old)); err != nil {
			return true, err
		}
	}

	ttl := c.cfg.EffectiveTokenTTL()
	token, err := c.claimToken(ctx, connID, ttl)
	if err != nil {
		return true, err
	}
	if err := c.store.Set(ctx, ConnKey(connID), token.Value, ttl); err != nil {
		return true, err
	}

	ev := Event{
		Type:    EventRegisterTokenUpdated,
		Payload: RegisterTokenUpdated{Token: token.Value, AppKey: c.cfg.AppKey},
	}
	if err := c.publisher.PublishToGroup(ctx, groupFor(connID), ev); err != nil {
		logx.WithContext(ctx).WithError(err).Warn("Failed to push registration token")
	}

	c.metrics.PairingTokenIssued()
	if c.audit != nil {
		c.audit.LogPairingTokenIssued(ctx, connID)
	}
	return true, nil
}

// claimToken draws tokens until one is not held by another connection and
// writes its forward key.
func (c *Coordinator) claimToken(ctx context.Context, connID kernel.ConnectionID, ttl time.Duration) (*Token, error) {
	for range maxCollisionRetries {
		value, err := c.tokens()
		if err != nil {
			return nil, ErrTokenGeneration(err)
		}
		ok, err := c.store.SetNX(ctx, TokenKey(value), connID.String(), ttl)
		if err != nil {
			return nil, err
		}
		if ok {
			return &Token{Value: value, ConnectionID: connID, IssuedAt: c.clock.Now()}, nil
		}
	}
	return nil, ErrTokenGeneration(nil)
}

// OnDisconnected stops rotation and removes every trace of connID.
func (c *Coordinator) OnDisconnected(ctx context.Context, connID kernel.ConnectionID) {
	ctx = kernel.WithConnectionID(ctx, connID)
	c.scheduler.Cancel(connID)

	conn := c.connection(connID)
	conn.mu.Lock()
	wasSubscribed := conn.state == StateSubscribed || conn.state == StateRotating
	conn.state = StateTerminated

	token, found, err := c.store.Get(ctx, ConnKey(connID))
	if err != nil {
		logx.WithContext(ctx).WithError(err).Error("Failed to read registration token on disconnect")
	} else if found {
		if err := c.store.Delete(ctx, TokenKey(token), ConnKey(connID)); err != nil {
			logx.WithContext(ctx).WithError(err).Error("Failed to delete registration token on disconnect")
		}
	}
	conn.mu.Unlock()

	c.publisher.RemoveConnection(ctx, connID)

	c.mu.Lock()
	delete(c.conns, connID)
	c.mu.Unlock()

	if wasSubscribed {
		c.metrics.ConnectionClosed()
	}
	logx.WithContext(ctx).Debug("Connection disconnected")
}

// NotifyRegistered tells the operator on connID that a device completed
// registration.
func (c *Coordinator) NotifyRegistered(ctx context.Context, connID kernel.ConnectionID, clientID kernel.ClientID) error {
	return c.publisher.PublishToGroup(ctx, groupFor(connID), Event{
		Type:    EventClientRegistered,
		Payload: ClientRegistered{ClientID: clientID.String()},
	})
}
