// Package realtime implements the live update connection to the feed
// server: token-authenticated WebSocket transport, ping keepalive, linear
// backoff reconnection and typed fan-out of update events to subscribers.
package realtime

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/Guliveer/feedsync-go/internal/constants"
	"github.com/Guliveer/feedsync-go/internal/logger"
)

// State is the lifecycle state of the connection.
type State int

const (
	// StateConnecting means a token fetch or dial is in flight.
	StateConnecting State = iota
	// StateOpen means a transport is live.
	StateOpen
	// StateClosed means no transport is live. It is terminal once the
	// client is closed or out of reconnect attempts.
	StateClosed
)

// String returns the lowercase name of the state.
func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Handler receives every decoded event.
type Handler func(Event)

// TokenSource issues the short-lived token the socket URL carries.
type TokenSource interface {
	WSToken(ctx context.Context) (string, error)
}

// TokenSourceFunc adapts a function to TokenSource.
type TokenSourceFunc func(ctx context.Context) (string, error)

// WSToken calls f.
func (f TokenSourceFunc) WSToken(ctx context.Context) (string, error) {
	return f(ctx)
}

// Config holds the connection settings. Zero values take defaults.
type Config struct {
	// BaseURL is the feed server, e.g. http://localhost:7878. The socket
	// uses the same host and port with a ws/wss scheme.
	BaseURL              string
	MaxReconnectAttempts int
	ReconnectInterval    time.Duration
	HeartbeatInterval    time.Duration
	WriteTimeout         time.Duration
}

func (c *Config) defaults() {
	if c.BaseURL == "" {
		c.BaseURL = constants.DefaultBaseURL
	}
	if c.MaxReconnectAttempts <= 0 {
		c.MaxReconnectAttempts = constants.DefaultMaxReconnectAttempts
	}
	if c.ReconnectInterval <= 0 {
		c.ReconnectInterval = constants.DefaultReconnectInterval
	}
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = constants.DefaultHeartbeatInterval
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = constants.DefaultWriteTimeout
	}
}

// Option customises a Client.
type Option func(*Client)

// WithClock replaces the timer source.
func WithClock(clock Clock) Option {
	return func(c *Client) {
		c.clock = clock
	}
}

// WithExhaustedHook registers fn to run once reconnect attempts run out.
func WithExhaustedHook(fn func()) Option {
	return func(c *Client) {
		c.onExhausted = fn
	}
}

// WithStateHook registers fn to run on every state transition.
func WithStateHook(fn func(State)) Option {
	return func(c *Client) {
		c.onState = fn
	}
}

// Status is a point-in-time view of the connection.
type Status struct {
	State     State
	Attempts  int
	Exhausted bool
	Closed    bool
}

// Client maintains one logical connection to the feed server. It is created
// once per process and shared by every consumer.
type Client struct {
	mu sync.Mutex
	// writeMu orders frame writes against transport close. It is never
	// acquired while mu is held.
	writeMu sync.Mutex

	cfg     Config
	baseURL *url.URL
	tokens  TokenSource
	dialer  Dialer
	clock   Clock
	log     *logger.Logger

	onExhausted func()
	onState     func(State)

	ctx    context.Context
	cancel context.CancelFunc

	state     State
	attempts  int
	exhausted bool
	shutdown  bool

	// gen identifies the current connection attempt. Callbacks carrying an
	// older generation are ignored.
	gen       uint64
	conn      Transport
	heartbeat Timer
	retry     Timer

	subs      map[uint64]Handler
	nextSubID uint64
}

// NewClient creates a Client and starts connecting immediately.
func NewClient(cfg Config, tokens TokenSource, dialer Dialer, log *logger.Logger, opts ...Option) (*Client, error) {
	cfg.defaults()

	base, err := socketBase(cfg.BaseURL)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Client{
		cfg:     cfg,
		baseURL: base,
		tokens:  tokens,
		dialer:  dialer,
		clock:   systemClock{},
		log:     log,
		ctx:     ctx,
		cancel:  cancel,
		state:   StateConnecting,
		subs:    make(map[uint64]Handler),
	}
	for _, opt := range opts {
		opt(c)
	}

	c.connect()
	return c, nil
}

// Subscribe registers h for every future event. The returned function
// removes exactly that registration; calling it again is a no-op.
func (c *Client) Subscribe(h Handler) (unsubscribe func()) {
	c.mu.Lock()
	id := c.nextSubID
	c.nextSubID++
	c.subs[id] = h
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.subs, id)
			c.mu.Unlock()
		})
	}
}

// Send writes ev immediately if the connection is open. Otherwise the
// event is dropped and logged; nothing is queued.
func (c *Client) Send(ctx context.Context, ev Event) {
	c.mu.Lock()
	conn := c.conn
	gen := c.gen
	open := c.state == StateOpen && !c.shutdown && conn != nil
	c.mu.Unlock()

	if !open || !c.writeCurrent(ctx, gen, conn, ev) {
		c.log.Error("Realtime connection is not open, dropping message", "type", ev.Type())
	}
}

// Close stops the heartbeat and any pending reconnect, closes the transport
// and drops all subscribers. It is terminal and safe to call repeatedly.
func (c *Client) Close() {
	c.mu.Lock()
	if c.shutdown {
		c.mu.Unlock()
		return
	}
	c.shutdown = true
	c.gen++
	conn := c.detachLocked()
	if c.retry != nil {
		c.retry.Stop()
		c.retry = nil
	}
	c.state = StateClosed
	c.subs = make(map[uint64]Handler)
	c.mu.Unlock()

	if conn != nil {
		c.closeTransport(conn)
	}
	c.cancel()

	c.log.Info("Realtime client closed")
	c.emitState(StateClosed)
}

// Retry starts a fresh connection cycle after reconnect attempts ran out.
// It returns false and does nothing in any other situation.
func (c *Client) Retry() bool {
	c.mu.Lock()
	if c.shutdown || !c.exhausted {
		c.mu.Unlock()
		return false
	}
	c.exhausted = false
	c.attempts = 0
	c.mu.Unlock()

	c.log.Info("Restarting realtime connection after exhausted retries")
	c.connect()
	return true
}

// State returns the current lifecycle state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Exhausted reports whether reconnect attempts ran out.
func (c *Client) Exhausted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.exhausted
}

// Status returns a snapshot of the connection state.
func (c *Client) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Status{
		State:     c.state,
		Attempts:  c.attempts,
		Exhausted: c.exhausted,
		Closed:    c.shutdown,
	}
}

// connect begins a new attempt, discarding whatever the previous one left.
func (c *Client) connect() {
	c.mu.Lock()
	if c.shutdown {
		c.mu.Unlock()
		return
	}
	c.gen++
	gen := c.gen
	old := c.detachLocked()
	c.state = StateConnecting
	c.mu.Unlock()

	if old != nil {
		c.closeTransport(old)
	}
	c.emitState(StateConnecting)

	go c.run(gen)
}

func (c *Client) run(gen uint64) {
	token, err := c.tokens.WSToken(c.ctx)
	if err != nil {
		if c.ctx.Err() == nil {
			c.log.Error("Failed to fetch realtime token", "error", err)
		}
		c.lost(gen)
		return
	}

	conn, err := c.dialer.Dial(c.ctx, c.socketURL(token))
	if err != nil {
		if c.ctx.Err() == nil {
			c.log.Error("Failed to open realtime connection", "error", err)
		}
		c.lost(gen)
		return
	}

	c.mu.Lock()
	if c.shutdown || gen != c.gen {
		c.mu.Unlock()
		conn.Close() //nolint:errcheck
		return
	}
	c.conn = conn
	c.state = StateOpen
	c.attempts = 0
	c.scheduleHeartbeatLocked(gen)
	c.mu.Unlock()

	c.log.Info("Realtime connected")
	c.emitState(StateOpen)

	c.readLoop(gen, conn)
}

func (c *Client) readLoop(gen uint64, conn Transport) {
	for {
		frame, err := conn.Read(c.ctx)
		if err != nil {
			if !c.isCurrent(gen) {
				return
			}
			c.log.Warn("Realtime connection lost", "error", err)
			c.lost(gen)
			return
		}

		ev, err := Decode(frame)
		if err != nil {
			c.log.Warn("Dropping undecodable realtime frame", "error", err)
			continue
		}

		c.dispatch(gen, ev)
	}
}

// lost tears down attempt gen and schedules the next one.
func (c *Client) lost(gen uint64) {
	c.mu.Lock()
	if c.shutdown || gen != c.gen {
		c.mu.Unlock()
		return
	}
	c.gen++
	conn := c.detachLocked()
	c.state = StateClosed
	exhausted := c.scheduleReconnectLocked()
	c.mu.Unlock()

	if conn != nil {
		c.closeTransport(conn)
	}
	c.emitState(StateClosed)

	if exhausted && c.onExhausted != nil {
		c.onExhausted()
	}
}

// scheduleReconnectLocked arms the retry timer. It reports true when the
// attempt budget is spent and no retry was scheduled.
func (c *Client) scheduleReconnectLocked() bool {
	if c.retry != nil {
		return false
	}
	if c.attempts >= c.cfg.MaxReconnectAttempts {
		c.exhausted = true
		c.log.Error("Max reconnection attempts reached", "attempts", c.attempts)
		return true
	}

	c.attempts++
	delay := c.cfg.ReconnectInterval * time.Duration(c.attempts)
	c.log.Info("Scheduling realtime reconnect",
		"attempt", fmt.Sprintf("%d/%d", c.attempts, c.cfg.MaxReconnectAttempts),
		"delay", delay)

	c.retry = c.clock.AfterFunc(delay, func() {
		c.mu.Lock()
		c.retry = nil
		stop := c.shutdown
		c.mu.Unlock()
		if !stop {
			c.connect()
		}
	})
	return false
}

func (c *Client) scheduleHeartbeatLocked(gen uint64) {
	c.heartbeat = c.clock.AfterFunc(c.cfg.HeartbeatInterval, func() {
		c.beat(gen)
	})
}

func (c *Client) beat(gen uint64) {
	c.mu.Lock()
	if c.shutdown || gen != c.gen || c.state != StateOpen || c.conn == nil {
		c.mu.Unlock()
		return
	}
	conn := c.conn
	c.scheduleHeartbeatLocked(gen)
	c.mu.Unlock()

	if c.writeCurrent(c.ctx, gen, conn, Ping{}) {
		c.log.Debug("Sent realtime ping")
	}
}

// detachLocked stops the heartbeat and releases the transport reference.
// The caller closes the returned transport outside the lock.
func (c *Client) detachLocked() Transport {
	if c.heartbeat != nil {
		c.heartbeat.Stop()
		c.heartbeat = nil
	}
	conn := c.conn
	c.conn = nil
	return conn
}

// writeCurrent writes ev on conn only while attempt gen is still live. It
// reports false when the connection was torn down first.
func (c *Client) writeCurrent(ctx context.Context, gen uint64, conn Transport, ev Event) bool {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if !c.isCurrent(gen) {
		return false
	}
	c.write(ctx, conn, ev)
	return true
}

// closeTransport waits for any in-flight write before closing conn.
func (c *Client) closeTransport(conn Transport) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := conn.Close(); err != nil {
		c.log.Debug("Realtime transport close error", "error", err)
	}
}

func (c *Client) write(ctx context.Context, conn Transport, ev Event) {
	frame, err := Encode(ev)
	if err != nil {
		c.log.Error("Failed to encode realtime message", "type", ev.Type(), "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.WriteTimeout)
	defer cancel()

	if err := conn.Write(ctx, frame); err != nil {
		c.log.Error("Realtime write error", "type", ev.Type(), "error", err)
	}
}

func (c *Client) dispatch(gen uint64, ev Event) {
	type entry struct {
		id uint64
		h  Handler
	}

	c.mu.Lock()
	if c.shutdown || gen != c.gen {
		c.mu.Unlock()
		return
	}
	handlers := make([]entry, 0, len(c.subs))
	for id, h := range c.subs {
		handlers = append(handlers, entry{id: id, h: h})
	}
	c.mu.Unlock()

	for _, e := range handlers {
		c.deliver(e.id, e.h, ev)
	}
}

func (c *Client) deliver(id uint64, h Handler, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Error("Realtime subscriber panicked",
				"subscriber", id, "type", ev.Type(), "panic", r)
		}
	}()
	h(ev)
}

func (c *Client) isCurrent(gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.shutdown && gen == c.gen
}

func (c *Client) emitState(s State) {
	if c.onState != nil {
		c.onState(s)
	}
}

func (c *Client) socketURL(token string) string {
	u := *c.baseURL
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String()
}

// socketBase derives the socket endpoint from the HTTP base URL.
func socketBase(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parsing base url %q: %w", raw, err)
	}

	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return nil, fmt.Errorf("base url %q: unsupported scheme %q", raw, u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("base url %q: missing host", raw)
	}

	u.Path = strings.TrimSuffix(u.Path, "/") + constants.RouteWS
	u.RawQuery = ""
	u.Fragment = ""
	return u, nil
}
