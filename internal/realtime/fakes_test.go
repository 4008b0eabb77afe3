package realtime

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const waitFor = 2 * time.Second
const tick = 2 * time.Millisecond

var errTransportClosed = errors.New("transport closed")

type fakeTimer struct {
	clock   *fakeClock
	d       time.Duration
	f       func()
	stopped bool
	fired   bool
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	active := !t.stopped && !t.fired
	t.stopped = true
	return active
}

// fakeClock records scheduled callbacks; tests fire them by hand.
type fakeClock struct {
	mu     sync.Mutex
	timers []*fakeTimer
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clock: c, d: d, f: f}
	c.timers = append(c.timers, t)
	return t
}

func (c *fakeClock) pending() []*fakeTimer {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []*fakeTimer
	for _, t := range c.timers {
		if !t.stopped && !t.fired {
			out = append(out, t)
		}
	}
	return out
}

func (c *fakeClock) pendingWith(d time.Duration) *fakeTimer {
	for _, t := range c.pending() {
		if t.d == d {
			return t
		}
	}
	return nil
}

// waitPending blocks until a live timer with duration d exists.
func (c *fakeClock) waitPending(t *testing.T, d time.Duration) *fakeTimer {
	t.Helper()
	var found *fakeTimer
	require.Eventually(t, func() bool {
		found = c.pendingWith(d)
		return found != nil
	}, waitFor, tick, "no pending timer of %s", d)
	return found
}

// fire runs a live timer's callback.
func (c *fakeClock) fire(t *fakeTimer) {
	c.mu.Lock()
	t.fired = true
	c.mu.Unlock()
	t.f()
}

// forceFire runs the callback even if the timer was stopped, as a timer
// that had already started firing would.
func (c *fakeClock) forceFire(t *fakeTimer) {
	t.f()
}

func (c *fakeClock) delays() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]time.Duration, 0, len(c.timers))
	for _, t := range c.timers {
		out = append(out, t.d)
	}
	return out
}

type fakeTransport struct {
	in        chan []byte
	closed    chan struct{}
	closeOnce sync.Once

	// gate, when set, holds every Write until it is closed. writing is
	// signalled as each gated Write starts.
	gate    chan struct{}
	writing chan struct{}

	// lateWrites counts writes attempted after Close.
	lateWrites atomic.Int32

	mu     sync.Mutex
	writes [][]byte
}

func newFakeTransport(gate chan struct{}) *fakeTransport {
	return &fakeTransport{
		in:      make(chan []byte, 16),
		closed:  make(chan struct{}),
		gate:    gate,
		writing: make(chan struct{}, 16),
	}
}

func (t *fakeTransport) Read(ctx context.Context) ([]byte, error) {
	select {
	case frame := <-t.in:
		return frame, nil
	case <-t.closed:
		return nil, errTransportClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (t *fakeTransport) Write(_ context.Context, frame []byte) error {
	if t.gate != nil {
		t.writing <- struct{}{}
		<-t.gate
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.isClosed() {
		t.lateWrites.Add(1)
		return errTransportClosed
	}
	t.writes = append(t.writes, append([]byte(nil), frame...))
	return nil
}

func (t *fakeTransport) Close() error {
	t.closeOnce.Do(func() { close(t.closed) })
	return nil
}

func (t *fakeTransport) isClosed() bool {
	select {
	case <-t.closed:
		return true
	default:
		return false
	}
}

func (t *fakeTransport) push(frame string) {
	t.in <- []byte(frame)
}

func (t *fakeTransport) written() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]string, 0, len(t.writes))
	for _, w := range t.writes {
		out = append(out, string(w))
	}
	return out
}

type fakeDialer struct {
	mu         sync.Mutex
	urls       []string
	transports []*fakeTransport
	fail       func(n int) error
	gate       chan struct{}
}

func (d *fakeDialer) Dial(_ context.Context, rawURL string) (Transport, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.urls = append(d.urls, rawURL)
	if d.fail != nil {
		if err := d.fail(len(d.urls)); err != nil {
			return nil, err
		}
	}
	t := newFakeTransport(d.gate)
	d.transports = append(d.transports, t)
	return t, nil
}

func (d *fakeDialer) dials() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.urls)
}

func (d *fakeDialer) last() *fakeTransport {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.transports) == 0 {
		return nil
	}
	return d.transports[len(d.transports)-1]
}

// countingTokens hands out "tok-N" and counts calls.
type countingTokens struct {
	calls atomic.Int32
	err   error
}

func (s *countingTokens) WSToken(context.Context) (string, error) {
	s.calls.Add(1)
	if s.err != nil {
		return "", s.err
	}
	return "tok", nil
}

// blockingTokens never returns until the context is cancelled.
var blockingTokens = TokenSourceFunc(func(ctx context.Context) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
})
