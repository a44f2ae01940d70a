package testutil

import (
	"sync"
	"time"

	"github.com/roach88/leadflow/internal/clock"
)

// FakeClock is a manually advanced clock.Clock for tests.
//
// Time only moves when Advance or Set is called. Tickers created from the
// clock fire once per elapsed period during Advance; like time.Ticker, a tick
// is dropped when the previous one has not been received yet.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type FakeClock struct {
	mu      sync.Mutex
	now     time.Time
	tickers []*FakeTicker
	created chan struct{}
}

var _ clock.Clock = (*FakeClock)(nil)

// NewFakeClock creates a clock frozen at start.
func NewFakeClock(start time.Time) *FakeClock {
	return &FakeClock{now: start, created: make(chan struct{}, 64)}
}

// Now returns the clock's current time.
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// NewTicker creates a ticker driven by Advance.
func (c *FakeClock) NewTicker(d time.Duration) clock.Ticker {
	if d <= 0 {
		panic("testutil: non-positive ticker period")
	}
	c.mu.Lock()
	t := &FakeTicker{clock: c, period: d, next: c.now.Add(d), ch: make(chan time.Time, 1)}
	c.tickers = append(c.tickers, t)
	c.mu.Unlock()

	select {
	case c.created <- struct{}{}:
	default:
	}
	return t
}

// Advance moves the clock forward by d, firing due tickers.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.now = c.now.Add(d)
	for _, t := range c.tickers {
		t.fire(c.now)
	}
}

// Set moves the clock to t without firing tickers.
func (c *FakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// WaitForTicker blocks until a ticker has been created or timeout elapses.
// Returns false on timeout.
func (c *FakeClock) WaitForTicker(timeout time.Duration) bool {
	select {
	case <-c.created:
		return true
	case <-time.After(timeout):
		return false
	}
}

// FakeTicker is the clock.Ticker returned by FakeClock.
type FakeTicker struct {
	clock   *FakeClock
	period  time.Duration
	next    time.Time
	stopped bool
	ch      chan time.Time
}

// C returns the tick channel.
func (t *FakeTicker) C() <-chan time.Time {
	return t.ch
}

// Stop prevents further ticks.
func (t *FakeTicker) Stop() {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	t.stopped = true
}

// fire delivers ticks for every period boundary up to now.
// Called with the clock mutex held.
func (t *FakeTicker) fire(now time.Time) {
	if t.stopped {
		return
	}
	for !t.next.After(now) {
		select {
		case t.ch <- t.next:
		default:
		}
		t.next = t.next.Add(t.period)
	}
}
