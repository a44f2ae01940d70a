// Package clock abstracts wall time for the engine.
//
// Trigger windows and follow-up dates are computed from Clock.Now, and the
// scheduler paces cycles with Clock.NewTicker. Production code uses Real;
// tests inject testutil.FakeClock and advance time explicitly, so trigger
// windows can be exercised without sleeping.
package clock

import "time"

// Clock provides the current time and periodic tickers.
//
// Thread-safety: implementations must be safe for concurrent use.
type Clock interface {
	Now() time.Time
	NewTicker(d time.Duration) Ticker
}

// Ticker delivers ticks on C until stopped.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// Real is the wall clock. Now is reported in UTC.
type Real struct{}

// Now returns the current UTC time.
func (Real) Now() time.Time {
	return time.Now().UTC()
}

// NewTicker wraps time.NewTicker.
func (Real) NewTicker(d time.Duration) Ticker {
	return realTicker{t: time.NewTicker(d)}
}

type realTicker struct {
	t *time.Ticker
}

func (r realTicker) C() <-chan time.Time { return r.t.C }
func (r realTicker) Stop()               { r.t.Stop() }
