package testutil

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var start = time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)

func TestFakeClock_StartsFrozen(t *testing.T) {
	c := NewFakeClock(start)
	assert.Equal(t, start, c.Now())
	assert.Equal(t, start, c.Now())
}

func TestFakeClock_AdvanceAndSet(t *testing.T) {
	c := NewFakeClock(start)

	c.Advance(90 * time.Second)
	assert.Equal(t, start.Add(90*time.Second), c.Now())

	c.Set(start)
	assert.Equal(t, start, c.Now())
}

func TestFakeClock_TickerFiresOnPeriodBoundary(t *testing.T) {
	c := NewFakeClock(start)
	tk := c.NewTicker(5 * time.Minute)

	c.Advance(4 * time.Minute)
	select {
	case <-tk.C():
		t.Fatal("ticker fired before period elapsed")
	default:
	}

	c.Advance(time.Minute)
	select {
	case at := <-tk.C():
		assert.Equal(t, start.Add(5*time.Minute), at)
	default:
		t.Fatal("ticker did not fire at period boundary")
	}
}

func TestFakeClock_TickerDropsUnreadTicks(t *testing.T) {
	c := NewFakeClock(start)
	tk := c.NewTicker(time.Minute)

	c.Advance(10 * time.Minute)

	received := 0
	for {
		select {
		case <-tk.C():
			received++
			continue
		default:
		}
		break
	}
	assert.Equal(t, 1, received)
}

func TestFakeClock_StoppedTickerIsSilent(t *testing.T) {
	c := NewFakeClock(start)
	tk := c.NewTicker(time.Minute)
	tk.Stop()

	c.Advance(time.Hour)
	select {
	case <-tk.C():
		t.Fatal("stopped ticker fired")
	default:
	}
}

func TestFakeClock_WaitForTicker(t *testing.T) {
	c := NewFakeClock(start)
	assert.False(t, c.WaitForTicker(10*time.Millisecond))

	go c.NewTicker(time.Minute)
	require.True(t, c.WaitForTicker(time.Second))
}

func TestFakeClock_ThreadSafe(t *testing.T) {
	c := NewFakeClock(start)
	var wg sync.WaitGroup
	wg.Add(50)
	for i := 0; i < 50; i++ {
		go func() {
			defer wg.Done()
			c.Advance(time.Second)
			_ = c.Now()
		}()
	}
	wg.Wait()
	assert.Equal(t, start.Add(50*time.Second), c.Now())
}
