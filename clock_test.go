package wwvb

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestVirtualClockOrdering(t *testing.T) {
	c := NewVirtualClock(epoch)
	var order []string

	late := c.NewTimer(800*time.Millisecond, func() { order = append(order, "late") })
	early := c.NewTimer(200*time.Millisecond, func() { order = append(order, "early") })
	late.Restart()
	early.Restart()

	c.Advance(time.Second)
	assert.Equal(t, []string{"early", "late"}, order)
	assert.Equal(t, epoch.Add(time.Second), c.Now())
}

func TestVirtualClockTimerRestartAndStop(t *testing.T) {
	c := NewVirtualClock(epoch)
	var fired []time.Time
	tm := c.NewTimer(500*time.Millisecond, func() { fired = append(fired, c.Now()) })

	assert.False(t, tm.Stop())

	tm.Restart()
	c.Advance(300 * time.Millisecond)
	// restarting pushes the deadline out again
	tm.Restart()
	c.Advance(300 * time.Millisecond)
	assert.Empty(t, fired)
	c.Advance(200 * time.Millisecond)
	assert.Equal(t, []time.Time{epoch.Add(800 * time.Millisecond)}, fired)

	tm.Restart()
	assert.True(t, tm.Stop())
	c.Advance(time.Second)
	assert.Len(t, fired, 1)
}

func TestVirtualClockTickerDoesNotDrift(t *testing.T) {
	c := NewVirtualClock(epoch)
	var ticks []time.Time
	tk := c.Every(time.Second, func() {
		ticks = append(ticks, c.Now())
	})

	for i := 0; i < 7; i++ {
		c.Advance(700 * time.Millisecond)
	}
	tk.Stop()
	c.Advance(10 * time.Second)

	assert.Len(t, ticks, 4)
	for i, at := range ticks {
		assert.Equal(t, epoch.Add(time.Duration(i+1)*time.Second), at)
	}
	assert.Equal(t, 0, c.Pending())
}

func TestVirtualClockCallbackCanSchedule(t *testing.T) {
	c := NewVirtualClock(epoch)
	var fired time.Time
	inner := c.NewTimer(100*time.Millisecond, func() { fired = c.Now() })
	outer := c.NewTimer(100*time.Millisecond, inner.Restart)
	outer.Restart()

	c.Advance(time.Second)
	assert.Equal(t, epoch.Add(200*time.Millisecond), fired)
}

func TestWallTickerDelayAligned(t *testing.T) {
	w := &wallTicker{align: time.Second, skew: 1.0}

	now := time.Date(2024, 1, 1, 0, 0, 10, 500_000_000, time.UTC)
	assert.Equal(t, 500*time.Millisecond, w.nextDelay(now))

	// too close to the boundary: skip to the one after
	now = time.Date(2024, 1, 1, 0, 0, 10, 900_000_000, time.UTC)
	assert.Equal(t, 1100*time.Millisecond, w.nextDelay(now))

	w.offset = 100 * time.Millisecond
	now = time.Date(2024, 1, 1, 0, 0, 10, 0, time.UTC)
	assert.Equal(t, 1100*time.Millisecond, w.nextDelay(now))
}
