package wwvb

import (
	"sort"
	"sync"
	"time"
)

// Timer is a one-shot timer created with a fixed duration and callback. Restart arms it
// again from now; it is never reconfigured.
type Timer interface {
	Restart()
	Stop() bool
}

// Ticker is a repeating timer
type Ticker interface {
	Stop()
}

// Clock supplies the timers driving the scheduler
type Clock interface {
	Now() time.Time
	// NewTimer returns a stopped one-shot timer
	NewTimer(d time.Duration, fn func()) Timer
	// Every calls fn repeatedly, period d apart, until the ticker is stopped
	Every(d time.Duration, fn func()) Ticker
}

// VirtualClock is a manually advanced Clock. Callbacks run synchronously inside Advance,
// in time order, with Now reporting their scheduled instant.
type VirtualClock struct {
	mu     sync.Mutex
	now    time.Time
	seq    uint64
	events []*virtualEvent
}

type virtualEvent struct {
	at     time.Time
	seq    uint64
	fn     func()
	period time.Duration
}

// NewVirtualClock returns a clock stopped at start
func NewVirtualClock(start time.Time) *VirtualClock {
	return &VirtualClock{now: start}
}

// Now returns the virtual time
func (c *VirtualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// NewTimer returns a stopped virtual one-shot timer
func (c *VirtualClock) NewTimer(d time.Duration, fn func()) Timer {
	return &virtualTimer{clock: c, d: d, fn: fn}
}

// Every schedules fn every d, first at Now()+d
func (c *VirtualClock) Every(d time.Duration, fn func()) Ticker {
	c.mu.Lock()
	defer c.mu.Unlock()
	ev := c.scheduleLocked(c.now.Add(d), fn, d)
	return &virtualTicker{clock: c, ev: ev}
}

// Pending returns the number of armed events
func (c *VirtualClock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.events)
}

// Advance moves the clock forward by d, firing every event that falls due
func (c *VirtualClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now.Add(d)
	c.mu.Unlock()

	for {
		c.mu.Lock()
		if len(c.events) == 0 || c.events[0].at.After(target) {
			c.now = target
			c.mu.Unlock()
			return
		}
		ev := c.events[0]
		c.events = c.events[1:]
		c.now = ev.at
		if ev.period > 0 {
			// repeating events keep their cadence
			c.insertLocked(&virtualEvent{at: ev.at.Add(ev.period), seq: ev.seq, fn: ev.fn, period: ev.period})
		}
		c.mu.Unlock()

		ev.fn()
	}
}

func (c *VirtualClock) scheduleLocked(at time.Time, fn func(), period time.Duration) *virtualEvent {
	c.seq++
	ev := &virtualEvent{at: at, seq: c.seq, fn: fn, period: period}
	c.insertLocked(ev)
	return ev
}

func (c *VirtualClock) insertLocked(ev *virtualEvent) {
	i := sort.Search(len(c.events), func(i int) bool {
		e := c.events[i]
		return e.at.After(ev.at) || (e.at.Equal(ev.at) && e.seq > ev.seq)
	})
	c.events = append(c.events, nil)
	copy(c.events[i+1:], c.events[i:])
	c.events[i] = ev
}

func (c *VirtualClock) cancelLocked(seq uint64) bool {
	for i, e := range c.events {
		if e.seq == seq {
			c.events = append(c.events[:i], c.events[i+1:]...)
			return true
		}
	}
	return false
}

type virtualTimer struct {
	clock *VirtualClock
	d     time.Duration
	fn    func()
	seq   uint64
}

func (t *virtualTimer) Restart() {
	c := t.clock
	c.mu.Lock()
	defer c.mu.Unlock()
	if t.seq != 0 {
		c.cancelLocked(t.seq)
	}
	ev := c.scheduleLocked(c.now.Add(t.d), t.fn, 0)
	t.seq = ev.seq
}

func (t *virtualTimer) Stop() bool {
	c := t.clock
	c.mu.Lock()
	defer c.mu.Unlock()
	if t.seq == 0 {
		return false
	}
	stopped := c.cancelLocked(t.seq)
	t.seq = 0
	return stopped
}

type virtualTicker struct {
	clock *VirtualClock
	ev    *virtualEvent
}

func (t *virtualTicker) Stop() {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	t.clock.cancelLocked(t.ev.seq)
}
