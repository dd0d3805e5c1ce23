package wwvb

import (
	"sync"
	"time"
)

// SystemClock is the wall-clock Clock. Repeating ticks are aligned to multiples of their
// period (plus Offset) and self-correct for timer skew, so a one second ticker lands on
// each UTC second boundary without accumulating drift.
type SystemClock struct {
	Offset  time.Duration
	metrics MetricsRecorder
}

// NewSystemClock returns a clock aligned to wall-clock boundaries
func NewSystemClock() *SystemClock {
	return &SystemClock{}
}

// SetMetrics sets the recorder that receives tick skew updates
func (c *SystemClock) SetMetrics(m MetricsRecorder) {
	c.metrics = m
}

// Now returns the current local time
func (c *SystemClock) Now() time.Time {
	return time.Now()
}

// NewTimer returns a stopped timer backed by time.AfterFunc
func (c *SystemClock) NewTimer(d time.Duration, fn func()) Timer {
	t := time.AfterFunc(d, fn)
	t.Stop()
	return &systemTimer{t: t, d: d}
}

// Every starts a wall-aligned ticker
func (c *SystemClock) Every(d time.Duration, fn func()) Ticker {
	return newWallTicker(d, c.Offset, fn, c.metrics)
}

type systemTimer struct {
	t *time.Timer
	d time.Duration
}

func (s *systemTimer) Restart() {
	s.t.Reset(s.d)
}

func (s *systemTimer) Stop() bool {
	return s.t.Stop()
}

// based on https://github.com/golang/go/issues/19810#issuecomment-291170511
type wallTicker struct {
	align    time.Duration
	offset   time.Duration
	fn       func()
	metrics  MetricsRecorder
	stop     chan struct{}
	stopOnce sync.Once
	skew     float64
	d        time.Duration
	last     time.Time
}

func newWallTicker(align, offset time.Duration, fn func(), metrics MetricsRecorder) *wallTicker {
	w := &wallTicker{
		align:   align,
		offset:  offset,
		fn:      fn,
		metrics: metrics,
		stop:    make(chan struct{}),
		skew:    1.0,
	}
	w.start()
	return w
}

// nextDelay returns the wait until the next aligned boundary at least a third of a
// period away, scaled by the observed skew
func (w *wallTicker) nextDelay(now time.Time) time.Duration {
	d := now.Add(-w.offset).Add(w.align * 4 / 3).Truncate(w.align).Add(w.offset).Sub(now)
	return time.Duration(float64(d) / w.skew)
}

func (w *wallTicker) start() {
	now := time.Now()
	d := w.nextDelay(now)
	w.d = d
	w.last = now

	if w.metrics != nil {
		w.metrics.UpdateTickSkew(w.skew, d.Seconds())
	}

	time.AfterFunc(d, w.tick)
}

func (w *wallTicker) tick() {
	const α = 0.7
	now := time.Now()
	if now.After(w.last) {
		w.skew = w.skew*α + (float64(now.Sub(w.last))/float64(w.d))*(1-α)

		select {
		case <-w.stop:
			return
		default:
		}
		w.fn()
	}
	w.start()
}

func (w *wallTicker) Stop() {
	w.stopOnce.Do(func() { close(w.stop) })
}
