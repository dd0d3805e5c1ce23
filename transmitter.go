package wwvb

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// Transmitter defaults
const (
	DefaultSampleInterval = time.Second
	DefaultLead           = 2 * time.Second
	warnInterval          = 30 * time.Second
)

// Transmitter is the producer side: it samples the time source, encodes the frame for
// the minute that is about to be transmitted and hands it to the scheduler.
type Transmitter struct {
	StationID uint16
	// SampleInterval is how often the time source is sampled
	SampleInterval time.Duration
	// Lead is how far ahead of the current time frames are encoded, so the next minute's
	// frame is published before its slot 0 is read
	Lead time.Duration

	source    TimeSource
	clock     Clock
	buffer    *FrameBuffer
	scheduler *Scheduler
	feed      *FeedServer
	logger    *log.Logger
	metrics   MetricsRecorder
	warnLimit *rate.Limiter
	lastStats SchedulerStats
	last      *CommittedFrame
}

// NewTransmitter wires a scheduler driving carrier from frames encoded from source
func NewTransmitter(source TimeSource, clock Clock, carrier Carrier) *Transmitter {
	buffer := NewFrameBuffer()
	return &Transmitter{
		SampleInterval: DefaultSampleInterval,
		Lead:           DefaultLead,
		source:         source,
		clock:          clock,
		buffer:         buffer,
		scheduler:      NewScheduler(clock, carrier, buffer),
		warnLimit:      rate.NewLimiter(rate.Every(warnInterval), 3),
	}
}

// SetLogger sets the logger for the transmitter and its scheduler
func (t *Transmitter) SetLogger(logger *log.Logger) {
	t.logger = logger
	t.scheduler.SetLogger(logger)
}

// SetMetrics sets the metrics recorder for the transmitter and its scheduler
func (t *Transmitter) SetMetrics(m MetricsRecorder) {
	t.metrics = m
	t.scheduler.SetMetrics(m)
}

// SetTrace attaches a diagnostic symbol sink
func (t *Transmitter) SetTrace(sink SymbolSink) {
	t.scheduler.SetSink(sink)
}

// SetFeed attaches a frame feed that receives every published frame
func (t *Transmitter) SetFeed(feed *FeedServer) {
	t.feed = feed
}

// Scheduler returns the slot scheduler
func (t *Transmitter) Scheduler() *Scheduler {
	return t.scheduler
}

// Current returns the last published frame
func (t *Transmitter) Current() *CommittedFrame {
	return t.buffer.Load()
}

func (t *Transmitter) log() *log.Logger {
	if t.logger == nil {
		t.logger = log.New()
	}
	return t.logger
}

// Step samples the time source once and publishes the encoded frame if it differs from
// the last one. A rejected sample, or a clock that fell back before MinReliableYear,
// leaves the last good frame installed.
func (t *Transmitter) Step() (*CommittedFrame, error) {
	now := t.source.Now()
	return t.publishFor(now, now.Add(t.Lead))
}

// publishFor encodes the minute containing at, sampled at now
func (t *Transmitter) publishFor(now, at time.Time) (*CommittedFrame, error) {
	if !IsClockReliable(now) {
		if t.metrics != nil {
			t.metrics.RecordSampleRejected()
		}
		return t.last, ErrNotReady
	}
	sample := SampleFromTime(at)

	f, err := EncodeFrame(sample)
	if err != nil {
		if t.metrics != nil {
			t.metrics.RecordSampleRejected()
		}
		return t.last, err
	}

	if t.last != nil && t.last.Frame == f {
		return t.last, nil
	}

	cf := t.buffer.Publish(sample, f)
	t.last = cf

	if t.metrics != nil {
		t.metrics.RecordFramePublished()
	}

	t.log().WithFields(log.Fields{
		"sample": sample.String(),
		"seq":    cf.Seq,
		"frame":  f.String(),
	}).Debug("Published frame")

	if t.feed != nil {
		if err := t.feed.Publish(cf); err != nil {
			t.log().WithError(err).Error("Error publishing frame record")
		}
	}

	return cf, nil
}

// firstTick returns the first whole second at least a third of a period away, matching
// the wall ticker's alignment, both as source time and as the scheduler clock's time
func (t *Transmitter) firstTick() (now, first, due time.Time) {
	now = t.source.Now()
	clockNow := t.clock.Now()
	first = now.Add(SlotPeriod * 4 / 3).Truncate(SlotPeriod)
	return now, first, clockNow.Add(first.Sub(now))
}

// Run waits for ready, starts the scheduler and keeps frames current until ctx is done.
// The scheduler is stopped and the carrier left at full power on return.
func (t *Transmitter) Run(ctx context.Context, ready <-chan struct{}) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-ready:
	}

	// the first frame covers the minute the first tick falls in; Lead takes over from the
	// next sample on
	now, first, due := t.firstTick()
	if _, err := t.publishFor(now, first); err != nil {
		return fmt.Errorf("initial frame: %w", err)
	}

	if err := t.scheduler.StartAt(due, first.Second()); err != nil {
		return err
	}
	defer t.scheduler.Stop()

	t.log().WithFields(log.Fields{
		"station_id":      t.StationID,
		"sample_interval": t.SampleInterval.String(),
		"lead":            t.Lead.String(),
	}).Info("Transmitter running")

	wake := make(chan struct{}, 1)
	sampler := t.clock.Every(t.SampleInterval, func() {
		select {
		case wake <- struct{}{}:
		default:
		}
	})
	defer sampler.Stop()

	for {
		select {
		case <-ctx.Done():
			t.log().Info("Transmitter stopping")
			return nil
		case <-wake:
		case <-t.scheduler.MinuteDone():
			t.log().WithField("stats", t.scheduler.Stats()).Debug("Minute transmitted")
		}

		if _, err := t.Step(); err != nil {
			if t.warnLimit.Allow() {
				t.log().WithError(err).Warn("Rejected time sample, keeping last frame")
			}
		}
		t.reportFaults()
	}
}

// reportFaults logs counters that moved since the last call. Timer callbacks only count,
// logging happens here.
func (t *Transmitter) reportFaults() {
	stats := t.scheduler.Stats()
	prev := t.lastStats
	t.lastStats = stats

	if stats.StaleFrames > prev.StaleFrames && t.warnLimit.Allow() {
		t.log().WithField("stale_frames", stats.StaleFrames).Warn("Minute retransmitted from a stale frame")
	}
	if stats.Overruns > prev.Overruns && t.warnLimit.Allow() {
		t.log().WithFields(log.Fields{
			"overruns": stats.Overruns,
			"new":      stats.Overruns - prev.Overruns,
		}).Warn("Timer overrun, transmitted bits may be corrupt")
	}
	if stats.CarrierErrors > prev.CarrierErrors && t.warnLimit.Allow() {
		t.log().WithField("carrier_errors", stats.CarrierErrors).Error("Carrier level change failed")
	}
}
