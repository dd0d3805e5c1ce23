package wwvb

import (
	"math"
	"sync"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"
)

// Phase is the carrier state of the scheduler
type Phase uint8

// Scheduler phases
const (
	PhaseIdle Phase = iota
	PhaseCarrierFull
	PhaseCarrierLow
)

func (p Phase) String() string {
	switch p {
	case PhaseCarrierFull:
		return "carrier_full"
	case PhaseCarrierLow:
		return "carrier_low"
	default:
		return "idle"
	}
}

// Timing overrun kinds
const (
	OverrunSecondTick    = "second_tick"
	OverrunBitTimer      = "bit_timer"
	OverrunMissedRestore = "missed_restore"
)

// overrunTolerance is how late a timer may fire before it is counted
const overrunTolerance = 20 * time.Millisecond

// ScheduleState is a snapshot of the scheduler
type ScheduleState struct {
	Slot          int
	CarrierActive bool
	Phase         Phase
}

// SchedulerStats are cumulative fault counters
type SchedulerStats struct {
	Slots          uint64
	Minutes        uint64
	StaleFrames    uint64
	Overruns       uint64
	CarrierErrors  uint64
	EmptyFrameRead uint64
}

// SymbolSink receives the transmitted symbols. Implementations must not block.
type SymbolSink interface {
	Emit(v SlotValue)
	EndOfFrame()
}

// Scheduler transmits the published frame one slot per second: every Second Tick it
// drops the carrier and arms the bit timer for the slot's value, whose expiry restores
// full power.
type Scheduler struct {
	clock   Clock
	carrier Carrier
	frames  *FrameBuffer
	sink    SymbolSink
	metrics MetricsRecorder
	logger  *log.Logger

	// one pre-configured timer per symbol, restarted on every use
	bitTimers [3]Timer

	// mu is held briefly by the timer callbacks and by State/Start/Stop, so a callback waits
	// at most for one of those short sections
	mu        sync.Mutex
	ticker    Ticker
	slot      int
	base      int
	anchor    time.Time
	lastPos   int
	ticked    bool
	phase     Phase
	lowValue  SlotValue
	lowSince  time.Time
	frame     *CommittedFrame
	zeroSeq   uint64
	minuteEnd chan struct{}

	slots          atomic.Uint64
	minutes        atomic.Uint64
	staleFrames    atomic.Uint64
	overruns       atomic.Uint64
	carrierErrors  atomic.Uint64
	emptyFrameRead atomic.Uint64
}

// NewScheduler creates an idle scheduler reading frames from frames
func NewScheduler(clock Clock, carrier Carrier, frames *FrameBuffer) *Scheduler {
	s := &Scheduler{
		clock:     clock,
		carrier:   carrier,
		frames:    frames,
		minuteEnd: make(chan struct{}, 1),
	}
	for _, v := range []SlotValue{Zero, One, Marker} {
		s.bitTimers[v] = clock.NewTimer(v.LowDuration(), s.onBitTimer)
	}
	return s
}

// SetLogger sets the logger for the scheduler
func (s *Scheduler) SetLogger(logger *log.Logger) {
	s.logger = logger
}

// SetMetrics sets the metrics recorder for the scheduler
func (s *Scheduler) SetMetrics(m MetricsRecorder) {
	s.metrics = m
}

// SetSink sets the diagnostic symbol sink
func (s *Scheduler) SetSink(sink SymbolSink) {
	s.sink = sink
}

func (s *Scheduler) log() *log.Logger {
	if s.logger == nil {
		s.logger = log.New()
	}
	return s.logger
}

// MinuteDone delivers a signal each time the slot index wraps to 0. A new frame should
// be published before the next Second Tick reads slot 0.
func (s *Scheduler) MinuteDone() <-chan struct{} {
	return s.minuteEnd
}

// Start arms the Second Tick. The first tick transmits startSlot of the currently
// published frame and anchors the slot index to its own instant.
func (s *Scheduler) Start(startSlot int) error {
	return s.StartAt(time.Time{}, startSlot)
}

// StartAt arms the Second Tick with startSlot due at first, in the clock's time. Every
// tick takes its slot from the whole periods elapsed since first, so a late or dropped
// tick skips forward instead of shifting the rest of the minute.
func (s *Scheduler) StartAt(first time.Time, startSlot int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ticker != nil {
		return ErrAlreadyRunning
	}

	s.slot = ((startSlot % FrameSlots) + FrameSlots) % FrameSlots
	s.base = s.slot
	s.anchor = first
	s.lastPos = s.slot - 1
	s.ticked = false
	s.frame = s.frames.Load()
	s.zeroSeq = 0
	if s.slot != 0 && s.frame != nil {
		// already on air for the minute in progress
		s.zeroSeq = s.frame.Seq
	}
	s.phase = PhaseCarrierFull
	if err := s.carrier.SetFull(); err != nil {
		s.countCarrierError("set_full")
	}
	s.ticker = s.clock.Every(SlotPeriod, s.onSecondTick)

	s.log().WithField("start_slot", s.slot).Info("Slot scheduler started")
	return nil
}

// Stop halts the Second Tick, cancels any pending bit timer and leaves the carrier at
// full power
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ticker == nil {
		return
	}
	s.ticker.Stop()
	s.ticker = nil
	for _, t := range s.bitTimers {
		t.Stop()
	}
	if err := s.carrier.SetFull(); err != nil {
		s.countCarrierError("set_full")
	}
	s.phase = PhaseIdle

	s.log().Info("Slot scheduler stopped")
}

// State returns a snapshot of the schedule state
func (s *Scheduler) State() ScheduleState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ScheduleState{
		Slot:          s.slot,
		CarrierActive: s.phase == PhaseCarrierFull,
		Phase:         s.phase,
	}
}

// Stats returns the cumulative counters
func (s *Scheduler) Stats() SchedulerStats {
	return SchedulerStats{
		Slots:          s.slots.Load(),
		Minutes:        s.minutes.Load(),
		StaleFrames:    s.staleFrames.Load(),
		Overruns:       s.overruns.Load(),
		CarrierErrors:  s.carrierErrors.Load(),
		EmptyFrameRead: s.emptyFrameRead.Load(),
	}
}

// onSecondTick runs in timer context: no blocking, no logging
func (s *Scheduler) onSecondTick() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ticker == nil {
		return
	}

	now := s.clock.Now()
	if s.anchor.IsZero() {
		s.anchor = now
	}

	pos := s.base + int(math.Round(float64(now.Sub(s.anchor))/float64(SlotPeriod)))
	if pos <= s.lastPos {
		// early or duplicate fire
		pos = s.lastPos + 1
	}
	due := s.anchor.Add(time.Duration(pos-s.base) * SlotPeriod)
	if now.Sub(due) > overrunTolerance {
		s.countOverrun(OverrunSecondTick)
	}
	if s.ticked {
		for skipped := pos - s.lastPos - 1; skipped > 0; skipped-- {
			s.countOverrun(OverrunSecondTick)
		}
	}

	if s.phase == PhaseCarrierLow {
		// the previous window never closed
		s.bitTimers[s.lowValue].Stop()
		s.countOverrun(OverrunMissedRestore)
	}

	crossed := minuteIndex(pos) != minuteIndex(s.lastPos)
	if crossed && s.ticked && s.lastPos%FrameSlots != FrameSlots-1 {
		// slot 59 was skipped
		s.finishMinute()
	}
	if crossed {
		s.latchFrame(true)
	} else if s.frame == nil {
		s.latchFrame(false)
	}

	slot := pos % FrameSlots
	value := Zero
	if s.frame != nil {
		value = s.frame.Frame[slot]
	} else {
		s.emptyFrameRead.Add(1)
	}

	if err := s.carrier.SetLow(); err != nil {
		s.countCarrierError("set_low")
	}
	s.lowValue = value
	s.lowSince = now
	s.bitTimers[value].Restart()
	s.phase = PhaseCarrierLow

	s.slots.Add(1)
	if s.metrics != nil {
		s.metrics.RecordSlotTransmitted(value)
	}
	if s.sink != nil {
		s.sink.Emit(value)
	}

	s.lastPos = pos
	s.ticked = true
	s.slot = (slot + 1) % FrameSlots
	if slot == FrameSlots-1 {
		s.finishMinute()
	}
}

func minuteIndex(pos int) int {
	if pos < 0 {
		return -1
	}
	return pos / FrameSlots
}

func (s *Scheduler) finishMinute() {
	s.minutes.Add(1)
	if s.metrics != nil {
		s.metrics.RecordMinuteCompleted()
	}
	if s.sink != nil {
		s.sink.EndOfFrame()
	}
	select {
	case s.minuteEnd <- struct{}{}:
	default:
	}
}

// latchFrame picks up the newest frame. At a minute boundary, a frame that already went
// out as the previous minute is sent again and counted as stale.
func (s *Scheduler) latchFrame(boundary bool) {
	next := s.frames.Load()
	if next == nil {
		return
	}
	s.frame = next
	if !boundary {
		return
	}
	if next.Seq == s.zeroSeq {
		s.staleFrames.Add(1)
		if s.metrics != nil {
			s.metrics.RecordStaleFrame()
		}
	}
	s.zeroSeq = next.Seq
}

// onBitTimer runs in timer context and closes the reduced-power window
func (s *Scheduler) onBitTimer() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase != PhaseCarrierLow {
		return
	}

	now := s.clock.Now()
	due := s.lowSince.Add(s.lowValue.LowDuration())
	if now.Before(due) {
		// stale fire of a timer that has since been restarted
		return
	}
	if now.Sub(due) > overrunTolerance {
		s.countOverrun(OverrunBitTimer)
	}

	if err := s.carrier.SetFull(); err != nil {
		s.countCarrierError("set_full")
	}
	s.phase = PhaseCarrierFull
}

func (s *Scheduler) countOverrun(kind string) {
	s.overruns.Add(1)
	if s.metrics != nil {
		s.metrics.RecordTimingOverrun(kind)
	}
}

func (s *Scheduler) countCarrierError(op string) {
	s.carrierErrors.Add(1)
	if s.metrics != nil {
		s.metrics.RecordCarrierError(op)
	}
}
