package wwvb

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedSource struct {
	t time.Time
}

func (s *fixedSource) Now() time.Time { return s.t }

func newTestTransmitter(t *testing.T, start time.Time) (*Transmitter, *VirtualClock, *recordingCarrier) {
	t.Helper()
	clock := NewVirtualClock(start)
	carrier := &recordingCarrier{clock: clock}
	tx := NewTransmitter(clock, clock, carrier)
	tx.SetLogger(quietLogger())
	return tx, clock, carrier
}

func TestTransmitterStepPublishesOnChange(t *testing.T) {
	start := time.Date(2024, time.March, 1, 12, 0, 30, 0, time.UTC)
	tx, clock, _ := newTestTransmitter(t, start)

	cf, err := tx.Step()
	require.NoError(t, err)
	assert.Equal(t, TimeSample{Year: 2024, DayOfYear: 61, Hour: 12, Minute: 0}, cf.Sample)
	assert.Equal(t, uint64(1), cf.Seq)

	// same minute: nothing new is published
	clock.Advance(10 * time.Second)
	again, err := tx.Step()
	require.NoError(t, err)
	assert.Same(t, cf, again)

	// the lead moves the next minute's frame in before the boundary
	clock.Advance(18 * time.Second)
	next, err := tx.Step()
	require.NoError(t, err)
	assert.Equal(t, 1, next.Sample.Minute)
	assert.Equal(t, uint64(2), next.Seq)
	assert.Same(t, next, tx.Current())
}

func TestTransmitterRejectedSampleKeepsLastFrame(t *testing.T) {
	src := &fixedSource{t: time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC)}
	tx := NewTransmitter(src, NewVirtualClock(src.t), NopCarrier{})
	tx.SetLogger(quietLogger())

	good, err := tx.Step()
	require.NoError(t, err)

	src.t = time.Date(10000, time.January, 1, 0, 0, 0, 0, time.UTC)
	kept, err := tx.Step()
	assert.ErrorIs(t, err, ErrInvalidTimeSample)
	assert.Same(t, good, kept)
	assert.Same(t, good, tx.Current())

	src.t = time.Unix(0, 0).UTC()
	kept, err = tx.Step()
	assert.ErrorIs(t, err, ErrNotReady)
	assert.Same(t, good, kept)
}

func TestTransmitterContinuousMinutes(t *testing.T) {
	start := time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC)
	tx, clock, _ := newTestTransmitter(t, start)
	rec := &symbolRecorder{}
	tx.SetTrace(rec)

	_, err := tx.Step()
	require.NoError(t, err)
	_, first, due := tx.firstTick()
	assert.Equal(t, start.Add(time.Second), due)
	require.NoError(t, tx.Scheduler().StartAt(due, first.Second()))

	// producer pass once per second, as Run does
	for i := 0; i < 3*FrameSlots; i++ {
		clock.Advance(time.Second)
		_, err := tx.Step()
		require.NoError(t, err)
	}
	tx.Scheduler().Stop()

	stats := tx.Scheduler().Stats()
	assert.Equal(t, uint64(0), stats.StaleFrames)
	assert.Equal(t, uint64(0), stats.Overruns)

	// the first tick lands on second 1; every complete minute decodes to its own time
	lines := splitLines(string(rec.symbols))
	require.Len(t, lines, 4)
	for i, minute := range []int{1, 2} {
		var f Frame
		for j := range f {
			switch lines[i+1][j] {
			case '1':
				f[j] = One
			case 'M':
				f[j] = Marker
			}
		}
		d, err := DecodeFrame(&f)
		require.NoError(t, err)
		assert.Equal(t, minute, d.Minute)
		assert.Equal(t, 12, d.Hour)
		assert.Equal(t, 61, d.DayOfYear)
	}
}

func splitLines(s string) []string {
	var out []string
	last := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			out = append(out, s[last:i])
			last = i + 1
		}
	}
	return append(out, s[last:])
}

func TestTransmitterRunWaitsForReady(t *testing.T) {
	tx, _, _ := newTestTransmitter(t, epoch)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- tx.Run(ctx, make(chan struct{})) }()

	time.Sleep(20 * time.Millisecond)
	assert.Nil(t, tx.Current())
	assert.Equal(t, PhaseIdle, tx.Scheduler().State().Phase)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestTransmitterRunStartsWhenReady(t *testing.T) {
	tx, _, _ := newTestTransmitter(t, epoch)

	ready := make(chan struct{})
	close(ready)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- tx.Run(ctx, ready) }()

	assert.Eventually(t, func() bool {
		return tx.Scheduler().State().Phase == PhaseCarrierFull
	}, time.Second, 5*time.Millisecond)
	require.NotNil(t, tx.Current())

	cancel()
	assert.NoError(t, <-done)
	assert.Equal(t, PhaseIdle, tx.Scheduler().State().Phase)
}

func TestTransmitterFirstFrameCoversFirstTick(t *testing.T) {
	start := time.Date(2024, time.March, 1, 12, 0, 58, 900_000_000, time.UTC)
	tx, clock, _ := newTestTransmitter(t, start)

	now, first, due := tx.firstTick()
	assert.Equal(t, time.Date(2024, time.March, 1, 12, 1, 0, 0, time.UTC), first)
	assert.Equal(t, first, due)

	cf, err := tx.publishFor(now, first)
	require.NoError(t, err)
	assert.Equal(t, 1, cf.Sample.Minute)
	require.NoError(t, tx.Scheduler().StartAt(due, first.Second()))

	// the virtual tick lands 100ms early and still sends slot 0
	clock.Advance(time.Second)
	assert.Equal(t, 1, tx.Scheduler().State().Slot)
	assert.Equal(t, uint64(0), tx.Scheduler().Stats().Overruns)
	assert.Equal(t, uint64(0), tx.Scheduler().Stats().StaleFrames)
}
