package wwvb

import (
	"fmt"
	"strings"
	"time"
)

// SlotValue is the symbol carried by one second of the frame
type SlotValue uint8

// Slot symbols
const (
	Zero SlotValue = iota
	One
	Marker
)

// LowDuration returns the reduced-carrier window for the symbol
func (v SlotValue) LowDuration() time.Duration {
	return time.Duration(v.LowMicros()) * time.Microsecond
}

// LowMicros returns the reduced-carrier window for the symbol in microseconds
func (v SlotValue) LowMicros() uint32 {
	switch v {
	case One:
		return OneLowMicros
	case Marker:
		return MarkerLowMicros
	default:
		return ZeroLowMicros
	}
}

// Symbol returns the trace character for the value
func (v SlotValue) Symbol() byte {
	switch v {
	case One:
		return '1'
	case Marker:
		return 'M'
	default:
		return '0'
	}
}

func (v SlotValue) String() string {
	return string(v.Symbol())
}

func bit(b bool) SlotValue {
	if b {
		return One
	}
	return Zero
}

// Frame is one minute of time code, one symbol per second
type Frame [FrameSlots]SlotValue

// String renders the frame as a 60 character symbol line
func (f *Frame) String() string {
	var sb strings.Builder
	sb.Grow(FrameSlots)
	for _, v := range f {
		sb.WriteByte(v.Symbol())
	}
	return sb.String()
}

// TimeSample is the UTC calendar fields a frame is built from
type TimeSample struct {
	Year      int
	DayOfYear int
	Hour      int
	Minute    int
}

// SampleFromTime converts t to UTC calendar fields
func SampleFromTime(t time.Time) TimeSample {
	t = t.UTC()
	return TimeSample{
		Year:      t.Year(),
		DayOfYear: t.YearDay(),
		Hour:      t.Hour(),
		Minute:    t.Minute(),
	}
}

// Validate rejects fields the frame layout cannot carry
func (s TimeSample) Validate() error {
	daysInYear := 365
	if IsLeapYear(s.Year) {
		daysInYear = 366
	}

	switch {
	case s.Year < 1 || s.Year > 9999:
		return fmt.Errorf("%w: year %d", ErrInvalidTimeSample, s.Year)
	case s.DayOfYear < 1 || s.DayOfYear > daysInYear:
		return fmt.Errorf("%w: day of year %d", ErrInvalidTimeSample, s.DayOfYear)
	case s.Hour < 0 || s.Hour > 23:
		return fmt.Errorf("%w: hour %d", ErrInvalidTimeSample, s.Hour)
	case s.Minute < 0 || s.Minute > 59:
		return fmt.Errorf("%w: minute %d", ErrInvalidTimeSample, s.Minute)
	}
	return nil
}

// MinuteStart returns the UTC instant the sample's minute begins
func (s TimeSample) MinuteStart() time.Time {
	return time.Date(s.Year, time.January, s.DayOfYear, s.Hour, s.Minute, 0, 0, time.UTC)
}

func (s TimeSample) String() string {
	return fmt.Sprintf("%04d-%03d %02d:%02dZ", s.Year, s.DayOfYear, s.Hour, s.Minute)
}

// bcdField maps frame slots to bit masks of a packed BCD word
type bcdField []struct {
	slot int
	mask uint16
}

var (
	minuteField = bcdField{
		{1, 0x40}, {2, 0x20}, {3, 0x10},
		{5, 0x08}, {6, 0x04}, {7, 0x02}, {8, 0x01},
	}
	hourField = bcdField{
		{12, 0x20}, {13, 0x10},
		{15, 0x08}, {16, 0x04}, {17, 0x02}, {18, 0x01},
	}
	dayField = bcdField{
		{22, 0x200}, {23, 0x100},
		{25, 0x80}, {26, 0x40}, {27, 0x20}, {28, 0x10},
		{30, 0x08}, {31, 0x04}, {32, 0x02}, {33, 0x01},
	}
	yearField = bcdField{
		{45, 0x80}, {46, 0x40}, {47, 0x20}, {48, 0x10},
		{50, 0x08}, {51, 0x04}, {52, 0x02}, {53, 0x01},
	}
)

func (b bcdField) encode(f *Frame, n int) {
	word := PackBCD(n)
	for _, p := range b {
		f[p.slot] = bit(word&p.mask != 0)
	}
}

func (b bcdField) decode(f *Frame) (int, bool) {
	var word uint16
	for _, p := range b {
		if f[p.slot] == One {
			word |= p.mask
		}
	}
	return unpackBCD(word)
}

// EncodeFrame builds the frame for sample. Out of range samples are rejected with
// ErrInvalidTimeSample.
func EncodeFrame(sample TimeSample) (Frame, error) {
	var f Frame
	if err := sample.Validate(); err != nil {
		return f, err
	}

	minuteField.encode(&f, sample.Minute)
	hourField.encode(&f, sample.Hour)
	dayField.encode(&f, sample.DayOfYear)
	yearField.encode(&f, sample.Year%100)

	for _, i := range markerSlots {
		f[i] = Marker
	}
	for _, i := range zeroSlots {
		f[i] = Zero
	}

	f[SlotLeapYear] = bit(IsLeapYear(sample.Year))
	// leap second insertion is not supported
	f[SlotLeapSecond] = Zero

	// both DST bits carry the same flag, "in effect" and "changing" are not distinguished
	dst := bit(IsDST(sample.Year, sample.DayOfYear))
	f[SlotDST1] = dst
	f[SlotDST2] = dst

	return f, nil
}

// Decoded is the content recovered from a frame
type Decoded struct {
	// Year holds only the two digits carried by the frame
	Year       int
	DayOfYear  int
	Hour       int
	Minute     int
	LeapYear   bool
	LeapSecond bool
	DST        bool
}

// DecodeFrame reads the BCD fields and status bits back out of f
func DecodeFrame(f *Frame) (Decoded, error) {
	var d Decoded

	for i, v := range f {
		if (v == Marker) != isMarkerSlot(i) {
			return d, fmt.Errorf("%w: unexpected symbol %s at slot %d", ErrInvalidFrame, v, i)
		}
	}

	fields := []struct {
		name  string
		field bcdField
		dst   *int
	}{
		{"minute", minuteField, &d.Minute},
		{"hour", hourField, &d.Hour},
		{"day of year", dayField, &d.DayOfYear},
		{"year", yearField, &d.Year},
	}
	for _, fd := range fields {
		n, ok := fd.field.decode(f)
		if !ok {
			return d, fmt.Errorf("%w: %s is not BCD", ErrInvalidFrame, fd.name)
		}
		*fd.dst = n
	}

	d.LeapYear = f[SlotLeapYear] == One
	d.LeapSecond = f[SlotLeapSecond] == One
	d.DST = f[SlotDST1] == One && f[SlotDST2] == One

	return d, nil
}

func isMarkerSlot(i int) bool {
	return i == 0 || i%10 == 9
}
