// Package wwvb implements the WWVB amplitude-modulated time code: frame encoding and
// real-time slot scheduling of the reduced-carrier windows
package wwvb

import (
	"errors"
	"time"
)

// Frame geometry
const (
	FrameSlots = 60
	SlotPeriod = time.Second
)

// Reduced-carrier window lengths in microseconds
const (
	ZeroLowMicros   = 200000
	OneLowMicros    = 500000
	MarkerLowMicros = 800000
	SecondMicros    = 1000000
)

// Frame positions of the status bits
const (
	SlotLeapYear   = 55
	SlotLeapSecond = 56
	SlotDST1       = 57
	SlotDST2       = 58
)

// Custom error types
var (
	ErrInvalidTimeSample = errors.New("invalid time sample")
	ErrInvalidFrame      = errors.New("invalid frame")
	ErrCRCFailed         = errors.New("CRC check failed")
	ErrInvalidSize       = errors.New("invalid size")
	ErrNotReady          = errors.New("time source not set")
	ErrAlreadyRunning    = errors.New("scheduler already running")
)

// markerSlots are the frame reference marker and the six position markers
var markerSlots = [...]int{0, 9, 19, 29, 39, 49, 59}

// zeroSlots are always transmitted as zero, DUT1 included
var zeroSlots = [...]int{
	4, 10, 11, 14, 20, 21, 24, 34, 35,
	36, 37, 38, // DUT1 sign
	40, 41, 42, 43, // DUT1 value
	44, 54,
}

// MarkerSlots returns the fixed marker positions
func MarkerSlots() []int {
	return append([]int(nil), markerSlots[:]...)
}

// ZeroSlots returns the positions that are always zero
func ZeroSlots() []int {
	return append([]int(nil), zeroSlots[:]...)
}
