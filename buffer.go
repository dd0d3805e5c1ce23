package wwvb

import "sync/atomic"

// CommittedFrame is a completely encoded frame handed to the scheduler. It is never
// modified after Publish.
type CommittedFrame struct {
	Frame  Frame
	Sample TimeSample
	Seq    uint64
}

// FrameBuffer hands frames from a single producer to the scheduler. The producer fills
// a fresh buffer and publishes it with one pointer swap, so the reader never observes a
// partially written frame.
type FrameBuffer struct {
	current atomic.Pointer[CommittedFrame]
	seq     uint64
}

// NewFrameBuffer returns an empty buffer
func NewFrameBuffer() *FrameBuffer {
	return &FrameBuffer{}
}

// Publish installs f as the latest frame. Only one goroutine may publish.
func (b *FrameBuffer) Publish(sample TimeSample, f Frame) *CommittedFrame {
	b.seq++
	cf := &CommittedFrame{Frame: f, Sample: sample, Seq: b.seq}
	b.current.Store(cf)
	return cf
}

// Load returns the latest published frame, or nil before the first Publish
func (b *FrameBuffer) Load() *CommittedFrame {
	return b.current.Load()
}
