package wwvb

import (
	"context"
	"fmt"
	"io"
	"sync/atomic"

	"go.bug.st/serial.v1"
)

const defaultTraceBuffer = 256

// Trace writes one character per transmitted slot and a newline after every frame.
// Emit never blocks: symbols that do not fit in the buffer are dropped and counted.
type Trace struct {
	out     io.Writer
	ch      chan byte
	dropped atomic.Uint64
	metrics MetricsRecorder
}

// NewTrace returns a trace writing to out once Run is called
func NewTrace(out io.Writer, size int) *Trace {
	if size <= 0 {
		size = defaultTraceBuffer
	}
	return &Trace{
		out: out,
		ch:  make(chan byte, size),
	}
}

// SetMetrics sets the recorder for dropped symbols
func (t *Trace) SetMetrics(m MetricsRecorder) {
	t.metrics = m
}

// Emit queues the symbol for v
func (t *Trace) Emit(v SlotValue) {
	t.push(v.Symbol())
}

// EndOfFrame queues a line break
func (t *Trace) EndOfFrame() {
	t.push('\n')
}

func (t *Trace) push(b byte) {
	select {
	case t.ch <- b:
	default:
		t.dropped.Add(1)
		if t.metrics != nil {
			t.metrics.RecordTraceDropped()
		}
	}
}

// Dropped returns the number of symbols lost to a full buffer
func (t *Trace) Dropped() uint64 {
	return t.dropped.Load()
}

// Run drains queued symbols into the writer until ctx is done
func (t *Trace) Run(ctx context.Context) error {
	buf := make([]byte, 0, cap(t.ch))
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case b := <-t.ch:
			buf = append(buf[:0], b)
		drain:
			for len(buf) < cap(buf) {
				select {
				case nb := <-t.ch:
					buf = append(buf, nb)
				default:
					break drain
				}
			}
			if _, err := t.out.Write(buf); err != nil {
				return fmt.Errorf("write trace: %w", err)
			}
		}
	}
}

// OpenSerialTrace opens a serial console port for the trace
func OpenSerialTrace(portName string, baudRate int) (io.WriteCloser, error) {
	mode := &serial.Mode{BaudRate: baudRate}
	port, err := serial.Open(portName, mode)
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %w", portName, err)
	}
	return port, nil
}
