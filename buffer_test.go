package wwvb

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrameBufferPublish(t *testing.T) {
	b := NewFrameBuffer()
	assert.Nil(t, b.Load())

	s := SampleFromTime(epoch)
	f, err := EncodeFrame(s)
	require.NoError(t, err)

	first := b.Publish(s, f)
	assert.Equal(t, uint64(1), first.Seq)
	assert.Same(t, first, b.Load())

	second := b.Publish(s, f)
	assert.Equal(t, uint64(2), second.Seq)
	assert.Same(t, second, b.Load())
	// earlier handoffs are untouched
	assert.Equal(t, uint64(1), first.Seq)
}

func TestFrameBufferReadersSeeWholeFrames(t *testing.T) {
	b := NewFrameBuffer()
	var frames []Frame
	var samples []TimeSample
	for i := 0; i < 10; i++ {
		s := SampleFromTime(epoch.Add(time.Duration(i) * time.Minute))
		f, err := EncodeFrame(s)
		require.NoError(t, err)
		samples = append(samples, s)
		frames = append(frames, f)
	}
	b.Publish(samples[0], frames[0])

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			b.Publish(samples[i%10], frames[i%10])
		}
	}()

	for i := 0; i < 1000; i++ {
		cf := b.Load()
		want, err := EncodeFrame(cf.Sample)
		require.NoError(t, err)
		require.Equal(t, want, cf.Frame)
	}
	wg.Wait()
}
