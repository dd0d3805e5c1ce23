package wwvb

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIsClockReliable(t *testing.T) {
	assert.False(t, IsClockReliable(time.Unix(0, 0)))
	assert.False(t, IsClockReliable(time.Date(2023, time.December, 31, 23, 59, 59, 0, time.UTC)))
	assert.True(t, IsClockReliable(time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)))
}

func TestSystemTimeSourceOffset(t *testing.T) {
	src := SystemTimeSource{Offset: -time.Hour}
	now := src.Now()
	assert.Equal(t, time.UTC, now.Location())
	assert.WithinDuration(t, time.Now().Add(-time.Hour), now, time.Second)
}

func TestNopCarrier(t *testing.T) {
	var c Carrier = NopCarrier{}
	assert.NoError(t, c.SetFull())
	assert.NoError(t, c.SetLow())
}
