package wwvb

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPackBCD(t *testing.T) {
	cases := []struct {
		in   int
		want uint16
	}{
		{0, 0x000},
		{7, 0x007},
		{10, 0x010},
		{23, 0x023},
		{59, 0x059},
		{99, 0x099},
		{100, 0x100},
		{366, 0x366},
		{999, 0x999},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, PackBCD(c.in), "PackBCD(%d)", c.in)
	}
}

func TestPackBCDDigitGroups(t *testing.T) {
	for n := 0; n <= 999; n++ {
		word := PackBCD(n)
		assert.Equal(t, n/100, int(word>>8&0xF))
		assert.Equal(t, n/10%10, int(word>>4&0xF))
		assert.Equal(t, n%10, int(word&0xF))

		back, ok := unpackBCD(word)
		assert.True(t, ok)
		assert.Equal(t, n, back)
	}
}

func TestUnpackBCDRejectsNonDigits(t *testing.T) {
	_, ok := unpackBCD(0x0A0)
	assert.False(t, ok)
	_, ok = unpackBCD(0x00F)
	assert.False(t, ok)
}
