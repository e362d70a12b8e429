package bitpack

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStoreGetUintRoundTrip(t *testing.T) {
	buf := make([]byte, 16)
	cases := []struct {
		offset int
		width  int
		value  uint64
	}{
		{0, 1, 1},
		{1, 3, 5},
		{4, 4, 9},
		{8, 13, 8191},
		{21, 7, 100},
		{28, 36, 1 << 35},
		{64, 64, 0xFFFFFFFFFFFFFFFF},
	}

	for _, c := range cases {
		StoreUint(buf, c.offset, c.width, c.value)
		got := GetUint(buf, c.offset, c.width)
		assert.Equal(t, c.value, got, "offset=%d width=%d", c.offset, c.width)
	}
}

func TestStoreDoesNotClobberNeighbors(t *testing.T) {
	buf := make([]byte, 4)
	// pack four 5-bit fields back to back from offset 0, two of them
	// straddling a byte boundary.
	StoreUint(buf, 0, 5, 17)
	StoreUint(buf, 5, 5, 31)
	StoreUint(buf, 10, 5, 0)
	StoreUint(buf, 15, 5, 9)

	assert.Equal(t, uint64(17), GetUint(buf, 0, 5))
	assert.Equal(t, uint64(31), GetUint(buf, 5, 5))
	assert.Equal(t, uint64(0), GetUint(buf, 10, 5))
	assert.Equal(t, uint64(9), GetUint(buf, 15, 5))
}

func TestUniformArray(t *testing.T) {
	buf := make([]byte, 8)
	arr := UniformArray{Buf: buf, BitOffset: 2, Width: 6, Count: 4}
	arr.Store([]uint64{1, 2, 3, 4})

	for i, want := range []uint64{1, 2, 3, 4} {
		assert.Equal(t, want, arr.Get(i))
	}

	arr.StoreAt(2, 63)
	assert.Equal(t, uint64(63), arr.Get(2))

	acc := make([]uint64, 4)
	StoreUniformAddArray(arr, acc)
	assert.Equal(t, []uint64{1, 2, 63, 4}, acc)
}

func TestNonUniformArray(t *testing.T) {
	buf := make([]byte, 8)
	arr := NonUniformArray{Buf: buf, BitOffset: 3, Widths: []int{2, 9, 4, 1}}
	arr.Store([]uint64{3, 300, 15, 1})

	assert.Equal(t, uint64(3), arr.Get(0))
	assert.Equal(t, uint64(300), arr.Get(1))
	assert.Equal(t, uint64(15), arr.Get(2))
	assert.Equal(t, uint64(1), arr.Get(3))
	assert.Equal(t, 16, arr.TotalBits())
}

func TestBitsForMax(t *testing.T) {
	assert.Equal(t, 1, BitsForMax(0))
	assert.Equal(t, 1, BitsForMax(1))
	assert.Equal(t, 2, BitsForMax(2))
	assert.Equal(t, 2, BitsForMax(3))
	assert.Equal(t, 3, BitsForMax(4))
	assert.Equal(t, 8, BitsForMax(255))
	assert.Equal(t, 9, BitsForMax(256))
}

func TestStoreUintPanicsOnOversizedValue(t *testing.T) {
	buf := make([]byte, 4)
	assert.Panics(t, func() {
		StoreUint(buf, 0, 3, 8)
	})
}

func TestByteLen(t *testing.T) {
	assert.Equal(t, 0, ByteLen(0))
	assert.Equal(t, 1, ByteLen(1))
	assert.Equal(t, 1, ByteLen(8))
	assert.Equal(t, 2, ByteLen(9))
}
