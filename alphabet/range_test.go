package alphabet_test

import (
	"testing"

	"github.com/polyfm/fmindex/alphabet"
	"github.com/stretchr/testify/assert"
)

// buildDNAWithN partitions {A,C,G,T} as a dense BlockComposition range and
// {N} as a sparse RegionList range, the layout genomic text with
// ambiguity calls uses (N runs stored as regions).
func buildDNAWithN(t *testing.T) (*alphabet.RangeAlphabet, []uint8) {
	t.Helper()
	base := alphabet.NewAlphabet([]string{"A", "C", "G", "T", "N"})
	ranges := []alphabet.Range{
		{Mode: alphabet.BlockComposition, Size: 4},
		{Mode: alphabet.RegionList, Size: 1},
	}
	ra, err := alphabet.NewRangeAlphabet(base, ranges, []uint8{0, 0})
	assert.NoError(t, err)

	secondary, transform, err := ra.SecondaryMapping([]int{0}, []alphabet.Mode{alphabet.BlockComposition}, "A")
	assert.NoError(t, err)
	assert.Equal(t, 5, secondary.GetSize()) // A,C,G,T,fallback
	return ra, transform
}

func TestRangeAlphabetMap(t *testing.T) {
	ra, _ := buildDNAWithN(t)

	code, r, err := ra.Map("G")
	assert.NoError(t, err)
	assert.Equal(t, uint8(2), code)
	assert.Equal(t, 0, r)

	_, r, err = ra.Map("N")
	assert.NoError(t, err)
	assert.Equal(t, 1, r)
	assert.Equal(t, alphabet.RegionList, ra.ModeOf(r))
}

func TestSecondaryMappingFallback(t *testing.T) {
	ra, transform := buildDNAWithN(t)

	nCode, _, err := ra.Map("N")
	assert.NoError(t, err)

	// N escapes the dense range and must map to the fallback slot, which
	// is the symbol after A,C,G,T in the secondary alphabet.
	assert.Equal(t, uint8(4), transform[nCode])

	aCode, _, _ := ra.Map("A")
	assert.Equal(t, uint8(0), transform[aCode])
}

func TestSymbolsTransform(t *testing.T) {
	_, transform := buildDNAWithN(t)
	// codes for A C G T N as assigned by NewAlphabet([A,C,G,T,N])
	arr := []uint8{0, 4, 2, 4, 1}
	alphabet.SymbolsTransform(transform, arr, len(arr))
	assert.Equal(t, []uint8{0, 4, 2, 4, 1}, arr) // A->0, N->4(fallback), G->2, N->4, C->1
}

func TestIsInSelectedRanges(t *testing.T) {
	ra, _ := buildDNAWithN(t)

	ok, err := ra.IsInSelectedRanges("C", []int{0}, nil)
	assert.NoError(t, err)
	assert.True(t, ok)

	ok, err = ra.IsInSelectedRanges("N", []int{0}, nil)
	assert.NoError(t, err)
	assert.False(t, ok)
}
