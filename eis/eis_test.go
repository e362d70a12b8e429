package eis_test

import (
	"bytes"
	"testing"

	"github.com/polyfm/fmindex/alphabet"
	"github.com/polyfm/fmindex/eis"
	"github.com/stretchr/testify/assert"
)

// buildTestIndex wires a small DNA+N alphabet (ACGT dense, N sparse)
// and builds an index over a short synthetic BWT symbol stream.
func buildTestIndex(t *testing.T, symbols []uint8, blockSize, blocksPerBucket int) *eis.Index {
	t.Helper()

	base := alphabet.NewAlphabet([]string{"A", "C", "G", "T", "N"})
	ranges := []alphabet.Range{
		{Mode: alphabet.BlockComposition, Size: 4},
		{Mode: alphabet.RegionList, Size: 1},
	}
	ra, err := alphabet.NewRangeAlphabet(base, ranges, []uint8{0, 0})
	assert.NoError(t, err)

	params := eis.Params{
		SeqLen:          len(symbols),
		BlockSize:       blockSize,
		BlocksPerBucket: blocksPerBucket,
		Alphabet:        ra,
		BlockFallback:   0,
		RegionFallback:  0,
	}

	ix, err := eis.Build(eis.NewSliceSource(symbols), params)
	assert.NoError(t, err)
	return ix
}

func sampleSymbols() []uint8 {
	// A C G T N N A C C G T N A A C G T T N N
	return []uint8{0, 1, 2, 3, 4, 4, 0, 1, 1, 2, 3, 4, 0, 0, 1, 2, 3, 3, 4, 4}
}

func TestAccessReproducesEveryPosition(t *testing.T) {
	symbols := sampleSymbols()
	ix := buildTestIndex(t, symbols, 4, 2)

	hint := eis.NewHint(4)
	for i, want := range symbols {
		got := ix.Access(i, hint)
		assert.Equal(t, want, got, "position %d", i)
	}
}

func TestRankMatchesBruteForceCount(t *testing.T) {
	symbols := sampleSymbols()
	ix := buildTestIndex(t, symbols, 4, 2)
	hint := eis.NewHint(4)

	for sym := uint8(0); sym < 5; sym++ {
		for pos := 0; pos <= len(symbols); pos++ {
			want := 0
			for i := 0; i < pos; i++ {
				if symbols[i] == sym {
					want++
				}
			}
			got := ix.Rank(sym, pos, hint)
			assert.Equal(t, want, got, "sym=%d pos=%d", sym, pos)
		}
	}
}

func TestRankAtSeqLenEqualsTotalCount(t *testing.T) {
	symbols := sampleSymbols()
	ix := buildTestIndex(t, symbols, 4, 2)

	counts := make(map[uint8]int)
	for _, s := range symbols {
		counts[s]++
	}
	for sym, want := range counts {
		assert.Equal(t, want, ix.Rank(sym, ix.SeqLen(), nil))
	}
}

func TestGetBlockWithoutOverlayUsesFallback(t *testing.T) {
	symbols := sampleSymbols()
	ix := buildTestIndex(t, symbols, 4, 2)

	block := ix.GetBlock(1, false, nil) // text [4,8) = N,N,A,C
	// without overlay, N positions read back as the representative
	// block-fallback symbol (A, code 0) instead of their true value.
	assert.Equal(t, uint8(0), block[0])
	assert.Equal(t, uint8(0), block[1])
	assert.Equal(t, uint8(0), block[2])
	assert.Equal(t, uint8(1), block[3])

	overlaid := ix.GetBlock(1, true, nil)
	assert.Equal(t, []uint8{4, 4, 0, 1}, overlaid)
}

func TestWriteToOpenRoundTrip(t *testing.T) {
	symbols := sampleSymbols()
	ix := buildTestIndex(t, symbols, 4, 2)

	var buf bytes.Buffer
	_, err := ix.WriteTo(&buf)
	assert.NoError(t, err)

	reopened, err := eis.Open(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	assert.NoError(t, err)

	hint := eis.NewHint(4)
	for i, want := range symbols {
		assert.Equal(t, want, reopened.Access(i, hint), "position %d", i)
	}
	for sym := uint8(0); sym < 5; sym++ {
		assert.Equal(t, ix.Rank(sym, len(symbols), nil), reopened.Rank(sym, len(symbols), nil))
	}
}

func TestRangeRankCountsEveryRangeSymbol(t *testing.T) {
	symbols := sampleSymbols()
	ix := buildTestIndex(t, symbols, 4, 2)
	hint := eis.NewHint(4)

	for pos := 0; pos <= len(symbols); pos++ {
		dense := ix.RangeRank(0, pos, hint)
		sparse := ix.RangeRank(1, pos, hint)
		got := append(append([]int(nil), dense...), sparse...)
		for sym := 0; sym < 5; sym++ {
			want := 0
			for i := 0; i < pos; i++ {
				if symbols[i] == uint8(sym) {
					want++
				}
			}
			assert.Equal(t, want, got[sym], "sym=%d pos=%d", sym, pos)
		}
	}
}

func TestRankPairAgreesWithRank(t *testing.T) {
	symbols := sampleSymbols()
	ix := buildTestIndex(t, symbols, 4, 2)
	hint := eis.NewHint(4)

	a, b := ix.RankPair(1, 3, 17, hint)
	assert.Equal(t, ix.Rank(1, 3, nil), a)
	assert.Equal(t, ix.Rank(1, 17, nil), b)
}

func TestBuildRejectsShortStream(t *testing.T) {
	base := alphabet.NewAlphabet([]string{"A", "C", "G", "T"})
	ranges := []alphabet.Range{{Mode: alphabet.BlockComposition, Size: 4}}
	ra, err := alphabet.NewRangeAlphabet(base, ranges, []uint8{0})
	assert.NoError(t, err)

	params := eis.Params{SeqLen: 100, BlockSize: 4, BlocksPerBucket: 2, Alphabet: ra}
	_, err = eis.Build(eis.NewSliceSource([]uint8{0, 1, 2, 3}), params)
	assert.Error(t, err)
}
