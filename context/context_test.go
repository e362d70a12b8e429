package context_test

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/polyfm/fmindex/alphabet"
	"github.com/polyfm/fmindex/bwtindex"
	"github.com/polyfm/fmindex/context"
	"github.com/polyfm/fmindex/eis"
	"github.com/stretchr/testify/assert"
)

// buildContext builds a full BWT + context retriever stack for text
// (already mapped to base-alphabet symbol codes), the way cmd/fmxbuild
// wires eis.BuildNaiveBWT, bwtindex.Wrap, and context.Factory together.
func buildContext(t *testing.T, text []uint8, alphabetSize int, mapIntervalLog2 int) (*bwtindex.BWT, *context.Retriever) {
	t.Helper()

	nb, err := eis.BuildNaiveBWT(text)
	assert.NoError(t, err)

	symbols := make([]string, alphabetSize)
	for i := range symbols {
		symbols[i] = string(rune('a' + i))
	}
	base := alphabet.NewAlphabet(symbols)
	ranges := []alphabet.Range{{Mode: alphabet.BlockComposition, Size: alphabetSize}}
	ra, err := alphabet.NewRangeAlphabet(base, ranges, []uint8{0})
	assert.NoError(t, err)

	params := eis.Params{
		SeqLen:          len(nb.Symbols),
		BlockSize:       3,
		BlocksPerBucket: 2,
		Alphabet:        ra,
		BlockFallback:   0,
	}
	idx, err := eis.Build(eis.NewSliceSource(nb.Symbols), params)
	assert.NoError(t, err)

	bwt, err := bwtindex.Wrap(idx, nb.TerminatorFlattenedSym, nb.TerminatorPos, nb.Rot0Pos, nil)
	assert.NoError(t, err)

	factory, err := context.NewFactory(len(text), mapIntervalLog2)
	assert.NoError(t, err)
	assert.NoError(t, factory.ObserveAll(eis.NewSliceSuffixArraySource(nb.SuffixArray)))
	table := factory.Finalize()

	return bwt, context.NewRetriever(bwt, table)
}

// textOf maps s's distinct bytes to sequential codes 0..k-1 in first-seen
// order and returns the coded text alongside k.
func textOf(s string) ([]uint8, int) {
	code := make(map[byte]uint8)
	out := make([]uint8, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if _, ok := code[c]; !ok {
			code[c] = uint8(len(code))
		}
		out[i] = code[c]
	}
	return out, len(code)
}

func TestAccessSubsequenceReproducesEveryRange(t *testing.T) {
	text, alphabetSize := textOf("mississippi")
	_, rt := buildContext(t, text, alphabetSize, 1)

	n := len(text)
	for start := 0; start < n; start++ {
		for length := 1; start+length <= n; length++ {
			out := make([]uint8, length)
			err := rt.AccessSubsequence(start, length, out, nil)
			assert.NoError(t, err)
			assert.Equal(t, text[start:start+length], out, "start=%d length=%d", start, length)
		}
	}
}

func TestAccessSubsequenceWholeTextMatchesAutoSize(t *testing.T) {
	text, alphabetSize := textOf("banana")
	_, rt := buildContext(t, text, alphabetSize, context.AutoSize)

	out := make([]uint8, len(text))
	assert.NoError(t, rt.AccessSubsequence(0, len(text), out, nil))
	assert.Equal(t, text, out)
}

func TestSaveLoadDiscoversStride(t *testing.T) {
	text, alphabetSize := textOf("banana")
	bwt, rt := buildContext(t, text, alphabetSize, context.AutoSize)

	base := filepath.Join(t.TempDir(), "idx")
	assert.NoError(t, rt.Table().Save(base))

	// the loader doesn't know which stride the builder chose; it probes
	// stride files in order until one opens and validates.
	table, err := context.Load(base, len(text), 16)
	assert.NoError(t, err)
	assert.Equal(t, rt.Table().MapIntervalLog2(), table.MapIntervalLog2())

	rt2 := context.NewRetriever(bwt, table)
	out := make([]uint8, len(text))
	assert.NoError(t, rt2.AccessSubsequence(0, len(text), out, nil))
	assert.Equal(t, text, out)
}

func TestTableWriteToReadFromRoundTrip(t *testing.T) {
	text, alphabetSize := textOf("aaaa")
	_, rt := buildContext(t, text, alphabetSize, 1)

	var buf bytes.Buffer
	_, err := rt.Table().WriteTo(&buf)
	assert.NoError(t, err)

	reopened, err := context.ReadFrom(&buf, len(text))
	assert.NoError(t, err)
	assert.Equal(t, rt.Table().MapIntervalLog2(), reopened.MapIntervalLog2())
	assert.Equal(t, rt.Table().Stride(), reopened.Stride())
}
