package verify_test

import (
	"testing"

	"github.com/polyfm/fmindex/alphabet"
	"github.com/polyfm/fmindex/bwtindex"
	"github.com/polyfm/fmindex/context"
	"github.com/polyfm/fmindex/eis"
	"github.com/polyfm/fmindex/verify"
	"github.com/stretchr/testify/assert"
)

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

// buildVerifier wires a full index, BWT layer, and context retriever
// over text the way cmd/fmxbuild and cmd/fmxverify do, then returns a
// Verifier set up with a reference independently computed by
// eis.BuildNaiveBWT - the same producer, but never shared state with the
// index under test.
func buildVerifier(t *testing.T, text []uint8, alphabetSize int) (*bwtindex.BWT, *eis.Index, *verify.Verifier) {
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

	policy, err := bwtindex.BuildLocateTable(idx, eis.NewSliceSuffixArraySource(nb.SuffixArray), []bwtindex.RangeLocate{{Policy: bwtindex.LocateDirect}})
	assert.NoError(t, err)
	bwt.SetLocateTable(policy)

	factory, err := context.NewFactory(len(text), context.AutoSize)
	assert.NoError(t, err)
	assert.NoError(t, factory.ObserveAll(eis.NewSliceSuffixArraySource(nb.SuffixArray)))
	retriever := context.NewRetriever(bwt, factory.Finalize())

	ref := verify.Reference{SuffixArray: nb.SuffixArray, Text: text}
	return bwt, idx, verify.New(bwt, ref, retriever)
}

func TestRunReportsNoErrorOnAnUntamperedIndex(t *testing.T) {
	text, alphabetSize := textOf("mississippi")
	_, _, v := buildVerifier(t, text, alphabetSize)

	err := v.Run(verify.FlagSufval | verify.FlagLFMapWalk | verify.FlagContext)
	assert.NoError(t, err)
	assert.Equal(t, verify.ExitNoError, verify.ExitCodeFor(err))
}

func TestRunDetectsATamperedReferenceSuffixArray(t *testing.T) {
	text, alphabetSize := textOf("banana")
	bwt, _, _ := buildVerifier(t, text, alphabetSize)

	// Corrupt the reference suffix array, standing in for S5's "flip a
	// byte in the constant-width region": the index and its reference no
	// longer agree, so the check must fail.
	ref := verify.Reference{SuffixArray: []int{99, 99, 99, 99, 99, 99, 99}, Text: text}
	tampered := verify.New(bwt, ref, nil)

	err := tampered.Run(verify.FlagSufval)
	assert.Error(t, err)
	var mismatch *verify.IntegrityMismatchError
	assert.ErrorAs(t, err, &mismatch)
	assert.NotEqual(t, verify.ExitNoError, verify.ExitCodeFor(err))
}

func TestRunRequiresARetrieverForFlagContext(t *testing.T) {
	text, alphabetSize := textOf("aaaa")
	bwt, _, _ := buildVerifier(t, text, alphabetSize)

	nb, err := eis.BuildNaiveBWT(text)
	assert.NoError(t, err)
	v := verify.New(bwt, verify.Reference{SuffixArray: nb.SuffixArray, Text: text}, nil)

	err = v.Run(verify.FlagContext)
	assert.Error(t, err)
	assert.Equal(t, verify.ExitContextError, verify.ExitCodeFor(err))
}
