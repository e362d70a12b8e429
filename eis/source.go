package eis

import (
	"fmt"

	"golang.org/x/exp/slices"
)

// SymbolSource is the BWT symbol stream the builder consumes. A short
// read before the declared sequence length is always fatal, never a
// recoverable end-of-stream signal.
type SymbolSource interface {
	// Read fills dst with up to len(dst) symbols and returns how many it
	// actually produced. Returning fewer than len(dst) bytes before the
	// stream is exhausted is only legal at true end of stream.
	Read(dst []uint8) (n int, err error)
}

// SliceSource adapts an in-memory symbol slice (the base-alphabet codes
// of a BWT already computed by an external producer) into a SymbolSource,
// for callers that already hold the whole BWT in memory, such as the
// verifier and tests.
type SliceSource struct {
	symbols []uint8
	pos     int
}

// NewSliceSource wraps symbols for sequential consumption.
func NewSliceSource(symbols []uint8) *SliceSource {
	return &SliceSource{symbols: symbols}
}

func (s *SliceSource) Read(dst []uint8) (int, error) {
	n := copy(dst, s.symbols[s.pos:])
	s.pos += n
	return n, nil
}

// SuffixArrayEntry is one record of the suffix-array stream consumed in
// parallel by the context retriever factory.
type SuffixArrayEntry struct {
	// BWTPos is the BWT position this entry was produced for, in
	// increasing order across the stream.
	BWTPos int
	// TextPos is sa[BWTPos], the starting text offset of the suffix the
	// BWT rotation at BWTPos represents.
	TextPos int
}

// SuffixArraySource delivers suffix-array entries in increasing
// BWT-position order, the input to the context retriever factory.
type SuffixArraySource interface {
	Next() (SuffixArrayEntry, bool, error)
}

// SliceSuffixArraySource adapts an in-memory suffix array (sa[i] is the
// text position of the suffix at BWT position i) into a
// SuffixArraySource.
type SliceSuffixArraySource struct {
	sa  []int
	pos int
}

// NewSliceSuffixArraySource wraps sa for sequential consumption.
func NewSliceSuffixArraySource(sa []int) *SliceSuffixArraySource {
	return &SliceSuffixArraySource{sa: sa}
}

func (s *SliceSuffixArraySource) Next() (SuffixArrayEntry, bool, error) {
	if s.pos >= len(s.sa) {
		return SuffixArrayEntry{}, false, nil
	}
	e := SuffixArrayEntry{BWTPos: s.pos, TextPos: s.sa[s.pos]}
	s.pos++
	return e, true, nil
}

// NaiveBWT is a from-scratch Burrows-Wheeler transform of a text, built
// by sorting every cyclic rotation directly rather than by any
// production suffix-array algorithm. It is good enough to hand the
// builder and the context-retriever factory a real BWT symbol stream
// and suffix array for the CLI tools and tests; indexing texts too
// large for an O(n^2 log n) rotation sort needs an external producer.
type NaiveBWT struct {
	// Symbols is the BWT symbol stream, ready to feed NewSliceSource: one
	// entry per text position plus the terminator row, with the
	// terminator symbol flattened onto TerminatorFlattenedSym.
	Symbols []uint8
	// SuffixArray is, per row, the starting text offset of that row's
	// rotation (the sentinel row's own entry is len(text)).
	SuffixArray []int
	// TerminatorPos is the BWT row whose rotation starts at text
	// position 0.
	TerminatorPos int
	// Rot0Pos is the BWT row of the rotation starting at the terminator's
	// own position, the row LF jumps to from TerminatorPos.
	Rot0Pos int
	// TerminatorFlattenedSym is the real alphabet symbol the terminator
	// character was written as in Symbols.
	TerminatorFlattenedSym uint8
}

// BuildNaiveBWT computes the Burrows-Wheeler transform of text (a slice of
// base-alphabet symbol codes in [0, alphabetSize)) by sorting the n+1
// cyclic rotations of text+terminator directly. The terminator is
// flattened onto the smallest symbol code that actually occurs in text
// and ranks immediately after that symbol in the rotation order, which
// is what places its C[] slot right after the flattened symbol's in the
// BWT layer.
func BuildNaiveBWT(text []uint8) (*NaiveBWT, error) {
	n := len(text)
	if n == 0 {
		return nil, fmt.Errorf("eis: BuildNaiveBWT requires a non-empty text")
	}

	flattenSym := text[0]
	for _, s := range text {
		if s < flattenSym {
			flattenSym = s
		}
	}

	// rotation i (0 <= i <= n) starts at text position i, treating the
	// terminator as occupying position n; rotation[i][k] = text[(i+k)%n]
	// for k < n-i, then the terminator.
	order := make([]int, n+1)
	for i := range order {
		order[i] = i
	}
	slices.SortFunc(order, func(a, b int) bool {
		for k := 0; k <= n; k++ {
			ca, cb := rotChar(text, a, k, n, flattenSym), rotChar(text, b, k, n, flattenSym)
			if ca != cb {
				return ca < cb
			}
		}
		return false
	})

	symbols := make([]uint8, n+1)
	sa := make([]int, n+1)
	terminatorPos, rot0Pos := -1, -1
	for row, start := range order {
		sa[row] = start
		if start == 0 {
			terminatorPos = row
		}
		if start == n {
			rot0Pos = row
		}
		prev := (start - 1 + n + 1) % (n + 1)
		if prev == n {
			symbols[row] = flattenSym
		} else {
			symbols[row] = text[prev]
		}
	}

	return &NaiveBWT{
		Symbols:                symbols,
		SuffixArray:            sa,
		TerminatorPos:          terminatorPos,
		Rot0Pos:                rot0Pos,
		TerminatorFlattenedSym: flattenSym,
	}, nil
}

// rotChar returns rotation i's character at offset k (0 <= k <= n) on a
// doubled scale, with the terminator placed between the flattened symbol
// and its successor so it ranks immediately after the symbol it is
// flattened onto.
func rotChar(text []uint8, i, k, n int, flattenSym uint8) int {
	pos := (i + k) % (n + 1)
	if pos == n {
		return 2*int(flattenSym) + 1
	}
	return 2 * int(text[pos])
}
