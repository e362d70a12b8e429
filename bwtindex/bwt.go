/*
Package bwtindex implements the BWT-sequence layer: the global C[]
cumulative-count table, LF-mapping, match-bound narrowing (backward
search), and locate via sampled suffix-array values, all built on top
of an eis.Index.

A single small BWT struct owns the derived per-open state (C[] and the
locate table) so queries never recompute it; each backward-search step
narrows the row interval with one rank-pair call against the index.
*/
package bwtindex

import (
	"fmt"

	"github.com/polyfm/fmindex/eis"
)

// BWT wraps an eis.Index with the cumulative C[] table and locate
// metadata needed to answer backward-search and LF-mapping queries.
type BWT struct {
	idx *eis.Index

	// terminatorFlattenedSym is the real alphabet symbol the terminator
	// character was written as in the underlying symbol stream, since
	// the stream itself carries no dedicated terminator symbol.
	terminatorFlattenedSym uint8
	// terminatorPos is the BWT index at which the rotation starting at
	// the original text's position 0 lives.
	terminatorPos int
	// rot0Pos is the BWT index LF(terminatorPos) jumps to: the row of
	// the rotation starting at the terminator's own text position.
	rot0Pos int

	// termVirtual is the virtual alphabet index reserved for the
	// terminator, always terminatorFlattenedSym+1.
	termVirtual int
	// c is the cumulative count table over the virtual alphabet (the
	// real alphabet with one extra slot spliced in for the terminator).
	// len(c) == alphabet size + 2.
	c []int

	rangeSort []RangeLocate
	locate    *locateTable

	hintCacheSize int
}

// Wrap builds a BWT-sequence layer over idx. terminatorFlattenedSym
// names the real symbol the terminator was written as at BWT position
// terminatorPos; rot0Pos is the row LF(terminatorPos) should return.
// rangeSort gives, per alphabet range (in range-index order), the
// locate policy to apply; a nil slice means NONE for every range.
func Wrap(idx *eis.Index, terminatorFlattenedSym uint8, terminatorPos, rot0Pos int, rangeSort []RangeLocate) (*BWT, error) {
	if idx == nil {
		return nil, fmt.Errorf("bwtindex: Wrap called with a nil index")
	}
	s := idx.Params().Alphabet.GetSize()
	if int(terminatorFlattenedSym) >= s {
		return nil, fmt.Errorf("bwtindex: terminator-flattened symbol %d out of range [0, %d)", terminatorFlattenedSym, s)
	}
	if terminatorPos < 0 || terminatorPos >= idx.SeqLen() {
		return nil, fmt.Errorf("bwtindex: terminator position %d out of range [0, %d)", terminatorPos, idx.SeqLen())
	}

	b := &BWT{
		idx:                    idx,
		terminatorFlattenedSym: terminatorFlattenedSym,
		terminatorPos:          terminatorPos,
		rot0Pos:                rot0Pos,
		termVirtual:            int(terminatorFlattenedSym) + 1,
		rangeSort:              rangeSort,
		hintCacheSize:          8,
	}

	b.c = make([]int, s+2)
	hint := eis.NewHint(b.hintCacheSize)
	n := idx.SeqLen()
	counts := make([]int, s)
	code := 0
	for r := 0; r < idx.Params().Alphabet.GetNumRanges(); r++ {
		rr := idx.RangeRank(r, n, hint)
		copy(counts[code:], rr)
		code += len(rr)
	}
	// one counted occurrence of the flattened symbol is the terminator
	// itself, which gets its own slot instead.
	counts[terminatorFlattenedSym]--

	c := 0
	for v := 0; v <= s; v++ {
		b.c[v] = c
		if v == b.termVirtual {
			c++
			continue
		}
		sym := v
		if v > b.termVirtual {
			sym = v - 1
		}
		c += counts[sym]
	}
	b.c[s+1] = c

	return b, nil
}

// virtualIndex maps a real alphabet symbol onto its slot in the C[]
// table, which carries one extra slot for the terminator immediately
// after terminatorFlattenedSym.
func (b *BWT) virtualIndex(sym uint8) int {
	if int(sym) <= int(b.terminatorFlattenedSym) {
		return int(sym)
	}
	return int(sym) + 1
}

// realRank is idx.Rank with the one fake terminator occurrence of
// terminatorFlattenedSym subtracted out whenever it falls before pos.
func (b *BWT) realRank(sym uint8, pos int, hint *eis.Hint) int {
	r := b.idx.Rank(sym, pos, hint)
	if sym == b.terminatorFlattenedSym && b.terminatorPos < pos {
		r--
	}
	return r
}

// realRankPair is realRank over both ends of an interval in one call;
// when posA and posB share a bucket the underlying RankPair costs a
// single super-block fetch.
func (b *BWT) realRankPair(sym uint8, posA, posB int, hint *eis.Hint) (int, int) {
	ra, rb := b.idx.RankPair(sym, posA, posB, hint)
	if sym == b.terminatorFlattenedSym {
		if b.terminatorPos < posA {
			ra--
		}
		if b.terminatorPos < posB {
			rb--
		}
	}
	return ra, rb
}

// C returns the cumulative count boundary for virtual alphabet slot v.
func (b *BWT) C(v int) int { return b.c[v] }

// NewHint returns a fresh query hint sized for this index's bucket cache.
func (b *BWT) NewHint() *eis.Hint { return eis.NewHint(b.hintCacheSize) }

// LF maps BWT position i to the BWT position of the symbol preceding it
// in the original text (the "last to first" column mapping).
func (b *BWT) LF(i int, hint *eis.Hint) (int, error) {
	if i == b.terminatorPos {
		return b.rot0Pos, nil
	}
	if i < 0 || i >= b.idx.SeqLen() {
		return 0, fmt.Errorf("bwtindex: LF position %d out of range", i)
	}
	sym := b.idx.Access(i, hint)
	occ := b.realRank(sym, i, hint)
	return b.c[b.virtualIndex(sym)] + occ, nil
}

// SeqLen returns the indexed BWT length (including the terminator row).
func (b *BWT) SeqLen() int { return b.idx.SeqLen() }

// Index exposes the underlying enhanced indexed sequence, used by the
// context retriever to walk LF and access symbols directly.
func (b *BWT) Index() *eis.Index { return b.idx }

// TerminatorPos returns the BWT index at which the rotation starting at
// text position 0 lives. Its stored symbol is the flattened terminator,
// not a real text character - never pass it to Access expecting text
// data; see Rot0Pos.
func (b *BWT) TerminatorPos() int { return b.terminatorPos }

// Rot0Pos returns the BWT index of the rotation starting at the
// terminator's own text position. Unlike TerminatorPos, its stored
// symbol is a real text character - the last symbol of the text - which
// is what the context package's backwards walk actually starts from.
func (b *BWT) Rot0Pos() int { return b.rot0Pos }
