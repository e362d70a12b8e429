package bwtindex

import "github.com/polyfm/fmindex/eis"

// MatchBounds performs a backward search for query, consuming it from
// its last symbol to its first, and returns the half-open BWT interval
// [l, r) of rows whose rotation is prefixed by query. An empty query
// matches every row. l == r means no match.
func (b *BWT) MatchBounds(query []uint8, hint *eis.Hint) (l, r int) {
	if len(query) == 0 {
		return 0, b.SeqLen()
	}

	last := query[len(query)-1]
	l = b.c[b.virtualIndex(last)]
	r = b.c[b.virtualIndex(last)+1]

	for k := len(query) - 2; k >= 0 && l < r; k-- {
		sym := query[k]
		vi := b.virtualIndex(sym)
		occL, occR := b.realRankPair(sym, l, r, hint)
		l = b.c[vi] + occL
		r = b.c[vi] + occR
	}
	return l, r
}

// UniqueForward walks query forward one prefix at a time and reports
// the length of the shortest prefix that occurs exactly once in the
// indexed text. Each prefix gets a fresh backward search - a
// backward-search interval can only be extended on the left, so growing
// the prefix by one symbol means re-deriving its interval from scratch.
// ok is false if no prefix of query is unique.
func (b *BWT) UniqueForward(query []uint8, hint *eis.Hint) (length int, ok bool) {
	for k := 1; k <= len(query); k++ {
		l, r := b.MatchBounds(query[:k], hint)
		if r-l <= 0 {
			return 0, false
		}
		if r-l == 1 {
			return k, true
		}
	}
	return 0, false
}

// MatchStatsForward walks query forward one prefix at a time and
// reports the length of the longest prefix that occurs in the indexed
// text, together with the leftmost BWT row of that prefix's match
// interval.
func (b *BWT) MatchStatsForward(query []uint8, hint *eis.Hint) (length int, bwtPos int) {
	for k := 1; k <= len(query); k++ {
		l, r := b.MatchBounds(query[:k], hint)
		if l >= r {
			break
		}
		length = k
		bwtPos = l
	}
	return length, bwtPos
}

// MatchIterator lazily materializes the text positions of an exact
// match interval, one Locate call per Next.
type MatchIterator struct {
	bwt      *BWT
	hint     *eis.Hint
	l, r, at int
}

// ExactMatchIterator performs a backward search for query and returns
// an iterator over the text positions where it occurs, in ascending
// BWT-row order (not ascending text-position order).
func (b *BWT) ExactMatchIterator(query []uint8) *MatchIterator {
	l, r := b.MatchBounds(query, b.NewHint())
	return &MatchIterator{bwt: b, hint: b.NewHint(), l: l, r: r, at: l}
}

// Count returns the number of matches this iterator will yield.
func (it *MatchIterator) Count() int { return it.r - it.l }

// Next returns the next occurrence's text position. ok is false once
// every row in the match interval has been consumed.
func (it *MatchIterator) Next() (textPos int, ok bool, err error) {
	if it.at >= it.r {
		return 0, false, nil
	}
	textPos, err = it.bwt.Locate(it.at, it.hint)
	it.at++
	if err != nil {
		return 0, false, err
	}
	return textPos, true, nil
}
