package bwtindex

import (
	"fmt"

	"github.com/polyfm/fmindex/eis"
)

// LocatePolicy selects how aggressively a single alphabet range's BWT
// positions are annotated with their originating text position, trading
// locate-table size for locate-query speed.
type LocatePolicy int

const (
	// LocateNone marks no position in the range; locate(i) must walk
	// LF until it reaches a position covered by a different policy.
	LocateNone LocatePolicy = iota
	// LocateDirect marks every position in the range.
	LocateDirect
	// LocateSampled marks every Stride-th text position that falls in
	// the range.
	LocateSampled
)

// RangeLocate is the locate configuration for one alphabet range.
type RangeLocate struct {
	Policy LocatePolicy
	Stride int // only meaningful when Policy == LocateSampled
}

// locateTable maps a subset of BWT positions directly to the text
// position of the suffix starting there.
type locateTable struct {
	marks map[int]int
}

// BuildLocateTable walks sa once and marks each BWT position whose
// alphabet range uses LocateDirect, or whose text position is a
// multiple of the range's LocateSampled stride, remembering its text
// position. The range of a BWT position is found from the symbol stored
// there, through idx.Access and the alphabet's range index.
func BuildLocateTable(idx *eis.Index, sa eis.SuffixArraySource, policy []RangeLocate) (*locateTable, error) {
	t := &locateTable{marks: make(map[int]int)}
	for {
		entry, ok, err := sa.Next()
		if err != nil {
			return nil, fmt.Errorf("bwtindex: reading suffix-array stream: %w", err)
		}
		if !ok {
			break
		}

		sym := idx.Access(entry.BWTPos, nil)
		_, rangeID, merr := idx.Params().Alphabet.Map(int(sym))
		if merr != nil {
			return nil, fmt.Errorf("bwtindex: locating BWT position %d: %w", entry.BWTPos, merr)
		}
		if rangeID >= len(policy) {
			continue
		}

		rl := policy[rangeID]
		switch rl.Policy {
		case LocateDirect:
			t.marks[entry.BWTPos] = entry.TextPos
		case LocateSampled:
			stride := rl.Stride
			if stride < 1 {
				stride = 1
			}
			if entry.TextPos%stride == 0 {
				t.marks[entry.BWTPos] = entry.TextPos
			}
		}
	}
	return t, nil
}

// SetLocateTable installs a locate table built with BuildLocateTable.
func (b *BWT) SetLocateTable(t *locateTable) { b.locate = t }

// Marks returns a copy of the table's BWT-position -> text-position
// marks. This package defines no on-disk format for them; callers that
// need to persist locate marks across a process boundary do so with
// their own format via Marks and NewLocateTableFromMarks.
func (t *locateTable) Marks() map[int]int {
	out := make(map[int]int, len(t.marks))
	for k, v := range t.marks {
		out[k] = v
	}
	return out
}

// NewLocateTableFromMarks rebuilds a locate table from marks previously
// obtained from Marks.
func NewLocateTableFromMarks(marks map[int]int) *locateTable {
	t := &locateTable{marks: make(map[int]int, len(marks))}
	for k, v := range marks {
		t.marks[k] = v
	}
	return t
}

// HasLocate reports whether BWT position i carries a direct text
// position in the locate table.
func (b *BWT) HasLocate(i int) bool {
	if b.locate == nil {
		return false
	}
	_, ok := b.locate.marks[i]
	return ok
}

// Locate returns the text position of the suffix whose rotation starts
// at BWT position i, walking LF until a marked position is reached.
func (b *BWT) Locate(i int, hint *eis.Hint) (int, error) {
	steps := 0
	cur := i
	limit := b.idx.SeqLen() + 1
	for {
		if b.locate != nil {
			if textPos, ok := b.locate.marks[cur]; ok {
				return textPos + steps, nil
			}
		}
		next, err := b.LF(cur, hint)
		if err != nil {
			return 0, err
		}
		cur = next
		steps++
		if steps > limit {
			return 0, fmt.Errorf("bwtindex: locate did not converge from position %d - no range carries a locate mark", i)
		}
	}
}
