package alphabet

import "fmt"

// Mode is the encoding strategy assigned to one range of a RangeAlphabet.
type Mode int

const (
	// BlockComposition ranges are dense: every occurrence of a symbol in
	// this range is folded into the composition/permutation block
	// encoding of the eis package.
	BlockComposition Mode = iota
	// RegionList ranges are sparse: every occurrence is instead recorded
	// as a (position, length, symbol) run in a rangelist.List.
	RegionList
)

func (m Mode) String() string {
	switch m {
	case BlockComposition:
		return "BlockComposition"
	case RegionList:
		return "RegionList"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// Range describes one contiguous sub-interval of symbol codes of a base
// Alphabet, all sharing one Mode. Ranges partition the whole alphabet:
// every symbol code in [0, len(base.Symbols())) belongs to exactly one Range.
type Range struct {
	Mode Mode
	Size int
}

// RangeAlphabet is a base Alphabet partitioned into disjoint ranges, each
// handled at query time by a different encoding strategy (see Mode). The
// partition is fixed once built and is what the eis on-disk header
// persists so a reader can reconstruct it without re-deriving it.
type RangeAlphabet struct {
	base       *Alphabet
	ranges     []Range
	rangeOf    []int // symbol code -> index into ranges
	offsetOf   []int // symbol code -> offset of that symbol within its range
	fallback   []uint8
}

// NewRangeAlphabet partitions base into the given ranges, in order, by
// symbol code. sum(ranges[i].Size) must equal len(base.Symbols()). fallback
// names, per range, the symbol code (in the base alphabet) used by the
// encoder for symbols that "escape" their own range's encoding - for a
// BlockComposition range, the slot the block encoding stores when one of
// its bucket's symbols is actually region-listed; for a RegionList range,
// the symbol the dense block should never need to emit at all but that
// documents its escape target, and that the on-disk header records.
func NewRangeAlphabet(base *Alphabet, ranges []Range, fallback []uint8) (*RangeAlphabet, error) {
	if len(fallback) != len(ranges) {
		return nil, fmt.Errorf("alphabet: NewRangeAlphabet got %d fallback symbols for %d ranges", len(fallback), len(ranges))
	}
	total := 0
	for _, r := range ranges {
		total += r.Size
	}
	if total != len(base.symbols) {
		return nil, fmt.Errorf("alphabet: ranges cover %d symbols, base alphabet has %d", total, len(base.symbols))
	}

	rangeOf := make([]int, total)
	offsetOf := make([]int, total)
	code := 0
	for ri, r := range ranges {
		for j := 0; j < r.Size; j++ {
			rangeOf[code] = ri
			offsetOf[code] = j
			code++
		}
	}

	return &RangeAlphabet{
		base:     base,
		ranges:   ranges,
		rangeOf:  rangeOf,
		offsetOf: offsetOf,
		fallback: fallback,
	}, nil
}

// GetSize returns the total number of symbols across all ranges.
func (ra *RangeAlphabet) GetSize() int {
	return len(ra.rangeOf)
}

// GetNumRanges returns the number of ranges in the partition.
func (ra *RangeAlphabet) GetNumRanges() int {
	return len(ra.ranges)
}

// GetRangeSize returns the number of symbols in range r.
func (ra *RangeAlphabet) GetRangeSize(r int) int {
	return ra.ranges[r].Size
}

// ModeOf returns the mode of range r.
func (ra *RangeAlphabet) ModeOf(r int) Mode {
	return ra.ranges[r].Mode
}

// Map returns the internal (base-alphabet) symbol code for sym together
// with the range it falls in.
func (ra *RangeAlphabet) Map(sym interface{}) (code uint8, rangeID int, err error) {
	c, err := ra.base.Encode(sym)
	if err != nil {
		return 0, 0, err
	}
	return c, ra.rangeOf[c], nil
}

// ReverseMap returns the original symbol string for a base-alphabet code.
func (ra *RangeAlphabet) ReverseMap(code uint8) (string, error) {
	return ra.base.Decode(int(code))
}

// IsInSelectedRanges reports whether sym's range is present in selection,
// restricted to ranges whose mode is in modesArr (a nil modesArr means
// "match any mode").
func (ra *RangeAlphabet) IsInSelectedRanges(sym interface{}, selection []int, modesArr []Mode) (bool, error) {
	_, r, err := ra.Map(sym)
	if err != nil {
		return false, err
	}
	if !containsInt(selection, r) {
		return false, nil
	}
	if modesArr == nil {
		return true, nil
	}
	return containsMode(modesArr, ra.ranges[r].Mode), nil
}

// SecondaryMapping builds a new, smaller RangeAlphabet containing only the
// ranges named in selection (filtered further by modesArr, when non-nil),
// plus one extra fallback symbol that every excluded symbol maps to. This
// is what lets the eis builder encode only the BlockComposition ranges
// inside the composition/permutation block while still giving region-list
// symbols a placeholder slot in that block.
func (ra *RangeAlphabet) SecondaryMapping(selection []int, modesArr []Mode, fallbackSymbol string) (*RangeAlphabet, []uint8, error) {
	var keptCodes []uint8
	var keptRanges []Range

	for code := 0; code < len(ra.rangeOf); code++ {
		r := ra.rangeOf[code]
		if !containsInt(selection, r) {
			continue
		}
		if modesArr != nil && !containsMode(modesArr, ra.ranges[r].Mode) {
			continue
		}
		keptCodes = append(keptCodes, uint8(code))
	}

	// Re-derive contiguous ranges over the kept codes, preserving the
	// original range boundaries and modes.
	codeToSecondary := make([]int, len(ra.rangeOf))
	for i := range codeToSecondary {
		codeToSecondary[i] = -1
	}
	symbols := make([]string, 0, len(keptCodes)+1)
	for secondaryCode, code := range keptCodes {
		codeToSecondary[code] = secondaryCode
		s, err := ra.base.Decode(int(code))
		if err != nil {
			return nil, nil, err
		}
		symbols = append(symbols, s)
	}
	symbols = append(symbols, fallbackSymbol)
	fallbackCode := uint8(len(symbols) - 1)

	for _, r := range selection {
		if modesArr != nil && !containsMode(modesArr, ra.ranges[r].Mode) {
			continue
		}
		size := 0
		for code := 0; code < len(ra.rangeOf); code++ {
			if ra.rangeOf[code] == r {
				size++
			}
		}
		keptRanges = append(keptRanges, Range{Mode: ra.ranges[r].Mode, Size: size})
	}
	keptRanges = append(keptRanges, Range{Mode: BlockComposition, Size: 1}) // fallback slot

	secondaryBase := NewAlphabet(symbols)
	fallbackPerRange := make([]uint8, len(keptRanges))
	for i := range fallbackPerRange {
		fallbackPerRange[i] = fallbackCode
	}

	secondary, err := NewRangeAlphabet(secondaryBase, keptRanges, fallbackPerRange)
	if err != nil {
		return nil, nil, err
	}

	// transformTable[code] = secondary code (fallbackCode if excluded).
	transformTable := make([]uint8, len(ra.rangeOf))
	for code := range transformTable {
		if sc := codeToSecondary[code]; sc >= 0 {
			transformTable[code] = uint8(sc)
		} else {
			transformTable[code] = fallbackCode
		}
	}

	return secondary, transformTable, nil
}

// SymbolsTransform remaps, in place, the first length entries of arr -
// codes in the base alphabet - into the secondary alphabet produced by
// SecondaryMapping, using that call's transformTable.
func SymbolsTransform(transformTable []uint8, arr []uint8, length int) {
	for i := 0; i < length; i++ {
		arr[i] = transformTable[arr[i]]
	}
}

func containsInt(xs []int, v int) bool {
	for _, x := range xs {
		if x == v {
			return true
		}
	}
	return false
}

func containsMode(xs []Mode, v Mode) bool {
	for _, x := range xs {
		if x == v {
			return true
		}
	}
	return false
}
