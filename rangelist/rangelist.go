/*
Package rangelist implements the sequence range list: an append-only,
then read-only, ordered list of (start, length, symbol) runs covering
every occurrence of every RegionList-mode alphabet range symbol in the
indexed text.

It is the sparse counterpart to the eis package's dense block encoding:
instead of folding a symbol into every block's composition, a symbol
whose range is RegionList only ever shows up here, as a run. Queries
binary search the sorted runs for the one covering a given offset; an
optional partial-sum sidecar checkpoints cumulative per-symbol counts
every few runs. The checkpoints are computed and persisted, but the
counting queries do not consult them: they scan the runs of the queried
region.
*/
package rangelist

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"golang.org/x/exp/slices"
)

// Run is one maximal occurrence of a single region-list symbol.
type Run struct {
	Start  int
	Length int
	Symbol uint8
}

func (r Run) end() int { return r.Start + r.Length }

// Hint is a caller-owned cursor cached from the previous query, letting
// repeated nearby queries skip the binary search. Never share a Hint
// across concurrent queries; concurrent callers allocate one each.
type Hint struct {
	cursor int
}

// List is an append-only range list during build, then an immutable,
// queryable structure after Compact.
type List struct {
	runs       []Run
	numSymbols int
	regionSums bool
	sumStride  int
	// sums[i] is the cumulative per-symbol occurrence count over all
	// region-list symbols, as of the start of run i*sumStride. Only
	// populated when regionSums is true.
	sums       [][]int
	compacted  bool
}

// New creates an empty range list. numSymbols sizes the partial-sum
// vectors when regionSums is enabled: one slot per symbol code in
// [0, numSymbols); runs whose symbol code is numSymbols or larger are
// left out of the sums. sumStride is K, the spacing between recorded
// partial-sum checkpoints.
func New(numSymbols int, regionSums bool, sumStride int) *List {
	if sumStride < 1 {
		sumStride = 1
	}
	return &List{numSymbols: numSymbols, regionSums: regionSums, sumStride: sumStride}
}

// Append records that symbol occurs across [start, start+length). If the
// new run is contiguous with and shares the symbol of the last appended
// run, it is merged into it instead of creating a new entry.
func (l *List) Append(start, length int, symbol uint8) {
	if l.compacted {
		panic("rangelist: Append called on a compacted (read-only) list")
	}
	if length <= 0 {
		return
	}
	if n := len(l.runs); n > 0 {
		last := &l.runs[n-1]
		if last.Symbol == symbol && last.end() == start {
			last.Length += length
			return
		}
	}
	l.runs = append(l.runs, Run{Start: start, Length: length, Symbol: symbol})
}

// AppendNewRange always creates a fresh run, even if it could merge with
// the previous one. Compact still coalesces adjacent runs of the same
// symbol, whichever call appended them.
func (l *List) AppendNewRange(start, length int, symbol uint8) {
	if l.compacted {
		panic("rangelist: AppendNewRange called on a compacted (read-only) list")
	}
	if length <= 0 {
		return
	}
	l.runs = append(l.runs, Run{Start: start, Length: length, Symbol: symbol})
}

// Compact sorts runs by start position, coalesces adjacent
// identical-symbol runs, appends the sentinel run so that a search for
// "the next run covering position >= x" always finds one, and (if
// RegionSums was requested) computes the partial-sum checkpoints. After
// Compact the list is immutable.
func (l *List) Compact() {
	if l.compacted {
		return
	}
	slices.SortFunc(l.runs, func(a, b Run) bool {
		return a.Start < b.Start
	})

	merged := l.runs[:0]
	for _, r := range l.runs {
		if n := len(merged); n > 0 && merged[n-1].Symbol == r.Symbol && merged[n-1].end() == r.Start {
			merged[n-1].Length += r.Length
		} else {
			merged = append(merged, r)
		}
	}
	l.runs = merged

	// sentinel: a zero-length run far beyond any real text position.
	l.runs = append(l.runs, Run{Start: math.MaxInt64 / 2, Length: 0, Symbol: 0})

	if l.regionSums {
		l.sums = make([][]int, (len(l.runs)+l.sumStride-1)/l.sumStride)
		running := make([]int, l.numSymbols)
		for i, r := range l.runs {
			if i%l.sumStride == 0 {
				snapshot := append([]int(nil), running...)
				l.sums[i/l.sumStride] = snapshot
			}
			if int(r.Symbol) < l.numSymbols {
				running[r.Symbol] += r.Length
			}
		}
	}

	l.compacted = true
}

// findRunIndex returns the index i such that runs[i].Start <= pos <
// runs[i+1].Start (the run pos falls within, or the run immediately
// before pos if pos falls in a gap). hint, if non-nil, is checked first
// and updated with the result.
func (l *List) findRunIndex(pos int, hint *Hint) int {
	if hint != nil {
		c := hint.cursor
		if c >= 0 && c < len(l.runs)-1 && l.runs[c].Start <= pos && pos < l.runs[c+1].Start {
			return c
		}
	}

	// binary search for the last run with Start <= pos.
	lo, hi := 0, len(l.runs)-1
	for lo < hi {
		mid := (lo + hi + 1) / 2
		if l.runs[mid].Start <= pos {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	if hint != nil {
		hint.cursor = lo
	}
	return lo
}

// ApplyRangesToSubstring overlays every run intersecting
// [startPos, startPos+len) onto block (block[0] corresponds to
// startPos), converting the stored region-alphabet symbol into the base
// alphabet by adding rangeBase.
func (l *List) ApplyRangesToSubstring(block []uint8, startPos, length int, rangeBase uint8, hint *Hint) {
	if !l.compacted {
		panic("rangelist: ApplyRangesToSubstring called before Compact")
	}
	if length == 0 {
		return
	}
	idx := l.findRunIndex(startPos, hint)
	endPos := startPos + length
	for idx < len(l.runs) && l.runs[idx].Start < endPos {
		r := l.runs[idx]
		if r.end() > startPos {
			lo := max(r.Start, startPos)
			hi := min(r.end(), endPos)
			for p := lo; p < hi; p++ {
				block[p-startPos] = rangeBase + r.Symbol
			}
		}
		idx++
	}
}

// SymbolCountInRegion returns the number of occurrences of sym in
// [base, pos).
func (l *List) SymbolCountInRegion(base, pos int, sym uint8, hint *Hint) int {
	if !l.compacted {
		panic("rangelist: SymbolCountInRegion called before Compact")
	}
	if pos <= base {
		return 0
	}
	count := 0
	idx := l.findRunIndex(base, hint)
	for idx < len(l.runs) && l.runs[idx].Start < pos {
		r := l.runs[idx]
		if r.Symbol == sym {
			lo := max(r.Start, base)
			hi := min(r.end(), pos)
			if hi > lo {
				count += hi - lo
			}
		}
		idx++
	}
	return count
}

// AllSymbolsCountInRegion returns the number of occurrences of any
// region-list symbol in [base, pos).
func (l *List) AllSymbolsCountInRegion(base, pos int, hint *Hint) int {
	if !l.compacted {
		panic("rangelist: AllSymbolsCountInRegion called before Compact")
	}
	if pos <= base {
		return 0
	}
	count := 0
	idx := l.findRunIndex(base, hint)
	for idx < len(l.runs) && l.runs[idx].Start < pos {
		r := l.runs[idx]
		lo := max(r.Start, base)
		hi := min(r.end(), pos)
		if hi > lo {
			count += hi - lo
		}
		idx++
	}
	return count
}

// WriteTo serializes the (compacted) list: a count prefix, a feature
// flags byte, the runs themselves, and - if RegionSums is set - the
// partial-sum checkpoints.
func (l *List) WriteTo(w io.Writer) (int64, error) {
	if !l.compacted {
		return 0, fmt.Errorf("rangelist: WriteTo called before Compact")
	}
	var written int64
	hdr := make([]byte, 13)
	binary.LittleEndian.PutUint64(hdr[0:8], uint64(len(l.runs)))
	if l.regionSums {
		hdr[8] = 1
	}
	binary.LittleEndian.PutUint32(hdr[9:13], uint32(l.sumStride))
	n, err := w.Write(hdr)
	written += int64(n)
	if err != nil {
		return written, err
	}

	runBuf := make([]byte, 17)
	for _, r := range l.runs {
		binary.LittleEndian.PutUint64(runBuf[0:8], uint64(r.Start))
		binary.LittleEndian.PutUint64(runBuf[8:16], uint64(r.Length))
		runBuf[16] = r.Symbol
		n, err := w.Write(runBuf)
		written += int64(n)
		if err != nil {
			return written, err
		}
	}

	if l.regionSums {
		sumBuf := make([]byte, 8)
		for _, snap := range l.sums {
			for _, v := range snap {
				binary.LittleEndian.PutUint64(sumBuf, uint64(v))
				n, err := w.Write(sumBuf)
				written += int64(n)
				if err != nil {
					return written, err
				}
			}
		}
	}

	return written, nil
}

// ReadFrom deserializes a list previously written by WriteTo. numSymbols
// must match the value the list was built with.
func ReadFrom(r io.Reader, numSymbols int) (*List, error) {
	hdr := make([]byte, 13)
	if _, err := io.ReadFull(r, hdr); err != nil {
		return nil, fmt.Errorf("rangelist: short read of header: %w", err)
	}
	count := binary.LittleEndian.Uint64(hdr[0:8])
	regionSums := hdr[8] != 0
	sumStride := int(binary.LittleEndian.Uint32(hdr[9:13]))

	l := New(numSymbols, regionSums, sumStride)
	l.runs = make([]Run, count)
	runBuf := make([]byte, 17)
	for i := range l.runs {
		if _, err := io.ReadFull(r, runBuf); err != nil {
			return nil, fmt.Errorf("rangelist: short read of run %d: %w", i, err)
		}
		l.runs[i] = Run{
			Start:  int(binary.LittleEndian.Uint64(runBuf[0:8])),
			Length: int(binary.LittleEndian.Uint64(runBuf[8:16])),
			Symbol: runBuf[16],
		}
	}

	if regionSums {
		numCheckpoints := (len(l.runs) + sumStride - 1) / sumStride
		l.sums = make([][]int, numCheckpoints)
		sumBuf := make([]byte, 8)
		for i := range l.sums {
			snap := make([]int, numSymbols)
			for s := range snap {
				if _, err := io.ReadFull(r, sumBuf); err != nil {
					return nil, fmt.Errorf("rangelist: short read of partial sum: %w", err)
				}
				snap[s] = int(binary.LittleEndian.Uint64(sumBuf))
			}
			l.sums[i] = snap
		}
	}

	l.compacted = true
	return l, nil
}

// Runs returns the underlying runs; after Compact the last one is the
// trailing sentinel.
func (l *List) Runs() []Run {
	return l.runs
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
