/*
Package compperm implements the composition/permutation table that lets
the eis block encoding name any length-b block over a dense alphabet of
size a with two small integers: which multiset of symbols it contains
(its composition) and which arrangement of that multiset it is (its
permutation, ranked lexicographically among the arrangements of the same
composition).

The table is purely a function of (b, a) and is deterministic: builder
and reader recompute it independently from those two numbers stored in
the eis header, rather than shipping it on disk, so Init must be called
identically on both sides or ranks silently disagree.
*/
package compperm

import (
	"fmt"

	"github.com/polyfm/fmindex/bitpack"
)

// DefaultBudget bounds the number of (composition x symbol) table cells
// Init is willing to allocate. Callers needing a different budget (e.g.
// a CLI flag) should use InitWithBudget.
const DefaultBudget = 1 << 24

// Table is the precomputed composition/permutation table for one (b, a)
// pair. It is immutable once built.
type Table struct {
	b, a int

	// compositions[i] is the count vector of composition i, length a,
	// summing to b. Indexed in ascending lexicographic order.
	compositions [][]int
	// index maps a composition's count vector (as a string key) back to
	// its index, for blockToIndexPair.
	index map[string]int
	// numPerms[i] is the number of distinct arrangements of composition i.
	numPerms []uint64
	// permWidth[i] is the bit width needed to name one permutation of
	// composition i: the width of numPerms[i]-1, and at least 1, so a
	// composition with a single permutation still gets 1 bit.
	permWidth []int

	maxPermWidth   int
	compIndexWidth int
	factorial      []uint64
}

// Init builds the table for block length b over a dense alphabet of size
// a, refusing (returning an error, never panicking) if the table would
// need more than DefaultBudget composition*symbol cells - callers must
// treat that as a recoverable configuration error, not a crash.
func Init(b, a int) (*Table, error) {
	return InitWithBudget(b, a, DefaultBudget)
}

// InitWithBudget is Init with a caller-chosen cell budget.
func InitWithBudget(b, a int, budget int) (*Table, error) {
	if b < 1 {
		return nil, fmt.Errorf("compperm: block size b=%d must be >= 1", b)
	}
	if a < 1 {
		return nil, fmt.Errorf("compperm: alphabet size a=%d must be >= 1", a)
	}

	numCompositions := binomial(b+a-1, a-1)
	if numCompositions <= 0 || numCompositions*a > budget {
		return nil, fmt.Errorf("compperm: table for b=%d a=%d needs %d cells, exceeds budget %d", b, a, numCompositions*a, budget)
	}

	t := &Table{b: b, a: a}
	t.factorial = buildFactorials(b)
	t.compositions = generateCompositions(b, a)
	if len(t.compositions) != numCompositions {
		return nil, fmt.Errorf("compperm: internal error, generated %d compositions, expected %d", len(t.compositions), numCompositions)
	}

	t.index = make(map[string]int, len(t.compositions))
	t.numPerms = make([]uint64, len(t.compositions))
	t.permWidth = make([]int, len(t.compositions))
	for i, c := range t.compositions {
		t.index[key(c)] = i
		np := t.multinomial(c)
		t.numPerms[i] = np
		w := bitpack.BitsForMax(np - 1)
		t.permWidth[i] = w
		if w > t.maxPermWidth {
			t.maxPermWidth = w
		}
	}
	t.compIndexWidth = bitpack.BitsForMax(uint64(len(t.compositions) - 1))

	return t, nil
}

// B returns the configured block length.
func (t *Table) B() int { return t.b }

// A returns the configured dense alphabet size.
func (t *Table) A() int { return t.a }

// NumCompositions returns the number of distinct compositions, i.e. the
// table's addressable composition-index range.
func (t *Table) NumCompositions() int { return len(t.compositions) }

// CompIndexWidth returns C, the bit width of a composition index.
func (t *Table) CompIndexWidth() int { return t.compIndexWidth }

// MaxPermWidth returns P, the widest permutation index in the table.
func (t *Table) MaxPermWidth() int { return t.maxPermWidth }

// PermWidth returns the bit width needed for a permutation index of
// composition compIdx.
func (t *Table) PermWidth(compIdx int) int { return t.permWidth[compIdx] }

// NumPerms returns the number of permutations composition compIdx admits.
func (t *Table) NumPerms(compIdx int) uint64 { return t.numPerms[compIdx] }

// SymCountFromComposition returns the number of occurrences of sym within
// composition compIdx.
func (t *Table) SymCountFromComposition(compIdx int, sym int) int {
	return t.compositions[compIdx][sym]
}

// AddSymCountsFromComposition adds every symbol's count in composition
// compIdx into the caller-owned accumulator vector (len(counts) == A()).
func (t *Table) AddSymCountsFromComposition(compIdx int, counts []int) {
	c := t.compositions[compIdx]
	for s := range c {
		counts[s] += c[s]
	}
}

// BlockToIndexPair canonicalizes a length-b block over the dense
// alphabet into its (composition index, permutation index) pair, along
// with that composition's permutation bit width.
func (t *Table) BlockToIndexPair(block []uint8) (compIdx int, permIdx uint64, permWidth int, err error) {
	if len(block) != t.b {
		return 0, 0, 0, fmt.Errorf("compperm: block has length %d, want %d", len(block), t.b)
	}

	counts := make([]int, t.a)
	for _, s := range block {
		if int(s) >= t.a {
			return 0, 0, 0, fmt.Errorf("compperm: symbol %d out of range [0, %d)", s, t.a)
		}
		counts[s]++
	}

	compIdx, ok := t.index[key(counts)]
	if !ok {
		return 0, 0, 0, fmt.Errorf("compperm: internal error, composition %v not found", counts)
	}

	remaining := append([]int(nil), counts...)
	var rank uint64
	for i := 0; i < t.b; i++ {
		sym := int(block[i])
		for s := 0; s < sym; s++ {
			if remaining[s] == 0 {
				continue
			}
			remaining[s]--
			rank += t.multinomial(remaining)
			remaining[s]++
		}
		remaining[sym]--
	}

	return compIdx, rank, t.permWidth[compIdx], nil
}

// IndexPairToBlock writes the first sublen symbols of the canonical
// unranking of (compIdx, permIdx) into block, which must have length >=
// sublen. sublen may be less than B() to decode a short final block.
func (t *Table) IndexPairToBlock(compIdx int, permIdx uint64, block []uint8, sublen int) error {
	if compIdx < 0 || compIdx >= len(t.compositions) {
		return fmt.Errorf("compperm: composition index %d out of range", compIdx)
	}
	if permIdx >= t.numPerms[compIdx] {
		return fmt.Errorf("compperm: permutation index %d out of range for composition %d (admits %d)", permIdx, compIdx, t.numPerms[compIdx])
	}
	if sublen > t.b || sublen > len(block) {
		return fmt.Errorf("compperm: sublen %d exceeds block size %d or buffer length %d", sublen, t.b, len(block))
	}

	remaining := append([]int(nil), t.compositions[compIdx]...)
	rank := permIdx
	for i := 0; i < t.b; i++ {
		chosen := -1
		for s := 0; s < t.a; s++ {
			if remaining[s] == 0 {
				continue
			}
			remaining[s]--
			cnt := t.multinomial(remaining)
			if rank < cnt {
				chosen = s
				break
			}
			rank -= cnt
			remaining[s]++
		}
		if chosen == -1 {
			return fmt.Errorf("compperm: internal error unranking composition %d permutation %d", compIdx, permIdx)
		}
		if i < sublen {
			block[i] = uint8(chosen)
		}
	}
	return nil
}

// multinomial returns b!/(c0! * c1! * ... ) where b = sum(counts).
func (t *Table) multinomial(counts []int) uint64 {
	n := 0
	for _, c := range counts {
		n += c
	}
	result := t.factorial[n]
	for _, c := range counts {
		result /= t.factorial[c]
	}
	return result
}

func key(counts []int) string {
	buf := make([]byte, len(counts)*4)
	for i, c := range counts {
		buf[i*4] = byte(c)
		buf[i*4+1] = byte(c >> 8)
		buf[i*4+2] = byte(c >> 16)
		buf[i*4+3] = byte(c >> 24)
	}
	return string(buf)
}

func buildFactorials(n int) []uint64 {
	f := make([]uint64, n+1)
	f[0] = 1
	for i := 1; i <= n; i++ {
		f[i] = f[i-1] * uint64(i)
	}
	return f
}

func binomial(n, k int) int {
	if k < 0 || k > n {
		return 0
	}
	if k > n-k {
		k = n - k
	}
	result := 1
	for i := 0; i < k; i++ {
		result = result * (n - i) / (i + 1)
	}
	return result
}

// generateCompositions enumerates every length-a vector of non-negative
// integers summing to b, in ascending lexicographic order - the order
// produced naturally by varying the first coordinate slowest. Index
// lookups by composition depend on this ordering being stable.
func generateCompositions(b, a int) [][]int {
	var out [][]int
	cur := make([]int, a)
	var rec func(pos, remaining int)
	rec = func(pos, remaining int) {
		if pos == a-1 {
			cur[pos] = remaining
			out = append(out, append([]int(nil), cur...))
			return
		}
		for v := 0; v <= remaining; v++ {
			cur[pos] = v
			rec(pos+1, remaining-v)
		}
	}
	rec(0, b)
	return out
}
