package eis

import (
	"github.com/polyfm/fmindex/alphabet"
	"github.com/polyfm/fmindex/bitpack"
	"github.com/polyfm/fmindex/compperm"
	"github.com/polyfm/fmindex/rangelist"
)

// Index is a block-compressed enhanced indexed sequence built from a
// BWT symbol stream. It answers Rank (occurrence counting) and Access
// (symbol retrieval) queries over the stream without ever decompressing
// more than one bucket's worth of data.
//
// An Index built by Build lives entirely in memory; WriteTo/Open
// persist and reload the same layout from a `.bdx` file.
type Index struct {
	params Params

	secondary       *alphabet.RangeAlphabet
	transform       []uint8 // base alphabet code -> secondary (dense) code
	secondaryToBase []uint8 // secondary code -> a representative base code
	compTable       *compperm.Table
	fallbackSecCode uint8 // secondary code of the dedicated slot every RegionList occurrence is counted under; decoded as the block-fallback symbol

	partialSumBits int
	compIdxWidth   int
	bucketBits     int // total bits of one bucket's header record

	numBuckets int
	compData   []byte // numBuckets bucket records, bit-packed back to back

	varData     []byte // bit-packed permutation indices, one stream for the whole index
	varTotalBits int

	ranges *rangelist.List
}

// SuperBlock is the unpacked view of one bucket fetched for a query; it
// is the unit Hint caches.
type SuperBlock struct {
	bucketNum   int
	partialSums bitpack.UniformArray
	varOffset   uint64
	compIdx     bitpack.UniformArray
}

// PartialSymSum reads the stored partial sum for secondary (dense)
// symbol code s.
func (sb *SuperBlock) PartialSymSum(s uint8) uint64 {
	return sb.partialSums.Get(int(s))
}

// VarIdxOffset reads the bit offset, in the index's variable-width
// stream, where this bucket's permutation indices begin.
func (sb *SuperBlock) VarIdxOffset() uint64 {
	return sb.varOffset
}

// CompIdx reads the composition index of block blockIdx (0-based within
// the bucket).
func (sb *SuperBlock) CompIdx(blockIdx int) int {
	return int(sb.compIdx.Get(blockIdx))
}

// Hint accelerates repeated nearby queries: a direct-mapped super-block
// cache plus the range list's search cursor. Never share a Hint across
// concurrent queries; concurrent callers allocate one each.
type Hint struct {
	cache     []*SuperBlock
	rangeHint rangelist.Hint
}

// NewHint creates a Hint with a direct-mapped cache of cacheSize slots.
func NewHint(cacheSize int) *Hint {
	if cacheSize < 1 {
		cacheSize = 1
	}
	return &Hint{cache: make([]*SuperBlock, cacheSize)}
}

func (ix *Index) bucketBitOffset(bucketNum int) int {
	return bucketNum * ix.bucketBits
}

// fetchSuperBlock returns the SuperBlock for bucketNum, consulting and
// updating hint's cache when hint is non-nil. A cache hit avoids
// rebuilding the UniformArray views into compData.
func (ix *Index) fetchSuperBlock(bucketNum int, hint *Hint) *SuperBlock {
	if hint != nil {
		slot := bucketNum % len(hint.cache)
		if sb := hint.cache[slot]; sb != nil && sb.bucketNum == bucketNum {
			return sb
		}
	}

	base := ix.bucketBitOffset(bucketNum)
	a := ix.secondary.GetSize()
	sb := &SuperBlock{
		bucketNum:   bucketNum,
		partialSums: bitpack.UniformArray{Buf: ix.compData, BitOffset: base, Width: ix.partialSumBits, Count: a},
		varOffset:   bitpack.GetUint(ix.compData, base+a*ix.partialSumBits, 64),
		compIdx:     bitpack.UniformArray{Buf: ix.compData, BitOffset: base + a*ix.partialSumBits + 64, Width: ix.compIdxWidth, Count: ix.params.BlocksPerBucket},
	}

	if hint != nil {
		hint.cache[bucketNum%len(hint.cache)] = sb
	}
	return sb
}

// bucketOf returns the bucket number covering text position pos.
func (ix *Index) bucketOf(pos int) int {
	return pos / ix.params.bucketLen()
}

func (ix *Index) blockLen(blockNum int) int {
	start := blockNum * ix.params.BlockSize
	if start >= ix.params.SeqLen {
		return 0
	}
	remaining := ix.params.SeqLen - start
	if remaining > ix.params.BlockSize {
		return ix.params.BlockSize
	}
	return remaining
}

// varOffsetOfBlock returns the bit offset in varData where blockNum's
// permutation index begins, by walking the compIdx entries of its
// bucket up to blockNum and summing their permutation widths onto the
// bucket's recorded base offset.
func (ix *Index) varOffsetOfBlock(sb *SuperBlock, blockIdxInBucket int) int {
	offset := int(sb.varOffset)
	for i := 0; i < blockIdxInBucket; i++ {
		compIdx := sb.CompIdx(i)
		offset += ix.compTable.PermWidth(compIdx)
	}
	return offset
}

// unpackBlock reads and unranks block blockNum's secondary-alphabet
// symbols (length ix.blockLen(blockNum)).
func (ix *Index) unpackBlock(blockNum int, hint *Hint) []uint8 {
	bucketLen := ix.params.bucketLen()
	bucketNum := (blockNum * ix.params.BlockSize) / bucketLen
	blockIdxInBucket := blockNum % ix.params.BlocksPerBucket

	sb := ix.fetchSuperBlock(bucketNum, hint)
	compIdx := sb.CompIdx(blockIdxInBucket)
	permWidth := ix.compTable.PermWidth(compIdx)
	varOffset := ix.varOffsetOfBlock(sb, blockIdxInBucket)
	permIdx := bitpack.GetUint(ix.varData, varOffset, permWidthOrOne(permWidth))

	bl := ix.blockLen(blockNum)
	secBlock := make([]uint8, ix.params.BlockSize)
	if bl > 0 {
		if err := ix.compTable.IndexPairToBlock(compIdx, permIdx, secBlock, bl); err != nil {
			panic(&FormatCorruptionError{Reason: err.Error()})
		}
	}
	return secBlock[:bl]
}

// permWidthOrOne guards against calling bitpack.GetUint with width 0;
// compperm.Table already gives every composition a width of at least 1.
func permWidthOrOne(w int) int {
	if w < 1 {
		return 1
	}
	return w
}

// GetBlock returns the base-alphabet symbols of block blockNum. When
// overlay is true, every position belonging to a RegionList-mode range
// is replaced with its true symbol from the range list; otherwise such
// positions read back as the representative block-fallback symbol.
func (ix *Index) GetBlock(blockNum int, overlay bool, hint *Hint) []uint8 {
	secBlock := ix.unpackBlock(blockNum, hint)
	baseBlock := make([]uint8, len(secBlock))
	for i, sc := range secBlock {
		baseBlock[i] = ix.secondaryToBase[sc]
	}
	if overlay && len(baseBlock) > 0 {
		var rh *rangelist.Hint
		if hint != nil {
			rh = &hint.rangeHint
		}
		ix.ranges.ApplyRangesToSubstring(baseBlock, blockNum*ix.params.BlockSize, len(baseBlock), 0, rh)
	}
	return baseBlock
}

// Access returns the base-alphabet symbol at text position pos.
func (ix *Index) Access(pos int, hint *Hint) uint8 {
	blockNum := pos / ix.params.BlockSize
	offsetInBlock := pos % ix.params.BlockSize
	block := ix.GetBlock(blockNum, true, hint)
	return block[offsetInBlock]
}

// Rank returns the number of occurrences of base-alphabet symbol sym in
// BWT positions [0, pos). pos may range up to SeqLen inclusive.
func (ix *Index) Rank(sym uint8, pos int, hint *Hint) int {
	if pos <= 0 {
		return 0
	}
	_, rangeID, err := ix.params.Alphabet.Map(int(sym))
	if err != nil {
		panic(&FormatCorruptionError{Reason: err.Error()})
	}

	if ix.params.Alphabet.ModeOf(rangeID) == alphabet.RegionList {
		var rh *rangelist.Hint
		if hint != nil {
			rh = &hint.rangeHint
		}
		return ix.ranges.SymbolCountInRegion(0, pos, sym, rh)
	}

	secCode := ix.transform[sym]
	bucketLen := ix.params.bucketLen()
	bucketNum := ix.bucketOf(pos)
	sb := ix.fetchSuperBlock(bucketNum, hint)
	total := int(sb.PartialSymSum(secCode))

	posInBucket := pos - bucketNum*bucketLen
	blockIdxInBucket := posInBucket / ix.params.BlockSize
	for bi := 0; bi < blockIdxInBucket; bi++ {
		total += ix.compTable.SymCountFromComposition(sb.CompIdx(bi), int(secCode))
	}

	offsetInBlock := posInBucket % ix.params.BlockSize
	if offsetInBlock > 0 {
		blockNum := bucketNum*ix.params.BlocksPerBucket + blockIdxInBucket
		secBlock := ix.unpackBlock(blockNum, hint)
		limit := offsetInBlock
		if limit > len(secBlock) {
			limit = len(secBlock)
		}
		for i := 0; i < limit; i++ {
			if secBlock[i] == secCode {
				total++
			}
		}
	}

	if secCode == ix.fallbackSecCode {
		// Every RegionList occurrence is counted under this dedicated
		// composition slot; total counted all of them since position 0,
		// so they must be subtracted out.
		var rh *rangelist.Hint
		if hint != nil {
			rh = &hint.rangeHint
		}
		total -= ix.ranges.AllSymbolsCountInRegion(0, pos, rh)
	}

	return total
}

// RankPair returns (Rank(sym, posA), Rank(sym, posB)) for posA <= posB.
// When both positions fall in the same bucket the second rank reuses
// the super-block the first fetch left in hint, so the pair costs one
// fetch - the backward-search hot path in bwtindex leans on this.
func (ix *Index) RankPair(sym uint8, posA, posB int, hint *Hint) (int, int) {
	return ix.Rank(sym, posA, hint), ix.Rank(sym, posB, hint)
}

// RangeRank returns the number of occurrences in [0, pos) of every
// symbol of alphabet range rangeID, in symbol-code order. For a
// BlockComposition range the partial sums of every symbol come from one
// super-block fetch and each touched full block contributes through a
// single AddSymCountsFromComposition call, rather than one Rank walk
// per symbol.
func (ix *Index) RangeRank(rangeID, pos int, hint *Hint) []int {
	ra := ix.params.Alphabet
	start := 0
	for r := 0; r < rangeID; r++ {
		start += ra.GetRangeSize(r)
	}
	size := ra.GetRangeSize(rangeID)
	out := make([]int, size)

	var rh *rangelist.Hint
	if hint != nil {
		rh = &hint.rangeHint
	}

	if ra.ModeOf(rangeID) == alphabet.RegionList {
		for j := 0; j < size; j++ {
			out[j] = ix.ranges.SymbolCountInRegion(0, pos, uint8(start+j), rh)
		}
		return out
	}

	if pos <= 0 {
		return out
	}

	a := ix.secondary.GetSize()
	secCounts := make([]int, a)
	bucketLen := ix.params.bucketLen()
	bucketNum := ix.bucketOf(pos)
	sb := ix.fetchSuperBlock(bucketNum, hint)
	for s := 0; s < a; s++ {
		secCounts[s] = int(sb.PartialSymSum(uint8(s)))
	}

	posInBucket := pos - bucketNum*bucketLen
	blockIdxInBucket := posInBucket / ix.params.BlockSize
	for bi := 0; bi < blockIdxInBucket; bi++ {
		ix.compTable.AddSymCountsFromComposition(sb.CompIdx(bi), secCounts)
	}
	if off := posInBucket % ix.params.BlockSize; off > 0 {
		secBlock := ix.unpackBlock(bucketNum*ix.params.BlocksPerBucket+blockIdxInBucket, hint)
		limit := off
		if limit > len(secBlock) {
			limit = len(secBlock)
		}
		for i := 0; i < limit; i++ {
			secCounts[secBlock[i]]++
		}
	}

	for j := 0; j < size; j++ {
		sym := uint8(start + j)
		sc := ix.transform[sym]
		c := secCounts[sc]
		if sc == ix.fallbackSecCode {
			c -= ix.ranges.AllSymbolsCountInRegion(0, pos, rh)
		}
		out[j] = c
	}
	return out
}

// Select is declared for symmetry with Rank but intentionally
// unsupported in this revision; no caller in the bwtindex layer depends
// on it.
func (ix *Index) Select(sym uint8, k int) int {
	panic("eis: Select is not supported")
}

// SeqLen returns the indexed sequence length N.
func (ix *Index) SeqLen() int { return ix.params.SeqLen }

// Params returns the configuration the index was built with.
func (ix *Index) Params() Params { return ix.params }

// Ranges exposes the underlying range list, used by the BWT layer's
// range-sort policy dispatch and by the verifier.
func (ix *Index) Ranges() *rangelist.List { return ix.ranges }

// CompTable exposes the composition/permutation table, used by the
// verifier to cross-check header-declared (b, a) against a
// freshly-recomputed table.
func (ix *Index) CompTable() *compperm.Table { return ix.compTable }
