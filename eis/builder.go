package eis

import (
	"fmt"

	"github.com/polyfm/fmindex/alphabet"
	"github.com/polyfm/fmindex/bitpack"
	"github.com/polyfm/fmindex/compperm"
	"github.com/polyfm/fmindex/rangelist"
)

// fallbackSymbolLabel is the secondary-alphabet symbol string reserved
// for positions whose real symbol escapes the dense selection - never
// matched against real input, only used internally by compperm and by
// secondaryToBase's representative lookup.
const fallbackSymbolLabel = "\x00fallback"

// Build consumes symbols once, left to right, and returns a fully
// queryable in-memory Index. A short read from symbols before SeqLen
// positions have been consumed is fatal, per SymbolSource's contract.
func Build(symbols SymbolSource, params Params) (*Index, error) {
	if err := params.validate(); err != nil {
		return nil, err
	}

	var denseSelection, sparseSelection []int
	for r := 0; r < params.Alphabet.GetNumRanges(); r++ {
		switch params.Alphabet.ModeOf(r) {
		case alphabet.BlockComposition:
			denseSelection = append(denseSelection, r)
		case alphabet.RegionList:
			sparseSelection = append(sparseSelection, r)
		}
	}
	if len(denseSelection) == 0 {
		return nil, &ConfigurationError{Message: "alphabet has no BlockComposition range to build a block encoding from"}
	}

	secondary, transform, err := params.Alphabet.SecondaryMapping(denseSelection, []alphabet.Mode{alphabet.BlockComposition}, fallbackSymbolLabel)
	if err != nil {
		return nil, &ConfigurationError{Message: err.Error()}
	}

	compTable, err := compperm.Init(params.BlockSize, secondary.GetSize())
	if err != nil {
		return nil, &ConfigurationError{Message: err.Error()}
	}

	secondaryToBase := make([]uint8, secondary.GetSize())
	fallbackSecCode, _, err := secondary.Map(fallbackSymbolLabel)
	if err != nil {
		return nil, &ConfigurationError{Message: err.Error()}
	}
	secondaryToBase[fallbackSecCode] = params.BlockFallback
	for baseCode := 0; baseCode < params.Alphabet.GetSize(); baseCode++ {
		sc := transform[baseCode]
		if sc != fallbackSecCode {
			secondaryToBase[sc] = uint8(baseCode)
		}
	}

	sumStride := params.RangeSumStride
	if sumStride < 1 {
		sumStride = 1
	}
	ranges := rangelist.New(params.Alphabet.GetSize(), params.Features.RegionSums, sumStride)

	a := secondary.GetSize()
	partialSumBits := bitpack.BitsForMax(uint64(params.SeqLen))
	compIdxWidth := compTable.CompIndexWidth()
	bucketBits := a*partialSumBits + 64 + params.BlocksPerBucket*compIdxWidth
	numBuckets := params.numBuckets()

	ix := &Index{
		params:          params,
		secondary:       secondary,
		transform:       transform,
		secondaryToBase: secondaryToBase,
		compTable:       compTable,
		fallbackSecCode: fallbackSecCode,
		partialSumBits:  partialSumBits,
		compIdxWidth:    compIdxWidth,
		bucketBits:      bucketBits,
		numBuckets:      numBuckets,
		compData:        make([]byte, bitpack.ByteLen(numBuckets*bucketBits)),
		ranges:          ranges,
	}

	buck := make([]uint64, a)
	varCursor := 0
	readBuf := make([]uint8, params.BlockSize)

	for k := 0; k < numBuckets; k++ {
		buckAtStart := append([]uint64(nil), buck...)
		varOffsetAtStart := uint64(varCursor)
		compIdxForBucket := make([]uint64, params.BlocksPerBucket)

		for bi := 0; bi < params.BlocksPerBucket; bi++ {
			blockNum := k*params.BlocksPerBucket + bi
			blockStart := blockNum * params.BlockSize
			if blockStart >= params.SeqLen {
				continue
			}
			bl := params.SeqLen - blockStart
			if bl > params.BlockSize {
				bl = params.BlockSize
			}

			n, rerr := symbols.Read(readBuf[:bl])
			if rerr != nil {
				return nil, fatalShortRead("read BWT symbol stream", rerr)
			}
			if n != bl {
				return nil, fatalShortRead("read BWT symbol stream",
					fmt.Errorf("expected %d symbols at block %d, got %d", bl, blockNum, n))
			}

			blockSec := make([]uint8, params.BlockSize)
			for i := 0; i < bl; i++ {
				baseCode := readBuf[i]
				_, rangeID, merr := params.Alphabet.Map(int(baseCode))
				if merr != nil {
					return nil, &FormatCorruptionError{Reason: merr.Error()}
				}
				secCode := transform[baseCode]
				buck[secCode]++
				blockSec[i] = secCode
				if params.Alphabet.ModeOf(rangeID) == alphabet.RegionList {
					ranges.Append(blockStart+i, 1, baseCode)
				}
			}

			compIdx, permIdx, permWidth, berr := compTable.BlockToIndexPair(blockSec)
			if berr != nil {
				return nil, &FormatCorruptionError{Reason: berr.Error()}
			}
			compIdxForBucket[bi] = uint64(compIdx)

			if permWidth > 0 {
				growVarData(&ix.varData, varCursor+permWidth)
				bitpack.StoreUint(ix.varData, varCursor, permWidth, permIdx)
			}
			varCursor += permWidth
		}

		base := ix.bucketBitOffset(k)
		partialSums := bitpack.UniformArray{Buf: ix.compData, BitOffset: base, Width: partialSumBits, Count: a}
		partialSums.Store(buckAtStart)
		bitpack.StoreUint(ix.compData, base+a*partialSumBits, 64, varOffsetAtStart)
		compIdxArr := bitpack.UniformArray{Buf: ix.compData, BitOffset: base + a*partialSumBits + 64, Width: compIdxWidth, Count: params.BlocksPerBucket}
		compIdxArr.Store(compIdxForBucket)
	}

	ranges.Compact()
	ix.varTotalBits = varCursor

	return ix, nil
}

// growVarData grows buf, if necessary, so it can hold a value ending at
// bit position neededBits, preserving already-written bytes.
func growVarData(buf *[]byte, neededBits int) {
	want := bitpack.ByteLen(neededBits)
	if len(*buf) >= want {
		return
	}
	grown := make([]byte, want)
	copy(grown, *buf)
	*buf = grown
}
