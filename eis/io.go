package eis

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/polyfm/fmindex/alphabet"
	"github.com/polyfm/fmindex/bitpack"
	"github.com/polyfm/fmindex/compperm"
	"github.com/polyfm/fmindex/rangelist"
	"golang.org/x/exp/mmap"
)

// WriteTo serializes ix to w as a `.bdx` file: header, constant-width
// region, variable-width region, range list. All multi-byte header
// integers are little-endian so the file can move between hosts of
// differing endianness.
func (ix *Index) WriteTo(w io.Writer) (int64, error) {
	var written int64

	hdr, err := ix.encodeHeader()
	if err != nil {
		return 0, err
	}
	n, err := w.Write(hdr)
	written += int64(n)
	if err != nil {
		return written, fatalShortRead("write header", err)
	}

	n, err = w.Write(ix.compData)
	written += int64(n)
	if err != nil {
		return written, fatalShortRead("write constant-width region", err)
	}

	varBytes := bitpack.ByteLen(ix.varTotalBits)
	n, err = w.Write(ix.varData[:varBytes])
	written += int64(n)
	if err != nil {
		return written, fatalShortRead("write variable-width region", err)
	}

	rn, err := ix.ranges.WriteTo(w)
	written += rn
	if err != nil {
		return written, fatalShortRead("write range list", err)
	}

	return written, nil
}

// encodeHeader writes the header's tag records: block size, blocks per
// bucket, variable offset, range offset, sequence length, bits per
// length, bits per variable disk offset, partial-sum bits, fallback
// symbols, the mode of every range, and the alphabet's symbol table
// (needed to reconstruct the base Alphabet on Open).
func (ix *Index) encodeHeader() ([]byte, error) {
	buf := make([]byte, 0, 256)
	buf = append(buf, magic...)

	writeUint32 := func(v uint32) {
		var b [4]byte
		binary.LittleEndian.PutUint32(b[:], v)
		buf = append(buf, b[:]...)
	}
	writeUint64 := func(v uint64) {
		var b [8]byte
		binary.LittleEndian.PutUint64(b[:], v)
		buf = append(buf, b[:]...)
	}
	writeTag := func(t tag, payload func()) {
		writeUint32(uint32(t))
		payload()
	}

	varRegionBytes := bitpack.ByteLen(ix.varTotalBits)
	rangeOffset := uint64(len(ix.compData) + varRegionBytes)

	writeTag(tagBlockSize, func() { writeUint32(uint32(ix.params.BlockSize)) })
	writeTag(tagBlocksPerBucket, func() { writeUint32(uint32(ix.params.BlocksPerBucket)) })
	writeTag(tagVariableOffset, func() { writeUint64(uint64(len(ix.compData))) })
	writeTag(tagRangeOffset, func() { writeUint64(rangeOffset) })
	writeTag(tagSequenceLength, func() { writeUint64(uint64(ix.params.SeqLen)) })
	writeTag(tagBitsPerLength, func() { writeUint32(uint32(ix.partialSumBits)) })
	writeTag(tagBitsPerVarDiskOffset, func() { writeUint32(64) })
	writeTag(tagPartialSumBits, func() { writeUint32(uint32(ix.partialSumBits)) })
	writeTag(tagBlockFallback, func() { buf = append(buf, ix.params.BlockFallback) })
	writeTag(tagRegionFallback, func() { buf = append(buf, ix.params.RegionFallback) })

	writeTag(tagNumModes, func() {
		n := ix.params.Alphabet.GetNumRanges()
		writeUint32(uint32(n))
		for r := 0; r < n; r++ {
			writeUint32(uint32(ix.params.Alphabet.ModeOf(r)))
			writeUint32(uint32(ix.params.Alphabet.GetRangeSize(r)))
		}
	})

	writeUint32(uint32(tagEnd))

	// Symbol table: the only channel Open has to reconstruct
	// Params.Alphabet without an external alphabet-mapping collaborator.
	symbols := ix.baseSymbols()
	writeUint32(uint32(len(symbols)))
	for _, s := range symbols {
		writeUint32(uint32(len(s)))
		buf = append(buf, s...)
	}

	writeUint32(uint32(ix.params.RangeSumStride))
	if ix.params.Features.RegionSums {
		buf = append(buf, 1)
	} else {
		buf = append(buf, 0)
	}
	if ix.params.Features.BWTReversiblySorted {
		buf = append(buf, 1)
	} else {
		buf = append(buf, 0)
	}

	headerLen := make([]byte, 4)
	binary.LittleEndian.PutUint32(headerLen, uint32(len(buf)+4))
	return append(headerLen, buf...), nil
}

// baseSymbols returns the underlying Alphabet's symbol strings in code
// order, relying on the fact that RangeAlphabet never reorders the base
// alphabet it was built from.
func (ix *Index) baseSymbols() []string {
	n := ix.params.Alphabet.GetSize()
	out := make([]string, n)
	for i := 0; i < n; i++ {
		s, err := ix.params.Alphabet.ReverseMap(uint8(i))
		if err != nil {
			out[i] = ""
			continue
		}
		out[i] = s
	}
	return out
}

// Open reads a `.bdx` index previously written by WriteTo from r,
// which spans exactly size bytes - satisfied by an *os.File or a
// mmap.ReaderAt from golang.org/x/exp/mmap (see OpenMmap). Open copies
// the header and the constant- and variable-width regions into memory,
// so neither kind of r gives zero-copy reads.
func Open(r io.ReaderAt, size int64) (*Index, error) {
	var lenBuf [4]byte
	if _, err := r.ReadAt(lenBuf[:], 0); err != nil {
		return nil, fatalShortRead("read header length", err)
	}
	headerLen := int64(binary.LittleEndian.Uint32(lenBuf[:]))
	if headerLen < 4 || headerLen > size {
		return nil, &FormatCorruptionError{Reason: "header length out of range"}
	}

	header := make([]byte, headerLen-4)
	if _, err := r.ReadAt(header, 4); err != nil {
		return nil, fatalShortRead("read header", err)
	}
	if len(header) < 3 || string(header[:3]) != magic {
		return nil, &FormatCorruptionError{Reason: "bad magic"}
	}

	ix, relRangeOffset, relVarOffset, err := decodeHeader(header[3:])
	if err != nil {
		return nil, err
	}

	// relVarOffset and relRangeOffset are both relative to the byte
	// right after the header (the start of the constant-width region).
	compLen := int64(relVarOffset)
	ix.compData = make([]byte, compLen)
	if _, err := r.ReadAt(ix.compData, headerLen); err != nil {
		return nil, fatalShortRead("read constant-width region", err)
	}

	varBytes := relRangeOffset - compLen
	ix.varData = make([]byte, varBytes)
	if varBytes > 0 {
		if _, err := r.ReadAt(ix.varData, headerLen+compLen); err != nil {
			return nil, fatalShortRead("read variable-width region", err)
		}
	}
	ix.varTotalBits = int(varBytes) * 8

	rangeAbsOffset := headerLen + relRangeOffset
	rangeSection := io.NewSectionReader(r, rangeAbsOffset, size-rangeAbsOffset)
	ranges, err := rangelist.ReadFrom(rangeSection, ix.params.Alphabet.GetSize())
	if err != nil {
		return nil, err
	}
	ix.ranges = ranges

	return ix, nil
}

// OpenMmap maps path read-only via golang.org/x/exp/mmap and opens it
// as an Index, falling back to a buffered *os.File read when the
// mapping itself cannot be established (e.g. the platform lacks mmap
// support). Query results are identical on either path.
func OpenMmap(path string) (*Index, io.Closer, error) {
	ra, err := mmap.Open(path)
	if err == nil {
		ix, oerr := Open(ra, int64(ra.Len()))
		if oerr != nil {
			ra.Close()
			return nil, nil, oerr
		}
		return ix, ra, nil
	}

	f, ferr := os.Open(path)
	if ferr != nil {
		return nil, nil, fatalShortRead("open index file", ferr)
	}
	stat, serr := f.Stat()
	if serr != nil {
		f.Close()
		return nil, nil, fatalShortRead("stat index file", serr)
	}
	// *os.File already satisfies io.ReaderAt; ReadAt calls go straight
	// to pread(2) without an intermediate buffer.
	ix, oerr := Open(f, stat.Size())
	if oerr != nil {
		f.Close()
		return nil, nil, oerr
	}
	return ix, f, nil
}

// decodeHeader parses the tag records following the magic, rebuilding
// Params.Alphabet, the composition/permutation table, and the bit-width
// bookkeeping an Open caller needs before it can read the three data
// regions. It returns the partially-built Index alongside the raw
// variable-offset and range-offset tag values (both relative to the
// start of the constant-width region) so Open can slice the three
// on-disk regions without re-parsing the header.
func decodeHeader(body []byte) (*Index, int64, int, error) {
	pos := 0
	readUint32 := func() (uint32, error) {
		if pos+4 > len(body) {
			return 0, &FormatCorruptionError{Reason: "unexpected end of header"}
		}
		v := binary.LittleEndian.Uint32(body[pos : pos+4])
		pos += 4
		return v, nil
	}
	readUint64 := func() (uint64, error) {
		if pos+8 > len(body) {
			return 0, &FormatCorruptionError{Reason: "unexpected end of header"}
		}
		v := binary.LittleEndian.Uint64(body[pos : pos+8])
		pos += 8
		return v, nil
	}

	params := Params{}
	var partialSumBits int
	var varOffset uint64
	var rangeOffset uint64
	var modes []alphabet.Mode
	var modeSizes []int

	for {
		t, err := readUint32()
		if err != nil {
			return nil, 0, 0, err
		}
		switch tag(t) {
		case tagEnd:
			goto doneTags
		case tagBlockSize:
			v, err := readUint32()
			if err != nil {
				return nil, 0, 0, err
			}
			params.BlockSize = int(v)
		case tagBlocksPerBucket:
			v, err := readUint32()
			if err != nil {
				return nil, 0, 0, err
			}
			params.BlocksPerBucket = int(v)
		case tagVariableOffset:
			v, err := readUint64()
			if err != nil {
				return nil, 0, 0, err
			}
			varOffset = v
		case tagRangeOffset:
			v, err := readUint64()
			if err != nil {
				return nil, 0, 0, err
			}
			rangeOffset = v
		case tagSequenceLength:
			v, err := readUint64()
			if err != nil {
				return nil, 0, 0, err
			}
			params.SeqLen = int(v)
		case tagBitsPerLength:
			v, err := readUint32()
			if err != nil {
				return nil, 0, 0, err
			}
			partialSumBits = int(v)
		case tagBitsPerVarDiskOffset:
			if _, err := readUint32(); err != nil {
				return nil, 0, 0, err
			}
		case tagPartialSumBits:
			v, err := readUint32()
			if err != nil {
				return nil, 0, 0, err
			}
			partialSumBits = int(v)
		case tagBlockFallback:
			if pos >= len(body) {
				return nil, 0, 0, &FormatCorruptionError{Reason: "unexpected end of header"}
			}
			params.BlockFallback = body[pos]
			pos++
		case tagRegionFallback:
			if pos >= len(body) {
				return nil, 0, 0, &FormatCorruptionError{Reason: "unexpected end of header"}
			}
			params.RegionFallback = body[pos]
			pos++
		case tagNumModes:
			n, err := readUint32()
			if err != nil {
				return nil, 0, 0, err
			}
			modes = make([]alphabet.Mode, n)
			modeSizes = make([]int, n)
			for i := 0; i < int(n); i++ {
				m, err := readUint32()
				if err != nil {
					return nil, 0, 0, err
				}
				sz, err := readUint32()
				if err != nil {
					return nil, 0, 0, err
				}
				modes[i] = alphabet.Mode(m)
				modeSizes[i] = int(sz)
			}
		default:
			return nil, 0, 0, &FormatCorruptionError{Reason: fmt.Sprintf("unknown header tag %d", t)}
		}
	}
doneTags:

	numSymbols, err := readUint32()
	if err != nil {
		return nil, 0, 0, err
	}
	symbols := make([]string, numSymbols)
	for i := range symbols {
		slen, err := readUint32()
		if err != nil {
			return nil, 0, 0, err
		}
		if pos+int(slen) > len(body) {
			return nil, 0, 0, &FormatCorruptionError{Reason: "unexpected end of header"}
		}
		symbols[i] = string(body[pos : pos+int(slen)])
		pos += int(slen)
	}

	rangeSumStride, err := readUint32()
	if err != nil {
		return nil, 0, 0, err
	}
	if pos+2 > len(body) {
		return nil, 0, 0, &FormatCorruptionError{Reason: "unexpected end of header"}
	}
	params.Features.RegionSums = body[pos] != 0
	params.Features.BWTReversiblySorted = body[pos+1] != 0
	pos += 2
	params.RangeSumStride = int(rangeSumStride)

	base := alphabet.NewAlphabet(symbols)
	ranges := make([]alphabet.Range, len(modes))
	fallbacks := make([]uint8, len(modes))
	for i := range modes {
		ranges[i] = alphabet.Range{Mode: modes[i], Size: modeSizes[i]}
	}
	ra, err := alphabet.NewRangeAlphabet(base, ranges, fallbacks)
	if err != nil {
		return nil, 0, 0, &FormatCorruptionError{Reason: err.Error()}
	}
	params.Alphabet = ra

	var denseSelection []int
	for r := 0; r < ra.GetNumRanges(); r++ {
		if ra.ModeOf(r) == alphabet.BlockComposition {
			denseSelection = append(denseSelection, r)
		}
	}
	secondary, transform, err := ra.SecondaryMapping(denseSelection, []alphabet.Mode{alphabet.BlockComposition}, fallbackSymbolLabel)
	if err != nil {
		return nil, 0, 0, &FormatCorruptionError{Reason: err.Error()}
	}
	compTable, err := compperm.Init(params.BlockSize, secondary.GetSize())
	if err != nil {
		return nil, 0, 0, &FormatCorruptionError{Reason: err.Error()}
	}

	fallbackSecCode, _, err := secondary.Map(fallbackSymbolLabel)
	if err != nil {
		return nil, 0, 0, &FormatCorruptionError{Reason: err.Error()}
	}
	secondaryToBase := make([]uint8, secondary.GetSize())
	secondaryToBase[fallbackSecCode] = params.BlockFallback
	for baseCode := 0; baseCode < ra.GetSize(); baseCode++ {
		sc := transform[baseCode]
		if sc != fallbackSecCode {
			secondaryToBase[sc] = uint8(baseCode)
		}
	}

	a := secondary.GetSize()
	compIdxWidth := compTable.CompIndexWidth()
	bucketBits := a*partialSumBits + 64 + params.BlocksPerBucket*compIdxWidth

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
		numBuckets:      params.numBuckets(),
	}

	return ix, int64(rangeOffset), int(varOffset), nil
}
