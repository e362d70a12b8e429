/*
Package context implements the BWT context retriever: a sparse
forward-mapping table from text positions to BWT positions that lets any
substring of the original text be reconstructed from the index alone, by
walking LF backwards from the nearest downstream sampled mark.

A Factory observes a suffix-array stream once, in the order the builder
produces it, and accumulates the inverse sampling table. Finalize turns
it into a Table, which WriteTo/ReadFrom persist as a `.<stride>cxm`
file. A Retriever pairs a Table with a bwtindex.BWT to answer
AccessSubsequence queries.
*/
package context

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/polyfm/fmindex/bitpack"
	"github.com/polyfm/fmindex/bwtindex"
	"github.com/polyfm/fmindex/eis"
)

// AutoSize asks NewFactory to pick mapIntervalLog2 automatically as
// ceil(log2(ceil(log2 N))).
const AutoSize = -1

// Factory accumulates the inverse sampling table from a suffix-array
// stream observed once, in increasing BWT-position order. It owns its
// backing buffer exclusively until Finalize is called.
type Factory struct {
	n               int // text length, excluding the terminator
	mapIntervalLog2 int
	stride          int
	bitsPerLength   int
	numEntries      int
	buf             []byte
}

// NewFactory creates a Factory for a text of length n. mapIntervalLog2
// selects the sampling stride as 2^mapIntervalLog2 text positions, or
// pass AutoSize to let the factory pick one from n.
func NewFactory(n, mapIntervalLog2 int) (*Factory, error) {
	if n <= 0 {
		return nil, fmt.Errorf("context: sequence length must be > 0, got %d", n)
	}
	if mapIntervalLog2 == AutoSize {
		mapIntervalLog2 = autoMapIntervalLog2(n)
	}
	if mapIntervalLog2 < 0 {
		return nil, fmt.Errorf("context: mapIntervalLog2 must be >= 0, got %d", mapIntervalLog2)
	}

	stride := 1 << uint(mapIntervalLog2)
	numEntries := (n + stride - 1) / stride
	bitsPerLength := bitpack.BitsForMax(uint64(n))

	return &Factory{
		n:               n,
		mapIntervalLog2: mapIntervalLog2,
		stride:          stride,
		bitsPerLength:   bitsPerLength,
		numEntries:      numEntries,
		buf:             make([]byte, bitpack.ByteLen(numEntries*bitsPerLength)),
	}, nil
}

// autoMapIntervalLog2 picks mapIntervalLog2 = ceil(log2(ceil(log2 N))),
// so the stride is about log2 N and the table has about N / log2 N
// entries.
func autoMapIntervalLog2(n int) int {
	logN := bitpack.BitsForMax(uint64(n - 1))
	if logN < 1 {
		logN = 1
	}
	return bitpack.BitsForMax(uint64(logN - 1))
}

// Observe records one suffix-array entry. Entries must arrive in
// increasing BWTPos order, the order BuildNaiveBWT's suffix array and the
// builder's stream both produce. Whenever (entry.TextPos+n-1) mod n is a
// multiple of the stride, the corresponding slot is overwritten with
// entry.BWTPos - later entries win ties.
func (f *Factory) Observe(entry eis.SuffixArrayEntry) {
	pos := (entry.TextPos + f.n - 1) % f.n
	if pos%f.stride != 0 {
		return
	}
	slot := pos / f.stride
	bitpack.StoreUint(f.buf, slot*f.bitsPerLength, f.bitsPerLength, uint64(entry.BWTPos))
}

// ObserveAll drains sa, calling Observe for every entry it produces.
func (f *Factory) ObserveAll(sa eis.SuffixArraySource) error {
	for {
		entry, ok, err := sa.Next()
		if err != nil {
			return fmt.Errorf("context: reading suffix-array stream: %w", err)
		}
		if !ok {
			return nil
		}
		f.Observe(entry)
	}
}

// Finalize produces the immutable Table the factory has accumulated. The
// factory must not be used again afterwards.
func (f *Factory) Finalize() *Table {
	return &Table{
		n:               f.n,
		mapIntervalLog2: f.mapIntervalLog2,
		bitsPerLength:   f.bitsPerLength,
		numEntries:      f.numEntries,
		buf:             f.buf,
	}
}

// Table is the persisted (or in-memory) inverse sampling table: one entry
// per sampled text position, storing the BWT position that maps to it.
type Table struct {
	n               int
	mapIntervalLog2 int
	bitsPerLength   int
	numEntries      int
	buf             []byte
}

// MapIntervalLog2 returns the sampling exponent the table was built with.
func (t *Table) MapIntervalLog2() int { return t.mapIntervalLog2 }

// Stride returns 2^MapIntervalLog2, the spacing between sampled text
// positions.
func (t *Table) Stride() int { return 1 << uint(t.mapIntervalLog2) }

func (t *Table) entry(slot int) int {
	return int(bitpack.GetUint(t.buf, slot*t.bitsPerLength, t.bitsPerLength))
}

// WriteTo serializes the table as the body of a `.<stride>cxm` file:
// mapIntervalLog2:16 | bitsPerLength:16 | the bit-packed array (already
// byte-aligned, so no further padding is needed).
func (t *Table) WriteTo(w io.Writer) (int64, error) {
	hdr := make([]byte, 4)
	binary.LittleEndian.PutUint16(hdr[0:2], uint16(t.mapIntervalLog2))
	binary.LittleEndian.PutUint16(hdr[2:4], uint16(t.bitsPerLength))
	n1, err := w.Write(hdr)
	if err != nil {
		return int64(n1), &eis.IOError{Op: "write context map header", Wrapped: err}
	}
	n2, err := w.Write(t.buf)
	if err != nil {
		return int64(n1 + n2), &eis.IOError{Op: "write context map body", Wrapped: err}
	}
	return int64(n1 + n2), nil
}

// ReadFrom deserializes a table previously written by WriteTo. n is the
// text length the table was built over; the file itself does not store
// it, so callers carry it from the index header.
func ReadFrom(r io.Reader, n int) (*Table, error) {
	hdr := make([]byte, 4)
	if _, err := io.ReadFull(r, hdr); err != nil {
		return nil, &eis.IOError{Op: "read context map header", Wrapped: err}
	}
	mapIntervalLog2 := int(binary.LittleEndian.Uint16(hdr[0:2]))
	bitsPerLength := int(binary.LittleEndian.Uint16(hdr[2:4]))
	if bitsPerLength < 1 || bitsPerLength > bitpack.MaxWidth {
		return nil, &eis.FormatCorruptionError{Reason: fmt.Sprintf("context map bitsPerLength %d out of range", bitsPerLength)}
	}

	stride := 1 << uint(mapIntervalLog2)
	numEntries := (n + stride - 1) / stride
	buf := make([]byte, bitpack.ByteLen(numEntries*bitsPerLength))
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, &eis.IOError{Op: "read context map body", Wrapped: err}
	}

	return &Table{n: n, mapIntervalLog2: mapIntervalLog2, bitsPerLength: bitsPerLength, numEntries: numEntries, buf: buf}, nil
}

// fileSuffix returns the suffix WriteTo's output should be saved under
// for a table built with mapIntervalLog2 - e.g. "3cxm" for stride 8.
func fileSuffix(mapIntervalLog2 int) string {
	return fmt.Sprintf("%dcxm", mapIntervalLog2)
}

// Save writes the table to path+"."+<stride>cxm.
func (t *Table) Save(path string) error {
	f, err := os.Create(fmt.Sprintf("%s.%s", path, fileSuffix(t.mapIntervalLog2)))
	if err != nil {
		return &eis.IOError{Op: "create context map file", Wrapped: err}
	}
	defer f.Close()
	if _, err := t.WriteTo(f); err != nil {
		return err
	}
	return f.Close()
}

// Open opens the context map file at path+"."+<mapIntervalLog2>cxm.
func Open(path string, mapIntervalLog2, n int) (*Table, error) {
	f, err := os.Open(fmt.Sprintf("%s.%s", path, fileSuffix(mapIntervalLog2)))
	if err != nil {
		return nil, &eis.IOError{Op: "open context map file", Wrapped: err}
	}
	defer f.Close()
	return ReadFrom(f, n)
}

// Load tries strides 0..maxMapIntervalLog2 in order and returns the
// first context map file that opens and validates, for readers that
// don't know which stride the builder chose.
func Load(path string, n int, maxMapIntervalLog2 int) (*Table, error) {
	var lastErr error
	for s := 0; s <= maxMapIntervalLog2; s++ {
		t, err := Open(path, s, n)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}
	return nil, &LoadError{Path: path, Wrapped: lastErr}
}

// LoadError reports that no context map file could be found or validated
// for a given path across every stride tried.
type LoadError struct {
	Path    string
	Wrapped error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("context: no context map file found for %q: %v", e.Path, e.Wrapped)
}

func (e *LoadError) Unwrap() error { return e.Wrapped }

// Retriever pairs a Table with the bwtindex.BWT it samples, answering
// substring-regeneration queries by walking LF backwards from a sampled
// mark.
type Retriever struct {
	bwt   *bwtindex.BWT
	table *Table
}

// NewRetriever wraps bwt and table for querying. table must have been
// built (directly or via a round trip through WriteTo/ReadFrom) against
// the same suffix array bwt was wrapped from.
func NewRetriever(bwt *bwtindex.BWT, table *Table) *Retriever {
	return &Retriever{bwt: bwt, table: table}
}

// Table exposes the underlying sampling table, used by the verifier to
// cross-check its own reference reconstruction.
func (rt *Retriever) Table() *Table { return rt.table }

// NextMark rounds pos up to the next sampled text position at or after
// it and returns that text position together with the BWT row whose
// Access call reproduces text[textPos]. Slot j of the table holds the row
// for text position j*stride (Observe's (TextPos+n-1) mod n folds the
// sentinel row onto n-1; a real TextPos of n-1 lands on n-2, not n-1).
// When pos is at or past
// the last real text position, Rot0Pos - the row whose Access reproduces
// the real last symbol - is returned directly instead of consulting a
// table slot built for the sentinel's own crossing.
func (rt *Retriever) NextMark(pos int) (textPos, bwtPos int) {
	n := rt.table.n
	if pos >= n-1 {
		return n - 1, rt.bwt.Rot0Pos()
	}
	stride := rt.table.Stride()
	j := (pos + stride - 1) / stride
	textPos = j * stride
	if textPos >= n-1 {
		return n - 1, rt.bwt.Rot0Pos()
	}
	bwtPos = rt.table.entry(j)
	return textPos, bwtPos
}

// AccessSubsequence reconstructs text[start : start+length) into out
// (which must have length >= length), finding the next mark at or after
// start+length-1, LF-walking back to that position, and then emitting
// symbols from the end of the range to its start.
func (rt *Retriever) AccessSubsequence(start, length int, out []uint8, hint *eis.Hint) error {
	if length == 0 {
		return nil
	}
	if start < 0 || start+length > rt.table.n {
		return fmt.Errorf("context: range [%d, %d) out of bounds for text length %d", start, start+length, rt.table.n)
	}

	target := start + length - 1
	textPos, bwtPos := rt.NextMark(target)
	for textPos > target {
		next, err := rt.bwt.LF(bwtPos, hint)
		if err != nil {
			return fmt.Errorf("context: aligning to position %d: %w", target, err)
		}
		bwtPos = next
		textPos--
	}

	for i := length - 1; i >= 0; i-- {
		out[i] = rt.bwt.Index().Access(bwtPos, hint)
		if i == 0 {
			break
		}
		next, err := rt.bwt.LF(bwtPos, hint)
		if err != nil {
			return fmt.Errorf("context: walking LF while emitting position %d: %w", start+i-1, err)
		}
		bwtPos = next
	}
	return nil
}
