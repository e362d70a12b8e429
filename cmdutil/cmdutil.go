/*
Package cmdutil is the glue shared by fmxbuild, fmxlocate, and
fmxverify: reading a single FASTA record into base-alphabet codes, and
persisting the BWT-layer metadata the .bdx format itself has no field
for - the builder's choice of terminator row and flattened symbol, and
the locate marks, which have no index-internal serialization and so
ride in a JSON sidecar next to the index file.
*/
package cmdutil

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/polyfm/fmindex/alphabet"
	"github.com/polyfm/fmindex/bio/fasta"
	"github.com/polyfm/fmindex/seqcode"
)

// ReadFirstSequence reads the first FASTA record from path and encodes
// its sequence as base-alphabet A,C,G,T,N codes.
func ReadFirstSequence(path string) (*alphabet.Alphabet, *alphabet.RangeAlphabet, []uint8, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("cmdutil: opening %s: %w", path, err)
	}
	defer f.Close()

	parser := fasta.NewParser(f, 1<<20)
	record, err := parser.Next()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("cmdutil: reading FASTA record from %s: %w", path, err)
	}

	base, ra, err := seqcode.DNAWithN()
	if err != nil {
		return nil, nil, nil, err
	}
	codes, err := seqcode.Encode(base, record.Sequence)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("cmdutil: encoding %s: %w", record.Identifier, err)
	}
	return base, ra, codes, nil
}

// Manifest is everything fmxlocate and fmxverify need to rebuild the
// same bwtindex.BWT and context.Retriever that fmxbuild produced, beyond
// what the .bdx and .<stride>cxm files themselves carry.
type Manifest struct {
	TerminatorFlattenedSym uint8 `json:"terminatorFlattenedSym"`
	TerminatorPos          int   `json:"terminatorPos"`
	Rot0Pos                int   `json:"rot0Pos"`
	MapIntervalLog2        int   `json:"mapIntervalLog2"`
	// LocateMarks is the BWT-position -> text-position locate table,
	// sampled at LocateStride - the opaque locate extension's contents,
	// serialized our own way rather than inside the super-block.
	LocateStride int         `json:"locateStride"`
	LocateMarks  map[int]int `json:"locateMarks"`
}

func manifestPath(basePath string) string {
	return basePath + ".manifest.json"
}

// Save writes m to basePath's manifest file.
func (m Manifest) Save(basePath string) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("cmdutil: encoding manifest: %w", err)
	}
	if err := os.WriteFile(manifestPath(basePath), data, 0o644); err != nil {
		return fmt.Errorf("cmdutil: writing manifest: %w", err)
	}
	return nil
}

// LoadManifest reads back a manifest saved by Manifest.Save.
func LoadManifest(basePath string) (Manifest, error) {
	var m Manifest
	data, err := os.ReadFile(manifestPath(basePath))
	if err != nil {
		return m, fmt.Errorf("cmdutil: reading manifest: %w", err)
	}
	if err := json.Unmarshal(data, &m); err != nil {
		return m, fmt.Errorf("cmdutil: decoding manifest: %w", err)
	}
	return m, nil
}
