/*
Package seqcode turns FASTA sequence text into the base-alphabet symbol
codes the EIS core operates on. It carries a single partition: A, C, G,
T dense (block-encoded), N sparse (region-listed), which is the layout
genomic input with ambiguity calls wants.
*/
package seqcode

import (
	"fmt"
	"strings"

	"github.com/polyfm/fmindex/alphabet"
)

// DNAWithN returns the base alphabet A,C,G,T,N and a RangeAlphabet
// partitioning it with A,C,G,T dense (BlockComposition) and N sparse
// (RegionList), both escaping to A (base code 0) as their fallback.
func DNAWithN() (*alphabet.Alphabet, *alphabet.RangeAlphabet, error) {
	base := alphabet.NewAlphabet([]string{"A", "C", "G", "T", "N"})
	ranges := []alphabet.Range{
		{Mode: alphabet.BlockComposition, Size: 4},
		{Mode: alphabet.RegionList, Size: 1},
	}
	ra, err := alphabet.NewRangeAlphabet(base, ranges, []uint8{0, 0})
	if err != nil {
		return nil, nil, fmt.Errorf("seqcode: building DNA+N alphabet: %w", err)
	}
	return base, ra, nil
}

// Encode upper-cases sequence and maps every character to a base code
// via base.EncodeAll, failing on any symbol outside the alphabet.
func Encode(base *alphabet.Alphabet, sequence string) ([]uint8, error) {
	codes, err := base.EncodeAll(strings.ToUpper(strings.TrimSpace(sequence)))
	if err != nil {
		return nil, fmt.Errorf("seqcode: %w", err)
	}
	return codes, nil
}
