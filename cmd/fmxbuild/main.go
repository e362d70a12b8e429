/*
fmxbuild indexes a FASTA sequence, writing a block-compressed EIS
(.bdx), a context map (.<stride>cxm), and a manifest sidecar carrying
the BWT-layer metadata those two files don't.

A package-level application() builds the *cli.App; main does nothing
but run it.
*/
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/polyfm/fmindex/bwtindex"
	"github.com/polyfm/fmindex/cmdutil"
	"github.com/polyfm/fmindex/context"
	"github.com/polyfm/fmindex/eis"
	"github.com/urfave/cli/v2"
)

func main() {
	if err := application().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func application() *cli.App {
	return &cli.App{
		Name:  "fmxbuild",
		Usage: "Build an FM-index from a FASTA sequence.",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "input", Aliases: []string{"i"}, Required: true, Usage: "FASTA file to index."},
			&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Required: true, Usage: "Base path for the .bdx, context map, and manifest files."},
			&cli.IntFlag{Name: "block-size", Value: 8, Usage: "Symbols per block."},
			&cli.IntFlag{Name: "blocks-per-bucket", Value: 4, Usage: "Blocks per bucket."},
			&cli.IntFlag{Name: "map-interval-log2", Value: context.AutoSize, Usage: "Context map sampling exponent; -1 chooses one automatically."},
			&cli.IntFlag{Name: "locate-stride", Value: 16, Usage: "Sample every Nth text position into the locate table."},
		},
		Action: buildCommand,
	}
}

func buildCommand(c *cli.Context) error {
	_, ra, codes, err := cmdutil.ReadFirstSequence(c.String("input"))
	if err != nil {
		return err
	}

	nb, err := eis.BuildNaiveBWT(codes)
	if err != nil {
		return fmt.Errorf("fmxbuild: computing BWT: %w", err)
	}

	params := eis.Params{
		SeqLen:          len(nb.Symbols),
		BlockSize:       c.Int("block-size"),
		BlocksPerBucket: c.Int("blocks-per-bucket"),
		Alphabet:        ra,
		BlockFallback:   0,
		RegionFallback:  0,
	}
	idx, err := eis.Build(eis.NewSliceSource(nb.Symbols), params)
	if err != nil {
		return fmt.Errorf("fmxbuild: building index: %w", err)
	}

	out := c.String("output")
	if err := writeIndex(idx, out); err != nil {
		return err
	}

	bwt, err := bwtindex.Wrap(idx, nb.TerminatorFlattenedSym, nb.TerminatorPos, nb.Rot0Pos, nil)
	if err != nil {
		return fmt.Errorf("fmxbuild: wrapping BWT layer: %w", err)
	}
	stride := c.Int("locate-stride")
	policy := make([]bwtindex.RangeLocate, ra.GetNumRanges())
	for i := range policy {
		policy[i] = bwtindex.RangeLocate{Policy: bwtindex.LocateSampled, Stride: stride}
	}
	locate, err := bwtindex.BuildLocateTable(idx, eis.NewSliceSuffixArraySource(nb.SuffixArray), policy)
	if err != nil {
		return fmt.Errorf("fmxbuild: building locate table: %w", err)
	}
	bwt.SetLocateTable(locate)

	factory, err := context.NewFactory(len(codes), c.Int("map-interval-log2"))
	if err != nil {
		return fmt.Errorf("fmxbuild: creating context factory: %w", err)
	}
	if err := factory.ObserveAll(eis.NewSliceSuffixArraySource(nb.SuffixArray)); err != nil {
		return fmt.Errorf("fmxbuild: observing suffix array: %w", err)
	}
	table := factory.Finalize()
	if err := table.Save(out); err != nil {
		return fmt.Errorf("fmxbuild: saving context map: %w", err)
	}

	manifest := cmdutil.Manifest{
		TerminatorFlattenedSym: nb.TerminatorFlattenedSym,
		TerminatorPos:          nb.TerminatorPos,
		Rot0Pos:                nb.Rot0Pos,
		MapIntervalLog2:        table.MapIntervalLog2(),
		LocateStride:           stride,
		LocateMarks:            locate.Marks(),
	}
	if err := manifest.Save(out); err != nil {
		return err
	}

	fmt.Printf("built %s.bdx (%d rows), %s.%dcxm, %s.manifest.json\n", out, idx.SeqLen(), out, table.MapIntervalLog2(), out)
	return nil
}

func writeIndex(idx *eis.Index, out string) error {
	f, err := os.Create(out + ".bdx")
	if err != nil {
		return fmt.Errorf("fmxbuild: creating %s.bdx: %w", out, err)
	}
	defer f.Close()
	if _, err := idx.WriteTo(f); err != nil {
		return fmt.Errorf("fmxbuild: writing index: %w", err)
	}
	return f.Close()
}
