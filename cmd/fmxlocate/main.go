/*
fmxlocate loads a previously built FM-index and answers a single exact
count/locate query against it, exercising the BWT-sequence layer's
backward search and LF-mapping locate.
*/
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/polyfm/fmindex/bwtindex"
	"github.com/polyfm/fmindex/cmdutil"
	"github.com/polyfm/fmindex/eis"
	"github.com/polyfm/fmindex/seqcode"
	"github.com/urfave/cli/v2"
)

func main() {
	if err := application().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func application() *cli.App {
	return &cli.App{
		Name:  "fmxlocate",
		Usage: "Count or locate an exact match in a previously built FM-index.",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "index", Aliases: []string{"x"}, Required: true, Usage: "Base path the index was built to (without .bdx)."},
			&cli.StringFlag{Name: "query", Aliases: []string{"q"}, Required: true, Usage: "Sequence to search for."},
			&cli.BoolFlag{Name: "count-only", Usage: "Print only the match count, not every position."},
		},
		Action: locateCommand,
	}
}

func locateCommand(c *cli.Context) error {
	base := c.String("index")
	idx, closer, err := eis.OpenMmap(base + ".bdx")
	if err != nil {
		return fmt.Errorf("fmxlocate: opening %s.bdx: %w", base, err)
	}
	defer closer.Close()

	manifest, err := cmdutil.LoadManifest(base)
	if err != nil {
		return err
	}

	bwt, err := bwtindex.Wrap(idx, manifest.TerminatorFlattenedSym, manifest.TerminatorPos, manifest.Rot0Pos, nil)
	if err != nil {
		return fmt.Errorf("fmxlocate: wrapping BWT layer: %w", err)
	}
	bwt.SetLocateTable(bwtindex.NewLocateTableFromMarks(manifest.LocateMarks))

	dnaAlphabet, _, err := seqcode.DNAWithN()
	if err != nil {
		return err
	}
	query, err := seqcode.Encode(dnaAlphabet, c.String("query"))
	if err != nil {
		return fmt.Errorf("fmxlocate: encoding query: %w", err)
	}

	hint := bwt.NewHint()
	l, r := bwt.MatchBounds(query, hint)
	count := r - l
	if c.Bool("count-only") {
		fmt.Println(count)
		return nil
	}

	fmt.Printf("%d match(es)\n", count)
	for i := l; i < r; i++ {
		textPos, err := bwt.Locate(i, hint)
		if err != nil {
			return fmt.Errorf("fmxlocate: locating row %d: %w", i, err)
		}
		fmt.Println(textPos)
	}
	return nil
}
