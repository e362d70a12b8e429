/*
Package verify implements the integrity verifier: an independent checker
that re-loads a reference suffix array, BWT symbol stream, and original
text, then replays locate, LF-walk, and context-retrieval queries
against the index under test, reporting the first disagreement it finds.

Run recovers panics into reported findings: a corrupt bucket deep
inside an EIS query can panic (a malformed composition index, an
out-of-range permutation) rather than return an error, and a verifier's
whole purpose is to survive that and report it instead of crashing.
*/
package verify

import (
	"fmt"

	"github.com/polyfm/fmindex/bwtindex"
	"github.com/polyfm/fmindex/context"
)

// Flags selects which categories of checks Run performs, mirroring the
// verifier tool's SUFVAL, LFMAPWALK, and CONTEXT command-line flags.
type Flags uint

const (
	FlagSufval Flags = 1 << iota
	FlagLFMapWalk
	FlagContext
)

// Reference is the independent source of truth a Verifier replays
// queries against - built by an external collaborator (see
// eis.BuildNaiveBWT) entirely outside the index under test, never
// derived from it.
type Reference struct {
	// SuffixArray holds, per BWT row, the text position the reference
	// producer computed that row's rotation to start at.
	SuffixArray []int
	// Text is the original sequence (base-alphabet codes), used by the
	// LF-walk and context checks.
	Text []uint8
}

// Verifier replays Locate, LF-walk, and context-retrieval queries
// against a Reference, comparing every result to the reference's own
// answer.
type Verifier struct {
	bwt       *bwtindex.BWT
	retriever *context.Retriever
	ref       Reference
}

// New builds a Verifier checking bwt against ref. retriever may be nil
// if the caller never intends to pass FlagContext to Run.
func New(bwt *bwtindex.BWT, ref Reference, retriever *context.Retriever) *Verifier {
	return &Verifier{bwt: bwt, ref: ref, retriever: retriever}
}

// Run performs every check flags selects, in SUFVAL, LFMAPWALK, CONTEXT
// order, stopping at and returning the first discrepancy. A nil return
// is VERIFY_NO_ERROR; otherwise pass the result to ExitCodeFor.
func (v *Verifier) Run(flags Flags) (err error) {
	defer recoverAsMismatch(&err)

	if flags&FlagSufval != 0 {
		if err = v.checkSufval(); err != nil {
			return err
		}
	}
	if flags&FlagLFMapWalk != 0 {
		if err = v.checkLFMapWalk(); err != nil {
			return err
		}
	}
	if flags&FlagContext != 0 {
		if err = v.checkContext(); err != nil {
			return err
		}
	}
	return nil
}

func recoverAsMismatch(err *error) {
	if r := recover(); r != nil {
		*err = &IntegrityMismatchError{Kind: LFWalkSymbolMismatch, Detail: fmt.Sprintf("internal error during verification: %v", r)}
	}
}

// checkSufval checks the terminator position against the reference
// suffix array, then every directly- or sampled-locate-marked BWT row's
// Locate result against it.
func (v *Verifier) checkSufval() error {
	n := v.bwt.SeqLen()
	if len(v.ref.SuffixArray) != n {
		return &IntegrityMismatchError{
			Kind:   LengthMismatch,
			Detail: fmt.Sprintf("reference suffix array has %d entries, index has %d rows", len(v.ref.SuffixArray), n),
		}
	}

	if err := v.checkTerminatorPosition(); err != nil {
		return err
	}

	hint := v.bwt.NewHint()
	for i := 0; i < n; i++ {
		if !v.bwt.HasLocate(i) {
			continue
		}
		got, err := v.bwt.Locate(i, hint)
		if err != nil {
			return &IntegrityMismatchError{Kind: LocateValueMismatch, Detail: fmt.Sprintf("row %d: %v", i, err)}
		}
		if want := v.ref.SuffixArray[i]; got != want {
			return &IntegrityMismatchError{
				Kind:   LocateValueMismatch,
				Detail: fmt.Sprintf("row %d: locate returned %d, reference suffix array says %d", i, got, want),
			}
		}
	}
	return nil
}

func (v *Verifier) checkTerminatorPosition() error {
	for row, textPos := range v.ref.SuffixArray {
		if textPos != 0 {
			continue
		}
		if row != v.bwt.TerminatorPos() {
			return &IntegrityMismatchError{
				Kind:   TerminatorPositionMismatch,
				Detail: fmt.Sprintf("index places the terminator at row %d, reference suffix array says row %d", v.bwt.TerminatorPos(), row),
			}
		}
		return nil
	}
	return &IntegrityMismatchError{Kind: TerminatorPositionMismatch, Detail: "reference suffix array has no row for text position 0"}
}

// checkLFMapWalk asserts P6: starting from the terminator row and
// applying LF exactly N times (N the real text length) yields the text
// of T in reverse.
func (v *Verifier) checkLFMapWalk() error {
	realN := v.bwt.SeqLen() - 1
	if realN != len(v.ref.Text) {
		return &IntegrityMismatchError{
			Kind:   LengthMismatch,
			Detail: fmt.Sprintf("index covers %d real text positions, reference text has %d", realN, len(v.ref.Text)),
		}
	}

	hint := v.bwt.NewHint()
	cur := v.bwt.TerminatorPos()
	for i := 0; i < realN; i++ {
		next, err := v.bwt.LF(cur, hint)
		if err != nil {
			return &IntegrityMismatchError{Kind: LFWalkWithoutReversibility, Detail: err.Error()}
		}
		cur = next

		textPos := realN - 1 - i
		got := v.bwt.Index().Access(cur, hint)
		if want := v.ref.Text[textPos]; got != want {
			return &IntegrityMismatchError{
				Kind:   LFWalkSymbolMismatch,
				Detail: fmt.Sprintf("text position %d: LF-walk produced symbol %d, reference text says %d", textPos, got, want),
			}
		}
	}
	return nil
}

// checkContext asserts P7 over a deterministic sweep of (start, length)
// windows: length-1 windows at every text position (every n/256-th
// position once n exceeds 256), plus the whole sequence, enough to catch
// a misconfigured stride or a corrupt sampling
// table without paying for the full O(N^2) sweep P7 quantifies over.
func (v *Verifier) checkContext() error {
	if v.retriever == nil {
		return &IntegrityMismatchError{Kind: ContextMapLoadFailure, Detail: "context flag requested but no retriever was wired into the verifier"}
	}

	text := v.ref.Text
	hint := v.bwt.NewHint()
	out := make([]uint8, len(text))
	for _, w := range contextCheckWindows(len(text)) {
		buf := out[:w.length]
		if err := v.retriever.AccessSubsequence(w.start, w.length, buf, hint); err != nil {
			return &IntegrityMismatchError{
				Kind:   ContextMapLoadFailure,
				Detail: fmt.Sprintf("start=%d length=%d: %v", w.start, w.length, err),
			}
		}
		for i, got := range buf {
			if want := text[w.start+i]; got != want {
				return &IntegrityMismatchError{
					Kind:   ContextSymbolMismatch,
					Detail: fmt.Sprintf("text position %d: context retrieval produced symbol %d, reference text says %d", w.start+i, got, want),
				}
			}
		}
	}
	return nil
}

type window struct{ start, length int }

// contextCheckWindows returns a deterministic sweep of windows covering
// the whole sequence, thinned to a fixed stride once n grows past 256 so
// a verifier pass over a large sequence stays proportionate.
func contextCheckWindows(n int) []window {
	if n == 0 {
		return nil
	}
	windows := []window{{0, n}}
	stride := 1
	if n > 256 {
		stride = n / 256
	}
	for start := 0; start < n; start += stride {
		windows = append(windows, window{start, 1})
	}
	return windows
}
