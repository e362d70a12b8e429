package verify

import (
	"errors"
	"fmt"

	"github.com/polyfm/fmindex/eis"
)

// ExitCode is the verifier tool's process exit status: zero on
// success, non-zero on the first detected discrepancy, one value per
// discrepancy category.
type ExitCode int

const (
	ExitNoError ExitCode = iota
	ExitSufvalError
	ExitLFMapWalkError
	ExitTerminatorError
	ExitContextError
	ExitConfigError
	ExitIOError
	ExitFormatError
)

// MismatchKind names the specific disagreement an IntegrityMismatchError
// reports.
type MismatchKind int

const (
	LengthMismatch MismatchKind = iota
	LocateValueMismatch
	TerminatorPositionMismatch
	LFWalkSymbolMismatch
	ContextSymbolMismatch
	ContextMapLoadFailure
	LFWalkWithoutReversibility
)

func (k MismatchKind) String() string {
	switch k {
	case LengthMismatch:
		return "length mismatch"
	case LocateValueMismatch:
		return "locate value mismatch"
	case TerminatorPositionMismatch:
		return "terminator position mismatch"
	case LFWalkSymbolMismatch:
		return "LF-walk symbol mismatch"
	case ContextSymbolMismatch:
		return "context-regeneration symbol mismatch"
	case ContextMapLoadFailure:
		return "context-map load failure"
	case LFWalkWithoutReversibility:
		return "LF-walk requested without reversibility"
	default:
		return "unknown mismatch"
	}
}

func (k MismatchKind) exitCode() ExitCode {
	switch k {
	case LocateValueMismatch, LengthMismatch:
		return ExitSufvalError
	case LFWalkSymbolMismatch, LFWalkWithoutReversibility:
		return ExitLFMapWalkError
	case TerminatorPositionMismatch:
		return ExitTerminatorError
	case ContextSymbolMismatch, ContextMapLoadFailure:
		return ExitContextError
	default:
		return ExitSufvalError
	}
}

// IntegrityMismatchError reports that a Verifier found the index
// disagreeing with its reference suffix array, BWT stream, or text.
type IntegrityMismatchError struct {
	Kind   MismatchKind
	Detail string
}

func (e *IntegrityMismatchError) Error() string {
	return fmt.Sprintf("verify: %s: %s", e.Kind, e.Detail)
}

// ExitCodeFor maps err (as returned by Verifier.Run) to the process
// exit status a CLI should report.
func ExitCodeFor(err error) ExitCode {
	if err == nil {
		return ExitNoError
	}
	var mismatch *IntegrityMismatchError
	if errors.As(err, &mismatch) {
		return mismatch.Kind.exitCode()
	}
	var ioErr *eis.IOError
	if errors.As(err, &ioErr) {
		return ExitIOError
	}
	var formatErr *eis.FormatCorruptionError
	if errors.As(err, &formatErr) {
		return ExitFormatError
	}
	var cfgErr *eis.ConfigurationError
	if errors.As(err, &cfgErr) {
		return ExitConfigError
	}
	return ExitSufvalError
}
