package risk

import "errors"

// Sentinel errors separate recoverable market-data problems from internal
// invariant violations and caller misuse. Callers branch with errors.Is
// instead of parsing messages.
var (
	// ErrInsufficientHistory signals fewer aligned observations or fewer
	// assets than the engine needs. The report assembler degrades it into
	// a zero report with the Error field set.
	ErrInsufficientHistory = errors.New("insufficient price history")

	// ErrAlignment signals that per-asset return series diverged in length
	// after alignment. It marks an internal invariant violation and is
	// logged at error level, never silently defaulted.
	ErrAlignment = errors.New("aligned return series length mismatch")

	// ErrDimensionMismatch signals incompatible matrix or vector shapes
	// and indicates caller misuse of the linear algebra primitives.
	ErrDimensionMismatch = errors.New("dimension mismatch")
)
