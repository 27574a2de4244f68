package fate

import "errors"

var (
	// ErrInput is returned for malformed inputs: nil matrices, nil
	// decompositions, or shape mismatches between them.
	ErrInput = errors.New("fate: invalid input")

	// ErrConfig is returned when the decomposition carries no terminal
	// macrostate, so there is nothing to absorb into.
	ErrConfig = errors.New("fate: no terminal macrostates")

	// ErrUnreachable is returned when one or more transient cells have no
	// path to any absorbing cell; the absorbing-chain system is singular for
	// such cells. The message names the first offenders.
	ErrUnreachable = errors.New("fate: terminal states unreachable")

	// ErrNotConverged is returned when the linear solver exhausts its sweep
	// budget; the message carries the residual actually achieved.
	ErrNotConverged = errors.New("fate: solver did not converge")
)
