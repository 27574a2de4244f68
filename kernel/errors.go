package kernel

import "errors"

// Sentinel errors for kernel construction. Wrapped with context at the
// failure site; match with errors.Is.
var (
	// ErrInput is returned for malformed or mutually inconsistent caller
	// inputs: dimension mismatches, non-finite pseudotime, degenerate
	// orderings, non-stochastic precomputed matrices in strict mode.
	ErrInput = errors.New("kernel: invalid input")

	// ErrComputation is returned when a kernel cannot run because a signal it
	// requires is absent or structurally unusable (e.g. the velocity kernel
	// without a velocity graph).
	ErrComputation = errors.New("kernel: computation failed")

	// ErrConfig is returned for invalid kernel configuration, e.g. a
	// combination weight vector that is negative or does not sum to 1.
	ErrConfig = errors.New("kernel: invalid configuration")
)
