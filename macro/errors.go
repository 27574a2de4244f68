package macro

import "errors"

var (
	// ErrInput is returned for malformed inputs: nil or non-stochastic
	// transition matrices.
	ErrInput = errors.New("macro: invalid input")

	// ErrConfig is returned when the requested configuration is incompatible
	// with the data, e.g. more macrostates than the numerical rank of the
	// retained spectral subspace supports, or a cut through a complex
	// conjugate eigenvalue pair.
	ErrConfig = errors.New("macro: invalid configuration")

	// ErrNotConverged is returned when an iterative routine exhausts its
	// budget; the message carries the achieved residual and iteration count.
	// The failure is never retried internally with different parameters.
	ErrNotConverged = errors.New("macro: iteration did not converge")
)
