package kernel

import (
	"errors"
	"fmt"

	"github.com/ShobiStassen/cellrank/sparse"
)

// Precomputed wraps an externally supplied transition matrix. No transition
// structure is computed; the kernel only validates stochasticity.
//
// Two documented policies exist for rows whose sums drift from 1:
//   - strict (default): reject with ErrInput naming the row and its sum;
//   - lenient: deterministically renormalize each row.
//
// Negative entries and massless rows are rejected under both policies.
type Precomputed struct {
	Opts PrecomputedOptions
}

// NewPrecomputed returns a precomputed kernel; a non-positive Tol falls back
// to DefaultStochasticTol.
func NewPrecomputed(opts PrecomputedOptions) *Precomputed {
	if opts.Tol <= 0 {
		opts.Tol = DefaultStochasticTol
	}

	return &Precomputed{Opts: opts}
}

// Name implements Kernel.
func (*Precomputed) Name() string { return "precomputed" }

// Compute implements Kernel.
//
// Errors:
//   - ErrComputation — no precomputed matrix supplied.
//   - ErrInput       — non-square shape, negative entries, massless rows, or
//     (strict mode) row sums off by more than Tol.
//
// Complexity: O(nnz).
func (k *Precomputed) Compute(in *Inputs) (*sparse.Matrix, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	pm := in.Precomputed
	if pm == nil {
		return nil, fmt.Errorf("%w: precomputed kernel requires a transition matrix", ErrComputation)
	}

	err := pm.CheckStochastic(k.Opts.Tol)
	switch {
	case err == nil:
		return pm.Clone(), nil
	case errors.Is(err, sparse.ErrNotStochastic) && !k.Opts.Strict:
		// Lenient mode: drift in row sums is repaired by renormalization.
		tm := pm.Clone()
		if nerr := tm.NormalizeRows(); nerr != nil {
			return nil, fmt.Errorf("%w: %s", ErrInput, nerr)
		}
		// Renormalization fixes drift only; negativity surfaced here would
		// have been masked by a compensating row sum.
		if nerr := tm.CheckStochastic(k.Opts.Tol); nerr != nil {
			return nil, fmt.Errorf("%w: %s", ErrInput, nerr)
		}
		return tm, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrInput, err)
	}
}
