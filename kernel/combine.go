package kernel

import (
	"fmt"
	"math"

	"github.com/ShobiStassen/cellrank/sparse"
)

// Weighted pairs a kernel with its combination weight.
type Weighted struct {
	Kernel Kernel
	Weight float64
}

// Combine computes the composite transition matrix of several kernels under
// non-negative weights summing to 1 (within tol; tol<=0 falls back to
// DefaultStochasticTol).
//
// The canonical operation order is fixed: each kernel's matrix is
// row-stochastic by contract (normalize), the weighted sum is taken with a
// deterministic accumulation order (weight), and rows are normalized once
// more (renormalize) to absorb floating-point drift. Normalizing before
// weighting prevents a kernel with an unnormalized scale from dominating the
// mixture; combining a kernel with itself under any weight split is a no-op.
//
// Errors:
//   - ErrConfig — no parts, a nil kernel, a negative weight, or weights not
//     summing to 1 within tol (the achieved sum is reported).
//   - any error from the underlying kernels, unchanged.
//
// Complexity: O(sum of kernel costs + total nnz).
func Combine(in *Inputs, parts []Weighted, tol float64) (*sparse.Matrix, error) {
	if tol <= 0 {
		tol = DefaultStochasticTol
	}
	if len(parts) == 0 {
		return nil, fmt.Errorf("%w: no kernels to combine", ErrConfig)
	}
	var wsum float64
	for p, part := range parts {
		if part.Kernel == nil {
			return nil, fmt.Errorf("%w: kernel %d is nil", ErrConfig, p)
		}
		if part.Weight < 0 || math.IsNaN(part.Weight) || math.IsInf(part.Weight, 0) {
			return nil, fmt.Errorf("%w: weight of kernel %q is %g", ErrConfig, part.Kernel.Name(), part.Weight)
		}
		wsum += part.Weight
	}
	if math.Abs(wsum-1) > tol {
		return nil, fmt.Errorf("%w: kernel weights sum to %g, want 1", ErrConfig, wsum)
	}

	ws := make([]float64, len(parts))
	ms := make([]*sparse.Matrix, len(parts))
	for p, part := range parts {
		tm, err := part.Kernel.Compute(in)
		if err != nil {
			return nil, err
		}
		ws[p] = part.Weight
		ms[p] = tm
	}

	sum, err := sparse.WeightedSum(ws, ms...)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrConfig, err)
	}
	if err = sum.NormalizeRows(); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrConfig, err)
	}

	return sum, nil
}
