package kernel_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ShobiStassen/cellrank/kernel"
	"github.com/ShobiStassen/cellrank/sparse"
)

// nearStochastic returns a 2-cell matrix whose first row sums to 0.95.
func nearStochastic(t *testing.T) *sparse.Matrix {
	t.Helper()
	m, err := sparse.NewFromTriplets(2, 2,
		[]int{0, 0, 1},
		[]int{0, 1, 1},
		[]float64{0.45, 0.5, 1.0},
	)
	require.NoError(t, err)

	return m
}

// TestPrecomputed_ValidPassThrough wraps an already-stochastic matrix
// verbatim.
func TestPrecomputed_ValidPassThrough(t *testing.T) {
	tm, err := sparse.NewFromTriplets(2, 2,
		[]int{0, 0, 1},
		[]int{0, 1, 1},
		[]float64{0.5, 0.5, 1.0},
	)
	require.NoError(t, err)

	out, err := kernel.NewPrecomputed(kernel.DefaultPrecomputedOptions()).
		Compute(&kernel.Inputs{Precomputed: tm})
	require.NoError(t, err)
	require.NoError(t, out.CheckStochastic(1e-12))

	v, _ := out.At(0, 1)
	assert.Equal(t, 0.5, v)
}

// TestPrecomputed_StrictRejects: strict mode fails a 0.95-row with ErrInput.
func TestPrecomputed_StrictRejects(t *testing.T) {
	in := &kernel.Inputs{Precomputed: nearStochastic(t)}
	_, err := kernel.NewPrecomputed(kernel.DefaultPrecomputedOptions()).Compute(in)
	assert.ErrorIs(t, err, kernel.ErrInput)
	assert.Contains(t, err.Error(), "0.95", "achieved row sum must be reported")
}

// TestPrecomputed_LenientRenormalizes: lenient mode repairs the same matrix
// deterministically.
func TestPrecomputed_LenientRenormalizes(t *testing.T) {
	in := &kernel.Inputs{Precomputed: nearStochastic(t)}
	opts := kernel.PrecomputedOptions{Strict: false, Tol: 1e-8}

	out, err := kernel.NewPrecomputed(opts).Compute(in)
	require.NoError(t, err)
	require.NoError(t, out.CheckStochastic(1e-12))

	v, _ := out.At(0, 0)
	assert.InDelta(t, 0.45/0.95, v, 1e-15)

	// Input must stay untouched: kernels never mutate their inputs.
	v, _ = in.Precomputed.At(0, 0)
	assert.Equal(t, 0.45, v)
}

// TestPrecomputed_NegativeAlwaysRejected: lenient mode is about drift, not
// about sign violations.
func TestPrecomputed_NegativeAlwaysRejected(t *testing.T) {
	bad, err := sparse.NewFromTriplets(2, 2,
		[]int{0, 0, 1},
		[]int{0, 1, 1},
		[]float64{1.5, -0.5, 1.0},
	)
	require.NoError(t, err)

	for _, strict := range []bool{true, false} {
		_, cerr := kernel.NewPrecomputed(kernel.PrecomputedOptions{Strict: strict, Tol: 1e-8}).
			Compute(&kernel.Inputs{Precomputed: bad})
		assert.ErrorIs(t, cerr, kernel.ErrInput, "strict=%v", strict)
	}
}

// TestPrecomputed_Missing fails with the computation sentinel.
func TestPrecomputed_Missing(t *testing.T) {
	_, err := kernel.NewPrecomputed(kernel.DefaultPrecomputedOptions()).
		Compute(&kernel.Inputs{Pseudotime: []float64{0, 1}})
	assert.ErrorIs(t, err, kernel.ErrComputation)
}
