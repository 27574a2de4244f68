package kernel_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/ShobiStassen/cellrank/kernel"
	"github.com/ShobiStassen/cellrank/sparse"
)

// chainConn builds the symmetric 3-cell chain 0—1—2 with unit edge weights.
func chainConn(t *testing.T) *sparse.Matrix {
	t.Helper()
	conn, err := sparse.NewFromTriplets(3, 3,
		[]int{0, 1, 1, 2},
		[]int{1, 0, 2, 1},
		[]float64{1, 1, 1, 1},
	)
	require.NoError(t, err)

	return conn
}

// chainVelocity builds a directed velocity graph aligned with 0→1→2: forward
// correlations are strongly positive, backward ones negative.
func chainVelocity(t *testing.T) *sparse.Matrix {
	t.Helper()
	vg, err := sparse.NewFromTriplets(3, 3,
		[]int{0, 1, 1, 2},
		[]int{1, 0, 2, 1},
		[]float64{0.9, -0.8, 0.9, -0.8},
	)
	require.NoError(t, err)

	return vg
}

func requireStochastic(t *testing.T, tm *sparse.Matrix) {
	t.Helper()
	require.NoError(t, tm.CheckStochastic(1e-8), "every kernel must produce a row-stochastic matrix")
}

// TestInputs_Validate_DimensionMismatch fails fast before any computation.
func TestInputs_Validate_DimensionMismatch(t *testing.T) {
	in := &kernel.Inputs{
		Connectivities: chainConn(t),
		Pseudotime:     []float64{0, 1}, // 2 cells vs 3
	}
	err := in.Validate()
	assert.ErrorIs(t, err, kernel.ErrInput)
	assert.Contains(t, err.Error(), "pseudotime")
}

// TestInputs_Validate_Empty rejects an empty bundle.
func TestInputs_Validate_Empty(t *testing.T) {
	assert.ErrorIs(t, (&kernel.Inputs{}).Validate(), kernel.ErrInput)
}

// TestInputs_GraphDiagnostics reports symmetry and connectedness.
func TestInputs_GraphDiagnostics(t *testing.T) {
	in := &kernel.Inputs{Connectivities: chainConn(t)}
	diag, err := in.GraphDiagnostics(1e-9)
	require.NoError(t, err)
	assert.True(t, diag.Symmetric)
	assert.True(t, diag.Connected)

	// Disconnected: isolated third cell.
	conn, err := sparse.NewFromTriplets(3, 3,
		[]int{0, 1}, []int{1, 0}, []float64{1, 1})
	require.NoError(t, err)
	diag, err = (&kernel.Inputs{Connectivities: conn}).GraphDiagnostics(1e-9)
	require.NoError(t, err)
	assert.False(t, diag.Connected)
}

// TestVelocity_MissingGraph fails with the computation sentinel.
func TestVelocity_MissingGraph(t *testing.T) {
	k := kernel.NewVelocity(kernel.DefaultVelocityOptions())
	_, err := k.Compute(&kernel.Inputs{Connectivities: chainConn(t)})
	assert.ErrorIs(t, err, kernel.ErrComputation)
}

// TestVelocity_MismatchedGraph fails with the computation sentinel and names
// the offending dimensions.
func TestVelocity_MismatchedGraph(t *testing.T) {
	small, err := sparse.NewFromTriplets(2, 2, []int{0}, []int{1}, []float64{1})
	require.NoError(t, err)

	in := &kernel.Inputs{
		Expression:    mat.NewDense(3, 2, nil),
		VelocityGraph: small,
	}
	_, cerr := kernel.NewVelocity(kernel.DefaultVelocityOptions()).Compute(in)
	assert.ErrorIs(t, cerr, kernel.ErrComputation)
	assert.Contains(t, cerr.Error(), "2x2")
}

// TestVelocity_ForwardBias checks row-stochasticity and that the softmax
// sends most mass along the positively correlated direction.
func TestVelocity_ForwardBias(t *testing.T) {
	in := &kernel.Inputs{VelocityGraph: chainVelocity(t)}
	tm, err := kernel.NewVelocity(kernel.DefaultVelocityOptions()).Compute(in)
	require.NoError(t, err)
	requireStochastic(t, tm)

	fwd, _ := tm.At(1, 2)
	back, _ := tm.At(1, 0)
	assert.Greater(t, fwd, back, "forward transition must dominate")

	// Row 0 has a single out-neighbor: all mass goes there.
	p01, _ := tm.At(0, 1)
	assert.InDelta(t, 1.0, p01, 1e-12)
}

// TestVelocity_SelfLoopResidual reserves the configured self-transition mass.
func TestVelocity_SelfLoopResidual(t *testing.T) {
	opts := kernel.DefaultVelocityOptions()
	opts.SelfLoop = 0.2
	in := &kernel.Inputs{VelocityGraph: chainVelocity(t)}

	tm, err := kernel.NewVelocity(opts).Compute(in)
	require.NoError(t, err)
	requireStochastic(t, tm)

	p00, _ := tm.At(0, 0)
	assert.InDelta(t, 0.2, p00, 1e-12)
}

// TestVelocity_Temperature sharpens toward the best-aligned neighbor as the
// scale shrinks.
func TestVelocity_Temperature(t *testing.T) {
	in := &kernel.Inputs{VelocityGraph: chainVelocity(t)}

	warm, err := kernel.NewVelocity(kernel.VelocityOptions{SoftmaxScale: 1}).Compute(in)
	require.NoError(t, err)
	cold, err := kernel.NewVelocity(kernel.VelocityOptions{SoftmaxScale: 0.1}).Compute(in)
	require.NoError(t, err)

	warmFwd, _ := warm.At(1, 2)
	coldFwd, _ := cold.At(1, 2)
	assert.Greater(t, coldFwd, warmFwd, "lower temperature must sharpen the softmax")
}

// TestConnectivity_SymmetricDiffusion row-normalizes edge weights.
func TestConnectivity_SymmetricDiffusion(t *testing.T) {
	in := &kernel.Inputs{Connectivities: chainConn(t)}
	tm, err := kernel.NewConnectivity(kernel.DefaultConnectivityOptions()).Compute(in)
	require.NoError(t, err)
	requireStochastic(t, tm)

	p10, _ := tm.At(1, 0)
	p12, _ := tm.At(1, 2)
	assert.Equal(t, p10, p12, "symmetric edges split row mass evenly")
}

// TestConnectivity_MissingGraph fails with the computation sentinel.
func TestConnectivity_MissingGraph(t *testing.T) {
	_, err := kernel.NewConnectivity(kernel.DefaultConnectivityOptions()).
		Compute(&kernel.Inputs{Pseudotime: []float64{0, 1, 2}})
	assert.ErrorIs(t, err, kernel.ErrComputation)
}

// TestConnectivity_IsolatedCellSelfLoop keeps the no-zero-row invariant.
func TestConnectivity_IsolatedCellSelfLoop(t *testing.T) {
	conn, err := sparse.NewFromTriplets(3, 3,
		[]int{0, 1}, []int{1, 0}, []float64{1, 1})
	require.NoError(t, err)

	tm, err := kernel.NewConnectivity(kernel.DefaultConnectivityOptions()).
		Compute(&kernel.Inputs{Connectivities: conn})
	require.NoError(t, err)
	requireStochastic(t, tm)

	p22, _ := tm.At(2, 2)
	assert.Equal(t, 1.0, p22, "isolated cell must self-loop")
}

// TestConnectivity_DensityNormalize still yields a stochastic matrix.
func TestConnectivity_DensityNormalize(t *testing.T) {
	opts := kernel.ConnectivityOptions{DensityNormalize: true}
	tm, err := kernel.NewConnectivity(opts).Compute(&kernel.Inputs{Connectivities: chainConn(t)})
	require.NoError(t, err)
	requireStochastic(t, tm)
}

// TestPseudotime_ForwardBias damps backward edges in soft mode and removes
// them in hard mode.
func TestPseudotime_ForwardBias(t *testing.T) {
	in := &kernel.Inputs{
		Connectivities: chainConn(t),
		Pseudotime:     []float64{0, 1, 2},
	}

	soft, err := kernel.NewPseudotime(kernel.DefaultPseudotimeOptions()).Compute(in)
	require.NoError(t, err)
	requireStochastic(t, soft)
	fwd, _ := soft.At(1, 2)
	back, _ := soft.At(1, 0)
	assert.Greater(t, fwd, back)
	assert.Greater(t, back, 0.0, "soft mode keeps damped backward mass")

	hardOpts := kernel.DefaultPseudotimeOptions()
	hardOpts.Hard = true
	hard, err := kernel.NewPseudotime(hardOpts).Compute(in)
	require.NoError(t, err)
	requireStochastic(t, hard)
	fwd, _ = hard.At(1, 2)
	back, _ = hard.At(1, 0)
	assert.Equal(t, 1.0, fwd)
	assert.Equal(t, 0.0, back, "hard mode drops backward edges")
}

// TestPseudotime_TerminalCellSelfLoops verifies the last cell in hard mode
// self-loops instead of losing all mass.
func TestPseudotime_TerminalCellSelfLoops(t *testing.T) {
	opts := kernel.DefaultPseudotimeOptions()
	opts.Hard = true
	in := &kernel.Inputs{
		Connectivities: chainConn(t),
		Pseudotime:     []float64{0, 1, 2},
	}

	tm, err := kernel.NewPseudotime(opts).Compute(in)
	require.NoError(t, err)

	p22, _ := tm.At(2, 2)
	assert.Equal(t, 1.0, p22)
}

// TestPseudotime_NonFinite rejects NaN pseudotime, naming the cell.
func TestPseudotime_NonFinite(t *testing.T) {
	in := &kernel.Inputs{
		Connectivities: chainConn(t),
		Pseudotime:     []float64{0, math.NaN(), 2},
	}
	_, err := kernel.NewPseudotime(kernel.DefaultPseudotimeOptions()).Compute(in)
	assert.ErrorIs(t, err, kernel.ErrInput)
	assert.Contains(t, err.Error(), "cell 1")
}

// TestPseudotime_AllTied rejects an ordering with no usable direction.
func TestPseudotime_AllTied(t *testing.T) {
	in := &kernel.Inputs{
		Connectivities: chainConn(t),
		Pseudotime:     []float64{1, 1, 1},
	}
	_, err := kernel.NewPseudotime(kernel.DefaultPseudotimeOptions()).Compute(in)
	assert.ErrorIs(t, err, kernel.ErrInput)
	assert.Contains(t, err.Error(), "ties")
}

// TestKernels_Deterministic recomputes each variant and requires identical
// matrices (kernels are pure functions).
func TestKernels_Deterministic(t *testing.T) {
	in := &kernel.Inputs{
		Connectivities: chainConn(t),
		VelocityGraph:  chainVelocity(t),
		Pseudotime:     []float64{0, 1, 2},
	}
	kernels := []kernel.Kernel{
		kernel.NewVelocity(kernel.DefaultVelocityOptions()),
		kernel.NewConnectivity(kernel.DefaultConnectivityOptions()),
		kernel.NewPseudotime(kernel.DefaultPseudotimeOptions()),
	}
	for _, k := range kernels {
		a, err := k.Compute(in)
		require.NoError(t, err, k.Name())
		b, err := k.Compute(in)
		require.NoError(t, err, k.Name())
		assert.True(t, mat.EqualApprox(a.Dense(), b.Dense(), 0), "%s must be deterministic", k.Name())
	}
}
