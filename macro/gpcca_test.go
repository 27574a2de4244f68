package macro_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/ShobiStassen/cellrank/macro"
	"github.com/ShobiStassen/cellrank/sparse"
)

// fromRows builds a sparse matrix from explicit dense rows.
func fromRows(t *testing.T, rows [][]float64) *sparse.Matrix {
	t.Helper()
	n, c := len(rows), len(rows[0])
	d := mat.NewDense(n, c, nil)
	for i, r := range rows {
		d.SetRow(i, r)
	}
	m, err := sparse.NewFromDense(d, 0)
	require.NoError(t, err)
	return m
}

// lineChain is a 3-cell chain with an absorbing tail: eigenvalue 0.5 is
// defective, so the subspace iteration converges slowly and tests adjust
// their budgets accordingly.
func lineChain(t *testing.T) *sparse.Matrix {
	return fromRows(t, [][]float64{
		{0.5, 0.5, 0},
		{0, 0.5, 0.5},
		{0, 0, 1},
	})
}

// forkedChain is a 4-cell chain whose first two cells are a near-duplicate
// metastable pair feeding a transient cell and an absorbing one.
func forkedChain(t *testing.T) *sparse.Matrix {
	return fromRows(t, [][]float64{
		{0.44, 0.45, 0.11, 0},
		{0.45, 0.44, 0.11, 0},
		{0, 0, 0.5, 0.5},
		{0, 0, 0, 1},
	})
}

func TestGPCCA_LineChain(t *testing.T) {
	// The defective eigenvalue makes the subspace converge slowly, so the
	// budget is raised and the tolerance tightened to squeeze the residual
	// subspace error below the assertion deltas.
	opts := macro.DefaultOptions()
	opts.States = 2
	opts.Tol = 1e-12
	opts.MaxIter = 100000

	d, err := macro.GPCCA(lineChain(t), opts)
	require.NoError(t, err)
	require.Len(t, d.States, 2)

	assert.Equal(t, []int{0, 1, 1}, d.Assignments)
	assert.Equal(t, macro.KindInitial, d.States[0].Kind)
	assert.Equal(t, macro.KindTerminal, d.States[1].Kind)

	assert.InDelta(t, 0.5, d.States[0].Stability, 0.02)
	assert.InDelta(t, 1.0, d.States[1].Stability, 0.02)
	assert.InDelta(t, 1.0, d.States[1].StationaryProb, 0.01)

	assert.InDelta(t, 1.0, real(d.Eigenvalues[0]), 1e-4)
	assert.InDelta(t, 0.5, real(d.Eigenvalues[1]), 0.02)

	// Memberships are near-indicators and rows sum to one.
	for i := 0; i < 3; i++ {
		sum := d.Memberships.At(i, 0) + d.Memberships.At(i, 1)
		assert.InDelta(t, 1.0, sum, 1e-9)
	}
	assert.InDelta(t, 1.0, d.Memberships.At(0, 0), 0.05)
	assert.InDelta(t, 1.0, d.Memberships.At(2, 1), 0.05)
}

func TestGPCCA_AutoSelectsEigengap(t *testing.T) {
	d, err := macro.GPCCA(forkedChain(t), macro.DefaultOptions())
	require.NoError(t, err)

	// Spectrum is 1, 0.89, 0.5, -0.01: the largest gap sits below the
	// second eigenvalue.
	require.Len(t, d.States, 2)
	assert.Nil(t, d.Warning)
	assert.Equal(t, []int{0, 0, 1, 1}, d.Assignments)
	assert.Equal(t, macro.KindInitial, d.States[0].Kind)
	assert.Equal(t, macro.KindTerminal, d.States[1].Kind)
	assert.InDelta(t, 0.89, d.States[0].Stability, 0.02)
}

func TestGPCCA_MergesNearDuplicateStates(t *testing.T) {
	opts := macro.DefaultOptions()
	opts.States = 4
	opts.MergeTol = 0.02

	d, err := macro.GPCCA(forkedChain(t), opts)
	require.NoError(t, err)

	// Cells 0 and 1 have coarse rows 0.01 apart, within the merge
	// tolerance, so four requested states collapse to three.
	require.Len(t, d.States, 3)
	assert.Equal(t, []int{0, 0, 1, 2}, d.Assignments)
	assert.Equal(t, macro.KindInitial, d.States[0].Kind)
	assert.Equal(t, macro.KindTransient, d.States[1].Kind)
	assert.Equal(t, macro.KindTerminal, d.States[2].Kind)
	assert.InDelta(t, 0.89, d.States[0].Stability, 1e-9)
	assert.InDelta(t, 0.5, d.States[1].Stability, 1e-9)
}

func TestGPCCA_Deterministic(t *testing.T) {
	opts := macro.DefaultOptions()
	opts.States = 2

	a, err := macro.GPCCA(forkedChain(t), opts)
	require.NoError(t, err)
	b, err := macro.GPCCA(forkedChain(t), opts)
	require.NoError(t, err)

	assert.True(t, mat.Equal(a.Memberships, b.Memberships))
	assert.True(t, mat.Equal(a.Coarse, b.Coarse))
	assert.Equal(t, a.Assignments, b.Assignments)
	assert.Equal(t, a.Eigenvalues, b.Eigenvalues)
}

func TestGPCCA_AmbiguityWarning(t *testing.T) {
	opts := macro.DefaultOptions()
	opts.States = 2
	opts.GapMargin = 0.5 // eigengap here is 0.39

	d, err := macro.GPCCA(forkedChain(t), opts)
	require.NoError(t, err)
	require.NotNil(t, d.Warning)
	assert.Equal(t, 2, d.Warning.States)
	assert.InDelta(t, 0.39, d.Warning.Gap, 1e-6)
	assert.Contains(t, d.Warning.String(), "unstable")
}

func TestGPCCA_RankDeficient(t *testing.T) {
	// Rank-one chain: every row is uniform, so no second spectral
	// dimension exists.
	third := 1.0 / 3.0
	p := fromRows(t, [][]float64{
		{third, third, third},
		{third, third, third},
		{third, third, third},
	})
	opts := macro.DefaultOptions()
	opts.States = 2

	_, err := macro.GPCCA(p, opts)
	require.ErrorIs(t, err, macro.ErrConfig)
}

func TestGPCCA_StateCountOutOfRange(t *testing.T) {
	p := lineChain(t)
	for _, states := range []int{-1, 1, 5} {
		opts := macro.DefaultOptions()
		opts.States = states
		_, err := macro.GPCCA(p, opts)
		assert.ErrorIs(t, err, macro.ErrConfig, "states=%d", states)
	}
}

func TestGPCCA_InvalidInput(t *testing.T) {
	_, err := macro.GPCCA(nil, macro.DefaultOptions())
	require.ErrorIs(t, err, macro.ErrInput)

	bad := fromRows(t, [][]float64{
		{0.9, 0},
		{0, 1},
	})
	_, err = macro.GPCCA(bad, macro.DefaultOptions())
	require.ErrorIs(t, err, macro.ErrInput)
}
