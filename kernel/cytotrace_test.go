package kernel_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/ShobiStassen/cellrank/kernel"
	"github.com/ShobiStassen/cellrank/sparse"
)

// diversityExpression builds a 4-cell × 6-gene matrix where earlier cells
// express strictly more genes: cell 0 is naive (all genes on), cell 3 is
// mature (one gene on).
func diversityExpression() *mat.Dense {
	return mat.NewDense(4, 6, []float64{
		5, 4, 3, 2, 2, 1,
		4, 3, 2, 1, 1, 0,
		3, 2, 1, 0, 0, 0,
		2, 0, 0, 0, 0, 0,
	})
}

// chainConn4 builds the symmetric 4-cell chain 0—1—2—3.
func chainConn4(t *testing.T) *sparse.Matrix {
	t.Helper()
	conn, err := sparse.NewFromTriplets(4, 4,
		[]int{0, 1, 1, 2, 2, 3},
		[]int{1, 0, 2, 1, 3, 2},
		[]float64{1, 1, 1, 1, 1, 1},
	)
	require.NoError(t, err)

	return conn
}

// TestCytoTRACE_ScoreOrdersByDiversity: the score must decrease from the
// naive cell to the mature cell and span [0,1].
func TestCytoTRACE_ScoreOrdersByDiversity(t *testing.T) {
	in := &kernel.Inputs{
		Expression:     diversityExpression(),
		Connectivities: chainConn4(t),
	}
	k := kernel.NewCytoTRACE(kernel.DefaultCytoTRACEOptions())

	score, err := k.Score(in)
	require.NoError(t, err)
	require.Len(t, score, 4)

	assert.Equal(t, 1.0, score[0], "most plastic cell scores 1 after min-max normalization")
	assert.Equal(t, 0.0, score[3], "most mature cell scores 0")
	for i := 0; i < 3; i++ {
		assert.Greater(t, score[i], score[i+1], "score must decrease along maturation")
	}
}

// TestCytoTRACE_DirectsChainForward: the derived pseudotime (1 - score) must
// bias transitions toward the mature end of the chain.
func TestCytoTRACE_DirectsChainForward(t *testing.T) {
	in := &kernel.Inputs{
		Expression:     diversityExpression(),
		Connectivities: chainConn4(t),
	}
	tm, err := kernel.NewCytoTRACE(kernel.DefaultCytoTRACEOptions()).Compute(in)
	require.NoError(t, err)
	require.NoError(t, tm.CheckStochastic(1e-8))

	for i := 1; i <= 2; i++ {
		fwd, _ := tm.At(i, i+1)
		back, _ := tm.At(i, i-1)
		assert.Greater(t, fwd, back, "cell %d must prefer its more mature neighbor", i)
	}
}

// TestCytoTRACE_Aggregations: every aggregation mode produces a valid score.
func TestCytoTRACE_Aggregations(t *testing.T) {
	in := &kernel.Inputs{
		Expression:     diversityExpression(),
		Connectivities: chainConn4(t),
	}
	for _, agg := range []kernel.Aggregation{
		kernel.AggMean, kernel.AggMedian, kernel.AggGMean, kernel.AggHMean,
	} {
		opts := kernel.DefaultCytoTRACEOptions()
		opts.Aggregation = agg
		score, err := kernel.NewCytoTRACE(opts).Score(in)
		require.NoError(t, err, "aggregation %v", agg)
		assert.Equal(t, 1.0, score[0], "aggregation %v", agg)
		assert.Equal(t, 0.0, score[3], "aggregation %v", agg)
	}
}

// TestCytoTRACE_MissingExpression fails with the computation sentinel.
func TestCytoTRACE_MissingExpression(t *testing.T) {
	in := &kernel.Inputs{Connectivities: chainConn4(t)}
	_, err := kernel.NewCytoTRACE(kernel.DefaultCytoTRACEOptions()).Compute(in)
	assert.ErrorIs(t, err, kernel.ErrComputation)
}

// TestCytoTRACE_ConstantExpression cannot order cells.
func TestCytoTRACE_ConstantExpression(t *testing.T) {
	in := &kernel.Inputs{
		Expression: mat.NewDense(4, 3, []float64{
			1, 1, 1,
			1, 1, 1,
			1, 1, 1,
			1, 1, 1,
		}),
		Connectivities: chainConn4(t),
	}
	_, err := kernel.NewCytoTRACE(kernel.DefaultCytoTRACEOptions()).Score(in)
	assert.Error(t, err, "constant expression carries no diversity signal")
}
