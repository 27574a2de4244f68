package kernel

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/ShobiStassen/cellrank/sparse"
)

// CytoTRACE derives a pseudotime-like ordering from transcriptional
// diversity and then behaves as the Pseudotime kernel on that ordering.
//
// The score follows the CytoTRACE recipe: count the genes each cell
// expresses, correlate every gene's expression with that count, aggregate
// the neighbor-smoothed expression of the top positively correlated genes,
// and min-max normalize. High scores mark plastic (naive) cells, so the
// derived pseudotime is 1 - score.
type CytoTRACE struct {
	Opts CytoTRACEOptions
}

// NewCytoTRACE returns a CytoTRACE kernel; zero-valued fields fall back to
// defaults.
func NewCytoTRACE(opts CytoTRACEOptions) *CytoTRACE {
	if opts.NTopGenes <= 0 {
		opts.NTopGenes = DefaultNTopGenes
	}

	return &CytoTRACE{Opts: opts}
}

// Name implements Kernel.
func (*CytoTRACE) Name() string { return "cytotrace" }

// Compute implements Kernel: derive the ordering, then run directed
// diffusion over the connectivity graph.
func (k *CytoTRACE) Compute(in *Inputs) (*sparse.Matrix, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	if in.Connectivities == nil {
		return nil, fmt.Errorf("%w: cytotrace kernel requires a connectivity graph", ErrComputation)
	}

	score, err := k.Score(in)
	if err != nil {
		return nil, err
	}
	pt := make([]float64, len(score))
	for i, s := range score {
		pt[i] = 1 - s
	}

	return NewPseudotime(k.Opts.Pseudotime).computeOn(in.Connectivities, pt)
}

// Score computes the per-cell CytoTRACE score in [0,1].
//
// Errors:
//   - ErrComputation — expression or connectivity graph absent, or no gene
//     correlates with transcriptional diversity.
//   - ErrInput       — the derived score is constant across cells and cannot
//     order them.
//
// Complexity: O(N·M + nnz·top) time, O(N+M) space.
func (k *CytoTRACE) Score(in *Inputs) ([]float64, error) {
	if in == nil || in.Expression == nil {
		return nil, fmt.Errorf("%w: cytotrace score requires an expression matrix", ErrComputation)
	}
	if in.Connectivities == nil {
		return nil, fmt.Errorf("%w: cytotrace score requires a connectivity graph", ErrComputation)
	}
	n, genes := in.Expression.Dims()

	// Transcriptional diversity: number of expressed genes per cell.
	numExp := make([]float64, n)
	for i := 0; i < n; i++ {
		var c float64
		for j := 0; j < genes; j++ {
			if in.Expression.At(i, j) > 0 {
				c++
			}
		}
		numExp[i] = c
	}

	// Correlate every gene with the diversity signal; zero-variance genes
	// yield NaN and are excluded from the ranking.
	type geneCorr struct {
		gene int
		corr float64
	}
	ranked := make([]geneCorr, 0, genes)
	col := make([]float64, n)
	for j := 0; j < genes; j++ {
		for i := 0; i < n; i++ {
			col[i] = in.Expression.At(i, j)
		}
		if c := stat.Correlation(col, numExp, nil); !math.IsNaN(c) {
			ranked = append(ranked, geneCorr{gene: j, corr: c})
		}
	}
	if len(ranked) == 0 {
		return nil, fmt.Errorf("%w: no gene correlates with transcriptional diversity", ErrComputation)
	}
	sort.Slice(ranked, func(a, b int) bool {
		if ranked[a].corr != ranked[b].corr {
			return ranked[a].corr > ranked[b].corr
		}
		return ranked[a].gene < ranked[b].gene
	})
	top := ranked
	if len(top) > k.Opts.NTopGenes {
		top = top[:k.Opts.NTopGenes]
	}

	score := make([]float64, n)
	vals := make([]float64, len(top))
	for i := 0; i < n; i++ {
		for p, gc := range top {
			vals[p] = k.smoothed(in, i, gc.gene)
		}
		score[i] = aggregate(k.Opts.Aggregation, vals)
	}

	// Min-max normalize to [0,1].
	lo, hi := score[0], score[0]
	for _, s := range score[1:] {
		lo = math.Min(lo, s)
		hi = math.Max(hi, s)
	}
	if hi == lo {
		return nil, fmt.Errorf("%w: cytotrace score is constant across cells", ErrInput)
	}
	for i := range score {
		score[i] = (score[i] - lo) / (hi - lo)
	}

	return score, nil
}

// smoothed returns a one-step kNN-imputed expression value for (cell, gene):
// the connectivity-weighted neighbor average including the cell itself with
// unit weight.
func (k *CytoTRACE) smoothed(in *Inputs, cell, gene int) float64 {
	sum := in.Expression.At(cell, gene)
	wsum := 1.0
	cs, ws := in.Connectivities.Row(cell)
	for p, j := range cs {
		if j == cell {
			continue
		}
		sum += ws[p] * in.Expression.At(j, gene)
		wsum += ws[p]
	}

	return sum / wsum
}

// aggEps floors non-positive values for the geometric and harmonic means,
// which are undefined at zero expression.
const aggEps = 1e-12

func aggregate(agg Aggregation, vals []float64) float64 {
	switch agg {
	case AggMedian:
		cp := append([]float64(nil), vals...)
		sort.Float64s(cp)
		mid := len(cp) / 2
		if len(cp)%2 == 1 {
			return cp[mid]
		}
		return (cp[mid-1] + cp[mid]) / 2
	case AggGMean:
		var s float64
		for _, v := range vals {
			s += math.Log(math.Max(v, aggEps))
		}
		return math.Exp(s / float64(len(vals)))
	case AggHMean:
		var s float64
		for _, v := range vals {
			s += 1 / math.Max(v, aggEps)
		}
		return float64(len(vals)) / s
	default: // AggMean
		return stat.Mean(vals, nil)
	}
}
