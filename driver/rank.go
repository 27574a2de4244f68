package driver

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/ShobiStassen/cellrank/fate"
)

// ErrInput is returned for nil or shape-mismatched inputs.
var ErrInput = errors.New("driver: invalid input")

// Score is one gene's correlation with a lineage's fate probabilities.
type Score struct {
	// Gene is the expression matrix column index.
	Gene int

	// Correlation is the Pearson correlation; 0 when Defined is false.
	Correlation float64

	// Defined is false when the correlation does not exist, i.e. the gene
	// or the fate column is constant across the scored cells.
	Defined bool
}

// Table is the ranked driver list of one terminal lineage: defined scores
// in decreasing correlation, then undefined genes, ties by gene index.
type Table struct {
	// Lineage is the terminal macrostate ID the scores refer to.
	Lineage int

	Scores []Score
}

// Options configures driver ranking.
type Options struct {
	// TopN truncates each table to the leading entries; 0 keeps all genes.
	TopN int

	// Cells restricts scoring to a subset of cells; nil scores all cells.
	// Useful for excluding the absorbing cells themselves, whose one-hot
	// fate rows otherwise dominate the correlation.
	Cells []int

	// Weights holds optional per-cell weights, indexed like the expression
	// rows; nil weights all cells equally. Weights must be non-negative.
	Weights []float64
}

// Rank correlates every gene against every terminal lineage of res.
// expression is cells×genes; res must stem from the same cell ordering.
func Rank(expression *mat.Dense, res *fate.Result, opts Options) ([]Table, error) {
	if expression == nil || res == nil || res.Probabilities == nil {
		return nil, fmt.Errorf("%w: nil expression or fate result", ErrInput)
	}
	n, genes := expression.Dims()
	pn, nLin := res.Probabilities.Dims()
	if n != pn {
		return nil, fmt.Errorf("%w: expression has %d cells, fate result has %d", ErrInput, n, pn)
	}

	cells := opts.Cells
	if cells == nil {
		cells = make([]int, n)
		for i := range cells {
			cells[i] = i
		}
	} else {
		for _, c := range cells {
			if c < 0 || c >= n {
				return nil, fmt.Errorf("%w: cell index %d out of range [0,%d)", ErrInput, c, n)
			}
		}
	}
	if len(cells) < 2 {
		return nil, fmt.Errorf("%w: need at least 2 cells to correlate, got %d", ErrInput, len(cells))
	}
	var weights []float64
	if opts.Weights != nil {
		if len(opts.Weights) != n {
			return nil, fmt.Errorf("%w: %d weights for %d cells", ErrInput, len(opts.Weights), n)
		}
		weights = make([]float64, len(cells))
		for r, c := range cells {
			w := opts.Weights[c]
			if w < 0 || math.IsNaN(w) {
				return nil, fmt.Errorf("%w: weight of cell %d is %v", ErrInput, c, w)
			}
			weights[r] = w
		}
	}

	exprCol := make([]float64, len(cells))
	fateCol := make([]float64, len(cells))
	tables := make([]Table, nLin)
	for li := 0; li < nLin; li++ {
		for r, c := range cells {
			fateCol[r] = res.Probabilities.At(c, li)
		}
		scores := make([]Score, genes)
		for g := 0; g < genes; g++ {
			for r, c := range cells {
				exprCol[r] = expression.At(c, g)
			}
			corr := stat.Correlation(exprCol, fateCol, weights)
			if math.IsNaN(corr) || math.IsInf(corr, 0) {
				scores[g] = Score{Gene: g}
			} else {
				scores[g] = Score{Gene: g, Correlation: corr, Defined: true}
			}
		}
		sort.SliceStable(scores, func(a, b int) bool {
			sa, sb := scores[a], scores[b]
			if sa.Defined != sb.Defined {
				return sa.Defined
			}
			if sa.Correlation != sb.Correlation {
				return sa.Correlation > sb.Correlation
			}
			return sa.Gene < sb.Gene
		})
		if opts.TopN > 0 && opts.TopN < len(scores) {
			scores = scores[:opts.TopN]
		}
		tables[li] = Table{Lineage: res.TerminalIDs[li], Scores: scores}
	}

	return tables, nil
}
