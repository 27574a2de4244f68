package macro

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/ShobiStassen/cellrank/sparse"
)

// CFLARE identifies macrostates by clustering cells in the spectral
// embedding spanned by the leading eigenvectors of the transition matrix.
// It is cheaper than GPCCA but less robust: memberships are hard one-hot
// indicators, there is no PCCA+ refinement and no duplicate-state merge.
//
// Clustering is k-means++ driven by opts.Seed, so repeated runs with the
// same seed are identical. Errors mirror GPCCA.
func CFLARE(p *sparse.Matrix, opts Options) (*Decomposition, error) {
	if p == nil {
		return nil, fmt.Errorf("%w: nil transition matrix", ErrInput)
	}
	if err := p.CheckStochastic(sparse.StochasticTol); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInput, err)
	}
	n := p.Rows()
	if n < 2 {
		return nil, fmt.Errorf("%w: need at least 2 cells, got %d", ErrInput, n)
	}
	o := opts.withDefaults()
	if o.States < 0 {
		return nil, fmt.Errorf("%w: negative macrostate count %d", ErrConfig, o.States)
	}
	if o.States == 1 {
		return nil, fmt.Errorf("%w: at least 2 macrostates are required", ErrConfig)
	}
	if o.States > n {
		return nil, fmt.Errorf("%w: %d macrostates requested for %d cells", ErrConfig, o.States, n)
	}
	if o.States == 0 && n == 2 {
		o.States = 2 // the only admissible count
	}

	ceiling := o.States
	if ceiling == 0 {
		ceiling = o.MaxStates
		if ceiling > n-1 {
			ceiling = n - 1
		}
	}
	cols := ceiling + 1
	switch {
	case ceiling >= n:
		cols = n
	case cols >= n:
		cols = n - 1
	}
	basis, err := partialSchur(p, cols, o.MaxIter, o.Tol)
	if err != nil {
		return nil, err
	}

	var (
		k   int
		gap = math.Inf(1)
	)
	if o.States > 0 {
		k = o.States
		if splitsConjugatePair(basis.values, k) {
			return nil, fmt.Errorf("%w: %d macrostates would split a complex conjugate eigenvalue pair", ErrConfig, k)
		}
		if k < cols {
			gap = cmplxAbs(basis.values[k-1]) - cmplxAbs(basis.values[k])
		}
	} else {
		k, gap = eigengapSelect(basis.values, o.MaxStates)
		if gap < 0 {
			gap = math.Inf(1) // no eigenvalue below the cut to compare with
		}
	}

	var warning *AmbiguityWarning
	if gap < o.GapMargin {
		warning = &AmbiguityWarning{States: k, Gap: gap, Margin: o.GapMargin}
	}

	embed, err := dominantColumns(basis, k)
	if err != nil {
		return nil, err
	}
	labels := kmeansPP(embed, k, o.Seed)

	chi := mat.NewDense(n, k, nil)
	for i, l := range labels {
		chi.Set(i, l, 1)
	}
	coarse, err := coarseMatrix(p, chi)
	if err != nil {
		return nil, err
	}

	d := assemble(chi, coarse, o)
	d.Eigenvalues = append([]complex128(nil), basis.values[:k]...)
	d.SchurIterations = basis.iters
	d.Warning = warning

	return d, nil
}
