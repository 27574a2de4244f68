package macro

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/ShobiStassen/cellrank/sparse"
)

// GPCCA identifies macrostates by generalized Perron cluster analysis: a
// partial Schur basis of the transition matrix is rotated by PCCA+ into
// fuzzy memberships, near-duplicate states are merged, and the survivors
// are classified as terminal, initial or transient.
//
// With opts.States == 0 the macrostate count is chosen automatically by the
// largest eigengap up to opts.MaxStates; an explicit count must not cut a
// complex conjugate eigenvalue pair. The whole procedure is deterministic.
//
// Errors:
//   - ErrInput        — nil or non-stochastic transition matrix.
//   - ErrConfig       — macrostate count out of range, through a conjugate
//     pair, or beyond the numerical rank of the spectrum.
//   - ErrNotConverged — an iterative stage exhausted its budget.
func GPCCA(p *sparse.Matrix, opts Options) (*Decomposition, error) {
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

	// One extra Schur column exposes the eigenvalue just below the cut, so
	// the eigengap can be evaluated. The basis may only fill the whole space
	// when every column is consumed, otherwise its leading columns would not
	// be ordered by dominance; n-1 is the widest usable partial basis.
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

	q, err := dominantColumns(basis, k)
	if err != nil {
		return nil, err
	}

	// Scale the basis so the invariant column is exactly the constant one
	// vector, the form PCCA+ expects.
	x := mat.NewDense(n, k, nil)
	scale := math.Sqrt(float64(n))
	for i := 0; i < n; i++ {
		x.Set(i, 0, 1)
		for j := 1; j < k; j++ {
			x.Set(i, j, q.At(i, j)*scale)
		}
	}

	chi, crisp, err := pccaPlus(x, o.OptimizeEvals)
	if err != nil {
		return nil, err
	}
	chi, coarse, err := mergeDuplicates(p, chi, o.MergeTol)
	if err != nil {
		return nil, err
	}

	d := assemble(chi, coarse, o)
	d.Eigenvalues = append([]complex128(nil), basis.values[:k]...)
	d.Crispness = crisp
	d.SchurIterations = basis.iters
	d.Warning = warning

	return d, nil
}

// assemble turns a membership matrix and its coarse projection into the
// final decomposition: classification, stationary mass, hard assignments.
// States are first put into canonical order — sorted by anchor cell, the
// cell of maximal membership — so IDs do not depend on internal pivoting.
func assemble(chi, coarse *mat.Dense, o Options) *Decomposition {
	chi, coarse = canonicalize(chi, coarse)
	n, m := chi.Dims()
	kinds := classify(coarse, o.StabilityThreshold, o.InitialInflowTol)
	pi := stationaryDist(coarse)

	assignments := make([]int, n)
	for i := 0; i < n; i++ {
		best, bestVal := 0, chi.At(i, 0)
		for j := 1; j < m; j++ {
			if v := chi.At(i, j); v > bestVal {
				best, bestVal = j, v
			}
		}
		if bestVal >= o.MinConfidence {
			assignments[i] = best
		} else {
			assignments[i] = Unassigned
		}
	}

	states := make([]*Macrostate, m)
	for j := 0; j < m; j++ {
		membership := make([]float64, n)
		mat.Col(membership, j, chi)
		var members []int
		for i := 0; i < n; i++ {
			if assignments[i] == j {
				members = append(members, i)
			}
		}
		states[j] = &Macrostate{
			ID:             j,
			Kind:           kinds[j],
			Membership:     membership,
			Members:        members,
			Stability:      coarse.At(j, j),
			StationaryProb: pi[j],
		}
	}

	return &Decomposition{
		States:      states,
		Memberships: chi,
		Coarse:      coarse,
		Assignments: assignments,
	}
}

// canonicalize reorders membership columns (and the coarse matrix with
// them) by each state's anchor cell, ties broken by original column.
func canonicalize(chi, coarse *mat.Dense) (*mat.Dense, *mat.Dense) {
	n, m := chi.Dims()
	anchors := make([]int, m)
	for j := 0; j < m; j++ {
		best, bestVal := 0, chi.At(0, j)
		for i := 1; i < n; i++ {
			if v := chi.At(i, j); v > bestVal {
				best, bestVal = i, v
			}
		}
		anchors[j] = best
	}
	perm := make([]int, m)
	for j := range perm {
		perm[j] = j
	}
	sort.SliceStable(perm, func(a, b int) bool {
		return anchors[perm[a]] < anchors[perm[b]]
	})

	outChi := mat.NewDense(n, m, nil)
	outCoarse := mat.NewDense(m, m, nil)
	col := make([]float64, n)
	for j, src := range perm {
		mat.Col(col, src, chi)
		outChi.SetCol(j, col)
		for l, src2 := range perm {
			outCoarse.Set(j, l, coarse.At(src, src2))
		}
	}

	return outChi, outCoarse
}
