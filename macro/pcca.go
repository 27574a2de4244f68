package macro

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"
)

// pccaPlus rotates an invariant-subspace basis x (n×m, first column constant
// 1) into a fuzzy membership matrix chi = x·A with non-negative entries and
// unit row sums. The rotation A is seeded by the inner-simplex vertex search
// and then refined by derivative-free maximization of the crispness
// objective trace(diag(1/A[0,:])·AᵀA) over the (m-1)² free parameters,
// re-feasibilizing each candidate through the linear constraints.
//
// Returns chi, the achieved crispness in (0, 1], and ErrNotConverged when
// the vertex seed is numerically singular.
func pccaPlus(x *mat.Dense, maxEvals int) (*mat.Dense, float64, error) {
	n, m := x.Dims()
	if m == 1 {
		chi := mat.NewDense(n, 1, nil)
		for i := 0; i < n; i++ {
			chi.Set(i, 0, 1)
		}
		return chi, 1, nil
	}

	idx := indexSearch(x)
	vertices := mat.NewDense(m, m, nil)
	for r, i := range idx {
		for j := 0; j < m; j++ {
			vertices.Set(r, j, x.At(i, j))
		}
	}
	a := mat.NewDense(m, m, nil)
	if err := a.Inverse(vertices); err != nil {
		return nil, 0, fmt.Errorf("%w: inner-simplex vertices are numerically singular: %v", ErrNotConverged, err)
	}
	fillA(a, x)

	free := (m - 1) * (m - 1)
	init := make([]float64, free)
	packA(a, init)

	problem := optimize.Problem{
		Func: func(p []float64) float64 {
			trial := mat.NewDense(m, m, nil)
			unpackA(trial, p)
			fillA(trial, x)
			return -crispness(trial)
		},
	}
	settings := &optimize.Settings{
		FuncEvaluations: maxEvals,
		Converger: &optimize.FunctionConverge{
			Absolute:   1e-12,
			Iterations: 50,
		},
	}
	result, err := optimize.Minimize(problem, init, settings, &optimize.NelderMead{})
	if err == nil && result != nil && -result.F > crispness(a) {
		unpackA(a, result.X)
		fillA(a, x)
	}
	// A failed refinement is not fatal: the simplex seed is already feasible,
	// so the seed rotation is kept as the answer.

	chi := mat.NewDense(n, m, nil)
	chi.Mul(x, a)
	clampRows(chi)

	return chi, crispness(a) / float64(m), nil
}

// indexSearch locates the m rows of x closest to the vertices of the
// simplex spanned by the data (the inner simplex algorithm): repeatedly pick
// the row farthest from the span of the vertices found so far.
func indexSearch(x *mat.Dense) []int {
	n, m := x.Dims()
	idx := make([]int, m)

	work := mat.DenseCopyOf(x)
	row := make([]float64, m)
	dir := make([]float64, m)

	// Vertex 0: the row of largest norm.
	best, bestNorm := 0, -1.0
	for i := 0; i < n; i++ {
		s := 0.0
		for j := 0; j < m; j++ {
			v := work.At(i, j)
			s += v * v
		}
		if s > bestNorm {
			best, bestNorm = i, s
		}
	}
	idx[0] = best

	// Shift the first vertex to the origin. The pivot is copied out because
	// the loop below rewrites the row it aliases.
	copy(row, work.RawRowView(best))
	for i := 0; i < n; i++ {
		for j := 0; j < m; j++ {
			work.Set(i, j, work.At(i, j)-row[j])
		}
	}

	for v := 1; v < m; v++ {
		best, bestNorm = 0, -1.0
		for i := 0; i < n; i++ {
			s := 0.0
			for j := 0; j < m; j++ {
				c := work.At(i, j)
				s += c * c
			}
			if s > bestNorm {
				best, bestNorm = i, s
			}
		}
		idx[v] = best

		// Project the chosen direction out of every remaining row.
		norm := math.Sqrt(bestNorm)
		if norm == 0 {
			continue
		}
		for j := 0; j < m; j++ {
			dir[j] = work.At(best, j) / norm
		}
		for i := 0; i < n; i++ {
			dot := 0.0
			for j := 0; j < m; j++ {
				dot += work.At(i, j) * dir[j]
			}
			for j := 0; j < m; j++ {
				work.Set(i, j, work.At(i, j)-dot*dir[j])
			}
		}
	}

	return idx
}

// fillA restores feasibility of a candidate rotation in place: the first
// column absorbs the row-sum constraint, the first row is raised until
// chi = x·A is non-negative, and the whole matrix is scaled so that
// memberships sum to one per cell.
func fillA(a *mat.Dense, x *mat.Dense) {
	n, m := x.Dims()

	for i := 1; i < m; i++ {
		s := 0.0
		for j := 1; j < m; j++ {
			s += a.At(i, j)
		}
		a.Set(i, 0, -s)
	}
	for j := 0; j < m; j++ {
		low := 0.0
		for i := 0; i < n; i++ {
			dot := 0.0
			for l := 1; l < m; l++ {
				dot += x.At(i, l) * a.At(l, j)
			}
			if dot < low {
				low = dot
			}
		}
		a.Set(0, j, -low)
	}
	total := 0.0
	for j := 0; j < m; j++ {
		total += a.At(0, j)
	}
	if total != 0 {
		a.Scale(1/total, a)
	}
}

// crispness is the PCCA+ objective trace(diag(1/A[0,:])·AᵀA); it attains m
// exactly when the membership vectors are indicator functions.
func crispness(a *mat.Dense) float64 {
	m, _ := a.Dims()
	obj := 0.0
	for j := 0; j < m; j++ {
		head := a.At(0, j)
		if head <= 0 {
			continue
		}
		col := 0.0
		for i := 0; i < m; i++ {
			v := a.At(i, j)
			col += v * v
		}
		obj += col / head
	}
	if math.IsNaN(obj) || math.IsInf(obj, 0) {
		return 0
	}

	return obj
}

// packA flattens the free block A[1:,1:] row-major into p.
func packA(a *mat.Dense, p []float64) {
	m, _ := a.Dims()
	k := 0
	for i := 1; i < m; i++ {
		for j := 1; j < m; j++ {
			p[k] = a.At(i, j)
			k++
		}
	}
}

// unpackA writes the free parameters back into A[1:,1:].
func unpackA(a *mat.Dense, p []float64) {
	m, _ := a.Dims()
	k := 0
	for i := 1; i < m; i++ {
		for j := 1; j < m; j++ {
			a.Set(i, j, p[k])
			k++
		}
	}
}

// clampRows zeroes the tiny negative round-off in chi and renormalizes each
// row to unit sum.
func clampRows(chi *mat.Dense) {
	n, m := chi.Dims()
	for i := 0; i < n; i++ {
		s := 0.0
		for j := 0; j < m; j++ {
			v := chi.At(i, j)
			if v < 0 {
				v = 0
				chi.Set(i, j, 0)
			}
			s += v
		}
		if s <= 0 {
			continue
		}
		for j := 0; j < m; j++ {
			chi.Set(i, j, chi.At(i, j)/s)
		}
	}
}
