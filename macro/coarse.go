package macro

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/ShobiStassen/cellrank/sparse"
)

// coarseMatrix projects the full chain onto the membership columns:
// C = (chiᵀ·chi)⁻¹ · (chiᵀ·P·chi). The result is m×m and approximately
// row-stochastic; small round-off is rescaled away so downstream
// classification can rely on unit row sums.
func coarseMatrix(p *sparse.Matrix, chi *mat.Dense) (*mat.Dense, error) {
	n, m := chi.Dims()

	pchi := mat.NewDense(n, m, nil)
	xcol := make([]float64, n)
	ycol := make([]float64, n)
	for j := 0; j < m; j++ {
		mat.Col(xcol, j, chi)
		_ = p.MulVec(ycol, xcol)
		pchi.SetCol(j, ycol)
	}

	var gram, rhs mat.Dense
	gram.Mul(chi.T(), chi)
	rhs.Mul(chi.T(), pchi)

	c := mat.NewDense(m, m, nil)
	if err := c.Solve(&gram, &rhs); err != nil {
		return nil, fmt.Errorf("%w: membership columns are numerically dependent: %v", ErrNotConverged, err)
	}

	for i := 0; i < m; i++ {
		s := 0.0
		for j := 0; j < m; j++ {
			s += c.At(i, j)
		}
		if s <= 0 {
			continue
		}
		for j := 0; j < m; j++ {
			c.Set(i, j, c.At(i, j)/s)
		}
	}

	return c, nil
}

// mergeDuplicates collapses macrostates whose coarse transition rows agree
// within tol in the L∞ norm. Merging sums the two membership columns and
// recomputes the coarse matrix, then scans again, so chains of duplicates
// collapse into one state. Returns the final memberships and coarse matrix.
func mergeDuplicates(p *sparse.Matrix, chi *mat.Dense, tol float64) (*mat.Dense, *mat.Dense, error) {
	for {
		c, err := coarseMatrix(p, chi)
		if err != nil {
			return nil, nil, err
		}
		_, m := chi.Dims()
		if m <= 1 {
			return chi, c, nil
		}

		mi, mj := -1, -1
	scan:
		for i := 0; i < m; i++ {
			for j := i + 1; j < m; j++ {
				if rowDistInf(c, i, j) <= tol {
					mi, mj = i, j
					break scan
				}
			}
		}
		if mi < 0 {
			return chi, c, nil
		}
		chi = mergeColumns(chi, mi, mj)
	}
}

// rowDistInf is the L∞ distance between rows i and j of c.
func rowDistInf(c *mat.Dense, i, j int) float64 {
	_, m := c.Dims()
	d := 0.0
	for l := 0; l < m; l++ {
		v := math.Abs(c.At(i, l) - c.At(j, l))
		if v > d {
			d = v
		}
	}

	return d
}

// mergeColumns returns a copy of chi with column j folded into column i and
// the remaining columns shifted left.
func mergeColumns(chi *mat.Dense, i, j int) *mat.Dense {
	n, m := chi.Dims()
	out := mat.NewDense(n, m-1, nil)
	for r := 0; r < n; r++ {
		dst := 0
		for s := 0; s < m; s++ {
			if s == j {
				continue
			}
			v := chi.At(r, s)
			if s == i {
				v += chi.At(r, j)
			}
			out.Set(r, dst, v)
			dst++
		}
	}

	return out
}

// classify assigns each coarse state a Kind. A state is terminal when its
// self-transition probability reaches stabilityThreshold, initial when its
// total inflow from other states stays below inflowTol, and transient
// otherwise. Terminal wins over initial for a fully isolated state.
func classify(c *mat.Dense, stabilityThreshold, inflowTol float64) []Kind {
	m, _ := c.Dims()
	kinds := make([]Kind, m)
	for i := 0; i < m; i++ {
		if c.At(i, i) >= stabilityThreshold {
			kinds[i] = KindTerminal
			continue
		}
		inflow := 0.0
		for l := 0; l < m; l++ {
			if l != i {
				inflow += c.At(l, i)
			}
		}
		if inflow < inflowTol {
			kinds[i] = KindInitial
		} else {
			kinds[i] = KindTransient
		}
	}

	return kinds
}

// stationaryDist computes the stationary distribution of the coarse chain by
// power iteration on πᵀ·C, starting uniform. The coarse chain is tiny, so a
// fixed generous budget suffices; on the rare reducible chain the iterate
// still converges to a valid stationary vector of the closed classes.
func stationaryDist(c *mat.Dense) []float64 {
	m, _ := c.Dims()
	pi := make([]float64, m)
	next := make([]float64, m)
	for i := range pi {
		pi[i] = 1 / float64(m)
	}
	for iter := 0; iter < 10000; iter++ {
		for j := 0; j < m; j++ {
			s := 0.0
			for i := 0; i < m; i++ {
				s += pi[i] * c.At(i, j)
			}
			next[j] = s
		}
		total := 0.0
		for j := range next {
			total += next[j]
		}
		if total > 0 {
			for j := range next {
				next[j] /= total
			}
		}
		diff := 0.0
		for j := range next {
			diff += math.Abs(next[j] - pi[j])
		}
		copy(pi, next)
		if diff < 1e-13 {
			break
		}
	}

	return pi
}
