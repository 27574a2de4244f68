package macro

import (
	"fmt"
	"math"
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/ShobiStassen/cellrank/sparse"
)

// schurSeed fixes the deterministic pseudo-random start of the subspace
// iteration. The value is arbitrary but stable: identical inputs always see
// the identical initial basis, which makes the whole decomposition
// reproducible bit for bit.
const schurSeed int64 = 0x5ce11fa7e

// rankTol is the diagonal threshold below which a QR factor is treated as
// rank-deficient.
const rankTol = 1e-10

// schurBasis is a partial real Schur-type factorization: an orthonormal
// basis q of the dominant invariant subspace and the projected operator
// t = qᵀ·P·q, with t's eigenvalues ordered by decreasing modulus.
type schurBasis struct {
	q      *mat.Dense   // n×k, first column is the constant vector 1/√n
	t      *mat.Dense   // k×k
	values []complex128 // eigenvalues of t, |values| non-increasing
	vecs   *mat.CDense  // eigenvectors of t, column order matching values
	iters  int
}

// partialSchur computes the dominant k-dimensional invariant subspace of
// the row-stochastic matrix p by orthogonal (subspace) iteration.
//
// The initial basis pairs the exact invariant constant vector with a
// fixed-seed pseudo-random complement, so the routine has no run-to-run
// variability. Convergence is declared when the subspace rotation between
// sweeps, measured as ‖I - MᵀM‖_F for M = q_newᵀ·q_old, drops below tol.
//
// Errors:
//   - ErrConfig       — k outside [1, n], or the iterated subspace loses
//     rank (the data cannot support k macrostates).
//   - ErrNotConverged — budget exhausted; the message reports the achieved
//     rotation distance and sweep count.
//
// Complexity: O(iters·(k·nnz + n·k²)).
func partialSchur(p *sparse.Matrix, k, maxIter int, tol float64) (*schurBasis, error) {
	n := p.Rows()
	if k < 1 || k > n {
		return nil, fmt.Errorf("%w: %d macrostates requested for %d cells", ErrConfig, k, n)
	}

	q := mat.NewDense(n, k, nil)
	inv := 1 / math.Sqrt(float64(n))
	for i := 0; i < n; i++ {
		q.Set(i, 0, inv)
	}
	rng := rand.New(rand.NewSource(schurSeed))
	for j := 1; j < k; j++ {
		for i := 0; i < n; i++ {
			q.Set(i, j, rng.NormFloat64())
		}
	}
	if err := orthonormalize(q); err != nil {
		return nil, err
	}

	var (
		z     = mat.NewDense(n, k, nil)
		m     = mat.NewDense(k, k, nil)
		gram  = mat.NewDense(k, k, nil)
		xcol  = make([]float64, n)
		ycol  = make([]float64, n)
		iters int
		delta = math.Inf(1)
	)

	// The full space is trivially invariant, so any orthonormal basis is a
	// valid answer at k == n; the rotation criterion would be vacuous there.
	if k == n {
		applySparse(z, p, q, xcol, ycol)
		t := mat.NewDense(k, k, nil)
		t.Mul(q.T(), z)
		values, vecs, err := sortedEigen(t)
		if err != nil {
			return nil, err
		}
		return &schurBasis{q: q, t: t, values: values, vecs: vecs, iters: 1}, nil
	}

	for iters = 1; iters <= maxIter; iters++ {
		applySparse(z, p, q, xcol, ycol)
		qNew := mat.DenseCopyOf(z)
		if err := orthonormalize(qNew); err != nil {
			return nil, err
		}

		m.Mul(qNew.T(), q)
		gram.Mul(m.T(), m)
		delta = 0
		for i := 0; i < k; i++ {
			for j := 0; j < k; j++ {
				d := gram.At(i, j)
				if i == j {
					d -= 1
				}
				delta += d * d
			}
		}
		delta = math.Sqrt(delta)
		q = qNew
		if delta < tol {
			break
		}
	}
	if delta >= tol {
		return nil, fmt.Errorf("%w: subspace iteration at rotation distance %.3g after %d sweeps (tol %.3g)",
			ErrNotConverged, delta, maxIter, tol)
	}

	applySparse(z, p, q, xcol, ycol)
	t := mat.NewDense(k, k, nil)
	t.Mul(q.T(), z)

	values, vecs, err := sortedEigen(t)
	if err != nil {
		return nil, err
	}

	return &schurBasis{q: q, t: t, values: values, vecs: vecs, iters: iters}, nil
}

// dominantColumns extracts an orthonormal basis of the dominant k-dimensional
// invariant subspace from a converged partial basis. The iteration only
// certifies the span of all retained columns, so the k-dimensional cut is
// recovered algebraically: the top-k eigenvectors of the projected operator
// (real and imaginary parts standing in for conjugate pairs) are
// orthonormalized and mapped back through q. The caller must not cut through
// a conjugate pair.
func dominantColumns(basis *schurBasis, k int) (*mat.Dense, error) {
	n, cols := basis.q.Dims()
	if k == cols {
		return mat.DenseCopyOf(basis.q), nil
	}

	w := mat.NewDense(cols, k, nil)
	for j := 0; j < k; j++ {
		pairTail := j > 0 && imag(basis.values[j]) != 0 &&
			math.Abs(real(basis.values[j])-real(basis.values[j-1])) < 1e-12 &&
			math.Abs(imag(basis.values[j])+imag(basis.values[j-1])) < 1e-12
		for i := 0; i < cols; i++ {
			v := basis.vecs.At(i, j)
			if pairTail {
				w.Set(i, j, imag(v))
			} else {
				w.Set(i, j, real(v))
			}
		}
	}
	if err := orthonormalize(w); err != nil {
		return nil, err
	}

	out := mat.NewDense(n, k, nil)
	out.Mul(basis.q, w)

	return out, nil
}

// applySparse computes z = P·q column by column through the sparse matvec.
func applySparse(z *mat.Dense, p *sparse.Matrix, q *mat.Dense, xcol, ycol []float64) {
	_, k := q.Dims()
	for j := 0; j < k; j++ {
		mat.Col(xcol, j, q)
		// xcol is always well-formed here; MulVec cannot fail.
		_ = p.MulVec(ycol, xcol)
		z.SetCol(j, ycol)
	}
}

// orthonormalize runs two passes of modified Gram-Schmidt on the columns of
// a in place. Returns ErrConfig when a column's residual norm falls below
// rankTol, meaning the subspace has lost rank.
func orthonormalize(a *mat.Dense) error {
	n, k := a.Dims()
	col := make([]float64, n)
	prev := make([]float64, n)
	for j := 0; j < k; j++ {
		mat.Col(col, j, a)
		for pass := 0; pass < 2; pass++ {
			for l := 0; l < j; l++ {
				mat.Col(prev, l, a)
				proj := floats.Dot(prev, col)
				floats.AddScaled(col, -proj, prev)
			}
		}
		norm := floats.Norm(col, 2)
		if norm < rankTol {
			return fmt.Errorf("%w: spectral subspace is rank-deficient at dimension %d", ErrConfig, j+1)
		}
		floats.Scale(1/norm, col)
		a.SetCol(j, col)
	}

	return nil
}

// sortedEigen computes the eigendecomposition of the small dense operator t
// and orders it by decreasing eigenvalue modulus (ties broken by original
// position, keeping conjugate pairs adjacent).
func sortedEigen(t *mat.Dense) ([]complex128, *mat.CDense, error) {
	var eig mat.Eigen
	if ok := eig.Factorize(t, mat.EigenRight); !ok {
		return nil, nil, fmt.Errorf("%w: eigendecomposition of the projected operator failed", ErrNotConverged)
	}
	values := eig.Values(nil)
	k := len(values)
	var vecs mat.CDense
	eig.VectorsTo(&vecs)

	order := make([]int, k)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		ma, mb := cmplxAbs(values[order[a]]), cmplxAbs(values[order[b]])
		if ma != mb {
			return ma > mb
		}
		return order[a] < order[b]
	})

	sortedVals := make([]complex128, k)
	sortedVecs := mat.NewCDense(k, k, nil)
	for p, idx := range order {
		sortedVals[p] = values[idx]
		for i := 0; i < k; i++ {
			sortedVecs.Set(i, p, vecs.At(i, idx))
		}
	}

	return sortedVals, sortedVecs, nil
}

func cmplxAbs(v complex128) float64 {
	return math.Hypot(real(v), imag(v))
}

// splitsConjugatePair reports whether cutting the spectrum after the first k
// values separates a complex conjugate pair, which would make the retained
// subspace complex.
func splitsConjugatePair(values []complex128, k int) bool {
	if k <= 0 || k >= len(values) {
		return false
	}
	a, b := values[k-1], values[k]
	if imag(a) == 0 || imag(b) == 0 {
		return false
	}

	return math.Abs(real(a)-real(b)) < 1e-12 && math.Abs(imag(a)+imag(b)) < 1e-12
}

// eigengapSelect picks the macrostate count in [2, maxStates] with the
// largest eigengap |λ_k| - |λ_k+1|, skipping cuts through conjugate pairs.
// Returns the chosen k and its gap.
func eigengapSelect(values []complex128, maxStates int) (int, float64) {
	bestK, bestGap := 2, -1.0
	limit := maxStates
	if limit > len(values)-1 {
		limit = len(values) - 1
	}
	for k := 2; k <= limit; k++ {
		if splitsConjugatePair(values, k) {
			continue
		}
		gap := cmplxAbs(values[k-1]) - cmplxAbs(values[k])
		if gap > bestGap {
			bestK, bestGap = k, gap
		}
	}

	return bestK, bestGap
}
