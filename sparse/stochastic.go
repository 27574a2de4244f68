package sparse

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// StochasticTol is the default tolerance for row-stochasticity checks.
const StochasticTol = 1e-8

// CheckStochastic verifies that the matrix is square, non-negative and that
// every row sums to 1 within tol.
//
// Errors:
//   - ErrDimensionMismatch — matrix is not square.
//   - ErrNegativeEntry     — a negative entry, with its coordinates.
//   - ErrZeroRow           — a row with no stored mass.
//   - ErrNotStochastic     — a row sum off by more than tol, with the sum.
//
// Complexity: O(nnz).
func (m *Matrix) CheckStochastic(tol float64) error {
	if m == nil {
		return ErrNilMatrix
	}
	if m.r != m.c {
		return fmt.Errorf("%w: %dx%d is not square", ErrDimensionMismatch, m.r, m.c)
	}
	for i := 0; i < m.r; i++ {
		lo, hi := m.indptr[i], m.indptr[i+1]
		if lo == hi {
			return fmt.Errorf("%w: row %d", ErrZeroRow, i)
		}
		for k := lo; k < hi; k++ {
			if m.val[k] < 0 {
				return fmt.Errorf("%w: %g at (%d,%d)", ErrNegativeEntry, m.val[k], i, m.ind[k])
			}
		}
		if s := floats.Sum(m.val[lo:hi]); math.Abs(s-1) > tol {
			return fmt.Errorf("%w: row %d sums to %g", ErrNotStochastic, i, s)
		}
	}

	return nil
}

// NormalizeRows rescales every row to sum to 1 in place.
//
// Errors: ErrZeroRow naming the first row whose mass is zero (or the row is
// empty), since such a row cannot be normalized.
//
// Complexity: O(nnz).
func (m *Matrix) NormalizeRows() error {
	if m == nil {
		return ErrNilMatrix
	}
	for i := 0; i < m.r; i++ {
		lo, hi := m.indptr[i], m.indptr[i+1]
		s := floats.Sum(m.val[lo:hi])
		if s == 0 || lo == hi {
			return fmt.Errorf("%w: row %d", ErrZeroRow, i)
		}
		floats.Scale(1/s, m.val[lo:hi])
	}

	return nil
}

// ScaleRows multiplies row i by w[i] in place.
//
// Errors: ErrDimensionMismatch when len(w) != Rows; ErrNaNInf on non-finite
// weights.
func (m *Matrix) ScaleRows(w []float64) error {
	if m == nil {
		return ErrNilMatrix
	}
	if len(w) != m.r {
		return fmt.Errorf("%w: %d weights for %d rows", ErrDimensionMismatch, len(w), m.r)
	}
	for i, wi := range w {
		if math.IsNaN(wi) || math.IsInf(wi, 0) {
			return fmt.Errorf("%w: row weight %d", ErrNaNInf, i)
		}
		floats.Scale(wi, m.val[m.indptr[i]:m.indptr[i+1]])
	}

	return nil
}

// ScaleCols multiplies column j by w[j] in place.
//
// Errors: ErrDimensionMismatch when len(w) != Cols; ErrNaNInf on non-finite
// weights.
func (m *Matrix) ScaleCols(w []float64) error {
	if m == nil {
		return ErrNilMatrix
	}
	if len(w) != m.c {
		return fmt.Errorf("%w: %d weights for %d columns", ErrDimensionMismatch, len(w), m.c)
	}
	for j, wj := range w {
		if math.IsNaN(wj) || math.IsInf(wj, 0) {
			return fmt.Errorf("%w: column weight %d", ErrNaNInf, j)
		}
	}
	for k, j := range m.ind {
		m.val[k] *= w[j]
	}

	return nil
}

// WeightedSum returns sum_k w[k]·ms[k]. All operands must share one shape.
// Accumulation runs in increasing row order with a fixed operand order inside
// each row, so the floating-point reduction order never varies and results
// are bit-reproducible across runs.
//
// Errors:
//   - ErrNilMatrix         — no operands, or a nil operand.
//   - ErrTripletLength     — len(w) != len(ms).
//   - ErrDimensionMismatch — operand shapes differ.
//
// Complexity: O(total nnz + r·avg-row-degree·log) time, O(c) scratch.
func WeightedSum(w []float64, ms ...*Matrix) (*Matrix, error) {
	if len(ms) == 0 {
		return nil, fmt.Errorf("%w: no operands", ErrNilMatrix)
	}
	if len(w) != len(ms) {
		return nil, fmt.Errorf("%w: %d weights for %d matrices", ErrTripletLength, len(w), len(ms))
	}
	r, c := ms[0].r, ms[0].c
	for k, mk := range ms {
		if mk == nil {
			return nil, fmt.Errorf("%w: operand %d", ErrNilMatrix, k)
		}
		if mk.r != r || mk.c != c {
			return nil, fmt.Errorf("%w: operand %d is %dx%d, want %dx%d", ErrDimensionMismatch, k, mk.r, mk.c, r, c)
		}
	}

	out := &Matrix{r: r, c: c, indptr: make([]int, r+1)}
	scratch := make([]float64, c)
	touched := make([]int, 0, 64)
	seen := make([]bool, c)
	for i := 0; i < r; i++ {
		touched = touched[:0]
		for k, mk := range ms {
			wk := w[k]
			for p := mk.indptr[i]; p < mk.indptr[i+1]; p++ {
				j := mk.ind[p]
				if !seen[j] {
					seen[j] = true
					touched = append(touched, j)
					scratch[j] = 0
				}
				scratch[j] += wk * mk.val[p]
			}
		}
		sortInts(touched)
		for _, j := range touched {
			out.ind = append(out.ind, j)
			out.val = append(out.val, scratch[j])
			seen[j] = false
		}
		out.indptr[i+1] = len(out.ind)
	}

	return out, nil
}

// sortInts is a small insertion sort; touched column sets are short in kNN
// graphs, where library sort overhead dominates.
func sortInts(a []int) {
	for i := 1; i < len(a); i++ {
		for j := i; j > 0 && a[j] < a[j-1]; j-- {
			a[j], a[j-1] = a[j-1], a[j]
		}
	}
}
