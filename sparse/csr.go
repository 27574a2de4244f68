package sparse

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Matrix is a compressed-sparse-row matrix.
//
// Storage follows the standard CSR layout: for row i, the stored entries live
// in ind[indptr[i]:indptr[i+1]] (column indices, strictly ascending) and
// val[indptr[i]:indptr[i+1]] (values). Zero-value rows are legal at this
// level; stochasticity is enforced by CheckStochastic/NormalizeRows.
type Matrix struct {
	r, c   int
	indptr []int
	ind    []int
	val    []float64
}

// NewFromTriplets builds an r×c Matrix from COO triplets (rows[k], cols[k],
// vals[k]). Duplicate coordinates are summed. Entries that sum to exactly
// zero are kept (callers who care should prune beforehand).
//
// Errors:
//   - ErrBadShape          — r<=0 or c<=0.
//   - ErrTripletLength     — slice lengths differ.
//   - ErrOutOfRange        — any coordinate outside [0,r)×[0,c).
//   - ErrNaNInf            — any non-finite value.
//
// Complexity: O(nnz log nnz) time, O(nnz) space.
func NewFromTriplets(r, c int, rows, cols []int, vals []float64) (*Matrix, error) {
	if r <= 0 || c <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrBadShape, r, c)
	}
	if len(rows) != len(cols) || len(rows) != len(vals) {
		return nil, fmt.Errorf("%w: rows=%d cols=%d vals=%d", ErrTripletLength, len(rows), len(cols), len(vals))
	}
	for k := range rows {
		if rows[k] < 0 || rows[k] >= r || cols[k] < 0 || cols[k] >= c {
			return nil, fmt.Errorf("%w: triplet %d at (%d,%d) for shape %dx%d", ErrOutOfRange, k, rows[k], cols[k], r, c)
		}
		if math.IsNaN(vals[k]) || math.IsInf(vals[k], 0) {
			return nil, fmt.Errorf("%w: triplet %d at (%d,%d)", ErrNaNInf, k, rows[k], cols[k])
		}
	}

	// Stable order: sort triplet indices by (row, col) so duplicate merging
	// and the resulting layout are deterministic regardless of input order.
	order := make([]int, len(rows))
	for k := range order {
		order[k] = k
	}
	sort.Slice(order, func(a, b int) bool {
		ka, kb := order[a], order[b]
		if rows[ka] != rows[kb] {
			return rows[ka] < rows[kb]
		}
		if cols[ka] != cols[kb] {
			return cols[ka] < cols[kb]
		}
		return ka < kb
	})

	m := &Matrix{r: r, c: c, indptr: make([]int, r+1)}
	m.ind = make([]int, 0, len(rows))
	m.val = make([]float64, 0, len(rows))
	prevRow, prevCol := -1, -1
	for _, k := range order {
		ri, ci, v := rows[k], cols[k], vals[k]
		if ri == prevRow && ci == prevCol {
			m.val[len(m.val)-1] += v
			continue
		}
		m.ind = append(m.ind, ci)
		m.val = append(m.val, v)
		m.indptr[ri+1]++
		prevRow, prevCol = ri, ci
	}
	for i := 0; i < r; i++ {
		m.indptr[i+1] += m.indptr[i]
	}

	return m, nil
}

// NewFromDense builds a Matrix from a dense gonum matrix, storing every
// entry whose absolute value exceeds eps (eps<0 is treated as 0).
//
// Complexity: O(r·c).
func NewFromDense(d *mat.Dense, eps float64) (*Matrix, error) {
	if d == nil {
		return nil, ErrNilMatrix
	}
	if eps < 0 {
		eps = 0
	}
	r, c := d.Dims()
	m := &Matrix{r: r, c: c, indptr: make([]int, r+1)}
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			v := d.At(i, j)
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, fmt.Errorf("%w: at (%d,%d)", ErrNaNInf, i, j)
			}
			if math.Abs(v) > eps {
				m.ind = append(m.ind, j)
				m.val = append(m.val, v)
			}
		}
		m.indptr[i+1] = len(m.ind)
	}

	return m, nil
}

// Identity returns the n×n identity matrix.
func Identity(n int) *Matrix {
	m := &Matrix{r: n, c: n, indptr: make([]int, n+1), ind: make([]int, n), val: make([]float64, n)}
	for i := 0; i < n; i++ {
		m.indptr[i+1] = i + 1
		m.ind[i] = i
		m.val[i] = 1
	}

	return m
}

// Rows returns the number of rows.
func (m *Matrix) Rows() int { return m.r }

// Cols returns the number of columns.
func (m *Matrix) Cols() int { return m.c }

// NNZ returns the number of stored entries.
func (m *Matrix) NNZ() int { return len(m.ind) }

// At returns the entry at (i, j).
//
// Errors: ErrOutOfRange on invalid indices.
// Complexity: O(log nnz(row i)).
func (m *Matrix) At(i, j int) (float64, error) {
	if i < 0 || i >= m.r || j < 0 || j >= m.c {
		return 0, fmt.Errorf("%w: (%d,%d) in %dx%d", ErrOutOfRange, i, j, m.r, m.c)
	}
	lo, hi := m.indptr[i], m.indptr[i+1]
	k := lo + sort.SearchInts(m.ind[lo:hi], j)
	if k < hi && m.ind[k] == j {
		return m.val[k], nil
	}

	return 0, nil
}

// Row returns the column indices and values of row i as subslices of the
// backing arrays. Callers must treat both as read-only.
func (m *Matrix) Row(i int) (cols []int, vals []float64) {
	lo, hi := m.indptr[i], m.indptr[i+1]

	return m.ind[lo:hi], m.val[lo:hi]
}

// RowSums returns the per-row sums.
//
// Complexity: O(nnz).
func (m *Matrix) RowSums() []float64 {
	sums := make([]float64, m.r)
	for i := 0; i < m.r; i++ {
		sums[i] = floats.Sum(m.val[m.indptr[i]:m.indptr[i+1]])
	}

	return sums
}

// ColSums returns the per-column sums.
//
// Complexity: O(nnz).
func (m *Matrix) ColSums() []float64 {
	sums := make([]float64, m.c)
	for k, j := range m.ind {
		sums[j] += m.val[k]
	}

	return sums
}

// MulVec computes dst = M·x.
//
// Errors: ErrDimensionMismatch when len(x) != Cols or len(dst) != Rows.
// Complexity: O(nnz).
func (m *Matrix) MulVec(dst, x []float64) error {
	if len(x) != m.c || len(dst) != m.r {
		return fmt.Errorf("%w: MulVec %dx%d with x=%d dst=%d", ErrDimensionMismatch, m.r, m.c, len(x), len(dst))
	}
	for i := 0; i < m.r; i++ {
		var s float64
		for k := m.indptr[i]; k < m.indptr[i+1]; k++ {
			s += m.val[k] * x[m.ind[k]]
		}
		dst[i] = s
	}

	return nil
}

// TMulVec computes dst = Mᵀ·x.
//
// Errors: ErrDimensionMismatch when len(x) != Rows or len(dst) != Cols.
// Complexity: O(nnz).
func (m *Matrix) TMulVec(dst, x []float64) error {
	if len(x) != m.r || len(dst) != m.c {
		return fmt.Errorf("%w: TMulVec %dx%d with x=%d dst=%d", ErrDimensionMismatch, m.r, m.c, len(x), len(dst))
	}
	for j := range dst {
		dst[j] = 0
	}
	for i := 0; i < m.r; i++ {
		xi := x[i]
		if xi == 0 {
			continue
		}
		for k := m.indptr[i]; k < m.indptr[i+1]; k++ {
			dst[m.ind[k]] += m.val[k] * xi
		}
	}

	return nil
}

// Dense materializes the matrix as a gonum *mat.Dense.
//
// Complexity: O(r·c) space — intended for small or test-sized matrices.
func (m *Matrix) Dense() *mat.Dense {
	d := mat.NewDense(m.r, m.c, nil)
	for i := 0; i < m.r; i++ {
		for k := m.indptr[i]; k < m.indptr[i+1]; k++ {
			d.Set(i, m.ind[k], m.val[k])
		}
	}

	return d
}

// Clone returns a deep copy.
func (m *Matrix) Clone() *Matrix {
	cp := &Matrix{
		r:      m.r,
		c:      m.c,
		indptr: append([]int(nil), m.indptr...),
		ind:    append([]int(nil), m.ind...),
		val:    append([]float64(nil), m.val...),
	}

	return cp
}

// Submatrix extracts the block selected by the given row and column index
// sets, preserving their order. Indices must be valid and, for deterministic
// downstream use, callers should pass them sorted ascending.
//
// Errors: ErrOutOfRange on any invalid index.
// Complexity: O(nnz + c) time, O(c) scratch.
func (m *Matrix) Submatrix(rowIdx, colIdx []int) (*Matrix, error) {
	colMap := make([]int, m.c)
	for j := range colMap {
		colMap[j] = -1
	}
	for p, j := range colIdx {
		if j < 0 || j >= m.c {
			return nil, fmt.Errorf("%w: column %d in %dx%d", ErrOutOfRange, j, m.r, m.c)
		}
		colMap[j] = p
	}

	sub := &Matrix{r: len(rowIdx), c: len(colIdx), indptr: make([]int, len(rowIdx)+1)}
	for p, i := range rowIdx {
		if i < 0 || i >= m.r {
			return nil, fmt.Errorf("%w: row %d in %dx%d", ErrOutOfRange, i, m.r, m.c)
		}
		for k := m.indptr[i]; k < m.indptr[i+1]; k++ {
			if q := colMap[m.ind[k]]; q >= 0 {
				sub.ind = append(sub.ind, q)
				sub.val = append(sub.val, m.val[k])
			}
		}
		// Column order within the extracted row follows colIdx, which may not
		// be ascending in the new numbering; restore CSR ordering.
		lo := sub.indptr[p]
		sortRowSegment(sub.ind[lo:], sub.val[lo:])
		sub.indptr[p+1] = len(sub.ind)
	}

	return sub, nil
}

// sortRowSegment co-sorts one row's (ind, val) segment by column index.
func sortRowSegment(ind []int, val []float64) {
	sort.Sort(&rowSegment{ind: ind, val: val})
}

type rowSegment struct {
	ind []int
	val []float64
}

func (s *rowSegment) Len() int           { return len(s.ind) }
func (s *rowSegment) Less(i, j int) bool { return s.ind[i] < s.ind[j] }
func (s *rowSegment) Swap(i, j int) {
	s.ind[i], s.ind[j] = s.ind[j], s.ind[i]
	s.val[i], s.val[j] = s.val[j], s.val[i]
}
