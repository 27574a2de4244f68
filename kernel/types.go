package kernel

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/ShobiStassen/cellrank/sparse"
)

// Inputs bundles every signal a kernel may consume. Only the signals a given
// kernel variant needs must be present; Validate enforces that whatever is
// present agrees on the cell count N.
//
// Inputs is treated as immutable once handed to a kernel: kernels read, they
// never write.
type Inputs struct {
	// Expression is the N×M cells-by-genes expression matrix.
	Expression *mat.Dense

	// Connectivities is the undirected kNN similarity graph (N×N, symmetric
	// non-negative weights).
	Connectivities *sparse.Matrix

	// VelocityGraph holds directed cosine correlations between each cell's
	// velocity vector and the displacement toward its neighbors (N×N).
	VelocityGraph *sparse.Matrix

	// Pseudotime is a per-cell scalar ordering (length N, finite).
	Pseudotime []float64

	// Precomputed is an externally supplied transition matrix (N×N).
	Precomputed *sparse.Matrix
}

// Cells returns the cell count N implied by the first populated structure,
// or 0 when the bundle is empty.
func (in *Inputs) Cells() int {
	switch {
	case in == nil:
		return 0
	case in.Expression != nil:
		r, _ := in.Expression.Dims()
		return r
	case in.Connectivities != nil:
		return in.Connectivities.Rows()
	case in.VelocityGraph != nil:
		return in.VelocityGraph.Rows()
	case in.Pseudotime != nil:
		return len(in.Pseudotime)
	case in.Precomputed != nil:
		return in.Precomputed.Rows()
	}

	return 0
}

// Validate checks dimensional consistency across every supplied structure.
// It fails fast with ErrInput naming the offending field and dimensions, so
// no kernel computation starts on a mismatched bundle.
//
// Complexity: O(1).
func (in *Inputs) Validate() error {
	n := in.Cells()
	if n == 0 {
		return fmt.Errorf("%w: empty input bundle", ErrInput)
	}
	if in.Expression != nil {
		if r, _ := in.Expression.Dims(); r != n {
			return fmt.Errorf("%w: expression has %d rows, want %d cells", ErrInput, r, n)
		}
	}
	if err := checkSquare("connectivities", in.Connectivities, n); err != nil {
		return err
	}
	if err := checkSquare("velocity graph", in.VelocityGraph, n); err != nil {
		return err
	}
	if err := checkSquare("precomputed matrix", in.Precomputed, n); err != nil {
		return err
	}
	if in.Pseudotime != nil && len(in.Pseudotime) != n {
		return fmt.Errorf("%w: pseudotime has length %d, want %d cells", ErrInput, len(in.Pseudotime), n)
	}

	return nil
}

func checkSquare(name string, m *sparse.Matrix, n int) error {
	if m == nil {
		return nil
	}
	if m.Rows() != n || m.Cols() != n {
		return fmt.Errorf("%w: %s is %dx%d, want %dx%d", ErrInput, name, m.Rows(), m.Cols(), n, n)
	}

	return nil
}

// Diagnostics reports advisory structural properties of the connectivity
// graph. Neither condition is fatal; asymmetric or disconnected kNN graphs
// merely degrade downstream estimates.
type Diagnostics struct {
	// Symmetric is true when connectivities match their transpose within tol.
	Symmetric bool

	// Connected is true when the connectivity graph has one undirected
	// component.
	Connected bool
}

// GraphDiagnostics inspects the connectivity graph. Returns ErrComputation
// when no connectivity graph is present.
//
// Complexity: O(nnz) time, O(N) space.
func (in *Inputs) GraphDiagnostics(tol float64) (Diagnostics, error) {
	if in == nil || in.Connectivities == nil {
		return Diagnostics{}, fmt.Errorf("%w: graph diagnostics require a connectivity graph", ErrComputation)
	}
	conn := in.Connectivities
	n := conn.Rows()

	diag := Diagnostics{Symmetric: true}
	for i := 0; i < n && diag.Symmetric; i++ {
		cols, vals := conn.Row(i)
		for k, j := range cols {
			back, _ := conn.At(j, i)
			if math.Abs(vals[k]-back) > tol {
				diag.Symmetric = false
				break
			}
		}
	}

	// Undirected reachability from cell 0 over edges in either direction.
	seen := make([]bool, n)
	queue := make([]int, 0, n)
	seen[0] = true
	queue = append(queue, 0)
	reached := 1
	for len(queue) > 0 {
		i := queue[0]
		queue = queue[1:]
		cols, _ := conn.Row(i)
		for _, j := range cols {
			if !seen[j] {
				seen[j] = true
				reached++
				queue = append(queue, j)
			}
		}
	}
	diag.Connected = reached == n

	return diag, nil
}
