package kernel

import (
	"fmt"

	"github.com/ShobiStassen/cellrank/sparse"
)

// Connectivity is the symmetric diffusion kernel: transition probability
// from i to j is proportional to the undirected edge weight between them.
// With DensityNormalize enabled, weights are first rescaled by inverse node
// degrees (Q⁻¹·K·Q⁻¹), which corrects for uneven cell-sampling density.
type Connectivity struct {
	Opts ConnectivityOptions
}

// NewConnectivity returns a connectivity kernel.
func NewConnectivity(opts ConnectivityOptions) *Connectivity {
	return &Connectivity{Opts: opts}
}

// Name implements Kernel.
func (*Connectivity) Name() string { return "connectivity" }

// Compute implements Kernel.
//
// Errors: ErrComputation when the connectivity graph is absent, has a
// mismatched shape, or holds an isolated cell with no edges and no way to
// self-loop (isolated cells receive a unit self-loop instead of failing).
//
// Complexity: O(nnz).
func (k *Connectivity) Compute(in *Inputs) (*sparse.Matrix, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	conn := in.Connectivities
	if conn == nil {
		return nil, fmt.Errorf("%w: connectivity kernel requires a connectivity graph", ErrComputation)
	}

	tm := conn.Clone()
	if k.Opts.DensityNormalize {
		if err := densityNormalize(tm); err != nil {
			return nil, err
		}
	}
	tm, err := withSelfLoopFallback(tm)
	if err != nil {
		return nil, err
	}
	if err = tm.NormalizeRows(); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrComputation, err)
	}

	return tm, nil
}

// densityNormalize rescales m to Q⁻¹·m·Q⁻¹ in place, where Q holds the node
// degrees (column sums). Zero-degree nodes keep their (empty) rows.
func densityNormalize(m *sparse.Matrix) error {
	q := m.ColSums()
	inv := make([]float64, len(q))
	for i, d := range q {
		if d > 0 {
			inv[i] = 1 / d
		} else {
			inv[i] = 1
		}
	}
	if err := m.ScaleRows(inv); err != nil {
		return fmt.Errorf("%w: %s", ErrComputation, err)
	}
	if err := m.ScaleCols(inv); err != nil {
		return fmt.Errorf("%w: %s", ErrComputation, err)
	}

	return nil
}

// withSelfLoopFallback rebuilds m so every massless row carries a unit
// self-loop, preserving the no-zero-row invariant of transition matrices.
func withSelfLoopFallback(m *sparse.Matrix) (*sparse.Matrix, error) {
	sums := m.RowSums()
	needFix := false
	for _, s := range sums {
		if s == 0 {
			needFix = true
			break
		}
	}
	if !needFix {
		return m, nil
	}

	n := m.Rows()
	var rows, cols []int
	var vals []float64
	for i := 0; i < n; i++ {
		if sums[i] == 0 {
			rows = append(rows, i)
			cols = append(cols, i)
			vals = append(vals, 1)
			continue
		}
		cs, vs := m.Row(i)
		for p, j := range cs {
			rows = append(rows, i)
			cols = append(cols, j)
			vals = append(vals, vs[p])
		}
	}
	out, err := sparse.NewFromTriplets(n, m.Cols(), rows, cols, vals)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrComputation, err)
	}

	return out, nil
}
