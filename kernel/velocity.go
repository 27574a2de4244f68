package kernel

import (
	"fmt"
	"math"

	"github.com/ShobiStassen/cellrank/sparse"
)

// Velocity directs transition probabilities along the velocity graph: the
// probability of moving from cell i to neighbor j grows with the cosine
// correlation between i's velocity vector and the displacement toward j.
//
// Per row, correlations pass through a tempered softmax
//
//	p(i→j) ∝ exp(corr(i,j) / SoftmaxScale)
//
// over i's out-neighbors, scaled by 1-SelfLoop, with SelfLoop mass kept on
// the diagonal. A cell without out-neighbors keeps a full self-loop so no
// row is ever massless.
type Velocity struct {
	Opts VelocityOptions
}

// NewVelocity returns a velocity kernel with the given options; zero-valued
// fields fall back to defaults.
func NewVelocity(opts VelocityOptions) *Velocity {
	if opts.SoftmaxScale <= 0 {
		opts.SoftmaxScale = DefaultSoftmaxScale
	}

	return &Velocity{Opts: opts}
}

// Name implements Kernel.
func (*Velocity) Name() string { return "velocity" }

// Compute implements Kernel.
//
// Errors:
//   - ErrComputation — velocity graph absent or of mismatched dimensionality.
//   - ErrConfig      — SelfLoop outside [0,1).
//
// Complexity: O(nnz) time, O(max row degree) scratch.
func (k *Velocity) Compute(in *Inputs) (*sparse.Matrix, error) {
	// Velocity-graph presence and shape are this kernel's own contract and
	// take precedence over generic bundle validation.
	if in == nil || in.VelocityGraph == nil {
		return nil, fmt.Errorf("%w: velocity kernel requires a velocity graph", ErrComputation)
	}
	vg := in.VelocityGraph
	n := in.Cells()
	if vg.Rows() != n || vg.Cols() != n {
		return nil, fmt.Errorf("%w: velocity graph is %dx%d, want %dx%d", ErrComputation, vg.Rows(), vg.Cols(), n, n)
	}
	if err := in.Validate(); err != nil {
		return nil, err
	}
	if k.Opts.SelfLoop < 0 || k.Opts.SelfLoop >= 1 {
		return nil, fmt.Errorf("%w: self-loop mass %g outside [0,1)", ErrConfig, k.Opts.SelfLoop)
	}

	var (
		rows, cols []int
		vals       []float64
		scale      = k.Opts.SoftmaxScale
		keep       = 1 - k.Opts.SelfLoop
	)
	for i := 0; i < n; i++ {
		nbr, corr := vg.Row(i)
		if len(nbr) == 0 {
			rows = append(rows, i)
			cols = append(cols, i)
			vals = append(vals, 1)
			continue
		}

		// Shift by the row maximum before exponentiation for stability.
		maxCorr := corr[0]
		for _, v := range corr[1:] {
			if v > maxCorr {
				maxCorr = v
			}
		}
		var z float64
		expd := make([]float64, len(corr))
		for p, v := range corr {
			expd[p] = math.Exp((v - maxCorr) / scale)
			z += expd[p]
		}

		selfAt := -1
		for p, j := range nbr {
			if j == i {
				selfAt = p
			}
			rows = append(rows, i)
			cols = append(cols, j)
			vals = append(vals, keep*expd[p]/z)
		}
		if k.Opts.SelfLoop > 0 {
			if selfAt >= 0 {
				vals[len(vals)-len(nbr)+selfAt] += k.Opts.SelfLoop
			} else {
				rows = append(rows, i)
				cols = append(cols, i)
				vals = append(vals, k.Opts.SelfLoop)
			}
		}
	}

	tm, err := sparse.NewFromTriplets(n, n, rows, cols, vals)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrComputation, err)
	}
	if err = tm.NormalizeRows(); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrComputation, err)
	}

	return tm, nil
}
