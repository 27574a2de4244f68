package kernel

import (
	"fmt"
	"math"

	"github.com/ShobiStassen/cellrank/sparse"
)

// Pseudotime implements directed diffusion: the undirected connectivity
// graph is reweighted so transitions prefer neighbors later in pseudotime.
//
// For an edge i→j with drop Δ = t(i) - t(j) beyond TieTol (a backward edge):
//   - soft mode multiplies the weight by exp(-Δ/Nu);
//   - hard mode removes the edge.
//
// Forward and tied edges keep their weight. Rows emptied by hard mode fall
// back to a unit self-loop.
type Pseudotime struct {
	Opts PseudotimeOptions
}

// NewPseudotime returns a pseudotime kernel; zero-valued fields fall back to
// defaults.
func NewPseudotime(opts PseudotimeOptions) *Pseudotime {
	if opts.Nu <= 0 {
		opts.Nu = DefaultNu
	}
	if opts.TieTol <= 0 {
		opts.TieTol = DefaultTieTol
	}
	if opts.MaxTieFraction <= 0 {
		opts.MaxTieFraction = DefaultMaxTieFraction
	}

	return &Pseudotime{Opts: opts}
}

// Name implements Kernel.
func (*Pseudotime) Name() string { return "pseudotime" }

// Compute implements Kernel, directing in.Connectivities by in.Pseudotime.
//
// Errors:
//   - ErrComputation — connectivity graph absent.
//   - ErrInput       — pseudotime absent, non-finite (the offending cell is
//     named), or so heavily tied that more than MaxTieFraction of edges
//     carry no direction.
//
// Complexity: O(nnz).
func (k *Pseudotime) Compute(in *Inputs) (*sparse.Matrix, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	if in.Connectivities == nil {
		return nil, fmt.Errorf("%w: pseudotime kernel requires a connectivity graph", ErrComputation)
	}
	if in.Pseudotime == nil {
		return nil, fmt.Errorf("%w: pseudotime kernel requires a pseudotime vector", ErrInput)
	}

	return k.computeOn(in.Connectivities, in.Pseudotime)
}

// computeOn runs the directed-diffusion reweighting for an explicit ordering
// t; shared with the CytoTRACE kernel.
func (k *Pseudotime) computeOn(conn *sparse.Matrix, t []float64) (*sparse.Matrix, error) {
	for i, ti := range t {
		if math.IsNaN(ti) || math.IsInf(ti, 0) {
			return nil, fmt.Errorf("%w: pseudotime of cell %d is not finite", ErrInput, i)
		}
	}
	if err := k.checkTies(conn, t); err != nil {
		return nil, err
	}

	n := conn.Rows()
	var (
		rows, cols []int
		vals       []float64
	)
	for i := 0; i < n; i++ {
		cs, vs := conn.Row(i)
		start := len(rows)
		for p, j := range cs {
			delta := t[i] - t[j]
			w := vs[p]
			switch {
			case delta <= k.Opts.TieTol:
				// forward or tied: keep
			case k.Opts.Hard:
				continue
			default:
				w *= math.Exp(-delta / k.Opts.Nu)
			}
			if w <= 0 {
				continue
			}
			rows = append(rows, i)
			cols = append(cols, j)
			vals = append(vals, w)
		}
		if len(rows) == start {
			rows = append(rows, i)
			cols = append(cols, i)
			vals = append(vals, 1)
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

// checkTies fails when the ordering is too flat to direct the graph: the
// fraction of edges whose endpoints are tied within TieTol must not exceed
// MaxTieFraction.
func (k *Pseudotime) checkTies(conn *sparse.Matrix, t []float64) error {
	var tied, total int
	n := conn.Rows()
	for i := 0; i < n; i++ {
		cs, _ := conn.Row(i)
		for _, j := range cs {
			if i == j {
				continue
			}
			total++
			if math.Abs(t[i]-t[j]) <= k.Opts.TieTol {
				tied++
			}
		}
	}
	if total == 0 {
		return nil
	}
	if frac := float64(tied) / float64(total); frac > k.Opts.MaxTieFraction {
		return fmt.Errorf("%w: %.1f%% of graph edges are pseudotime ties (limit %.1f%%)",
			ErrInput, 100*frac, 100*k.Opts.MaxTieFraction)
	}

	return nil
}
