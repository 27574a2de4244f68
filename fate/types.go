package fate

import "gonum.org/v1/gonum/mat"

// Defaults for the absorption solver (single source of truth).
const (
	// DefaultTol is the convergence threshold on the largest per-sweep
	// update of any fate probability.
	DefaultTol = 1e-10

	// DefaultMaxIter caps Gauss-Seidel sweeps per lineage column.
	DefaultMaxIter = 10000

	// DefaultLeakTol is the outgoing mass an absorbing cell may send
	// outside its own macrostate before it is flagged as leaky.
	DefaultLeakTol = 1e-3
)

// Options configures the absorption computation. Zero values fall back to
// the documented defaults.
type Options struct {
	// Tol is the solver convergence threshold.
	Tol float64

	// MaxIter caps solver sweeps per column.
	MaxIter int

	// Workers bounds the number of concurrent column solvers; 0 uses one
	// worker per CPU.
	Workers int

	// LeakTol flags absorbing cells with residual outflow.
	LeakTol float64
}

// DefaultOptions mirrors the Default* constants.
func DefaultOptions() Options {
	return Options{
		Tol:     DefaultTol,
		MaxIter: DefaultMaxIter,
		LeakTol: DefaultLeakTol,
	}
}

func (o Options) withDefaults() Options {
	if o.Tol <= 0 {
		o.Tol = DefaultTol
	}
	if o.MaxIter <= 0 {
		o.MaxIter = DefaultMaxIter
	}
	if o.LeakTol <= 0 {
		o.LeakTol = DefaultLeakTol
	}

	return o
}

// Result is the immutable outcome of one absorption computation.
type Result struct {
	// Probabilities is N×L: row i holds cell i's absorption probabilities
	// toward each terminal lineage. Rows of absorbing cells are exact
	// one-hot indicators of their own lineage; transient rows sum to one up
	// to solver tolerance.
	Probabilities *mat.Dense

	// TerminalIDs maps lineage columns to macrostate IDs, ascending.
	TerminalIDs []int

	// Leaky lists absorbing cells whose outgoing mass escapes their own
	// macrostate by more than LeakTol. They are still treated as absorbing;
	// the list is advisory. Sorted ascending.
	Leaky []int

	// Iterations is the largest sweep count any lineage column needed.
	Iterations int

	// Residual is the largest final per-sweep update across columns.
	Residual float64
}
