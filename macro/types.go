package macro

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Kind classifies a macrostate by its long-run role in the chain.
type Kind int

const (
	// KindTransient marks a pass-through state with both inflow and outflow.
	KindTransient Kind = iota

	// KindInitial marks a source-like state with negligible inflow.
	KindInitial

	// KindTerminal marks an absorbing state: high coarse self-transition and
	// negligible outflow.
	KindTerminal
)

// String implements fmt.Stringer.
func (k Kind) String() string {
	switch k {
	case KindInitial:
		return "initial"
	case KindTerminal:
		return "terminal"
	default:
		return "transient"
	}
}

// Unassigned marks cells whose best membership falls below the confidence
// threshold in Decomposition.Assignments.
const Unassigned = -1

// Macrostate is one identified coarse state. Values are never mutated after
// creation; a new decomposition produces a new set.
type Macrostate struct {
	// ID is the state's column index in the membership and coarse matrices.
	ID int

	// Kind is the terminal/initial/transient classification.
	Kind Kind

	// Membership holds the per-cell soft assignment to this state (length N;
	// across all states of a decomposition each cell's memberships sum to 1).
	Membership []float64

	// Members lists the cells hard-assigned to this state: argmax membership
	// at or above the confidence threshold. Sorted ascending.
	Members []int

	// Stability is the state's coarse self-transition probability.
	Stability float64

	// StationaryProb is the state's mass in the stationary distribution of
	// the coarse chain.
	StationaryProb float64
}

// AmbiguityWarning is a non-fatal advisory: the eigengap below the retained
// spectrum is smaller than the configured margin, so the macrostate count is
// unstable under re-parameterization. The pipeline continues; callers decide
// whether to trust the results.
type AmbiguityWarning struct {
	// States is the macrostate count the gap was evaluated for.
	States int

	// Gap is the achieved eigengap |λ_k| - |λ_k+1|.
	Gap float64

	// Margin is the configured minimum.
	Margin float64
}

// String implements fmt.Stringer.
func (w *AmbiguityWarning) String() string {
	return fmt.Sprintf("macro: eigengap %.3g below margin %.3g for %d macrostates; results may be unstable", w.Gap, w.Margin, w.States)
}

// Decomposition is the immutable result of one macrostate identification.
type Decomposition struct {
	// States holds the identified macrostates, indexed by ID.
	States []*Macrostate

	// Memberships is the N×m soft-assignment matrix (rows sum to 1).
	Memberships *mat.Dense

	// Coarse is the m×m macrostate-to-macrostate transition matrix obtained
	// by projecting the full chain onto the memberships.
	Coarse *mat.Dense

	// Eigenvalues holds the retained leading eigenvalues, ordered by
	// decreasing modulus.
	Eigenvalues []complex128

	// Assignments maps each cell to its hard macrostate ID, or Unassigned
	// when the best membership falls below the confidence threshold.
	Assignments []int

	// Crispness is the PCCA+ objective value in [0,1] (GPCCA only; 0 for
	// CFLARE).
	Crispness float64

	// SchurIterations reports the subspace-iteration count (diagnostic).
	SchurIterations int

	// Warning is non-nil when the eigengap is below the configured margin.
	Warning *AmbiguityWarning
}

// Terminal returns the terminal macrostates in ID order.
func (d *Decomposition) Terminal() []*Macrostate {
	var out []*Macrostate
	for _, s := range d.States {
		if s.Kind == KindTerminal {
			out = append(out, s)
		}
	}

	return out
}

// Initial returns the initial macrostates in ID order.
func (d *Decomposition) Initial() []*Macrostate {
	var out []*Macrostate
	for _, s := range d.States {
		if s.Kind == KindInitial {
			out = append(out, s)
		}
	}

	return out
}

// Defaults for decomposition options (single source of truth).
const (
	// DefaultMaxStates is the search ceiling for the eigengap heuristic when
	// the macrostate count is not requested explicitly.
	DefaultMaxStates = 10

	// DefaultMinConfidence gates hard assignment: cells whose best
	// membership is below it stay Unassigned.
	DefaultMinConfidence = 0.5

	// DefaultStabilityThreshold is the coarse self-transition probability at
	// or above which a macrostate counts as terminal.
	DefaultStabilityThreshold = 0.96

	// DefaultMergeTol is the maximum L∞ distance between two coarse rows at
	// which the corresponding macrostates are considered duplicates and
	// merged (GPCCA only).
	DefaultMergeTol = 1e-4

	// DefaultGapMargin is the minimum eigengap below the retained spectrum;
	// smaller gaps produce an AmbiguityWarning.
	DefaultGapMargin = 0.02

	// DefaultInitialInflowTol bounds the coarse inflow below which a
	// non-terminal macrostate counts as initial.
	DefaultInitialInflowTol = 0.01

	// DefaultTol is the subspace-iteration convergence tolerance (successive
	// subspace rotation distance).
	DefaultTol = 1e-9

	// DefaultMaxIter caps subspace-iteration sweeps.
	DefaultMaxIter = 10000

	// DefaultOptimizeEvals caps PCCA+ objective evaluations.
	DefaultOptimizeEvals = 2000

	// DefaultSeed seeds CFLARE's k-means. GPCCA ignores it (the algorithm is
	// deterministic without a seed).
	DefaultSeed = 42
)

// Options configures a decomposition. The zero value of any field falls
// back to the corresponding Default constant.
type Options struct {
	// States requests an explicit macrostate count; 0 selects it
	// automatically via the largest eigengap below MaxStates.
	States int

	// MaxStates is the eigengap search ceiling.
	MaxStates int

	// MinConfidence gates hard assignment.
	MinConfidence float64

	// StabilityThreshold classifies terminal states.
	StabilityThreshold float64

	// MergeTol merges near-degenerate macrostates (GPCCA).
	MergeTol float64

	// GapMargin triggers the AmbiguityWarning.
	GapMargin float64

	// InitialInflowTol classifies initial states.
	InitialInflowTol float64

	// Tol is the subspace-iteration convergence tolerance.
	Tol float64

	// MaxIter caps subspace-iteration sweeps.
	MaxIter int

	// OptimizeEvals caps PCCA+ objective evaluations.
	OptimizeEvals int

	// Seed seeds CFLARE's clustering.
	Seed int64
}

// DefaultOptions mirrors the Default* constants.
func DefaultOptions() Options {
	return Options{
		States:             0,
		MaxStates:          DefaultMaxStates,
		MinConfidence:      DefaultMinConfidence,
		StabilityThreshold: DefaultStabilityThreshold,
		MergeTol:           DefaultMergeTol,
		GapMargin:          DefaultGapMargin,
		InitialInflowTol:   DefaultInitialInflowTol,
		Tol:                DefaultTol,
		MaxIter:            DefaultMaxIter,
		OptimizeEvals:      DefaultOptimizeEvals,
		Seed:               DefaultSeed,
	}
}

// withDefaults resolves zero-valued fields against the documented defaults.
func (o Options) withDefaults() Options {
	if o.MaxStates <= 0 {
		o.MaxStates = DefaultMaxStates
	}
	if o.MinConfidence <= 0 {
		o.MinConfidence = DefaultMinConfidence
	}
	if o.StabilityThreshold <= 0 {
		o.StabilityThreshold = DefaultStabilityThreshold
	}
	if o.MergeTol <= 0 {
		o.MergeTol = DefaultMergeTol
	}
	if o.GapMargin <= 0 {
		o.GapMargin = DefaultGapMargin
	}
	if o.InitialInflowTol <= 0 {
		o.InitialInflowTol = DefaultInitialInflowTol
	}
	if o.Tol <= 0 {
		o.Tol = DefaultTol
	}
	if o.MaxIter <= 0 {
		o.MaxIter = DefaultMaxIter
	}
	if o.OptimizeEvals <= 0 {
		o.OptimizeEvals = DefaultOptimizeEvals
	}
	if o.Seed == 0 {
		o.Seed = DefaultSeed
	}

	return o
}
