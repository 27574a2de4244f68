package kernel

import "github.com/ShobiStassen/cellrank/sparse"

// Defaults for kernel options (single source of truth; DefaultXOptions
// constructors must mirror these constants).
const (
	// DefaultSoftmaxScale is the velocity softmax temperature. Smaller values
	// sharpen the distribution toward the best-aligned neighbor.
	DefaultSoftmaxScale = 1.0

	// DefaultSelfLoop is the residual self-transition mass reserved on every
	// row by the velocity kernel. Rows without out-neighbors always receive a
	// full self-loop regardless of this value.
	DefaultSelfLoop = 0.0

	// DefaultNu is the pseudotime softening parameter: a backward edge with
	// pseudotime drop Δ keeps exp(-Δ/Nu) of its weight. Smaller Nu enforces
	// the forward direction more strictly.
	DefaultNu = 0.5

	// DefaultTieTol is the pseudotime difference below which two cells are
	// considered tied (the edge is treated as forward).
	DefaultTieTol = 1e-6

	// DefaultMaxTieFraction is the largest tolerated fraction of tied edges;
	// beyond it, the pseudotime carries too little order to direct the graph.
	DefaultMaxTieFraction = 0.9

	// DefaultNTopGenes is the number of top diversity-correlated genes
	// aggregated into the CytoTRACE score.
	DefaultNTopGenes = 200

	// DefaultStochasticTol bounds the row-sum deviation accepted by the
	// precomputed kernel in strict mode and by combination weight checks.
	DefaultStochasticTol = sparse.StochasticTol
)

// Kernel is the shared contract: a pure function from an input bundle to a
// row-stochastic N×N transition matrix.
type Kernel interface {
	// Name identifies the variant in weighting maps and error messages.
	Name() string

	// Compute builds the variant's transition matrix. Implementations never
	// mutate in and never retain references into the returned matrix.
	Compute(in *Inputs) (*sparse.Matrix, error)
}

// VelocityOptions configures the velocity kernel.
type VelocityOptions struct {
	// SoftmaxScale is the softmax temperature applied to cosine correlations.
	SoftmaxScale float64

	// SelfLoop in [0,1) reserves that fraction of each row for the
	// self-transition, scaling neighbor mass by 1-SelfLoop.
	SelfLoop float64
}

// DefaultVelocityOptions mirrors the Default* constants.
func DefaultVelocityOptions() VelocityOptions {
	return VelocityOptions{SoftmaxScale: DefaultSoftmaxScale, SelfLoop: DefaultSelfLoop}
}

// ConnectivityOptions configures the connectivity kernel.
type ConnectivityOptions struct {
	// DensityNormalize rescales the graph by inverse node degrees
	// (Q⁻¹·K·Q⁻¹) before row normalization, correcting for sampling density.
	DensityNormalize bool
}

// DefaultConnectivityOptions returns the documented defaults.
func DefaultConnectivityOptions() ConnectivityOptions {
	return ConnectivityOptions{DensityNormalize: false}
}

// PseudotimeOptions configures the pseudotime kernel.
type PseudotimeOptions struct {
	// Nu is the softening parameter for backward edges; see DefaultNu.
	Nu float64

	// Hard removes backward edges entirely instead of damping them.
	Hard bool

	// TieTol is the pseudotime-tie tolerance; see DefaultTieTol.
	TieTol float64

	// MaxTieFraction caps the tolerated fraction of tied edges.
	MaxTieFraction float64
}

// DefaultPseudotimeOptions mirrors the Default* constants.
func DefaultPseudotimeOptions() PseudotimeOptions {
	return PseudotimeOptions{
		Nu:             DefaultNu,
		Hard:           false,
		TieTol:         DefaultTieTol,
		MaxTieFraction: DefaultMaxTieFraction,
	}
}

// Aggregation selects how the CytoTRACE kernel aggregates top-gene
// expression into a per-cell score.
type Aggregation int

const (
	// AggMean uses the arithmetic mean.
	AggMean Aggregation = iota
	// AggMedian uses the median.
	AggMedian
	// AggGMean uses the geometric mean.
	AggGMean
	// AggHMean uses the harmonic mean.
	AggHMean
)

// CytoTRACEOptions configures the CytoTRACE kernel.
type CytoTRACEOptions struct {
	// NTopGenes is the number of top positively correlated genes to
	// aggregate; see DefaultNTopGenes.
	NTopGenes int

	// Aggregation selects the per-cell aggregation statistic.
	Aggregation Aggregation

	// Pseudotime configures the directed-diffusion step applied to the
	// derived ordering.
	Pseudotime PseudotimeOptions
}

// DefaultCytoTRACEOptions mirrors the Default* constants.
func DefaultCytoTRACEOptions() CytoTRACEOptions {
	return CytoTRACEOptions{
		NTopGenes:   DefaultNTopGenes,
		Aggregation: AggMean,
		Pseudotime:  DefaultPseudotimeOptions(),
	}
}

// PrecomputedOptions configures validation of an external transition matrix.
type PrecomputedOptions struct {
	// Strict rejects rows whose sums deviate from 1 beyond Tol. When false
	// (lenient mode), rows are deterministically renormalized instead.
	// Negative entries and massless rows are rejected in both modes.
	Strict bool

	// Tol bounds the accepted row-sum deviation; see DefaultStochasticTol.
	Tol float64
}

// DefaultPrecomputedOptions returns the documented defaults (strict).
func DefaultPrecomputedOptions() PrecomputedOptions {
	return PrecomputedOptions{Strict: true, Tol: DefaultStochasticTol}
}
