package pipeline

import (
	"errors"

	"github.com/ShobiStassen/cellrank/driver"
	"github.com/ShobiStassen/cellrank/fate"
	"github.com/ShobiStassen/cellrank/kernel"
	"github.com/ShobiStassen/cellrank/macro"
)

// ErrConfig is returned for unusable configurations: an empty kernel weight
// map, an unknown kernel name, or an unknown decomposition method.
var ErrConfig = errors.New("pipeline: invalid configuration")

// Method selects the macrostate decomposition strategy.
type Method int

const (
	// MethodGPCCA is the robust default.
	MethodGPCCA Method = iota

	// MethodCFLARE is the cheaper eigenvector-clustering alternative.
	MethodCFLARE
)

// String implements fmt.Stringer.
func (m Method) String() string {
	switch m {
	case MethodCFLARE:
		return "cflare"
	default:
		return "gpcca"
	}
}

// Config aggregates one run's settings. Kernel weights select which kernels
// participate and how the mixture is composed; all other fields carry the
// per-stage options verbatim.
type Config struct {
	// KernelWeights maps kernel names ("velocity", "connectivity",
	// "pseudotime", "cytotrace", "precomputed") to mixture weights.
	// Weights must be non-negative and sum to one.
	KernelWeights map[string]float64

	// Per-kernel options, consulted only for kernels with a weight.
	Velocity     kernel.VelocityOptions
	Connectivity kernel.ConnectivityOptions
	Pseudotime   kernel.PseudotimeOptions
	CytoTRACE    kernel.CytoTRACEOptions
	Precomputed  kernel.PrecomputedOptions

	// Method selects GPCCA or CFLARE.
	Method Method

	// Macro configures the decomposition, Fate the absorption solver, and
	// Driver the gene ranking.
	Macro  macro.Options
	Fate   fate.Options
	Driver driver.Options

	// StochasticTol overrides the row-sum tolerance used when validating
	// the combined transition matrix; 0 keeps the package default.
	StochasticTol float64
}

// DefaultConfig runs a connectivity-plus-velocity mixture through GPCCA.
func DefaultConfig() Config {
	return Config{
		KernelWeights: map[string]float64{
			"velocity":     0.8,
			"connectivity": 0.2,
		},
		Velocity:     kernel.DefaultVelocityOptions(),
		Connectivity: kernel.DefaultConnectivityOptions(),
		Pseudotime:   kernel.DefaultPseudotimeOptions(),
		CytoTRACE:    kernel.DefaultCytoTRACEOptions(),
		Precomputed:  kernel.DefaultPrecomputedOptions(),
		Macro:        macro.DefaultOptions(),
		Fate:         fate.DefaultOptions(),
	}
}
