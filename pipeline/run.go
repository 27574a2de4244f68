package pipeline

import (
	"fmt"
	"sort"

	"github.com/ShobiStassen/cellrank/driver"
	"github.com/ShobiStassen/cellrank/fate"
	"github.com/ShobiStassen/cellrank/kernel"
	"github.com/ShobiStassen/cellrank/macro"
	"github.com/ShobiStassen/cellrank/sparse"
)

// Result is the immutable outcome of one full pipeline run.
type Result struct {
	// Transition is the combined row-stochastic transition matrix.
	Transition *sparse.Matrix

	// Decomposition holds the identified macrostates.
	Decomposition *macro.Decomposition

	// Fate holds per-cell absorption probabilities toward each terminal
	// macrostate.
	Fate *fate.Result

	// Drivers holds one ranked gene table per terminal lineage; nil when
	// the inputs carry no expression matrix.
	Drivers []driver.Table

	// Warning relays the decomposition's eigengap advisory, if any.
	Warning *macro.AmbiguityWarning
}

// Run executes kernels → decomposition → fate → drivers on one input set.
// Kernels are instantiated from the weight map in name order, so the
// mixture is assembled deterministically. Errors from any stage are
// returned unwrapped and carry that stage's sentinel.
func Run(in *kernel.Inputs, cfg Config) (*Result, error) {
	if len(cfg.KernelWeights) == 0 {
		return nil, fmt.Errorf("%w: empty kernel weight map", ErrConfig)
	}
	names := make([]string, 0, len(cfg.KernelWeights))
	for name := range cfg.KernelWeights {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]kernel.Weighted, 0, len(names))
	for _, name := range names {
		k, err := cfg.kernelByName(name)
		if err != nil {
			return nil, err
		}
		parts = append(parts, kernel.Weighted{Kernel: k, Weight: cfg.KernelWeights[name]})
	}

	tm, err := kernel.Combine(in, parts, cfg.StochasticTol)
	if err != nil {
		return nil, err
	}

	var dec *macro.Decomposition
	switch cfg.Method {
	case MethodGPCCA:
		dec, err = macro.GPCCA(tm, cfg.Macro)
	case MethodCFLARE:
		dec, err = macro.CFLARE(tm, cfg.Macro)
	default:
		return nil, fmt.Errorf("%w: unknown method %d", ErrConfig, cfg.Method)
	}
	if err != nil {
		return nil, err
	}

	fates, err := fate.Compute(tm, dec, cfg.Fate)
	if err != nil {
		return nil, err
	}

	var tables []driver.Table
	if in != nil && in.Expression != nil {
		tables, err = driver.Rank(in.Expression, fates, cfg.Driver)
		if err != nil {
			return nil, err
		}
	}

	return &Result{
		Transition:    tm,
		Decomposition: dec,
		Fate:          fates,
		Drivers:       tables,
		Warning:       dec.Warning,
	}, nil
}

// kernelByName instantiates the named kernel with its configured options.
func (cfg Config) kernelByName(name string) (kernel.Kernel, error) {
	switch name {
	case "velocity":
		return kernel.NewVelocity(cfg.Velocity), nil
	case "connectivity":
		return kernel.NewConnectivity(cfg.Connectivity), nil
	case "pseudotime":
		return kernel.NewPseudotime(cfg.Pseudotime), nil
	case "cytotrace":
		return kernel.NewCytoTRACE(cfg.CytoTRACE), nil
	case "precomputed":
		return kernel.NewPrecomputed(cfg.Precomputed), nil
	default:
		return nil, fmt.Errorf("%w: unknown kernel %q", ErrConfig, name)
	}
}
