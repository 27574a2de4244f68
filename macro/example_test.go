package macro_test

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/ShobiStassen/cellrank/macro"
	"github.com/ShobiStassen/cellrank/sparse"
)

// ExampleGPCCA decomposes a 4-cell chain: a metastable early pair drains
// through a short-lived bridge into an absorbing cell. The eigengap selects
// two macrostates on its own.
func ExampleGPCCA() {
	dense := mat.NewDense(4, 4, []float64{
		0.44, 0.45, 0.11, 0,
		0.45, 0.44, 0.11, 0,
		0, 0, 0.5, 0.5,
		0, 0, 0, 1,
	})
	p, err := sparse.NewFromDense(dense, 0)
	if err != nil {
		fmt.Println("build failed:", err)
		return
	}

	d, err := macro.GPCCA(p, macro.DefaultOptions())
	if err != nil {
		fmt.Println("decompose failed:", err)
		return
	}

	for _, s := range d.States {
		fmt.Printf("state %d: %s, cells %v\n", s.ID, s.Kind, s.Members)
	}

	// Output:
	// state 0: initial, cells [0 1]
	// state 1: terminal, cells [2 3]
}
