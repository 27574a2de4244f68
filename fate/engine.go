package fate

import (
	"fmt"
	"math"
	"runtime"
	"sync"

	"gonum.org/v1/gonum/mat"

	"github.com/ShobiStassen/cellrank/macro"
	"github.com/ShobiStassen/cellrank/sparse"
)

// Compute derives absorption probabilities toward the terminal macrostates
// of dec under the transition matrix p.
//
// Errors:
//   - ErrInput        — nil arguments, non-stochastic p, or a size mismatch
//     between p and dec.
//   - ErrConfig       — dec has no terminal macrostate.
//   - ErrUnreachable  — some transient cell cannot reach the absorbing set.
//   - ErrNotConverged — the solver exhausted its sweep budget.
func Compute(p *sparse.Matrix, dec *macro.Decomposition, opts Options) (*Result, error) {
	if p == nil || dec == nil {
		return nil, fmt.Errorf("%w: nil transition matrix or decomposition", ErrInput)
	}
	if err := p.CheckStochastic(sparse.StochasticTol); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInput, err)
	}
	n := p.Rows()
	if len(dec.Assignments) != n {
		return nil, fmt.Errorf("%w: decomposition covers %d cells, matrix has %d", ErrInput, len(dec.Assignments), n)
	}
	o := opts.withDefaults()

	terminals := dec.Terminal()
	if len(terminals) == 0 {
		return nil, ErrConfig
	}
	nLin := len(terminals)

	// lineageOf maps each cell to its terminal lineage column, or -1 for
	// transient cells.
	lineageOf := make([]int, n)
	for i := range lineageOf {
		lineageOf[i] = -1
	}
	terminalIDs := make([]int, nLin)
	for li, s := range terminals {
		terminalIDs[li] = s.ID
		for _, c := range s.Members {
			lineageOf[c] = li
		}
	}

	var transIdx []int
	for i := 0; i < n; i++ {
		if lineageOf[i] < 0 {
			transIdx = append(transIdx, i)
		}
	}

	if err := checkReachable(p, lineageOf); err != nil {
		return nil, err
	}
	leaky := leakyCells(p, lineageOf, o.LeakTol)

	probs := mat.NewDense(n, nLin, nil)
	for i := 0; i < n; i++ {
		if li := lineageOf[i]; li >= 0 {
			probs.Set(i, li, 1)
		}
	}

	result := &Result{
		Probabilities: probs,
		TerminalIDs:   terminalIDs,
		Leaky:         leaky,
	}
	if len(transIdx) == 0 {
		return result, nil
	}

	q, err := p.Submatrix(transIdx, transIdx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInput, err)
	}
	rhat := aggregateTerminalMass(p, transIdx, lineageOf, nLin)

	x, iters, residual, err := solveColumns(q, rhat, o)
	if err != nil {
		return nil, err
	}
	for ti, gi := range transIdx {
		for li := 0; li < nLin; li++ {
			probs.Set(gi, li, x.At(ti, li))
		}
	}
	result.Iterations = iters
	result.Residual = residual

	return result, nil
}

// checkReachable walks the reversed transition graph from the absorbing set
// and reports transient cells the walk never reaches.
func checkReachable(p *sparse.Matrix, lineageOf []int) error {
	n := p.Rows()
	preds := make([][]int, n)
	for i := 0; i < n; i++ {
		cols, vals := p.Row(i)
		for c, j := range cols {
			if vals[c] > 0 && j != i {
				preds[j] = append(preds[j], i)
			}
		}
	}

	visited := make([]bool, n)
	var queue []int
	for i := 0; i < n; i++ {
		if lineageOf[i] >= 0 {
			visited[i] = true
			queue = append(queue, i)
		}
	}
	for len(queue) > 0 {
		j := queue[0]
		queue = queue[1:]
		for _, i := range preds[j] {
			if !visited[i] {
				visited[i] = true
				queue = append(queue, i)
			}
		}
	}

	var stranded []int
	for i := 0; i < n; i++ {
		if !visited[i] {
			stranded = append(stranded, i)
		}
	}
	if len(stranded) == 0 {
		return nil
	}
	sample := stranded
	if len(sample) > 5 {
		sample = sample[:5]
	}

	return fmt.Errorf("%w: %d cells cannot reach any terminal macrostate (first: %v)", ErrUnreachable, len(stranded), sample)
}

// leakyCells flags absorbing cells whose outgoing mass escapes their own
// macrostate beyond the leak tolerance.
func leakyCells(p *sparse.Matrix, lineageOf []int, tol float64) []int {
	var leaky []int
	for i := 0; i < p.Rows(); i++ {
		li := lineageOf[i]
		if li < 0 {
			continue
		}
		cols, vals := p.Row(i)
		leak := 0.0
		for c, j := range cols {
			if lineageOf[j] != li {
				leak += vals[c]
			}
		}
		if leak > tol {
			leaky = append(leaky, i)
		}
	}

	return leaky
}

// aggregateTerminalMass builds the transient-to-lineage block: entry (i, li)
// is the one-step mass transient cell transIdx[i] sends into lineage li.
func aggregateTerminalMass(p *sparse.Matrix, transIdx, lineageOf []int, nLin int) *mat.Dense {
	rhat := mat.NewDense(len(transIdx), nLin, nil)
	for ti, gi := range transIdx {
		cols, vals := p.Row(gi)
		for c, j := range cols {
			if li := lineageOf[j]; li >= 0 {
				rhat.Set(ti, li, rhat.At(ti, li)+vals[c])
			}
		}
	}

	return rhat
}

// solveColumns solves (I-Q)·X = R column by column with Gauss-Seidel,
// distributing independent columns over a worker pool.
func solveColumns(q *sparse.Matrix, rhat *mat.Dense, o Options) (*mat.Dense, int, float64, error) {
	nt, nLin := rhat.Dims()
	x := mat.NewDense(nt, nLin, nil)

	workers := o.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > nLin {
		workers = nLin
	}

	var (
		wg         sync.WaitGroup
		jobs       = make(chan int)
		iterations = make([]int, nLin)
		residuals  = make([]float64, nLin)
		errs       = make([]error, nLin)
	)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			col := make([]float64, nt)
			for li := range jobs {
				iters, res, err := gaussSeidel(q, rhat, li, col, o)
				iterations[li], residuals[li], errs[li] = iters, res, err
				if err == nil {
					x.SetCol(li, col)
				}
			}
		}()
	}
	for li := 0; li < nLin; li++ {
		jobs <- li
	}
	close(jobs)
	wg.Wait()

	maxIters, maxRes := 0, 0.0
	for li := 0; li < nLin; li++ {
		if errs[li] != nil {
			return nil, 0, 0, errs[li]
		}
		if iterations[li] > maxIters {
			maxIters = iterations[li]
		}
		if residuals[li] > maxRes {
			maxRes = residuals[li]
		}
	}

	return x, maxIters, maxRes, nil
}

// gaussSeidel solves (I-Q)·x = rhat[:,li] in place over col, returning the
// sweep count and final update size.
func gaussSeidel(q *sparse.Matrix, rhat *mat.Dense, li int, col []float64, o Options) (int, float64, error) {
	nt := len(col)
	for i := range col {
		col[i] = 0
	}
	delta := math.Inf(1)
	for sweep := 1; sweep <= o.MaxIter; sweep++ {
		delta = 0
		for i := 0; i < nt; i++ {
			cols, vals := q.Row(i)
			s := rhat.At(i, li)
			diag := 0.0
			for c, j := range cols {
				if j == i {
					diag = vals[c]
					continue
				}
				s += vals[c] * col[j]
			}
			next := s / (1 - diag)
			if d := math.Abs(next - col[i]); d > delta {
				delta = d
			}
			col[i] = next
		}
		if delta < o.Tol {
			return sweep, delta, nil
		}
	}

	return o.MaxIter, delta, fmt.Errorf("%w: lineage %d at update %.3g after %d sweeps (tol %.3g)",
		ErrNotConverged, li, delta, o.MaxIter, o.Tol)
}
