// Package cellrank estimates cell-fate trajectories from single-cell data
// by modeling differentiation as a Markov chain over cells.
//
// The analysis is organized as a pipeline of small packages:
//
//	sparse/   — CSR row-stochastic transition matrices and stochastic ops
//	kernel/   — transition kernels (velocity, connectivity, pseudotime,
//	            CytoTRACE, precomputed) and their weighted combination
//	macro/    — macrostate identification: GPCCA (Schur + PCCA+) and
//	            CFLARE (spectral k-means), coarse projection, terminal /
//	            initial / transient classification
//	fate/     — absorption probabilities toward terminal macrostates
//	driver/   — lineage driver genes ranked by fate correlation
//	pipeline/ — one-call facade wiring the stages together
//
// Every stage is deterministic: fixed seeds, fixed reduction orders, and
// explicit convergence budgets. Iterative routines report their achieved
// residuals on result types and fail with sentinel errors (matched via
// errors.Is) rather than retrying silently.
package cellrank
