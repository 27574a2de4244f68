// Package kernel turns raw single-cell signals into row-stochastic
// transition matrices over the cell set.
//
// Five kernel variants share one contract (Kernel): each is a pure function
// of an Inputs bundle plus its own options, producing an N×N row-stochastic
// *sparse.Matrix.
//
//   - Velocity     — directs transitions along RNA-velocity cosine
//     correlations via a tempered softmax over each cell's out-neighbors.
//   - Connectivity — symmetric diffusion over the kNN connectivity graph.
//   - Pseudotime   — biases the connectivity graph toward neighbors later in
//     pseudotime (soft exponential damping or hard forward-only).
//   - CytoTRACE    — derives a pseudotime from transcriptional diversity,
//     then behaves as the Pseudotime kernel on that ordering.
//   - Precomputed  — validates and wraps an externally supplied matrix.
//
// Combine merges kernels under non-negative weights summing to 1. The
// canonical order is fixed: row-normalize each operand, take the weighted
// sum, then renormalize rows once more to absorb floating-point drift.
//
// Kernels are stateless; repeated computation on identical inputs and
// options yields identical matrices.
package kernel
