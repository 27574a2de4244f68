// Package macro identifies macrostates — coarse, dynamically coherent
// groups of cells — from the spectral structure of a transition matrix.
//
// Two interchangeable strategies implement the same contract:
//
//   - GPCCA — the robust default. A partial real Schur basis of the leading
//     eigenvalues is computed by deterministic orthogonal (subspace)
//     iteration, then rotated by PCCA+ into a non-negative row-stochastic
//     membership matrix that approximately block-diagonalizes the chain.
//     Near-degenerate macrostates (coarse transition rows indistinguishable
//     within a tolerance) are merged before classification, which defends
//     against spurious duplicate states caused by eigenvalue crowding.
//
//   - CFLARE — the cheaper predecessor. Leading eigenvectors are clustered
//     directly with seeded k-means; there is no PCCA+ refinement and no
//     merge defense, so it is less robust near degenerate spectra.
//
// Both strategies are deterministic: GPCCA by construction, CFLARE through
// an explicit clustering seed. Repeated runs on identical input and options
// yield identical decompositions.
//
// A Decomposition classifies each macrostate as terminal (high coarse
// self-transition, negligible outflow), initial (negligible inflow) or
// transient, and carries an optional AmbiguityWarning when the eigengap
// used to choose the macrostate count is too small to trust.
package macro
