// Package sparse provides the compressed-sparse-row (CSR) matrix type that
// backs every transition matrix in this module.
//
// The central type is Matrix: an immutable-by-convention N×N (or N×M)
// non-negative sparse matrix with O(1) row access and O(nnz) traversal.
// Kernels produce row-stochastic Matrix values; estimators consume them
// read-only. Mutating helpers (NormalizeRows, ScaleRows) exist for builders
// and always operate on a value the caller owns exclusively.
//
// Dense bridges return gonum's *mat.Dense so downstream linear algebra
// (Schur bases, coarse-grained projections) stays on gonum.
//
// All user-triggered failures are sentinel errors matched via errors.Is;
// panics are reserved for programmer errors inside private helpers.
package sparse
