// Package fate computes absorption probabilities: for every cell, the
// probability that the Markov chain started there is eventually captured by
// each terminal macrostate.
//
// Cells hard-assigned to terminal macrostates form the absorbing set; all
// other cells are transient. Writing Q for the transient-to-transient block
// of the transition matrix and R for the aggregated transient-to-terminal
// mass, the fate matrix X solves the absorbing-chain system
//
//	(I - Q)·X = R
//
// which the engine handles with a Gauss-Seidel sweep per lineage column.
// Columns are independent, so they are distributed over a small worker
// pool. The sweep order is fixed, making results reproducible.
//
// Every transient cell must be able to reach the absorbing set; cells that
// cannot make the system singular and are reported via ErrUnreachable
// before any solving starts.
package fate
