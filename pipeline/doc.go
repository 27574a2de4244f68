// Package pipeline wires the full trajectory analysis together: weighted
// kernels build a transition matrix, the macrostate decomposer identifies
// terminal states, the fate engine solves for absorption probabilities, and
// the driver ranker correlates genes with those probabilities.
//
// One call, one immutable Result. Each stage keeps its own Options type;
// Config simply aggregates them next to the kernel weight map, so defaults
// stay defined in exactly one place per package.
package pipeline
