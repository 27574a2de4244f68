// Package driver ranks putative lineage driver genes: for each terminal
// lineage, every gene's expression profile is correlated with the cells'
// absorption probabilities toward that lineage, and genes are ordered by
// decreasing correlation.
//
// Correlations are undefined when either side is constant across the scored
// cells; such genes keep their place in the table but are marked undefined
// and sorted to the end. Ties are broken by gene index, so rankings are
// deterministic.
package driver
