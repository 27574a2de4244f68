package macro

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// kmeansMaxIter caps Lloyd sweeps; the spectral embedding is tiny and
// well-separated, so the loop settles in a handful of sweeps in practice.
const kmeansMaxIter = 300

// kmeansPP clusters the rows of points into k groups with seeded k-means++
// initialization followed by Lloyd iteration. The same seed and input always
// produce the same assignment; labels are relabeled so that cluster IDs
// appear in order of their smallest member row.
func kmeansPP(points *mat.Dense, k int, seed int64) []int {
	n, dim := points.Dims()
	rng := rand.New(rand.NewSource(seed))

	centers := mat.NewDense(k, dim, nil)
	d2 := make([]float64, n)

	// k-means++ seeding: first center uniform, the rest proportional to the
	// squared distance from the nearest chosen center.
	first := rng.Intn(n)
	centers.SetRow(0, rowOf(points, first))
	for i := 0; i < n; i++ {
		d2[i] = rowDist2(points, i, centers, 0)
	}
	for c := 1; c < k; c++ {
		total := 0.0
		for i := 0; i < n; i++ {
			total += d2[i]
		}
		var pick int
		if total <= 0 {
			pick = rng.Intn(n)
		} else {
			target := rng.Float64() * total
			acc := 0.0
			pick = n - 1
			for i := 0; i < n; i++ {
				acc += d2[i]
				if acc >= target {
					pick = i
					break
				}
			}
		}
		centers.SetRow(c, rowOf(points, pick))
		for i := 0; i < n; i++ {
			if d := rowDist2(points, i, centers, c); d < d2[i] {
				d2[i] = d
			}
		}
	}

	assign := make([]int, n)
	counts := make([]int, k)
	sums := mat.NewDense(k, dim, nil)
	for iter := 0; iter < kmeansMaxIter; iter++ {
		changed := false
		for i := 0; i < n; i++ {
			best, bestD := 0, rowDist2(points, i, centers, 0)
			for c := 1; c < k; c++ {
				if d := rowDist2(points, i, centers, c); d < bestD {
					best, bestD = c, d
				}
			}
			if assign[i] != best {
				assign[i] = best
				changed = true
			}
		}
		if !changed && iter > 0 {
			break
		}

		sums.Zero()
		for c := range counts {
			counts[c] = 0
		}
		for i := 0; i < n; i++ {
			c := assign[i]
			counts[c]++
			for j := 0; j < dim; j++ {
				sums.Set(c, j, sums.At(c, j)+points.At(i, j))
			}
		}
		for c := 0; c < k; c++ {
			if counts[c] == 0 {
				// Reseed an emptied cluster at the point farthest from its
				// current center so every cluster stays populated.
				far, farD := 0, -1.0
				for i := 0; i < n; i++ {
					if d := rowDist2(points, i, centers, assign[i]); d > farD {
						far, farD = i, d
					}
				}
				centers.SetRow(c, rowOf(points, far))
				continue
			}
			for j := 0; j < dim; j++ {
				centers.Set(c, j, sums.At(c, j)/float64(counts[c]))
			}
		}
	}

	return relabel(assign, k)
}

// relabel renumbers clusters in order of first appearance, making the label
// set independent of the seeding order.
func relabel(assign []int, k int) []int {
	remap := make([]int, k)
	for i := range remap {
		remap[i] = -1
	}
	next := 0
	for _, a := range assign {
		if remap[a] < 0 {
			remap[a] = next
			next++
		}
	}
	out := make([]int, len(assign))
	for i, a := range assign {
		out[i] = remap[a]
	}

	return out
}

func rowOf(m *mat.Dense, i int) []float64 {
	_, dim := m.Dims()
	out := make([]float64, dim)
	for j := 0; j < dim; j++ {
		out[j] = m.At(i, j)
	}

	return out
}

// rowDist2 is the squared Euclidean distance between row i of points and row
// c of centers.
func rowDist2(points *mat.Dense, i int, centers *mat.Dense, c int) float64 {
	_, dim := points.Dims()
	s := 0.0
	for j := 0; j < dim; j++ {
		d := points.At(i, j) - centers.At(c, j)
		s += d * d
	}
	if math.IsNaN(s) {
		return math.Inf(1)
	}

	return s
}
