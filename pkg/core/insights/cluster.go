package insights

import (
	"math"
	"math/rand"

	"synthetic_panel/pkg/core/llm"
)

const (
	minClusters = 2
	maxClusters = 5

	// Consensus used when clustering is impossible: singleton responses
	// agree perfectly; without embeddings we assume mild agreement.
	singletonConsensus = 1.0
	defaultConsensus   = 0.6
)

// consensusResult carries the clustering-derived agreement measures for one
// question.
type consensusResult struct {
	Consensus    float64
	Polarization float64
	K            int
}

// clusterConsensus clusters response embeddings with k chosen by an elbow on
// K-means inertia and converts cluster separation into a consensus score.
func clusterConsensus(vectors [][]float32) consensusResult {
	n := len(vectors)
	if n == 0 {
		return consensusResult{Consensus: defaultConsensus}
	}
	if n == 1 {
		return consensusResult{Consensus: singletonConsensus, K: 1}
	}

	k := chooseK(vectors)
	assignments := kmeans(vectors, k)

	polarization := clusterPolarization(vectors, assignments)
	consensus := clamp(1-polarization*(1/(1+math.Log(float64(k)))), 0, 1)
	return consensusResult{Consensus: consensus, Polarization: polarization, K: k}
}

// chooseK runs K-means for k in [2,5] and picks the elbow: the k whose
// marginal inertia reduction falls off the most. n=2 forces k=2.
func chooseK(vectors [][]float32) int {
	n := len(vectors)
	upper := maxClusters
	if n < upper {
		upper = n
	}
	if upper <= minClusters {
		return minClusters
	}

	inertias := make(map[int]float64)
	for k := minClusters; k <= upper; k++ {
		assignments := kmeans(vectors, k)
		inertias[k] = inertia(vectors, assignments, k)
	}

	bestK := minClusters
	bestDrop := math.Inf(-1)
	for k := minClusters; k < upper; k++ {
		drop := inertias[k] - inertias[k+1]
		if drop > bestDrop+1e-12 {
			bestDrop = drop
			bestK = k
		}
	}
	// A flat curve means more clusters buy nothing; stay at the minimum.
	if bestDrop <= 1e-12 {
		return minClusters
	}
	return bestK
}

// kmeans is plain Lloyd's algorithm with a fixed seed so repeated insight
// generation over the same responses is deterministic.
func kmeans(vectors [][]float32, k int) []int {
	n := len(vectors)
	dim := len(vectors[0])
	if k > n {
		k = n
	}

	rng := rand.New(rand.NewSource(1))
	perm := rng.Perm(n)
	centroids := make([][]float64, k)
	for i := 0; i < k; i++ {
		centroids[i] = toF64(vectors[perm[i]])
	}

	assignments := make([]int, n)
	for iter := 0; iter < 50; iter++ {
		changed := false
		for i, v := range vectors {
			best, bestDist := 0, math.Inf(1)
			for c := range centroids {
				if d := sqDist(v, centroids[c]); d < bestDist {
					best, bestDist = c, d
				}
			}
			if assignments[i] != best {
				assignments[i] = best
				changed = true
			}
		}
		if !changed && iter > 0 {
			break
		}

		counts := make([]int, k)
		sums := make([][]float64, k)
		for c := range sums {
			sums[c] = make([]float64, dim)
		}
		for i, v := range vectors {
			c := assignments[i]
			counts[c]++
			for d, x := range v {
				sums[c][d] += float64(x)
			}
		}
		for c := range centroids {
			if counts[c] == 0 {
				continue
			}
			for d := range centroids[c] {
				centroids[c][d] = sums[c][d] / float64(counts[c])
			}
		}
	}
	return assignments
}

func inertia(vectors [][]float32, assignments []int, k int) float64 {
	dim := len(vectors[0])
	counts := make([]int, k)
	centroids := make([][]float64, k)
	for c := range centroids {
		centroids[c] = make([]float64, dim)
	}
	for i, v := range vectors {
		c := assignments[i]
		counts[c]++
		for d, x := range v {
			centroids[c][d] += float64(x)
		}
	}
	for c := range centroids {
		if counts[c] == 0 {
			continue
		}
		for d := range centroids[c] {
			centroids[c][d] /= float64(counts[c])
		}
	}

	var total float64
	for i, v := range vectors {
		total += sqDist(v, centroids[assignments[i]])
	}
	return total
}

// clusterPolarization is mean inter-cluster cosine distance divided by the
// sum of mean inter and mean intra distances, over all point pairs.
func clusterPolarization(vectors [][]float32, assignments []int) float64 {
	var interSum, intraSum float64
	var interN, intraN int
	for i := 0; i < len(vectors); i++ {
		for j := i + 1; j < len(vectors); j++ {
			sim, err := llm.CosineSimilarity(vectors[i], vectors[j])
			if err != nil {
				continue
			}
			dist := 1 - sim
			if assignments[i] == assignments[j] {
				intraSum += dist
				intraN++
			} else {
				interSum += dist
				interN++
			}
		}
	}
	if interN == 0 {
		return 0
	}
	meanInter := interSum / float64(interN)
	meanIntra := 0.0
	if intraN > 0 {
		meanIntra = intraSum / float64(intraN)
	}
	if meanInter+meanIntra == 0 {
		return 0
	}
	return meanInter / (meanInter + meanIntra)
}

func sqDist(v []float32, centroid []float64) float64 {
	var sum float64
	for d, x := range v {
		diff := float64(x) - centroid[d]
		sum += diff * diff
	}
	return sum
}

func toF64(v []float32) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = float64(x)
	}
	return out
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
