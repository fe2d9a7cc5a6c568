package insights

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClusterConsensusIdenticalVectors(t *testing.T) {
	v := []float32{1, 0, 2, 0}
	res := clusterConsensus([][]float32{v, v, v, v, v})
	assert.InDelta(t, 1.0, res.Consensus, 1e-9)
	assert.InDelta(t, 0.0, res.Polarization, 1e-9)
}

func TestClusterConsensusTwoCamps(t *testing.T) {
	a := []float32{1, 0, 0, 0}
	b := []float32{0, 1, 0, 0}
	res := clusterConsensus([][]float32{a, a, b, b, b})
	assert.LessOrEqual(t, res.Consensus, 0.5)
	assert.Greater(t, res.Polarization, 0.9)
	assert.Equal(t, 2, res.K)
}

func TestClusterConsensusSingleton(t *testing.T) {
	res := clusterConsensus([][]float32{{1, 2, 3}})
	assert.Equal(t, singletonConsensus, res.Consensus)
}

func TestClusterConsensusEmpty(t *testing.T) {
	res := clusterConsensus(nil)
	assert.Equal(t, defaultConsensus, res.Consensus)
}

func TestKMeansDeterministic(t *testing.T) {
	vectors := [][]float32{
		{1, 0}, {0.9, 0.1}, {0, 1}, {0.1, 0.9}, {0.5, 0.5}, {0.4, 0.6},
	}
	first := kmeans(vectors, 3)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, kmeans(vectors, 3))
	}
}

func TestChooseKFlatCurveStaysMinimal(t *testing.T) {
	v := []float32{1, 1, 1}
	assert.Equal(t, minClusters, chooseK([][]float32{v, v, v, v, v, v}))
}
