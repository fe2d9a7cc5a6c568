package sampling

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"synthetic_panel/pkg/models"
)

func uniformDist() models.DemographicDistribution {
	return models.DemographicDistribution{
		AgeGroups: map[string]float64{
			"25-34": 0.25, "35-44": 0.25, "45-54": 0.25, "55+": 0.25,
		},
		Genders: map[string]float64{"male": 0.5, "female": 0.5},
	}
}

func TestSampleConvergence(t *testing.T) {
	s := NewSampler(42)
	panel, err := s.Sample(uniformDist(), 1000)
	require.NoError(t, err)
	require.Len(t, panel, 1000)

	ageCounts := map[string]int{}
	genderCounts := map[string]int{}
	for _, p := range panel {
		ageCounts[p.AgeGroup]++
		genderCounts[p.Gender]++
	}

	for _, bucket := range []string{"25-34", "35-44", "45-54", "55+"} {
		assert.InDelta(t, 250, ageCounts[bucket], 50, "age bucket %s", bucket)
	}
	assert.InDelta(t, 500, genderCounts["male"], 50)

	// Empirical frequencies within 0.05 of the target.
	for bucket, n := range ageCounts {
		assert.InDelta(t, 0.25, float64(n)/1000, 0.05, "frequency of %s", bucket)
	}
}

func TestSampleReproducible(t *testing.T) {
	a, err := NewSampler(7).Sample(uniformDist(), 50)
	require.NoError(t, err)
	b, err := NewSampler(7).Sample(uniformDist(), 50)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestSampleEmptyAxisFallsBackToDefault(t *testing.T) {
	dist := models.DemographicDistribution{
		AgeGroups: map[string]float64{"25-34": 1},
		// All other axes empty: platform defaults apply.
	}
	panel, err := NewSampler(1).Sample(dist, 20)
	require.NoError(t, err)
	for _, p := range panel {
		assert.Equal(t, "25-34", p.AgeGroup)
		assert.NotEmpty(t, p.Gender)
		assert.NotEmpty(t, p.Education)
		assert.NotEmpty(t, p.Income)
		assert.NotEmpty(t, p.Location)
	}
}

func TestSampleDropsZeroWeightCategories(t *testing.T) {
	dist := models.DemographicDistribution{
		Genders: map[string]float64{"male": 1, "female": 0},
	}
	panel, err := NewSampler(3).Sample(dist, 100)
	require.NoError(t, err)
	for _, p := range panel {
		assert.Equal(t, "male", p.Gender)
	}
}

func TestSampleRenormalizesNonUnitWeights(t *testing.T) {
	// Raw counts instead of probabilities.
	dist := models.DemographicDistribution{
		Locations: map[string]float64{"urban": 300, "rural": 100},
	}
	panel, err := NewSampler(42).Sample(dist, 1000)
	require.NoError(t, err)

	urban := 0
	for _, p := range panel {
		if p.Location == "urban" {
			urban++
		}
	}
	assert.InDelta(t, 750, urban, 60)
}

func TestSampleInvalidWeights(t *testing.T) {
	cases := []struct {
		name string
		dist models.DemographicDistribution
	}{
		{"negative", models.DemographicDistribution{
			Genders: map[string]float64{"male": -0.5, "female": 0.5},
		}},
		{"nan", models.DemographicDistribution{
			AgeGroups: map[string]float64{"25-34": math.NaN()},
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewSampler(1).Sample(tc.dist, 10)
			require.Error(t, err)
			assert.ErrorIs(t, err, models.ErrInvalidDistribution)
		})
	}
}
