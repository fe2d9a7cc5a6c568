package sampling

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"synthetic_panel/pkg/models"
)

func TestValidateLargePanelPasses(t *testing.T) {
	dist := uniformDist()
	panel, err := NewSampler(42).Sample(dist, 1000)
	require.NoError(t, err)

	result := Validate(panel, dist)
	assert.True(t, result.OverallValid)

	age := result.PerAxis[models.AxisAgeGroup]
	assert.Equal(t, 3, age.Dof)
	assert.Equal(t, 1000, age.SampleSize)
	assert.Greater(t, age.PValue, 0.05)

	gender := result.PerAxis[models.AxisGender]
	assert.Equal(t, 1, gender.Dof)
	assert.Greater(t, gender.PValue, 0.05)

	// Untested axes are excluded from the report.
	_, ok := result.PerAxis[models.AxisEducation]
	assert.False(t, ok)
}

func TestValidateSmallPanelWellFormed(t *testing.T) {
	dist := uniformDist()
	panel, err := NewSampler(42).Sample(dist, 20)
	require.NoError(t, err)

	result := Validate(panel, dist)
	// overall_valid may legitimately be false at n=20; the structure must
	// still be complete.
	for _, axis := range []string{models.AxisAgeGroup, models.AxisGender} {
		ar, ok := result.PerAxis[axis]
		require.True(t, ok, "axis %s missing", axis)
		assert.Equal(t, 20, ar.SampleSize)
		assert.GreaterOrEqual(t, ar.PValue, 0.0)
		assert.LessOrEqual(t, ar.PValue, 1.0)
	}
}

func TestValidateEmptyPanel(t *testing.T) {
	result := Validate(nil, uniformDist())
	assert.True(t, result.OverallValid)
	for axis, ar := range result.PerAxis {
		assert.Zero(t, ar.Chi2, "axis %s", axis)
		assert.Zero(t, ar.SampleSize, "axis %s", axis)
	}
}

func TestValidateSkewedPanelFails(t *testing.T) {
	dist := models.DemographicDistribution{
		Genders: map[string]float64{"male": 0.5, "female": 0.5},
	}
	panel := make([]models.DemographicProfile, 200)
	for i := range panel {
		panel[i] = models.DemographicProfile{Gender: "male"}
	}

	result := Validate(panel, dist)
	assert.False(t, result.OverallValid)
	assert.LessOrEqual(t, result.PerAxis[models.AxisGender].PValue, 0.05)
}

func TestValidateIgnoresOffSupportLabels(t *testing.T) {
	dist := models.DemographicDistribution{
		Genders: map[string]float64{"male": 0.5, "female": 0.5},
	}
	panel := []models.DemographicProfile{
		{Gender: "male"}, {Gender: "female"}, {Gender: "nonbinary"},
	}

	result := Validate(panel, dist)
	assert.Equal(t, 2, result.PerAxis[models.AxisGender].SampleSize)
}
