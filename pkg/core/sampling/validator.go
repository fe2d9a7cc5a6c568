package sampling

import (
	"sort"

	"gonum.org/v1/gonum/stat/distuv"

	"synthetic_panel/pkg/models"
)

// AxisResult is the chi-square goodness-of-fit outcome for one axis.
type AxisResult struct {
	Chi2       float64            `json:"chi2"`
	PValue     float64            `json:"p_value"`
	Dof        int                `json:"dof"`
	Observed   map[string]int     `json:"observed"`
	Expected   map[string]float64 `json:"expected"`
	SampleSize int                `json:"sample_size"`
}

// ValidationResult aggregates per-axis tests. OverallValid is true iff every
// tested axis has p > 0.05; untested axes (empty target) are excluded.
type ValidationResult struct {
	PerAxis      map[string]AxisResult `json:"per_axis"`
	OverallValid bool                  `json:"overall_valid"`
}

// Validate tests a sampled panel against a target distribution. An empty
// panel yields overall_valid = true with zero-filled axis results.
func Validate(panel []models.DemographicProfile, dist models.DemographicDistribution) ValidationResult {
	result := ValidationResult{
		PerAxis:      make(map[string]AxisResult),
		OverallValid: true,
	}

	for _, axis := range dist.Axes() {
		support := positiveSupport(axis.Weights)
		if len(support) == 0 {
			continue
		}
		ar := validateAxis(axis.Name, support, panel)
		result.PerAxis[axis.Name] = ar
		if len(panel) > 0 && ar.PValue <= 0.05 {
			result.OverallValid = false
		}
	}
	return result
}

func positiveSupport(weights map[string]float64) map[string]float64 {
	out := make(map[string]float64)
	for label, w := range weights {
		if w > 0 {
			out[label] = w
		}
	}
	return out
}

func validateAxis(axis string, support map[string]float64, panel []models.DemographicProfile) AxisResult {
	labels := make([]string, 0, len(support))
	var sum float64
	for label, w := range support {
		labels = append(labels, label)
		sum += w
	}
	sort.Strings(labels)

	observed := make(map[string]int, len(labels))
	for _, l := range labels {
		observed[l] = 0
	}
	// Restrict counting to the tested support; off-support labels are not
	// part of the hypothesis.
	sampleSize := 0
	for _, p := range panel {
		label := axisLabel(axis, p)
		if _, ok := support[label]; ok {
			observed[label]++
			sampleSize++
		}
	}

	expected := make(map[string]float64, len(labels))
	for _, l := range labels {
		expected[l] = float64(sampleSize) * support[l] / sum
	}

	if sampleSize == 0 {
		return AxisResult{
			Observed: observed, Expected: expected,
			Dof: len(labels) - 1, PValue: 1,
		}
	}

	var chi2 float64
	for _, l := range labels {
		e := expected[l]
		if e == 0 {
			continue
		}
		d := float64(observed[l]) - e
		chi2 += d * d / e
	}

	dof := len(labels) - 1
	pValue := 1.0
	if dof > 0 {
		pValue = distuv.ChiSquared{K: float64(dof)}.Survival(chi2)
	}

	return AxisResult{
		Chi2:       chi2,
		PValue:     pValue,
		Dof:        dof,
		Observed:   observed,
		Expected:   expected,
		SampleSize: sampleSize,
	}
}

func axisLabel(axis string, p models.DemographicProfile) string {
	switch axis {
	case models.AxisAgeGroup:
		return p.AgeGroup
	case models.AxisGender:
		return p.Gender
	case models.AxisEducation:
		return p.Education
	case models.AxisIncome:
		return p.Income
	case models.AxisLocation:
		return p.Location
	}
	return ""
}
