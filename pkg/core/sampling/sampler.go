// Package sampling draws demographic persona profiles from a target joint
// categorical distribution and checks goodness-of-fit of a sampled panel.
package sampling

import (
	"fmt"
	"math"
	"math/rand"
	"sort"

	"synthetic_panel/pkg/models"
)

// Platform defaults per axis, used when a project leaves an axis empty.
var axisDefaults = map[string]map[string]float64{
	models.AxisAgeGroup: {
		"18-24": 0.15, "25-34": 0.25, "35-44": 0.20,
		"45-54": 0.18, "55-64": 0.12, "65+": 0.10,
	},
	models.AxisGender: {
		"male": 0.49, "female": 0.51,
	},
	models.AxisEducation: {
		"high school": 0.30, "vocational": 0.10, "bachelor": 0.35,
		"master": 0.20, "doctorate": 0.05,
	},
	models.AxisIncome: {
		"low": 0.30, "middle": 0.50, "high": 0.20,
	},
	models.AxisLocation: {
		"urban": 0.55, "suburban": 0.30, "rural": 0.15,
	},
}

// AxisDefault returns a copy of the platform default for an axis, or nil.
func AxisDefault(axis string) map[string]float64 {
	src, ok := axisDefaults[axis]
	if !ok {
		return nil
	}
	out := make(map[string]float64, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}

// Sampler draws profiles from a target distribution using a seeded stream so
// runs are reproducible.
type Sampler struct {
	rng *rand.Rand
}

// NewSampler creates a sampler seeded from configuration.
func NewSampler(seed int64) *Sampler {
	return &Sampler{rng: rand.New(rand.NewSource(seed))}
}

// axisCDF is a prepared inverse-CDF table for one axis: labels in a stable
// order with cumulative probabilities summing to exactly 1.
type axisCDF struct {
	labels []string
	cum    []float64
}

// prepareAxis validates and renormalizes one axis target, substituting the
// platform default when the target is empty or all-zero.
func prepareAxis(axis string, weights map[string]float64) (*axisCDF, error) {
	for label, w := range weights {
		if w < 0 || math.IsNaN(w) || math.IsInf(w, 0) {
			return nil, fmt.Errorf("%w: axis %s label %q has invalid weight %v",
				models.ErrInvalidDistribution, axis, label, w)
		}
	}

	// Drop non-positive entries.
	support := make(map[string]float64)
	for label, w := range weights {
		if w > 0 {
			support[label] = w
		}
	}
	if len(support) == 0 {
		support = axisDefaults[axis]
		if len(support) == 0 {
			return nil, fmt.Errorf("%w: axis %s has no usable categories and no default",
				models.ErrInvalidDistribution, axis)
		}
	}

	labels := make([]string, 0, len(support))
	for label := range support {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	// Two-pass renormalization to absorb floating-point drift: scale by the
	// sum, then rescale by the sum of the scaled values.
	var sum float64
	for _, l := range labels {
		sum += support[l]
	}
	probs := make([]float64, len(labels))
	var scaledSum float64
	for i, l := range labels {
		probs[i] = support[l] / sum
		scaledSum += probs[i]
	}
	cum := make([]float64, len(labels))
	var acc float64
	for i := range probs {
		acc += probs[i] / scaledSum
		cum[i] = acc
	}
	cum[len(cum)-1] = 1

	return &axisCDF{labels: labels, cum: cum}, nil
}

// draw picks one label by inverse-CDF sampling.
func (c *axisCDF) draw(rng *rand.Rand) string {
	u := rng.Float64()
	idx := sort.SearchFloat64s(c.cum, u)
	if idx >= len(c.labels) {
		idx = len(c.labels) - 1
	}
	return c.labels[idx]
}

// Sample draws n profiles, one label per axis, axes independent.
func (s *Sampler) Sample(dist models.DemographicDistribution, n int) ([]models.DemographicProfile, error) {
	if n < 0 {
		return nil, fmt.Errorf("%w: negative sample size %d", models.ErrInvalidDistribution, n)
	}

	cdfs := make(map[string]*axisCDF, 5)
	for _, axis := range dist.Axes() {
		cdf, err := prepareAxis(axis.Name, axis.Weights)
		if err != nil {
			return nil, err
		}
		cdfs[axis.Name] = cdf
	}

	profiles := make([]models.DemographicProfile, n)
	for i := 0; i < n; i++ {
		profiles[i] = models.DemographicProfile{
			AgeGroup:  cdfs[models.AxisAgeGroup].draw(s.rng),
			Gender:    cdfs[models.AxisGender].draw(s.rng),
			Education: cdfs[models.AxisEducation].draw(s.rng),
			Income:    cdfs[models.AxisIncome].draw(s.rng),
			Location:  cdfs[models.AxisLocation].draw(s.rng),
		}
	}
	return profiles, nil
}
