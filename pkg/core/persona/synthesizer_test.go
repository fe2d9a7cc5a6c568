package persona

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"synthetic_panel/pkg/core/agent"
	"synthetic_panel/pkg/core/llm"
	"synthetic_panel/pkg/core/prompt"
	"synthetic_panel/pkg/models"
)

func newTestSynthesizer(t *testing.T, response string) *Synthesizer {
	t.Helper()
	prompt.RegisterDefaults()

	mgr := agent.NewManager(agent.Config{ActiveProvider: "mock"})
	mgr.RegisterProvider("mock", &llm.MockProvider{Responses: []string{response}})
	return NewSynthesizer(mgr, zap.NewNop(), 0.8, 42)
}

func testProfile() models.DemographicProfile {
	return models.DemographicProfile{
		AgeGroup:  "25-34",
		Gender:    "female",
		Education: "master",
		Income:    "middle",
		Location:  "urban",
	}
}

const goodResponse = `{
	"full_name": "Anna Kowalska",
	"headline": "Pragmatic city dweller juggling work and family",
	"occupation": "UX designer",
	"background_story": "Anna grew up in Krakow.\n\nShe now   works at a\nsoftware  studio.",
	"values": [" honesty ", "family", ""],
	"interests": ["cycling", "cooking"]
}`

func TestSynthesizeHappyPath(t *testing.T) {
	s := newTestSynthesizer(t, goodResponse)

	promptText, p, err := s.Synthesize(context.Background(), testProfile(), TraitSkew{}, "", "")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.NotEmpty(t, promptText)
	assert.Contains(t, promptText, "25-34")

	assert.Equal(t, "Anna Kowalska", p.FullName)
	assert.Equal(t, "UX designer", p.Occupation)
	// Whitespace collapsed, paragraph break in background preserved.
	assert.Equal(t, "Anna grew up in Krakow.\n\nShe now works at a software studio.", p.BackgroundStory)
	assert.Equal(t, []string{"honesty", "family"}, p.Values)

	// Demographics come from the sampled profile, not the model.
	assert.Equal(t, "female", p.Gender)
	assert.Equal(t, "urban", p.Location)
	assert.GreaterOrEqual(t, p.Age, 25)
	assert.LessOrEqual(t, p.Age, 34)
}

func TestSynthesizeTraitBounds(t *testing.T) {
	s := newTestSynthesizer(t, goodResponse)

	for i := 0; i < 200; i++ {
		traits := s.SampleTraits(TraitSkew{Openness: 0.4, Neuroticism: -0.4})
		for name, v := range map[string]float64{
			"openness":          traits.Openness,
			"conscientiousness": traits.Conscientiousness,
			"extraversion":      traits.Extraversion,
			"agreeableness":     traits.Agreeableness,
			"neuroticism":       traits.Neuroticism,
		} {
			assert.GreaterOrEqual(t, v, 0.0, name)
			assert.LessOrEqual(t, v, 1.0, name)
		}
	}
}

func TestSynthesizeMissingRequiredFields(t *testing.T) {
	s := newTestSynthesizer(t, `{"full_name": "Jan Nowak", "values": ["x"], "interests": ["y"]}`)

	_, p, err := s.Synthesize(context.Background(), testProfile(), TraitSkew{}, "", "")
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrSynthesisFailed)
	assert.Nil(t, p)
}

func TestSynthesizeRepairsSloppyJSON(t *testing.T) {
	// Code fences plus trailing comma: SmartParse should still recover.
	sloppy := "```json\n{\"full_name\": \"Piotr Zielinski\", \"background_story\": \"A farmer.\", \"values\": [\"tradition\"], \"interests\": [\"fishing\"],}\n```"
	s := newTestSynthesizer(t, sloppy)

	_, p, err := s.Synthesize(context.Background(), testProfile(), TraitSkew{}, "", "")
	require.NoError(t, err)
	assert.Equal(t, "Piotr Zielinski", p.FullName)
}

func TestSynthesizeIncludesBriefContext(t *testing.T) {
	s := newTestSynthesizer(t, goodResponse)

	promptText, _, err := s.Synthesize(context.Background(), testProfile(), TraitSkew{},
		"earlier panel insight", "Concept: a subscription coffee service")
	require.NoError(t, err)
	assert.Contains(t, promptText, "subscription coffee service")
	assert.Contains(t, promptText, "earlier panel insight")
}

func TestAgeFromGroup(t *testing.T) {
	s := newTestSynthesizer(t, goodResponse)

	cases := []struct {
		group  string
		lo, hi int
	}{
		{"25-34", 25, 34},
		{"65+", 65, 80},
		{"55 - 64", 55, 64},
		{"unknown", 30, 30},
	}
	for _, tc := range cases {
		for i := 0; i < 50; i++ {
			age := s.ageFromGroup(tc.group)
			assert.GreaterOrEqual(t, age, tc.lo, tc.group)
			assert.LessOrEqual(t, age, tc.hi, tc.group)
		}
	}
}
