// Package persona turns sampled demographic seeds into full persona records
// through one structured LLM call per persona.
package persona

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"
	exprand "golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"

	"synthetic_panel/pkg/core/agent"
	"synthetic_panel/pkg/core/llm"
	"synthetic_panel/pkg/core/prompt"
	"synthetic_panel/pkg/core/utils"
	"synthetic_panel/pkg/models"
)

const traitSigma = 0.15

// TraitSkew lets callers bias trait means away from 0.5 (e.g. a panel of
// early adopters with high openness). Zero fields mean "no skew".
type TraitSkew struct {
	Openness          float64
	Conscientiousness float64
	Extraversion      float64
	Agreeableness     float64
	Neuroticism       float64
}

// Synthesizer composes the synthesis prompt, calls the model and assembles
// the persona record. The sampled demographics always win over whatever the
// model returns.
type Synthesizer struct {
	agents      *agent.Manager
	logger      *zap.Logger
	temperature float64
	rng         *exprand.Rand
}

func NewSynthesizer(agents *agent.Manager, logger *zap.Logger, temperature float64, seed int64) *Synthesizer {
	return &Synthesizer{
		agents:      agents,
		logger:      logger,
		temperature: temperature,
		rng:         exprand.New(exprand.NewSource(uint64(seed))),
	}
}

// sampleTrait draws from a normal centered on mu and clips to [0,1].
func (s *Synthesizer) sampleTrait(mu float64) float64 {
	n := distuv.Normal{Mu: mu, Sigma: traitSigma, Src: s.rng}
	v := n.Rand()
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// SampleTraits draws Big-Five scores around 0.5 plus the caller's skew.
func (s *Synthesizer) SampleTraits(skew TraitSkew) models.BigFive {
	return models.BigFive{
		Openness:          s.sampleTrait(0.5 + skew.Openness),
		Conscientiousness: s.sampleTrait(0.5 + skew.Conscientiousness),
		Extraversion:      s.sampleTrait(0.5 + skew.Extraversion),
		Agreeableness:     s.sampleTrait(0.5 + skew.Agreeableness),
		Neuroticism:       s.sampleTrait(0.5 + skew.Neuroticism),
	}
}

// SampleDimensions draws Hofstede scores with the same distributional shape.
func (s *Synthesizer) SampleDimensions() models.Hofstede {
	return models.Hofstede{
		PowerDistance:        s.sampleTrait(0.5),
		Individualism:        s.sampleTrait(0.5),
		Masculinity:          s.sampleTrait(0.5),
		UncertaintyAvoidance: s.sampleTrait(0.5),
		LongTermOrientation:  s.sampleTrait(0.5),
		Indulgence:           s.sampleTrait(0.5),
	}
}

// synthOutput is the strict schema expected from the model.
type synthOutput struct {
	FullName        string   `json:"full_name"`
	Headline        string   `json:"headline"`
	Occupation      string   `json:"occupation"`
	BackgroundStory string   `json:"background_story"`
	Values          []string `json:"values"`
	Interests       []string `json:"interests"`
}

// Synthesize builds one persona from a demographic seed. ragContext and brief
// are optional free text merged into the prompt's research context. Returns
// the rendered prompt alongside the persona so callers can audit provenance.
func (s *Synthesizer) Synthesize(ctx context.Context, profile models.DemographicProfile, skew TraitSkew, ragContext, brief string) (string, *models.Persona, error) {
	traits := s.SampleTraits(skew)
	dims := s.SampleDimensions()

	pt, err := prompt.Get().GetPrompt(prompt.PromptIDs.PersonaSynthesis)
	if err != nil {
		return "", nil, fmt.Errorf("synthesis prompt missing: %w", err)
	}

	pctx := prompt.NewContext().
		Set("AgeGroup", profile.AgeGroup).
		Set("Gender", profile.Gender).
		Set("IncomeBracket", profile.Income).
		Set("EducationLevel", profile.Education).
		Set("LocationType", profile.Location).
		Set("TraitGuidance", traitGuidance(traits)).
		Set("ResearchContext", researchContext(brief, ragContext))

	userPrompt, err := prompt.RenderUserPrompt(pt, pctx)
	if err != nil {
		return "", nil, fmt.Errorf("failed to render synthesis prompt: %w", err)
	}

	raw, err := s.agents.ExecutePrompt(ctx, "persona_synthesis", userPrompt, pt.SystemPrompt, llm.JSONOptions(s.temperature))
	if err != nil {
		s.logger.Warn("persona synthesis call failed", zap.Error(err))
		return userPrompt, nil, fmt.Errorf("%w: %v", models.ErrSynthesisFailed, err)
	}

	var out synthOutput
	if _, err := utils.SmartParse(raw, &out); err != nil {
		s.logger.Warn("persona synthesis output unparseable", zap.Error(err))
		return userPrompt, nil, fmt.Errorf("%w: %v", models.ErrSynthesisFailed, err)
	}
	if out.FullName == "" || out.BackgroundStory == "" || len(out.Values) == 0 || len(out.Interests) == 0 {
		return userPrompt, nil, fmt.Errorf("%w: missing required fields", models.ErrSynthesisFailed)
	}

	p := &models.Persona{
		// Authoritative demographics come from the sampler, not the model.
		Age:       s.ageFromGroup(profile.AgeGroup),
		AgeGroup:  profile.AgeGroup,
		Gender:    profile.Gender,
		Location:  profile.Location,
		Education: profile.Education,
		Income:    profile.Income,

		Occupation: utils.CollapseWhitespace(out.Occupation),
		Traits:     traits,
		Dimensions: dims,

		FullName:        utils.CollapseWhitespace(out.FullName),
		Headline:        utils.CollapseWhitespace(out.Headline),
		BackgroundStory: utils.CollapseWhitespaceKeepParagraphs(out.BackgroundStory),
		Values:          sanitizeList(out.Values),
		Interests:       sanitizeList(out.Interests),
	}

	s.logger.Debug("persona synthesized",
		zap.String("full_name", p.FullName),
		zap.String("age_group", p.AgeGroup),
		zap.String("location", p.Location))

	return userPrompt, p, nil
}

// ageFromGroup picks a concrete age inside the sampled bucket. Open-ended
// buckets ("65+") get up to 15 extra years.
func (s *Synthesizer) ageFromGroup(group string) int {
	group = strings.TrimSpace(group)
	if strings.HasSuffix(group, "+") {
		if lo, err := strconv.Atoi(strings.TrimSuffix(group, "+")); err == nil {
			return lo + s.rng.Intn(16)
		}
	}
	parts := strings.SplitN(group, "-", 2)
	if len(parts) == 2 {
		lo, errLo := strconv.Atoi(strings.TrimSpace(parts[0]))
		hi, errHi := strconv.Atoi(strings.TrimSpace(parts[1]))
		if errLo == nil && errHi == nil && hi >= lo {
			return lo + s.rng.Intn(hi-lo+1)
		}
	}
	return 30
}

func sanitizeList(items []string) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		it = utils.CollapseWhitespace(it)
		if it != "" {
			out = append(out, it)
		}
	}
	return out
}

func researchContext(brief, ragContext string) string {
	parts := make([]string, 0, 2)
	if b := strings.TrimSpace(brief); b != "" {
		parts = append(parts, b)
	}
	if r := strings.TrimSpace(ragContext); r != "" {
		parts = append(parts, r)
	}
	return strings.Join(parts, "\n\n")
}

// traitGuidance renders Big-Five scores as qualitative instructions so the
// model does not have to interpret raw numbers.
func traitGuidance(t models.BigFive) string {
	lines := []string{
		traitLine("Openness", t.Openness, "conventional, prefers the familiar", "curious, enjoys novelty and ideas"),
		traitLine("Conscientiousness", t.Conscientiousness, "spontaneous, flexible about plans", "organized, disciplined, plans ahead"),
		traitLine("Extraversion", t.Extraversion, "reserved, recharges alone", "outgoing, energized by people"),
		traitLine("Agreeableness", t.Agreeableness, "blunt, competitive", "warm, cooperative, trusting"),
		traitLine("Neuroticism", t.Neuroticism, "calm, emotionally stable", "anxious, sensitive to stress"),
	}
	return strings.Join(lines, "\n")
}

func traitLine(name string, v float64, low, high string) string {
	var level, desc string
	switch {
	case v < 0.35:
		level, desc = "low", low
	case v > 0.65:
		level, desc = "high", high
	default:
		level, desc = "moderate", "balanced between "+low+" and "+high
	}
	return fmt.Sprintf("- %s: %s (%.2f), %s", name, level, v, desc)
}
