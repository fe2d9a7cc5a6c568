// Package pipeline drives panel generation: sample demographic seeds, run
// persona synthesis for each, persist, then validate the finished panel
// against the target distribution.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"synthetic_panel/pkg/core/persona"
	"synthetic_panel/pkg/core/sampling"
	"synthetic_panel/pkg/models"
)

// PersonaStore persists generated personas.
type PersonaStore interface {
	Save(ctx context.Context, p *models.Persona) error
	ListByProject(ctx context.Context, projectID string) ([]models.Persona, error)
	CountByProject(ctx context.Context, projectID string) (int, error)
}

// ProjectStore resolves the project and records the validation outcome.
type ProjectStore interface {
	Get(ctx context.Context, id string) (*models.Project, error)
	SetStatisticallyValid(ctx context.Context, id string, valid bool) error
}

// GenerationConfig controls retry behavior during synthesis.
type GenerationConfig struct {
	SynthesisRetries int  // extra attempts per seed after the first failure
	StopOnError      bool // abort the run when a seed exhausts its retries
}

// GenerationReport summarizes one pipeline run.
type GenerationReport struct {
	ProjectID          string                    `json:"project_id"`
	Requested          int                       `json:"requested"`
	Generated          int                       `json:"generated"`
	Skipped            int                       `json:"skipped"`
	Failed             int                       `json:"failed"`
	StatisticallyValid bool                      `json:"statistically_valid"`
	Validation         sampling.ValidationResult `json:"validation"`
	ElapsedMs          float64                   `json:"elapsed_ms"`
}

// PanelOrchestrator manages the end-to-end panel flow:
// Sampler -> Synthesizer -> Store -> Chi-square validation.
type PanelOrchestrator struct {
	projects    ProjectStore
	personas    PersonaStore
	sampler     *sampling.Sampler
	synthesizer *persona.Synthesizer
	config      GenerationConfig
	logger      *zap.Logger
}

func NewPanelOrchestrator(projects ProjectStore, personas PersonaStore, sampler *sampling.Sampler, synthesizer *persona.Synthesizer, config GenerationConfig, logger *zap.Logger) *PanelOrchestrator {
	if config.SynthesisRetries < 0 {
		config.SynthesisRetries = 0
	}
	return &PanelOrchestrator{
		projects:    projects,
		personas:    personas,
		sampler:     sampler,
		synthesizer: synthesizer,
		config:      config,
		logger:      logger,
	}
}

// RunForProject generates personas until the project reaches its target
// sample size. Existing personas count toward the target, so re-running a
// partially generated project only fills the gap.
func (p *PanelOrchestrator) RunForProject(ctx context.Context, projectID, brief string, skew persona.TraitSkew) (*GenerationReport, error) {
	start := time.Now()

	project, err := p.projects.Get(ctx, projectID)
	if err != nil {
		return nil, err
	}

	existing, err := p.personas.CountByProject(ctx, projectID)
	if err != nil {
		return nil, err
	}

	report := &GenerationReport{ProjectID: projectID, Skipped: existing}
	remaining := project.TargetSampleSize - existing
	if remaining <= 0 {
		p.logger.Info("panel already at target size",
			zap.String("project_id", projectID),
			zap.Int("existing", existing))
		return p.finish(ctx, project, report, start)
	}
	report.Requested = remaining

	seeds, err := p.sampler.Sample(project.TargetDistribution, remaining)
	if err != nil {
		return nil, err
	}

	p.logger.Info("panel generation started",
		zap.String("project_id", projectID),
		zap.Int("target", project.TargetSampleSize),
		zap.Int("existing", existing),
		zap.Int("to_generate", remaining))

	for i, seed := range seeds {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		record, err := p.synthesizeWithRetry(ctx, seed, skew, brief)
		if err != nil {
			report.Failed++
			p.logger.Warn("seed exhausted synthesis retries",
				zap.Int("seed_index", i), zap.Error(err))
			if p.config.StopOnError {
				return nil, err
			}
			continue
		}

		record.ID = uuid.NewString()
		record.ProjectID = projectID
		if err := p.personas.Save(ctx, record); err != nil {
			return nil, fmt.Errorf("failed to persist persona: %w", err)
		}
		report.Generated++
	}

	return p.finish(ctx, project, report, start)
}

func (p *PanelOrchestrator) synthesizeWithRetry(ctx context.Context, seed models.DemographicProfile, skew persona.TraitSkew, brief string) (*models.Persona, error) {
	var lastErr error
	for attempt := 0; attempt <= p.config.SynthesisRetries; attempt++ {
		_, record, err := p.synthesizer.Synthesize(ctx, seed, skew, "", brief)
		if err == nil {
			return record, nil
		}
		lastErr = err
		if !errors.Is(err, models.ErrSynthesisFailed) {
			break
		}
	}
	return nil, lastErr
}

// finish validates the full panel against the target distribution and writes
// the outcome back onto the project.
func (p *PanelOrchestrator) finish(ctx context.Context, project *models.Project, report *GenerationReport, start time.Time) (*GenerationReport, error) {
	panel, err := p.personas.ListByProject(ctx, project.ID)
	if err != nil {
		return nil, err
	}

	profiles := make([]models.DemographicProfile, len(panel))
	for i, record := range panel {
		profiles[i] = models.DemographicProfile{
			AgeGroup:  record.AgeGroup,
			Gender:    record.Gender,
			Education: record.Education,
			Income:    record.Income,
			Location:  record.Location,
		}
	}

	report.Validation = sampling.Validate(profiles, project.TargetDistribution)
	report.StatisticallyValid = report.Validation.OverallValid
	report.ElapsedMs = float64(time.Since(start).Milliseconds())

	if err := p.projects.SetStatisticallyValid(ctx, project.ID, report.StatisticallyValid); err != nil {
		return nil, err
	}

	p.logger.Info("panel generation finished",
		zap.String("project_id", project.ID),
		zap.Int("generated", report.Generated),
		zap.Int("failed", report.Failed),
		zap.Bool("statistically_valid", report.StatisticallyValid),
		zap.Float64("elapsed_ms", report.ElapsedMs))
	return report, nil
}
