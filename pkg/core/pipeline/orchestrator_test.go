package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap"

	"synthetic_panel/pkg/core/agent"
	"synthetic_panel/pkg/core/llm"
	"synthetic_panel/pkg/core/persona"
	"synthetic_panel/pkg/core/prompt"
	"synthetic_panel/pkg/core/sampling"
	"synthetic_panel/pkg/models"
)

const personaJSON = `{
	"full_name": "Test Person",
	"headline": "A test persona",
	"occupation": "tester",
	"background_story": "Lives somewhere. Does things.",
	"values": ["honesty"],
	"interests": ["testing"]
}`

type memProjects struct {
	project    *models.Project
	validCalls []bool
}

func (m *memProjects) Get(ctx context.Context, id string) (*models.Project, error) {
	if m.project == nil || m.project.ID != id {
		return nil, models.ErrNotFound
	}
	return m.project, nil
}

func (m *memProjects) SetStatisticallyValid(ctx context.Context, id string, valid bool) error {
	m.validCalls = append(m.validCalls, valid)
	return nil
}

type memPersonas struct {
	records []models.Persona
	saveErr error
}

func (m *memPersonas) Save(ctx context.Context, p *models.Persona) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.records = append(m.records, *p)
	return nil
}

func (m *memPersonas) ListByProject(ctx context.Context, projectID string) ([]models.Persona, error) {
	return m.records, nil
}

func (m *memPersonas) CountByProject(ctx context.Context, projectID string) (int, error) {
	return len(m.records), nil
}

func testProject(target int) *models.Project {
	return &models.Project{
		ID:               "proj-1",
		Name:             "Panel",
		TargetSampleSize: target,
		TargetDistribution: models.DemographicDistribution{
			Genders: map[string]float64{"female": 0.5, "male": 0.5},
		},
	}
}

func newTestOrchestrator(t *testing.T, provider *llm.MockProvider, projects *memProjects, personas *memPersonas, config GenerationConfig) *PanelOrchestrator {
	t.Helper()
	prompt.RegisterDefaults()

	mgr := agent.NewManager(agent.Config{ActiveProvider: "mock"})
	mgr.RegisterProvider("mock", provider)
	synth := persona.NewSynthesizer(mgr, zap.NewNop(), 0.8, 42)
	return NewPanelOrchestrator(projects, personas, sampling.NewSampler(42), synth, config, zap.NewNop())
}

func TestRunForProjectGeneratesPanel(t *testing.T) {
	projects := &memProjects{project: testProject(10)}
	personas := &memPersonas{}
	o := newTestOrchestrator(t, &llm.MockProvider{Responses: []string{personaJSON}}, projects, personas, GenerationConfig{})

	report, err := o.RunForProject(context.Background(), "proj-1", "", persona.TraitSkew{})
	if err != nil {
		t.Fatalf("RunForProject: %v", err)
	}
	if report.Generated != 10 || report.Failed != 0 {
		t.Fatalf("report = %+v, want 10 generated", report)
	}
	if len(personas.records) != 10 {
		t.Fatalf("persisted %d personas, want 10", len(personas.records))
	}
	for _, p := range personas.records {
		if p.ID == "" || p.ProjectID != "proj-1" {
			t.Fatalf("persona missing identity: %+v", p)
		}
	}
	if len(projects.validCalls) != 1 {
		t.Fatalf("SetStatisticallyValid called %d times, want 1", len(projects.validCalls))
	}
}

func TestRunForProjectFillsOnlyGap(t *testing.T) {
	projects := &memProjects{project: testProject(5)}
	personas := &memPersonas{}
	for i := 0; i < 3; i++ {
		personas.records = append(personas.records, models.Persona{ID: "old", ProjectID: "proj-1", Gender: "female"})
	}
	provider := &llm.MockProvider{Responses: []string{personaJSON}}
	o := newTestOrchestrator(t, provider, projects, personas, GenerationConfig{})

	report, err := o.RunForProject(context.Background(), "proj-1", "", persona.TraitSkew{})
	if err != nil {
		t.Fatalf("RunForProject: %v", err)
	}
	if report.Requested != 2 || report.Generated != 2 || report.Skipped != 3 {
		t.Fatalf("report = %+v, want 2 generated over 3 existing", report)
	}
	if provider.Calls() != 2 {
		t.Fatalf("synthesis calls = %d, want 2", provider.Calls())
	}
}

func TestRunForProjectAlreadyComplete(t *testing.T) {
	projects := &memProjects{project: testProject(2)}
	personas := &memPersonas{records: []models.Persona{
		{ID: "a", ProjectID: "proj-1", Gender: "female"},
		{ID: "b", ProjectID: "proj-1", Gender: "male"},
	}}
	provider := &llm.MockProvider{}
	o := newTestOrchestrator(t, provider, projects, personas, GenerationConfig{})

	report, err := o.RunForProject(context.Background(), "proj-1", "", persona.TraitSkew{})
	if err != nil {
		t.Fatalf("RunForProject: %v", err)
	}
	if report.Generated != 0 || report.Skipped != 2 {
		t.Fatalf("report = %+v, want no new personas", report)
	}
	if provider.Calls() != 0 {
		t.Fatalf("synthesis was invoked for a complete panel")
	}
}

func TestRunForProjectRetriesThenSucceeds(t *testing.T) {
	projects := &memProjects{project: testProject(1)}
	personas := &memPersonas{}
	provider := &llm.MockProvider{Responses: []string{"not json at all {{{", personaJSON}}
	o := newTestOrchestrator(t, provider, projects, personas, GenerationConfig{SynthesisRetries: 2})

	report, err := o.RunForProject(context.Background(), "proj-1", "", persona.TraitSkew{})
	if err != nil {
		t.Fatalf("RunForProject: %v", err)
	}
	if report.Generated != 1 || report.Failed != 0 {
		t.Fatalf("report = %+v, want recovery on retry", report)
	}
}

func TestRunForProjectSkipsFailedSeeds(t *testing.T) {
	projects := &memProjects{project: testProject(3)}
	personas := &memPersonas{}
	provider := &llm.MockProvider{GenerateFunc: func(ctx context.Context, prompt, systemPrompt string, options map[string]interface{}) (string, error) {
		return "", errors.New("model down")
	}}
	o := newTestOrchestrator(t, provider, projects, personas, GenerationConfig{SynthesisRetries: 1})

	report, err := o.RunForProject(context.Background(), "proj-1", "", persona.TraitSkew{})
	if err != nil {
		t.Fatalf("RunForProject: %v", err)
	}
	if report.Generated != 0 || report.Failed != 3 {
		t.Fatalf("report = %+v, want 3 failed seeds", report)
	}
}

func TestRunForProjectStopOnError(t *testing.T) {
	projects := &memProjects{project: testProject(3)}
	personas := &memPersonas{}
	provider := &llm.MockProvider{GenerateFunc: func(ctx context.Context, prompt, systemPrompt string, options map[string]interface{}) (string, error) {
		return "", errors.New("model down")
	}}
	o := newTestOrchestrator(t, provider, projects, personas, GenerationConfig{StopOnError: true})

	_, err := o.RunForProject(context.Background(), "proj-1", "", persona.TraitSkew{})
	if err == nil {
		t.Fatal("expected error with StopOnError")
	}
	if !errors.Is(err, models.ErrSynthesisFailed) {
		t.Fatalf("err = %v, want ErrSynthesisFailed", err)
	}
}

func TestRunForProjectUnknownProject(t *testing.T) {
	o := newTestOrchestrator(t, &llm.MockProvider{}, &memProjects{}, &memPersonas{}, GenerationConfig{})

	_, err := o.RunForProject(context.Background(), "missing", "", persona.TraitSkew{})
	if !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestRunForProjectBriefReachesPrompt(t *testing.T) {
	projects := &memProjects{project: testProject(1)}
	personas := &memPersonas{}
	var seenPrompt string
	provider := &llm.MockProvider{GenerateFunc: func(ctx context.Context, prompt, systemPrompt string, options map[string]interface{}) (string, error) {
		seenPrompt = prompt
		return personaJSON, nil
	}}
	o := newTestOrchestrator(t, provider, projects, personas, GenerationConfig{})

	_, err := o.RunForProject(context.Background(), "proj-1", "We are testing an oat milk subscription.", persona.TraitSkew{})
	if err != nil {
		t.Fatalf("RunForProject: %v", err)
	}
	if !strings.Contains(seenPrompt, "oat milk subscription") {
		t.Fatalf("brief not threaded into prompt:\n%s", seenPrompt)
	}
}
