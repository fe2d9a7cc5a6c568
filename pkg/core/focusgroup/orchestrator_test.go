package focusgroup

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"synthetic_panel/pkg/core/config"
	"synthetic_panel/pkg/core/llm"
	"synthetic_panel/pkg/core/memory"
	"synthetic_panel/pkg/core/prompt"
	"synthetic_panel/pkg/models"
)

type mockRepo struct {
	mu      sync.Mutex
	fg      models.FocusGroup
	batches [][]models.PersonaResponse
	states  []models.FocusGroupStatus

	saveResponsesErr error
}

func (m *mockRepo) Get(ctx context.Context, id string) (*models.FocusGroup, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fg := m.fg
	return &fg, nil
}

func (m *mockRepo) Create(ctx context.Context, fg *models.FocusGroup) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fg = *fg
	return nil
}

func (m *mockRepo) UpdateState(ctx context.Context, fg *models.FocusGroup) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fg = *fg
	m.states = append(m.states, fg.Status)
	return nil
}

func (m *mockRepo) SaveResponses(ctx context.Context, responses []models.PersonaResponse) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveResponsesErr != nil {
		return m.saveResponsesErr
	}
	batch := make([]models.PersonaResponse, len(responses))
	copy(batch, responses)
	m.batches = append(m.batches, batch)
	return nil
}

func (m *mockRepo) ListResponses(ctx context.Context, focusGroupID string) ([]models.PersonaResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var all []models.PersonaResponse
	for _, b := range m.batches {
		all = append(all, b...)
	}
	return all, nil
}

func (m *mockRepo) allResponses() []models.PersonaResponse {
	all, _ := m.ListResponses(context.Background(), "")
	return all
}

type mockPersonaSource struct {
	byIDs     []models.Persona
	byProject []models.Persona
	lastCall  string
}

func (m *mockPersonaSource) ListByIDs(ctx context.Context, ids []string) ([]models.Persona, error) {
	m.lastCall = "by_ids"
	return m.byIDs, nil
}

func (m *mockPersonaSource) ListByProject(ctx context.Context, projectID string) ([]models.Persona, error) {
	m.lastCall = "by_project"
	return m.byProject, nil
}

type mockCaller struct {
	fn func(stage, promptText, systemPrompt string) (string, error)
}

func (m *mockCaller) ExecutePrompt(ctx context.Context, stage, promptText, systemPrompt string, options map[string]interface{}) (string, error) {
	if m.fn != nil {
		return m.fn(stage, promptText, systemPrompt)
	}
	return "I would definitely try this product.", nil
}

func testPersonas(n int) []models.Persona {
	out := make([]models.Persona, n)
	for i := range out {
		out[i] = models.Persona{
			ID:       fmt.Sprintf("persona-%d", i),
			FullName: fmt.Sprintf("Persona %d", i),
			AgeGroup: "25-34",
			Age:      30,
			Gender:   "female",
		}
	}
	return out
}

func pendingGroup(ids []string, questions []string) models.FocusGroup {
	return models.FocusGroup{
		ID:         "fg-1",
		ProjectID:  "proj-1",
		Name:       "Concept test",
		PersonaIDs: ids,
		Questions:  questions,
		Mode:       models.ModeNormal,
		Status:     models.StatusPending,
		CreatedAt:  time.Now().UTC(),
	}
}

func newTestOrchestrator(repo *mockRepo, personas PersonaSource, caller LLMCaller) *Orchestrator {
	prompt.RegisterDefaults()
	events := memory.NewMemoryEventStore(&llm.MockEmbedder{}, zap.NewNop())
	retriever := memory.NewRetriever(events, &llm.MockEmbedder{}, 30, zap.NewNop())
	settings := config.Defaults()
	settings.WorkerParallelism = 4
	return NewOrchestrator(repo, personas, events, retriever, caller, settings, zap.NewNop())
}

func TestRunHappyPath(t *testing.T) {
	ids := []string{"persona-0", "persona-1", "persona-2", "persona-3", "persona-4"}
	repo := &mockRepo{fg: pendingGroup(ids, []string{"Q1", "Q2", "Q3"})}
	personas := &mockPersonaSource{byIDs: testPersonas(5)}
	orch := newTestOrchestrator(repo, personas, &mockCaller{})

	if err := orch.Run(context.Background(), "fg-1"); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if repo.fg.Status != models.StatusCompleted {
		t.Errorf("Expected status completed, got %s", repo.fg.Status)
	}
	if repo.fg.StartedAt == nil || repo.fg.CompletedAt == nil {
		t.Error("Expected both timestamps set on a terminal group")
	}
	if personas.lastCall != "by_ids" {
		t.Errorf("Expected persona resolution via ids, got %s", personas.lastCall)
	}

	all := repo.allResponses()
	if len(all) != 15 {
		t.Fatalf("Expected 15 responses (5 personas x 3 questions), got %d", len(all))
	}
	for _, r := range all {
		if r.Error {
			t.Errorf("Unexpected error response for persona %s question %d", r.PersonaID, r.QuestionIndex)
		}
		if r.Response == "" {
			t.Errorf("Empty response for persona %s question %d", r.PersonaID, r.QuestionIndex)
		}
	}
	if len(repo.batches) != 3 {
		t.Errorf("Expected 3 per-question batches, got %d", len(repo.batches))
	}
	if !repo.fg.MeetsRequirements {
		t.Error("Stubbed run should meet the latency SLOs")
	}
}

func TestRunQuestionOrdering(t *testing.T) {
	repo := &mockRepo{fg: pendingGroup([]string{"persona-0", "persona-1"}, []string{"Q1", "Q2"})}
	personas := &mockPersonaSource{byIDs: testPersonas(2)}
	orch := newTestOrchestrator(repo, personas, &mockCaller{})

	if err := orch.Run(context.Background(), "fg-1"); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(repo.batches) != 2 {
		t.Fatalf("Expected 2 batches, got %d", len(repo.batches))
	}
	for i, batch := range repo.batches {
		for _, r := range batch {
			if r.QuestionIndex != i {
				t.Errorf("Batch %d contains question index %d", i, r.QuestionIndex)
			}
		}
	}
	// Every Q2 response was created at or after every Q1 response.
	for _, later := range repo.batches[1] {
		for _, earlier := range repo.batches[0] {
			if later.CreatedAt.Before(earlier.CreatedAt) {
				t.Error("Question 2 response created before a question 1 response")
			}
		}
	}
}

func TestRunSingleLLMFailureDoesNotAbort(t *testing.T) {
	ids := []string{"persona-0", "persona-1", "persona-2", "persona-3", "persona-4"}
	repo := &mockRepo{fg: pendingGroup(ids, []string{"Q1", "Q2", "Q3"})}
	personas := &mockPersonaSource{byIDs: testPersonas(5)}

	// Match on the moderator line, not bare substrings: later prompts carry
	// earlier questions inside the persona's memory block.
	caller := &mockCaller{fn: func(stage, promptText, systemPrompt string) (string, error) {
		if stage == "discussion" && strings.Contains(promptText, "Persona 2") &&
			strings.Contains(promptText, "The moderator asks: Q2") {
			return "", errors.New("provider timeout")
		}
		return "Sounds useful to me.", nil
	}}
	orch := newTestOrchestrator(repo, personas, caller)

	if err := orch.Run(context.Background(), "fg-1"); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if repo.fg.Status != models.StatusCompleted {
		t.Fatalf("Expected completed despite one failing cell, got %s", repo.fg.Status)
	}
	all := repo.allResponses()
	if len(all) != 15 {
		t.Fatalf("Expected all 15 rows, got %d", len(all))
	}

	var errorCells int
	for _, r := range all {
		if r.Error {
			errorCells++
			if r.Response != "" {
				t.Error("Error cell must have empty response text")
			}
			if r.ResponseTimeMs != 0 {
				t.Error("Error cell must have zero latency")
			}
			if r.PersonaID != "persona-2" || r.QuestionIndex != 1 {
				t.Errorf("Unexpected error cell: persona %s question %d", r.PersonaID, r.QuestionIndex)
			}
		}
	}
	if errorCells != 1 {
		t.Errorf("Expected exactly 1 error cell, got %d", errorCells)
	}
}

func TestRunRejectsNonPending(t *testing.T) {
	for _, status := range []models.FocusGroupStatus{
		models.StatusRunning, models.StatusCompleted, models.StatusFailed,
	} {
		fg := pendingGroup([]string{"persona-0"}, []string{"Q1"})
		fg.Status = status
		repo := &mockRepo{fg: fg}
		orch := newTestOrchestrator(repo, &mockPersonaSource{byIDs: testPersonas(1)}, &mockCaller{})

		err := orch.Run(context.Background(), "fg-1")
		if !errors.Is(err, models.ErrIllegalState) {
			t.Errorf("Status %s: expected ErrIllegalState, got %v", status, err)
		}
	}
}

func TestRunNoPersonasFails(t *testing.T) {
	repo := &mockRepo{fg: pendingGroup(nil, []string{"Q1"})}
	personas := &mockPersonaSource{} // Both lookups resolve to nothing.
	orch := newTestOrchestrator(repo, personas, &mockCaller{})

	err := orch.Run(context.Background(), "fg-1")
	if !errors.Is(err, models.ErrNoPersonas) {
		t.Fatalf("Expected ErrNoPersonas, got %v", err)
	}
	if repo.fg.Status != models.StatusFailed {
		t.Errorf("Expected failed, got %s", repo.fg.Status)
	}
	if repo.fg.ErrorMessage == "" {
		t.Error("Expected error message on failed group")
	}
	if repo.fg.CompletedAt == nil {
		t.Error("Expected completed_at on terminal state")
	}
}

func TestRunEmptyIDListFallsBackToProject(t *testing.T) {
	repo := &mockRepo{fg: pendingGroup(nil, []string{"Q1"})}
	personas := &mockPersonaSource{byProject: testPersonas(3)}
	orch := newTestOrchestrator(repo, personas, &mockCaller{})

	if err := orch.Run(context.Background(), "fg-1"); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if personas.lastCall != "by_project" {
		t.Errorf("Expected project fallback, got %s", personas.lastCall)
	}
	if got := len(repo.allResponses()); got != 3 {
		t.Errorf("Expected 3 responses, got %d", got)
	}
}

func TestRunPersistenceFailureFailsRun(t *testing.T) {
	repo := &mockRepo{
		fg:               pendingGroup([]string{"persona-0"}, []string{"Q1"}),
		saveResponsesErr: fmt.Errorf("%w: disk full", models.ErrPersistenceFailed),
	}
	orch := newTestOrchestrator(repo, &mockPersonaSource{byIDs: testPersonas(1)}, &mockCaller{})

	err := orch.Run(context.Background(), "fg-1")
	if !errors.Is(err, models.ErrPersistenceFailed) {
		t.Fatalf("Expected ErrPersistenceFailed, got %v", err)
	}
	if repo.fg.Status != models.StatusFailed {
		t.Errorf("Expected failed, got %s", repo.fg.Status)
	}
}

func TestRunCancellation(t *testing.T) {
	repo := &mockRepo{fg: pendingGroup([]string{"persona-0", "persona-1"}, []string{"Q1", "Q2", "Q3"})}
	personas := &mockPersonaSource{byIDs: testPersonas(2)}

	ctx, cancel := context.WithCancel(context.Background())
	var once sync.Once
	caller := &mockCaller{fn: func(stage, promptText, systemPrompt string) (string, error) {
		// Cancel mid-run: the orchestrator must stop at the next boundary.
		once.Do(cancel)
		return "fine", nil
	}}
	orch := newTestOrchestrator(repo, personas, caller)

	err := orch.Run(ctx, "fg-1")
	if err == nil {
		t.Fatal("Expected cancellation error")
	}
	if repo.fg.Status != models.StatusFailed {
		t.Errorf("Expected failed, got %s", repo.fg.Status)
	}
	if repo.fg.ErrorMessage != "cancelled" {
		t.Errorf("Expected reason 'cancelled', got %q", repo.fg.ErrorMessage)
	}
	// At most one batch may have been persisted before the boundary check.
	if len(repo.batches) > 1 {
		t.Errorf("Expected at most 1 persisted batch after cancellation, got %d", len(repo.batches))
	}
}

func TestRunGraphTriggerFailureIsNonFatal(t *testing.T) {
	repo := &mockRepo{fg: pendingGroup([]string{"persona-0"}, []string{"Q1"})}
	orch := newTestOrchestrator(repo, &mockPersonaSource{byIDs: testPersonas(1)}, &mockCaller{})
	orch.GraphBuild = func(ctx context.Context, focusGroupID string) error {
		return errors.New("graph store down")
	}

	if err := orch.Run(context.Background(), "fg-1"); err != nil {
		t.Fatalf("Graph failure must not fail the run: %v", err)
	}
	if repo.fg.Status != models.StatusCompleted {
		t.Errorf("Expected completed, got %s", repo.fg.Status)
	}
}

func TestMeanIncludesErrorZeros(t *testing.T) {
	got := mean([]float64{100, 200, 0})
	if got != 100 {
		t.Errorf("Expected mean 100 with error zero included, got %v", got)
	}
	if mean(nil) != 0 {
		t.Error("Expected zero mean for empty input")
	}
}
