package focusgroup

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"synthetic_panel/pkg/core/config"
	"synthetic_panel/pkg/core/llm"
	"synthetic_panel/pkg/core/memory"
	"synthetic_panel/pkg/core/prompt"
	"synthetic_panel/pkg/core/utils"
	"synthetic_panel/pkg/models"
)

// Orchestrator runs one focus group at a time from pending to a terminal
// state. Questions are processed strictly in order; within a question the
// persona fan-out is bounded by worker_parallelism.
type Orchestrator struct {
	repo      Repo
	personas  PersonaSource
	events    memory.EventStore
	retriever ContextRetriever
	caller    LLMCaller
	settings  config.Settings
	logger    *zap.Logger

	// GraphBuild, when set, is triggered best-effort after completion.
	GraphBuild func(ctx context.Context, focusGroupID string) error

	mu sync.Mutex
}

func NewOrchestrator(repo Repo, personas PersonaSource, events memory.EventStore, retriever ContextRetriever, caller LLMCaller, settings config.Settings, logger *zap.Logger) *Orchestrator {
	return &Orchestrator{
		repo:      repo,
		personas:  personas,
		events:    events,
		retriever: retriever,
		caller:    caller,
		settings:  settings,
		logger:    logger,
	}
}

// Run executes the focus group workflow. Re-invoking on a non-pending group
// is rejected; a cancelled run terminates as failed with reason "cancelled"
// and keeps whatever batches were already persisted.
func (o *Orchestrator) Run(ctx context.Context, focusGroupID string) error {
	o.mu.Lock()
	fg, err := o.repo.Get(ctx, focusGroupID)
	if err != nil {
		o.mu.Unlock()
		return err
	}
	if fg.Status != models.StatusPending {
		o.mu.Unlock()
		return fmt.Errorf("%w: focus group %s is %s, expected pending", models.ErrIllegalState, fg.ID, fg.Status)
	}

	started := time.Now().UTC()
	fg.Status = models.StatusRunning
	fg.StartedAt = &started
	if err := o.repo.UpdateState(ctx, fg); err != nil {
		o.mu.Unlock()
		return err
	}
	o.mu.Unlock()

	o.logger.Info("focus group started",
		zap.String("focus_group_id", fg.ID),
		zap.Int("questions", len(fg.Questions)),
		zap.String("mode", string(fg.Mode)))

	participants, err := o.resolvePersonas(ctx, fg)
	if err != nil {
		return o.failRun(fg, err)
	}

	var latencies []float64
	for qi, question := range fg.Questions {
		// Cancellation is honoured at question boundaries.
		if ctx.Err() != nil {
			return o.failRun(fg, fmt.Errorf("cancelled"))
		}

		responses, err := o.runQuestion(ctx, fg, participants, qi, question)
		if err != nil {
			return o.failRun(fg, err)
		}
		// All responses for question k are durable before question k+1 starts.
		if err := o.repo.SaveResponses(ctx, responses); err != nil {
			return o.failRun(fg, err)
		}
		for _, r := range responses {
			latencies = append(latencies, r.ResponseTimeMs)
		}

		o.logger.Debug("question batch persisted",
			zap.String("focus_group_id", fg.ID),
			zap.Int("question_index", qi),
			zap.Int("responses", len(responses)))
	}

	completed := time.Now().UTC()
	fg.TotalExecutionTimeMs = float64(completed.Sub(started).Milliseconds())
	fg.AvgResponseTimeMs = mean(latencies)
	fg.MeetsRequirements = fg.TotalExecutionTimeMs <= o.settings.SLOTotalMs &&
		fg.AvgResponseTimeMs <= o.settings.SLOAvgMs
	fg.Status = models.StatusCompleted
	fg.CompletedAt = &completed
	fg.Summary = o.generateSummary(ctx, fg)

	if err := o.repo.UpdateState(ctx, fg); err != nil {
		return o.failRun(fg, err)
	}

	o.logger.Info("focus group completed",
		zap.String("focus_group_id", fg.ID),
		zap.Float64("total_ms", fg.TotalExecutionTimeMs),
		zap.Float64("avg_ms", fg.AvgResponseTimeMs),
		zap.Bool("meets_requirements", fg.MeetsRequirements))

	// Best-effort graph rebuild; a failure here never fails the run.
	if o.GraphBuild != nil {
		if err := o.GraphBuild(ctx, fg.ID); err != nil {
			o.logger.Warn("graph build failed", zap.String("focus_group_id", fg.ID), zap.Error(err))
		}
	}
	return nil
}

// resolvePersonas applies the participant rule: the explicit id list wins,
// an empty list falls back to the whole project panel.
func (o *Orchestrator) resolvePersonas(ctx context.Context, fg *models.FocusGroup) ([]models.Persona, error) {
	var (
		participants []models.Persona
		err          error
	)
	if len(fg.PersonaIDs) > 0 {
		participants, err = o.personas.ListByIDs(ctx, fg.PersonaIDs)
	} else {
		participants, err = o.personas.ListByProject(ctx, fg.ProjectID)
	}
	if err != nil {
		return nil, err
	}
	if len(participants) == 0 {
		return nil, fmt.Errorf("%w: focus group %s resolves to no personas", models.ErrNoPersonas, fg.ID)
	}
	return participants, nil
}

// runQuestion fans out one task per persona with bounded parallelism and
// joins before returning. Task errors are recovered into error-response rows;
// only cancellation aborts the question.
func (o *Orchestrator) runQuestion(ctx context.Context, fg *models.FocusGroup, participants []models.Persona, questionIndex int, question string) ([]models.PersonaResponse, error) {
	parallelism := o.settings.WorkerParallelism
	if parallelism <= 0 {
		parallelism = len(participants)
	}
	sem := semaphore.NewWeighted(int64(parallelism))
	results := make([]models.PersonaResponse, len(participants))

	var g errgroup.Group
	for i := range participants {
		// Cancellation is honoured before each task launch.
		if err := sem.Acquire(ctx, 1); err != nil {
			g.Wait()
			return nil, fmt.Errorf("cancelled")
		}
		i := i
		p := participants[i]
		g.Go(func() error {
			defer sem.Release(1)
			results[i] = o.askPersona(ctx, fg, p, questionIndex, question)
			return nil
		})
	}
	g.Wait()

	if ctx.Err() != nil {
		return nil, fmt.Errorf("cancelled")
	}
	return results, nil
}

// askPersona runs one (persona, question) cell: retrieve memories, build the
// prompt, call the model with a per-call timeout and append memory events.
// Any failure is converted into a structured error response.
func (o *Orchestrator) askPersona(ctx context.Context, fg *models.FocusGroup, p models.Persona, questionIndex int, question string) models.PersonaResponse {
	resp := models.PersonaResponse{
		ID:            uuid.New().String(),
		FocusGroupID:  fg.ID,
		PersonaID:     p.ID,
		QuestionIndex: questionIndex,
		Question:      question,
		CreatedAt:     time.Now().UTC(),
	}

	memories := o.retrieveMemories(ctx, p.ID, question)

	if _, err := o.events.Append(ctx, p.ID, models.EventQuestionAsked,
		models.EventData{Question: question}, fg.ID); err != nil {
		o.logger.Warn("failed to append question event",
			zap.String("persona_id", p.ID), zap.Error(err))
	}

	systemPrompt, userPrompt, err := o.buildPrompts(fg.Mode, p, memories, question)
	if err != nil {
		o.logger.Warn("failed to build discussion prompt",
			zap.String("persona_id", p.ID), zap.Error(err))
		resp.Error = true
		return resp
	}

	// In-flight calls are not cut short by run cancellation; they finish or
	// hit their own deadline.
	callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx),
		time.Duration(o.settings.LLMTimeoutMs)*time.Millisecond)
	defer cancel()

	start := time.Now()
	answer, err := o.caller.ExecutePrompt(callCtx, "discussion", userPrompt, systemPrompt,
		llm.TextOptions(o.settings.LLMTemperature))
	if err != nil {
		o.logger.Warn("persona call failed, recording error response",
			zap.String("focus_group_id", fg.ID),
			zap.String("persona_id", p.ID),
			zap.Int("question_index", questionIndex),
			zap.Error(err))
		resp.Error = true
		resp.ResponseTimeMs = 0
		return resp
	}
	resp.Response = strings.TrimSpace(answer)
	resp.ResponseTimeMs = float64(time.Since(start).Milliseconds())

	if _, err := o.events.Append(ctx, p.ID, models.EventResponseGiven,
		models.EventData{Question: question, Response: resp.Response}, fg.ID); err != nil {
		o.logger.Warn("failed to append response event",
			zap.String("persona_id", p.ID), zap.Error(err))
	}
	return resp
}

func (o *Orchestrator) retrieveMemories(ctx context.Context, personaID, question string) string {
	if o.retriever == nil {
		return ""
	}
	topK := o.settings.TopKRetrieval
	if topK <= 0 {
		topK = 5
	}
	hits, err := o.retriever.Retrieve(ctx, personaID, question, topK, true)
	if err != nil {
		o.logger.Warn("memory retrieval failed",
			zap.String("persona_id", personaID), zap.Error(err))
		return ""
	}
	var sb strings.Builder
	for _, h := range hits {
		sb.WriteString("- ")
		sb.WriteString(h.Event.Data.Text())
		sb.WriteString("\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}

func (o *Orchestrator) buildPrompts(mode models.FocusGroupMode, p models.Persona, memories, question string) (string, string, error) {
	id := prompt.PromptIDs.DiscussionNormal
	if mode == models.ModeAdversarial {
		id = prompt.PromptIDs.DiscussionAdversarial
	}
	pt, err := prompt.Get().GetPrompt(id)
	if err != nil {
		return "", "", err
	}
	pctx := prompt.NewContext().
		Set("PersonaCard", personaCard(p)).
		Set("Memories", memories).
		Set("Question", question)
	userPrompt, err := prompt.RenderUserPrompt(pt, pctx)
	if err != nil {
		return "", "", err
	}
	return pt.SystemPrompt, userPrompt, nil
}

// personaCard renders the profile block injected into every discussion turn.
func personaCard(p models.Persona) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Your profile:\n")
	fmt.Fprintf(&sb, "Name: %s\n", p.FullName)
	if p.Headline != "" {
		fmt.Fprintf(&sb, "About: %s\n", p.Headline)
	}
	fmt.Fprintf(&sb, "Age: %d (%s)\n", p.Age, p.AgeGroup)
	fmt.Fprintf(&sb, "Gender: %s\n", p.Gender)
	if p.Occupation != "" {
		fmt.Fprintf(&sb, "Occupation: %s\n", p.Occupation)
	}
	fmt.Fprintf(&sb, "Location: %s, Education: %s, Income: %s\n", p.Location, p.Education, p.Income)
	if len(p.Values) > 0 {
		fmt.Fprintf(&sb, "Values: %s\n", strings.Join(p.Values, ", "))
	}
	if len(p.Interests) > 0 {
		fmt.Fprintf(&sb, "Interests: %s\n", strings.Join(p.Interests, ", "))
	}
	if p.BackgroundStory != "" {
		fmt.Fprintf(&sb, "Background: %s\n", p.BackgroundStory)
	}
	return strings.TrimRight(sb.String(), "\n")
}

// generateSummary asks the model for a markdown write-up of the session.
// Best effort: any failure leaves the summary empty.
func (o *Orchestrator) generateSummary(ctx context.Context, fg *models.FocusGroup) string {
	responses, err := o.repo.ListResponses(ctx, fg.ID)
	if err != nil || len(responses) == 0 {
		return ""
	}

	pt, err := prompt.Get().GetPrompt(prompt.PromptIDs.DiscussionSummary)
	if err != nil {
		return ""
	}
	var transcript strings.Builder
	for _, r := range responses {
		if r.Error {
			continue
		}
		fmt.Fprintf(&transcript, "Q%d: %s\nA: %s\n\n", r.QuestionIndex+1, r.Question, r.Response)
	}
	pctx := prompt.NewContext().
		Set("Name", fg.Name).
		Set("Transcript", transcript.String())
	userPrompt, err := prompt.RenderUserPrompt(pt, pctx)
	if err != nil {
		return ""
	}

	callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx),
		time.Duration(o.settings.LLMTimeoutMs)*time.Millisecond)
	defer cancel()

	raw, err := o.caller.ExecutePrompt(callCtx, "summary", userPrompt, pt.SystemPrompt,
		llm.TextOptions(o.settings.LLMTemperature))
	if err != nil {
		o.logger.Warn("summary generation failed", zap.String("focus_group_id", fg.ID), zap.Error(err))
		return ""
	}
	summary := utils.CleanMarkdown(raw)
	if !utils.ValidateMarkdown(summary) {
		return ""
	}
	return summary
}

// failRun moves the group to failed, stamping completed_at and the reason.
// State is persisted with a background context because the run context may
// already be cancelled.
func (o *Orchestrator) failRun(fg *models.FocusGroup, cause error) error {
	completed := time.Now().UTC()
	fg.Status = models.StatusFailed
	fg.CompletedAt = &completed
	fg.ErrorMessage = cause.Error()
	if fg.StartedAt != nil {
		fg.TotalExecutionTimeMs = float64(completed.Sub(*fg.StartedAt).Milliseconds())
	}

	persistCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := o.repo.UpdateState(persistCtx, fg); err != nil {
		o.logger.Error("failed to persist failed state",
			zap.String("focus_group_id", fg.ID), zap.Error(err))
	}

	o.logger.Warn("focus group failed",
		zap.String("focus_group_id", fg.ID),
		zap.String("reason", fg.ErrorMessage))
	return cause
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
