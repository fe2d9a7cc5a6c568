// Package focusgroup drives a focus group session from pending to a terminal
// state: bounded parallel persona fan-out per question, strictly sequential
// questions, transactional per-question persistence and SLO metrics.
package focusgroup

import (
	"context"

	"synthetic_panel/pkg/core/memory"
	"synthetic_panel/pkg/models"
)

// Repo is the persistence surface the orchestrator needs. SaveResponses must
// write the whole batch in one transaction.
type Repo interface {
	Get(ctx context.Context, id string) (*models.FocusGroup, error)
	Create(ctx context.Context, fg *models.FocusGroup) error
	UpdateState(ctx context.Context, fg *models.FocusGroup) error
	SaveResponses(ctx context.Context, responses []models.PersonaResponse) error
	ListResponses(ctx context.Context, focusGroupID string) ([]models.PersonaResponse, error)
}

// PersonaSource resolves the participant set.
type PersonaSource interface {
	ListByIDs(ctx context.Context, ids []string) ([]models.Persona, error)
	ListByProject(ctx context.Context, projectID string) ([]models.Persona, error)
}

// ContextRetriever supplies each persona's relevant memories for a question.
type ContextRetriever interface {
	Retrieve(ctx context.Context, personaID, query string, topK int, timeDecay bool) ([]memory.RetrievedEvent, error)
}

// LLMCaller is the chat surface the orchestrator talks to; satisfied by
// *agent.Manager.
type LLMCaller interface {
	ExecutePrompt(ctx context.Context, stage, prompt, systemPrompt string, options map[string]interface{}) (string, error)
}
