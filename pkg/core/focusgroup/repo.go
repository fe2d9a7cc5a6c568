package focusgroup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"synthetic_panel/pkg/models"
)

// PgRepo handles persistence for focus groups and their response matrix
type PgRepo struct {
	pool *pgxpool.Pool
}

var _ Repo = (*PgRepo)(nil)

// NewPgRepo creates a new focus group repository
func NewPgRepo(pool *pgxpool.Pool) *PgRepo {
	return &PgRepo{pool: pool}
}

// Create inserts a new focus group in pending state
func (r *PgRepo) Create(ctx context.Context, fg *models.FocusGroup) error {
	if r.pool == nil {
		return fmt.Errorf("database pool not configured")
	}

	idsJSON, _ := json.Marshal(fg.PersonaIDs)
	questionsJSON, _ := json.Marshal(fg.Questions)

	query := `
		INSERT INTO focus_groups (id, project_id, name, persona_ids, questions, mode, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
	`
	_, err := r.pool.Exec(ctx, query,
		fg.ID, fg.ProjectID, fg.Name, idsJSON, questionsJSON, string(fg.Mode), string(fg.Status))
	if err != nil {
		return fmt.Errorf("failed to create focus group: %w", err)
	}
	return nil
}

// Get loads a focus group by id
func (r *PgRepo) Get(ctx context.Context, id string) (*models.FocusGroup, error) {
	if r.pool == nil {
		return nil, fmt.Errorf("database pool not configured")
	}

	query := `
		SELECT id, project_id, name, persona_ids, questions, mode, status,
		       started_at, completed_at, total_execution_time_ms, avg_response_time_ms,
		       meets_requirements, error_message, polarization_score,
		       overall_consistency_score, summary, created_at
		FROM focus_groups
		WHERE id = $1
	`
	var fg models.FocusGroup
	var idsJSON, questionsJSON []byte
	var mode, status string
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&fg.ID, &fg.ProjectID, &fg.Name, &idsJSON, &questionsJSON, &mode, &status,
		&fg.StartedAt, &fg.CompletedAt, &fg.TotalExecutionTimeMs, &fg.AvgResponseTimeMs,
		&fg.MeetsRequirements, &fg.ErrorMessage, &fg.PolarizationScore,
		&fg.OverallConsistencyScore, &fg.Summary, &fg.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: focus group %s", models.ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to load focus group: %w", err)
	}
	fg.Mode = models.FocusGroupMode(mode)
	fg.Status = models.FocusGroupStatus(status)
	json.Unmarshal(idsJSON, &fg.PersonaIDs)
	json.Unmarshal(questionsJSON, &fg.Questions)
	return &fg, nil
}

// UpdateState persists status, timestamps, metrics, error message and summary
func (r *PgRepo) UpdateState(ctx context.Context, fg *models.FocusGroup) error {
	if r.pool == nil {
		return fmt.Errorf("database pool not configured")
	}

	query := `
		UPDATE focus_groups
		SET status = $2, started_at = $3, completed_at = $4,
		    total_execution_time_ms = $5, avg_response_time_ms = $6,
		    meets_requirements = $7, error_message = $8, summary = $9
		WHERE id = $1
	`
	_, err := r.pool.Exec(ctx, query,
		fg.ID, string(fg.Status), fg.StartedAt, fg.CompletedAt,
		fg.TotalExecutionTimeMs, fg.AvgResponseTimeMs,
		fg.MeetsRequirements, fg.ErrorMessage, fg.Summary)
	if err != nil {
		return fmt.Errorf("%w: update focus group state: %v", models.ErrPersistenceFailed, err)
	}
	return nil
}

// SaveResponses writes one question's batch in a single transaction. Any
// insert failure rolls back the whole batch.
func (r *PgRepo) SaveResponses(ctx context.Context, responses []models.PersonaResponse) error {
	if r.pool == nil {
		return fmt.Errorf("database pool not configured")
	}
	if len(responses) == 0 {
		return nil
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%w: begin response batch: %v", models.ErrPersistenceFailed, err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO persona_responses
			(id, focus_group_id, persona_id, question_index, question, response,
			 response_time_ms, consistency_score, error, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	for _, resp := range responses {
		_, err := tx.Exec(ctx, query,
			resp.ID, resp.FocusGroupID, resp.PersonaID, resp.QuestionIndex,
			resp.Question, resp.Response, resp.ResponseTimeMs,
			resp.ConsistencyScore, resp.Error, resp.CreatedAt)
		if err != nil {
			return fmt.Errorf("%w: insert response: %v", models.ErrPersistenceFailed, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("%w: commit response batch: %v", models.ErrPersistenceFailed, err)
	}
	return nil
}

// ListResponses returns every response of a focus group in question order
func (r *PgRepo) ListResponses(ctx context.Context, focusGroupID string) ([]models.PersonaResponse, error) {
	if r.pool == nil {
		return nil, fmt.Errorf("database pool not configured")
	}

	query := `
		SELECT id, focus_group_id, persona_id, question_index, question, response,
		       response_time_ms, consistency_score, error, created_at
		FROM persona_responses
		WHERE focus_group_id = $1
		ORDER BY question_index, created_at
	`
	rows, err := r.pool.Query(ctx, query, focusGroupID)
	if err != nil {
		return nil, fmt.Errorf("failed to query responses: %w", err)
	}
	defer rows.Close()

	var responses []models.PersonaResponse
	for rows.Next() {
		var resp models.PersonaResponse
		if err := rows.Scan(&resp.ID, &resp.FocusGroupID, &resp.PersonaID,
			&resp.QuestionIndex, &resp.Question, &resp.Response,
			&resp.ResponseTimeMs, &resp.ConsistencyScore, &resp.Error,
			&resp.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan response row: %w", err)
		}
		responses = append(responses, resp)
	}
	return responses, rows.Err()
}
