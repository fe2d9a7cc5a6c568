package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"synthetic_panel/pkg/core/llm"
	"synthetic_panel/pkg/models"
)

// PgEventStore persists persona events in Postgres. Sequence contiguity is
// enforced with a per-persona transaction-scoped advisory lock around the
// "read max, write max+1" window.
type PgEventStore struct {
	pool     *pgxpool.Pool
	embedder llm.Embedder
	logger   *zap.Logger
}

var _ EventStore = (*PgEventStore)(nil)

func NewPgEventStore(pool *pgxpool.Pool, embedder llm.Embedder, logger *zap.Logger) *PgEventStore {
	return &PgEventStore{pool: pool, embedder: embedder, logger: logger}
}

func (s *PgEventStore) Append(ctx context.Context, personaID string, eventType models.EventType, data models.EventData, focusGroupID string) (*models.PersonaEvent, error) {
	embedding, err := s.embedder.Embed(ctx, data.Text())
	if err != nil {
		s.logger.Warn("embedding unavailable, appending without vector",
			zap.String("persona_id", personaID), zap.Error(err))
		embedding = nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: begin append tx: %v", models.ErrPersistenceFailed, err)
	}
	defer tx.Rollback(ctx)

	// Serialize concurrent appends to the same persona. The lock is released
	// automatically at commit/rollback.
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, personaID); err != nil {
		return nil, fmt.Errorf("%w: advisory lock: %v", models.ErrPersistenceFailed, err)
	}

	var seq int64
	err = tx.QueryRow(ctx,
		`SELECT COALESCE(MAX(sequence_number), 0) + 1 FROM persona_events WHERE persona_id = $1`,
		personaID).Scan(&seq)
	if err != nil {
		return nil, fmt.Errorf("%w: next sequence: %v", models.ErrPersistenceFailed, err)
	}

	event := models.PersonaEvent{
		ID:             uuid.New().String(),
		PersonaID:      personaID,
		FocusGroupID:   focusGroupID,
		EventType:      eventType,
		Data:           data,
		SequenceNumber: seq,
		Embedding:      embedding,
		Timestamp:      time.Now().UTC(),
	}

	var fgID interface{}
	if focusGroupID != "" {
		fgID = focusGroupID
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO persona_events
			(id, persona_id, focus_group_id, event_type, question, response, sequence_number, embedding, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		event.ID, event.PersonaID, fgID, string(event.EventType),
		event.Data.Question, event.Data.Response, event.SequenceNumber,
		event.Embedding, event.Timestamp)
	if err != nil {
		return nil, fmt.Errorf("%w: insert event: %v", models.ErrPersistenceFailed, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("%w: commit event: %v", models.ErrPersistenceFailed, err)
	}
	return &event, nil
}

func (s *PgEventStore) History(ctx context.Context, personaID string, limit int) ([]models.PersonaEvent, error) {
	query := `
		SELECT id, persona_id, COALESCE(focus_group_id::text, ''), event_type,
		       question, response, sequence_number, embedding, created_at
		FROM persona_events
		WHERE persona_id = $1
		ORDER BY sequence_number`
	args := []interface{}{personaID}
	if limit > 0 {
		// Most recent `limit` events, still returned in sequence order.
		query = `SELECT * FROM (` + query + ` DESC LIMIT $2) recent ORDER BY sequence_number`
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var events []models.PersonaEvent
	for rows.Next() {
		var e models.PersonaEvent
		var eventType string
		if err := rows.Scan(&e.ID, &e.PersonaID, &e.FocusGroupID, &eventType,
			&e.Data.Question, &e.Data.Response, &e.SequenceNumber,
			&e.Embedding, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		e.EventType = models.EventType(eventType)
		events = append(events, e)
	}
	return events, rows.Err()
}
