package insights

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"synthetic_panel/pkg/models"
)

// PgWriter persists the blob and the focus-group write-back in a single
// transaction, so readers never see a half-updated insight state.
type PgWriter struct {
	pool *pgxpool.Pool
}

var _ Writer = (*PgWriter)(nil)

func NewPgWriter(pool *pgxpool.Pool) *PgWriter {
	return &PgWriter{pool: pool}
}

func (w *PgWriter) SaveInsights(ctx context.Context, focusGroupID string, blob *InsightBlob, polarizationScore, consistencyScore float64) error {
	if w.pool == nil {
		return fmt.Errorf("database pool not configured")
	}

	blobJSON, err := json.Marshal(blob)
	if err != nil {
		return fmt.Errorf("failed to marshal insight blob: %w", err)
	}

	tx, err := w.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%w: begin insight tx: %v", models.ErrPersistenceFailed, err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO insight_blobs (focus_group_id, blob, created_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (focus_group_id)
		DO UPDATE SET blob = EXCLUDED.blob, created_at = NOW()`,
		focusGroupID, blobJSON)
	if err != nil {
		return fmt.Errorf("%w: save insight blob: %v", models.ErrPersistenceFailed, err)
	}

	_, err = tx.Exec(ctx, `
		UPDATE focus_groups
		SET polarization_score = $2, polarization_clusters = $3, overall_consistency_score = $4
		WHERE id = $1`,
		focusGroupID, polarizationScore, blobJSON, consistencyScore)
	if err != nil {
		return fmt.Errorf("%w: write back polarization: %v", models.ErrPersistenceFailed, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("%w: commit insight tx: %v", models.ErrPersistenceFailed, err)
	}
	return nil
}

// GetInsights loads a previously generated blob.
func (w *PgWriter) GetInsights(ctx context.Context, focusGroupID string) (*InsightBlob, error) {
	if w.pool == nil {
		return nil, fmt.Errorf("database pool not configured")
	}

	var blobJSON []byte
	err := w.pool.QueryRow(ctx,
		`SELECT blob FROM insight_blobs WHERE focus_group_id = $1`, focusGroupID).Scan(&blobJSON)
	if err != nil {
		return nil, fmt.Errorf("%w: insights for focus group %s", models.ErrNotFound, focusGroupID)
	}
	var blob InsightBlob
	if err := json.Unmarshal(blobJSON, &blob); err != nil {
		return nil, fmt.Errorf("failed to parse insight blob: %w", err)
	}
	return &blob, nil
}
