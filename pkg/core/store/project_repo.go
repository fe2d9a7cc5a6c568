package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"synthetic_panel/pkg/models"
)

// ProjectRepo provides storage for research projects
type ProjectRepo struct {
	pool *pgxpool.Pool
}

// NewProjectRepo creates a new project repository
func NewProjectRepo(pool *pgxpool.Pool) *ProjectRepo {
	return &ProjectRepo{pool: pool}
}

// Save inserts or updates a project
func (r *ProjectRepo) Save(ctx context.Context, p *models.Project) error {
	if r.pool == nil {
		return fmt.Errorf("database pool not configured")
	}

	distJSON, err := json.Marshal(p.TargetDistribution)
	if err != nil {
		return fmt.Errorf("failed to marshal target distribution: %w", err)
	}

	query := `
		INSERT INTO projects (id, owner_id, name, target_distribution, target_sample_size, statistically_valid, deleted, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		ON CONFLICT (id)
		DO UPDATE SET
			name = EXCLUDED.name,
			target_distribution = EXCLUDED.target_distribution,
			target_sample_size = EXCLUDED.target_sample_size,
			statistically_valid = EXCLUDED.statistically_valid,
			deleted = EXCLUDED.deleted
	`
	_, err = r.pool.Exec(ctx, query,
		p.ID, p.OwnerID, p.Name, distJSON, p.TargetSampleSize, p.StatisticallyValid, p.Deleted)
	if err != nil {
		return fmt.Errorf("failed to save project: %w", err)
	}
	return nil
}

// Get retrieves a project by id; soft-deleted projects are not returned
func (r *ProjectRepo) Get(ctx context.Context, id string) (*models.Project, error) {
	if r.pool == nil {
		return nil, fmt.Errorf("database pool not configured")
	}

	query := `
		SELECT id, owner_id, name, target_distribution, target_sample_size, statistically_valid, deleted, created_at
		FROM projects
		WHERE id = $1 AND NOT deleted
	`
	var p models.Project
	var distJSON []byte
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&p.ID, &p.OwnerID, &p.Name, &distJSON, &p.TargetSampleSize,
		&p.StatisticallyValid, &p.Deleted, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: project %s", models.ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to load project: %w", err)
	}
	if len(distJSON) > 0 {
		if err := json.Unmarshal(distJSON, &p.TargetDistribution); err != nil {
			return nil, fmt.Errorf("failed to parse target distribution: %w", err)
		}
	}
	return &p, nil
}

// SetStatisticallyValid updates the validation flag after a chi-square run
func (r *ProjectRepo) SetStatisticallyValid(ctx context.Context, id string, valid bool) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE projects SET statistically_valid = $2 WHERE id = $1`, id, valid)
	if err != nil {
		return fmt.Errorf("failed to update project validity: %w", err)
	}
	return nil
}

// SoftDelete marks a project deleted without removing its rows
func (r *ProjectRepo) SoftDelete(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx, `UPDATE projects SET deleted = TRUE WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete project: %w", err)
	}
	return nil
}
