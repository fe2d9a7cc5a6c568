package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"synthetic_panel/pkg/models"
)

// PersonaRepo provides storage for synthesized personas
type PersonaRepo struct {
	pool *pgxpool.Pool
}

// NewPersonaRepo creates a new persona repository
func NewPersonaRepo(pool *pgxpool.Pool) *PersonaRepo {
	return &PersonaRepo{pool: pool}
}

// Save inserts one persona row
func (r *PersonaRepo) Save(ctx context.Context, p *models.Persona) error {
	if r.pool == nil {
		return fmt.Errorf("database pool not configured")
	}

	traitsJSON, err := json.Marshal(p.Traits)
	if err != nil {
		return fmt.Errorf("failed to marshal traits: %w", err)
	}
	dimsJSON, err := json.Marshal(p.Dimensions)
	if err != nil {
		return fmt.Errorf("failed to marshal dimensions: %w", err)
	}
	valuesJSON, _ := json.Marshal(p.Values)
	interestsJSON, _ := json.Marshal(p.Interests)

	query := `
		INSERT INTO personas (
			id, project_id, age, age_group, gender, location, education, income, occupation,
			traits, dimensions, full_name, headline, background_story, value_set, interests, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, NOW())
	`
	_, err = r.pool.Exec(ctx, query,
		p.ID, p.ProjectID, p.Age, p.AgeGroup, p.Gender, p.Location, p.Education, p.Income, p.Occupation,
		traitsJSON, dimsJSON, p.FullName, p.Headline, p.BackgroundStory, valuesJSON, interestsJSON)
	if err != nil {
		return fmt.Errorf("failed to save persona: %w", err)
	}
	return nil
}

// ListByProject returns every persona in a project, oldest first
func (r *PersonaRepo) ListByProject(ctx context.Context, projectID string) ([]models.Persona, error) {
	query := selectPersonas + ` WHERE project_id = $1 ORDER BY created_at`
	return r.queryPersonas(ctx, query, projectID)
}

// ListByIDs returns the personas matching the given ids
func (r *PersonaRepo) ListByIDs(ctx context.Context, ids []string) ([]models.Persona, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := selectPersonas + ` WHERE id = ANY($1) ORDER BY created_at`
	return r.queryPersonas(ctx, query, ids)
}

// CountByProject returns how many personas a project has. Pollers use this
// to track background panel generation progress.
func (r *PersonaRepo) CountByProject(ctx context.Context, projectID string) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM personas WHERE project_id = $1`, projectID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count personas: %w", err)
	}
	return n, nil
}

const selectPersonas = `
	SELECT id, project_id, age, age_group, gender, location, education, income, occupation,
	       traits, dimensions, full_name, headline, background_story, value_set, interests, created_at
	FROM personas`

func (r *PersonaRepo) queryPersonas(ctx context.Context, query string, args ...interface{}) ([]models.Persona, error) {
	if r.pool == nil {
		return nil, fmt.Errorf("database pool not configured")
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query personas: %w", err)
	}
	defer rows.Close()

	var personas []models.Persona
	for rows.Next() {
		var p models.Persona
		var traitsJSON, dimsJSON, valuesJSON, interestsJSON []byte
		if err := rows.Scan(&p.ID, &p.ProjectID, &p.Age, &p.AgeGroup, &p.Gender,
			&p.Location, &p.Education, &p.Income, &p.Occupation,
			&traitsJSON, &dimsJSON, &p.FullName, &p.Headline, &p.BackgroundStory,
			&valuesJSON, &interestsJSON, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan persona row: %w", err)
		}
		json.Unmarshal(traitsJSON, &p.Traits)
		json.Unmarshal(dimsJSON, &p.Dimensions)
		json.Unmarshal(valuesJSON, &p.Values)
		json.Unmarshal(interestsJSON, &p.Interests)
		personas = append(personas, p)
	}
	return personas, rows.Err()
}
