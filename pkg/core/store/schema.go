package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// schemaStatements bootstrap the relational layout. Everything is
// IF NOT EXISTS so repeated startup is safe.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS projects (
		id UUID PRIMARY KEY,
		owner_id TEXT NOT NULL DEFAULT '',
		name TEXT NOT NULL,
		target_distribution JSONB NOT NULL DEFAULT '{}',
		target_sample_size INT NOT NULL DEFAULT 0,
		statistically_valid BOOLEAN NOT NULL DEFAULT FALSE,
		deleted BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,

	`CREATE TABLE IF NOT EXISTS personas (
		id UUID PRIMARY KEY,
		project_id UUID NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
		age INT NOT NULL DEFAULT 0,
		age_group TEXT NOT NULL DEFAULT '',
		gender TEXT NOT NULL DEFAULT '',
		location TEXT NOT NULL DEFAULT '',
		education TEXT NOT NULL DEFAULT '',
		income TEXT NOT NULL DEFAULT '',
		occupation TEXT NOT NULL DEFAULT '',
		traits JSONB NOT NULL DEFAULT '{}',
		dimensions JSONB NOT NULL DEFAULT '{}',
		full_name TEXT NOT NULL DEFAULT '',
		headline TEXT NOT NULL DEFAULT '',
		background_story TEXT NOT NULL DEFAULT '',
		value_set JSONB NOT NULL DEFAULT '[]',
		interests JSONB NOT NULL DEFAULT '[]',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_personas_project ON personas(project_id)`,

	`CREATE TABLE IF NOT EXISTS focus_groups (
		id UUID PRIMARY KEY,
		project_id UUID NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
		name TEXT NOT NULL DEFAULT '',
		persona_ids JSONB NOT NULL DEFAULT '[]',
		questions JSONB NOT NULL DEFAULT '[]',
		mode TEXT NOT NULL DEFAULT 'normal',
		status TEXT NOT NULL DEFAULT 'pending',
		started_at TIMESTAMPTZ,
		completed_at TIMESTAMPTZ,
		total_execution_time_ms DOUBLE PRECISION NOT NULL DEFAULT 0,
		avg_response_time_ms DOUBLE PRECISION NOT NULL DEFAULT 0,
		meets_requirements BOOLEAN NOT NULL DEFAULT FALSE,
		error_message TEXT NOT NULL DEFAULT '',
		polarization_score DOUBLE PRECISION NOT NULL DEFAULT 0,
		polarization_clusters JSONB,
		overall_consistency_score DOUBLE PRECISION NOT NULL DEFAULT 0,
		summary TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_focus_groups_project ON focus_groups(project_id)`,

	`CREATE TABLE IF NOT EXISTS persona_responses (
		id UUID PRIMARY KEY,
		focus_group_id UUID NOT NULL REFERENCES focus_groups(id) ON DELETE CASCADE,
		persona_id UUID NOT NULL REFERENCES personas(id) ON DELETE CASCADE,
		question_index INT NOT NULL DEFAULT 0,
		question TEXT NOT NULL DEFAULT '',
		response TEXT NOT NULL DEFAULT '',
		response_time_ms DOUBLE PRECISION NOT NULL DEFAULT 0,
		consistency_score DOUBLE PRECISION,
		error BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_responses_focus_group ON persona_responses(focus_group_id)`,

	`CREATE TABLE IF NOT EXISTS persona_events (
		id UUID PRIMARY KEY,
		persona_id UUID NOT NULL REFERENCES personas(id) ON DELETE CASCADE,
		focus_group_id UUID,
		event_type TEXT NOT NULL,
		question TEXT NOT NULL DEFAULT '',
		response TEXT NOT NULL DEFAULT '',
		sequence_number BIGINT NOT NULL,
		embedding REAL[],
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (persona_id, sequence_number)
	)`,

	`CREATE TABLE IF NOT EXISTS insight_blobs (
		focus_group_id UUID PRIMARY KEY REFERENCES focus_groups(id) ON DELETE CASCADE,
		blob JSONB NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,

	`CREATE TABLE IF NOT EXISTS graph_nodes (
		focus_group_id UUID NOT NULL,
		node_type TEXT NOT NULL,
		node_key TEXT NOT NULL,
		properties JSONB NOT NULL DEFAULT '{}',
		counter INT NOT NULL DEFAULT 0,
		PRIMARY KEY (focus_group_id, node_type, node_key)
	)`,

	`CREATE TABLE IF NOT EXISTS graph_edges (
		focus_group_id UUID NOT NULL,
		edge_type TEXT NOT NULL,
		source_key TEXT NOT NULL,
		target_key TEXT NOT NULL,
		mention_count INT NOT NULL DEFAULT 0,
		weight DOUBLE PRECISION NOT NULL DEFAULT 0,
		PRIMARY KEY (focus_group_id, edge_type, source_key, target_key)
	)`,
}

// EnsureSchema creates all tables the platform needs. Called once at startup
// by the entrypoints.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range schemaStatements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("schema bootstrap failed: %w", err)
		}
	}
	return nil
}
