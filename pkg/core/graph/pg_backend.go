package graph

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"synthetic_panel/pkg/models"
)

// PgBackend persists snapshots into graph_nodes and graph_edges. A rebuild
// replaces the focus group's rows in one transaction, so readers never see a
// partially rebuilt graph.
type PgBackend struct {
	pool *pgxpool.Pool
}

var _ Backend = (*PgBackend)(nil)

func NewPgBackend(pool *pgxpool.Pool) *PgBackend {
	return &PgBackend{pool: pool}
}

func (b *PgBackend) Replace(ctx context.Context, snapshot *Snapshot) error {
	if b.pool == nil {
		return fmt.Errorf("database pool not configured")
	}
	if snapshot == nil || snapshot.FocusGroupID == "" {
		return fmt.Errorf("snapshot requires a focus group id")
	}

	tx, err := b.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%w: begin graph tx: %v", models.ErrPersistenceFailed, err)
	}
	defer tx.Rollback(ctx)

	for _, table := range []string{"graph_edges", "graph_nodes"} {
		if _, err := tx.Exec(ctx,
			fmt.Sprintf(`DELETE FROM %s WHERE focus_group_id = $1`, table),
			snapshot.FocusGroupID); err != nil {
			return fmt.Errorf("%w: clear %s: %v", models.ErrPersistenceFailed, table, err)
		}
	}

	for _, n := range snapshot.Nodes {
		props, err := json.Marshal(nodeProps(n))
		if err != nil {
			return fmt.Errorf("failed to marshal node properties: %w", err)
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO graph_nodes (focus_group_id, node_type, node_key, properties, counter)
			VALUES ($1, $2, $3, $4, $5)`,
			snapshot.FocusGroupID, string(n.Type), n.Key, props, n.Counter); err != nil {
			return fmt.Errorf("%w: insert graph node: %v", models.ErrPersistenceFailed, err)
		}
	}

	for _, e := range snapshot.Edges {
		if _, err := tx.Exec(ctx, `
			INSERT INTO graph_edges (focus_group_id, edge_type, source_key, target_key, mention_count, weight)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			snapshot.FocusGroupID, string(e.Type), e.SourceKey, e.TargetKey, e.Count, e.Weight); err != nil {
			return fmt.Errorf("%w: insert graph edge: %v", models.ErrPersistenceFailed, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("%w: commit graph tx: %v", models.ErrPersistenceFailed, err)
	}
	return nil
}

func (b *PgBackend) Snapshot(ctx context.Context, focusGroupID string) (*Snapshot, error) {
	if b.pool == nil {
		return nil, fmt.Errorf("database pool not configured")
	}

	snap := &Snapshot{FocusGroupID: focusGroupID, BuiltAt: time.Now().UTC()}

	rows, err := b.pool.Query(ctx, `
		SELECT node_type, node_key, properties, counter
		FROM graph_nodes WHERE focus_group_id = $1
		ORDER BY node_type, node_key`, focusGroupID)
	if err != nil {
		return nil, fmt.Errorf("failed to load graph nodes: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var n Node
		var nodeType string
		var props []byte
		if err := rows.Scan(&nodeType, &n.Key, &props, &n.Counter); err != nil {
			return nil, fmt.Errorf("failed to scan graph node: %w", err)
		}
		n.Type = NodeType(nodeType)
		if err := json.Unmarshal(props, &n.Properties); err != nil {
			return nil, fmt.Errorf("failed to parse node properties: %w", err)
		}
		n.Label = n.Properties["label"]
		delete(n.Properties, "label")
		snap.Nodes = append(snap.Nodes, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to load graph nodes: %w", err)
	}
	if len(snap.Nodes) == 0 {
		return nil, fmt.Errorf("%w: graph for focus group %s", models.ErrNotFound, focusGroupID)
	}

	edgeRows, err := b.pool.Query(ctx, `
		SELECT edge_type, source_key, target_key, mention_count, weight
		FROM graph_edges WHERE focus_group_id = $1
		ORDER BY edge_type, source_key, target_key`, focusGroupID)
	if err != nil {
		return nil, fmt.Errorf("failed to load graph edges: %w", err)
	}
	defer edgeRows.Close()
	for edgeRows.Next() {
		var e Edge
		var edgeType string
		if err := edgeRows.Scan(&edgeType, &e.SourceKey, &e.TargetKey, &e.Count, &e.Weight); err != nil {
			return nil, fmt.Errorf("failed to scan graph edge: %w", err)
		}
		e.Type = EdgeType(edgeType)
		snap.Edges = append(snap.Edges, e)
	}
	if err := edgeRows.Err(); err != nil {
		return nil, fmt.Errorf("failed to load graph edges: %w", err)
	}
	return snap, nil
}

// nodeProps folds the label into the JSONB column so the table needs no
// extra columns for display data.
func nodeProps(n Node) map[string]string {
	props := make(map[string]string, len(n.Properties)+1)
	for k, v := range n.Properties {
		props[k] = v
	}
	props["label"] = n.Label
	return props
}
