// Package graph materializes a persona-concept-emotion graph from a focus
// group's responses and serves read-side queries over it.
package graph

import (
	"context"
	"fmt"
	"sync"
	"time"

	"synthetic_panel/pkg/models"
)

type NodeType string

const (
	NodePersona NodeType = "persona"
	NodeConcept NodeType = "concept"
	NodeEmotion NodeType = "emotion"
)

type EdgeType string

const (
	EdgeMentions  EdgeType = "mentions"
	EdgeFeels     EdgeType = "feels"
	EdgeAgrees    EdgeType = "agrees"
	EdgeDisagrees EdgeType = "disagrees"
)

// Node is one graph vertex. Counter carries the mention frequency for
// concepts and the occurrence count for emotions; persona nodes leave it at 1.
type Node struct {
	Type       NodeType          `json:"type"`
	Key        string            `json:"key"`
	Label      string            `json:"label"`
	Properties map[string]string `json:"properties,omitempty"`
	Counter    int               `json:"counter"`
}

// Edge is one graph relation. Weight carries the blended sentiment for
// mentions, the mean intensity for feels and the strength for agrees and
// disagrees edges.
type Edge struct {
	Type      EdgeType `json:"type"`
	SourceKey string   `json:"source_key"`
	TargetKey string   `json:"target_key"`
	Count     int      `json:"count"`
	Weight    float64  `json:"weight"`
}

// Snapshot is the full derived graph for one focus group. Rebuilding replaces
// it wholesale; it can always be recomputed from the response log.
type Snapshot struct {
	FocusGroupID string    `json:"focus_group_id"`
	Nodes        []Node    `json:"nodes"`
	Edges        []Edge    `json:"edges"`
	BuiltAt      time.Time `json:"built_at"`
}

// Backend stores and serves graph snapshots.
type Backend interface {
	Replace(ctx context.Context, snapshot *Snapshot) error
	Snapshot(ctx context.Context, focusGroupID string) (*Snapshot, error)
}

// SnapshotRegistry is the in-process backend. It lives for the lifetime of
// the process; reads share a lock, a rebuild takes it exclusively and swaps
// the snapshot in one step.
type SnapshotRegistry struct {
	mu        sync.RWMutex
	snapshots map[string]*Snapshot
}

var _ Backend = (*SnapshotRegistry)(nil)

func NewSnapshotRegistry() *SnapshotRegistry {
	return &SnapshotRegistry{snapshots: make(map[string]*Snapshot)}
}

func (r *SnapshotRegistry) Replace(ctx context.Context, snapshot *Snapshot) error {
	if snapshot == nil || snapshot.FocusGroupID == "" {
		return fmt.Errorf("snapshot requires a focus group id")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snapshots[snapshot.FocusGroupID] = snapshot
	return nil
}

func (r *SnapshotRegistry) Snapshot(ctx context.Context, focusGroupID string) (*Snapshot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	snap, ok := r.snapshots[focusGroupID]
	if !ok {
		return nil, fmt.Errorf("%w: graph for focus group %s", models.ErrNotFound, focusGroupID)
	}
	return snap, nil
}
