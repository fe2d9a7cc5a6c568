// Package memory is the event-sourced persona memory: an append-only log per
// persona with monotonic sequence numbers and vector embeddings, plus top-k
// semantic retrieval with temporal decay.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"synthetic_panel/pkg/core/llm"
	"synthetic_panel/pkg/models"
)

// EventStore is the persona memory capability set. History with limit <= 0
// returns the full log in sequence order.
type EventStore interface {
	Append(ctx context.Context, personaID string, eventType models.EventType, data models.EventData, focusGroupID string) (*models.PersonaEvent, error)
	History(ctx context.Context, personaID string, limit int) ([]models.PersonaEvent, error)
}

// MemoryEventStore keeps logs in process memory. Appends to the same persona
// serialize on a per-persona mutex so sequence numbers stay contiguous.
type MemoryEventStore struct {
	embedder llm.Embedder
	logger   *zap.Logger

	mu    sync.RWMutex
	logs  map[string][]models.PersonaEvent
	locks map[string]*sync.Mutex
}

var _ EventStore = (*MemoryEventStore)(nil)

func NewMemoryEventStore(embedder llm.Embedder, logger *zap.Logger) *MemoryEventStore {
	return &MemoryEventStore{
		embedder: embedder,
		logger:   logger,
		logs:     make(map[string][]models.PersonaEvent),
		locks:    make(map[string]*sync.Mutex),
	}
}

func (s *MemoryEventStore) personaLock(personaID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	if l, ok := s.locks[personaID]; ok {
		return l
	}
	l := &sync.Mutex{}
	s.locks[personaID] = l
	return l
}

// Append writes one immutable event with sequence max+1. The embedding is
// computed synchronously; if the embedding backend is down the event is still
// appended with a null embedding.
func (s *MemoryEventStore) Append(ctx context.Context, personaID string, eventType models.EventType, data models.EventData, focusGroupID string) (*models.PersonaEvent, error) {
	embedding, err := s.embedder.Embed(ctx, data.Text())
	if err != nil {
		s.logger.Warn("embedding unavailable, appending without vector",
			zap.String("persona_id", personaID), zap.Error(err))
		embedding = nil
	}

	lock := s.personaLock(personaID)
	lock.Lock()
	defer lock.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	event := models.PersonaEvent{
		ID:             uuid.New().String(),
		PersonaID:      personaID,
		FocusGroupID:   focusGroupID,
		EventType:      eventType,
		Data:           data,
		SequenceNumber: int64(len(s.logs[personaID])) + 1,
		Embedding:      embedding,
		Timestamp:      time.Now().UTC(),
	}
	s.logs[personaID] = append(s.logs[personaID], event)
	return &event, nil
}

// History returns events in sequence order; limit <= 0 returns everything,
// otherwise the most recent `limit` events.
func (s *MemoryEventStore) History(ctx context.Context, personaID string, limit int) ([]models.PersonaEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	log := s.logs[personaID]
	start := 0
	if limit > 0 && len(log) > limit {
		start = len(log) - limit
	}
	out := make([]models.PersonaEvent, len(log)-start)
	copy(out, log[start:])
	return out, nil
}
