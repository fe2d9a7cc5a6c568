package memory

import (
	"context"
	"math"
	"sort"
	"time"

	"go.uber.org/zap"

	"synthetic_panel/pkg/core/llm"
	"synthetic_panel/pkg/models"
)

// RetrievedEvent is one scored memory hit.
type RetrievedEvent struct {
	Event          models.PersonaEvent `json:"event"`
	Similarity     float64             `json:"similarity"`
	RelevanceScore float64             `json:"relevance_score"`
	AgeDays        float64             `json:"age_days"`
}

// Retriever scores a persona's memory log against a query embedding. Cost is
// linear in the log length; callers bound top_k and call frequency.
type Retriever struct {
	store        EventStore
	embedder     llm.Embedder
	halfLifeDays float64
	logger       *zap.Logger
}

func NewRetriever(store EventStore, embedder llm.Embedder, halfLifeDays float64, logger *zap.Logger) *Retriever {
	if halfLifeDays <= 0 {
		halfLifeDays = 30
	}
	return &Retriever{store: store, embedder: embedder, halfLifeDays: halfLifeDays, logger: logger}
}

// Retrieve returns the top-k events by cosine similarity, optionally decayed
// by exp(-age/halfLife). Events without embeddings are ineligible. An
// unavailable embedding backend degrades to an empty result, not an error.
func (r *Retriever) Retrieve(ctx context.Context, personaID, query string, topK int, timeDecay bool) ([]RetrievedEvent, error) {
	queryVec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		r.logger.Warn("query embedding unavailable, returning empty context",
			zap.String("persona_id", personaID), zap.Error(err))
		return nil, nil
	}

	events, err := r.store.History(ctx, personaID, 0)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	scored := make([]RetrievedEvent, 0, len(events))
	for _, e := range events {
		if e.Embedding == nil {
			continue
		}
		sim, err := llm.CosineSimilarity(queryVec, e.Embedding)
		if err != nil {
			// Dimension mismatch means a foreign vector; skip it.
			continue
		}
		ageDays := now.Sub(e.Timestamp).Hours() / 24
		if ageDays < 0 {
			ageDays = 0
		}
		relevance := sim
		if timeDecay {
			relevance = sim * math.Exp(-ageDays/r.halfLifeDays)
		}
		scored = append(scored, RetrievedEvent{
			Event:          e,
			Similarity:     sim,
			RelevanceScore: relevance,
			AgeDays:        ageDays,
		})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].RelevanceScore != scored[j].RelevanceScore {
			return scored[i].RelevanceScore > scored[j].RelevanceScore
		}
		return scored[i].Event.Timestamp.After(scored[j].Event.Timestamp)
	})

	if topK > 0 && len(scored) > topK {
		scored = scored[:topK]
	}
	return scored, nil
}
