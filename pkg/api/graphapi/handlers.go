// Package graphapi serves knowledge-graph builds and read-side queries.
package graphapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"synthetic_panel/pkg/core/graph"
	"synthetic_panel/pkg/models"
)

type Handler struct {
	builder  *graph.Builder
	query    *graph.Query
	answerer *graph.Answerer
}

func NewHandler(builder *graph.Builder, query *graph.Query, answerer *graph.Answerer) *Handler {
	return &Handler{builder: builder, query: query, answerer: answerer}
}

type BuildGraphRequest struct {
	FocusGroupID string `json:"focus_group_id"`
}

// HandleBuild rebuilds the graph for a focus group and reports the counts.
func (h *Handler) HandleBuild(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, "POST") {
		return
	}

	var req BuildGraphRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON body", http.StatusBadRequest)
		return
	}
	if req.FocusGroupID == "" {
		http.Error(w, "focus_group_id is required", http.StatusBadRequest)
		return
	}

	counts, err := h.builder.Build(r.Context(), req.FocusGroupID)
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to build graph: %v", err), http.StatusInternalServerError)
		return
	}

	writeJSON(w, counts)
}

// HandleGraphData returns the display graph for ?id= with optional
// ?filter=positive|negative|influence.
func (h *Handler) HandleGraphData(w http.ResponseWriter, r *http.Request) {
	id, ok := requireID(w, r)
	if !ok {
		return
	}

	data, err := h.query.GraphData(r.Context(), id, r.URL.Query().Get("filter"))
	if err != nil {
		respondQueryError(w, err)
		return
	}
	writeJSON(w, data)
}

func (h *Handler) HandleKeyConcepts(w http.ResponseWriter, r *http.Request) {
	id, ok := requireID(w, r)
	if !ok {
		return
	}

	concepts, err := h.query.KeyConcepts(r.Context(), id)
	if err != nil {
		respondQueryError(w, err)
		return
	}
	writeJSON(w, concepts)
}

func (h *Handler) HandleControversialConcepts(w http.ResponseWriter, r *http.Request) {
	id, ok := requireID(w, r)
	if !ok {
		return
	}

	concepts, err := h.query.ControversialConcepts(r.Context(), id)
	if err != nil {
		respondQueryError(w, err)
		return
	}
	writeJSON(w, concepts)
}

func (h *Handler) HandleInfluentialPersonas(w http.ResponseWriter, r *http.Request) {
	id, ok := requireID(w, r)
	if !ok {
		return
	}

	personas, err := h.query.InfluentialPersonas(r.Context(), id)
	if err != nil {
		respondQueryError(w, err)
		return
	}
	writeJSON(w, personas)
}

func (h *Handler) HandleEmotionDistribution(w http.ResponseWriter, r *http.Request) {
	id, ok := requireID(w, r)
	if !ok {
		return
	}

	emotions, err := h.query.EmotionDistribution(r.Context(), id)
	if err != nil {
		respondQueryError(w, err)
		return
	}
	writeJSON(w, emotions)
}

type AnswerQuestionRequest struct {
	FocusGroupID string `json:"focus_group_id"`
	Question     string `json:"question"`
}

// HandleAnswerQuestion routes a natural-language question over the graph.
func (h *Handler) HandleAnswerQuestion(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, "POST") {
		return
	}

	var req AnswerQuestionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON body", http.StatusBadRequest)
		return
	}
	if req.FocusGroupID == "" || req.Question == "" {
		http.Error(w, "focus_group_id and question are required", http.StatusBadRequest)
		return
	}

	answer, err := h.answerer.Answer(r.Context(), req.FocusGroupID, req.Question)
	if err != nil {
		respondQueryError(w, err)
		return
	}
	writeJSON(w, answer)
}

func requireID(w http.ResponseWriter, r *http.Request) (string, bool) {
	if !allowMethod(w, r, "GET") {
		return "", false
	}
	id := r.URL.Query().Get("id")
	if id == "" {
		http.Error(w, "Missing 'id' query parameter", http.StatusBadRequest)
		return "", false
	}
	return id, true
}

func respondQueryError(w http.ResponseWriter, err error) {
	if errors.Is(err, models.ErrNotFound) {
		http.Error(w, "Graph not built for this focus group", http.StatusNotFound)
		return
	}
	http.Error(w, fmt.Sprintf("Graph query failed: %v", err), http.StatusInternalServerError)
}

func allowMethod(w http.ResponseWriter, r *http.Request, methods ...string) bool {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

	if r.Method == "OPTIONS" {
		w.WriteHeader(http.StatusOK)
		return false
	}
	for _, m := range methods {
		if r.Method == m {
			return true
		}
	}
	http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	return false
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
