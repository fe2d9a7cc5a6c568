// Package insightsapi serves insight generation and retrieval.
package insightsapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"synthetic_panel/pkg/core/focusgroup"
	"synthetic_panel/pkg/core/insights"
	"synthetic_panel/pkg/models"
)

// Reader loads previously generated blobs.
type Reader interface {
	GetInsights(ctx context.Context, focusGroupID string) (*insights.InsightBlob, error)
}

type Handler struct {
	groups     focusgroup.Repo
	aggregator *insights.Aggregator
	reader     Reader
}

func NewHandler(groups focusgroup.Repo, aggregator *insights.Aggregator, reader Reader) *Handler {
	return &Handler{groups: groups, aggregator: aggregator, reader: reader}
}

type GenerateInsightsRequest struct {
	FocusGroupID string `json:"focus_group_id"`
}

// HandleGenerate computes the insight blob for a finished focus group and
// returns it. Generation is pure over the stored responses, so re-running it
// is always safe.
func (h *Handler) HandleGenerate(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, "POST") {
		return
	}

	var req GenerateInsightsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON body", http.StatusBadRequest)
		return
	}
	if req.FocusGroupID == "" {
		http.Error(w, "focus_group_id is required", http.StatusBadRequest)
		return
	}

	fg, err := h.groups.Get(r.Context(), req.FocusGroupID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			http.Error(w, "Focus group not found", http.StatusNotFound)
			return
		}
		http.Error(w, fmt.Sprintf("Failed to load focus group: %v", err), http.StatusInternalServerError)
		return
	}

	blob, err := h.aggregator.Generate(r.Context(), fg)
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to generate insights: %v", err), http.StatusInternalServerError)
		return
	}

	writeJSON(w, blob)
}

// HandleGet returns the stored blob for ?id=.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, "GET") {
		return
	}

	id := r.URL.Query().Get("id")
	if id == "" {
		http.Error(w, "Missing 'id' query parameter", http.StatusBadRequest)
		return
	}

	blob, err := h.reader.GetInsights(r.Context(), id)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			http.Error(w, "Insights not found, generate them first", http.StatusNotFound)
			return
		}
		http.Error(w, fmt.Sprintf("Failed to load insights: %v", err), http.StatusInternalServerError)
		return
	}

	writeJSON(w, blob)
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
