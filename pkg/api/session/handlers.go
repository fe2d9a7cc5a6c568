// Package session exposes the focus-group lifecycle over HTTP: create, run
// in the background, poll state and read the transcript.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"synthetic_panel/pkg/core/focusgroup"
	"synthetic_panel/pkg/models"
)

type Handler struct {
	repo         focusgroup.Repo
	orchestrator *focusgroup.Orchestrator
}

func NewHandler(repo focusgroup.Repo, orchestrator *focusgroup.Orchestrator) *Handler {
	return &Handler{repo: repo, orchestrator: orchestrator}
}

type CreateFocusGroupRequest struct {
	ProjectID  string   `json:"project_id"`
	Name       string   `json:"name"`
	PersonaIDs []string `json:"persona_ids"`
	Questions  []string `json:"questions"`
	Mode       string   `json:"mode"` // "normal" or "adversarial"
}

// HandleCreate registers a focus group in pending state.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, "POST") {
		return
	}

	var req CreateFocusGroupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON body", http.StatusBadRequest)
		return
	}
	if req.ProjectID == "" || len(req.Questions) == 0 {
		http.Error(w, "project_id and at least one question are required", http.StatusBadRequest)
		return
	}

	mode := models.ModeNormal
	if req.Mode == string(models.ModeAdversarial) {
		mode = models.ModeAdversarial
	}

	fg := &models.FocusGroup{
		ID:         uuid.NewString(),
		ProjectID:  req.ProjectID,
		Name:       req.Name,
		PersonaIDs: req.PersonaIDs,
		Questions:  req.Questions,
		Mode:       mode,
		Status:     models.StatusPending,
		CreatedAt:  time.Now().UTC(),
	}
	if err := h.repo.Create(r.Context(), fg); err != nil {
		http.Error(w, fmt.Sprintf("Failed to create focus group: %v", err), http.StatusInternalServerError)
		return
	}

	writeJSON(w, fg)
}

type RunFocusGroupRequest struct {
	FocusGroupID string `json:"focus_group_id"`
}

// HandleRun starts the session in the background. The group transitions to
// running immediately; callers poll HandleGet for the terminal state.
func (h *Handler) HandleRun(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, "POST") {
		return
	}

	var req RunFocusGroupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON body", http.StatusBadRequest)
		return
	}
	if req.FocusGroupID == "" {
		http.Error(w, "focus_group_id is required", http.StatusBadRequest)
		return
	}

	fg, err := h.repo.Get(r.Context(), req.FocusGroupID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			http.Error(w, "Focus group not found", http.StatusNotFound)
			return
		}
		http.Error(w, fmt.Sprintf("Failed to load focus group: %v", err), http.StatusInternalServerError)
		return
	}
	if fg.Status != models.StatusPending {
		http.Error(w, fmt.Sprintf("Focus group is %s, only pending groups can run", fg.Status), http.StatusConflict)
		return
	}

	go func() {
		if err := h.orchestrator.Run(context.Background(), req.FocusGroupID); err != nil {
			fmt.Printf("[session.Handler] Run failed for %s: %v\n", req.FocusGroupID, err)
		}
	}()

	writeJSON(w, map[string]string{"status": "running", "focus_group_id": req.FocusGroupID})
}

// HandleGet returns the focus group row for ?id=.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, "GET") {
		return
	}

	id := r.URL.Query().Get("id")
	if id == "" {
		http.Error(w, "Missing 'id' query parameter", http.StatusBadRequest)
		return
	}

	fg, err := h.repo.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			http.Error(w, "Focus group not found", http.StatusNotFound)
			return
		}
		http.Error(w, fmt.Sprintf("Failed to load focus group: %v", err), http.StatusInternalServerError)
		return
	}

	writeJSON(w, fg)
}

// HandleResponses returns the transcript for ?id=.
func (h *Handler) HandleResponses(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, "GET") {
		return
	}

	id := r.URL.Query().Get("id")
	if id == "" {
		http.Error(w, "Missing 'id' query parameter", http.StatusBadRequest)
		return
	}

	responses, err := h.repo.ListResponses(r.Context(), id)
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to list responses: %v", err), http.StatusInternalServerError)
		return
	}
	if responses == nil {
		responses = []models.PersonaResponse{}
	}

	writeJSON(w, responses)
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
