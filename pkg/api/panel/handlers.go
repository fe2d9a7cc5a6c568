// Package panel exposes project and panel-generation endpoints.
package panel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"synthetic_panel/pkg/core/persona"
	"synthetic_panel/pkg/core/pipeline"
	"synthetic_panel/pkg/models"
)

// ProjectStore is the pipeline.ProjectStore plus the write operations the
// HTTP surface needs.
type ProjectStore interface {
	pipeline.ProjectStore
	Save(ctx context.Context, p *models.Project) error
	SoftDelete(ctx context.Context, id string) error
}

type Handler struct {
	projects     ProjectStore
	personas     pipeline.PersonaStore
	orchestrator *pipeline.PanelOrchestrator
}

func NewHandler(projects ProjectStore, personas pipeline.PersonaStore, orchestrator *pipeline.PanelOrchestrator) *Handler {
	return &Handler{projects: projects, personas: personas, orchestrator: orchestrator}
}

type CreateProjectRequest struct {
	Name               string                         `json:"name"`
	OwnerID            string                         `json:"owner_id"`
	TargetDistribution models.DemographicDistribution `json:"target_distribution"`
	TargetSampleSize   int                            `json:"target_sample_size"`
}

// HandleCreateProject creates a project row.
func (h *Handler) HandleCreateProject(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, "POST") {
		return
	}

	var req CreateProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON body", http.StatusBadRequest)
		return
	}
	if req.Name == "" || req.TargetSampleSize <= 0 {
		http.Error(w, "name and a positive target_sample_size are required", http.StatusBadRequest)
		return
	}

	project := &models.Project{
		ID:                 uuid.NewString(),
		OwnerID:            req.OwnerID,
		Name:               req.Name,
		TargetDistribution: req.TargetDistribution,
		TargetSampleSize:   req.TargetSampleSize,
		CreatedAt:          time.Now().UTC(),
	}
	if err := h.projects.Save(r.Context(), project); err != nil {
		http.Error(w, fmt.Sprintf("Failed to create project: %v", err), http.StatusInternalServerError)
		return
	}

	writeJSON(w, project)
}

// HandleGetProject returns one project by ?id=.
func (h *Handler) HandleGetProject(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, "GET") {
		return
	}

	id := r.URL.Query().Get("id")
	if id == "" {
		http.Error(w, "Missing 'id' query parameter", http.StatusBadRequest)
		return
	}

	project, err := h.projects.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			http.Error(w, "Project not found", http.StatusNotFound)
			return
		}
		http.Error(w, fmt.Sprintf("Failed to load project: %v", err), http.StatusInternalServerError)
		return
	}

	writeJSON(w, project)
}

// HandleDeleteProject soft-deletes a project by ?id=.
func (h *Handler) HandleDeleteProject(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, "POST", "DELETE") {
		return
	}

	id := r.URL.Query().Get("id")
	if id == "" {
		http.Error(w, "Missing 'id' query parameter", http.StatusBadRequest)
		return
	}

	if err := h.projects.SoftDelete(r.Context(), id); err != nil {
		http.Error(w, fmt.Sprintf("Failed to delete project: %v", err), http.StatusInternalServerError)
		return
	}

	writeJSON(w, map[string]string{"status": "deleted"})
}

type GeneratePersonasRequest struct {
	ProjectID string `json:"project_id"`
	Brief     string `json:"brief"`

	// Optional trait skews in [-0.5, 0.5] applied to the Big Five means.
	Skew persona.TraitSkew `json:"trait_skew"`
}

// HandleGeneratePersonas kicks off panel generation in the background.
// Progress is polled through HandlePanelStatus.
func (h *Handler) HandleGeneratePersonas(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, "POST") {
		return
	}

	var req GeneratePersonasRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON body", http.StatusBadRequest)
		return
	}
	if req.ProjectID == "" {
		http.Error(w, "project_id is required", http.StatusBadRequest)
		return
	}

	if _, err := h.projects.Get(r.Context(), req.ProjectID); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			http.Error(w, "Project not found", http.StatusNotFound)
			return
		}
		http.Error(w, fmt.Sprintf("Failed to load project: %v", err), http.StatusInternalServerError)
		return
	}

	go func() {
		ctx := context.Background()
		if _, err := h.orchestrator.RunForProject(ctx, req.ProjectID, req.Brief, req.Skew); err != nil {
			fmt.Printf("[panel.Handler] Generation failed for %s: %v\n", req.ProjectID, err)
		}
	}()

	writeJSON(w, map[string]string{"status": "started", "project_id": req.ProjectID})
}

// HandlePanelStatus reports generation progress for ?project_id=.
func (h *Handler) HandlePanelStatus(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, "GET") {
		return
	}

	projectID := r.URL.Query().Get("project_id")
	if projectID == "" {
		http.Error(w, "Missing 'project_id' query parameter", http.StatusBadRequest)
		return
	}

	project, err := h.projects.Get(r.Context(), projectID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			http.Error(w, "Project not found", http.StatusNotFound)
			return
		}
		http.Error(w, fmt.Sprintf("Failed to load project: %v", err), http.StatusInternalServerError)
		return
	}

	count, err := h.personas.CountByProject(r.Context(), projectID)
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to count personas: %v", err), http.StatusInternalServerError)
		return
	}

	writeJSON(w, map[string]interface{}{
		"project_id":          projectID,
		"target_sample_size":  project.TargetSampleSize,
		"generated":           count,
		"complete":            count >= project.TargetSampleSize,
		"statistically_valid": project.StatisticallyValid,
	})
}

// HandleListPersonas returns the full panel for ?project_id=.
func (h *Handler) HandleListPersonas(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, "GET") {
		return
	}

	projectID := r.URL.Query().Get("project_id")
	if projectID == "" {
		http.Error(w, "Missing 'project_id' query parameter", http.StatusBadRequest)
		return
	}

	personas, err := h.personas.ListByProject(r.Context(), projectID)
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to list personas: %v", err), http.StatusInternalServerError)
		return
	}
	if personas == nil {
		personas = []models.Persona{}
	}

	writeJSON(w, personas)
}

// allowMethod writes CORS headers and filters the HTTP method. Returns false
// when the request is already handled (preflight or rejection).
func allowMethod(w http.ResponseWriter, r *http.Request, methods ...string) bool {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
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
