package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/BradenHooton/projectgrid/internal/models"
	"github.com/BradenHooton/projectgrid/internal/services"
	pkghttp "github.com/BradenHooton/projectgrid/pkg/http"
	"github.com/go-chi/chi/v5"
)

// ProjectService defines project operations
type ProjectService interface {
	CreateProject(ctx context.Context, userID, workspaceID string, in services.ProjectInput) (*models.Project, error)
	ListProjects(ctx context.Context, userID, workspaceID string) ([]*models.Project, error)
	GetProject(ctx context.Context, userID, id string) (*models.Project, error)
	UpdateProject(ctx context.Context, userID, id string, in services.ProjectInput) (*models.Project, error)
}

type ProjectHandler struct {
	service ProjectService
}

func NewProjectHandler(service ProjectService) *ProjectHandler {
	return &ProjectHandler{service: service}
}

type ProjectRequest struct {
	Title       string     `json:"title" validate:"required,max=120"`
	Description string     `json:"description" validate:"max=5000"`
	Status      string     `json:"status" validate:"omitempty,oneof=planning in_progress on_hold completed cancelled"`
	StartDate   *time.Time `json:"startDate"`
	DueDate     *time.Time `json:"dueDate"`
}

func (req ProjectRequest) input() services.ProjectInput {
	return services.ProjectInput{
		Title:       req.Title,
		Description: req.Description,
		Status:      models.ProjectStatus(req.Status),
		StartDate:   req.StartDate,
		DueDate:     req.DueDate,
	}
}

// Create handles POST /workspaces/{id}/projects
func (h *ProjectHandler) Create(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	var req ProjectRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	p, err := h.service.CreateProject(r.Context(), user.ID, chi.URLParam(r, "id"), req.input())
	if err != nil {
		writeResourceError(w, err)
		return
	}
	pkghttp.WriteJSON(w, http.StatusCreated, projectResponse(p))
}

// List handles GET /workspaces/{id}/projects
func (h *ProjectHandler) List(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	list, err := h.service.ListProjects(r.Context(), user.ID, chi.URLParam(r, "id"))
	if err != nil {
		writeResourceError(w, err)
		return
	}
	pkghttp.WriteJSON(w, http.StatusOK, mapSlice(list, projectResponse))
}

// Get handles GET /projects/{id}
func (h *ProjectHandler) Get(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	p, err := h.service.GetProject(r.Context(), user.ID, chi.URLParam(r, "id"))
	if err != nil {
		writeResourceError(w, err)
		return
	}
	pkghttp.WriteJSON(w, http.StatusOK, projectResponse(p))
}

// Update handles PUT /projects/{id}
func (h *ProjectHandler) Update(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	var req ProjectRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	p, err := h.service.UpdateProject(r.Context(), user.ID, chi.URLParam(r, "id"), req.input())
	if err != nil {
		writeResourceError(w, err)
		return
	}
	pkghttp.WriteJSON(w, http.StatusOK, projectResponse(p))
}
