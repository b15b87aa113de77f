package handlers

import (
	"context"
	"net/http"

	"github.com/BradenHooton/projectgrid/internal/models"
	"github.com/BradenHooton/projectgrid/internal/services"
	pkghttp "github.com/BradenHooton/projectgrid/pkg/http"
	"github.com/go-chi/chi/v5"
)

// WorkspaceService defines workspace and membership operations
type WorkspaceService interface {
	CreateWorkspace(ctx context.Context, userID string, in services.WorkspaceInput) (*models.Workspace, error)
	ListWorkspaces(ctx context.Context, userID string) ([]*models.Workspace, error)
	GetWorkspace(ctx context.Context, userID, id string) (*models.Workspace, error)
	UpdateWorkspace(ctx context.Context, userID, id string, in services.WorkspaceInput) (*models.Workspace, error)
	DeleteWorkspace(ctx context.Context, userID, id string) error
	AddMember(ctx context.Context, userID, workspaceID, email string, role models.WorkspaceRole) (*models.WorkspaceMember, error)
	ListMembers(ctx context.Context, userID, workspaceID string) ([]*models.WorkspaceMember, error)
}

type WorkspaceHandler struct {
	service WorkspaceService
}

func NewWorkspaceHandler(service WorkspaceService) *WorkspaceHandler {
	return &WorkspaceHandler{service: service}
}

type WorkspaceRequest struct {
	Name        string `json:"name" validate:"required,max=80"`
	Description string `json:"description" validate:"max=1000"`
	Color       string `json:"color" validate:"omitempty,hexcolor"`
}

func (req WorkspaceRequest) input() services.WorkspaceInput {
	return services.WorkspaceInput{Name: req.Name, Description: req.Description, Color: req.Color}
}

type AddMemberRequest struct {
	Email string `json:"email" validate:"required,email"`
	Role  string `json:"role" validate:"omitempty,oneof=admin member viewer"`
}

// Create handles POST /workspaces
func (h *WorkspaceHandler) Create(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	var req WorkspaceRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	ws, err := h.service.CreateWorkspace(r.Context(), user.ID, req.input())
	if err != nil {
		writeResourceError(w, err)
		return
	}
	pkghttp.WriteJSON(w, http.StatusCreated, workspaceResponse(ws))
}

// List handles GET /workspaces
func (h *WorkspaceHandler) List(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	list, err := h.service.ListWorkspaces(r.Context(), user.ID)
	if err != nil {
		writeResourceError(w, err)
		return
	}
	pkghttp.WriteJSON(w, http.StatusOK, mapSlice(list, workspaceResponse))
}

// Get handles GET /workspaces/{id}
func (h *WorkspaceHandler) Get(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	ws, err := h.service.GetWorkspace(r.Context(), user.ID, chi.URLParam(r, "id"))
	if err != nil {
		writeResourceError(w, err)
		return
	}
	pkghttp.WriteJSON(w, http.StatusOK, workspaceResponse(ws))
}

// Update handles PUT /workspaces/{id}
func (h *WorkspaceHandler) Update(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	var req WorkspaceRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	ws, err := h.service.UpdateWorkspace(r.Context(), user.ID, chi.URLParam(r, "id"), req.input())
	if err != nil {
		writeResourceError(w, err)
		return
	}
	pkghttp.WriteJSON(w, http.StatusOK, workspaceResponse(ws))
}

// Delete handles DELETE /workspaces/{id}
func (h *WorkspaceHandler) Delete(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	if err := h.service.DeleteWorkspace(r.Context(), user.ID, chi.URLParam(r, "id")); err != nil {
		writeResourceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AddMember handles POST /workspaces/{id}/members
func (h *WorkspaceHandler) AddMember(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	var req AddMemberRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	m, err := h.service.AddMember(r.Context(), user.ID, chi.URLParam(r, "id"), req.Email, models.WorkspaceRole(req.Role))
	if err != nil {
		writeResourceError(w, err)
		return
	}
	pkghttp.WriteJSON(w, http.StatusCreated, memberResponse(m))
}

// ListMembers handles GET /workspaces/{id}/members
func (h *WorkspaceHandler) ListMembers(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	members, err := h.service.ListMembers(r.Context(), user.ID, chi.URLParam(r, "id"))
	if err != nil {
		writeResourceError(w, err)
		return
	}
	pkghttp.WriteJSON(w, http.StatusOK, mapSlice(members, memberResponse))
}
