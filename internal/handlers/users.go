package handlers

import (
	"context"
	"net/http"

	"github.com/BradenHooton/projectgrid/internal/auth"
	"github.com/BradenHooton/projectgrid/internal/models"
	pkghttp "github.com/BradenHooton/projectgrid/pkg/http"
)

// ProfileService defines the profile operations of the signed-in user
type ProfileService interface {
	GetProfile(ctx context.Context, id string) (*models.User, error)
	UpdateProfile(ctx context.Context, id, name string) (*models.User, error)
}

// UserHandler handles user-related HTTP requests
type UserHandler struct {
	service ProfileService
}

// NewUserHandler creates a new UserHandler
func NewUserHandler(service ProfileService) *UserHandler {
	return &UserHandler{service: service}
}

// UpdateProfileRequest represents the request body for updating the profile
type UpdateProfileRequest struct {
	Name string `json:"name" validate:"required,max=100"`
}

// GetMe handles GET /users/me
func (h *UserHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	current, ok := currentUser(w, r)
	if !ok {
		return
	}

	user, err := h.service.GetProfile(r.Context(), current.ID)
	if err != nil {
		writeResourceError(w, err)
		return
	}
	pkghttp.WriteJSON(w, http.StatusOK, userResponse(user))
}

// UpdateMe handles PUT /users/me
func (h *UserHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	current, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req UpdateProfileRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	user, err := h.service.UpdateProfile(r.Context(), current.ID, req.Name)
	if err != nil {
		writeResourceError(w, err)
		return
	}
	pkghttp.WriteJSON(w, http.StatusOK, userResponse(user))
}

// currentUser returns the authenticated user or writes a 401
func currentUser(w http.ResponseWriter, r *http.Request) (*models.User, bool) {
	user := auth.GetUserFromContext(r)
	if user == nil {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return nil, false
	}
	return user, true
}
