package handlers

import (
	"context"
	"net/http"

	"github.com/BradenHooton/projectgrid/internal/models"
	"github.com/BradenHooton/projectgrid/internal/services"
	pkghttp "github.com/BradenHooton/projectgrid/pkg/http"
)

// AccountService defines the account lifecycle operations
type AccountService interface {
	Register(ctx context.Context, name, email, password string) (*models.User, error)
	Login(ctx context.Context, email, password string) (*services.LoginResult, error)
	VerifyEmail(ctx context.Context, token string) (*models.User, error)
	RequestPasswordReset(ctx context.Context, email string) error
	ConfirmPasswordReset(ctx context.Context, token, newPassword, confirmPassword string) (*models.User, error)
}

// AuthHandler handles authentication-related HTTP requests
type AuthHandler struct {
	service AccountService
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(service AccountService) *AuthHandler {
	return &AuthHandler{service: service}
}

// Request DTOs

// RegisterRequest represents the request body for registration
type RegisterRequest struct {
	Name     string `json:"name" validate:"required,max=100"`
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required"`
}

// LoginRequest represents the request body for login
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// VerifyEmailRequest represents the request body for email verification
type VerifyEmailRequest struct {
	Token string `json:"token" validate:"required"`
}

// ResetPasswordRequest starts a password reset
type ResetPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// ConfirmResetRequest completes a password reset
type ConfirmResetRequest struct {
	Token           string `json:"token" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required"`
	ConfirmPassword string `json:"confirmPassword" validate:"required"`
}

// Response DTOs

type MessageResponse struct {
	Message string `json:"message"`
}

type RegisterResponse struct {
	Message string          `json:"message"`
	User    *RegisteredUser `json:"user"`
}

type LoginResponse struct {
	Message string        `json:"message"`
	Token   string        `json:"token,omitempty"`
	User    *UserResponse `json:"user,omitempty"`
}

type UserMessageResponse struct {
	Message string        `json:"message"`
	User    *UserResponse `json:"user"`
}

// Register handles POST /auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	user, err := h.service.Register(r.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		writeAccountError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusCreated, RegisterResponse{
		Message: "Registration successful. Please check your email to verify your account",
		User:    &RegisteredUser{Name: user.Name, Email: user.Email},
	})
}

// Login handles POST /auth/login. An unverified account gets 201 when a new
// verification email was sent instead of a session.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	result, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeAccountError(w, err)
		return
	}

	if result.VerificationResent {
		pkghttp.WriteJSON(w, http.StatusCreated, LoginResponse{
			Message: "Email not verified. A new verification link has been sent to your email",
		})
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, LoginResponse{
		Message: "Login successful",
		Token:   result.Token,
		User:    userResponse(result.User),
	})
}

// VerifyEmail handles POST /auth/verify-email
func (h *AuthHandler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	var req VerifyEmailRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	user, err := h.service.VerifyEmail(r.Context(), req.Token)
	if err != nil {
		writeAccountError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, UserMessageResponse{
		Message: "Email verified successfully",
		User:    userResponse(user),
	})
}

// RequestPasswordReset handles POST /auth/reset-password-request
func (h *AuthHandler) RequestPasswordReset(w http.ResponseWriter, r *http.Request) {
	var req ResetPasswordRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	if err := h.service.RequestPasswordReset(r.Context(), req.Email); err != nil {
		status := accountStatus(err)
		if status == http.StatusNotFound {
			status = http.StatusBadRequest
		}
		writeModelError(w, status, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, MessageResponse{Message: "Password reset link sent to your email"})
}

// ConfirmPasswordReset handles POST /auth/reset-password
func (h *AuthHandler) ConfirmPasswordReset(w http.ResponseWriter, r *http.Request) {
	var req ConfirmResetRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	user, err := h.service.ConfirmPasswordReset(r.Context(), req.Token, req.NewPassword, req.ConfirmPassword)
	if err != nil {
		writeAccountError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, UserMessageResponse{
		Message: "Password reset successfully",
		User:    userResponse(user),
	})
}

// Me handles GET /auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	pkghttp.WriteJSON(w, http.StatusOK, userResponse(user))
}
