package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/BradenHooton/projectgrid/internal/models"
)

// ProfileRepository is the part of the credential store the profile endpoints use
type ProfileRepository interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
	UpdateName(ctx context.Context, id, name string) (*models.User, error)
}

// UserService handles the signed-in user's profile
type UserService struct {
	repo   ProfileRepository
	logger *slog.Logger
}

// NewUserService creates a new UserService
func NewUserService(repo ProfileRepository, logger *slog.Logger) *UserService {
	return &UserService{
		repo:   repo,
		logger: logger,
	}
}

// GetProfile retrieves a user by ID
func (s *UserService) GetProfile(ctx context.Context, id string) (*models.User, error) {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrUserNotFound
		}
		s.logger.ErrorContext(ctx, "failed to get user", slog.String("user_id", id), slog.Any("error", err))
		return nil, models.ErrInternal
	}
	return user, nil
}

// UpdateProfile changes the display name
func (s *UserService) UpdateProfile(ctx context.Context, id, name string) (*models.User, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, models.NewValidationError("name is required")
	}

	user, err := s.repo.UpdateName(ctx, id, name)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrUserNotFound
		}
		s.logger.ErrorContext(ctx, "failed to update user", slog.String("user_id", id), slog.Any("error", err))
		return nil, models.ErrInternal
	}

	s.logger.InfoContext(ctx, "profile updated", slog.String("user_id", id))
	return user, nil
}
