package services

import (
	"context"
	"errors"
	"log/slog"

	"github.com/BradenHooton/projectgrid/internal/models"
)

// MembershipReader resolves a user's role in a workspace
type MembershipReader interface {
	GetMemberRole(ctx context.Context, workspaceID, userID string) (models.WorkspaceRole, error)
}

// ActivityRepository stores the activity log
type ActivityRepository interface {
	Create(ctx context.Context, a *models.Activity) error
	ListByResource(ctx context.Context, resourceType, resourceID string, limit int) ([]*models.Activity, error)
}

type accessChecker struct {
	members MembershipReader
	logger  *slog.Logger
}

// require returns the caller's role when it is at least min. Non-members get
// ErrWorkspaceNotFound so workspace ids cannot be probed.
func (a accessChecker) require(ctx context.Context, workspaceID, userID string, min models.WorkspaceRole) (models.WorkspaceRole, error) {
	role, err := a.members.GetMemberRole(ctx, workspaceID, userID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return "", models.ErrWorkspaceNotFound
		}
		a.logger.ErrorContext(ctx, "failed to load membership",
			slog.String("workspace_id", workspaceID),
			slog.String("user_id", userID),
			slog.Any("error", err))
		return "", models.ErrInternal
	}
	if !role.AtLeast(min) {
		return role, models.ErrForbidden
	}
	return role, nil
}

// record appends an activity entry; failures are logged and do not fail the mutation
func record(ctx context.Context, repo ActivityRepository, logger *slog.Logger, userID, resourceType, resourceID, action string, details models.ActivityDetails) {
	err := repo.Create(ctx, &models.Activity{
		UserID:       userID,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		Action:       action,
		Details:      details,
	})
	if err != nil {
		logger.WarnContext(ctx, "failed to record activity",
			slog.String("action", action),
			slog.String("resource_id", resourceID),
			slog.Any("error", err))
	}
}

// storeError maps a repository error to notFound or ErrInternal
func (a accessChecker) storeError(ctx context.Context, msg string, err, notFound error) error {
	if errors.Is(err, models.ErrNotFound) {
		return notFound
	}
	a.logger.ErrorContext(ctx, msg, slog.Any("error", err))
	return models.ErrInternal
}
