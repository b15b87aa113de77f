package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/BradenHooton/projectgrid/internal/models"
	pkglogger "github.com/BradenHooton/projectgrid/pkg/logger"
)

const maxWorkspaceNameLen = 80

// WorkspaceRepository stores workspaces and memberships
type WorkspaceRepository interface {
	MembershipReader
	Create(ctx context.Context, ws *models.Workspace) (*models.Workspace, error)
	GetByID(ctx context.Context, id string) (*models.Workspace, error)
	ListForUser(ctx context.Context, userID string) ([]*models.Workspace, error)
	Update(ctx context.Context, ws *models.Workspace) (*models.Workspace, error)
	Delete(ctx context.Context, id string) error
	AddMember(ctx context.Context, workspaceID, userID string, role models.WorkspaceRole) error
	ListMembers(ctx context.Context, workspaceID string) ([]*models.WorkspaceMember, error)
}

// UserLookup finds registered users by email
type UserLookup interface {
	GetByEmail(ctx context.Context, email string) (*models.User, error)
}

// WorkspaceInput carries the editable workspace fields
type WorkspaceInput struct {
	Name        string
	Description string
	Color       string
}

func (in *WorkspaceInput) normalize() error {
	in.Name = strings.TrimSpace(in.Name)
	in.Description = strings.TrimSpace(in.Description)
	if in.Name == "" {
		return models.NewValidationError("workspace name is required")
	}
	if utf8.RuneCountInString(in.Name) > maxWorkspaceNameLen {
		return models.NewValidationError("workspace name must be at most %d characters", maxWorkspaceNameLen)
	}
	return nil
}

type WorkspaceService struct {
	repo        WorkspaceRepository
	users       UserLookup
	activities  ActivityRepository
	access      accessChecker
	logger      *slog.Logger
	auditLogger *pkglogger.AuditLogger
}

func NewWorkspaceService(repo WorkspaceRepository, users UserLookup, activities ActivityRepository, logger *slog.Logger, auditLogger *pkglogger.AuditLogger) *WorkspaceService {
	return &WorkspaceService{
		repo:        repo,
		users:       users,
		activities:  activities,
		access:      accessChecker{members: repo, logger: logger},
		logger:      logger,
		auditLogger: auditLogger,
	}
}

// CreateWorkspace creates a workspace owned by userID
func (s *WorkspaceService) CreateWorkspace(ctx context.Context, userID string, in WorkspaceInput) (*models.Workspace, error) {
	if err := in.normalize(); err != nil {
		return nil, err
	}

	ws, err := s.repo.Create(ctx, &models.Workspace{
		Name:        in.Name,
		Description: in.Description,
		Color:       in.Color,
		OwnerID:     userID,
	})
	if err != nil {
		return nil, s.access.storeError(ctx, "failed to create workspace", err, models.ErrUserNotFound)
	}

	record(ctx, s.activities, s.logger, userID, models.ResourceTypeWorkspace, ws.ID, models.ActivityCreatedWorkspace,
		models.ActivityDetails{"name": ws.Name})
	return ws, nil
}

func (s *WorkspaceService) ListWorkspaces(ctx context.Context, userID string) ([]*models.Workspace, error) {
	workspaces, err := s.repo.ListForUser(ctx, userID)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to list workspaces", slog.String("user_id", userID), slog.Any("error", err))
		return nil, models.ErrInternal
	}
	return workspaces, nil
}

func (s *WorkspaceService) GetWorkspace(ctx context.Context, userID, id string) (*models.Workspace, error) {
	if _, err := s.access.require(ctx, id, userID, models.RoleViewer); err != nil {
		return nil, err
	}
	ws, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, s.access.storeError(ctx, "failed to get workspace", err, models.ErrWorkspaceNotFound)
	}
	return ws, nil
}

func (s *WorkspaceService) UpdateWorkspace(ctx context.Context, userID, id string, in WorkspaceInput) (*models.Workspace, error) {
	if err := in.normalize(); err != nil {
		return nil, err
	}
	if _, err := s.access.require(ctx, id, userID, models.RoleAdmin); err != nil {
		return nil, err
	}

	ws, err := s.repo.Update(ctx, &models.Workspace{ID: id, Name: in.Name, Description: in.Description, Color: in.Color})
	if err != nil {
		return nil, s.access.storeError(ctx, "failed to update workspace", err, models.ErrWorkspaceNotFound)
	}
	return ws, nil
}

func (s *WorkspaceService) DeleteWorkspace(ctx context.Context, userID, id string) error {
	if _, err := s.access.require(ctx, id, userID, models.RoleOwner); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return s.access.storeError(ctx, "failed to delete workspace", err, models.ErrWorkspaceNotFound)
	}
	s.logger.InfoContext(ctx, "workspace deleted", slog.String("workspace_id", id), slog.String("user_id", userID))
	return nil
}

// AddMember invites a registered user by email. The owner role cannot be granted.
func (s *WorkspaceService) AddMember(ctx context.Context, userID, workspaceID, address string, role models.WorkspaceRole) (*models.WorkspaceMember, error) {
	if role == "" {
		role = models.RoleMember
	}
	if !role.Valid() || role == models.RoleOwner {
		return nil, models.NewValidationError("role must be one of admin, member, viewer")
	}
	if _, err := s.access.require(ctx, workspaceID, userID, models.RoleAdmin); err != nil {
		return nil, err
	}

	invitee, err := s.users.GetByEmail(ctx, NormalizeEmail(address))
	if err != nil {
		return nil, s.access.storeError(ctx, "failed to look up invitee", err, models.ErrUserNotFound)
	}

	if err := s.repo.AddMember(ctx, workspaceID, invitee.ID, role); err != nil {
		if errors.Is(err, models.ErrConflict) {
			return nil, models.ErrAlreadyMember
		}
		return nil, s.access.storeError(ctx, "failed to add member", err, models.ErrWorkspaceNotFound)
	}

	record(ctx, s.activities, s.logger, userID, models.ResourceTypeWorkspace, workspaceID, models.ActivityAddedMember,
		models.ActivityDetails{"user_id": invitee.ID, "role": string(role)})
	s.auditLogger.Log(ctx, pkglogger.AuditEvent{
		EventType: pkglogger.EventWorkspaceMemberAdd,
		UserID:    userID,
		Success:   true,
		Metadata:  map[string]string{"workspace_id": workspaceID, "member_id": invitee.ID, "role": string(role)},
	})

	return &models.WorkspaceMember{
		WorkspaceID: workspaceID,
		UserID:      invitee.ID,
		Name:        invitee.Name,
		Email:       invitee.Email,
		Role:        role,
		JoinedAt:    time.Now().UTC(),
	}, nil
}

func (s *WorkspaceService) ListMembers(ctx context.Context, userID, workspaceID string) ([]*models.WorkspaceMember, error) {
	if _, err := s.access.require(ctx, workspaceID, userID, models.RoleViewer); err != nil {
		return nil, err
	}
	members, err := s.repo.ListMembers(ctx, workspaceID)
	if err != nil {
		return nil, s.access.storeError(ctx, "failed to list members", err, models.ErrWorkspaceNotFound)
	}
	return members, nil
}
