package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/BradenHooton/projectgrid/internal/models"
)

const maxTitleLen = 120

// ProjectRepository stores projects
type ProjectRepository interface {
	Create(ctx context.Context, p *models.Project) (*models.Project, error)
	GetByID(ctx context.Context, id string) (*models.Project, error)
	ListByWorkspace(ctx context.Context, workspaceID string) ([]*models.Project, error)
	Update(ctx context.Context, p *models.Project) (*models.Project, error)
}

// ProjectInput carries the editable project fields
type ProjectInput struct {
	Title       string
	Description string
	Status      models.ProjectStatus
	StartDate   *time.Time
	DueDate     *time.Time
}

func (in *ProjectInput) normalize() error {
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	if in.Title == "" {
		return models.NewValidationError("project title is required")
	}
	if utf8.RuneCountInString(in.Title) > maxTitleLen {
		return models.NewValidationError("project title must be at most %d characters", maxTitleLen)
	}
	if in.Status == "" {
		in.Status = models.ProjectPlanning
	}
	if !in.Status.Valid() {
		return models.NewValidationError("invalid project status %q", in.Status)
	}
	if in.StartDate != nil && in.DueDate != nil && in.DueDate.Before(*in.StartDate) {
		return models.NewValidationError("due date must not be before start date")
	}
	return nil
}

type ProjectService struct {
	repo       ProjectRepository
	activities ActivityRepository
	access     accessChecker
	logger     *slog.Logger
}

func NewProjectService(repo ProjectRepository, members MembershipReader, activities ActivityRepository, logger *slog.Logger) *ProjectService {
	return &ProjectService{
		repo:       repo,
		activities: activities,
		access:     accessChecker{members: members, logger: logger},
		logger:     logger,
	}
}

func (s *ProjectService) CreateProject(ctx context.Context, userID, workspaceID string, in ProjectInput) (*models.Project, error) {
	if err := in.normalize(); err != nil {
		return nil, err
	}
	if _, err := s.access.require(ctx, workspaceID, userID, models.RoleMember); err != nil {
		return nil, err
	}

	p, err := s.repo.Create(ctx, &models.Project{
		WorkspaceID: workspaceID,
		Title:       in.Title,
		Description: in.Description,
		Status:      in.Status,
		StartDate:   in.StartDate,
		DueDate:     in.DueDate,
		CreatedBy:   userID,
	})
	if err != nil {
		return nil, s.access.storeError(ctx, "failed to create project", err, models.ErrWorkspaceNotFound)
	}

	record(ctx, s.activities, s.logger, userID, models.ResourceTypeProject, p.ID, models.ActivityCreatedProject,
		models.ActivityDetails{"title": p.Title})
	return p, nil
}

func (s *ProjectService) ListProjects(ctx context.Context, userID, workspaceID string) ([]*models.Project, error) {
	if _, err := s.access.require(ctx, workspaceID, userID, models.RoleViewer); err != nil {
		return nil, err
	}
	projects, err := s.repo.ListByWorkspace(ctx, workspaceID)
	if err != nil {
		return nil, s.access.storeError(ctx, "failed to list projects", err, models.ErrWorkspaceNotFound)
	}
	return projects, nil
}

// loadProject fetches id and checks the caller's role in its workspace
func (s *ProjectService) loadProject(ctx context.Context, userID, id string, min models.WorkspaceRole) (*models.Project, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, s.access.storeError(ctx, "failed to get project", err, models.ErrProjectNotFound)
	}
	if _, err := s.access.require(ctx, p.WorkspaceID, userID, min); err != nil {
		if errors.Is(err, models.ErrWorkspaceNotFound) {
			return nil, models.ErrProjectNotFound
		}
		return nil, err
	}
	return p, nil
}

func (s *ProjectService) GetProject(ctx context.Context, userID, id string) (*models.Project, error) {
	return s.loadProject(ctx, userID, id, models.RoleViewer)
}

func (s *ProjectService) UpdateProject(ctx context.Context, userID, id string, in ProjectInput) (*models.Project, error) {
	if err := in.normalize(); err != nil {
		return nil, err
	}
	current, err := s.loadProject(ctx, userID, id, models.RoleMember)
	if err != nil {
		return nil, err
	}

	updated, err := s.repo.Update(ctx, &models.Project{
		ID:          id,
		WorkspaceID: current.WorkspaceID,
		Title:       in.Title,
		Description: in.Description,
		Status:      in.Status,
		StartDate:   in.StartDate,
		DueDate:     in.DueDate,
	})
	if err != nil {
		return nil, s.access.storeError(ctx, "failed to update project", err, models.ErrProjectNotFound)
	}

	details := models.ActivityDetails{"title": updated.Title}
	if current.Status != updated.Status {
		details["from_status"] = string(current.Status)
		details["to_status"] = string(updated.Status)
	}
	record(ctx, s.activities, s.logger, userID, models.ResourceTypeProject, id, models.ActivityUpdatedProject, details)
	return updated, nil
}
