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

const (
	maxLabels       = 20
	maxLabelLen     = 32
	maxCommentLen   = 4000
	defaultActivity = 50
)

// TaskRepository stores tasks with their subtasks and comments
type TaskRepository interface {
	Create(ctx context.Context, t *models.Task) (*models.Task, error)
	GetByID(ctx context.Context, id string) (*models.Task, error)
	WorkspaceIDForTask(ctx context.Context, taskID string) (string, error)
	ListByProject(ctx context.Context, projectID string, filter models.TaskFilter) ([]*models.Task, error)
	Update(ctx context.Context, t *models.Task) (*models.Task, error)
	AddSubtask(ctx context.Context, s *models.Subtask) (*models.Subtask, error)
	ListSubtasks(ctx context.Context, taskID string) ([]models.Subtask, error)
	SetSubtaskCompleted(ctx context.Context, taskID, subtaskID string, completed bool) (*models.Subtask, error)
	AddComment(ctx context.Context, c *models.Comment) (*models.Comment, error)
	ListComments(ctx context.Context, taskID string) ([]*models.Comment, error)
}

// TaskInput carries the editable task fields
type TaskInput struct {
	Title       string
	Description string
	Status      models.TaskStatus
	Priority    models.TaskPriority
	AssigneeID  *string
	DueDate     *time.Time
	Labels      []string
}

func (in *TaskInput) normalize() error {
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	if in.Title == "" {
		return models.NewValidationError("task title is required")
	}
	if utf8.RuneCountInString(in.Title) > maxTitleLen {
		return models.NewValidationError("task title must be at most %d characters", maxTitleLen)
	}
	if in.Status == "" {
		in.Status = models.TaskTodo
	}
	if !in.Status.Valid() {
		return models.NewValidationError("invalid task status %q", in.Status)
	}
	if in.Priority == "" {
		in.Priority = models.PriorityMedium
	}
	if !in.Priority.Valid() {
		return models.NewValidationError("invalid task priority %q", in.Priority)
	}
	if in.AssigneeID != nil && strings.TrimSpace(*in.AssigneeID) == "" {
		in.AssigneeID = nil
	}

	labels, err := normalizeLabels(in.Labels)
	if err != nil {
		return err
	}
	in.Labels = labels
	return nil
}

// normalizeLabels trims, lowercases and de-duplicates labels, keeping first-seen order
func normalizeLabels(raw []string) ([]string, error) {
	seen := make(map[string]struct{}, len(raw))
	labels := make([]string, 0, len(raw))
	for _, l := range raw {
		l = strings.ToLower(strings.TrimSpace(l))
		if l == "" {
			continue
		}
		if utf8.RuneCountInString(l) > maxLabelLen {
			return nil, models.NewValidationError("label %q must be at most %d characters", l, maxLabelLen)
		}
		if _, ok := seen[l]; ok {
			continue
		}
		seen[l] = struct{}{}
		labels = append(labels, l)
	}
	if len(labels) > maxLabels {
		return nil, models.NewValidationError("a task may have at most %d labels", maxLabels)
	}
	return labels, nil
}

type TaskService struct {
	tasks      TaskRepository
	projects   ProjectRepository
	members    MembershipReader
	activities ActivityRepository
	access     accessChecker
	logger     *slog.Logger
}

func NewTaskService(tasks TaskRepository, projects ProjectRepository, members MembershipReader, activities ActivityRepository, logger *slog.Logger) *TaskService {
	return &TaskService{
		tasks:      tasks,
		projects:   projects,
		members:    members,
		activities: activities,
		access:     accessChecker{members: members, logger: logger},
		logger:     logger,
	}
}

// checkAssignee rejects assignees outside the workspace
func (s *TaskService) checkAssignee(ctx context.Context, workspaceID string, assigneeID *string) error {
	if assigneeID == nil {
		return nil
	}
	_, err := s.members.GetMemberRole(ctx, workspaceID, *assigneeID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.ErrAssigneeNotMember
		}
		return s.access.storeError(ctx, "failed to check assignee", err, models.ErrAssigneeNotMember)
	}
	return nil
}

// loadProject fetches a project and checks the caller's role in its workspace
func (s *TaskService) loadProject(ctx context.Context, userID, projectID string, min models.WorkspaceRole) (*models.Project, error) {
	p, err := s.projects.GetByID(ctx, projectID)
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

// loadTask fetches a task and the workspace it belongs to, enforcing min
func (s *TaskService) loadTask(ctx context.Context, userID, taskID string, min models.WorkspaceRole) (*models.Task, string, error) {
	t, err := s.tasks.GetByID(ctx, taskID)
	if err != nil {
		return nil, "", s.access.storeError(ctx, "failed to get task", err, models.ErrTaskNotFound)
	}
	workspaceID, err := s.tasks.WorkspaceIDForTask(ctx, taskID)
	if err != nil {
		return nil, "", s.access.storeError(ctx, "failed to resolve task workspace", err, models.ErrTaskNotFound)
	}
	if _, err := s.access.require(ctx, workspaceID, userID, min); err != nil {
		if errors.Is(err, models.ErrWorkspaceNotFound) {
			return nil, "", models.ErrTaskNotFound
		}
		return nil, "", err
	}
	return t, workspaceID, nil
}

func (s *TaskService) CreateTask(ctx context.Context, userID, projectID string, in TaskInput) (*models.Task, error) {
	if err := in.normalize(); err != nil {
		return nil, err
	}
	p, err := s.loadProject(ctx, userID, projectID, models.RoleMember)
	if err != nil {
		return nil, err
	}
	if err := s.checkAssignee(ctx, p.WorkspaceID, in.AssigneeID); err != nil {
		return nil, err
	}

	t, err := s.tasks.Create(ctx, &models.Task{
		ProjectID:   projectID,
		Title:       in.Title,
		Description: in.Description,
		Status:      in.Status,
		Priority:    in.Priority,
		AssigneeID:  in.AssigneeID,
		DueDate:     in.DueDate,
		Labels:      in.Labels,
		CreatedBy:   userID,
	})
	if err != nil {
		return nil, s.access.storeError(ctx, "failed to create task", err, models.ErrProjectNotFound)
	}

	record(ctx, s.activities, s.logger, userID, models.ResourceTypeTask, t.ID, models.ActivityCreatedTask,
		models.ActivityDetails{"title": t.Title, "project_id": projectID})
	return t, nil
}

func (s *TaskService) ListTasks(ctx context.Context, userID, projectID string, filter models.TaskFilter) ([]*models.Task, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, models.NewValidationError("invalid task status %q", filter.Status)
	}
	if _, err := s.loadProject(ctx, userID, projectID, models.RoleViewer); err != nil {
		return nil, err
	}
	tasks, err := s.tasks.ListByProject(ctx, projectID, filter)
	if err != nil {
		return nil, s.access.storeError(ctx, "failed to list tasks", err, models.ErrProjectNotFound)
	}
	return tasks, nil
}

func (s *TaskService) GetTask(ctx context.Context, userID, taskID string) (*models.Task, error) {
	t, _, err := s.loadTask(ctx, userID, taskID, models.RoleViewer)
	return t, err
}

func (s *TaskService) UpdateTask(ctx context.Context, userID, taskID string, in TaskInput) (*models.Task, error) {
	if err := in.normalize(); err != nil {
		return nil, err
	}
	current, workspaceID, err := s.loadTask(ctx, userID, taskID, models.RoleMember)
	if err != nil {
		return nil, err
	}
	if err := s.checkAssignee(ctx, workspaceID, in.AssigneeID); err != nil {
		return nil, err
	}

	next := *current
	next.Title = in.Title
	next.Description = in.Description
	next.Status = in.Status
	next.Priority = in.Priority
	next.AssigneeID = in.AssigneeID
	next.DueDate = in.DueDate
	next.Labels = in.Labels

	updated, err := s.save(ctx, &next)
	if err != nil {
		return nil, err
	}

	details := models.ActivityDetails{"title": updated.Title}
	if current.Status != updated.Status {
		details["from_status"] = string(current.Status)
		details["to_status"] = string(updated.Status)
	}
	record(ctx, s.activities, s.logger, userID, models.ResourceTypeTask, taskID, models.ActivityUpdatedTask, details)
	return updated, nil
}

func (s *TaskService) UpdateTaskStatus(ctx context.Context, userID, taskID string, status models.TaskStatus) (*models.Task, error) {
	if !status.Valid() {
		return nil, models.NewValidationError("invalid task status %q", status)
	}
	current, _, err := s.loadTask(ctx, userID, taskID, models.RoleMember)
	if err != nil {
		return nil, err
	}
	if current.Status == status {
		return current, nil
	}

	next := *current
	next.Status = status
	updated, err := s.save(ctx, &next)
	if err != nil {
		return nil, err
	}

	record(ctx, s.activities, s.logger, userID, models.ResourceTypeTask, taskID, models.ActivityChangedStatus,
		models.ActivityDetails{"from_status": string(current.Status), "to_status": string(status)})
	return updated, nil
}

// ArchiveTask hides a task from default listings; archiving twice is a no-op
func (s *TaskService) ArchiveTask(ctx context.Context, userID, taskID string) (*models.Task, error) {
	current, _, err := s.loadTask(ctx, userID, taskID, models.RoleMember)
	if err != nil {
		return nil, err
	}
	if current.IsArchived {
		return current, nil
	}

	next := *current
	next.IsArchived = true
	updated, err := s.save(ctx, &next)
	if err != nil {
		return nil, err
	}

	record(ctx, s.activities, s.logger, userID, models.ResourceTypeTask, taskID, models.ActivityArchivedTask,
		models.ActivityDetails{"title": updated.Title})
	return updated, nil
}

// save persists t and reattaches its subtasks
func (s *TaskService) save(ctx context.Context, t *models.Task) (*models.Task, error) {
	subtasks := t.Subtasks
	updated, err := s.tasks.Update(ctx, t)
	if err != nil {
		return nil, s.access.storeError(ctx, "failed to update task", err, models.ErrTaskNotFound)
	}
	if subtasks == nil {
		subtasks = []models.Subtask{}
	}
	updated.Subtasks = subtasks
	return updated, nil
}

func (s *TaskService) AddSubtask(ctx context.Context, userID, taskID, title string) (*models.Subtask, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, models.NewValidationError("subtask title is required")
	}
	if utf8.RuneCountInString(title) > maxTitleLen {
		return nil, models.NewValidationError("subtask title must be at most %d characters", maxTitleLen)
	}
	if _, _, err := s.loadTask(ctx, userID, taskID, models.RoleMember); err != nil {
		return nil, err
	}

	st, err := s.tasks.AddSubtask(ctx, &models.Subtask{TaskID: taskID, Title: title})
	if err != nil {
		return nil, s.access.storeError(ctx, "failed to add subtask", err, models.ErrTaskNotFound)
	}

	record(ctx, s.activities, s.logger, userID, models.ResourceTypeTask, taskID, models.ActivityAddedSubtask,
		models.ActivityDetails{"subtask_id": st.ID, "title": st.Title})
	return st, nil
}

func (s *TaskService) SetSubtaskCompleted(ctx context.Context, userID, taskID, subtaskID string, completed bool) (*models.Subtask, error) {
	if _, _, err := s.loadTask(ctx, userID, taskID, models.RoleMember); err != nil {
		return nil, err
	}

	st, err := s.tasks.SetSubtaskCompleted(ctx, taskID, subtaskID, completed)
	if err != nil {
		return nil, s.access.storeError(ctx, "failed to update subtask", err, models.ErrSubtaskNotFound)
	}

	action := models.ActivityCompletedSubtask
	if !completed {
		action = models.ActivityReopenedSubtask
	}
	record(ctx, s.activities, s.logger, userID, models.ResourceTypeTask, taskID, action,
		models.ActivityDetails{"subtask_id": st.ID, "title": st.Title})
	return st, nil
}

func (s *TaskService) AddComment(ctx context.Context, userID, taskID, text string) (*models.Comment, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, models.NewValidationError("comment text is required")
	}
	if utf8.RuneCountInString(text) > maxCommentLen {
		return nil, models.NewValidationError("comment must be at most %d characters", maxCommentLen)
	}
	if _, _, err := s.loadTask(ctx, userID, taskID, models.RoleMember); err != nil {
		return nil, err
	}

	c, err := s.tasks.AddComment(ctx, &models.Comment{TaskID: taskID, AuthorID: userID, Text: text})
	if err != nil {
		return nil, s.access.storeError(ctx, "failed to add comment", err, models.ErrTaskNotFound)
	}

	record(ctx, s.activities, s.logger, userID, models.ResourceTypeTask, taskID, models.ActivityAddedComment,
		models.ActivityDetails{"comment_id": c.ID})
	return c, nil
}

func (s *TaskService) ListComments(ctx context.Context, userID, taskID string) ([]*models.Comment, error) {
	if _, _, err := s.loadTask(ctx, userID, taskID, models.RoleViewer); err != nil {
		return nil, err
	}
	comments, err := s.tasks.ListComments(ctx, taskID)
	if err != nil {
		return nil, s.access.storeError(ctx, "failed to list comments", err, models.ErrTaskNotFound)
	}
	return comments, nil
}

// ListActivity returns the newest activity entries for a task
func (s *TaskService) ListActivity(ctx context.Context, userID, taskID string, limit int) ([]*models.Activity, error) {
	if _, _, err := s.loadTask(ctx, userID, taskID, models.RoleViewer); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultActivity
	}
	entries, err := s.activities.ListByResource(ctx, models.ResourceTypeTask, taskID, limit)
	if err != nil {
		return nil, s.access.storeError(ctx, "failed to list activity", err, models.ErrTaskNotFound)
	}
	return entries, nil
}
