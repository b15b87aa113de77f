package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/BradenHooton/projectgrid/internal/models"
	"github.com/BradenHooton/projectgrid/internal/services"
	pkghttp "github.com/BradenHooton/projectgrid/pkg/http"
	"github.com/go-chi/chi/v5"
)

// TaskService defines task, subtask, comment and activity operations
type TaskService interface {
	CreateTask(ctx context.Context, userID, projectID string, in services.TaskInput) (*models.Task, error)
	ListTasks(ctx context.Context, userID, projectID string, filter models.TaskFilter) ([]*models.Task, error)
	GetTask(ctx context.Context, userID, taskID string) (*models.Task, error)
	UpdateTask(ctx context.Context, userID, taskID string, in services.TaskInput) (*models.Task, error)
	UpdateTaskStatus(ctx context.Context, userID, taskID string, status models.TaskStatus) (*models.Task, error)
	ArchiveTask(ctx context.Context, userID, taskID string) (*models.Task, error)
	AddSubtask(ctx context.Context, userID, taskID, title string) (*models.Subtask, error)
	SetSubtaskCompleted(ctx context.Context, userID, taskID, subtaskID string, completed bool) (*models.Subtask, error)
	AddComment(ctx context.Context, userID, taskID, text string) (*models.Comment, error)
	ListComments(ctx context.Context, userID, taskID string) ([]*models.Comment, error)
	ListActivity(ctx context.Context, userID, taskID string, limit int) ([]*models.Activity, error)
}

type TaskHandler struct {
	service TaskService
}

func NewTaskHandler(service TaskService) *TaskHandler {
	return &TaskHandler{service: service}
}

type TaskRequest struct {
	Title       string     `json:"title" validate:"required,max=120"`
	Description string     `json:"description" validate:"max=10000"`
	Status      string     `json:"status" validate:"omitempty,oneof=todo in_progress review done"`
	Priority    string     `json:"priority" validate:"omitempty,oneof=low medium high"`
	AssigneeID  *string    `json:"assigneeId" validate:"omitempty,uuid"`
	DueDate     *time.Time `json:"dueDate"`
	Labels      []string   `json:"labels" validate:"max=20,dive,max=32"`
}

func (req TaskRequest) input() services.TaskInput {
	return services.TaskInput{
		Title:       req.Title,
		Description: req.Description,
		Status:      models.TaskStatus(req.Status),
		Priority:    models.TaskPriority(req.Priority),
		AssigneeID:  req.AssigneeID,
		DueDate:     req.DueDate,
		Labels:      req.Labels,
	}
}

type TaskStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=todo in_progress review done"`
}

type SubtaskRequest struct {
	Title string `json:"title" validate:"required,max=120"`
}

type SubtaskUpdateRequest struct {
	Completed *bool `json:"completed" validate:"required"`
}

type CommentRequest struct {
	Text string `json:"text" validate:"required,max=4000"`
}

// Create handles POST /projects/{id}/tasks
func (h *TaskHandler) Create(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	var req TaskRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	t, err := h.service.CreateTask(r.Context(), user.ID, chi.URLParam(r, "id"), req.input())
	if err != nil {
		writeResourceError(w, err)
		return
	}
	pkghttp.WriteJSON(w, http.StatusCreated, taskResponse(t))
}

// List handles GET /projects/{id}/tasks?status=&assignee=&archived=true
func (h *TaskHandler) List(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	filter := models.TaskFilter{
		Status:     models.TaskStatus(q.Get("status")),
		AssigneeID: q.Get("assignee"),
	}
	if v := q.Get("archived"); v != "" {
		archived, err := strconv.ParseBool(v)
		if err != nil {
			pkghttp.WriteError(w, http.StatusBadRequest, "ValidationError", "validation_failed", "archived must be true or false")
			return
		}
		filter.IncludeArchived = archived
	}

	tasks, err := h.service.ListTasks(r.Context(), user.ID, chi.URLParam(r, "id"), filter)
	if err != nil {
		writeResourceError(w, err)
		return
	}
	pkghttp.WriteJSON(w, http.StatusOK, mapSlice(tasks, taskResponse))
}

// Get handles GET /tasks/{id}
func (h *TaskHandler) Get(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	t, err := h.service.GetTask(r.Context(), user.ID, chi.URLParam(r, "id"))
	if err != nil {
		writeResourceError(w, err)
		return
	}
	pkghttp.WriteJSON(w, http.StatusOK, taskResponse(t))
}

// Update handles PUT /tasks/{id}
func (h *TaskHandler) Update(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	var req TaskRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	t, err := h.service.UpdateTask(r.Context(), user.ID, chi.URLParam(r, "id"), req.input())
	if err != nil {
		writeResourceError(w, err)
		return
	}
	pkghttp.WriteJSON(w, http.StatusOK, taskResponse(t))
}

// UpdateStatus handles PATCH /tasks/{id}/status
func (h *TaskHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	var req TaskStatusRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	t, err := h.service.UpdateTaskStatus(r.Context(), user.ID, chi.URLParam(r, "id"), models.TaskStatus(req.Status))
	if err != nil {
		writeResourceError(w, err)
		return
	}
	pkghttp.WriteJSON(w, http.StatusOK, taskResponse(t))
}

// Archive handles POST /tasks/{id}/archive
func (h *TaskHandler) Archive(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	t, err := h.service.ArchiveTask(r.Context(), user.ID, chi.URLParam(r, "id"))
	if err != nil {
		writeResourceError(w, err)
		return
	}
	pkghttp.WriteJSON(w, http.StatusOK, taskResponse(t))
}

// AddSubtask handles POST /tasks/{id}/subtasks
func (h *TaskHandler) AddSubtask(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	var req SubtaskRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	st, err := h.service.AddSubtask(r.Context(), user.ID, chi.URLParam(r, "id"), req.Title)
	if err != nil {
		writeResourceError(w, err)
		return
	}
	pkghttp.WriteJSON(w, http.StatusCreated, subtaskResponse(st))
}

// UpdateSubtask handles PATCH /tasks/{id}/subtasks/{subtaskID}
func (h *TaskHandler) UpdateSubtask(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	var req SubtaskUpdateRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	st, err := h.service.SetSubtaskCompleted(r.Context(), user.ID, chi.URLParam(r, "id"), chi.URLParam(r, "subtaskID"), *req.Completed)
	if err != nil {
		writeResourceError(w, err)
		return
	}
	pkghttp.WriteJSON(w, http.StatusOK, subtaskResponse(st))
}

// AddComment handles POST /tasks/{id}/comments
func (h *TaskHandler) AddComment(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	var req CommentRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	c, err := h.service.AddComment(r.Context(), user.ID, chi.URLParam(r, "id"), req.Text)
	if err != nil {
		writeResourceError(w, err)
		return
	}
	if c.AuthorName == "" {
		c.AuthorName = user.Name
	}
	pkghttp.WriteJSON(w, http.StatusCreated, commentResponse(c))
}

// ListComments handles GET /tasks/{id}/comments
func (h *TaskHandler) ListComments(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	comments, err := h.service.ListComments(r.Context(), user.ID, chi.URLParam(r, "id"))
	if err != nil {
		writeResourceError(w, err)
		return
	}
	pkghttp.WriteJSON(w, http.StatusOK, mapSlice(comments, commentResponse))
}

// ListActivity handles GET /tasks/{id}/activity?limit=
func (h *TaskHandler) ListActivity(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			pkghttp.WriteError(w, http.StatusBadRequest, "ValidationError", "validation_failed", "limit must be a positive integer")
			return
		}
		limit = n
	}

	entries, err := h.service.ListActivity(r.Context(), user.ID, chi.URLParam(r, "id"), limit)
	if err != nil {
		writeResourceError(w, err)
		return
	}
	pkghttp.WriteJSON(w, http.StatusOK, mapSlice(entries, activityResponse))
}
