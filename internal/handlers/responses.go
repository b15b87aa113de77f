package handlers

import (
	"time"

	"github.com/BradenHooton/projectgrid/internal/models"
)

// UserResponse is the public view of a user; the password hash is never included
type UserResponse struct {
	ID              string     `json:"id"`
	Name            string     `json:"name"`
	Email           string     `json:"email"`
	IsEmailVerified bool       `json:"isEmailVerified"`
	LastLogin       *time.Time `json:"lastLogin,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`
}

func userResponse(u *models.User) *UserResponse {
	if u == nil {
		return nil
	}
	return &UserResponse{
		ID:              u.ID,
		Name:            u.Name,
		Email:           u.Email,
		IsEmailVerified: u.IsEmailVerified,
		LastLogin:       u.LastLogin,
		CreatedAt:       u.CreatedAt,
	}
}

// RegisteredUser is the minimal user echo returned on registration
type RegisteredUser struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

type WorkspaceResponse struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Color       string    `json:"color,omitempty"`
	OwnerID     string    `json:"ownerId"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func workspaceResponse(ws *models.Workspace) *WorkspaceResponse {
	return &WorkspaceResponse{
		ID:          ws.ID,
		Name:        ws.Name,
		Description: ws.Description,
		Color:       ws.Color,
		OwnerID:     ws.OwnerID,
		CreatedAt:   ws.CreatedAt,
		UpdatedAt:   ws.UpdatedAt,
	}
}

type MemberResponse struct {
	UserID   string    `json:"userId"`
	Name     string    `json:"name"`
	Email    string    `json:"email"`
	Role     string    `json:"role"`
	JoinedAt time.Time `json:"joinedAt"`
}

func memberResponse(m *models.WorkspaceMember) *MemberResponse {
	return &MemberResponse{
		UserID:   m.UserID,
		Name:     m.Name,
		Email:    m.Email,
		Role:     string(m.Role),
		JoinedAt: m.JoinedAt,
	}
}

type ProjectResponse struct {
	ID          string     `json:"id"`
	WorkspaceID string     `json:"workspaceId"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Status      string     `json:"status"`
	StartDate   *time.Time `json:"startDate,omitempty"`
	DueDate     *time.Time `json:"dueDate,omitempty"`
	CreatedBy   string     `json:"createdBy"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

func projectResponse(p *models.Project) *ProjectResponse {
	return &ProjectResponse{
		ID:          p.ID,
		WorkspaceID: p.WorkspaceID,
		Title:       p.Title,
		Description: p.Description,
		Status:      string(p.Status),
		StartDate:   p.StartDate,
		DueDate:     p.DueDate,
		CreatedBy:   p.CreatedBy,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

type SubtaskResponse struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Completed bool      `json:"completed"`
	CreatedAt time.Time `json:"createdAt"`
}

func subtaskResponse(s *models.Subtask) *SubtaskResponse {
	return &SubtaskResponse{ID: s.ID, Title: s.Title, Completed: s.Completed, CreatedAt: s.CreatedAt}
}

type TaskResponse struct {
	ID          string             `json:"id"`
	ProjectID   string             `json:"projectId"`
	Title       string             `json:"title"`
	Description string             `json:"description"`
	Status      string             `json:"status"`
	Priority    string             `json:"priority"`
	AssigneeID  *string            `json:"assigneeId"`
	DueDate     *time.Time         `json:"dueDate,omitempty"`
	Labels      []string           `json:"labels"`
	IsArchived  bool               `json:"isArchived"`
	CreatedBy   string             `json:"createdBy"`
	Subtasks    []*SubtaskResponse `json:"subtasks"`
	CreatedAt   time.Time          `json:"createdAt"`
	UpdatedAt   time.Time          `json:"updatedAt"`
}

func taskResponse(t *models.Task) *TaskResponse {
	resp := &TaskResponse{
		ID:          t.ID,
		ProjectID:   t.ProjectID,
		Title:       t.Title,
		Description: t.Description,
		Status:      string(t.Status),
		Priority:    string(t.Priority),
		AssigneeID:  t.AssigneeID,
		DueDate:     t.DueDate,
		Labels:      t.Labels,
		IsArchived:  t.IsArchived,
		CreatedBy:   t.CreatedBy,
		Subtasks:    make([]*SubtaskResponse, 0, len(t.Subtasks)),
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
	if resp.Labels == nil {
		resp.Labels = []string{}
	}
	for i := range t.Subtasks {
		resp.Subtasks = append(resp.Subtasks, subtaskResponse(&t.Subtasks[i]))
	}
	return resp
}

type CommentResponse struct {
	ID         string    `json:"id"`
	AuthorID   string    `json:"authorId"`
	AuthorName string    `json:"authorName"`
	Text       string    `json:"text"`
	CreatedAt  time.Time `json:"createdAt"`
}

func commentResponse(c *models.Comment) *CommentResponse {
	return &CommentResponse{
		ID:         c.ID,
		AuthorID:   c.AuthorID,
		AuthorName: c.AuthorName,
		Text:       c.Text,
		CreatedAt:  c.CreatedAt,
	}
}

type ActivityResponse struct {
	ID        string                 `json:"id"`
	UserID    string                 `json:"userId"`
	UserName  string                 `json:"userName"`
	Action    string                 `json:"action"`
	Details   map[string]interface{} `json:"details"`
	CreatedAt time.Time              `json:"createdAt"`
}

func activityResponse(a *models.Activity) *ActivityResponse {
	details := map[string]interface{}(a.Details)
	if details == nil {
		details = map[string]interface{}{}
	}
	return &ActivityResponse{
		ID:        a.ID,
		UserID:    a.UserID,
		UserName:  a.UserName,
		Action:    a.Action,
		Details:   details,
		CreatedAt: a.CreatedAt,
	}
}

// mapSlice converts each element of in with fn
func mapSlice[T, R any](in []T, fn func(T) R) []R {
	out := make([]R, 0, len(in))
	for _, v := range in {
		out = append(out, fn(v))
	}
	return out
}
