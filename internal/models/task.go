package models

import "time"

type TaskStatus string

const (
	TaskTodo       TaskStatus = "todo"
	TaskInProgress TaskStatus = "in_progress"
	TaskReview     TaskStatus = "review"
	TaskDone       TaskStatus = "done"
)

type TaskPriority string

const (
	PriorityLow    TaskPriority = "low"
	PriorityMedium TaskPriority = "medium"
	PriorityHigh   TaskPriority = "high"
)

type Task struct {
	ID          string
	ProjectID   string
	Title       string
	Description string
	Status      TaskStatus
	Priority    TaskPriority
	AssigneeID  *string
	DueDate     *time.Time
	Labels      []string
	IsArchived  bool
	CreatedBy   string
	Subtasks    []Subtask
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type Subtask struct {
	ID        string
	TaskID    string
	Title     string
	Completed bool
	CreatedAt time.Time
}

type Comment struct {
	ID         string
	TaskID     string
	AuthorID   string
	AuthorName string // joined from users
	Text       string
	CreatedAt  time.Time
}

// TaskFilter narrows task listings
type TaskFilter struct {
	Status          TaskStatus
	AssigneeID      string
	IncludeArchived bool
}

func (s TaskStatus) Valid() bool {
	switch s {
	case TaskTodo, TaskInProgress, TaskReview, TaskDone:
		return true
	}
	return false
}

func (p TaskPriority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}
