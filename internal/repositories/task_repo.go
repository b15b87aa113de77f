package repositories

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/BradenHooton/projectgrid/internal/database"
	"github.com/BradenHooton/projectgrid/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lib/pq"
)

// TaskRepository handles tasks, their subtasks and comments
type TaskRepository struct {
	pool *pgxpool.Pool
}

func NewTaskRepository(db *database.DB) *TaskRepository {
	return &TaskRepository{pool: db.Pool}
}

const taskColumns = `id, project_id, title, description, status, priority, assignee_id, due_date, labels, is_archived, created_by, created_at, updated_at`

func scanTaskRow(scanner rowScanner) (*models.Task, error) {
	var t models.Task
	var labels []string

	err := scanner.Scan(
		&t.ID, &t.ProjectID, &t.Title, &t.Description, &t.Status, &t.Priority,
		&t.AssigneeID, &t.DueDate, pq.Array(&labels), &t.IsArchived, &t.CreatedBy,
		&t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	if labels == nil {
		labels = []string{}
	}
	t.Labels = labels
	t.Subtasks = []models.Subtask{}
	return &t, nil
}

func nonNilLabels(labels []string) []string {
	if labels == nil {
		return []string{}
	}
	return labels
}

func (r *TaskRepository) Create(ctx context.Context, t *models.Task) (*models.Task, error) {
	t.ID = uuid.New().String()
	now := time.Now().UTC()
	t.CreatedAt = now
	t.UpdatedAt = now

	query := `
		INSERT INTO tasks (id, project_id, title, description, status, priority, assignee_id, due_date, labels, is_archived, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING ` + taskColumns

	created, err := scanTaskRow(r.pool.QueryRow(ctx, query,
		t.ID, t.ProjectID, t.Title, t.Description, t.Status, t.Priority,
		t.AssigneeID, t.DueDate, pq.Array(nonNilLabels(t.Labels)), t.IsArchived, t.CreatedBy,
		t.CreatedAt, t.UpdatedAt,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}
	return created, nil
}

// GetByID loads the task with its subtasks
func (r *TaskRepository) GetByID(ctx context.Context, id string) (*models.Task, error) {
	t, err := scanTaskRow(r.pool.QueryRow(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = $1`, id))
	if err != nil {
		return nil, err
	}

	subtasks, err := r.ListSubtasks(ctx, id)
	if err != nil {
		return nil, err
	}
	t.Subtasks = subtasks
	return t, nil
}

// WorkspaceIDForTask resolves the workspace that owns taskID
func (r *TaskRepository) WorkspaceIDForTask(ctx context.Context, taskID string) (string, error) {
	var workspaceID string
	err := r.pool.QueryRow(ctx, `
		SELECT p.workspace_id FROM tasks t JOIN projects p ON p.id = t.project_id
		WHERE t.id = $1`, taskID).Scan(&workspaceID)
	if err != nil {
		return "", database.MapPostgresError(err)
	}
	return workspaceID, nil
}

func (r *TaskRepository) ListByProject(ctx context.Context, projectID string, filter models.TaskFilter) ([]*models.Task, error) {
	var b strings.Builder
	b.WriteString(`SELECT ` + taskColumns + ` FROM tasks WHERE project_id = $1`)
	args := []interface{}{projectID}

	if !filter.IncludeArchived {
		b.WriteString(` AND is_archived = FALSE`)
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		fmt.Fprintf(&b, ` AND status = $%d`, len(args))
	}
	if filter.AssigneeID != "" {
		args = append(args, filter.AssigneeID)
		fmt.Fprintf(&b, ` AND assignee_id = $%d`, len(args))
	}
	b.WriteString(` ORDER BY created_at DESC`)

	rows, err := r.pool.Query(ctx, b.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query tasks: %w", database.MapPostgresError(err))
	}
	return scanTaskRows(rows)
}

func scanTaskRows(rows pgx.Rows) ([]*models.Task, error) {
	defer rows.Close()

	tasks := make([]*models.Task, 0)
	for rows.Next() {
		t, err := scanTaskRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating task rows: %w", err)
	}
	return tasks, nil
}

// Update writes the editable fields of t
func (r *TaskRepository) Update(ctx context.Context, t *models.Task) (*models.Task, error) {
	query := `
		UPDATE tasks
		SET title = $2, description = $3, status = $4, priority = $5, assignee_id = $6,
		    due_date = $7, labels = $8, is_archived = $9, updated_at = NOW()
		WHERE id = $1
		RETURNING ` + taskColumns
	return scanTaskRow(r.pool.QueryRow(ctx, query,
		t.ID, t.Title, t.Description, t.Status, t.Priority, t.AssigneeID,
		t.DueDate, pq.Array(nonNilLabels(t.Labels)), t.IsArchived,
	))
}

func (r *TaskRepository) AddSubtask(ctx context.Context, s *models.Subtask) (*models.Subtask, error) {
	s.ID = uuid.New().String()
	s.CreatedAt = time.Now().UTC()

	_, err := r.pool.Exec(ctx, `
		INSERT INTO subtasks (id, task_id, title, completed, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		s.ID, s.TaskID, s.Title, s.Completed, s.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create subtask: %w", database.MapPostgresError(err))
	}
	return s, nil
}

func (r *TaskRepository) ListSubtasks(ctx context.Context, taskID string) ([]models.Subtask, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, task_id, title, completed, created_at
		FROM subtasks WHERE task_id = $1 ORDER BY created_at`, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to query subtasks: %w", err)
	}
	defer rows.Close()

	subtasks := make([]models.Subtask, 0)
	for rows.Next() {
		var s models.Subtask
		if err := rows.Scan(&s.ID, &s.TaskID, &s.Title, &s.Completed, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan subtask: %w", err)
		}
		subtasks = append(subtasks, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating subtask rows: %w", err)
	}
	return subtasks, nil
}

// SetSubtaskCompleted flips a subtask of taskID; models.ErrNotFound when it does not belong to the task
func (r *TaskRepository) SetSubtaskCompleted(ctx context.Context, taskID, subtaskID string, completed bool) (*models.Subtask, error) {
	var s models.Subtask
	err := r.pool.QueryRow(ctx, `
		UPDATE subtasks SET completed = $3
		WHERE id = $2 AND task_id = $1
		RETURNING id, task_id, title, completed, created_at`,
		taskID, subtaskID, completed,
	).Scan(&s.ID, &s.TaskID, &s.Title, &s.Completed, &s.CreatedAt)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	return &s, nil
}

func (r *TaskRepository) AddComment(ctx context.Context, c *models.Comment) (*models.Comment, error) {
	c.ID = uuid.New().String()
	c.CreatedAt = time.Now().UTC()

	err := r.pool.QueryRow(ctx, `
		WITH inserted AS (
			INSERT INTO comments (id, task_id, author_id, text, created_at)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING author_id
		)
		SELECT u.name FROM inserted JOIN users u ON u.id = inserted.author_id`,
		c.ID, c.TaskID, c.AuthorID, c.Text, c.CreatedAt,
	).Scan(&c.AuthorName)
	if err != nil {
		return nil, fmt.Errorf("failed to create comment: %w", database.MapPostgresError(err))
	}
	return c, nil
}

func (r *TaskRepository) ListComments(ctx context.Context, taskID string) ([]*models.Comment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT c.id, c.task_id, c.author_id, u.name, c.text, c.created_at
		FROM comments c JOIN users u ON u.id = c.author_id
		WHERE c.task_id = $1
		ORDER BY c.created_at`, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to query comments: %w", err)
	}
	defer rows.Close()

	comments := make([]*models.Comment, 0)
	for rows.Next() {
		var c models.Comment
		if err := rows.Scan(&c.ID, &c.TaskID, &c.AuthorID, &c.AuthorName, &c.Text, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan comment: %w", err)
		}
		comments = append(comments, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating comment rows: %w", err)
	}
	return comments, nil
}
