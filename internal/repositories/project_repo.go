package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/BradenHooton/projectgrid/internal/database"
	"github.com/BradenHooton/projectgrid/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ProjectRepository struct {
	pool *pgxpool.Pool
}

func NewProjectRepository(db *database.DB) *ProjectRepository {
	return &ProjectRepository{pool: db.Pool}
}

const projectColumns = `id, workspace_id, title, description, status, start_date, due_date, created_by, created_at, updated_at`

func scanProjectRow(scanner rowScanner) (*models.Project, error) {
	var p models.Project
	err := scanner.Scan(
		&p.ID, &p.WorkspaceID, &p.Title, &p.Description, &p.Status,
		&p.StartDate, &p.DueDate, &p.CreatedBy, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	return &p, nil
}

func (r *ProjectRepository) Create(ctx context.Context, p *models.Project) (*models.Project, error) {
	p.ID = uuid.New().String()
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now

	query := `
		INSERT INTO projects (id, workspace_id, title, description, status, start_date, due_date, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING ` + projectColumns

	created, err := scanProjectRow(r.pool.QueryRow(ctx, query,
		p.ID, p.WorkspaceID, p.Title, p.Description, p.Status,
		p.StartDate, p.DueDate, p.CreatedBy, p.CreatedAt, p.UpdatedAt,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to create project: %w", err)
	}
	return created, nil
}

func (r *ProjectRepository) GetByID(ctx context.Context, id string) (*models.Project, error) {
	return scanProjectRow(r.pool.QueryRow(ctx, `SELECT `+projectColumns+` FROM projects WHERE id = $1`, id))
}

func (r *ProjectRepository) ListByWorkspace(ctx context.Context, workspaceID string) ([]*models.Project, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+projectColumns+` FROM projects WHERE workspace_id = $1 ORDER BY created_at DESC`,
		workspaceID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query projects: %w", err)
	}
	defer rows.Close()

	projects := make([]*models.Project, 0)
	for rows.Next() {
		p, err := scanProjectRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan project: %w", err)
		}
		projects = append(projects, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating project rows: %w", err)
	}
	return projects, nil
}

func (r *ProjectRepository) Update(ctx context.Context, p *models.Project) (*models.Project, error) {
	query := `
		UPDATE projects
		SET title = $2, description = $3, status = $4, start_date = $5, due_date = $6, updated_at = NOW()
		WHERE id = $1
		RETURNING ` + projectColumns
	return scanProjectRow(r.pool.QueryRow(ctx, query,
		p.ID, p.Title, p.Description, p.Status, p.StartDate, p.DueDate,
	))
}
