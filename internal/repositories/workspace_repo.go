package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/BradenHooton/projectgrid/internal/database"
	"github.com/BradenHooton/projectgrid/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// WorkspaceRepository handles workspaces and their memberships
type WorkspaceRepository struct {
	db *database.DB
}

func NewWorkspaceRepository(db *database.DB) *WorkspaceRepository {
	return &WorkspaceRepository{db: db}
}

const workspaceColumns = `w.id, w.name, w.description, w.color, w.owner_id, w.created_at, w.updated_at`

func scanWorkspaceRow(scanner rowScanner) (*models.Workspace, error) {
	var ws models.Workspace
	err := scanner.Scan(&ws.ID, &ws.Name, &ws.Description, &ws.Color, &ws.OwnerID, &ws.CreatedAt, &ws.UpdatedAt)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	return &ws, nil
}

func scanWorkspaceRows(rows pgx.Rows) ([]*models.Workspace, error) {
	defer rows.Close()

	workspaces := make([]*models.Workspace, 0)
	for rows.Next() {
		ws, err := scanWorkspaceRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan workspace: %w", err)
		}
		workspaces = append(workspaces, ws)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating workspace rows: %w", err)
	}
	return workspaces, nil
}

// Create inserts the workspace and its owner membership in one transaction
func (r *WorkspaceRepository) Create(ctx context.Context, ws *models.Workspace) (*models.Workspace, error) {
	ws.ID = uuid.New().String()
	now := time.Now().UTC()
	ws.CreatedAt = now
	ws.UpdatedAt = now

	err := r.db.WithTransaction(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO workspaces (id, name, description, color, owner_id, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			ws.ID, ws.Name, ws.Description, ws.Color, ws.OwnerID, ws.CreatedAt, ws.UpdatedAt,
		)
		if err != nil {
			return database.MapPostgresError(err)
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO workspace_members (workspace_id, user_id, role, joined_at)
			VALUES ($1, $2, $3, $4)`,
			ws.ID, ws.OwnerID, models.RoleOwner, now,
		)
		return database.MapPostgresError(err)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create workspace: %w", err)
	}
	return ws, nil
}

func (r *WorkspaceRepository) GetByID(ctx context.Context, id string) (*models.Workspace, error) {
	query := `SELECT ` + workspaceColumns + ` FROM workspaces w WHERE w.id = $1`
	return scanWorkspaceRow(r.db.Pool.QueryRow(ctx, query, id))
}

// ListForUser returns the workspaces userID is a member of, newest first
func (r *WorkspaceRepository) ListForUser(ctx context.Context, userID string) ([]*models.Workspace, error) {
	query := `
		SELECT ` + workspaceColumns + `
		FROM workspaces w
		JOIN workspace_members m ON m.workspace_id = w.id
		WHERE m.user_id = $1
		ORDER BY w.created_at DESC`

	rows, err := r.db.Pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query workspaces: %w", err)
	}
	return scanWorkspaceRows(rows)
}

func (r *WorkspaceRepository) Update(ctx context.Context, ws *models.Workspace) (*models.Workspace, error) {
	query := `
		UPDATE workspaces w SET name = $2, description = $3, color = $4, updated_at = NOW()
		WHERE w.id = $1
		RETURNING ` + workspaceColumns
	return scanWorkspaceRow(r.db.Pool.QueryRow(ctx, query, ws.ID, ws.Name, ws.Description, ws.Color))
}

func (r *WorkspaceRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM workspaces WHERE id = $1`, id)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

// GetMemberRole returns userID's role in workspaceID, models.ErrNotFound for non-members
func (r *WorkspaceRepository) GetMemberRole(ctx context.Context, workspaceID, userID string) (models.WorkspaceRole, error) {
	var role models.WorkspaceRole
	err := r.db.Pool.QueryRow(ctx,
		`SELECT role FROM workspace_members WHERE workspace_id = $1 AND user_id = $2`,
		workspaceID, userID,
	).Scan(&role)
	if err != nil {
		return "", database.MapPostgresError(err)
	}
	return role, nil
}

// AddMember inserts a membership; an existing one yields models.ErrConflict
func (r *WorkspaceRepository) AddMember(ctx context.Context, workspaceID, userID string, role models.WorkspaceRole) error {
	_, err := r.db.Pool.Exec(ctx, `
		INSERT INTO workspace_members (workspace_id, user_id, role, joined_at)
		VALUES ($1, $2, $3, NOW())`,
		workspaceID, userID, role,
	)
	return database.MapPostgresError(err)
}

func (r *WorkspaceRepository) ListMembers(ctx context.Context, workspaceID string) ([]*models.WorkspaceMember, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT m.workspace_id, m.user_id, u.name, u.email, m.role, m.joined_at
		FROM workspace_members m
		JOIN users u ON u.id = m.user_id
		WHERE m.workspace_id = $1
		ORDER BY m.joined_at`, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("failed to query members: %w", err)
	}
	defer rows.Close()

	members := make([]*models.WorkspaceMember, 0)
	for rows.Next() {
		var m models.WorkspaceMember
		if err := rows.Scan(&m.WorkspaceID, &m.UserID, &m.Name, &m.Email, &m.Role, &m.JoinedAt); err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		members = append(members, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating member rows: %w", err)
	}
	return members, nil
}
