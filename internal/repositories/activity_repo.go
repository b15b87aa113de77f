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

// ActivityRepository stores the append-only activity log
type ActivityRepository struct {
	pool *pgxpool.Pool
}

func NewActivityRepository(db *database.DB) *ActivityRepository {
	return &ActivityRepository{pool: db.Pool}
}

func (r *ActivityRepository) Create(ctx context.Context, a *models.Activity) error {
	a.ID = uuid.New().String()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	if a.Details == nil {
		a.Details = models.ActivityDetails{}
	}

	_, err := r.pool.Exec(ctx, `
		INSERT INTO activities (id, user_id, resource_type, resource_id, action, details, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		a.ID, a.UserID, a.ResourceType, a.ResourceID, a.Action, a.Details, a.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create activity: %w", database.MapPostgresError(err))
	}
	return nil
}

// ListByResource returns the newest entries first
func (r *ActivityRepository) ListByResource(ctx context.Context, resourceType, resourceID string, limit int) ([]*models.Activity, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	rows, err := r.pool.Query(ctx, `
		SELECT a.id, a.user_id, u.name, a.resource_type, a.resource_id, a.action, a.details, a.created_at
		FROM activities a JOIN users u ON u.id = a.user_id
		WHERE a.resource_type = $1 AND a.resource_id = $2
		ORDER BY a.created_at DESC
		LIMIT $3`, resourceType, resourceID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query activities: %w", err)
	}
	defer rows.Close()

	activities := make([]*models.Activity, 0)
	for rows.Next() {
		var a models.Activity
		if err := rows.Scan(&a.ID, &a.UserID, &a.UserName, &a.ResourceType, &a.ResourceID, &a.Action, &a.Details, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan activity: %w", err)
		}
		activities = append(activities, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating activity rows: %w", err)
	}
	return activities, nil
}
