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

// VerificationTokenRepository stores outstanding email-verification and password-reset tokens
type VerificationTokenRepository struct {
	pool *pgxpool.Pool
}

func NewVerificationTokenRepository(db *database.DB) *VerificationTokenRepository {
	return &VerificationTokenRepository{pool: db.Pool}
}

const verificationTokenColumns = `id, user_id, purpose, token_hash, expires_at, created_at`

func scanVerificationTokenRow(scanner rowScanner) (*models.VerificationToken, error) {
	var t models.VerificationToken
	err := scanner.Scan(&t.ID, &t.UserID, &t.Purpose, &t.TokenHash, &t.ExpiresAt, &t.CreatedAt)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	return &t, nil
}

func (r *VerificationTokenRepository) Create(ctx context.Context, token *models.VerificationToken) (*models.VerificationToken, error) {
	token.ID = uuid.New().String()
	if token.CreatedAt.IsZero() {
		token.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO verification_tokens (id, user_id, purpose, token_hash, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING ` + verificationTokenColumns

	created, err := scanVerificationTokenRow(r.pool.QueryRow(ctx, query,
		token.ID, token.UserID, token.Purpose, token.TokenHash, token.ExpiresAt, token.CreatedAt,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to create verification token: %w", err)
	}
	return created, nil
}

// GetByUserAndHash finds the record for (userID, tokenHash)
func (r *VerificationTokenRepository) GetByUserAndHash(ctx context.Context, userID, tokenHash string) (*models.VerificationToken, error) {
	query := `SELECT ` + verificationTokenColumns + ` FROM verification_tokens WHERE user_id = $1 AND token_hash = $2`
	return scanVerificationTokenRow(r.pool.QueryRow(ctx, query, userID, tokenHash))
}

// GetLatestByUserAndPurpose returns the newest token of purpose for userID
func (r *VerificationTokenRepository) GetLatestByUserAndPurpose(ctx context.Context, userID string, purpose models.TokenPurpose) (*models.VerificationToken, error) {
	query := `
		SELECT ` + verificationTokenColumns + `
		FROM verification_tokens
		WHERE user_id = $1 AND purpose = $2
		ORDER BY created_at DESC
		LIMIT 1`
	return scanVerificationTokenRow(r.pool.QueryRow(ctx, query, userID, purpose))
}

func (r *VerificationTokenRepository) DeleteByID(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM verification_tokens WHERE id = $1`, id)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

// DeleteByUserAndPurpose removes every token of purpose for userID
func (r *VerificationTokenRepository) DeleteByUserAndPurpose(ctx context.Context, userID string, purpose models.TokenPurpose) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM verification_tokens WHERE user_id = $1 AND purpose = $2`, userID, purpose)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}
	return tag.RowsAffected(), nil
}

// DeleteExpired removes every token whose expiry is before now
func (r *VerificationTokenRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM verification_tokens WHERE expires_at < $1`, now)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired verification tokens: %w", err)
	}
	return tag.RowsAffected(), nil
}
