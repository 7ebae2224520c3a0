package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"littlejoys/internal/domain"
)

// RefreshTokenRepository implements domain.RefreshTokenRepository for
// PostgreSQL. Lookups sit on the hot path of every token refresh, so the
// statements are prepared once at construction.
type RefreshTokenRepository struct {
	db                *sql.DB
	createStmt        *sql.Stmt
	getByTokenStmt    *sql.Stmt
	deleteStmt        *sql.Stmt
	deleteByUserStmt  *sql.Stmt
	deleteExpiredStmt *sql.Stmt
}

// NewRefreshTokenRepository creates a new RefreshTokenRepository with
// prepared statements. Returns an error if statement preparation fails.
func NewRefreshTokenRepository(db *sql.DB) (*RefreshTokenRepository, error) {
	repo := &RefreshTokenRepository{db: db}

	var err error
	repo.createStmt, err = db.Prepare(`
		INSERT INTO refresh_tokens (token, user_id, expires_at)
		VALUES ($1, $2, $3)
		RETURNING created_at
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare create statement: %w", err)
	}

	repo.getByTokenStmt, err = db.Prepare(`
		SELECT token, user_id, expires_at, created_at
		FROM refresh_tokens
		WHERE token = $1
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare getByToken statement: %w", err)
	}

	repo.deleteStmt, err = db.Prepare(`DELETE FROM refresh_tokens WHERE token = $1`)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare delete statement: %w", err)
	}

	repo.deleteByUserStmt, err = db.Prepare(`DELETE FROM refresh_tokens WHERE user_id = $1`)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare deleteByUser statement: %w", err)
	}

	repo.deleteExpiredStmt, err = db.Prepare(`DELETE FROM refresh_tokens WHERE expires_at <= $1`)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare deleteExpired statement: %w", err)
	}

	return repo, nil
}

func (r *RefreshTokenRepository) Create(ctx context.Context, token *domain.RefreshToken) error {
	err := r.createStmt.QueryRowContext(ctx,
		token.Token,
		token.UserID,
		token.ExpiresAt,
	).Scan(&token.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to create refresh token: %w", err)
	}
	return nil
}

// GetByToken returns the stored token row. An expired row is reported as
// ErrRefreshTokenExpired so the caller can distinguish a stale client from a
// forged token.
func (r *RefreshTokenRepository) GetByToken(ctx context.Context, token string) (*domain.RefreshToken, error) {
	rt := &domain.RefreshToken{}
	err := r.getByTokenStmt.QueryRowContext(ctx, token).Scan(
		&rt.Token,
		&rt.UserID,
		&rt.ExpiresAt,
		&rt.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, domain.ErrRefreshTokenNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get refresh token: %w", err)
	}
	if rt.ExpiresAt.Before(time.Now()) {
		return nil, domain.ErrRefreshTokenExpired
	}
	return rt, nil
}

func (r *RefreshTokenRepository) Delete(ctx context.Context, token string) error {
	_, err := r.deleteStmt.ExecContext(ctx, token)
	if err != nil {
		return fmt.Errorf("failed to delete refresh token: %w", err)
	}
	return nil
}

// DeleteByUser revokes every refresh token the user holds
func (r *RefreshTokenRepository) DeleteByUser(ctx context.Context, userID string) error {
	_, err := r.deleteByUserStmt.ExecContext(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to delete user refresh tokens: %w", err)
	}
	return nil
}

func (r *RefreshTokenRepository) DeleteExpired(ctx context.Context) (int64, error) {
	result, err := r.deleteExpiredStmt.ExecContext(ctx, time.Now())
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired refresh tokens: %w", err)
	}

	count, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return count, nil
}
