package postgres

import (
	"context"
	"database/sql"
	"fmt"
)

// LikeRepository implements domain.LikeRepository for PostgreSQL. Writes go
// through a transaction so the like row and the denormalized counter on the
// post never drift apart.
type LikeRepository struct {
	db *sql.DB
	tm *TxManager
}

// NewLikeRepository creates a new PostgreSQL like repository
func NewLikeRepository(db *sql.DB) *LikeRepository {
	return &LikeRepository{db: db, tm: NewTxManager(db)}
}

// Exists reports whether the user has liked the post
func (r *LikeRepository) Exists(ctx context.Context, postID, userID string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM likes WHERE post_id = $1 AND user_id = $2)`,
		postID, userID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check like: %w", err)
	}
	return exists, nil
}

// Add records a like and bumps the post's counter. Adding an already present
// like is a no-op.
func (r *LikeRepository) Add(ctx context.Context, postID, userID string) error {
	return r.tm.WithTx(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx,
			`INSERT INTO likes (post_id, user_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
			postID, userID)
		if err != nil {
			return fmt.Errorf("failed to add like: %w", err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return nil
		}
		_, err = tx.ExecContext(ctx,
			`UPDATE posts SET likes_count = likes_count + 1 WHERE id = $1`, postID)
		if err != nil {
			return fmt.Errorf("failed to update like count: %w", err)
		}
		return nil
	})
}

// Remove withdraws a like and lowers the post's counter. Removing an absent
// like is a no-op.
func (r *LikeRepository) Remove(ctx context.Context, postID, userID string) error {
	return r.tm.WithTx(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx,
			`DELETE FROM likes WHERE post_id = $1 AND user_id = $2`, postID, userID)
		if err != nil {
			return fmt.Errorf("failed to remove like: %w", err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return nil
		}
		_, err = tx.ExecContext(ctx,
			`UPDATE posts SET likes_count = GREATEST(likes_count - 1, 0) WHERE id = $1`, postID)
		if err != nil {
			return fmt.Errorf("failed to update like count: %w", err)
		}
		return nil
	})
}

// CountForPost returns the number of likes on a post
func (r *LikeRepository) CountForPost(ctx context.Context, postID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM likes WHERE post_id = $1`, postID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count likes: %w", err)
	}
	return count, nil
}
