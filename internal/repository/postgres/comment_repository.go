package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"littlejoys/internal/domain"
)

// CommentRepository implements domain.CommentRepository for PostgreSQL
type CommentRepository struct {
	db *sql.DB
	tm *TxManager
}

// NewCommentRepository creates a new PostgreSQL comment repository
func NewCommentRepository(db *sql.DB) *CommentRepository {
	return &CommentRepository{db: db, tm: NewTxManager(db)}
}

// Create inserts a comment and bumps the post's counter in one transaction
func (r *CommentRepository) Create(ctx context.Context, comment *domain.Comment) error {
	return r.tm.WithTx(ctx, func(tx *sql.Tx) error {
		query := `
			INSERT INTO comments (post_id, user_id, content)
			VALUES ($1, $2, $3)
			RETURNING id, created_at
		`
		err := tx.QueryRowContext(ctx, query,
			comment.PostID,
			comment.UserID,
			comment.Content,
		).Scan(&comment.ID, &comment.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to create comment: %w", err)
		}

		_, err = tx.ExecContext(ctx,
			`UPDATE posts SET comments_count = comments_count + 1 WHERE id = $1`,
			comment.PostID)
		if err != nil {
			return fmt.Errorf("failed to update comment count: %w", err)
		}
		return nil
	})
}

// ListByPost returns one page of a post's comments, oldest first
func (r *CommentRepository) ListByPost(ctx context.Context, postID string, page, limit int) (*domain.CommentPage, error) {
	var total int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM comments WHERE post_id = $1`, postID).Scan(&total)
	if err != nil {
		return nil, fmt.Errorf("failed to count comments: %w", err)
	}

	query := `
		SELECT c.id, c.post_id, c.user_id, u.nickname, COALESCE(u.avatar_url, ''), c.content, c.created_at
		FROM comments c
		JOIN users u ON c.user_id = u.id
		WHERE c.post_id = $1
		ORDER BY c.created_at ASC
		LIMIT $2 OFFSET $3
	`
	rows, err := r.db.QueryContext(ctx, query, postID, limit, (page-1)*limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query comments: %w", err)
	}
	defer rows.Close()

	comments := make([]*domain.Comment, 0, limit)
	for rows.Next() {
		comment := &domain.Comment{}
		err := rows.Scan(
			&comment.ID,
			&comment.PostID,
			&comment.UserID,
			&comment.Nickname,
			&comment.AvatarURL,
			&comment.Content,
			&comment.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan comment: %w", err)
		}
		comments = append(comments, comment)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating comments: %w", err)
	}

	pages := 0
	if total > 0 {
		pages = (total + limit - 1) / limit
	}
	return &domain.CommentPage{
		Comments: comments,
		Pagination: &domain.Pagination{
			Page:  page,
			Limit: limit,
			Total: total,
			Pages: pages,
		},
	}, nil
}
