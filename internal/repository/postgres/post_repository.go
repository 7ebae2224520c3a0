package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"littlejoys/internal/domain"
)

// postColumns is the SELECT list shared by every post query. $-placeholders
// for the viewer are bound by the callers.
const postColumns = `
	p.id, p.user_id, u.nickname, COALESCE(u.avatar_url, ''),
	p.content, COALESCE(p.image_url, ''), COALESCE(p.audio_url, ''),
	p.location_data, p.weather_data,
	p.likes_count, p.comments_count, p.rewards_count, p.created_at
`

// PostRepository implements domain.PostRepository for PostgreSQL
type PostRepository struct {
	db *sql.DB
}

// NewPostRepository creates a new PostgreSQL post repository
func NewPostRepository(db *sql.DB) *PostRepository {
	return &PostRepository{db: db}
}

// Create inserts a new post into the database
func (r *PostRepository) Create(ctx context.Context, post *domain.Post) error {
	query := `
		INSERT INTO posts (user_id, content, image_url, audio_url, location_data, weather_data)
		VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''), $5, $6)
		RETURNING id, created_at
	`
	err := r.db.QueryRowContext(ctx, query,
		post.UserID,
		post.Content,
		post.ImageURL,
		post.AudioURL,
		nullableJSON(post.LocationData),
		nullableJSON(post.WeatherData),
	).Scan(&post.ID, &post.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to create post: %w", err)
	}
	return nil
}

// GetByID retrieves a live post with interaction counters. The viewerID
// resolves is_liked; an empty viewerID reads as not liked.
func (r *PostRepository) GetByID(ctx context.Context, id string, viewerID string) (*domain.Post, error) {
	query := `
		SELECT ` + postColumns + `,
		       EXISTS(SELECT 1 FROM likes l WHERE l.post_id = p.id AND l.user_id = NULLIF($2, '')::uuid)
		FROM posts p
		JOIN users u ON p.user_id = u.id
		WHERE p.id = $1 AND p.is_deleted = FALSE
	`
	post, err := scanPost(r.db.QueryRowContext(ctx, query, id, viewerID))
	if err == sql.ErrNoRows {
		return nil, domain.ErrPostNotFound
	}
	return post, err
}

// List returns one page of live posts. SortType "hottest" orders by
// interaction volume before recency; anything else is newest first.
func (r *PostRepository) List(ctx context.Context, opts domain.PostListOptions) (*domain.PostPage, error) {
	where := "p.is_deleted = FALSE"
	args := []interface{}{opts.ViewerID}
	if opts.UserID != "" {
		args = append(args, opts.UserID)
		where += fmt.Sprintf(" AND p.user_id = $%d", len(args))
	}

	var total int
	countQuery := "SELECT COUNT(*) FROM posts p WHERE " + where
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to count posts: %w", err)
	}

	order := "p.created_at DESC"
	if opts.SortType == "hottest" {
		order = "(p.likes_count + p.comments_count + p.rewards_count) DESC, p.created_at DESC"
	}

	args = append(args, opts.Limit, (opts.Page-1)*opts.Limit)
	query := fmt.Sprintf(`
		SELECT `+postColumns+`,
		       EXISTS(SELECT 1 FROM likes l WHERE l.post_id = p.id AND l.user_id = NULLIF($1, '')::uuid)
		FROM posts p
		JOIN users u ON p.user_id = u.id
		WHERE %s
		ORDER BY %s
		LIMIT $%d OFFSET $%d
	`, where, order, len(args)-1, len(args))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query posts: %w", err)
	}
	defer rows.Close()

	posts := make([]*domain.Post, 0, opts.Limit)
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan post: %w", err)
		}
		posts = append(posts, post)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating posts: %w", err)
	}

	pages := 0
	if total > 0 {
		pages = (total + opts.Limit - 1) / opts.Limit
	}
	return &domain.PostPage{
		Posts: posts,
		Pagination: &domain.Pagination{
			Page:  opts.Page,
			Limit: opts.Limit,
			Total: total,
			Pages: pages,
		},
	}, nil
}

// SoftDelete hides a post without destroying its interaction history
func (r *PostRepository) SoftDelete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE posts SET is_deleted = TRUE WHERE id = $1 AND is_deleted = FALSE`, id)
	if err != nil {
		return fmt.Errorf("failed to delete post: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return domain.ErrPostNotFound
	}
	return nil
}

// AddReward bumps the reward counter on a live post
func (r *PostRepository) AddReward(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE posts SET rewards_count = rewards_count + 1 WHERE id = $1 AND is_deleted = FALSE`, id)
	if err != nil {
		return fmt.Errorf("failed to add reward: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return domain.ErrPostNotFound
	}
	return nil
}

// OwnerOf returns the author of a live post
func (r *PostRepository) OwnerOf(ctx context.Context, id string) (string, error) {
	var ownerID string
	err := r.db.QueryRowContext(ctx,
		`SELECT user_id FROM posts WHERE id = $1 AND is_deleted = FALSE`, id).Scan(&ownerID)
	if err == sql.ErrNoRows {
		return "", domain.ErrPostNotFound
	}
	return ownerID, err
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanPost(row rowScanner) (*domain.Post, error) {
	post := &domain.Post{}
	var location, weather []byte
	err := row.Scan(
		&post.ID,
		&post.UserID,
		&post.Nickname,
		&post.AvatarURL,
		&post.Content,
		&post.ImageURL,
		&post.AudioURL,
		&location,
		&weather,
		&post.LikesCount,
		&post.CommentsCount,
		&post.RewardsCount,
		&post.CreatedAt,
		&post.IsLiked,
	)
	if err != nil {
		return nil, err
	}
	post.LocationData = location
	post.WeatherData = weather
	return post, nil
}

func nullableJSON(raw []byte) interface{} {
	if len(raw) == 0 {
		return nil
	}
	return raw
}
