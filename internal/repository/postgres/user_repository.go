package postgres

import (
	"context"
	"database/sql"

	"littlejoys/internal/domain"
)

// UserRepository implements domain.UserRepository for PostgreSQL
type UserRepository struct {
	db *sql.DB
}

// NewUserRepository creates a new PostgreSQL user repository
func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create inserts a new user into the database
func (r *UserRepository) Create(ctx context.Context, user *domain.User) error {
	query := `
		INSERT INTO users (email, password_hash, nickname)
		VALUES ($1, $2, $3)
		RETURNING id, created_at
	`
	err := r.db.QueryRowContext(ctx, query,
		user.Email,
		user.PasswordHash,
		user.Nickname,
	).Scan(&user.ID, &user.CreatedAt)

	if err != nil {
		if IsUniqueViolation(err, "users_email_key") {
			return domain.ErrEmailExists
		}
		return err
	}

	return nil
}

// GetByID retrieves a user by ID
func (r *UserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	query := `
		SELECT id, email, password_hash, nickname, COALESCE(avatar_url, ''), COALESCE(bio, ''), created_at
		FROM users
		WHERE id = $1
	`
	return r.scanUser(r.db.QueryRowContext(ctx, query, id))
}

// GetByEmail retrieves a user by email
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	query := `
		SELECT id, email, password_hash, nickname, COALESCE(avatar_url, ''), COALESCE(bio, ''), created_at
		FROM users
		WHERE email = $1
	`
	return r.scanUser(r.db.QueryRowContext(ctx, query, email))
}

// UpdateProfile updates the editable profile fields and returns the result
func (r *UserRepository) UpdateProfile(ctx context.Context, id string, update *domain.ProfileUpdate) (*domain.User, error) {
	query := `
		UPDATE users
		SET nickname = $2, bio = $3, avatar_url = $4
		WHERE id = $1
		RETURNING id, email, password_hash, nickname, COALESCE(avatar_url, ''), COALESCE(bio, ''), created_at
	`
	return r.scanUser(r.db.QueryRowContext(ctx, query, id, update.Nickname, update.Bio, update.AvatarURL))
}

// Stats aggregates the interaction counters across the user's live posts
func (r *UserRepository) Stats(ctx context.Context, id string) (*domain.UserStats, error) {
	query := `
		SELECT COUNT(*),
		       COALESCE(SUM(likes_count), 0),
		       COALESCE(SUM(comments_count), 0),
		       COALESCE(SUM(rewards_count), 0)
		FROM posts
		WHERE user_id = $1 AND is_deleted = FALSE
	`
	stats := &domain.UserStats{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&stats.PostCount,
		&stats.LikesReceived,
		&stats.CommentsReceived,
		&stats.RewardsReceived,
	)
	if err != nil {
		return nil, err
	}
	return stats, nil
}

func (r *UserRepository) scanUser(row *sql.Row) (*domain.User, error) {
	user := &domain.User{}
	err := row.Scan(
		&user.ID,
		&user.Email,
		&user.PasswordHash,
		&user.Nickname,
		&user.AvatarURL,
		&user.Bio,
		&user.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, domain.ErrUserNotFound
	}
	return user, err
}
