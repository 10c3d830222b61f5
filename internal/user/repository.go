package user

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const defaultQueryTimeout = 5 * time.Second

const (
	usernameConstraint = "users_user_name_key"
	emailConstraint    = "users_email_key"
)

const userColumns = `id, user_name, email, password_hash, refresh_token, profile_picture, auth_provider, is_oauth_user, created_at, updated_at`

// Repository provides PostgreSQL access to user records.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a new Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create persists a new user record.
func (r *Repository) Create(ctx context.Context, c Candidate) (User, error) {
	if c.PasswordHash == "" {
		return User{}, ErrMissingSecret
	}

	ctx, cancel := context.WithTimeout(ctx, defaultQueryTimeout)
	defer cancel()

	query := `
INSERT INTO users (id, user_name, email, password_hash, profile_picture, auth_provider, is_oauth_user)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING ` + userColumns + `;`

	row := r.pool.QueryRow(ctx, query,
		uuid.New(), Normalize(c.UserName), Normalize(c.Email), c.PasswordHash,
		c.ProfilePicture, c.AuthProvider, c.IsOAuthUser)

	user, err := scanUser(row)
	if err != nil {
		if dup := uniqueViolation(err); dup != nil {
			return User{}, dup
		}
		return User{}, fmt.Errorf("insert user: %w", err)
	}
	return user, nil
}

// FindByID fetches a user by identifier.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (User, error) {
	return r.findOne(ctx, `WHERE id = $1`, id)
}

// FindByEmail fetches a user by email.
func (r *Repository) FindByEmail(ctx context.Context, email string) (User, error) {
	return r.findOne(ctx, `WHERE email = $1`, Normalize(email))
}

// FindByEmailOrUsername fetches the first user whose email equals email or
// whose username equals username.
func (r *Repository) FindByEmailOrUsername(ctx context.Context, email, username string) (User, error) {
	return r.findOne(ctx, `WHERE email = $1 OR user_name = $2 ORDER BY created_at LIMIT 1`, Normalize(email), Normalize(username))
}

// Save writes the mutable session fields of u. The password hash is never
// rewritten here.
func (r *Repository) Save(ctx context.Context, u User) error {
	ctx, cancel := context.WithTimeout(ctx, defaultQueryTimeout)
	defer cancel()

	query := `
UPDATE users
SET refresh_token = $2, updated_at = NOW()
WHERE id = $1;`

	tag, err := r.pool.Exec(ctx, query, u.ID, u.RefreshToken)
	if err != nil {
		return fmt.Errorf("save user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repository) findOne(ctx context.Context, where string, args ...any) (User, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultQueryTimeout)
	defer cancel()

	query := `SELECT ` + userColumns + ` FROM users ` + where + `;`

	user, err := scanUser(r.pool.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrNotFound
		}
		return User{}, fmt.Errorf("find user: %w", err)
	}
	return user, nil
}

func scanUser(row pgx.Row) (User, error) {
	var user User
	err := row.Scan(
		&user.ID,
		&user.UserName,
		&user.Email,
		&user.PasswordHash,
		&user.RefreshToken,
		&user.ProfilePicture,
		&user.AuthProvider,
		&user.IsOAuthUser,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	return user, err
}

func uniqueViolation(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != "23505" {
		return nil
	}
	switch pgErr.ConstraintName {
	case usernameConstraint:
		return ErrUsernameTaken
	case emailConstraint:
		return ErrEmailTaken
	default:
		return ErrAlreadyExists
	}
}
