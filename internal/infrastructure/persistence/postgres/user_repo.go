package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/wellnest-app/wellnest-dashboard/internal/domain/shared"
	"github.com/wellnest-app/wellnest-dashboard/internal/domain/user"
)

// ══════════════════════════════════════════════════════════════════════════════
// USER REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// AuthUser is a user row including the credential hash. Only the auth handler
// ever sees the hash; everything else works with user.User.
type AuthUser struct {
	user.User
	PasswordHash string
}

// UserRepository implements user persistence for PostgreSQL.
type UserRepository struct {
	conn *Connection
}

// NewUserRepository creates a new UserRepository.
func NewUserRepository(conn *Connection) *UserRepository {
	return &UserRepository{conn: conn}
}

// GetByEmail returns a user with their password hash for credential checks.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*AuthUser, error) {
	query := `
		SELECT id, email, password_hash, name, role, COALESCE(avatar_url, '')
		FROM users
		WHERE lower(email) = lower($1)
	`

	var u AuthUser
	err := r.conn.QueryRow(ctx, query, email).Scan(
		&u.ID, &u.Email, &u.PasswordHash, &u.Name, &u.Role, &u.AvatarURL,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}
	return &u, nil
}

// GetByID returns a user without the credential hash.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*user.User, error) {
	query := `
		SELECT id, email, name, role, COALESCE(avatar_url, '')
		FROM users
		WHERE id = $1
	`

	var u user.User
	err := r.conn.QueryRow(ctx, query, id).Scan(
		&u.ID, &u.Email, &u.Name, &u.Role, &u.AvatarURL,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user by id: %w", err)
	}
	return &u, nil
}

// Create inserts a new user. The ID is generated when empty.
func (r *UserRepository) Create(ctx context.Context, u *AuthUser) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.Role == "" {
		u.Role = user.RoleCounselor
	}

	query := `
		INSERT INTO users (id, email, password_hash, name, role, avatar_url, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7, $7)
	`

	now := time.Now().UTC()
	_, err := r.conn.Exec(ctx, query, u.ID, u.Email, u.PasswordHash, u.Name, string(u.Role), u.AvatarURL, now)
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.ErrAlreadyExists
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}
