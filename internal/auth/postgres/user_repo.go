// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package postgres provides the PostgreSQL implementation of auth.UserDirectory.
package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/holomush/tasktrack/internal/auth"
	"github.com/holomush/tasktrack/internal/store"
)

// Unique constraint names from the users migration.
const (
	usernameConstraint = "users_username_key"
	emailConstraint    = "users_email_key"
)

const userColumns = `id, username, email, password_hash, profile_image,
       reset_token, token_expiry, created_at, updated_at`

// UserRepository implements auth.UserDirectory using PostgreSQL.
type UserRepository struct {
	db store.DB
}

var _ auth.UserDirectory = (*UserRepository)(nil)

// NewUserRepository creates a new UserRepository.
func NewUserRepository(db store.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create inserts a new user. A unique violation is reported as
// auth.CodeUsernameTaken or auth.CodeEmailTaken.
func (r *UserRepository) Create(ctx context.Context, user *auth.User) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO users (
			id, username, email, password_hash, profile_image,
			reset_token, token_expiry, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`,
		user.ID.String(),
		user.Username,
		user.Email,
		user.PasswordHash,
		user.ProfileImage,
		user.ResetToken,
		user.TokenExpiry,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err == nil {
		return nil
	}

	if constraint, ok := store.UniqueViolation(err); ok {
		switch constraint {
		case usernameConstraint:
			return oops.Code(auth.CodeUsernameTaken).
				With("field", "username").
				Errorf("username already exists")
		case emailConstraint:
			return oops.Code(auth.CodeEmailTaken).
				With("field", "email").
				Errorf("email already registered")
		}
	}
	return oops.Code("USER_CREATE_FAILED").
		With("operation", "insert user").
		With("username", user.Username).
		Wrap(err)
}

// GetByID retrieves a user by ID.
func (r *UserRepository) GetByID(ctx context.Context, id ulid.ULID) (*auth.User, error) {
	return r.getOne(ctx, "id", id.String(),
		`SELECT `+userColumns+` FROM users WHERE id = $1`)
}

// GetByUsername retrieves a user by exact username.
func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*auth.User, error) {
	return r.getOne(ctx, "username", username,
		`SELECT `+userColumns+` FROM users WHERE username = $1`)
}

// GetByEmail retrieves a user by normalized email.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*auth.User, error) {
	return r.getOne(ctx, "email", email,
		`SELECT `+userColumns+` FROM users WHERE email = $1`)
}

// GetByResetToken retrieves the user holding the reset token digest.
func (r *UserRepository) GetByResetToken(ctx context.Context, tokenHash string) (*auth.User, error) {
	// the digest is a credential; keep it out of error context
	return r.getOne(ctx, "by", "reset_token",
		`SELECT `+userColumns+` FROM users WHERE reset_token = $1`, tokenHash)
}

func (r *UserRepository) getOne(ctx context.Context, key, value, query string, args ...any) (*auth.User, error) {
	if len(args) == 0 {
		args = []any{value}
	}
	user, err := scanUser(r.db.QueryRow(ctx, query, args...))
	if store.IsNoRows(err) {
		return nil, oops.Code(auth.CodeUserNotFound).
			With(key, value).
			Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("USER_GET_FAILED").
			With("operation", "get user").
			With(key, value).
			Wrap(err)
	}
	return user, nil
}

// SetResetToken stores a reset token digest and its expiry, replacing any
// previous token.
func (r *UserRepository) SetResetToken(ctx context.Context, id ulid.ULID, tokenHash string, expiresAt time.Time) error {
	return r.update(ctx, "set reset token", id, `
		UPDATE users SET reset_token = $2, token_expiry = $3, updated_at = NOW()
		WHERE id = $1
	`, id.String(), tokenHash, expiresAt)
}

// ClearResetToken removes any reset token.
func (r *UserRepository) ClearResetToken(ctx context.Context, id ulid.ULID) error {
	return r.update(ctx, "clear reset token", id, `
		UPDATE users SET reset_token = NULL, token_expiry = NULL, updated_at = NOW()
		WHERE id = $1
	`, id.String())
}

// UpdatePasswordHash replaces the stored password hash.
func (r *UserRepository) UpdatePasswordHash(ctx context.Context, id ulid.ULID, passwordHash string) error {
	return r.update(ctx, "update password hash", id, `
		UPDATE users SET password_hash = $2, updated_at = NOW()
		WHERE id = $1
	`, id.String(), passwordHash)
}

// ConsumeResetToken sets the new password hash and clears the reset token in
// one statement, only while the stored token still matches and is unexpired.
func (r *UserRepository) ConsumeResetToken(ctx context.Context, id ulid.ULID, tokenHash, passwordHash string, now time.Time) error {
	return r.update(ctx, "consume reset token", id, `
		UPDATE users
		SET password_hash = $3, reset_token = NULL, token_expiry = NULL, updated_at = NOW()
		WHERE id = $1 AND reset_token = $2 AND token_expiry > $4
	`, id.String(), tokenHash, passwordHash, now)
}

// SetProfileImage records the stored avatar file name.
func (r *UserRepository) SetProfileImage(ctx context.Context, id ulid.ULID, name string) error {
	return r.update(ctx, "set profile image", id, `
		UPDATE users SET profile_image = $2, updated_at = NOW()
		WHERE id = $1
	`, id.String(), name)
}

func (r *UserRepository) update(ctx context.Context, operation string, id ulid.ULID, query string, args ...any) error {
	result, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return oops.Code("USER_UPDATE_FAILED").
			With("operation", operation).
			With("id", id.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code(auth.CodeUserNotFound).
			With("operation", operation).
			With("id", id.String()).
			Wrap(auth.ErrNotFound)
	}
	return nil
}

// scanUser scans a single row into a User.
// Callers are responsible for handling pgx.ErrNoRows.
func scanUser(row pgx.Row) (*auth.User, error) {
	var (
		idStr string
		user  auth.User
	)
	err := row.Scan(
		&idStr,
		&user.Username,
		&user.Email,
		&user.PasswordHash,
		&user.ProfileImage,
		&user.ResetToken,
		&user.TokenExpiry,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, err //nolint:wrapcheck // callers wrap with context
	}

	user.ID, err = ulid.Parse(idStr)
	if err != nil {
		return nil, oops.Code("USER_CORRUPT_ID").With("id", idStr).Wrap(err)
	}
	return &user, nil
}
