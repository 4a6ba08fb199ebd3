// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"context"
	"crypto/subtle"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Username, email and password constraints.
const (
	MinUsernameLength = 3
	MaxUsernameLength = 80
	MaxEmailLength    = 120
	MinPasswordLength = 6
	MaxPasswordLength = 128
)

// usernameRegex matches usernames that start with a letter or digit and
// contain only letters, digits, underscores, dots and hyphens.
var usernameRegex = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.-]*$`)

var validate = validator.New(validator.WithRequiredStructEnabled())

// User is an account that can log in and own tasks.
type User struct {
	ID           ulid.ULID
	Username     string
	Email        string
	PasswordHash string
	ProfileImage *string
	// ResetToken holds the digest of the issued reset token (see
	// HashResetToken). ResetToken and TokenExpiry are both nil or both set.
	ResetToken  *string
	TokenExpiry *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// NewUser creates a User with validated fields and a fresh ID.
// The email is normalized before it is stored.
func NewUser(username, email, passwordHash string) (*User, error) {
	if err := ValidateUsername(username); err != nil {
		return nil, err
	}
	email = NormalizeEmail(email)
	if err := ValidateEmail(email); err != nil {
		return nil, err
	}
	if passwordHash == "" {
		return nil, oops.Code(CodeInvalidPassword).
			With("field", "password").
			Errorf("password hash cannot be empty")
	}

	now := time.Now().UTC()
	return &User{
		ID:           ulid.Make(),
		Username:     username,
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// ResetTokenLive reports whether token hashes to the user's stored reset
// token digest and that token has not expired at now.
func (u *User) ResetTokenLive(token string, now time.Time) bool {
	if u.ResetToken == nil || u.TokenExpiry == nil || token == "" {
		return false
	}
	digest := HashResetToken(token)
	return subtle.ConstantTimeCompare([]byte(digest), []byte(*u.ResetToken)) == 1 &&
		now.Before(*u.TokenExpiry)
}

// PublicProfile is the subset of a User that may be returned to clients.
type PublicProfile struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	ProfileImage *string   `json:"profile_image"`
	CreatedAt    time.Time `json:"created_at"`
}

// Public returns the client-safe view of the user.
func (u *User) Public() PublicProfile {
	return PublicProfile{
		ID:           u.ID.String(),
		Username:     u.Username,
		Email:        u.Email,
		ProfileImage: u.ProfileImage,
		CreatedAt:    u.CreatedAt,
	}
}

// NormalizeEmail trims surrounding whitespace and lower-cases the address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidateUsername validates a username against the account rules.
func ValidateUsername(username string) error {
	length := utf8.RuneCountInString(username)
	switch {
	case username == "":
		return oops.Code(CodeInvalidUsername).
			With("field", "username").
			Errorf("username is required")
	case length < MinUsernameLength:
		return oops.Code(CodeInvalidUsername).
			With("field", "username").
			With("min", MinUsernameLength).
			Errorf("username must be at least %d characters", MinUsernameLength)
	case length > MaxUsernameLength:
		return oops.Code(CodeInvalidUsername).
			With("field", "username").
			With("max", MaxUsernameLength).
			Errorf("username must be at most %d characters", MaxUsernameLength)
	case !usernameRegex.MatchString(username):
		return oops.Code(CodeInvalidUsername).
			With("field", "username").
			Errorf("username may contain only letters, numbers, '_', '.' and '-'")
	}
	return nil
}

// ValidateEmail checks email syntax. Callers normalize first.
func ValidateEmail(email string) error {
	if email == "" {
		return oops.Code(CodeInvalidEmail).
			With("field", "email").
			Errorf("email is required")
	}
	if len(email) > MaxEmailLength {
		return oops.Code(CodeInvalidEmail).
			With("field", "email").
			With("max", MaxEmailLength).
			Errorf("email must be at most %d characters", MaxEmailLength)
	}
	if err := validate.Var(email, "email"); err != nil {
		return oops.Code(CodeInvalidEmail).
			With("field", "email").
			Errorf("email is not a valid address")
	}
	return nil
}

// ValidatePassword checks the plaintext password policy.
func ValidatePassword(password string) error {
	length := utf8.RuneCountInString(password)
	switch {
	case password == "":
		return oops.Code(CodeInvalidPassword).
			With("field", "password").
			Errorf("password is required")
	case length < MinPasswordLength:
		return oops.Code(CodeInvalidPassword).
			With("field", "password").
			With("min", MinPasswordLength).
			Errorf("password must be at least %d characters", MinPasswordLength)
	case length > MaxPasswordLength:
		return oops.Code(CodeInvalidPassword).
			With("field", "password").
			With("max", MaxPasswordLength).
			Errorf("password must be at most %d characters", MaxPasswordLength)
	}
	return nil
}

// UserDirectory owns user records. Implementations enforce username and email
// uniqueness in storage and return errors wrapping ErrNotFound for missing rows.
type UserDirectory interface {
	// Create stores a new user. A duplicate username or email fails with
	// CodeUsernameTaken or CodeEmailTaken.
	Create(ctx context.Context, user *User) error

	// GetByID retrieves a user by ID.
	GetByID(ctx context.Context, id ulid.ULID) (*User, error)

	// GetByUsername retrieves a user by exact username.
	GetByUsername(ctx context.Context, username string) (*User, error)

	// GetByEmail retrieves a user by normalized email.
	GetByEmail(ctx context.Context, email string) (*User, error)

	// GetByResetToken retrieves the user holding the reset token digest,
	// expired or not.
	GetByResetToken(ctx context.Context, tokenHash string) (*User, error)

	// SetResetToken stores a reset token digest and its expiry, replacing any
	// previous token.
	SetResetToken(ctx context.Context, id ulid.ULID, tokenHash string, expiresAt time.Time) error

	// ClearResetToken removes the user's reset token and expiry.
	ClearResetToken(ctx context.Context, id ulid.ULID) error

	// UpdatePasswordHash replaces the stored password hash.
	UpdatePasswordHash(ctx context.Context, id ulid.ULID, passwordHash string) error

	// ConsumeResetToken sets passwordHash and clears the reset token in one
	// update, only while tokenHash is still stored for the user and unexpired
	// at now. Otherwise it returns an error wrapping ErrNotFound.
	ConsumeResetToken(ctx context.Context, id ulid.ULID, tokenHash, passwordHash string, now time.Time) error

	// SetProfileImage records the stored avatar file name.
	SetProfileImage(ctx context.Context, id ulid.ULID, name string) error
}
