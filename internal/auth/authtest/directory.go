// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package authtest provides test doubles for the auth package.
package authtest

import (
	"context"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/holomush/tasktrack/internal/auth"
)

// Directory is an in-memory auth.UserDirectory. Create enforces username and
// email uniqueness under a lock, like the unique indexes of the real store.
type Directory struct {
	mu    sync.Mutex
	users map[ulid.ULID]*auth.User
}

var _ auth.UserDirectory = (*Directory)(nil)

// NewDirectory creates an empty Directory.
func NewDirectory() *Directory {
	return &Directory{users: make(map[ulid.ULID]*auth.User)}
}

// Len returns the number of stored users.
func (d *Directory) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.users)
}

// Create stores a copy of user.
func (d *Directory) Create(_ context.Context, user *auth.User) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, u := range d.users {
		if u.Username == user.Username {
			return oops.Code(auth.CodeUsernameTaken).With("field", "username").Errorf("username already exists")
		}
		if u.Email == user.Email {
			return oops.Code(auth.CodeEmailTaken).With("field", "email").Errorf("email already registered")
		}
	}
	d.users[user.ID] = clone(user)
	return nil
}

// GetByID returns a copy of the user with id.
func (d *Directory) GetByID(_ context.Context, id ulid.ULID) (*auth.User, error) {
	return d.find(func(u *auth.User) bool { return u.ID == id })
}

// GetByUsername returns a copy of the user with username.
func (d *Directory) GetByUsername(_ context.Context, username string) (*auth.User, error) {
	return d.find(func(u *auth.User) bool { return u.Username == username })
}

// GetByEmail returns a copy of the user with email.
func (d *Directory) GetByEmail(_ context.Context, email string) (*auth.User, error) {
	return d.find(func(u *auth.User) bool { return u.Email == email })
}

// GetByResetToken returns a copy of the user holding tokenHash.
func (d *Directory) GetByResetToken(_ context.Context, tokenHash string) (*auth.User, error) {
	return d.find(func(u *auth.User) bool { return u.ResetToken != nil && *u.ResetToken == tokenHash })
}

// SetResetToken stores tokenHash and its expiry.
func (d *Directory) SetResetToken(_ context.Context, id ulid.ULID, tokenHash string, expiresAt time.Time) error {
	return d.update(id, func(u *auth.User) bool {
		u.ResetToken = &tokenHash
		u.TokenExpiry = &expiresAt
		return true
	})
}

// ClearResetToken removes the reset token.
func (d *Directory) ClearResetToken(_ context.Context, id ulid.ULID) error {
	return d.update(id, func(u *auth.User) bool {
		u.ResetToken = nil
		u.TokenExpiry = nil
		return true
	})
}

// UpdatePasswordHash replaces the password hash.
func (d *Directory) UpdatePasswordHash(_ context.Context, id ulid.ULID, passwordHash string) error {
	return d.update(id, func(u *auth.User) bool {
		u.PasswordHash = passwordHash
		return true
	})
}

// ConsumeResetToken swaps the password hash and clears the token while the
// token is still live.
func (d *Directory) ConsumeResetToken(_ context.Context, id ulid.ULID, tokenHash, passwordHash string, now time.Time) error {
	return d.update(id, func(u *auth.User) bool {
		if u.ResetToken == nil || *u.ResetToken != tokenHash || u.TokenExpiry == nil || !now.Before(*u.TokenExpiry) {
			return false
		}
		u.PasswordHash = passwordHash
		u.ResetToken = nil
		u.TokenExpiry = nil
		return true
	})
}

// SetProfileImage records the avatar file name.
func (d *Directory) SetProfileImage(_ context.Context, id ulid.ULID, name string) error {
	return d.update(id, func(u *auth.User) bool {
		u.ProfileImage = &name
		return true
	})
}

// Delete removes a user, simulating an account deleted after a token was issued.
func (d *Directory) Delete(id ulid.ULID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.users, id)
}

func (d *Directory) find(match func(*auth.User) bool) (*auth.User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, u := range d.users {
		if match(u) {
			return clone(u), nil
		}
	}
	return nil, oops.Code(auth.CodeUserNotFound).Wrap(auth.ErrNotFound)
}

func (d *Directory) update(id ulid.ULID, apply func(*auth.User) bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	u, ok := d.users[id]
	if !ok || !apply(u) {
		return oops.Code(auth.CodeUserNotFound).With("user_id", id.String()).Wrap(auth.ErrNotFound)
	}
	u.UpdatedAt = time.Now().UTC()
	return nil
}

func clone(u *auth.User) *auth.User {
	c := *u
	if u.ResetToken != nil {
		token := *u.ResetToken
		c.ResetToken = &token
	}
	if u.TokenExpiry != nil {
		expiry := *u.TokenExpiry
		c.TokenExpiry = &expiry
	}
	if u.ProfileImage != nil {
		name := *u.ProfileImage
		c.ProfileImage = &name
	}
	return &c
}
