// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package authtest

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/mock"

	"github.com/holomush/tasktrack/internal/auth"
)

// MockUserDirectory is a testify mock of auth.UserDirectory for injecting
// storage failures.
type MockUserDirectory struct {
	mock.Mock
}

var _ auth.UserDirectory = (*MockUserDirectory)(nil)

// NewMockUserDirectory creates a mock that asserts its expectations on cleanup.
func NewMockUserDirectory(t interface {
	mock.TestingT
	Cleanup(func())
},
) *MockUserDirectory {
	m := &MockUserDirectory{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func userResult(args mock.Arguments) (*auth.User, error) {
	var user *auth.User
	if u := args.Get(0); u != nil {
		user = u.(*auth.User)
	}
	return user, args.Error(1)
}

// Create implements auth.UserDirectory.
func (m *MockUserDirectory) Create(ctx context.Context, user *auth.User) error {
	return m.Called(ctx, user).Error(0)
}

// GetByID implements auth.UserDirectory.
func (m *MockUserDirectory) GetByID(ctx context.Context, id ulid.ULID) (*auth.User, error) {
	return userResult(m.Called(ctx, id))
}

// GetByUsername implements auth.UserDirectory.
func (m *MockUserDirectory) GetByUsername(ctx context.Context, username string) (*auth.User, error) {
	return userResult(m.Called(ctx, username))
}

// GetByEmail implements auth.UserDirectory.
func (m *MockUserDirectory) GetByEmail(ctx context.Context, email string) (*auth.User, error) {
	return userResult(m.Called(ctx, email))
}

// GetByResetToken implements auth.UserDirectory.
func (m *MockUserDirectory) GetByResetToken(ctx context.Context, tokenHash string) (*auth.User, error) {
	return userResult(m.Called(ctx, tokenHash))
}

// SetResetToken implements auth.UserDirectory.
func (m *MockUserDirectory) SetResetToken(ctx context.Context, id ulid.ULID, tokenHash string, expiresAt time.Time) error {
	return m.Called(ctx, id, tokenHash, expiresAt).Error(0)
}

// ClearResetToken implements auth.UserDirectory.
func (m *MockUserDirectory) ClearResetToken(ctx context.Context, id ulid.ULID) error {
	return m.Called(ctx, id).Error(0)
}

// UpdatePasswordHash implements auth.UserDirectory.
func (m *MockUserDirectory) UpdatePasswordHash(ctx context.Context, id ulid.ULID, passwordHash string) error {
	return m.Called(ctx, id, passwordHash).Error(0)
}

// ConsumeResetToken implements auth.UserDirectory.
func (m *MockUserDirectory) ConsumeResetToken(ctx context.Context, id ulid.ULID, tokenHash, passwordHash string, now time.Time) error {
	return m.Called(ctx, id, tokenHash, passwordHash, now).Error(0)
}

// SetProfileImage implements auth.UserDirectory.
func (m *MockUserDirectory) SetProfileImage(ctx context.Context, id ulid.ULID, name string) error {
	return m.Called(ctx, id, name).Error(0)
}
