// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package task holds the to-do items owned by authenticated users.
package task

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/holomush/tasktrack/internal/auth"
)

// Field limits.
const (
	MaxTitleLength       = 150
	MaxDescriptionLength = 2000
)

// Error codes.
const (
	CodeInvalidTitle       = "TASK_INVALID_TITLE"
	CodeInvalidDescription = "TASK_INVALID_DESCRIPTION"
	CodeNotFound           = "TASK_NOT_FOUND"
)

func init() {
	auth.RegisterKind(CodeInvalidTitle, auth.KindValidation)
	auth.RegisterKind(CodeInvalidDescription, auth.KindValidation)
	auth.RegisterKind(CodeNotFound, auth.KindNotFound)
}

// Task is a to-do item.
type Task struct {
	ID          ulid.ULID `json:"id"`
	OwnerID     ulid.ULID `json:"-"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Done        bool      `json:"done"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Repository persists tasks. Every lookup is scoped to an owner, and a task
// owned by someone else is reported exactly like a missing one: an error
// wrapping auth.ErrNotFound.
type Repository interface {
	Create(ctx context.Context, t *Task) error
	Get(ctx context.Context, ownerID, id ulid.ULID) (*Task, error)
	// List returns the owner's tasks, newest first.
	List(ctx context.Context, ownerID ulid.ULID) ([]*Task, error)
	Update(ctx context.Context, t *Task) error
	Delete(ctx context.Context, ownerID, id ulid.ULID) error
}

// NormalizeTitle trims surrounding whitespace.
func NormalizeTitle(title string) string {
	return strings.TrimSpace(title)
}

// ValidateTitle checks a normalized title.
func ValidateTitle(title string) error {
	if title == "" {
		return oops.Code(CodeInvalidTitle).With("field", "title").Errorf("title is required")
	}
	if utf8.RuneCountInString(title) > MaxTitleLength {
		return oops.Code(CodeInvalidTitle).
			With("field", "title").
			With("max_length", MaxTitleLength).
			Errorf("title must be at most %d characters", MaxTitleLength)
	}
	return nil
}

// ValidateDescription checks a description.
func ValidateDescription(description string) error {
	if utf8.RuneCountInString(description) > MaxDescriptionLength {
		return oops.Code(CodeInvalidDescription).
			With("field", "description").
			With("max_length", MaxDescriptionLength).
			Errorf("description must be at most %d characters", MaxDescriptionLength)
	}
	return nil
}

// NotFound returns the error for a task that is missing or not visible to
// the owner.
func NotFound(id ulid.ULID) error {
	return oops.Code(CodeNotFound).With("task_id", id.String()).Wrap(auth.ErrNotFound)
}
