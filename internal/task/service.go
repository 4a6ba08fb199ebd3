// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package task

import (
	"context"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// CreateInput carries the fields of a new task.
type CreateInput struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// UpdateInput carries a partial update; nil fields are left unchanged.
type UpdateInput struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Done        *bool   `json:"done"`
}

// Service manages tasks on behalf of their owners.
type Service struct {
	repo   Repository
	logger *slog.Logger
	now    func() time.Time
}

// NewService creates a Service that logs to slog.Default().
func NewService(repo Repository) (*Service, error) {
	return NewServiceWithLogger(repo, slog.Default())
}

// NewServiceWithLogger creates a Service with an explicit logger.
func NewServiceWithLogger(repo Repository, logger *slog.Logger) (*Service, error) {
	if repo == nil {
		return nil, oops.Errorf("task repository is required")
	}
	if logger == nil {
		return nil, oops.Errorf("logger is required")
	}
	return &Service{repo: repo, logger: logger, now: time.Now}, nil
}

// Create adds a task for owner.
func (s *Service) Create(ctx context.Context, owner ulid.ULID, in CreateInput) (*Task, error) {
	title := NormalizeTitle(in.Title)
	if err := ValidateTitle(title); err != nil {
		return nil, err
	}
	if err := ValidateDescription(in.Description); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	t := &Task{
		ID:          ulid.Make(),
		OwnerID:     owner,
		Title:       title,
		Description: in.Description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.Create(ctx, t); err != nil {
		return nil, err
	}
	s.logger.DebugContext(ctx, "task created", "task_id", t.ID.String(), "owner_id", owner.String())
	return t, nil
}

// List returns owner's tasks, newest first.
func (s *Service) List(ctx context.Context, owner ulid.ULID) ([]*Task, error) {
	return s.repo.List(ctx, owner)
}

// Get returns one of owner's tasks.
func (s *Service) Get(ctx context.Context, owner, id ulid.ULID) (*Task, error) {
	return s.repo.Get(ctx, owner, id)
}

// Update applies a partial update to one of owner's tasks.
func (s *Service) Update(ctx context.Context, owner, id ulid.ULID, in UpdateInput) (*Task, error) {
	var title string
	if in.Title != nil {
		title = NormalizeTitle(*in.Title)
		if err := ValidateTitle(title); err != nil {
			return nil, err
		}
	}
	if in.Description != nil {
		if err := ValidateDescription(*in.Description); err != nil {
			return nil, err
		}
	}

	t, err := s.repo.Get(ctx, owner, id)
	if err != nil {
		return nil, err
	}
	if in.Title != nil {
		t.Title = title
	}
	if in.Description != nil {
		t.Description = *in.Description
	}
	if in.Done != nil {
		t.Done = *in.Done
	}
	t.UpdatedAt = s.now().UTC()

	if err := s.repo.Update(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// Delete removes one of owner's tasks.
func (s *Service) Delete(ctx context.Context, owner, id ulid.ULID) error {
	return s.repo.Delete(ctx, owner, id)
}
