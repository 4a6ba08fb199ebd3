// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package tasktest provides an in-memory task.Repository.
package tasktest

import (
	"context"
	"sort"
	"sync"

	"github.com/oklog/ulid/v2"

	"github.com/holomush/tasktrack/internal/task"
)

// Repository is an in-memory task.Repository.
type Repository struct {
	mu    sync.Mutex
	tasks map[ulid.ULID]task.Task
}

var _ task.Repository = (*Repository)(nil)

// NewRepository creates an empty Repository.
func NewRepository() *Repository {
	return &Repository{tasks: make(map[ulid.ULID]task.Task)}
}

// Create stores a copy of t.
func (r *Repository) Create(_ context.Context, t *task.Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tasks[t.ID] = *t
	return nil
}

// Get returns a copy of the owner's task.
func (r *Repository) Get(_ context.Context, ownerID, id ulid.ULID) (*task.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[id]
	if !ok || t.OwnerID != ownerID {
		return nil, task.NotFound(id)
	}
	return &t, nil
}

// List returns the owner's tasks, newest first.
func (r *Repository) List(_ context.Context, ownerID ulid.ULID) ([]*task.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []*task.Task{}
	for _, t := range r.tasks {
		if t.OwnerID == ownerID {
			c := t
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID.Compare(out[j].ID) > 0
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// Update replaces the owner's task.
func (r *Repository) Update(_ context.Context, t *task.Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.tasks[t.ID]
	if !ok || existing.OwnerID != t.OwnerID {
		return task.NotFound(t.ID)
	}
	r.tasks[t.ID] = *t
	return nil
}

// Delete removes the owner's task.
func (r *Repository) Delete(_ context.Context, ownerID, id ulid.ULID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[id]
	if !ok || t.OwnerID != ownerID {
		return task.NotFound(id)
	}
	delete(r.tasks, id)
	return nil
}
