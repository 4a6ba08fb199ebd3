// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package postgres provides the PostgreSQL implementation of task.Repository.
package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/holomush/tasktrack/internal/store"
	"github.com/holomush/tasktrack/internal/task"
)

const taskColumns = `id, owner_id, title, description, done, created_at, updated_at`

// TaskRepository implements task.Repository using PostgreSQL.
type TaskRepository struct {
	db store.DB
}

var _ task.Repository = (*TaskRepository)(nil)

// NewTaskRepository creates a new TaskRepository.
func NewTaskRepository(db store.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

// Create inserts a task.
func (r *TaskRepository) Create(ctx context.Context, t *task.Task) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO tasks (id, owner_id, title, description, done, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, t.ID.String(), t.OwnerID.String(), t.Title, t.Description, t.Done, t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return oops.Code("TASK_CREATE_FAILED").
			With("operation", "insert task").
			With("owner_id", t.OwnerID.String()).
			Wrap(err)
	}
	return nil
}

// Get retrieves one of the owner's tasks.
func (r *TaskRepository) Get(ctx context.Context, ownerID, id ulid.ULID) (*task.Task, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE id = $1 AND owner_id = $2`,
		id.String(), ownerID.String())

	t, err := scanTask(row)
	if store.IsNoRows(err) {
		return nil, task.NotFound(id)
	}
	if err != nil {
		return nil, oops.Code("TASK_GET_FAILED").With("task_id", id.String()).Wrap(err)
	}
	return t, nil
}

// List returns the owner's tasks, newest first.
func (r *TaskRepository) List(ctx context.Context, ownerID ulid.ULID) ([]*task.Task, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE owner_id = $1 ORDER BY created_at DESC, id DESC`,
		ownerID.String())
	if err != nil {
		return nil, oops.Code("TASK_LIST_FAILED").With("owner_id", ownerID.String()).Wrap(err)
	}
	defer rows.Close()

	tasks := []*task.Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, oops.Code("TASK_LIST_FAILED").With("operation", "scan task").Wrap(err)
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, oops.Code("TASK_LIST_FAILED").With("operation", "iterate tasks").Wrap(err)
	}
	return tasks, nil
}

// Update stores the task's mutable fields.
func (r *TaskRepository) Update(ctx context.Context, t *task.Task) error {
	result, err := r.db.Exec(ctx, `
		UPDATE tasks SET title = $3, description = $4, done = $5, updated_at = $6
		WHERE id = $1 AND owner_id = $2
	`, t.ID.String(), t.OwnerID.String(), t.Title, t.Description, t.Done, t.UpdatedAt)
	if err != nil {
		return oops.Code("TASK_UPDATE_FAILED").With("task_id", t.ID.String()).Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return task.NotFound(t.ID)
	}
	return nil
}

// Delete removes one of the owner's tasks.
func (r *TaskRepository) Delete(ctx context.Context, ownerID, id ulid.ULID) error {
	result, err := r.db.Exec(ctx,
		`DELETE FROM tasks WHERE id = $1 AND owner_id = $2`,
		id.String(), ownerID.String())
	if err != nil {
		return oops.Code("TASK_DELETE_FAILED").With("task_id", id.String()).Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return task.NotFound(id)
	}
	return nil
}

func scanTask(row pgx.Row) (*task.Task, error) {
	var (
		t              task.Task
		idStr, ownerID string
	)
	if err := row.Scan(&idStr, &ownerID, &t.Title, &t.Description, &t.Done, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, err //nolint:wrapcheck // callers wrap with context
	}
	var err error
	if t.ID, err = ulid.Parse(idStr); err != nil {
		return nil, oops.Code("TASK_CORRUPT_ID").With("id", idStr).Wrap(err)
	}
	if t.OwnerID, err = ulid.Parse(ownerID); err != nil {
		return nil, oops.Code("TASK_CORRUPT_ID").With("owner_id", ownerID).Wrap(err)
	}
	return &t, nil
}
