// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package postgres_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/tasktrack/internal/auth"
	"github.com/holomush/tasktrack/internal/task"
	"github.com/holomush/tasktrack/internal/task/postgres"
	"github.com/holomush/tasktrack/pkg/errutil"
)

var taskCols = []string{"id", "owner_id", "title", "description", "done", "created_at", "updated_at"}

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err, "failed to create mock")
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet(), "unfulfilled expectations")
		mock.Close()
	})
	return mock
}

func TestTaskRepository_Create(t *testing.T) {
	now := time.Now().UTC()
	tk := &task.Task{ID: ulid.Make(), OwnerID: ulid.Make(), Title: "buy milk", CreatedAt: now, UpdatedAt: now}

	t.Run("inserts", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectExec(`INSERT INTO tasks`).
			WithArgs(tk.ID.String(), tk.OwnerID.String(), "buy milk", "", false, now, now).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		require.NoError(t, postgres.NewTaskRepository(mock).Create(context.Background(), tk))
	})

	t.Run("foreign key failure", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectExec(`INSERT INTO tasks`).
			WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
				pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
			WillReturnError(errors.New("violates foreign key constraint"))
		err := postgres.NewTaskRepository(mock).Create(context.Background(), tk)
		errutil.AssertErrorCode(t, err, "TASK_CREATE_FAILED")
	})
}

func TestTaskRepository_Get(t *testing.T) {
	owner, id := ulid.Make(), ulid.Make()
	created := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)

	t.Run("found", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectQuery(`SELECT .+ FROM tasks WHERE id = \$1 AND owner_id = \$2`).
			WithArgs(id.String(), owner.String()).
			WillReturnRows(pgxmock.NewRows(taskCols).
				AddRow(id.String(), owner.String(), "title", "desc", true, created, created))

		got, err := postgres.NewTaskRepository(mock).Get(context.Background(), owner, id)
		require.NoError(t, err)
		assert.Equal(t, id, got.ID)
		assert.Equal(t, owner, got.OwnerID)
		assert.True(t, got.Done)
	})

	t.Run("missing or foreign", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectQuery(`SELECT .+ FROM tasks WHERE id = \$1 AND owner_id = \$2`).
			WithArgs(id.String(), owner.String()).
			WillReturnRows(pgxmock.NewRows(taskCols))

		_, err := postgres.NewTaskRepository(mock).Get(context.Background(), owner, id)
		errutil.AssertErrorCode(t, err, task.CodeNotFound)
		assert.ErrorIs(t, err, auth.ErrNotFound)
	})
}

func TestTaskRepository_List(t *testing.T) {
	owner := ulid.Make()
	first, second := ulid.Make(), ulid.Make()
	now := time.Now().UTC()

	t.Run("returns rows in query order", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectQuery(`SELECT .+ FROM tasks WHERE owner_id = \$1 ORDER BY created_at DESC`).
			WithArgs(owner.String()).
			WillReturnRows(pgxmock.NewRows(taskCols).
				AddRow(second.String(), owner.String(), "newer", "", false, now, now).
				AddRow(first.String(), owner.String(), "older", "", false, now.Add(-time.Hour), now))

		got, err := postgres.NewTaskRepository(mock).List(context.Background(), owner)
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "newer", got[0].Title)
		assert.Equal(t, "older", got[1].Title)
	})

	t.Run("empty list is not nil", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectQuery(`SELECT .+ FROM tasks WHERE owner_id = \$1`).
			WithArgs(owner.String()).
			WillReturnRows(pgxmock.NewRows(taskCols))

		got, err := postgres.NewTaskRepository(mock).List(context.Background(), owner)
		require.NoError(t, err)
		assert.NotNil(t, got)
		assert.Empty(t, got)
	})

	t.Run("query error", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectQuery(`SELECT .+ FROM tasks WHERE owner_id = \$1`).
			WithArgs(owner.String()).
			WillReturnError(errors.New("connection refused"))

		_, err := postgres.NewTaskRepository(mock).List(context.Background(), owner)
		errutil.AssertErrorCode(t, err, "TASK_LIST_FAILED")
	})
}

func TestTaskRepository_UpdateAndDelete(t *testing.T) {
	now := time.Now().UTC()
	tk := &task.Task{ID: ulid.Make(), OwnerID: ulid.Make(), Title: "t", Done: true, UpdatedAt: now}

	t.Run("update", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectExec(`UPDATE tasks SET title = \$3`).
			WithArgs(tk.ID.String(), tk.OwnerID.String(), "t", "", true, now).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))
		require.NoError(t, postgres.NewTaskRepository(mock).Update(context.Background(), tk))
	})

	t.Run("update foreign task", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectExec(`UPDATE tasks SET title = \$3`).
			WithArgs(tk.ID.String(), tk.OwnerID.String(), "t", "", true, now).
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))
		err := postgres.NewTaskRepository(mock).Update(context.Background(), tk)
		errutil.AssertErrorCode(t, err, task.CodeNotFound)
	})

	t.Run("delete", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectExec(`DELETE FROM tasks WHERE id = \$1 AND owner_id = \$2`).
			WithArgs(tk.ID.String(), tk.OwnerID.String()).
			WillReturnResult(pgxmock.NewResult("DELETE", 1))
		require.NoError(t, postgres.NewTaskRepository(mock).Delete(context.Background(), tk.OwnerID, tk.ID))
	})

	t.Run("delete missing", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectExec(`DELETE FROM tasks`).
			WithArgs(tk.ID.String(), tk.OwnerID.String()).
			WillReturnResult(pgxmock.NewResult("DELETE", 0))
		err := postgres.NewTaskRepository(mock).Delete(context.Background(), tk.OwnerID, tk.ID)
		errutil.AssertErrorCode(t, err, task.CodeNotFound)
	})
}
