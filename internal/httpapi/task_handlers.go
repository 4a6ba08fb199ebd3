// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package httpapi

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi"
	"github.com/go-chi/render"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/holomush/tasktrack/internal/task"
)

// TaskService is the owner-scoped task API used by the task routes.
type TaskService interface {
	Create(ctx context.Context, owner ulid.ULID, in task.CreateInput) (*task.Task, error)
	List(ctx context.Context, owner ulid.ULID) ([]*task.Task, error)
	Get(ctx context.Context, owner, id ulid.ULID) (*task.Task, error)
	Update(ctx context.Context, owner, id ulid.ULID, in task.UpdateInput) (*task.Task, error)
	Delete(ctx context.Context, owner, id ulid.ULID) error
}

type createTaskRequest task.CreateInput

func (req *createTaskRequest) bindForm(v url.Values) {
	req.Title = v.Get("title")
	req.Description = v.Get("description")
}

type updateTaskRequest task.UpdateInput

func (req *updateTaskRequest) bindForm(v url.Values) {
	if v.Has("title") {
		title := v.Get("title")
		req.Title = &title
	}
	if v.Has("description") {
		description := v.Get("description")
		req.Description = &description
	}
	if v.Has("done") {
		if done, err := strconv.ParseBool(v.Get("done")); err == nil {
			req.Done = &done
		}
	}
}

// TaskList wraps a list response.
type TaskList struct {
	Tasks []*task.Task `json:"tasks"`
}

type taskHandlers struct {
	service   TaskService
	bodyLimit int64
}

// owner returns the authenticated user's id. Routes using it sit behind
// RequireAuth.
func owner(r *http.Request) (ulid.ULID, error) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		return ulid.ULID{}, oops.Errorf("authenticated route without user")
	}
	return user.ID, nil
}

// taskID parses the {id} path segment. A malformed id cannot name an
// existing task, so it is reported as not found.
func taskID(r *http.Request) (ulid.ULID, error) {
	raw := chi.URLParam(r, "id")
	id, err := ulid.ParseStrict(raw)
	if err != nil {
		return ulid.ULID{}, oops.Code(task.CodeNotFound).With("task_id", raw).Errorf("task not found")
	}
	return id, nil
}

func (h *taskHandlers) list(w http.ResponseWriter, r *http.Request) {
	ownerID, err := owner(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	tasks, err := h.service.List(r.Context(), ownerID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if tasks == nil {
		tasks = []*task.Task{}
	}
	render.JSON(w, r, TaskList{Tasks: tasks})
}

func (h *taskHandlers) create(w http.ResponseWriter, r *http.Request) {
	ownerID, err := owner(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req createTaskRequest
	if err := decode(w, r, &req, h.bodyLimit); err != nil {
		writeError(w, r, err)
		return
	}
	created, err := h.service.Create(r.Context(), ownerID, task.CreateInput(req))
	if err != nil {
		writeError(w, r, err)
		return
	}
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, created)
}

func (h *taskHandlers) get(w http.ResponseWriter, r *http.Request) {
	ownerID, err := owner(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	id, err := taskID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	found, err := h.service.Get(r.Context(), ownerID, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	render.JSON(w, r, found)
}

func (h *taskHandlers) update(w http.ResponseWriter, r *http.Request) {
	ownerID, err := owner(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	id, err := taskID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req updateTaskRequest
	if err := decode(w, r, &req, h.bodyLimit); err != nil {
		writeError(w, r, err)
		return
	}
	updated, err := h.service.Update(r.Context(), ownerID, id, task.UpdateInput(req))
	if err != nil {
		writeError(w, r, err)
		return
	}
	render.JSON(w, r, updated)
}

func (h *taskHandlers) delete(w http.ResponseWriter, r *http.Request) {
	ownerID, err := owner(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	id, err := taskID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.service.Delete(r.Context(), ownerID, id); err != nil {
		writeError(w, r, err)
		return
	}
	render.NoContent(w, r)
}
