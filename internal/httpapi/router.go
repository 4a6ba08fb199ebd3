// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package httpapi exposes the auth flows and the task resource over HTTP.
package httpapi

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/samber/oops"

	"github.com/holomush/tasktrack/internal/avatar"
	"github.com/holomush/tasktrack/internal/observability"
)

// bodyOverhead is added to the avatar limit to leave room for the text
// fields and multipart framing of a registration request.
const bodyOverhead = 64 << 10

// RouterConfig holds the dependencies of NewRouter.
type RouterConfig struct {
	Auth  AuthService
	Tasks TaskService
	Guard Authorizer
	// Logger is the base of every request logger. Nil means slog.Default().
	Logger *slog.Logger
	// Metrics is optional.
	Metrics *observability.Metrics
	// MaxAvatarBytes bounds request bodies. Zero means avatar.DefaultMaxBytes.
	MaxAvatarBytes int64
}

// NewRouter builds the API routes under /api/v1.
func NewRouter(cfg RouterConfig) (http.Handler, error) {
	if cfg.Auth == nil {
		return nil, oops.Errorf("auth service is required")
	}
	if cfg.Tasks == nil {
		return nil, oops.Errorf("task service is required")
	}
	if cfg.Guard == nil {
		return nil, oops.Errorf("guard is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.MaxAvatarBytes <= 0 {
		cfg.MaxAvatarBytes = avatar.DefaultMaxBytes
	}
	limit := cfg.MaxAvatarBytes + bodyOverhead

	authH := &authHandlers{service: cfg.Auth, bodyLimit: limit}
	taskH := &taskHandlers{service: cfg.Tasks, bodyLimit: bodyOverhead}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(cfg.Logger, cfg.Metrics))
	r.Use(recoverer)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, oops.Code(CodeNotFound).Errorf("no such route"))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", authH.register)
			r.Post("/login", authH.login)
			r.Post("/forgot-password", authH.forgotPassword)
			r.Post("/reset-password/{token}", authH.resetPassword)
		})

		r.Group(func(r chi.Router) {
			r.Use(RequireAuth(cfg.Guard))
			r.Get("/me", me)
			r.Route("/tasks", func(r chi.Router) {
				r.Get("/", taskH.list)
				r.Post("/", taskH.create)
				r.Get("/{id}", taskH.get)
				r.Patch("/{id}", taskH.update)
				r.Delete("/{id}", taskH.delete)
			})
		})
	})

	return r, nil
}
