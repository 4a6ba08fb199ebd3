// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package httpapi

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"

	"github.com/samber/oops"

	"github.com/holomush/tasktrack/internal/logging"
	"github.com/holomush/tasktrack/internal/observability"
)

const unmatchedRoute = "unmatched"

// requestLogger installs a request-scoped logger and records one log line and
// one metric sample per request.
func requestLogger(base *slog.Logger, metrics *observability.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			logger := base.With(
				"request_id", middleware.GetReqID(r.Context()),
				"method", r.Method,
				"path", r.URL.Path,
			)
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r.WithContext(logging.WithLogger(r.Context(), logger)))

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			elapsed := time.Since(start)
			route := routePattern(r)

			logger.InfoContext(r.Context(), "request completed",
				"route", route,
				"status", status,
				"bytes", ww.BytesWritten(),
				"duration_ms", elapsed.Milliseconds(),
			)
			if metrics != nil {
				metrics.RequestsTotal.WithLabelValues(route, r.Method, strconv.Itoa(status)).Inc()
				metrics.RequestDuration.WithLabelValues(route, r.Method).Observe(elapsed.Seconds())
			}
		})
	}
}

// recoverer turns a handler panic into a logged 500. http.ErrAbortHandler is
// re-raised so net/http can abort the response.
func recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler { //nolint:errorlint // sentinel compared by identity
				panic(rec)
			}
			err, ok := rec.(error)
			if !ok {
				err = oops.Errorf("%v", rec)
			}
			writeError(w, r, oops.Code("HTTP_HANDLER_PANIC").
				With("route", routePattern(r)).
				Wrapf(err, "handler panicked"))
		}()
		next.ServeHTTP(w, r)
	})
}

// routePattern keeps metric labels bounded by using the matched route
// template instead of the raw path.
func routePattern(r *http.Request) string {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		return unmatchedRoute
	}
	if pattern := rctx.RoutePattern(); pattern != "" {
		return pattern
	}
	return unmatchedRoute
}
