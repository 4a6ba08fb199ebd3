// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package httpapi

import (
	"context"
	"net/http"

	"github.com/holomush/tasktrack/internal/auth"
	"github.com/holomush/tasktrack/internal/logging"
)

// Authorizer resolves the Authorization header of a request to a user.
type Authorizer interface {
	Authorize(ctx context.Context, authorization string) (*auth.User, error)
}

type userKey struct{}

// WithUser returns a copy of ctx carrying the authenticated user.
func WithUser(ctx context.Context, user *auth.User) context.Context {
	return context.WithValue(ctx, userKey{}, user)
}

// UserFromContext returns the user stored by RequireAuth.
func UserFromContext(ctx context.Context) (*auth.User, bool) {
	user, ok := ctx.Value(userKey{}).(*auth.User)
	return user, ok && user != nil
}

// RequireAuth rejects requests without a valid bearer session. Accepted
// requests carry the user in their context and in the request logger.
func RequireAuth(guard Authorizer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, err := guard.Authorize(r.Context(), r.Header.Get("Authorization"))
			if err != nil {
				writeError(w, r, err)
				return
			}
			ctx := WithUser(r.Context(), user)
			ctx = logging.WithLogger(ctx, logging.FromContext(ctx).With("user_id", user.ID.String()))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
