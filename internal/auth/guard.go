// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/samber/oops"

	"github.com/holomush/tasktrack/pkg/errutil"
)

const bearerPrefix = "Bearer "

// ParseBearer extracts the token from an Authorization header value of the
// exact form "Bearer <token>".
func ParseBearer(header string) (string, error) {
	token, ok := strings.CutPrefix(header, bearerPrefix)
	if !ok || token == "" || strings.ContainsAny(token, " \t\r\n") {
		return "", oops.Code(CodeTokenMissing).Errorf("missing or malformed bearer token")
	}
	return token, nil
}

// Guard resolves the bearer token of a protected request to its user.
type Guard struct {
	tokens *TokenCodec
	users  UserDirectory
}

// NewGuard creates a Guard.
func NewGuard(tokens *TokenCodec, users UserDirectory) (*Guard, error) {
	if tokens == nil {
		return nil, oops.Errorf("token codec is required")
	}
	if users == nil {
		return nil, oops.Errorf("user directory is required")
	}
	return &Guard{tokens: tokens, users: users}, nil
}

// Authorize verifies the Authorization header and returns the user it names.
// It fails with CodeTokenMissing, CodeSessionInvalid or CodeSessionExpired.
// A token for a user that no longer exists is CodeSessionInvalid.
func (g *Guard) Authorize(ctx context.Context, authorization string) (*User, error) {
	token, err := ParseBearer(authorization)
	if err != nil {
		return nil, err
	}

	userID, err := g.tokens.Verify(token)
	if err != nil {
		return nil, err
	}

	user, err := g.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, oops.Code(CodeSessionInvalid).
				With("user_id", userID.String()).
				Errorf("session user no longer exists")
		}
		return nil, oops.Code(CodeSessionValidateFailed).
			With("operation", "get user by id").
			Wrap(errutil.Seal(err))
	}
	return user, nil
}
