// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"net/url"
	"strings"
	"time"

	"github.com/samber/oops"
)

// Reset token configuration.
const (
	ResetTokenBytes      = 32               // 256 bits of entropy
	DefaultResetTokenTTL = 30 * time.Minute // validity window of a reset link
)

// ResetPathPrefix is the path segment that precedes the token in reset links.
// Links already sent by email depend on this shape.
const ResetPathPrefix = "/reset-password/"

// GenerateResetToken returns a URL-safe token drawn from crypto/rand.
// The token is shown to the user once; only HashResetToken(token) is stored.
func GenerateResetToken() (string, error) {
	b := make([]byte, ResetTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", oops.Code("RESET_TOKEN_GENERATE_FAILED").Wrap(err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// HashResetToken returns the hex SHA-256 digest under which a reset token is
// stored and looked up.
func HashResetToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}

// ResetLink builds the link sent to the user: baseURL followed by
// ResetPathPrefix and the escaped token.
func ResetLink(baseURL, token string) string {
	return strings.TrimRight(baseURL, "/") + ResetPathPrefix + url.PathEscape(token)
}
