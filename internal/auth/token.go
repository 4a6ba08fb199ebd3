// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// DefaultSessionTTL is the lifetime of a session token.
const DefaultSessionTTL = time.Hour

// MinSessionSecretLength is the minimum accepted signing key length in bytes.
const MinSessionSecretLength = 32

const tokenIssuer = "tasktrack"

// TokenCodec issues and verifies signed, self-contained session tokens.
// The signing secret is fixed for the lifetime of the codec.
type TokenCodec struct {
	secret []byte
	now    func() time.Time
	parser *jwt.Parser
}

// TokenCodecOption configures a TokenCodec.
type TokenCodecOption func(*TokenCodec)

// WithClock overrides the time source used to stamp and check tokens.
func WithClock(now func() time.Time) TokenCodecOption {
	return func(c *TokenCodec) {
		c.now = now
	}
}

// NewTokenCodec creates a TokenCodec signing with HS256 and secret.
func NewTokenCodec(secret []byte, opts ...TokenCodecOption) (*TokenCodec, error) {
	if len(secret) < MinSessionSecretLength {
		return nil, oops.Code("AUTH_SECRET_INVALID").
			With("min_length", MinSessionSecretLength).
			Errorf("session secret must be at least %d bytes", MinSessionSecretLength)
	}

	c := &TokenCodec{
		secret: append([]byte(nil), secret...),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.parser = jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithStrictDecoding(),
		jwt.WithTimeFunc(c.now),
	)
	return c, nil
}

// Issue returns a token asserting userID that expires ttl from now.
func (c *TokenCodec) Issue(userID ulid.ULID, ttl time.Duration) (string, time.Time, error) {
	if ttl <= 0 {
		return "", time.Time{}, oops.Code("SESSION_ISSUE_FAILED").
			With("ttl", ttl.String()).
			Errorf("session ttl must be positive")
	}

	now := c.now().UTC()
	expiresAt := now.Add(ttl)
	claims := jwt.RegisteredClaims{
		Issuer:    tokenIssuer,
		Subject:   userID.String(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", time.Time{}, oops.Code("SESSION_ISSUE_FAILED").Wrap(err)
	}
	// NumericDate has second precision; report what the token actually carries.
	return token, claims.ExpiresAt.Time, nil
}

// Verify checks the token's signature and expiry and returns the user ID it
// asserts. Expired tokens fail with CodeSessionExpired, anything else that
// does not verify fails with CodeSessionInvalid.
func (c *TokenCodec) Verify(token string) (ulid.ULID, error) {
	var claims jwt.RegisteredClaims
	_, err := c.parser.ParseWithClaims(token, &claims, func(_ *jwt.Token) (any, error) {
		return c.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return ulid.ULID{}, oops.Code(CodeSessionExpired).Errorf("session token has expired")
		}
		return ulid.ULID{}, oops.Code(CodeSessionInvalid).Errorf("session token is invalid")
	}

	userID, err := ulid.ParseStrict(claims.Subject)
	if err != nil {
		return ulid.ULID{}, oops.Code(CodeSessionInvalid).Errorf("session token subject is invalid")
	}
	return userID, nil
}
