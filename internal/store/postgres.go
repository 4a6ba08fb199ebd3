// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package store provides the PostgreSQL connection pool, shared query helpers
// and schema migrations.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
)

// DB is the query surface repositories need. *pgxpool.Pool satisfies it, as
// does pgxmock's pool in tests.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

var _ DB = (*pgxpool.Pool)(nil)

// Default connection settings.
const (
	DefaultConnectTimeout = 30 * time.Second
	connectRetryBase      = 250 * time.Millisecond
	connectRetryCap       = 5 * time.Second
)

type pinger interface {
	Ping(ctx context.Context) error
}

// Open creates a connection pool for databaseURL and waits until the database
// answers a ping or connectTimeout elapses.
func Open(ctx context.Context, databaseURL string, connectTimeout time.Duration) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, oops.Code("DB_CONFIG_INVALID").With("operation", "parse database url").Wrap(err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, oops.Code("DB_CONNECT_FAILED").With("operation", "create pool").Wrap(err)
	}

	if connectTimeout <= 0 {
		connectTimeout = DefaultConnectTimeout
	}
	if err := waitForDatabase(ctx, pool, connectBackoff(), connectTimeout); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

func connectBackoff() retry.Backoff {
	return retry.WithCappedDuration(connectRetryCap, retry.NewExponential(connectRetryBase))
}

// waitForDatabase pings until success, retrying with backoff until timeout.
func waitForDatabase(ctx context.Context, db pinger, backoff retry.Backoff, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	attempts := 0
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempts++
		if err := db.Ping(ctx); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		return oops.Code("DB_CONNECT_FAILED").
			With("operation", "ping database").
			With("attempts", attempts).
			With("timeout", timeout.String()).
			Wrap(err)
	}
	return nil
}

// UniqueViolation reports whether err is a unique constraint violation and,
// if so, the name of the violated constraint.
func UniqueViolation(err error) (string, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
		return pgErr.ConstraintName, true
	}
	return "", false
}

// IsNoRows reports whether err means a query matched no rows.
func IsNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
