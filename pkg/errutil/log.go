// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package errutil contains helpers for working with oops errors.
package errutil

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/samber/oops"
)

// Code returns the oops code carried by err, or "" when err has none.
// oops reports the deepest code in a wrap chain; wrap a cause with Seal to
// make the wrapping code the reported one.
func Code(err error) string {
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return ""
	}
	switch code := any(oopsErr.Code()).(type) {
	case nil:
		return ""
	case string:
		return code
	default:
		return fmt.Sprint(code)
	}
}

// Attrs returns slog attributes describing err. For oops errors the code and
// context are included alongside the message.
func Attrs(err error) []any {
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return []any{"error", err}
	}
	attrs := []any{"error", oopsErr.Error()}
	if code := Code(err); code != "" {
		attrs = append(attrs, "code", code)
	}
	if errCtx := oopsErr.Context(); len(errCtx) > 0 {
		attrs = append(attrs, "context", errCtx)
	}
	var s sealed
	if errors.As(err, &s) {
		if code := Code(s.err); code != "" {
			attrs = append(attrs, "cause_code", code)
		}
		if causeErr, ok := oops.AsOops(s.err); ok && len(causeErr.Context()) > 0 {
			attrs = append(attrs, "cause_context", causeErr.Context())
		}
	}
	return attrs
}

// Seal hides the oops code and context of err from errors that wrap it, so
// the wrapping error's code is the one Code reports. errors.Is still sees
// through the seal; errors.As does not.
func Seal(err error) error {
	if err == nil {
		return nil
	}
	return sealed{err: err}
}

type sealed struct {
	err error
}

func (s sealed) Error() string { return s.err.Error() }

func (s sealed) Is(target error) bool { return errors.Is(s.err, target) }

// LogError logs err at ERROR with its structured oops details.
func LogError(logger *slog.Logger, msg string, err error) {
	logger.Error(msg, Attrs(err)...)
}

// LogWarn logs err at WARN with its structured oops details plus extra
// attributes. It is used for failures that are handled but must stay visible.
func LogWarn(ctx context.Context, logger *slog.Logger, msg string, err error, extra ...any) {
	logger.WarnContext(ctx, msg, append(Attrs(err), extra...)...)
}
