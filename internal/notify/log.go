// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package notify

import (
	"context"
	"log/slog"
	"strings"

	"github.com/holomush/tasktrack/internal/auth"
)

// LogNotifier records that a message would have been sent. The body is
// never logged because it may carry a reset link.
type LogNotifier struct {
	logger *slog.Logger
}

var _ auth.Notifier = (*LogNotifier)(nil)

// NewLogNotifier creates a LogNotifier. A nil logger uses slog.Default().
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger}
}

// Send logs the recipient and subject.
func (n *LogNotifier) Send(ctx context.Context, msg auth.Message) error {
	n.logger.InfoContext(ctx, "notification not delivered, log notifier configured",
		"to", maskAddress(msg.To),
		"subject", msg.Subject)
	return nil
}

// maskAddress keeps the first character of the local part and the domain.
func maskAddress(addr string) string {
	local, domain, ok := strings.Cut(addr, "@")
	if !ok || local == "" {
		return "***"
	}
	return local[:1] + "***@" + domain
}
