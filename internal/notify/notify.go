// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package notify delivers auth.Message notifications to users by email,
// through a message queue, or only to the log.
package notify

import (
	"github.com/samber/oops"

	"github.com/holomush/tasktrack/internal/auth"
)

// Notifier kinds accepted in configuration.
const (
	KindLog  = "log"
	KindSMTP = "smtp"
	KindAMQP = "amqp"
)

func sendFailed(kind string, msg auth.Message, err error) error {
	return oops.Code(auth.CodeNotifyFailed).
		With("notifier", kind).
		With("subject", msg.Subject).
		Wrap(err)
}
