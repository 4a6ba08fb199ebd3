// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"context"
	"fmt"
	"time"
)

// Message is an outbound notification addressed to a single recipient.
type Message struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// Notifier delivers messages to users. A failed Send never fails the request
// that triggered it.
type Notifier interface {
	Send(ctx context.Context, msg Message) error
}

// ResetSubject is the subject line of password reset messages.
const ResetSubject = "Password reset request"

// NewResetMessage composes the password reset message for user.
func NewResetMessage(user *User, link string, ttl time.Duration) Message {
	minutes := int(ttl.Round(time.Minute) / time.Minute)
	return Message{
		To:      user.Email,
		Subject: ResetSubject,
		Body: fmt.Sprintf(
			"Hello %s,\n\nUse the link below to reset your password (valid for %d minutes):\n\n%s\n\n"+
				"If you didn't request this, you can ignore this email.\n",
			user.Username, minutes, link,
		),
	}
}
