// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package authtest

import (
	"context"
	"sync"

	"github.com/holomush/tasktrack/internal/auth"
)

// Notifier records sent messages. When Err is set, Send records nothing and
// returns Err.
type Notifier struct {
	mu       sync.Mutex
	messages []auth.Message
	Err      error
}

// Send records msg.
func (n *Notifier) Send(_ context.Context, msg auth.Message) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.Err != nil {
		return n.Err
	}
	n.messages = append(n.messages, msg)
	return nil
}

// Messages returns the recorded messages.
func (n *Notifier) Messages() []auth.Message {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]auth.Message(nil), n.messages...)
}

// Last returns the most recent message and whether one was sent.
func (n *Notifier) Last() (auth.Message, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.messages) == 0 {
		return auth.Message{}, false
	}
	return n.messages[len(n.messages)-1], true
}
