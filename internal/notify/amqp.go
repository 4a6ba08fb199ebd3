// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package notify

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/samber/oops"

	"github.com/holomush/tasktrack/internal/auth"
)

// DefaultQueue is the queue email jobs are published to.
const DefaultQueue = "tasktrack.email"

// amqpChannel is the part of *amqp.Channel the notifier uses.
type amqpChannel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// AMQPNotifier publishes each message as a JSON email job to a durable
// queue; a separate mail worker delivers it.
type AMQPNotifier struct {
	conn    *amqp.Connection
	channel amqpChannel
	queue   string
	now     func() time.Time
}

var _ auth.Notifier = (*AMQPNotifier)(nil)

// DialAMQP connects to the broker at url and declares queue.
func DialAMQP(url, queue string) (*AMQPNotifier, error) {
	if queue == "" {
		queue = DefaultQueue
	}

	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, oops.Code("NOTIFY_CONNECT_FAILED").With("operation", "dial broker").Wrap(err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, oops.Code("NOTIFY_CONNECT_FAILED").With("operation", "open channel").Wrap(err)
	}

	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, oops.Code("NOTIFY_CONNECT_FAILED").
			With("operation", "declare queue").
			With("queue", queue).
			Wrap(err)
	}

	n := newAMQPNotifier(ch, queue)
	n.conn = conn
	return n, nil
}

func newAMQPNotifier(ch amqpChannel, queue string) *AMQPNotifier {
	return &AMQPNotifier{channel: ch, queue: queue, now: time.Now}
}

// Send publishes msg as a persistent JSON job.
func (n *AMQPNotifier) Send(ctx context.Context, msg auth.Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return sendFailed(KindAMQP, msg, err)
	}

	err = n.channel.PublishWithContext(ctx, "", n.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		Body:         body,
		DeliveryMode: amqp.Persistent,
		Timestamp:    n.now(),
	})
	if err != nil {
		return sendFailed(KindAMQP, msg, err)
	}
	return nil
}

// Close closes the channel and connection.
func (n *AMQPNotifier) Close() error {
	err := n.channel.Close()
	if n.conn != nil {
		err = errors.Join(err, n.conn.Close())
	}
	if err != nil {
		return oops.Code("NOTIFY_CLOSE_FAILED").Wrap(err)
	}
	return nil
}
