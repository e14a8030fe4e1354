// Package transport defines the narrow queue-service contract used by the
// queue client (send, receive, delete) together with the SQS and in-memory
// implementations.
package transport

import (
	"context"
	"time"

	"github.com/drblury/queueflow/internal/runtime/attributes"
)

// Message is one message as returned by Receive.
type Message struct {
	ID            string
	ReceiptHandle string
	Body          string
	Attributes    attributes.Attributes
	// ReceiveCount is the approximate number of times the message was received.
	ReceiveCount int
}

// SendInput describes one message to send.
type SendInput struct {
	QueueURL        string
	Body            string
	Attributes      attributes.Attributes
	DelaySeconds    int32
	GroupID         string
	DeduplicationID string
}

// SendOutput is the transport receipt for a sent message.
type SendOutput struct {
	MessageID string
}

// ReceiveInput configures one receive call.
type ReceiveInput struct {
	QueueURL string
	// MaxMessages is clamped to 1..10.
	MaxMessages int32
	// WaitTime enables long polling when positive.
	WaitTime time.Duration
	// VisibilityTimeout overrides the queue default when positive.
	VisibilityTimeout time.Duration
}

// Transport is the queue-service contract the core depends on.
type Transport interface {
	Send(ctx context.Context, in SendInput) (SendOutput, error)
	Receive(ctx context.Context, in ReceiveInput) ([]Message, error)
	Delete(ctx context.Context, queueURL, receiptHandle string) error
}

const maxBatch = 10

func clampBatch(n int32) int32 {
	if n <= 0 {
		return 1
	}
	if n > maxBatch {
		return maxBatch
	}
	return n
}
