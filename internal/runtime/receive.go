package runtime

import (
	"context"
	"time"

	jsoncodec "github.com/drblury/queueflow/internal/runtime/jsoncodec"
	loggingpkg "github.com/drblury/queueflow/internal/runtime/logging"
	pipelinepkg "github.com/drblury/queueflow/internal/runtime/pipeline"
	transportpkg "github.com/drblury/queueflow/internal/runtime/transport"
)

// ReceiveOptions configure a direct receive.
type ReceiveOptions struct {
	// MaxMessages is clamped to 1..10.
	MaxMessages int32
	// WaitTime enables long polling.
	WaitTime time.Duration
	// VisibilityTimeout hides received messages for this long.
	VisibilityTimeout time.Duration
	// NoParse skips body decoding; Payload stays nil.
	NoParse bool
}

// Received is one message returned by Receive.
type Received struct {
	// Payload is the decoded JSON body, or nil when NoParse is set or the
	// body is not valid JSON.
	Payload any
	Message transportpkg.Message
}

// Receive pulls messages from a logical queue without a subscription. The
// caller acknowledges them with Ack.
func (c *Client) Receive(ctx context.Context, queue string, opts ReceiveOptions) ([]Received, error) {
	q, err := c.queues.Get(queue)
	if err != nil {
		return nil, err
	}

	msgs, err := c.calls.Receive(ctx, q, q.Client(), transportpkg.ReceiveInput{
		MaxMessages:       opts.MaxMessages,
		WaitTime:          opts.WaitTime,
		VisibilityTimeout: opts.VisibilityTimeout,
	}, 0)
	if err != nil {
		return nil, err
	}

	out := make([]Received, 0, len(msgs))
	for _, msg := range msgs {
		r := Received{Message: msg}
		if !opts.NoParse {
			r.Payload = c.parse(queue, msg)
		}
		out = append(out, r)
	}
	return out, nil
}

func (c *Client) parse(queue string, msg transportpkg.Message) any {
	body, err := pipelinepkg.Body(msg)
	if err == nil {
		var v any
		if err = jsoncodec.Unmarshal(body, &v); err == nil {
			return v
		}
	}
	c.Logger.Warn("Invalid JSON in received message", loggingpkg.LogFields{
		"queue":      queue,
		"message_id": msg.ID,
		"error":      err.Error(),
	})
	return nil
}

// Ack deletes a message received from queue.
func (c *Client) Ack(ctx context.Context, queue string, msg transportpkg.Message) error {
	q, err := c.queues.Get(queue)
	if err != nil {
		return err
	}
	return c.calls.Delete(ctx, q, q.Client(), msg, 0)
}
