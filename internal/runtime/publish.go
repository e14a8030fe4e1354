package runtime

import (
	"context"

	attributespkg "github.com/drblury/queueflow/internal/runtime/attributes"
	pipelinepkg "github.com/drblury/queueflow/internal/runtime/pipeline"
	transportpkg "github.com/drblury/queueflow/internal/runtime/transport"
)

// PublishOptions customise one publish call.
type PublishOptions struct {
	// Attributes are sent as message attributes.
	Attributes attributespkg.Attributes
	// CorrelationID overrides the id inherited from ctx.
	CorrelationID string
	// Compression selects a body codec; only deflate is supported.
	Compression pipelinepkg.Compression
	// Raw sends a []byte or string payload without JSON encoding.
	Raw bool
	// DelaySeconds postpones delivery.
	DelaySeconds int32
	// GroupID and DeduplicationID are passed through for FIFO queues.
	GroupID         string
	DeduplicationID string
}

// Receipt is the result of a publish.
type Receipt struct {
	MessageID     string
	CorrelationID string
}

// Publish encodes payload and sends it to the logical queue. Encoding
// failures are returned before anything reaches the transport.
func (c *Client) Publish(ctx context.Context, queue string, payload any, opts PublishOptions) (Receipt, error) {
	return c.publish(ctx, queue, payload, pipelinepkg.EncodeOptions{
		Raw:           opts.Raw,
		Compression:   opts.Compression,
		CorrelationID: opts.CorrelationID,
		Attributes:    opts.Attributes,
	}, opts)
}

func (c *Client) publish(ctx context.Context, queue string, payload any, enc pipelinepkg.EncodeOptions, opts PublishOptions) (receipt Receipt, err error) {
	q, err := c.queues.Get(queue)
	if err != nil {
		return Receipt{}, err
	}

	ctx, span := pipelinepkg.StartPublishSpan(ctx, queue)
	defer func() { pipelinepkg.EndSpan(span, err) }()

	env, err := pipelinepkg.Encode(ctx, payload, enc)
	if err != nil {
		return Receipt{}, err
	}

	out, err := c.calls.Send(ctx, q, q.Client(), transportpkg.SendInput{
		Body:            env.Body,
		Attributes:      env.Attributes,
		DelaySeconds:    opts.DelaySeconds,
		GroupID:         opts.GroupID,
		DeduplicationID: opts.DeduplicationID,
	})
	if err != nil {
		return Receipt{}, err
	}
	return Receipt{MessageID: out.MessageID, CorrelationID: env.CorrelationID}, nil
}

// deadLetterPublisher lets the pipeline republish through the client.
type deadLetterPublisher struct {
	client *Client
}

func (p deadLetterPublisher) Publish(ctx context.Context, queue string, payload any, opts pipelinepkg.EncodeOptions) (transportpkg.SendOutput, error) {
	receipt, err := p.client.publish(ctx, queue, payload, opts, PublishOptions{})
	if err != nil {
		return transportpkg.SendOutput{}, err
	}
	return transportpkg.SendOutput{MessageID: receipt.MessageID}, nil
}
