package pipeline

import (
	"context"
	"time"

	"github.com/drblury/queueflow/internal/runtime/attributes"
	qerrors "github.com/drblury/queueflow/internal/runtime/errors"
	"github.com/drblury/queueflow/internal/runtime/events"
	"github.com/drblury/queueflow/internal/runtime/logging"
	"github.com/drblury/queueflow/internal/runtime/transport"
)

// Outcome tells the caller what to do with a message after Decode.
type Outcome int

const (
	// OutcomeRetry leaves the message for transport redelivery.
	OutcomeRetry Outcome = iota
	// OutcomeAck means the handler succeeded.
	OutcomeAck
	// OutcomeDeadLettered means the message was republished to a dead-letter queue.
	OutcomeDeadLettered
)

// Ack reports whether the message may be deleted.
func (o Outcome) Ack() bool {
	return o == OutcomeAck || o == OutcomeDeadLettered
}

func (o Outcome) String() string {
	switch o {
	case OutcomeAck:
		return "ack"
	case OutcomeDeadLettered:
		return "dead-lettered"
	default:
		return "retry"
	}
}

// Publisher republishes dead-lettered messages by logical queue name.
type Publisher interface {
	Publish(ctx context.Context, queue string, payload any, opts EncodeOptions) (transport.SendOutput, error)
}

// DeadLetterRecorder counts reroutes.
type DeadLetterRecorder interface {
	RecordDeadLetter(queue, target string)
}

// ContextFunc decorates the per-message context before the handler runs.
type ContextFunc func(ctx context.Context, msg transport.Message) context.Context

// Inbound is one received message and the reader that received it.
type Inbound struct {
	Message transport.Message
	// Reader is the 1-based reader index, or zero outside a consumer.
	Reader int
}

// Decoder runs the receive side of the pipeline for one queue. The decoder
// never acknowledges messages itself; the caller deletes the message when
// the returned Outcome allows it.
type Decoder struct {
	Queue string
	// DeadLetter is the queue's configured dead-letter target.
	DeadLetter  string
	Publisher   Publisher
	Logger      logging.ServiceLogger
	Events      *events.Bus
	Recorder    DeadLetterRecorder
	ContextFunc ContextFunc
}

// Decode parses the message, runs h and handles dead-letter directives.
// Failures are logged here and returned as a MessageError marked as
// already logged.
func (d *Decoder) Decode(ctx context.Context, in Inbound, h Handler) (Outcome, error) {
	msg := in.Message
	info := events.CallInfo{
		Operation:  events.OpHandle,
		Queue:      d.Queue,
		MessageID:  msg.ID,
		Attributes: msg.Attributes.Clone(),
		Reader:     in.Reader,
		StartedAt:  time.Now(),
	}
	d.Events.Start(info)

	logger := d.logger().With(logging.LogFields{"queue": d.Queue, "message_id": msg.ID})
	if d.ContextFunc != nil {
		ctx = d.ContextFunc(ctx, msg)
	}

	attrs := msg.Attributes.Clone()
	correlationID := attrs.Get(attributes.CorrelationID)
	ctx = WithCorrelationID(ctx, correlationID)
	ctx, span := startHandleSpan(ctx, d.Queue, msg.ID, correlationID)

	outcome, err := d.decode(ctx, msg, attrs, h, logger)
	EndSpan(span, err)

	info.Duration = time.Since(info.StartedAt)
	if err != nil {
		merr := qerrors.MessageError{Queue: d.Queue, MessageID: msg.ID, AlreadyLogged: true, Cause: err}
		info.Err = merr
		d.Events.Error(info)
		return outcome, merr
	}
	d.Events.Finish(info)
	return outcome, nil
}

func (d *Decoder) decode(ctx context.Context, msg transport.Message, attrs attributes.Attributes, h Handler, logger logging.ServiceLogger) (Outcome, error) {
	body, err := Body(msg)
	if err == nil {
		delete(attrs, attributes.ContentEncoding)
	}
	var payload any
	if err == nil {
		payload, err = decodePayload(h, body)
	}
	if err != nil {
		perr := &qerrors.ParseError{Cause: err}
		logger.Error("Failed to parse message body as JSON", perr, nil)
		return OutcomeRetry, perr
	}

	herr := h.Handle(ctx, Delivery{
		Queue:        d.Queue,
		MessageID:    msg.ID,
		Payload:      payload,
		Body:         body,
		Attributes:   attrs,
		ReceiveCount: msg.ReceiveCount,
		Logger:       logger,
	})
	if herr == nil {
		return OutcomeAck, nil
	}

	if directive, ok := qerrors.DeadLetterDirective(herr); ok {
		target := directive.Target
		if directive.UseConfigured {
			target = d.DeadLetter
		}
		if target != "" {
			return d.republish(ctx, msg, target, herr, logger)
		}
		logger.Error("Received dead-letter error but queue has no dead-letter target configured", herr, nil)
		return OutcomeRetry, &qerrors.HandlerError{Cause: herr}
	}

	if !qerrors.IsAlreadyLogged(herr) {
		logger.Error("Failed to handle message", herr, nil)
	}
	return OutcomeRetry, &qerrors.HandlerError{Cause: herr}
}

// Body returns the message body, inflated when its Content-Encoding
// attribute names the deflate codec.
func Body(msg transport.Message) ([]byte, error) {
	if Compression(msg.Attributes.Get(attributes.ContentEncoding)) == CompressionDeflate {
		return inflate(msg.Body)
	}
	return []byte(msg.Body), nil
}

// missingErrorDetail stands in for handler errors with an empty message. SQS
// rejects String attributes without a value.
const missingErrorDetail = "handler failed without detail"

// republish sends the original undecoded body and attributes to target with
// the failure recorded in ErrorDetail.
func (d *Decoder) republish(ctx context.Context, msg transport.Message, target string, cause error, logger logging.ServiceLogger) (Outcome, error) {
	if d.Publisher == nil {
		logger.Error("Dead-letter publisher is not configured", cause, logging.LogFields{"dead_letter": target})
		return OutcomeRetry, &qerrors.HandlerError{Cause: cause}
	}

	detail := cause.Error()
	if detail == "" {
		detail = missingErrorDetail
	}
	attrs := msg.Attributes.With(attributes.ErrorDetail, detail)
	if _, err := d.Publisher.Publish(ctx, target, msg.Body, EncodeOptions{Raw: true, Attributes: attrs}); err != nil {
		logger.Error("Failed to publish to dead-letter queue", err, logging.LogFields{"dead_letter": target})
		return OutcomeRetry, err
	}

	if d.Recorder != nil {
		d.Recorder.RecordDeadLetter(d.Queue, target)
	}
	logger.Warn("Message rerouted to dead-letter queue", logging.LogFields{
		"dead_letter": target,
		"reason":      detail,
	})
	return OutcomeDeadLettered, nil
}

func (d *Decoder) logger() logging.ServiceLogger {
	if d.Logger == nil {
		return logging.NopLogger()
	}
	return d.Logger
}
