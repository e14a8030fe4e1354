package registry

import (
	"context"

	qerrors "github.com/drblury/queueflow/internal/runtime/errors"
	"github.com/drblury/queueflow/internal/runtime/events"
	"github.com/drblury/queueflow/internal/runtime/transport"
)

// Calls runs transport calls against a queue, reporting each one on Bus and
// wrapping failures in a classified TransportError.
type Calls struct {
	Bus      *events.Bus
	Classify transport.Classifier
}

func (c Calls) Send(ctx context.Context, q *Queue, client transport.Transport, in transport.SendInput) (transport.SendOutput, error) {
	in.QueueURL = q.URL
	info := events.CallInfo{Operation: events.OpSend, Queue: q.Name(), Attributes: in.Attributes}

	var out transport.SendOutput
	err := c.Bus.Track(info, func() error {
		if client == nil {
			return qerrors.ErrTransportRequired
		}
		var err error
		out, err = client.Send(ctx, in)
		return c.wrap(events.OpSend, q, err)
	})
	return out, err
}

func (c Calls) Receive(ctx context.Context, q *Queue, client transport.Transport, in transport.ReceiveInput, reader int) ([]transport.Message, error) {
	in.QueueURL = q.URL
	info := events.CallInfo{Operation: events.OpReceive, Queue: q.Name(), Reader: reader}

	var msgs []transport.Message
	err := c.Bus.Track(info, func() error {
		if client == nil {
			return qerrors.ErrTransportRequired
		}
		var err error
		msgs, err = client.Receive(ctx, in)
		return c.wrap(events.OpReceive, q, err)
	})
	return msgs, err
}

func (c Calls) Delete(ctx context.Context, q *Queue, client transport.Transport, msg transport.Message, reader int) error {
	info := events.CallInfo{Operation: events.OpDelete, Queue: q.Name(), MessageID: msg.ID, Reader: reader}
	return c.Bus.Track(info, func() error {
		if client == nil {
			return qerrors.ErrTransportRequired
		}
		return c.wrap(events.OpDelete, q, client.Delete(ctx, q.URL, msg.ReceiptHandle))
	})
}

func (c Calls) wrap(op string, q *Queue, err error) error {
	if err == nil {
		return nil
	}
	classify := c.Classify
	if classify == nil {
		classify = transport.Classify
	}
	return &qerrors.TransportError{Operation: op, Queue: q.Name(), Class: classify(err), Cause: err}
}
