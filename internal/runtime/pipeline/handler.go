package pipeline

import (
	"context"
	"fmt"
	"reflect"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"

	"github.com/drblury/queueflow/internal/runtime/attributes"
	qerrors "github.com/drblury/queueflow/internal/runtime/errors"
	"github.com/drblury/queueflow/internal/runtime/jsoncodec"
	"github.com/drblury/queueflow/internal/runtime/logging"
)

// Delivery is a decoded message as seen by a handler.
type Delivery struct {
	Queue     string
	MessageID string
	// Payload is the decoded body. Its type depends on the handler.
	Payload any
	// Body is the JSON body after decompression.
	Body []byte
	// Attributes is a private copy without the Content-Encoding attribute.
	Attributes   attributes.Attributes
	ReceiveCount int
	Logger       logging.ServiceLogger
}

// CorrelationID returns the correlation id the message was published with.
func (d Delivery) CorrelationID() string {
	return d.Attributes.Get(attributes.CorrelationID)
}

// Handler processes delivered messages. Returning a DeadLetterError reroutes
// the message; any other error leaves it for redelivery.
type Handler interface {
	Handle(ctx context.Context, d Delivery) error
}

// HandlerFunc adapts a function to Handler. The payload is decoded into
// generic JSON values (map[string]any, []any, string, float64, bool, nil).
type HandlerFunc func(ctx context.Context, d Delivery) error

func (f HandlerFunc) Handle(ctx context.Context, d Delivery) error {
	return f(ctx, d)
}

// PayloadDecoder is implemented by handlers that decode the body into their
// own type. Handlers without it receive generic JSON values.
type PayloadDecoder interface {
	DecodePayload(body []byte) (any, error)
}

func decodePayload(h Handler, body []byte) (any, error) {
	if dec, ok := h.(PayloadDecoder); ok {
		return dec.DecodePayload(body)
	}
	var v any
	if err := jsoncodec.Unmarshal(body, &v); err != nil {
		return nil, err
	}
	return v, nil
}

// JSONHandler is a Handler receiving the body decoded into T.
type JSONHandler[T any] func(ctx context.Context, payload T, d Delivery) error

func (h JSONHandler[T]) DecodePayload(body []byte) (any, error) {
	var v T
	if err := jsoncodec.Unmarshal(body, &v); err != nil {
		return nil, err
	}
	return v, nil
}

func (h JSONHandler[T]) Handle(ctx context.Context, d Delivery) error {
	payload, ok := d.Payload.(T)
	if !ok {
		return fmt.Errorf("payload is %T, want %T", d.Payload, payload)
	}
	return h(ctx, payload, d)
}

// ProtoHandler is a Handler receiving the body decoded with protojson.
type ProtoHandler[T proto.Message] struct {
	prototype T
	fn        func(ctx context.Context, payload T, d Delivery) error
}

// NewProtoHandler builds a ProtoHandler. prototype is only used for its type.
func NewProtoHandler[T proto.Message](prototype T, fn func(ctx context.Context, payload T, d Delivery) error) (*ProtoHandler[T], error) {
	if fn == nil {
		return nil, qerrors.ErrHandlerRequired
	}
	if isNilProto(prototype) {
		return nil, fmt.Errorf("%w: proto prototype must be a non-nil message", qerrors.ErrHandlerRequired)
	}
	return &ProtoHandler[T]{prototype: prototype, fn: fn}, nil
}

func (h *ProtoHandler[T]) DecodePayload(body []byte) (any, error) {
	msg, ok := h.prototype.ProtoReflect().New().Interface().(T)
	if !ok {
		return nil, fmt.Errorf("cannot instantiate %T", h.prototype)
	}
	if err := protojson.Unmarshal(body, msg); err != nil {
		return nil, err
	}
	return msg, nil
}

func (h *ProtoHandler[T]) Handle(ctx context.Context, d Delivery) error {
	payload, ok := d.Payload.(T)
	if !ok {
		return fmt.Errorf("payload is %T, want %T", d.Payload, h.prototype)
	}
	return h.fn(ctx, payload, d)
}

func isNilProto(msg proto.Message) bool {
	if msg == nil {
		return true
	}
	v := reflect.ValueOf(msg)
	return v.Kind() == reflect.Ptr && v.IsNil()
}
