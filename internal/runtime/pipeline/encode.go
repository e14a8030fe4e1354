package pipeline

import (
	"context"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"

	"github.com/drblury/queueflow/internal/runtime/attributes"
	qerrors "github.com/drblury/queueflow/internal/runtime/errors"
	"github.com/drblury/queueflow/internal/runtime/ids"
	"github.com/drblury/queueflow/internal/runtime/jsoncodec"
)

// EncodeOptions controls how a payload becomes a message.
type EncodeOptions struct {
	// Raw sends payload unchanged. It must be a []byte or a string.
	Raw bool
	// Compression selects the body codec.
	Compression Compression
	// CorrelationID overrides the correlation id taken from attributes or ctx.
	CorrelationID string
	// Attributes are copied onto the message.
	Attributes attributes.Attributes
}

// Envelope is an encoded message ready to send.
type Envelope struct {
	Body          string
	Attributes    attributes.Attributes
	CorrelationID string
}

// Encode serializes payload and stamps the message attributes. Proto messages
// are encoded with protojson, everything else with the JSON codec. The
// CorrelationId attribute is always set: the explicit option wins, then an
// existing attribute, then the id carried by ctx, then a fresh ULID.
func Encode(ctx context.Context, payload any, opts EncodeOptions) (Envelope, error) {
	if !opts.Compression.Supported() {
		return Envelope{}, &qerrors.EncodingError{
			Reason: qerrors.ErrUnsupportedCompression.Reason,
			Cause:  unsupportedCodec(opts.Compression),
		}
	}

	body, err := marshalBody(payload, opts.Raw)
	if err != nil {
		return Envelope{}, err
	}

	attrs := opts.Attributes.Clone()
	if !opts.Raw {
		// A re-serialized body is never compressed unless asked for here.
		delete(attrs, attributes.ContentEncoding)
	}

	correlationID := resolveCorrelationID(ctx, opts.CorrelationID, attrs)
	attrs[attributes.CorrelationID] = correlationID

	out := string(body)
	if opts.Compression == CompressionDeflate {
		out, err = deflate(body)
		if err != nil {
			return Envelope{}, &qerrors.EncodingError{Reason: "deflate failed", Cause: err}
		}
		attrs[attributes.ContentEncoding] = string(CompressionDeflate)
	}

	return Envelope{Body: out, Attributes: attrs, CorrelationID: correlationID}, nil
}

func marshalBody(payload any, raw bool) ([]byte, error) {
	if raw {
		switch v := payload.(type) {
		case []byte:
			return v, nil
		case string:
			return []byte(v), nil
		default:
			return nil, qerrors.ErrRawPayload
		}
	}
	if msg, ok := payload.(proto.Message); ok {
		return protojson.Marshal(msg)
	}
	return jsoncodec.Marshal(payload)
}

func resolveCorrelationID(ctx context.Context, explicit string, attrs attributes.Attributes) string {
	if explicit != "" {
		return explicit
	}
	if id := attrs.Get(attributes.CorrelationID); id != "" {
		return id
	}
	if id, ok := CorrelationIDFromContext(ctx); ok {
		return id
	}
	return ids.NewCorrelationID()
}

type unsupportedCodec Compression

func (c unsupportedCodec) Error() string {
	return "codec " + string(c) + " is not supported, use " + string(CompressionDeflate)
}
