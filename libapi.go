package queueflow

import (
	"context"

	"google.golang.org/protobuf/proto"

	runtimepkg "github.com/drblury/queueflow/internal/runtime"
	attributespkg "github.com/drblury/queueflow/internal/runtime/attributes"
	configpkg "github.com/drblury/queueflow/internal/runtime/config"
	consumerpkg "github.com/drblury/queueflow/internal/runtime/consumer"
	endpointspkg "github.com/drblury/queueflow/internal/runtime/endpoints"
	errspkg "github.com/drblury/queueflow/internal/runtime/errors"
	eventspkg "github.com/drblury/queueflow/internal/runtime/events"
	idspkg "github.com/drblury/queueflow/internal/runtime/ids"
	jsoncodec "github.com/drblury/queueflow/internal/runtime/jsoncodec"
	loggingpkg "github.com/drblury/queueflow/internal/runtime/logging"
	metricspkg "github.com/drblury/queueflow/internal/runtime/metrics"
	pipelinepkg "github.com/drblury/queueflow/internal/runtime/pipeline"
	registrypkg "github.com/drblury/queueflow/internal/runtime/registry"
	transportpkg "github.com/drblury/queueflow/internal/runtime/transport"
)

type (
	Config          = configpkg.Config
	EndpointConfig  = configpkg.EndpointConfig
	TransportConfig = configpkg.TransportConfig
	QueueSpec       = configpkg.QueueSpec
	QueueSet        = configpkg.QueueSet

	Client         = runtimepkg.Client
	Dependencies   = runtimepkg.Dependencies
	PublishOptions = runtimepkg.PublishOptions
	Receipt        = runtimepkg.Receipt
	ReceiveOptions = runtimepkg.ReceiveOptions
	Received       = runtimepkg.Received

	Queue = registrypkg.Queue

	Endpoint         = endpointspkg.Endpoint
	Resolver         = endpointspkg.Resolver
	ResolverOption   = endpointspkg.ResolverOption
	Identity         = endpointspkg.Identity
	IdentityProvider = endpointspkg.IdentityProvider
	RoleVerifier     = endpointspkg.RoleVerifier

	Handler            = pipelinepkg.Handler
	HandlerFunc        = pipelinepkg.HandlerFunc
	JSONHandler[T any] = pipelinepkg.JSONHandler[T]
	Delivery           = pipelinepkg.Delivery
	Compression        = pipelinepkg.Compression
	ContextFunc        = pipelinepkg.ContextFunc

	ConsumerOptions = consumerpkg.Options
	QueueStatus     = consumerpkg.QueueStatus
	ReaderStatus    = consumerpkg.ReaderStatus
	State           = consumerpkg.State

	Attributes        = attributespkg.Attributes
	Transport         = transportpkg.Transport
	TransportRegistry = transportpkg.Registry
	TransportBuilder  = transportpkg.Builder
	Message           = transportpkg.Message
	MemoryTransport   = transportpkg.Memory

	Observer           = eventspkg.Observer
	CallInfo           = eventspkg.CallInfo
	QueueMetrics       = metricspkg.QueueMetrics
	DeadLetterSnapshot = metricspkg.Snapshot

	LogFields                 = loggingpkg.LogFields
	ServiceLogger             = loggingpkg.ServiceLogger
	EntryLoggerAdapter[T any] = loggingpkg.EntryLoggerAdapter[T]

	ConfigurationError  = errspkg.ConfigurationError
	EncodingError       = errspkg.EncodingError
	TransportError      = errspkg.TransportError
	StartupTimeoutError = errspkg.StartupTimeoutError
	DeadLetterError     = errspkg.DeadLetterError
	MessageError        = errspkg.MessageError
)

var (
	NewClient   = runtimepkg.NewClient
	NewResolver = endpointspkg.NewResolver

	WithIdentityProvider  = endpointspkg.WithIdentityProvider
	WithRoleVerifier      = endpointspkg.WithRoleVerifier
	WithTransportRegistry = endpointspkg.WithTransportRegistry
	WithIdentityTimeout   = endpointspkg.WithIdentityTimeout
	WithResolverLogger    = endpointspkg.WithLogger
	NewEndpoint           = endpointspkg.NewEndpoint

	LoadConfig      = configpkg.Load
	ParseConfig     = configpkg.Parse
	ParseConfigJSON = configpkg.ParseJSON
	ConfigFromEnv   = configpkg.FromEnv
	Queues          = configpkg.Queues
	NamedQueue      = configpkg.Named

	NewTransportRegistry = transportpkg.NewDefaultRegistry
	NewMemoryTransport   = transportpkg.NewMemory
	StaticTransport      = transportpkg.StaticBuilder

	NewAttributes = attributespkg.New

	WithCorrelationID        = pipelinepkg.WithCorrelationID
	CorrelationIDFromContext = pipelinepkg.CorrelationIDFromContext

	DeadLetter   = errspkg.DeadLetter
	DeadLetterTo = errspkg.DeadLetterTo

	Marshal       = jsoncodec.Marshal
	MarshalIndent = jsoncodec.MarshalIndent
	Unmarshal     = jsoncodec.Unmarshal
	Encode        = jsoncodec.Encode
	Decode        = jsoncodec.Decode

	ErrClientRequired         = errspkg.ErrClientRequired
	ErrHandlerRequired        = errspkg.ErrHandlerRequired
	ErrQueueRequired          = errspkg.ErrQueueRequired
	ErrUnknownQueue           = errspkg.ErrUnknownQueue
	ErrNotSubscribed          = errspkg.ErrNotSubscribed
	ErrAlreadySubscribed      = errspkg.ErrAlreadySubscribed
	ErrConfigRequired         = errspkg.ErrConfigRequired
	ErrLoggerRequired         = errspkg.ErrLoggerRequired
	ErrRawPayload             = errspkg.ErrRawPayload
	ErrIdentityUnavailable    = errspkg.ErrIdentityUnavailable
	ErrRoleMismatch           = errspkg.ErrRoleMismatch
	ErrUnknownEndpoint        = errspkg.ErrUnknownEndpoint
	ErrInvalidEndpoint        = errspkg.ErrInvalidEndpoint
	ErrUnsupportedCompression = errspkg.ErrUnsupportedCompression

	NewSlogServiceLogger      = loggingpkg.NewSlogServiceLogger
	NewWatermillServiceLogger = loggingpkg.NewWatermillServiceLogger
	NopLogger                 = loggingpkg.NopLogger

	CreateULID = idspkg.CreateULID
)

const (
	DefaultEndpoint = configpkg.DefaultEndpoint

	CompressionNone    = pipelinepkg.CompressionNone
	CompressionDeflate = pipelinepkg.CompressionDeflate

	TransportKindSQS    = transportpkg.KindSQS
	TransportKindMemory = transportpkg.KindMemory

	AttributeCorrelationID   = attributespkg.CorrelationID
	AttributeContentEncoding = attributespkg.ContentEncoding
	AttributeErrorDetail     = attributespkg.ErrorDetail
)

// SubscribeJSON subscribes fn to queue with bodies decoded into T.
func SubscribeJSON[T any](ctx context.Context, c *Client, queue string, fn func(ctx context.Context, payload T, d Delivery) error, opts ConsumerOptions) error {
	if c == nil {
		return ErrClientRequired
	}
	if fn == nil {
		return ErrHandlerRequired
	}
	return c.Subscribe(ctx, queue, pipelinepkg.JSONHandler[T](fn), opts)
}

// SubscribeProto subscribes fn to queue with bodies decoded by protojson into
// a fresh T.
func SubscribeProto[T proto.Message](ctx context.Context, c *Client, queue string, prototype T, fn func(ctx context.Context, payload T, d Delivery) error, opts ConsumerOptions) error {
	if c == nil {
		return ErrClientRequired
	}
	h, err := pipelinepkg.NewProtoHandler(prototype, fn)
	if err != nil {
		return err
	}
	return c.Subscribe(ctx, queue, h, opts)
}

func NewEntryServiceLogger[T EntryLoggerAdapter[T]](entry T) ServiceLogger {
	return loggingpkg.NewEntryServiceLogger(entry)
}
