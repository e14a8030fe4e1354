package runtime

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	configpkg "github.com/drblury/queueflow/internal/runtime/config"
	consumerpkg "github.com/drblury/queueflow/internal/runtime/consumer"
	endpointspkg "github.com/drblury/queueflow/internal/runtime/endpoints"
	errspkg "github.com/drblury/queueflow/internal/runtime/errors"
	eventspkg "github.com/drblury/queueflow/internal/runtime/events"
	loggingpkg "github.com/drblury/queueflow/internal/runtime/logging"
	metricspkg "github.com/drblury/queueflow/internal/runtime/metrics"
	pipelinepkg "github.com/drblury/queueflow/internal/runtime/pipeline"
	registrypkg "github.com/drblury/queueflow/internal/runtime/registry"
	transportpkg "github.com/drblury/queueflow/internal/runtime/transport"
)

// Dependencies holds the optional collaborators a Client can use. Leave
// fields nil for the defaults.
type Dependencies struct {
	// Resolver resolves Conf.Endpoints. Share one Resolver between clients
	// so the process identity is looked up once.
	Resolver *endpointspkg.Resolver
	// Endpoints skips resolution entirely and uses the given endpoints.
	Endpoints map[string]*endpointspkg.Endpoint
	// Transports builds transport clients when the default Resolver is used.
	Transports *transportpkg.Registry
	// Classifier overrides how consumer receive errors are classified.
	Classifier transportpkg.Classifier
	// Registerer receives the Prometheus collectors when metrics are enabled.
	Registerer prometheus.Registerer
	// ContextFunc decorates the context handed to every handler.
	ContextFunc pipelinepkg.ContextFunc
	// Observers are registered on the event bus before anything runs.
	Observers []eventspkg.Observer
}

// Client maps logical queues onto transport queues and runs their consumers.
type Client struct {
	Conf   *configpkg.Config
	Logger loggingpkg.ServiceLogger

	endpoints  map[string]*endpointspkg.Endpoint
	queues     *registrypkg.Registry
	bus        *eventspkg.Bus
	calls      registrypkg.Calls
	supervisor *consumerpkg.Supervisor
	metrics    *metricspkg.QueueMetrics

	contextFunc pipelinepkg.ContextFunc

	httpServers   map[int]*http.ServeMux
	httpServersMu sync.Mutex
	running       []*http.Server
}

// NewClient resolves endpoints and builds every queue handle. Any
// configuration problem is returned here; nothing is polled until a queue is
// subscribed and started.
func NewClient(ctx context.Context, conf *configpkg.Config, log loggingpkg.ServiceLogger, deps Dependencies) (*Client, error) {
	if conf == nil {
		return nil, errspkg.ErrConfigRequired
	}
	if log == nil {
		return nil, errspkg.ErrLoggerRequired
	}
	resolved := conf.WithDefaults()
	if err := resolved.Validate(); err != nil {
		return nil, fmt.Errorf("invalid queue configuration: %w", err)
	}

	log.Info("Creating queue client", loggingpkg.LogFields{"config": resolved.String()})

	eps := deps.Endpoints
	if eps == nil {
		resolver := deps.Resolver
		if resolver == nil {
			opts := []endpointspkg.ResolverOption{
				endpointspkg.WithLogger(log),
				endpointspkg.WithIdentityTimeout(resolved.IdentityTimeout),
			}
			if deps.Transports != nil {
				opts = append(opts, endpointspkg.WithTransportRegistry(deps.Transports))
			}
			resolver = endpointspkg.NewResolver(opts...)
		}
		var err error
		eps, err = resolver.Resolve(ctx, resolved.Endpoints)
		if err != nil {
			return nil, err
		}
	}

	queues, err := registrypkg.Build(registrypkg.Normalize(resolved.Queues), eps)
	if err != nil {
		return nil, err
	}

	c := &Client{
		Conf:        &resolved,
		Logger:      log,
		endpoints:   eps,
		queues:      queues,
		bus:         eventspkg.NewBus(),
		contextFunc: deps.ContextFunc,
	}
	c.calls = registrypkg.Calls{Bus: c.bus, Classify: deps.Classifier}
	c.bus.Register(eventspkg.LoggingObserver(log))
	for _, o := range deps.Observers {
		c.bus.Register(o)
	}

	if resolved.MetricsEnabled {
		if err := c.enableMetrics(deps.Registerer); err != nil {
			return nil, err
		}
	}

	cfg := consumerpkg.Config{
		Logger:    log,
		Events:    c.bus,
		Classify:  deps.Classifier,
		Readiness: resolved.ReadinessTimeout,
		Disabled:  c.Conf.SubscriptionDisabled,
		Decoder:   c.decoder,
	}
	if c.metrics != nil {
		cfg.Gauge = c.metrics
	}
	c.supervisor = consumerpkg.New(cfg)

	if resolved.StatusEnabled {
		c.RegisterHTTPHandler(resolved.StatusPort, "/api/queues", http.HandlerFunc(c.handleGetQueues))
	}

	log.Info("Queue client ready", loggingpkg.LogFields{"queues": queues.Names()})
	return c, nil
}

func (c *Client) decoder(q *registrypkg.Queue) *pipelinepkg.Decoder {
	d := &pipelinepkg.Decoder{
		Queue:       q.Name(),
		DeadLetter:  q.DeadLetter(),
		Publisher:   deadLetterPublisher{client: c},
		Logger:      c.Logger,
		Events:      c.bus,
		ContextFunc: c.contextFunc,
	}
	if c.metrics != nil {
		d.Recorder = c.metrics
	}
	return d
}

// Queue returns the handle for a logical queue.
func (c *Client) Queue(name string) (*registrypkg.Queue, error) {
	return c.queues.Get(name)
}

// Queues returns the logical queue names, including synthesized dead-letter
// queues.
func (c *Client) Queues() []string {
	return c.queues.Names()
}

// Endpoint returns a resolved endpoint by name.
func (c *Client) Endpoint(name string) (*endpointspkg.Endpoint, bool) {
	ep, ok := c.endpoints[name]
	return ep, ok
}

// Observe registers an observer for call events and returns a func that
// removes it.
func (c *Client) Observe(o eventspkg.Observer) func() {
	return c.bus.Register(o)
}

// Metrics returns the metrics collector, or nil when metrics are disabled.
func (c *Client) Metrics() *metricspkg.QueueMetrics {
	return c.metrics
}

// Subscribe attaches handler to queue and starts its readers. It returns
// after every reader is running or the readiness window has passed. When
// subscriptions are disabled for queue it returns nil and starts nothing.
func (c *Client) Subscribe(ctx context.Context, queue string, handler pipelinepkg.Handler, opts consumerpkg.Options) error {
	q, err := c.queues.Get(queue)
	if err != nil {
		return err
	}
	if err := c.supervisor.Subscribe(q, handler, opts); err != nil {
		return err
	}
	if !c.supervisor.Subscribed(queue) {
		return nil
	}
	return c.supervisor.StartQueue(ctx, queue)
}

// StartQueue starts the readers of a subscribed queue.
func (c *Client) StartQueue(ctx context.Context, queue string) error {
	if _, err := c.queues.Get(queue); err != nil {
		return err
	}
	return c.supervisor.StartQueue(ctx, queue)
}

// StopQueue stops the readers of a subscribed queue after in-flight
// messages are handled.
func (c *Client) StopQueue(ctx context.Context, queue string) error {
	if _, err := c.queues.Get(queue); err != nil {
		return err
	}
	return c.supervisor.StopQueue(ctx, queue)
}

// Start starts the HTTP servers and every subscribed queue.
func (c *Client) Start(ctx context.Context) error {
	c.startHTTPServers()
	return c.supervisor.Start(ctx)
}

// Stop stops every queue and shuts the HTTP servers down.
func (c *Client) Stop(ctx context.Context) error {
	err := c.supervisor.Stop(ctx)
	return errors.Join(err, c.stopHTTPServers(ctx))
}

// Status returns consumer state for every subscribed queue.
func (c *Client) Status() []consumerpkg.QueueStatus {
	return c.supervisor.Status()
}

func (c *Client) enableMetrics(registerer prometheus.Registerer) error {
	m := metricspkg.New(registerer)
	if err := m.Register(); err != nil {
		return fmt.Errorf("register queue metrics: %w", err)
	}
	c.metrics = m
	c.bus.Register(m.Observer())
	c.RegisterHTTPHandler(c.Conf.MetricsPort, "/metrics", metricsHandler(registerer))
	return nil
}
