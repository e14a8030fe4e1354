package transport

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/drblury/queueflow/internal/runtime/config"
	"github.com/drblury/queueflow/internal/runtime/logging"
)

// Builder creates a transport client for one endpoint.
type Builder func(ctx context.Context, conf config.TransportConfig, logger logging.ServiceLogger) (Transport, error)

// Registry maps transport kinds to their builders.
type Registry struct {
	mu       sync.RWMutex
	builders map[string]Builder
}

// KindSQS is the default transport kind.
const KindSQS = "sqs"

// KindMemory selects the process-wide in-memory transport.
const KindMemory = "memory"

// SharedMemory backs every endpoint configured with kind "memory".
var SharedMemory = NewMemory()

// DefaultRegistry knows the sqs and memory kinds.
var DefaultRegistry = NewDefaultRegistry()

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{builders: make(map[string]Builder)}
}

// NewDefaultRegistry creates a registry with the built-in kinds registered.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(KindSQS, func(ctx context.Context, conf config.TransportConfig, logger logging.ServiceLogger) (Transport, error) {
		client, err := NewSQS(ctx, conf, logger)
		if err != nil {
			return nil, err
		}
		return client, nil
	})
	r.Register(KindMemory, StaticBuilder(SharedMemory))
	return r
}

// StaticBuilder returns a Builder that always hands out t.
func StaticBuilder(t Transport) Builder {
	return func(context.Context, config.TransportConfig, logging.ServiceLogger) (Transport, error) {
		return t, nil
	}
}

// Register adds or replaces the builder for kind.
func (r *Registry) Register(kind string, builder Builder) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.builders[kind] = builder
}

// Build creates a transport for conf.Kind, defaulting to sqs.
func (r *Registry) Build(ctx context.Context, conf config.TransportConfig, logger logging.ServiceLogger) (Transport, error) {
	kind := conf.Kind
	if kind == "" {
		kind = KindSQS
	}

	r.mu.RLock()
	builder, ok := r.builders[kind]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("unknown transport: %q (registered: %v)", kind, r.Names())
	}
	return builder(ctx, conf, logger)
}

// Names returns the registered kinds, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.builders))
	for name := range r.builders {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Has returns true if a builder is registered for kind.
func (r *Registry) Has(kind string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.builders[kind]
	return ok
}
