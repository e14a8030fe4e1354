package endpoints

import (
	"context"
	"sync"

	"github.com/drblury/queueflow/internal/runtime/transport"
)

// Endpoint is a resolved endpoint. Its identity fields never change; the
// transport client is replaced only by Reconnect.
type Endpoint struct {
	Name      string
	AccountID string
	Region    string
	BaseURL   string

	build func(ctx context.Context) (transport.Transport, error)

	mu     sync.RWMutex
	client transport.Transport
}

// NewEndpoint builds an Endpoint around an existing transport client.
// Reconnect on such an endpoint keeps the same client.
func NewEndpoint(name, accountID, region, baseURL string, client transport.Transport) *Endpoint {
	return &Endpoint{
		Name:      name,
		AccountID: accountID,
		Region:    region,
		BaseURL:   baseURL,
		client:    client,
		build: func(context.Context) (transport.Transport, error) {
			return client, nil
		},
	}
}

// Client returns the current transport client.
func (e *Endpoint) Client() transport.Transport {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.client
}

// Reconnect replaces stale with a freshly built client. When another caller
// already replaced stale, the current client is returned without rebuilding.
func (e *Endpoint) Reconnect(ctx context.Context, stale transport.Transport) (transport.Transport, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.client != stale {
		return e.client, nil
	}
	fresh, err := e.build(ctx)
	if err != nil {
		return nil, err
	}
	e.client = fresh
	return fresh, nil
}
