// Package registry builds the immutable set of queue handles a client works
// with, one per logical queue.
package registry

import (
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/drblury/queueflow/internal/runtime/endpoints"
	qerrors "github.com/drblury/queueflow/internal/runtime/errors"
	"github.com/drblury/queueflow/internal/runtime/transport"
)

// Queue is the handle for one logical queue. The URL is computed when the
// registry is built and never changes.
type Queue struct {
	Config   QueueConfig
	URL      string
	Endpoint *endpoints.Endpoint
}

// Name returns the logical queue name.
func (q *Queue) Name() string { return q.Config.Logical }

// DeadLetter returns the configured dead-letter target, if any.
func (q *Queue) DeadLetter() string { return q.Config.DeadLetter }

// Client returns the endpoint's current transport client.
func (q *Queue) Client() transport.Transport { return q.Endpoint.Client() }

// Registry maps logical queue names to handles.
type Registry struct {
	queues map[string]*Queue
	names  []string
}

// Build creates one handle per queue. An endpoint name missing from eps fails
// the whole build.
func Build(queues []QueueConfig, eps map[string]*endpoints.Endpoint) (*Registry, error) {
	r := &Registry{queues: make(map[string]*Queue, len(queues))}
	for _, qc := range queues {
		if _, dup := r.queues[qc.Logical]; dup {
			continue
		}
		ep, ok := eps[qc.Endpoint]
		if !ok || ep == nil {
			return nil, qerrors.NewConfigurationError(qerrors.ErrUnknownEndpoint, qc.Endpoint,
				fmt.Errorf("queue %s", qc.Logical))
		}
		r.queues[qc.Logical] = &Queue{
			Config:   qc,
			URL:      QueueURL(ep.BaseURL, ep.AccountID, qc.Physical),
			Endpoint: ep,
		}
		r.names = append(r.names, qc.Logical)
	}
	sort.Strings(r.names)
	return r, nil
}

// QueueURL joins the endpoint base URL, account id and physical name. A
// physical name that is already an absolute URL is returned unchanged.
func QueueURL(baseURL, accountID, physical string) string {
	if isAbsoluteURL(physical) {
		return physical
	}
	return strings.TrimRight(baseURL, "/") + "/" + accountID + "/" + physical
}

func isAbsoluteURL(s string) bool {
	u, err := url.Parse(s)
	return err == nil && u.Scheme != "" && u.Host != ""
}

// Get returns the handle for a logical queue.
func (r *Registry) Get(logical string) (*Queue, error) {
	if logical == "" {
		return nil, qerrors.ErrQueueRequired
	}
	q, ok := r.queues[logical]
	if !ok {
		return nil, fmt.Errorf("%w: %s", qerrors.ErrUnknownQueue, logical)
	}
	return q, nil
}

// Names returns the logical queue names in sorted order.
func (r *Registry) Names() []string {
	return append([]string(nil), r.names...)
}

// All returns every handle ordered by logical name.
func (r *Registry) All() []*Queue {
	out := make([]*Queue, 0, len(r.names))
	for _, name := range r.names {
		out = append(out, r.queues[name])
	}
	return out
}

// Len returns the number of queues.
func (r *Registry) Len() int { return len(r.queues) }
