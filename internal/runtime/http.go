package runtime

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	consumerpkg "github.com/drblury/queueflow/internal/runtime/consumer"
	jsoncodec "github.com/drblury/queueflow/internal/runtime/jsoncodec"
	loggingpkg "github.com/drblury/queueflow/internal/runtime/logging"
)

// RegisterHTTPHandler adds handler to the server listening on port. Servers
// are started by Start.
func (c *Client) RegisterHTTPHandler(port int, pattern string, handler http.Handler) {
	c.httpServersMu.Lock()
	defer c.httpServersMu.Unlock()

	if c.httpServers == nil {
		c.httpServers = make(map[int]*http.ServeMux)
	}

	mux, ok := c.httpServers[port]
	if !ok {
		mux = http.NewServeMux()
		c.httpServers[port] = mux
	}

	mux.Handle(pattern, handler)
}

func (c *Client) startHTTPServers() {
	c.httpServersMu.Lock()
	defer c.httpServersMu.Unlock()

	if len(c.running) > 0 {
		return
	}
	for port, mux := range c.httpServers {
		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		c.running = append(c.running, srv)
		c.Logger.Info("Starting HTTP server", loggingpkg.LogFields{"address": srv.Addr})
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				c.Logger.Error("Failed to start HTTP server", err, loggingpkg.LogFields{"address": srv.Addr})
			}
		}()
	}
}

func (c *Client) stopHTTPServers(ctx context.Context) error {
	c.httpServersMu.Lock()
	servers := c.running
	c.running = nil
	c.httpServersMu.Unlock()

	var errs []error
	for _, srv := range servers {
		if err := srv.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func metricsHandler(registerer prometheus.Registerer) http.Handler {
	if gatherer, ok := registerer.(prometheus.Gatherer); ok {
		return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
	}
	return promhttp.Handler()
}

// queueView is one entry of GET /api/queues.
type queueView struct {
	consumerpkg.QueueStatus
	Endpoint   string `json:"endpoint"`
	Subscribed bool   `json:"subscribed"`
	Implicit   bool   `json:"implicit,omitempty"`
}

func (c *Client) handleGetQueues(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}

	views := make([]queueView, 0, c.queues.Len())
	for _, q := range c.queues.All() {
		view := queueView{
			QueueStatus: consumerpkg.QueueStatus{
				Queue:      q.Name(),
				URL:        q.URL,
				DeadLetter: q.DeadLetter(),
				Readers:    []consumerpkg.ReaderStatus{},
			},
			Endpoint: q.Config.Endpoint,
			Implicit: q.Config.Implicit,
		}
		if st, err := c.supervisor.QueueStatus(q.Name()); err == nil {
			view.QueueStatus = st
			view.Subscribed = true
		}
		views = append(views, view)
	}

	w.Header().Set("Content-Type", "application/json")
	if err := jsoncodec.Encode(w, views); err != nil {
		c.Logger.Error("Failed to encode queue status", err, nil)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}
