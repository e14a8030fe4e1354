// Package consumer runs the polling readers behind queue subscriptions.
package consumer

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"golang.org/x/sync/errgroup"

	qerrors "github.com/drblury/queueflow/internal/runtime/errors"
	"github.com/drblury/queueflow/internal/runtime/events"
	"github.com/drblury/queueflow/internal/runtime/logging"
	"github.com/drblury/queueflow/internal/runtime/pipeline"
	"github.com/drblury/queueflow/internal/runtime/registry"
	"github.com/drblury/queueflow/internal/runtime/transport"
)

// ReaderGauge is told how many readers of a queue are running.
type ReaderGauge interface {
	SetReadersRunning(queue string, n int)
}

// Config wires a Supervisor.
type Config struct {
	Logger logging.ServiceLogger
	Events *events.Bus
	// Classify decides how receive failures are handled. Defaults to
	// transport.Classify.
	Classify transport.Classifier
	// Readiness bounds how long StartQueue waits for readers. Defaults to 1s.
	Readiness time.Duration
	// Disabled reports queues whose subscriptions are switched off.
	Disabled func(queue string) bool
	Gauge    ReaderGauge
	// Decoder builds the message pipeline for a queue.
	Decoder func(q *registry.Queue) *pipeline.Decoder
}

// Supervisor owns every subscription of a client.
type Supervisor struct {
	cfg    Config
	logger logging.ServiceLogger
	calls  registry.Calls

	mu   sync.Mutex
	subs map[string]*subscription
}

type subscription struct {
	queue   *registry.Queue
	handler pipeline.Handler
	decoder *pipeline.Decoder
	opts    Options

	// lifecycle serializes start and stop of this queue.
	lifecycle sync.Mutex

	mu      sync.Mutex
	readers []*reader
	started bool
}

// New returns a Supervisor.
func New(cfg Config) *Supervisor {
	if cfg.Logger == nil {
		cfg.Logger = logging.NopLogger()
	}
	if cfg.Classify == nil {
		cfg.Classify = transport.Classify
	}
	if cfg.Readiness <= 0 {
		cfg.Readiness = defaultReadiness
	}
	return &Supervisor{
		cfg:    cfg,
		logger: cfg.Logger,
		calls:  registry.Calls{Bus: cfg.Events, Classify: cfg.Classify},
		subs:   make(map[string]*subscription),
	}
}

// Subscribe attaches handler to q and prepares its readers in Idle. Nothing
// polls until StartQueue. On a queue whose subscriptions are disabled it
// returns nil without doing anything.
func (s *Supervisor) Subscribe(q *registry.Queue, handler pipeline.Handler, opts Options) error {
	if q == nil {
		return qerrors.ErrQueueRequired
	}
	if handler == nil {
		return qerrors.ErrHandlerRequired
	}
	name := q.Name()
	if s.disabled(name) {
		s.logger.Info("Subscriptions disabled, not subscribing", logging.LogFields{"queue": name})
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.subs[name]; ok && existing.active() {
		return fmt.Errorf("%w: %s", qerrors.ErrAlreadySubscribed, name)
	}

	opts = opts.withDefaults(q.Config.Readers)
	sub := &subscription{queue: q, handler: handler, opts: opts}
	if s.cfg.Decoder != nil {
		sub.decoder = s.cfg.Decoder(q)
	}
	if sub.decoder == nil {
		sub.decoder = &pipeline.Decoder{Queue: name, DeadLetter: q.DeadLetter(), Logger: s.logger, Events: s.cfg.Events}
	}
	sub.readers = idleReaders(opts.Readers)
	s.subs[name] = sub

	s.logger.Info("Subscribed to queue", logging.LogFields{"queue": name, "readers": opts.Readers, "url": q.URL})
	return nil
}

// Subscribed reports whether queue has a subscription.
func (s *Supervisor) Subscribed(queue string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.subs[queue]
	return ok
}

// StartQueue starts the queue's readers and waits until all of them are
// running or the readiness window passes. Readers that did start keep
// running when it times out. Starting a started queue does nothing.
func (s *Supervisor) StartQueue(ctx context.Context, queue string) error {
	if s.disabled(queue) {
		return nil
	}
	sub, err := s.subscription(queue)
	if err != nil {
		return err
	}

	sub.lifecycle.Lock()
	defer sub.lifecycle.Unlock()

	sub.mu.Lock()
	if sub.started {
		sub.mu.Unlock()
		return nil
	}
	if len(sub.readers) == 0 || allStopped(sub.readers) {
		sub.readers = idleReaders(sub.opts.Readers)
	}
	readers := append([]*reader(nil), sub.readers...)
	sub.mu.Unlock()

	base := context.WithoutCancel(ctx)
	for _, r := range readers {
		if !r.start() {
			continue
		}
		runCtx, cancel := context.WithCancel(base)
		r.cancel = cancel
		go s.run(runCtx, sub, r)
	}

	ready := s.awaitReady(ctx, readers)
	if ready < len(readers) {
		err := &qerrors.StartupTimeoutError{Queue: queue, Waited: s.cfg.Readiness, Ready: ready, Total: len(readers)}
		s.logger.Warn("Queue readers not ready in time", logging.LogFields{"queue": queue, "ready": ready, "total": len(readers)})
		return err
	}

	sub.mu.Lock()
	sub.started = true
	sub.mu.Unlock()
	s.logger.Info("Queue started", logging.LogFields{"queue": queue, "readers": len(readers)})
	return nil
}

func (s *Supervisor) awaitReady(ctx context.Context, readers []*reader) int {
	timer := time.NewTimer(s.cfg.Readiness)
	defer timer.Stop()

	for _, r := range readers {
		select {
		case <-r.ready:
		case <-r.done:
		case <-timer.C:
			return countReady(readers)
		case <-ctx.Done():
			return countReady(readers)
		}
	}
	return countReady(readers)
}

// StopQueue stops every reader of queue. In-flight handlers finish first;
// ctx only bounds how long StopQueue waits for them. Stopping a stopped
// queue does nothing.
func (s *Supervisor) StopQueue(ctx context.Context, queue string) error {
	sub, err := s.subscription(queue)
	if err != nil {
		if s.disabled(queue) {
			return nil
		}
		return err
	}

	sub.lifecycle.Lock()
	defer sub.lifecycle.Unlock()

	sub.mu.Lock()
	readers := append([]*reader(nil), sub.readers...)
	sub.mu.Unlock()

	launched := false
	for _, r := range readers {
		if r.cancel == nil {
			r.state.transition(StateStopped)
			continue
		}
		launched = true
		r.state.transition(StateStopping)
		r.cancel()
	}
	if !launched {
		s.markStopped(sub)
		return nil
	}

	for _, r := range readers {
		if r.cancel == nil {
			continue
		}
		select {
		case <-r.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	s.markStopped(sub)
	s.logger.Info("Queue stopped", logging.LogFields{"queue": queue})
	return nil
}

func (s *Supervisor) markStopped(sub *subscription) {
	sub.mu.Lock()
	sub.readers = nil
	sub.started = false
	sub.mu.Unlock()
	s.report(sub)
}

// Start starts every subscribed queue.
func (s *Supervisor) Start(ctx context.Context) error {
	var errs []error
	for _, name := range s.names() {
		if err := s.StartQueue(ctx, name); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Stop stops every subscribed queue concurrently.
func (s *Supervisor) Stop(ctx context.Context) error {
	var g errgroup.Group
	for _, name := range s.names() {
		g.Go(func() error {
			return s.StopQueue(ctx, name)
		})
	}
	return g.Wait()
}

// run is one reader's polling loop.
func (s *Supervisor) run(ctx context.Context, sub *subscription, r *reader) {
	defer close(r.done)
	defer func() {
		r.state.transition(StateStopped)
		s.report(sub)
	}()

	logger := s.logger.With(logging.LogFields{"queue": sub.queue.Name(), "reader": r.index})
	limiter := sub.opts.limiter()
	pause := newPause(sub.opts)

	client, ok := s.connect(ctx, sub, r, nil, pause, logger)
	if !ok {
		return
	}

	in := transport.ReceiveInput{
		MaxMessages:       sub.opts.MaxMessages,
		WaitTime:          sub.opts.WaitTime,
		VisibilityTimeout: sub.opts.VisibilityTimeout,
	}
	for ctx.Err() == nil {
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				return
			}
		}

		msgs, err := s.calls.Receive(ctx, sub.queue, client, in, r.index)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			switch classOf(err) {
			case qerrors.TransportReconnect:
				logger.Warn("Transport credentials expired, reconnecting", logging.LogFields{"error": err.Error()})
				if r.state.transition(StateStarting) {
					s.report(sub)
				}
				if client, ok = s.connect(ctx, sub, r, client, pause, logger); !ok {
					return
				}
			case qerrors.TransportFatal:
				logger.Error("Stopping reader after fatal transport error", err, nil)
				return
			default:
				logger.Warn("Receive failed, polling continues", logging.LogFields{"error": err.Error()})
				if !sleep(ctx, pause.NextBackOff()) {
					return
				}
			}
			continue
		}
		pause.Reset()

		for _, msg := range msgs {
			s.handle(ctx, sub, r, client, msg, logger)
			if ctx.Err() != nil {
				// The rest of the batch becomes visible again after its timeout.
				return
			}
		}
	}
}

// connect returns a usable client, replacing stale through the endpoint. It
// keeps trying with backoff until it succeeds or ctx ends.
func (s *Supervisor) connect(ctx context.Context, sub *subscription, r *reader, stale transport.Transport, pause *backoff.ExponentialBackOff, logger logging.ServiceLogger) (transport.Transport, bool) {
	client := sub.queue.Client()
	for {
		if client == nil || client == stale {
			fresh, err := sub.queue.Endpoint.Reconnect(ctx, client)
			if err != nil {
				logger.Error("Failed to rebuild queue transport client", err, nil)
			}
			client = fresh
		}
		if client != nil {
			if r.running() {
				s.report(sub)
			}
			pause.Reset()
			return client, true
		}
		if !sleep(ctx, pause.NextBackOff()) {
			return nil, false
		}
		client = sub.queue.Client()
	}
}

// handle runs one message through the pipeline and deletes it when the
// outcome allows. Stopping the reader does not cancel the handler.
func (s *Supervisor) handle(ctx context.Context, sub *subscription, r *reader, client transport.Transport, msg transport.Message, logger logging.ServiceLogger) {
	handleCtx := context.WithoutCancel(ctx)
	defer func() {
		if p := recover(); p != nil {
			logger.Error("Handler panicked", fmt.Errorf("panic: %v", p), logging.LogFields{"message_id": msg.ID})
		}
	}()

	outcome, err := sub.decoder.Decode(handleCtx, pipeline.Inbound{Message: msg, Reader: r.index}, sub.handler)
	if err != nil && !qerrors.IsAlreadyLogged(err) {
		logger.Error("Message handling failed", err, logging.LogFields{"message_id": msg.ID})
	}
	if !outcome.Ack() {
		return
	}
	if err := s.calls.Delete(handleCtx, sub.queue, client, msg, r.index); err != nil {
		logger.Error("Failed to delete handled message", err, logging.LogFields{"message_id": msg.ID})
	}
}

func (s *Supervisor) report(sub *subscription) {
	if s.cfg.Gauge == nil {
		return
	}
	sub.mu.Lock()
	n := 0
	for _, r := range sub.readers {
		if r.state.load() == StateRunning {
			n++
		}
	}
	sub.mu.Unlock()
	s.cfg.Gauge.SetReadersRunning(sub.queue.Name(), n)
}

func (s *Supervisor) subscription(queue string) (*subscription, error) {
	if queue == "" {
		return nil, qerrors.ErrQueueRequired
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.subs[queue]
	if !ok {
		return nil, fmt.Errorf("%w: %s", qerrors.ErrNotSubscribed, queue)
	}
	return sub, nil
}

func (s *Supervisor) names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.subs))
	for name := range s.subs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (s *Supervisor) disabled(queue string) bool {
	return s.cfg.Disabled != nil && s.cfg.Disabled(queue)
}

func (sub *subscription) active() bool {
	sub.mu.Lock()
	defer sub.mu.Unlock()
	for _, r := range sub.readers {
		if st := r.state.load(); st != StateIdle && st != StateStopped {
			return true
		}
	}
	return false
}

func idleReaders(n int) []*reader {
	readers := make([]*reader, n)
	for i := range readers {
		readers[i] = newReader(i + 1)
	}
	return readers
}

func allStopped(readers []*reader) bool {
	for _, r := range readers {
		if r.state.load() != StateStopped {
			return false
		}
	}
	return true
}

func countReady(readers []*reader) int {
	n := 0
	for _, r := range readers {
		if r.isReady() && r.state.load() != StateStopped {
			n++
		}
	}
	return n
}

func classOf(err error) qerrors.TransportClass {
	var terr *qerrors.TransportError
	if errors.As(err, &terr) {
		return terr.Class
	}
	return qerrors.TransportTransient
}

func newPause(opts Options) *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 100 * time.Millisecond
	b.MaxInterval = opts.ErrorBackoff
	return b
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
