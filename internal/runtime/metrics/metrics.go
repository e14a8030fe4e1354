package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/drblury/queueflow/internal/runtime/events"
)

// QueueMetrics records queue call and dead-letter statistics.
type QueueMetrics struct {
	mu sync.RWMutex

	// Per-queue dead-letter counts
	deadLetters map[string]*DeadLetterStats

	// Prometheus collectors
	callsTotal      *prometheus.CounterVec
	callDuration    *prometheus.HistogramVec
	deadLetterTotal *prometheus.CounterVec
	readersRunning  *prometheus.GaugeVec

	registerer prometheus.Registerer
	registered bool
}

// DeadLetterStats holds dead-letter counters for one source queue.
type DeadLetterStats struct {
	Rerouted      uint64    `json:"rerouted"`
	LastTarget    string    `json:"last_target,omitempty"`
	LastUpdatedAt time.Time `json:"last_updated_at"`
}

// Snapshot provides a point-in-time view of dead-letter statistics.
type Snapshot struct {
	TotalDeadLetters uint64                      `json:"total_dead_letters"`
	Queues           map[string]*DeadLetterStats `json:"queues"`
	CollectedAt      time.Time                   `json:"collected_at"`
}

func newCounterVec(name, help string, labels []string) *prometheus.CounterVec {
	return prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "queueflow",
			Subsystem: "queue",
			Name:      name,
			Help:      help,
		},
		labels,
	)
}

// New creates a metrics collector. A nil registerer uses the default one.
func New(registerer prometheus.Registerer) *QueueMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &QueueMetrics{
		deadLetters: make(map[string]*DeadLetterStats),
		registerer:  registerer,
		callsTotal:  newCounterVec("calls_total", "Total number of queue calls by operation and outcome", []string{"queue", "operation", "outcome"}),
		callDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "queueflow",
				Subsystem: "queue",
				Name:      "call_duration_seconds",
				Help:      "Duration of queue calls and message handling",
				Buckets:   []float64{.005, .01, .05, .1, .5, 1, 5, 10, 20, 30},
			},
			[]string{"queue", "operation"},
		),
		deadLetterTotal: newCounterVec("dead_letters_total", "Total number of messages rerouted to a dead-letter queue", []string{"queue", "target"}),
		readersRunning: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "queueflow",
				Subsystem: "queue",
				Name:      "readers_running",
				Help:      "Number of readers currently polling a queue",
			},
			[]string{"queue"},
		),
	}
}

// Register registers the Prometheus collectors. Safe to call multiple times.
func (m *QueueMetrics) Register() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.registered {
		return nil
	}

	collectors := []prometheus.Collector{
		m.callsTotal,
		m.callDuration,
		m.deadLetterTotal,
		m.readersRunning,
	}

	for _, c := range collectors {
		if err := m.registerer.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				return err
			}
		}
	}

	m.registered = true
	return nil
}

// Observer returns an events observer feeding the call counters.
func (m *QueueMetrics) Observer() events.Observer {
	return events.Observer{
		OnFinish: func(info events.CallInfo) {
			m.callsTotal.WithLabelValues(info.Queue, info.Operation, "success").Inc()
			m.callDuration.WithLabelValues(info.Queue, info.Operation).Observe(info.Duration.Seconds())
		},
		OnError: func(info events.CallInfo) {
			m.callsTotal.WithLabelValues(info.Queue, info.Operation, "error").Inc()
			m.callDuration.WithLabelValues(info.Queue, info.Operation).Observe(info.Duration.Seconds())
		},
	}
}

// RecordDeadLetter records a message from queue being rerouted to target.
func (m *QueueMetrics) RecordDeadLetter(queue, target string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stats, ok := m.deadLetters[queue]
	if !ok {
		stats = &DeadLetterStats{}
		m.deadLetters[queue] = stats
	}
	stats.Rerouted++
	stats.LastTarget = target
	stats.LastUpdatedAt = time.Now()

	m.deadLetterTotal.WithLabelValues(queue, target).Inc()
}

// SetReadersRunning sets the running reader gauge for queue.
func (m *QueueMetrics) SetReadersRunning(queue string, n int) {
	m.readersRunning.WithLabelValues(queue).Set(float64(n))
}

// Snapshot returns a copy of the dead-letter statistics.
func (m *QueueMetrics) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snapshot := Snapshot{
		Queues:      make(map[string]*DeadLetterStats, len(m.deadLetters)),
		CollectedAt: time.Now(),
	}
	for queue, stats := range m.deadLetters {
		statsCopy := *stats
		snapshot.Queues[queue] = &statsCopy
		snapshot.TotalDeadLetters += stats.Rerouted
	}
	return snapshot
}

// Reset clears all metrics (useful for testing).
func (m *QueueMetrics) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.deadLetters = make(map[string]*DeadLetterStats)
	m.callsTotal.Reset()
	m.callDuration.Reset()
	m.deadLetterTotal.Reset()
	m.readersRunning.Reset()
}
