package events

import (
	"sync"
	"time"

	"github.com/drblury/queueflow/internal/runtime/attributes"
	qerrors "github.com/drblury/queueflow/internal/runtime/errors"
	"github.com/drblury/queueflow/internal/runtime/logging"
)

// Operation names carried by CallInfo.
const (
	OpSend    = "sendMessage"
	OpReceive = "receiveMessage"
	OpDelete  = "deleteMessage"
	OpHandle  = "handleQueueMessage"
)

// CallInfo describes one transport call or one handled message.
type CallInfo struct {
	// Operation is one of the Op constants.
	Operation string
	// Queue is the logical queue name.
	Queue string
	// MessageID is set for send, delete and handle calls once known.
	MessageID string
	// Attributes are the message attributes, when a message is involved.
	Attributes attributes.Attributes
	// Reader is the 1-based reader index for consumer-side calls, zero otherwise.
	Reader int
	// StartedAt is when the call began.
	StartedAt time.Time
	// Duration is only set on finish and error events.
	Duration time.Duration
	// Err is only set on error events.
	Err error
}

// Observer receives telemetry events. All callbacks are optional.
type Observer struct {
	OnStart  func(CallInfo)
	OnFinish func(CallInfo)
	OnError  func(CallInfo)
}

// Merge combines two observers. The callbacks from other run after o's.
func (o Observer) Merge(other Observer) Observer {
	return Observer{
		OnStart:  chain(o.OnStart, other.OnStart),
		OnFinish: chain(o.OnFinish, other.OnFinish),
		OnError:  chain(o.OnError, other.OnError),
	}
}

func chain(a, b func(CallInfo)) func(CallInfo) {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return func(info CallInfo) {
		a(info)
		b(info)
	}
}

// Bus delivers events to registered observers. A nil Bus, or one with no
// observers, drops events.
type Bus struct {
	mu        sync.RWMutex
	next      uint64
	observers []registered
}

type registered struct {
	id       uint64
	observer Observer
}

// NewBus returns an empty bus.
func NewBus() *Bus {
	return &Bus{}
}

// Register adds an observer and returns a func that removes it again.
// Observers are called in registration order.
func (b *Bus) Register(o Observer) (unregister func()) {
	b.mu.Lock()
	id := b.next
	b.next++
	b.observers = append(b.observers, registered{id: id, observer: o})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			for i, r := range b.observers {
				if r.id == id {
					b.observers = append(b.observers[:i:i], b.observers[i+1:]...)
					return
				}
			}
		})
	}
}

// Len returns the number of registered observers.
func (b *Bus) Len() int {
	if b == nil {
		return 0
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.observers)
}

func (b *Bus) Start(info CallInfo) {
	b.emit(info, func(o Observer) func(CallInfo) { return o.OnStart })
}

func (b *Bus) Finish(info CallInfo) {
	b.emit(info, func(o Observer) func(CallInfo) { return o.OnFinish })
}

func (b *Bus) Error(info CallInfo) {
	b.emit(info, func(o Observer) func(CallInfo) { return o.OnError })
}

func (b *Bus) emit(info CallInfo, pick func(Observer) func(CallInfo)) {
	if b == nil {
		return
	}
	b.mu.RLock()
	if len(b.observers) == 0 {
		b.mu.RUnlock()
		return
	}
	callbacks := make([]func(CallInfo), 0, len(b.observers))
	for _, r := range b.observers {
		if fn := pick(r.observer); fn != nil {
			callbacks = append(callbacks, fn)
		}
	}
	b.mu.RUnlock()

	for _, fn := range callbacks {
		fn(info)
	}
}

// Track emits start, runs fn, then emits finish or error with the elapsed time.
func (b *Bus) Track(info CallInfo, fn func() error) error {
	info.StartedAt = time.Now()
	b.Start(info)
	err := fn()
	info.Duration = time.Since(info.StartedAt)
	if err != nil {
		info.Err = err
		b.Error(info)
		return err
	}
	b.Finish(info)
	return nil
}

// LoggingObserver logs every event at debug level and errors at error level.
// Errors already logged where they happened are only repeated at debug level.
func LoggingObserver(logger logging.ServiceLogger) Observer {
	return Observer{
		OnStart: func(info CallInfo) {
			logger.Debug("Queue call started", fields(info))
		},
		OnFinish: func(info CallInfo) {
			f := fields(info)
			f["duration_ms"] = info.Duration.Milliseconds()
			logger.Debug("Queue call finished", f)
		},
		OnError: func(info CallInfo) {
			f := fields(info)
			f["duration_ms"] = info.Duration.Milliseconds()
			if qerrors.IsAlreadyLogged(info.Err) {
				f["error"] = info.Err.Error()
				logger.Debug("Queue call failed", f)
				return
			}
			logger.Error("Queue call failed", info.Err, f)
		},
	}
}

func fields(info CallInfo) logging.LogFields {
	f := logging.LogFields{
		"operation": info.Operation,
		"queue":     info.Queue,
	}
	if info.MessageID != "" {
		f["message_id"] = info.MessageID
	}
	if info.Reader > 0 {
		f["reader"] = info.Reader
	}
	return f
}
