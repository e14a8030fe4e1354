package events

import (
	"errors"
	"sync"
	"testing"

	qerrors "github.com/drblury/queueflow/internal/runtime/errors"
	"github.com/drblury/queueflow/internal/runtime/logging"
)

func TestBusWithoutObserversIsNoop(t *testing.T) {
	var nilBus *Bus
	nilBus.Start(CallInfo{Operation: OpSend})
	nilBus.Error(CallInfo{Operation: OpSend, Err: errors.New("boom")})

	bus := NewBus()
	bus.Start(CallInfo{Operation: OpSend})
	bus.Finish(CallInfo{Operation: OpSend})
	bus.Error(CallInfo{Operation: OpSend})
	if bus.Len() != 0 || nilBus.Len() != 0 {
		t.Fatal("expected no observers")
	}
}

func TestBusRegisterAndUnregister(t *testing.T) {
	bus := NewBus()
	var starts, finishes int
	unregister := bus.Register(Observer{
		OnStart:  func(CallInfo) { starts++ },
		OnFinish: func(CallInfo) { finishes++ },
	})

	bus.Start(CallInfo{Operation: OpReceive})
	bus.Finish(CallInfo{Operation: OpReceive})
	bus.Error(CallInfo{Operation: OpReceive})

	if starts != 1 || finishes != 1 {
		t.Fatalf("unexpected counts start=%d finish=%d", starts, finishes)
	}

	unregister()
	unregister()
	bus.Start(CallInfo{Operation: OpReceive})
	if starts != 1 || bus.Len() != 0 {
		t.Fatalf("expected observer removed, starts=%d len=%d", starts, bus.Len())
	}
}

func TestBusTrack(t *testing.T) {
	bus := NewBus()
	var got []CallInfo
	bus.Register(Observer{
		OnStart:  func(info CallInfo) { got = append(got, info) },
		OnFinish: func(info CallInfo) { got = append(got, info) },
		OnError:  func(info CallInfo) { got = append(got, info) },
	})

	if err := bus.Track(CallInfo{Operation: OpSend, Queue: "orders"}, func() error { return nil }); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	boom := errors.New("boom")
	if err := bus.Track(CallInfo{Operation: OpDelete, Queue: "orders"}, func() error { return boom }); !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	if len(got) != 4 {
		t.Fatalf("expected 4 events, got %d", len(got))
	}
	if got[0].StartedAt.IsZero() || got[1].Err != nil {
		t.Fatalf("unexpected success events %#v", got[:2])
	}
	if got[3].Operation != OpDelete || !errors.Is(got[3].Err, boom) {
		t.Fatalf("unexpected error event %#v", got[3])
	}
}

func TestObserverMerge(t *testing.T) {
	var order []string
	a := Observer{OnStart: func(CallInfo) { order = append(order, "a") }}
	b := Observer{
		OnStart: func(CallInfo) { order = append(order, "b") },
		OnError: func(CallInfo) { order = append(order, "b-error") },
	}

	merged := a.Merge(b)
	merged.OnStart(CallInfo{})
	merged.OnError(CallInfo{})
	if merged.OnFinish != nil {
		t.Fatal("expected nil finish when neither side has one")
	}
	if len(order) != 3 || order[0] != "a" || order[1] != "b" || order[2] != "b-error" {
		t.Fatalf("unexpected order %v", order)
	}
}

func TestBusConcurrentRegister(t *testing.T) {
	bus := NewBus()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unregister := bus.Register(Observer{OnStart: func(CallInfo) {}})
			bus.Start(CallInfo{})
			unregister()
		}()
	}
	wg.Wait()
	if bus.Len() != 0 {
		t.Fatalf("expected all observers removed, got %d", bus.Len())
	}
}

func TestLoggingObserver(t *testing.T) {
	rec := &recordingLogger{}
	obs := LoggingObserver(rec)

	obs.OnStart(CallInfo{Operation: OpHandle, Queue: "orders", Reader: 2, MessageID: "m1"})
	obs.OnError(CallInfo{Operation: OpHandle, Queue: "orders", Err: errors.New("boom")})

	if len(rec.entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(rec.entries))
	}
	if rec.entries[0].level != "debug" || rec.entries[0].fields["reader"] != 2 || rec.entries[0].fields["message_id"] != "m1" {
		t.Fatalf("unexpected start entry %#v", rec.entries[0])
	}
	if rec.entries[1].level != "error" || rec.entries[1].err == nil {
		t.Fatalf("unexpected error entry %#v", rec.entries[1])
	}
	if _, ok := rec.entries[1].fields["reader"]; ok {
		t.Fatal("reader field must be omitted outside consumers")
	}
}

func TestLoggingObserverDemotesAlreadyLoggedErrors(t *testing.T) {
	rec := &recordingLogger{}
	obs := LoggingObserver(rec)

	logged := qerrors.MessageError{Queue: "orders", MessageID: "m1", AlreadyLogged: true, Cause: errors.New("boom")}
	obs.OnError(CallInfo{Operation: OpHandle, Queue: "orders", MessageID: "m1", Err: logged})

	if len(rec.entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(rec.entries))
	}
	if rec.entries[0].level != "debug" || rec.entries[0].fields["error"] != logged.Error() {
		t.Fatalf("unexpected entry %#v", rec.entries[0])
	}
}

type recordingLogger struct {
	entries []entry
}

type entry struct {
	level  string
	msg    string
	err    error
	fields logging.LogFields
}

func (r *recordingLogger) With(logging.LogFields) logging.ServiceLogger { return r }
func (r *recordingLogger) Debug(msg string, f logging.LogFields) {
	r.entries = append(r.entries, entry{level: "debug", msg: msg, fields: f})
}
func (r *recordingLogger) Info(msg string, f logging.LogFields) {
	r.entries = append(r.entries, entry{level: "info", msg: msg, fields: f})
}
func (r *recordingLogger) Warn(msg string, f logging.LogFields) {
	r.entries = append(r.entries, entry{level: "warn", msg: msg, fields: f})
}
func (r *recordingLogger) Error(msg string, err error, f logging.LogFields) {
	r.entries = append(r.entries, entry{level: "error", msg: msg, err: err, fields: f})
}
func (r *recordingLogger) Trace(msg string, f logging.LogFields) {
	r.entries = append(r.entries, entry{level: "trace", msg: msg, fields: f})
}
