package logging

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"testing"

	"github.com/ThreeDotsLabs/watermill"
)

func TestEntryServiceLoggerDelegates(t *testing.T) {
	entry := newFakeEntry()
	logger := NewEntryServiceLogger(entry)

	logger.Info("boot", LogFields{"system": "test"})

	child := logger.With(LogFields{"queue": "orders"})
	child.Debug("child", LogFields{"reader": 1})

	boom := errors.New("boom")
	child.Error("child failed", boom, LogFields{"reader": 1})
	child.Warn("slow", nil)
	child.Trace("trace", nil)

	logs := entry.recorder.logs
	if len(logs) != 5 {
		t.Fatalf("expected 5 log entries, got %d", len(logs))
	}
	if logs[0].level != "info" || logs[0].msg != "boot" || logs[0].fields["system"] != "test" {
		t.Fatalf("unexpected first log: %#v", logs[0])
	}
	if logs[1].fields["queue"] != "orders" || logs[1].fields["reader"] != 1 {
		t.Fatalf("expected merged fields on second log, got %#v", logs[1].fields)
	}
	if logs[2].level != "error" || logs[2].err != boom {
		t.Fatalf("expected error with boom, got %#v", logs[2])
	}
	if logs[3].level != "warn" || logs[3].fields["queue"] != "orders" {
		t.Fatalf("unexpected warn entry: %#v", logs[3])
	}
	if logs[4].level != "trace" {
		t.Fatalf("expected trace level on final log, got %s", logs[4].level)
	}
}

func TestWatermillServiceLoggerDelegates(t *testing.T) {
	base := newRecordingWatermillLogger()
	logger := NewWatermillServiceLogger(base)

	logger.Debug("dbg", LogFields{"component": "consumer"})
	logger.Info("info", nil)
	logger.Trace("trace", LogFields{"trace": true})
	logger.Error("oops", errors.New("boom"), LogFields{"failed": true})
	logger.Warn("careful", LogFields{"queue": "orders"})

	child := logger.With(LogFields{"child": "yes"})
	child.Info("child_info", nil)

	if len(base.entries) != 7 {
		t.Fatalf("expected 7 log entries, got %d", len(base.entries))
	}
	if base.entries[0].level != "debug" || base.entries[0].fields["component"] != "consumer" {
		t.Fatalf("unexpected first entry: %#v", base.entries[0])
	}
	warn := base.entries[4]
	if warn.level != "info" || warn.fields["severity"] != "warn" || warn.fields["queue"] != "orders" {
		t.Fatalf("expected warn to map onto info with severity, got %#v", warn)
	}
	if base.entries[5].level != "with" || base.entries[5].fields["child"] != "yes" {
		t.Fatalf("expected With to propagate fields, got %#v", base.entries[5])
	}
}

func TestWatermillServiceLoggerPanicsOnNilLogger(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Fatal("expected panic when logger nil")
		}
	}()
	NewWatermillServiceLogger(nil)
}

func TestSlogLoggerPanicsOnNil(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Fatal("expected panic when slog logger nil")
		}
	}()
	NewSlogServiceLogger(nil)
}

func TestSlogServiceLoggerWarnKeepsFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewSlogServiceLogger(slog.New(slog.NewTextHandler(&buf, nil)))

	logger.With(LogFields{"queue": "orders"}).Warn("handler slow", LogFields{"reader": 2})

	out := buf.String()
	for _, want := range []string{"level=WARN", "queue=orders", "reader=2", "handler slow"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in %q", want, out)
		}
	}
}

func TestNopLoggerDiscards(t *testing.T) {
	logger := NopLogger()
	logger.With(LogFields{"k": "v"}).Info("ignored", nil)
	logger.Warn("ignored", nil)
	logger.Error("ignored", errors.New("boom"), nil)
}

func TestApplyEntryFieldsIgnoresNil(t *testing.T) {
	entry := newFakeEntry()
	if applyEntryFields(entry, nil) != entry {
		t.Fatal("expected nil fields to return same instance")
	}
	if applyEntryFields(entry, LogFields{"k": "v"}) == entry {
		t.Fatal("expected new entry when fields provided")
	}
}

func TestMergeFields(t *testing.T) {
	if got := mergeFields(nil, LogFields{"a": 1}); got["a"] != 1 {
		t.Fatalf("unexpected merge %#v", got)
	}
	base := LogFields{"a": 1}
	merged := mergeFields(base, LogFields{"a": 2, "b": 3})
	if merged["a"] != 2 || merged["b"] != 3 || base["a"] != 1 {
		t.Fatalf("unexpected merge %#v base %#v", merged, base)
	}
	if toWatermillFields(nil) != nil {
		t.Fatal("expected nil conversion to return nil")
	}
}

type recordingWatermillLogger struct {
	entries []watermillEntry
	sink    *[]watermillEntry
}

func newRecordingWatermillLogger() *recordingWatermillLogger {
	logger := &recordingWatermillLogger{}
	logger.sink = &logger.entries
	return logger
}

func (r *recordingWatermillLogger) record(entry watermillEntry) {
	*r.sink = append(*r.sink, entry)
}

type watermillEntry struct {
	level  string
	fields watermill.LogFields
	err    error
}

func (r *recordingWatermillLogger) Error(msg string, err error, fields watermill.LogFields) {
	r.record(watermillEntry{level: "error", fields: fields, err: err})
}

func (r *recordingWatermillLogger) Info(msg string, fields watermill.LogFields) {
	r.record(watermillEntry{level: "info", fields: fields})
}

func (r *recordingWatermillLogger) Debug(msg string, fields watermill.LogFields) {
	r.record(watermillEntry{level: "debug", fields: fields})
}

func (r *recordingWatermillLogger) Trace(msg string, fields watermill.LogFields) {
	r.record(watermillEntry{level: "trace", fields: fields})
}

func (r *recordingWatermillLogger) With(fields watermill.LogFields) watermill.LoggerAdapter {
	child := &recordingWatermillLogger{sink: r.sink}
	child.record(watermillEntry{level: "with", fields: fields})
	return child
}

type loggedEntry struct {
	level  string
	msg    string
	fields LogFields
	err    error
}

type fakeEntry struct {
	recorder *entryRecorder
	fields   LogFields
	err      error
}

type entryRecorder struct {
	logs []loggedEntry
}

func newFakeEntry() *fakeEntry {
	return &fakeEntry{recorder: &entryRecorder{}}
}

func (f *fakeEntry) clone() *fakeEntry {
	return &fakeEntry{recorder: f.recorder, fields: cloneFields(f.fields), err: f.err}
}

func (f *fakeEntry) Error(args ...any) { f.append("error", args...) }
func (f *fakeEntry) Warn(args ...any)  { f.append("warn", args...) }
func (f *fakeEntry) Info(args ...any)  { f.append("info", args...) }
func (f *fakeEntry) Debug(args ...any) { f.append("debug", args...) }
func (f *fakeEntry) Trace(args ...any) { f.append("trace", args...) }

func (f *fakeEntry) WithError(err error) *fakeEntry {
	clone := f.clone()
	clone.err = err
	return clone
}

func (f *fakeEntry) WithField(key string, value any) *fakeEntry {
	clone := f.clone()
	if clone.fields == nil {
		clone.fields = make(LogFields)
	}
	clone.fields[key] = value
	return clone
}

func (f *fakeEntry) append(level string, args ...any) {
	f.recorder.logs = append(f.recorder.logs, loggedEntry{
		level:  level,
		msg:    fmt.Sprint(args...),
		fields: cloneFields(f.fields),
		err:    f.err,
	})
}

func cloneFields(fields LogFields) LogFields {
	if len(fields) == 0 {
		return nil
	}
	out := make(LogFields, len(fields))
	for k, v := range fields {
		out[k] = v
	}
	return out
}
