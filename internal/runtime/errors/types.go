package errors

import (
	sterrors "errors"
	"fmt"
	"time"
)

// ConfigurationError is raised while resolving endpoints or building queues.
// It always aborts client construction.
type ConfigurationError struct {
	Reason  string
	Subject string
	Cause   error
}

func (e *ConfigurationError) Error() string {
	msg := "queueflow: configuration error: " + e.Reason
	if e.Subject != "" {
		msg += " (" + e.Subject + ")"
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *ConfigurationError) Unwrap() error {
	return e.Cause
}

// Is matches any ConfigurationError carrying the same reason.
func (e *ConfigurationError) Is(target error) bool {
	t, ok := target.(*ConfigurationError)
	if !ok {
		return false
	}
	return t.Reason == "" || t.Reason == e.Reason
}

// NewConfigurationError builds a ConfigurationError for the given reason sentinel.
func NewConfigurationError(reason *ConfigurationError, subject string, cause error) *ConfigurationError {
	return &ConfigurationError{Reason: reason.Reason, Subject: subject, Cause: cause}
}

// EncodingError fails a single publish before anything reaches the transport.
type EncodingError struct {
	Reason string
	Cause  error
}

func (e *EncodingError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("queueflow: encoding error: %s: %v", e.Reason, e.Cause)
	}
	return "queueflow: encoding error: " + e.Reason
}

func (e *EncodingError) Unwrap() error {
	return e.Cause
}

func (e *EncodingError) Is(target error) bool {
	t, ok := target.(*EncodingError)
	if !ok {
		return false
	}
	return t.Reason == "" || t.Reason == e.Reason
}

// ParseError marks a message body that could not be decoded. The message is
// left unacknowledged so the transport redelivers it.
type ParseError struct {
	Cause error
}

func (e *ParseError) Error() string {
	return "queueflow: failed to parse message body: " + e.Cause.Error()
}

func (e *ParseError) Unwrap() error {
	return e.Cause
}

// HandlerError wraps a failure returned by the application handler.
type HandlerError struct {
	Cause error
}

func (e *HandlerError) Error() string {
	return "queueflow: handler failed: " + e.Cause.Error()
}

func (e *HandlerError) Unwrap() error {
	return e.Cause
}

// TransportClass tells the consumer supervisor how to react to a transport failure.
type TransportClass int

const (
	// TransportTransient errors are logged and polling continues.
	TransportTransient TransportClass = iota
	// TransportReconnect errors discard the client and re-resolve the endpoint.
	TransportReconnect
	// TransportFatal errors stop the reader that observed them.
	TransportFatal
)

func (c TransportClass) String() string {
	switch c {
	case TransportReconnect:
		return "reconnect"
	case TransportFatal:
		return "fatal"
	default:
		return "transient"
	}
}

// TransportError wraps an error returned by a transport call.
type TransportError struct {
	Operation string
	Queue     string
	Class     TransportClass
	Cause     error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("queueflow: %s on %s failed (%s): %v", e.Operation, e.Queue, e.Class, e.Cause)
}

func (e *TransportError) Unwrap() error {
	return e.Cause
}

// StartupTimeoutError is returned when not every reader reached Running inside
// the readiness window. Readers that did start keep running.
type StartupTimeoutError struct {
	Queue  string
	Waited time.Duration
	Ready  int
	Total  int
}

func (e *StartupTimeoutError) Error() string {
	return fmt.Sprintf("queueflow: queue %s not ready after %v (%d/%d readers running)", e.Queue, e.Waited, e.Ready, e.Total)
}

// DeadLetterError is returned by handlers that want the message rerouted to a
// dead-letter queue. UseConfigured selects the receiving queue's configured target.
type DeadLetterError struct {
	Target        string
	UseConfigured bool
	Cause         error
}

// DeadLetter reroutes the message to the queue's configured dead-letter target.
func DeadLetter(cause error) *DeadLetterError {
	return &DeadLetterError{UseConfigured: true, Cause: cause}
}

// DeadLetterTo reroutes the message to an explicit logical queue.
func DeadLetterTo(queue string, cause error) *DeadLetterError {
	return &DeadLetterError{Target: queue, Cause: cause}
}

func (e *DeadLetterError) Error() string {
	if e.Cause == nil {
		return "dead letter"
	}
	return e.Cause.Error()
}

func (e *DeadLetterError) Unwrap() error {
	return e.Cause
}

// MessageError carries a per-message failure out of the pipeline. AlreadyLogged is
// set once the failure has been logged so outer layers do not log it again.
type MessageError struct {
	Queue         string
	MessageID     string
	AlreadyLogged bool
	Cause         error
}

func (e MessageError) Error() string {
	if e.Cause == nil {
		return "queueflow: message " + e.MessageID + " on " + e.Queue + " failed"
	}
	return e.Cause.Error()
}

func (e MessageError) Unwrap() error {
	return e.Cause
}

// IsAlreadyLogged reports whether err carries a MessageError marked as logged.
func IsAlreadyLogged(err error) bool {
	var me MessageError
	if sterrors.As(err, &me) {
		return me.AlreadyLogged
	}
	return false
}

// DeadLetterDirective extracts the dead-letter directive from a handler error.
func DeadLetterDirective(err error) (*DeadLetterError, bool) {
	var dl *DeadLetterError
	if sterrors.As(err, &dl) {
		return dl, true
	}
	return nil, false
}
