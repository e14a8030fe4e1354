package errors

import sterrors "errors"

var (
	ErrClientRequired    = sterrors.New("queueflow: queue client is required")
	ErrHandlerRequired   = sterrors.New("queueflow: handler is required")
	ErrQueueRequired     = sterrors.New("queueflow: logical queue name is required")
	ErrUnknownQueue      = sterrors.New("queueflow: unknown logical queue")
	ErrNotSubscribed     = sterrors.New("queueflow: queue has no subscription")
	ErrAlreadySubscribed = sterrors.New("queueflow: queue is already subscribed")
	ErrTransportRequired = sterrors.New("queueflow: transport is required")
	ErrConfigRequired    = sterrors.New("queueflow: config is required")
	ErrLoggerRequired    = sterrors.New("queueflow: logger is required")
	ErrRawPayload        = sterrors.New("queueflow: raw payload must be []byte or string")
)

// Configuration failure reasons. They are matched by value in ConfigurationError.Is
// so callers can test errors.Is(err, ErrIdentityUnavailable).
var (
	ErrIdentityUnavailable = &ConfigurationError{Reason: "identity unavailable"}
	ErrRoleMismatch        = &ConfigurationError{Reason: "role mismatch"}
	ErrUnknownEndpoint     = &ConfigurationError{Reason: "unknown endpoint"}
	ErrInvalidEndpoint     = &ConfigurationError{Reason: "invalid endpoint"}

	ErrUnsupportedCompression = &EncodingError{Reason: "unsupported compression"}
)
