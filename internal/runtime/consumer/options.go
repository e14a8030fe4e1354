package consumer

import (
	"time"

	"golang.org/x/time/rate"
)

const (
	defaultMaxMessages = 10
	defaultWaitTime    = 20 * time.Second
	defaultReadiness   = time.Second
)

// Options tunes one subscription.
type Options struct {
	// Readers overrides the queue's configured reader count.
	Readers int
	// MaxMessages per receive call, 1..10. Defaults to 10.
	MaxMessages int32
	// WaitTime is the long-poll wait. Defaults to 20s.
	WaitTime time.Duration
	// VisibilityTimeout overrides the queue default when positive.
	VisibilityTimeout time.Duration
	// ReceiveRate limits receive calls per second for each reader. Zero
	// means unlimited.
	ReceiveRate rate.Limit
	// ReceiveBurst is the limiter burst. Defaults to 1.
	ReceiveBurst int
	// ErrorBackoff caps the pause after a transient receive error.
	ErrorBackoff time.Duration
}

func (o Options) withDefaults(configured int) Options {
	if o.Readers <= 0 {
		o.Readers = configured
	}
	if o.Readers <= 0 {
		o.Readers = 1
	}
	if o.MaxMessages <= 0 {
		o.MaxMessages = defaultMaxMessages
	}
	if o.WaitTime <= 0 {
		o.WaitTime = defaultWaitTime
	}
	if o.ReceiveBurst <= 0 {
		o.ReceiveBurst = 1
	}
	if o.ErrorBackoff <= 0 {
		o.ErrorBackoff = 30 * time.Second
	}
	return o
}

func (o Options) limiter() *rate.Limiter {
	if o.ReceiveRate <= 0 {
		return nil
	}
	return rate.NewLimiter(o.ReceiveRate, o.ReceiveBurst)
}
