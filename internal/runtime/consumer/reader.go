package consumer

import (
	"context"
	"sync"
)

type reader struct {
	index int
	state stateCell

	ready     chan struct{}
	readyOnce sync.Once
	done      chan struct{}
	cancel    context.CancelFunc
}

func newReader(index int) *reader {
	return &reader{
		index: index,
		ready: make(chan struct{}),
		done:  make(chan struct{}),
	}
}

// start claims an Idle reader for launch. A reader is launched at most once.
func (r *reader) start() bool {
	return r.state.swap(StateIdle, StateStarting)
}

// running moves the reader to Running and releases anyone waiting on ready.
func (r *reader) running() bool {
	if !r.state.transition(StateRunning) {
		return false
	}
	r.readyOnce.Do(func() { close(r.ready) })
	return true
}

func (r *reader) isReady() bool {
	select {
	case <-r.ready:
		return true
	default:
		return false
	}
}
