package consumer

import "sync/atomic"

// State is the lifecycle state of one reader.
type State int32

const (
	StateIdle State = iota
	StateStarting
	StateRunning
	StateStopping
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// allowed lists the legal transitions. Running -> Starting only happens
// while a reader reconnects after credential expiry.
var allowed = map[State][]State{
	StateIdle:     {StateStarting, StateStopped},
	StateStarting: {StateRunning, StateStopping, StateStopped},
	StateRunning:  {StateStarting, StateStopping, StateStopped},
	StateStopping: {StateStopped},
}

type stateCell struct {
	v atomic.Int32
}

func (c *stateCell) load() State {
	return State(c.v.Load())
}

// transition moves to next if that is legal from the current state.
func (c *stateCell) transition(next State) bool {
	for {
		cur := c.load()
		if !legal(cur, next) {
			return false
		}
		if c.v.CompareAndSwap(int32(cur), int32(next)) {
			return true
		}
	}
}

// swap moves from cur to next only when the cell currently holds cur.
func (c *stateCell) swap(cur, next State) bool {
	return legal(cur, next) && c.v.CompareAndSwap(int32(cur), int32(next))
}

func legal(from, to State) bool {
	for _, s := range allowed[from] {
		if s == to {
			return true
		}
	}
	return false
}
