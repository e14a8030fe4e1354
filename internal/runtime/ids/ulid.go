package ids

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

// CreateULID returns a time-sortable ULID encoded as a 26-character string.
func CreateULID() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()

	id := ulid.MustNew(ulid.Timestamp(time.Now()), entropy)
	return id.String()
}

// NewCorrelationID returns a fresh correlation id for messages published
// without one.
func NewCorrelationID() string {
	return CreateULID()
}

// NewMessageID returns an id for transports that do not assign their own,
// such as the in-memory queue service.
func NewMessageID() string {
	return "msg-" + CreateULID()
}
