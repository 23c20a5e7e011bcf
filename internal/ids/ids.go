package ids

import (
	mathrand "math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(mathrand.New(mathrand.NewSource(time.Now().UnixNano())), 0)
)

// New returns a lexicographically sortable identifier suitable for storage keys.
func New() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}

// NewSessionID returns an opaque session identifier. Sessions use random UUIDs
// rather than ULIDs so the identifier embedded in a credential does not leak
// issue ordering.
func NewSessionID() string {
	return uuid.NewString()
}

// NewRequestID returns a correlation identifier for one HTTP request.
func NewRequestID() string {
	return uuid.NewString()
}
