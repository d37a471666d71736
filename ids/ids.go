// Package ids generates message identifiers.
package ids

import (
	"crypto/rand"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// Generator returns a new unique identifier on every call.
type Generator func() string

const (
	KindULID   = "ulid"
	KindUUIDv7 = "uuidv7"
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

// CreateUUIDv7 returns a time-ordered RFC 9562 UUID. Falls back to a random
// v4 UUID if the clock sequence cannot be read.
func CreateUUIDv7() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// Default is the generator used when none is configured.
func Default() Generator {
	return CreateULID
}

// ByName resolves a generator from its configuration name. The second result
// is false for unknown names.
func ByName(name string) (Generator, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", KindULID:
		return CreateULID, true
	case KindUUIDv7, "uuid":
		return CreateUUIDv7, true
	default:
		return nil, false
	}
}
