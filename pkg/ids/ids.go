// Package ids generates the identifiers used across the service.
// Messages, attachments and custom emoji use ULIDs so ids sort by
// creation time; request correlation relies on UUIDs.
package ids

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

// New returns a fresh ULID. Successive calls within the same millisecond
// stay strictly increasing.
func New() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now().UTC()), entropy).String()
}

// IsULID reports whether s parses as a ULID. Used to tell custom emoji
// ids apart from unicode emoji.
func IsULID(s string) bool {
	if len(s) != ulid.EncodedSize {
		return false
	}
	_, err := ulid.ParseStrict(s)
	return err == nil
}

// Timestamp extracts the embedded creation time of a ULID.
func Timestamp(id string) (time.Time, error) {
	parsed, err := ulid.ParseStrict(id)
	if err != nil {
		return time.Time{}, err
	}
	return ulid.Time(parsed.Time()).UTC(), nil
}

// RequestID returns a UUIDv4 for request correlation.
func RequestID() string {
	return uuid.NewString()
}
