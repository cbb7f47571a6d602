package cdmkn

import (
	"time"

	"github.com/google/uuid"
)

// Clock abstracts time retrieval so history timestamps are deterministic in tests.
type Clock interface {
	Now() time.Time
}

// RealClock returns the current time in UTC. Stored timestamps are always
// UTC so that their text form sorts chronologically.
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now().UTC() }

// IDGenerator abstracts unique ID generation so tests are deterministic.
type IDGenerator interface {
	New() string
}

// UUIDGenerator produces random UUIDs.
type UUIDGenerator struct{}

func (UUIDGenerator) New() string { return uuid.New().String() }
