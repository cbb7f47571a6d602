package app

import (
	"time"

	"cdmkn-go/internal/cdmkn"
)

// Run identifies one CLI invocation. Its ID tags every log line the
// invocation writes, so interleaved daemon and CLI output can be told apart.
type Run struct {
	ID        string
	Command   string
	StartedAt time.Time
	Status    string // "success" or "error"
}

// NewRun creates a run for command. The ID is the UTC start time followed
// by the first eight characters of a generated id.
func NewRun(command string, clock cdmkn.Clock, idgen cdmkn.IDGenerator) *Run {
	started := clock.Now().UTC()
	suffix := idgen.New()
	if len(suffix) > 8 {
		suffix = suffix[:8]
	}
	return &Run{
		ID:        started.Format("20060102T150405Z") + "-" + suffix,
		Command:   command,
		StartedAt: started,
		Status:    "success",
	}
}

// Fail marks the run as failed.
func (r *Run) Fail() { r.Status = "error" }

// Failed reports whether the run was marked as failed.
func (r *Run) Failed() bool { return r.Status == "error" }
