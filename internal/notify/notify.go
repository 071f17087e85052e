// Package notify defines the run-completion notification sink: a
// narrow event type plus a batching SMTP implementation.
package notify

import (
	"fmt"
	"time"

	"github.com/kipbackup/kip/internal/job"
)

// Event is emitted once per finished run.
type Event struct {
	JobName string
	RunID   int
	Status  job.Status
	At      time.Time
	Message string
}

// Sink delivers Events. Implementations must be safe for concurrent use.
type Sink interface {
	Notify(e Event) error
	Close() error
}

// EventFromRun builds an Event from a completed Run.
func EventFromRun(jobName string, r *job.Run) Event {
	msg := fmt.Sprintf("run %d finished with status %s (%d bytes uploaded, %d files)",
		r.ID, r.Status, r.BytesUploaded, len(r.FilesChanged))
	return Event{JobName: jobName, RunID: r.ID, Status: r.Status, At: r.Finished, Message: msg}
}
