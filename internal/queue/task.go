package queue

import "fmt"

// RunStreamName is the per-run Redis stream the worker publishes generation
// progress to. The server tails it to serve live output over SSE.
func RunStreamName(prefix string, runID int64) string {
	return fmt.Sprintf("%s:%d", prefix, runID)
}

// Fields published on a run output stream.
const (
	OutputFieldToken = "token"
	OutputFieldEvent = "event"
	EventDone        = "done"
	EventFailed      = "failed"
)
