package sequencer

import (
	"time"

	"github.com/aatumaykin/sequencer/internal/job"
)

// Report summarizes one pass over the job list.
type Report struct {
	PassID    string
	Started   time.Time
	Finished  time.Time
	Results   []job.Result // One entry per job that was started, in order
	Cancelled bool         // The pass stopped early because its context ended
}

// Succeeded returns the number of jobs that exited with status zero.
func (r Report) Succeeded() int {
	n := 0
	for _, res := range r.Results {
		if res.Succeeded() {
			n++
		}
	}
	return n
}

// Failed returns the number of jobs that failed to start or exited non-zero.
func (r Report) Failed() int {
	return len(r.Results) - r.Succeeded()
}
