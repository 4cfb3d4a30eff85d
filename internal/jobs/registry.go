// Package jobs tracks analyses started from the web surface. Jobs live in
// memory only; a restart forgets them.
package jobs

import (
	"sync"
	"time"

	"github.com/fpang/call-sentiment/internal/report"
)

// Status values reported to the browser.
const (
	StatusRunning  = "running"
	StatusComplete = "complete"
	StatusError    = "error"
)

// Job is one analysis request.
type Job struct {
	mu       sync.Mutex
	id       string
	videoURL string
	status   string
	phase    string
	errMsg   string
	report   *report.Report
	created  time.Time
}

// View is a consistent snapshot of a Job for JSON responses.
type View struct {
	ID       string         `json:"id"`
	VideoURL string         `json:"videoUrl"`
	Status   string         `json:"status"`
	Phase    string         `json:"phase,omitempty"`
	Error    string         `json:"error,omitempty"`
	Report   *report.Report `json:"report,omitempty"`
}

func (j *Job) ID() string { return j.id }

// SetPhase records progress while the job is running.
func (j *Job) SetPhase(phase string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.status == StatusRunning {
		j.phase = phase
	}
}

// Complete stores the finished report.
func (j *Job) Complete(r *report.Report) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.status = StatusComplete
	j.phase = ""
	j.report = r
}

// Fail marks the job as failed with a user-facing message.
func (j *Job) Fail(msg string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.status = StatusError
	j.errMsg = msg
}

// Snapshot returns the current state.
func (j *Job) Snapshot() View {
	j.mu.Lock()
	defer j.mu.Unlock()
	return View{
		ID:       j.id,
		VideoURL: j.videoURL,
		Status:   j.status,
		Phase:    j.phase,
		Error:    j.errMsg,
		Report:   j.report,
	}
}

// Registry holds jobs by ID. Finished jobs older than the retention period
// are dropped whenever a new job is added.
type Registry struct {
	mu        sync.Mutex
	jobs      map[string]*Job
	retention time.Duration
	now       func() time.Time
}

// DefaultRetention is how long finished jobs stay readable.
const DefaultRetention = time.Hour

// NewRegistry creates an empty Registry.
func NewRegistry(retention time.Duration) *Registry {
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &Registry{jobs: make(map[string]*Job), retention: retention, now: time.Now}
}

// New registers a running job for videoURL.
func (r *Registry) New(videoURL string) *Job {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pruneLocked()
	j := &Job{
		id:       GenerateID(IDPrefix),
		videoURL: videoURL,
		status:   StatusRunning,
		created:  r.now(),
	}
	r.jobs[j.id] = j
	return j
}

// Get returns the job with id, or nil.
func (r *Registry) Get(id string) *Job {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.jobs[id]
}

// Len is the number of retained jobs.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.jobs)
}

func (r *Registry) pruneLocked() {
	cutoff := r.now().Add(-r.retention)
	for id, j := range r.jobs {
		j.mu.Lock()
		done := j.status != StatusRunning
		j.mu.Unlock()
		if done && j.created.Before(cutoff) {
			delete(r.jobs, id)
		}
	}
}
