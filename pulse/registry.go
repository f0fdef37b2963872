package pulse

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/teranos/promptpulse/errors"
	"github.com/teranos/promptpulse/eval"
	"github.com/teranos/promptpulse/logger"
)

// DefaultRetention is how long a terminal job stays readable after
// completion before a status read sweeps it away.
const DefaultRetention = time.Hour

// Registry owns the in-memory job table. Every mutation path (submission,
// progress updates, completion, cleanup) goes through the registry lock, so
// concurrent callers cannot lose updates on the same job.
//
// The registry is an injected instance, not a package-level map.
type Registry struct {
	mu        sync.Mutex
	jobs      map[string]*Job
	retention time.Duration
	timeNow   func() time.Time // injectable for testing
	logger    *zap.SugaredLogger
}

// NewRegistry creates a job registry with the given retention window.
// retention <= 0 means DefaultRetention.
func NewRegistry(retention time.Duration, log *zap.SugaredLogger) *Registry {
	if retention <= 0 {
		retention = DefaultRetention
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Registry{
		jobs:      make(map[string]*Job),
		retention: retention,
		timeNow:   time.Now,
		logger:    log,
	}
}

// Add registers a new job. The ID must be unused.
func (r *Registry) Add(job *Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.jobs[job.ID]; exists {
		return errors.Newf("job %s already registered", job.ID)
	}
	r.jobs[job.ID] = job
	return nil
}

// Get returns a snapshot of the job's current state.
//
// Lazy sweep: when the job is terminal and its completion is older than the
// retention window, the entry is removed as a side effect; this final read
// still returns the snapshot.
func (r *Registry) Get(jobID string) (*Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[jobID]
	if !ok {
		return nil, errors.Wrapf(errors.ErrJobNotFound, "job %s", jobID)
	}

	snap := job.snapshot()
	if job.Status.IsTerminal() && job.CompletedAt != nil &&
		r.timeNow().Sub(*job.CompletedAt) > r.retention {
		delete(r.jobs, jobID)
		r.logger.Debugw("Expired job swept on read", logger.FieldJobID, jobID)
	}
	return snap, nil
}

// Result returns the raw evaluation payload of a completed job. A pending
// or running job is not ready; a failed job returns its recorded error.
// Partial payloads are never returned.
func (r *Registry) Result(jobID string) (*eval.RawResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[jobID]
	if !ok {
		return nil, errors.Wrapf(errors.ErrJobNotFound, "job %s", jobID)
	}

	switch job.Status {
	case JobStatusCompleted:
		return job.raw, nil
	case JobStatusFailed:
		return nil, errors.Newf("job %s failed: %s", jobID, job.Error)
	default:
		return nil, errors.Wrapf(errors.ErrJobStillRunning, "job %s is %s", jobID, job.Status)
	}
}

// Dismiss removes a terminal job. Dismissing a pending or running job fails;
// there is no mid-flight cancellation.
func (r *Registry) Dismiss(jobID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[jobID]
	if !ok {
		return errors.Wrapf(errors.ErrJobNotFound, "job %s", jobID)
	}
	if !job.Status.IsTerminal() {
		return errors.Wrapf(errors.ErrJobStillRunning, "job %s is %s", jobID, job.Status)
	}

	delete(r.jobs, jobID)
	return nil
}

// Cleanup removes a job entry if it exists and is terminal. Idempotent:
// repeated calls and calls for unknown IDs are no-ops. Returns whether an
// entry was removed.
func (r *Registry) Cleanup(jobID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[jobID]
	if !ok || !job.Status.IsTerminal() {
		return false
	}
	delete(r.jobs, jobID)
	return true
}

// Len reports the number of registered jobs.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.jobs)
}

// markRunning transitions pending -> running.
func (r *Registry) markRunning(jobID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[jobID]
	if !ok || job.Status != JobStatusPending {
		return
	}
	now := r.timeNow()
	job.Status = JobStatusRunning
	job.StartedAt = &now
	job.UpdatedAt = now
}

// updateProgress records one returned sub-evaluation. Progress advances on
// every return, pass or fail.
func (r *Registry) updateProgress(jobID string, testFailed bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[jobID]
	if !ok || job.Status.IsTerminal() {
		return
	}
	job.Progress.Current++
	job.Metadata.CompletedTests++
	if testFailed {
		job.Metadata.FailedTests++
	}
	job.UpdatedAt = r.timeNow()
}

// complete transitions running -> completed with the assembled payload.
func (r *Registry) complete(jobID string, raw *eval.RawResult, resultIDs []string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[jobID]
	if !ok || job.Status.IsTerminal() {
		return
	}
	now := r.timeNow()
	job.Status = JobStatusCompleted
	job.raw = raw
	job.ResultIDs = resultIDs
	job.CompletedAt = &now
	job.UpdatedAt = now
}

// fail transitions to failed with an execution-level fault. A job that
// already reached a terminal state stays put: a late timeout cannot
// overwrite a completion.
func (r *Registry) fail(jobID string, errMsg string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[jobID]
	if !ok || job.Status.IsTerminal() {
		return
	}
	now := r.timeNow()
	job.Status = JobStatusFailed
	job.Error = errMsg
	job.CompletedAt = &now
	job.UpdatedAt = now
}
