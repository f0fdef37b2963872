// Package pulse implements the asynchronous test-execution engine: an
// in-memory job registry and a fan-out engine dispatching test cases to the
// evaluation service under concurrency, budget, and rate limits.
package pulse

import (
	"time"

	"github.com/teranos/promptpulse/eval"
)

// JobStatus represents the current state of a job.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// IsValidStatus returns true if the status string is a valid JobStatus.
func IsValidStatus(s string) bool {
	switch JobStatus(s) {
	case JobStatusPending, JobStatusRunning, JobStatusCompleted, JobStatusFailed:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether the status is completed or failed. Terminal
// jobs are read-only except for registry removal.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// Progress represents job progress information.
type Progress struct {
	Current int `json:"current"` // returned sub-evaluations
	Total   int `json:"total"`   // total sub-evaluations
}

// Percentage calculates progress as a percentage (0-100).
func (p Progress) Percentage() float64 {
	if p.Total == 0 {
		return 0
	}
	return float64(p.Current) / float64(p.Total) * 100
}

// Metadata carries per-job run counters and the target environment.
type Metadata struct {
	TotalTests     int    `json:"total_tests"`
	CompletedTests int    `json:"completed_tests"`
	FailedTests    int    `json:"failed_tests"`
	Environment    string `json:"environment"`
}

// Job represents one asynchronous test-execution request against a prompt
// version.
//
// State machine: pending -> running -> {completed, failed}. No re-entrant
// transitions. Job state lives only in the registry; nothing survives a
// process restart, jobs are cheap to resubmit.
type Job struct {
	ID          string     `json:"id"`
	PromptID    string     `json:"prompt_id"`
	Version     string     `json:"version"`
	TestCaseIDs []string   `json:"test_case_ids"`
	Status      JobStatus  `json:"status"`
	Progress    Progress   `json:"progress"`
	Metadata    Metadata   `json:"metadata"`
	Error       string     `json:"error,omitempty"`
	ResultIDs   []string   `json:"result_ids,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	UpdatedAt   time.Time  `json:"updated_at"`

	// raw is the evaluation payload for a completed job. Held in memory
	// only; persisted results live in the results package.
	raw *eval.RawResult
}

// snapshot returns a copy safe to hand to callers while the engine keeps
// mutating the original under the registry lock.
func (j *Job) snapshot() *Job {
	copied := *j
	copied.TestCaseIDs = append([]string(nil), j.TestCaseIDs...)
	copied.ResultIDs = append([]string(nil), j.ResultIDs...)
	return &copied
}
