package models

import "time"

// JobName identifies one of the named scheduled jobs (§4.11).
type JobName string

// Jobs run by the drift detector / job runner.
const (
	JobNightlyBatch  JobName = "nightly_batch"
	JobDriftCheck    JobName = "drift_check"
	JobRolloutHealth JobName = "rollout_health"
)

// JobStatus is the outcome state of one JobRun.
type JobStatus string

// Job run statuses.
const (
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// JobRun is one execution record for a named job (§4.11).
type JobRun struct {
	ID            string     `json:"id"`
	JobName       JobName    `json:"jobName"`
	Status        JobStatus  `json:"status"`
	StartedAt     time.Time  `json:"startedAt"`
	CompletedAt   *time.Time `json:"completedAt,omitempty"`
	DurationMs    int64      `json:"durationMs,omitempty"`
	Summary       string     `json:"summary,omitempty"`
	ErrorMessage  string     `json:"errorMessage,omitempty"`
	TriggeredBy   string     `json:"triggeredBy"`
}
