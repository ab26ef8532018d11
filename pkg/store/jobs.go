package store

import (
	"context"
	"database/sql"

	"github.com/codeready-toolchain/mswim/pkg/models"
)

// JobStore persists models.JobRun rows.
type JobStore struct {
	db *sql.DB
}

// Start records a new running job execution, failing with
// apperrors.ErrAlreadyExists if one is already running for this job name
// (enforced by the partial unique index, §4.11 "one execution at a time").
func (s *JobStore) Start(ctx context.Context, run models.JobRun) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO job_runs (id, job_name, status, started_at, triggered_by)
		VALUES ($1,$2,$3,$4,$5)`,
		run.ID, run.JobName, models.JobStatusRunning, run.StartedAt, run.TriggeredBy,
	)
	return wrapErr("start_job_run", err)
}

// Finish marks a job run completed or failed.
func (s *JobStore) Finish(ctx context.Context, id string, status models.JobStatus, completedAt sql.NullTime, durationMs int64, summary, errMsg string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE job_runs SET status=$2, completed_at=$3, duration_ms=$4, summary=$5, error_message=$6
		WHERE id = $1`,
		id, status, completedAt, durationMs, nullString(summary), nullString(errMsg),
	)
	if err != nil {
		return wrapErr("finish_job_run", err)
	}
	return affectedOrNotFound(res, "finish_job_run", id)
}

// LastCompleted returns the most recently completed (non-running) run for
// a job name, used to decide whether a scheduled run is overdue.
func (s *JobStore) LastCompleted(ctx context.Context, name models.JobName) (models.JobRun, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, job_name, status, started_at, completed_at, duration_ms, summary, error_message, triggered_by
		FROM job_runs WHERE job_name = $1 AND status <> 'running'
		ORDER BY started_at DESC LIMIT 1`, name)

	var run models.JobRun
	var completedAt sql.NullTime
	var duration sql.NullInt64
	var summary, errMsg sql.NullString
	err := row.Scan(&run.ID, &run.JobName, &run.Status, &run.StartedAt, &completedAt, &duration,
		&summary, &errMsg, &run.TriggeredBy)
	if err != nil {
		return models.JobRun{}, wrapErr("get_last_job_run", err)
	}
	run.CompletedAt = nullTimePtr(completedAt)
	run.DurationMs = duration.Int64
	run.Summary = summary.String
	run.ErrorMessage = errMsg.String
	return run, nil
}
