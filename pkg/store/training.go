package store

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/codeready-toolchain/mswim/pkg/models"
)

// TrainingStore persists models.TrainingDatapoint rows.
type TrainingStore struct {
	db *sql.DB
}

// Create inserts a training row, silently skipping ones that already exist
// for this intervention (idempotent re-run of the snapshot job, §3's
// one-row-per-terminal-outcome invariant, enforced by the unique index).
func (s *TrainingStore) Create(ctx context.Context, d models.TrainingDatapoint) error {
	sessionSnapshot, err := json.Marshal(d.SessionSnapshot)
	if err != nil {
		return wrapErr("marshal_session_snapshot", err)
	}
	eventBatch, err := json.Marshal(d.EventBatch)
	if err != nil {
		return wrapErr("marshal_event_batch", err)
	}
	evaluation, err := json.Marshal(d.Evaluation)
	if err != nil {
		return wrapErr("marshal_evaluation", err)
	}
	intervention, err := json.Marshal(d.Intervention)
	if err != nil {
		return wrapErr("marshal_intervention", err)
	}
	quality, err := json.Marshal(d.Quality)
	if err != nil {
		return wrapErr("marshal_quality", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO training_datapoints (
			id, intervention_id, session_id, evaluation_id, session_snapshot, event_batch,
			evaluation_snapshot, intervention_snapshot, outcome_status, outcome_delay_ms, quality, created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		ON CONFLICT (intervention_id) DO NOTHING`,
		d.ID, d.InterventionID, d.SessionID, d.EvaluationID, sessionSnapshot, eventBatch, evaluation,
		intervention, d.OutcomeStatus, d.OutcomeDelayMs, quality, d.CreatedAt,
	)
	return wrapErr("create_training_datapoint", err)
}

// CountSince returns how many training rows were created at or after from,
// used by the nightly batch job summary.
func (s *TrainingStore) CountSince(ctx context.Context, from sql.NullTime) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM training_datapoints WHERE created_at >= $1`, from).Scan(&n)
	return n, wrapErr("count_training_datapoints", err)
}
