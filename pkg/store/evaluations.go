package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"

	"github.com/codeready-toolchain/mswim/pkg/models"
)

// EvaluationStore persists models.Evaluation rows.
type EvaluationStore struct {
	db *sql.DB
}

// Create inserts a new evaluation. Evaluations are immutable once written.
func (s *EvaluationStore) Create(ctx context.Context, e models.Evaluation) error {
	signals, err := json.Marshal(e.Signals)
	if err != nil {
		return wrapErr("marshal_signals", err)
	}
	weights, err := json.Marshal(e.WeightsUsed)
	if err != nil {
		return wrapErr("marshal_weights", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO evaluations (
			id, session_id, event_batch_ids, narrative, frictions_found, signals, composite_score,
			weights_used, tier, decision, gate_override, intervention_type, reasoning, engine
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`,
		e.ID, e.SessionID, strings.Join(e.EventBatchIDs, ","), e.Narrative, strings.Join(e.FrictionsFound, ","),
		signals, e.Composite, weights, e.Tier, e.Decision, nullString(e.GateOverride),
		nullString(string(e.InterventionType)), e.Reasoning, e.Engine,
	)
	return wrapErr("create_evaluation", err)
}

// ByID loads a single evaluation, used by the Training Snapshotter (C10) to
// join an intervention back to the evaluation that produced it.
func (s *EvaluationStore) ByID(ctx context.Context, id string) (models.Evaluation, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, session_id, event_batch_ids, narrative, frictions_found, signals, composite_score,
			weights_used, tier, decision, gate_override, intervention_type, reasoning, engine
		FROM evaluations WHERE id = $1`, id)

	var e models.Evaluation
	var batchIDs, frictions string
	var signals, weights []byte
	var gateOverride, interventionType sql.NullString
	if err := row.Scan(
		&e.ID, &e.SessionID, &batchIDs, &e.Narrative, &frictions, &signals, &e.Composite,
		&weights, &e.Tier, &e.Decision, &gateOverride, &interventionType, &e.Reasoning, &e.Engine,
	); err != nil {
		return models.Evaluation{}, wrapErr("get_evaluation", err)
	}
	if err := json.Unmarshal(signals, &e.Signals); err != nil {
		return models.Evaluation{}, wrapErr("unmarshal_signals", err)
	}
	if err := json.Unmarshal(weights, &e.WeightsUsed); err != nil {
		return models.Evaluation{}, wrapErr("unmarshal_weights", err)
	}
	e.EventBatchIDs = splitNonEmpty(batchIDs)
	e.FrictionsFound = splitNonEmpty(frictions)
	e.GateOverride = gateOverride.String
	e.InterventionType = models.InterventionType(interventionType.String)
	return e, nil
}

// RecentBySession returns the most recent evaluations for a session, newest
// first, bounded by limit (used to assemble PreviousEvaluations context).
func (s *EvaluationStore) RecentBySession(ctx context.Context, sessionID string, limit int) ([]models.Evaluation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session_id, event_batch_ids, narrative, frictions_found, signals, composite_score,
			weights_used, tier, decision, gate_override, intervention_type, reasoning, engine
		FROM evaluations WHERE session_id = $1 ORDER BY created_at DESC LIMIT $2`, sessionID, limit)
	if err != nil {
		return nil, wrapErr("list_evaluations", err)
	}
	defer rows.Close()

	var out []models.Evaluation
	for rows.Next() {
		var e models.Evaluation
		var batchIDs, frictions string
		var signals, weights []byte
		var gateOverride, interventionType sql.NullString
		if err := rows.Scan(
			&e.ID, &e.SessionID, &batchIDs, &e.Narrative, &frictions, &signals, &e.Composite,
			&weights, &e.Tier, &e.Decision, &gateOverride, &interventionType, &e.Reasoning, &e.Engine,
		); err != nil {
			return nil, wrapErr("scan_evaluation", err)
		}
		if err := json.Unmarshal(signals, &e.Signals); err != nil {
			return nil, wrapErr("unmarshal_signals", err)
		}
		if err := json.Unmarshal(weights, &e.WeightsUsed); err != nil {
			return nil, wrapErr("unmarshal_weights", err)
		}
		e.EventBatchIDs = splitNonEmpty(batchIDs)
		e.FrictionsFound = splitNonEmpty(frictions)
		e.GateOverride = gateOverride.String
		e.InterventionType = models.InterventionType(interventionType.String)
		out = append(out, e)
	}
	return out, wrapErr("list_evaluations", rows.Err())
}

func splitNonEmpty(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}
