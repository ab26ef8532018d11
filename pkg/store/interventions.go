package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/codeready-toolchain/mswim/pkg/apperrors"
	"github.com/codeready-toolchain/mswim/pkg/models"
)

// InterventionStore persists models.Intervention rows.
type InterventionStore struct {
	db *sql.DB
}

// Create inserts a newly fired intervention in status "sent".
func (s *InterventionStore) Create(ctx context.Context, iv models.Intervention) error {
	payload, err := json.Marshal(iv.Payload)
	if err != nil {
		return wrapErr("marshal_payload", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO interventions (
			id, session_id, evaluation_id, type, action_code, friction_id, payload,
			mswim_score_at_fire, tier_at_fire, ts, status
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		iv.ID, iv.SessionID, iv.EvaluationID, iv.Type, iv.ActionCode, nullString(iv.FrictionID), payload,
		iv.MSWIMScoreAtFire, iv.TierAtFire, iv.Timestamp, iv.Status,
	)
	return wrapErr("create_intervention", err)
}

// Get loads an intervention by id.
func (s *InterventionStore) Get(ctx context.Context, id string) (models.Intervention, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, session_id, evaluation_id, type, action_code, friction_id, payload,
			mswim_score_at_fire, tier_at_fire, ts, status, delivered_at, dismissed_at, converted_at,
			ignored_at, conversion_action
		FROM interventions WHERE id = $1`, id)
	return scanIntervention(row)
}

// ApplyOutcome transitions an intervention to a terminal or delivered
// status, writing the matching outcome timestamp column, and fails with
// apperrors.ErrAlreadyExists if the current row is already terminal
// (§3 "status transitions are monotonic").
func (s *InterventionStore) ApplyOutcome(ctx context.Context, id string, to models.InterventionStatus, at sql.NullTime, conversionAction string) error {
	var column string
	switch to {
	case models.InterventionStatusDelivered:
		column = "delivered_at"
	case models.InterventionStatusDismissed:
		column = "dismissed_at"
	case models.InterventionStatusConverted:
		column = "converted_at"
	case models.InterventionStatusIgnored:
		column = "ignored_at"
	default:
		return apperrors.NewValidation("status", "not a valid outcome status")
	}

	query := `UPDATE interventions SET status=$2, ` + column + `=$3`
	args := []any{id, to, at}
	if conversionAction != "" {
		query += `, conversion_action=$4`
		args = append(args, conversionAction)
	}
	query += ` WHERE id=$1 AND status NOT IN ('dismissed','converted','ignored')`

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return wrapErr("apply_outcome", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return wrapErr("apply_outcome", err)
	}
	if n == 0 {
		return apperrors.ErrAlreadyExists
	}
	return nil
}

// OpenForSession returns the sent/delivered (non-terminal) interventions
// for a session, used by gate evaluation for cooldown/cap checks.
func (s *InterventionStore) OpenForSession(ctx context.Context, sessionID string) ([]models.Intervention, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session_id, evaluation_id, type, action_code, friction_id, payload,
			mswim_score_at_fire, tier_at_fire, ts, status, delivered_at, dismissed_at, converted_at,
			ignored_at, conversion_action
		FROM interventions WHERE session_id = $1 AND status IN ('sent','delivered') ORDER BY ts`, sessionID)
	if err != nil {
		return nil, wrapErr("list_open_interventions", err)
	}
	defer rows.Close()
	return scanInterventions(rows)
}

// RecentBySession returns every intervention for a session, newest first,
// used to assemble gate/cooldown/dedup context and EvaluationContext.PreviousInterventions.
func (s *InterventionStore) RecentBySession(ctx context.Context, sessionID string, limit int) ([]models.Intervention, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session_id, evaluation_id, type, action_code, friction_id, payload,
			mswim_score_at_fire, tier_at_fire, ts, status, delivered_at, dismissed_at, converted_at,
			ignored_at, conversion_action
		FROM interventions WHERE session_id = $1 ORDER BY ts DESC LIMIT $2`, sessionID, limit)
	if err != nil {
		return nil, wrapErr("list_recent_interventions", err)
	}
	defer rows.Close()
	return scanInterventions(rows)
}

// SinceForSite returns every intervention fired at or after from, joined
// against sessions to optionally scope by siteUrl (empty siteUrl means
// every site), used by the drift detector to aggregate converted/dismissed
// counts and rates over a rolling window.
func (s *InterventionStore) SinceForSite(ctx context.Context, from time.Time, siteURL string) ([]models.Intervention, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT i.id, i.session_id, i.evaluation_id, i.type, i.action_code, i.friction_id, i.payload,
			i.mswim_score_at_fire, i.tier_at_fire, i.ts, i.status, i.delivered_at, i.dismissed_at,
			i.converted_at, i.ignored_at, i.conversion_action
		FROM interventions i
		JOIN sessions se ON se.id = i.session_id
		WHERE i.ts >= $1 AND ($2 = '' OR se.site_url = $2)
		ORDER BY i.ts`, from, siteURL)
	if err != nil {
		return nil, wrapErr("list_interventions_since", err)
	}
	defer rows.Close()
	return scanInterventions(rows)
}

func scanIntervention(row rowScanner) (models.Intervention, error) {
	var iv models.Intervention
	var frictionID, conversionAction sql.NullString
	var payload []byte
	var delivered, dismissed, converted, ignored sql.NullTime
	err := row.Scan(
		&iv.ID, &iv.SessionID, &iv.EvaluationID, &iv.Type, &iv.ActionCode, &frictionID, &payload,
		&iv.MSWIMScoreAtFire, &iv.TierAtFire, &iv.Timestamp, &iv.Status, &delivered, &dismissed,
		&converted, &ignored, &conversionAction,
	)
	if err != nil {
		return models.Intervention{}, wrapErr("scan_intervention", err)
	}
	if err := json.Unmarshal(payload, &iv.Payload); err != nil {
		return models.Intervention{}, wrapErr("unmarshal_payload", err)
	}
	iv.FrictionID = frictionID.String
	iv.ConversionAction = conversionAction.String
	iv.DeliveredAt = nullTimePtr(delivered)
	iv.DismissedAt = nullTimePtr(dismissed)
	iv.ConvertedAt = nullTimePtr(converted)
	iv.IgnoredAt = nullTimePtr(ignored)
	return iv, nil
}

func scanInterventions(rows *sql.Rows) ([]models.Intervention, error) {
	var out []models.Intervention
	for rows.Next() {
		iv, err := scanIntervention(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, iv)
	}
	return out, wrapErr("list_interventions", rows.Err())
}

func nullTimePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	return &t.Time
}
