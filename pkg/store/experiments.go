package store

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/codeready-toolchain/mswim/pkg/apperrors"
	"github.com/codeready-toolchain/mswim/pkg/models"
)

// ExperimentStore persists models.Experiment rows and their per-session
// variant assignments.
type ExperimentStore struct {
	db *sql.DB
}

// ValidateExperiment enforces the ConfigConflict rule (§7): variant weights
// must sum to 1.0. Called at the admin boundary before Create.
func ValidateExperiment(exp models.Experiment) error {
	var sum float64
	for _, v := range exp.Variants {
		sum += v.Weight
	}
	if len(exp.Variants) > 0 && (sum < 0.999 || sum > 1.001) {
		return apperrors.NewConfigConflict("experiment", "variant weights must sum to 1.0")
	}
	return nil
}

// Create inserts a new experiment in draft status.
func (s *ExperimentStore) Create(ctx context.Context, exp models.Experiment) error {
	variants, err := json.Marshal(exp.Variants)
	if err != nil {
		return wrapErr("marshal_variants", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO experiments (id, name, site_url, status, traffic_percent, variants, primary_metric, min_sample_size)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		exp.ID, exp.Name, nullString(exp.SiteURL), exp.Status, exp.TrafficPercent, variants,
		exp.PrimaryMetric, exp.MinSampleSize,
	)
	return wrapErr("create_experiment", err)
}

// RunningForSite returns every running experiment scoped to a site (or
// global experiments, when site_url is NULL), used by the resolver (§4.5).
func (s *ExperimentStore) RunningForSite(ctx context.Context, siteURL string) ([]models.Experiment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, site_url, status, traffic_percent, variants, primary_metric, min_sample_size
		FROM experiments WHERE status = 'running' AND (site_url = $1 OR site_url IS NULL)`, siteURL)
	if err != nil {
		return nil, wrapErr("list_running_experiments", err)
	}
	defer rows.Close()

	var out []models.Experiment
	for rows.Next() {
		var exp models.Experiment
		var site sql.NullString
		var variants []byte
		if err := rows.Scan(&exp.ID, &exp.Name, &site, &exp.Status, &exp.TrafficPercent, &variants,
			&exp.PrimaryMetric, &exp.MinSampleSize); err != nil {
			return nil, wrapErr("scan_experiment", err)
		}
		if err := json.Unmarshal(variants, &exp.Variants); err != nil {
			return nil, wrapErr("unmarshal_variants", err)
		}
		exp.SiteURL = site.String
		out = append(out, exp)
	}
	return out, wrapErr("list_running_experiments", rows.Err())
}

// Assign records an immutable session -> variant binding. A second call for
// the same (experimentID, sessionID) is a no-op (ON CONFLICT DO NOTHING):
// assignment is sticky for the life of the session (§4.5).
func (s *ExperimentStore) Assign(ctx context.Context, a models.ExperimentAssignment) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO experiment_assignments (experiment_id, session_id, variant_id)
		VALUES ($1,$2,$3) ON CONFLICT (experiment_id, session_id) DO NOTHING`,
		a.ExperimentID, a.SessionID, a.VariantID,
	)
	return wrapErr("assign_experiment", err)
}

// AssignmentsForSession returns every experiment assignment already bound
// to a session, so the resolver can reuse a sticky assignment instead of
// re-rolling on every evaluation.
func (s *ExperimentStore) AssignmentsForSession(ctx context.Context, sessionID string) ([]models.ExperimentAssignment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT experiment_id, session_id, variant_id FROM experiment_assignments WHERE session_id = $1`, sessionID)
	if err != nil {
		return nil, wrapErr("list_assignments", err)
	}
	defer rows.Close()

	var out []models.ExperimentAssignment
	for rows.Next() {
		var a models.ExperimentAssignment
		if err := rows.Scan(&a.ExperimentID, &a.SessionID, &a.VariantID); err != nil {
			return nil, wrapErr("scan_assignment", err)
		}
		out = append(out, a)
	}
	return out, wrapErr("list_assignments", rows.Err())
}
