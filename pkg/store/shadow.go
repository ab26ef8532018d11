package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/codeready-toolchain/mswim/pkg/models"
)

// ShadowStore persists models.ShadowComparison rows.
type ShadowStore struct {
	db *sql.DB
}

// Create inserts a shadow comparison produced alongside a production evaluation.
func (s *ShadowStore) Create(ctx context.Context, c models.ShadowComparison) error {
	prodSignals, err := json.Marshal(c.ProdSignals)
	if err != nil {
		return wrapErr("marshal_prod_signals", err)
	}
	shadowSignals, err := json.Marshal(c.ShadowSignals)
	if err != nil {
		return wrapErr("marshal_shadow_signals", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO shadow_comparisons (
			id, session_id, evaluation_id, prod_signals, shadow_signals, prod_composite, shadow_composite,
			composite_divergence, tier_match, decision_match, gate_override_match, created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
		c.ID, c.SessionID, c.EvaluationID, prodSignals, shadowSignals, c.ProdComposite, c.ShadowComposite,
		c.CompositeDivergence, c.TierMatch, c.DecisionMatch, c.GateOverrideMatch, c.CreatedAt,
	)
	return wrapErr("create_shadow_comparison", err)
}

// Since returns every comparison created at or after from, used by the
// drift detector to compute a windowed agreement rate.
func (s *ShadowStore) Since(ctx context.Context, from sql.NullTime) ([]models.ShadowComparison, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session_id, evaluation_id, prod_signals, shadow_signals, prod_composite, shadow_composite,
			composite_divergence, tier_match, decision_match, gate_override_match, created_at
		FROM shadow_comparisons WHERE created_at >= $1 ORDER BY created_at`, from)
	if err != nil {
		return nil, wrapErr("list_shadow_comparisons", err)
	}
	defer rows.Close()
	return scanShadowComparisons(rows)
}

// SinceForSite returns every comparison created at or after from, optionally
// scoped to siteUrl via a join on sessions (empty siteUrl means every
// site), used by the drift detector's per-window tier/decision agreement
// aggregation when computing a site-scoped snapshot.
func (s *ShadowStore) SinceForSite(ctx context.Context, from time.Time, siteURL string) ([]models.ShadowComparison, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id, c.session_id, c.evaluation_id, c.prod_signals, c.shadow_signals, c.prod_composite,
			c.shadow_composite, c.composite_divergence, c.tier_match, c.decision_match, c.gate_override_match,
			c.created_at
		FROM shadow_comparisons c
		JOIN sessions se ON se.id = c.session_id
		WHERE c.created_at >= $1 AND ($2 = '' OR se.site_url = $2)
		ORDER BY c.created_at`, from, siteURL)
	if err != nil {
		return nil, wrapErr("list_shadow_comparisons", err)
	}
	defer rows.Close()
	return scanShadowComparisons(rows)
}

func scanShadowComparisons(rows *sql.Rows) ([]models.ShadowComparison, error) {
	var out []models.ShadowComparison
	for rows.Next() {
		var c models.ShadowComparison
		var prodSignals, shadowSignals []byte
		if err := rows.Scan(&c.ID, &c.SessionID, &c.EvaluationID, &prodSignals, &shadowSignals,
			&c.ProdComposite, &c.ShadowComposite, &c.CompositeDivergence, &c.TierMatch, &c.DecisionMatch,
			&c.GateOverrideMatch, &c.CreatedAt); err != nil {
			return nil, wrapErr("scan_shadow_comparison", err)
		}
		if err := json.Unmarshal(prodSignals, &c.ProdSignals); err != nil {
			return nil, wrapErr("unmarshal_prod_signals", err)
		}
		if err := json.Unmarshal(shadowSignals, &c.ShadowSignals); err != nil {
			return nil, wrapErr("unmarshal_shadow_signals", err)
		}
		out = append(out, c)
	}
	return out, wrapErr("list_shadow_comparisons", rows.Err())
}
