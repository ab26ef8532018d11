package store

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/codeready-toolchain/mswim/pkg/apperrors"
	"github.com/codeready-toolchain/mswim/pkg/models"
)

// ScoringConfigStore persists models.ScoringConfig rows and implements
// mswim.ConfigLookup for the live config-resolution path (§4.7.1).
type ScoringConfigStore struct {
	db *sql.DB
}

// Create inserts a new config. Activating it is a separate call
// (SetActive) so the admin boundary can validate before flipping live.
func (s *ScoringConfigStore) Create(ctx context.Context, cfg models.ScoringConfig) error {
	weights, err := json.Marshal(cfg.Weights)
	if err != nil {
		return wrapErr("marshal_weights", err)
	}
	thresholds, err := json.Marshal(cfg.Thresholds)
	if err != nil {
		return wrapErr("marshal_thresholds", err)
	}
	gates, err := json.Marshal(cfg.Gates)
	if err != nil {
		return wrapErr("marshal_gates", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO scoring_configs (id, weights, thresholds, gates, site_url, eval_engine, is_active)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		cfg.ID, weights, thresholds, gates, nullString(cfg.SiteURL), cfg.EvalEngine, cfg.IsActive,
	)
	return wrapErr("create_scoring_config", err)
}

// SetActive atomically deactivates the current active row (global, or for
// one site) and activates cfgID in its place, preserving the "at most one
// active row per scope" invariant enforced by the partial unique indexes.
func (s *ScoringConfigStore) SetActive(ctx context.Context, store *Store, cfgID, siteURL string) error {
	return store.WithTx(ctx, func(tx *sql.Tx) error {
		var deactivate string
		var args []any
		if siteURL == "" {
			deactivate = `UPDATE scoring_configs SET is_active = FALSE WHERE site_url IS NULL AND is_active`
		} else {
			deactivate = `UPDATE scoring_configs SET is_active = FALSE WHERE site_url = $1 AND is_active`
			args = append(args, siteURL)
		}
		if _, err := tx.ExecContext(ctx, deactivate, args...); err != nil {
			return wrapErr("deactivate_scoring_config", err)
		}
		res, err := tx.ExecContext(ctx, `UPDATE scoring_configs SET is_active = TRUE WHERE id = $1`, cfgID)
		if err != nil {
			return wrapErr("activate_scoring_config", err)
		}
		return affectedOrNotFound(res, "activate_scoring_config", cfgID)
	})
}

// ByID implements mswim.ConfigLookup.
func (s *ScoringConfigStore) ByID(id string) (models.ScoringConfig, bool) {
	cfg, err := s.get(context.Background(), `id = $1`, id)
	return cfg, err == nil
}

// ActiveForSite implements mswim.ConfigLookup.
func (s *ScoringConfigStore) ActiveForSite(siteURL string) (models.ScoringConfig, bool) {
	cfg, err := s.get(context.Background(), `site_url = $1 AND is_active`, siteURL)
	return cfg, err == nil
}

// ActiveGlobal implements mswim.ConfigLookup.
func (s *ScoringConfigStore) ActiveGlobal() (models.ScoringConfig, bool) {
	cfg, err := s.get(context.Background(), `site_url IS NULL AND is_active`, "")
	return cfg, err == nil
}

func (s *ScoringConfigStore) get(ctx context.Context, where string, arg string) (models.ScoringConfig, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, weights, thresholds, gates, site_url, eval_engine, is_active
		FROM scoring_configs WHERE `+where, arg)

	var cfg models.ScoringConfig
	var weights, thresholds, gates []byte
	var siteURL sql.NullString
	if err := row.Scan(&cfg.ID, &weights, &thresholds, &gates, &siteURL, &cfg.EvalEngine, &cfg.IsActive); err != nil {
		return models.ScoringConfig{}, wrapErr("get_scoring_config", err)
	}
	if err := json.Unmarshal(weights, &cfg.Weights); err != nil {
		return models.ScoringConfig{}, wrapErr("unmarshal_weights", err)
	}
	if err := json.Unmarshal(thresholds, &cfg.Thresholds); err != nil {
		return models.ScoringConfig{}, wrapErr("unmarshal_thresholds", err)
	}
	if err := json.Unmarshal(gates, &cfg.Gates); err != nil {
		return models.ScoringConfig{}, wrapErr("unmarshal_gates", err)
	}
	cfg.SiteURL = siteURL.String
	return cfg, nil
}

// Validate enforces the ConfigConflict rules (§7): weights sum to 1.0 and
// thresholds are strictly ascending.
func Validate(cfg models.ScoringConfig) error {
	sum := cfg.Weights.Intent + cfg.Weights.Friction + cfg.Weights.Clarity + cfg.Weights.Receptivity + cfg.Weights.Value
	if sum < 0.999 || sum > 1.001 {
		return apperrors.NewConfigConflict("scoring_config", "weights must sum to 1.0")
	}
	t := cfg.Thresholds
	if !(t.Monitor < t.Passive && t.Passive < t.Nudge && t.Nudge < t.Active) {
		return apperrors.NewConfigConflict("scoring_config", "thresholds must be strictly ascending")
	}
	return nil
}
