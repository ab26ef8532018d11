package store

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/codeready-toolchain/mswim/pkg/models"
)

// DriftStore persists models.DriftSnapshot and models.DriftAlert rows.
type DriftStore struct {
	db *sql.DB
}

// CreateSnapshot inserts a windowed health measurement.
func (s *DriftStore) CreateSnapshot(ctx context.Context, snap models.DriftSnapshot) error {
	converted, err := json.Marshal(snap.ConvertedMeans)
	if err != nil {
		return wrapErr("marshal_converted_means", err)
	}
	dismissed, err := json.Marshal(snap.DismissedMeans)
	if err != nil {
		return wrapErr("marshal_dismissed_means", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO drift_snapshots (
			id, window_type, site_url, computed_at, sample_count, tier_agreement_rate,
			decision_agreement_rate, avg_divergence, converted_means, dismissed_means,
			conversion_rate, dismissal_rate
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
		snap.ID, snap.WindowType, nullString(snap.SiteURL), snap.ComputedAt, snap.SampleCount,
		snap.TierAgreementRate, snap.DecisionAgreementRate, snap.AvgDivergence, converted, dismissed,
		snap.ConversionRate, snap.DismissalRate,
	)
	return wrapErr("create_drift_snapshot", err)
}

// LatestByWindow returns the most recent snapshot for a window type/site.
func (s *DriftStore) LatestByWindow(ctx context.Context, window models.WindowType, siteURL string) (models.DriftSnapshot, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, window_type, site_url, computed_at, sample_count, tier_agreement_rate,
			decision_agreement_rate, avg_divergence, converted_means, dismissed_means,
			conversion_rate, dismissal_rate
		FROM drift_snapshots WHERE window_type = $1 AND site_url IS NOT DISTINCT FROM $2
		ORDER BY computed_at DESC LIMIT 1`, window, nullString(siteURL))

	var snap models.DriftSnapshot
	var site sql.NullString
	var converted, dismissed []byte
	err := row.Scan(&snap.ID, &snap.WindowType, &site, &snap.ComputedAt, &snap.SampleCount,
		&snap.TierAgreementRate, &snap.DecisionAgreementRate, &snap.AvgDivergence, &converted, &dismissed,
		&snap.ConversionRate, &snap.DismissalRate)
	if err != nil {
		return models.DriftSnapshot{}, wrapErr("get_drift_snapshot", err)
	}
	if err := json.Unmarshal(converted, &snap.ConvertedMeans); err != nil {
		return models.DriftSnapshot{}, wrapErr("unmarshal_converted_means", err)
	}
	if err := json.Unmarshal(dismissed, &snap.DismissedMeans); err != nil {
		return models.DriftSnapshot{}, wrapErr("unmarshal_dismissed_means", err)
	}
	snap.SiteURL = site.String
	return snap, nil
}

// CreateAlert inserts a raised anomaly.
func (s *DriftStore) CreateAlert(ctx context.Context, alert models.DriftAlert) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO drift_alerts (
			id, alert_type, severity, window_type, site_url, metric, expected, actual, message,
			acknowledged, created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		alert.ID, alert.AlertType, alert.Severity, alert.WindowType, nullString(alert.SiteURL),
		alert.Metric, alert.Expected, alert.Actual, alert.Message, alert.Acknowledged, alert.CreatedAt,
	)
	return wrapErr("create_drift_alert", err)
}

// Unresolved returns every alert that hasn't been resolved yet.
func (s *DriftStore) Unresolved(ctx context.Context) ([]models.DriftAlert, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, alert_type, severity, window_type, site_url, metric, expected, actual, message,
			acknowledged, created_at, resolved_at
		FROM drift_alerts WHERE resolved_at IS NULL ORDER BY created_at DESC`)
	if err != nil {
		return nil, wrapErr("list_unresolved_alerts", err)
	}
	defer rows.Close()

	var out []models.DriftAlert
	for rows.Next() {
		var a models.DriftAlert
		var site sql.NullString
		var resolvedAt sql.NullTime
		if err := rows.Scan(&a.ID, &a.AlertType, &a.Severity, &a.WindowType, &site, &a.Metric,
			&a.Expected, &a.Actual, &a.Message, &a.Acknowledged, &a.CreatedAt, &resolvedAt); err != nil {
			return nil, wrapErr("scan_drift_alert", err)
		}
		a.SiteURL = site.String
		a.ResolvedAt = nullTimePtr(resolvedAt)
		out = append(out, a)
	}
	return out, wrapErr("list_unresolved_alerts", rows.Err())
}
