package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/codeready-toolchain/mswim/pkg/models"
)

// SessionStore persists models.Session rows.
type SessionStore struct {
	db *sql.DB
}

// Create inserts a new session.
func (s *SessionStore) Create(ctx context.Context, sess models.Session) error {
	analytics, err := json.Marshal(sess.Analytics)
	if err != nil {
		return wrapErr("marshal_analytics", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO sessions (
			id, visitor_id, site_url, device_type, referrer_type, is_logged_in, is_repeat_visitor,
			cart_value, cart_item_count, interventions_fired, dismissals, conversions, page_views,
			status, started_at, last_activity_at, ended_at, analytics
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)`,
		sess.ID, sess.VisitorID, sess.SiteURL, sess.DeviceType, sess.ReferrerType, sess.IsLoggedIn, sess.IsRepeatVisitor,
		sess.Cart.Value, sess.Cart.ItemCount, sess.Counters.InterventionsFired, sess.Counters.Dismissals,
		sess.Counters.Conversions, sess.Counters.PageViews, sess.Status, sess.StartedAt, sess.LastActivityAt,
		sess.EndedAt, analytics,
	)
	return wrapErr("create_session", err)
}

// Get loads a session by id.
func (s *SessionStore) Get(ctx context.Context, id string) (models.Session, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, visitor_id, site_url, device_type, referrer_type, is_logged_in, is_repeat_visitor,
			cart_value, cart_item_count, interventions_fired, dismissals, conversions, page_views,
			status, started_at, last_activity_at, ended_at, analytics
		FROM sessions WHERE id = $1`, id)
	return scanSession(row)
}

// Update persists mutable non-counter session fields (cart, status, activity
// timestamp, analytics). Counters are mutated exclusively through
// IncrementCounter so the application layer never reads-then-writes one
// (§4.3 "all counter mutations are atomic increments").
func (s *SessionStore) Update(ctx context.Context, sess models.Session) error {
	analytics, err := json.Marshal(sess.Analytics)
	if err != nil {
		return wrapErr("marshal_analytics", err)
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE sessions SET
			is_logged_in=$2, is_repeat_visitor=$3, cart_value=$4, cart_item_count=$5,
			status=$6, last_activity_at=$7, ended_at=$8, analytics=$9
		WHERE id = $1`,
		sess.ID, sess.IsLoggedIn, sess.IsRepeatVisitor, sess.Cart.Value, sess.Cart.ItemCount,
		sess.Status, sess.LastActivityAt, sess.EndedAt, analytics,
	)
	if err != nil {
		return wrapErr("update_session", err)
	}
	return affectedOrNotFound(res, "update_session", sess.ID)
}

// SessionCounterField names one of Session's monotonic counters.
type SessionCounterField string

// Counter fields IncrementCounter accepts.
const (
	CounterInterventionsFired SessionCounterField = "interventions_fired"
	CounterDismissals         SessionCounterField = "dismissals"
	CounterConversions        SessionCounterField = "conversions"
	CounterPageViews          SessionCounterField = "page_views"
)

// IncrementCounter atomically adds delta to one counter column, returning
// the post-increment value. The increment happens in the UPDATE statement
// itself (`col = col + $2`), never as a read-modify-write from Go.
func (s *SessionStore) IncrementCounter(ctx context.Context, id string, field SessionCounterField, delta int) (int, error) {
	var v int
	query := `UPDATE sessions SET ` + string(field) + ` = ` + string(field) + ` + $2
		WHERE id = $1 RETURNING ` + string(field)
	err := s.db.QueryRowContext(ctx, query, id, delta).Scan(&v)
	if err != nil {
		return 0, wrapErr("increment_session_counter", err)
	}
	return v, nil
}

// Touch atomically bumps last_activity_at to now, optionally also advancing
// the session out of idle back to active (used by C3's cache-hit path).
func (s *SessionStore) Touch(ctx context.Context, id string, now time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE sessions SET last_activity_at = $2,
			status = CASE WHEN status = 'idle' THEN 'active' ELSE status END
		WHERE id = $1 AND status <> 'ended'`, id, now)
	if err != nil {
		return wrapErr("touch_session", err)
	}
	return affectedOrNotFound(res, "touch_session", id)
}

// UpdateCart atomically overwrites the cart snapshot (§4.2 step 5's
// parsed-from-rawSignals cart update).
func (s *SessionStore) UpdateCart(ctx context.Context, id string, value float64, itemCount int) error {
	res, err := s.db.ExecContext(ctx, `UPDATE sessions SET cart_value=$2, cart_item_count=$3 WHERE id=$1`, id, value, itemCount)
	if err != nil {
		return wrapErr("update_cart", err)
	}
	return affectedOrNotFound(res, "update_cart", id)
}

// EndIdleSince ends (status='ended') every session idle since before
// cutoff, returning the ended session ids (§4.3's 5-minute sweeper).
func (s *SessionStore) EndIdleSince(ctx context.Context, cutoff, now time.Time) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		UPDATE sessions SET status='ended', ended_at=$2
		WHERE status <> 'ended' AND last_activity_at < $1
		RETURNING id`, cutoff, now)
	if err != nil {
		return nil, wrapErr("end_idle_sessions", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, wrapErr("end_idle_sessions", err)
		}
		ids = append(ids, id)
	}
	return ids, wrapErr("end_idle_sessions", rows.Err())
}

// ActiveBySite lists non-ended sessions for a site, most-recently-active first.
func (s *SessionStore) ActiveBySite(ctx context.Context, siteURL string, limit int) ([]models.Session, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, visitor_id, site_url, device_type, referrer_type, is_logged_in, is_repeat_visitor,
			cart_value, cart_item_count, interventions_fired, dismissals, conversions, page_views,
			status, started_at, last_activity_at, ended_at, analytics
		FROM sessions WHERE site_url = $1 AND status <> 'ended'
		ORDER BY last_activity_at DESC LIMIT $2`, siteURL, limit)
	if err != nil {
		return nil, wrapErr("list_active_sessions", err)
	}
	defer rows.Close()

	var out []models.Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sess)
	}
	return out, wrapErr("list_active_sessions", rows.Err())
}

// DistinctSiteURLs returns every distinct siteUrl with at least one
// session, used by the drift detector to fan its per-window snapshot
// computation out across sites in addition to the global scope.
func (s *SessionStore) DistinctSiteURLs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT site_url FROM sessions WHERE site_url <> ''`)
	if err != nil {
		return nil, wrapErr("list_site_urls", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, wrapErr("scan_site_url", err)
		}
		out = append(out, u)
	}
	return out, wrapErr("list_site_urls", rows.Err())
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (models.Session, error) {
	var sess models.Session
	var analytics []byte
	err := row.Scan(
		&sess.ID, &sess.VisitorID, &sess.SiteURL, &sess.DeviceType, &sess.ReferrerType,
		&sess.IsLoggedIn, &sess.IsRepeatVisitor, &sess.Cart.Value, &sess.Cart.ItemCount,
		&sess.Counters.InterventionsFired, &sess.Counters.Dismissals, &sess.Counters.Conversions,
		&sess.Counters.PageViews, &sess.Status, &sess.StartedAt, &sess.LastActivityAt,
		&sess.EndedAt, &analytics,
	)
	if err != nil {
		return models.Session{}, wrapErr("scan_session", err)
	}
	if err := json.Unmarshal(analytics, &sess.Analytics); err != nil {
		return models.Session{}, wrapErr("unmarshal_analytics", err)
	}
	return sess, nil
}

func affectedOrNotFound(res sql.Result, op, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return wrapErr(op, err)
	}
	if n == 0 {
		return notFound(op, id)
	}
	return nil
}
