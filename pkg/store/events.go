package store

import (
	"context"
	"database/sql"

	"github.com/codeready-toolchain/mswim/pkg/models"
)

// EventStore persists models.TrackEvent rows.
type EventStore struct {
	db *sql.DB
}

// Create inserts a new event.
func (s *EventStore) Create(ctx context.Context, e models.TrackEvent) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO track_events (
			id, session_id, ts, category, event_type, friction_id, page_type, page_url, raw_signals,
			previous_page_url, time_on_page_ms, scroll_depth_pct, session_sequence_number
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`,
		e.ID, e.SessionID, e.Timestamp, e.Category, e.EventType, nullString(e.FrictionID), e.PageType,
		e.PageURL, nullString(e.RawSignals), nullString(e.PreviousPageURL), e.TimeOnPageMs,
		e.ScrollDepthPct, e.SessionSequenceNumber,
	)
	return wrapErr("create_event", err)
}

// ByIDs fetches events by id, ordered by session sequence number rather
// than by the order of ids (used by the batch flusher to materialize a
// flushed batch for scoring).
func (s *EventStore) ByIDs(ctx context.Context, ids []string) ([]models.TrackEvent, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session_id, ts, category, event_type, friction_id, page_type, page_url, raw_signals,
			previous_page_url, time_on_page_ms, scroll_depth_pct, session_sequence_number
		FROM track_events WHERE id = ANY($1) ORDER BY session_sequence_number`, toTextArray(ids))
	if err != nil {
		return nil, wrapErr("list_events_by_id", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

// History returns every event for a session in sequence order, used to
// assemble EvaluationContext.EventHistory.
func (s *EventStore) History(ctx context.Context, sessionID string) ([]models.TrackEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session_id, ts, category, event_type, friction_id, page_type, page_url, raw_signals,
			previous_page_url, time_on_page_ms, scroll_depth_pct, session_sequence_number
		FROM track_events WHERE session_id = $1 ORDER BY session_sequence_number`, sessionID)
	if err != nil {
		return nil, wrapErr("list_event_history", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

func scanEvents(rows *sql.Rows) ([]models.TrackEvent, error) {
	var out []models.TrackEvent
	for rows.Next() {
		var e models.TrackEvent
		var frictionID, rawSignals, prevURL sql.NullString
		if err := rows.Scan(
			&e.ID, &e.SessionID, &e.Timestamp, &e.Category, &e.EventType, &frictionID, &e.PageType,
			&e.PageURL, &rawSignals, &prevURL, &e.TimeOnPageMs, &e.ScrollDepthPct, &e.SessionSequenceNumber,
		); err != nil {
			return nil, wrapErr("scan_event", err)
		}
		e.FrictionID = frictionID.String
		e.RawSignals = rawSignals.String
		e.PreviousPageURL = prevURL.String
		out = append(out, e)
	}
	return out, wrapErr("list_events", rows.Err())
}

func nullString(v string) sql.NullString {
	return sql.NullString{String: v, Valid: v != ""}
}

// toTextArray renders a Go string slice as a Postgres text[] literal for
// use with = ANY($1) over a pq-array-shaped parameter. pgx's stdlib driver
// accepts []string directly, so this simply passes it through; named to
// document intent at call sites.
func toTextArray(ids []string) []string {
	return ids
}
