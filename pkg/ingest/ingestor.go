// Package ingest implements the Event Ingestor & Normalizer (C2): turns an
// inbound `track` frame into a persisted, normalized TrackEvent, applies
// best-effort analytics side effects, and hands the event off to the
// batcher (§4.2).
package ingest

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/google/uuid"

	"github.com/codeready-toolchain/mswim/pkg/clock"
	"github.com/codeready-toolchain/mswim/pkg/models"
	"github.com/codeready-toolchain/mswim/pkg/session"
	"github.com/codeready-toolchain/mswim/pkg/store"
)

// TrackFrame is the wire shape of a widget `track` frame (§6.1).
type TrackFrame struct {
	VisitorKey      string          `json:"visitorKey"`
	SessionKey      string          `json:"sessionKey"`
	SiteURL         string          `json:"siteUrl"`
	DeviceType      models.DeviceType   `json:"deviceType"`
	ReferrerType    models.ReferrerType `json:"referrerType"`
	VisitorID       string          `json:"visitorId"`
	IsLoggedIn      bool            `json:"isLoggedIn"`
	IsRepeatVisitor bool            `json:"isRepeatVisitor"`
	Event           json.RawMessage `json:"event"`
}

// Ack is returned to the widget in a track_ack frame (§4.2 "Return").
type Ack struct {
	SessionID string
	EventID   string
}

// SessionResolver is the narrow slice of the Session Store (C3) the
// ingestor needs.
type SessionResolver interface {
	GetOrCreateSession(ctx context.Context, visitorKey string, in session.NewSessionInput) (models.Session, error)
	IncrementCounter(ctx context.Context, id string, field store.SessionCounterField) error
	UpdateCart(ctx context.Context, id string, value float64, itemCount int) error
	RecordAnalytics(ctx context.Context, id string, mutate func(*models.SessionAnalytics)) error
}

// EventWriter is the narrow slice of pkg/store.EventStore the ingestor
// needs. History is used only to derive the next SessionSequenceNumber.
type EventWriter interface {
	Create(ctx context.Context, e models.TrackEvent) error
	History(ctx context.Context, sessionID string) ([]models.TrackEvent, error)
}

// Batcher is the narrow slice of the Per-Session Event Batcher (C4) the
// ingestor hands new event ids to (§4.2 step 7).
type Batcher interface {
	Add(sessionID, eventID string)
}

// Broadcaster pushes the `track_event` notice to the dashboard channel
// (§4.2 step 6).
type Broadcaster interface {
	BroadcastTrackEvent(event models.TrackEvent)
}

// Ingestor is the Event Ingestor & Normalizer capability.
type Ingestor struct {
	sessions SessionResolver
	events   EventWriter
	batcher  Batcher
	bcast    Broadcaster
	clock    clock.Clock
	log      *slog.Logger
}

// New builds an Ingestor.
func New(sessions SessionResolver, events EventWriter, batcher Batcher, bcast Broadcaster, clk clock.Clock, log *slog.Logger) *Ingestor {
	if clk == nil {
		clk = clock.System{}
	}
	if log == nil {
		log = slog.Default()
	}
	return &Ingestor{sessions: sessions, events: events, batcher: batcher, bcast: bcast, clock: clk, log: log}
}

// Ingest implements §4.2's full pipeline and returns the track_ack payload.
func (ig *Ingestor) Ingest(ctx context.Context, frame TrackFrame) (Ack, error) {
	sess, err := ig.sessions.GetOrCreateSession(ctx, frame.VisitorKey, session.NewSessionInput{
		VisitorID:       frame.VisitorID,
		SiteURL:         frame.SiteURL,
		DeviceType:      frame.DeviceType,
		ReferrerType:    frame.ReferrerType,
		IsLoggedIn:      frame.IsLoggedIn,
		IsRepeatVisitor: frame.IsRepeatVisitor,
	})
	if err != nil {
		return Ack{}, err
	}

	history, err := ig.events.History(ctx, sess.ID)
	if err != nil {
		return Ack{}, err
	}

	evt, err := normalizeEvent(sess.ID, frame.Event, len(history)+1)
	if err != nil {
		return Ack{}, err
	}
	evt.ID = uuid.New().String()
	evt.Timestamp = ig.clock.Now()

	if err := ig.events.Create(ctx, evt); err != nil {
		return Ack{}, err
	}

	ig.applyAnalyticsSideEffects(ctx, sess.ID, evt)

	if evt.Category == models.CategoryCart {
		if cs, ok := parseCartSignals(evt.RawSignals); ok {
			if err := ig.sessions.UpdateCart(ctx, sess.ID, cs.Value, cs.ItemCount); err != nil {
				ig.log.Warn("ingest: cart update failed", "sessionId", sess.ID, "err", err)
			}
		}
	}

	if ig.bcast != nil {
		ig.bcast.BroadcastTrackEvent(evt)
	}

	if ig.batcher != nil {
		ig.batcher.Add(sess.ID, evt.ID)
	}

	return Ack{SessionID: sess.ID, EventID: evt.ID}, nil
}

// applyAnalyticsSideEffects implements §4.2 step 4's best-effort
// accumulators. It runs inline, before Ingest returns; failures are
// logged, never propagated.
func (ig *Ingestor) applyAnalyticsSideEffects(ctx context.Context, sessionID string, evt models.TrackEvent) {
	switch evt.EventType {
	case "page_view":
		if err := ig.sessions.IncrementCounter(ctx, sessionID, store.CounterPageViews); err != nil {
			ig.log.Warn("ingest: page view counter increment failed", "sessionId", sessionID, "err", err)
		}
		if err := ig.sessions.RecordAnalytics(ctx, sessionID, func(a *models.SessionAnalytics) {
			if a.EntryPage == "" {
				a.EntryPage = evt.PageURL
				a.UTMSource = evt.UTMSource
				a.UTMMedium = evt.UTMMedium
				a.UTMCampaign = evt.UTMCampaign
			}
		}); err != nil {
			ig.log.Warn("ingest: entry page analytics failed", "sessionId", sessionID, "err", err)
		}
	case "page_unload":
		if err := ig.sessions.RecordAnalytics(ctx, sessionID, func(a *models.SessionAnalytics) {
			a.ExitPage = evt.PageURL
			a.TotalTimeOnSite += evt.TimeOnPageMs
		}); err != nil {
			ig.log.Warn("ingest: exit page analytics failed", "sessionId", sessionID, "err", err)
		}
	}
}
