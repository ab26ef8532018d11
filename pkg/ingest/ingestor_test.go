package ingest

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/mswim/pkg/clock"
	"github.com/codeready-toolchain/mswim/pkg/models"
	"github.com/codeready-toolchain/mswim/pkg/session"
	"github.com/codeready-toolchain/mswim/pkg/store"
)

type fakeSessions struct {
	sess         models.Session
	counterCalls []store.SessionCounterField
	cartUpdates  []struct {
		value     float64
		itemCount int
	}
	analyticsMutations int
}

func (f *fakeSessions) GetOrCreateSession(_ context.Context, _ string, _ session.NewSessionInput) (models.Session, error) {
	return f.sess, nil
}

func (f *fakeSessions) IncrementCounter(_ context.Context, _ string, field store.SessionCounterField) error {
	f.counterCalls = append(f.counterCalls, field)
	return nil
}

func (f *fakeSessions) UpdateCart(_ context.Context, _ string, value float64, itemCount int) error {
	f.cartUpdates = append(f.cartUpdates, struct {
		value     float64
		itemCount int
	}{value, itemCount})
	return nil
}

func (f *fakeSessions) RecordAnalytics(_ context.Context, _ string, mutate func(*models.SessionAnalytics)) error {
	f.analyticsMutations++
	mutate(&f.sess.Analytics)
	return nil
}

type fakeEvents struct {
	created []models.TrackEvent
	history []models.TrackEvent
}

func (f *fakeEvents) Create(_ context.Context, e models.TrackEvent) error {
	f.created = append(f.created, e)
	return nil
}

func (f *fakeEvents) History(_ context.Context, _ string) ([]models.TrackEvent, error) {
	return f.history, nil
}

type fakeBatcher struct{ added []string }

func (f *fakeBatcher) Add(_ string, eventID string) { f.added = append(f.added, eventID) }

type fakeBroadcaster struct{ events []models.TrackEvent }

func (f *fakeBroadcaster) BroadcastTrackEvent(e models.TrackEvent) { f.events = append(f.events, e) }

func newTestIngestor(sess models.Session) (*Ingestor, *fakeSessions, *fakeEvents, *fakeBatcher, *fakeBroadcaster) {
	fs := &fakeSessions{sess: sess}
	fe := &fakeEvents{}
	fb := &fakeBatcher{}
	fbc := &fakeBroadcaster{}
	ig := New(fs, fe, fb, fbc, clock.NewFixed(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)), nil)
	return ig, fs, fe, fb, fbc
}

func TestIngest_PersistsHandsOffToBatcherAndBroadcasts(t *testing.T) {
	ig, _, fe, fb, fbc := newTestIngestor(models.Session{ID: "sess-1"})

	frame := TrackFrame{
		VisitorKey: "v1",
		SiteURL:    "example.com",
		Event:      json.RawMessage(`{"category":"navigation","event_type":"page_view","page_context":{"page_type":"landing","page_url":"/"}}`),
	}

	ack, err := ig.Ingest(context.Background(), frame)
	require.NoError(t, err)
	assert.Equal(t, "sess-1", ack.SessionID)
	require.Len(t, fe.created, 1)
	assert.Equal(t, ack.EventID, fe.created[0].ID)
	require.Len(t, fb.added, 1)
	assert.Equal(t, ack.EventID, fb.added[0])
	require.Len(t, fbc.events, 1)
}

func TestIngest_PageViewIncrementsCounterAndSetsEntryPage(t *testing.T) {
	ig, fs, _, _, _ := newTestIngestor(models.Session{ID: "sess-1"})

	frame := TrackFrame{
		VisitorKey: "v1",
		SiteURL:    "example.com",
		Event:      json.RawMessage(`{"category":"navigation","event_type":"page_view","page_context":{"page_type":"landing","page_url":"/entry"}}`),
	}
	_, err := ig.Ingest(context.Background(), frame)
	require.NoError(t, err)

	assert.Contains(t, fs.counterCalls, store.CounterPageViews)
	assert.Equal(t, "/entry", fs.sess.Analytics.EntryPage)
}

func TestIngest_PageUnloadAccumulatesTimeOnSite(t *testing.T) {
	ig, fs, _, _, _ := newTestIngestor(models.Session{ID: "sess-1"})

	frame := TrackFrame{
		VisitorKey: "v1",
		SiteURL:    "example.com",
		Event:      json.RawMessage(`{"category":"navigation","event_type":"page_unload","page_context":{"page_type":"landing","page_url":"/exit","time_on_page_ms":4200}}`),
	}
	_, err := ig.Ingest(context.Background(), frame)
	require.NoError(t, err)

	assert.Equal(t, "/exit", fs.sess.Analytics.ExitPage)
	assert.EqualValues(t, 4200, fs.sess.Analytics.TotalTimeOnSite)
}

func TestIngest_CartCategoryUpdatesCartSnapshot(t *testing.T) {
	ig, fs, _, _, _ := newTestIngestor(models.Session{ID: "sess-1"})

	frame := TrackFrame{
		VisitorKey: "v1",
		SiteURL:    "example.com",
		Event:      json.RawMessage(`{"category":"cart","event_type":"add_to_cart","raw_signals":"{\"value\":120.5,\"itemCount\":2}","page_context":{"page_type":"cart"}}`),
	}
	_, err := ig.Ingest(context.Background(), frame)
	require.NoError(t, err)

	require.Len(t, fs.cartUpdates, 1)
	assert.Equal(t, 120.5, fs.cartUpdates[0].value)
	assert.Equal(t, 2, fs.cartUpdates[0].itemCount)
}

func TestIngest_SequenceNumberDerivedFromHistoryLength(t *testing.T) {
	ig, _, fe, _, _ := newTestIngestor(models.Session{ID: "sess-1"})
	fe.history = []models.TrackEvent{{ID: "e0"}, {ID: "e1"}}

	frame := TrackFrame{
		VisitorKey: "v1",
		SiteURL:    "example.com",
		Event:      json.RawMessage(`{"category":"navigation","event_type":"page_view","page_context":{"page_type":"landing"}}`),
	}
	_, err := ig.Ingest(context.Background(), frame)
	require.NoError(t, err)

	require.Len(t, fe.created, 1)
	assert.Equal(t, 3, fe.created[0].SessionSequenceNumber)
}
