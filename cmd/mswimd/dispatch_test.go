package main

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/mswim/pkg/ingest"
	"github.com/codeready-toolchain/mswim/pkg/models"
	"github.com/codeready-toolchain/mswim/pkg/transport"
)

type fakeIngestor struct {
	ack ingest.Ack
	err error
}

func (f *fakeIngestor) Ingest(context.Context, ingest.TrackFrame) (ingest.Ack, error) {
	return f.ack, f.err
}

type fakeOutcomes struct {
	recorded []string
	err      error
}

func (f *fakeOutcomes) RecordOutcome(_ context.Context, interventionID string, _ models.InterventionStatus, _ string) error {
	f.recorded = append(f.recorded, interventionID)
	return f.err
}

type fakeReplier struct{ replies []interface{} }

func (f *fakeReplier) Reply(_ *transport.Conn, message interface{}) {
	f.replies = append(f.replies, message)
}

func TestHandleFrame_TrackDispatchesToIngestorAndRepliesAck(t *testing.T) {
	ig := &fakeIngestor{ack: ingest.Ack{SessionID: "sess-1", EventID: "evt-1"}}
	oc := &fakeOutcomes{}
	rp := &fakeReplier{}
	d := newFrameDispatcher(rp, ig, oc, nil)

	frame := json.RawMessage(`{"visitorKey":"v1","siteUrl":"example.com","event":{}}`)
	err := d.HandleFrame(context.Background(), nil, frame, "track")
	require.NoError(t, err)
	require.Len(t, rp.replies, 1)
	assert.Equal(t, map[string]string{"type": "track_ack", "sessionId": "sess-1", "eventId": "evt-1"}, rp.replies[0])
}

func TestHandleFrame_TrackIngestFailureRepliesValidationError(t *testing.T) {
	ig := &fakeIngestor{err: errors.New("boom")}
	rp := &fakeReplier{}
	d := newFrameDispatcher(rp, ig, &fakeOutcomes{}, nil)

	err := d.HandleFrame(context.Background(), nil, json.RawMessage(`{}`), "track")
	assert.Error(t, err)
	require.Len(t, rp.replies, 1)
	assert.Equal(t, map[string]string{"type": "validation_error", "error": "boom"}, rp.replies[0])
}

func TestHandleFrame_InterventionOutcomeDelegatesToWriter(t *testing.T) {
	oc := &fakeOutcomes{}
	d := newFrameDispatcher(&fakeReplier{}, &fakeIngestor{}, oc, nil)

	frame := json.RawMessage(`{"intervention_id":"iv-1","status":"dismissed"}`)
	err := d.HandleFrame(context.Background(), nil, frame, "intervention_outcome")
	require.NoError(t, err)
	assert.Equal(t, []string{"iv-1"}, oc.recorded)
}

func TestHandleFrame_PingRepliesPongWithoutTouchingCollaborators(t *testing.T) {
	ig := &fakeIngestor{}
	oc := &fakeOutcomes{}
	rp := &fakeReplier{}
	d := newFrameDispatcher(rp, ig, oc, nil)

	err := d.HandleFrame(context.Background(), nil, json.RawMessage(`{}`), "ping")
	require.NoError(t, err)
	require.Len(t, rp.replies, 1)
	assert.Equal(t, map[string]string{"type": "pong"}, rp.replies[0])
	assert.Empty(t, oc.recorded)
}

func TestHandleFrame_UnknownTypeIsANoOp(t *testing.T) {
	rp := &fakeReplier{}
	d := newFrameDispatcher(rp, &fakeIngestor{}, &fakeOutcomes{}, nil)

	err := d.HandleFrame(context.Background(), nil, json.RawMessage(`{}`), "select_session")
	require.NoError(t, err)
	assert.Empty(t, rp.replies)
}
