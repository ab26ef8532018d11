package main

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/codeready-toolchain/mswim/pkg/ingest"
	"github.com/codeready-toolchain/mswim/pkg/intervention"
	"github.com/codeready-toolchain/mswim/pkg/models"
	"github.com/codeready-toolchain/mswim/pkg/transport"
)

// trackIngestor is the narrow slice of *ingest.Ingestor the dispatcher
// needs, so its branching logic can be tested against a fake.
type trackIngestor interface {
	Ingest(ctx context.Context, f ingest.TrackFrame) (ingest.Ack, error)
}

// outcomeRecorder is the narrow slice of *intervention.Writer the
// dispatcher needs.
type outcomeRecorder interface {
	RecordOutcome(ctx context.Context, interventionID string, status models.InterventionStatus, conversionAction string) error
}

// replier is the narrow slice of *transport.Registry the dispatcher needs
// to answer the originating connection.
type replier interface {
	Reply(c *transport.Conn, message interface{})
}

// frameDispatcher implements transport.FrameHandler: it turns a validated
// inbound widget frame into a call against the ingestor or the
// intervention writer, replying on the originating connection where the
// wire protocol expects one.
type frameDispatcher struct {
	registry      replier
	ingestor      trackIngestor
	interventions outcomeRecorder
	log           *slog.Logger
}

func newFrameDispatcher(registry replier, ingestor trackIngestor, interventions outcomeRecorder, log *slog.Logger) *frameDispatcher {
	if log == nil {
		log = slog.Default()
	}
	return &frameDispatcher{registry: registry, ingestor: ingestor, interventions: interventions, log: log}
}

// HandleFrame implements transport.FrameHandler.
func (d *frameDispatcher) HandleFrame(ctx context.Context, conn *transport.Conn, frame json.RawMessage, frameType string) error {
	switch frameType {
	case "track":
		return d.handleTrack(ctx, conn, frame)
	case "intervention_outcome":
		return d.handleInterventionOutcome(ctx, conn, frame)
	case "ping":
		d.registry.Reply(conn, map[string]string{"type": "pong"})
		return nil
	default:
		return nil
	}
}

func (d *frameDispatcher) handleTrack(ctx context.Context, conn *transport.Conn, frame json.RawMessage) error {
	var f ingest.TrackFrame
	if err := json.Unmarshal(frame, &f); err != nil {
		d.registry.Reply(conn, map[string]string{"type": "validation_error", "error": err.Error()})
		return err
	}

	ack, err := d.ingestor.Ingest(ctx, f)
	if err != nil {
		d.registry.Reply(conn, map[string]string{"type": "validation_error", "error": err.Error()})
		return err
	}

	d.registry.Reply(conn, map[string]string{"type": "track_ack", "sessionId": ack.SessionID, "eventId": ack.EventID})
	return nil
}

func (d *frameDispatcher) handleInterventionOutcome(ctx context.Context, conn *transport.Conn, frame json.RawMessage) error {
	var f struct {
		InterventionID   string `json:"intervention_id"`
		Status           string `json:"status"`
		ConversionAction string `json:"conversion_action"`
	}
	if err := json.Unmarshal(frame, &f); err != nil {
		d.registry.Reply(conn, map[string]string{"type": "validation_error", "error": err.Error()})
		return err
	}

	if err := d.interventions.RecordOutcome(ctx, f.InterventionID, models.InterventionStatus(f.Status), f.ConversionAction); err != nil {
		d.registry.Reply(conn, map[string]string{"type": "validation_error", "error": err.Error()})
		return err
	}

	return nil
}
