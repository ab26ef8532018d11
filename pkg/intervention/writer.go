// Package intervention implements the Decision & Intervention Writer (C8):
// turns a fire decision into a persisted, typed Intervention, broadcasts it,
// and records terminal outcomes (§4.8).
package intervention

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/codeready-toolchain/mswim/pkg/apperrors"
	"github.com/codeready-toolchain/mswim/pkg/clock"
	"github.com/codeready-toolchain/mswim/pkg/models"
	"github.com/codeready-toolchain/mswim/pkg/store"
)

// InterventionWriter is the narrow slice of pkg/store.InterventionStore the
// writer needs.
type InterventionWriter interface {
	Create(ctx context.Context, iv models.Intervention) error
	Get(ctx context.Context, id string) (models.Intervention, error)
	ApplyOutcome(ctx context.Context, id string, to models.InterventionStatus, at sql.NullTime, conversionAction string) error
}

// SessionCounters is the narrow slice of the Session Store (C3) the writer
// needs for the atomic counter increments named in §4.8.
type SessionCounters interface {
	IncrementCounter(ctx context.Context, id string, field store.SessionCounterField) error
}

// Broadcaster pushes a fired intervention to the widget and dashboard
// channels (§4.8 step 4).
type Broadcaster interface {
	BroadcastIntervention(iv models.Intervention)
}

// OutcomeTrigger is C10's idempotent-by-interventionId hand-off point
// (§4.8's recordInterventionOutcome "trigger C10 idempotently").
type OutcomeTrigger interface {
	SnapshotOutcome(ctx context.Context, interventionID string) error
}

// Writer is the Decision & Intervention Writer capability.
type Writer struct {
	interventions InterventionWriter
	sessions      SessionCounters
	bcast         Broadcaster
	training      OutcomeTrigger
	clock         clock.Clock
	log           *slog.Logger
}

// New builds a Writer.
func New(interventions InterventionWriter, sessions SessionCounters, bcast Broadcaster, training OutcomeTrigger, clk clock.Clock, log *slog.Logger) *Writer {
	if clk == nil {
		clk = clock.System{}
	}
	if log == nil {
		log = slog.Default()
	}
	return &Writer{interventions: interventions, sessions: sessions, bcast: bcast, training: training, clock: clk, log: log}
}

// HandleEvaluation implements evaluation.InterventionWriter: on a fire
// decision with a non-null intervention type, build the typed payload,
// persist the Intervention, increment the fired counter, and broadcast
// (§4.8 steps 1-4). No-op on suppress/queue or a MONITOR tier.
func (w *Writer) HandleEvaluation(ctx context.Context, eval models.Evaluation) error {
	if eval.Decision != models.DecisionFire || eval.InterventionType == "" {
		return nil
	}

	frictionID := ""
	if len(eval.FrictionsFound) > 0 {
		frictionID = eval.FrictionsFound[0]
	}

	now := w.clock.Now()
	iv := models.Intervention{
		ID:               uuid.New().String(),
		SessionID:        eval.SessionID,
		EvaluationID:     eval.ID,
		Type:             eval.InterventionType,
		ActionCode:       string(eval.InterventionType) + "_" + string(eval.Tier),
		FrictionID:       frictionID,
		Payload:          buildPayload(eval, frictionID, now),
		MSWIMScoreAtFire: eval.Composite,
		TierAtFire:       eval.Tier,
		Timestamp:        now,
		Status:           models.InterventionStatusSent,
	}

	if err := w.interventions.Create(ctx, iv); err != nil {
		return err
	}

	if err := w.sessions.IncrementCounter(ctx, eval.SessionID, store.CounterInterventionsFired); err != nil {
		w.log.Warn("intervention: fired counter increment failed", "sessionId", eval.SessionID, "err", err)
	}

	if w.bcast != nil {
		w.bcast.BroadcastIntervention(iv)
	}

	return nil
}

// buildPayload implements §4.8 step 1's per-type payload shape.
func buildPayload(eval models.Evaluation, frictionID string, now time.Time) map[string]any {
	payload := map[string]any{
		"type":       eval.InterventionType,
		"actionCode": string(eval.InterventionType) + "_" + string(eval.Tier),
		"frictionId": frictionID,
		"message":    eval.Narrative,
		"tier":       eval.Tier,
		"timestamp":  now,
	}
	switch eval.InterventionType {
	case models.InterventionPassive:
		payload["uiAdjustments"] = []string{}
		payload["silent"] = true
	case models.InterventionNudge:
		payload["bubbleText"] = eval.Narrative
		payload["dismissable"] = true
		payload["autoHideMs"] = 8000
	case models.InterventionActive:
		payload["showPanel"] = true
		payload["products"] = []string{}
		payload["comparison"] = nil
	case models.InterventionEscalate:
		payload["showPanel"] = true
		payload["urgent"] = true
		payload["offerDiscount"] = eval.Tier == models.TierEscalate
	}
	return payload
}

// RecordOutcome implements §4.8's recordInterventionOutcome: sets the
// status with its outcome timestamp, updates the dismiss/convert
// counters, and idempotently triggers C10 on any terminal-or-ignored
// status.
func (w *Writer) RecordOutcome(ctx context.Context, interventionID string, status models.InterventionStatus, conversionAction string) error {
	iv, err := w.interventions.Get(ctx, interventionID)
	if err != nil {
		return err
	}
	if !models.CanTransition(iv.Status, status) {
		return apperrors.NewValidation("status", "illegal transition from "+string(iv.Status)+" to "+string(status))
	}

	now := w.clock.Now()
	if err := w.interventions.ApplyOutcome(ctx, interventionID, status, sql.NullTime{Time: now, Valid: true}, conversionAction); err != nil {
		return err
	}

	switch status {
	case models.InterventionStatusDismissed:
		if err := w.sessions.IncrementCounter(ctx, iv.SessionID, store.CounterDismissals); err != nil {
			w.log.Warn("intervention: dismissal counter increment failed", "sessionId", iv.SessionID, "err", err)
		}
	case models.InterventionStatusConverted:
		if err := w.sessions.IncrementCounter(ctx, iv.SessionID, store.CounterConversions); err != nil {
			w.log.Warn("intervention: conversion counter increment failed", "sessionId", iv.SessionID, "err", err)
		}
	}

	if status == models.InterventionStatusDismissed || status == models.InterventionStatusConverted || status == models.InterventionStatusIgnored {
		if w.training != nil {
			if err := w.training.SnapshotOutcome(ctx, interventionID); err != nil {
				w.log.Warn("intervention: training snapshot trigger failed", "interventionId", interventionID, "err", err)
			}
		}
	}

	return nil
}
