// Package training implements the Training Snapshotter (C10): on a terminal
// intervention outcome, denormalizes the full decision chain into a single
// training row, idempotent by interventionId (§4.10).
package training

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/codeready-toolchain/mswim/pkg/apperrors"
	"github.com/codeready-toolchain/mswim/pkg/clock"
	"github.com/codeready-toolchain/mswim/pkg/models"
)

// InterventionReader is the narrow slice of pkg/store.InterventionStore
// the snapshotter needs.
type InterventionReader interface {
	Get(ctx context.Context, id string) (models.Intervention, error)
}

// EvaluationReader is the narrow slice of pkg/store.EvaluationStore the
// snapshotter needs.
type EvaluationReader interface {
	ByID(ctx context.Context, id string) (models.Evaluation, error)
}

// SessionReader is the narrow slice of the Session Store (C3) the
// snapshotter needs.
type SessionReader interface {
	Get(ctx context.Context, id string) (models.Session, error)
}

// EventReader is the narrow slice of pkg/store.EventStore the snapshotter
// needs to pull the batch's raw events.
type EventReader interface {
	ByIDs(ctx context.Context, ids []string) ([]models.TrackEvent, error)
}

// Writer is the narrow slice of pkg/store.TrainingStore the snapshotter
// writes to.
type Writer interface {
	Create(ctx context.Context, d models.TrainingDatapoint) error
}

// Snapshotter is the Training Snapshotter capability.
type Snapshotter struct {
	interventions InterventionReader
	evaluations   EvaluationReader
	sessions      SessionReader
	events        EventReader
	writer        Writer
	clock         clock.Clock
	log           *slog.Logger
}

// New builds a Snapshotter.
func New(interventions InterventionReader, evaluations EvaluationReader, sessions SessionReader, events EventReader, writer Writer, clk clock.Clock, log *slog.Logger) *Snapshotter {
	if clk == nil {
		clk = clock.System{}
	}
	if log == nil {
		log = slog.Default()
	}
	return &Snapshotter{interventions: interventions, evaluations: evaluations, sessions: sessions, events: events, writer: writer, clock: clk, log: log}
}

// SnapshotOutcome implements intervention.OutcomeTrigger and §4.10: joins
// the intervention, its evaluation, the session's current snapshot, and
// the batch's raw events into a single denormalized row. Rejects
// non-terminal outcomes; idempotent by interventionId (enforced at the
// store's unique index, so a duplicate call is a harmless no-op).
func (s *Snapshotter) SnapshotOutcome(ctx context.Context, interventionID string) error {
	iv, err := s.interventions.Get(ctx, interventionID)
	if err != nil {
		return err
	}
	if !iv.Status.Terminal() {
		return apperrors.NewValidation("status", "non-terminal outcome cannot be snapshotted")
	}

	eval, err := s.evaluations.ByID(ctx, iv.EvaluationID)
	if err != nil {
		return err
	}
	sess, err := s.sessions.Get(ctx, iv.SessionID)
	if err != nil {
		return err
	}
	events, err := s.events.ByIDs(ctx, eval.EventBatchIDs)
	if err != nil {
		return err
	}

	outcomeTS := iv.OutcomeTimestamp(iv.Status)
	var outcomeDelayMs int64
	if outcomeTS != nil {
		outcomeDelayMs = outcomeTS.Sub(iv.Timestamp).Milliseconds()
	}

	quality := models.QualityFlags{
		HasOutcome:     outcomeTS != nil,
		HasEvents:      len(events) > 0,
		HasNarrative:   eval.Narrative != "",
		HasFrictions:   len(eval.FrictionsFound) > 0,
		SessionAgeSec:  sess.AgeSeconds(iv.Timestamp),
		EventCount:     len(events),
		OutcomeDelayMs: outcomeDelayMs,
	}

	datapoint := models.TrainingDatapoint{
		ID:              uuid.New().String(),
		InterventionID:  iv.ID,
		SessionID:       sess.ID,
		EvaluationID:    eval.ID,
		SessionSnapshot: sess,
		EventBatch:      events,
		Evaluation:      eval,
		Intervention:    iv,
		OutcomeStatus:   iv.Status,
		OutcomeDelayMs:  outcomeDelayMs,
		Quality:         quality,
		CreatedAt:       s.clock.Now(),
	}

	if err := s.writer.Create(ctx, datapoint); err != nil {
		s.log.Warn("training: snapshot write failed", "interventionId", interventionID, "err", err)
		return err
	}
	return nil
}
