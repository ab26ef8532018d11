package intervention

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/mswim/pkg/clock"
	"github.com/codeready-toolchain/mswim/pkg/models"
	"github.com/codeready-toolchain/mswim/pkg/store"
)

type fakeInterventions struct {
	created []models.Intervention
	byID    map[string]models.Intervention
	outcome struct {
		id     string
		status models.InterventionStatus
	}
}

func newFakeInterventions() *fakeInterventions {
	return &fakeInterventions{byID: map[string]models.Intervention{}}
}

func (f *fakeInterventions) Create(_ context.Context, iv models.Intervention) error {
	f.created = append(f.created, iv)
	f.byID[iv.ID] = iv
	return nil
}

func (f *fakeInterventions) Get(_ context.Context, id string) (models.Intervention, error) {
	return f.byID[id], nil
}

func (f *fakeInterventions) ApplyOutcome(_ context.Context, id string, to models.InterventionStatus, _ sql.NullTime, _ string) error {
	f.outcome.id = id
	f.outcome.status = to
	iv := f.byID[id]
	iv.Status = to
	f.byID[id] = iv
	return nil
}

type fakeCounters struct{ calls []store.SessionCounterField }

func (f *fakeCounters) IncrementCounter(_ context.Context, _ string, field store.SessionCounterField) error {
	f.calls = append(f.calls, field)
	return nil
}

type fakeBroadcaster struct{ broadcast []models.Intervention }

func (f *fakeBroadcaster) BroadcastIntervention(iv models.Intervention) {
	f.broadcast = append(f.broadcast, iv)
}

type fakeTraining struct{ snapshotted []string }

func (f *fakeTraining) SnapshotOutcome(_ context.Context, interventionID string) error {
	f.snapshotted = append(f.snapshotted, interventionID)
	return nil
}

func newTestWriter() (*Writer, *fakeInterventions, *fakeCounters, *fakeBroadcaster, *fakeTraining) {
	ivs := newFakeInterventions()
	counters := &fakeCounters{}
	bc := &fakeBroadcaster{}
	tr := &fakeTraining{}
	w := New(ivs, counters, bc, tr, clock.NewFixed(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)), nil)
	return w, ivs, counters, bc, tr
}

func TestHandleEvaluation_SuppressDoesNothing(t *testing.T) {
	w, ivs, _, bc, _ := newTestWriter()
	err := w.HandleEvaluation(context.Background(), models.Evaluation{Decision: models.DecisionSuppress})
	require.NoError(t, err)
	assert.Empty(t, ivs.created)
	assert.Empty(t, bc.broadcast)
}

func TestHandleEvaluation_FireNudgePayloadShape(t *testing.T) {
	w, ivs, counters, bc, _ := newTestWriter()
	eval := models.Evaluation{
		ID:               "eval-1",
		SessionID:        "sess-1",
		Decision:         models.DecisionFire,
		Tier:             models.TierNudge,
		InterventionType: models.InterventionNudge,
		Narrative:        "consider a nudge",
		FrictionsFound:   []string{"F010"},
	}
	err := w.HandleEvaluation(context.Background(), eval)
	require.NoError(t, err)

	require.Len(t, ivs.created, 1)
	iv := ivs.created[0]
	assert.Equal(t, models.InterventionStatusSent, iv.Status)
	assert.Equal(t, "F010", iv.FrictionID)
	assert.Equal(t, true, iv.Payload["dismissable"])
	assert.Equal(t, 8000, iv.Payload["autoHideMs"])

	assert.Contains(t, counters.calls, store.CounterInterventionsFired)
	require.Len(t, bc.broadcast, 1)
}

func TestHandleEvaluation_EscalatePayloadOffersDiscount(t *testing.T) {
	w, ivs, _, _, _ := newTestWriter()
	eval := models.Evaluation{
		ID:               "eval-2",
		SessionID:        "sess-1",
		Decision:         models.DecisionFire,
		Tier:             models.TierEscalate,
		InterventionType: models.InterventionEscalate,
	}
	err := w.HandleEvaluation(context.Background(), eval)
	require.NoError(t, err)

	require.Len(t, ivs.created, 1)
	assert.Equal(t, true, ivs.created[0].Payload["offerDiscount"])
	assert.Equal(t, true, ivs.created[0].Payload["urgent"])
}

func TestHandleEvaluation_PassivePayloadIsSilent(t *testing.T) {
	w, ivs, _, _, _ := newTestWriter()
	eval := models.Evaluation{
		ID:               "eval-3",
		SessionID:        "sess-1",
		Decision:         models.DecisionFire,
		Tier:             models.TierPassive,
		InterventionType: models.InterventionPassive,
	}
	err := w.HandleEvaluation(context.Background(), eval)
	require.NoError(t, err)

	require.Len(t, ivs.created, 1)
	assert.Equal(t, true, ivs.created[0].Payload["silent"])
}

func TestRecordOutcome_DismissedIncrementsCounterAndTriggersTraining(t *testing.T) {
	w, ivs, counters, _, tr := newTestWriter()
	ivs.byID["iv-1"] = models.Intervention{ID: "iv-1", SessionID: "sess-1", Status: models.InterventionStatusSent}

	err := w.RecordOutcome(context.Background(), "iv-1", models.InterventionStatusDismissed, "")
	require.NoError(t, err)

	assert.Equal(t, models.InterventionStatusDismissed, ivs.outcome.status)
	assert.Contains(t, counters.calls, store.CounterDismissals)
	assert.Equal(t, []string{"iv-1"}, tr.snapshotted)
}

func TestRecordOutcome_ConvertedIncrementsConversionsCounter(t *testing.T) {
	w, ivs, counters, _, tr := newTestWriter()
	ivs.byID["iv-1"] = models.Intervention{ID: "iv-1", SessionID: "sess-1", Status: models.InterventionStatusDelivered}

	err := w.RecordOutcome(context.Background(), "iv-1", models.InterventionStatusConverted, "checkout_completed")
	require.NoError(t, err)

	assert.Contains(t, counters.calls, store.CounterConversions)
	assert.Equal(t, []string{"iv-1"}, tr.snapshotted)
}

func TestRecordOutcome_RejectsIllegalTransition(t *testing.T) {
	w, ivs, _, _, tr := newTestWriter()
	ivs.byID["iv-1"] = models.Intervention{ID: "iv-1", SessionID: "sess-1", Status: models.InterventionStatusDismissed}

	err := w.RecordOutcome(context.Background(), "iv-1", models.InterventionStatusConverted, "")
	assert.Error(t, err)
	assert.Empty(t, tr.snapshotted)
}
