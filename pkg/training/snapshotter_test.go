package training

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/mswim/pkg/apperrors"
	"github.com/codeready-toolchain/mswim/pkg/clock"
	"github.com/codeready-toolchain/mswim/pkg/models"
)

type fakeInterventions struct{ byID map[string]models.Intervention }

func (f *fakeInterventions) Get(_ context.Context, id string) (models.Intervention, error) {
	iv, ok := f.byID[id]
	if !ok {
		return models.Intervention{}, apperrors.ErrNotFound
	}
	return iv, nil
}

type fakeEvaluations struct{ byID map[string]models.Evaluation }

func (f *fakeEvaluations) ByID(_ context.Context, id string) (models.Evaluation, error) {
	e, ok := f.byID[id]
	if !ok {
		return models.Evaluation{}, apperrors.ErrNotFound
	}
	return e, nil
}

type fakeSessions struct{ sess models.Session }

func (f *fakeSessions) Get(_ context.Context, _ string) (models.Session, error) { return f.sess, nil }

type fakeEvents struct{ events []models.TrackEvent }

func (f *fakeEvents) ByIDs(_ context.Context, _ []string) ([]models.TrackEvent, error) {
	return f.events, nil
}

type fakeWriter struct{ created []models.TrainingDatapoint }

func (f *fakeWriter) Create(_ context.Context, d models.TrainingDatapoint) error {
	f.created = append(f.created, d)
	return nil
}

func TestSnapshotOutcome_RejectsNonTerminalStatus(t *testing.T) {
	iv := models.Intervention{ID: "iv-1", Status: models.InterventionStatusDelivered}
	s := New(&fakeInterventions{byID: map[string]models.Intervention{"iv-1": iv}}, &fakeEvaluations{}, &fakeSessions{}, &fakeEvents{}, &fakeWriter{}, nil, nil)

	err := s.SnapshotOutcome(context.Background(), "iv-1")
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
}

func TestSnapshotOutcome_BuildsDenormalizedRowWithQualityFlags(t *testing.T) {
	fireTS := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	dismissTS := fireTS.Add(45 * time.Second)
	iv := models.Intervention{
		ID:           "iv-1",
		SessionID:    "sess-1",
		EvaluationID: "eval-1",
		Status:       models.InterventionStatusDismissed,
		Timestamp:    fireTS,
		DismissedAt:  &dismissTS,
	}
	eval := models.Evaluation{
		ID:             "eval-1",
		Narrative:      "shopper stalled at checkout",
		FrictionsFound: []string{"F096"},
	}
	sess := models.Session{ID: "sess-1", StartedAt: fireTS.Add(-10 * time.Minute)}
	events := []models.TrackEvent{{ID: "e1"}, {ID: "e2"}}

	fw := &fakeWriter{}
	s := New(
		&fakeInterventions{byID: map[string]models.Intervention{"iv-1": iv}},
		&fakeEvaluations{byID: map[string]models.Evaluation{"eval-1": eval}},
		&fakeSessions{sess: sess},
		&fakeEvents{events: events},
		fw,
		clock.NewFixed(dismissTS.Add(time.Second)),
		nil,
	)

	err := s.SnapshotOutcome(context.Background(), "iv-1")
	require.NoError(t, err)
	require.Len(t, fw.created, 1)

	got := fw.created[0]
	assert.Equal(t, "iv-1", got.InterventionID)
	assert.Equal(t, "sess-1", got.SessionID)
	assert.Equal(t, "eval-1", got.EvaluationID)
	assert.Equal(t, models.InterventionStatusDismissed, got.OutcomeStatus)
	assert.Equal(t, int64(45000), got.OutcomeDelayMs)
	assert.True(t, got.Quality.HasOutcome)
	assert.True(t, got.Quality.HasEvents)
	assert.True(t, got.Quality.HasNarrative)
	assert.True(t, got.Quality.HasFrictions)
	assert.Equal(t, 2, got.Quality.EventCount)
	assert.Equal(t, int64(600), got.Quality.SessionAgeSec)
}

func TestSnapshotOutcome_IgnoredStatusHasNoOutcomeTimestamp(t *testing.T) {
	fireTS := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	iv := models.Intervention{
		ID:           "iv-2",
		SessionID:    "sess-1",
		EvaluationID: "eval-1",
		Status:       models.InterventionStatusIgnored,
		Timestamp:    fireTS,
	}
	eval := models.Evaluation{ID: "eval-1"}
	fw := &fakeWriter{}
	s := New(
		&fakeInterventions{byID: map[string]models.Intervention{"iv-2": iv}},
		&fakeEvaluations{byID: map[string]models.Evaluation{"eval-1": eval}},
		&fakeSessions{sess: models.Session{ID: "sess-1"}},
		&fakeEvents{},
		fw,
		nil,
		nil,
	)

	err := s.SnapshotOutcome(context.Background(), "iv-2")
	require.NoError(t, err)
	require.Len(t, fw.created, 1)
	assert.False(t, fw.created[0].Quality.HasOutcome)
	assert.Equal(t, int64(0), fw.created[0].OutcomeDelayMs)
}
