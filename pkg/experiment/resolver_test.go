package experiment

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/mswim/pkg/models"
)

type fakeStore struct {
	experiments []models.Experiment
	assignments []models.ExperimentAssignment
}

func (f *fakeStore) RunningForSite(_ context.Context, siteURL string) ([]models.Experiment, error) {
	var out []models.Experiment
	for _, e := range f.experiments {
		if e.Status != models.ExperimentRunning {
			continue
		}
		if e.SiteURL == siteURL || e.SiteURL == "" {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeStore) AssignmentsForSession(_ context.Context, sessionID string) ([]models.ExperimentAssignment, error) {
	var out []models.ExperimentAssignment
	for _, a := range f.assignments {
		if a.SessionID == sessionID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeStore) Assign(_ context.Context, a models.ExperimentAssignment) error {
	f.assignments = append(f.assignments, a)
	return nil
}

func fullTrafficExperiment() models.Experiment {
	return models.Experiment{
		ID:             "exp-1",
		Name:           "checkout-copy",
		Status:         models.ExperimentRunning,
		TrafficPercent: 100,
		Variants: []models.ExperimentVariant{
			{ID: "control", Weight: 0.5},
			{ID: "treatment", Weight: 0.5, EvalEngine: models.EngineLLM},
		},
	}
}

func TestResolve_DisabledReturnsNone(t *testing.T) {
	fs := &fakeStore{experiments: []models.Experiment{fullTrafficExperiment()}}
	r := New(fs, false)

	got, err := r.Resolve(context.Background(), "example.com", "session-1")
	require.NoError(t, err)
	assert.Equal(t, models.ExperimentOverrides{}, got)
}

func TestResolve_NoActiveExperimentReturnsNone(t *testing.T) {
	fs := &fakeStore{}
	r := New(fs, true)

	got, err := r.Resolve(context.Background(), "example.com", "session-1")
	require.NoError(t, err)
	assert.Equal(t, models.ExperimentOverrides{}, got)
}

func TestResolve_ZeroTrafficNeverEnrolls(t *testing.T) {
	exp := fullTrafficExperiment()
	exp.TrafficPercent = 0
	fs := &fakeStore{experiments: []models.Experiment{exp}}
	r := New(fs, true)

	got, err := r.Resolve(context.Background(), "example.com", "session-1")
	require.NoError(t, err)
	assert.Equal(t, models.ExperimentOverrides{}, got)
	assert.Empty(t, fs.assignments)
}

func TestResolve_IsDeterministicAcrossCalls(t *testing.T) {
	fs := &fakeStore{experiments: []models.Experiment{fullTrafficExperiment()}}
	r := New(fs, true)

	first, err := r.Resolve(context.Background(), "example.com", "session-42")
	require.NoError(t, err)

	fs2 := &fakeStore{experiments: []models.Experiment{fullTrafficExperiment()}}
	r2 := New(fs2, true)
	second, err := r2.Resolve(context.Background(), "example.com", "session-42")
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestResolve_StickyAssignmentReused(t *testing.T) {
	fs := &fakeStore{experiments: []models.Experiment{fullTrafficExperiment()}}
	r := New(fs, true)

	first, err := r.Resolve(context.Background(), "example.com", "session-7")
	require.NoError(t, err)
	require.Len(t, fs.assignments, 1)

	second, err := r.Resolve(context.Background(), "example.com", "session-7")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Len(t, fs.assignments, 1, "a sticky assignment must not be re-rolled")
}

func TestResolve_SiteSpecificExperimentWinsOverGlobal(t *testing.T) {
	global := fullTrafficExperiment()
	global.ID = "exp-global"

	siteSpecific := fullTrafficExperiment()
	siteSpecific.ID = "exp-site"
	siteSpecific.SiteURL = "example.com"

	fs := &fakeStore{experiments: []models.Experiment{global, siteSpecific}}
	r := New(fs, true)

	got, err := r.Resolve(context.Background(), "example.com", "session-1")
	require.NoError(t, err)
	assert.Equal(t, "exp-site", got.ExperimentID)
}
