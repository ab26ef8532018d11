package drift

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/mswim/pkg/clock"
	"github.com/codeready-toolchain/mswim/pkg/models"
)

type fakeShadow struct{ comparisons []models.ShadowComparison }

func (f *fakeShadow) SinceForSite(_ context.Context, _ time.Time, _ string) ([]models.ShadowComparison, error) {
	return f.comparisons, nil
}

type fakeInterventions struct{ interventions []models.Intervention }

func (f *fakeInterventions) SinceForSite(_ context.Context, _ time.Time, _ string) ([]models.Intervention, error) {
	return f.interventions, nil
}

type fakeEvaluations struct{ byID map[string]models.Evaluation }

func (f *fakeEvaluations) ByID(_ context.Context, id string) (models.Evaluation, error) {
	return f.byID[id], nil
}

type fakeSites struct{ urls []string }

func (f *fakeSites) DistinctSiteURLs(_ context.Context) ([]string, error) { return f.urls, nil }

type fakeSnapshots struct {
	created  []models.DriftSnapshot
	baseline map[string]models.DriftSnapshot
}

func (f *fakeSnapshots) CreateSnapshot(_ context.Context, snap models.DriftSnapshot) error {
	f.created = append(f.created, snap)
	return nil
}

func (f *fakeSnapshots) LatestByWindow(_ context.Context, window models.WindowType, siteURL string) (models.DriftSnapshot, error) {
	if f.baseline == nil {
		return models.DriftSnapshot{}, sql.ErrNoRows
	}
	s, ok := f.baseline[string(window)+"|"+siteURL]
	if !ok {
		return models.DriftSnapshot{}, sql.ErrNoRows
	}
	return s, nil
}

type fakeAlerts struct {
	created    []models.DriftAlert
	unresolved []models.DriftAlert
}

func (f *fakeAlerts) CreateAlert(_ context.Context, a models.DriftAlert) error {
	f.created = append(f.created, a)
	return nil
}

func (f *fakeAlerts) Unresolved(_ context.Context) ([]models.DriftAlert, error) { return f.unresolved, nil }

type fakeJobs struct {
	mu      sync.Mutex
	started []models.JobRun
	finished []string
}

func (f *fakeJobs) Start(_ context.Context, run models.JobRun) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started = append(f.started, run)
	return nil
}

func (f *fakeJobs) Finish(_ context.Context, id string, _ models.JobStatus, _ sql.NullTime, _ int64, _, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.finished = append(f.finished, id)
	return nil
}

func newTestRunner(t *testing.T, shadow []models.ShadowComparison, ivs []models.Intervention, evals map[string]models.Evaluation, thresholds models.DriftThresholds) (*Runner, *fakeSnapshots, *fakeAlerts) {
	t.Helper()
	snapshots := &fakeSnapshots{}
	alerts := &fakeAlerts{}
	r := New(Deps{
		Shadow:        &fakeShadow{comparisons: shadow},
		Interventions: &fakeInterventions{interventions: ivs},
		Evaluations:   &fakeEvaluations{byID: evals},
		Sites:         &fakeSites{},
		Snapshots:     snapshots,
		Alerts:        alerts,
		Jobs:          &fakeJobs{},
		Thresholds:    thresholds,
		Clock:         clock.NewFixed(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)),
	})
	return r, snapshots, alerts
}

func TestRunDriftCheck_ComputesSnapshotPerWindow(t *testing.T) {
	comparisons := []models.ShadowComparison{
		{TierMatch: true, DecisionMatch: true, CompositeDivergence: 2},
		{TierMatch: false, DecisionMatch: true, CompositeDivergence: 4},
	}
	r, snapshots, _ := newTestRunner(t, comparisons, nil, nil, models.DriftThresholds{TierAgreementFloor: 0.5, DecisionAgreementFloor: 0.5})

	summary, err := r.runDriftCheck(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, summary)
	require.Len(t, snapshots.created, 4) // one per window, global scope only

	snap := snapshots.created[0]
	assert.Equal(t, 2, snap.SampleCount)
	assert.InDelta(t, 0.5, snap.TierAgreementRate, 0.001)
	assert.InDelta(t, 1.0, snap.DecisionAgreementRate, 0.001)
	assert.InDelta(t, 3.0, snap.AvgDivergence, 0.001)
}

func TestDetectAnomalies_LowTierAgreementRaisesAlert(t *testing.T) {
	comparisons := []models.ShadowComparison{
		{TierMatch: false, DecisionMatch: true},
		{TierMatch: false, DecisionMatch: true},
	}
	r, _, alerts := newTestRunner(t, comparisons, nil, nil, models.DriftThresholds{TierAgreementFloor: 0.9, DecisionAgreementFloor: 0.5})

	_, err := r.runDriftCheck(context.Background())
	require.NoError(t, err)

	require.NotEmpty(t, alerts.created)
	found := false
	for _, a := range alerts.created {
		if a.AlertType == "tier_agreement_drop" {
			found = true
			assert.Equal(t, models.SeverityCritical, a.Severity) // 0.0 < 0.78*0.9
		}
	}
	assert.True(t, found)
}

func TestDetectAnomalies_DedupSuppressesRepeatAlert(t *testing.T) {
	comparisons := []models.ShadowComparison{{TierMatch: false, DecisionMatch: true}}
	r, _, alerts := newTestRunner(t, comparisons, nil, nil, models.DriftThresholds{TierAgreementFloor: 0.9, DecisionAgreementFloor: 0.5})
	alerts.unresolved = []models.DriftAlert{
		{AlertType: "tier_agreement_drop", WindowType: models.Window1h, SiteURL: "", CreatedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)},
	}

	_, err := r.runDriftCheck(context.Background())
	require.NoError(t, err)

	for _, a := range alerts.created {
		assert.NotEqual(t, "tier_agreement_drop", a.AlertType, "1h tier_agreement_drop should have been deduped")
	}
}

func TestRunJob_PreventsConcurrentRunOfSameJob(t *testing.T) {
	jobs := &fakeJobs{}
	r := New(Deps{
		Shadow:        &fakeShadow{},
		Interventions: &fakeInterventions{},
		Evaluations:   &fakeEvaluations{},
		Sites:         &fakeSites{},
		Snapshots:     &fakeSnapshots{},
		Alerts:        &fakeAlerts{},
		Jobs:          jobs,
		Clock:         clock.NewFixed(time.Now()),
	})

	release := make(chan struct{})
	started := make(chan struct{})
	go func() {
		_ = r.RunJob(context.Background(), models.JobDriftCheck, "test", func(ctx context.Context) (string, error) {
			close(started)
			<-release
			return "ok", nil
		})
	}()
	<-started

	err := r.RunJob(context.Background(), models.JobDriftCheck, "test", func(ctx context.Context) (string, error) {
		return "should not run", nil
	})
	require.Error(t, err)
	close(release)
}
