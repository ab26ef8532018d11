// Package drift implements the Drift Detector & Job Runner (C11): a
// cron-scheduled runner for the named jobs, windowed health snapshots over
// shadow/intervention/evaluation data, and deduplicated anomaly alerts
// (§4.11).
package drift

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/codeready-toolchain/mswim/pkg/clock"
	"github.com/codeready-toolchain/mswim/pkg/models"
)

// ShadowReader is the narrow slice of pkg/store.ShadowStore the detector
// needs to aggregate tier/decision agreement over a window.
type ShadowReader interface {
	SinceForSite(ctx context.Context, from time.Time, siteURL string) ([]models.ShadowComparison, error)
}

// InterventionReader is the narrow slice of pkg/store.InterventionStore
// the detector needs to aggregate conversion/dismissal rates.
type InterventionReader interface {
	SinceForSite(ctx context.Context, from time.Time, siteURL string) ([]models.Intervention, error)
}

// EvaluationReader is the narrow slice of pkg/store.EvaluationStore the
// detector needs to join an intervention back to its signals.
type EvaluationReader interface {
	ByID(ctx context.Context, id string) (models.Evaluation, error)
}

// SiteLister enumerates the distinct site scopes the detector fans its
// per-window snapshots out across, in addition to the global scope.
type SiteLister interface {
	DistinctSiteURLs(ctx context.Context) ([]string, error)
}

// SnapshotWriter is the narrow slice of pkg/store.DriftStore the detector
// writes windowed health snapshots to, and reads the 7d baseline from.
type SnapshotWriter interface {
	CreateSnapshot(ctx context.Context, snap models.DriftSnapshot) error
	LatestByWindow(ctx context.Context, window models.WindowType, siteURL string) (models.DriftSnapshot, error)
}

// AlertWriter is the narrow slice of pkg/store.DriftStore the detector
// raises and dedups anomaly alerts against.
type AlertWriter interface {
	CreateAlert(ctx context.Context, alert models.DriftAlert) error
	Unresolved(ctx context.Context) ([]models.DriftAlert, error)
}

// JobRecorder is the narrow slice of pkg/store.JobStore the runner uses to
// record job run lifecycle.
type JobRecorder interface {
	Start(ctx context.Context, run models.JobRun) error
	Finish(ctx context.Context, id string, status models.JobStatus, completedAt sql.NullTime, durationMs int64, summary, errMsg string) error
}

// NightlyBatchJob runs the batch aggregation job (e.g. training export
// summaries); injected so the runner stays agnostic of its contents.
type NightlyBatchJob interface {
	Run(ctx context.Context) (summary string, err error)
}

var windows = []models.WindowType{models.Window1h, models.Window6h, models.Window24h, models.Window7d}

const alertDedupWindow = 6 * time.Hour

// Runner is the Drift Detector & Job Runner capability: a cron scheduler
// over the three named jobs with an in-process at-most-one-run-per-job
// mutex (§4.11, §5 "job runner").
type Runner struct {
	shadow        ShadowReader
	interventions InterventionReader
	evaluations   EvaluationReader
	sites         SiteLister
	snapshots     SnapshotWriter
	alerts        AlertWriter
	jobs          JobRecorder
	nightlyBatch  NightlyBatchJob
	thresholds    models.DriftThresholds

	cron    *cron.Cron
	running sync.Map // jobName -> struct{}

	clock clock.Clock
	log   *slog.Logger
}

// Deps bundles the Runner's collaborators.
type Deps struct {
	Shadow        ShadowReader
	Interventions InterventionReader
	Evaluations   EvaluationReader
	Sites         SiteLister
	Snapshots     SnapshotWriter
	Alerts        AlertWriter
	Jobs          JobRecorder
	NightlyBatch  NightlyBatchJob
	Thresholds    models.DriftThresholds
	Clock         clock.Clock
	Log           *slog.Logger
}

// New builds a Runner. Call Schedule to wire cron entries, then Start.
func New(d Deps) *Runner {
	clk := d.Clock
	if clk == nil {
		clk = clock.System{}
	}
	logger := d.Log
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		shadow:        d.Shadow,
		interventions: d.Interventions,
		evaluations:   d.Evaluations,
		sites:         d.Sites,
		snapshots:     d.Snapshots,
		alerts:        d.Alerts,
		jobs:          d.Jobs,
		nightlyBatch:  d.NightlyBatch,
		thresholds:    d.Thresholds,
		cron:          cron.New(),
		clock:         clk,
		log:           logger,
	}
}

// Schedule registers the three named jobs against their cron expressions
// (§6.4 `jobs.*_cron`). An empty expression leaves that job unscheduled.
func (r *Runner) Schedule(nightlyBatchCron, driftCheckCron, rolloutHealthCron string) error {
	entries := []struct {
		name models.JobName
		expr string
		run  func(ctx context.Context) (string, error)
	}{
		{models.JobNightlyBatch, nightlyBatchCron, r.runNightlyBatch},
		{models.JobDriftCheck, driftCheckCron, r.runDriftCheck},
		{models.JobRolloutHealth, rolloutHealthCron, r.runRolloutHealth},
	}
	for _, e := range entries {
		if e.expr == "" {
			continue
		}
		jobName, run := e.name, e.run
		if _, err := r.cron.AddFunc(e.expr, func() {
			if err := r.RunJob(context.Background(), jobName, "scheduler", run); err != nil {
				r.log.Warn("drift: scheduled job failed", "jobName", jobName, "err", err)
			}
		}); err != nil {
			return fmt.Errorf("drift: schedule %s: %w", jobName, err)
		}
	}
	return nil
}

// Start begins the cron engine.
func (r *Runner) Start() { r.cron.Start() }

// Stop halts the cron engine and blocks until in-flight jobs finish.
func (r *Runner) Stop() { <-r.cron.Stop().Done() }

// RunJob executes a named job at most once concurrently (§4.11 "At most
// one concurrent run per jobName"), recording a JobRun via the JobRecorder.
// triggeredBy is "scheduler" for cron firings or a caller identity for
// manual triggers (admin API).
func (r *Runner) RunJob(ctx context.Context, name models.JobName, triggeredBy string, run func(ctx context.Context) (string, error)) error {
	if _, already := r.running.LoadOrStore(name, struct{}{}); already {
		return fmt.Errorf("drift: job %s already running", name)
	}
	defer r.running.Delete(name)

	id := uuid.New().String()
	start := r.clock.Now()
	if err := r.jobs.Start(ctx, models.JobRun{ID: id, JobName: name, StartedAt: start, TriggeredBy: triggeredBy}); err != nil {
		return err
	}

	summary, runErr := run(ctx)
	end := r.clock.Now()
	duration := end.Sub(start).Milliseconds()

	if runErr != nil {
		_ = r.jobs.Finish(ctx, id, models.JobStatusFailed, sql.NullTime{Time: end, Valid: true}, duration, "", runErr.Error())
		return runErr
	}
	return r.jobs.Finish(ctx, id, models.JobStatusCompleted, sql.NullTime{Time: end, Valid: true}, duration, summary, "")
}

func (r *Runner) runNightlyBatch(ctx context.Context) (string, error) {
	if r.nightlyBatch == nil {
		return "", nil
	}
	return r.nightlyBatch.Run(ctx)
}

// runRolloutHealth is a lighter-weight pass: just the 1h window, useful for
// fast-cadence rollout monitoring without the full multi-window sweep.
func (r *Runner) runRolloutHealth(ctx context.Context) (string, error) {
	sites, err := r.scopes(ctx)
	if err != nil {
		return "", err
	}
	count := 0
	for _, site := range sites {
		if err := r.computeAndCheck(ctx, models.Window1h, site); err != nil {
			return "", err
		}
		count++
	}
	return fmt.Sprintf("checked 1h window across %d scope(s)", count), nil
}

func (r *Runner) runDriftCheck(ctx context.Context) (string, error) {
	sites, err := r.scopes(ctx)
	if err != nil {
		return "", err
	}
	checked := 0
	for _, site := range sites {
		for _, w := range windows {
			if err := r.computeAndCheck(ctx, w, site); err != nil {
				return "", err
			}
			checked++
		}
	}
	return fmt.Sprintf("computed %d window/site snapshots", checked), nil
}

func (r *Runner) scopes(ctx context.Context) ([]string, error) {
	scopes := []string{""}
	if r.sites == nil {
		return scopes, nil
	}
	siteURLs, err := r.sites.DistinctSiteURLs(ctx)
	if err != nil {
		return nil, err
	}
	return append(scopes, siteURLs...), nil
}

func (r *Runner) computeAndCheck(ctx context.Context, window models.WindowType, siteURL string) error {
	snap, err := r.computeSnapshot(ctx, window, siteURL)
	if err != nil {
		return err
	}
	if err := r.snapshots.CreateSnapshot(ctx, snap); err != nil {
		return err
	}
	return r.detectAnomalies(ctx, snap)
}

// computeSnapshot implements §4.11's "Drift window snapshot" aggregation.
func (r *Runner) computeSnapshot(ctx context.Context, window models.WindowType, siteURL string) (models.DriftSnapshot, error) {
	now := r.clock.Now()
	from := now.Add(-window.Duration())

	comparisons, err := r.shadow.SinceForSite(ctx, from, siteURL)
	if err != nil {
		return models.DriftSnapshot{}, err
	}
	snap := models.DriftSnapshot{
		ID:         uuid.New().String(),
		WindowType: window,
		SiteURL:    siteURL,
		ComputedAt: now,
	}
	snap.SampleCount = len(comparisons)
	if len(comparisons) > 0 {
		var tierMatches, decisionMatches int
		var divergenceSum float64
		for _, c := range comparisons {
			if c.TierMatch {
				tierMatches++
			}
			if c.DecisionMatch {
				decisionMatches++
			}
			divergenceSum += c.CompositeDivergence
		}
		snap.TierAgreementRate = float64(tierMatches) / float64(len(comparisons))
		snap.DecisionAgreementRate = float64(decisionMatches) / float64(len(comparisons))
		snap.AvgDivergence = divergenceSum / float64(len(comparisons))
	}

	interventions, err := r.interventions.SinceForSite(ctx, from, siteURL)
	if err != nil {
		return models.DriftSnapshot{}, err
	}
	var converted, dismissed int
	var convertedMeans, dismissedMeans signalAccumulator
	for _, iv := range interventions {
		switch iv.Status {
		case models.InterventionStatusConverted:
			converted++
			if eval, err := r.evaluations.ByID(ctx, iv.EvaluationID); err == nil {
				convertedMeans.add(eval.Signals)
			}
		case models.InterventionStatusDismissed:
			dismissed++
			if eval, err := r.evaluations.ByID(ctx, iv.EvaluationID); err == nil {
				dismissedMeans.add(eval.Signals)
			}
		}
	}
	total := len(interventions)
	if total > 0 {
		snap.ConversionRate = float64(converted) / float64(total)
		snap.DismissalRate = float64(dismissed) / float64(total)
	}
	snap.ConvertedMeans = convertedMeans.means()
	snap.DismissedMeans = dismissedMeans.means()

	return snap, nil
}

type signalAccumulator struct {
	n                                            int
	intent, friction, clarity, receptivity, value float64
}

func (a *signalAccumulator) add(s models.Signals) {
	a.n++
	a.intent += s.Intent
	a.friction += s.Friction
	a.clarity += s.Clarity
	a.receptivity += s.Receptivity
	a.value += s.Value
}

func (a *signalAccumulator) means() models.SignalMeans {
	if a.n == 0 {
		return models.SignalMeans{}
	}
	n := float64(a.n)
	return models.SignalMeans{
		Intent:      a.intent / n,
		Friction:    a.friction / n,
		Clarity:     a.clarity / n,
		Receptivity: a.receptivity / n,
		Value:       a.value / n,
	}
}

// detectAnomalies implements §4.11's anomaly detection and 6-hour dedup.
func (r *Runner) detectAnomalies(ctx context.Context, snap models.DriftSnapshot) error {
	candidates := r.evaluate(ctx, snap)
	if len(candidates) == 0 {
		return nil
	}
	unresolved, err := r.alerts.Unresolved(ctx)
	if err != nil {
		return err
	}
	now := r.clock.Now()
	for _, cand := range candidates {
		if dedupMatch(unresolved, cand, now) {
			continue
		}
		if err := r.alerts.CreateAlert(ctx, cand); err != nil {
			return err
		}
	}
	return nil
}

func dedupMatch(unresolved []models.DriftAlert, cand models.DriftAlert, now time.Time) bool {
	for _, a := range unresolved {
		if a.AlertType == cand.AlertType && a.WindowType == cand.WindowType && a.SiteURL == cand.SiteURL &&
			now.Sub(a.CreatedAt) < alertDedupWindow {
			return true
		}
	}
	return false
}

// evaluate implements §4.11's severity rule: critical when a metric is
// below 0.78×floor (tier) or 0.80×floor (decision), or a relative
// conversion drop against the 7d baseline exceeds the configured percent;
// warning otherwise.
func (r *Runner) evaluate(ctx context.Context, snap models.DriftSnapshot) []models.DriftAlert {
	if snap.SampleCount == 0 {
		return nil
	}
	now := r.clock.Now()
	var out []models.DriftAlert

	if snap.TierAgreementRate < r.thresholds.TierAgreementFloor {
		sev := models.SeverityWarning
		if snap.TierAgreementRate < 0.78*r.thresholds.TierAgreementFloor {
			sev = models.SeverityCritical
		}
		out = append(out, r.alert("tier_agreement_drop", sev, snap, "tierAgreementRate", r.thresholds.TierAgreementFloor, snap.TierAgreementRate, now))
	}

	if snap.DecisionAgreementRate < r.thresholds.DecisionAgreementFloor {
		sev := models.SeverityWarning
		if snap.DecisionAgreementRate < 0.80*r.thresholds.DecisionAgreementFloor {
			sev = models.SeverityCritical
		}
		out = append(out, r.alert("decision_agreement_drop", sev, snap, "decisionAgreementRate", r.thresholds.DecisionAgreementFloor, snap.DecisionAgreementRate, now))
	}

	if snap.AvgDivergence > r.thresholds.MaxCompositeDivergence {
		out = append(out, r.alert("composite_divergence_spike", models.SeverityWarning, snap, "avgDivergence", r.thresholds.MaxCompositeDivergence, snap.AvgDivergence, now))
	}

	if baseline, err := r.snapshots.LatestByWindow(ctx, models.Window7d, snap.SiteURL); err == nil && baseline.ConversionRate > 0 && snap.WindowType != models.Window7d {
		drop := (baseline.ConversionRate - snap.ConversionRate) / baseline.ConversionRate * 100
		if drop > r.thresholds.ConversionRateDropPercent {
			out = append(out, r.alert("conversion_rate_drop", models.SeverityCritical, snap, "conversionRate", baseline.ConversionRate, snap.ConversionRate, now))
		}
	}

	return out
}

func (r *Runner) alert(alertType string, sev models.AlertSeverity, snap models.DriftSnapshot, metric string, expected, actual float64, now time.Time) models.DriftAlert {
	return models.DriftAlert{
		ID:         uuid.New().String(),
		AlertType:  alertType,
		Severity:   sev,
		WindowType: snap.WindowType,
		SiteURL:    snap.SiteURL,
		Metric:     metric,
		Expected:   expected,
		Actual:     actual,
		Message:    fmt.Sprintf("%s breach in %s window: expected %.3f, got %.3f", alertType, snap.WindowType, expected, actual),
		CreatedAt:  now,
	}
}
