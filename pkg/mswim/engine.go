package mswim

import (
	"fmt"
	"math"
	"sort"

	"github.com/codeready-toolchain/mswim/pkg/frictioncatalog"
	"github.com/codeready-toolchain/mswim/pkg/models"
)

// ConfigLookup resolves the candidate ScoringConfig rows a session could be
// bound to; the Scoring Config Store (C12) implements it. MSWIM itself only
// knows the priority order in which to consult them (§4.7.1, §9a).
type ConfigLookup interface {
	ByID(id string) (models.ScoringConfig, bool)
	ActiveForSite(siteURL string) (models.ScoringConfig, bool)
	ActiveGlobal() (models.ScoringConfig, bool)
}

// ResolveConfig implements the config-resolution priority order (§4.7.1):
// an experiment-assigned config id wins outright; otherwise the
// site-specific active row, then the global active row, then the compiled
// default.
func ResolveConfig(lookup ConfigLookup, siteURL, experimentConfigID string) models.ScoringConfig {
	if experimentConfigID != "" {
		if cfg, ok := lookup.ByID(experimentConfigID); ok {
			return cfg
		}
	}
	if cfg, ok := lookup.ActiveForSite(siteURL); ok {
		return cfg
	}
	if cfg, ok := lookup.ActiveGlobal(); ok {
		return cfg
	}
	return DefaultConfig()
}

// Engine evaluates raw signal hints into a tiered fire/suppress Result.
type Engine struct {
	Catalog *frictioncatalog.Catalog
}

// New builds an Engine backed by catalog. A nil catalog falls back to
// frictioncatalog.Default().
func New(catalog *frictioncatalog.Catalog) *Engine {
	if catalog == nil {
		catalog = frictioncatalog.Default()
	}
	return &Engine{Catalog: catalog}
}

// Evaluate runs the full MSWIM pipeline: adjust signals, compute the
// weighted composite, resolve a tier, then apply the gate catalog
// (§4.7.1-§4.7.4).
func (e *Engine) Evaluate(raw RawHints, ctx SessionContext, config models.ScoringConfig) Result {
	signals := AdjustSignals(raw, ctx, e.Catalog)
	composite := weightedComposite(signals, config.Weights)
	tier := resolveTier(composite, config.Thresholds)

	decision := models.DecisionFire
	if tier == models.TierMonitor {
		decision = models.DecisionSuppress
	}

	finalTier, finalDecision, matchedGate := applyGates(signals, ctx, tier, decision, config, e.Catalog)

	return Result{
		Signals:      signals,
		Composite:    composite,
		WeightsUsed:  config.Weights,
		Tier:         finalTier,
		Decision:     finalDecision,
		GateOverride: matchedGate,
		Reasoning:    reasoning(signals, finalTier, finalDecision, matchedGate),
	}
}

// weightedComposite computes round_2dp(Σ signal_i · weight_i), clamped to
// [0,100] (§4.7.1).
func weightedComposite(s models.Signals, w models.Weights) float64 {
	sum := float64(s.Intent)*w.Intent +
		float64(s.Friction)*w.Friction +
		float64(s.Clarity)*w.Clarity +
		float64(s.Receptivity)*w.Receptivity +
		float64(s.Value)*w.Value
	if sum < 0 {
		sum = 0
	}
	if sum > 100 {
		sum = 100
	}
	return math.Round(sum*100) / 100
}

// resolveTier maps a composite score onto a tier via the strictly-ascending
// threshold cut points (§4.7.1): composite <= monitor -> MONITOR,
// <= passive -> PASSIVE, <= nudge -> NUDGE, <= active -> ACTIVE, else ESCALATE.
func resolveTier(composite float64, t models.TierThresholds) models.Tier {
	switch {
	case composite <= float64(t.Monitor):
		return models.TierMonitor
	case composite <= float64(t.Passive):
		return models.TierPassive
	case composite <= float64(t.Nudge):
		return models.TierNudge
	case composite <= float64(t.Active):
		return models.TierActive
	default:
		return models.TierEscalate
	}
}

// reasoning builds a short human-readable trace of the decision: the
// matched gate, if any, and the top contributing signals otherwise.
func reasoning(s models.Signals, tier models.Tier, decision models.Decision, gateName string) string {
	if gateName != "" {
		return fmt.Sprintf("gate %s -> tier=%s decision=%s", gateName, tier, decision)
	}
	top := topSignals(s, 3)
	return fmt.Sprintf("tier=%s decision=%s top signals: %v", tier, decision, top)
}

type namedSignal struct {
	name  string
	value int
}

// topSignals returns the n highest-valued signal names, descending.
func topSignals(s models.Signals, n int) []string {
	all := []namedSignal{
		{"intent", s.Intent},
		{"friction", s.Friction},
		{"clarity", s.Clarity},
		{"receptivity", s.Receptivity},
		{"value", s.Value},
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].value > all[j].value })
	if n > len(all) {
		n = len(all)
	}
	out := make([]string, n)
	for i := 0; i < n; i++ {
		out[i] = fmt.Sprintf("%s=%d", all[i].name, all[i].value)
	}
	return out
}
