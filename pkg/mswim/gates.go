package mswim

import (
	"github.com/codeready-toolchain/mswim/pkg/frictioncatalog"
	"github.com/codeready-toolchain/mswim/pkg/models"
)

// forceEscalate frictions force tier ESCALATE regardless of composite score
// (§4.7.4 force-escalate), each a named single-id gate.
var forceEscalateGates = []struct {
	name string
	id   string
}{
	{"FORCE_ESCALATE_PAYMENT", "F096"},
	{"FORCE_ESCALATE_PAYMENT", "F097"},
	{"FORCE_ESCALATE_CHECKOUT_TIMEOUT", "F112"},
	{"FORCE_ESCALATE_HELP_SEARCH", "F036"},
}

// forcePassive frictions cap tier at PASSIVE regardless of composite score
// (§4.7.4 force-passive): a single out-of-stock id plus the F161-F177
// technical and F236-F247 shipping ranges.
const (
	technicalRangeLo = 161
	technicalRangeHi = 177
	shippingRangeLo  = 236
	shippingRangeHi  = 247
)

func matchForceEscalate(ids []string) string {
	for _, id := range ids {
		for _, g := range forceEscalateGates {
			if id == g.id {
				return g.name
			}
		}
	}
	return ""
}

func matchForcePassive(ids []string) string {
	for _, id := range ids {
		if id == "F053" {
			return "FORCE_PASSIVE_OOS"
		}
		if n, ok := frictioncatalog.NumericSuffix(id); ok {
			if n >= technicalRangeLo && n <= technicalRangeHi {
				return "FORCE_PASSIVE_TECHNICAL"
			}
			if n >= shippingRangeLo && n <= shippingRangeHi {
				return "FORCE_PASSIVE_SHIPPING"
			}
		}
	}
	return ""
}

// gate is one entry in the suppress-for-non-passive-tiers catalog
// (§4.7.4). It reports whether it matches, given the composite-derived
// tier (before any gate has been applied).
type gate struct {
	name      string
	appliesTo func(tier models.Tier) bool
	matches   func(signals models.Signals, ctx SessionContext, params models.GateParams, tier models.Tier) bool
}

var suppressGates = []gate{
	{
		name:      "SESSION_TOO_YOUNG",
		appliesTo: func(models.Tier) bool { return true },
		matches: func(_ models.Signals, ctx SessionContext, params models.GateParams, _ models.Tier) bool {
			return ctx.SessionAgeSec < int64(params.MinSessionAgeSec)
		},
	},
	{
		name:      "RECEPTIVITY_FLOOR",
		appliesTo: func(t models.Tier) bool { return t != models.TierEscalate },
		matches: func(signals models.Signals, _ SessionContext, params models.GateParams, _ models.Tier) bool {
			return signals.Receptivity < params.ReceptivityFloor
		},
	},
	{
		name:      "DISMISS_CAP",
		appliesTo: func(models.Tier) bool { return true },
		matches: func(_ models.Signals, ctx SessionContext, params models.GateParams, _ models.Tier) bool {
			return ctx.TotalDismissals >= params.DismissalsToSuppress
		},
	},
	{
		name:      "DUPLICATE_FRICTION",
		appliesTo: func(t models.Tier) bool { return t != models.TierEscalate },
		matches: func(_ models.Signals, ctx SessionContext, params models.GateParams, _ models.Tier) bool {
			return duplicateFriction(ctx, params)
		},
	},
	{
		name:      "COOLDOWN_ACTIVE",
		appliesTo: func(t models.Tier) bool { return t != models.TierEscalate },
		matches: func(_ models.Signals, ctx SessionContext, params models.GateParams, _ models.Tier) bool {
			if ctx.SecondsSinceLastActive >= 0 && ctx.SecondsSinceLastActive < int64(params.CooldownAfterActiveSec) {
				return true
			}
			if ctx.SecondsSinceLastNudge >= 0 && ctx.SecondsSinceLastNudge < int64(params.CooldownAfterNudgeSec) {
				return true
			}
			if ctx.SecondsSinceLastDismissal >= 0 && ctx.SecondsSinceLastDismissal < int64(params.CooldownAfterDismissSec) {
				return true
			}
			return false
		},
	},
	{
		name:      "SESSION_CAP",
		appliesTo: func(t models.Tier) bool { return t != models.TierEscalate },
		matches: func(_ models.Signals, ctx SessionContext, params models.GateParams, tier models.Tier) bool {
			return sessionCapExceeded(ctx, params, tier)
		},
	},
}

// sessionCapExceeded implements the "tier-appropriate cap exceeded" rule
// (§4.7.4 SESSION_CAP): ACTIVE checks the active-per-session cap, NUDGE
// checks the nudge-per-session cap, and the overall non-passive cap applies
// regardless of which non-passive tier is about to fire.
func sessionCapExceeded(ctx SessionContext, params models.GateParams, tier models.Tier) bool {
	if tier == models.TierActive && ctx.TotalActiveFired >= params.MaxActivePerSession {
		return true
	}
	if tier == models.TierNudge && ctx.TotalNudgesFired >= params.MaxNudgePerSession {
		return true
	}
	return ctx.TotalNonPassiveFired >= params.MaxNonPassivePerSession
}

// duplicateFriction implements the configurable ALL-vs-ANY matching rule
// resolved in SPEC_FULL.md §9(b): by default every friction id on this
// evaluation must already have been intervened on for the gate to match.
func duplicateFriction(ctx SessionContext, params models.GateParams) bool {
	if len(ctx.FrictionIDs) == 0 || len(ctx.FrictionIDsAlreadyIntervened) == 0 {
		return false
	}
	if params.DuplicateFrictionRequiresAll {
		for _, id := range ctx.FrictionIDs {
			if !ctx.FrictionIDsAlreadyIntervened[id] {
				return false
			}
		}
		return true
	}
	for _, id := range ctx.FrictionIDs {
		if ctx.FrictionIDsAlreadyIntervened[id] {
			return true
		}
	}
	return false
}

// applyGates runs the three-class gate catalog over a composite-derived
// tier/decision pair and returns the possibly-overridden result plus the
// matched gate's name, empty if none matched (§4.7.4).
func applyGates(signals models.Signals, ctx SessionContext, tier models.Tier, decision models.Decision, config models.ScoringConfig, catalog *frictioncatalog.Catalog) (models.Tier, models.Decision, string) {
	if name := matchForceEscalate(ctx.FrictionIDs); name != "" {
		return models.TierEscalate, models.DecisionFire, name
	}
	if name := matchForcePassive(ctx.FrictionIDs); name != "" {
		return models.TierPassive, models.DecisionFire, name
	}
	if tier == models.TierPassive {
		return tier, decision, ""
	}
	for _, g := range suppressGates {
		if !g.appliesTo(tier) {
			continue
		}
		if g.matches(signals, ctx, config.Gates, tier) {
			return tier, models.DecisionSuppress, g.name
		}
	}
	return tier, decision, ""
}
