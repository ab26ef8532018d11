package mswim

import "github.com/codeready-toolchain/mswim/pkg/models"

// DefaultConfig is the compiled-in ScoringConfig used when no global or
// site-specific row is active (§4.7.1 config resolution, step 4).
func DefaultConfig() models.ScoringConfig {
	return models.ScoringConfig{
		ID: "compiled-default",
		Weights: models.Weights{
			Intent:      0.25,
			Friction:    0.25,
			Clarity:     0.15,
			Receptivity: 0.20,
			Value:       0.15,
		},
		Thresholds: models.TierThresholds{
			Monitor: 29,
			Passive: 49,
			Nudge:   64,
			Active:  79,
		},
		Gates: models.GateParams{
			MinSessionAgeSec:             30,
			ReceptivityFloor:             25,
			DismissalsToSuppress:         2,
			DuplicateFrictionRequiresAll: true,
			CooldownAfterActiveSec:       300,
			CooldownAfterNudgeSec:        120,
			CooldownAfterDismissSec:      180,
			MaxActivePerSession:          2,
			MaxNudgePerSession:           4,
			MaxNonPassivePerSession:      6,
		},
		EvalEngine: models.EngineAuto,
		IsActive:   true,
	}
}

// funnelBase is the per-page-type intent floor (§4.7.2 Intent), identical
// to the fast-path synthesis's own funnel table so both paths agree on
// funnel position.
var funnelBase = map[models.PageType]int{
	models.PageLanding:       10,
	models.PageCategory:      15,
	models.PageSearchResults: 18,
	models.PagePDP:           25,
	models.PageCart:          30,
	models.PageCheckout:      35,
	models.PageAccount:       12,
	models.PageOther:         10,
}
