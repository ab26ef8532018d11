package evaluation

import (
	"github.com/codeready-toolchain/mswim/pkg/frictioncatalog"
	"github.com/codeready-toolchain/mswim/pkg/models"
	"github.com/codeready-toolchain/mswim/pkg/mswim"
)

// funnelBase mirrors mswim's own funnel table (§4.6 step 4 "Funnel base
// table exactly matches the fast synth above" — the two tables are defined
// once each and kept numerically identical by construction).
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

// RunFast derives RawHints from rules alone and scores them, with no LLM
// call — the same path the coordinator's fast/auto dispatch takes. Exported
// so the Shadow Comparator (C9) can rescore with the identical fast path
// without importing the coordinator (§4.9).
func RunFast(sessCtx mswim.SessionContext, catalog *frictioncatalog.Catalog, engine *mswim.Engine, scoringConfig models.ScoringConfig) mswim.Result {
	return engine.Evaluate(fastSynthesize(sessCtx, catalog), sessCtx, scoringConfig)
}

// fastSynthesize derives RawHints from rules alone, with no LLM call
// (§4.6 step 4 "fast").
func fastSynthesize(sessCtx mswim.SessionContext, catalog *frictioncatalog.Catalog) mswim.RawHints {
	return mswim.RawHints{
		Intent:      intentHint(sessCtx),
		Friction:    frictionHint(sessCtx, catalog),
		Clarity:     clarityHint(sessCtx),
		Receptivity: 50,
		Value:       valueHint(sessCtx),
	}
}

func intentHint(sessCtx mswim.SessionContext) int {
	score := funnelBase[sessCtx.PageType]
	if sessCtx.IsLoggedIn {
		score += 5
	}
	if sessCtx.IsRepeatVisitor {
		score += 5
	}
	if sessCtx.CartItemCount > 0 {
		score += 8
	}
	return clamp(score)
}

func frictionHint(sessCtx mswim.SessionContext, catalog *frictioncatalog.Catalog) int {
	if len(sessCtx.FrictionIDs) == 0 {
		return 10
	}
	return clamp(catalog.MaxSeverity(sessCtx.FrictionIDs))
}

func clarityHint(sessCtx mswim.SessionContext) int {
	score := 40
	if len(sessCtx.FrictionIDs) > 0 {
		score += 15
	}
	if sessCtx.EventCount >= 5 {
		score += 10
	}
	if sessCtx.SessionAgeSec > 120 {
		score += 10
	}
	return clamp(score)
}

func valueHint(sessCtx mswim.SessionContext) int {
	var score int
	switch {
	case sessCtx.CartValue > 200:
		score = 65
	case sessCtx.CartValue >= 100:
		score = 50
	case sessCtx.CartValue >= 50:
		score = 35
	default:
		score = 25
	}
	if sessCtx.IsLoggedIn {
		score += 8
	}
	if sessCtx.IsRepeatVisitor {
		score += 8
	}
	return clamp(score)
}

func clamp(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
