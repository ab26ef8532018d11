package mswim

import (
	"github.com/codeready-toolchain/mswim/pkg/frictioncatalog"
	"github.com/codeready-toolchain/mswim/pkg/models"
)

// valueBrackets are the cart-value floors for the Value signal's base
// score, evaluated from the top down (§4.7.2 Value).
var valueBrackets = []struct {
	floor float64
	base  int
}{
	{500, 90},
	{200, 75},
	{100, 60},
	{50, 45},
	{20, 30},
	{0, 20},
}

func clamp100(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// adjustIntent applies the funnel-position and purchase-signal bonuses to
// the raw Intent hint (§4.7.2 Intent).
func adjustIntent(raw int, ctx SessionContext) int {
	score := raw + funnelBase[ctx.PageType]
	if ctx.IsLoggedIn {
		score += 5
	}
	if ctx.IsRepeatVisitor {
		score += 8
	}
	if ctx.CartItemCount > 0 {
		score += 10
	}
	if ctx.CartValue > 100 {
		score += 5
	}
	if ctx.CartValue > 250 {
		score += 5
	}
	return clamp100(score)
}

// adjustFriction folds the catalog severity of reported frictions into the
// raw Friction hint and adds a per-extra-friction escalation (§4.7.2 Friction).
func adjustFriction(raw int, ctx SessionContext, catalog *frictioncatalog.Catalog) int {
	if len(ctx.FrictionIDs) == 0 {
		return clamp100(raw)
	}
	maxSeverity := catalog.MaxSeverity(ctx.FrictionIDs)
	score := raw
	if maxSeverity > score {
		score = maxSeverity
	}
	extra := len(ctx.FrictionIDs) - 1
	if extra > 3 {
		extra = 3
	}
	score += 5 * extra
	return clamp100(score)
}

// adjustClarity applies corroboration and thin-session penalties to the raw
// Clarity hint (§4.7.2 Clarity).
func adjustClarity(raw int, ctx SessionContext) int {
	score := raw
	if ctx.RuleCorroboration {
		score += 10
	}
	if ctx.SessionAgeSec < 60 {
		score -= 15
	}
	if ctx.EventCount <= 2 {
		score -= 10
	}
	return clamp100(score)
}

// adjustReceptivity computes the server-derived receptivity score and blends
// it 0.9/0.1 with the raw hint (§4.7.2 Receptivity).
func adjustReceptivity(raw int, ctx SessionContext) int {
	score := 80
	score -= 15 * ctx.TotalInterventionsFired
	score -= 25 * ctx.TotalDismissals
	if ctx.SecondsSinceLastIntervention >= 0 && ctx.SecondsSinceLastIntervention < 120 {
		score -= 10
	}
	if ctx.IsMobile {
		score -= 5
	}
	if ctx.WidgetOpenedVoluntarily {
		score += 10
	}
	if ctx.IdleSeconds > 60 {
		score += 10
	}
	blended := 0.9*float64(clamp100(score)) + 0.1*float64(clamp100(raw))
	return clamp100(int(blended + 0.5))
}

// adjustValue computes the cart-bracket base, adds demographic bonuses, and
// blends 0.8/0.2 with the raw hint (§4.7.2 Value).
func adjustValue(raw int, ctx SessionContext) int {
	base := 20
	for _, b := range valueBrackets {
		if ctx.CartValue >= b.floor {
			base = b.base
			break
		}
	}
	if ctx.IsLoggedIn {
		base += 10
	}
	if ctx.IsRepeatVisitor {
		base += 8
	}
	if ctx.ReferrerType == models.ReferrerPaid {
		base += 5
	}
	blended := 0.8*float64(clamp100(base)) + 0.2*float64(clamp100(raw))
	return clamp100(int(blended + 0.5))
}

// AdjustSignals runs all five adjusters over a RawHints/SessionContext pair
// (§4.7.2).
func AdjustSignals(raw RawHints, ctx SessionContext, catalog *frictioncatalog.Catalog) models.Signals {
	return models.Signals{
		Intent:      adjustIntent(raw.Intent, ctx),
		Friction:    adjustFriction(raw.Friction, ctx, catalog),
		Clarity:     adjustClarity(raw.Clarity, ctx),
		Receptivity: adjustReceptivity(raw.Receptivity, ctx),
		Value:       adjustValue(raw.Value, ctx),
	}
}
