package mswim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/mswim/pkg/frictioncatalog"
	"github.com/codeready-toolchain/mswim/pkg/models"
)

func baseCtx() SessionContext {
	return SessionContext{
		PageType:                     models.PageCheckout,
		IsLoggedIn:                   true,
		CartValue:                    150,
		CartItemCount:                2,
		SessionAgeSec:                180,
		EventCount:                   6,
		FrictionIDsAlreadyIntervened: map[string]bool{},
		SecondsSinceLastIntervention: -1,
		SecondsSinceLastActive:       -1,
		SecondsSinceLastNudge:        -1,
		SecondsSinceLastDismissal:    -1,
	}
}

func TestEvaluate_ColdCheckoutFiresNudge(t *testing.T) {
	e := New(nil)
	raw := RawHints{Intent: 48, Friction: 10, Clarity: 60, Receptivity: 50, Value: 70}
	res := e.Evaluate(raw, baseCtx(), DefaultConfig())

	assert.Equal(t, models.DecisionFire, res.Decision)
	assert.Equal(t, models.TierNudge, res.Tier)
	assert.Empty(t, res.GateOverride)
	assert.InDelta(t, 62.4, res.Composite, 0.01)
}

func TestEvaluate_PaymentFrictionForcesEscalate(t *testing.T) {
	e := New(nil)
	ctx := baseCtx()
	ctx.FrictionIDs = []string{"F096"}

	res := e.Evaluate(RawHints{Intent: 30, Friction: 20, Clarity: 40, Receptivity: 50, Value: 30}, ctx, DefaultConfig())

	assert.Equal(t, models.TierEscalate, res.Tier)
	assert.Equal(t, models.DecisionFire, res.Decision)
	assert.Equal(t, "FORCE_ESCALATE_PAYMENT", res.GateOverride)
}

func TestEvaluate_TechnicalFrictionForcesPassiveCap(t *testing.T) {
	e := New(nil)
	ctx := baseCtx()
	ctx.FrictionIDs = []string{"F161"}

	res := e.Evaluate(RawHints{Intent: 90, Friction: 90, Clarity: 90, Receptivity: 90, Value: 90}, ctx, DefaultConfig())

	assert.Equal(t, models.TierPassive, res.Tier)
	assert.Equal(t, models.DecisionFire, res.Decision)
	assert.Equal(t, "FORCE_PASSIVE_TECHNICAL", res.GateOverride)
}

func TestEvaluate_YoungSessionSuppressesNonMonitorTier(t *testing.T) {
	e := New(nil)
	ctx := baseCtx()
	ctx.SessionAgeSec = 10 // below default 30s floor

	res := e.Evaluate(RawHints{Intent: 60, Friction: 40, Clarity: 60, Receptivity: 60, Value: 60}, ctx, DefaultConfig())

	require.NotEqual(t, models.TierMonitor, res.Tier)
	assert.Equal(t, models.DecisionSuppress, res.Decision)
	assert.Equal(t, "SESSION_TOO_YOUNG", res.GateOverride)
}

func TestEvaluate_ReceptivityFloorNotAppliedToEscalate(t *testing.T) {
	e := New(nil)
	ctx := baseCtx()
	ctx.CartValue = 600
	ctx.TotalInterventionsFired = 5 // drives the receptivity signal well below the floor

	res := e.Evaluate(RawHints{Intent: 100, Friction: 100, Clarity: 100, Receptivity: 0, Value: 90}, ctx, DefaultConfig())

	require.Equal(t, models.TierEscalate, res.Tier)
	assert.Less(t, res.Signals.Receptivity, DefaultConfig().Gates.ReceptivityFloor)
	assert.Equal(t, models.DecisionFire, res.Decision)
	assert.Empty(t, res.GateOverride)
}

func TestEvaluate_DismissCapSuppressesRegardlessOfTier(t *testing.T) {
	e := New(nil)
	ctx := baseCtx()
	ctx.TotalDismissals = 2 // == default DismissalsToSuppress

	res := e.Evaluate(RawHints{Intent: 95, Friction: 95, Clarity: 95, Receptivity: 95, Value: 95}, ctx, DefaultConfig())

	assert.Equal(t, models.DecisionSuppress, res.Decision)
	assert.Equal(t, "DISMISS_CAP", res.GateOverride)
}

func TestEvaluate_DuplicateFrictionRequiresAllByDefault(t *testing.T) {
	e := New(nil)
	ctx := baseCtx()
	ctx.FrictionIDs = []string{"F053x1", "F053x2"}
	ctx.FrictionIDsAlreadyIntervened = map[string]bool{"F053x1": true} // only one of two

	cfg := DefaultConfig()
	res := e.Evaluate(RawHints{Intent: 60, Friction: 30, Clarity: 60, Receptivity: 60, Value: 60}, ctx, cfg)
	assert.NotEqual(t, "DUPLICATE_FRICTION", res.GateOverride)

	ctx.FrictionIDsAlreadyIntervened["F053x2"] = true
	res = e.Evaluate(RawHints{Intent: 60, Friction: 30, Clarity: 60, Receptivity: 60, Value: 60}, ctx, cfg)
	assert.Equal(t, "DUPLICATE_FRICTION", res.GateOverride)
}

func TestEvaluate_MonitorTierAlwaysSuppresses(t *testing.T) {
	e := New(nil)
	ctx := baseCtx()
	ctx.PageType = models.PageOther
	ctx.CartValue = 0
	ctx.CartItemCount = 0
	ctx.IsLoggedIn = false

	res := e.Evaluate(RawHints{Intent: 0, Friction: 0, Clarity: 0, Receptivity: 0, Value: 0}, ctx, DefaultConfig())

	assert.Equal(t, models.TierMonitor, res.Tier)
	assert.Equal(t, models.DecisionSuppress, res.Decision)
}

func TestEvaluate_EmptyFrictionEscalateFiresWithoutGate(t *testing.T) {
	e := New(nil)
	ctx := baseCtx()
	// No frictions at all; composite must clear the ESCALATE threshold on its own.
	res := e.Evaluate(RawHints{Intent: 100, Friction: 90, Clarity: 90, Receptivity: 90, Value: 90}, ctx, DefaultConfig())

	require.Equal(t, models.TierEscalate, res.Tier)
	assert.Equal(t, models.DecisionFire, res.Decision)
	assert.Empty(t, res.GateOverride)
}

func TestAdjustFriction_SeverityAndMultiFrictionEscalation(t *testing.T) {
	catalog := frictioncatalog.Default()
	ctx := baseCtx()
	ctx.FrictionIDs = []string{"F096", "F053", "F161"} // severities 95, 60, 35 + 2 extra ids

	score := adjustFriction(10, ctx, catalog)
	assert.Equal(t, 100, score) // max(10,95)=95, +5*min(2,3)=10 -> clamp 100
}

func TestResolveTier_BoundariesAreInclusiveOnLowerTier(t *testing.T) {
	th := DefaultConfig().Thresholds
	assert.Equal(t, models.TierMonitor, resolveTier(29, th))
	assert.Equal(t, models.TierPassive, resolveTier(29.01, th))
	assert.Equal(t, models.TierPassive, resolveTier(49, th))
	assert.Equal(t, models.TierNudge, resolveTier(49.01, th))
	assert.Equal(t, models.TierEscalate, resolveTier(79.01, th))
}

func TestResolveConfig_PriorityOrder(t *testing.T) {
	site := models.ScoringConfig{ID: "site-cfg"}
	global := models.ScoringConfig{ID: "global-cfg"}
	experiment := models.ScoringConfig{ID: "exp-cfg"}

	lookup := stubLookup{
		byID:      map[string]models.ScoringConfig{"exp-cfg": experiment},
		site:      site,
		hasSite:   true,
		global:    global,
		hasGlobal: true,
	}

	assert.Equal(t, "exp-cfg", ResolveConfig(lookup, "https://shop.example", "exp-cfg").ID)
	assert.Equal(t, "site-cfg", ResolveConfig(lookup, "https://shop.example", "").ID)

	lookup.site = models.ScoringConfig{}
	lookup.hasSite = false
	assert.Equal(t, "global-cfg", ResolveConfig(lookup, "https://shop.example", "").ID)

	lookup.hasGlobal = false
	assert.Equal(t, "compiled-default", ResolveConfig(lookup, "https://shop.example", "").ID)
}

type stubLookup struct {
	byID      map[string]models.ScoringConfig
	site      models.ScoringConfig
	hasSite   bool
	global    models.ScoringConfig
	hasGlobal bool
}

func (s stubLookup) ByID(id string) (models.ScoringConfig, bool) {
	cfg, ok := s.byID[id]
	return cfg, ok
}

func (s stubLookup) ActiveForSite(string) (models.ScoringConfig, bool) {
	return s.site, s.hasSite
}

func (s stubLookup) ActiveGlobal() (models.ScoringConfig, bool) {
	return s.global, s.hasGlobal
}
