package evaluation

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/codeready-toolchain/mswim/pkg/frictioncatalog"
	"github.com/codeready-toolchain/mswim/pkg/models"
	"github.com/codeready-toolchain/mswim/pkg/mswim"
)

func TestFastSynthesize_IntentUsesPageFunnelAndBonuses(t *testing.T) {
	ctx := mswim.SessionContext{
		PageType:        models.PageCheckout,
		IsLoggedIn:      true,
		IsRepeatVisitor: true,
		CartItemCount:   1,
	}
	raw := fastSynthesize(ctx, frictioncatalog.Default())
	assert.Equal(t, 35+5+5+8, raw.Intent)
}

func TestFastSynthesize_FrictionFallsBackToBaseTen(t *testing.T) {
	ctx := mswim.SessionContext{PageType: models.PageOther}
	raw := fastSynthesize(ctx, frictioncatalog.Default())
	assert.Equal(t, 10, raw.Friction)
}

func TestFastSynthesize_FrictionUsesMaxSeverity(t *testing.T) {
	ctx := mswim.SessionContext{PageType: models.PageOther, FrictionIDs: []string{"F096"}}
	raw := fastSynthesize(ctx, frictioncatalog.Default())
	assert.Equal(t, 95, raw.Friction)
}

func TestFastSynthesize_ClarityAccumulatesBonuses(t *testing.T) {
	ctx := mswim.SessionContext{
		PageType:      models.PageOther,
		FrictionIDs:   []string{"F053"},
		EventCount:    6,
		SessionAgeSec: 200,
	}
	raw := fastSynthesize(ctx, frictioncatalog.Default())
	assert.Equal(t, 40+15+10+10, raw.Clarity)
}

func TestFastSynthesize_ReceptivityIsFlatFifty(t *testing.T) {
	ctx := mswim.SessionContext{PageType: models.PageOther}
	raw := fastSynthesize(ctx, frictioncatalog.Default())
	assert.Equal(t, 50, raw.Receptivity)
}

func TestFastSynthesize_ValueBracketsByCart(t *testing.T) {
	cases := []struct {
		cartValue float64
		want      int
	}{
		{0, 25},
		{49, 25},
		{50, 35},
		{99, 35},
		{100, 50},
		{199, 50},
		{201, 65},
	}
	for _, tc := range cases {
		ctx := mswim.SessionContext{PageType: models.PageOther, CartValue: tc.cartValue}
		raw := fastSynthesize(ctx, frictioncatalog.Default())
		assert.Equal(t, tc.want, raw.Value, "cartValue=%v", tc.cartValue)
	}
}

func TestFastSynthesize_ValueDemographicBonuses(t *testing.T) {
	ctx := mswim.SessionContext{
		PageType:        models.PageOther,
		CartValue:       0,
		IsLoggedIn:      true,
		IsRepeatVisitor: true,
	}
	raw := fastSynthesize(ctx, frictioncatalog.Default())
	assert.Equal(t, 25+8+8, raw.Value)
}

func TestFastSynthesize_ClampsToHundred(t *testing.T) {
	ctx := mswim.SessionContext{
		PageType:        models.PageCheckout,
		IsLoggedIn:      true,
		IsRepeatVisitor: true,
		CartItemCount:   5,
		CartValue:       1000,
	}
	raw := fastSynthesize(ctx, frictioncatalog.Default())
	assert.LessOrEqual(t, raw.Intent, 100)
	assert.LessOrEqual(t, raw.Value, 100)
}
