package scoringconfig

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/mswim/pkg/apperrors"
	"github.com/codeready-toolchain/mswim/pkg/models"
	"github.com/codeready-toolchain/mswim/pkg/store"
)

type fakeActivator struct {
	mu           sync.Mutex
	byID         map[string]models.ScoringConfig
	activeSite   map[string]models.ScoringConfig
	activeGlobal *models.ScoringConfig
	setActiveLog []string
}

func (f *fakeActivator) SetActive(_ context.Context, _ *store.Store, cfgID, siteURL string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.setActiveLog = append(f.setActiveLog, cfgID+"|"+siteURL)
	cfg := f.byID[cfgID]
	cfg.IsActive = true
	if siteURL == "" {
		f.activeGlobal = &cfg
	} else {
		if f.activeSite == nil {
			f.activeSite = map[string]models.ScoringConfig{}
		}
		f.activeSite[siteURL] = cfg
	}
	return nil
}

func (f *fakeActivator) ByID(id string) (models.ScoringConfig, bool) {
	cfg, ok := f.byID[id]
	return cfg, ok
}

func (f *fakeActivator) ActiveForSite(siteURL string) (models.ScoringConfig, bool) {
	cfg, ok := f.activeSite[siteURL]
	return cfg, ok
}

func (f *fakeActivator) ActiveGlobal() (models.ScoringConfig, bool) {
	if f.activeGlobal == nil {
		return models.ScoringConfig{}, false
	}
	return *f.activeGlobal, true
}

type fakeCreator struct{ created []models.ScoringConfig }

func (f *fakeCreator) Create(_ context.Context, cfg models.ScoringConfig) error {
	f.created = append(f.created, cfg)
	return nil
}

func validConfig(id string) models.ScoringConfig {
	return models.ScoringConfig{
		ID: id,
		Weights: models.Weights{
			Intent: 0.3, Friction: 0.2, Clarity: 0.2, Receptivity: 0.15, Value: 0.15,
		},
		Thresholds: models.TierThresholds{Monitor: 10, Passive: 30, Nudge: 50, Active: 70},
	}
}

func TestActivate_RejectsUnknownConfigID(t *testing.T) {
	fa := &fakeActivator{byID: map[string]models.ScoringConfig{}}
	s := New(fa, &fakeCreator{}, nil)

	err := s.Activate(context.Background(), "missing", "")
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestActivate_DelegatesToSetActiveForKnownConfig(t *testing.T) {
	fa := &fakeActivator{byID: map[string]models.ScoringConfig{"cfg-1": validConfig("cfg-1")}}
	s := New(fa, &fakeCreator{}, nil)

	err := s.Activate(context.Background(), "cfg-1", "example.com")
	require.NoError(t, err)
	assert.Contains(t, fa.setActiveLog, "cfg-1|example.com")
}

func TestGetActiveConfig_SiteOverridesGlobal(t *testing.T) {
	global := validConfig("global-1")
	site := validConfig("site-1")
	fa := &fakeActivator{activeGlobal: &global, activeSite: map[string]models.ScoringConfig{"example.com": site}}
	s := New(fa, &fakeCreator{}, nil)

	got, ok := s.GetActiveConfig("example.com")
	require.True(t, ok)
	assert.Equal(t, "site-1", got.ID)

	got, ok = s.GetActiveConfig("other.com")
	require.True(t, ok)
	assert.Equal(t, "global-1", got.ID)
}

func TestCreate_RejectsWeightsNotSummingToOne(t *testing.T) {
	fc := &fakeCreator{}
	s := New(&fakeActivator{}, fc, nil)

	bad := validConfig("bad-1")
	bad.Weights.Intent = 0.9
	err := s.Create(context.Background(), bad)
	require.Error(t, err)
	assert.Empty(t, fc.created)
}
