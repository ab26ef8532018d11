// Package scoringconfig implements the Scoring Config Store facade (C12):
// getActiveConfig/activate over the persistence layer's already-atomic
// SetActive, adding a scope-level in-process write lock so concurrent
// activations for the same scope serialize even before the DB transaction
// takes its own lock (§4.12, §5 "ScoringConfig ... activation takes a
// scope-level write lock").
package scoringconfig

import (
	"context"
	"sync"

	"github.com/codeready-toolchain/mswim/pkg/apperrors"
	"github.com/codeready-toolchain/mswim/pkg/models"
	"github.com/codeready-toolchain/mswim/pkg/store"
)

// Creator is the narrow slice of pkg/store.ScoringConfigStore the facade
// uses to persist new configs.
type Creator interface {
	Create(ctx context.Context, cfg models.ScoringConfig) error
}

// Activator is the narrow slice of pkg/store.ScoringConfigStore the
// facade uses to atomically flip the active row for a scope and to
// resolve the currently-active config per §4.12.
type Activator interface {
	SetActive(ctx context.Context, st *store.Store, cfgID, siteURL string) error
	ByID(id string) (models.ScoringConfig, bool)
	ActiveForSite(siteURL string) (models.ScoringConfig, bool)
	ActiveGlobal() (models.ScoringConfig, bool)
}

// Store is the Scoring Config Store capability: thin facade over
// pkg/store.ScoringConfigStore plus the scope write-lock.
type Store struct {
	configs Activator
	creator Creator
	db      *store.Store

	mu     sync.Mutex
	scopes map[string]*sync.Mutex
}

// New builds a Store. db is the raw *store.Store handle SetActive needs to
// open its own transaction.
func New(configs Activator, creator Creator, db *store.Store) *Store {
	return &Store{configs: configs, creator: creator, db: db, scopes: make(map[string]*sync.Mutex)}
}

// scopeLock returns the (lazily created) mutex guarding activations for
// siteURL ("" for the global scope).
func (s *Store) scopeLock(siteURL string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m, ok := s.scopes[siteURL]; ok {
		return m
	}
	m := &sync.Mutex{}
	s.scopes[siteURL] = m
	return m
}

// Create validates and persists a new (inactive) config (§4.12, §7
// ConfigConflict validation).
func (s *Store) Create(ctx context.Context, cfg models.ScoringConfig) error {
	if err := store.Validate(cfg); err != nil {
		return err
	}
	cfg.IsActive = false
	return s.creator.Create(ctx, cfg)
}

// GetActiveConfig implements §4.12's
// `getActiveConfig(siteUrl?) = site-active ?? global-active`.
func (s *Store) GetActiveConfig(siteURL string) (models.ScoringConfig, bool) {
	if siteURL != "" {
		if cfg, found := s.configs.ActiveForSite(siteURL); found {
			return cfg, true
		}
	}
	return s.configs.ActiveGlobal()
}

// Activate atomically deactivates any other active config in cfg's scope
// then activates it, serialized per-scope by an in-process lock layered
// in front of the store's own transactional guarantee.
func (s *Store) Activate(ctx context.Context, cfgID, siteURL string) error {
	if _, ok := s.configs.ByID(cfgID); !ok {
		return apperrors.ErrNotFound
	}
	lock := s.scopeLock(siteURL)
	lock.Lock()
	defer lock.Unlock()
	return s.configs.SetActive(ctx, s.db, cfgID, siteURL)
}
