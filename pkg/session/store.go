// Package session implements the Session Store capability (C3): the
// authoritative owner of Session state. It fronts pkg/store's SessionStore
// with a 30-minute visitorKey → sessionId cache so repeat events on an
// active session skip a lookup round-trip, and runs a background sweeper
// that ends sessions idle for more than 30 minutes (§4.3).
package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/codeready-toolchain/mswim/pkg/apperrors"
	"github.com/codeready-toolchain/mswim/pkg/clock"
	"github.com/codeready-toolchain/mswim/pkg/models"
	"github.com/codeready-toolchain/mswim/pkg/store"
)

// CacheTTL is how long a visitorKey → session mapping is trusted without
// re-touching persistence (§4.3).
const CacheTTL = 30 * time.Minute

// IdleTimeout is how long a session may go without activity before the
// sweeper ends it (§3, §4.3).
const IdleTimeout = 30 * time.Minute

// SweepInterval is how often the background sweeper runs (§4.3).
const SweepInterval = 5 * time.Minute

type cacheEntry struct {
	sessionID  string
	lastTouch  time.Time
}

// NewSessionInput carries the identity fields only C2 can supply on first
// contact with a visitor (§4.2 step 1).
type NewSessionInput struct {
	VisitorID       string
	SiteURL         string
	DeviceType      models.DeviceType
	ReferrerType    models.ReferrerType
	IsLoggedIn      bool
	IsRepeatVisitor bool
}

// Store is the Session Store capability.
type Store struct {
	sessions *store.SessionStore
	clock    clock.Clock

	mu    sync.Mutex
	cache map[string]*cacheEntry // visitorKey -> entry

	stopSweep chan struct{}
	sweepWG   sync.WaitGroup
}

// New builds a Store. Call StartSweeper to begin the idle sweep; callers
// that only need GetOrCreateSession/Touch (e.g. tests) may skip it.
func New(sessions *store.SessionStore, clk clock.Clock) *Store {
	if clk == nil {
		clk = clock.System{}
	}
	return &Store{
		sessions:  sessions,
		clock:     clk,
		cache:     make(map[string]*cacheEntry),
		stopSweep: make(chan struct{}),
	}
}

func visitorCacheKey(siteURL, visitorKey string) string {
	return siteURL + "\x00" + visitorKey
}

// GetOrCreateSession resolves a session by visitorKey, returning the
// cached session (touched) if fresh, else creating a new one (§4.2 step 1,
// §4.3).
func (s *Store) GetOrCreateSession(ctx context.Context, visitorKey string, in NewSessionInput) (models.Session, error) {
	key := visitorCacheKey(in.SiteURL, visitorKey)
	now := s.clock.Now()

	s.mu.Lock()
	entry, ok := s.cache[key]
	if ok && now.Sub(entry.lastTouch) <= CacheTTL {
		entry.lastTouch = now
		sessionID := entry.sessionID
		s.mu.Unlock()

		if err := s.sessions.Touch(ctx, sessionID, now); err != nil {
			return models.Session{}, err
		}
		return s.sessions.Get(ctx, sessionID)
	}
	s.mu.Unlock()

	sess := models.Session{
		ID:              uuid.New().String(),
		VisitorID:       in.VisitorID,
		SiteURL:         in.SiteURL,
		DeviceType:      in.DeviceType,
		ReferrerType:    in.ReferrerType,
		IsLoggedIn:      in.IsLoggedIn,
		IsRepeatVisitor: in.IsRepeatVisitor,
		Status:          models.SessionStatusActive,
		StartedAt:       now,
		LastActivityAt:  now,
	}
	if err := s.sessions.Create(ctx, sess); err != nil {
		return models.Session{}, err
	}

	s.mu.Lock()
	s.cache[key] = &cacheEntry{sessionID: sess.ID, lastTouch: now}
	s.mu.Unlock()

	return sess, nil
}

// Get loads a session by id.
func (s *Store) Get(ctx context.Context, id string) (models.Session, error) {
	return s.sessions.Get(ctx, id)
}

// Touch bumps a session's last-activity timestamp without going through
// the visitorKey cache (used when only the sessionId is known, e.g. an
// intervention_outcome frame).
func (s *Store) Touch(ctx context.Context, id string) error {
	return s.sessions.Touch(ctx, id, s.clock.Now())
}

// IncrementCounter atomically bumps one of a session's monotonic counters
// (§3, §4.3, §4.8 steps 3/"recordInterventionOutcome").
func (s *Store) IncrementCounter(ctx context.Context, id string, field store.SessionCounterField) error {
	_, err := s.sessions.IncrementCounter(ctx, id, field, 1)
	return err
}

// UpdateCart overwrites the cart snapshot (§4.2 step 5).
func (s *Store) UpdateCart(ctx context.Context, id string, value float64, itemCount int) error {
	if itemCount < 0 {
		return apperrors.NewValidation("cart.itemCount", "must be >= 0")
	}
	return s.sessions.UpdateCart(ctx, id, value, itemCount)
}

// RecordAnalytics loads, mutates, and writes back the best-effort analytics
// accumulators (§4.2 step 4). Analytics mutation is not a monotonic
// counter, so the ordinary load/Update path is acceptable here, unlike the
// counter fields.
func (s *Store) RecordAnalytics(ctx context.Context, id string, mutate func(*models.SessionAnalytics)) error {
	sess, err := s.sessions.Get(ctx, id)
	if err != nil {
		return err
	}
	mutate(&sess.Analytics)
	return s.sessions.Update(ctx, sess)
}

// End explicitly ends a session (§3 "ended... by explicit request").
func (s *Store) End(ctx context.Context, id string) error {
	sess, err := s.sessions.Get(ctx, id)
	if err != nil {
		return err
	}
	now := s.clock.Now()
	sess.Status = models.SessionStatusEnded
	sess.EndedAt = &now
	return s.sessions.Update(ctx, sess)
}

// StartSweeper launches the background idle sweeper (§4.3: every 5 minutes,
// end sessions idle for >30 minutes). Call Stop to terminate it.
func (s *Store) StartSweeper(ctx context.Context) {
	s.sweepWG.Add(1)
	go func() {
		defer s.sweepWG.Done()
		ticker := time.NewTicker(SweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stopSweep:
				return
			case <-ticker.C:
				s.sweepOnce(ctx)
			}
		}
	}()
}

func (s *Store) sweepOnce(ctx context.Context) {
	now := s.clock.Now()
	cutoff := now.Add(-IdleTimeout)
	_, _ = s.sessions.EndIdleSince(ctx, cutoff, now)
}

// Stop halts the sweeper goroutine and waits for it to exit.
func (s *Store) Stop() {
	close(s.stopSweep)
	s.sweepWG.Wait()
}
