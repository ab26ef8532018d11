// Package store implements the Persist capability (§6.3): hand-written
// repositories over the pooled *sql.DB from pkg/database, one file per
// entity family. Every row maps to and from a pkg/models type; callers
// never see raw SQL.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/codeready-toolchain/mswim/pkg/apperrors"
)

// Store groups every repository behind the single *sql.DB the teacher's
// database.Client exposes.
type Store struct {
	db *sql.DB

	Sessions       *SessionStore
	Events         *EventStore
	Evaluations    *EvaluationStore
	Interventions  *InterventionStore
	ScoringConfigs *ScoringConfigStore
	Experiments    *ExperimentStore
	Shadow         *ShadowStore
	Drift          *DriftStore
	Training       *TrainingStore
	Jobs           *JobStore
}

// New builds a Store with every repository wired to the same pool.
func New(db *sql.DB) *Store {
	s := &Store{db: db}
	s.Sessions = &SessionStore{db: db}
	s.Events = &EventStore{db: db}
	s.Evaluations = &EvaluationStore{db: db}
	s.Interventions = &InterventionStore{db: db}
	s.ScoringConfigs = &ScoringConfigStore{db: db}
	s.Experiments = &ExperimentStore{db: db}
	s.Shadow = &ShadowStore{db: db}
	s.Drift = &DriftStore{db: db}
	s.Training = &TrainingStore{db: db}
	s.Jobs = &JobStore{db: db}
	return s
}

// WithTx runs fn inside a transaction, committing on success and always
// rolling back on error or panic.
func (s *Store) WithTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return apperrors.NewPersistenceError("begin_tx", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return apperrors.NewPersistenceError("commit_tx", err)
	}
	return nil
}

// isUniqueViolation reports whether err is a Postgres unique-constraint
// violation (SQLSTATE 23505), which wrapErr maps to
// apperrors.ErrAlreadyExists for plain duplicate-key inserts.
// TrainingStore.Create's ON CONFLICT DO NOTHING insert never raises one.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

func notFound(op, id string) error {
	return fmt.Errorf("%s %q: %w", op, id, apperrors.ErrNotFound)
}

func wrapErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return apperrors.ErrNotFound
	}
	if isUniqueViolation(err) {
		return apperrors.ErrAlreadyExists
	}
	return apperrors.NewPersistenceError(op, err)
}
