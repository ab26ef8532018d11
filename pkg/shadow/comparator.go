// Package shadow implements the Shadow Comparator (C9): when the primary
// engine is llm, run a parallel fast-path scoring over the union of
// client-reported and LLM-detected frictions and persist the divergence
// (§4.9).
package shadow

import (
	"context"
	"log/slog"
	"math"

	"github.com/google/uuid"

	"github.com/codeready-toolchain/mswim/pkg/clock"
	"github.com/codeready-toolchain/mswim/pkg/frictioncatalog"
	"github.com/codeready-toolchain/mswim/pkg/models"
	"github.com/codeready-toolchain/mswim/pkg/mswim"
)

// Store is the narrow slice of pkg/store.ShadowStore the comparator needs.
type Store interface {
	Create(ctx context.Context, c models.ShadowComparison) error
}

// FastEvaluator runs the fast-path scoring. Implemented by *mswim.Engine
// plus the coordinator's own fast-synthesis helper, so the comparator
// doesn't need a direct dependency on pkg/evaluation (which already
// depends on this package via ShadowForker — a direct import back would
// cycle).
type FastEvaluator func(sessCtx mswim.SessionContext, catalog *frictioncatalog.Catalog, scoringConfig models.ScoringConfig) mswim.Result

// Comparator is the Shadow Comparator capability.
type Comparator struct {
	store    Store
	catalog  *frictioncatalog.Catalog
	fastEval FastEvaluator
	clock    clock.Clock
	log      *slog.Logger
}

// New builds a Comparator.
func New(store Store, catalog *frictioncatalog.Catalog, fastEval FastEvaluator, clk clock.Clock, log *slog.Logger) *Comparator {
	if clk == nil {
		clk = clock.System{}
	}
	if log == nil {
		log = slog.Default()
	}
	return &Comparator{store: store, catalog: catalog, fastEval: fastEval, clock: clk, log: log}
}

// Compare implements evaluation.ShadowForker: rescore sessCtx (union of
// client + LLM-detected frictions, already merged by the coordinator) with
// the fast path and persist the divergence against primary (§4.9).
// Failures are logged and never surfaced.
func (c *Comparator) Compare(ctx context.Context, sess models.Session, sessCtx mswim.SessionContext, scoringConfig models.ScoringConfig, primary models.Evaluation) error {
	shadowResult := c.fastEval(sessCtx, c.catalog, scoringConfig)

	comparison := models.ShadowComparison{
		ID:                  uuid.New().String(),
		SessionID:           sess.ID,
		EvaluationID:        primary.ID,
		ProdSignals:         primary.Signals,
		ShadowSignals:       shadowResult.Signals,
		ProdComposite:       primary.Composite,
		ShadowComposite:     shadowResult.Composite,
		CompositeDivergence: math.Abs(primary.Composite - shadowResult.Composite),
		TierMatch:           primary.Tier == shadowResult.Tier,
		DecisionMatch:       primary.Decision == shadowResult.Decision,
		GateOverrideMatch:   primary.GateOverride == shadowResult.GateOverride,
		CreatedAt:           c.clock.Now(),
	}

	if err := c.store.Create(ctx, comparison); err != nil {
		c.log.Warn("shadow: persisting comparison failed", "evaluationId", primary.ID, "err", err)
		return err
	}
	return nil
}
