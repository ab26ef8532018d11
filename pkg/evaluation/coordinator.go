// Package evaluation implements the Evaluation Coordinator (C6): the
// per-batch entry point that resolves experiment overrides, assembles
// context, dispatches to the llm/fast/auto engine, invokes MSWIM, persists
// the Evaluation, and hands off to the broadcast fabric and C8 (§4.6).
package evaluation

import (
	"context"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/codeready-toolchain/mswim/pkg/apperrors"
	"github.com/codeready-toolchain/mswim/pkg/clock"
	"github.com/codeready-toolchain/mswim/pkg/concurrency"
	"github.com/codeready-toolchain/mswim/pkg/config"
	"github.com/codeready-toolchain/mswim/pkg/frictioncatalog"
	"github.com/codeready-toolchain/mswim/pkg/llmanalyst"
	"github.com/codeready-toolchain/mswim/pkg/models"
	"github.com/codeready-toolchain/mswim/pkg/mswim"
)

// SessionGetter is the narrow slice of the Session Store (C3) the
// coordinator needs.
type SessionGetter interface {
	Get(ctx context.Context, id string) (models.Session, error)
}

// ExperimentResolver is the Experiment Resolver (C5) interface.
type ExperimentResolver interface {
	Resolve(ctx context.Context, siteURL, sessionID string) (models.ExperimentOverrides, error)
}

// EventReader is the narrow slice of pkg/store.EventStore the coordinator
// needs to assemble EvaluationContext (§4.6 step 2).
type EventReader interface {
	ByIDs(ctx context.Context, ids []string) ([]models.TrackEvent, error)
	History(ctx context.Context, sessionID string) ([]models.TrackEvent, error)
}

// EvaluationReader is the narrow slice of pkg/store.EvaluationStore the
// coordinator needs.
type EvaluationReader interface {
	RecentBySession(ctx context.Context, sessionID string, limit int) ([]models.Evaluation, error)
	Create(ctx context.Context, e models.Evaluation) error
}

// InterventionReader is the narrow slice of pkg/store.InterventionStore the
// coordinator needs.
type InterventionReader interface {
	RecentBySession(ctx context.Context, sessionID string, limit int) ([]models.Intervention, error)
}

// Broadcaster pushes a completed Evaluation to the dashboard channel (§4.6
// step 6). The Transport & Channel Registry (C1) implements it.
type Broadcaster interface {
	BroadcastEvaluation(eval models.Evaluation)
}

// InterventionWriter is the Decision & Intervention Writer (C8) hand-off
// point (§4.6 step 6 "Hand to C8").
type InterventionWriter interface {
	HandleEvaluation(ctx context.Context, eval models.Evaluation) error
}

// ShadowForker runs a non-blocking shadow comparison when the primary path
// is llm (§4.9). The Shadow Comparator (C9) implements it.
type ShadowForker interface {
	Compare(ctx context.Context, sess models.Session, sessCtx mswim.SessionContext, scoringConfig models.ScoringConfig, primary models.Evaluation) error
}

// Coordinator is the Evaluation Coordinator capability.
type Coordinator struct {
	sessions      SessionGetter
	events        EventReader
	evaluations   EvaluationReader
	interventions InterventionReader

	resolver ExperimentResolver
	configs  mswim.ConfigLookup
	engine   *mswim.Engine
	catalog  *frictioncatalog.Catalog
	analyst  llmanalyst.Analyst

	broadcaster Broadcaster
	writer      InterventionWriter
	shadow      ShadowForker
	shadowOn    bool

	clock   clock.Clock
	cfg     config.EvaluationConfig
	overlay *overrideOverlay
	lane    *concurrency.SessionLane
	log     *slog.Logger
}

// Deps bundles the Coordinator's collaborators, grouped for readability at
// construction sites.
type Deps struct {
	Sessions      SessionGetter
	Events        EventReader
	Evaluations   EvaluationReader
	Interventions InterventionReader
	Resolver      ExperimentResolver
	Configs       mswim.ConfigLookup
	Engine        *mswim.Engine
	Catalog       *frictioncatalog.Catalog
	Analyst       llmanalyst.Analyst
	Broadcaster   Broadcaster
	Writer        InterventionWriter
	Shadow        ShadowForker
	ShadowEnabled bool
	Clock         clock.Clock
	Config        config.EvaluationConfig
	// Lane serializes EvaluateEventBatch per sessionID (§5): a second batch
	// for a session arriving mid-evaluation queues behind the first rather
	// than running concurrently. nil builds a private lane. Do not pass the
	// same *concurrency.SessionLane instance a caller (e.g. the batcher) is
	// itself already running inside for this sessionID — Run is not
	// reentrant for a single key and would deadlock.
	Lane *concurrency.SessionLane
	Log  *slog.Logger
}

// New builds a Coordinator from its dependencies.
func New(d Deps) *Coordinator {
	clk := d.Clock
	if clk == nil {
		clk = clock.System{}
	}
	logger := d.Log
	if logger == nil {
		logger = slog.Default()
	}
	catalog := d.Catalog
	if catalog == nil {
		catalog = frictioncatalog.Default()
	}
	lane := d.Lane
	if lane == nil {
		lane = concurrency.New()
	}
	return &Coordinator{
		sessions:      d.Sessions,
		events:        d.Events,
		evaluations:   d.Evaluations,
		interventions: d.Interventions,
		resolver:      d.Resolver,
		configs:       d.Configs,
		engine:        d.Engine,
		catalog:       catalog,
		analyst:       d.Analyst,
		broadcaster:   d.Broadcaster,
		writer:        d.Writer,
		shadow:        d.Shadow,
		shadowOn:      d.ShadowEnabled,
		clock:         clk,
		cfg:           d.Config,
		overlay:       newOverrideOverlay(),
		lane:          lane,
		log:           logger,
	}
}

// EvaluateEventBatch implements §4.6's entry point:
// evaluateEventBatch(sessionId, eventIds) → Evaluation?. Runs inside the
// coordinator's SessionLane for sessionID, so a second batch for the same
// session arriving mid-evaluation (e.g. from a fast timer flush racing a
// slow LLM call) queues behind this one rather than running concurrently
// (§5 "Evaluations for a session are strictly serialized").
func (c *Coordinator) EvaluateEventBatch(ctx context.Context, sessionID string, eventIDs []string) (*models.Evaluation, error) {
	var eval *models.Evaluation
	var err error
	c.lane.Run(sessionID, func() {
		eval, err = c.evaluateEventBatch(ctx, sessionID, eventIDs)
	})
	return eval, err
}

func (c *Coordinator) evaluateEventBatch(ctx context.Context, sessionID string, eventIDs []string) (*models.Evaluation, error) {
	sess, err := c.sessions.Get(ctx, sessionID)
	if err != nil {
		c.log.Warn("evaluation: session lookup failed", "sessionId", sessionID, "err", err)
		return nil, err
	}

	overrides, err := c.resolver.Resolve(ctx, sess.SiteURL, sess.ID)
	if err != nil {
		c.log.Warn("evaluation: experiment resolution failed, proceeding without override", "sessionId", sessionID, "err", err)
		overrides = models.ExperimentOverrides{}
	}

	release := c.overlay.acquire(sess.ID, overrides.ScoringConfigID)
	defer release()

	engine := c.cfg.EvalEngine
	if overrides.EvalEngine != "" {
		engine = string(overrides.EvalEngine)
	}

	built, err := c.buildContext(ctx, sess, eventIDs)
	if err != nil {
		return nil, err
	}

	scoringConfig := mswim.ResolveConfig(c.configs, sess.SiteURL, c.overlay.get(sess.ID))

	result, usedEngine, narrative, frictionsFound, err := c.dispatch(ctx, models.Engine(engine), sess, built, scoringConfig)
	if err != nil {
		return nil, err
	}

	eval := models.Evaluation{
		ID:               uuid.New().String(),
		SessionID:        sess.ID,
		EventBatchIDs:    eventIDs,
		Narrative:        narrative,
		FrictionsFound:   frictionsFound,
		Signals:          result.Signals,
		Composite:        result.Composite,
		WeightsUsed:      result.WeightsUsed,
		Tier:             result.Tier,
		Decision:         result.Decision,
		GateOverride:     result.GateOverride,
		InterventionType: models.TierToInterventionType[result.Tier],
		Reasoning:        result.Reasoning,
		Engine:           usedEngine,
	}

	if err := c.evaluations.Create(ctx, eval); err != nil {
		return nil, err
	}

	if c.broadcaster != nil {
		c.broadcaster.BroadcastEvaluation(eval)
	}

	if usedEngine == models.EngineLLM && c.shadowOn && c.shadow != nil {
		shadowSessCtx := built.sessCtx
		shadowSessCtx.FrictionIDs = eval.FrictionsFound
		go func() {
			shadowCtx := context.Background()
			if err := c.shadow.Compare(shadowCtx, sess, shadowSessCtx, scoringConfig, eval); err != nil {
				c.log.Warn("shadow comparison failed", "sessionId", sess.ID, "evaluationId", eval.ID, "err", err)
			}
		}()
	}

	if c.writer != nil {
		if err := c.writer.HandleEvaluation(ctx, eval); err != nil {
			c.log.Warn("evaluation: intervention hand-off failed", "evaluationId", eval.ID, "err", err)
		}
	}

	return &eval, nil
}

// dispatch implements §4.6 step 4's llm/fast/auto branching, returning the
// MSWIM result, the engine actually used (may differ from requested on
// llm failure or auto-escalation), the narrative, and the friction ids
// that contributed.
func (c *Coordinator) dispatch(ctx context.Context, engine models.Engine, sess models.Session, built assembledContext, scoringConfig models.ScoringConfig) (mswim.Result, models.Engine, string, []string, error) {
	switch engine {
	case models.EngineLLM:
		return c.runLLM(ctx, built, scoringConfig)
	case models.EngineFast:
		return c.runFast(built, scoringConfig), models.EngineFast, "", built.sessCtx.FrictionIDs, nil
	default: // auto
		return c.runAuto(ctx, built, scoringConfig)
	}
}

func (c *Coordinator) runFast(built assembledContext, scoringConfig models.ScoringConfig) mswim.Result {
	return RunFast(built.sessCtx, c.catalog, c.engine, scoringConfig)
}

func (c *Coordinator) runLLM(ctx context.Context, built assembledContext, scoringConfig models.ScoringConfig) (mswim.Result, models.Engine, string, []string, error) {
	output, err := c.analyst.Analyze(ctx, built.evalCtx)
	if err != nil {
		if apperrors.IsLLMError(err) {
			c.log.Warn("llm analyst failed, falling back to fast path", "sessionId", built.evalCtx.Session.ID, "err", err)
			return c.runFast(built, scoringConfig), models.EngineFast, "", built.sessCtx.FrictionIDs, nil
		}
		return mswim.Result{}, "", "", nil, err
	}

	sessCtx := built.sessCtx
	sessCtx.FrictionIDs = mergeFrictionIDs(sessCtx.FrictionIDs, output.DetectedFrictionIDs)

	raw := mswim.RawHints{
		Intent:      output.Signals.Intent,
		Friction:    output.Signals.Friction,
		Clarity:     output.Signals.Clarity,
		Receptivity: output.Signals.Receptivity,
		Value:       output.Signals.Value,
	}
	result := c.engine.Evaluate(raw, sessCtx, scoringConfig)
	return result, models.EngineLLM, output.Narrative, sessCtx.FrictionIDs, nil
}

func (c *Coordinator) runAuto(ctx context.Context, built assembledContext, scoringConfig models.ScoringConfig) (mswim.Result, models.Engine, string, []string, error) {
	fastResult := c.runFast(built, scoringConfig)

	escalate := fastResult.Composite >= 65 ||
		c.catalog.MaxSeverity(built.sessCtx.FrictionIDs) >= 75 ||
		strings.HasPrefix(fastResult.GateOverride, "FORCE_ESCALATE")

	if !escalate {
		return fastResult, models.EngineFast, "", built.sessCtx.FrictionIDs, nil
	}
	return c.runLLM(ctx, built, scoringConfig)
}
