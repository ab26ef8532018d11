// Package llmanalyst implements the LLMAnalyst capability (§6.2): an
// opaque collaborator that turns an EvaluationContext into raw signal
// hints, detected frictions, and a narrative. The production LLM
// provider itself is out of scope (§1) — this package defines the
// interface, a deterministic test stub, and a backoff-wrapped client
// shape that any real provider can be plugged into.
package llmanalyst

import (
	"context"
	"time"

	"github.com/codeready-toolchain/mswim/pkg/models"
)

// EvaluationContext is the input MSWIM's coordinator assembles for a
// single LLMAnalyst.Analyze call (§4.6 step 2).
type EvaluationContext struct {
	Session             models.Session
	EventHistory        []models.TrackEvent
	NewEvents           []models.TrackEvent
	PreviousEvaluations []models.Evaluation
	PreviousInterventions []models.Intervention
}

// Output is what an LLMAnalyst returns for one EvaluationContext (§6.2).
type Output struct {
	Narrative          string
	DetectedFrictionIDs []string
	Signals            models.Signals
	RecommendedAction  string
	Reasoning          string
}

// Analyst is the LLMAnalyst capability.
type Analyst interface {
	Analyze(ctx context.Context, evalCtx EvaluationContext) (Output, error)
}

// DefaultTimeout is llm.timeoutMs's default (§6.4, §5 "Cancellation & timeouts").
const DefaultTimeout = 15 * time.Second
