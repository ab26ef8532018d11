package llmanalyst

import (
	"context"
	"fmt"
	"sort"

	"github.com/codeready-toolchain/mswim/pkg/models"
)

// Stub is a deterministic Analyst used by tests and local development
// (§6.2 "Must be replaceable by a stub (implemented by tests as a
// deterministic function of context)"). By default it returns fixed
// signal hints (intent 40, friction 10, clarity 50, receptivity 50,
// value 30), the sorted, deduplicated friction ids of the new events, and
// a narrative naming the session and its new-event count, so tests can
// assert on an engine="llm" Evaluation without a real provider.
type Stub struct {
	// Fn, when set, overrides the default deterministic derivation.
	Fn func(evalCtx EvaluationContext) Output
}

// Analyze implements Analyst.
func (s *Stub) Analyze(_ context.Context, evalCtx EvaluationContext) (Output, error) {
	if s.Fn != nil {
		return s.Fn(evalCtx), nil
	}
	return defaultStubOutput(evalCtx), nil
}

func defaultStubOutput(evalCtx EvaluationContext) Output {
	ids := dedupFrictionIDs(evalCtx.NewEvents)

	narrative := fmt.Sprintf("session %s observed %d new event(s)", evalCtx.Session.ID, len(evalCtx.NewEvents))

	return Output{
		Narrative:           narrative,
		DetectedFrictionIDs: ids,
		Signals: models.Signals{
			Intent:      40,
			Friction:    10,
			Clarity:     50,
			Receptivity: 50,
			Value:       30,
		},
		RecommendedAction: "monitor",
		Reasoning:         "stub: deterministic function of context",
	}
}

func dedupFrictionIDs(events []models.TrackEvent) []string {
	seen := map[string]bool{}
	var out []string
	for _, e := range events {
		if e.FrictionID == "" || seen[e.FrictionID] {
			continue
		}
		seen[e.FrictionID] = true
		out = append(out, e.FrictionID)
	}
	sort.Strings(out)
	return out
}
