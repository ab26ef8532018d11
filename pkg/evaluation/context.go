package evaluation

import (
	"context"
	"sort"
	"time"

	"github.com/codeready-toolchain/mswim/pkg/llmanalyst"
	"github.com/codeready-toolchain/mswim/pkg/models"
	"github.com/codeready-toolchain/mswim/pkg/mswim"
)

// maxInterventionsForGates bounds how many historical interventions the
// coordinator pulls to derive session-wide gate totals (TotalActiveFired
// etc.); large enough that no real session session is truncated in
// practice, small enough to bound one query.
const maxInterventionsForGates = 10000

// previousEvaluationsCap and previousInterventionsCap are §4.6 step 2's caps.
const (
	previousEvaluationsCap   = 5
	previousInterventionsCap = 10
)

// assembledContext bundles everything the coordinator derives once per
// evaluateEventBatch call (§4.6 steps 2-3).
type assembledContext struct {
	evalCtx  llmanalyst.EvaluationContext
	sessCtx  mswim.SessionContext
	newEvents []models.TrackEvent
}

// buildContext implements §4.6 steps 2-3.
func (c *Coordinator) buildContext(ctx context.Context, sess models.Session, eventIDs []string) (assembledContext, error) {
	newEvents, err := c.events.ByIDs(ctx, eventIDs)
	if err != nil {
		return assembledContext{}, err
	}

	history, err := c.events.History(ctx, sess.ID)
	if err != nil {
		return assembledContext{}, err
	}
	history = excludeIDs(history, eventIDs)

	allEvents := append(append([]models.TrackEvent{}, history...), newEvents...)
	if max := c.cfg.MaxContextEvents; max > 0 && len(allEvents) > max {
		allEvents = allEvents[len(allEvents)-max:]
		history = trimHistoryTo(allEvents, newEvents)
	}

	prevEvals, err := c.evaluations.RecentBySession(ctx, sess.ID, previousEvaluationsCap)
	if err != nil {
		return assembledContext{}, err
	}
	prevInterventionsForContext, err := c.interventions.RecentBySession(ctx, sess.ID, previousInterventionsCap)
	if err != nil {
		return assembledContext{}, err
	}
	allInterventions, err := c.interventions.RecentBySession(ctx, sess.ID, maxInterventionsForGates)
	if err != nil {
		return assembledContext{}, err
	}

	evalCtx := llmanalyst.EvaluationContext{
		Session:               sess,
		EventHistory:          history,
		NewEvents:             newEvents,
		PreviousEvaluations:   prevEvals,
		PreviousInterventions: prevInterventionsForContext,
	}

	sessCtx := deriveSessionContext(sess, allEvents, newEvents, allInterventions, c.clock.Now())

	return assembledContext{evalCtx: evalCtx, sessCtx: sessCtx, newEvents: newEvents}, nil
}

func excludeIDs(events []models.TrackEvent, ids []string) []models.TrackEvent {
	excl := make(map[string]bool, len(ids))
	for _, id := range ids {
		excl[id] = true
	}
	out := make([]models.TrackEvent, 0, len(events))
	for _, e := range events {
		if !excl[e.ID] {
			out = append(out, e)
		}
	}
	return out
}

// trimHistoryTo recovers the history slice after allEvents was truncated to
// maxContextEvents, keeping whichever history events survived the trim.
func trimHistoryTo(allEvents, newEvents []models.TrackEvent) []models.TrackEvent {
	newIDs := make(map[string]bool, len(newEvents))
	for _, e := range newEvents {
		newIDs[e.ID] = true
	}
	out := make([]models.TrackEvent, 0, len(allEvents))
	for _, e := range allEvents {
		if !newIDs[e.ID] {
			out = append(out, e)
		}
	}
	return out
}

// deriveSessionContext builds mswim.SessionContext from persisted state
// (§4.6 step 3, §4.7.2, §4.7.4). Friction ids are the client-reported ones
// on newEvents only; the llm path layers in LLMAnalyst-detected ids later.
func deriveSessionContext(sess models.Session, allEvents, newEvents []models.TrackEvent, interventions []models.Intervention, now time.Time) mswim.SessionContext {
	frictionIDs := dedupFrictionIDs(newEvents)

	var pageType models.PageType
	if len(newEvents) > 0 {
		pageType = newEvents[len(newEvents)-1].PageType
	}

	widgetOpened := false
	for _, e := range newEvents {
		if e.EventType == "widget_opened" {
			widgetOpened = true
			break
		}
	}

	ageSec := sess.AgeSeconds(now)
	idleSec := sess.IdleSeconds(now)

	alreadyIntervened := map[string]bool{}
	var totalActive, totalNudges, totalNonPassive int
	secSinceActive, secSinceNudge, secSinceDismissal, secSinceAny := int64(-1), int64(-1), int64(-1), int64(-1)

	sorted := append([]models.Intervention{}, interventions...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Timestamp.After(sorted[j].Timestamp) })

	for _, iv := range sorted {
		if iv.FrictionID != "" {
			alreadyIntervened[iv.FrictionID] = true
		}
		switch iv.Type {
		case models.InterventionActive:
			totalActive++
			totalNonPassive++
			if secSinceActive < 0 {
				secSinceActive = secondsSince(iv.Timestamp, now)
			}
		case models.InterventionNudge:
			totalNudges++
			totalNonPassive++
			if secSinceNudge < 0 {
				secSinceNudge = secondsSince(iv.Timestamp, now)
			}
		case models.InterventionEscalate:
			totalNonPassive++
		}
		if secSinceAny < 0 {
			secSinceAny = secondsSince(iv.Timestamp, now)
		}
		if iv.Status == models.InterventionStatusDismissed && secSinceDismissal < 0 {
			if ts := iv.DismissedAt; ts != nil {
				secSinceDismissal = secondsSince(*ts, now)
			}
		}
	}

	return mswim.SessionContext{
		PageType:        pageType,
		FrictionIDs:     frictionIDs,
		IsLoggedIn:      sess.IsLoggedIn,
		IsRepeatVisitor: sess.IsRepeatVisitor,
		ReferrerType:    sess.ReferrerType,
		IsMobile:        sess.DeviceType == models.DeviceMobile,

		CartValue:     sess.Cart.Value,
		CartItemCount: sess.Cart.ItemCount,

		SessionAgeSec: ageSec,
		EventCount:    len(allEvents),

		RuleCorroboration: len(frictionIDs) > 0,

		TotalInterventionsFired:      sess.Counters.InterventionsFired,
		TotalDismissals:              sess.Counters.Dismissals,
		SecondsSinceLastIntervention: secSinceAny,
		WidgetOpenedVoluntarily:      widgetOpened,
		IdleSeconds:                  idleSec,

		FrictionIDsAlreadyIntervened: alreadyIntervened,
		SecondsSinceLastActive:       secSinceActive,
		SecondsSinceLastNudge:        secSinceNudge,
		SecondsSinceLastDismissal:    secSinceDismissal,
		TotalActiveFired:             totalActive,
		TotalNudgesFired:             totalNudges,
		TotalNonPassiveFired:         totalNonPassive,
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
	return out
}

func mergeFrictionIDs(a, b []string) []string {
	seen := map[string]bool{}
	var out []string
	for _, id := range a {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	for _, id := range b {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

func secondsSince(t, now time.Time) int64 {
	return int64(now.Sub(t).Seconds())
}
