// Package mswim implements the Multi-Signal Weighted Intervention Model
// (§4.7): it adjusts five raw signal hints with server-side context,
// computes a weighted composite, resolves a tier, applies gate
// overrides, and produces a fire/suppress decision. Scoring is pure and
// non-suspending (§5) — no I/O happens in this package.
package mswim

import "github.com/codeready-toolchain/mswim/pkg/models"

// RawHints are the unadjusted per-signal values reported by either the
// LLMAnalyst or the fast-path synthesis (§4.6), fed into the adjusters.
type RawHints struct {
	Intent      int
	Friction    int
	Clarity     int
	Receptivity int
	Value       int
}

// SessionContext is the server-side state MSWIM needs to adjust signals
// and evaluate gates (§4.6 step 3, §4.7.2, §4.7.4). It is a point-in-time
// snapshot assembled by the Evaluation Coordinator (C6); MSWIM never
// reads through to live session state itself.
type SessionContext struct {
	PageType     models.PageType
	FrictionIDs  []string // client-reported + LLM-detected, deduplicated

	IsLoggedIn      bool
	IsRepeatVisitor bool
	ReferrerType    models.ReferrerType
	IsMobile        bool

	CartValue     float64
	CartItemCount int

	SessionAgeSec int64
	EventCount    int

	RuleCorroboration bool // any rule-detected friction corroborating the LLM narrative

	TotalInterventionsFired int
	TotalDismissals         int
	// SecondsSinceLastIntervention is -1 when no intervention has fired yet.
	SecondsSinceLastIntervention int64
	WidgetOpenedVoluntarily      bool
	IdleSeconds                  int64

	// Gate inputs. The SecondsSinceLast* fields use -1 to mean "never
	// happened this session", distinct from 0 ("just happened").
	FrictionIDsAlreadyIntervened map[string]bool
	SecondsSinceLastActive       int64
	SecondsSinceLastNudge        int64
	SecondsSinceLastDismissal    int64
	TotalActiveFired             int
	TotalNudgesFired             int
	TotalNonPassiveFired         int
}

// Result is MSWIM's output for one evaluation (§4.7 "Purpose").
type Result struct {
	Signals      models.Signals
	Composite    float64
	WeightsUsed  models.Weights
	Tier         models.Tier
	Decision     models.Decision
	GateOverride string
	Reasoning    string
}
