package models

import "time"

// InterventionStatus is the lifecycle status of an Intervention (§3).
type InterventionStatus string

// Intervention statuses. sent -> delivered -> {dismissed|converted|ignored}.
const (
	InterventionStatusSent       InterventionStatus = "sent"
	InterventionStatusDelivered  InterventionStatus = "delivered"
	InterventionStatusDismissed  InterventionStatus = "dismissed"
	InterventionStatusConverted  InterventionStatus = "converted"
	InterventionStatusIgnored    InterventionStatus = "ignored"
)

// Terminal reports whether a status is a final lifecycle state.
func (s InterventionStatus) Terminal() bool {
	switch s {
	case InterventionStatusDismissed, InterventionStatusConverted, InterventionStatusIgnored:
		return true
	default:
		return false
	}
}

// interventionTransitions is the lifecycle DAG from §3: status -> allowed next statuses.
var interventionTransitions = map[InterventionStatus]map[InterventionStatus]bool{
	InterventionStatusSent: {
		InterventionStatusDelivered: true,
		InterventionStatusDismissed: true,
		InterventionStatusConverted: true,
		InterventionStatusIgnored:   true,
	},
	InterventionStatusDelivered: {
		InterventionStatusDismissed: true,
		InterventionStatusConverted: true,
		InterventionStatusIgnored:   true,
	},
}

// CanTransition reports whether moving from `from` to `to` is allowed by the
// lifecycle DAG. Terminal statuses never transition further.
func CanTransition(from, to InterventionStatus) bool {
	if from.Terminal() {
		return false
	}
	next, ok := interventionTransitions[from]
	if !ok {
		return false
	}
	return next[to]
}

// Intervention is a server-issued action targeted at a session (§3).
type Intervention struct {
	ID            string           `json:"id"`
	SessionID     string           `json:"sessionId"`
	EvaluationID  string           `json:"evaluationId"`
	Type          InterventionType `json:"type"`
	ActionCode    string           `json:"actionCode"`
	FrictionID    string           `json:"frictionId,omitempty"`
	Payload       map[string]any   `json:"payload"`

	MSWIMScoreAtFire float64            `json:"mswimScoreAtFire"`
	TierAtFire       Tier               `json:"tierAtFire"`
	Timestamp        time.Time          `json:"timestamp"`
	Status           InterventionStatus `json:"status"`

	DeliveredAt *time.Time `json:"deliveredAt,omitempty"`
	DismissedAt *time.Time `json:"dismissedAt,omitempty"`
	ConvertedAt *time.Time `json:"convertedAt,omitempty"`
	IgnoredAt   *time.Time `json:"ignoredAt,omitempty"`

	ConversionAction string `json:"conversionAction,omitempty"`
}

// OutcomeTimestamp returns the timestamp field matching a terminal/delivered status.
func (i *Intervention) OutcomeTimestamp(status InterventionStatus) *time.Time {
	switch status {
	case InterventionStatusDelivered:
		return i.DeliveredAt
	case InterventionStatusDismissed:
		return i.DismissedAt
	case InterventionStatusConverted:
		return i.ConvertedAt
	case InterventionStatusIgnored:
		return i.IgnoredAt
	default:
		return nil
	}
}
