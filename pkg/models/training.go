package models

import "time"

// QualityFlags capture denormalization-time completeness signals for a TrainingDatapoint.
type QualityFlags struct {
	HasOutcome     bool  `json:"hasOutcome"`
	HasEvents      bool  `json:"hasEvents"`
	HasNarrative   bool  `json:"hasNarrative"`
	HasFrictions   bool  `json:"hasFrictions"`
	SessionAgeSec  int64 `json:"sessionAgeSec"`
	EventCount     int   `json:"eventCount"`
	OutcomeDelayMs int64 `json:"outcomeDelayMs"`
}

// TrainingDatapoint is a denormalized training row, one per terminal intervention (§3).
type TrainingDatapoint struct {
	ID             string    `json:"id"`
	InterventionID string    `json:"interventionId"`
	SessionID      string    `json:"sessionId"`
	EvaluationID   string    `json:"evaluationId"`

	SessionSnapshot Session        `json:"sessionSnapshot"`
	EventBatch      []TrackEvent   `json:"eventBatch"`
	Evaluation      Evaluation     `json:"evaluation"`
	Intervention    Intervention   `json:"intervention"`

	OutcomeStatus   InterventionStatus `json:"outcomeStatus"`
	OutcomeDelayMs  int64              `json:"outcomeDelayMs"`
	Quality         QualityFlags       `json:"quality"`
	CreatedAt       time.Time          `json:"createdAt"`
}
