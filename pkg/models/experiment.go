package models

// ExperimentStatus is the lifecycle state of an Experiment.
type ExperimentStatus string

// Experiment statuses.
const (
	ExperimentDraft     ExperimentStatus = "draft"
	ExperimentRunning   ExperimentStatus = "running"
	ExperimentPaused    ExperimentStatus = "paused"
	ExperimentCompleted ExperimentStatus = "completed"
)

// ExperimentVariant is one arm of an Experiment; overrides feed into C6/C7.
type ExperimentVariant struct {
	ID              string  `json:"id"`
	Weight          float64 `json:"weight"`
	EvalEngine      Engine  `json:"evalEngine,omitempty"`
	ScoringConfigID string  `json:"scoringConfigId,omitempty"`
}

// Experiment is a named A/B test (§3).
type Experiment struct {
	ID              string              `json:"id"`
	Name            string              `json:"name"`
	SiteURL         string              `json:"siteUrl,omitempty"`
	Status          ExperimentStatus    `json:"status"`
	TrafficPercent  float64             `json:"trafficPercent"`
	Variants        []ExperimentVariant `json:"variants"`
	PrimaryMetric   string              `json:"primaryMetric"`
	MinSampleSize   int                 `json:"minSampleSize"`
}

// ExperimentAssignment records an immutable session -> variant binding (§3).
type ExperimentAssignment struct {
	ExperimentID string `json:"experimentId"`
	SessionID    string `json:"sessionId"`
	VariantID    string `json:"variantId"`
}

// ExperimentOverrides are the values an assignment contributes to C6/C7 (§4.5).
type ExperimentOverrides struct {
	ExperimentID    string
	VariantID       string
	EvalEngine      Engine
	ScoringConfigID string
}
