package models

import "time"

// WindowType is a rolling aggregation window used by the drift detector.
type WindowType string

// Window types the drift detector computes snapshots for.
const (
	Window1h  WindowType = "1h"
	Window6h  WindowType = "6h"
	Window24h WindowType = "24h"
	Window7d  WindowType = "7d"
)

// Duration returns the time.Duration represented by a WindowType.
func (w WindowType) Duration() time.Duration {
	switch w {
	case Window1h:
		return time.Hour
	case Window6h:
		return 6 * time.Hour
	case Window24h:
		return 24 * time.Hour
	case Window7d:
		return 7 * 24 * time.Hour
	default:
		return time.Hour
	}
}

// ShadowComparison pairs a production evaluation with a rule-only shadow pass (§3).
type ShadowComparison struct {
	ID                   string    `json:"id"`
	SessionID            string    `json:"sessionId"`
	EvaluationID         string    `json:"evaluationId"`
	ProdSignals          Signals   `json:"prodSignals"`
	ShadowSignals        Signals   `json:"shadowSignals"`
	ProdComposite        float64   `json:"prodComposite"`
	ShadowComposite      float64   `json:"shadowComposite"`
	CompositeDivergence  float64   `json:"compositeDivergence"`
	TierMatch            bool      `json:"tierMatch"`
	DecisionMatch        bool      `json:"decisionMatch"`
	GateOverrideMatch    bool      `json:"gateOverrideMatch"`
	CreatedAt            time.Time `json:"createdAt"`
}

// SignalMeans holds per-signal averages split by outcome.
type SignalMeans struct {
	Intent      float64 `json:"intent"`
	Friction    float64 `json:"friction"`
	Clarity     float64 `json:"clarity"`
	Receptivity float64 `json:"receptivity"`
	Value       float64 `json:"value"`
}

// DriftSnapshot is one windowed health measurement (§3).
type DriftSnapshot struct {
	ID               string      `json:"id"`
	WindowType       WindowType  `json:"windowType"`
	SiteURL          string      `json:"siteUrl,omitempty"`
	ComputedAt       time.Time   `json:"computedAt"`

	SampleCount      int     `json:"sampleCount"`
	TierAgreementRate     float64 `json:"tierAgreementRate"`
	DecisionAgreementRate float64 `json:"decisionAgreementRate"`
	AvgDivergence         float64 `json:"avgDivergence"`

	ConvertedMeans SignalMeans `json:"convertedMeans"`
	DismissedMeans SignalMeans `json:"dismissedMeans"`

	ConversionRate float64 `json:"conversionRate"`
	DismissalRate  float64 `json:"dismissalRate"`
}

// AlertSeverity is the severity level of a DriftAlert.
type AlertSeverity string

// Alert severities.
const (
	SeverityWarning  AlertSeverity = "warning"
	SeverityCritical AlertSeverity = "critical"
)

// DriftAlert is a raised health anomaly (§3).
type DriftAlert struct {
	ID           string        `json:"id"`
	AlertType    string        `json:"alertType"`
	Severity     AlertSeverity `json:"severity"`
	WindowType   WindowType    `json:"windowType"`
	SiteURL      string        `json:"siteUrl,omitempty"`
	Metric       string        `json:"metric"`
	Expected     float64       `json:"expected"`
	Actual       float64       `json:"actual"`
	Message      string        `json:"message"`
	Acknowledged bool          `json:"acknowledged"`
	CreatedAt    time.Time     `json:"createdAt"`
	ResolvedAt   *time.Time    `json:"resolvedAt,omitempty"`
}

// DriftThresholds configures anomaly detection (§4.11, config §6.4).
type DriftThresholds struct {
	TierAgreementFloor      float64 `json:"tierAgreementFloor"`
	DecisionAgreementFloor  float64 `json:"decisionAgreementFloor"`
	MaxCompositeDivergence  float64 `json:"maxCompositeDivergence"`
	SignalShiftThreshold    float64 `json:"signalShiftThreshold"`
	ConversionRateDropPercent float64 `json:"conversionRateDropPercent"`
}
