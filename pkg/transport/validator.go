package transport

import (
	"encoding/json"
	"fmt"
)

// widgetFrameTypes and dashboardFrameTypes are the recognized inbound frame
// types per channel (§4.1 "widget→{track, ping, intervention_outcome};
// dashboard→{select_session, tune_weights, …}").
var (
	widgetFrameTypes = map[string]bool{
		"track":                true,
		"ping":                 true,
		"intervention_outcome": true,
	}
	dashboardFrameTypes = map[string]bool{
		"select_session": true,
		"tune_weights":   true,
	}
)

// FrameValidator checks an inbound frame's type is recognized for its
// channel and that required fields for that type are present.
type FrameValidator struct{}

// NewFrameValidator builds a FrameValidator.
func NewFrameValidator() *FrameValidator { return &FrameValidator{} }

// Validate reports a non-nil error (carrying the client-facing message) if
// frameType is not schema-valid for channel.
func (v *FrameValidator) Validate(channel Channel, frameType string, raw json.RawMessage) error {
	allowed := widgetFrameTypes
	if channel == ChannelDashboard {
		allowed = dashboardFrameTypes
	}
	if !allowed[frameType] {
		return fmt.Errorf("unrecognized frame type %q for channel %q", frameType, channel)
	}

	switch frameType {
	case "track":
		return validateTrackFrame(raw)
	case "intervention_outcome":
		return validateInterventionOutcomeFrame(raw)
	case "select_session":
		return validateSelectSessionFrame(raw)
	case "tune_weights":
		return validateTuneWeightsFrame(raw)
	}
	return nil
}

func validateTrackFrame(raw json.RawMessage) error {
	var f struct {
		VisitorKey string          `json:"visitorKey"`
		SiteURL    string          `json:"siteUrl"`
		Event      json.RawMessage `json:"event"`
	}
	if err := json.Unmarshal(raw, &f); err != nil {
		return fmt.Errorf("track: %w", err)
	}
	if f.VisitorKey == "" {
		return fmt.Errorf("track: visitorKey is required")
	}
	if f.SiteURL == "" {
		return fmt.Errorf("track: siteUrl is required")
	}
	if len(f.Event) == 0 {
		return fmt.Errorf("track: event is required")
	}
	return nil
}

func validateInterventionOutcomeFrame(raw json.RawMessage) error {
	var f struct {
		InterventionID string `json:"intervention_id"`
		Status         string `json:"status"`
	}
	if err := json.Unmarshal(raw, &f); err != nil {
		return fmt.Errorf("intervention_outcome: %w", err)
	}
	if f.InterventionID == "" {
		return fmt.Errorf("intervention_outcome: intervention_id is required")
	}
	switch f.Status {
	case "delivered", "dismissed", "converted", "ignored":
	default:
		return fmt.Errorf("intervention_outcome: invalid status %q", f.Status)
	}
	return nil
}

func validateSelectSessionFrame(raw json.RawMessage) error {
	var f struct {
		SessionID string `json:"sessionId"`
	}
	if err := json.Unmarshal(raw, &f); err != nil {
		return fmt.Errorf("select_session: %w", err)
	}
	if f.SessionID == "" {
		return fmt.Errorf("select_session: sessionId is required")
	}
	return nil
}

func validateTuneWeightsFrame(raw json.RawMessage) error {
	var f struct {
		ScoringConfigID string `json:"scoringConfigId"`
	}
	if err := json.Unmarshal(raw, &f); err != nil {
		return fmt.Errorf("tune_weights: %w", err)
	}
	if f.ScoringConfigID == "" {
		return fmt.Errorf("tune_weights: scoringConfigId is required")
	}
	return nil
}
