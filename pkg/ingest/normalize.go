package ingest

import (
	"encoding/json"

	"github.com/codeready-toolchain/mswim/pkg/models"
)

// rawEventFields is the wire shape of a track frame's `event` object,
// accepting both camelCase and snake_case keys and a nested page_context
// (§4.2 step 2). All fields are optional; missing ones fall back to the
// defaults named by the spec.
type rawEventFields struct {
	EventID    string `json:"event_id"`
	EventIDAlt string `json:"eventId"`

	Category    string `json:"category"`
	EventType   string `json:"event_type"`
	EventTypeAlt string `json:"eventType"`
	FrictionID  string `json:"friction_id"`
	FrictionIDAlt string `json:"frictionId"`

	Timestamp string `json:"timestamp"`

	RawSignals json.RawMessage `json:"raw_signals"`
	RawSignalsAlt json.RawMessage `json:"rawSignals"`

	PageContext *rawPageContext `json:"page_context"`

	// Root-level fallbacks, used when page_context is absent.
	PageType       string `json:"page_type"`
	PageTypeAlt    string `json:"pageType"`
	PageURL        string `json:"page_url"`
	PageURLAlt     string `json:"pageUrl"`
	TimeOnPageMs   int64  `json:"time_on_page_ms"`
	TimeOnPageMsAlt int64 `json:"timeOnPageMs"`
	ScrollDepthPct int    `json:"scroll_depth_pct"`
	ScrollDepthPctAlt int `json:"scrollDepthPct"`

	// UTM campaign params, present on the landing page_view that started
	// the session (§4.2 step 4 "record entry page and UTM fields").
	UTMSource      string `json:"utm_source"`
	UTMSourceAlt   string `json:"utmSource"`
	UTMMedium      string `json:"utm_medium"`
	UTMMediumAlt   string `json:"utmMedium"`
	UTMCampaign    string `json:"utm_campaign"`
	UTMCampaignAlt string `json:"utmCampaign"`
}

type rawPageContext struct {
	PageType       string `json:"page_type"`
	PageTypeAlt    string `json:"pageType"`
	PageURL        string `json:"page_url"`
	PageURLAlt     string `json:"pageUrl"`
	TimeOnPageMs   int64  `json:"time_on_page_ms"`
	TimeOnPageMsAlt int64 `json:"timeOnPageMs"`
	ScrollDepthPct int    `json:"scroll_depth_pct"`
	ScrollDepthPctAlt int `json:"scrollDepthPct"`
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func firstNonZero(vals ...int64) int64 {
	for _, v := range vals {
		if v != 0 {
			return v
		}
	}
	return 0
}

func firstNonZeroInt(vals ...int) int {
	for _, v := range vals {
		if v != 0 {
			return v
		}
	}
	return 0
}

// normalizeEvent implements §4.2 step 2: accept camelCase and snake_case
// variants, extract page fields from page_context first and fall back to
// root, and apply the documented defaults for anything still missing.
func normalizeEvent(sessionID string, raw json.RawMessage, seq int) (models.TrackEvent, error) {
	var f rawEventFields
	if err := json.Unmarshal(raw, &f); err != nil {
		return models.TrackEvent{}, err
	}

	pageType := models.PageOther
	pageURL := ""
	var timeOnPageMs int64
	var scrollDepthPct int

	if f.PageContext != nil {
		if pt := firstNonEmpty(f.PageContext.PageType, f.PageContext.PageTypeAlt); pt != "" {
			pageType = models.PageType(pt)
		}
		pageURL = firstNonEmpty(f.PageContext.PageURL, f.PageContext.PageURLAlt)
		timeOnPageMs = firstNonZero(f.PageContext.TimeOnPageMs, f.PageContext.TimeOnPageMsAlt)
		scrollDepthPct = firstNonZeroInt(f.PageContext.ScrollDepthPct, f.PageContext.ScrollDepthPctAlt)
	} else {
		if pt := firstNonEmpty(f.PageType, f.PageTypeAlt); pt != "" {
			pageType = models.PageType(pt)
		}
		pageURL = firstNonEmpty(f.PageURL, f.PageURLAlt)
		timeOnPageMs = firstNonZero(f.TimeOnPageMs, f.TimeOnPageMsAlt)
		scrollDepthPct = firstNonZeroInt(f.ScrollDepthPct, f.ScrollDepthPctAlt)
	}

	category := f.Category
	if category == "" {
		category = string(models.CategoryUnknown)
	}
	eventType := firstNonEmpty(f.EventType, f.EventTypeAlt)
	if eventType == "" {
		eventType = "unknown"
	}

	rawSignals := f.RawSignals
	if len(rawSignals) == 0 {
		rawSignals = f.RawSignalsAlt
	}

	evt := models.TrackEvent{
		SessionID:             sessionID,
		Category:               models.EventCategory(category),
		EventType:              eventType,
		FrictionID:             firstNonEmpty(f.FrictionID, f.FrictionIDAlt),
		PageType:               pageType,
		PageURL:                pageURL,
		RawSignals:             string(rawSignals),
		TimeOnPageMs:           timeOnPageMs,
		ScrollDepthPct:         scrollDepthPct,
		SessionSequenceNumber:  seq,
		UTMSource:              firstNonEmpty(f.UTMSource, f.UTMSourceAlt),
		UTMMedium:              firstNonEmpty(f.UTMMedium, f.UTMMediumAlt),
		UTMCampaign:            firstNonEmpty(f.UTMCampaign, f.UTMCampaignAlt),
	}
	return evt, nil
}

// cartSignals is the rawSignals shape recognized for category=cart events
// (§4.2 step 5: "parse rawSignals and update cart.value/cart.itemCount").
type cartSignals struct {
	Value     float64 `json:"value"`
	ItemCount int     `json:"itemCount"`
}

func parseCartSignals(rawSignals string) (cartSignals, bool) {
	if rawSignals == "" {
		return cartSignals{}, false
	}
	var cs cartSignals
	if err := json.Unmarshal([]byte(rawSignals), &cs); err != nil {
		return cartSignals{}, false
	}
	return cs, true
}
