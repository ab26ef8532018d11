package models

import "time"

// EventCategory is the top-level classification of a TrackEvent.
type EventCategory string

// Event categories recognized by the ingestor.
const (
	CategoryNavigation EventCategory = "navigation"
	CategorySearch     EventCategory = "search"
	CategoryProduct    EventCategory = "product"
	CategoryCart       EventCategory = "cart"
	CategoryCheckout   EventCategory = "checkout"
	CategoryAccount    EventCategory = "account"
	CategoryEngagement EventCategory = "engagement"
	CategoryTechnical  EventCategory = "technical"
	CategorySystem     EventCategory = "system"
	CategoryUnknown    EventCategory = "unknown"
)

// PageType is the kind of page an event occurred on.
type PageType string

// Page types recognized by the ingestor and used by the fast synthesis funnel table.
const (
	PageLanding        PageType = "landing"
	PageCategory       PageType = "category"
	PageSearchResults  PageType = "search_results"
	PagePDP            PageType = "pdp"
	PageCart           PageType = "cart"
	PageCheckout       PageType = "checkout"
	PageAccount        PageType = "account"
	PageOther          PageType = "other"
)

// TrackEvent is the canonical, immutable behavioral event (§3).
type TrackEvent struct {
	ID        string        `json:"id"`
	SessionID string        `json:"sessionId"`
	Timestamp time.Time     `json:"timestamp"`
	Category  EventCategory `json:"category"`
	EventType string        `json:"eventType"`
	FrictionID string       `json:"frictionId,omitempty"`
	PageType  PageType      `json:"pageType"`
	PageURL   string        `json:"pageUrl"`
	RawSignals string       `json:"rawSignals"`

	PreviousPageURL       string `json:"previousPageUrl,omitempty"`
	TimeOnPageMs          int64  `json:"timeOnPageMs,omitempty"`
	ScrollDepthPct        int    `json:"scrollDepthPct,omitempty"`
	SessionSequenceNumber int    `json:"sessionSequenceNumber,omitempty"`

	// UTMSource/UTMMedium/UTMCampaign carry the landing page_view's campaign
	// params through to SessionAnalytics (§4.2 step 4). Transient: not part
	// of the persisted track_events row, never round-tripped through the
	// store.
	UTMSource   string `json:"utmSource,omitempty"`
	UTMMedium   string `json:"utmMedium,omitempty"`
	UTMCampaign string `json:"utmCampaign,omitempty"`
}
