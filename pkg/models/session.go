// Package models holds the shared data-model types for the scoring and
// intervention pipeline. Every component depends on these types; none of
// them depend back on a component package.
package models

import "time"

// SessionStatus is the lifecycle state of a Session.
type SessionStatus string

// Session statuses, monotonic: active -> idle -> ended.
const (
	SessionStatusActive SessionStatus = "active"
	SessionStatusIdle   SessionStatus = "idle"
	SessionStatusEnded  SessionStatus = "ended"
)

// DeviceType is the visitor's device class.
type DeviceType string

// Device types recognized on track frames.
const (
	DeviceMobile  DeviceType = "mobile"
	DeviceTablet  DeviceType = "tablet"
	DeviceDesktop DeviceType = "desktop"
)

// ReferrerType classifies how the visitor arrived at the site.
type ReferrerType string

// Referrer types recognized on track frames.
const (
	ReferrerDirect   ReferrerType = "direct"
	ReferrerOrganic  ReferrerType = "organic"
	ReferrerPaid     ReferrerType = "paid"
	ReferrerSocial   ReferrerType = "social"
	ReferrerEmail    ReferrerType = "email"
	ReferrerReferral ReferrerType = "referral"
)

// Cart is the session's shopping cart snapshot.
type Cart struct {
	Value     float64 `json:"value"`
	ItemCount int     `json:"itemCount"`
}

// SessionCounters holds the session's monotonically non-decreasing counters.
type SessionCounters struct {
	InterventionsFired int `json:"interventionsFired"`
	Dismissals         int `json:"dismissals"`
	Conversions        int `json:"conversions"`
	PageViews          int `json:"pageViews"`
}

// SessionAnalytics holds best-effort analytics accumulators.
type SessionAnalytics struct {
	EntryPage        string `json:"entryPage,omitempty"`
	ExitPage         string `json:"exitPage,omitempty"`
	TotalTimeOnSite  int64  `json:"totalTimeOnSiteMs"`
	UTMSource        string `json:"utmSource,omitempty"`
	UTMMedium        string `json:"utmMedium,omitempty"`
	UTMCampaign      string `json:"utmCampaign,omitempty"`
}

// Session is one record per visitor-site pairing (§3).
type Session struct {
	ID        string `json:"id"`
	VisitorID string `json:"visitorId"`
	SiteURL   string `json:"siteUrl"`

	DeviceType       DeviceType   `json:"deviceType"`
	ReferrerType     ReferrerType `json:"referrerType"`
	IsLoggedIn       bool         `json:"isLoggedIn"`
	IsRepeatVisitor  bool         `json:"isRepeatVisitor"`

	Cart     Cart            `json:"cart"`
	Counters SessionCounters `json:"counters"`
	Status   SessionStatus   `json:"status"`

	StartedAt      time.Time  `json:"startedAt"`
	LastActivityAt time.Time  `json:"lastActivityAt"`
	EndedAt        *time.Time `json:"endedAt,omitempty"`

	Analytics SessionAnalytics `json:"analytics"`
}

// AgeSeconds returns the session's age in seconds as of `now`.
func (s *Session) AgeSeconds(now time.Time) int64 {
	return int64(now.Sub(s.StartedAt).Seconds())
}

// IdleSeconds returns how long the session has been idle as of `now`.
func (s *Session) IdleSeconds(now time.Time) int64 {
	return int64(now.Sub(s.LastActivityAt).Seconds())
}
