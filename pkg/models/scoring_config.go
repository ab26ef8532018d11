package models

// GateParams holds the tunable thresholds consumed by the MSWIM gate catalog (§4.7.4, §9).
type GateParams struct {
	MinSessionAgeSec               int     `json:"minSessionAgeSec"`
	ReceptivityFloor                int     `json:"receptivityFloor"`
	DismissalsToSuppress            int     `json:"dismissalsToSuppress"`
	DuplicateFrictionRequiresAll    bool    `json:"duplicateFrictionRequiresAll"`
	CooldownAfterActiveSec          int     `json:"cooldownAfterActiveSec"`
	CooldownAfterNudgeSec           int     `json:"cooldownAfterNudgeSec"`
	CooldownAfterDismissSec         int     `json:"cooldownAfterDismissSec"`
	MaxActivePerSession             int     `json:"maxActivePerSession"`
	MaxNudgePerSession              int     `json:"maxNudgePerSession"`
	MaxNonPassivePerSession         int     `json:"maxNonPassivePerSession"`
}

// TierThresholds are the strictly-ascending composite-score cut points (§4.7.1).
type TierThresholds struct {
	Monitor int `json:"monitor"`
	Passive int `json:"passive"`
	Nudge   int `json:"nudge"`
	Active  int `json:"active"`
}

// ScoringConfig is a named, versioned weight/threshold/gate bundle (§3).
type ScoringConfig struct {
	ID         string         `json:"id"`
	Weights    Weights        `json:"weights"`
	Thresholds TierThresholds `json:"thresholds"`
	Gates      GateParams     `json:"gates"`
	SiteURL    string         `json:"siteUrl,omitempty"` // empty = global
	EvalEngine Engine         `json:"evalEngine"`
	IsActive   bool           `json:"isActive"`
}
