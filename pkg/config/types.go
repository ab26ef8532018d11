package config

import "github.com/codeready-toolchain/mswim/pkg/models"

// EvaluationConfig holds the batching/context tunables of §6.4's
// `evaluation.*` namespace.
type EvaluationConfig struct {
	BatchIntervalMs  int    `yaml:"batch_interval_ms"`
	BatchMaxEvents   int    `yaml:"batch_max_events"`
	MaxContextEvents int    `yaml:"max_context_events"`
	EvalEngine       string `yaml:"eval_engine"`
}

// ShadowConfig toggles the shadow comparator (C9).
type ShadowConfig struct {
	Enabled bool `yaml:"enabled"`
}

// ExperimentsConfig toggles the experiment resolver (C5).
type ExperimentsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// JobsConfig controls the drift detector's scheduler (C11).
type JobsConfig struct {
	DisableScheduler bool   `yaml:"disable_scheduler"`
	NightlyBatchCron string `yaml:"nightly_batch_cron"`
	DriftCheckCron   string `yaml:"drift_check_cron"`
	RolloutHealthCron string `yaml:"rollout_health_cron"`
}

// DriftConfig mirrors models.DriftThresholds in YAML form.
type DriftConfig struct {
	TierAgreementFloor        float64 `yaml:"tier_agreement_floor"`
	DecisionAgreementFloor    float64 `yaml:"decision_agreement_floor"`
	MaxCompositeDivergence    float64 `yaml:"max_composite_divergence"`
	SignalShiftThreshold      float64 `yaml:"signal_shift_threshold"`
	ConversionRateDropPercent float64 `yaml:"conversion_rate_drop_percent"`
}

// Thresholds converts DriftConfig into the domain DriftThresholds type.
func (d DriftConfig) Thresholds() models.DriftThresholds {
	return models.DriftThresholds{
		TierAgreementFloor:        d.TierAgreementFloor,
		DecisionAgreementFloor:    d.DecisionAgreementFloor,
		MaxCompositeDivergence:    d.MaxCompositeDivergence,
		SignalShiftThreshold:      d.SignalShiftThreshold,
		ConversionRateDropPercent: d.ConversionRateDropPercent,
	}
}

// LLMConfig configures the LLMAnalyst client's deadline (§5 "Cancellation &
// timeouts").
type LLMConfig struct {
	Endpoint  string `yaml:"endpoint"`
	TimeoutMs int    `yaml:"timeout_ms"`
}

// YAMLConfig is the on-disk shape of mswim.yaml (§6.4).
type YAMLConfig struct {
	Port       int                `yaml:"port"`
	WSPort     int                `yaml:"ws_port"`
	Evaluation *EvaluationConfig  `yaml:"evaluation"`
	Shadow     *ShadowConfig      `yaml:"shadow"`
	Experiments *ExperimentsConfig `yaml:"experiments"`
	Jobs       *JobsConfig        `yaml:"jobs"`
	Drift      *DriftConfig       `yaml:"drift"`
	LLM        *LLMConfig         `yaml:"llm"`
}

// Config is the fully resolved, defaulted, validated configuration (§6.4).
type Config struct {
	Port   int
	WSPort int

	Evaluation  EvaluationConfig
	Shadow      ShadowConfig
	Experiments ExperimentsConfig
	Jobs        JobsConfig
	Drift       DriftConfig
	LLM         LLMConfig
}
