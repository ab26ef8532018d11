package config

import "github.com/codeready-toolchain/mswim/pkg/models"

// Default builds the compiled-in Config (§6.4's stated defaults), used as
// the base every YAML override layers on top of.
func Default() *Config {
	return &Config{
		Port:   8080,
		WSPort: 8081,
		Evaluation: EvaluationConfig{
			BatchIntervalMs:  5000,
			BatchMaxEvents:   10,
			MaxContextEvents: 100,
			EvalEngine:       string(models.EngineAuto),
		},
		Shadow:      ShadowConfig{Enabled: true},
		Experiments: ExperimentsConfig{Enabled: true},
		Jobs: JobsConfig{
			DisableScheduler:  false,
			NightlyBatchCron:  "0 2 * * *",
			DriftCheckCron:    "*/15 * * * *",
			RolloutHealthCron: "0 * * * *",
		},
		Drift: DriftConfig{
			TierAgreementFloor:        0.85,
			DecisionAgreementFloor:    0.90,
			MaxCompositeDivergence:    15,
			SignalShiftThreshold:      10,
			ConversionRateDropPercent: 20,
		},
		LLM: LLMConfig{
			TimeoutMs: 15000,
		},
	}
}
