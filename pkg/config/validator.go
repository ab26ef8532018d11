package config

import (
	"fmt"

	"github.com/codeready-toolchain/mswim/pkg/models"
)

// Validator checks a resolved Config for internal consistency before it is
// handed to any component (§7 ConfigConflict is rejected at the admin/load
// boundary, never at runtime).
type Validator struct {
	cfg *Config
}

// NewValidator builds a Validator for cfg.
func NewValidator(cfg *Config) *Validator {
	return &Validator{cfg: cfg}
}

// ValidateAll runs every check, fail-fast.
func (v *Validator) ValidateAll() error {
	if err := v.validatePorts(); err != nil {
		return err
	}
	if err := v.validateEvaluation(); err != nil {
		return err
	}
	if err := v.validateEngine(); err != nil {
		return err
	}
	return nil
}

func (v *Validator) validatePorts() error {
	if v.cfg.Port <= 0 || v.cfg.Port > 65535 {
		return fmt.Errorf("port %d out of range", v.cfg.Port)
	}
	if v.cfg.WSPort <= 0 || v.cfg.WSPort > 65535 {
		return fmt.Errorf("ws_port %d out of range", v.cfg.WSPort)
	}
	return nil
}

func (v *Validator) validateEvaluation() error {
	e := v.cfg.Evaluation
	if e.BatchIntervalMs <= 0 {
		return fmt.Errorf("evaluation.batch_interval_ms must be positive, got %d", e.BatchIntervalMs)
	}
	if e.BatchMaxEvents <= 0 {
		return fmt.Errorf("evaluation.batch_max_events must be positive, got %d", e.BatchMaxEvents)
	}
	if e.MaxContextEvents <= 0 {
		return fmt.Errorf("evaluation.max_context_events must be positive, got %d", e.MaxContextEvents)
	}
	return nil
}

func (v *Validator) validateEngine() error {
	switch models.Engine(v.cfg.Evaluation.EvalEngine) {
	case models.EngineLLM, models.EngineFast, models.EngineAuto:
		return nil
	default:
		return fmt.Errorf("evaluation.eval_engine %q is not one of llm/fast/auto", v.cfg.Evaluation.EvalEngine)
	}
}
