package config

import (
	"fmt"
	"os"
	"path/filepath"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"
)

// Initialize loads mswim.yaml from configDir (if present), merges it over
// the compiled defaults, validates the result, and returns a ready-to-use
// Config. A missing file is not an error: the compiled defaults alone are
// a valid configuration.
func Initialize(configDir string) (*Config, error) {
	cfg := Default()

	yamlCfg, err := loadYAML(configDir)
	if err != nil {
		return nil, err
	}
	if yamlCfg != nil {
		if err := mergeYAML(cfg, yamlCfg); err != nil {
			return nil, fmt.Errorf("failed to merge configuration: %w", err)
		}
	}

	if err := NewValidator(cfg).ValidateAll(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func loadYAML(configDir string) (*YAMLConfig, error) {
	path := filepath.Join(configDir, "mswim.yaml")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, NewLoadError(path, err)
	}

	var parsed YAMLConfig
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return nil, NewLoadError(path, fmt.Errorf("%w: %v", ErrInvalidYAML, err))
	}
	return &parsed, nil
}

// mergeYAML layers a parsed YAMLConfig over the defaulted Config. Port,
// WSPort and the evaluation, jobs, drift and llm sections merge field by
// field: non-zero-value fields override, zero values keep the default. A
// shadow or experiments section, when present, replaces that section's
// defaults entirely, so an omitted `enabled` there reads as false.
func mergeYAML(cfg *Config, y *YAMLConfig) error {
	if y.Port != 0 {
		cfg.Port = y.Port
	}
	if y.WSPort != 0 {
		cfg.WSPort = y.WSPort
	}
	if y.Evaluation != nil {
		if err := mergo.Merge(&cfg.Evaluation, *y.Evaluation, mergo.WithOverride); err != nil {
			return err
		}
	}
	if y.Shadow != nil {
		cfg.Shadow = *y.Shadow
	}
	if y.Experiments != nil {
		cfg.Experiments = *y.Experiments
	}
	if y.Jobs != nil {
		if err := mergo.Merge(&cfg.Jobs, *y.Jobs, mergo.WithOverride); err != nil {
			return err
		}
	}
	if y.Drift != nil {
		if err := mergo.Merge(&cfg.Drift, *y.Drift, mergo.WithOverride); err != nil {
			return err
		}
	}
	if y.LLM != nil {
		if err := mergo.Merge(&cfg.LLM, *y.LLM, mergo.WithOverride); err != nil {
			return err
		}
	}
	return nil
}
