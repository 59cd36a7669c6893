package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Thresholds collects the tuning knobs that gate anomaly severity and response.
// The defaults mirror the values the detection rules were originally shipped
// with; operators override them per deployment rather than editing code.
type Thresholds struct {
	// Deviation-magnitude cut points, in normalized baseline distance.
	// Below AnomalyLow is low, below AnomalyMedium is medium, below
	// AnomalyHigh is high, everything at or above AnomalyHigh is critical.
	AnomalyLow    float64 `yaml:"anomaly_low"`
	AnomalyMedium float64 `yaml:"anomaly_medium"`
	AnomalyHigh   float64 `yaml:"anomaly_high"`

	// DriftAction is the magnitude at which an anomaly is promoted to a
	// threat event for automated response.
	DriftAction float64 `yaml:"drift_action"`

	// MatchWeight is the per-match contribution to the indicator risk score,
	// capped at 100.
	MatchWeight int `yaml:"match_weight"`

	// MaxConcurrentPlaybooks bounds the orchestrator worker pool.
	MaxConcurrentPlaybooks int `yaml:"max_concurrent_playbooks"`
}

// DefaultThresholds returns the stock tuning values.
func DefaultThresholds() Thresholds {
	return Thresholds{
		AnomalyLow:             1.0,
		AnomalyMedium:          2.0,
		AnomalyHigh:            3.0,
		DriftAction:            0.3,
		MatchWeight:            25,
		MaxConcurrentPlaybooks: 4,
	}
}

// LoadThresholds reads overrides from a YAML file. Empty path means defaults.
// Fields left zero in the file keep their default values.
func LoadThresholds(path string) (Thresholds, error) {
	t := DefaultThresholds()
	if path == "" {
		return t, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return t, fmt.Errorf("read thresholds: %w", err)
	}
	var override Thresholds
	if err := yaml.Unmarshal(data, &override); err != nil {
		return t, fmt.Errorf("parse thresholds: %w", err)
	}
	t.merge(override)
	return t, nil
}

func (t *Thresholds) merge(o Thresholds) {
	if o.AnomalyLow > 0 {
		t.AnomalyLow = o.AnomalyLow
	}
	if o.AnomalyMedium > 0 {
		t.AnomalyMedium = o.AnomalyMedium
	}
	if o.AnomalyHigh > 0 {
		t.AnomalyHigh = o.AnomalyHigh
	}
	if o.DriftAction > 0 {
		t.DriftAction = o.DriftAction
	}
	if o.MatchWeight > 0 {
		t.MatchWeight = o.MatchWeight
	}
	if o.MaxConcurrentPlaybooks > 0 {
		t.MaxConcurrentPlaybooks = o.MaxConcurrentPlaybooks
	}
}
