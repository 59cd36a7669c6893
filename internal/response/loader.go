package response

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"threatwatch/internal/common"
)

// LoadDir reads every .yaml/.yml playbook in dir.
func LoadDir(dir string) ([]Playbook, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read playbook dir: %w", err)
	}
	var out []Playbook
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || (!strings.HasSuffix(name, ".yaml") && !strings.HasSuffix(name, ".yml")) {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("read playbook %s: %w", name, err)
		}
		var p Playbook
		if err := yaml.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("parse playbook %s: %w", name, err)
		}
		if p.Name == "" || len(p.Steps) == 0 {
			return nil, fmt.Errorf("playbook %s: name and steps are required", name)
		}
		out = append(out, p)
	}
	return out, nil
}

// Defaults returns the built-in playbooks shipped with the engine.
func Defaults() []Playbook {
	return []Playbook{
		{
			ID:          "malware-containment",
			Name:        "malware-containment",
			Description: "Isolate and clean up confirmed malware activity.",
			TriggerConditions: []TriggerCondition{
				{ThreatTypes: []common.ThreatType{common.ThreatMalware}},
				{MinSeverity: common.SeverityMedium},
			},
			Steps: []Step{
				{ID: "isolate", Name: "isolate-endpoints", Type: StepContainment,
					Action: "isolate-endpoints", Timeout: Duration(defaultStepTimeout)},
				{ID: "block", Name: "block-indicators", Type: StepContainment,
					Action: "block-indicators", Timeout: Duration(defaultStepTimeout), ContinueOnFailure: true},
				{ID: "forensics", Name: "snapshot-forensics", Type: StepRemediation,
					Action: "snapshot-forensics", Timeout: Duration(defaultStepTimeout), ContinueOnFailure: true},
				{ID: "notify", Name: "notify-stakeholders", Type: StepNotification,
					Action: "notify-stakeholders", Timeout: Duration(defaultStepTimeout), ContinueOnFailure: true},
			},
			Enabled: true,
		},
		{
			ID:          "phishing-response",
			Name:        "phishing-response",
			Description: "Cut off credential phishing campaigns.",
			TriggerConditions: []TriggerCondition{
				{ThreatTypes: []common.ThreatType{common.ThreatPhishing}},
			},
			Steps: []Step{
				{ID: "block", Name: "block-indicators", Type: StepContainment,
					Action: "block-indicators", Timeout: Duration(defaultStepTimeout)},
				{ID: "disable", Name: "disable-accounts", Type: StepContainment,
					Action: "disable-accounts", Timeout: Duration(defaultStepTimeout), ContinueOnFailure: true},
				{ID: "notify", Name: "notify-stakeholders", Type: StepNotification,
					Action: "notify-stakeholders", Timeout: Duration(defaultStepTimeout), ContinueOnFailure: true},
			},
			Enabled: true,
		},
		{
			ID:          "data-exfil-response",
			Name:        "data-exfil-response",
			Description: "Contain exfiltration and restore service.",
			TriggerConditions: []TriggerCondition{
				{ThreatTypes: []common.ThreatType{common.ThreatDataExfiltration, common.ThreatCommandControl}},
				{MinSeverity: common.SeverityHigh},
			},
			Steps: []Step{
				{ID: "isolate", Name: "isolate-endpoints", Type: StepContainment,
					Action: "isolate-endpoints", Timeout: Duration(defaultStepTimeout)},
				{ID: "block", Name: "block-indicators", Type: StepContainment,
					Action: "block-indicators", Timeout: Duration(defaultStepTimeout), ContinueOnFailure: true},
				{ID: "restore", Name: "restore-service", Type: StepRecovery,
					Action: "restore-service", Timeout: Duration(defaultStepTimeout), ContinueOnFailure: true},
			},
			Enabled: true,
		},
	}
}
