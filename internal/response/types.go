package response

import (
	"encoding/json"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"threatwatch/internal/common"
)

// ThreatEvent is a promoted threat: correlated indicators or anomalies that
// crossed the response threshold. Indicators are held by ID, never copied;
// the orchestrator owns the event once it is created.
type ThreatEvent struct {
	ID                  string                     `json:"id"`
	Type                common.ThreatType          `json:"type"`
	Severity            common.Severity            `json:"severity"`
	IndicatorIDs        []string                   `json:"indicator_ids,omitempty"`
	ImpactScore         int                        `json:"impact_score"`
	AffectedAssets      []string                   `json:"affected_assets,omitempty"`
	ResponseStatus      common.ResponseStatus      `json:"response_status"`
	InvestigationStatus common.InvestigationStatus `json:"investigation_status"`
	Confidence          float64                    `json:"confidence"`
	DetectedAt          time.Time                  `json:"detected_at"`
}

// StepType declares which action category a step's outcome is reported under.
type StepType string

const (
	StepContainment  StepType = "containment"
	StepRemediation  StepType = "remediation"
	StepRecovery     StepType = "recovery"
	StepNotification StepType = "notification"
)

// Duration parses from "30s"-style strings in YAML and JSON playbooks.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", value.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalYAML() (any, error) { return time.Duration(d).String(), nil }

func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// Step is one action in a playbook.
type Step struct {
	ID                string            `json:"id" yaml:"id"`
	Name              string            `json:"name" yaml:"name"`
	Type              StepType          `json:"type" yaml:"type"`
	Action            string            `json:"action" yaml:"action"`
	Parameters        map[string]string `json:"parameters,omitempty" yaml:"parameters,omitempty"`
	Timeout           Duration          `json:"timeout,omitempty" yaml:"timeout,omitempty"`
	ContinueOnFailure bool              `json:"continue_on_failure" yaml:"continue_on_failure"`
}

// TriggerCondition matches a playbook against a threat. Empty fields match
// everything; within one condition both clauses must hold.
type TriggerCondition struct {
	ThreatTypes []common.ThreatType `json:"threat_types,omitempty" yaml:"threat_types,omitempty"`
	MinSeverity common.Severity     `json:"min_severity,omitempty" yaml:"min_severity,omitempty"`
}

func (c TriggerCondition) matches(t ThreatEvent) bool {
	if len(c.ThreatTypes) > 0 {
		found := false
		for _, tt := range c.ThreatTypes {
			if tt == t.Type {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if c.MinSeverity != "" && !t.Severity.AtLeast(c.MinSeverity) {
		return false
	}
	return true
}

// Playbook is an ordered response procedure. All trigger conditions must
// match (AND); across playbooks every match runs (OR).
type Playbook struct {
	ID                string             `json:"id" yaml:"id"`
	Name              string             `json:"name" yaml:"name"`
	Description       string             `json:"description,omitempty" yaml:"description,omitempty"`
	TriggerConditions []TriggerCondition `json:"trigger_conditions" yaml:"trigger_conditions"`
	Steps             []Step             `json:"steps" yaml:"steps"`
	Enabled           bool               `json:"enabled" yaml:"enabled"`
	CreatedAt         time.Time          `json:"created_at,omitempty" yaml:"created_at,omitempty"`
	UpdatedAt         time.Time          `json:"updated_at,omitempty" yaml:"updated_at,omitempty"`
}

// Matches reports whether every trigger condition holds for the threat.
func (p Playbook) Matches(t ThreatEvent) bool {
	for _, c := range p.TriggerConditions {
		if !c.matches(t) {
			return false
		}
	}
	return len(p.TriggerConditions) > 0
}

// StepResult is the recorded outcome of one step.
type StepResult struct {
	StepID    string            `json:"step_id"`
	Name      string            `json:"name"`
	Type      StepType          `json:"type"`
	Action    string            `json:"action"`
	Status    common.ExecStatus `json:"status"`
	Output    map[string]string `json:"output,omitempty"`
	Error     string            `json:"error,omitempty"`
	StartedAt time.Time         `json:"started_at"`
	Duration  time.Duration     `json:"duration"`
}

// Execution is the append-only record of one playbook run. It is owned by the
// orchestration result it belongs to and is immutable once complete.
type Execution struct {
	ID          string            `json:"id"`
	PlaybookID  string            `json:"playbook_id"`
	ThreatID    string            `json:"threat_id,omitempty"`
	Status      common.ExecStatus `json:"status"`
	StepResults []StepResult      `json:"step_results"`
	Errors      []string          `json:"errors,omitempty"`
	Variables   map[string]string `json:"variables,omitempty"`
	StartedAt   time.Time         `json:"started_at"`
	CompletedAt time.Time         `json:"completed_at"`
}

// ExecContext seeds a playbook run with the threat it serves and any initial
// variables. Step outputs merge into Variables for subsequent steps.
type ExecContext struct {
	ThreatID  string            `json:"threat_id,omitempty"`
	Variables map[string]string `json:"variables,omitempty"`
}

// OrchestrationResult aggregates every playbook run against one threat.
type OrchestrationResult struct {
	ID                 string            `json:"id"`
	ThreatID           string            `json:"threat_id"`
	Status             common.ExecStatus `json:"status"`
	PlaybooksExecuted  []Execution       `json:"playbooks_executed"`
	ContainmentActions []string          `json:"containment_actions,omitempty"`
	RemediationActions []string          `json:"remediation_actions,omitempty"`
	RecoveryActions    []string          `json:"recovery_actions,omitempty"`
	EffectivenessScore float64           `json:"effectiveness_score"`
	ReviewRequired     bool              `json:"review_required"`
	Errors             []string          `json:"errors,omitempty"`
	StartedAt          time.Time         `json:"started_at"`
	CompletedAt        time.Time         `json:"completed_at"`
}

// IncidentReport is the read-only summary tying a threat to its response.
type IncidentReport struct {
	ID              string               `json:"id"`
	ThreatID        string               `json:"threat_id"`
	Summary         string               `json:"summary"`
	Severity        common.Severity      `json:"severity"`
	Result          *OrchestrationResult `json:"result"`
	Recommendations []string             `json:"recommendations,omitempty"`
	GeneratedAt     time.Time            `json:"generated_at"`
}
