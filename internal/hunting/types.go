package hunting

import (
	"context"
	"time"

	"threatwatch/internal/common"
)

// TimeRange bounds a hunt to an observation window. Zero values mean unbounded.
type TimeRange struct {
	From time.Time `json:"from,omitempty"`
	To   time.Time `json:"to,omitempty"`
}

func (r TimeRange) contains(t time.Time) bool {
	if !r.From.IsZero() && t.Before(r.From) {
		return false
	}
	if !r.To.IsZero() && t.After(r.To) {
		return false
	}
	return true
}

// CorrelationRule groups findings that share a field value.
type CorrelationRule struct {
	Name  string `json:"name"`
	Field string `json:"field"` // source, severity, entity
}

// Query is a declarative threat-hunting specification.
type Query struct {
	ID               string            `json:"id"`
	Hypothesis       string            `json:"hypothesis"`
	SearchTerms      []string          `json:"search_terms"`
	Filters          map[string]string `json:"filters,omitempty"`
	CorrelationRules []CorrelationRule `json:"correlation_rules,omitempty"`
	TimeRange        TimeRange         `json:"time_range,omitempty"`
}

// Finding is one piece of evidence a data source returned for a hunt.
type Finding struct {
	ID        string          `json:"id"`
	Source    string          `json:"source"`
	Entity    string          `json:"entity,omitempty"`
	Summary   string          `json:"summary"`
	Severity  common.Severity `json:"severity"`
	Timestamp time.Time       `json:"timestamp"`
	Matched   []string        `json:"matched,omitempty"`
}

// Correlation is a group of findings tied together by a rule.
type Correlation struct {
	Rule       string   `json:"rule"`
	Value      string   `json:"value"`
	FindingIDs []string `json:"finding_ids"`
	Confidence float64  `json:"confidence"`
}

// TimelineEntry is one event on the reconstructed hunt timeline.
type TimelineEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Summary   string    `json:"summary"`
	Source    string    `json:"source"`
}

// RiskAssessment summarizes how dangerous the hunt findings look.
type RiskAssessment struct {
	Score int             `json:"score"`
	Level common.Severity `json:"level"`
}

// InvestigationTask is follow-up work a hunt spawns for the orchestrator.
type InvestigationTask struct {
	ID          string `json:"id"`
	Description string `json:"description"`
	Priority    int    `json:"priority"`
}

// Result carries everything a hunt produced. Duration is recorded even when
// the hunt fails or is cancelled.
type Result struct {
	ID                 string              `json:"id"`
	QueryID            string              `json:"query_id"`
	Hypothesis         string              `json:"hypothesis"`
	Status             common.HuntStatus   `json:"status"`
	Findings           []Finding           `json:"findings,omitempty"`
	Correlations       []Correlation       `json:"correlations,omitempty"`
	Timeline           []TimelineEntry     `json:"timeline,omitempty"`
	RiskAssessment     RiskAssessment      `json:"risk_assessment"`
	Recommendations    []string            `json:"recommendations,omitempty"`
	AdditionalQueries  []string            `json:"additional_queries,omitempty"`
	InvestigationTasks []InvestigationTask `json:"investigation_tasks,omitempty"`
	Error              string              `json:"error,omitempty"`
	StartedAt          time.Time           `json:"started_at"`
	CompletedAt        time.Time           `json:"completed_at"`
	DurationMS         int64               `json:"duration_ms"`
}

// DataSource is an external collaborator the executor searches. Production
// sources wrap telemetry stores; tests inject deterministic ones.
type DataSource interface {
	Name() string
	Search(ctx context.Context, q Query) ([]Finding, error)
}
