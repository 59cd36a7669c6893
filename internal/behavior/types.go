package behavior

import (
	"time"

	"threatwatch/internal/common"
)

// SecurityEvent is an observed event from the endpoint/telemetry collaborators.
// Consumed read-only; the engine never mutates events.
type SecurityEvent struct {
	ID             string            `json:"id"`
	Timestamp      time.Time         `json:"timestamp"`
	Type           string            `json:"type"`
	Source         string            `json:"source"`
	Severity       common.Severity   `json:"severity"`
	RiskScore      float64           `json:"risk_score"` // 0..100
	User           string            `json:"user,omitempty"`
	Endpoint       string            `json:"endpoint,omitempty"`
	RawData        map[string]any    `json:"raw_data,omitempty"`
	NormalizedData map[string]string `json:"normalized_data,omitempty"`
	Status         string            `json:"status,omitempty"`
}

// Entity resolves which baseline an event belongs to: user, then endpoint,
// then the shared unknown bucket.
func (e SecurityEvent) Entity() string {
	if e.User != "" {
		return e.User
	}
	if e.Endpoint != "" {
		return e.Endpoint
	}
	return "unknown"
}

// SecurityMetrics is a point-in-time metrics snapshot from the monitoring
// collaborators, compared against the rolling baseline by DetectAnomalies.
type SecurityMetrics struct {
	EventsPerMinute    float64 `json:"events_per_minute"`
	AvgRiskScore       float64 `json:"avg_risk_score"`
	FailedLogins       float64 `json:"failed_logins"`
	DataTransferMB     float64 `json:"data_transfer_mb"`
	UniqueDestinations float64 `json:"unique_destinations"`
}

// Baseline is the rolling statistical profile of one entity. Baselines are
// created lazily and superseded in place, never deleted.
type Baseline struct {
	EntityID   string    `json:"entity_id"`
	MeanRisk   float64   `json:"mean_risk"`
	StdDevRisk float64   `json:"stddev_risk"`
	EventRate  float64   `json:"event_rate"`
	Patterns   []string  `json:"patterns,omitempty"`
	Confidence float64   `json:"confidence"`
	UpdatedAt  time.Time `json:"updated_at"`

	riskSamples []float64
}

// Deviation is one measured divergence of an entity from its baseline.
type Deviation struct {
	Metric    string  `json:"metric"`
	Observed  float64 `json:"observed"`
	Expected  float64 `json:"expected"`
	Magnitude float64 `json:"magnitude"`
}

// EntityResult is the per-entity portion of a behavioral analysis.
type EntityResult struct {
	EntityID           string      `json:"entity_id"`
	Patterns           []string    `json:"patterns,omitempty"`
	Anomalies          []string    `json:"anomalies,omitempty"`
	BaselineDeviations []Deviation `json:"baseline_deviations,omitempty"`
	RiskScore          int         `json:"risk_score"`
}

// AnalysisResult is the outcome of AnalyzeBehavior over a batch of events.
type AnalysisResult struct {
	Entities           []EntityResult `json:"entities"`
	OverallRiskScore   int            `json:"overall_risk_score"`
	Recommendations    []string       `json:"recommendations,omitempty"`
	PrioritizedActions []string       `json:"prioritized_actions,omitempty"`
	AnalyzedAt         time.Time      `json:"analyzed_at"`
}

// MetricAnomaly is one metric dimension that deviated from baseline.
type MetricAnomaly struct {
	Metric   string  `json:"metric"`
	Observed float64 `json:"observed"`
	Expected float64 `json:"expected"`
	ZScore   float64 `json:"z_score"`
}

// AnomalyDetectionResult classifies how far a metrics snapshot sits from the
// rolling baseline.
type AnomalyDetectionResult struct {
	DeviationMagnitude float64         `json:"deviation_magnitude"`
	Severity           common.Severity `json:"severity"`
	Anomalies          []MetricAnomaly `json:"anomalies,omitempty"`
	AutomaticResponse  bool            `json:"automatic_response"`
	Promote            bool            `json:"promote"`
	Recommendations    []string        `json:"recommendations,omitempty"`
	DetectedAt         time.Time       `json:"detected_at"`
}
