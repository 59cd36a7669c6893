package common

// ThreatType represents different categories of threats handled by the engine.
type ThreatType string

const (
	ThreatMalware          ThreatType = "malware"
	ThreatPhishing         ThreatType = "phishing"
	ThreatIntrusion        ThreatType = "intrusion"
	ThreatDataExfiltration ThreatType = "data_exfiltration"
	ThreatCommandControl   ThreatType = "command_and_control"
	ThreatAnomalous        ThreatType = "anomalous_behavior"
)

// Severity denotes how serious a detection, anomaly or threat event is.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Rank orders severities so callers can compare them (low < medium < high < critical).
func (s Severity) Rank() int {
	switch s {
	case SeverityLow:
		return 0
	case SeverityMedium:
		return 1
	case SeverityHigh:
		return 2
	case SeverityCritical:
		return 3
	}
	return -1
}

// AtLeast reports whether s is ranked the same or higher than other.
func (s Severity) AtLeast(other Severity) bool {
	return s.Rank() >= other.Rank()
}

// TLP is the Traffic Light Protocol sharing classification for threat data.
type TLP string

const (
	TLPWhite TLP = "white"
	TLPGreen TLP = "green"
	TLPAmber TLP = "amber"
	TLPRed   TLP = "red"
)

// HuntStatus tracks the lifecycle of a threat hunting query.
type HuntStatus string

const (
	HuntQueued    HuntStatus = "queued"
	HuntRunning   HuntStatus = "running"
	HuntCompleted HuntStatus = "completed"
	HuntFailed    HuntStatus = "failed"
	HuntCancelled HuntStatus = "cancelled"
)

// Terminal reports whether the hunt has reached a final state.
func (s HuntStatus) Terminal() bool {
	return s == HuntCompleted || s == HuntFailed || s == HuntCancelled
}

// ResponseStatus tracks a threat event through the orchestration state machine.
type ResponseStatus string

const (
	ResponseDetected          ResponseStatus = "detected"
	ResponsePlaybookSelection ResponseStatus = "playbook-selection"
	ResponseStepExecution     ResponseStatus = "step-execution"
	ResponseContained         ResponseStatus = "contained"
	ResponseRemediated        ResponseStatus = "remediated"
	ResponseRecovered         ResponseStatus = "recovered"
	ResponseReported          ResponseStatus = "reported"
	ResponseFailed            ResponseStatus = "failed"
)

// InvestigationStatus tracks the analyst-facing investigation state of a threat.
type InvestigationStatus string

const (
	InvestigationPending    InvestigationStatus = "pending"
	InvestigationInProgress InvestigationStatus = "in-progress"
	InvestigationCompleted  InvestigationStatus = "completed"
)

// ExecStatus is the outcome of a playbook execution or a single step.
type ExecStatus string

const (
	ExecPending   ExecStatus = "pending"
	ExecRunning   ExecStatus = "running"
	ExecCompleted ExecStatus = "completed"
	ExecFailed    ExecStatus = "failed"
	ExecSkipped   ExecStatus = "skipped"
)
