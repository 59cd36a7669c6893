package response

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"

	"threatwatch/internal/common"
)

// OrchestrateResponse drives the full response state machine for one threat:
// select matching playbooks, execute every match on a bounded worker pool,
// categorize the resulting actions, and emit an incident report. Playbook
// runs that completed before a later failure stay in the result.
func (e *Engine) OrchestrateResponse(ctx context.Context, threat ThreatEvent) (*OrchestrationResult, error) {
	if threat.ID == "" {
		threat.ID = uuid.NewString()
	}
	if threat.DetectedAt.IsZero() {
		threat.DetectedAt = e.now()
	}
	threat.ResponseStatus = common.ResponseDetected
	if threat.InvestigationStatus == "" {
		threat.InvestigationStatus = common.InvestigationPending
	}

	e.mu.Lock()
	e.threats[threat.ID] = &threat
	e.mu.Unlock()

	result := &OrchestrationResult{
		ID:             uuid.NewString(),
		ThreatID:       threat.ID,
		ReviewRequired: threat.Severity == common.SeverityCritical,
		StartedAt:      e.now(),
	}

	e.setResponseStatus(threat.ID, common.ResponsePlaybookSelection)
	selected := e.SelectPlaybooks(threat)
	if len(selected) == 0 {
		slog.Info("no playbooks matched", "threat", threat.ID, "type", threat.Type)
	}

	e.setResponseStatus(threat.ID, common.ResponseStepExecution)
	e.runSelected(ctx, threat, selected, result)

	categorize(result)
	result.EffectivenessScore = effectiveness(result.PlaybooksExecuted)
	result.Status = common.ExecCompleted
	if len(result.Errors) > 0 && completedSteps(result.PlaybooksExecuted) == 0 {
		result.Status = common.ExecFailed
	}
	result.CompletedAt = e.now()

	final := finalState(result)
	e.setResponseStatus(threat.ID, final)

	report := e.buildReport(threat, result)
	e.mu.Lock()
	e.reports = append(e.reports, report)
	e.mu.Unlock()

	// Fire-and-forget: sink failure never rolls back the orchestration.
	if e.sink != nil {
		if err := e.sink.Publish(ctx, "incident-report", report); err != nil {
			slog.Error("incident report publish failed", "threat", threat.ID, "err", err)
		}
	}
	// A failed response stays failed; only a response that achieved something
	// advances to reported.
	if final != common.ResponseFailed {
		e.setResponseStatus(threat.ID, common.ResponseReported)
	}

	return result, nil
}

// runSelected executes matched playbooks concurrently up to the worker bound.
// Playbooks operate on independent state; completed executions are appended
// under the result lock as they finish.
func (e *Engine) runSelected(ctx context.Context, threat ThreatEvent, selected []Playbook, result *OrchestrationResult) {
	var (
		wg  sync.WaitGroup
		sem = make(chan struct{}, e.workers)
		mu  sync.Mutex
	)
	ec := ExecContext{
		ThreatID: threat.ID,
		Variables: map[string]string{
			"affected_assets": strings.Join(threat.AffectedAssets, ","),
		},
	}
	for _, p := range selected {
		wg.Add(1)
		sem <- struct{}{}
		go func(pb Playbook) {
			defer wg.Done()
			defer func() { <-sem }()
			exec, err := e.ExecutePlaybook(ctx, pb.ID, ec)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", pb.Name, err))
				return
			}
			result.PlaybooksExecuted = append(result.PlaybooksExecuted, *exec)
			result.Errors = append(result.Errors, exec.Errors...)
		}(p)
	}
	wg.Wait()
}

func (e *Engine) setResponseStatus(threatID string, s common.ResponseStatus) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if t, ok := e.threats[threatID]; ok {
		t.ResponseStatus = s
	}
}

// categorize buckets completed step actions by their declared category.
func categorize(result *OrchestrationResult) {
	for _, exec := range result.PlaybooksExecuted {
		for _, sr := range exec.StepResults {
			if sr.Status != common.ExecCompleted {
				continue
			}
			switch sr.Type {
			case StepContainment:
				result.ContainmentActions = append(result.ContainmentActions, sr.Action)
			case StepRemediation:
				result.RemediationActions = append(result.RemediationActions, sr.Action)
			case StepRecovery:
				result.RecoveryActions = append(result.RecoveryActions, sr.Action)
			}
		}
	}
}

// effectiveness is the share of steps that completed, across all executions.
func effectiveness(execs []Execution) float64 {
	total := 0
	for _, exec := range execs {
		total += len(exec.StepResults)
	}
	if total == 0 {
		return 0
	}
	return float64(completedSteps(execs)) / float64(total) * 100
}

func completedSteps(execs []Execution) int {
	n := 0
	for _, exec := range execs {
		for _, sr := range exec.StepResults {
			if sr.Status == common.ExecCompleted {
				n++
			}
		}
	}
	return n
}

// finalState picks the terminal response state from what actually succeeded:
// recovery beats remediation beats containment. A run where errors occurred
// and no action category succeeded is failed, not contained.
func finalState(result *OrchestrationResult) common.ResponseStatus {
	switch {
	case len(result.RecoveryActions) > 0:
		return common.ResponseRecovered
	case len(result.RemediationActions) > 0:
		return common.ResponseRemediated
	case len(result.ContainmentActions) > 0:
		return common.ResponseContained
	case result.Status == common.ExecFailed || len(result.Errors) > 0:
		return common.ResponseFailed
	}
	return common.ResponseContained
}

func (e *Engine) buildReport(threat ThreatEvent, result *OrchestrationResult) IncidentReport {
	summary := fmt.Sprintf("%s threat %s: %d playbooks executed, effectiveness %.0f%%",
		threat.Severity, threat.Type, len(result.PlaybooksExecuted), result.EffectivenessScore)

	recs := []string{"confirm containment actions took effect on affected assets"}
	if result.ReviewRequired {
		recs = append(recs, "escalate for analyst review")
	}
	if len(result.Errors) > 0 {
		recs = append(recs, "re-run failed playbook steps after remediation")
	}

	return IncidentReport{
		ID:              uuid.NewString(),
		ThreatID:        threat.ID,
		Summary:         summary,
		Severity:        threat.Severity,
		Result:          result,
		Recommendations: recs,
		GeneratedAt:     e.now(),
	}
}

// Reports returns the incident reports generated so far.
func (e *Engine) Reports() []IncidentReport {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return append([]IncidentReport(nil), e.reports...)
}
