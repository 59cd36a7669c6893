package response

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"threatwatch/internal/common"
	"threatwatch/internal/metrics"
	"threatwatch/internal/notify"
)

const defaultStepTimeout = 30 * time.Second

// Engine selects and executes response playbooks against threat events.
// It owns threat events once they enter orchestration, and keeps an
// append-only log of playbook executions.
type Engine struct {
	mu         sync.RWMutex
	playbooks  map[string]*Playbook
	threats    map[string]*ThreatEvent
	executions []Execution
	reports    []IncidentReport

	runner  ActionRunner
	sink    notify.Sink
	workers int
	now     func() time.Time
}

func NewEngine(runner ActionRunner, sink notify.Sink, maxConcurrent int) *Engine {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	return &Engine{
		playbooks: make(map[string]*Playbook),
		threats:   make(map[string]*ThreatEvent),
		runner:    runner,
		sink:      sink,
		workers:   maxConcurrent,
		now:       time.Now,
	}
}

// RegisterPlaybook adds or replaces a playbook.
func (e *Engine) RegisterPlaybook(p Playbook) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	now := e.now()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now

	e.mu.Lock()
	e.playbooks[p.ID] = &p
	e.mu.Unlock()
	slog.Info("playbook registered", "playbook", p.Name, "steps", len(p.Steps))
}

// Playbooks lists registered playbooks.
func (e *Engine) Playbooks() []Playbook {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]Playbook, 0, len(e.playbooks))
	for _, p := range e.playbooks {
		out = append(out, *p)
	}
	return out
}

// SelectPlaybooks returns every enabled playbook whose trigger conditions all
// match the threat.
func (e *Engine) SelectPlaybooks(t ThreatEvent) []Playbook {
	e.mu.RLock()
	defer e.mu.RUnlock()
	var out []Playbook
	for _, p := range e.playbooks {
		if p.Enabled && p.Matches(t) {
			out = append(out, *p)
		}
	}
	return out
}

// GetThreat returns a known threat event.
func (e *Engine) GetThreat(id string) (*ThreatEvent, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	t, ok := e.threats[id]
	if !ok {
		return nil, &common.NotFoundError{Kind: "threat", ID: id}
	}
	cp := *t
	return &cp, nil
}

// Executions returns a snapshot of the execution log.
func (e *Engine) Executions() []Execution {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return append([]Execution(nil), e.executions...)
}

// ExecutePlaybook runs one playbook's steps strictly in order. Each step gets
// its own timeout; a step failure with continue_on_failure=false halts the
// run immediately, otherwise the failure is recorded and execution proceeds.
// Step outputs merge into the shared variables map seen by later steps.
func (e *Engine) ExecutePlaybook(ctx context.Context, playbookID string, ec ExecContext) (*Execution, error) {
	e.mu.RLock()
	p, ok := e.playbooks[playbookID]
	e.mu.RUnlock()
	if !ok {
		return nil, &common.NotFoundError{Kind: "playbook", ID: playbookID}
	}

	exec := Execution{
		ID:         uuid.NewString(),
		PlaybookID: p.ID,
		ThreatID:   ec.ThreatID,
		Status:     common.ExecRunning,
		Variables:  map[string]string{"threat_id": ec.ThreatID},
		StartedAt:  e.now(),
	}
	for k, v := range ec.Variables {
		exec.Variables[k] = v
	}

	for _, step := range p.Steps {
		sr := e.runStep(ctx, step, exec.Variables)
		exec.StepResults = append(exec.StepResults, sr)
		if sr.Status == common.ExecFailed {
			exec.Errors = append(exec.Errors, fmt.Sprintf("%s: %s", step.Name, sr.Error))
			if !step.ContinueOnFailure {
				exec.Status = common.ExecFailed
				break
			}
			continue
		}
		for k, v := range sr.Output {
			exec.Variables[k] = v
		}
	}
	if exec.Status != common.ExecFailed {
		exec.Status = common.ExecCompleted
	}
	exec.CompletedAt = e.now()

	e.mu.Lock()
	e.executions = append(e.executions, exec)
	e.mu.Unlock()
	metrics.PlaybookExecutions.WithLabelValues(p.Name, string(exec.Status)).Inc()
	return &exec, nil
}

func (e *Engine) runStep(ctx context.Context, step Step, vars map[string]string) StepResult {
	sr := StepResult{
		StepID:    step.ID,
		Name:      step.Name,
		Type:      step.Type,
		Action:    step.Action,
		StartedAt: e.now(),
	}

	budget := time.Duration(step.Timeout)
	if budget <= 0 {
		budget = defaultStepTimeout
	}
	stepCtx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	out, err := e.runner.Run(stepCtx, step, vars)
	sr.Duration = e.now().Sub(sr.StartedAt)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			err = &common.ExecutionError{
				Stage: step.Name,
				Err:   &common.TimeoutError{Stage: step.Name, Budget: budget},
			}
		}
		sr.Status = common.ExecFailed
		sr.Error = err.Error()
		slog.Warn("step failed", "step", step.Name, "action", step.Action, "err", err)
		return sr
	}
	sr.Status = common.ExecCompleted
	sr.Output = out
	return sr
}
