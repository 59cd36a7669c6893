package hunting

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"threatwatch/internal/common"
	"threatwatch/internal/metrics"
)

// Executor runs hunting queries against the configured data sources and keeps
// an append-only log of results.
type Executor struct {
	mu      sync.RWMutex
	sources []DataSource
	results map[string]*Result
	order   []string

	now func() time.Time
}

func NewExecutor(sources ...DataSource) *Executor {
	return &Executor{
		sources: sources,
		results: make(map[string]*Result),
		now:     time.Now,
	}
}

// Hunt executes the query through its stages: search, correlate, timeline,
// risk assessment, follow-ups. Failures and panics land in the result, never
// in an error return or an escaping panic; cancellation is honored between
// stages, not mid-stage. The result always carries a duration and ends in a
// terminal status.
func (e *Executor) Hunt(ctx context.Context, q Query) (res *Result) {
	if q.ID == "" {
		q.ID = uuid.NewString()
	}
	res = &Result{
		ID:         uuid.NewString(),
		QueryID:    q.ID,
		Hypothesis: q.Hypothesis,
		Status:     common.HuntQueued,
	}
	e.record(res)

	res.Status = common.HuntRunning
	res.StartedAt = e.now()
	defer func() {
		res.CompletedAt = e.now()
		if rec := recover(); rec != nil {
			res.Status = common.HuntFailed
			res.Error = fmt.Sprintf("hunt panicked: %v", rec)
		}
		res.DurationMS = res.CompletedAt.Sub(res.StartedAt).Milliseconds()
		e.record(res)
		metrics.Hunts.WithLabelValues(string(res.Status)).Inc()
		slog.Info("hunt finished", "query", q.ID, "status", res.Status,
			"findings", len(res.Findings), "duration_ms", res.DurationMS)
	}()

	// Stage 1: search every data source.
	for _, src := range e.sources {
		findings, err := src.Search(ctx, q)
		if err != nil {
			res.Status = common.HuntFailed
			res.Error = (&common.ExecutionError{Stage: "search:" + src.Name(), Err: err}).Error()
			return res
		}
		res.Findings = append(res.Findings, findings...)
	}
	if cancelled(ctx, res) {
		return res
	}

	// Stage 2: correlate findings.
	res.Correlations = correlate(q.CorrelationRules, res.Findings)
	if cancelled(ctx, res) {
		return res
	}

	// Stage 3: build the timeline.
	res.Timeline = timeline(res.Findings)
	if cancelled(ctx, res) {
		return res
	}

	// Stage 4: assess risk.
	res.RiskAssessment = assessRisk(res.Findings)
	if cancelled(ctx, res) {
		return res
	}

	// Stage 5: follow-ups.
	res.Recommendations, res.AdditionalQueries, res.InvestigationTasks = followUps(q, res)

	res.Status = common.HuntCompleted
	return res
}

func cancelled(ctx context.Context, res *Result) bool {
	if ctx.Err() != nil {
		res.Status = common.HuntCancelled
		res.Error = ctx.Err().Error()
		return true
	}
	return false
}

func (e *Executor) record(res *Result) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, seen := e.results[res.ID]; !seen {
		e.order = append(e.order, res.ID)
	}
	cp := *res
	e.results[res.ID] = &cp
}

// Result returns a recorded hunt result by id.
func (e *Executor) Result(id string) (*Result, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	res, ok := e.results[id]
	if !ok {
		return nil, &common.NotFoundError{Kind: "hunt result", ID: id}
	}
	cp := *res
	return &cp, nil
}

// Results lists recorded results in execution order.
func (e *Executor) Results() []Result {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]Result, 0, len(e.order))
	for _, id := range e.order {
		out = append(out, *e.results[id])
	}
	return out
}

func correlate(rules []CorrelationRule, findings []Finding) []Correlation {
	var out []Correlation
	for _, rule := range rules {
		groups := make(map[string][]string)
		for _, f := range findings {
			var key string
			switch rule.Field {
			case "source":
				key = f.Source
			case "severity":
				key = string(f.Severity)
			case "entity":
				key = f.Entity
			}
			if key != "" {
				groups[key] = append(groups[key], f.ID)
			}
		}
		for value, ids := range groups {
			if len(ids) < 2 {
				continue
			}
			confidence := float64(len(ids)) / float64(len(findings))
			out = append(out, Correlation{
				Rule:       rule.Name,
				Value:      value,
				FindingIDs: ids,
				Confidence: confidence,
			})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Confidence > out[j].Confidence })
	return out
}

func timeline(findings []Finding) []TimelineEntry {
	entries := make([]TimelineEntry, 0, len(findings))
	for _, f := range findings {
		entries = append(entries, TimelineEntry{
			Timestamp: f.Timestamp,
			Summary:   f.Summary,
			Source:    f.Source,
		})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Timestamp.Before(entries[j].Timestamp) })
	return entries
}

func assessRisk(findings []Finding) RiskAssessment {
	score := 0
	for _, f := range findings {
		switch f.Severity {
		case common.SeverityCritical:
			score += 25
		case common.SeverityHigh:
			score += 15
		case common.SeverityMedium:
			score += 8
		default:
			score += 3
		}
	}
	if score > 100 {
		score = 100
	}
	level := common.SeverityLow
	switch {
	case score >= 75:
		level = common.SeverityCritical
	case score >= 50:
		level = common.SeverityHigh
	case score >= 25:
		level = common.SeverityMedium
	}
	return RiskAssessment{Score: score, Level: level}
}

func followUps(q Query, res *Result) (recs, queries []string, tasks []InvestigationTask) {
	if len(res.Findings) == 0 {
		recs = append(recs, "no evidence found; broaden search terms or widen the time range")
		return recs, queries, tasks
	}
	recs = append(recs, fmt.Sprintf("review %d findings supporting hypothesis %q", len(res.Findings), q.Hypothesis))
	if res.RiskAssessment.Level.AtLeast(common.SeverityHigh) {
		recs = append(recs, "promote correlated findings to a threat event for automated response")
	}
	for _, c := range res.Correlations {
		queries = append(queries, fmt.Sprintf("expand hunt on %s=%s", c.Rule, c.Value))
		tasks = append(tasks, InvestigationTask{
			ID:          uuid.NewString(),
			Description: fmt.Sprintf("investigate %d findings correlated by %s=%s", len(c.FindingIDs), c.Rule, c.Value),
			Priority:    res.RiskAssessment.Score,
		})
	}
	return recs, queries, tasks
}
