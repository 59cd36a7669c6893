package behavior

import (
	"fmt"
	"sync"
	"time"

	"gonum.org/v1/gonum/stat"

	"threatwatch/internal/config"
)

const (
	defaultBaselineConfidence = 0.8
	riskSampleWindow          = 200

	anomalyWeight = 15
	patternWeight = 5
)

// Engine maintains per-entity behavioral baselines and detects deviations.
// The baseline map is shared between the behavior tick and the anomaly tick;
// all mutation happens under the engine lock.
type Engine struct {
	mu        sync.RWMutex
	baselines map[string]*Baseline
	rolling   *rollingMetrics
	th        config.Thresholds
	now       func() time.Time
}

func NewEngine(th config.Thresholds) *Engine {
	return &Engine{
		baselines: make(map[string]*Baseline),
		rolling:   newRollingMetrics(),
		th:        th,
		now:       time.Now,
	}
}

// GetOrCreateBaseline returns the entity's baseline, creating a default one
// on first sight. It never fails.
func (e *Engine) GetOrCreateBaseline(entityID string) *Baseline {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.baselineLocked(entityID)
}

func (e *Engine) baselineLocked(entityID string) *Baseline {
	if b, ok := e.baselines[entityID]; ok {
		return b
	}
	b := &Baseline{
		EntityID:   entityID,
		Confidence: defaultBaselineConfidence,
		UpdatedAt:  e.now(),
	}
	e.baselines[entityID] = b
	return b
}

// AnalyzeBehavior groups events by entity, scores each entity against its
// baseline, folds the events into the baseline, and aggregates an overall
// risk picture with recommendations.
func (e *Engine) AnalyzeBehavior(events []SecurityEvent) *AnalysisResult {
	byEntity := make(map[string][]SecurityEvent)
	for _, ev := range events {
		byEntity[ev.Entity()] = append(byEntity[ev.Entity()], ev)
	}

	res := &AnalysisResult{AnalyzedAt: e.now()}
	totalAnomalies, totalPatterns := 0, 0

	e.mu.Lock()
	for entity, evs := range byEntity {
		b := e.baselineLocked(entity)
		er := e.analyzeEntity(b, evs)
		e.updateBaseline(b, evs, er.Patterns)
		totalAnomalies += len(er.Anomalies)
		totalPatterns += len(er.Patterns)
		res.Entities = append(res.Entities, er)
	}
	e.mu.Unlock()

	score := totalAnomalies*anomalyWeight + totalPatterns*patternWeight
	if score > 100 {
		score = 100
	}
	res.OverallRiskScore = score
	if score > 0 {
		res.Recommendations = recommendations(totalAnomalies, totalPatterns)
		res.PrioritizedActions = prioritizedActions(res.Entities)
	}
	return res
}

func (e *Engine) analyzeEntity(b *Baseline, events []SecurityEvent) EntityResult {
	er := EntityResult{EntityID: b.EntityID}

	// Pattern detection: repeated event types and off-hours activity.
	typeCounts := make(map[string]int)
	offHours := 0
	for _, ev := range events {
		typeCounts[ev.Type]++
		if h := ev.Timestamp.Hour(); h < 6 || h >= 22 {
			offHours++
		}
	}
	for typ, n := range typeCounts {
		if n >= 3 {
			er.Patterns = append(er.Patterns, "repeated:"+typ)
		}
	}
	if offHours > 0 {
		er.Patterns = append(er.Patterns, "off-hours-activity")
	}

	// Anomalies: risk scores far above the learned profile, plus events the
	// collaborators already flagged critical.
	threshold := b.MeanRisk + 2*b.StdDevRisk
	for _, ev := range events {
		switch {
		case len(b.riskSamples) >= 10 && ev.RiskScore > threshold:
			er.Anomalies = append(er.Anomalies,
				fmt.Sprintf("risk-spike:%s score=%.0f expected<=%.0f", ev.Type, ev.RiskScore, threshold))
		case ev.Severity.Rank() >= 3:
			er.Anomalies = append(er.Anomalies, "critical-event:"+ev.Type)
		}
	}

	// Deviation of the batch mean from the baseline mean.
	if len(events) > 0 && len(b.riskSamples) >= 10 {
		scores := riskScores(events)
		observed := stat.Mean(scores, nil)
		magnitude := 0.0
		if b.StdDevRisk > 0 {
			magnitude = (observed - b.MeanRisk) / b.StdDevRisk
			if magnitude < 0 {
				magnitude = -magnitude
			}
		}
		er.BaselineDeviations = append(er.BaselineDeviations, Deviation{
			Metric:    "risk_score",
			Observed:  observed,
			Expected:  b.MeanRisk,
			Magnitude: magnitude,
		})
	}

	score := len(er.Anomalies)*anomalyWeight + len(er.Patterns)*patternWeight
	if score > 100 {
		score = 100
	}
	er.RiskScore = score
	return er
}

// updateBaseline folds the batch into the rolling profile. Old baselines are
// superseded in place; samples beyond the window fall off the front.
func (e *Engine) updateBaseline(b *Baseline, events []SecurityEvent, patterns []string) {
	b.riskSamples = append(b.riskSamples, riskScores(events)...)
	if len(b.riskSamples) > riskSampleWindow {
		b.riskSamples = b.riskSamples[len(b.riskSamples)-riskSampleWindow:]
	}
	if len(b.riskSamples) > 0 {
		b.MeanRisk = stat.Mean(b.riskSamples, nil)
	}
	if len(b.riskSamples) > 1 {
		b.StdDevRisk = stat.StdDev(b.riskSamples, nil)
	}
	b.EventRate = float64(len(events))
	for _, p := range patterns {
		if !containsString(b.Patterns, p) {
			b.Patterns = append(b.Patterns, p)
		}
	}
	b.UpdatedAt = e.now()
}

func riskScores(events []SecurityEvent) []float64 {
	out := make([]float64, len(events))
	for i, ev := range events {
		out[i] = ev.RiskScore
	}
	return out
}

func recommendations(anomalies, patterns int) []string {
	recs := []string{"review flagged entities and recent authentication activity"}
	if anomalies > 0 {
		recs = append(recs, "correlate anomalous entities against threat intelligence")
	}
	if patterns > 0 {
		recs = append(recs, "verify recurring activity patterns against change records")
	}
	return recs
}

func prioritizedActions(entities []EntityResult) []string {
	var actions []string
	for _, er := range entities {
		if len(er.Anomalies) > 0 {
			actions = append(actions, "investigate entity "+er.EntityID)
		}
	}
	if len(actions) == 0 {
		actions = append(actions, "monitor flagged entities")
	}
	return actions
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
