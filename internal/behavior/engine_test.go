package behavior

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"threatwatch/internal/common"
	"threatwatch/internal/config"
)

func newTestEngine() *Engine {
	return NewEngine(config.DefaultThresholds())
}

func eventAt(user, endpoint, typ string, risk float64, hour int) SecurityEvent {
	return SecurityEvent{
		ID:        "ev-" + typ,
		Timestamp: time.Date(2025, 6, 2, hour, 0, 0, 0, time.UTC),
		Type:      typ,
		Source:    "edr",
		Severity:  common.SeverityLow,
		RiskScore: risk,
		User:      user,
		Endpoint:  endpoint,
	}
}

func TestEntityResolution(t *testing.T) {
	assert.Equal(t, "alice", SecurityEvent{User: "alice", Endpoint: "host-1"}.Entity())
	assert.Equal(t, "host-1", SecurityEvent{Endpoint: "host-1"}.Entity())
	assert.Equal(t, "unknown", SecurityEvent{}.Entity())
}

func TestGetOrCreateBaseline(t *testing.T) {
	e := newTestEngine()
	b := e.GetOrCreateBaseline("alice")
	require.NotNil(t, b)
	assert.Equal(t, 0.8, b.Confidence)
	assert.Empty(t, b.Patterns)

	again := e.GetOrCreateBaseline("alice")
	assert.Same(t, b, again)
}

func TestAnalyzeBehaviorGroupsByEntity(t *testing.T) {
	e := newTestEngine()
	events := []SecurityEvent{
		eventAt("alice", "", "login", 10, 12),
		eventAt("alice", "", "login", 12, 12),
		eventAt("bob", "", "login", 11, 12),
		eventAt("", "host-9", "scan", 30, 12),
		eventAt("", "", "beacon", 40, 12),
	}
	res := e.AnalyzeBehavior(events)
	assert.LessOrEqual(t, len(res.Entities), 4)

	seen := map[string]bool{}
	for _, er := range res.Entities {
		seen[er.EntityID] = true
	}
	assert.True(t, seen["alice"])
	assert.True(t, seen["bob"])
	assert.True(t, seen["host-9"])
	assert.True(t, seen["unknown"])
}

func TestAnalyzeBehaviorScoring(t *testing.T) {
	e := newTestEngine()
	events := []SecurityEvent{
		eventAt("carol", "", "login", 10, 12),
		eventAt("carol", "", "login", 11, 12),
		eventAt("carol", "", "login", 12, 12),
	}
	critical := eventAt("carol", "", "lateral-move", 95, 12)
	critical.Severity = common.SeverityCritical
	events = append(events, critical)

	res := e.AnalyzeBehavior(events)
	// One repeated:login pattern and one critical-event anomaly.
	assert.Equal(t, 20, res.OverallRiskScore)
	assert.NotEmpty(t, res.Recommendations)
	assert.NotEmpty(t, res.PrioritizedActions)
}

func TestAnalyzeBehaviorQuietBatch(t *testing.T) {
	e := newTestEngine()
	res := e.AnalyzeBehavior([]SecurityEvent{eventAt("dave", "", "login", 5, 12)})
	assert.Equal(t, 0, res.OverallRiskScore)
	assert.Empty(t, res.Recommendations)
}

func TestClassifyMonotonic(t *testing.T) {
	e := newTestEngine()
	prev := -1
	for _, mag := range []float64{0, 0.5, 0.99, 1.0, 1.7, 2.0, 2.9, 3.0, 9.5} {
		sev := e.classify(mag)
		assert.GreaterOrEqual(t, sev.Rank(), prev,
			"severity rank must not decrease as magnitude grows (mag=%v)", mag)
		prev = sev.Rank()
	}
	assert.Equal(t, common.SeverityLow, e.classify(0.5))
	assert.Equal(t, common.SeverityMedium, e.classify(1.5))
	assert.Equal(t, common.SeverityHigh, e.classify(2.5))
	assert.Equal(t, common.SeverityCritical, e.classify(3.5))
}

func TestDetectAnomaliesFlagsDeviation(t *testing.T) {
	e := newTestEngine()

	// Prime the rolling baseline with normal traffic.
	for i := 0; i < 20; i++ {
		e.DetectAnomalies(SecurityMetrics{
			EventsPerMinute: 10 + float64(i%5),
			AvgRiskScore:    20 + float64(i%3),
			FailedLogins:    1,
		})
	}

	res := e.DetectAnomalies(SecurityMetrics{
		EventsPerMinute: 500,
		AvgRiskScore:    95,
		FailedLogins:    1,
	})
	assert.Greater(t, res.DeviationMagnitude, 0.0)
	assert.True(t, res.Severity.AtLeast(common.SeverityHigh))
	assert.True(t, res.AutomaticResponse)
	assert.True(t, res.Promote)
	assert.NotEmpty(t, res.Anomalies)
	assert.NotEmpty(t, res.Recommendations)
}

func TestDetectAnomaliesAutomaticResponseGate(t *testing.T) {
	e := newTestEngine()
	for i := 0; i < 20; i++ {
		e.DetectAnomalies(SecurityMetrics{EventsPerMinute: 10 + float64(i%5)})
	}
	res := e.DetectAnomalies(SecurityMetrics{EventsPerMinute: 11})
	assert.False(t, res.AutomaticResponse,
		"low deviation must not trigger automatic response (severity=%s)", res.Severity)
}

func TestEventLogBounded(t *testing.T) {
	log := NewEventLog(5)
	for i := 0; i < 8; i++ {
		log.Append(SecurityEvent{ID: fmt.Sprintf("ev-%d", i)})
	}
	all := log.All()
	require.Len(t, all, 5)
	assert.Equal(t, "ev-3", all[0].ID)
}

func TestEventLogSinceCursor(t *testing.T) {
	log := NewEventLog(5)
	log.Append(SecurityEvent{ID: "ev-0"}, SecurityEvent{ID: "ev-1"})

	evs, cursor := log.Since(0)
	require.Len(t, evs, 2)
	assert.Equal(t, uint64(2), cursor)

	// Nothing new since the last read.
	evs, cursor = log.Since(cursor)
	assert.Empty(t, evs)
	assert.Equal(t, uint64(2), cursor)

	log.Append(SecurityEvent{ID: "ev-2"})
	evs, cursor = log.Since(cursor)
	require.Len(t, evs, 1)
	assert.Equal(t, "ev-2", evs[0].ID)

	// Overflow past the window: the cursor skips events it never saw.
	for i := 3; i < 12; i++ {
		log.Append(SecurityEvent{ID: fmt.Sprintf("ev-%d", i)})
	}
	evs, cursor = log.Since(cursor)
	require.Len(t, evs, 5, "only retained events are returned after overflow")
	assert.Equal(t, "ev-7", evs[0].ID)
	assert.Equal(t, uint64(12), cursor)
}
