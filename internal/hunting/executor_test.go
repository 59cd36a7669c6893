package hunting

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"threatwatch/internal/common"
	"threatwatch/internal/indicator"
	"threatwatch/internal/response"
)

type staticSource struct {
	name     string
	findings []Finding
	err      error
}

func (s *staticSource) Name() string { return s.name }

func (s *staticSource) Search(ctx context.Context, q Query) ([]Finding, error) {
	return s.findings, s.err
}

func sampleFindings() []Finding {
	base := time.Date(2025, 6, 3, 9, 0, 0, 0, time.UTC)
	return []Finding{
		{ID: "f1", Source: "edr", Entity: "host-1", Summary: "beacon to known c2",
			Severity: common.SeverityHigh, Timestamp: base.Add(2 * time.Hour)},
		{ID: "f2", Source: "edr", Entity: "host-1", Summary: "persistence registered",
			Severity: common.SeverityCritical, Timestamp: base},
		{ID: "f3", Source: "proxy", Entity: "host-2", Summary: "dns tunneling pattern",
			Severity: common.SeverityMedium, Timestamp: base.Add(time.Hour)},
	}
}

func TestHuntCompletes(t *testing.T) {
	e := NewExecutor(&staticSource{name: "edr", findings: sampleFindings()})
	q := Query{
		Hypothesis:  "c2 beaconing from workstations",
		SearchTerms: []string{"beacon"},
		CorrelationRules: []CorrelationRule{
			{Name: "same-source", Field: "source"},
			{Name: "same-entity", Field: "entity"},
		},
	}

	res := e.Hunt(context.Background(), q)
	assert.Equal(t, common.HuntCompleted, res.Status)
	assert.True(t, res.Status.Terminal())
	assert.GreaterOrEqual(t, res.DurationMS, int64(0))
	assert.Len(t, res.Findings, 3)
	assert.NotEmpty(t, res.Correlations)
	assert.NotEmpty(t, res.Recommendations)
	assert.NotEmpty(t, res.InvestigationTasks)

	// Timeline is ordered.
	require.Len(t, res.Timeline, 3)
	for i := 1; i < len(res.Timeline); i++ {
		assert.False(t, res.Timeline[i].Timestamp.Before(res.Timeline[i-1].Timestamp))
	}

	// The result is recorded and retrievable.
	got, err := e.Result(res.ID)
	require.NoError(t, err)
	assert.Equal(t, common.HuntCompleted, got.Status)
}

func TestHuntFailureCaptured(t *testing.T) {
	e := NewExecutor(&staticSource{name: "flaky", err: errors.New("query engine down")})

	res := e.Hunt(context.Background(), Query{Hypothesis: "anything"})
	assert.Equal(t, common.HuntFailed, res.Status)
	assert.True(t, res.Status.Terminal())
	assert.NotEmpty(t, res.Error)
	assert.GreaterOrEqual(t, res.DurationMS, int64(0), "duration is recorded even on failure")
}

type panickySource struct{}

func (panickySource) Name() string { return "unstable" }

func (panickySource) Search(ctx context.Context, q Query) ([]Finding, error) {
	panic("datasource exploded")
}

func TestHuntPanicCaptured(t *testing.T) {
	e := NewExecutor(panickySource{})

	res := e.Hunt(context.Background(), Query{Hypothesis: "anything"})
	assert.Equal(t, common.HuntFailed, res.Status)
	assert.True(t, res.Status.Terminal())
	assert.Contains(t, res.Error, "datasource exploded")

	// The recorded copy carries the terminal status too.
	got, err := e.Result(res.ID)
	require.NoError(t, err)
	assert.Equal(t, common.HuntFailed, got.Status)
}

func TestHuntCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	e := NewExecutor(&staticSource{name: "edr", findings: sampleFindings()})
	res := e.Hunt(ctx, Query{Hypothesis: "cancelled early"})
	assert.Equal(t, common.HuntCancelled, res.Status)
	assert.True(t, res.Status.Terminal())
	assert.GreaterOrEqual(t, res.DurationMS, int64(0))
}

func TestRiskAssessment(t *testing.T) {
	low := assessRisk([]Finding{{Severity: common.SeverityLow}})
	crit := assessRisk([]Finding{
		{Severity: common.SeverityCritical},
		{Severity: common.SeverityCritical},
		{Severity: common.SeverityCritical},
	})
	assert.Less(t, low.Score, crit.Score)
	assert.Equal(t, common.SeverityCritical, crit.Level)
	assert.LessOrEqual(t, crit.Score, 100)
}

func TestResultUnknownID(t *testing.T) {
	e := NewExecutor()
	_, err := e.Result("missing")
	var nf *common.NotFoundError
	assert.ErrorAs(t, err, &nf)
}

type fakeDirectory struct {
	threats map[string]*response.ThreatEvent
}

func (d *fakeDirectory) GetThreat(id string) (*response.ThreatEvent, error) {
	t, ok := d.threats[id]
	if !ok {
		return nil, &common.NotFoundError{Kind: "threat", ID: id}
	}
	return t, nil
}

func TestInvestigateUnknownThreat(t *testing.T) {
	inv := &Investigator{
		Directory: &fakeDirectory{threats: map[string]*response.ThreatEvent{}},
		Store:     indicator.NewMemoryStore(),
		Matcher:   indicator.NewMatcher(indicator.NewMemoryStore(), 25),
	}
	_, err := inv.Investigate(context.Background(), "ghost")
	var nf *common.NotFoundError
	assert.ErrorAs(t, err, &nf)
}

func TestInvestigateBuildsEvidence(t *testing.T) {
	ctx := context.Background()
	store := indicator.NewMemoryStore()
	seen := time.Date(2025, 5, 20, 8, 0, 0, 0, time.UTC)
	_, err := store.Upsert(ctx, indicator.Indicator{
		Type:       indicator.TypeIP,
		Value:      "203.0.113.7",
		ThreatType: common.ThreatCommandControl,
		Severity:   common.SeverityHigh,
		Confidence: 90,
		Source:     "feed-a",
		FirstSeen:  seen,
		LastSeen:   seen.Add(time.Hour),
	})
	require.NoError(t, err)

	stored, err := store.Get(ctx, indicator.TypeIP, "203.0.113.7")
	require.NoError(t, err)

	threat := &response.ThreatEvent{
		ID:             "th-1",
		Type:           common.ThreatCommandControl,
		Severity:       common.SeverityHigh,
		IndicatorIDs:   []string{stored.ID},
		ImpactScore:    60,
		AffectedAssets: []string{"host-1"},
	}
	inv := &Investigator{
		Directory: &fakeDirectory{threats: map[string]*response.ThreatEvent{"th-1": threat}},
		Store:     store,
		Matcher:   indicator.NewMatcher(store, 25),
	}

	res, err := inv.Investigate(ctx, "th-1")
	require.NoError(t, err)
	assert.Equal(t, common.InvestigationCompleted, res.Status)
	assert.NotEmpty(t, res.Evidence)
	assert.NotEmpty(t, res.Timeline)
	require.NotNil(t, res.Attribution)
	assert.Equal(t, "unattributed", res.Attribution.Actor)
	assert.Equal(t, 60, res.Impact.ImpactScore)
}
