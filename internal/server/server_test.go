package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"threatwatch/internal/behavior"
	"threatwatch/internal/config"
	"threatwatch/internal/feed"
	"threatwatch/internal/hunting"
	"threatwatch/internal/indicator"
	"threatwatch/internal/response"
)

type okRunner struct{}

func (okRunner) Run(ctx context.Context, step response.Step, vars map[string]string) (map[string]string, error) {
	return map[string]string{}, nil
}

func newTestServer() *Server {
	store := indicator.NewMemoryStore()
	th := config.DefaultThresholds()

	registry := feed.NewRegistry(store, func(ctx context.Context, url string) error { return nil })
	matcher := indicator.NewMatcher(store, th.MatchWeight)
	engine := behavior.NewEngine(th)
	events := behavior.NewEventLog(0)

	responder := response.NewEngine(okRunner{}, nil, 2)
	for _, p := range response.Defaults() {
		responder.RegisterPlaybook(p)
	}
	hunter := hunting.NewExecutor(&hunting.StoreDataSource{Store: store, Events: events.All})
	investigator := &hunting.Investigator{Directory: responder, Store: store, Matcher: matcher}

	return New(registry, matcher, engine, events, hunter, investigator, responder)
}

func doJSON(t *testing.T, s *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func TestRegisterFeedValidationStatus(t *testing.T) {
	s := newTestServer()
	rec := doJSON(t, s, http.MethodPost, "/v1/feeds", feed.Config{Name: "", FeedURL: "http://x"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Feed name and URL are required", resp["error"])
}

func TestExecutePlaybookNotFoundStatus(t *testing.T) {
	s := newTestServer()
	rec := doJSON(t, s, http.MethodPost, "/v1/playbooks/ghost/execute", response.ExecContext{})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestQueryIndicatorsEmptyIsOK(t *testing.T) {
	s := newTestServer()
	rec := doJSON(t, s, http.MethodPost, "/v1/indicators/query", map[string]any{
		"indicators": []indicator.Lookup{{Type: indicator.TypeIP, Value: "192.0.2.1"}},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var res indicator.IntelligenceResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Empty(t, res.Matches, "unmatched indicators are a valid empty result")
	assert.Equal(t, 0, res.RiskScore)
}

func TestOrchestrateEndToEnd(t *testing.T) {
	s := newTestServer()
	rec := doJSON(t, s, http.MethodPost, "/v1/responses", map[string]any{
		"type":     "malware",
		"severity": "critical",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var res response.OrchestrationResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.True(t, res.ReviewRequired)
	require.Len(t, res.PlaybooksExecuted, 1)
	assert.Equal(t, "malware-containment", res.PlaybooksExecuted[0].PlaybookID)
}

func TestHuntEndpointTerminalStatus(t *testing.T) {
	s := newTestServer()
	rec := doJSON(t, s, http.MethodPost, "/v1/hunts", hunting.Query{
		Hypothesis:  "anything suspicious",
		SearchTerms: []string{"beacon"},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var res hunting.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.True(t, res.Status.Terminal())
	assert.GreaterOrEqual(t, res.DurationMS, int64(0))

	rec = doJSON(t, s, http.MethodGet, "/v1/hunts/"+res.ID, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHealthz(t *testing.T) {
	s := newTestServer()
	rec := doJSON(t, s, http.MethodGet, "/v1/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}
