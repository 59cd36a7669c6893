package feed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"threatwatch/internal/common"
	"threatwatch/internal/indicator"
)

func serveJSON(t *testing.T, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestGenericFetcher(t *testing.T) {
	srv := serveJSON(t, `[
		{"type":"ip","value":"198.51.100.7","threat_type":"command_and_control","severity":"high","confidence":90},
		{"type":"hash","value":"d41d8cd98f00b204e9800998ecf8427e","confidence":55}
	]`)

	f := NewGenericFetcher(srv.Client())
	got, err := f.Fetch(context.Background(), Config{Name: "generic-feed", FeedURL: srv.URL})
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, indicator.TypeIP, got[0].Type)
	assert.Equal(t, common.ThreatCommandControl, got[0].ThreatType)
	assert.Equal(t, common.SeverityHigh, got[0].Severity)
	assert.Equal(t, "generic-feed", got[0].Source)
	assert.False(t, got[0].FirstSeen.IsZero())
	assert.False(t, got[0].LastSeen.Before(got[0].FirstSeen))

	// Missing fields pick up defaults.
	assert.Equal(t, common.SeverityMedium, got[1].Severity)
}

func TestMISPFetcher(t *testing.T) {
	srv := serveJSON(t, `{"response":{"Attribute":[
		{"type":"ip-dst","value":"203.0.113.5"},
		{"type":"sha256","value":"aaaa"},
		{"type":"unsupported-kind","value":"x"}
	]}}`)

	f := NewMISPFetcher(srv.Client())
	got, err := f.Fetch(context.Background(), Config{Name: "misp-feed", FeedURL: srv.URL, FeedType: "malware"})
	require.NoError(t, err)
	require.Len(t, got, 2, "unsupported attribute types are skipped")
	assert.Equal(t, indicator.TypeIP, got[0].Type)
	assert.Equal(t, indicator.TypeHash, got[1].Type)
	assert.Equal(t, common.ThreatMalware, got[0].ThreatType)
}

func TestOTXFetcher(t *testing.T) {
	srv := serveJSON(t, `{"results":[{"indicators":[
		{"type":"IPv4","indicator":"192.0.2.44"},
		{"type":"FileHash-SHA256","indicator":"bbbb"}
	]}]}`)

	f := NewOTXFetcher(srv.Client())
	got, err := f.Fetch(context.Background(), Config{Name: "otx-feed", FeedURL: srv.URL})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "otx-feed", got[0].Source)
}

func TestFetcherNon200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	t.Cleanup(srv.Close)

	f := NewGenericFetcher(srv.Client())
	_, err := f.Fetch(context.Background(), Config{Name: "down", FeedURL: srv.URL})
	assert.Error(t, err)
}
