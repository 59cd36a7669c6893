package feed

import (
	"context"
	"time"

	"threatwatch/internal/indicator"
)

// Config describes one registered threat-intelligence feed. Feeds are never
// deleted, only disabled.
type Config struct {
	ID                  string           `json:"id"`
	Name                string           `json:"name"`
	Provider            string           `json:"provider"` // misp, otx, generic
	FeedType            string           `json:"feed_type"`
	FeedURL             string           `json:"feed_url"`
	RefreshInterval     int              `json:"refresh_interval"` // minutes
	IndicatorTypes      []indicator.Type `json:"indicator_types,omitempty"`
	ConfidenceThreshold float64          `json:"confidence_threshold"`
	Enabled             bool             `json:"enabled"`
	Priority            int              `json:"priority"`
	LastSync            time.Time        `json:"last_sync,omitempty"`
}

// RefreshEvery is the sync period as a duration. RefreshInterval is declared
// in minutes on the wire.
func (c Config) RefreshEvery() time.Duration {
	return time.Duration(c.RefreshInterval) * time.Minute
}

// Fetcher pulls raw indicator records from a provider endpoint and normalizes
// them. One fetcher per provider dialect.
type Fetcher interface {
	Provider() string
	Fetch(ctx context.Context, cfg Config) ([]indicator.Indicator, error)
}

// SyncResult is the outcome of syncing a single feed.
type SyncResult struct {
	FeedID            string   `json:"feed_id"`
	FeedName          string   `json:"feed_name"`
	TotalIndicators   int      `json:"total_indicators"`
	NewIndicators     int      `json:"new_indicators"`
	UpdatedIndicators int      `json:"updated_indicators"`
	Errors            []string `json:"errors,omitempty"`
}

// BatchSyncResult aggregates per-feed results. A failing feed never aborts the
// others; its error lands in Errors and Success flips to false.
type BatchSyncResult struct {
	FeedResults []SyncResult `json:"feed_results"`
	Errors      []string     `json:"errors,omitempty"`
	Success     bool         `json:"success"`
}
