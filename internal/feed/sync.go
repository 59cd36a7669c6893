package feed

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"threatwatch/internal/common"
	"threatwatch/internal/indicator"
	"threatwatch/internal/metrics"
	"threatwatch/internal/sched"
)

// SyncFeed pulls one feed and merges its records into the indicator store.
// Records below the feed's confidence threshold or outside its configured
// indicator types are dropped. Individual record failures are collected into
// the result, not raised.
func (r *Registry) SyncFeed(ctx context.Context, feedID string) (SyncResult, error) {
	cfg, err := r.Get(feedID)
	if err != nil {
		return SyncResult{}, err
	}
	res := SyncResult{FeedID: cfg.ID, FeedName: cfg.Name}

	if !cfg.Enabled {
		slog.Debug("skipping disabled feed", "feed", cfg.Name)
		return res, nil
	}

	fetcher, ok := r.fetchers[cfg.Provider]
	if !ok {
		return res, common.NewValidationError("unknown feed provider %q", cfg.Provider)
	}

	start := time.Now()
	var records []indicator.Indicator
	err = withRetry(ctx, cfg.Name, func() error {
		var ferr error
		records, ferr = fetcher.Fetch(ctx, *cfg)
		return ferr
	})
	metrics.FeedSyncDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.FeedSyncs.WithLabelValues(cfg.Name, "error").Inc()
		res.Errors = append(res.Errors, err.Error())
		return res, nil
	}

	for _, rec := range records {
		if rec.Confidence < cfg.ConfidenceThreshold {
			continue
		}
		if len(cfg.IndicatorTypes) > 0 && !typeAllowed(cfg.IndicatorTypes, rec.Type) {
			continue
		}
		res.TotalIndicators++
		outcome, err := r.store.Upsert(ctx, rec)
		if err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("%s: %v", rec.Key(), err))
			continue
		}
		switch outcome {
		case indicator.OutcomeInserted:
			res.NewIndicators++
		case indicator.OutcomeUpdated:
			res.UpdatedIndicators++
		}
	}

	r.markSynced(cfg.ID, time.Now().UTC())
	metrics.FeedSyncs.WithLabelValues(cfg.Name, "ok").Inc()
	slog.Info("feed synced", "feed", cfg.Name,
		"total", res.TotalIndicators, "new", res.NewIndicators,
		"updated", res.UpdatedIndicators, "errors", len(res.Errors))
	return res, nil
}

// SyncAll syncs every enabled feed, highest priority first. Disabled feeds are
// never contacted. Per-feed failures are aggregated; the batch never aborts.
func (r *Registry) SyncAll(ctx context.Context) BatchSyncResult {
	batch := BatchSyncResult{}
	for _, cfg := range r.List() {
		if !cfg.Enabled {
			continue
		}
		res, err := r.SyncFeed(ctx, cfg.ID)
		if err != nil {
			batch.Errors = append(batch.Errors, fmt.Sprintf("%s: %v", cfg.Name, err))
			continue
		}
		batch.FeedResults = append(batch.FeedResults, res)
		for _, e := range res.Errors {
			batch.Errors = append(batch.Errors, fmt.Sprintf("%s: %s", cfg.Name, e))
		}
	}
	batch.Success = len(batch.Errors) == 0
	return batch
}

// Schedule attaches the scheduler and installs one recurring sync task per
// enabled feed. Each feed gets its own timer at its refresh interval; a
// failing feed cannot stall the rest. Feeds that become enabled later get
// their timer from Register or Enable.
func (r *Registry) Schedule(s *sched.Scheduler) {
	r.mu.Lock()
	r.sched = s
	r.mu.Unlock()
	for _, cfg := range r.List() {
		if !cfg.Enabled {
			continue
		}
		r.scheduleFeed(cfg)
	}
}

// scheduleFeed installs the recurring sync timer for one feed, at most once
// per feed id. A timer outlives disable/enable cycles; SyncFeed skips the
// feed while it is disabled.
func (r *Registry) scheduleFeed(cfg Config) {
	r.mu.Lock()
	if r.sched == nil || r.scheduled[cfg.ID] {
		r.mu.Unlock()
		return
	}
	r.scheduled[cfg.ID] = true
	s := r.sched
	r.mu.Unlock()

	id := cfg.ID
	s.Every("feed-sync-"+cfg.Name, cfg.RefreshEvery(), func(ctx context.Context) {
		if _, err := r.SyncFeed(ctx, id); err != nil {
			slog.Error("scheduled sync failed", "feed", id, "err", err)
		}
	})
}

func typeAllowed(allowed []indicator.Type, t indicator.Type) bool {
	for _, a := range allowed {
		if a == t {
			return true
		}
	}
	return false
}
