package feed

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"threatwatch/internal/common"
	"threatwatch/internal/indicator"
	"threatwatch/internal/sched"
)

const probeTimeout = 10 * time.Second

// Prober tests whether a feed endpoint is reachable. Injectable so tests and
// offline deployments can skip real network probes.
type Prober func(ctx context.Context, url string) error

// HTTPProbe is the default prober: a HEAD request with a short timeout.
func HTTPProbe(client *http.Client) Prober {
	return func(ctx context.Context, url string) error {
		ctx, cancel := context.WithTimeout(ctx, probeTimeout)
		defer cancel()
		req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
		if err != nil {
			return err
		}
		resp, err := client.Do(req)
		if err != nil {
			return err
		}
		resp.Body.Close()
		if resp.StatusCode >= 500 {
			return fmt.Errorf("probe returned status %d", resp.StatusCode)
		}
		return nil
	}
}

// Registry owns feed configuration and sync. All feed mutation goes through it.
type Registry struct {
	mu        sync.RWMutex
	feeds     map[string]*Config
	store     indicator.Store
	fetchers  map[string]Fetcher
	probe     Prober
	sched     *sched.Scheduler
	scheduled map[string]bool
}

func NewRegistry(store indicator.Store, probe Prober) *Registry {
	return &Registry{
		feeds:     make(map[string]*Config),
		store:     store,
		fetchers:  make(map[string]Fetcher),
		probe:     probe,
		scheduled: make(map[string]bool),
	}
}

// RegisterFetcher installs the provider adapter used for feeds of that provider.
func (r *Registry) RegisterFetcher(f Fetcher) {
	r.fetchers[f.Provider()] = f
}

// Register validates and stores a feed configuration, probing connectivity
// first. A feed whose probe fails is stored disabled; if the caller asked for
// an enabled feed the ConnectivityError is returned alongside the assigned id.
// An enabled feed gets an initial sync before Register returns.
func (r *Registry) Register(ctx context.Context, cfg Config) (string, error) {
	if cfg.Name == "" || cfg.FeedURL == "" {
		return "", common.NewValidationError("Feed name and URL are required")
	}
	if _, ok := r.fetchers[cfg.Provider]; !ok {
		return "", common.NewValidationError("unknown feed provider %q", cfg.Provider)
	}
	if cfg.RefreshInterval <= 0 {
		cfg.RefreshInterval = 60
	}
	if cfg.ID == "" {
		cfg.ID = uuid.NewString()
	}

	wantedEnabled := cfg.Enabled

	var probeErr error
	if err := r.probe(ctx, cfg.FeedURL); err != nil {
		probeErr = &common.ConnectivityError{Feed: cfg.Name, Err: err}
		cfg.Enabled = false
		slog.Warn("feed probe failed, storing disabled", "feed", cfg.Name, "err", err)
	}

	r.mu.Lock()
	r.feeds[cfg.ID] = &cfg
	r.mu.Unlock()

	if probeErr != nil {
		// Registration still succeeds when the caller did not ask for an
		// enabled feed; the connectivity failure surfaces otherwise.
		if wantedEnabled {
			return cfg.ID, probeErr
		}
		return cfg.ID, nil
	}

	if wantedEnabled {
		if res, err := r.SyncFeed(ctx, cfg.ID); err != nil {
			slog.Error("initial sync failed", "feed", cfg.Name, "err", err)
		} else {
			slog.Info("initial sync complete", "feed", cfg.Name,
				"new", res.NewIndicators, "updated", res.UpdatedIndicators)
		}
		r.scheduleFeed(cfg)
	}
	return cfg.ID, nil
}

// Get returns a copy of the feed config, or a NotFoundError.
func (r *Registry) Get(id string) (*Config, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cfg, ok := r.feeds[id]
	if !ok {
		return nil, &common.NotFoundError{Kind: "feed", ID: id}
	}
	cp := *cfg
	return &cp, nil
}

// List returns all feeds ordered by priority, highest first.
func (r *Registry) List() []Config {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Config, 0, len(r.feeds))
	for _, cfg := range r.feeds {
		out = append(out, *cfg)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Priority > out[j].Priority })
	return out
}

// Disable turns a feed off. Feeds are never deleted; an installed sync timer
// keeps firing but the sync itself becomes a no-op.
func (r *Registry) Disable(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cfg, ok := r.feeds[id]
	if !ok {
		return &common.NotFoundError{Kind: "feed", ID: id}
	}
	cfg.Enabled = false
	return nil
}

// Enable turns a feed back on and installs its sync timer if one is not
// already running.
func (r *Registry) Enable(id string) error {
	r.mu.Lock()
	cfg, ok := r.feeds[id]
	if !ok {
		r.mu.Unlock()
		return &common.NotFoundError{Kind: "feed", ID: id}
	}
	cfg.Enabled = true
	cp := *cfg
	r.mu.Unlock()
	r.scheduleFeed(cp)
	return nil
}

func (r *Registry) markSynced(id string, at time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cfg, ok := r.feeds[id]; ok {
		cfg.LastSync = at
	}
}
