package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"threatwatch/internal/behavior"
	"threatwatch/internal/common"
	"threatwatch/internal/config"
	"threatwatch/internal/feed"
	"threatwatch/internal/hunting"
	"threatwatch/internal/indicator"
	"threatwatch/internal/notify"
	"threatwatch/internal/response"
	"threatwatch/internal/sched"
	"threatwatch/internal/server"
)

func main() {
	cfg := config.Load()
	thresholds, err := config.LoadThresholds(cfg.ThresholdsFile)
	if err != nil {
		slog.Error("thresholds load failed, using defaults", "err", err)
	}

	var store indicator.Store
	if cfg.RedisAddr != "" {
		store = indicator.NewRedisStore(cfg.RedisAddr)
		slog.Info("using redis indicator store", "addr", cfg.RedisAddr)
	} else {
		store = indicator.NewMemoryStore()
	}

	var sinks notify.MultiSink
	if cfg.WebhookURL != "" {
		sinks = append(sinks, notify.NewWebhookSink(cfg.WebhookURL))
	}
	if len(cfg.KafkaBrokers) > 0 {
		sinks = append(sinks, notify.NewKafkaSink(cfg.KafkaBrokers, cfg.KafkaTopic))
	}
	var sink notify.Sink
	if len(sinks) > 0 {
		sink = sinks
	}

	client := &http.Client{Timeout: 30 * time.Second}
	registry := feed.NewRegistry(store, feed.HTTPProbe(client))
	registry.RegisterFetcher(feed.NewMISPFetcher(client))
	registry.RegisterFetcher(feed.NewOTXFetcher(client))
	registry.RegisterFetcher(feed.NewGenericFetcher(client))

	matcher := indicator.NewMatcher(store, thresholds.MatchWeight)
	engine := behavior.NewEngine(thresholds)
	events := behavior.NewEventLog(0)

	responder := response.NewEngine(
		&response.DefaultRunner{Store: store, Sink: sink},
		sink,
		thresholds.MaxConcurrentPlaybooks,
	)
	for _, p := range response.Defaults() {
		responder.RegisterPlaybook(p)
	}
	if cfg.PlaybookDir != "" {
		playbooks, err := response.LoadDir(cfg.PlaybookDir)
		if err != nil {
			slog.Error("playbook dir load failed", "dir", cfg.PlaybookDir, "err", err)
			os.Exit(1)
		}
		for _, p := range playbooks {
			responder.RegisterPlaybook(p)
		}
	}

	hunter := hunting.NewExecutor(&hunting.StoreDataSource{Store: store, Events: events.All})
	investigator := &hunting.Investigator{Directory: responder, Store: store, Matcher: matcher}

	scheduler := sched.New()
	registry.Schedule(scheduler)
	// Each tick analyzes only the events ingested since the previous one, so
	// the same events never fold into the baselines twice.
	var behaviorCursor uint64
	scheduler.Every("behavior-analysis", cfg.BehaviorTick, func(ctx context.Context) {
		evs, next := events.Since(behaviorCursor)
		behaviorCursor = next
		if len(evs) == 0 {
			return
		}
		res := engine.AnalyzeBehavior(evs)
		if res.OverallRiskScore > 0 {
			slog.Info("behavioral analysis", "entities", len(res.Entities),
				"risk", res.OverallRiskScore)
		}
	})
	scheduler.Every("anomaly-detection", cfg.AnomalyTick, func(ctx context.Context) {
		snapshot := metricsSnapshot(events.All())
		res := engine.DetectAnomalies(snapshot)
		threat, ok := promoteAnomaly(res)
		if !ok {
			return
		}
		if _, err := responder.OrchestrateResponse(ctx, threat); err != nil {
			slog.Error("anomaly response failed", "err", err)
		}
	})

	srv := server.New(registry, matcher, engine, events, hunter, investigator, responder)
	srv.StartMetrics(cfg.MetricsAddr)

	httpSrv := &http.Server{Addr: cfg.HTTPAddr, Handler: srv.Router()}
	go func() {
		slog.Info("listening", "addr", cfg.HTTPAddr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	slog.Info("shutting down")
	scheduler.Stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
	}
}

// promoteAnomaly turns a drift detection into a threat event once the
// configured drift-action threshold is crossed.
func promoteAnomaly(res *behavior.AnomalyDetectionResult) (response.ThreatEvent, bool) {
	if !res.Promote {
		return response.ThreatEvent{}, false
	}
	return response.ThreatEvent{
		Type:       common.ThreatAnomalous,
		Severity:   res.Severity,
		Confidence: res.DeviationMagnitude * 10,
	}, true
}

// metricsSnapshot derives a SecurityMetrics point from the recent event
// history, feeding the anomaly tick when no external monitoring pushes one.
func metricsSnapshot(events []behavior.SecurityEvent) behavior.SecurityMetrics {
	var m behavior.SecurityMetrics
	if len(events) == 0 {
		return m
	}
	cutoff := time.Now().Add(-time.Minute)
	destinations := make(map[string]struct{})
	var riskSum float64
	for _, ev := range events {
		riskSum += ev.RiskScore
		if ev.Timestamp.After(cutoff) {
			m.EventsPerMinute++
		}
		if ev.Type == "auth-failure" {
			m.FailedLogins++
		}
		if ev.Endpoint != "" {
			destinations[ev.Endpoint] = struct{}{}
		}
	}
	m.AvgRiskScore = riskSum / float64(len(events))
	m.UniqueDestinations = float64(len(destinations))
	return m
}
