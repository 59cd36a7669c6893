package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"time"

	"threatwatch/internal/config"
	"threatwatch/internal/feed"
	"threatwatch/internal/indicator"
)

// feed-loader registers the feeds listed in a JSON file, runs one sync batch
// and prints the result. Useful for seeding a store or smoke-testing feeds.
func main() {
	var (
		feedFile = flag.String("feeds", "feeds.json", "JSON file with an array of feed configs")
		timeout  = flag.Duration("timeout", 2*time.Minute, "overall deadline")
	)
	flag.Parse()

	cfg := config.Load()

	var store indicator.Store
	if cfg.RedisAddr != "" {
		store = indicator.NewRedisStore(cfg.RedisAddr)
	} else {
		store = indicator.NewMemoryStore()
	}

	client := &http.Client{Timeout: 30 * time.Second}
	registry := feed.NewRegistry(store, feed.HTTPProbe(client))
	registry.RegisterFetcher(feed.NewMISPFetcher(client))
	registry.RegisterFetcher(feed.NewOTXFetcher(client))
	registry.RegisterFetcher(feed.NewGenericFetcher(client))

	data, err := os.ReadFile(*feedFile)
	if err != nil {
		slog.Error("read feed file failed", "file", *feedFile, "err", err)
		os.Exit(1)
	}
	var feeds []feed.Config
	if err := json.Unmarshal(data, &feeds); err != nil {
		slog.Error("parse feed file failed", "err", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	for _, fc := range feeds {
		if _, err := registry.Register(ctx, fc); err != nil {
			slog.Error("feed registration failed", "feed", fc.Name, "err", err)
		}
	}

	batch := registry.SyncAll(ctx)
	out, _ := json.MarshalIndent(batch, "", "  ")
	os.Stdout.Write(append(out, '\n'))
	if !batch.Success {
		os.Exit(1)
	}
}
