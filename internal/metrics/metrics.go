package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	FeedSyncs = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tw_feed_sync_total",
			Help: "Feed sync attempts",
		},
		[]string{"feed", "status"},
	)

	FeedSyncDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name: "tw_feed_sync_duration_seconds",
			Help: "Feed sync duration",
		},
	)

	IndicatorsStored = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tw_indicators_stored",
			Help: "Indicators currently in the store",
		},
	)

	Anomalies = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tw_anomalies_total",
			Help: "Detected anomalies",
		},
		[]string{"severity"},
	)

	PlaybookExecutions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tw_playbook_executions_total",
			Help: "Playbook executions",
		},
		[]string{"playbook", "status"},
	)

	Hunts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tw_hunts_total",
			Help: "Threat hunting queries",
		},
		[]string{"status"},
	)
)
