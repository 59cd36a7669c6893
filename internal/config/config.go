package config

import (
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds service configuration
type Config struct {
	HTTPAddr    string
	MetricsAddr string

	// Optional durable indicator store. Empty means in-memory.
	RedisAddr string

	// Incident sinks. Either may be empty.
	WebhookURL   string
	KafkaBrokers []string
	KafkaTopic   string

	PlaybookDir    string
	ThresholdsFile string

	BehaviorTick time.Duration
	AnomalyTick  time.Duration
}

// Load reads a .env file if present, then environment variables, and returns a Config.
func Load() *Config {
	_ = godotenv.Load()
	return &Config{
		HTTPAddr:       getEnv("TW_HTTP_ADDR", ":8080"),
		MetricsAddr:    getEnv("TW_METRICS_ADDR", ":9090"),
		RedisAddr:      getEnv("TW_REDIS_ADDR", ""),
		WebhookURL:     getEnv("TW_WEBHOOK_URL", ""),
		KafkaBrokers:   splitList(getEnv("TW_KAFKA_BROKERS", "")),
		KafkaTopic:     getEnv("TW_KAFKA_TOPIC", "incident-reports"),
		PlaybookDir:    getEnv("TW_PLAYBOOK_DIR", ""),
		ThresholdsFile: getEnv("TW_THRESHOLDS_FILE", ""),
		BehaviorTick:   getDuration("TW_BEHAVIOR_TICK", 5*time.Minute),
		AnomalyTick:    getDuration("TW_ANOMALY_TICK", time.Minute),
	}
}

func getEnv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getDuration(k string, def time.Duration) time.Duration {
	if v := os.Getenv(k); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}
