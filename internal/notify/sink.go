package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/segmentio/kafka-go"
)

// Sink delivers incident reports and orchestration results to downstream
// consumers. Delivery is fire-and-forget: the orchestrator logs failures and
// moves on, it never rolls back on a sink error.
type Sink interface {
	Publish(ctx context.Context, subject string, payload any) error
}

// WebhookSink POSTs payloads to a fixed URL.
type WebhookSink struct {
	URL    string
	Client *http.Client
}

func NewWebhookSink(url string) *WebhookSink {
	return &WebhookSink{
		URL:    url,
		Client: &http.Client{Timeout: 5 * time.Second},
	}
}

func (s *WebhookSink) Publish(ctx context.Context, subject string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.URL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-TW-Subject", subject)

	resp, err := s.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}

// KafkaSink writes payloads to a topic, keyed by subject.
type KafkaSink struct {
	writer *kafka.Writer
}

func NewKafkaSink(brokers []string, topic string) *KafkaSink {
	return &KafkaSink{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			RequiredAcks: kafka.RequireAll,
			Balancer:     &kafka.LeastBytes{},
		},
	}
}

func (s *KafkaSink) Publish(ctx context.Context, subject string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return s.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(subject),
		Value: data,
		Time:  time.Now(),
	})
}

func (s *KafkaSink) Close() error { return s.writer.Close() }

// MultiSink fans out to several sinks, logging each failure independently.
type MultiSink []Sink

func (m MultiSink) Publish(ctx context.Context, subject string, payload any) error {
	for _, s := range m {
		if err := s.Publish(ctx, subject, payload); err != nil {
			slog.Error("sink publish failed", "subject", subject, "err", err)
		}
	}
	return nil
}
