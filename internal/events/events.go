// Package events publishes activity events to Kafka. Events carry metadata
// only (who, what, how long); transcript and note text are never published.
//
// Without brokers the [Publisher] runs in log-only mode: events are written
// to the debug log and counted, nothing leaves the process.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/segmentio/kafka-go"

	"github.com/MrWong99/elektron/internal/observe"
)

// Type names an activity event.
type Type string

const (
	TypeSOAPGenerated          Type = "soap.generated"
	TypeSOAPRefined            Type = "soap.refined"
	TypeTranscriptionCompleted Type = "transcription.completed"
)

// Event is the JSON payload of one message.
type Event struct {
	ID         string    `json:"id"`
	Type       Type      `json:"type"`
	OccurredAt time.Time `json:"occurred_at"`
	User       string    `json:"user"`

	NoteID    string `json:"note_id,omitempty"`
	Strategy  string `json:"strategy,omitempty"`
	Fallbacks int    `json:"fallback_sections,omitempty"`

	Model    string   `json:"model,omitempty"`
	Language string   `json:"language,omitempty"`
	Duration float64  `json:"audio_seconds,omitempty"`
	Score    *float64 `json:"confidence,omitempty"`

	ElapsedMS int64 `json:"elapsed_ms"`
}

// MessageWriter is the subset of *kafka.Writer the publisher needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Config configures a [Publisher].
type Config struct {
	Brokers []string
	Topic   string
}

// Publisher writes events to one topic, keyed by user so a user's events
// stay ordered within a partition.
type Publisher struct {
	writer  MessageWriter
	topic   string
	metrics *observe.Metrics
	now     func() time.Time
}

// Option configures a [Publisher].
type Option func(*Publisher)

// WithWriter replaces the Kafka writer, enabling publishing regardless of
// the configured brokers.
func WithWriter(w MessageWriter) Option {
	return func(p *Publisher) { p.writer = w }
}

// WithMetrics overrides the metrics sink. Default observe.DefaultMetrics().
func WithMetrics(m *observe.Metrics) Option {
	return func(p *Publisher) { p.metrics = m }
}

// New builds a publisher. With no brokers and no [WithWriter] it runs in
// log-only mode.
func New(cfg Config, opts ...Option) *Publisher {
	p := &Publisher{topic: cfg.Topic, now: time.Now}
	for _, opt := range opts {
		opt(p)
	}
	if p.metrics == nil {
		p.metrics = observe.DefaultMetrics()
	}

	if p.writer == nil && len(cfg.Brokers) > 0 {
		dialer := &kafka.Dialer{Timeout: 10 * time.Second, DualStack: true}
		p.writer = &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers...),
			Topic:        cfg.Topic,
			Balancer:     &kafka.Hash{},
			BatchTimeout: 50 * time.Millisecond,
			WriteTimeout: 10 * time.Second,
			RequiredAcks: kafka.RequireOne,
			Async:        true,
			Transport:    &kafka.Transport{Dial: dialer.DialFunc},
			Completion:   p.completion,
		}
		slog.Info("events: kafka publisher initialised", "brokers", cfg.Brokers, "topic", cfg.Topic)
	} else if p.writer == nil {
		slog.Info("events: no brokers configured, using log-only mode")
	}
	return p
}

// Enabled reports whether events leave the process.
func (p *Publisher) Enabled() bool { return p.writer != nil }

// Publish fills ID and OccurredAt when empty and sends e. In async mode
// delivery errors surface through the log and metrics only.
func (p *Publisher) Publish(ctx context.Context, e Event) error {
	if e.OccurredAt.IsZero() {
		e.OccurredAt = p.now().UTC()
	}
	if e.ID == "" {
		e.ID = ulid.MustNew(ulid.Timestamp(e.OccurredAt), ulid.DefaultEntropy()).String()
	}

	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("events: marshal %s: %w", e.Type, err)
	}
	log := observe.Logger(ctx)
	log.Debug("publishing event", "type", e.Type, "id", e.ID, "topic", p.topic)

	if p.writer == nil {
		p.record(ctx, e.Type, "logged")
		return nil
	}

	msg := kafka.Message{
		Key:   []byte(e.User),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(e.Type)},
			{Key: "correlation_id", Value: []byte(observe.CorrelationID(ctx))},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.record(ctx, e.Type, "error")
		log.Error("failed to publish event", "type", e.Type, "id", e.ID, "err", err)
		return fmt.Errorf("events: publish %s: %w", e.Type, err)
	}
	p.record(ctx, e.Type, "ok")
	return nil
}

// completion receives async delivery results from the kafka writer.
func (p *Publisher) completion(msgs []kafka.Message, err error) {
	if err == nil {
		return
	}
	for _, m := range msgs {
		t := Type(headerValue(m.Headers, "event_type"))
		p.record(context.Background(), t, "error")
		slog.Error("events: async delivery failed", "type", t, "err", err)
	}
}

func (p *Publisher) record(ctx context.Context, t Type, status string) {
	p.metrics.RecordEvent(ctx, string(t), status)
}

// Close flushes pending messages and closes the writer.
func (p *Publisher) Close() error {
	if p.writer == nil {
		return nil
	}
	if err := p.writer.Close(); err != nil {
		return fmt.Errorf("events: close writer: %w", err)
	}
	return nil
}

func headerValue(hs []kafka.Header, key string) string {
	for _, h := range hs {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}
