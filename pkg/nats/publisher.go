package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"ai-report-be/internal/pkg/logger"
	"ai-report-be/pkg/events"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// Publisher handles sending events to the NATS bus.
type Publisher struct {
	nc *nats.Conn
	js jetstream.JetStream
}

// NewPublisher connects and makes sure the EVENTS stream exists.
func NewPublisher(url string, log logger.ILogger) (*Publisher, error) {
	nc, js, err := connect(url, "ai-report-publisher")
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      StreamName,
		Subjects:  []string{events.SubjectPrefix + ">"},
		Storage:   jetstream.FileStorage,
		Retention: jetstream.LimitsPolicy,
		MaxAge:    7 * 24 * time.Hour,
	})
	if err != nil {
		// The stream may already exist with a different config, or the
		// server is still starting. Publishing will surface real failures.
		log.Warn("NATS", "Failed to ensure stream", map[string]interface{}{
			"stream": StreamName,
			"error":  err.Error(),
		})
	}

	return &Publisher{nc: nc, js: js}, nil
}

type envelope struct {
	Type       string                 `json:"type"`
	OccurredAt time.Time              `json:"occurred_at"`
	Data       map[string]interface{} `json:"data"`
}

// Publish sends an event to events.<type>.
func (p *Publisher) Publish(ctx context.Context, event events.Event) error {
	data, err := json.Marshal(envelope{
		Type:       event.EventType(),
		OccurredAt: event.Timestamp(),
		Data:       event.Payload(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal event payload: %w", err)
	}

	subject := events.Subject(event.EventType())

	if _, err := p.js.Publish(ctx, subject, data); err != nil {
		return fmt.Errorf("failed to publish event to subject %s: %w", subject, err)
	}

	return nil
}

func (p *Publisher) Close() {
	if p.nc != nil {
		p.nc.Close()
	}
}
