package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"ai-report-be/internal/pkg/logger"
	"ai-report-be/pkg/events"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// EventHandler processes one event. A returned error naks the message so
// JetStream redelivers it.
type EventHandler func(ctx context.Context, event events.BaseEvent) error

// Subscriber handles listening for events from NATS.
type Subscriber struct {
	nc     *nats.Conn
	js     jetstream.JetStream
	log    logger.ILogger
	active []jetstream.ConsumeContext
}

func NewSubscriber(url string, log logger.ILogger) (*Subscriber, error) {
	nc, js, err := connect(url, "ai-report-subscriber")
	if err != nil {
		return nil, err
	}
	return &Subscriber{nc: nc, js: js, log: log}, nil
}

// Subscribe registers a durable consumer for subject so no message is lost
// across restarts.
func (s *Subscriber) Subscribe(ctx context.Context, subject, durableName string, handler EventHandler) error {
	consumer, err := s.js.CreateOrUpdateConsumer(ctx, StreamName, jetstream.ConsumerConfig{
		Durable:       durableName,
		FilterSubject: subject,
		AckPolicy:     jetstream.AckExplicitPolicy,
		MaxDeliver:    5,
	})
	if err != nil {
		return fmt.Errorf("failed to create consumer: %w", err)
	}

	cc, err := consumer.Consume(func(msg jetstream.Msg) {
		event, err := DecodeEvent(msg.Subject(), msg.Data())
		if err != nil {
			s.log.Error("NATS", "Dropping undecodable event", map[string]interface{}{
				"subject": msg.Subject(),
				"error":   err.Error(),
			})
			// Redelivery would fail the same way.
			_ = msg.Term()
			return
		}

		if err := handler(ctx, event); err != nil {
			s.log.Error("NATS", "Handler failed", map[string]interface{}{
				"subject": msg.Subject(),
				"error":   err.Error(),
			})
			_ = msg.Nak()
			return
		}

		_ = msg.Ack()
	})
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}
	s.active = append(s.active, cc)

	s.log.Info("NATS", "Subscribed", map[string]interface{}{
		"subject": subject,
		"durable": durableName,
	})
	return nil
}

// DecodeEvent accepts both the envelope written by Publisher and a bare JSON
// object, in which case the type is taken from the subject.
func DecodeEvent(subject string, data []byte) (events.BaseEvent, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return events.BaseEvent{}, err
	}

	if env.Type != "" && env.Data != nil {
		if env.OccurredAt.IsZero() {
			env.OccurredAt = time.Now()
		}
		return events.BaseEvent{Type: env.Type, Data: env.Data, OccurredAt: env.OccurredAt}, nil
	}

	var payload map[string]interface{}
	if err := json.Unmarshal(data, &payload); err != nil {
		return events.BaseEvent{}, err
	}
	return events.BaseEvent{
		Type:       strings.TrimPrefix(subject, events.SubjectPrefix),
		Data:       payload,
		OccurredAt: time.Now(),
	}, nil
}

func (s *Subscriber) Close() {
	for _, cc := range s.active {
		cc.Stop()
	}
	if s.nc != nil {
		s.nc.Close()
	}
}
