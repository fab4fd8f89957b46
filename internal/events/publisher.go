package events

import (
	"context"
	"errors"
	"time"

	"ai-report-be/internal/pkg/logger"
	pkgEvents "ai-report-be/pkg/events"
	"ai-report-be/pkg/mapreduce"
)

// EventBus is the transport the lifecycle publisher writes to. *nats.Publisher
// satisfies it.
type EventBus interface {
	Publish(ctx context.Context, event pkgEvents.Event) error
}

// Publisher emits report lifecycle events.
type Publisher interface {
	PublishStarted(ctx context.Context, runID, query, collection string)
	PublishCompleted(ctx context.Context, report *mapreduce.Report, collection string)
	PublishFailed(ctx context.Context, runID, query, collection string, runErr error)
}

type NatsPublisher struct {
	bus    EventBus
	logger logger.ILogger
}

// NewNatsPublisher accepts a nil bus, in which case every publish is a no-op.
func NewNatsPublisher(bus EventBus, logger logger.ILogger) *NatsPublisher {
	return &NatsPublisher{
		bus:    bus,
		logger: logger,
	}
}

func (p *NatsPublisher) PublishStarted(ctx context.Context, runID, query, collection string) {
	p.publish(ctx, pkgEvents.ReportStarted, map[string]interface{}{
		"run_id":     runID,
		"query":      query,
		"collection": collection,
	})
}

func (p *NatsPublisher) PublishCompleted(ctx context.Context, report *mapreduce.Report, collection string) {
	p.publish(ctx, pkgEvents.ReportCompleted, map[string]interface{}{
		"run_id":          report.RunID,
		"query":           report.Query,
		"collection":      collection,
		"total":           report.Counts.Total,
		"informative":     report.Counts.Informative,
		"skipped":         report.Counts.Skipped,
		"failed":          report.Counts.Failed,
		"short_circuited": report.ShortCircuited,
		"duration_ms":     report.Duration().Milliseconds(),
	})
}

func (p *NatsPublisher) PublishFailed(ctx context.Context, runID, query, collection string, runErr error) {
	data := map[string]interface{}{
		"run_id":     runID,
		"query":      query,
		"collection": collection,
		"error":      runErr.Error(),
		"error_kind": string(mapreduce.KindOf(runErr)),
	}
	var re *mapreduce.RunError
	if errors.As(runErr, &re) {
		data["state"] = string(re.State)
	}
	p.publish(ctx, pkgEvents.ReportFailed, data)
}

func (p *NatsPublisher) publish(ctx context.Context, eventType string, data map[string]interface{}) {
	if p.bus == nil {
		return
	}

	evt := pkgEvents.BaseEvent{
		Type:       eventType,
		Data:       data,
		OccurredAt: time.Now(),
	}

	// Lifecycle events must not outlive or be cancelled with the run itself.
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	if err := p.bus.Publish(pubCtx, evt); err != nil {
		p.logger.Error("EVENTS", "Failed to publish event", map[string]interface{}{
			"type":  eventType,
			"error": err.Error(),
		})
	}
}
