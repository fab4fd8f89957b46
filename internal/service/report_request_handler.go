package service

import (
	"context"

	"ai-report-be/internal/dto"
	"ai-report-be/internal/pkg/logger"
	"ai-report-be/internal/pkg/serverutils"
	"ai-report-be/pkg/events"
)

// NewReportRequestHandler queues runs requested over the event bus.
// Malformed requests are logged and acknowledged; queueing failures are
// returned so the bus redelivers.
func NewReportRequestHandler(reportService IReportService, log logger.ILogger) func(ctx context.Context, event events.BaseEvent) error {
	return func(ctx context.Context, event events.BaseEvent) error {
		req := &dto.CreateReportRequest{
			Query:      event.String("query"),
			Collection: event.String("collection"),
		}
		if err := serverutils.ValidateRequest(req); err != nil {
			log.Warn("REPORT", "Ignoring invalid report request", map[string]interface{}{
				"event": event.Type,
				"error": err.Error(),
			})
			return nil
		}

		res, err := reportService.Enqueue(ctx, req)
		if err != nil {
			return err
		}

		log.Info("REPORT", "Report requested via event bus", map[string]interface{}{
			"run_id":       res.Id.String(),
			"requested_by": event.String("requested_by"),
		})
		return nil
	}
}
