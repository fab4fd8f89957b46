package handler

import (
	"context"
	"time"

	"ai-report-be/internal/dto"
	"ai-report-be/internal/pkg/logger"
	"ai-report-be/internal/service"
	"ai-report-be/pkg/mapreduce"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
)

const (
	writeWait    = 10 * time.Second
	pollInterval = 500 * time.Millisecond
)

// ReportStatusHandler streams run status changes over a websocket until the
// run reaches a terminal state.
type ReportStatusHandler struct {
	reportService service.IReportService
	auth          fiber.Handler
	logger        logger.ILogger
	pollInterval  time.Duration
	maxWait       time.Duration
}

func NewReportStatusHandler(reportService service.IReportService, auth fiber.Handler, maxWait time.Duration, log logger.ILogger) *ReportStatusHandler {
	return &ReportStatusHandler{
		reportService: reportService,
		auth:          auth,
		logger:        log,
		pollInterval:  pollInterval,
		maxWait:       maxWait,
	}
}

func (h *ReportStatusHandler) RegisterRoutes(r fiber.Router) {
	r.Get("/reports/v1/:id/ws", h.auth, h.Upgrade, websocket.New(h.Stream))
}

// Upgrade rejects non-websocket requests and validates the run ID before the
// connection is hijacked.
func (h *ReportStatusHandler) Upgrade(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid report id")
	}
	c.Locals("run_id", id)
	return c.Next()
}

func (h *ReportStatusHandler) Stream(c *websocket.Conn) {
	defer c.Close()

	id, _ := c.Locals("run_id").(uuid.UUID)
	h.logger.Debug("WS", "Status stream opened", map[string]interface{}{"run_id": id.String()})

	ctx, cancel := context.WithTimeout(context.Background(), h.maxWait)
	defer cancel()

	ticker := time.NewTicker(h.pollInterval)
	defer ticker.Stop()

	var last mapreduce.State
	for {
		status, err := h.reportService.Status(ctx, id)
		switch {
		case err == nil:
			if status.State != last {
				last = status.State
				if !h.send(c, status) {
					return
				}
			}
			if mapreduce.IsTerminal(status.State) {
				h.close(c, websocket.CloseNormalClosure, "run finished")
				return
			}
		case ctx.Err() == nil:
			// Not found yet, or a transient store error. The run may
			// not have been picked up; keep polling until maxWait.
			h.logger.Debug("WS", "Status lookup failed", map[string]interface{}{
				"run_id": id.String(),
				"error":  err.Error(),
			})
		}

		select {
		case <-ctx.Done():
			h.close(c, websocket.CloseGoingAway, "status stream timed out")
			return
		case <-ticker.C:
		}
	}
}

func (h *ReportStatusHandler) send(c *websocket.Conn, status *dto.ReportStatusResponse) bool {
	_ = c.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.WriteJSON(status); err != nil {
		h.logger.Debug("WS", "Client went away", map[string]interface{}{"error": err.Error()})
		return false
	}
	return true
}

func (h *ReportStatusHandler) close(c *websocket.Conn, code int, reason string) {
	_ = c.SetWriteDeadline(time.Now().Add(writeWait))
	_ = c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason))
}
