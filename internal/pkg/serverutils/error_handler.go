package serverutils

import (
	"errors"

	"ai-report-be/internal/pkg/logger"
	"ai-report-be/pkg/mapreduce"

	"github.com/gofiber/fiber/v2"
)

// ErrorHandlerMiddleware converts errors returned by handlers into JSON
// responses. Run errors map by kind so clients can tell upstream trouble
// (502/504) from bad input (400).
func ErrorHandlerMiddleware(log logger.ILogger) fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		err := ctx.Next()
		if err == nil {
			return nil
		}

		if fieldErrs, ok := toFieldErrors(err); ok {
			return ctx.Status(fiber.StatusBadRequest).JSON(ValidationErrorResponse(fieldErrs))
		}

		code := StatusCode(err)
		if code >= fiber.StatusInternalServerError {
			log.Error("HTTP", "Request failed", map[string]interface{}{
				"method": ctx.Method(),
				"path":   ctx.Path(),
				"status": code,
				"error":  err.Error(),
			})
		}

		return ctx.Status(code).JSON(ErrorResponse(code, err.Error()))
	}
}

// StatusCode picks the HTTP status for err.
func StatusCode(err error) int {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return fe.Code
	}

	switch mapreduce.KindOf(err) {
	case mapreduce.KindInvalidInput:
		return fiber.StatusBadRequest
	case mapreduce.KindRunTimeout:
		return fiber.StatusGatewayTimeout
	case mapreduce.KindTransientProvider:
		return fiber.StatusServiceUnavailable
	case mapreduce.KindPermanentProvider, mapreduce.KindRetrieval:
		return fiber.StatusBadGateway
	case mapreduce.KindCanceled:
		return fiber.StatusRequestTimeout
	}

	switch {
	case errors.Is(err, mapreduce.ErrInvalidInput):
		return fiber.StatusBadRequest
	case errors.Is(err, mapreduce.ErrAlreadyRun):
		return fiber.StatusConflict
	}

	return fiber.StatusInternalServerError
}
