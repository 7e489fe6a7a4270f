package serverutils

import (
	"errors"

	"ai-paperchat-be/internal/pkg/logger"
	"ai-paperchat-be/pkg/rag/fault"

	"github.com/gofiber/fiber/v2"
)

// StatusForKind maps stable fault kinds to HTTP statuses.
func StatusForKind(kind fault.Kind) int {
	switch kind {
	case fault.KindInvalidCommand:
		return fiber.StatusUnprocessableEntity
	case fault.KindValidation:
		return fiber.StatusBadRequest
	case fault.KindRAGNotEnabled:
		return fiber.StatusConflict
	case fault.KindGenerationUnavailable:
		return fiber.StatusServiceUnavailable
	case fault.KindIngestionFailed:
		return fiber.StatusUnprocessableEntity
	case fault.KindSessionBusy:
		return fiber.StatusTooManyRequests
	case fault.KindNotFound:
		return fiber.StatusNotFound
	default:
		return fiber.StatusInternalServerError
	}
}

// FaultBody renders any error into the envelope. Unlabelled errors become
// 500 INTERNAL with a generic message; internals never leak.
func FaultBody(err error, data interface{}) (int, ErrorBody) {
	var fe *fault.Error
	if errors.As(err, &fe) {
		status := StatusForKind(fe.Kind)
		return status, ErrorBody{
			Success:   false,
			Code:      status,
			ErrorKind: string(fe.Kind),
			Message:   fe.Message,
			Hint:      fe.Hint,
			Retryable: fe.Retryable,
			Data:      data,
		}
	}

	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return fiberErr.Code, ErrorResponse(fiberErr.Code, fiberErr.Message)
	}

	return fiber.StatusInternalServerError, ErrorBody{
		Success:   false,
		Code:      fiber.StatusInternalServerError,
		ErrorKind: string(fault.KindInternal),
		Message:   "something went wrong",
		Data:      data,
	}
}

// ErrorHandlerMiddleware renders every error a handler returns as the
// standard envelope, keyed by fault kind. Errors without a kind are the
// unexpected ones, so those also land in the main log.
func ErrorHandlerMiddleware(log logger.ILogger) fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		err := ctx.Next()
		if err == nil {
			return nil
		}

		status, body := FaultBody(err, nil)
		if status == fiber.StatusInternalServerError && log != nil {
			log.Error("ErrorHandler", "Unhandled error", map[string]interface{}{
				"method": ctx.Method(),
				"path":   ctx.Path(),
				"error":  err.Error(),
			})
		}
		return ctx.Status(status).JSON(body)
	}
}
