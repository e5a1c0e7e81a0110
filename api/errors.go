package api

import (
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/missioncontrol/pkg/actor"
	"github.com/papercomputeco/missioncontrol/pkg/storage"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// errorHandler renders handler errors as ErrorResponse JSON. Storage and
// actor errors are mapped to their HTTP status; anything unrecognized is
// logged and reported as a 500 without leaking details.
func errorHandler(log *slog.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		status, msg := statusFor(err)
		if status == fiber.StatusInternalServerError {
			log.Error("request failed",
				"method", c.Method(),
				"path", c.Path(),
				"error", err,
			)
		}
		return c.Status(status).JSON(ErrorResponse{Error: msg})
	}
}

func statusFor(err error) (int, string) {
	var (
		fe  *fiber.Error
		nf  storage.NotFoundError
		dup storage.DuplicateError
		cf  storage.ConflictError
	)

	switch {
	case errors.As(err, &fe):
		return fe.Code, fe.Message
	case errors.As(err, &nf):
		return fiber.StatusNotFound, nf.Kind + " not found"
	case errors.As(err, &cf):
		return fiber.StatusConflict, cf.Kind + " " + cf.Reason
	case errors.As(err, &dup):
		return fiber.StatusConflict, dup.Error()
	case errors.Is(err, actor.ErrUnauthorized):
		return fiber.StatusUnauthorized, "unauthorized"
	case errors.Is(err, actor.ErrForbidden):
		return fiber.StatusForbidden, "forbidden"
	default:
		return fiber.StatusInternalServerError, "internal server error"
	}
}

func badRequest(msg string) error {
	return fiber.NewError(fiber.StatusBadRequest, msg)
}
