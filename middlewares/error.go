package middlewares

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"invoice-dashboard-backend/apperrors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

const genericBackendMessage = "service temporarily unavailable"

// ErrorHandler centralizes error responses and keeps messages sanitized. Every error body has the
// shape {success:false, error, code}. devMode attaches the raw backend error as "detail".
func ErrorHandler(devMode bool) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		// 1) Classified errors
		var ae *apperrors.Error
		if errors.As(err, &ae) {
			body := fiber.Map{"success": false, "error": ae.Message, "code": ae.Kind.Code()}
			switch ae.Kind {
			case apperrors.KindBackendUnavailable:
				slog.Error("backend unavailable", "request_id", requestID(c), "path", c.Path(), "error", err)
				body["error"] = genericBackendMessage
				if devMode {
					body["detail"] = err.Error()
				}
			case apperrors.KindConfiguration:
				slog.Warn("configuration error", "request_id", requestID(c), "path", c.Path(), "error", err)
			case apperrors.KindInternal:
				slog.Error("internal error", "request_id", requestID(c), "error", err)
				body["error"] = "internal server error"
			}
			return c.Status(ae.Kind.Status()).JSON(body)
		}

		// 2) Validation errors (per-field info)
		var ve validator.ValidationErrors
		if errors.As(err, &ve) {
			out := make(map[string]string, len(ve))
			for _, fe := range ve {
				out[fe.Field()] = fe.Tag()
			}
			return c.Status(apperrors.KindInvalidArgument.Status()).JSON(fiber.Map{
				"success": false,
				"error":   "validation failed",
				"code":    apperrors.KindInvalidArgument.Code(),
				"fields":  out,
			})
		}

		// 3) Fiber errors (use their status code + message)
		var fe *fiber.Error
		if errors.As(err, &fe) {
			return c.Status(fe.Code).JSON(fiber.Map{
				"success": false,
				"error":   fe.Message,
				"code":    statusCode(fe.Code),
			})
		}

		// 4) Unknown errors (500)
		slog.Error("internal error", "request_id", requestID(c), "path", c.Path(), "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"error":   "internal server error",
			"code":    apperrors.KindInternal.Code(),
		})
	}
}

// statusCode turns an HTTP status into an UPPER_SNAKE code, e.g. 429 -> TOO_MANY_REQUESTS.
func statusCode(status int) string {
	text := http.StatusText(status)
	if text == "" {
		return apperrors.KindInternal.Code()
	}
	return strings.ToUpper(strings.NewReplacer(" ", "_", "-", "_", "'", "").Replace(text))
}

func requestID(c *fiber.Ctx) string {
	id, _ := c.Locals("requestid").(string)
	return id
}
