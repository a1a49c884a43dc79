package middleware

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"budgetme-notifications/internal/domain"
	"budgetme-notifications/internal/logging"
)

// ErrorResponse is the failure form of the response envelope.
type ErrorResponse struct {
	Success bool              `json:"success"`
	Error   string            `json:"error"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
	TraceID string            `json:"trace_id,omitempty"`
}

func ErrorHandler(c *fiber.Ctx, err error) error {
	resp := ErrorResponse{
		Error:   "INTERNAL_ERROR",
		Message: "Internal server error",
	}
	code := fiber.StatusInternalServerError

	var (
		fe  *fiber.Error
		ve  *domain.ValidationError
		ves domain.ValidationErrors
		nf  *domain.NotFoundError
		tnf *domain.TemplateNotFoundError
	)
	switch {
	case errors.As(err, &ves):
		code = fiber.StatusBadRequest
		resp.Error = "VALIDATION_ERROR"
		resp.Message = ves.Error()
		resp.Fields = make(map[string]string, len(ves))
		for _, e := range ves {
			resp.Fields[e.Field] = e.Message
		}
	case errors.As(err, &ve):
		code = fiber.StatusBadRequest
		resp.Error = "VALIDATION_ERROR"
		resp.Message = ve.Error()
		if ve.Field != "" {
			resp.Fields = map[string]string{ve.Field: ve.Message}
		}
	case errors.As(err, &nf):
		code = fiber.StatusNotFound
		resp.Error = "NOT_FOUND"
		resp.Message = nf.Error()
	case errors.As(err, &tnf):
		code = fiber.StatusUnprocessableEntity
		resp.Error = "TEMPLATE_NOT_FOUND"
		resp.Message = tnf.Error()
	case errors.As(err, &fe):
		code = fe.Code
		resp.Message = fe.Message
		switch code {
		case fiber.StatusBadRequest:
			resp.Error = "BAD_REQUEST"
		case fiber.StatusUnauthorized:
			resp.Error = "UNAUTHORIZED"
		case fiber.StatusForbidden:
			resp.Error = "FORBIDDEN"
		case fiber.StatusNotFound:
			resp.Error = "NOT_FOUND"
		case fiber.StatusConflict:
			resp.Error = "CONFLICT"
		case fiber.StatusUnprocessableEntity:
			resp.Error = "VALIDATION_ERROR"
		case fiber.StatusServiceUnavailable:
			resp.Error = "UNAVAILABLE"
		}
	}

	if code >= fiber.StatusInternalServerError {
		resp.TraceID = uuid.New().String()[:8]
		log := logging.Component("http")
		log.Error().Err(err).
			Str("trace_id", resp.TraceID).
			Str("method", c.Method()).
			Str("path", c.Path()).
			Msg("request failed")
	}

	return c.Status(code).JSON(resp)
}

func NewError(code int, message string) *fiber.Error {
	return fiber.NewError(code, message)
}

func BadRequest(message string) *fiber.Error {
	return fiber.NewError(fiber.StatusBadRequest, message)
}

func Unauthorized(message string) *fiber.Error {
	return fiber.NewError(fiber.StatusUnauthorized, message)
}

func Forbidden(message string) *fiber.Error {
	return fiber.NewError(fiber.StatusForbidden, message)
}

func NotFound(message string) *fiber.Error {
	return fiber.NewError(fiber.StatusNotFound, message)
}
