package httpapi

import (
	"mining-ledger-go/internal/apperror"

	"github.com/gofiber/fiber/v2"
)

type Meta struct {
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
	Count  int `json:"count"`
}

type Response struct {
	Success bool     `json:"success"`
	Message string   `json:"message"`
	Data    any      `json:"data,omitempty"`
	Error   string   `json:"error,omitempty"`
	Kind    string   `json:"kind,omitempty"`
	Details []string `json:"details,omitempty"`
	Meta    *Meta    `json:"meta,omitempty"`
}

// WriteSuccess writes a success response to the fiber context
func WriteSuccess(c *fiber.Ctx, code int, message string, data any) error {
	return c.Status(code).JSON(Response{
		Success: true,
		Message: message,
		Data:    data,
	})
}

func WriteSuccessWithMeta(c *fiber.Ctx, code int, message string, data any, meta *Meta) error {
	return c.Status(code).JSON(Response{
		Success: true,
		Message: message,
		Data:    data,
		Meta:    meta,
	})
}

// WriteError writes an error response to the fiber context
func WriteError(c *fiber.Ctx, code int, kind apperror.Kind, message string, details ...string) error {
	return c.Status(code).JSON(Response{
		Success: false,
		Message: message,
		Error:   message,
		Kind:    string(kind),
		Details: details,
	})
}

// WriteAppError maps an error kind onto its HTTP status. Internal causes are
// never written to the client.
func WriteAppError(c *fiber.Ctx, err error) error {
	kind := apperror.KindOf(err)
	return WriteError(c, StatusFor(kind), kind, apperror.PublicMessage(err))
}

func StatusFor(kind apperror.Kind) int {
	switch kind {
	case apperror.KindValidation:
		return fiber.StatusBadRequest
	case apperror.KindInsufficientFunds:
		return fiber.StatusUnprocessableEntity
	case apperror.KindNotFound:
		return fiber.StatusNotFound
	case apperror.KindConflict:
		return fiber.StatusConflict
	case apperror.KindForbidden:
		return fiber.StatusForbidden
	default:
		return fiber.StatusInternalServerError
	}
}
