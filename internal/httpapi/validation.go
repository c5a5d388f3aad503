package httpapi

import (
	"errors"
	"fmt"

	"mining-ledger-go/internal/apperror"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

var validate = validator.New()

func FormatValidationError(err error) []string {
	var errs []string

	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		for _, e := range validationErrors {
			field := e.Field()
			tag := e.Tag()

			switch tag {
			case "required":
				errs = append(errs, fmt.Sprintf("%s is required", field))
			case "required_without":
				errs = append(errs, fmt.Sprintf("%s is required when %s is missing", field, e.Param()))
			case "excluded_with":
				errs = append(errs, fmt.Sprintf("%s cannot be combined with %s", field, e.Param()))
			case "email":
				errs = append(errs, fmt.Sprintf("%s must be a valid email", field))
			case "numeric":
				errs = append(errs, fmt.Sprintf("%s must be a decimal number", field))
			case "oneof":
				errs = append(errs, fmt.Sprintf("%s must be one of [%s]", field, e.Param()))
			case "max":
				errs = append(errs, fmt.Sprintf("%s must have maximum length %s", field, e.Param()))
			default:
				errs = append(errs, fmt.Sprintf("%s is invalid (%s)", field, tag))
			}
		}
	}
	return errs
}

// bind parses the body into req and validates it, writing the 400 response
// itself on failure. ok is false when the handler should return err as is.
func bind(c *fiber.Ctx, req any) (ok bool, err error) {
	if err := c.BodyParser(req); err != nil {
		return false, WriteError(c, fiber.StatusBadRequest, apperror.KindValidation, "Invalid request body", err.Error())
	}
	if err := validate.Struct(req); err != nil {
		return false, WriteError(c, fiber.StatusBadRequest, apperror.KindValidation, "Validation error", FormatValidationError(err)...)
	}
	return true, nil
}
