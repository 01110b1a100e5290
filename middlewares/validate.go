package middlewares

import (
	"invoice-dashboard-backend/apperrors"
	"invoice-dashboard-backend/utils"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

var validate = validator.New()

// BindAndValidate parses the JSON body into dst, normalizes it and validates it.
// Returns an InvalidArgument error for parse errors and validator.ValidationErrors for rule failures.
func BindAndValidate(c *fiber.Ctx, dst interface{}) error {
	if len(c.Body()) == 0 {
		return apperrors.InvalidArgument("request body is required")
	}
	if err := c.BodyParser(dst); err != nil {
		return apperrors.InvalidArgument("invalid request body")
	}
	utils.NormalizeDTO(dst)
	return validate.Struct(dst)
}

// ValidateStruct validates any struct value using the shared validator instance.
func ValidateStruct(v interface{}) error {
	return validate.Struct(v)
}
