package validator

import (
	"fmt"
	"regexp"

	"github.com/go-playground/validator/v10"
)

var (
	phoneRgx  = regexp.MustCompile(`^\+?[0-9][0-9 \-()]{6,19}$`)
	seatIDRgx = regexp.MustCompile(`^[A-Z][0-9]{1,2}$`)
)

func NewValidator() *validator.Validate {
	validator := validator.New(validator.WithRequiredStructEnabled())

	validator.RegisterValidation("phone", validatePhoneNumber)
	validator.RegisterValidation("seat_id", validateSeatID)

	return validator
}

func validatePhoneNumber(fl validator.FieldLevel) bool {
	return phoneRgx.MatchString(fl.Field().String())
}

func validateSeatID(fl validator.FieldLevel) bool {
	return seatIDRgx.MatchString(fl.Field().String())
}

// ValidationMessage converts validator errors into readable messages
func ValidationMessage(err validator.FieldError) string {
	switch err.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "min":
		return fmt.Sprintf("must be at least %s", err.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", err.Param())
	case "gt":
		return fmt.Sprintf("must be greater than %s", err.Param())
	case "gte":
		return fmt.Sprintf("must be %s or more", err.Param())
	case "alpha":
		return "must contain only letters"
	case "phone":
		return "must be a valid phone number"
	case "seat_id":
		return "must be a seat label like A1 or C12"
	case "dive":
		return "contains an invalid entry"
	default:
		return "is invalid"
	}
}
