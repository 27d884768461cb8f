package httputil

import (
	"github.com/go-playground/validator/v10"
	"github.com/ledgerscan/ledgerscan-backend/pkg/errors"
)

var validate = validator.New()

// Validate checks the struct tags of a decoded request body and folds
// each failing field into the error details map.
func Validate(v interface{}) error {
	if err := validate.Struct(v); err != nil {
		details := make(map[string]string)
		for _, e := range err.(validator.ValidationErrors) {
			details[e.Field()] = describeFieldError(e)
		}
		return errors.Validation(details)
	}
	return nil
}

func describeFieldError(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "this field is required"
	case "max":
		return "must be at most " + e.Param() + " characters"
	case "oneof":
		return "must be one of: " + e.Param()
	default:
		return "invalid value"
	}
}
