package http

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"cassa/internal/core"
)

// Validator checks request DTOs and reports failures keyed by JSON field
// name.
type Validator struct {
	validate *validator.Validate
}

func NewValidator() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("date", func(fl validator.FieldLevel) bool {
		_, err := core.ParseDate(fl.Field().String())
		return err == nil
	})
	_ = v.RegisterValidation("amount", func(fl validator.FieldLevel) bool {
		_, err := core.ParseDecimalToCents(fl.Field().String())
		return err == nil
	})
	return &Validator{validate: v}
}

func (cv *Validator) Validate(i any) error {
	return cv.validate.Struct(i)
}

// FormatValidationErrors turns validator errors into field -> message.
func (cv *Validator) FormatValidationErrors(err error) map[string]string {
	out := make(map[string]string)

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		out["body"] = err.Error()
		return out
	}
	for _, e := range verrs {
		field := e.Field()
		switch e.Tag() {
		case "required":
			out[field] = field + " is required"
		case "email":
			out[field] = field + " must be a valid email address"
		case "min":
			out[field] = field + " must be at least " + e.Param() + " characters"
		case "max":
			out[field] = field + " must be at most " + e.Param() + " characters"
		case "gt":
			out[field] = field + " must be greater than " + e.Param()
		case "gte":
			out[field] = field + " must be greater than or equal to " + e.Param()
		case "oneof":
			out[field] = field + " must be one of: " + e.Param()
		case "date":
			out[field] = field + " must be a date (YYYY-MM-DD)"
		case "amount":
			out[field] = field + " must be a positive amount"
		case "hexcolor":
			out[field] = field + " must be a colour like #RRGGBB"
		default:
			out[field] = field + " is invalid"
		}
	}
	return out
}
