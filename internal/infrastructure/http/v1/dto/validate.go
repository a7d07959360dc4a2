package dto

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"stockflow/internal/core/apperror"
	"stockflow/internal/core/types"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	// Report JSON field names instead of Go names.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	must(v.RegisterValidation("positive_qty", func(fl validator.FieldLevel) bool {
		q, ok := fl.Field().Interface().(types.Quantity)
		return ok && q.IsPositive()
	}))
	must(v.RegisterValidation("nonneg_qty", func(fl validator.FieldLevel) bool {
		q, ok := fl.Field().Interface().(types.Quantity)
		return ok && !q.IsNegative()
	}))
	return v
}

func must(err error) {
	if err != nil {
		panic(err)
	}
}

// Validate checks obj's validate tags and returns a ValidationError listing
// every failed field.
func Validate(obj any) error {
	err := validate.Struct(obj)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return apperror.NewValidation("invalid request").WithCause(err)
	}

	fields := make(map[string]string, len(fieldErrs))
	for _, fe := range fieldErrs {
		fields[trimRoot(fe.Namespace())] = describe(fe)
	}
	return apperror.NewValidation("invalid request body").WithDetail("fields", fields)
}

func trimRoot(ns string) string {
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "positive_qty":
		return "must be greater than zero"
	case "nonneg_qty":
		return "must not be negative"
	case "oneof":
		return "must be one of: " + fe.Param()
	case "uuid":
		return "must be a UUID"
	case "min":
		return "must have at least " + fe.Param() + " item(s)"
	case "max":
		return "must be at most " + fe.Param() + " characters"
	default:
		return "failed " + fe.Tag()
	}
}
