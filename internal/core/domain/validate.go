package domain

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func validatorInstance() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		// Report fields by their wire name so messages match what the server says.
		validate.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "" || name == "-" {
				return f.Name
			}
			return name
		})
		_ = validate.RegisterValidation("finite", func(fl validator.FieldLevel) bool {
			f := fl.Field()
			if f.Kind() != reflect.Float32 && f.Kind() != reflect.Float64 {
				return true
			}
			v := f.Float()
			return !math.IsNaN(v) && !math.IsInf(v, 0)
		})
	})
	return validate
}

// Validate checks a tagged input struct and returns a VALIDATION_ERROR
// listing every failing field, or nil.
func Validate(input any) error {
	err := validatorInstance().Struct(input)
	if err == nil {
		return nil
	}
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return &AppError{Type: TypeValidation, Message: err.Error(), Err: err}
	}

	msgs := make([]string, 0, len(ve))
	fields := make(map[string]string, len(ve))
	for _, fe := range ve {
		msg := fieldError(fe)
		msgs = append(msgs, msg)
		fields[fe.Field()] = msg
	}
	return &AppError{
		Type:    TypeValidation,
		Message: strings.Join(msgs, "; "),
		Details: fields,
	}
}

// fieldError converts a single FieldError into a human-readable message.
func fieldError(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "email":
		return field + " must be a valid email"
	case "numeric":
		return field + " must contain only digits"
	case "len":
		return fmt.Sprintf("%s must be exactly %s characters", field, fe.Param())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", field, fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "lte":
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
		}
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
		}
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "finite":
		return field + " must be a finite number"
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, fe.Param())
	default:
		return fmt.Sprintf("%s failed validation (%s)", field, fe.Tag())
	}
}
