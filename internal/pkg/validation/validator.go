// Package validation wraps go-playground/validator with the custom tags used by
// notification inputs and translates failures into domain validation errors.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"budgetme-notifications/internal/domain"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// Validator returns the shared validator instance.
func Validator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" || name == "" {
				return f.Name
			}
			return name
		})
		_ = validate.RegisterValidation("hhmm", func(fl validator.FieldLevel) bool {
			_, err := domain.ParseClock(fl.Field().String())
			return err == nil
		})
	})
	return validate
}

// Struct validates s and returns domain.ValidationErrors on failure.
func Struct(s any) error {
	err := Validator().Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return &domain.ValidationError{Message: err.Error()}
	}

	out := make(domain.ValidationErrors, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		out = append(out, &domain.ValidationError{Field: fe.Field(), Message: translate(fe)})
	}
	return out
}

var messages = map[string]string{
	"required": "is required",
	"hhmm":     "must be a time in HH:MM format",
	"timezone": "must be a valid IANA timezone",
	"uuid":     "must be a valid UUID",
}

var messagesWithParam = map[string]string{
	"oneof": "must be one of: %s",
	"gte":   "must be greater than or equal to %s",
	"lte":   "must be less than or equal to %s",
	"gt":    "must be greater than %s",
	"lt":    "must be less than %s",
}

func translate(fe validator.FieldError) string {
	if msg, ok := messages[fe.Tag()]; ok {
		return msg
	}
	if tmpl, ok := messagesWithParam[fe.Tag()]; ok {
		return fmt.Sprintf(tmpl, fe.Param())
	}

	isString := fe.Kind() == reflect.String
	switch fe.Tag() {
	case "min":
		if isString {
			return fmt.Sprintf("must be at least %s characters", fe.Param())
		}
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		if isString {
			return fmt.Sprintf("must be at most %s characters", fe.Param())
		}
		return fmt.Sprintf("must be at most %s", fe.Param())
	}
	return fmt.Sprintf("failed %s validation", fe.Tag())
}
