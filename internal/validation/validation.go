// Package validation wraps go-playground/validator with the project's tags and messages.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

const notBlankTag = "notblank"

var (
	once     sync.Once
	validate *validator.Validate
)

// Validator returns the shared validator instance. Field names in reported errors are taken
// from json tags.
func Validator() *validator.Validate {
	once.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
		_ = v.RegisterValidation(notBlankTag, notBlank)
		validate = v
	})
	return validate
}

// Struct validates s and converts failures into a field -> message map. A nil map means s
// is valid. Errors other than field failures are returned as-is.
func Struct(s any) (map[string]string, error) {
	err := Validator().Struct(s)
	if err == nil {
		return nil, nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return nil, err
	}
	out := make(map[string]string, len(fieldErrs))
	for _, fe := range fieldErrs {
		field := fe.Field()
		if _, exists := out[field]; exists {
			continue
		}
		out[field] = Message(fe)
	}
	return out, nil
}

// Message renders a single field failure for users.
func Message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", notBlankTag:
		return "is required"
	case "numeric", "number":
		return "must be a number"
	case "min":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "gte":
		return fmt.Sprintf("must be greater than or equal to %s", fe.Param())
	case "lte":
		return fmt.Sprintf("must be less than or equal to %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of %s", fe.Param())
	case "uuid", "uuid4":
		return "must be a valid identifier"
	}
	return fmt.Sprintf("failed %q validation", fe.Tag())
}

func notBlank(fl validator.FieldLevel) bool {
	if str, ok := fl.Field().Interface().(string); ok {
		return strings.TrimSpace(str) != ""
	}
	return false
}
