package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report fields by their config names.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks required fields and allowed values. All violations are
// reported in one CONFIG_INVALID error.
func (f *File) Validate() error {
	err := validate.Struct(f)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return &Error{Code: ErrCodeInvalid, Message: err.Error(), Err: err}
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, describe(fe))
	}
	return &Error{Code: ErrCodeInvalid, Message: strings.Join(msgs, "; "), Err: err}
}

// describe renders a field error as "<path> <problem>".
func describe(fe validator.FieldError) string {
	// Namespace starts with the root type name.
	_, path, _ := strings.Cut(fe.Namespace(), ".")

	switch fe.Tag() {
	case "required":
		return path + " is required"
	case "required_without":
		return fmt.Sprintf("%s is required when %s is empty", path, strings.ToLower(fe.Param()))
	case "oneof":
		return fmt.Sprintf("%s must be one of %s, got %q", path, strings.ReplaceAll(fe.Param(), " ", ", "), fe.Value())
	case "min":
		return fmt.Sprintf("%s must have at least %s entries", path, fe.Param())
	default:
		return fmt.Sprintf("%s failed %s", path, fe.Tag())
	}
}
