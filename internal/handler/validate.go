package handler

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/iliyamo/cane-truck-registry/internal/service"
)

// Validator checks the `validate` tags of request structs. It is installed
// as echo's Validator so handlers reach it through c.Validate.
type Validator struct {
	v *validator.Validate
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
	_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	_ = v.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
		return validPhone(strings.TrimSpace(fl.Field().String()))
	})
	return &Validator{v: v}
}

// validPhone accepts 7 to 15 digits with an optional leading +.
func validPhone(s string) bool {
	digits := strings.TrimPrefix(s, "+")
	if len(digits) < 7 || len(digits) > 15 {
		return false
	}
	for _, c := range digits {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// Validate runs the tags of i and reports failures as a
// *service.ValidationError so they render like every other 400.
func (cv *Validator) Validate(i interface{}) error {
	err := cv.v.Struct(i)
	var fes validator.ValidationErrors
	if !errors.As(err, &fes) {
		return err
	}
	ve := &service.ValidationError{}
	for _, fe := range fes {
		ve.Add(fe.Field(), fieldMessage(fe))
	}
	return ve
}

func fieldMessage(fe validator.FieldError) string {
	f := fe.Field()
	switch fe.Tag() {
	case "required", "notblank":
		return f + " is required"
	case "min":
		return f + " must be at least " + fe.Param() + " characters"
	case "max":
		return f + " must not exceed " + fe.Param() + " characters"
	case "phone":
		return f + " must be 7-15 digits, optionally starting with +"
	}
	return f + " is invalid"
}
