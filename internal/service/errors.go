package service

import (
	"errors"
	"strings"
)

// Authentication and authorization failures.
var (
	ErrMissingCredential     = errors.New("missing credential")
	ErrInvalidCredential     = errors.New("invalid or expired credential")
	ErrUnknownOrInactiveUser = errors.New("unknown or inactive user")
	ErrInsufficientPrivilege = errors.New("insufficient privilege")

	// ErrInvalidCredentials is the single login failure. It does not say
	// whether the email, the password or the account state was wrong.
	ErrInvalidCredentials = errors.New("invalid email or password")
)

// Domain failures.
var (
	ErrNotFound           = errors.New("not found")
	ErrReferenceNotFound  = errors.New("referenced entity not found or inactive")
	ErrDuplicateName      = errors.New("name already exists")
	ErrDuplicatePlate     = errors.New("plate number already registered")
	ErrDuplicateEmail     = errors.New("email already exists")
	ErrHasDependents      = errors.New("entity is referenced by other records")
	ErrForbidden          = errors.New("truck was registered by another user")
	ErrEditWindowExpired  = errors.New("edit window has expired")
	ErrInvalidPlateNumber = errors.New("plate number must be an integer")
	ErrInvalidTransition  = errors.New("status transition not allowed")
)

// FieldError is a validation message for a single input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError collects per-field problems with a request.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Add records a problem with field.
func (e *ValidationError) Add(field, message string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: message})
}

// Err returns e when it holds at least one field error, nil otherwise.
func (e *ValidationError) Err() error {
	if len(e.Fields) == 0 {
		return nil
	}
	return e
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
