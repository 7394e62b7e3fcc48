package models

import (
	"fmt"
	"strings"
	"unicode"
)

// ValidationError reports a field-level constraint violation.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func fieldError(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

func requireNonBlank(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return fieldError(field, "must not be blank")
	}
	return nil
}

// requireCapitalized rejects blank values and values whose first letter is
// not upper case.
func requireCapitalized(field, value string) error {
	if err := requireNonBlank(field, value); err != nil {
		return err
	}
	first := []rune(strings.TrimSpace(value))[0]
	if !unicode.IsUpper(first) {
		return fieldError(field, "must start with a capital letter")
	}
	return nil
}
