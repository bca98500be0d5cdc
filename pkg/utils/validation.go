package utils

import (
	"strings"
	"unicode/utf8"
)

const (
	MinAge            = 18
	MaxAge            = 120
	MaxNameLength     = 100
	MaxBioLength      = 1000
	MaxMessageLength  = 4000
	MaxExternalIDSize = 64
)

// ValidationError represents a validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// ValidateExternalID checks the caller-supplied identity token.
func ValidateExternalID(id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return &ValidationError{Field: "telegram_id", Message: "telegram_id is required"}
	}
	if len(id) > MaxExternalIDSize {
		return &ValidationError{Field: "telegram_id", Message: "telegram_id is too long"}
	}
	return nil
}

func ValidateName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return &ValidationError{Field: "name", Message: "Name is required"}
	}
	if utf8.RuneCountInString(name) > MaxNameLength {
		return &ValidationError{Field: "name", Message: "Name must be at most 100 characters"}
	}
	return nil
}

func ValidateAge(age int) error {
	if age < MinAge || age > MaxAge {
		return &ValidationError{Field: "age", Message: "Age must be between 18 and 120"}
	}
	return nil
}

func ValidateBio(bio string) error {
	if utf8.RuneCountInString(bio) > MaxBioLength {
		return &ValidationError{Field: "bio", Message: "Bio must be at most 1000 characters"}
	}
	return nil
}

// ValidateRequired rejects blank values.
func ValidateRequired(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return &ValidationError{Field: field, Message: field + " is required"}
	}
	return nil
}

// ValidateList rejects lists that contain blank entries. An empty list is fine.
func ValidateList(field string, values []string) error {
	for _, v := range values {
		if strings.TrimSpace(v) == "" {
			return &ValidationError{Field: field, Message: field + " must not contain empty values"}
		}
	}
	return nil
}

// ValidateMessage checks a chat message body.
func ValidateMessage(body string) error {
	if strings.TrimSpace(body) == "" {
		return &ValidationError{Field: "message", Message: "Message cannot be empty"}
	}
	if utf8.RuneCountInString(body) > MaxMessageLength {
		return &ValidationError{Field: "message", Message: "Message must be at most 4000 characters"}
	}
	return nil
}

// FirstError returns the first non-nil error.
func FirstError(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
