package models

import "fmt"

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

// ValidateKey checks the identifiers every routable event needs.
func ValidateKey(raw *RawEvent) error {
	if raw == nil {
		return &ValidationError{
			Field:   "event",
			Message: "raw event cannot be nil",
		}
	}

	if raw.Key.ID == "" {
		return &ValidationError{
			Field:   "key.id",
			Message: "event id is required",
		}
	}

	if raw.Key.RemoteJID == "" {
		return &ValidationError{
			Field:   "key.remoteJid",
			Message: "conversation id is required",
		}
	}

	return nil
}
