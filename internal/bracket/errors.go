package bracket

import (
	"fmt"

	"github.com/google/uuid"
)

// ValidationError rejects malformed input before any state change.
type ValidationError struct {
	Field   string
	Message string
}

func NewValidationError(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation: " + e.Message
	}
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Message)
}

// ConflictError is returned when a write would overwrite a settled result.
// It is not retried automatically.
type ConflictError struct {
	MatchID uuid.UUID
	Message string
}

func NewConflictError(matchID uuid.UUID, format string, args ...any) *ConflictError {
	return &ConflictError{MatchID: matchID, Message: fmt.Sprintf(format, args...)}
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("conflict on match %s: %s", e.MatchID, e.Message)
}

// StructuralError means the bracket graph is inconsistent, e.g. a
// destination match is missing.
type StructuralError struct {
	MatchID uuid.UUID
	Message string
}

func NewStructuralError(matchID uuid.UUID, format string, args ...any) *StructuralError {
	return &StructuralError{MatchID: matchID, Message: fmt.Sprintf(format, args...)}
}

func (e *StructuralError) Error() string {
	return fmt.Sprintf("bracket structure broken at match %s: %s", e.MatchID, e.Message)
}
