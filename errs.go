package main

import (
	"errors"
	"fmt"
	"net/http"
)

// Error taxonomy shared by the matching and chat cores. Handlers compare
// with errors.Is and translate through statusForError, so storage and
// service code never touches HTTP status codes.
var (
	// ErrValidation covers malformed client input.
	ErrValidation = errors.New("validation_error")

	// ErrNotFoundOrForbidden conflates "does not exist" with "not yours"
	// so callers cannot probe for the existence of other users' rooms.
	ErrNotFoundOrForbidden = errors.New("not_found")

	// ErrDimensionMismatch means two vectors of different lengths were
	// scored against each other. Both sides come from the same fixed-width
	// vectorizer, so seeing this outside tests is a bug.
	ErrDimensionMismatch = errors.New("vector_dimension_mismatch")

	// ErrMessageTooLong rejects a message body over the configured bound.
	ErrMessageTooLong = errors.New("message_too_long")

	// ErrParticipantInvalid means a room participant does not exist, is
	// deactivated, or is banned.
	ErrParticipantInvalid = errors.New("participant_invalid")

	// ErrNoProfile means the subject has no completed quiz profile.
	ErrNoProfile = errors.New("incomplete_profile")

	// ErrPersistence wraps storage failures. Surfaced as retryable and
	// never partially applied.
	ErrPersistence = errors.New("persistence_failure")
)

// persistErr tags a driver error with ErrPersistence while keeping the
// cause visible in logs.
func persistErr(err error) error {
	return fmt.Errorf("%w: %v", ErrPersistence, err)
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotFoundOrForbidden):
		return http.StatusNotFound
	case errors.Is(err, ErrMessageTooLong):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, ErrParticipantInvalid):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrNoProfile):
		return http.StatusForbidden
	case errors.Is(err, ErrPersistence):
		return http.StatusServiceUnavailable
	default:
		// ErrDimensionMismatch and anything unclassified are server bugs.
		return http.StatusInternalServerError
	}
}
