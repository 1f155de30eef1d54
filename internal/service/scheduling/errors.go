package scheduling

import (
	"errors"
	"fmt"
)

type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func validationError(msg string) error {
	return &ValidationError{Message: msg}
}

var (
	ErrPatientNotFound          = errors.New("patient not found")
	ErrProviderNotFound         = errors.New("provider not found or inactive")
	ErrProviderConflict         = errors.New("provider already booked at the requested slot")
	ErrNoProvidersAvailable     = errors.New("no providers available for the requested slot")
	ErrInvalidState             = errors.New("invalid appointment state")
	ErrInvalidStateForOperation = errors.New("operation not allowed in the appointment's current state")
)

// TooLateError rejects a mutation attempted too close to the
// appointment's scheduled moment. It carries enough context to tell
// the caller why the refusal happened.
type TooLateError struct {
	Operation      string
	RequiredHours  float64
	RemainingHours float64
}

func (e *TooLateError) Error() string {
	return fmt.Sprintf("cannot %s with less than %.0f hours' notice; %.1f hours remain",
		e.Operation, e.RequiredHours, e.RemainingHours)
}
