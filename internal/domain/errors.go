package domain

import (
	"errors"
	"fmt"
)

// Sentinel error kinds. Every error crossing an application boundary wraps one
// of these so callers can branch without string matching.
var (
	ErrNotFound     = errors.New("not found")
	ErrValidation   = errors.New("validation failed")
	ErrBusinessRule = errors.New("business rule violated")
	ErrConflict     = errors.New("conflict")
	ErrInvalidState = errors.New("invalid state transition")
	ErrUnauthorized = errors.New("unauthorized")
)

// DomainError carries a sentinel kind plus a user-displayable message.
type DomainError struct {
	Err     error
	Message string
}

func (e *DomainError) Error() string { return e.Message }

func (e *DomainError) Unwrap() error { return e.Err }

// NewNotFoundError reports a missing resource. Ownership mismatches use the
// same error so a caller cannot distinguish "not yours" from "does not exist".
func NewNotFoundError(resource, id string) error {
	return &DomainError{Err: ErrNotFound, Message: fmt.Sprintf("%s %s not found", resource, id)}
}

// NewValidationError reports malformed input rejected before any state change.
func NewValidationError(msg string) error {
	return &DomainError{Err: ErrValidation, Message: msg}
}

// NewBusinessRuleError reports an input that is well-formed but not allowed.
func NewBusinessRuleError(msg string) error {
	return &DomainError{Err: ErrBusinessRule, Message: msg}
}

// NewConflictError reports a uniqueness or concurrent-modification conflict.
func NewConflictError(msg string) error {
	return &DomainError{Err: ErrConflict, Message: msg}
}

// NewInvalidStateError reports a rejected state machine transition.
func NewInvalidStateError(from, to string) error {
	return &DomainError{Err: ErrInvalidState, Message: fmt.Sprintf("cannot transition from %s to %s", from, to)}
}

func IsNotFound(err error) bool     { return errors.Is(err, ErrNotFound) }
func IsValidation(err error) bool   { return errors.Is(err, ErrValidation) }
func IsBusinessRule(err error) bool { return errors.Is(err, ErrBusinessRule) }
func IsConflict(err error) bool     { return errors.Is(err, ErrConflict) }
func IsInvalidState(err error) bool { return errors.Is(err, ErrInvalidState) }
