package shared

import "fmt"

// DomainError represents a domain-level error
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface
func (e *DomainError) Error() string {
	return e.Message
}

// Is matches any DomainError carrying the same code, so specific
// validation errors still satisfy errors.Is(err, ErrInvalidInput)
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	return ok && t.Code == e.Code
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// Common domain errors
var (
	ErrNotFound            = NewDomainError("NOT_FOUND", "Resource not found")
	ErrAlreadyExists       = NewDomainError("ALREADY_EXISTS", "Resource already exists")
	ErrInvalidInput        = NewDomainError("INVALID_INPUT", "Invalid input provided")
	ErrConcurrencyConflict = NewDomainError("CONCURRENCY_CONFLICT", "Resource was modified by another process")
	ErrInvalidState        = NewDomainError("INVALID_STATE", "Operation not allowed in current state")
	ErrInsufficientStock   = NewDomainError("INSUFFICIENT_STOCK", "Insufficient stock available")
)

// NotFoundError names the missing entity while still matching ErrNotFound.
type NotFoundError struct {
	Entity string
	ID     string
}

// NewNotFoundError creates a NotFoundError for the given entity kind and identifier
func NewNotFoundError(entity string, id fmt.Stringer) *NotFoundError {
	return &NotFoundError{Entity: entity, ID: id.String()}
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

// Unwrap lets errors.Is(err, ErrNotFound) and errors.As(err, **DomainError) match
func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}

// InvalidStateTransitionError is returned when a document is asked to move
// to a status its state machine does not allow from the current one.
type InvalidStateTransitionError struct {
	Entity string
	ID     string
	From   string
	To     string
}

// NewInvalidStateTransitionError creates an InvalidStateTransitionError
func NewInvalidStateTransitionError(entity string, id fmt.Stringer, from, to string) *InvalidStateTransitionError {
	return &InvalidStateTransitionError{Entity: entity, ID: id.String(), From: from, To: to}
}

func (e *InvalidStateTransitionError) Error() string {
	return fmt.Sprintf("%s %s cannot transition from %s to %s", e.Entity, e.ID, e.From, e.To)
}

// Unwrap returns ErrInvalidState
func (e *InvalidStateTransitionError) Unwrap() error {
	return ErrInvalidState
}

// NewValidationError creates an INVALID_INPUT error with a specific message
func NewValidationError(message string) *DomainError {
	return NewDomainError(ErrInvalidInput.Code, message)
}
