package errors

import (
	"errors"
	"net/http"
)

// Kinds. Every domain error unwraps to exactly one of them.
var (
	ErrUnauthorized = errors.New("user is not authorized")
	ErrForbidden    = errors.New("operation is forbidden for user")
	ErrNotFound     = errors.New("resource not found")
	ErrConflict     = errors.New("resource conflict")
	ErrInvalidState = errors.New("invalid state for operation")
	ErrValidation   = errors.New("validation failed")
	ErrUnavailable  = errors.New("dependency unavailable")
)

// Error is a user-displayable domain error of a given kind.
type Error struct {
	kind error
	msg  string
}

func New(kind error, msg string) error {
	return &Error{kind: kind, msg: msg}
}

func (e *Error) Error() string { return e.msg }

func (e *Error) Unwrap() error { return e.kind }

var (
	ErrMissingToken  = New(ErrUnauthorized, "No token, authorization denied")
	ErrInvalidToken  = New(ErrUnauthorized, "Token is not valid")
	ErrAdminOnly     = New(ErrForbidden, "Access denied. Admin only.")
	ErrStaffOnly     = New(ErrForbidden, "Access denied. Counter staff only.")
	ErrNotTicketUser = New(ErrForbidden, "Not authorized")

	ErrServiceNotFound = New(ErrNotFound, "Service not found")
	ErrCounterNotFound = New(ErrNotFound, "Counter not found")
	ErrTicketNotFound  = New(ErrNotFound, "Ticket not found")

	ErrServiceExists      = New(ErrConflict, "Service already exists")
	ErrActiveTicketExists = New(ErrConflict, "You already have an active ticket")
	ErrCounterBusy        = New(ErrConflict, "Counter is already serving a ticket")

	ErrCounterNotInService = New(ErrInvalidState, "Counter not found or does not belong to this service")
	ErrNothingToSkip       = New(ErrInvalidState, "Counter is not serving any ticket")

	ErrServiceIDRequired   = New(ErrValidation, "Service ID is required")
	ErrServiceNameRequired = New(ErrValidation, "Service name is required")
	ErrCounterNameRequired = New(ErrValidation, "Counter name is required")
	ErrRoomNumberRequired  = New(ErrValidation, "Room number is required")
	ErrCallNextArgs        = New(ErrValidation, "Counter ID and Service ID are required")
	ErrInvalidDate         = New(ErrValidation, "Invalid date format. Use YYYY-MM-DD")
	ErrInvalidRange        = New(ErrValidation, "Invalid date range")

	ErrSearchDisabled = New(ErrUnavailable, "Ticket search is not configured")
)

// HTTPStatus maps an error to the status code it is surfaced with.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrConflict), errors.Is(err, ErrInvalidState):
		return http.StatusConflict
	case errors.Is(err, ErrUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// IsDomain reports whether err carries a user-displayable message.
func IsDomain(err error) bool {
	var e *Error
	return errors.As(err, &e)
}

// Message returns the user-displayable text of the first domain error in the chain, or
// fallback when err carries none.
func Message(err error, fallback string) string {
	var e *Error
	if errors.As(err, &e) {
		return e.msg
	}
	return fallback
}
