package errorutil

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/jackc/pgx/v5"

	"github.com/opsdesk/ticket-rules/internal/persistence"
	"github.com/opsdesk/ticket-rules/internal/rules"
	"github.com/opsdesk/ticket-rules/internal/workflow"
)

// DomainError standardizes application errors.
type DomainError struct {
	Code       string
	Message    string
	HTTPStatus int
	Details    map[string]any
	Err        error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError constructs a DomainError.
func NewDomainError(code, message string, status int, details map[string]any) *DomainError {
	return &DomainError{Code: code, Message: message, HTTPStatus: status, Details: details}
}

func NewValidationError(message string, details map[string]any) error {
	return NewDomainError("VALIDATION_FAILED", message, http.StatusBadRequest, details)
}

func NewNotFound(resource string, details map[string]any) error {
	if details == nil {
		details = map[string]any{}
	}
	return &DomainError{
		Code:       "NOT_FOUND",
		Message:    fmt.Sprintf("%s not found", resource),
		HTTPStatus: http.StatusNotFound,
		Details:    details,
	}
}

func NewInternalError(err error) error {
	return &DomainError{
		Code:       "INTERNAL_ERROR",
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// ToDomainError converts errors raised by the rules core and the storage
// layer into a DomainError carrying the HTTP status to respond with.
func ToDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}

	var cfgErr *rules.ConfigError
	if errors.As(err, &cfgErr) {
		return &DomainError{
			Code:       "INVALID_CONFIG",
			Message:    cfgErr.Error(),
			HTTPStatus: http.StatusUnprocessableEntity,
			Details:    map[string]any{"field": cfgErr.Field},
			Err:        err,
		}
	}

	var transitionErr *workflow.TransitionError
	if errors.As(err, &transitionErr) {
		details := map[string]any{
			"ticket_id": transitionErr.TicketID,
			"from":      transitionErr.From,
			"to":        transitionErr.To,
		}
		switch {
		case errors.Is(err, workflow.ErrInvalidTransition):
			return &DomainError{Code: "INVALID_TRANSITION", Message: transitionErr.Err.Error(), HTTPStatus: http.StatusConflict, Details: details, Err: err}
		case errors.Is(err, workflow.ErrMissingHoldReason):
			return &DomainError{Code: "MISSING_HOLD_REASON", Message: transitionErr.Err.Error(), HTTPStatus: http.StatusUnprocessableEntity, Details: details, Err: err}
		case errors.Is(err, workflow.ErrUnknownStatus):
			return &DomainError{Code: "UNKNOWN_STATUS", Message: transitionErr.Err.Error(), HTTPStatus: http.StatusUnprocessableEntity, Details: details, Err: err}
		case errors.Is(err, workflow.ErrNoStatusChange):
			return &DomainError{Code: "NO_STATUS_CHANGE", Message: transitionErr.Err.Error(), HTTPStatus: http.StatusUnprocessableEntity, Details: details, Err: err}
		}
	}

	switch {
	case errors.Is(err, pgx.ErrNoRows):
		de := NewNotFound("resource", nil).(*DomainError)
		de.Err = err
		return de
	case errors.Is(err, persistence.ErrLockHeld):
		return &DomainError{Code: "TICKET_LOCKED", Message: "ticket is being modified, retry shortly", HTTPStatus: http.StatusConflict, Err: err}
	case errors.Is(err, context.DeadlineExceeded):
		return &DomainError{Code: "TIMEOUT", Message: "request timed out", HTTPStatus: http.StatusGatewayTimeout, Err: err}
	}

	return NewInternalError(err).(*DomainError)
}
