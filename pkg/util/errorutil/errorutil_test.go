package errorutil

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"

	"github.com/opsdesk/ticket-rules/internal/persistence"
	"github.com/opsdesk/ticket-rules/internal/rules"
	"github.com/opsdesk/ticket-rules/internal/workflow"
)

func TestToDomainError(t *testing.T) {
	transition := func(sentinel error) error {
		return fmt.Errorf("apply: %w", &workflow.TransitionError{TicketID: "T-1", From: "Closed", To: "Open", Err: sentinel})
	}
	tests := []struct {
		name   string
		err    error
		code   string
		status int
	}{
		{"config", &rules.ConfigError{Field: "priorities", Reason: "required key missing"}, "INVALID_CONFIG", http.StatusUnprocessableEntity},
		{"terminal", transition(workflow.ErrInvalidTransition), "INVALID_TRANSITION", http.StatusConflict},
		{"hold reason", transition(workflow.ErrMissingHoldReason), "MISSING_HOLD_REASON", http.StatusUnprocessableEntity},
		{"unknown status", transition(workflow.ErrUnknownStatus), "UNKNOWN_STATUS", http.StatusUnprocessableEntity},
		{"no change", transition(workflow.ErrNoStatusChange), "NO_STATUS_CHANGE", http.StatusUnprocessableEntity},
		{"no rows", fmt.Errorf("load ticket: %w", pgx.ErrNoRows), "NOT_FOUND", http.StatusNotFound},
		{"locked", persistence.ErrLockHeld, "TICKET_LOCKED", http.StatusConflict},
		{"timeout", context.DeadlineExceeded, "TIMEOUT", http.StatusGatewayTimeout},
		{"other", errors.New("disk on fire"), "INTERNAL_ERROR", http.StatusInternalServerError},
		{"already mapped", NewValidationError("title required", nil), "VALIDATION_FAILED", http.StatusBadRequest},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			de := ToDomainError(tc.err)
			assert.Equal(t, tc.code, de.Code)
			assert.Equal(t, tc.status, de.HTTPStatus)
		})
	}
	assert.Nil(t, ToDomainError(nil))
}

func TestTransitionDetails(t *testing.T) {
	err := &workflow.TransitionError{TicketID: "T-1", From: "Closed", To: "Open", Err: workflow.ErrInvalidTransition}
	de := ToDomainError(err)
	assert.Equal(t, map[string]any{"ticket_id": "T-1", "from": "Closed", "to": "Open"}, de.Details)
	assert.ErrorIs(t, de, workflow.ErrInvalidTransition)
}
