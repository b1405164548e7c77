package workflow

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opsdesk/ticket-rules/internal/audit"
	"github.com/opsdesk/ticket-rules/internal/domain"
	"github.com/opsdesk/ticket-rules/internal/rules"
)

var created = time.Date(2026, 1, 12, 8, 30, 0, 0, time.UTC)

func newTicket(t *testing.T, status string) (*domain.Ticket, *audit.Trail) {
	t.Helper()
	ticket := &domain.Ticket{
		ID:        "T-1",
		Title:     "Printer jam",
		Priority:  "Medium",
		Status:    status,
		CreatedAt: created,
		UpdatedAt: created,
	}
	if status == domain.StatusOnHold {
		ticket.HoldReason = "Awaiting customer response"
	}
	trail, err := audit.NewTrail(ticket.ID)
	require.NoError(t, err)
	return ticket, trail
}

func TestApplyRecordsOneUpdate(t *testing.T) {
	m := New(rules.Default())
	ticket, trail := newTicket(t, domain.StatusOpen)
	at := created.Add(time.Hour)

	update, err := m.Apply(ticket, trail, Transition{To: domain.StatusInProgress, Actor: "alice"}, at)
	require.NoError(t, err)

	assert.Equal(t, domain.StatusInProgress, ticket.Status)
	assert.Equal(t, at, ticket.UpdatedAt)
	assert.Equal(t, 1, trail.Len())
	assert.Equal(t, "alice", update.Author)
	assert.Equal(t, "T-1", update.TicketID)
	assert.True(t, update.SystemGenerated)
	assert.True(t, update.IsStatusChange())
	assert.Equal(t, "Status changed from Open to In Progress", update.Body)
	assert.Equal(t, at, update.CreatedAt)
	assert.EqualValues(t, 1, update.Seq)
}

func TestApplyAllowsOutOfOrderMoves(t *testing.T) {
	m := New(rules.Default())
	ticket, trail := newTicket(t, domain.StatusOpen)

	_, err := m.Apply(ticket, trail, Transition{To: domain.StatusResolved, Actor: "bob"}, created.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, domain.StatusResolved, ticket.Status)

	_, err = m.Apply(ticket, trail, Transition{To: domain.StatusOpen, Actor: "bob"}, created.Add(2*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, domain.StatusOpen, ticket.Status)
	assert.Equal(t, 2, trail.Len())
}

func TestApplyRejectsTerminalSource(t *testing.T) {
	m := New(rules.Default())
	for _, status := range []string{domain.StatusClosed, domain.StatusCancelled} {
		t.Run(status, func(t *testing.T) {
			ticket, trail := newTicket(t, status)
			before := *ticket

			_, err := m.Apply(ticket, trail, Transition{To: domain.StatusOpen, Actor: "carol"}, created.Add(time.Hour))
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidTransition))

			var transitionErr *TransitionError
			require.True(t, errors.As(err, &transitionErr))
			assert.Equal(t, status, transitionErr.From)
			assert.Equal(t, domain.StatusOpen, transitionErr.To)

			assert.Equal(t, before, *ticket)
			assert.Equal(t, 0, trail.Len())
		})
	}
}

func TestApplyHoldReason(t *testing.T) {
	m := New(rules.Default())
	ticket, trail := newTicket(t, domain.StatusInProgress)

	_, err := m.Apply(ticket, trail, Transition{To: domain.StatusOnHold, HoldReason: "   ", Actor: "dan"}, created.Add(time.Hour))
	assert.ErrorIs(t, err, ErrMissingHoldReason)
	assert.Equal(t, domain.StatusInProgress, ticket.Status)
	assert.Equal(t, 0, trail.Len())

	update, err := m.Apply(ticket, trail, Transition{To: domain.StatusOnHold, HoldReason: " Blocked by dependency ", Actor: "dan"}, created.Add(2*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, domain.StatusOnHold, ticket.Status)
	assert.Equal(t, "Blocked by dependency", ticket.HoldReason)
	assert.Equal(t, "Status changed from In Progress to On Hold (reason: Blocked by dependency)", update.Body)

	_, err = m.Apply(ticket, trail, Transition{To: domain.StatusInProgress, HoldReason: "ignored", Actor: "dan"}, created.Add(3*time.Hour))
	require.NoError(t, err)
	assert.Empty(t, ticket.HoldReason)
}

func TestApplyOnHoldReasonChange(t *testing.T) {
	m := New(rules.Default())
	ticket, trail := newTicket(t, domain.StatusOnHold)

	_, err := m.Apply(ticket, trail, Transition{To: domain.StatusOnHold, HoldReason: ticket.HoldReason}, created.Add(time.Hour))
	assert.ErrorIs(t, err, ErrNoStatusChange)

	_, err = m.Apply(ticket, trail, Transition{To: domain.StatusOnHold, HoldReason: "Pending scheduled work"}, created.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, "Pending scheduled work", ticket.HoldReason)
	assert.Equal(t, 1, trail.Len())
}

func TestApplyRejectsUnknownAndUnchangedStatus(t *testing.T) {
	m := New(rules.Default())
	ticket, trail := newTicket(t, domain.StatusOpen)

	_, err := m.Apply(ticket, trail, Transition{To: "Archived"}, created.Add(time.Hour))
	assert.ErrorIs(t, err, ErrUnknownStatus)

	_, err = m.Apply(ticket, trail, Transition{To: domain.StatusOpen}, created.Add(time.Hour))
	assert.ErrorIs(t, err, ErrNoStatusChange)
	assert.Equal(t, 0, trail.Len())
}

func TestApplyAdvancesUpdatedAtWithStaleClock(t *testing.T) {
	m := New(rules.Default())
	ticket, trail := newTicket(t, domain.StatusOpen)
	ticket.UpdatedAt = created.Add(time.Hour)

	_, err := m.Apply(ticket, trail, Transition{To: domain.StatusInProgress}, created)
	require.NoError(t, err)
	assert.True(t, ticket.UpdatedAt.After(created.Add(time.Hour)))
}

func TestApplyRejectsForeignTrail(t *testing.T) {
	m := New(rules.Default())
	ticket, _ := newTicket(t, domain.StatusOpen)
	other, err := audit.NewTrail("T-2")
	require.NoError(t, err)

	_, err = m.Apply(ticket, other, Transition{To: domain.StatusInProgress}, created.Add(time.Hour))
	assert.ErrorIs(t, err, audit.ErrForeignUpdate)
	assert.Equal(t, domain.StatusOpen, ticket.Status)
}

func TestTargets(t *testing.T) {
	m := New(rules.Default())

	open, _ := newTicket(t, domain.StatusOpen)
	assert.Equal(t, []string{
		domain.StatusInProgress,
		domain.StatusOnHold,
		domain.StatusResolved,
		domain.StatusClosed,
		domain.StatusCancelled,
	}, m.Targets(open))

	closed, _ := newTicket(t, domain.StatusClosed)
	assert.Empty(t, m.Targets(closed))
}

func TestOpen(t *testing.T) {
	m := New(rules.Default())
	ticket := &domain.Ticket{ID: "T-9", Priority: "Low", Status: domain.StatusResolved, HoldReason: "stale"}
	trail, err := audit.NewTrail(ticket.ID)
	require.NoError(t, err)

	update, err := m.Open(ticket, trail, "erin", created)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusOpen, ticket.Status)
	assert.Empty(t, ticket.HoldReason)
	assert.Equal(t, created, ticket.CreatedAt)
	assert.Equal(t, created, ticket.UpdatedAt)
	assert.Equal(t, "Ticket created", update.Body)
	assert.Equal(t, domain.StatusOpen, update.StatusTo)
	assert.True(t, update.IsStatusChange())
}
