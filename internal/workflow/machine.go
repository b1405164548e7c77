// Package workflow validates and applies ticket status transitions.
package workflow

import (
	"fmt"
	"strings"
	"time"

	"github.com/opsdesk/ticket-rules/internal/audit"
	"github.com/opsdesk/ticket-rules/internal/domain"
	"github.com/opsdesk/ticket-rules/internal/rules"
)

// Transition is a requested status change.
type Transition struct {
	To         string
	HoldReason string
	Actor      string
}

// Machine applies transitions under a rules configuration.
type Machine struct {
	cfg *rules.Config
}

// New constructs a Machine.
func New(cfg *rules.Config) *Machine {
	return &Machine{cfg: cfg}
}

// Apply validates tr against ticket, mutates the ticket, and appends exactly
// one system update to trail. On error neither the ticket nor the trail is
// modified.
func (m *Machine) Apply(ticket *domain.Ticket, trail *audit.Trail, tr Transition, now time.Time) (domain.TicketUpdate, error) {
	if err := m.Check(ticket, tr); err != nil {
		return domain.TicketUpdate{}, err
	}
	if trail.TicketID() != ticket.ID {
		return domain.TicketUpdate{}, fmt.Errorf("%w: trail %s", audit.ErrForeignUpdate, trail.TicketID())
	}

	from := ticket.Status
	reason := ""
	if tr.To == domain.StatusOnHold {
		reason = strings.TrimSpace(tr.HoldReason)
	}

	// Stamp on a copy so a failed append leaves the ticket untouched.
	stamped := *ticket
	at := stamped.Touch(now)
	update, err := trail.Append(domain.TicketUpdate{
		TicketID:        ticket.ID,
		Author:          tr.Actor,
		Body:            changeMessage(from, tr.To, reason),
		StatusFrom:      from,
		StatusTo:        tr.To,
		SystemGenerated: true,
		CreatedAt:       at,
	})
	if err != nil {
		return domain.TicketUpdate{}, err
	}

	ticket.Status = tr.To
	ticket.HoldReason = reason
	ticket.UpdatedAt = at
	return update, nil
}

// Check reports whether tr would be accepted for ticket without applying it.
func (m *Machine) Check(ticket *domain.Ticket, tr Transition) error {
	fail := func(err error) error {
		return &TransitionError{TicketID: ticket.ID, From: ticket.Status, To: tr.To, Err: err}
	}
	if ticket.IsTerminal() {
		return fail(ErrInvalidTransition)
	}
	if !m.cfg.HasStatus(tr.To) {
		return fail(ErrUnknownStatus)
	}
	reason := strings.TrimSpace(tr.HoldReason)
	if tr.To == domain.StatusOnHold && reason == "" {
		return fail(ErrMissingHoldReason)
	}
	if tr.To == ticket.Status && (tr.To != domain.StatusOnHold || reason == ticket.HoldReason) {
		return fail(ErrNoStatusChange)
	}
	if !m.cfg.CanTransition(ticket.Status, tr.To) {
		return fail(ErrInvalidTransition)
	}
	return nil
}

// Targets lists the statuses ticket may move to, in configured order.
func (m *Machine) Targets(ticket *domain.Ticket) []string {
	if ticket.IsTerminal() {
		return []string{}
	}
	targets := make([]string, 0, len(m.cfg.Statuses()))
	for _, status := range m.cfg.Statuses() {
		if status != ticket.Status || status == domain.StatusOnHold {
			targets = append(targets, status)
		}
	}
	return targets
}

// Open initializes a new ticket in the initial status and records its
// creation in trail.
func (m *Machine) Open(ticket *domain.Ticket, trail *audit.Trail, actor string, now time.Time) (domain.TicketUpdate, error) {
	ticket.Status = domain.StatusOpen
	ticket.HoldReason = ""
	if ticket.CreatedAt.IsZero() {
		ticket.CreatedAt = now
	}
	ticket.UpdatedAt = ticket.CreatedAt
	return trail.Append(domain.TicketUpdate{
		TicketID:        ticket.ID,
		Author:          actor,
		Body:            "Ticket created",
		StatusTo:        domain.StatusOpen,
		SystemGenerated: true,
		CreatedAt:       ticket.CreatedAt,
	})
}

func changeMessage(from, to, reason string) string {
	message := fmt.Sprintf("Status changed from %s to %s", from, to)
	if reason != "" {
		message += fmt.Sprintf(" (reason: %s)", reason)
	}
	return message
}
