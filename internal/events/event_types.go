package events

import (
	"time"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated       EventType = "ticket_created"
	EventTicketStatusChanged EventType = "ticket_status_changed"
	EventTicketUpdateAdded   EventType = "ticket_update_added"
	EventTicketEdited        EventType = "ticket_edited"
	EventTicketOverdue       EventType = "ticket_overdue"
	EventRulesReloaded       EventType = "rules_reloaded"
)

// Event represents a domain event emitted by services.
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	TicketID  string    `json:"ticket_id,omitempty"`
	Actor     string    `json:"actor,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload"`
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	Priority string   `json:"priority"`
	Title    string   `json:"title"`
	Tags     []string `json:"tags,omitempty"`
}

// TicketStatusChangedPayload payload.
type TicketStatusChangedPayload struct {
	OldStatus  string `json:"old_status"`
	NewStatus  string `json:"new_status"`
	HoldReason string `json:"hold_reason,omitempty"`
	UpdateID   string `json:"update_id"`
}

// TicketUpdateAddedPayload payload.
type TicketUpdateAddedPayload struct {
	UpdateID    string `json:"update_id"`
	Author      string `json:"author"`
	BodyPreview string `json:"body_preview"`
	Attachments int    `json:"attachments"`
}

// TicketEditedPayload lists the fields an edit changed.
type TicketEditedPayload struct {
	Fields []string `json:"fields"`
}

// TicketOverduePayload payload.
type TicketOverduePayload struct {
	Status   string `json:"status"`
	Priority string `json:"priority"`
	Basis    string `json:"basis"`
	Color    string `json:"color"`
}

// RulesReloadedPayload payload.
type RulesReloadedPayload struct {
	Path       string `json:"path"`
	Statuses   int    `json:"statuses"`
	Priorities int    `json:"priorities"`
}
