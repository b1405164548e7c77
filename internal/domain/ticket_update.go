package domain

import (
	"strings"
	"time"
)

// TicketUpdate is one immutable entry in a ticket's audit trail.
type TicketUpdate struct {
	ID              string
	TicketID        string
	Seq             int64
	Author          string
	Body            string
	StatusFrom      string
	StatusTo        string
	SystemGenerated bool
	Links           []string
	Attachments     []AttachmentReference
	CreatedAt       time.Time
}

// IsStatusChange reports whether the entry documents a status transition.
func (u TicketUpdate) IsStatusChange() bool {
	return u.SystemGenerated && u.StatusTo != "" && u.StatusFrom != u.StatusTo
}

// Before orders updates by creation time, then by sequence number.
func (u TicketUpdate) Before(other TicketUpdate) bool {
	if !u.CreatedAt.Equal(other.CreatedAt) {
		return u.CreatedAt.Before(other.CreatedAt)
	}
	return u.Seq < other.Seq
}

// AttachmentReference stores metadata for files linked to a ticket or update.
type AttachmentReference struct {
	ID         string
	TicketID   string
	UpdateID   *string
	StorageKey string
	FileName   string
	MimeType   string
	SizeBytes  int64
	CreatedAt  time.Time
}

func trimSpace(s string) string {
	return strings.TrimSpace(s)
}
