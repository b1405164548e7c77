// Package audit keeps the append-only, chronological update log of a ticket.
package audit

import (
	"errors"
	"fmt"
	"sort"

	"github.com/opsdesk/ticket-rules/internal/domain"
)

// ErrForeignUpdate is returned when an update belongs to another ticket.
var ErrForeignUpdate = errors.New("update belongs to another ticket")

// Trail is the audit log of one ticket. It is not safe for concurrent use;
// callers serialize access per ticket.
type Trail struct {
	ticketID string
	entries  []domain.TicketUpdate
	lastSeq  int64
}

// NewTrail builds a trail for ticketID seeded with already persisted entries.
func NewTrail(ticketID string, existing ...domain.TicketUpdate) (*Trail, error) {
	trail := &Trail{ticketID: ticketID}
	for _, update := range existing {
		if update.TicketID != ticketID {
			return nil, fmt.Errorf("%w: %s", ErrForeignUpdate, update.ID)
		}
		if update.Seq > trail.lastSeq {
			trail.lastSeq = update.Seq
		}
		trail.entries = append(trail.entries, copyUpdate(update))
	}
	// Entries restored without a sequence are numbered after the known ones.
	for i := range trail.entries {
		if trail.entries[i].Seq == 0 {
			trail.lastSeq++
			trail.entries[i].Seq = trail.lastSeq
		}
	}
	sortChronological(trail.entries)
	return trail, nil
}

// TicketID returns the owning ticket.
func (t *Trail) TicketID() string { return t.ticketID }

// Len returns the number of entries.
func (t *Trail) Len() int { return len(t.entries) }

// Append records update, assigning the next sequence number. The stored copy
// is returned.
func (t *Trail) Append(update domain.TicketUpdate) (domain.TicketUpdate, error) {
	if update.TicketID == "" {
		update.TicketID = t.ticketID
	}
	if update.TicketID != t.ticketID {
		return domain.TicketUpdate{}, fmt.Errorf("%w: %s", ErrForeignUpdate, update.TicketID)
	}
	t.lastSeq++
	update.Seq = t.lastSeq
	stored := copyUpdate(update)
	t.entries = append(t.entries, stored)
	if n := len(t.entries); n > 1 && stored.Before(t.entries[n-2]) {
		sortChronological(t.entries)
	}
	return copyUpdate(stored), nil
}

// Entries returns all entries oldest first.
func (t *Trail) Entries() []domain.TicketUpdate {
	result := make([]domain.TicketUpdate, len(t.entries))
	for i, entry := range t.entries {
		result[i] = copyUpdate(entry)
	}
	return result
}

// Last returns the most recent entry.
func (t *Trail) Last() (domain.TicketUpdate, bool) {
	if len(t.entries) == 0 {
		return domain.TicketUpdate{}, false
	}
	return copyUpdate(t.entries[len(t.entries)-1]), true
}

// Recent returns at most limit entries, newest first.
func (t *Trail) Recent(limit int) []domain.TicketUpdate {
	return Recent(t.entries, limit)
}

// Recent returns at most limit of updates, newest first, without modifying
// the input.
func Recent(updates []domain.TicketUpdate, limit int) []domain.TicketUpdate {
	if limit <= 0 || len(updates) == 0 {
		return []domain.TicketUpdate{}
	}
	ordered := make([]domain.TicketUpdate, len(updates))
	copy(ordered, updates)
	sortChronological(ordered)
	if limit > len(ordered) {
		limit = len(ordered)
	}
	result := make([]domain.TicketUpdate, 0, limit)
	for i := len(ordered) - 1; i >= 0 && len(result) < limit; i-- {
		result = append(result, copyUpdate(ordered[i]))
	}
	return result
}

func sortChronological(entries []domain.TicketUpdate) {
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Before(entries[j])
	})
}

func copyUpdate(update domain.TicketUpdate) domain.TicketUpdate {
	update.Links = append([]string(nil), update.Links...)
	update.Attachments = append([]domain.AttachmentReference(nil), update.Attachments...)
	return update
}
