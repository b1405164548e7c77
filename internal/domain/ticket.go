package domain

import "time"

// Built-in status identifiers. The configured status list is an open set;
// these are the names the workflow attaches meaning to.
const (
	StatusOpen       = "Open"
	StatusInProgress = "In Progress"
	StatusOnHold     = "On Hold"
	StatusResolved   = "Resolved"
	StatusClosed     = "Closed"
	StatusCancelled  = "Cancelled"
)

// IsTerminalStatus reports whether no transition may leave status.
func IsTerminalStatus(status string) bool {
	return status == StatusClosed || status == StatusCancelled
}

// Ticket is the unit of work tracked by the rules engine.
type Ticket struct {
	ID               string
	Title            string
	Description      string
	Notes            string
	Requester        string
	Watchers         []string
	Priority         string
	Status           string
	DueDate          *time.Time
	HoldReason       string
	Tags             []string
	Links            []string
	Attachments      []AttachmentReference
	CreatedAt        time.Time
	UpdatedAt        time.Time
	// AgeReferenceDate restarts the age clock when set.
	AgeReferenceDate *time.Time
}

// IsCancelled drives strike-through rendering in consumers.
func (t *Ticket) IsCancelled() bool {
	return t.Status == StatusCancelled
}

// IsTerminal reports whether the ticket is Closed or Cancelled.
func (t *Ticket) IsTerminal() bool {
	return IsTerminalStatus(t.Status)
}

// IsOnHold reports whether the ticket is parked with a hold reason.
func (t *Ticket) IsOnHold() bool {
	return t.Status == StatusOnHold
}

// AgeStart is the instant the age-based SLA clock counts from.
func (t *Ticket) AgeStart() time.Time {
	if t.AgeReferenceDate != nil {
		return *t.AgeReferenceDate
	}
	return t.CreatedAt
}

// Touch advances UpdatedAt to now, or just past the previous value when the
// clock has not moved forward, and returns the stamped time.
func (t *Ticket) Touch(now time.Time) time.Time {
	if !now.After(t.UpdatedAt) {
		now = t.UpdatedAt.Add(time.Microsecond)
	}
	if now.Before(t.CreatedAt) {
		now = t.CreatedAt
	}
	t.UpdatedAt = now
	return now
}

// Clone returns a deep copy so callers can mutate without aliasing slices.
func (t *Ticket) Clone() *Ticket {
	if t == nil {
		return nil
	}
	clone := *t
	clone.Watchers = append([]string(nil), t.Watchers...)
	clone.Tags = append([]string(nil), t.Tags...)
	clone.Links = append([]string(nil), t.Links...)
	clone.Attachments = append([]AttachmentReference(nil), t.Attachments...)
	if t.DueDate != nil {
		due := *t.DueDate
		clone.DueDate = &due
	}
	if t.AgeReferenceDate != nil {
		ref := *t.AgeReferenceDate
		clone.AgeReferenceDate = &ref
	}
	return &clone
}

// NormalizeTags trims names, drops empties and duplicates, keeping first-seen order.
func NormalizeTags(names []string) []string {
	seen := make(map[string]struct{}, len(names))
	result := make([]string, 0, len(names))
	for _, name := range names {
		name = trimSpace(name)
		if name == "" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		result = append(result, name)
	}
	return result
}
