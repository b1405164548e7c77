package service

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/opsdesk/ticket-rules/internal/domain"
	"github.com/opsdesk/ticket-rules/internal/rules"
)

// SortKey selects the ordering of a ticket listing.
type SortKey string

const (
	// SortDefault keeps creation order.
	SortDefault  SortKey = ""
	SortDue      SortKey = "due"
	SortPriority SortKey = "priority"
	SortUpdated  SortKey = "updated"
	SortCreated  SortKey = "created"
)

// SortOrder is the direction of a SortKey.
type SortOrder string

const (
	OrderAsc  SortOrder = "asc"
	OrderDesc SortOrder = "desc"
)

// ParseSort validates the sort and order query values. An empty order picks
// the key's natural direction: due and priority ascending, timestamps newest
// first.
func ParseSort(rawSort, rawOrder string) (SortKey, SortOrder, error) {
	key := SortKey(strings.ToLower(strings.TrimSpace(rawSort)))
	switch key {
	case SortDefault, SortDue, SortPriority, SortUpdated, SortCreated:
	default:
		return "", "", fmt.Errorf("unknown sort %q", rawSort)
	}

	order := SortOrder(strings.ToLower(strings.TrimSpace(rawOrder)))
	switch order {
	case OrderAsc, OrderDesc:
		return key, order, nil
	case "":
		if key == SortUpdated || key == SortCreated {
			return key, OrderDesc, nil
		}
		return key, OrderAsc, nil
	default:
		return "", "", fmt.Errorf("unknown order %q", rawOrder)
	}
}

// sortTickets orders tickets in place. The input is expected in creation
// order, which stays the tiebreak.
func sortTickets(tickets []domain.Ticket, cfg *rules.Config, key SortKey, order SortOrder) {
	desc := order == OrderDesc
	var less func(a, b *domain.Ticket) bool
	switch key {
	case SortDue:
		less = func(a, b *domain.Ticket) bool {
			if c := compareDue(a.DueDate, b.DueDate, desc); c != 0 {
				return c < 0
			}
			return directed(compareInt(cfg.PriorityRank(a.Priority), cfg.PriorityRank(b.Priority)), desc) < 0
		}
	case SortPriority:
		less = func(a, b *domain.Ticket) bool {
			if c := directed(compareInt(cfg.PriorityRank(a.Priority), cfg.PriorityRank(b.Priority)), desc); c != 0 {
				return c < 0
			}
			if c := compareDue(a.DueDate, b.DueDate, false); c != 0 {
				return c < 0
			}
			return a.UpdatedAt.After(b.UpdatedAt)
		}
	case SortUpdated:
		less = func(a, b *domain.Ticket) bool {
			return directed(a.UpdatedAt.Compare(b.UpdatedAt), desc) < 0
		}
	case SortCreated:
		less = func(a, b *domain.Ticket) bool {
			return directed(a.CreatedAt.Compare(b.CreatedAt), desc) < 0
		}
	default:
		return
	}
	sort.SliceStable(tickets, func(i, j int) bool { return less(&tickets[i], &tickets[j]) })
}

// compareDue orders by due date with undated tickets last in either
// direction.
func compareDue(a, b *time.Time, desc bool) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	}
	return directed(a.Compare(*b), desc)
}

func compareInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func directed(c int, desc bool) int {
	if desc {
		return -c
	}
	return c
}
