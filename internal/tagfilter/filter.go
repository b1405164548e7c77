// Package tagfilter evaluates AND/OR tag membership queries.
package tagfilter

import (
	"fmt"
	"sort"
	"strings"

	"github.com/opsdesk/ticket-rules/internal/domain"
)

// Mode selects how query tags combine.
type Mode string

const (
	// ModeAny matches tickets carrying at least one query tag (OR).
	ModeAny Mode = "any"
	// ModeAll matches tickets carrying every query tag (AND).
	ModeAll Mode = "all"
)

// ParseMode accepts any/or and all/and, case-insensitively. An empty value
// selects ModeAny.
func ParseMode(value string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "any", "or":
		return ModeAny, nil
	case "all", "and":
		return ModeAll, nil
	default:
		return "", fmt.Errorf("unknown tag mode %q", value)
	}
}

// Query is a tag membership predicate.
type Query struct {
	Mode Mode
	Tags []string
}

// IsEmpty reports whether the query filters nothing.
func (q Query) IsEmpty() bool {
	return len(q.Tags) == 0
}

// Matches evaluates q against a tag set. Comparison is exact and
// case-sensitive.
func Matches(tags []string, q Query) bool {
	if q.IsEmpty() {
		return true
	}
	set := make(map[string]struct{}, len(tags))
	for _, tag := range tags {
		set[tag] = struct{}{}
	}
	if q.Mode == ModeAll {
		for _, want := range q.Tags {
			if _, ok := set[want]; !ok {
				return false
			}
		}
		return true
	}
	for _, want := range q.Tags {
		if _, ok := set[want]; ok {
			return true
		}
	}
	return false
}

// MatchesTicket evaluates q against the ticket's tags.
func MatchesTicket(t *domain.Ticket, q Query) bool {
	return Matches(t.Tags, q)
}

// Filter returns the tickets matching q ordered by creation time, then id.
func Filter(tickets []domain.Ticket, q Query) []domain.Ticket {
	result := make([]domain.Ticket, 0, len(tickets))
	for i := range tickets {
		if MatchesTicket(&tickets[i], q) {
			result = append(result, tickets[i])
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.Before(result[j].CreatedAt)
		}
		return result[i].ID < result[j].ID
	})
	return result
}
