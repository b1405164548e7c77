package sla

import (
	"fmt"
	"math"
	"time"

	"github.com/opsdesk/ticket-rules/internal/domain"
	"github.com/opsdesk/ticket-rules/internal/rules"
)

// Countdown returns the days left before t breaches its SLA: the time to the
// due date when one is set, otherwise the last priority age limit minus the
// ticket's age. Negative values mean the SLA is already breached.
func Countdown(t *domain.Ticket, cfg *rules.Config, now time.Time) float64 {
	if t.DueDate != nil {
		return days(t.DueDate.Sub(now))
	}
	limit := cfg.DefaultDueDays()
	if limits := cfg.PriorityThresholds(t.Priority); len(limits) > 0 {
		limit = limits[len(limits)-1]
	}
	return float64(limit) - ageDays(t, now)
}

// FormatCountdown renders a countdown as "3 days left", "due today",
// "overdue" or "2 days overdue".
func FormatCountdown(remaining float64) string {
	switch {
	case remaining >= 1:
		return pluralDays(int(math.Floor(remaining))) + " left"
	case remaining > 0:
		return "due today"
	case remaining > -1:
		return "overdue"
	default:
		return pluralDays(int(math.Floor(-remaining))) + " overdue"
	}
}

func pluralDays(n int) string {
	if n == 1 {
		return "1 day"
	}
	return fmt.Sprintf("%d days", n)
}
