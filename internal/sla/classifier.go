// Package sla maps a ticket's temporal urgency to a color stage.
package sla

import (
	"time"

	"github.com/opsdesk/ticket-rules/internal/domain"
	"github.com/opsdesk/ticket-rules/internal/rules"
)

// Stage is an ordinal urgency bucket. Higher is more urgent.
type Stage int

const (
	// StageNone marks classifications decided by a status override.
	StageNone Stage = iota - 1
	Stage0
	Stage1
	Stage2
	Stage3
	StageOverdue
)

func (s Stage) String() string {
	switch s {
	case Stage0:
		return rules.PaletteStage0
	case Stage1:
		return rules.PaletteStage1
	case Stage2:
		return rules.PaletteStage2
	case Stage3:
		return rules.PaletteStage3
	case StageOverdue:
		return rules.PaletteOverdue
	default:
		return "none"
	}
}

// Basis records which rule produced a classification.
type Basis string

const (
	BasisStatus  Basis = "status"
	BasisDueDate Basis = "due_date"
	BasisAge     Basis = "age"
)

// Classification is the result of Classify.
type Classification struct {
	Stage Stage
	Color string
	Basis Basis
}

const day = 24 * time.Hour

// Classify computes the urgency stage and display color of t at now.
func Classify(t *domain.Ticket, cfg *rules.Config, now time.Time) Classification {
	switch t.Status {
	case domain.StatusOnHold:
		return Classification{Stage: StageNone, Color: rules.OnHoldColor, Basis: BasisStatus}
	case domain.StatusResolved:
		return Classification{Stage: StageNone, Color: rules.ResolvedColor, Basis: BasisStatus}
	}

	var (
		stage Stage
		basis Basis
	)
	if t.DueDate != nil {
		stage, basis = dueStage(days(t.DueDate.Sub(now)), cfg.DueThresholds()), BasisDueDate
	} else {
		stage, basis = ageStage(ageDays(t, now), cfg.PriorityThresholds(t.Priority)), BasisAge
	}
	return Classification{Stage: stage, Color: cfg.Color(stage.String()), Basis: basis}
}

// dueStage counts the thresholds the remaining time has crossed. Anything
// inside the smallest threshold is stage 3 however short the list is.
func dueStage(remaining float64, thresholds []int) Stage {
	if remaining <= 0 {
		return StageOverdue
	}
	if n := len(thresholds); n > 0 && remaining <= float64(thresholds[n-1]) {
		return Stage3
	}
	crossed := 0
	for _, threshold := range thresholds {
		if remaining <= float64(threshold) {
			crossed++
		}
	}
	return capStage(crossed)
}

// ageStage returns the index of the first limit the age has not exceeded.
func ageStage(age float64, limits []int) Stage {
	for i, limit := range limits {
		if age <= float64(limit) {
			return capStage(i)
		}
	}
	if len(limits) == 0 {
		return Stage0
	}
	return StageOverdue
}

func capStage(n int) Stage {
	if n > int(Stage3) {
		return Stage3
	}
	return Stage(n)
}

func ageDays(t *domain.Ticket, now time.Time) float64 {
	age := days(now.Sub(t.AgeStart()))
	if age < 0 {
		return 0
	}
	return age
}

func days(d time.Duration) float64 {
	return float64(d) / float64(day)
}
