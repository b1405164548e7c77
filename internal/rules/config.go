package rules

import (
	"fmt"

	"github.com/opsdesk/ticket-rules/internal/domain"
)

// Palette keys for the SLA gradient.
const (
	PaletteStage0  = "stage0"
	PaletteStage1  = "stage1"
	PaletteStage2  = "stage2"
	PaletteStage3  = "stage3"
	PaletteOverdue = "overdue"
)

// Fixed status colors; these bypass staging and are not configurable.
const (
	OnHoldColor   = "#9c88ff"
	ResolvedColor = "#2ed573"
)

// Summary section names.
const (
	SectionHeader      = "header"
	SectionTimestamps  = "timestamps"
	SectionMeta        = "meta"
	SectionPeople      = "people"
	SectionDescription = "description"
	SectionLinks       = "links"
	SectionNotes       = "notes"
	SectionTags        = "tags"
	SectionUpdates     = "updates"
)

// KnownSections lists every summary section in default order.
var KnownSections = []string{
	SectionHeader,
	SectionTimestamps,
	SectionMeta,
	SectionPeople,
	SectionDescription,
	SectionLinks,
	SectionNotes,
	SectionTags,
	SectionUpdates,
}

// PaletteKeys lists the gradient keys, least to most urgent.
var PaletteKeys = []string{PaletteStage0, PaletteStage1, PaletteStage2, PaletteStage3, PaletteOverdue}

var defaultPalette = map[string]string{
	PaletteStage0:  "#bae6fd",
	PaletteStage1:  "#fde047",
	PaletteStage2:  "#fb923c",
	PaletteStage3:  "#ef4444",
	PaletteOverdue: "#7f1d1d",
}

var (
	defaultDueStageDays      = []int{28, 21, 14, 7}
	defaultPriorityStageDays = map[string][]int{
		"Low":      {14, 21, 28, 35},
		"Medium":   {10, 15, 20, 25},
		"High":     {5, 7, 10, 14},
		"Critical": {2, 3, 5, 7},
	}
	fallbackPriorityStageDays = []int{7, 14, 21, 28}
)

const (
	defaultUpdatesLimit   = 1
	defaultBacklogDueDays = 21
)

// Config is the resolved, immutable rules configuration. Build it with Parse
// or LoadFile; the zero value is not usable.
type Config struct {
	statuses    []string
	priorities  []string
	holdReasons []string
	sla         SLAConfig
	palette     map[string]string
	summary     SummaryConfig
	statusSet   map[string]struct{}
	prioritySet map[string]struct{}
}

// SLAConfig holds day thresholds for stage classification.
type SLAConfig struct {
	// DueStageDays is strictly descending.
	DueStageDays []int
	// PriorityStageDays maps priority to a strictly ascending list of day limits.
	PriorityStageDays map[string][]int
	DefaultDueDays    int
}

// SummaryConfig controls the ordered export composer.
type SummaryConfig struct {
	HTMLSections []string
	TextSections []string
	UpdatesLimit int
}

// Statuses returns the configured statuses in display order.
func (c *Config) Statuses() []string { return append([]string(nil), c.statuses...) }

// Priorities returns the configured priorities in rank order.
func (c *Config) Priorities() []string { return append([]string(nil), c.priorities...) }

// HoldReasons returns the hold reason presets.
func (c *Config) HoldReasons() []string { return append([]string(nil), c.holdReasons...) }

// HasStatus reports whether status is configured.
func (c *Config) HasStatus(status string) bool {
	_, ok := c.statusSet[status]
	return ok
}

// HasPriority reports whether priority is configured.
func (c *Config) HasPriority(priority string) bool {
	_, ok := c.prioritySet[priority]
	return ok
}

// PriorityRank returns the index of priority, or len(priorities) when unknown.
func (c *Config) PriorityRank(priority string) int {
	for i, p := range c.priorities {
		if p == priority {
			return i
		}
	}
	return len(c.priorities)
}

// CanTransition reports whether the workflow graph has an edge from -> to.
// Every non-terminal status reaches every configured status.
func (c *Config) CanTransition(from, to string) bool {
	if domain.IsTerminalStatus(from) {
		return false
	}
	return c.HasStatus(to)
}

// DueThresholds returns the descending due-date stage thresholds.
func (c *Config) DueThresholds() []int {
	return append([]int(nil), c.sla.DueStageDays...)
}

// PriorityThresholds returns the ascending age limits for priority, falling
// back to the built-in defaults for that priority, then to a generic list.
func (c *Config) PriorityThresholds(priority string) []int {
	if limits, ok := c.sla.PriorityStageDays[priority]; ok {
		return append([]int(nil), limits...)
	}
	if limits, ok := defaultPriorityStageDays[priority]; ok {
		return append([]int(nil), limits...)
	}
	return append([]int(nil), fallbackPriorityStageDays...)
}

// DefaultDueDays is the backlog SLA used when no thresholds resolve.
func (c *Config) DefaultDueDays() int { return c.sla.DefaultDueDays }

// Color returns the palette color for key, falling back to the built-in value.
func (c *Config) Color(key string) string {
	if color, ok := c.palette[key]; ok {
		return color
	}
	if color, ok := defaultPalette[key]; ok {
		return color
	}
	return defaultPalette[PaletteStage0]
}

// Summary returns the resolved summary section configuration.
func (c *Config) Summary() SummaryConfig {
	return SummaryConfig{
		HTMLSections: append([]string(nil), c.summary.HTMLSections...),
		TextSections: append([]string(nil), c.summary.TextSections...),
		UpdatesLimit: c.summary.UpdatesLimit,
	}
}

// ValidateTicket rejects tickets whose priority or status is not configured,
// or whose hold reason disagrees with the status.
func (c *Config) ValidateTicket(t *domain.Ticket) error {
	if t == nil {
		return fmt.Errorf("ticket is nil")
	}
	if !c.HasPriority(t.Priority) {
		return &ConfigError{Field: "priority", Reason: fmt.Sprintf("unknown priority %q", t.Priority)}
	}
	if !c.HasStatus(t.Status) {
		return &ConfigError{Field: "status", Reason: fmt.Sprintf("unknown status %q", t.Status)}
	}
	onHold := t.IsOnHold()
	hasReason := trim(t.HoldReason) != ""
	if onHold != hasReason {
		return &ConfigError{Field: "hold_reason", Reason: "hold reason must be set exactly when status is On Hold"}
	}
	if t.UpdatedAt.Before(t.CreatedAt) {
		return &ConfigError{Field: "updated_at", Reason: "updated_at precedes created_at"}
	}
	return nil
}

// ToMap renders the resolved configuration in the rules file shape.
func (c *Config) ToMap() map[string]any {
	priorityDays := make(map[string]any, len(c.sla.PriorityStageDays))
	for key, values := range c.sla.PriorityStageDays {
		priorityDays[key] = append([]int(nil), values...)
	}
	palette := make(map[string]any, len(PaletteKeys))
	for _, key := range PaletteKeys {
		palette[key] = c.Color(key)
	}
	return map[string]any{
		"statuses":     c.Statuses(),
		"priorities":   c.Priorities(),
		"hold_reasons": c.HoldReasons(),
		"sla": map[string]any{
			"due_stage_days":      c.DueThresholds(),
			"priority_stage_days": priorityDays,
			"default_due_days":    c.sla.DefaultDueDays,
		},
		"palette": palette,
		"clipboard_summary": map[string]any{
			"html_sections": append([]string(nil), c.summary.HTMLSections...),
			"text_sections": append([]string(nil), c.summary.TextSections...),
			"updates_limit": c.summary.UpdatesLimit,
		},
	}
}
