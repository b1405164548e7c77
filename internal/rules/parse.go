package rules

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/opsdesk/ticket-rules/internal/domain"
)

// Parse validates a raw configuration tree and resolves it into a Config.
// Structural errors are reported as *ConfigError; nothing is returned
// alongside an error.
func Parse(raw map[string]any) (*Config, error) {
	if raw == nil {
		return nil, configErrorf("statuses", "required key missing")
	}

	cfg := &Config{
		palette:     make(map[string]string, len(PaletteKeys)),
		statusSet:   make(map[string]struct{}),
		prioritySet: make(map[string]struct{}),
	}

	statusKey := "statuses"
	rawStatuses, ok := raw[statusKey]
	if !ok {
		// Older files call the status list "workflow".
		statusKey = "workflow"
		rawStatuses, ok = raw[statusKey]
	}
	if !ok {
		return nil, configErrorf("statuses", "required key missing")
	}
	statuses, err := uniqueNames(statusKey, rawStatuses)
	if err != nil {
		return nil, err
	}
	for _, status := range statuses {
		cfg.statusSet[status] = struct{}{}
	}
	if _, ok := cfg.statusSet[domain.StatusOpen]; !ok {
		return nil, configErrorf(statusKey, "must include the initial status %q", domain.StatusOpen)
	}
	cfg.statuses = statuses

	rawPriorities, ok := raw["priorities"]
	if !ok {
		return nil, configErrorf("priorities", "required key missing")
	}
	priorities, err := uniqueNames("priorities", rawPriorities)
	if err != nil {
		return nil, err
	}
	for _, priority := range priorities {
		cfg.prioritySet[priority] = struct{}{}
	}
	cfg.priorities = priorities

	if rawReasons, ok := raw["hold_reasons"]; ok && rawReasons != nil {
		reasons, ok := toStringList(rawReasons)
		if !ok {
			return nil, configErrorf("hold_reasons", "must be a list of strings")
		}
		cfg.holdReasons = dedupe(reasons, false)
	}

	if cfg.sla, err = parseSLA(raw["sla"], cfg.prioritySet); err != nil {
		return nil, err
	}
	if err := parsePalette(raw["palette"], cfg.palette); err != nil {
		return nil, err
	}
	if cfg.summary, err = parseSummary(raw["clipboard_summary"]); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the built-in configuration.
func Default() *Config {
	cfg, err := Parse(map[string]any{
		"statuses": []any{
			domain.StatusOpen,
			domain.StatusInProgress,
			domain.StatusOnHold,
			domain.StatusResolved,
			domain.StatusClosed,
			domain.StatusCancelled,
		},
		"priorities": []any{"Low", "Medium", "High", "Critical"},
		"hold_reasons": []any{
			"Awaiting customer response",
			"Blocked by dependency",
			"Pending scheduled work",
			"Researching solution",
		},
	})
	if err != nil {
		panic(fmt.Sprintf("rules: built-in configuration invalid: %v", err))
	}
	return cfg
}

func parseSLA(raw any, priorities map[string]struct{}) (SLAConfig, error) {
	sla := SLAConfig{
		DueStageDays:      append([]int(nil), defaultDueStageDays...),
		PriorityStageDays: map[string][]int{},
		DefaultDueDays:    defaultBacklogDueDays,
	}
	if raw == nil {
		return sla, nil
	}
	section, ok := toMap(raw)
	if !ok {
		return sla, configErrorf("sla", "must be an object")
	}

	if rawDue, ok := section["due_stage_days"]; ok && rawDue != nil {
		days, err := dayList("sla.due_stage_days", rawDue)
		if err != nil {
			return sla, err
		}
		sort.Sort(sort.Reverse(sort.IntSlice(days)))
		for i := 1; i < len(days); i++ {
			if days[i] == days[i-1] {
				return sla, configErrorf("sla.due_stage_days", "duplicate threshold %d", days[i])
			}
		}
		sla.DueStageDays = days
	}

	if rawPriority, ok := section["priority_stage_days"]; ok && rawPriority != nil {
		byPriority, ok := toMap(rawPriority)
		if !ok {
			return sla, configErrorf("sla.priority_stage_days", "must be an object")
		}
		for priority, rawDays := range byPriority {
			if _, known := priorities[priority]; !known {
				continue
			}
			field := "sla.priority_stage_days." + priority
			days, err := dayList(field, rawDays)
			if err != nil {
				return sla, err
			}
			for i := 1; i < len(days); i++ {
				if days[i] <= days[i-1] {
					return sla, configErrorf(field, "must be strictly ascending")
				}
			}
			sla.PriorityStageDays[priority] = days
		}
	}

	if rawDefault, ok := section["default_due_days"]; ok && rawDefault != nil {
		days, ok := toInt(rawDefault)
		if !ok || days < 0 {
			return sla, configErrorf("sla.default_due_days", "must be a non-negative integer")
		}
		sla.DefaultDueDays = days
	}
	return sla, nil
}

func parsePalette(raw any, palette map[string]string) error {
	if raw == nil {
		return nil
	}
	section, ok := toMap(raw)
	if !ok {
		return configErrorf("palette", "must be an object")
	}
	for _, key := range PaletteKeys {
		value, present := section[key]
		if !present || value == nil {
			continue
		}
		color, ok := value.(string)
		if !ok {
			return configErrorf("palette."+key, "must be a string")
		}
		if color = strings.TrimSpace(color); color != "" {
			palette[key] = color
		}
	}
	return nil
}

func parseSummary(raw any) (SummaryConfig, error) {
	summary := SummaryConfig{UpdatesLimit: defaultUpdatesLimit}
	section := map[string]any{}
	if raw != nil {
		var ok bool
		if section, ok = toMap(raw); !ok {
			return summary, configErrorf("clipboard_summary", "must be an object")
		}
	}

	htmlSections, err := sectionList("clipboard_summary.html_sections", section["html_sections"])
	if err != nil {
		return summary, err
	}
	textSections, err := sectionList("clipboard_summary.text_sections", section["text_sections"])
	if err != nil {
		return summary, err
	}
	if len(htmlSections) == 0 {
		htmlSections = append([]string(nil), KnownSections...)
	}
	if len(textSections) == 0 {
		textSections = append([]string(nil), htmlSections...)
	}
	summary.HTMLSections = htmlSections
	summary.TextSections = textSections

	if rawLimit, ok := section["updates_limit"]; ok && rawLimit != nil {
		limit, ok := toInt(rawLimit)
		if !ok || limit < 0 {
			return summary, configErrorf("clipboard_summary.updates_limit", "must be a non-negative integer")
		}
		summary.UpdatesLimit = limit
	}
	return summary, nil
}

// sectionList trims, lower-cases and de-duplicates section names.
func sectionList(field string, raw any) ([]string, error) {
	if raw == nil {
		return nil, nil
	}
	values, ok := toStringList(raw)
	if !ok {
		return nil, configErrorf(field, "must be a list of strings")
	}
	known := make(map[string]struct{}, len(KnownSections))
	for _, name := range KnownSections {
		known[name] = struct{}{}
	}
	sections := dedupe(values, true)
	for i, name := range sections {
		if _, ok := known[name]; !ok {
			return nil, configErrorf(fmt.Sprintf("%s[%d]", field, i), "unknown section %q", name)
		}
	}
	return sections, nil
}

func uniqueNames(field string, raw any) ([]string, error) {
	values, ok := toStringList(raw)
	if !ok {
		return nil, configErrorf(field, "must be a list of strings")
	}
	if len(values) == 0 {
		return nil, configErrorf(field, "must not be empty")
	}
	seen := make(map[string]struct{}, len(values))
	names := make([]string, 0, len(values))
	for i, value := range values {
		name := strings.TrimSpace(value)
		if name == "" {
			return nil, configErrorf(fmt.Sprintf("%s[%d]", field, i), "must not be blank")
		}
		if _, dup := seen[name]; dup {
			return nil, configErrorf(fmt.Sprintf("%s[%d]", field, i), "duplicate value %q", name)
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}
	return names, nil
}

func dayList(field string, raw any) ([]int, error) {
	items, ok := toList(raw)
	if !ok {
		return nil, configErrorf(field, "must be a list of day counts")
	}
	if len(items) == 0 {
		return nil, configErrorf(field, "must not be empty")
	}
	days := make([]int, 0, len(items))
	for i, item := range items {
		day, ok := toInt(item)
		if !ok || day < 0 {
			return nil, configErrorf(fmt.Sprintf("%s[%d]", field, i), "must be a non-negative integer")
		}
		days = append(days, day)
	}
	return days, nil
}

func dedupe(values []string, lower bool) []string {
	seen := make(map[string]struct{}, len(values))
	result := make([]string, 0, len(values))
	for _, value := range values {
		value = strings.TrimSpace(value)
		if lower {
			value = strings.ToLower(value)
		}
		if value == "" {
			continue
		}
		if _, ok := seen[value]; ok {
			continue
		}
		seen[value] = struct{}{}
		result = append(result, value)
	}
	return result
}

func toMap(raw any) (map[string]any, bool) {
	switch v := raw.(type) {
	case map[string]any:
		return v, true
	case map[any]any:
		converted := make(map[string]any, len(v))
		for key, value := range v {
			converted[fmt.Sprint(key)] = value
		}
		return converted, true
	default:
		return nil, false
	}
}

func toList(raw any) ([]any, bool) {
	switch v := raw.(type) {
	case []any:
		return v, true
	case []string:
		items := make([]any, len(v))
		for i := range v {
			items[i] = v[i]
		}
		return items, true
	case []int:
		items := make([]any, len(v))
		for i := range v {
			items[i] = v[i]
		}
		return items, true
	default:
		return nil, false
	}
}

func toStringList(raw any) ([]string, bool) {
	items, ok := toList(raw)
	if !ok {
		return nil, false
	}
	values := make([]string, 0, len(items))
	for _, item := range items {
		value, ok := item.(string)
		if !ok {
			return nil, false
		}
		values = append(values, value)
	}
	return values, true
}

func toInt(raw any) (int, bool) {
	switch v := raw.(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case uint64:
		return int(v), true
	case float64:
		if v != math.Trunc(v) {
			return 0, false
		}
		return int(v), true
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return 0, false
		}
		return int(n), true
	default:
		return 0, false
	}
}

func trim(s string) string {
	return strings.TrimSpace(s)
}
