package summary

import (
	"strings"

	"github.com/opsdesk/ticket-rules/internal/rules"
)

var textRenderers = map[string]func(view) string{
	rules.SectionHeader: func(v view) string {
		if v.Cancelled && v.Title != "" {
			return v.Title + " [Cancelled]"
		}
		return v.Title
	},
	rules.SectionTimestamps: func(v view) string {
		return lines(
			labeled("Created", v.Created),
			labeled("Updated", v.Updated),
		)
	},
	rules.SectionMeta: func(v view) string {
		return lines(
			labeled("Status", v.Status),
			labeled("Hold reason", v.HoldReason),
			labeled("Priority", v.Priority),
			labeled("Due", v.Due),
			labeled("SLA", v.Countdown),
		)
	},
	rules.SectionPeople: func(v view) string {
		return lines(
			labeled("Requester", v.Requester),
			labeled("Watchers", strings.Join(v.Watchers, ", ")),
		)
	},
	rules.SectionDescription: func(v view) string {
		return v.Description
	},
	rules.SectionLinks: func(v view) string {
		return bulleted("Links", v.Links)
	},
	rules.SectionNotes: func(v view) string {
		return labeledBlock("Notes", v.Notes)
	},
	rules.SectionTags: func(v view) string {
		return labeled("Tags", strings.Join(v.Tags, ", "))
	},
	rules.SectionUpdates: func(v view) string {
		entries := make([]string, 0, len(v.Updates))
		for _, u := range v.Updates {
			entry := u.When + " · " + u.Author
			if u.Body != "" {
				entry += ": " + u.Body
			}
			entries = append(entries, entry)
		}
		return bulleted("Recent updates", entries)
	},
}

func labeled(label, value string) string {
	if value == "" {
		return ""
	}
	return label + ": " + value
}

func labeledBlock(label, value string) string {
	if value == "" {
		return ""
	}
	return label + ":\n" + value
}

func bulleted(label string, items []string) string {
	if len(items) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString(label)
	b.WriteString(":")
	for _, item := range items {
		b.WriteString("\n- ")
		b.WriteString(item)
	}
	return b.String()
}

func lines(values ...string) string {
	kept := values[:0]
	for _, value := range values {
		if value != "" {
			kept = append(kept, value)
		}
	}
	return strings.Join(kept, "\n")
}
