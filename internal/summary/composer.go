// Package summary composes the ordered, section-based export of a ticket in
// HTML and plain-text form.
package summary

import (
	"bytes"
	"fmt"
	"html/template"
	"sort"
	"strings"
	"time"

	"github.com/opsdesk/ticket-rules/internal/audit"
	"github.com/opsdesk/ticket-rules/internal/domain"
	"github.com/opsdesk/ticket-rules/internal/rules"
	"github.com/opsdesk/ticket-rules/internal/sla"
)

const timestampLayout = "2006-01-02 15:04 UTC"

// Block is one rendered section.
type Block struct {
	Name    string
	Content string
}

// Summary is the composed export.
type Summary struct {
	HTML       string
	Text       string
	HTMLBlocks []Block
	TextBlocks []Block
}

// Compose renders ticket with the section layout of cfg.
func Compose(ticket *domain.Ticket, updates []domain.TicketUpdate, cfg *rules.Config, now time.Time) (Summary, error) {
	return ComposeWith(ticket, updates, cfg, cfg.Summary(), now)
}

// ComposeWith renders ticket with an explicit section layout. Unknown section
// names are skipped.
func ComposeWith(ticket *domain.Ticket, updates []domain.TicketUpdate, cfg *rules.Config, layout rules.SummaryConfig, now time.Time) (Summary, error) {
	v := newView(ticket, audit.Recent(updates, layout.UpdatesLimit), cfg, now)

	var out Summary
	for _, name := range layout.HTMLSections {
		name, ok := sectionName(name)
		if !ok {
			continue
		}
		var buf bytes.Buffer
		if err := htmlTemplates.ExecuteTemplate(&buf, name, v); err != nil {
			return Summary{}, fmt.Errorf("render %s section: %w", name, err)
		}
		out.HTMLBlocks = append(out.HTMLBlocks, Block{Name: name, Content: buf.String()})
	}
	for _, name := range layout.TextSections {
		name, ok := sectionName(name)
		if !ok {
			continue
		}
		render := textRenderers[name]
		out.TextBlocks = append(out.TextBlocks, Block{Name: name, Content: render(v)})
	}
	out.HTML = joinBlocks(out.HTMLBlocks, "\n")
	out.Text = joinBlocks(out.TextBlocks, "\n\n")
	return out, nil
}

func sectionName(raw string) (string, bool) {
	name := strings.ToLower(strings.TrimSpace(raw))
	_, ok := textRenderers[name]
	return name, ok
}

func joinBlocks(blocks []Block, sep string) string {
	parts := make([]string, 0, len(blocks))
	for _, block := range blocks {
		if block.Content != "" {
			parts = append(parts, block.Content)
		}
	}
	return strings.Join(parts, sep)
}

type view struct {
	ID              string
	Title           string
	Cancelled       bool
	Created         string
	Updated         string
	Status          string
	HoldReason      string
	Priority        string
	Due             string
	Countdown       string
	Stage           string
	Color           string
	Requester       string
	Watchers        []string
	Description     string
	DescriptionHTML template.HTML
	Links           []string
	Notes           string
	NotesHTML       template.HTML
	Tags            []string
	Updates         []updateView
}

type updateView struct {
	When     string
	Author   string
	Body     string
	BodyHTML template.HTML
}

func newView(t *domain.Ticket, recent []domain.TicketUpdate, cfg *rules.Config, now time.Time) view {
	classification := sla.Classify(t, cfg, now)
	v := view{
		ID:              t.ID,
		Title:           strings.TrimSpace(t.Title),
		Cancelled:       t.IsCancelled(),
		Created:         formatTime(t.CreatedAt),
		Updated:         formatTime(t.UpdatedAt),
		Status:          t.Status,
		HoldReason:      t.HoldReason,
		Priority:        t.Priority,
		Stage:           classification.Stage.String(),
		Color:           classification.Color,
		Requester:       strings.TrimSpace(t.Requester),
		Watchers:        nonBlank(t.Watchers),
		Description:     strings.TrimSpace(t.Description),
		DescriptionHTML: renderMarkdown(t.Description),
		Links:           nonBlank(t.Links),
		Notes:           strings.TrimSpace(t.Notes),
		NotesHTML:       renderMarkdown(t.Notes),
		Tags:            nonBlank(t.Tags),
	}
	sort.Strings(v.Tags)
	if t.DueDate != nil {
		v.Due = formatTime(*t.DueDate)
	}
	if !t.IsTerminal() && t.Status != domain.StatusResolved {
		v.Countdown = sla.FormatCountdown(sla.Countdown(t, cfg, now))
	}
	for _, update := range recent {
		author := strings.TrimSpace(update.Author)
		if author == "" {
			author = "System"
		}
		v.Updates = append(v.Updates, updateView{
			When:     formatTime(update.CreatedAt),
			Author:   author,
			Body:     strings.TrimSpace(update.Body),
			BodyHTML: renderMarkdown(update.Body),
		})
	}
	return v
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timestampLayout)
}

func nonBlank(values []string) []string {
	result := make([]string, 0, len(values))
	for _, value := range values {
		if value = strings.TrimSpace(value); value != "" {
			result = append(result, value)
		}
	}
	return result
}
