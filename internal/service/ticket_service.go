package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/opsdesk/ticket-rules/internal/audit"
	"github.com/opsdesk/ticket-rules/internal/domain"
	"github.com/opsdesk/ticket-rules/internal/events"
	"github.com/opsdesk/ticket-rules/internal/observability"
	"github.com/opsdesk/ticket-rules/internal/persistence"
	"github.com/opsdesk/ticket-rules/internal/repository"
	"github.com/opsdesk/ticket-rules/internal/rules"
	"github.com/opsdesk/ticket-rules/internal/sla"
	"github.com/opsdesk/ticket-rules/internal/summary"
	"github.com/opsdesk/ticket-rules/internal/tagfilter"
	"github.com/opsdesk/ticket-rules/internal/workflow"
	apperrors "github.com/opsdesk/ticket-rules/pkg/util/errorutil"
)

// Locker serializes mutations of one ticket.
type Locker interface {
	Lock(ctx context.Context, ticketID string) (persistence.UnlockFunc, error)
}

// TicketService coordinates ticket workflows on top of the rules core.
type TicketService struct {
	store      repository.Store
	locker     Locker
	dispatcher events.Dispatcher
	logger     *zap.Logger
	metrics    *observability.Metrics
	rulesPath  string
	rules      atomic.Pointer[rules.Config]
	now        func() time.Time
}

// TicketDependencies bundles collaborators for the ticket service.
type TicketDependencies struct {
	Store      repository.Store
	Locker     Locker
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
	Metrics    *observability.Metrics
	Rules      *rules.Config
	RulesPath  string
	Clock      func() time.Time
}

// TicketCreateInput describes ticket creation payload.
type TicketCreateInput struct {
	Title       string
	Description string
	Notes       string
	Requester   string
	Watchers    []string
	Priority    string
	DueDate     *time.Time
	Tags        []string
	Links       []string
	Actor       string
}

// TicketEditInput carries a partial field edit. Nil fields are left alone.
// Status changes go through Transition.
type TicketEditInput struct {
	Title        *string
	Description  *string
	Notes        *string
	Requester    *string
	Priority     *string
	DueDate      *time.Time
	ClearDueDate bool
	Watchers     *[]string
	Tags         *[]string
	Links        *[]string
	Actor        string
}

// TicketListInput describes listing filters.
type TicketListInput struct {
	Query      tagfilter.Query
	Statuses   []string
	Priorities []string
	Search     string
	Sort       SortKey
	Order      SortOrder
	Limit      int
	Offset     int
}

// UpdateInput describes a user-authored audit entry. Reage restarts the age
// clock of a ticket without a due date.
type UpdateInput struct {
	Author      string
	Body        string
	Links       []string
	Attachments []AttachmentInput
	Reage       bool
}

// AttachmentInput defines attachment metadata.
type AttachmentInput struct {
	StorageKey string
	FileName   string
	MimeType   string
	SizeBytes  int64
}

// TicketSnapshot pairs a ticket with its classification at read time.
type TicketSnapshot struct {
	Ticket         domain.Ticket
	Classification sla.Classification
	Countdown      float64
}

// TicketDetail is a snapshot with its audit trail and allowed targets.
type TicketDetail struct {
	TicketSnapshot
	Updates     []domain.TicketUpdate
	Attachments []domain.AttachmentReference
	Targets     []string
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	s := &TicketService{
		store:      deps.Store,
		locker:     deps.Locker,
		dispatcher: deps.Dispatcher,
		logger:     deps.Logger,
		metrics:    deps.Metrics,
		rulesPath:  deps.RulesPath,
		now:        deps.Clock,
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.now == nil {
		s.now = time.Now
	}
	cfg := deps.Rules
	if cfg == nil {
		cfg = rules.Default()
	}
	s.rules.Store(cfg)
	return s
}

// Rules returns the active rules configuration.
func (s *TicketService) Rules() *rules.Config {
	return s.rules.Load()
}

// ReloadRules re-reads the rules file. The active configuration is kept
// when the file is invalid.
func (s *TicketService) ReloadRules(ctx context.Context) (*rules.Config, error) {
	if s.rulesPath == "" {
		return nil, apperrors.NewValidationError("no rules file configured", nil)
	}
	cfg, err := rules.LoadFile(s.rulesPath)
	s.metrics.RecordRulesReload(err == nil)
	if err != nil {
		s.logger.Warn("rules reload rejected", zap.String("path", s.rulesPath), zap.Error(err))
		return nil, err
	}
	s.rules.Store(cfg)
	s.logger.Info("rules reloaded",
		zap.String("path", s.rulesPath),
		zap.Int("statuses", len(cfg.Statuses())),
		zap.Int("priorities", len(cfg.Priorities())))
	s.publishEvent(ctx, events.Event{
		Type: events.EventRulesReloaded,
		Payload: events.RulesReloadedPayload{
			Path:       s.rulesPath,
			Statuses:   len(cfg.Statuses()),
			Priorities: len(cfg.Priorities()),
		},
	})
	return cfg, nil
}

// CreateTicket opens a new ticket and records its creation in the trail.
func (s *TicketService) CreateTicket(ctx context.Context, input TicketCreateInput) (*TicketDetail, error) {
	cfg := s.Rules()
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, apperrors.NewValidationError("title required", nil)
	}
	priority := strings.TrimSpace(input.Priority)
	if priority == "" {
		priority = defaultPriority(cfg)
	}

	now := s.now().UTC()
	ticket := &domain.Ticket{
		ID:          uuid.NewString(),
		Title:       title,
		Description: strings.TrimSpace(input.Description),
		Notes:       strings.TrimSpace(input.Notes),
		Requester:   strings.TrimSpace(input.Requester),
		Watchers:    domain.NormalizeTags(input.Watchers),
		Priority:    priority,
		DueDate:     input.DueDate,
		Tags:        domain.NormalizeTags(input.Tags),
		Links:       domain.NormalizeTags(input.Links),
		CreatedAt:   now,
	}
	trail, err := audit.NewTrail(ticket.ID)
	if err != nil {
		return nil, err
	}
	created, err := workflow.New(cfg).Open(ticket, trail, input.Actor, now)
	if err != nil {
		return nil, err
	}
	created.ID = uuid.NewString()
	if err := cfg.ValidateTicket(ticket); err != nil {
		return nil, err
	}

	err = s.store.WithinTx(ctx, func(repos repository.Repositories) error {
		if err := repos.Tickets.Create(ctx, ticket); err != nil {
			return fmt.Errorf("create ticket: %w", err)
		}
		if err := repos.Updates.Create(ctx, &created); err != nil {
			return fmt.Errorf("record creation: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("ticket created", zap.String("ticket_id", ticket.ID), zap.String("priority", ticket.Priority))
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketCreated,
		TicketID: ticket.ID,
		Actor:    input.Actor,
		Payload: events.TicketCreatedPayload{
			Priority: ticket.Priority,
			Title:    ticket.Title,
			Tags:     ticket.Tags,
		},
	})
	return s.detail(cfg, ticket, []domain.TicketUpdate{created}, nil), nil
}

// GetTicket returns a ticket with its trail and classification.
func (s *TicketService) GetTicket(ctx context.Context, ticketID string) (*TicketDetail, error) {
	repos := s.store.Repositories()
	ticket, err := repos.Tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, fmt.Errorf("load ticket %s: %w", ticketID, err)
	}
	updates, err := repos.Updates.ListByTicket(ctx, ticketID)
	if err != nil {
		return nil, fmt.Errorf("load updates %s: %w", ticketID, err)
	}
	attachments, err := repos.Attachments.ListByTicket(ctx, ticketID)
	if err != nil {
		return nil, fmt.Errorf("load attachments %s: %w", ticketID, err)
	}
	return s.detail(s.Rules(), ticket, updates, attachments), nil
}

// ListTickets returns tickets matching the filters, in creation order unless
// a sort key is given.
func (s *TicketService) ListTickets(ctx context.Context, input TicketListInput) ([]TicketSnapshot, error) {
	tickets, err := s.store.Repositories().Tickets.List(ctx, repository.TicketFilter{
		Statuses:   input.Statuses,
		Priorities: input.Priorities,
		Search:     input.Search,
	})
	if err != nil {
		return nil, fmt.Errorf("list tickets: %w", err)
	}
	cfg := s.Rules()
	matched := tagfilter.Filter(tickets, input.Query)
	sortTickets(matched, cfg, input.Sort, input.Order)
	matched = paginate(matched, input.Limit, input.Offset)

	now := s.now()
	result := make([]TicketSnapshot, 0, len(matched))
	for i := range matched {
		result = append(result, snapshot(cfg, &matched[i], now))
	}
	return result, nil
}

// Transition applies a status change under the ticket lock and persists the
// ticket together with the generated audit entry.
func (s *TicketService) Transition(ctx context.Context, ticketID string, tr workflow.Transition) (*TicketDetail, domain.TicketUpdate, error) {
	var (
		detail *TicketDetail
		update domain.TicketUpdate
	)
	err := s.withTicketLock(ctx, ticketID, func() error {
		cfg := s.Rules()
		ticket, trail, err := s.loadTrail(ctx, ticketID)
		if err != nil {
			return err
		}
		from := ticket.Status

		update, err = workflow.New(cfg).Apply(ticket, trail, tr, s.now().UTC())
		if err != nil {
			return err
		}
		update.ID = uuid.NewString()

		err = s.store.WithinTx(ctx, func(repos repository.Repositories) error {
			if err := repos.Tickets.Update(ctx, ticket); err != nil {
				return fmt.Errorf("update ticket: %w", err)
			}
			if err := repos.Updates.Create(ctx, &update); err != nil {
				return fmt.Errorf("record transition: %w", err)
			}
			return nil
		})
		if err != nil {
			return err
		}

		s.metrics.RecordTransition(from, ticket.Status)
		s.logger.Info("ticket status changed",
			zap.String("ticket_id", ticket.ID),
			zap.String("status_from", from),
			zap.String("status_to", ticket.Status),
			zap.String("actor", tr.Actor))
		s.publishEvent(ctx, events.Event{
			Type:     events.EventTicketStatusChanged,
			TicketID: ticket.ID,
			Actor:    tr.Actor,
			Payload: events.TicketStatusChangedPayload{
				OldStatus:  from,
				NewStatus:  ticket.Status,
				HoldReason: ticket.HoldReason,
				UpdateID:   update.ID,
			},
		})
		entries := trail.Entries()
		entries[len(entries)-1].ID = update.ID
		detail = s.detail(cfg, ticket, entries, nil)
		return nil
	})
	if err != nil {
		return nil, domain.TicketUpdate{}, err
	}
	return detail, update, nil
}

// AddUpdate appends a user-authored entry to the ticket's trail.
func (s *TicketService) AddUpdate(ctx context.Context, ticketID string, input UpdateInput) (domain.TicketUpdate, error) {
	body := strings.TrimSpace(input.Body)
	if body == "" && len(input.Attachments) == 0 {
		return domain.TicketUpdate{}, apperrors.NewValidationError("body or attachments required", nil)
	}
	for _, att := range input.Attachments {
		if strings.TrimSpace(att.StorageKey) == "" || strings.TrimSpace(att.FileName) == "" {
			return domain.TicketUpdate{}, apperrors.NewValidationError("attachments need storage_key and file_name", nil)
		}
	}

	var update domain.TicketUpdate
	err := s.withTicketLock(ctx, ticketID, func() error {
		ticket, trail, err := s.loadTrail(ctx, ticketID)
		if err != nil {
			return err
		}
		at := ticket.Touch(s.now().UTC())
		if input.Reage && ticket.DueDate == nil {
			start := at.Truncate(24 * time.Hour)
			ticket.AgeReferenceDate = &start
		}
		update, err = trail.Append(domain.TicketUpdate{
			ID:        uuid.NewString(),
			TicketID:  ticket.ID,
			Author:    strings.TrimSpace(input.Author),
			Body:      body,
			Links:     domain.NormalizeTags(input.Links),
			CreatedAt: at,
		})
		if err != nil {
			return err
		}
		updateID := update.ID
		for _, att := range input.Attachments {
			update.Attachments = append(update.Attachments, domain.AttachmentReference{
				ID:         uuid.NewString(),
				TicketID:   ticket.ID,
				UpdateID:   &updateID,
				StorageKey: strings.TrimSpace(att.StorageKey),
				FileName:   strings.TrimSpace(att.FileName),
				MimeType:   att.MimeType,
				SizeBytes:  att.SizeBytes,
				CreatedAt:  at,
			})
		}

		return s.store.WithinTx(ctx, func(repos repository.Repositories) error {
			if err := repos.Tickets.Update(ctx, ticket); err != nil {
				return fmt.Errorf("touch ticket: %w", err)
			}
			if err := repos.Updates.Create(ctx, &update); err != nil {
				return fmt.Errorf("record update: %w", err)
			}
			for i := range update.Attachments {
				if err := repos.Attachments.Create(ctx, &update.Attachments[i]); err != nil {
					return fmt.Errorf("record attachment: %w", err)
				}
			}
			return nil
		})
	})
	if err != nil {
		return domain.TicketUpdate{}, err
	}

	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketUpdateAdded,
		TicketID: ticketID,
		Actor:    update.Author,
		Payload: events.TicketUpdateAddedPayload{
			UpdateID:    update.ID,
			Author:      update.Author,
			BodyPreview: stringPreview(update.Body, 120),
			Attachments: len(update.Attachments),
		},
	})
	return update, nil
}

// EditTicket applies a partial field edit under the ticket lock. UpdatedAt
// advances only when a field actually changes.
func (s *TicketService) EditTicket(ctx context.Context, ticketID string, input TicketEditInput) (*TicketDetail, error) {
	if input.Title != nil && strings.TrimSpace(*input.Title) == "" {
		return nil, apperrors.NewValidationError("title cannot be blank", nil)
	}
	if input.Priority != nil && strings.TrimSpace(*input.Priority) == "" {
		return nil, apperrors.NewValidationError("priority cannot be blank", nil)
	}
	if input.DueDate != nil && input.ClearDueDate {
		return nil, apperrors.NewValidationError("due_date and clear_due_date are mutually exclusive", nil)
	}

	var detail *TicketDetail
	err := s.withTicketLock(ctx, ticketID, func() error {
		cfg := s.Rules()
		ticket, trail, err := s.loadTrail(ctx, ticketID)
		if err != nil {
			return err
		}
		fields := applyEdit(ticket, input)
		if slices.Contains(fields, "priority") && !cfg.HasPriority(ticket.Priority) {
			return &rules.ConfigError{Field: "priority", Reason: fmt.Sprintf("unknown priority %q", ticket.Priority)}
		}

		if len(fields) > 0 {
			ticket.Touch(s.now().UTC())
			err = s.store.WithinTx(ctx, func(repos repository.Repositories) error {
				if err := repos.Tickets.Update(ctx, ticket); err != nil {
					return fmt.Errorf("edit ticket: %w", err)
				}
				return nil
			})
			if err != nil {
				return err
			}
			s.logger.Info("ticket edited",
				zap.String("ticket_id", ticket.ID),
				zap.Strings("fields", fields),
				zap.String("actor", input.Actor))
			s.publishEvent(ctx, events.Event{
				Type:     events.EventTicketEdited,
				TicketID: ticket.ID,
				Actor:    input.Actor,
				Payload:  events.TicketEditedPayload{Fields: fields},
			})
		}

		attachments, err := s.store.Repositories().Attachments.ListByTicket(ctx, ticketID)
		if err != nil {
			return fmt.Errorf("load attachments %s: %w", ticketID, err)
		}
		detail = s.detail(cfg, ticket, trail.Entries(), attachments)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return detail, nil
}

// applyEdit copies the set fields of input onto t and returns the names of
// those whose value changed.
func applyEdit(t *domain.Ticket, input TicketEditInput) []string {
	var fields []string
	setText := func(name string, dst, src *string) {
		if src == nil {
			return
		}
		if value := strings.TrimSpace(*src); value != *dst {
			*dst = value
			fields = append(fields, name)
		}
	}
	setList := func(name string, dst, src *[]string) {
		if src == nil {
			return
		}
		if value := domain.NormalizeTags(*src); !slices.Equal(value, *dst) {
			*dst = value
			fields = append(fields, name)
		}
	}

	setText("title", &t.Title, input.Title)
	setText("description", &t.Description, input.Description)
	setText("notes", &t.Notes, input.Notes)
	setText("requester", &t.Requester, input.Requester)
	setText("priority", &t.Priority, input.Priority)
	switch {
	case input.ClearDueDate && t.DueDate != nil:
		t.DueDate = nil
		fields = append(fields, "due_date")
	case input.DueDate != nil && (t.DueDate == nil || !t.DueDate.Equal(*input.DueDate)):
		due := *input.DueDate
		t.DueDate = &due
		fields = append(fields, "due_date")
	}
	setList("watchers", &t.Watchers, input.Watchers)
	setList("tags", &t.Tags, input.Tags)
	setList("links", &t.Links, input.Links)
	return fields
}

// Summary composes the configured HTML and text export of a ticket.
func (s *TicketService) Summary(ctx context.Context, ticketID string) (summary.Summary, error) {
	repos := s.store.Repositories()
	ticket, err := repos.Tickets.GetByID(ctx, ticketID)
	if err != nil {
		return summary.Summary{}, fmt.Errorf("load ticket %s: %w", ticketID, err)
	}
	updates, err := repos.Updates.ListByTicket(ctx, ticketID)
	if err != nil {
		return summary.Summary{}, fmt.Errorf("load updates %s: %w", ticketID, err)
	}
	out, err := summary.Compose(ticket, updates, s.Rules(), s.now())
	if err != nil {
		return summary.Summary{}, fmt.Errorf("compose summary %s: %w", ticketID, err)
	}
	return out, nil
}

// OverdueTickets lists open work whose SLA stage is overdue.
func (s *TicketService) OverdueTickets(ctx context.Context) ([]TicketSnapshot, error) {
	all, err := s.ListTickets(ctx, TicketListInput{})
	if err != nil {
		return nil, err
	}
	result := make([]TicketSnapshot, 0)
	for _, snap := range all {
		if snap.Ticket.IsTerminal() {
			continue
		}
		if snap.Classification.Stage == sla.StageOverdue {
			result = append(result, snap)
		}
	}
	return result, nil
}

// PublishOverdue emits an overdue event for snap.
func (s *TicketService) PublishOverdue(ctx context.Context, snap TicketSnapshot) {
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketOverdue,
		TicketID: snap.Ticket.ID,
		Payload: events.TicketOverduePayload{
			Status:   snap.Ticket.Status,
			Priority: snap.Ticket.Priority,
			Basis:    string(snap.Classification.Basis),
			Color:    snap.Classification.Color,
		},
	})
}

func (s *TicketService) withTicketLock(ctx context.Context, ticketID string, fn func() error) error {
	if s.locker == nil {
		return fn()
	}
	unlock, err := s.locker.Lock(ctx, ticketID)
	if err != nil {
		if errors.Is(err, persistence.ErrLockHeld) {
			s.metrics.RecordLockContention()
		}
		return err
	}
	defer func() {
		// The request context may already be cancelled here.
		releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := unlock(releaseCtx); err != nil {
			s.logger.Warn("ticket lock release failed", zap.String("ticket_id", ticketID), zap.Error(err))
		}
	}()
	return fn()
}

func (s *TicketService) loadTrail(ctx context.Context, ticketID string) (*domain.Ticket, *audit.Trail, error) {
	repos := s.store.Repositories()
	ticket, err := repos.Tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, nil, fmt.Errorf("load ticket %s: %w", ticketID, err)
	}
	updates, err := repos.Updates.ListByTicket(ctx, ticketID)
	if err != nil {
		return nil, nil, fmt.Errorf("load updates %s: %w", ticketID, err)
	}
	trail, err := audit.NewTrail(ticketID, updates...)
	if err != nil {
		return nil, nil, err
	}
	return ticket, trail, nil
}

func (s *TicketService) detail(cfg *rules.Config, ticket *domain.Ticket, updates []domain.TicketUpdate, attachments []domain.AttachmentReference) *TicketDetail {
	if attachments == nil {
		attachments = []domain.AttachmentReference{}
	}
	return &TicketDetail{
		TicketSnapshot: snapshot(cfg, ticket, s.now()),
		Updates:        updates,
		Attachments:    attachments,
		Targets:        workflow.New(cfg).Targets(ticket),
	}
}

func snapshot(cfg *rules.Config, ticket *domain.Ticket, now time.Time) TicketSnapshot {
	return TicketSnapshot{
		Ticket:         *ticket,
		Classification: sla.Classify(ticket, cfg, now),
		Countdown:      sla.Countdown(ticket, cfg, now),
	}
}

func (s *TicketService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = s.now()
	}
	_ = s.dispatcher.Publish(ctx, event)
}

// defaultPriority prefers "Medium" when configured, else the first priority.
func defaultPriority(cfg *rules.Config) string {
	if cfg.HasPriority("Medium") {
		return "Medium"
	}
	return cfg.Priorities()[0]
}

func paginate(tickets []domain.Ticket, limit, offset int) []domain.Ticket {
	if offset > 0 {
		if offset >= len(tickets) {
			return []domain.Ticket{}
		}
		tickets = tickets[offset:]
	}
	if limit > 0 && limit < len(tickets) {
		tickets = tickets[:limit]
	}
	return tickets
}

// stringPreview shortens body to at most max runes.
func stringPreview(body string, max int) string {
	body = strings.TrimSpace(body)
	runes := []rune(body)
	if len(runes) <= max {
		return body
	}
	if max <= 3 {
		return string(runes[:max])
	}
	return string(runes[:max-3]) + "..."
}
