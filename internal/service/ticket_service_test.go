package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opsdesk/ticket-rules/internal/domain"
	"github.com/opsdesk/ticket-rules/internal/events"
	"github.com/opsdesk/ticket-rules/internal/observability"
	"github.com/opsdesk/ticket-rules/internal/persistence"
	"github.com/opsdesk/ticket-rules/internal/repository"
	"github.com/opsdesk/ticket-rules/internal/rules"
	"github.com/opsdesk/ticket-rules/internal/sla"
	"github.com/opsdesk/ticket-rules/internal/tagfilter"
	"github.com/opsdesk/ticket-rules/internal/workflow"
	apperrors "github.com/opsdesk/ticket-rules/pkg/util/errorutil"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fakeLocker struct {
	err      error
	locks    int
	releases int
}

func (l *fakeLocker) Lock(ctx context.Context, ticketID string) (persistence.UnlockFunc, error) {
	if l.err != nil {
		return nil, l.err
	}
	l.locks++
	return func(context.Context) error {
		l.releases++
		return nil
	}, nil
}

type harness struct {
	svc     *TicketService
	store   *repository.MemoryStore
	clock   *fakeClock
	locker  *fakeLocker
	metrics *observability.Metrics
	events  []events.Event
}

func newHarness(t *testing.T, rulesPath string) *harness {
	t.Helper()
	h := &harness{
		store:   repository.NewMemoryStore(),
		clock:   &fakeClock{now: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)},
		locker:  &fakeLocker{},
		metrics: observability.NewMetrics(),
	}
	dispatcher := events.NewInMemoryDispatcher(nil)
	record := func(ctx context.Context, e events.Event) error {
		h.events = append(h.events, e)
		return nil
	}
	for _, et := range []events.EventType{
		events.EventTicketCreated,
		events.EventTicketStatusChanged,
		events.EventTicketUpdateAdded,
		events.EventTicketOverdue,
		events.EventRulesReloaded,
	} {
		dispatcher.Subscribe(et, record)
	}
	h.svc = NewTicketService(TicketDependencies{
		Store:      h.store,
		Locker:     h.locker,
		Dispatcher: dispatcher,
		Metrics:    h.metrics,
		RulesPath:  rulesPath,
		Clock:      h.clock.Now,
	})
	return h
}

func (h *harness) create(t *testing.T, input TicketCreateInput) *TicketDetail {
	t.Helper()
	if input.Title == "" {
		input.Title = "Printer on fire"
	}
	detail, err := h.svc.CreateTicket(context.Background(), input)
	require.NoError(t, err)
	return detail
}

func TestCreateTicketDefaults(t *testing.T) {
	h := newHarness(t, "")

	detail := h.create(t, TicketCreateInput{
		Title:    "  Printer on fire ",
		Tags:     []string{"hw", " hw", "", "floor-2"},
		Watchers: []string{"ana", "ana"},
		Actor:    "ana",
	})

	ticket := detail.Ticket
	assert.NotEmpty(t, ticket.ID)
	assert.Equal(t, "Printer on fire", ticket.Title)
	assert.Equal(t, domain.StatusOpen, ticket.Status)
	assert.Equal(t, "Medium", ticket.Priority)
	assert.Equal(t, []string{"hw", "floor-2"}, ticket.Tags)
	assert.Equal(t, []string{"ana"}, ticket.Watchers)
	assert.Equal(t, h.clock.Now(), ticket.CreatedAt)
	assert.Equal(t, ticket.CreatedAt, ticket.UpdatedAt)

	require.Len(t, detail.Updates, 1)
	assert.Equal(t, "Ticket created", detail.Updates[0].Body)
	assert.Equal(t, int64(1), detail.Updates[0].Seq)
	assert.True(t, detail.Updates[0].SystemGenerated)
	assert.Equal(t, []string{"In Progress", "On Hold", "Resolved", "Closed", "Cancelled"}, detail.Targets)
	assert.Equal(t, sla.Stage0, detail.Classification.Stage)

	require.Len(t, h.events, 1)
	assert.Equal(t, events.EventTicketCreated, h.events[0].Type)
	assert.Equal(t, ticket.ID, h.events[0].TicketID)

	stored, err := h.svc.GetTicket(context.Background(), ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, ticket.Title, stored.Ticket.Title)
	require.Len(t, stored.Updates, 1)
}

func TestCreateTicketValidation(t *testing.T) {
	h := newHarness(t, "")
	ctx := context.Background()

	_, err := h.svc.CreateTicket(ctx, TicketCreateInput{Title: "  "})
	var domainErr *apperrors.DomainError
	require.True(t, errors.As(err, &domainErr))
	assert.Equal(t, "VALIDATION_FAILED", domainErr.Code)

	_, err = h.svc.CreateTicket(ctx, TicketCreateInput{Title: "x", Priority: "Urgent"})
	var cfgErr *rules.ConfigError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "priority", cfgErr.Field)

	tickets, err := h.svc.ListTickets(ctx, TicketListInput{})
	require.NoError(t, err)
	assert.Empty(t, tickets)
	assert.Empty(t, h.events)
}

func TestTransitionPersistsTicketAndUpdate(t *testing.T) {
	h := newHarness(t, "")
	ctx := context.Background()
	created := h.create(t, TicketCreateInput{})
	h.clock.Advance(time.Hour)

	detail, update, err := h.svc.Transition(ctx, created.Ticket.ID, workflow.Transition{
		To:         domain.StatusOnHold,
		HoldReason: "  Blocked by dependency ",
		Actor:      "ops",
	})
	require.NoError(t, err)

	assert.Equal(t, domain.StatusOnHold, detail.Ticket.Status)
	assert.Equal(t, "Blocked by dependency", detail.Ticket.HoldReason)
	assert.Equal(t, rules.OnHoldColor, detail.Classification.Color)
	assert.Equal(t, "Status changed from Open to On Hold (reason: Blocked by dependency)", update.Body)
	assert.Equal(t, int64(2), update.Seq)
	assert.NotEmpty(t, update.ID)
	assert.Equal(t, 1, h.locker.locks)
	assert.Equal(t, 1, h.locker.releases)

	stored, err := h.svc.GetTicket(ctx, created.Ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusOnHold, stored.Ticket.Status)
	assert.True(t, stored.Ticket.UpdatedAt.After(stored.Ticket.CreatedAt))
	require.Len(t, stored.Updates, 2)
	assert.Equal(t, update.ID, stored.Updates[1].ID)
	assert.Equal(t, domain.StatusOpen, stored.Updates[1].StatusFrom)
	assert.Equal(t, domain.StatusOnHold, stored.Updates[1].StatusTo)

	assert.Equal(t, int64(1), h.metrics.Snapshot().Transitions["Open->On Hold"])
	last := h.events[len(h.events)-1]
	assert.Equal(t, events.EventTicketStatusChanged, last.Type)
	payload := last.Payload.(events.TicketStatusChangedPayload)
	assert.Equal(t, domain.StatusOpen, payload.OldStatus)
	assert.Equal(t, domain.StatusOnHold, payload.NewStatus)
}

func TestTransitionRejectionsLeaveStateUntouched(t *testing.T) {
	h := newHarness(t, "")
	ctx := context.Background()
	created := h.create(t, TicketCreateInput{})
	id := created.Ticket.ID

	_, _, err := h.svc.Transition(ctx, id, workflow.Transition{To: domain.StatusOnHold})
	assert.ErrorIs(t, err, workflow.ErrMissingHoldReason)

	_, _, err = h.svc.Transition(ctx, id, workflow.Transition{To: "Escalated"})
	assert.ErrorIs(t, err, workflow.ErrUnknownStatus)

	_, _, err = h.svc.Transition(ctx, id, workflow.Transition{To: domain.StatusClosed})
	require.NoError(t, err)

	_, _, err = h.svc.Transition(ctx, id, workflow.Transition{To: domain.StatusOpen})
	assert.ErrorIs(t, err, workflow.ErrInvalidTransition)

	stored, err := h.svc.GetTicket(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusClosed, stored.Ticket.Status)
	assert.Len(t, stored.Updates, 2)
	assert.Empty(t, stored.Targets)
	assert.Equal(t, 4, h.locker.releases)
}

func TestTransitionMissingTicket(t *testing.T) {
	h := newHarness(t, "")

	_, _, err := h.svc.Transition(context.Background(), "missing", workflow.Transition{To: domain.StatusClosed})
	assert.ErrorIs(t, err, pgx.ErrNoRows)
	assert.Equal(t, "NOT_FOUND", apperrors.ToDomainError(err).Code)
}

func TestTransitionLockContention(t *testing.T) {
	h := newHarness(t, "")
	ctx := context.Background()
	created := h.create(t, TicketCreateInput{})
	h.locker.err = persistence.ErrLockHeld

	_, _, err := h.svc.Transition(ctx, created.Ticket.ID, workflow.Transition{To: domain.StatusInProgress})
	assert.ErrorIs(t, err, persistence.ErrLockHeld)
	assert.Equal(t, int64(1), h.metrics.Snapshot().LockContention)

	_, err = h.svc.AddUpdate(ctx, created.Ticket.ID, UpdateInput{Body: "still there?"})
	assert.ErrorIs(t, err, persistence.ErrLockHeld)

	stored, err := h.svc.GetTicket(ctx, created.Ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusOpen, stored.Ticket.Status)
	assert.Len(t, stored.Updates, 1)
}

func TestAddUpdateWithAttachments(t *testing.T) {
	h := newHarness(t, "")
	ctx := context.Background()
	created := h.create(t, TicketCreateInput{})
	h.clock.Advance(time.Minute)

	update, err := h.svc.AddUpdate(ctx, created.Ticket.ID, UpdateInput{
		Author: "ana",
		Body:   "Replaced the **fuser**",
		Links:  []string{"https://wiki/printers"},
		Attachments: []AttachmentInput{
			{StorageKey: "s3://bucket/photo.jpg", FileName: "photo.jpg", MimeType: "image/jpeg", SizeBytes: 2048},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), update.Seq)
	assert.False(t, update.SystemGenerated)
	require.Len(t, update.Attachments, 1)

	stored, err := h.svc.GetTicket(ctx, created.Ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, h.clock.Now(), stored.Ticket.UpdatedAt)
	require.Len(t, stored.Updates, 2)
	assert.Equal(t, "ana", stored.Updates[1].Author)
	require.Len(t, stored.Attachments, 1)
	require.NotNil(t, stored.Attachments[0].UpdateID)
	assert.Equal(t, update.ID, *stored.Attachments[0].UpdateID)

	last := h.events[len(h.events)-1]
	assert.Equal(t, events.EventTicketUpdateAdded, last.Type)
	assert.Equal(t, 1, last.Payload.(events.TicketUpdateAddedPayload).Attachments)
}

func TestAddUpdateValidation(t *testing.T) {
	h := newHarness(t, "")
	ctx := context.Background()
	created := h.create(t, TicketCreateInput{})

	_, err := h.svc.AddUpdate(ctx, created.Ticket.ID, UpdateInput{Body: "   "})
	assert.Equal(t, "VALIDATION_FAILED", apperrors.ToDomainError(err).Code)

	_, err = h.svc.AddUpdate(ctx, created.Ticket.ID, UpdateInput{
		Attachments: []AttachmentInput{{FileName: "a.txt"}},
	})
	assert.Equal(t, "VALIDATION_FAILED", apperrors.ToDomainError(err).Code)

	_, err = h.svc.AddUpdate(ctx, "missing", UpdateInput{Body: "hello"})
	assert.ErrorIs(t, err, pgx.ErrNoRows)
}

func TestAddUpdateOnClosedTicket(t *testing.T) {
	h := newHarness(t, "")
	ctx := context.Background()
	created := h.create(t, TicketCreateInput{})
	_, _, err := h.svc.Transition(ctx, created.Ticket.ID, workflow.Transition{To: domain.StatusClosed})
	require.NoError(t, err)

	_, err = h.svc.AddUpdate(ctx, created.Ticket.ID, UpdateInput{Body: "post-mortem notes"})
	require.NoError(t, err)
}

func TestSummaryUsesLatestUpdate(t *testing.T) {
	h := newHarness(t, "")
	ctx := context.Background()
	created := h.create(t, TicketCreateInput{Title: "VPN drops", Description: "Happens *hourly*"})
	h.clock.Advance(time.Minute)
	_, err := h.svc.AddUpdate(ctx, created.Ticket.ID, UpdateInput{Author: "ana", Body: "Collected logs"})
	require.NoError(t, err)

	s, err := h.svc.Summary(ctx, created.Ticket.ID)
	require.NoError(t, err)
	assert.Contains(t, s.Text, "VPN drops")
	assert.Contains(t, s.Text, "Collected logs")
	assert.NotContains(t, s.Text, "Ticket created")
	assert.Contains(t, s.HTML, "<em>hourly</em>")

	_, err = h.svc.Summary(ctx, "missing")
	assert.ErrorIs(t, err, pgx.ErrNoRows)
}

func TestListTicketsTagFilter(t *testing.T) {
	h := newHarness(t, "")
	ctx := context.Background()
	a := h.create(t, TicketCreateInput{Title: "a", Tags: []string{"net", "vpn"}})
	h.clock.Advance(time.Second)
	b := h.create(t, TicketCreateInput{Title: "b", Tags: []string{"net"}})
	h.clock.Advance(time.Second)
	h.create(t, TicketCreateInput{Title: "c", Tags: []string{"hw"}})

	all, err := h.svc.ListTickets(ctx, TicketListInput{
		Query: tagfilter.Query{Mode: tagfilter.ModeAll, Tags: []string{"net", "vpn"}},
	})
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, a.Ticket.ID, all[0].Ticket.ID)

	either, err := h.svc.ListTickets(ctx, TicketListInput{
		Query: tagfilter.Query{Mode: tagfilter.ModeAny, Tags: []string{"net", "vpn"}},
	})
	require.NoError(t, err)
	require.Len(t, either, 2)
	assert.Equal(t, a.Ticket.ID, either[0].Ticket.ID)
	assert.Equal(t, b.Ticket.ID, either[1].Ticket.ID)

	paged, err := h.svc.ListTickets(ctx, TicketListInput{Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, paged, 1)
	assert.Equal(t, b.Ticket.ID, paged[0].Ticket.ID)

	unfiltered, err := h.svc.ListTickets(ctx, TicketListInput{})
	require.NoError(t, err)
	assert.Len(t, unfiltered, 3)
}

func TestOverdueTickets(t *testing.T) {
	h := newHarness(t, "")
	ctx := context.Background()
	late := h.create(t, TicketCreateInput{Title: "late", Priority: "High"})
	closed := h.create(t, TicketCreateInput{Title: "closed", Priority: "High"})
	h.create(t, TicketCreateInput{Title: "fresh", Priority: "Low"})
	_, _, err := h.svc.Transition(ctx, closed.Ticket.ID, workflow.Transition{To: domain.StatusClosed})
	require.NoError(t, err)

	h.clock.Advance(20 * 24 * time.Hour)

	overdue, err := h.svc.OverdueTickets(ctx)
	require.NoError(t, err)
	require.Len(t, overdue, 1)
	assert.Equal(t, late.Ticket.ID, overdue[0].Ticket.ID)
	assert.Equal(t, sla.StageOverdue, overdue[0].Classification.Stage)
	assert.Less(t, overdue[0].Countdown, 0.0)

	h.svc.PublishOverdue(ctx, overdue[0])
	last := h.events[len(h.events)-1]
	assert.Equal(t, events.EventTicketOverdue, last.Type)
	assert.Equal(t, string(sla.BasisAge), last.Payload.(events.TicketOverduePayload).Basis)
}

func TestReloadRules(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte("statuses: [Open, Closed]\npriorities: [Low, Urgent]\n"), 0o600))
	h := newHarness(t, path)
	ctx := context.Background()
	assert.False(t, h.svc.Rules().HasPriority("Urgent"))

	cfg, err := h.svc.ReloadRules(ctx)
	require.NoError(t, err)
	assert.True(t, cfg.HasPriority("Urgent"))
	assert.True(t, h.svc.Rules().HasPriority("Urgent"))

	detail := h.create(t, TicketCreateInput{})
	assert.Equal(t, "Low", detail.Ticket.Priority)

	require.NoError(t, os.WriteFile(path, []byte("statuses: [Closed]\npriorities: [Low]\n"), 0o600))
	_, err = h.svc.ReloadRules(ctx)
	var cfgErr *rules.ConfigError
	require.True(t, errors.As(err, &cfgErr))
	assert.True(t, h.svc.Rules().HasPriority("Urgent"))

	snap := h.metrics.Snapshot()
	assert.Equal(t, int64(1), snap.RulesReloads)
	assert.Equal(t, int64(1), snap.RulesRejected)
}

func TestReloadRulesWithoutPath(t *testing.T) {
	h := newHarness(t, "")

	_, err := h.svc.ReloadRules(context.Background())
	assert.Equal(t, "VALIDATION_FAILED", apperrors.ToDomainError(err).Code)
}

func TestListTicketsSortAndSearch(t *testing.T) {
	h := newHarness(t, "")
	ctx := context.Background()
	base := h.clock.Now()
	soon := base.Add(5 * 24 * time.Hour)
	later := base.Add(10 * 24 * time.Hour)

	a := h.create(t, TicketCreateInput{Title: "alpha", Priority: "Low", DueDate: &later})
	h.clock.Advance(time.Second)
	h.create(t, TicketCreateInput{Title: "bravo", Priority: "High"})
	h.clock.Advance(time.Second)
	h.create(t, TicketCreateInput{Title: "charlie", Priority: "Medium", DueDate: &soon, Requester: "Dana"})
	h.clock.Advance(time.Second)
	h.create(t, TicketCreateInput{Title: "delta", Priority: "High", DueDate: &later})
	h.clock.Advance(time.Minute)
	_, err := h.svc.AddUpdate(ctx, a.Ticket.ID, UpdateInput{Body: "bump"})
	require.NoError(t, err)

	ids := func(input TicketListInput) []string {
		t.Helper()
		snaps, err := h.svc.ListTickets(ctx, input)
		require.NoError(t, err)
		result := make([]string, 0, len(snaps))
		for _, snap := range snaps {
			result = append(result, snap.Ticket.Title)
		}
		return result
	}
	tests := []struct {
		sort  SortKey
		order SortOrder
		want  []string
	}{
		{SortDefault, OrderAsc, []string{"alpha", "bravo", "charlie", "delta"}},
		{SortDue, OrderAsc, []string{"charlie", "alpha", "delta", "bravo"}},
		{SortDue, OrderDesc, []string{"delta", "alpha", "charlie", "bravo"}},
		{SortPriority, OrderAsc, []string{"alpha", "charlie", "delta", "bravo"}},
		{SortPriority, OrderDesc, []string{"delta", "bravo", "charlie", "alpha"}},
		{SortCreated, OrderDesc, []string{"delta", "charlie", "bravo", "alpha"}},
		{SortCreated, OrderAsc, []string{"alpha", "bravo", "charlie", "delta"}},
		{SortUpdated, OrderDesc, []string{"alpha", "delta", "charlie", "bravo"}},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, ids(TicketListInput{Sort: tc.sort, Order: tc.order}), "%s %s", tc.sort, tc.order)
	}

	assert.Equal(t, []string{"charlie"}, ids(TicketListInput{Search: "dana"}))
	assert.Equal(t, []string{"delta", "alpha"}, ids(TicketListInput{Search: "a", Sort: SortDue, Order: OrderDesc, Limit: 2}))
	assert.Equal(t, []string{"charlie"}, ids(TicketListInput{Sort: SortDue, Limit: 1}))
}

func TestParseSort(t *testing.T) {
	tests := []struct {
		sort, order string
		wantKey     SortKey
		wantOrder   SortOrder
	}{
		{"", "", SortDefault, OrderAsc},
		{"due", "", SortDue, OrderAsc},
		{"priority", "", SortPriority, OrderAsc},
		{"updated", "", SortUpdated, OrderDesc},
		{"created", "", SortCreated, OrderDesc},
		{" Due ", "DESC", SortDue, OrderDesc},
		{"created", "asc", SortCreated, OrderAsc},
	}
	for _, tc := range tests {
		key, order, err := ParseSort(tc.sort, tc.order)
		require.NoError(t, err, tc.sort)
		assert.Equal(t, tc.wantKey, key)
		assert.Equal(t, tc.wantOrder, order)
	}

	_, _, err := ParseSort("size", "")
	assert.Error(t, err)
	_, _, err = ParseSort("due", "sideways")
	assert.Error(t, err)
}

func TestAddUpdateReagesTicketWithoutDueDate(t *testing.T) {
	h := newHarness(t, "")
	ctx := context.Background()
	aged := h.create(t, TicketCreateInput{Title: "aged", Priority: "Low"})
	due := h.clock.Now().Add(60 * 24 * time.Hour)
	dated := h.create(t, TicketCreateInput{Title: "dated", Priority: "Low", DueDate: &due})
	h.clock.Advance(20 * 24 * time.Hour)

	before, err := h.svc.GetTicket(ctx, aged.Ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, sla.Stage1, before.Classification.Stage)

	_, err = h.svc.AddUpdate(ctx, aged.Ticket.ID, UpdateInput{Body: "Customer replied, restarting", Reage: true})
	require.NoError(t, err)

	after, err := h.svc.GetTicket(ctx, aged.Ticket.ID)
	require.NoError(t, err)
	require.NotNil(t, after.Ticket.AgeReferenceDate)
	assert.Equal(t, time.Date(2024, 3, 21, 0, 0, 0, 0, time.UTC), *after.Ticket.AgeReferenceDate)
	assert.Equal(t, sla.Stage0, after.Classification.Stage)
	assert.Equal(t, aged.Ticket.CreatedAt, after.Ticket.CreatedAt)

	_, err = h.svc.AddUpdate(ctx, dated.Ticket.ID, UpdateInput{Body: "noted", Reage: true})
	require.NoError(t, err)
	stored, err := h.svc.GetTicket(ctx, dated.Ticket.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.Ticket.AgeReferenceDate)
}

func TestEditTicket(t *testing.T) {
	h := newHarness(t, "")
	ctx := context.Background()
	created := h.create(t, TicketCreateInput{Title: "Old title", Tags: []string{"hw"}})
	id := created.Ticket.ID
	h.clock.Advance(time.Hour)

	title := "  New title "
	priority := "High"
	tags := []string{"hw", "net", "net"}
	due := h.clock.Now().Add(48 * time.Hour)
	detail, err := h.svc.EditTicket(ctx, id, TicketEditInput{
		Title:    &title,
		Priority: &priority,
		Tags:     &tags,
		DueDate:  &due,
		Actor:    "ana",
	})
	require.NoError(t, err)
	assert.Equal(t, "New title", detail.Ticket.Title)
	assert.Equal(t, "High", detail.Ticket.Priority)
	assert.Equal(t, []string{"hw", "net"}, detail.Ticket.Tags)
	assert.Equal(t, domain.StatusOpen, detail.Ticket.Status)
	assert.Equal(t, h.clock.Now(), detail.Ticket.UpdatedAt)
	assert.Equal(t, sla.BasisDueDate, detail.Classification.Basis)
	assert.Len(t, detail.Updates, 1)
	assert.Equal(t, 1, h.locker.locks)

	last := h.events[len(h.events)-1]
	assert.Equal(t, events.EventTicketEdited, last.Type)
	assert.Equal(t, []string{"title", "priority", "due_date", "tags"}, last.Payload.(events.TicketEditedPayload).Fields)

	h.clock.Advance(time.Hour)
	eventCount := len(h.events)
	same, err := h.svc.EditTicket(ctx, id, TicketEditInput{Title: &title, Tags: &tags})
	require.NoError(t, err)
	assert.Equal(t, detail.Ticket.UpdatedAt, same.Ticket.UpdatedAt)
	assert.Len(t, h.events, eventCount)

	cleared, err := h.svc.EditTicket(ctx, id, TicketEditInput{ClearDueDate: true})
	require.NoError(t, err)
	assert.Nil(t, cleared.Ticket.DueDate)
	assert.True(t, cleared.Ticket.UpdatedAt.After(detail.Ticket.UpdatedAt))

	stored, err := h.svc.GetTicket(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "New title", stored.Ticket.Title)
	assert.Nil(t, stored.Ticket.DueDate)
}

func TestEditTicketRejections(t *testing.T) {
	h := newHarness(t, "")
	ctx := context.Background()
	created := h.create(t, TicketCreateInput{Title: "Keep me"})
	id := created.Ticket.ID

	blank := "   "
	_, err := h.svc.EditTicket(ctx, id, TicketEditInput{Title: &blank})
	assert.Equal(t, "VALIDATION_FAILED", apperrors.ToDomainError(err).Code)

	_, err = h.svc.EditTicket(ctx, id, TicketEditInput{Priority: &blank})
	assert.Equal(t, "VALIDATION_FAILED", apperrors.ToDomainError(err).Code)

	due := h.clock.Now()
	_, err = h.svc.EditTicket(ctx, id, TicketEditInput{DueDate: &due, ClearDueDate: true})
	assert.Equal(t, "VALIDATION_FAILED", apperrors.ToDomainError(err).Code)

	urgent := "Urgent"
	_, err = h.svc.EditTicket(ctx, id, TicketEditInput{Priority: &urgent})
	var cfgErr *rules.ConfigError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "priority", cfgErr.Field)

	_, err = h.svc.EditTicket(ctx, "missing", TicketEditInput{})
	assert.ErrorIs(t, err, pgx.ErrNoRows)

	stored, err := h.svc.GetTicket(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Keep me", stored.Ticket.Title)
	assert.Equal(t, "Medium", stored.Ticket.Priority)
	assert.Equal(t, stored.Ticket.CreatedAt, stored.Ticket.UpdatedAt)
}

func TestStringPreviewKeepsRunesWhole(t *testing.T) {
	fits := strings.Repeat("a", 116) + "é€漢字"
	assert.Equal(t, fits, stringPreview(fits, 120))

	long := strings.Repeat("a", 116) + "é€漢字日本"
	preview := stringPreview(long, 120)
	assert.True(t, utf8.ValidString(preview))
	assert.Equal(t, 120, utf8.RuneCountInString(preview))
	assert.Equal(t, strings.Repeat("a", 116)+"é...", preview)

	assert.Equal(t, "漢字", stringPreview("漢字日本", 2))
}
