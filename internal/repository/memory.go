package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/jackc/pgx/v5"

	"github.com/opsdesk/ticket-rules/internal/domain"
)

// MemoryStore is a process-local Store used when no database is configured
// and in tests. Missing rows report pgx.ErrNoRows like the Postgres store.
type MemoryStore struct {
	txMu        sync.Mutex
	mu          sync.RWMutex
	tickets     map[string]domain.Ticket
	updates     map[string][]domain.TicketUpdate
	attachments map[string][]domain.AttachmentReference
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		tickets:     make(map[string]domain.Ticket),
		updates:     make(map[string][]domain.TicketUpdate),
		attachments: make(map[string][]domain.AttachmentReference),
	}
}

// Repositories implements Store.
func (s *MemoryStore) Repositories() Repositories {
	return Repositories{
		Tickets:     memoryTickets{s},
		Updates:     memoryUpdates{s},
		Attachments: memoryAttachments{s},
	}
}

// WithinTx implements Store. Transactions are serialized and a failed fn
// restores the state seen when it started.
func (s *MemoryStore) WithinTx(ctx context.Context, fn func(Repositories) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	snapshot := s.snapshot()
	if err := fn(s.Repositories()); err != nil {
		s.restore(snapshot)
		return err
	}
	return nil
}

type memorySnapshot struct {
	tickets     map[string]domain.Ticket
	updates     map[string][]domain.TicketUpdate
	attachments map[string][]domain.AttachmentReference
}

func (s *MemoryStore) snapshot() memorySnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := memorySnapshot{
		tickets:     make(map[string]domain.Ticket, len(s.tickets)),
		updates:     make(map[string][]domain.TicketUpdate, len(s.updates)),
		attachments: make(map[string][]domain.AttachmentReference, len(s.attachments)),
	}
	for id, t := range s.tickets {
		snap.tickets[id] = t
	}
	for id, list := range s.updates {
		snap.updates[id] = append([]domain.TicketUpdate(nil), list...)
	}
	for id, list := range s.attachments {
		snap.attachments[id] = append([]domain.AttachmentReference(nil), list...)
	}
	return snap
}

func (s *MemoryStore) restore(snap memorySnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tickets = snap.tickets
	s.updates = snap.updates
	s.attachments = snap.attachments
}

type memoryTickets struct{ s *MemoryStore }

func (r memoryTickets) Create(ctx context.Context, ticket *domain.Ticket) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, exists := r.s.tickets[ticket.ID]; exists {
		return fmt.Errorf("ticket %s already exists", ticket.ID)
	}
	r.s.tickets[ticket.ID] = *ticket.Clone()
	return nil
}

func (r memoryTickets) Update(ctx context.Context, ticket *domain.Ticket) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, exists := r.s.tickets[ticket.ID]; !exists {
		return pgx.ErrNoRows
	}
	r.s.tickets[ticket.ID] = *ticket.Clone()
	return nil
}

func (r memoryTickets) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	ticket, ok := r.s.tickets[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return ticket.Clone(), nil
}

func (r memoryTickets) List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	r.s.mu.RLock()
	statuses := toSet(filter.Statuses)
	priorities := toSet(filter.Priorities)
	result := make([]domain.Ticket, 0, len(r.s.tickets))
	for _, ticket := range r.s.tickets {
		if len(statuses) > 0 && !statuses[ticket.Status] {
			continue
		}
		if len(priorities) > 0 && !priorities[ticket.Priority] {
			continue
		}
		if !MatchesSearch(&ticket, filter.Search) {
			continue
		}
		result = append(result, *ticket.Clone())
	}
	r.s.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.Before(result[j].CreatedAt)
		}
		return result[i].ID < result[j].ID
	})
	if filter.Offset > 0 {
		if filter.Offset >= len(result) {
			return []domain.Ticket{}, nil
		}
		result = result[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(result) {
		result = result[:filter.Limit]
	}
	return result, nil
}

type memoryUpdates struct{ s *MemoryStore }

func (r memoryUpdates) Create(ctx context.Context, update *domain.TicketUpdate) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.tickets[update.TicketID]; !ok {
		return fmt.Errorf("update %s references missing ticket %s", update.ID, update.TicketID)
	}
	for _, existing := range r.s.updates[update.TicketID] {
		if existing.Seq == update.Seq {
			return fmt.Errorf("duplicate update sequence %d for ticket %s", update.Seq, update.TicketID)
		}
	}
	stored := *update
	stored.Links = append([]string(nil), update.Links...)
	stored.Attachments = nil
	r.s.updates[update.TicketID] = append(r.s.updates[update.TicketID], stored)
	return nil
}

func (r memoryUpdates) ListByTicket(ctx context.Context, ticketID string) ([]domain.TicketUpdate, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	list := r.s.updates[ticketID]
	result := make([]domain.TicketUpdate, len(list))
	for i, update := range list {
		update.Links = append([]string(nil), update.Links...)
		result[i] = update
	}
	sort.SliceStable(result, func(i, j int) bool { return result[i].Before(result[j]) })
	return result, nil
}

type memoryAttachments struct{ s *MemoryStore }

func (r memoryAttachments) Create(ctx context.Context, attachment *domain.AttachmentReference) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.tickets[attachment.TicketID]; !ok {
		return fmt.Errorf("attachment %s references missing ticket %s", attachment.ID, attachment.TicketID)
	}
	r.s.attachments[attachment.TicketID] = append(r.s.attachments[attachment.TicketID], *attachment)
	return nil
}

func (r memoryAttachments) ListByTicket(ctx context.Context, ticketID string) ([]domain.AttachmentReference, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return append([]domain.AttachmentReference{}, r.s.attachments[ticketID]...), nil
}

func toSet(values []string) map[string]bool {
	set := make(map[string]bool, len(values))
	for _, v := range values {
		set[v] = true
	}
	return set
}
