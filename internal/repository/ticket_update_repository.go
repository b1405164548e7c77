package repository

import (
	"context"

	"github.com/opsdesk/ticket-rules/internal/domain"
)

// TicketUpdateRepository stores audit trail entries.
type TicketUpdateRepository interface {
	Create(ctx context.Context, update *domain.TicketUpdate) error
	ListByTicket(ctx context.Context, ticketID string) ([]domain.TicketUpdate, error)
}

type ticketUpdateRepository struct {
	db DBTX
}

// NewTicketUpdateRepository builds repository.
func NewTicketUpdateRepository(db DBTX) TicketUpdateRepository {
	return &ticketUpdateRepository{db: db}
}

func (r *ticketUpdateRepository) Create(ctx context.Context, update *domain.TicketUpdate) error {
	const query = `
        INSERT INTO ticket_updates (id, ticket_id, seq, author, body, status_from, status_to, system_generated, links, created_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`
	_, err := r.db.Exec(ctx, query,
		update.ID,
		update.TicketID,
		update.Seq,
		update.Author,
		update.Body,
		update.StatusFrom,
		update.StatusTo,
		update.SystemGenerated,
		nonNil(update.Links),
		update.CreatedAt,
	)
	return err
}

func (r *ticketUpdateRepository) ListByTicket(ctx context.Context, ticketID string) ([]domain.TicketUpdate, error) {
	const query = `
        SELECT id, ticket_id, seq, author, body, status_from, status_to, system_generated, links, created_at
        FROM ticket_updates WHERE ticket_id=$1 ORDER BY created_at ASC, seq ASC`
	rows, err := r.db.Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.TicketUpdate
	for rows.Next() {
		var update domain.TicketUpdate
		if err := rows.Scan(
			&update.ID,
			&update.TicketID,
			&update.Seq,
			&update.Author,
			&update.Body,
			&update.StatusFrom,
			&update.StatusTo,
			&update.SystemGenerated,
			&update.Links,
			&update.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, update)
	}
	return result, rows.Err()
}
