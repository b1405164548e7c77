package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/opsdesk/ticket-rules/internal/domain"
)

// TicketFilter narrows ticket listings. Tag queries are evaluated by the
// caller so the match semantics live in one place.
type TicketFilter struct {
	Statuses   []string
	Priorities []string
	// Search is a case-insensitive substring matched against the text
	// fields, links, requester, watchers and tags.
	Search     string
	Limit      int
	Offset     int
}

// TicketRepository encapsulates ticket persistence.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	Update(ctx context.Context, ticket *domain.Ticket) error
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error)
}

type ticketRepository struct {
	db DBTX
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(db DBTX) TicketRepository {
	return &ticketRepository{db: db}
}

const ticketColumns = `id, title, description, notes, requester, watchers, priority, status,
               due_date, hold_reason, tags, links, created_at, updated_at, age_reference_date`

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        INSERT INTO tickets (` + ticketColumns + `)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)`
	_, err := r.db.Exec(ctx, query,
		ticket.ID,
		ticket.Title,
		ticket.Description,
		ticket.Notes,
		ticket.Requester,
		nonNil(ticket.Watchers),
		ticket.Priority,
		ticket.Status,
		ticket.DueDate,
		ticket.HoldReason,
		nonNil(ticket.Tags),
		nonNil(ticket.Links),
		ticket.CreatedAt,
		ticket.UpdatedAt,
		ticket.AgeReferenceDate,
	)
	return err
}

func (r *ticketRepository) Update(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        UPDATE tickets SET title=$1, description=$2, notes=$3, requester=$4, watchers=$5,
            priority=$6, status=$7, due_date=$8, hold_reason=$9, tags=$10, links=$11, updated_at=$12,
            age_reference_date=$13
        WHERE id=$14`
	cmd, err := r.db.Exec(ctx, query,
		ticket.Title,
		ticket.Description,
		ticket.Notes,
		ticket.Requester,
		nonNil(ticket.Watchers),
		ticket.Priority,
		ticket.Status,
		ticket.DueDate,
		ticket.HoldReason,
		nonNil(ticket.Tags),
		nonNil(ticket.Links),
		ticket.UpdatedAt,
		ticket.AgeReferenceDate,
		ticket.ID,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE id=$1`
	rows, err := r.db.Query(ctx, query, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	tickets, err := scanTickets(rows)
	if err != nil {
		return nil, err
	}
	if len(tickets) == 0 {
		return nil, pgx.ErrNoRows
	}
	return &tickets[0], nil
}

func (r *ticketRepository) List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	clauses := []string{"1=1"}
	args := []any{}

	if len(filter.Statuses) > 0 {
		args = append(args, filter.Statuses)
		clauses = append(clauses, fmt.Sprintf("status = ANY($%d)", len(args)))
	}
	if len(filter.Priorities) > 0 {
		args = append(args, filter.Priorities)
		clauses = append(clauses, fmt.Sprintf("priority = ANY($%d)", len(args)))
	}
	if term := strings.TrimSpace(filter.Search); term != "" {
		args = append(args, "%"+escapeLike(term)+"%")
		n := len(args)
		clauses = append(clauses, fmt.Sprintf(`(title ILIKE $%[1]d OR description ILIKE $%[1]d OR notes ILIKE $%[1]d
            OR requester ILIKE $%[1]d OR array_to_string(links, ' ') ILIKE $%[1]d
            OR array_to_string(watchers, ' ') ILIKE $%[1]d OR array_to_string(tags, ' ') ILIKE $%[1]d)`, n))
	}

	query := fmt.Sprintf(`SELECT %s FROM tickets WHERE %s ORDER BY created_at ASC, id ASC`,
		ticketColumns, strings.Join(clauses, " AND "))
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET %d", filter.Offset)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTickets(rows)
}

func scanTickets(rows pgx.Rows) ([]domain.Ticket, error) {
	var result []domain.Ticket
	for rows.Next() {
		var ticket domain.Ticket
		if err := rows.Scan(
			&ticket.ID,
			&ticket.Title,
			&ticket.Description,
			&ticket.Notes,
			&ticket.Requester,
			&ticket.Watchers,
			&ticket.Priority,
			&ticket.Status,
			&ticket.DueDate,
			&ticket.HoldReason,
			&ticket.Tags,
			&ticket.Links,
			&ticket.CreatedAt,
			&ticket.UpdatedAt,
			&ticket.AgeReferenceDate,
		); err != nil {
			return nil, err
		}
		result = append(result, ticket)
	}
	return result, rows.Err()
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// escapeLike makes term match literally inside an ILIKE pattern.
func escapeLike(term string) string {
	return likeEscaper.Replace(term)
}

// MatchesSearch reports whether term occurs, ignoring case, in any of the
// fields TicketFilter.Search covers.
func MatchesSearch(ticket *domain.Ticket, term string) bool {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return true
	}
	fields := []string{ticket.Title, ticket.Description, ticket.Notes, ticket.Requester}
	fields = append(fields, ticket.Links...)
	fields = append(fields, ticket.Watchers...)
	fields = append(fields, ticket.Tags...)
	for _, field := range fields {
		if strings.Contains(strings.ToLower(field), term) {
			return true
		}
	}
	return false
}

// nonNil keeps NOT NULL array columns from receiving SQL NULL.
func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
