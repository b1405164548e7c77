package dto

import (
	"time"

	"github.com/opsdesk/ticket-rules/internal/domain"
	"github.com/opsdesk/ticket-rules/internal/service"
	"github.com/opsdesk/ticket-rules/internal/sla"
)

// CreateTicketRequest payload.
type CreateTicketRequest struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Notes       string     `json:"notes"`
	Requester   string     `json:"requester"`
	Watchers    []string   `json:"watchers"`
	Priority    string     `json:"priority"`
	DueDate     *time.Time `json:"due_date"`
	Tags        []string   `json:"tags"`
	Links       []string   `json:"links"`
	Actor       string     `json:"actor"`
}

// EditTicketRequest is a partial edit; omitted fields are left unchanged.
type EditTicketRequest struct {
	Title        *string    `json:"title"`
	Description  *string    `json:"description"`
	Notes        *string    `json:"notes"`
	Requester    *string    `json:"requester"`
	Priority     *string    `json:"priority"`
	DueDate      *time.Time `json:"due_date"`
	ClearDueDate bool       `json:"clear_due_date"`
	Watchers     *[]string  `json:"watchers"`
	Tags         *[]string  `json:"tags"`
	Links        *[]string  `json:"links"`
	Actor        string     `json:"actor"`
}

// TransitionRequest asks for a status change.
type TransitionRequest struct {
	Status     string `json:"status"`
	HoldReason string `json:"hold_reason"`
	Actor      string `json:"actor"`
}

// CreateUpdateRequest payload.
type CreateUpdateRequest struct {
	Author      string              `json:"author"`
	Body        string              `json:"body"`
	Links       []string            `json:"links"`
	Attachments []AttachmentRequest `json:"attachments"`
	Reage       bool                `json:"reage"`
}

// AttachmentRequest describes attachment input.
type AttachmentRequest struct {
	StorageKey string `json:"storage_key"`
	FileName   string `json:"file_name"`
	MimeType   string `json:"mime_type"`
	SizeBytes  int64  `json:"size_bytes"`
}

// SLAResponse is the urgency classification at read time.
type SLAResponse struct {
	Stage     string  `json:"stage"`
	Color     string  `json:"color"`
	Basis     string  `json:"basis"`
	Countdown float64 `json:"countdown_days"`
	Label     string  `json:"label"`
}

// TicketResponse is the list representation of a ticket.
type TicketResponse struct {
	ID               string      `json:"id"`
	Title            string      `json:"title"`
	Description      string      `json:"description"`
	Notes            string      `json:"notes,omitempty"`
	Requester        string      `json:"requester,omitempty"`
	Watchers         []string    `json:"watchers"`
	Priority         string      `json:"priority"`
	Status           string      `json:"status"`
	HoldReason       string      `json:"hold_reason,omitempty"`
	DueDate          *time.Time  `json:"due_date"`
	AgeReferenceDate *time.Time  `json:"age_reference_date,omitempty"`
	Tags             []string    `json:"tags"`
	Links            []string    `json:"links"`
	CreatedAt        time.Time   `json:"created_at"`
	UpdatedAt        time.Time   `json:"updated_at"`
	SLA              SLAResponse `json:"sla"`
}

// TicketDetailResponse provides full ticket info.
type TicketDetailResponse struct {
	TicketResponse
	Updates     []UpdateResponse     `json:"updates"`
	Attachments []AttachmentResponse `json:"attachments"`
	Targets     []string             `json:"allowed_targets"`
}

// UpdateResponse represents one audit entry.
type UpdateResponse struct {
	ID              string               `json:"id"`
	Seq             int64                `json:"seq"`
	Author          string               `json:"author"`
	Body            string               `json:"body"`
	StatusFrom      string               `json:"status_from,omitempty"`
	StatusTo        string               `json:"status_to,omitempty"`
	SystemGenerated bool                 `json:"system_generated"`
	Links           []string             `json:"links"`
	Attachments     []AttachmentResponse `json:"attachments"`
	CreatedAt       time.Time            `json:"created_at"`
}

// AttachmentResponse metadata.
type AttachmentResponse struct {
	ID         string  `json:"id"`
	UpdateID   *string `json:"update_id,omitempty"`
	StorageKey string  `json:"storage_key"`
	FileName   string  `json:"file_name"`
	MimeType   string  `json:"mime_type"`
	SizeBytes  int64   `json:"size_bytes"`
}

// SummaryResponse carries both renderings of a ticket export.
type SummaryResponse struct {
	HTML string `json:"html"`
	Text string `json:"text"`
}

// TransitionResponse returns the ticket after a status change plus the
// generated audit entry.
type TransitionResponse struct {
	Ticket TicketDetailResponse `json:"ticket"`
	Update UpdateResponse       `json:"update"`
}

// NewTicketResponse maps a snapshot.
func NewTicketResponse(snap service.TicketSnapshot) TicketResponse {
	t := snap.Ticket
	return TicketResponse{
		ID:               t.ID,
		Title:            t.Title,
		Description:      t.Description,
		Notes:            t.Notes,
		Requester:        t.Requester,
		Watchers:         nonNil(t.Watchers),
		Priority:         t.Priority,
		Status:           t.Status,
		HoldReason:       t.HoldReason,
		DueDate:          t.DueDate,
		AgeReferenceDate: t.AgeReferenceDate,
		Tags:             nonNil(t.Tags),
		Links:            nonNil(t.Links),
		CreatedAt:        t.CreatedAt,
		UpdatedAt:        t.UpdatedAt,
		SLA: SLAResponse{
			Stage:     snap.Classification.Stage.String(),
			Color:     snap.Classification.Color,
			Basis:     string(snap.Classification.Basis),
			Countdown: snap.Countdown,
			Label:     countdownLabel(snap),
		},
	}
}

// NewTicketDetailResponse maps a detail view.
func NewTicketDetailResponse(detail *service.TicketDetail) TicketDetailResponse {
	updates := make([]UpdateResponse, 0, len(detail.Updates))
	for _, u := range detail.Updates {
		updates = append(updates, NewUpdateResponse(u))
	}
	return TicketDetailResponse{
		TicketResponse: NewTicketResponse(detail.TicketSnapshot),
		Updates:        updates,
		Attachments:    attachmentResponses(detail.Attachments),
		Targets:        nonNil(detail.Targets),
	}
}

// NewUpdateResponse maps an audit entry.
func NewUpdateResponse(u domain.TicketUpdate) UpdateResponse {
	return UpdateResponse{
		ID:              u.ID,
		Seq:             u.Seq,
		Author:          u.Author,
		Body:            u.Body,
		StatusFrom:      u.StatusFrom,
		StatusTo:        u.StatusTo,
		SystemGenerated: u.SystemGenerated,
		Links:           nonNil(u.Links),
		Attachments:     attachmentResponses(u.Attachments),
		CreatedAt:       u.CreatedAt,
	}
}

func attachmentResponses(items []domain.AttachmentReference) []AttachmentResponse {
	result := make([]AttachmentResponse, 0, len(items))
	for _, a := range items {
		result = append(result, AttachmentResponse{
			ID:         a.ID,
			UpdateID:   a.UpdateID,
			StorageKey: a.StorageKey,
			FileName:   a.FileName,
			MimeType:   a.MimeType,
			SizeBytes:  a.SizeBytes,
		})
	}
	return result
}

func countdownLabel(snap service.TicketSnapshot) string {
	if snap.Classification.Basis == sla.BasisStatus {
		return ""
	}
	return sla.FormatCountdown(snap.Countdown)
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
