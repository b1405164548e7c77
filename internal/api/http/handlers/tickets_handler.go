package handlers

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/opsdesk/ticket-rules/internal/api/dto"
	"github.com/opsdesk/ticket-rules/internal/service"
	"github.com/opsdesk/ticket-rules/internal/tagfilter"
	"github.com/opsdesk/ticket-rules/internal/workflow"
	apperrors "github.com/opsdesk/ticket-rules/pkg/util/errorutil"
)

// TicketsHandler manages ticket endpoints.
type TicketsHandler struct {
	service *service.TicketService
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(ticketService *service.TicketService) *TicketsHandler {
	return &TicketsHandler{service: ticketService}
}

// CreateTicket POST /tickets.
func (h *TicketsHandler) CreateTicket(c *fiber.Ctx) error {
	var req dto.CreateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if strings.TrimSpace(req.Title) == "" {
		return apperrors.NewValidationError("title required", nil)
	}

	detail, err := h.service.CreateTicket(c.UserContext(), service.TicketCreateInput{
		Title:       req.Title,
		Description: req.Description,
		Notes:       req.Notes,
		Requester:   req.Requester,
		Watchers:    req.Watchers,
		Priority:    req.Priority,
		DueDate:     req.DueDate,
		Tags:        req.Tags,
		Links:       req.Links,
		Actor:       req.Actor,
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": dto.NewTicketDetailResponse(detail)})
}

// ListTickets GET /tickets.
func (h *TicketsHandler) ListTickets(c *fiber.Ctx) error {
	input, err := parseTicketListQuery(c)
	if err != nil {
		return err
	}
	snapshots, err := h.service.ListTickets(c.UserContext(), input)
	if err != nil {
		return err
	}
	items := make([]dto.TicketResponse, 0, len(snapshots))
	for _, snap := range snapshots {
		items = append(items, dto.NewTicketResponse(snap))
	}
	return c.JSON(fiber.Map{"data": items})
}

// GetTicket GET /tickets/:id.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	detail, err := h.service.GetTicket(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketDetailResponse(detail)})
}

// EditTicket PATCH /tickets/:id.
func (h *TicketsHandler) EditTicket(c *fiber.Ctx) error {
	var req dto.EditTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	detail, err := h.service.EditTicket(c.UserContext(), c.Params("id"), service.TicketEditInput{
		Title:        req.Title,
		Description:  req.Description,
		Notes:        req.Notes,
		Requester:    req.Requester,
		Priority:     req.Priority,
		DueDate:      req.DueDate,
		ClearDueDate: req.ClearDueDate,
		Watchers:     req.Watchers,
		Tags:         req.Tags,
		Links:        req.Links,
		Actor:        req.Actor,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketDetailResponse(detail)})
}

// TransitionTicket POST /tickets/:id/status.
func (h *TicketsHandler) TransitionTicket(c *fiber.Ctx) error {
	var req dto.TransitionRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if strings.TrimSpace(req.Status) == "" {
		return apperrors.NewValidationError("status required", nil)
	}

	detail, update, err := h.service.Transition(c.UserContext(), c.Params("id"), workflow.Transition{
		To:         strings.TrimSpace(req.Status),
		HoldReason: req.HoldReason,
		Actor:      req.Actor,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.TransitionResponse{
		Ticket: dto.NewTicketDetailResponse(detail),
		Update: dto.NewUpdateResponse(update),
	}})
}

// AddUpdate POST /tickets/:id/updates.
func (h *TicketsHandler) AddUpdate(c *fiber.Ctx) error {
	var req dto.CreateUpdateRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	attachments := make([]service.AttachmentInput, 0, len(req.Attachments))
	for _, att := range req.Attachments {
		attachments = append(attachments, service.AttachmentInput{
			StorageKey: att.StorageKey,
			FileName:   att.FileName,
			MimeType:   att.MimeType,
			SizeBytes:  att.SizeBytes,
		})
	}
	update, err := h.service.AddUpdate(c.UserContext(), c.Params("id"), service.UpdateInput{
		Author:      req.Author,
		Body:        req.Body,
		Links:       req.Links,
		Attachments: attachments,
		Reage:       req.Reage,
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": dto.NewUpdateResponse(update)})
}

// Summary GET /tickets/:id/summary. format=html or format=text returns the
// raw rendering instead of JSON.
func (h *TicketsHandler) Summary(c *fiber.Ctx) error {
	s, err := h.service.Summary(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	switch strings.ToLower(c.Query("format")) {
	case "":
		return c.JSON(fiber.Map{"data": dto.SummaryResponse{HTML: s.HTML, Text: s.Text}})
	case "html":
		c.Set(fiber.HeaderContentType, fiber.MIMETextHTMLCharsetUTF8)
		return c.SendString(s.HTML)
	case "text":
		c.Set(fiber.HeaderContentType, fiber.MIMETextPlainCharsetUTF8)
		return c.SendString(s.Text)
	default:
		return apperrors.NewValidationError("format must be html or text", map[string]any{"format": c.Query("format")})
	}
}

func parseTicketListQuery(c *fiber.Ctx) (service.TicketListInput, error) {
	mode, err := tagfilter.ParseMode(c.Query("tag_mode"))
	if err != nil {
		return service.TicketListInput{}, apperrors.NewValidationError(err.Error(), nil)
	}

	var tags []string
	for _, raw := range c.Context().QueryArgs().PeekMulti("tag") {
		tags = append(tags, splitList(string(raw))...)
	}
	sortKey, order, err := service.ParseSort(c.Query("sort"), c.Query("order"))
	if err != nil {
		return service.TicketListInput{}, apperrors.NewValidationError(err.Error(), nil)
	}
	input := service.TicketListInput{
		Query:      tagfilter.Query{Mode: mode, Tags: tags},
		Statuses:   splitList(c.Query("status")),
		Priorities: splitList(c.Query("priority")),
		Search:     strings.TrimSpace(c.Query("q")),
		Sort:       sortKey,
		Order:      order,
	}

	pageSize := min(parseInt(c.Query("page_size"), 50), maxPageSize)
	page := min(parseInt(c.Query("page"), 1), maxPage)
	input.Offset = (page - 1) * pageSize
	input.Limit = pageSize
	return input, nil
}

const (
	maxPageSize = 500
	maxPage     = 1_000_000
)

func splitList(val string) []string {
	if val == "" {
		return nil
	}
	var result []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			result = append(result, part)
		}
	}
	return result
}

func parseInt(val string, def int) int {
	if val == "" {
		return def
	}
	parsed, err := strconv.Atoi(val)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}
