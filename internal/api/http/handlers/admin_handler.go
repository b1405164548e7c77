package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/opsdesk/ticket-rules/internal/observability"
	"github.com/opsdesk/ticket-rules/internal/service"
)

// AdminHandler exposes rules configuration management.
type AdminHandler struct {
	service *service.TicketService
	metrics *observability.Metrics
}

// NewAdminHandler constructs handler.
func NewAdminHandler(ticketService *service.TicketService, metrics *observability.Metrics) *AdminHandler {
	return &AdminHandler{service: ticketService, metrics: metrics}
}

// GetRules GET /admin/rules.
func (h *AdminHandler) GetRules(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"data": h.service.Rules().ToMap()})
}

// ReloadRules POST /admin/rules/reload. A rejected file leaves the active
// rules in place and is reported as INVALID_CONFIG.
func (h *AdminHandler) ReloadRules(c *fiber.Ctx) error {
	cfg, err := h.service.ReloadRules(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": cfg.ToMap()})
}

// Metrics GET /admin/metrics.
func (h *AdminHandler) Metrics(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"data": h.metrics.Snapshot()})
}
