package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/opsdesk/ticket-rules/internal/api/http/handlers"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health  *handlers.HealthHandler
	Tickets *handlers.TicketsHandler
	Admin   *handlers.AdminHandler
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	tickets := app.Group("/tickets")
	tickets.Post("", cfg.Tickets.CreateTicket)
	tickets.Get("", cfg.Tickets.ListTickets)
	tickets.Get("/:id", cfg.Tickets.GetTicket)
	tickets.Patch("/:id", cfg.Tickets.EditTicket)
	tickets.Post("/:id/status", cfg.Tickets.TransitionTicket)
	tickets.Post("/:id/updates", cfg.Tickets.AddUpdate)
	tickets.Get("/:id/summary", cfg.Tickets.Summary)

	admin := app.Group("/admin")
	admin.Get("/rules", cfg.Admin.GetRules)
	admin.Post("/rules/reload", cfg.Admin.ReloadRules)
	admin.Get("/metrics", cfg.Admin.Metrics)
}
