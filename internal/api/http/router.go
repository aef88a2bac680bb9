package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/servicedesk/internal/api/http/handlers"
	"github.com/spec-kit/servicedesk/internal/auth"
	"github.com/spec-kit/servicedesk/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Tickets        *handlers.TicketsHandler
	StaffTickets   *handlers.StaffTicketsHandler
	Calendar       *handlers.CalendarHandler
	Reports        *handlers.ReportsHandler
	AuthMiddleware fiber.Handler
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	app.Post("/auth/staff/login", cfg.Auth.Login)

	app.Post("/tickets", cfg.Tickets.CreateTicket)
	app.Get("/tickets/:key", cfg.Tickets.GetTicket)

	anyStaff := auth.RequireStaffRole()
	adminOnly := auth.RequireStaffRole(domain.StaffRoleAdmin)
	leads := auth.RequireStaffRole(domain.ReportRoles...)

	app.Get("/metrics", cfg.AuthMiddleware, adminOnly, cfg.Health.Metrics)

	staff := app.Group("/staff", cfg.AuthMiddleware, anyStaff)
	staff.Get("/tickets", cfg.StaffTickets.ListStaffTickets)
	staff.Get("/tickets/:id", cfg.StaffTickets.GetStaffTicket)
	staff.Patch("/tickets/:id/priority", cfg.StaffTickets.UpdatePriority)
	staff.Patch("/tickets/:id/status", cfg.StaffTickets.UpdateStatus)

	cal := app.Group("/calendar", cfg.AuthMiddleware, anyStaff)
	cal.Get("/working-moment", cfg.Calendar.WorkingMoment)
	cal.Get("/due-date", cfg.Calendar.DueDate)
	cal.Get("/business-hours", adminOnly, cfg.Calendar.BusinessHours)
	cal.Put("/business-hours", adminOnly, cfg.Calendar.UpdateBusinessHours)
	cal.Get("/holidays", adminOnly, cfg.Calendar.Holidays)
	cal.Post("/holidays", adminOnly, cfg.Calendar.CreateHoliday)
	cal.Delete("/holidays/:id", adminOnly, cfg.Calendar.DeleteHoliday)
	cal.Get("/sla-rules", adminOnly, cfg.Calendar.SLARules)
	cal.Put("/sla-rules", adminOnly, cfg.Calendar.UpdateSLARules)

	reports := app.Group("/reports", cfg.AuthMiddleware, leads)
	reports.Get("/sla", cfg.Reports.Summary)
	reports.Get("/sla.xlsx", cfg.Reports.Workbook)
}
