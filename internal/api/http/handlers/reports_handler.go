package handlers

import (
	"context"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/servicedesk/internal/service"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// ComplianceReporter builds SLA compliance reports.
type ComplianceReporter interface {
	ComplianceReport(ctx context.Context, from, to time.Time) (*service.SLAReport, error)
}

// ReportsHandler serves SLA reports.
type ReportsHandler struct {
	reports ComplianceReporter
	loc     *time.Location
	logger  *zap.Logger
	now     func() time.Time
}

// NewReportsHandler constructs handler.
func NewReportsHandler(reports ComplianceReporter, loc *time.Location, logger *zap.Logger, clock func() time.Time) *ReportsHandler {
	if clock == nil {
		clock = time.Now
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReportsHandler{reports: reports, loc: loc, logger: logger, now: clock}
}

// Summary GET /reports/sla.
func (h *ReportsHandler) Summary(c *fiber.Ctx) error {
	report, err := h.build(c)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{
		"from":               report.From.In(h.loc),
		"to":                 report.To.In(h.loc),
		"generated_at":       report.GeneratedAt,
		"tickets":            len(report.Rows),
		"met":                report.Met,
		"breached":           report.Breached,
		"open":               report.Open,
		"compliance_percent": report.CompliancePercent,
	}})
}

// Workbook GET /reports/sla.xlsx.
func (h *ReportsHandler) Workbook(c *fiber.Ctx) error {
	report, err := h.build(c)
	if err != nil {
		return err
	}
	data, err := service.RenderXLSX(report, h.loc)
	if err != nil {
		h.logger.Error("render sla workbook", zap.Error(err))
		return err
	}
	filename := fmt.Sprintf("sla-report-%s-%s.xlsx",
		report.From.In(h.loc).Format("20060102"), report.To.In(h.loc).Format("20060102"))
	c.Set(fiber.HeaderContentType, xlsxContentType)
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", filename))
	return c.Send(data)
}

// build reads ?from=&to=; the range defaults to the last 30 days.
func (h *ReportsHandler) build(c *fiber.Ctx) (*service.SLAReport, error) {
	now := h.now()
	to, err := parseInstant("to", c.Query("to"), h.loc, now)
	if err != nil {
		return nil, err
	}
	from, err := parseInstant("from", c.Query("from"), h.loc, to.AddDate(0, 0, -30))
	if err != nil {
		return nil, err
	}
	return h.reports.ComplianceReport(c.UserContext(), from, to)
}
