package service

import (
	"context"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/spec-kit/servicedesk/internal/calendar"
	"github.com/spec-kit/servicedesk/internal/domain"
	"github.com/spec-kit/servicedesk/internal/repository"
	apperrors "github.com/spec-kit/servicedesk/pkg/util/errorutil"
)

const reportPageSize = 500

// SLAOutcome classifies a ticket against its due date.
type SLAOutcome string

const (
	SLAOutcomeMet      SLAOutcome = "MET"
	SLAOutcomeBreached SLAOutcome = "BREACHED"
	SLAOutcomeOpen     SLAOutcome = "OPEN"
)

// SLAReportRow is one ticket in a compliance report.
type SLAReportRow struct {
	ExternalKey  string
	Priority     domain.TicketPriority
	Status       domain.TicketStatus
	CreatedAt    time.Time
	DueDate      *time.Time
	ClosedAt     *time.Time
	BudgetHours  float64
	WorkingHours float64
	Outcome      SLAOutcome
}

// SLAReport summarizes SLA compliance for tickets created in a range.
type SLAReport struct {
	From              time.Time
	To                time.Time
	GeneratedAt       time.Time
	Rows              []SLAReportRow
	Met               int
	Breached          int
	Open              int
	CompliancePercent float64
}

// CalendarSource provides a calendar snapshot.
type CalendarSource interface {
	Calendar(ctx context.Context) (*calendar.Calendar, error)
}

// ReportService builds SLA compliance reports.
type ReportService struct {
	tickets  repository.TicketRepository
	rules    repository.SLARuleRepository
	calendar CalendarSource
	now      func() time.Time
}

// NewReportService constructs the service.
func NewReportService(tickets repository.TicketRepository, rules repository.SLARuleRepository, source CalendarSource, clock func() time.Time) *ReportService {
	if clock == nil {
		clock = time.Now
	}
	return &ReportService{tickets: tickets, rules: rules, calendar: source, now: clock}
}

// ComplianceReport evaluates every ticket created in [from, to].
func (s *ReportService) ComplianceReport(ctx context.Context, from, to time.Time) (*SLAReport, error) {
	if !to.After(from) {
		return nil, apperrors.NewValidationError("to must be after from", nil)
	}
	cal, err := s.calendar.Calendar(ctx)
	if err != nil {
		return nil, err
	}
	rules, err := s.rules.List(ctx)
	if err != nil {
		return nil, err
	}
	budgets := make(map[domain.TicketPriority]float64, len(rules))
	for _, r := range rules {
		budgets[r.Priority] = r.ResolutionTimeHours
	}

	now := s.now().UTC()
	report := &SLAReport{From: from, To: to, GeneratedAt: now}
	for offset := 0; ; offset += reportPageSize {
		page, err := s.tickets.ListWithFilter(ctx, repository.TicketFilter{
			CreatedFrom: &from,
			CreatedTo:   &to,
			Limit:       reportPageSize,
			Offset:      offset,
		})
		if err != nil {
			return nil, err
		}
		for i := range page {
			row := evaluateTicket(cal, &page[i], budgets[page[i].Priority], now)
			switch row.Outcome {
			case SLAOutcomeMet:
				report.Met++
			case SLAOutcomeBreached:
				report.Breached++
			default:
				report.Open++
			}
			report.Rows = append(report.Rows, row)
		}
		if len(page) < reportPageSize {
			break
		}
	}
	if decided := report.Met + report.Breached; decided > 0 {
		report.CompliancePercent = float64(report.Met) * 100 / float64(decided)
	}
	return report, nil
}

func evaluateTicket(cal *calendar.Calendar, t *domain.Ticket, budget float64, now time.Time) SLAReportRow {
	end := now
	if t.ClosedAt != nil {
		end = *t.ClosedAt
	}
	row := SLAReportRow{
		ExternalKey:  t.ExternalKey,
		Priority:     t.Priority,
		Status:       t.Status,
		CreatedAt:    t.CreatedAt,
		DueDate:      t.DueDate,
		ClosedAt:     t.ClosedAt,
		BudgetHours:  budget,
		WorkingHours: cal.WorkingDuration(t.CreatedAt, end).Hours(),
	}
	switch {
	case t.DueDate == nil:
		row.Outcome = SLAOutcomeOpen
	case t.ClosedAt != nil && !t.ClosedAt.After(*t.DueDate):
		row.Outcome = SLAOutcomeMet
	case t.ClosedAt != nil || t.SLABreached || now.After(*t.DueDate):
		row.Outcome = SLAOutcomeBreached
	default:
		row.Outcome = SLAOutcomeOpen
	}
	return row
}

// RenderXLSX writes the report as a workbook with a summary sheet and a
// ticket sheet. Instants are shown in loc.
func RenderXLSX(report *SLAReport, loc *time.Location) ([]byte, error) {
	if loc == nil {
		loc = time.UTC
	}
	f := excelize.NewFile()
	defer f.Close()

	const summary = "Summary"
	const detail = "Tickets"
	if err := f.SetSheetName("Sheet1", summary); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(detail); err != nil {
		return nil, err
	}

	summaryRows := [][]any{
		{"From", report.From.In(loc).Format(time.RFC3339)},
		{"To", report.To.In(loc).Format(time.RFC3339)},
		{"Generated", report.GeneratedAt.In(loc).Format(time.RFC3339)},
		{"Met", report.Met},
		{"Breached", report.Breached},
		{"Open", report.Open},
		{"Compliance %", fmt.Sprintf("%.1f", report.CompliancePercent)},
	}
	for i, row := range summaryRows {
		if err := setRow(f, summary, i+1, row); err != nil {
			return nil, err
		}
	}

	header := []any{"Ticket", "Priority", "Status", "Created", "Due", "Closed", "Budget (h)", "Working time (h)", "Outcome"}
	if err := setRow(f, detail, 1, header); err != nil {
		return nil, err
	}
	for i, r := range report.Rows {
		row := []any{
			r.ExternalKey,
			string(r.Priority),
			string(r.Status),
			r.CreatedAt.In(loc).Format(time.RFC3339),
			formatOptional(r.DueDate, loc),
			formatOptional(r.ClosedAt, loc),
			r.BudgetHours,
			fmt.Sprintf("%.2f", r.WorkingHours),
			string(r.Outcome),
		}
		if err := setRow(f, detail, i+2, row); err != nil {
			return nil, err
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func setRow(f *excelize.File, sheet string, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	return f.SetSheetRow(sheet, cell, &values)
}

func formatOptional(t *time.Time, loc *time.Location) string {
	if t == nil {
		return ""
	}
	return t.In(loc).Format(time.RFC3339)
}
