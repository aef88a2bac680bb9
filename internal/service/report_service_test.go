package service

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/spec-kit/servicedesk/internal/domain"
)

func seedReportTickets(t *testing.T, repo *fakeTicketRepo) {
	t.Helper()
	ctx := context.Background()
	at := func(day, hour int) *time.Time {
		v := time.Date(2025, 1, day, hour, 0, 0, 0, ict).UTC()
		return &v
	}
	tickets := []domain.Ticket{
		{ExternalKey: "TCK-00000001", Priority: domain.TicketPriorityHigh, Status: domain.TicketStatusResolved,
			CreatedAt: *at(8, 8), DueDate: at(8, 12), ClosedAt: at(8, 11)},
		{ExternalKey: "TCK-00000002", Priority: domain.TicketPriorityUrgent, Status: domain.TicketStatusClosed,
			CreatedAt: *at(8, 9), DueDate: at(8, 11), ClosedAt: at(8, 14)},
		{ExternalKey: "TCK-00000003", Priority: domain.TicketPriorityLow, Status: domain.TicketStatusOpen,
			CreatedAt: *at(8, 10), DueDate: at(10, 16)},
		{ExternalKey: "TCK-00000004", Priority: domain.TicketPriorityLow, Status: domain.TicketStatusOpen,
			CreatedAt: *at(20, 10), DueDate: at(22, 16)},
	}
	for i := range tickets {
		require.NoError(t, repo.Create(ctx, &tickets[i]))
	}
}

func TestComplianceReport(t *testing.T) {
	sla := newSLAFixture()
	repo := newFakeTicketRepo()
	seedReportTickets(t, repo)
	now := time.Date(2025, 1, 9, 10, 0, 0, 0, ict)
	svc := NewReportService(repo, sla.rules, sla.svc, func() time.Time { return now })

	from := time.Date(2025, 1, 1, 0, 0, 0, 0, ict)
	to := time.Date(2025, 1, 15, 0, 0, 0, 0, ict)
	report, err := svc.ComplianceReport(context.Background(), from, to)
	require.NoError(t, err)

	require.Len(t, report.Rows, 3)
	assert.Equal(t, 1, report.Met)
	assert.Equal(t, 1, report.Breached)
	assert.Equal(t, 1, report.Open)
	assert.InDelta(t, 50.0, report.CompliancePercent, 1e-9)

	met := report.Rows[0]
	assert.Equal(t, SLAOutcomeMet, met.Outcome)
	assert.Equal(t, 4.0, met.BudgetHours)
	assert.InDelta(t, 3.0, met.WorkingHours, 1e-9)

	assert.Equal(t, SLAOutcomeBreached, report.Rows[1].Outcome)

	open := report.Rows[2]
	assert.Equal(t, SLAOutcomeOpen, open.Outcome)
	// Wednesday 10:00-17:00 plus Thursday 08:00-10:00
	assert.InDelta(t, 9.0, open.WorkingHours, 1e-9)

	_, err = svc.ComplianceReport(context.Background(), to, from)
	requireCode(t, err, "VALIDATION_FAILED")
}

func TestComplianceReportOverdueOpenTicketIsBreached(t *testing.T) {
	sla := newSLAFixture()
	repo := newFakeTicketRepo()
	seedReportTickets(t, repo)
	now := time.Date(2025, 1, 13, 9, 0, 0, 0, ict)
	svc := NewReportService(repo, sla.rules, sla.svc, func() time.Time { return now })

	report, err := svc.ComplianceReport(context.Background(),
		time.Date(2025, 1, 8, 0, 0, 0, 0, ict), time.Date(2025, 1, 9, 0, 0, 0, 0, ict))
	require.NoError(t, err)
	assert.Equal(t, 1, report.Met)
	assert.Equal(t, 2, report.Breached)
	assert.Zero(t, report.Open)
}

func TestRenderXLSX(t *testing.T) {
	sla := newSLAFixture()
	repo := newFakeTicketRepo()
	seedReportTickets(t, repo)
	now := time.Date(2025, 1, 9, 10, 0, 0, 0, ict)
	svc := NewReportService(repo, sla.rules, sla.svc, func() time.Time { return now })

	report, err := svc.ComplianceReport(context.Background(),
		time.Date(2025, 1, 1, 0, 0, 0, 0, ict), time.Date(2025, 1, 15, 0, 0, 0, 0, ict))
	require.NoError(t, err)

	data, err := RenderXLSX(report, ict)
	require.NoError(t, err)

	book, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer book.Close()

	assert.Equal(t, []string{"Summary", "Tickets"}, book.GetSheetList())

	compliance, err := book.GetCellValue("Summary", "B7")
	require.NoError(t, err)
	assert.Equal(t, "50.0", compliance)

	rows, err := book.GetRows("Tickets")
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, "Ticket", rows[0][0])
	assert.Equal(t, "TCK-00000001", rows[1][0])
	assert.Equal(t, "2025-01-08T12:00:00+07:00", rows[1][4])
	assert.Equal(t, "MET", rows[1][8])
	assert.Equal(t, "", rows[3][5])
}
