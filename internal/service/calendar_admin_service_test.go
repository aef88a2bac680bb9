package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/servicedesk/internal/domain"
	"github.com/spec-kit/servicedesk/internal/events"
)

var admin = &domain.StaffMember{ID: "staff-admin", Role: domain.StaffRoleAdmin, Active: true}

type adminFixture struct {
	sla *slaFixture
	svc *CalendarAdminService
}

func newAdminFixture() *adminFixture {
	sla := newSLAFixture()
	dispatcher := events.NewInMemoryDispatcher()
	sla.svc.RegisterHandlers(dispatcher)
	return &adminFixture{
		sla: sla,
		svc: NewCalendarAdminService(CalendarAdminDependencies{
			BusinessHourRepo: sla.hours,
			HolidayRepo:      sla.holidays,
			SLARuleRepo:      sla.rules,
			Location:         ict,
			Dispatcher:       dispatcher,
		}),
	}
}

func TestUpdateBusinessHoursMergesWeek(t *testing.T) {
	f := newAdminFixture()
	ctx := context.Background()
	saturday := time.Date(2025, 1, 11, 10, 0, 0, 0, ict)

	working, err := f.sla.svc.IsWorkingMoment(ctx, saturday)
	require.NoError(t, err)
	require.False(t, working)

	week, err := f.svc.UpdateBusinessHours(ctx, admin, []BusinessHourInput{
		{DayOfWeek: int(time.Saturday), IsWorkingDay: true, StartTime: "09:00", EndTime: "12:00"},
	})
	require.NoError(t, err)
	require.Len(t, week, 7)
	assert.Equal(t, domain.NewTimeOfDay(9, 0, 0), week[time.Saturday].StartTime)
	assert.Equal(t, domain.NewTimeOfDay(8, 0, 0), week[time.Monday].StartTime)
	assert.Equal(t, 1, f.sla.cache.invalidated)

	working, err = f.sla.svc.IsWorkingMoment(ctx, saturday)
	require.NoError(t, err)
	assert.True(t, working)
}

func TestUpdateBusinessHoursRejectsBadWeeks(t *testing.T) {
	ctx := context.Background()

	closeAll := make([]BusinessHourInput, 0, 7)
	for day := 0; day < 7; day++ {
		closeAll = append(closeAll, BusinessHourInput{DayOfWeek: day})
	}

	cases := map[string][]BusinessHourInput{
		"empty":            nil,
		"day out of range": {{DayOfWeek: 7, IsWorkingDay: true, StartTime: "08:00", EndTime: "17:00"}},
		"duplicate day":    {{DayOfWeek: 1}, {DayOfWeek: 1}},
		"bad time":         {{DayOfWeek: 1, IsWorkingDay: true, StartTime: "8am", EndTime: "17:00"}},
		"inverted":         {{DayOfWeek: 1, IsWorkingDay: true, StartTime: "17:00", EndTime: "08:00"}},
		"no working day":   closeAll,
	}
	for name, inputs := range cases {
		t.Run(name, func(t *testing.T) {
			f := newAdminFixture()
			_, err := f.svc.UpdateBusinessHours(ctx, admin, inputs)
			requireCode(t, err, "VALIDATION_FAILED")
			assert.Zero(t, f.sla.cache.invalidated)
			assert.True(t, f.sla.hours.rows[time.Monday].IsWorkingDay)
		})
	}
}

func TestCalendarMutationsRequireAdmin(t *testing.T) {
	f := newAdminFixture()
	ctx := context.Background()
	lead := &domain.StaffMember{ID: "staff-lead", Role: domain.StaffRoleTeamLead, Active: true}

	_, err := f.svc.UpdateBusinessHours(ctx, lead, []BusinessHourInput{{DayOfWeek: 6}})
	requireCode(t, err, "FORBIDDEN")
	_, err = f.svc.CreateHoliday(ctx, nil, HolidayInput{Name: "x", Date: "2025-04-30"})
	requireCode(t, err, "FORBIDDEN")
	err = f.svc.DeleteHoliday(ctx, lead, "hol-1")
	requireCode(t, err, "FORBIDDEN")
	_, err = f.svc.UpdateSLARule(ctx, lead, domain.TicketPriorityHigh, 3)
	requireCode(t, err, "FORBIDDEN")
}

func TestHolidayLifecycleShiftsDueDates(t *testing.T) {
	f := newAdminFixture()
	ctx := context.Background()
	created := time.Date(2025, 4, 29, 14, 0, 0, 0, ict)

	before, err := f.sla.svc.DueDate(ctx, domain.TicketPriorityMedium, created)
	require.NoError(t, err)
	assert.True(t, time.Date(2025, 4, 30, 13, 0, 0, 0, ict).Equal(before))

	holiday, err := f.svc.CreateHoliday(ctx, admin, HolidayInput{Name: "Reunification Day", Date: "2025-04-30", IsRecurring: true})
	require.NoError(t, err)
	assert.NotEmpty(t, holiday.ID)

	after, err := f.sla.svc.DueDate(ctx, domain.TicketPriorityMedium, created)
	require.NoError(t, err)
	assert.True(t, time.Date(2025, 5, 1, 13, 0, 0, 0, ict).Equal(after))

	require.NoError(t, f.svc.DeleteHoliday(ctx, admin, holiday.ID))
	err = f.svc.DeleteHoliday(ctx, admin, holiday.ID)
	requireCode(t, err, "NOT_FOUND")

	list, err := f.svc.Holidays(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)
	assert.Equal(t, 2, f.sla.cache.invalidated)

	_, err = f.svc.CreateHoliday(ctx, admin, HolidayInput{Name: "Bad", Date: "30/04/2025"})
	requireCode(t, err, "VALIDATION_FAILED")
	_, err = f.svc.CreateHoliday(ctx, admin, HolidayInput{Name: " ", Date: "2025-04-30"})
	requireCode(t, err, "VALIDATION_FAILED")
}

func TestUpdateSLARule(t *testing.T) {
	f := newAdminFixture()
	ctx := context.Background()

	rule, err := f.svc.UpdateSLARule(ctx, admin, domain.TicketPriorityHigh, 6)
	require.NoError(t, err)
	assert.Equal(t, 6.0, rule.ResolutionTimeHours)

	due, err := f.sla.svc.DueDate(ctx, domain.TicketPriorityHigh, time.Date(2025, 1, 8, 9, 0, 0, 0, ict))
	require.NoError(t, err)
	assert.True(t, time.Date(2025, 1, 8, 15, 0, 0, 0, ict).Equal(due))

	_, err = f.svc.UpdateSLARule(ctx, admin, domain.TicketPriorityHigh, 0)
	requireCode(t, err, "VALIDATION_FAILED")
	_, err = f.svc.UpdateSLARule(ctx, admin, "CRITICAL", 1)
	requireCode(t, err, "VALIDATION_FAILED")

	rules, err := f.svc.SLARules(ctx)
	require.NoError(t, err)
	assert.Len(t, rules, 4)
}
