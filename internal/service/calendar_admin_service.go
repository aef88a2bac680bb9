package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/servicedesk/internal/calendar"
	"github.com/spec-kit/servicedesk/internal/domain"
	"github.com/spec-kit/servicedesk/internal/events"
	"github.com/spec-kit/servicedesk/internal/repository"
	apperrors "github.com/spec-kit/servicedesk/pkg/util/errorutil"
)

const dateLayout = "2006-01-02"

// BusinessHourInput is one weekday row as submitted by an administrator.
type BusinessHourInput struct {
	DayOfWeek    int
	IsWorkingDay bool
	StartTime    string
	EndTime      string
}

// HolidayInput describes a holiday to create.
type HolidayInput struct {
	Name        string
	Date        string
	IsRecurring bool
}

// CalendarAdminService manages business hours, holidays and SLA rules.
type CalendarAdminService struct {
	hours      repository.BusinessHourRepository
	holidays   repository.HolidayRepository
	rules      repository.SLARuleRepository
	loc        *time.Location
	dispatcher events.Dispatcher
}

// CalendarAdminDependencies bundles repositories for calendar administration.
type CalendarAdminDependencies struct {
	BusinessHourRepo repository.BusinessHourRepository
	HolidayRepo      repository.HolidayRepository
	SLARuleRepo      repository.SLARuleRepository
	Location         *time.Location
	Dispatcher       events.Dispatcher
}

// NewCalendarAdminService constructs the service.
func NewCalendarAdminService(deps CalendarAdminDependencies) *CalendarAdminService {
	return &CalendarAdminService{
		hours:      deps.BusinessHourRepo,
		holidays:   deps.HolidayRepo,
		rules:      deps.SLARuleRepo,
		loc:        deps.Location,
		dispatcher: deps.Dispatcher,
	}
}

func requireAdmin(actor *domain.StaffMember) error {
	if !actor.CanConfigureCalendar() {
		return apperrors.NewForbidden("admin role required")
	}
	return nil
}

// BusinessHours lists the weekly table.
func (s *CalendarAdminService) BusinessHours(ctx context.Context) ([]domain.BusinessHour, error) {
	return s.hours.List(ctx)
}

// UpdateBusinessHours validates and stores the supplied weekday rows. Rows
// not mentioned keep their current values; the resulting week must still be
// a valid calendar.
func (s *CalendarAdminService) UpdateBusinessHours(ctx context.Context, actor *domain.StaffMember, inputs []BusinessHourInput) ([]domain.BusinessHour, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if len(inputs) == 0 {
		return nil, apperrors.NewValidationError("at least one weekday is required", nil)
	}

	updates := make(map[time.Weekday]domain.BusinessHour, len(inputs))
	for _, in := range inputs {
		bh, err := parseBusinessHour(in)
		if err != nil {
			return nil, err
		}
		if _, dup := updates[bh.DayOfWeek]; dup {
			return nil, apperrors.NewValidationError("duplicate day_of_week", map[string]any{"day_of_week": in.DayOfWeek})
		}
		updates[bh.DayOfWeek] = bh
	}

	current, err := s.hours.List(ctx)
	if err != nil {
		return nil, err
	}
	merged := make([]domain.BusinessHour, 0, 7)
	for _, bh := range current {
		if _, replaced := updates[bh.DayOfWeek]; !replaced {
			merged = append(merged, bh)
		}
	}
	changed := make([]domain.BusinessHour, 0, len(updates))
	for day := time.Sunday; day <= time.Saturday; day++ {
		if bh, ok := updates[day]; ok {
			merged = append(merged, bh)
			changed = append(changed, bh)
		}
	}

	if _, err := calendar.New(s.loc, merged, nil); err != nil {
		return nil, apperrors.NewValidationError(err.Error(), nil)
	}

	if err := s.hours.ReplaceAll(ctx, changed); err != nil {
		return nil, err
	}
	s.publishCalendarUpdated(ctx, actor, "business_hours")
	return s.hours.List(ctx)
}

func parseBusinessHour(in BusinessHourInput) (domain.BusinessHour, error) {
	if in.DayOfWeek < 0 || in.DayOfWeek > 6 {
		return domain.BusinessHour{}, apperrors.NewValidationError("day_of_week must be between 0 and 6", map[string]any{"day_of_week": in.DayOfWeek})
	}
	bh := domain.BusinessHour{DayOfWeek: time.Weekday(in.DayOfWeek), IsWorkingDay: in.IsWorkingDay}
	if !in.IsWorkingDay && in.StartTime == "" && in.EndTime == "" {
		return bh, nil
	}
	start, err := domain.ParseTimeOfDay(in.StartTime)
	if err != nil {
		return domain.BusinessHour{}, apperrors.NewValidationError(err.Error(), map[string]any{"day_of_week": in.DayOfWeek})
	}
	end, err := domain.ParseTimeOfDay(in.EndTime)
	if err != nil {
		return domain.BusinessHour{}, apperrors.NewValidationError(err.Error(), map[string]any{"day_of_week": in.DayOfWeek})
	}
	bh.StartTime = start
	bh.EndTime = end
	return bh, nil
}

// Holidays lists all holidays.
func (s *CalendarAdminService) Holidays(ctx context.Context) ([]domain.Holiday, error) {
	return s.holidays.List(ctx)
}

// CreateHoliday adds a holiday. Date is a civil date in YYYY-MM-DD form.
func (s *CalendarAdminService) CreateHoliday(ctx context.Context, actor *domain.StaffMember, input HolidayInput) (*domain.Holiday, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, apperrors.NewValidationError("name required", nil)
	}
	date, err := time.Parse(dateLayout, strings.TrimSpace(input.Date))
	if err != nil {
		return nil, apperrors.NewValidationError("date must be YYYY-MM-DD", map[string]any{"date": input.Date})
	}

	holiday := &domain.Holiday{Name: name, Date: date, IsRecurring: input.IsRecurring}
	if err := s.holidays.Create(ctx, holiday); err != nil {
		return nil, err
	}
	s.publishCalendarUpdated(ctx, actor, "holidays")
	return holiday, nil
}

// DeleteHoliday removes a holiday.
func (s *CalendarAdminService) DeleteHoliday(ctx context.Context, actor *domain.StaffMember, id string) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}
	if err := s.holidays.Delete(ctx, id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewNotFound("holiday", map[string]any{"id": id})
		}
		return err
	}
	s.publishCalendarUpdated(ctx, actor, "holidays")
	return nil
}

// SLARules lists the priority budgets.
func (s *CalendarAdminService) SLARules(ctx context.Context) ([]domain.SLARule, error) {
	return s.rules.List(ctx)
}

// UpdateSLARule sets the resolution budget for a priority.
func (s *CalendarAdminService) UpdateSLARule(ctx context.Context, actor *domain.StaffMember, priority domain.TicketPriority, hours float64) (*domain.SLARule, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if !priority.Valid() {
		return nil, apperrors.NewValidationError(fmt.Sprintf("unknown priority %q", priority), nil)
	}
	if math.IsNaN(hours) || math.IsInf(hours, 0) || hours <= 0 {
		return nil, apperrors.NewValidationError("resolution_time_hours must be a positive number", nil)
	}
	rule := &domain.SLARule{Priority: priority, ResolutionTimeHours: hours}
	if err := s.rules.Upsert(ctx, rule); err != nil {
		return nil, err
	}
	s.publishCalendarUpdated(ctx, actor, "sla_rules")
	return rule, nil
}

func (s *CalendarAdminService) publishCalendarUpdated(ctx context.Context, actor *domain.StaffMember, section string) {
	if s.dispatcher == nil {
		return
	}
	_ = s.dispatcher.Publish(ctx, events.Event{
		ID:        uuid.NewString(),
		Type:      events.EventCalendarUpdated,
		Actor:     staffActor(actor.ID),
		Timestamp: time.Now(),
		Payload:   events.CalendarUpdatedPayload{Section: section},
	})
}
