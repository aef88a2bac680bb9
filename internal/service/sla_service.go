package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/servicedesk/internal/calendar"
	"github.com/spec-kit/servicedesk/internal/config"
	"github.com/spec-kit/servicedesk/internal/domain"
	"github.com/spec-kit/servicedesk/internal/events"
	"github.com/spec-kit/servicedesk/internal/observability"
	"github.com/spec-kit/servicedesk/internal/repository"
	apperrors "github.com/spec-kit/servicedesk/pkg/util/errorutil"
)

// SnapshotCache stores calendar snapshots between requests.
type SnapshotCache interface {
	Get(ctx context.Context) (*domain.CalendarSnapshot, bool, error)
	Set(ctx context.Context, snap *domain.CalendarSnapshot) error
	Invalidate(ctx context.Context) error
}

// SLAService assigns SLA due dates using the business calendar.
type SLAService struct {
	hours     repository.BusinessHourRepository
	holidays  repository.HolidayRepository
	rules     repository.SLARuleRepository
	cache     SnapshotCache
	loc       *time.Location
	lookahead int
	logger    *zap.Logger
	metrics   *observability.Metrics
}

// SLADependencies bundles collaborators for the SLA service.
type SLADependencies struct {
	BusinessHourRepo repository.BusinessHourRepository
	HolidayRepo      repository.HolidayRepository
	SLARuleRepo      repository.SLARuleRepository
	Cache            SnapshotCache
	Logger           *zap.Logger
	Metrics          *observability.Metrics
}

// NewSLAService constructs the service. cfg.Location must be set.
func NewSLAService(cfg config.CalendarConfig, deps SLADependencies) *SLAService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SLAService{
		hours:     deps.BusinessHourRepo,
		holidays:  deps.HolidayRepo,
		rules:     deps.SLARuleRepo,
		cache:     deps.Cache,
		loc:       cfg.Location,
		lookahead: cfg.MaxLookaheadDays,
		logger:    logger,
		metrics:   deps.Metrics,
	}
}

// RegisterHandlers drops the cached snapshot whenever calendar data changes.
func (s *SLAService) RegisterHandlers(dispatcher events.Dispatcher) {
	if dispatcher == nil {
		return
	}
	dispatcher.Subscribe(events.EventCalendarUpdated, func(ctx context.Context, _ events.Event) error {
		return s.InvalidateCache(ctx)
	})
}

// Location returns the organization timezone.
func (s *SLAService) Location() *time.Location {
	return s.loc
}

// Calendar builds a calendar from one snapshot of the calendar tables.
func (s *SLAService) Calendar(ctx context.Context) (*calendar.Calendar, error) {
	snap, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	cal, err := calendar.New(s.loc, snap.BusinessHours, snap.Holidays, calendar.WithMaxLookaheadDays(s.lookahead))
	if err != nil {
		return nil, calendarError(err)
	}
	return cal, nil
}

// ResolutionHours returns the SLA budget for a priority.
func (s *SLAService) ResolutionHours(ctx context.Context, priority domain.TicketPriority) (float64, error) {
	rule, err := s.rules.GetByPriority(ctx, priority)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, apperrors.NewConfigurationError(fmt.Sprintf("no SLA rule for priority %s", priority), err)
	}
	if err != nil {
		return 0, err
	}
	if rule.ResolutionTimeHours <= 0 {
		return 0, apperrors.NewConfigurationError(fmt.Sprintf("SLA rule for priority %s has no budget", priority), nil)
	}
	return rule.ResolutionTimeHours, nil
}

// DueDate computes the UTC due instant for a ticket of the given priority
// created at createdAt.
func (s *SLAService) DueDate(ctx context.Context, priority domain.TicketPriority, createdAt time.Time) (time.Time, error) {
	hours, err := s.ResolutionHours(ctx, priority)
	if err != nil {
		return time.Time{}, err
	}
	due, err := s.DueDateForHours(ctx, createdAt, hours)
	if err != nil {
		return time.Time{}, err
	}
	s.logger.Debug("sla due date assigned",
		zap.String("priority", string(priority)),
		zap.Time("created_at", createdAt),
		zap.Float64("hours", hours),
		zap.Time("due_date", due))
	return due, nil
}

// DueDateForHours adds hours of working time to start and returns the result
// in UTC.
func (s *SLAService) DueDateForHours(ctx context.Context, start time.Time, hours float64) (time.Time, error) {
	cal, err := s.Calendar(ctx)
	if err != nil {
		return time.Time{}, err
	}
	due, err := cal.AddWorkingHours(start, hours)
	if err != nil {
		return time.Time{}, calendarError(err)
	}
	s.metrics.RecordDueDate()
	return due.UTC(), nil
}

// IsWorkingMoment reports whether t falls inside business hours.
func (s *SLAService) IsWorkingMoment(ctx context.Context, t time.Time) (bool, error) {
	cal, err := s.Calendar(ctx)
	if err != nil {
		return false, err
	}
	return cal.IsWorkingMoment(t), nil
}

// NextOpening returns the first working instant at or after t, in UTC.
func (s *SLAService) NextOpening(ctx context.Context, t time.Time) (time.Time, error) {
	cal, err := s.Calendar(ctx)
	if err != nil {
		return time.Time{}, err
	}
	next, err := cal.NextOpening(t)
	if err != nil {
		return time.Time{}, calendarError(err)
	}
	return next.UTC(), nil
}

// InvalidateCache drops the cached calendar snapshot.
func (s *SLAService) InvalidateCache(ctx context.Context) error {
	if s.cache == nil {
		return nil
	}
	if err := s.cache.Invalidate(ctx); err != nil {
		s.logger.Warn("calendar cache invalidation failed", zap.Error(err))
		return err
	}
	return nil
}

func (s *SLAService) snapshot(ctx context.Context) (*domain.CalendarSnapshot, error) {
	if s.cache != nil {
		snap, ok, err := s.cache.Get(ctx)
		if err != nil {
			s.logger.Warn("calendar cache read failed", zap.Error(err))
		} else if ok {
			return snap, nil
		}
	}

	hours, err := s.hours.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("load business hours: %w", err)
	}
	holidays, err := s.holidays.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("load holidays: %w", err)
	}
	snap := &domain.CalendarSnapshot{BusinessHours: hours, Holidays: holidays}

	if s.cache != nil {
		if err := s.cache.Set(ctx, snap); err != nil {
			s.logger.Warn("calendar cache write failed", zap.Error(err))
		}
	}
	return snap, nil
}

// calendarError maps calendar sentinels onto domain errors.
func calendarError(err error) error {
	switch {
	case errors.Is(err, calendar.ErrInvalidHours):
		return apperrors.NewValidationError(err.Error(), nil)
	case errors.Is(err, calendar.ErrInvalidBusinessHours),
		errors.Is(err, calendar.ErrNoWorkingDays),
		errors.Is(err, calendar.ErrLookaheadExceeded):
		return apperrors.NewConfigurationError("business calendar cannot produce a due date", err)
	default:
		return err
	}
}
