package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/servicedesk/internal/api/dto"
	"github.com/spec-kit/servicedesk/internal/domain"
	"github.com/spec-kit/servicedesk/internal/service"
	apperrors "github.com/spec-kit/servicedesk/pkg/util/errorutil"
)

// CalendarQueries answers working-time questions against the live calendar.
type CalendarQueries interface {
	Location() *time.Location
	IsWorkingMoment(ctx context.Context, t time.Time) (bool, error)
	NextOpening(ctx context.Context, t time.Time) (time.Time, error)
	ResolutionHours(ctx context.Context, priority domain.TicketPriority) (float64, error)
	DueDateForHours(ctx context.Context, start time.Time, hours float64) (time.Time, error)
}

// CalendarAdmin edits calendar and SLA data.
type CalendarAdmin interface {
	BusinessHours(ctx context.Context) ([]domain.BusinessHour, error)
	UpdateBusinessHours(ctx context.Context, actor *domain.StaffMember, inputs []service.BusinessHourInput) ([]domain.BusinessHour, error)
	Holidays(ctx context.Context) ([]domain.Holiday, error)
	CreateHoliday(ctx context.Context, actor *domain.StaffMember, input service.HolidayInput) (*domain.Holiday, error)
	DeleteHoliday(ctx context.Context, actor *domain.StaffMember, id string) error
	SLARules(ctx context.Context) ([]domain.SLARule, error)
	UpdateSLARule(ctx context.Context, actor *domain.StaffMember, priority domain.TicketPriority, hours float64) (*domain.SLARule, error)
}

// CalendarHandler exposes calendar queries and administration.
type CalendarHandler struct {
	queries CalendarQueries
	admin   CalendarAdmin
	now     func() time.Time
}

// NewCalendarHandler constructs handler. A nil clock uses time.Now.
func NewCalendarHandler(queries CalendarQueries, admin CalendarAdmin, clock func() time.Time) *CalendarHandler {
	if clock == nil {
		clock = time.Now
	}
	return &CalendarHandler{queries: queries, admin: admin, now: clock}
}

// WorkingMoment GET /calendar/working-moment?at=.
func (h *CalendarHandler) WorkingMoment(c *fiber.Ctx) error {
	loc := h.queries.Location()
	at, err := parseInstant("at", c.Query("at"), loc, h.now())
	if err != nil {
		return err
	}
	working, err := h.queries.IsWorkingMoment(c.UserContext(), at)
	if err != nil {
		return err
	}
	resp := dto.WorkingMomentResponse{At: at.In(loc), Timezone: loc.String(), Working: working}
	if !working {
		next, err := h.queries.NextOpening(c.UserContext(), at)
		if err != nil {
			return err
		}
		next = next.In(loc)
		resp.NextOpening = &next
	}
	return c.JSON(fiber.Map{"data": resp})
}

// DueDate GET /calendar/due-date?start=&hours= or ?start=&priority=.
func (h *CalendarHandler) DueDate(c *fiber.Ctx) error {
	loc := h.queries.Location()
	start, err := parseInstant("start", c.Query("start"), loc, h.now())
	if err != nil {
		return err
	}

	resp := dto.DueDateResponse{Start: start.In(loc), Timezone: loc.String()}
	switch hoursParam, priorityParam := c.Query("hours"), c.Query("priority"); {
	case hoursParam != "" && priorityParam != "":
		return apperrors.NewValidationError("use either hours or priority", nil)
	case hoursParam != "":
		hours, err := strconv.ParseFloat(hoursParam, 64)
		if err != nil {
			return apperrors.NewValidationError("hours must be a number", map[string]any{"hours": hoursParam})
		}
		resp.Hours = hours
	case priorityParam != "":
		priority := domain.TicketPriority(strings.ToUpper(priorityParam))
		if !priority.Valid() {
			return apperrors.NewValidationError("unknown priority", map[string]any{"priority": priorityParam})
		}
		hours, err := h.queries.ResolutionHours(c.UserContext(), priority)
		if err != nil {
			return err
		}
		resp.Priority = priority
		resp.Hours = hours
	default:
		return apperrors.NewValidationError("hours or priority required", nil)
	}

	due, err := h.queries.DueDateForHours(c.UserContext(), start, resp.Hours)
	if err != nil {
		return err
	}
	resp.DueDate = due.In(loc)
	return c.JSON(fiber.Map{"data": resp})
}

// BusinessHours GET /calendar/business-hours.
func (h *CalendarHandler) BusinessHours(c *fiber.Ctx) error {
	hours, err := h.admin.BusinessHours(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": businessHourPayloads(hours)})
}

// UpdateBusinessHours PUT /calendar/business-hours.
func (h *CalendarHandler) UpdateBusinessHours(c *fiber.Ctx) error {
	staff, err := staffPrincipal(c)
	if err != nil {
		return err
	}
	var req dto.UpdateBusinessHoursRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	inputs := make([]service.BusinessHourInput, 0, len(req.Days))
	for _, d := range req.Days {
		inputs = append(inputs, service.BusinessHourInput{
			DayOfWeek:    d.DayOfWeek,
			IsWorkingDay: d.IsWorkingDay,
			StartTime:    d.StartTime,
			EndTime:      d.EndTime,
		})
	}
	hours, err := h.admin.UpdateBusinessHours(c.UserContext(), staff, inputs)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": businessHourPayloads(hours)})
}

// Holidays GET /calendar/holidays.
func (h *CalendarHandler) Holidays(c *fiber.Ctx) error {
	holidays, err := h.admin.Holidays(c.UserContext())
	if err != nil {
		return err
	}
	items := make([]dto.HolidayResponse, 0, len(holidays))
	for i := range holidays {
		items = append(items, holidayResponse(&holidays[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// CreateHoliday POST /calendar/holidays.
func (h *CalendarHandler) CreateHoliday(c *fiber.Ctx) error {
	staff, err := staffPrincipal(c)
	if err != nil {
		return err
	}
	var req dto.CreateHolidayRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	holiday, err := h.admin.CreateHoliday(c.UserContext(), staff, service.HolidayInput{
		Name:        req.Name,
		Date:        req.Date,
		IsRecurring: req.IsRecurring,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": holidayResponse(holiday)})
}

// DeleteHoliday DELETE /calendar/holidays/:id.
func (h *CalendarHandler) DeleteHoliday(c *fiber.Ctx) error {
	staff, err := staffPrincipal(c)
	if err != nil {
		return err
	}
	if err := h.admin.DeleteHoliday(c.UserContext(), staff, c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

// SLARules GET /calendar/sla-rules.
func (h *CalendarHandler) SLARules(c *fiber.Ctx) error {
	rules, err := h.admin.SLARules(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": slaRuleResponses(rules)})
}

// UpdateSLARules PUT /calendar/sla-rules.
func (h *CalendarHandler) UpdateSLARules(c *fiber.Ctx) error {
	staff, err := staffPrincipal(c)
	if err != nil {
		return err
	}
	var req dto.UpdateSLARulesRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if len(req.Rules) == 0 {
		return apperrors.NewValidationError("at least one rule is required", nil)
	}
	for _, r := range req.Rules {
		priority := domain.TicketPriority(strings.ToUpper(string(r.Priority)))
		if _, err := h.admin.UpdateSLARule(c.UserContext(), staff, priority, r.ResolutionTimeHours); err != nil {
			return err
		}
	}
	rules, err := h.admin.SLARules(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": slaRuleResponses(rules)})
}

func businessHourPayloads(hours []domain.BusinessHour) []dto.BusinessHourPayload {
	out := make([]dto.BusinessHourPayload, 0, len(hours))
	for _, bh := range hours {
		p := dto.BusinessHourPayload{DayOfWeek: int(bh.DayOfWeek), IsWorkingDay: bh.IsWorkingDay}
		if bh.IsWorkingDay {
			p.StartTime = bh.StartTime.String()
			p.EndTime = bh.EndTime.String()
		}
		out = append(out, p)
	}
	return out
}

func holidayResponse(h *domain.Holiday) dto.HolidayResponse {
	return dto.HolidayResponse{
		ID:          h.ID,
		Name:        h.Name,
		Date:        h.Date.Format("2006-01-02"),
		IsRecurring: h.IsRecurring,
		CreatedAt:   h.CreatedAt,
	}
}

func slaRuleResponses(rules []domain.SLARule) []dto.SLARuleResponse {
	out := make([]dto.SLARuleResponse, 0, len(rules))
	for _, r := range rules {
		out = append(out, dto.SLARuleResponse{Priority: r.Priority, ResolutionTimeHours: r.ResolutionTimeHours})
	}
	return out
}
