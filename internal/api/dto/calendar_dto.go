package dto

import (
	"time"

	"github.com/spec-kit/servicedesk/internal/domain"
)

// BusinessHourPayload is one weekday row. Times are "HH:MM" in the
// organization timezone.
type BusinessHourPayload struct {
	DayOfWeek    int    `json:"day_of_week"`
	IsWorkingDay bool   `json:"is_working_day"`
	StartTime    string `json:"start_time,omitempty"`
	EndTime      string `json:"end_time,omitempty"`
}

// UpdateBusinessHoursRequest payload.
type UpdateBusinessHoursRequest struct {
	Days []BusinessHourPayload `json:"days"`
}

// CreateHolidayRequest payload.
type CreateHolidayRequest struct {
	Name        string `json:"name"`
	Date        string `json:"date"`
	IsRecurring bool   `json:"is_recurring"`
}

// HolidayResponse describes a stored holiday.
type HolidayResponse struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Date        string    `json:"date"`
	IsRecurring bool      `json:"is_recurring"`
	CreatedAt   time.Time `json:"created_at"`
}

// SLARuleResponse describes the budget for a priority.
type SLARuleResponse struct {
	Priority            domain.TicketPriority `json:"priority"`
	ResolutionTimeHours float64               `json:"resolution_time_hours"`
}

// UpdateSLARulesRequest payload.
type UpdateSLARulesRequest struct {
	Rules []SLARuleResponse `json:"rules"`
}

// WorkingMomentResponse answers whether an instant is inside business hours.
type WorkingMomentResponse struct {
	At          time.Time  `json:"at"`
	Timezone    string     `json:"timezone"`
	Working     bool       `json:"working"`
	NextOpening *time.Time `json:"next_opening,omitempty"`
}

// DueDateResponse previews an SLA due date.
type DueDateResponse struct {
	Start    time.Time             `json:"start"`
	Hours    float64               `json:"hours"`
	Priority domain.TicketPriority `json:"priority,omitempty"`
	DueDate  time.Time             `json:"due_date"`
	Timezone string                `json:"timezone"`
}
