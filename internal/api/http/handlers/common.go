package handlers

import (
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/servicedesk/internal/api/dto"
	"github.com/spec-kit/servicedesk/internal/auth"
	"github.com/spec-kit/servicedesk/internal/domain"
	apperrors "github.com/spec-kit/servicedesk/pkg/util/errorutil"
)

const localLayout = "2006-01-02T15:04:05"

func staffPrincipal(c *fiber.Ctx) (*domain.StaffMember, error) {
	staff, ok := auth.StaffFromContext(c)
	if !ok {
		return nil, apperrors.NewUnauthorized("staff required")
	}
	return staff, nil
}

// parseInstant reads an RFC3339 timestamp. Values without an offset are
// read in loc. An empty value yields fallback.
func parseInstant(name, val string, loc *time.Location, fallback time.Time) (time.Time, error) {
	val = strings.TrimSpace(val)
	if val == "" {
		return fallback, nil
	}
	if t, err := time.Parse(time.RFC3339, val); err == nil {
		return t, nil
	}
	if t, err := time.ParseInLocation(localLayout, val, loc); err == nil {
		return t, nil
	}
	if t, err := time.ParseInLocation("2006-01-02", val, loc); err == nil {
		return t, nil
	}
	return time.Time{}, apperrors.NewValidationError(name+" must be an RFC3339 timestamp", map[string]any{name: val})
}

func parseTime(val string) *time.Time {
	if val == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, val)
	if err != nil {
		return nil
	}
	return &t
}

func parseInt(val string, def int) int {
	if val == "" {
		return def
	}
	parsed, err := strconv.Atoi(val)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}

func splitList(val string) []string {
	if val == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, strings.ToUpper(part))
		}
	}
	return out
}

func ticketSummary(ticket *domain.Ticket) dto.TicketSummary {
	return dto.TicketSummary{
		ID:          ticket.ID,
		ExternalKey: ticket.ExternalKey,
		Title:       ticket.Title,
		Status:      ticket.Status,
		Priority:    ticket.Priority,
		DueDate:     ticket.DueDate,
		SLABreached: ticket.SLABreached,
		CreatedAt:   ticket.CreatedAt,
		UpdatedAt:   ticket.UpdatedAt,
	}
}

func ticketDetail(ticket *domain.Ticket) dto.TicketDetailResponse {
	return dto.TicketDetailResponse{
		ID:             ticket.ID,
		ExternalKey:    ticket.ExternalKey,
		RequesterEmail: ticket.RequesterEmail,
		Title:          ticket.Title,
		Description:    ticket.Description,
		Status:         ticket.Status,
		Priority:       ticket.Priority,
		DueDate:        ticket.DueDate,
		SLABreached:    ticket.SLABreached,
		CreatedAt:      ticket.CreatedAt,
		UpdatedAt:      ticket.UpdatedAt,
		ClosedAt:       ticket.ClosedAt,
	}
}

func staffResponse(staff *domain.StaffMember) dto.StaffResponse {
	return dto.StaffResponse{
		ID:     staff.ID,
		Name:   staff.Name,
		Email:  staff.Email,
		Role:   staff.Role,
		Active: staff.Active,
	}
}
