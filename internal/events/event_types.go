package events

import (
	"time"

	"github.com/spec-kit/servicedesk/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated         EventType = "ticket_created"
	EventTicketStatusChanged   EventType = "ticket_status_changed"
	EventTicketPriorityChanged EventType = "ticket_priority_changed"
	EventTicketSLABreached     EventType = "ticket_sla_breached"
	EventCalendarUpdated       EventType = "calendar_updated"
)

// Actor encapsulates actor metadata for an event.
type Actor struct {
	Type    domain.SubjectType `json:"type"`
	Email   *string            `json:"email,omitempty"`
	StaffID *string            `json:"staff_id,omitempty"`
}

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	TicketID  string      `json:"ticket_id,omitempty"`
	Actor     Actor       `json:"actor"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	ExternalKey string                `json:"external_key"`
	Priority    domain.TicketPriority `json:"priority"`
	Title       string                `json:"title"`
	DueDate     *time.Time            `json:"due_date,omitempty"`
}

// TicketStatusChangedPayload payload.
type TicketStatusChangedPayload struct {
	OldStatus domain.TicketStatus `json:"old_status"`
	NewStatus domain.TicketStatus `json:"new_status"`
	Comment   string              `json:"comment,omitempty"`
}

// TicketPriorityChangedPayload payload.
type TicketPriorityChangedPayload struct {
	OldPriority domain.TicketPriority `json:"old_priority"`
	NewPriority domain.TicketPriority `json:"new_priority"`
	OldDueDate  *time.Time            `json:"old_due_date,omitempty"`
	NewDueDate  *time.Time            `json:"new_due_date,omitempty"`
}

// TicketSLABreachedPayload payload.
type TicketSLABreachedPayload struct {
	ExternalKey string                `json:"external_key"`
	Priority    domain.TicketPriority `json:"priority"`
	DueDate     time.Time             `json:"due_date"`
	DetectedAt  time.Time             `json:"detected_at"`
}

// CalendarUpdatedPayload names the table that changed.
type CalendarUpdatedPayload struct {
	Section string `json:"section"`
}
