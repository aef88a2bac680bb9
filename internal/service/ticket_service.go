package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/servicedesk/internal/domain"
	"github.com/spec-kit/servicedesk/internal/events"
	"github.com/spec-kit/servicedesk/internal/repository"
	apperrors "github.com/spec-kit/servicedesk/pkg/util/errorutil"
)

// DueDateCalculator assigns SLA due dates.
type DueDateCalculator interface {
	DueDate(ctx context.Context, priority domain.TicketPriority, createdAt time.Time) (time.Time, error)
}

// TicketService coordinates ticket workflows.
type TicketService struct {
	tickets    repository.TicketRepository
	sla        DueDateCalculator
	dispatcher events.Dispatcher
	logger     *zap.Logger
	now        func() time.Time
}

// TicketDependencies bundles collaborators for ticket service.
type TicketDependencies struct {
	TicketRepo repository.TicketRepository
	SLA        DueDateCalculator
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
	Clock      func() time.Time
}

// TicketCreateInput describes ticket creation payload.
type TicketCreateInput struct {
	RequesterEmail string
	Title          string
	Description    string
	Priority       domain.TicketPriority
}

// TicketStaffFilter describes staff listing filters.
type TicketStaffFilter struct {
	RequesterEmail *string
	Statuses       []domain.TicketStatus
	Priorities     []domain.TicketPriority
	SearchTerm     *string
	CreatedFrom    *time.Time
	CreatedTo      *time.Time
	OverdueOnly    bool
	Limit          int
	Offset         int
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TicketService{
		tickets:    deps.TicketRepo,
		sla:        deps.SLA,
		dispatcher: deps.Dispatcher,
		logger:     logger,
		now:        clock,
	}
}

// CreateTicket creates a ticket and assigns its SLA due date. A calendar or
// SLA configuration problem fails the creation.
func (s *TicketService) CreateTicket(ctx context.Context, input TicketCreateInput) (*domain.Ticket, error) {
	email := strings.TrimSpace(input.RequesterEmail)
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, apperrors.NewValidationError("requester_email must be a valid address", nil)
	}
	title := strings.TrimSpace(input.Title)
	description := strings.TrimSpace(input.Description)
	if title == "" || description == "" {
		return nil, apperrors.NewValidationError("title, description required", nil)
	}
	priority := input.Priority
	if priority == "" {
		priority = domain.TicketPriorityMedium
	}
	if !priority.Valid() {
		return nil, apperrors.NewValidationError(fmt.Sprintf("unknown priority %q", priority), nil)
	}

	createdAt := s.now().UTC().Truncate(time.Microsecond)
	due, err := s.sla.DueDate(ctx, priority, createdAt)
	if err != nil {
		s.logger.Error("sla assignment failed", zap.String("priority", string(priority)), zap.Error(err))
		return nil, err
	}

	ticket := &domain.Ticket{
		ExternalKey:    generateTicketKey(),
		RequesterEmail: email,
		Title:          title,
		Description:    description,
		Status:         domain.TicketStatusOpen,
		Priority:       priority,
		CreatedAt:      createdAt,
		DueDate:        &due,
	}
	if err := s.tickets.Create(ctx, ticket); err != nil {
		return nil, err
	}
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketCreated,
		TicketID: ticket.ID,
		Actor:    requesterActor(email),
		Payload: events.TicketCreatedPayload{
			ExternalKey: ticket.ExternalKey,
			Priority:    ticket.Priority,
			Title:       ticket.Title,
			DueDate:     ticket.DueDate,
		},
	})
	return ticket, nil
}

// GetByExternalKey fetches a ticket by its public key.
func (s *TicketService) GetByExternalKey(ctx context.Context, key string) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByExternalKey(ctx, strings.ToUpper(strings.TrimSpace(key)))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.NewNotFound("ticket", map[string]any{"key": key})
	}
	return ticket, err
}

// GetTicket fetches a ticket by ID.
func (s *TicketService) GetTicket(ctx context.Context, id string) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, id)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.NewNotFound("ticket", map[string]any{"id": id})
	}
	return ticket, err
}

// ListTickets returns tickets ordered by due date.
func (s *TicketService) ListTickets(ctx context.Context, filter TicketStaffFilter) ([]domain.Ticket, error) {
	repoFilter := repository.TicketFilter{
		RequesterEmail: filter.RequesterEmail,
		Statuses:       filter.Statuses,
		Priorities:     filter.Priorities,
		SearchTerm:     filter.SearchTerm,
		CreatedFrom:    filter.CreatedFrom,
		CreatedTo:      filter.CreatedTo,
		Limit:          filter.Limit,
		Offset:         filter.Offset,
	}
	if filter.OverdueOnly {
		now := s.now().UTC()
		repoFilter.DueBefore = &now
		if len(repoFilter.Statuses) == 0 {
			repoFilter.Statuses = []domain.TicketStatus{
				domain.TicketStatusOpen,
				domain.TicketStatusInProgress,
				domain.TicketStatusPendingUser,
			}
		}
	}
	return s.tickets.ListWithFilter(ctx, repoFilter)
}

// UpdatePriority changes priority and recomputes the due date from the
// ticket's original creation time.
func (s *TicketService) UpdatePriority(ctx context.Context, staff *domain.StaffMember, ticketID string, newPriority domain.TicketPriority) (*domain.Ticket, error) {
	if staff == nil {
		return nil, apperrors.NewUnauthorized("staff required")
	}
	if !newPriority.Valid() {
		return nil, apperrors.NewValidationError(fmt.Sprintf("unknown priority %q", newPriority), nil)
	}
	ticket, err := s.GetTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if ticket.Priority == newPriority {
		return ticket, nil
	}
	if ticket.Status.IsTerminal() {
		return nil, apperrors.NewConflict("ticket already closed", map[string]any{"status": ticket.Status})
	}

	due, err := s.sla.DueDate(ctx, newPriority, ticket.CreatedAt)
	if err != nil {
		return nil, err
	}
	oldPriority, oldDue := ticket.Priority, ticket.DueDate
	ticket.Priority = newPriority
	ticket.DueDate = &due
	ticket.SLABreached = s.now().After(due)

	if err := s.tickets.Update(ctx, ticket); err != nil {
		return nil, err
	}
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketPriorityChanged,
		TicketID: ticket.ID,
		Actor:    staffActor(staff.ID),
		Payload: events.TicketPriorityChangedPayload{
			OldPriority: oldPriority,
			NewPriority: newPriority,
			OldDueDate:  oldDue,
			NewDueDate:  ticket.DueDate,
		},
	})
	return ticket, nil
}

// UpdateStatus moves a ticket through its lifecycle. Terminal statuses stamp
// closed_at; reopening clears it.
func (s *TicketService) UpdateStatus(ctx context.Context, staff *domain.StaffMember, ticketID string, newStatus domain.TicketStatus, comment string) (*domain.Ticket, error) {
	if staff == nil {
		return nil, apperrors.NewUnauthorized("staff required")
	}
	if !newStatus.Valid() {
		return nil, apperrors.NewValidationError(fmt.Sprintf("unknown status %q", newStatus), nil)
	}
	ticket, err := s.GetTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if ticket.Status == newStatus {
		return ticket, nil
	}

	oldStatus := ticket.Status
	ticket.Status = newStatus
	switch {
	case newStatus.IsTerminal() && ticket.ClosedAt == nil:
		closed := s.now().UTC()
		ticket.ClosedAt = &closed
	case !newStatus.IsTerminal():
		ticket.ClosedAt = nil
	}

	if err := s.tickets.Update(ctx, ticket); err != nil {
		return nil, err
	}
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketStatusChanged,
		TicketID: ticket.ID,
		Actor:    staffActor(staff.ID),
		Payload: events.TicketStatusChangedPayload{
			OldStatus: oldStatus,
			NewStatus: newStatus,
			Comment:   strings.TrimSpace(comment),
		},
	})
	return ticket, nil
}

// MarkBreachedTickets flags open tickets past their due date and publishes
// one breach event per ticket.
func (s *TicketService) MarkBreachedTickets(ctx context.Context, batchSize int) (int, error) {
	now := s.now().UTC()
	breached, err := s.tickets.MarkBreached(ctx, now, batchSize)
	if err != nil {
		return 0, err
	}
	for i := range breached {
		ticket := &breached[i]
		if ticket.DueDate == nil {
			continue
		}
		s.publishEvent(ctx, events.Event{
			Type:     events.EventTicketSLABreached,
			TicketID: ticket.ID,
			Actor:    events.Actor{Type: domain.SubjectTypeSystem},
			Payload: events.TicketSLABreachedPayload{
				ExternalKey: ticket.ExternalKey,
				Priority:    ticket.Priority,
				DueDate:     *ticket.DueDate,
				DetectedAt:  now,
			},
		})
	}
	return len(breached), nil
}

func generateTicketKey() string {
	return "TCK-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}

func (s *TicketService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = s.now()
	}
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("event handler failed", zap.String("event_type", string(event.Type)), zap.Error(err))
	}
}

func requesterActor(email string) events.Actor {
	return events.Actor{
		Type:  domain.SubjectTypeUser,
		Email: &email,
	}
}

func staffActor(staffID string) events.Actor {
	return events.Actor{
		Type:    domain.SubjectTypeStaff,
		StaffID: &staffID,
	}
}
