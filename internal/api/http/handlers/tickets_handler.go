package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/servicedesk/internal/api/dto"
	"github.com/spec-kit/servicedesk/internal/domain"
	"github.com/spec-kit/servicedesk/internal/service"
	apperrors "github.com/spec-kit/servicedesk/pkg/util/errorutil"
)

// TicketWorkflow is the ticket service surface used by HTTP handlers.
type TicketWorkflow interface {
	CreateTicket(ctx context.Context, input service.TicketCreateInput) (*domain.Ticket, error)
	GetByExternalKey(ctx context.Context, key string) (*domain.Ticket, error)
	GetTicket(ctx context.Context, id string) (*domain.Ticket, error)
	ListTickets(ctx context.Context, filter service.TicketStaffFilter) ([]domain.Ticket, error)
	UpdatePriority(ctx context.Context, staff *domain.StaffMember, ticketID string, priority domain.TicketPriority) (*domain.Ticket, error)
	UpdateStatus(ctx context.Context, staff *domain.StaffMember, ticketID string, status domain.TicketStatus, comment string) (*domain.Ticket, error)
}

// TicketsHandler manages public ticket endpoints.
type TicketsHandler struct {
	service TicketWorkflow
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(ticketService TicketWorkflow) *TicketsHandler {
	return &TicketsHandler{service: ticketService}
}

// CreateTicket POST /tickets.
func (h *TicketsHandler) CreateTicket(c *fiber.Ctx) error {
	var req dto.CreateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.RequesterEmail == "" || req.Title == "" || req.Description == "" {
		return apperrors.NewValidationError("requester_email, title, description required", nil)
	}

	ticket, err := h.service.CreateTicket(c.UserContext(), service.TicketCreateInput{
		RequesterEmail: req.RequesterEmail,
		Title:          req.Title,
		Description:    req.Description,
		Priority:       domain.TicketPriority(strings.ToUpper(strings.TrimSpace(string(req.Priority)))),
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": ticketDetail(ticket)})
}

// GetTicket GET /tickets/:key.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	ticket, err := h.service.GetByExternalKey(c.UserContext(), c.Params("key"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketDetail(ticket)})
}
