package domain

import "time"

// SLARule maps a ticket priority to its resolution budget in working hours.
type SLARule struct {
	Priority            TicketPriority
	ResolutionTimeHours float64
	UpdatedAt           time.Time
}
