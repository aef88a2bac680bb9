package domain

import "time"

// Holiday marks a calendar date as non-working. Recurring holidays repeat on
// the same month and day every year.
type Holiday struct {
	ID          string
	Name        string
	Date        time.Time
	IsRecurring bool
	CreatedAt   time.Time
}
