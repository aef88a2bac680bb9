package domain

// CalendarSnapshot is one consistent read of the business-hour and holiday
// tables.
type CalendarSnapshot struct {
	BusinessHours []BusinessHour `json:"business_hours"`
	Holidays      []Holiday      `json:"holidays"`
}
