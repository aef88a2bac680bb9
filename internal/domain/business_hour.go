package domain

import (
	"fmt"
	"time"
)

// TimeOfDay is a wall-clock offset from midnight with no date component.
type TimeOfDay time.Duration

// NewTimeOfDay builds a TimeOfDay from clock fields.
func NewTimeOfDay(hour, minute, second int) TimeOfDay {
	return TimeOfDay(time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute + time.Duration(second)*time.Second)
}

// ParseTimeOfDay accepts "HH:MM" or "HH:MM:SS".
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	for _, layout := range []string{"15:04", "15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return NewTimeOfDay(t.Hour(), t.Minute(), t.Second()), nil
		}
	}
	return 0, fmt.Errorf("invalid time of day %q", s)
}

// Clock splits the value into hour, minute and second.
func (t TimeOfDay) Clock() (hour, minute, second int) {
	d := time.Duration(t)
	hour = int(d / time.Hour)
	minute = int(d % time.Hour / time.Minute)
	second = int(d % time.Minute / time.Second)
	return hour, minute, second
}

// On anchors the time of day to the calendar date of day in loc.
func (t TimeOfDay) On(day time.Time, loc *time.Location) time.Time {
	y, m, d := day.In(loc).Date()
	h, mi, s := t.Clock()
	return time.Date(y, m, d, h, mi, s, 0, loc)
}

func (t TimeOfDay) String() string {
	h, m, s := t.Clock()
	if s != 0 {
		return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", h, m)
}

// BusinessHour is the working window for one weekday.
type BusinessHour struct {
	DayOfWeek    time.Weekday
	IsWorkingDay bool
	StartTime    TimeOfDay
	EndTime      TimeOfDay
	UpdatedAt    time.Time
}
