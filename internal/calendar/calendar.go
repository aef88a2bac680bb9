// Package calendar computes SLA due dates against the organization's business
// hours and holidays.
//
// A Calendar is built from one snapshot of the business-hour and holiday
// tables and is immutable afterwards, so a single value can be shared by
// concurrent callers. All arithmetic happens in the Calendar's location;
// callers convert results to UTC before storing them.
package calendar

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/spec-kit/servicedesk/internal/domain"
)

// DefaultMaxLookaheadDays bounds how many consecutive non-working days the
// calendar will step over before giving up.
const DefaultMaxLookaheadDays = 366

var (
	// ErrInvalidHours is returned for negative, NaN or infinite durations.
	ErrInvalidHours = errors.New("calendar: hours must be a finite, non-negative number")
	// ErrInvalidBusinessHours is returned for malformed business-hour rows.
	ErrInvalidBusinessHours = errors.New("calendar: invalid business hours")
	// ErrNoWorkingDays is returned when no weekday is marked as working.
	ErrNoWorkingDays = errors.New("calendar: no working days configured")
	// ErrLookaheadExceeded is returned when no working time is found within
	// the lookahead bound.
	ErrLookaheadExceeded = errors.New("calendar: no working time within lookahead bound")
)

// Option customizes a Calendar.
type Option func(*Calendar)

// WithMaxLookaheadDays overrides DefaultMaxLookaheadDays.
func WithMaxLookaheadDays(days int) Option {
	return func(c *Calendar) {
		if days > 0 {
			c.maxLookahead = days
		}
	}
}

type window struct {
	start domain.TimeOfDay
	end   domain.TimeOfDay
}

type monthDay struct {
	month time.Month
	day   int
}

type civilDate struct {
	year  int
	month time.Month
	day   int
}

// Calendar answers working-time questions for one location.
type Calendar struct {
	loc          *time.Location
	windows      [7]*window
	exact        map[civilDate]struct{}
	recurring    map[monthDay]struct{}
	maxLookahead int
}

// New validates the snapshot and builds a Calendar. Weekdays with no row are
// treated as non-working.
func New(loc *time.Location, hours []domain.BusinessHour, holidays []domain.Holiday, opts ...Option) (*Calendar, error) {
	if loc == nil {
		return nil, errors.New("calendar: location is required")
	}
	c := &Calendar{
		loc:          loc,
		exact:        make(map[civilDate]struct{}),
		recurring:    make(map[monthDay]struct{}),
		maxLookahead: DefaultMaxLookaheadDays,
	}
	for _, opt := range opts {
		opt(c)
	}

	var seen [7]bool
	working := 0
	for _, bh := range hours {
		day := int(bh.DayOfWeek)
		if day < 0 || day > 6 {
			return nil, fmt.Errorf("%w: day of week %d out of range", ErrInvalidBusinessHours, day)
		}
		if seen[day] {
			return nil, fmt.Errorf("%w: duplicate row for %s", ErrInvalidBusinessHours, bh.DayOfWeek)
		}
		seen[day] = true
		if !bh.IsWorkingDay {
			continue
		}
		if bh.StartTime < 0 || bh.EndTime > domain.TimeOfDay(24*time.Hour) || bh.StartTime >= bh.EndTime {
			return nil, fmt.Errorf("%w: %s window %s-%s", ErrInvalidBusinessHours, bh.DayOfWeek, bh.StartTime, bh.EndTime)
		}
		c.windows[day] = &window{start: bh.StartTime, end: bh.EndTime}
		working++
	}
	if working == 0 {
		return nil, ErrNoWorkingDays
	}

	for _, h := range holidays {
		// holiday dates are civil dates; read their fields without zone conversion
		y, m, d := h.Date.Date()
		if h.IsRecurring {
			c.recurring[monthDay{month: m, day: d}] = struct{}{}
			continue
		}
		c.exact[civilDate{year: y, month: m, day: d}] = struct{}{}
	}
	return c, nil
}

// Location returns the zone the calendar evaluates instants in.
func (c *Calendar) Location() *time.Location {
	return c.loc
}

// IsHoliday reports whether the local date of t is a holiday.
func (c *Calendar) IsHoliday(t time.Time) bool {
	y, m, d := t.In(c.loc).Date()
	if _, ok := c.exact[civilDate{year: y, month: m, day: d}]; ok {
		return true
	}
	_, ok := c.recurring[monthDay{month: m, day: d}]
	return ok
}

// IsWorkingMoment reports whether t falls inside a working window.
func (c *Calendar) IsWorkingMoment(t time.Time) bool {
	start, end, ok := c.windowFor(t)
	if !ok {
		return false
	}
	return !t.Before(start) && t.Before(end)
}

// AddWorkingHours returns the instant reached after accruing hours of
// working time from start. Time outside working windows does not count, so
// a start outside working hours is first moved to the next opening. The
// result is expressed in the calendar's location.
func (c *Calendar) AddWorkingHours(start time.Time, hours float64) (time.Time, error) {
	remaining, err := hoursToDuration(hours)
	if err != nil {
		return time.Time{}, err
	}
	return c.addWorking(start, remaining)
}

// AddWorkingDuration is AddWorkingHours for callers that already hold a
// time.Duration.
func (c *Calendar) AddWorkingDuration(start time.Time, d time.Duration) (time.Time, error) {
	if d < 0 {
		return time.Time{}, ErrInvalidHours
	}
	return c.addWorking(start, d)
}

// NextOpening returns t itself when it is a working moment, otherwise the
// start of the next working window.
func (c *Calendar) NextOpening(t time.Time) (time.Time, error) {
	return c.addWorking(t, 0)
}

func (c *Calendar) addWorking(start time.Time, remaining time.Duration) (time.Time, error) {
	cursor := start.In(c.loc)
	idle := 0
	for {
		windowStart, windowEnd, ok := c.windowFor(cursor)
		if ok && cursor.Before(windowEnd) {
			idle = 0
			if cursor.Before(windowStart) {
				cursor = windowStart
			}
			available := windowEnd.Sub(cursor)
			if remaining <= available {
				return cursor.Add(remaining), nil
			}
			remaining -= available
		} else {
			idle++
			if idle > c.maxLookahead {
				return time.Time{}, fmt.Errorf("%w: %d consecutive non-working days after %s",
					ErrLookaheadExceeded, c.maxLookahead, start.In(c.loc).Format(time.RFC3339))
			}
		}
		cursor = startOfNextDay(cursor, c.loc)
	}
}

// WorkingDuration returns the working time elapsed between from and to. It is
// zero when to is not after from.
func (c *Calendar) WorkingDuration(from, to time.Time) time.Duration {
	if !to.After(from) {
		return 0
	}
	var total time.Duration
	cursor := from.In(c.loc)
	end := to.In(c.loc)
	for cursor.Before(end) {
		windowStart, windowEnd, ok := c.windowFor(cursor)
		if ok {
			segStart := maxTime(cursor, windowStart)
			segEnd := minTime(end, windowEnd)
			if segEnd.After(segStart) {
				total += segEnd.Sub(segStart)
			}
		}
		cursor = startOfNextDay(cursor, c.loc)
	}
	return total
}

// windowFor returns the working window on the local date of t. ok is false
// when the date is a holiday, a non-working weekday, or has no row.
func (c *Calendar) windowFor(t time.Time) (start, end time.Time, ok bool) {
	local := t.In(c.loc)
	w := c.windows[local.Weekday()]
	if w == nil || c.IsHoliday(local) {
		return time.Time{}, time.Time{}, false
	}
	return w.start.On(local, c.loc), w.end.On(local, c.loc), true
}

func startOfNextDay(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d+1, 0, 0, 0, 0, loc)
}

func hoursToDuration(hours float64) (time.Duration, error) {
	if math.IsNaN(hours) || math.IsInf(hours, 0) || hours < 0 {
		return 0, ErrInvalidHours
	}
	if hours > float64(math.MaxInt64)/float64(time.Hour) {
		return 0, ErrInvalidHours
	}
	return time.Duration(math.Round(hours * float64(time.Hour))), nil
}

func maxTime(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}

func minTime(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}
