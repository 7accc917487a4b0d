package scheduling

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Weekdays lists the only keys allowed in WeeklyBusinessHours.
var Weekdays = []string{
	"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday",
}

var weekdaySet = func() map[string]bool {
	m := make(map[string]bool, len(Weekdays))
	for _, d := range Weekdays {
		m[d] = true
	}
	return m
}()

// IsWeekday reports whether name is a full English weekday name.
func IsWeekday(name string) bool {
	return weekdaySet[name]
}

// Interval is a half-open opening window [From, To) in either 12h or 24h
// notation.
type Interval struct {
	From string `json:"from" validate:"required,timeofday"`
	To   string `json:"to" validate:"required,timeofday"`
}

// DaySchedule is one weekday's opening hours. Intervals are ignored when
// Closed is set.
type DaySchedule struct {
	DisplayName string     `json:"displayName"`
	Closed      bool       `json:"closed"`
	Intervals   []Interval `json:"intervals" validate:"dive"`
}

// WeeklyBusinessHours maps a weekday name to its schedule. A missing day is
// closed.
type WeeklyBusinessHours map[string]DaySchedule

// Day returns the schedule for the weekday of date.
func (h WeeklyBusinessHours) Day(date time.Time) (DaySchedule, bool) {
	day, ok := h[date.Weekday().String()]
	return day, ok
}

// DefaultBusinessHours is 09:00-17:00 every day. Callers substitute it when
// a dentist has not configured hours.
func DefaultBusinessHours() WeeklyBusinessHours {
	hours := make(WeeklyBusinessHours, len(Weekdays))
	for _, d := range Weekdays {
		hours[d] = DaySchedule{
			DisplayName: d,
			Intervals:   []Interval{{From: "09:00", To: "17:00"}},
		}
	}
	return hours
}

// Span parses both ends of the interval.
func (iv Interval) Span() (from, to TimeOfDay, err error) {
	if from, err = ParseTimeOfDay(iv.From); err != nil {
		return 0, 0, err
	}
	if to, err = ParseTimeOfDay(iv.To); err != nil {
		return 0, 0, err
	}
	if from >= to {
		return 0, 0, fmt.Errorf("%w: %s must be before %s", ErrInvalidTime, iv.From, iv.To)
	}
	return from, to, nil
}

// DentistDirectory is the part of the dentist directory scheduling needs.
type DentistDirectory interface {
	// GetBusinessHours returns the stored hours and whether any were
	// configured. Unknown dentists yield a not_found error.
	GetBusinessHours(ctx context.Context, dentistID uuid.UUID) (WeeklyBusinessHours, bool, error)
	TouchLastActivity(ctx context.Context, dentistID uuid.UUID) error
	IsDentistOwner(ctx context.Context, userID, dentistID uuid.UUID) (bool, error)
}
