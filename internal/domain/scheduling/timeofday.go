package scheduling

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidTime is returned for strings that are neither "hh:mm AM|PM"
// nor "HH:mm".
var ErrInvalidTime = errors.New("invalid time of day")

// TimeOfDay is a wall-clock time as minutes since midnight.
type TimeOfDay int

const minutesPerDay = 24 * 60

// ParseTimeOfDay accepts 12-hour ("08:30 AM") and 24-hour ("08:30") forms.
// A space followed by AM or PM selects the 12-hour reading.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	raw := strings.TrimSpace(s)
	clock, meridiem, twelveHour := splitMeridiem(raw)

	hourStr, minStr, ok := strings.Cut(clock, ":")
	if !ok || len(hourStr) == 0 || len(hourStr) > 2 || len(minStr) != 2 || !allDigits(hourStr) || !allDigits(minStr) {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTime, s)
	}
	hour, err := strconv.Atoi(hourStr)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTime, s)
	}
	minute, err := strconv.Atoi(minStr)
	if err != nil || minute < 0 || minute > 59 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTime, s)
	}

	if twelveHour {
		if hour < 1 || hour > 12 {
			return 0, fmt.Errorf("%w: %q", ErrInvalidTime, s)
		}
		switch {
		case meridiem == "AM" && hour == 12:
			hour = 0
		case meridiem == "PM" && hour != 12:
			hour += 12
		}
	} else if hour < 0 || hour > 23 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTime, s)
	}

	return TimeOfDay(hour*60 + minute), nil
}

// allDigits rejects the signs and spaces strconv.Atoi would accept.
func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

func splitMeridiem(s string) (clock, meridiem string, ok bool) {
	idx := strings.LastIndexByte(s, ' ')
	if idx < 0 {
		return s, "", false
	}
	suffix := strings.ToUpper(s[idx+1:])
	if suffix != "AM" && suffix != "PM" {
		return s, "", false
	}
	return strings.TrimSpace(s[:idx]), suffix, true
}

// String renders the canonical 24-hour "HH:mm" form.
func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", int(t)/60, int(t)%60)
}

// NormalizeTime returns the canonical 24-hour form of s, so "09:00 AM" and
// "09:00" compare equal.
func NormalizeTime(s string) (string, error) {
	t, err := ParseTimeOfDay(s)
	if err != nil {
		return "", err
	}
	return t.String(), nil
}
