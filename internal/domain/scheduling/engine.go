package scheduling

import (
	"sort"
	"time"
)

// DefaultGranularity is the slot step used when none is configured.
const DefaultGranularity = 30 * time.Minute

// Slot is a bookable start time in canonical 24-hour form.
type Slot struct {
	Time      string `json:"time"`
	Available bool   `json:"available"`
}

// SlotOptions tunes slot generation.
type SlotOptions struct {
	Granularity time.Duration
	// LeadTime hides today's slots that start earlier than now+LeadTime.
	// A slot starting exactly at the cutoff is kept.
	LeadTime time.Duration
}

// GenerateSlots lists the slots of date under hours. date is read as a
// calendar day; now decides whether that day is today and supplies the
// location for the lead-time cutoff. booked holds the times of
// non-cancelled appointments on that day, in either notation.
func GenerateSlots(hours WeeklyBusinessHours, date, now time.Time, opts SlotOptions, booked []string) []Slot {
	day, ok := hours.Day(date)
	if !ok || day.Closed {
		return []Slot{}
	}

	step := int(opts.Granularity / time.Minute)
	if step <= 0 {
		step = int(DefaultGranularity / time.Minute)
	}

	seen := make(map[TimeOfDay]struct{})
	for _, iv := range day.Intervals {
		from, to, err := iv.Span()
		if err != nil {
			continue
		}
		for t := from; t < to; t += TimeOfDay(step) {
			seen[t] = struct{}{}
		}
	}

	times := make([]TimeOfDay, 0, len(seen))
	for t := range seen {
		times = append(times, t)
	}
	sort.Slice(times, func(i, j int) bool { return times[i] < times[j] })

	if isSameDay(date, now) {
		times = dropBeforeCutoff(times, now, now.Add(opts.LeadTime))
	}

	taken := make(map[TimeOfDay]bool, len(booked))
	for _, b := range booked {
		if t, err := ParseTimeOfDay(b); err == nil {
			taken[t] = true
		}
	}

	slots := make([]Slot, 0, len(times))
	for _, t := range times {
		slots = append(slots, Slot{Time: t.String(), Available: !taken[t]})
	}
	return slots
}

func isSameDay(date, now time.Time) bool {
	y1, m1, d1 := date.Date()
	y2, m2, d2 := now.Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}

func dropBeforeCutoff(times []TimeOfDay, now, cutoff time.Time) []TimeOfDay {
	y, m, d := now.Date()
	midnight := time.Date(y, m, d, 0, 0, 0, 0, now.Location())
	kept := times[:0]
	for _, t := range times {
		start := midnight.Add(time.Duration(t) * time.Minute)
		if !start.Before(cutoff) {
			kept = append(kept, t)
		}
	}
	return kept
}
