package schedule

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"
)

// Weekdays are numbered ISO-style: 1 = Monday through 7 = Sunday.
const (
	minISODay = 1
	maxISODay = 7
)

// ISODay converts a time.Weekday to its 1=Monday..7=Sunday number.
func ISODay(d time.Weekday) int {
	if d == time.Sunday {
		return maxISODay
	}
	return int(d)
}

// ParseDays parses a comma-separated list of ISO weekday numbers such as
// "1,2,3,4,5". Whitespace around entries is ignored and duplicates collapse.
func ParseDays(s string) ([]int, error) {
	var days []int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("invalid weekday %q: expected a number 1-7", part)
		}
		if n < minISODay || n > maxISODay {
			return nil, fmt.Errorf("invalid weekday %d: must be 1 (Monday) to 7 (Sunday)", n)
		}
		if !slices.Contains(days, n) {
			days = append(days, n)
		}
	}
	slices.Sort(days)
	return days, nil
}

// TimeOfDay is a wall-clock time with minute precision.
type TimeOfDay struct {
	Hour   int
	Minute int
}

// ParseTimeOfDay parses "HH:MM" (24-hour clock).
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return TimeOfDay{}, fmt.Errorf("invalid time of day %q: expected HH:MM", s)
	}
	return TimeOfDay{Hour: t.Hour(), Minute: t.Minute()}, nil
}

// String formats the time as HH:MM.
func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// sinceMidnight returns the offset of t from the start of a day.
func (t TimeOfDay) sinceMidnight() time.Duration {
	return time.Duration(t.Hour)*time.Hour + time.Duration(t.Minute)*time.Minute
}

// Before reports whether t is earlier in the day than u.
func (t TimeOfDay) Before(u TimeOfDay) bool {
	return t.sinceMidnight() < u.sinceMidnight()
}

// On returns t on the calendar date of day, in day's location.
func (t TimeOfDay) On(day time.Time) time.Time {
	y, m, d := day.Date()
	return time.Date(y, m, d, t.Hour, t.Minute, 0, 0, day.Location())
}

// Window is a recurring operating window: a set of weekdays and a
// time-of-day range on each of them. Both ends of the range are inclusive.
type Window struct {
	Days  []int // ISO weekday numbers, 1 = Monday
	Start TimeOfDay
	End   TimeOfDay
}

// Contains reports whether now falls inside the window. A window whose
// Start is not before End is empty.
func (w Window) Contains(now time.Time) bool {
	if w.Start.sinceMidnight() >= w.End.sinceMidnight() {
		return false
	}
	if !slices.Contains(w.Days, ISODay(now.Weekday())) {
		return false
	}
	return !now.Before(w.Start.On(now)) && !now.After(w.End.On(now))
}

// Deadline returns when a deferred action scheduled at now should fire.
// Inside the window the action waits idle, but never past the window's end
// on the same day; outside the window it fires immediately.
func (w Window) Deadline(now time.Time, idle time.Duration) time.Time {
	if !w.Contains(now) || idle <= 0 {
		return now
	}
	deadline := now.Add(idle)
	if end := w.End.On(now); end.Before(deadline) {
		deadline = end
	}
	return deadline
}

// String renders the window as "days 1,2,3 09:00-18:00".
func (w Window) String() string {
	days := make([]string, len(w.Days))
	for i, d := range w.Days {
		days[i] = strconv.Itoa(d)
	}
	return fmt.Sprintf("days %s %s-%s", strings.Join(days, ","), w.Start, w.End)
}
