package core

import (
	"fmt"
	"sync"
	"time"
)

// SupportedTimezone is the only zone day boundaries are computed in.
const SupportedTimezone = "Asia/Shanghai"

// DayKeyLayout formats calendar days ("2024-01-31").
const DayKeyLayout = "2006-01-02"

var (
	supportedLocOnce sync.Once
	supportedLoc     *time.Location
)

// SupportedLocation resolves SupportedTimezone, falling back to a fixed +08:00
// zone when the host has no tz database. The zone observes no DST, so the
// fallback is exact.
func SupportedLocation() *time.Location {
	supportedLocOnce.Do(func() {
		loc, err := time.LoadLocation(SupportedTimezone)
		if err != nil {
			loc = time.FixedZone(SupportedTimezone, 8*60*60)
		}
		supportedLoc = loc
	})
	return supportedLoc
}

// Window is a half-open interval [Start, End).
type Window struct {
	Start time.Time
	End   time.Time
}

func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

func (w Window) String() string {
	return fmt.Sprintf("[%s, %s)", w.Start.Format(time.RFC3339), w.End.Format(time.RFC3339))
}

// ParseDayKey parses a strict YYYY-MM-DD key as midnight in loc.
func ParseDayKey(key string, loc *time.Location) (time.Time, error) {
	if len(key) != len(DayKeyLayout) {
		return time.Time{}, fmt.Errorf("invalid day key %q", key)
	}
	day, err := time.ParseInLocation(DayKeyLayout, key, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid day key %q: %w", key, err)
	}
	return day, nil
}

// DayKey formats t as a calendar day in loc.
func DayKey(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(DayKeyLayout)
}

// StartOfDay returns midnight of t's calendar day in loc.
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
}

// DayWindow returns the window covering the calendar day starting at dayStart.
func DayWindow(dayStart time.Time) Window {
	return Window{Start: dayStart, End: dayStart.AddDate(0, 0, 1)}
}

// DaysInRange lists every calendar day start from start to end inclusive.
func DaysInRange(start, end time.Time) []time.Time {
	if end.Before(start) {
		return nil
	}
	var out []time.Time
	for day := start; !day.After(end); day = day.AddDate(0, 0, 1) {
		out = append(out, day)
	}
	return out
}
