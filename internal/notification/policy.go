package notification

import (
	"fmt"
	"time"
)

// ClockTime is a wall clock time of day.
type ClockTime struct {
	Hour   int
	Minute int
}

// ParseClock parses "HH:MM".
func ParseClock(s string) (ClockTime, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return ClockTime{}, fmt.Errorf("invalid clock time %q: %w", s, err)
	}
	return ClockTime{Hour: t.Hour(), Minute: t.Minute()}, nil
}

func (c ClockTime) minutes() int {
	return c.Hour*60 + c.Minute
}

func (c ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}

// NightPolicy decides when pushes to night opt-out recipients must wait.
// The window may wrap midnight. Business hours start when the night ends.
type NightPolicy struct {
	Location *time.Location
	Start    ClockTime
	End      ClockTime
}

func DefaultNightPolicy() NightPolicy {
	loc, err := time.LoadLocation("Europe/Stockholm")
	if err != nil {
		loc = time.UTC
	}
	return NightPolicy{
		Location: loc,
		Start:    ClockTime{Hour: 22},
		End:      ClockTime{Hour: 7},
	}
}

func (p NightPolicy) location() *time.Location {
	if p.Location == nil {
		return time.UTC
	}
	return p.Location
}

// IsNight reports whether t falls inside the night window.
func (p NightPolicy) IsNight(t time.Time) bool {
	local := t.In(p.location())
	m := local.Hour()*60 + local.Minute()
	start, end := p.Start.minutes(), p.End.minutes()
	if start == end {
		return false
	}
	if start > end {
		return m >= start || m < end
	}
	return m >= start && m < end
}

// NextBusinessTime returns the first instant after t at which the night window is over.
func (p NightPolicy) NextBusinessTime(t time.Time) time.Time {
	loc := p.location()
	local := t.In(loc)
	candidate := time.Date(local.Year(), local.Month(), local.Day(), p.End.Hour, p.End.Minute, 0, 0, loc)
	if !candidate.After(local) {
		candidate = time.Date(local.Year(), local.Month(), local.Day()+1, p.End.Hour, p.End.Minute, 0, 0, loc)
	}
	return candidate
}
