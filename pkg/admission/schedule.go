package admission

import (
	"fmt"
	"strings"
	"time"
)

const (
	scheduleDateLayout        = "2006-01-02"
	scheduleClockLayout       = "15:04:05"
	scheduleShortClockLayout  = "15:04"
	scheduleDefaultTimezone   = "UTC"
	scheduleDisplayDateLayout = "1/2/2006"
)

// Schedule is a local wall-clock start: a date, a time of day, and the
// timezone label they are expressed in.
type Schedule struct {
	Date     string
	Clock    string
	Timezone string
}

// StartsAt resolves the wall-clock pair in the schedule's timezone.
// An empty timezone is treated as UTC.
func (schedule Schedule) StartsAt() (time.Time, error) {
	location, err := schedule.location()
	if err != nil {
		return time.Time{}, err
	}
	date, err := time.ParseInLocation(scheduleDateLayout, strings.TrimSpace(schedule.Date), location)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: date %q", ErrInvalidSchedule, schedule.Date)
	}
	clock, err := parseClock(schedule.Clock)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(date.Year(), date.Month(), date.Day(), clock.Hour(), clock.Minute(), clock.Second(), 0, location), nil
}

// HasStartedBy reports whether the lesson start is strictly before now.
func (schedule Schedule) HasStartedBy(now time.Time) (bool, error) {
	startsAt, err := schedule.StartsAt()
	if err != nil {
		return false, err
	}
	return startsAt.Before(now), nil
}

// DisplayDate renders the date the way checkout descriptions show it (M/D/YYYY).
func (schedule Schedule) DisplayDate() string {
	date, err := time.Parse(scheduleDateLayout, strings.TrimSpace(schedule.Date))
	if err != nil {
		return schedule.Date
	}
	return date.Format(scheduleDisplayDateLayout)
}

func (schedule Schedule) location() (*time.Location, error) {
	name := strings.TrimSpace(schedule.Timezone)
	if name == "" {
		name = scheduleDefaultTimezone
	}
	location, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("%w: timezone %q", ErrInvalidSchedule, schedule.Timezone)
	}
	return location, nil
}

func parseClock(raw string) (time.Time, error) {
	trimmed := strings.TrimSpace(raw)
	for _, layout := range []string{scheduleClockLayout, scheduleShortClockLayout} {
		clock, err := time.Parse(layout, trimmed)
		if err == nil {
			return clock, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: time %q", ErrInvalidSchedule, raw)
}
