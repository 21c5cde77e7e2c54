package domain

import (
	"errors"
	"fmt"
	"strconv"
	"time"
)

// TimeOfDay is a wall-clock time within a single calendar day, in minutes
// since midnight. 24:00 (MinutesPerDay) is allowed as an exclusive end.
type TimeOfDay int

const MinutesPerDay TimeOfDay = 24 * 60

var errInvalidTimeOfDay = errors.New("time must be HH:MM between 00:00 and 24:00")

func ParseTimeOfDay(s string) (TimeOfDay, error) {
	if len(s) != 5 || s[2] != ':' {
		return 0, errInvalidTimeOfDay
	}
	for _, i := range []int{0, 1, 3, 4} {
		if s[i] < '0' || s[i] > '9' {
			return 0, errInvalidTimeOfDay
		}
	}
	h, err := strconv.Atoi(s[:2])
	if err != nil {
		return 0, errInvalidTimeOfDay
	}
	m, err := strconv.Atoi(s[3:])
	if err != nil {
		return 0, errInvalidTimeOfDay
	}
	if m > 59 {
		return 0, errInvalidTimeOfDay
	}
	t := TimeOfDay(h*60 + m)
	if t > MinutesPerDay {
		return 0, errInvalidTimeOfDay
	}
	return t, nil
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", int(t)/60, int(t)%60)
}

func (t TimeOfDay) Valid() bool {
	return t >= 0 && t <= MinutesPerDay
}

func (t TimeOfDay) AddMinutes(n int) TimeOfDay {
	return t + TimeOfDay(n)
}

// On returns t as an instant on the given date in loc.
func (t TimeOfDay) On(date time.Time, loc *time.Location) time.Time {
	d := DateOf(date)
	return time.Date(d.Year(), d.Month(), d.Day(), 0, int(t), 0, 0, loc)
}

// DateOf truncates t to its calendar date, expressed as midnight UTC.
func DateOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func ParseDate(s string) (time.Time, error) {
	d, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, errors.New("date must be YYYY-MM-DD")
	}
	return d, nil
}

func FormatDate(t time.Time) string {
	return t.Format(time.DateOnly)
}
