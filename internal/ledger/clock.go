package ledger

import (
	"fmt"
	"time"
)

// Clock resolves "now" and calendar day keys in the household time zone.
type Clock struct {
	loc *time.Location
	now func() time.Time
}

func NewClock(loc *time.Location) Clock {
	if loc == nil {
		loc = time.Local
	}
	return Clock{loc: loc, now: time.Now}
}

// WithNow returns a copy of c that reads the time from now.
func (c Clock) WithNow(now func() time.Time) Clock {
	c.now = now
	return c
}

func (c Clock) Location() *time.Location {
	if c.loc == nil {
		return time.Local
	}
	return c.loc
}

func (c Clock) Now() time.Time {
	if c.now == nil {
		return time.Now().In(c.Location())
	}
	return c.now().In(c.Location())
}

// DayKey formats t as YYYY-MM-DD in the clock's location.
func (c Clock) DayKey(t time.Time) string {
	return t.In(c.Location()).Format(time.DateOnly)
}

func (c Clock) Today() string {
	return c.DayKey(c.Now())
}

// StartOfDay parses a YYYY-MM-DD key as midnight in the clock's location.
func (c Clock) StartOfDay(day string) (time.Time, error) {
	t, err := time.ParseInLocation(time.DateOnly, day, c.Location())
	if err != nil {
		return time.Time{}, fmt.Errorf("parse day %q: %w", day, err)
	}
	return t, nil
}
