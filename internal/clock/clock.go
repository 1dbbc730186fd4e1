package clock

import (
	"fmt"
	"time"
)

const DateLayout = "2006-01-02"

// Clock supplies the current instant, the zone that defines a local
// calendar day, and timers that fire relative to that notion of now.
type Clock interface {
	Now() time.Time
	Location() *time.Location
	NewTimer(d time.Duration) Timer
}

type Timer interface {
	C() <-chan time.Time
	Stop() bool
}

type System struct {
	Loc *time.Location
}

func NewSystem(loc *time.Location) System {
	if loc == nil {
		loc = time.Local
	}
	return System{Loc: loc}
}

func (s System) Now() time.Time {
	return time.Now().In(s.Location())
}

func (s System) Location() *time.Location {
	if s.Loc == nil {
		return time.Local
	}
	return s.Loc
}

func (s System) NewTimer(d time.Duration) Timer {
	return systemTimer{t: time.NewTimer(d)}
}

type systemTimer struct {
	t *time.Timer
}

func (st systemTimer) C() <-chan time.Time { return st.t.C }
func (st systemTimer) Stop() bool          { return st.t.Stop() }

// DateKey returns the local calendar date of t as YYYY-MM-DD.
func DateKey(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	return t.In(loc).Format(DateLayout)
}

func Today(c Clock) string {
	return DateKey(c.Now(), c.Location())
}

// ParseDateKey validates key and returns local midnight of that date.
func ParseDateKey(key string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	t, err := time.ParseInLocation(DateLayout, key, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q (expected YYYY-MM-DD)", key)
	}
	return t, nil
}

// StartOfDay returns local midnight of the day containing t.
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

// NextMidnight uses calendar arithmetic so DST days of 23 or 25 hours
// still land on 00:00 local.
func NextMidnight(t time.Time, loc *time.Location) time.Time {
	start := StartOfDay(t, loc)
	return time.Date(start.Year(), start.Month(), start.Day()+1, 0, 0, 0, 0, start.Location())
}

// AddDays shifts a date key by n calendar days.
func AddDays(key string, n int, loc *time.Location) (string, error) {
	t, err := ParseDateKey(key, loc)
	if err != nil {
		return "", err
	}
	return time.Date(t.Year(), t.Month(), t.Day()+n, 0, 0, 0, 0, t.Location()).Format(DateLayout), nil
}
