package period

import (
	"fmt"
	"time"
)

// Level is a rollup granularity. Each level above Hour is computed from the
// level immediately below it, never from raw rows.
type Level string

const (
	Hour    Level = "hour"
	Day     Level = "day"
	Week    Level = "week"
	Month   Level = "month"
	Quarter Level = "quarter"
	Year    Level = "year"
)

// Ladder lists all levels in strict dependency order, lowest first.
// Within one run a level is never computed before the one below it.
var Ladder = []Level{Hour, Day, Week, Month, Quarter, Year}

// ParseLevel validates a level name from config or CLI flags.
func ParseLevel(s string) (Level, error) {
	switch Level(s) {
	case Hour, Day, Week, Month, Quarter, Year:
		return Level(s), nil
	}
	return "", fmt.Errorf("unknown rollup level %q (expected hour|day|week|month|quarter|year)", s)
}

// Child returns the level this one is summed from. Hour has no child:
// it is the base level sourced from raw rows.
func (l Level) Child() (Level, bool) {
	for i := 1; i < len(Ladder); i++ {
		if Ladder[i] == l {
			return Ladder[i-1], true
		}
	}
	return "", false
}

// Key encodes a period's start as its natural summary key.
// hour 2025-11-15T14, day 2025-11-15, week 2025-W46, month 2025-11,
// quarter 2025-Q4, year 2025.
func Key(l Level, start time.Time) string {
	switch l {
	case Hour:
		return start.Format("2006-01-02T15")
	case Day:
		return start.Format("2006-01-02")
	case Week:
		y, w := start.ISOWeek()
		return fmt.Sprintf("%d-W%02d", y, w)
	case Month:
		return start.Format("2006-01")
	case Quarter:
		return fmt.Sprintf("%d-Q%d", start.Year(), (int(start.Month())-1)/3+1)
	case Year:
		return start.Format("2006")
	}
	return start.Format(time.RFC3339)
}

// StartOf truncates t to the start of its enclosing period at level l,
// in UTC. Weeks start on the ISO Monday.
func StartOf(l Level, t time.Time) time.Time {
	t = t.UTC()
	y, m, d := t.Date()
	switch l {
	case Hour:
		return time.Date(y, m, d, t.Hour(), 0, 0, 0, time.UTC)
	case Day:
		return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	case Week:
		day := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
		offset := (int(day.Weekday()) + 6) % 7 // Monday=0 ... Sunday=6
		return day.AddDate(0, 0, -offset)
	case Month:
		return time.Date(y, m, 1, 0, 0, 0, 0, time.UTC)
	case Quarter:
		qm := time.Month((int(m)-1)/3*3 + 1)
		return time.Date(y, qm, 1, 0, 0, 0, 0, time.UTC)
	case Year:
		return time.Date(y, 1, 1, 0, 0, 0, 0, time.UTC)
	}
	return t
}

// Next returns the start of the period following the one beginning at start.
func Next(l Level, start time.Time) time.Time {
	switch l {
	case Hour:
		return start.Add(time.Hour)
	case Day:
		return start.AddDate(0, 0, 1)
	case Week:
		return start.AddDate(0, 0, 7)
	case Month:
		return start.AddDate(0, 1, 0)
	case Quarter:
		return start.AddDate(0, 3, 0)
	case Year:
		return start.AddDate(1, 0, 0)
	}
	return start
}

// Prior returns the start of the period immediately before the one
// beginning at start. Used for vs-prior-period derived metrics.
func Prior(l Level, start time.Time) time.Time {
	switch l {
	case Hour:
		return start.Add(-time.Hour)
	case Day:
		return start.AddDate(0, 0, -1)
	case Week:
		return start.AddDate(0, 0, -7)
	case Month:
		return start.AddDate(0, -1, 0)
	case Quarter:
		return start.AddDate(0, -3, 0)
	case Year:
		return start.AddDate(-1, 0, 0)
	}
	return start
}

// Starts returns the starts of every level-l period overlapping [from, to]
// inclusive, in ascending order.
func Starts(l Level, from, to time.Time) []time.Time {
	if to.Before(from) {
		return nil
	}
	var out []time.Time
	for cur := StartOf(l, from); !cur.After(to); cur = Next(l, cur) {
		out = append(out, cur)
	}
	return out
}
