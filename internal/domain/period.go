package domain

import (
	"fmt"
	"time"
)

// Period is an inclusive date-time window.
type Period struct {
	Start time.Time
	End   time.Time
}

// Label is the human readable period name printed on statements ("February 2024" or "2024").
func (p Period) Label(monthly bool) string {
	if monthly {
		return p.Start.Format("January 2006")
	}
	return p.Start.Format("2006")
}

// StatementPeriod returns the window covering a whole year when month is nil,
// otherwise the given month. The window starts at 00:00 on the first day and
// ends at the last instant of 23:59 on the last calendar day.
func StatementPeriod(year int, month *int, loc *time.Location) (Period, error) {
	if loc == nil {
		loc = time.UTC
	}
	if year < 1 || year > 9999 {
		return Period{}, fmt.Errorf("invalid year %d", year)
	}

	firstMonth, lastMonth := time.January, time.December
	if month != nil {
		if *month < 1 || *month > 12 {
			return Period{}, fmt.Errorf("invalid month %d", *month)
		}
		firstMonth = time.Month(*month)
		lastMonth = firstMonth
	}

	start := time.Date(year, firstMonth, 1, 0, 0, 0, 0, loc)
	// Day 0 of the following month normalizes to the last day of lastMonth.
	lastDay := time.Date(year, lastMonth+1, 0, 0, 0, 0, 0, loc).Day()
	end := time.Date(year, lastMonth, lastDay, 23, 59, 59, int(time.Second-time.Nanosecond), loc)

	return Period{Start: start, End: end}, nil
}
