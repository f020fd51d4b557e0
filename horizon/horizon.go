// SPDX-License-Identifier: MIT

// Package horizon computes the rolling-horizon month sets used by every
// allocation model.
//
// For month m of year Y:
//
//   - m < 12:  Remaining = m..12, Past = 1..m-1
//   - m = 12:  Remaining = {12},  Past = 1..11
//   - first simulated year: Past = {} (no realized history exists yet)
//
// Outside the first year Remaining and Past partition {1..12}.
package horizon

import (
	"errors"
	"fmt"
)

// MonthsPerYear is the calendar cycle length.
const MonthsPerYear = 12

// ErrBadMonth is returned for a month outside 1..12.
var ErrBadMonth = errors.New("horizon: month outside 1..12")

// ErrBeforeStart is returned when the date precedes the simulation start year.
var ErrBeforeStart = errors.New("horizon: date before simulation start")

// Date is a simulated calendar month.
type Date struct {
	Year  int
	Month int
}

// Next returns the following month.
func (d Date) Next() Date {
	if d.Month >= MonthsPerYear {
		return Date{Year: d.Year + 1, Month: 1}
	}
	return Date{Year: d.Year, Month: d.Month + 1}
}

// Before reports whether d is strictly earlier than o.
func (d Date) Before(o Date) bool {
	if d.Year != o.Year {
		return d.Year < o.Year
	}
	return d.Month < o.Month
}

// MonthsSince returns the number of months from o to d (negative if d is earlier).
func (d Date) MonthsSince(o Date) int {
	return (d.Year-o.Year)*MonthsPerYear + (d.Month - o.Month)
}

// String implements fmt.Stringer as YYYY-MM.
func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d", d.Year, d.Month)
}

// Index holds the horizon sets for one period.
type Index struct {
	Date      Date
	FirstYear bool
	Remaining []int
	Past      []int
}

// New builds the Index for date d in a run whose first simulated year is startYear.
func New(d Date, startYear int) (Index, error) {
	if d.Month < 1 || d.Month > MonthsPerYear {
		return Index{}, fmt.Errorf("%w: %d", ErrBadMonth, d.Month)
	}
	if d.Year < startYear {
		return Index{}, fmt.Errorf("%w: %s < %d", ErrBeforeStart, d, startYear)
	}

	ix := Index{Date: d, FirstYear: d.Year == startYear}
	for m := d.Month; m <= MonthsPerYear; m++ {
		ix.Remaining = append(ix.Remaining, m)
	}
	if !ix.FirstYear {
		for m := 1; m < d.Month; m++ {
			ix.Past = append(ix.Past, m)
		}
	}

	return ix, nil
}

// Anchor returns the first remaining month, pinned to observed state.
func (ix Index) Anchor() int {
	if len(ix.Remaining) == 0 {
		return 0
	}
	return ix.Remaining[0]
}

// Len returns the number of horizon months.
func (ix Index) Len() int { return len(ix.Remaining) }

// Offset returns the horizon position of month, or false if it is not remaining.
func (ix Index) Offset(month int) (int, bool) {
	for i, m := range ix.Remaining {
		if m == month {
			return i, true
		}
	}
	return -1, false
}

// IsPast reports whether month already elapsed this year with realized history.
func (ix Index) IsPast(month int) bool {
	for _, m := range ix.Past {
		if m == month {
			return true
		}
	}
	return false
}

// Last returns the final horizon month.
func (ix Index) Last() int {
	if len(ix.Remaining) == 0 {
		return 0
	}
	return ix.Remaining[len(ix.Remaining)-1]
}
