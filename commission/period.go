package commission

import "time"

// =============================================================================
// PERIOD - The boundary for YTD accumulation and caps
// =============================================================================

// Period is the span YTD state accumulates within. Crossing a period
// boundary resets company dollar, royalty, and the capped flag.
//
// Examples:
//   - Calendar year 2025: Jan 1 - Dec 31
//   - Anniversary year: assignment start June 15 -> June 15 - June 14
type Period struct {
	Start time.Time
	End   time.Time // inclusive
}

// Contains returns true if the date falls within [Start, End].
func (p Period) Contains(t time.Time) bool {
	return !t.Before(p.Start) && !t.After(p.End)
}

// Key returns the stable identifier used to key YTD state, the ISO start
// date of the period.
func (p Period) Key() string {
	return p.Start.Format("2006-01-02")
}

// String returns a readable representation of the period.
func (p Period) String() string {
	return "[" + p.Start.Format("2006-01-02") + ", " + p.End.Format("2006-01-02") + "]"
}

// PeriodMode defines how cap periods are calculated.
type PeriodMode string

const (
	PeriodCalendarYear PeriodMode = "calendar-year"     // Jan 1 - Dec 31
	PeriodAnniversary  PeriodMode = "agent-anniversary" // rolls on the agent's assignment anniversary
)

// =============================================================================
// PERIOD CALCULATOR - Determines which period a date falls into
// =============================================================================

// PeriodFor returns the period containing date under the given mode. For
// anniversary mode, anchor is the agent's assignment start date; a zero
// anchor falls back to calendar-year.
func PeriodFor(mode PeriodMode, anchor, date time.Time) Period {
	switch mode {
	case PeriodAnniversary:
		if anchor.IsZero() {
			return calendarYearPeriod(date)
		}
		return anniversaryPeriod(anchor, date)
	default:
		return calendarYearPeriod(date)
	}
}

func calendarYearPeriod(date time.Time) Period {
	return Period{
		Start: time.Date(date.Year(), time.January, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(date.Year(), time.December, 31, 0, 0, 0, 0, time.UTC),
	}
}

func anniversaryPeriod(anchor, date time.Time) Period {
	// Find which anniversary year the date falls in
	yearsElapsed := date.Year() - anchor.Year()

	start := time.Date(anchor.Year()+yearsElapsed, anchor.Month(), anchor.Day(), 0, 0, 0, 0, time.UTC)

	// If date is before this year's anniversary, we're in the previous period
	if date.Before(start) {
		yearsElapsed--
		start = time.Date(anchor.Year()+yearsElapsed, anchor.Month(), anchor.Day(), 0, 0, 0, 0, time.UTC)
	}

	end := start.AddDate(1, 0, 0).AddDate(0, 0, -1)
	return Period{Start: start, End: end}
}

// NextPeriod returns the period following this one under the same boundary
// rhythm (the day after End, spanning the same number of days shifted by a
// year for yearly periods).
func (p Period) NextPeriod() Period {
	start := p.End.AddDate(0, 0, 1)
	end := start.AddDate(1, 0, 0).AddDate(0, 0, -1)
	return Period{Start: start, End: end}
}

// Date builds a UTC midnight date, the normal form for closing dates.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}
