package billing

import "time"

// =============================================================================
// PERIODICITY - How billing periods are numbered
// =============================================================================

// Periodicity defines the cadence of a ruleset's billing periods.
// Every period is identified by the year+month it ends in; quarterly
// periods are keyed by their final month (Mar, Jun, Sep, Dec).
type Periodicity string

const (
	PeriodicityMonthly   Periodicity = "monthly"
	PeriodicityQuarterly Periodicity = "quarterly"
)

// Valid reports whether the periodicity is one the engine knows.
func (p Periodicity) Valid() bool {
	return p == PeriodicityMonthly || p == PeriodicityQuarterly
}

// MonthsPerPeriod returns the number of calendar months a period spans.
func (p Periodicity) MonthsPerPeriod() int {
	if p == PeriodicityQuarterly {
		return 3
	}
	return 1
}

// =============================================================================
// PERIOD NUMBERS - Absolute, monotonically increasing indexes
// =============================================================================

// Period numbers are absolute indexes on a fixed epoch so that
// "last fully invoiced period" survives year boundaries. Monthly period N
// maps to year N/12, month N%12+1. Quarterly periods count quarters.

// PeriodNumber returns the absolute period number containing year+month.
func (p Periodicity) PeriodNumber(year int, month time.Month) int {
	months := year*12 + int(month) - 1
	if p == PeriodicityQuarterly {
		return months / 3
	}
	return months
}

// PeriodEnd returns the year and final month of the given period number.
func (p Periodicity) PeriodEnd(n int) (int, time.Month) {
	months := n
	if p == PeriodicityQuarterly {
		months = n*3 + 2 // final month of the quarter
	}
	return months / 12, time.Month(months%12 + 1)
}

// =============================================================================
// CALENDAR HELPERS
// =============================================================================

// DaysInMonth returns the number of days in year/month.
func DaysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// EntitlementDate returns the date a period becomes due: the entitlement
// day within the period's final month, clamped to the month's length so
// day 31 works in February.
func EntitlementDate(year int, month time.Month, entitlementDay int) time.Time {
	day := entitlementDay
	if max := DaysInMonth(year, month); day > max {
		day = max
	}
	if day < 1 {
		day = 1
	}
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// YearMonth names a calendar month. Used for rule activation windows and
// ruleset start anchors.
type YearMonth struct {
	Year  int
	Month time.Month
}

// Before reports whether ym is strictly earlier than other.
func (ym YearMonth) Before(other YearMonth) bool {
	if ym.Year != other.Year {
		return ym.Year < other.Year
	}
	return ym.Month < other.Month
}

// After reports whether ym is strictly later than other.
func (ym YearMonth) After(other YearMonth) bool {
	return other.Before(ym)
}

// IsZero reports whether the value is unset.
func (ym YearMonth) IsZero() bool {
	return ym.Year == 0 && ym.Month == 0
}
