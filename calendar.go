package wwvb

import "time"

// IsLeapYear reports whether year is a Gregorian leap year
func IsLeapYear(year int) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}

// IsLeapYearNormalized asks the calendar for "March 0" of year, which normalizes to the
// last day of February
func IsLeapYearNormalized(year int) bool {
	return time.Date(year, time.March, 0, 0, 0, 0, 0, time.UTC).Day() == 29
}

// DSTWindow returns the day-of-year range [start, end) of US daylight saving time as
// approximated by a weekday formula: start is meant to be the second Sunday in March and
// end the first Sunday in November.
//
// Known limitation: this is a heuristic, not a tz database lookup. The result is not
// guaranteed to fall on a Sunday and the end day is counted from October 1st, so it lands
// in early October. Frames depend on this exact output; change it only deliberately.
func DSTWindow(year int) (start, end int) {
	febDays := 28
	if IsLeapYear(year) {
		febDays = 29
	}
	anchor := year + year/4 - year/100 + year/400

	daysUntilMarch := 31 + febDays
	start = daysUntilMarch + (14 - (anchor+daysUntilMarch)%7)

	daysUntilAutumn := 31 + febDays + 31 + 30 + 31 + 30 + 31 + 31 + 30
	end = daysUntilAutumn + (7 - (anchor+daysUntilAutumn)%7)

	return start, end
}

// IsDST reports whether dayOfYear falls inside DSTWindow(year)
func IsDST(year, dayOfYear int) bool {
	start, end := DSTWindow(year)
	return dayOfYear >= start && dayOfYear < end
}
