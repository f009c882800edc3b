package dateutil

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var ErrInvalidDate = errors.New("invalid date")

// Layout is the textual date convention used across the service.
const Layout = "02-01-2006"

// DurationUnit selects the calendar unit for AddDuration.
type DurationUnit string

const (
	UnitMonths DurationUnit = "months"
	UnitYears  DurationUnit = "years"
)

// Parse parses a DD-MM-YYYY date string into a UTC midnight time.Time.
// Two-digit years are expanded with a pivot: yy <= 50 becomes 20yy,
// anything above becomes 19yy.
func Parse(s string) (time.Time, error) {
	parts := strings.Split(strings.TrimSpace(s), "-")
	if len(parts) != 3 {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}

	day, err := strconv.Atoi(parts[0])
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	month, err := strconv.Atoi(parts[1])
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	year, err := strconv.Atoi(parts[2])
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}

	if year < 100 {
		if year <= 50 {
			year += 2000
		} else {
			year += 1900
		}
	}

	if month < 1 || month > 12 || day < 1 || day > 31 || year < 1000 || year > 9999 {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}

	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	// time.Date normalizes out-of-range days (31-04 becomes 01-05),
	// so a round-trip mismatch means the day never existed.
	if t.Day() != day || t.Month() != time.Month(month) || t.Year() != year {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return t, nil
}

// Format renders a time as DD-MM-YYYY.
func Format(t time.Time) string {
	return t.Format(Layout)
}

// DaysBetween returns the signed number of whole days from a to b.
func DaysBetween(a, b time.Time) int {
	return int(Midnight(b).Sub(Midnight(a)).Hours() / 24)
}

// AddDuration adds the given number of calendar months or years.
func AddDuration(t time.Time, unit DurationUnit, amount int) time.Time {
	switch unit {
	case UnitYears:
		return t.AddDate(amount, 0, 0)
	default:
		return t.AddDate(0, amount, 0)
	}
}

// Midnight truncates a time to UTC midnight of the same calendar day.
func Midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Today returns the current system date at UTC midnight. Callers that need
// deterministic behavior pass an explicit as-of date instead.
func Today() time.Time {
	return Midnight(time.Now().UTC())
}
