// Package calendar holds the month arithmetic behind the availability grid.
// Weeks start on Sunday and dates use the proleptic Gregorian calendar.
package calendar

import (
	"fmt"
	"time"
)

// DateLayout is the canonical ISO date format exchanged with the API.
const DateLayout = "2006-01-02"

const monthLayout = "2006-01"

// Month identifies a displayed calendar month.
type Month struct {
	Year  int
	Month time.Month
}

// Current returns the month containing now.
func Current(now time.Time) Month {
	return Month{Year: now.Year(), Month: now.Month()}
}

// ParseMonth parses a "YYYY-MM" string.
func ParseMonth(s string) (Month, error) {
	t, err := time.Parse(monthLayout, s)
	if err != nil {
		return Month{}, fmt.Errorf("invalid month %q, want YYYY-MM: %w", s, err)
	}
	return Current(t), nil
}

// Add moves the month by delta months, rolling over year boundaries.
func (m Month) Add(delta int) Month {
	idx := m.Year*12 + int(m.Month-1) + delta
	year := idx / 12
	rem := idx % 12
	if rem < 0 {
		rem += 12
		year--
	}
	return Month{Year: year, Month: time.Month(rem + 1)}
}

func (m Month) first() time.Time {
	return time.Date(m.Year, m.Month, 1, 0, 0, 0, 0, time.UTC)
}

// Days returns the number of days in the month.
func (m Month) Days() int {
	return m.first().AddDate(0, 1, -1).Day()
}

// FirstWeekday returns the weekday index (0 = Sunday) of the 1st.
func (m Month) FirstWeekday() int {
	return int(m.first().Weekday())
}

// Date returns the ISO date string of the given day of the month.
func (m Month) Date(day int) string {
	return FormatDate(m.Year, m.Month, day)
}

// Contains reports whether an ISO date falls inside the month.
func (m Month) Contains(date string) bool {
	y, mo, _, err := ParseDate(date)
	return err == nil && y == m.Year && mo == m.Month
}

// Key returns the month as "YYYY-MM".
func (m Month) Key() string {
	return fmt.Sprintf("%04d-%02d", m.Year, int(m.Month))
}

// String returns the header label, e.g. "March 2024".
func (m Month) String() string {
	return m.first().Format("January 2006")
}

// FormatDate renders a date as a zero-padded YYYY-MM-DD string.
func FormatDate(year int, month time.Month, day int) string {
	return fmt.Sprintf("%04d-%02d-%02d", year, int(month), day)
}

// ParseDate parses a YYYY-MM-DD string. Out-of-range days are rejected.
func ParseDate(s string) (int, time.Month, int, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("invalid date %q, want YYYY-MM-DD: %w", s, err)
	}
	return t.Year(), t.Month(), t.Day(), nil
}

// MonthOf returns the month a valid ISO date belongs to.
func MonthOf(date string) (Month, error) {
	y, m, _, err := ParseDate(date)
	if err != nil {
		return Month{}, err
	}
	return Month{Year: y, Month: m}, nil
}
