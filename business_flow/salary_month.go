package businessflow

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/amirphl/estate-settlement/repository"
	"github.com/amirphl/estate-settlement/utils"
)

// SalaryMonth identifies a settlement window by the calendar month it starts in
type SalaryMonth struct {
	Year  int
	Month time.Month
}

// ParseSalaryMonth parses an "MM/YYYY" key
func ParseSalaryMonth(s string) (SalaryMonth, error) {
	parts := strings.Split(strings.TrimSpace(s), "/")
	if len(parts) != 2 || len(parts[0]) != 2 || len(parts[1]) != 4 {
		return SalaryMonth{}, fmt.Errorf("%w: %q", ErrInvalidSalaryMonth, s)
	}
	m, err := strconv.Atoi(parts[0])
	if err != nil || m < 1 || m > 12 {
		return SalaryMonth{}, fmt.Errorf("%w: %q", ErrInvalidSalaryMonth, s)
	}
	y, err := strconv.Atoi(parts[1])
	if err != nil || y < 2000 {
		return SalaryMonth{}, fmt.Errorf("%w: %q", ErrInvalidSalaryMonth, s)
	}
	return SalaryMonth{Year: y, Month: time.Month(m)}, nil
}

// String formats the month as "MM/YYYY"
func (m SalaryMonth) String() string {
	return fmt.Sprintf("%02d/%04d", int(m.Month), m.Year)
}

// ResolveSalaryMonth returns the month being settled on ref's day.
// From the 4th to the 12th the previous month is still open; otherwise it is ref's own month.
func ResolveSalaryMonth(ref time.Time) SalaryMonth {
	y, m, d := ref.Date()
	if d >= utils.SalaryLookbackFirstDay && d <= utils.SalaryLookbackLastDay {
		prev := time.Date(y, m, 1, 0, 0, 0, 0, ref.Location()).AddDate(0, -1, 0)
		return SalaryMonth{Year: prev.Year(), Month: prev.Month()}
	}
	return SalaryMonth{Year: y, Month: m}
}

// WindowForSalaryMonth returns [day 6 00:00:00, day 5 of the next month 23:59:59] in loc
func WindowForSalaryMonth(m SalaryMonth, loc *time.Location) repository.TimeWindow {
	if loc == nil {
		loc = time.UTC
	}
	start := time.Date(m.Year, m.Month, utils.SalaryWindowStartDay, 0, 0, 0, 0, loc)
	lastDay := time.Date(m.Year, m.Month+1, utils.SalaryWindowStartDay-1, 0, 0, 0, 0, loc)
	return repository.TimeWindow{Start: start, End: utils.EndOfDay(lastDay)}
}

// resolveMonthOrCurrent parses s, or resolves the current month in loc when s is empty
func resolveMonthOrCurrent(s string, now time.Time, loc *time.Location) (SalaryMonth, error) {
	if strings.TrimSpace(s) == "" {
		if loc != nil {
			now = now.In(loc)
		}
		return ResolveSalaryMonth(now), nil
	}
	return ParseSalaryMonth(s)
}
