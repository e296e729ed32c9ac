// internal/service/report/period.go
package report

import (
	"strings"
	"time"

	xerrors "attendance-service/internal/pkg/errors"
)

type Period string

const (
	PeriodDaily   Period = "daily"
	PeriodWeekly  Period = "weekly"
	PeriodMonthly Period = "monthly"
	PeriodYearly  Period = "yearly"
)

var periods = []string{string(PeriodDaily), string(PeriodWeekly), string(PeriodMonthly), string(PeriodYearly)}

// PeriodRange returns the local calendar period containing ref as a
// half-open [from, to) range. An empty period means daily. Weeks start on
// Sunday.
func (s *ReportService) PeriodRange(period string, ref time.Time) (time.Time, time.Time, error) {
	if ref.IsZero() {
		ref = s.now()
	}
	day := s.startOfDay(ref)
	y, m, d := day.Date()

	switch Period(strings.ToLower(strings.TrimSpace(period))) {
	case "", PeriodDaily:
		return day, day.AddDate(0, 0, 1), nil
	case PeriodWeekly:
		start := time.Date(y, m, d-int(day.Weekday()), 0, 0, 0, 0, s.loc)
		return start, start.AddDate(0, 0, 7), nil
	case PeriodMonthly:
		start := time.Date(y, m, 1, 0, 0, 0, 0, s.loc)
		return start, start.AddDate(0, 1, 0), nil
	case PeriodYearly:
		start := time.Date(y, time.January, 1, 0, 0, 0, 0, s.loc)
		return start, start.AddDate(1, 0, 0), nil
	default:
		return time.Time{}, time.Time{}, xerrors.InvalidInput("Invalid report type. Must be one of: daily, weekly, monthly, yearly.").
			With("allowedTypes", periods)
	}
}

// ParseDay reads a report reference date, either RFC3339 or a bare
// YYYY-MM-DD taken as a local calendar day.
func (s *ReportService) ParseDay(raw string) (time.Time, error) {
	if raw == "" {
		return s.now(), nil
	}
	if t, err := time.ParseInLocation(dayLayout, raw, s.loc); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, xerrors.InvalidInput("date must be YYYY-MM-DD or RFC3339").With("date", raw)
	}
	return t, nil
}
