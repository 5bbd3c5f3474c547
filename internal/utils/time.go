package utils

import (
	"time"

	"pulse-reports/internal/models"
)

// Default analysis window lengths per report type. Habit reports need a
// longer window because streaks are meaningless over a few days.
const (
	HabitsWindowDays  = 30
	DefaultWindowDays = 7
)

// TruncateToMinute drops the sub-minute part of a timestamp. Default time
// ranges are minute-truncated so repeated requests within the coalescing
// window produce identical ranges.
func TruncateToMinute(t time.Time) time.Time {
	return t.Truncate(time.Minute)
}

// DefaultTimeRange derives the default analysis window for a report type,
// ending at the given time truncated to the minute.
func DefaultTimeRange(reportType models.ReportType, now time.Time) models.TimeRange {
	end := TruncateToMinute(now)
	days := DefaultWindowDays
	if reportType == models.ReportTypeHabits {
		days = HabitsWindowDays
	}
	return models.TimeRange{
		Start: end.AddDate(0, 0, -days),
		End:   end,
	}
}

// FormatDate formats a time.Time as YYYY-MM-DD
func FormatDate(t time.Time) string {
	return t.Format("2006-01-02")
}

// ParseDate parses a date string in YYYY-MM-DD format
func ParseDate(dateStr string) (time.Time, error) {
	return time.Parse("2006-01-02", dateStr)
}
