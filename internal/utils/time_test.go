package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"pulse-reports/internal/models"
)

func TestTruncateToMinute(t *testing.T) {
	ts := time.Date(2025, 3, 10, 14, 23, 45, 123456789, time.UTC)
	truncated := TruncateToMinute(ts)

	assert.Equal(t, time.Date(2025, 3, 10, 14, 23, 0, 0, time.UTC), truncated)
}

func TestDefaultTimeRangeHabits(t *testing.T) {
	now := time.Date(2025, 3, 10, 14, 23, 45, 0, time.UTC)

	timeRange := DefaultTimeRange(models.ReportTypeHabits, now)

	expectedEnd := time.Date(2025, 3, 10, 14, 23, 0, 0, time.UTC)
	assert.Equal(t, expectedEnd, timeRange.End)
	assert.Equal(t, expectedEnd.AddDate(0, 0, -30), timeRange.Start)
	assert.Equal(t, 30*24*time.Hour, timeRange.End.Sub(timeRange.Start))
}

func TestDefaultTimeRangeOtherTypes(t *testing.T) {
	now := time.Date(2025, 3, 10, 14, 23, 45, 0, time.UTC)

	for _, reportType := range []models.ReportType{
		models.ReportTypeActivity,
		models.ReportTypeProductivity,
		models.ReportTypeTask,
		models.ReportTypeSummary,
		models.ReportTypeDashboard,
	} {
		timeRange := DefaultTimeRange(reportType, now)

		expectedEnd := time.Date(2025, 3, 10, 14, 23, 0, 0, time.UTC)
		assert.Equal(t, expectedEnd, timeRange.End, "type %s", reportType)
		assert.Equal(t, 7*24*time.Hour, timeRange.End.Sub(timeRange.Start), "type %s", reportType)
	}
}

func TestDefaultTimeRangeStableWithinMinute(t *testing.T) {
	first := time.Date(2025, 3, 10, 14, 23, 5, 0, time.UTC)
	second := time.Date(2025, 3, 10, 14, 23, 55, 0, time.UTC)

	assert.Equal(t,
		DefaultTimeRange(models.ReportTypeActivity, first),
		DefaultTimeRange(models.ReportTypeActivity, second))
}

func TestParseDateRoundTrip(t *testing.T) {
	parsed, err := ParseDate("2025-03-10")
	assert.NoError(t, err)
	assert.Equal(t, "2025-03-10", FormatDate(parsed))

	_, err = ParseDate("10/03/2025")
	assert.Error(t, err)
}
