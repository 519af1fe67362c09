package logics

import (
	"time"

	"go-history/internal/api/models"
	"go-history/internal/config"
	"go-history/internal/utils"
)

// ResolveRange maps a period label onto its window and granularity, using
// now's location for every calendar boundary. Unknown labels fail with
// utils.ErrInvalidRange instead of falling back to a default.
func ResolveRange(label models.PeriodLabel, now time.Time) (models.TimeRange, error) {
	loc := now.Location()
	y, mo, d := now.Date()

	var r models.TimeRange
	switch label {
	case models.PeriodLastHour:
		r = models.TimeRange{From: now.Add(-time.Hour), Granularity: models.GranularityHour15m}
	case models.PeriodLast24h:
		r = models.TimeRange{From: time.Date(y, mo, d, 1, 0, 0, 0, loc), Granularity: models.GranularityDay}
	case models.PeriodLast7Days:
		r = models.TimeRange{From: time.Date(y, mo, d-6, 0, 0, 0, 0, loc), Granularity: models.GranularityWeekDay}
	case models.PeriodThisMonth:
		r = models.TimeRange{From: time.Date(y, mo, 1, 0, 0, 0, 0, loc), Granularity: models.GranularityMonthDays}
	case models.PeriodThisYear:
		r = models.TimeRange{From: time.Date(y, time.January, 1, 0, 0, 0, 0, loc), Granularity: models.GranularityYearMonth}
	default:
		return models.TimeRange{}, utils.NewInvalidRangeError(string(label))
	}

	r.To = now
	// Before 01:00 the "Last 24h" anchor is still ahead of now.
	if r.From.After(r.To) {
		r.From = r.To
	}
	return r, nil
}

// ParsePeriodLabel accepts a canonical label or one of its short aliases,
// case-insensitively.
func ParsePeriodLabel(value string) (models.PeriodLabel, error) {
	canonical := config.SanitizePeriod(value)
	if canonical == "" {
		return "", utils.NewInvalidRangeError(value)
	}
	return models.PeriodLabel(canonical), nil
}
