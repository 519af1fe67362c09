package logics

import (
	"fmt"
	"time"

	"go-history/internal/api/models"
)

// maxBuckets bounds a single grid. A year of 15 minute buckets stays well below it.
const maxBuckets = 50000

// NormalizeTimestamp floors ts to the start of the bucket that contains it,
// using the wall clock of ts's own location. It is idempotent and never
// returns a time after ts.
func NormalizeTimestamp(ts time.Time, g models.Granularity, policy models.GranularityPolicy) time.Time {
	p := policy.Normalized()
	loc := ts.Location()
	y, mo, d := ts.Date()

	var out time.Time
	switch g {
	case models.GranularityHour15m:
		out = time.Date(y, mo, d, ts.Hour(), ts.Minute()/15*15, 0, 0, loc)
	case models.GranularityDay:
		out = time.Date(y, mo, d, ts.Hour()/p.DayStepHours*p.DayStepHours, 0, 0, 0, loc)
	case models.GranularityWeekDay:
		out = time.Date(y, mo, d, 0, 0, 0, 0, loc)
	case models.GranularityMonthDays:
		// Steps are counted from day 1, matching the grid of GenerateBuckets.
		out = time.Date(y, mo, 1+(d-1)/p.MonthStepDays*p.MonthStepDays, 0, 0, 0, 0, loc)
	case models.GranularityYearMonth:
		out = time.Date(y, mo, 1, 0, 0, 0, 0, loc)
	default:
		return ts
	}

	// A floor landing in a DST gap is pushed forward by time.Date.
	if out.After(ts) {
		return ts
	}
	return out
}

// advanceBucket moves cursor by one bucket step. Calendar steps use wall
// clock arithmetic so alignment survives DST transitions.
func advanceBucket(cursor time.Time, g models.Granularity, p models.GranularityPolicy) time.Time {
	switch g {
	case models.GranularityHour15m:
		return cursor.Add(15 * time.Minute)
	case models.GranularityDay:
		y, mo, d := cursor.Date()
		return time.Date(y, mo, d, cursor.Hour()+p.DayStepHours, 0, 0, 0, cursor.Location())
	case models.GranularityWeekDay:
		return cursor.AddDate(0, 0, 1)
	case models.GranularityMonthDays:
		return cursor.AddDate(0, 0, p.MonthStepDays)
	case models.GranularityYearMonth:
		return cursor.AddDate(0, 1, 0)
	}
	return cursor
}

// GenerateBuckets enumerates the canonical bucket starts covering r, in
// strictly increasing order. The result is never empty.
func GenerateBuckets(r models.TimeRange, policy models.GranularityPolicy) []time.Time {
	p := policy.Normalized()
	start := NormalizeTimestamp(r.From, r.Granularity, p)

	buckets := make([]time.Time, 0, 32)
	cursor := start
	for !cursor.After(r.To) && len(buckets) < maxBuckets {
		b := NormalizeTimestamp(cursor, r.Granularity, p)
		if len(buckets) == 0 || b.After(buckets[len(buckets)-1]) {
			buckets = append(buckets, b)
		}
		next := advanceBucket(cursor, r.Granularity, p)
		if !next.After(cursor) {
			break
		}
		cursor = next
	}

	if len(buckets) == 0 {
		buckets = append(buckets, start)
	}
	return buckets
}

// FormatBucketLabel renders the axis label of a bucket.
func FormatBucketLabel(ts time.Time, g models.Granularity) string {
	switch g {
	case models.GranularityHour15m:
		return ts.Format("15:04")
	case models.GranularityDay:
		return ts.Format("02/01 15h")
	case models.GranularityWeekDay:
		return ts.Format("Mon")
	case models.GranularityMonthDays:
		return ts.Format("02/01")
	case models.GranularityYearMonth:
		return ts.Format("Jan")
	}
	return ts.Format(time.RFC3339)
}

// SubtitleFor describes what one bar stands for.
func SubtitleFor(g models.Granularity, policy models.GranularityPolicy) string {
	p := policy.Normalized()
	switch g {
	case models.GranularityHour15m:
		return "Avg / 15 min"
	case models.GranularityDay:
		if p.DayStepHours == 1 {
			return "Avg / hour"
		}
		return fmt.Sprintf("Avg / %d hours", p.DayStepHours)
	case models.GranularityWeekDay:
		return "Avg / day"
	case models.GranularityMonthDays:
		if p.MonthStepDays == 1 {
			return "Avg / day"
		}
		return fmt.Sprintf("Avg / %d days", p.MonthStepDays)
	case models.GranularityYearMonth:
		return "Avg / month"
	}
	return ""
}
