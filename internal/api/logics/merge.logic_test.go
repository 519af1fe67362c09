package logics

import (
	"testing"
	"time"

	"go-history/internal/api/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lastHourBuckets(t *testing.T) []time.Time {
	r, err := ResolveRange(models.PeriodLastHour, testNow)
	require.NoError(t, err)
	return GenerateBuckets(r, models.DefaultGranularityPolicy)
}

func TestMergeSeriesZeroFillsMissingBuckets(t *testing.T) {
	buckets := lastHourBuckets(t)
	rows := []models.RawAggregateRow{
		{Bucket: time.Date(2024, 3, 10, 9, 47, 0, 0, time.UTC), Avg: 5, Max: 7, Min: 3, Total: 20},
		{Bucket: time.Date(2024, 3, 10, 10, 30, 0, 0, time.UTC), Avg: 1, Max: 2, Min: 0.5, Total: 4},
	}

	points := MergeSeries(rows, buckets, models.GranularityHour15m, models.DefaultGranularityPolicy)
	require.Len(t, points, len(buckets))

	labels := make([]string, len(points))
	for i, p := range points {
		labels[i] = p.TimeLabel
		assert.Equal(t, buckets[i], p.Bucket)
	}
	assert.Equal(t, []string{"09:30", "09:45", "10:00", "10:15", "10:30"}, labels)

	assert.False(t, points[0].HasData)
	assert.Zero(t, points[0].Avg)
	assert.True(t, points[1].HasData)
	assert.Equal(t, 5.0, points[1].Avg)
	assert.Equal(t, 20.0, points[1].Total)
	assert.False(t, points[2].HasData)
	assert.Equal(t, 0.5, points[4].Min)
}

func TestMergeSeriesLastWriteWins(t *testing.T) {
	buckets := lastHourBuckets(t)
	rows := []models.RawAggregateRow{
		{Bucket: time.Date(2024, 3, 10, 10, 0, 0, 0, time.UTC), Avg: 1},
		{Bucket: time.Date(2024, 3, 10, 10, 14, 59, 0, time.UTC), Avg: 9},
	}

	points := MergeSeries(rows, buckets, models.GranularityHour15m, models.DefaultGranularityPolicy)
	require.Len(t, points, 5)
	assert.Equal(t, 9.0, points[2].Avg)
}

func TestMergeSeriesIgnoresRowsOutsideGrid(t *testing.T) {
	buckets := lastHourBuckets(t)
	rows := []models.RawAggregateRow{
		{Bucket: time.Date(2024, 3, 9, 10, 0, 0, 0, time.UTC), Avg: 100},
	}

	points := MergeSeries(rows, buckets, models.GranularityHour15m, models.DefaultGranularityPolicy)
	require.Len(t, points, 5)
	for _, p := range points {
		assert.False(t, p.HasData)
	}
}

func TestMergeSeriesNoRows(t *testing.T) {
	buckets := lastHourBuckets(t)
	points := MergeSeries(nil, buckets, models.GranularityHour15m, models.DefaultGranularityPolicy)
	assert.Len(t, points, len(buckets))
}

func TestAlignRowsMatchesGridZone(t *testing.T) {
	loc := time.FixedZone("UTC+7", 7*3600)
	r := models.TimeRange{
		From:        time.Date(2024, 3, 10, 0, 0, 0, 0, loc),
		To:          time.Date(2024, 3, 10, 23, 0, 0, 0, loc),
		Granularity: models.GranularityDay,
	}
	buckets := GenerateBuckets(r, models.DefaultGranularityPolicy)

	// 01:00 UTC is 08:00 local.
	rows := AlignRows([]models.RawAggregateRow{{Bucket: time.Date(2024, 3, 10, 1, 0, 0, 0, time.UTC), Avg: 3}}, loc)
	points := MergeSeries(rows, buckets, r.Granularity, models.DefaultGranularityPolicy)
	require.Len(t, points, 6)
	assert.True(t, points[2].HasData)
	assert.Equal(t, "10/03 08h", points[2].TimeLabel)
}

func TestMergeSeriesRowLandsOnItsBucketForEveryGranularity(t *testing.T) {
	policies := map[string]models.GranularityPolicy{
		"default": models.DefaultGranularityPolicy,
		"hourly":  hourly,
		"3 days":  {DayStepHours: 4, MonthStepDays: 3},
	}
	for name, policy := range policies {
		for _, label := range models.PeriodLabels {
			t.Run(name+"/"+string(label), func(t *testing.T) {
				r, err := ResolveRange(label, testNow)
				require.NoError(t, err)
				buckets := GenerateBuckets(r, policy)
				require.NotEmpty(t, buckets)

				for i, b := range buckets {
					require.Equal(t, b, NormalizeTimestamp(b, r.Granularity, policy), "bucket %d is not canonical", i)

					end := r.To
					if i+1 < len(buckets) {
						end = buckets[i+1].Add(-time.Nanosecond)
					}
					for _, ts := range []time.Time{b, b.Add(end.Sub(b) / 2), end} {
						require.Equal(t, b, NormalizeTimestamp(ts, r.Granularity, policy), "row at %s", ts)

						rows := []models.RawAggregateRow{{Bucket: ts, Avg: 7, Max: 9, Min: 5, Total: 14}}
						points := MergeSeries(rows, buckets, r.Granularity, policy)
						require.Len(t, points, len(buckets))
						for j, p := range points {
							assert.Equal(t, i == j, p.HasData, "row at %s, point %d", ts, j)
						}
						assert.Equal(t, 7.0, points[i].Avg)
						assert.Equal(t, SummarizeRows(rows).Avg, points[i].Avg)
					}
				}
			})
		}
	}
}

func TestMergeSeriesKeepsEvenDayRowsInThisMonth(t *testing.T) {
	r, err := ResolveRange(models.PeriodThisMonth, testNow)
	require.NoError(t, err)
	buckets := GenerateBuckets(r, models.DefaultGranularityPolicy)
	rows := []models.RawAggregateRow{{Bucket: time.Date(2024, 3, 2, 13, 0, 0, 0, time.UTC), Avg: 7, Max: 7, Min: 7, Total: 7}}

	points := MergeSeries(rows, buckets, r.Granularity, models.DefaultGranularityPolicy)
	require.Len(t, points, 5)
	assert.True(t, points[0].HasData)
	assert.Equal(t, "01/03", points[0].TimeLabel)
	assert.Equal(t, 7.0, points[0].Avg)
	assert.Equal(t, models.Stats{Avg: 7, Max: 7, Min: 7, Total: 7}, SummarizeRows(rows))
}
