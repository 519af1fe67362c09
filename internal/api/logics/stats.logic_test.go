package logics

import (
	"math"
	"testing"

	"go-history/internal/api/models"

	"github.com/stretchr/testify/assert"
)

func TestRound1(t *testing.T) {
	assert.Equal(t, 2.5, Round1(2.45))
	assert.Equal(t, -2.5, Round1(-2.45))
	assert.Equal(t, 18.3, Round1(18.333333))
	assert.Equal(t, 0.0, Round1(0.04))
	assert.Equal(t, 0.0, Round1(math.NaN()))
}

func TestSummarizeRows(t *testing.T) {
	rows := []models.RawAggregateRow{
		{Avg: 10, Max: 12.34, Min: -1.25, Total: 100.04},
		{Avg: 20, Max: 30.05, Min: 3, Total: 0.01},
		{Avg: 25, Max: 29, Min: 5, Total: 0},
	}

	stats := SummarizeRows(rows)
	assert.Equal(t, models.Stats{Avg: 18.3, Max: 30.1, Min: -1.3, Total: 100.1}, stats)
}

func TestSummarizeRowsEmpty(t *testing.T) {
	assert.Equal(t, models.Stats{}, SummarizeRows(nil))
	assert.Equal(t, models.Stats{}, SummarizeRows([]models.RawAggregateRow{}))
}

func TestSummarizeRowsIgnoresZeroFill(t *testing.T) {
	// Only the real row is summarized even though the grid carries zero buckets.
	buckets := lastHourBuckets(t)
	rows := []models.RawAggregateRow{{Bucket: buckets[2], Avg: 8, Max: 9, Min: 7, Total: 8}}
	points := MergeSeries(rows, buckets, models.GranularityHour15m, models.DefaultGranularityPolicy)

	assert.Len(t, points, 5)
	assert.Equal(t, models.Stats{Avg: 8, Max: 9, Min: 7, Total: 8}, SummarizeRows(rows))
}
