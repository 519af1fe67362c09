package logics

import (
	"time"

	"go-history/internal/api/models"
)

// MergeSeries projects sparse rows onto the bucket grid. Rows are matched by
// their normalized bucket; when two rows share a bucket the later one wins.
// Buckets without a row are zero-filled with HasData false. The output has
// exactly one point per bucket, in bucket order.
func MergeSeries(rows []models.RawAggregateRow, buckets []time.Time, g models.Granularity, policy models.GranularityPolicy) []models.ChartPoint {
	byBucket := make(map[int64]models.RawAggregateRow, len(rows))
	for _, row := range rows {
		key := NormalizeTimestamp(row.Bucket, g, policy).UnixNano()
		byBucket[key] = row
	}

	points := make([]models.ChartPoint, len(buckets))
	for i, b := range buckets {
		p := models.ChartPoint{
			Bucket:    b,
			TimeLabel: FormatBucketLabel(b, g),
		}
		if row, ok := byBucket[b.UnixNano()]; ok {
			p.Avg = row.Avg
			p.Max = row.Max
			p.Min = row.Min
			p.Total = row.Total
			p.HasData = true
		}
		points[i] = p
	}
	return points
}

// AlignRows moves every row into loc so that normalization floors against
// the same wall clock as the grid.
func AlignRows(rows []models.RawAggregateRow, loc *time.Location) []models.RawAggregateRow {
	if loc == nil {
		return rows
	}
	out := make([]models.RawAggregateRow, len(rows))
	for i, row := range rows {
		row.Bucket = row.Bucket.In(loc)
		out[i] = row
	}
	return out
}
