package logics

import "go-history/internal/api/models"

// Downsample keeps every stride-th point so at most maxBars remain, with
// stride = ceil(len/maxBars). The first point is always kept. Inputs that
// already fit, or a non-positive budget, are returned unchanged.
func Downsample(points []models.ChartPoint, maxBars int) []models.ChartPoint {
	if maxBars <= 0 || len(points) <= maxBars {
		return points
	}

	stride := (len(points) + maxBars - 1) / maxBars
	out := make([]models.ChartPoint, 0, (len(points)+stride-1)/stride)
	for i := 0; i < len(points); i += stride {
		out = append(out, points[i])
	}
	return out
}
