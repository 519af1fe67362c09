package logics

import (
	"math"

	"go-history/internal/api/models"

	"github.com/shopspring/decimal"
)

// Round1 rounds to one decimal place, half away from zero.
func Round1(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	f, _ := decimal.NewFromFloat(v).Round(1).Float64()
	return f
}

// SummarizeRows computes stats over real upstream rows. Zero-filled grid
// points must never be passed here.
func SummarizeRows(rows []models.RawAggregateRow) models.Stats {
	if len(rows) == 0 {
		return models.Stats{}
	}

	sum := decimal.Zero
	total := decimal.Zero
	maxV := rows[0].Max
	minV := rows[0].Min
	for _, row := range rows {
		sum = sum.Add(decimal.NewFromFloat(row.Avg))
		total = total.Add(decimal.NewFromFloat(row.Total))
		if row.Max > maxV {
			maxV = row.Max
		}
		if row.Min < minV {
			minV = row.Min
		}
	}

	avg, _ := sum.Div(decimal.NewFromInt(int64(len(rows)))).Round(1).Float64()
	tot, _ := total.Round(1).Float64()
	return models.Stats{
		Avg:   avg,
		Max:   Round1(maxV),
		Min:   Round1(minV),
		Total: tot,
	}
}
