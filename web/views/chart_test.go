package views

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-history/internal/api/logics"
	"go-history/internal/api/models"
)

func renderChart(t *testing.T, points []models.ChartPoint, disclosure *logics.Disclosure) string {
	t.Helper()
	layout := logics.LayoutChart(points, logics.DefaultChartOptions(), disclosure)
	var buf bytes.Buffer
	err := ChartSVG(ChartProps{
		Series: models.ChartSeries{MeasurementID: "temp", MeasurementName: "Temperature", Unit: "C", Subtitle: "Avg / 15 min"},
		Layout: layout,
	}).Render(context.Background(), &buf)
	require.NoError(t, err)
	return buf.String()
}

func chartPoints() []models.ChartPoint {
	return []models.ChartPoint{
		{Bucket: time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC), TimeLabel: "09:00", Avg: 5, Max: 6, Min: 4, HasData: true},
		{Bucket: time.Date(2024, 3, 10, 9, 15, 0, 0, time.UTC), TimeLabel: "09:15", Avg: 2.5, Max: 3, Min: 2, HasData: true},
		{Bucket: time.Date(2024, 3, 10, 9, 30, 0, 0, time.UTC), TimeLabel: "09:30"},
	}
}

func TestChartSVGDrawsBarsAndValueLabels(t *testing.T) {
	svg := renderChart(t, chartPoints(), nil)

	assert.True(t, strings.HasPrefix(svg, "<svg "))
	assert.Contains(t, svg, "<title>Temperature (C) - Avg / 15 min</title>")
	assert.Equal(t, 3, strings.Count(svg, "<rect "))
	assert.Equal(t, 1, strings.Count(svg, `class="bar empty"`))

	assert.Equal(t, 3, strings.Count(svg, `class="bar-value"`))
	assert.Contains(t, svg, `text-anchor="middle">5.0</text>`)
	assert.Contains(t, svg, `text-anchor="middle">2.5</text>`)
	assert.Contains(t, svg, `text-anchor="middle">0.0</text>`)
	assert.Contains(t, svg, `>09:15</text>`)

	assert.Equal(t, 2, strings.Count(svg, "<polyline "))
	assert.Contains(t, svg, `class="overlay overlay-max"`)
	assert.Equal(t, 6, strings.Count(svg, `class="vertex"`))
	assert.NotContains(t, svg, "vertex-label")
}

func TestChartSVGShowsDisclosedVertexLabel(t *testing.T) {
	d := logics.NewDisclosure()
	d.Toggle(logics.PointKey{Series: logics.OverlayMax, Index: 1})
	svg := renderChart(t, chartPoints(), d)

	assert.Equal(t, 1, strings.Count(svg, `class="vertex-label"`))
	assert.Contains(t, svg, `data-series="max" data-index="1"/><text class="vertex-label"`)
	assert.Contains(t, svg, `text-anchor="middle">3.0</text>`)
}

func TestChartSVGBarValueSitsAboveBar(t *testing.T) {
	layout := logics.LayoutChart(chartPoints(), logics.DefaultChartOptions(), nil)
	svg := renderChart(t, chartPoints(), nil)

	bar := layout.Bars[0]
	x := axisWidth + bar.X + bar.Width/2
	y := topMargin + bar.Y - 4
	assert.Contains(t, svg, fmt.Sprintf(`<text class="bar-value" x="%.2f" y="%.2f" text-anchor="middle">5.0</text>`, x, y))
}
