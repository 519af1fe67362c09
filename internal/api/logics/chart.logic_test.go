package logics

import (
	"testing"

	"go-history/internal/api/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chartFixture() []models.ChartPoint {
	return []models.ChartPoint{
		{TimeLabel: "a", Avg: 0, Max: 6, Min: 0},
		{TimeLabel: "b", Avg: 5, Max: 12, Min: 1, HasData: true},
		{TimeLabel: "c", Avg: 10, Max: 8, Min: -5, HasData: true},
	}
}

func testChartOptions() ChartOptions {
	opts := DefaultChartOptions()
	opts.Height = 144
	return opts
}

func TestComputeMaxValue(t *testing.T) {
	points := chartFixture()
	assert.InDelta(t, 14.4, ComputeMaxValue(points, []OverlayKind{OverlayMax}, 1.2, 1), 1e-9)
	assert.InDelta(t, 12.0, ComputeMaxValue(points, nil, 1.2, 1), 1e-9)
	assert.InDelta(t, 1.2, ComputeMaxValue([]models.ChartPoint{{}, {}}, []OverlayKind{OverlayMax, OverlayMin}, 1.2, 1), 1e-9)
	assert.InDelta(t, 1.2, ComputeMaxValue(nil, nil, 1.2, 1), 1e-9)
}

func TestLayoutChartGeometry(t *testing.T) {
	layout := LayoutChart(chartFixture(), testChartOptions(), nil)

	assert.InDelta(t, 14.4, layout.MaxValue, 1e-9)
	assert.Equal(t, 72.0, layout.Width)
	require.Len(t, layout.Bars, 3)

	assert.Equal(t, 0.0, layout.Bars[0].Height)
	assert.False(t, layout.Bars[0].HasData)
	assert.InDelta(t, 50.0, layout.Bars[1].Height, 1e-9)
	assert.InDelta(t, 100.0, layout.Bars[2].Height, 1e-9)
	assert.InDelta(t, 44.0, layout.Bars[2].Y, 1e-9)
	assert.Equal(t, 48.0, layout.Bars[2].X)
	assert.Equal(t, "10.0", layout.Bars[2].ValueLabel)
	assert.Equal(t, "c", layout.Bars[2].TimeLabel)

	require.Len(t, layout.Overlays, 2)
	maxLine := layout.Overlays[0]
	assert.Equal(t, OverlayMax, maxLine.Kind)
	assert.InDelta(t, 31.0, maxLine.Vertices[1].X, 1e-9)
	assert.InDelta(t, 24.0, maxLine.Vertices[1].Y, 1e-9)
	assert.Equal(t, "12.0", maxLine.Vertices[1].Label)

	minLine := layout.Overlays[1]
	assert.Equal(t, 144.0, minLine.Vertices[2].Y, "negative values clamp to the baseline")
}

func TestLayoutChartYAxis(t *testing.T) {
	layout := LayoutChart(chartFixture(), testChartOptions(), nil)
	require.Len(t, layout.YAxis, 6)

	labels := make([]string, len(layout.YAxis))
	for i, tick := range layout.YAxis {
		labels[i] = tick.Label
	}
	assert.Equal(t, []string{"0.0", "2.9", "5.8", "8.6", "11.5", "14.4"}, labels)
	assert.Equal(t, 144.0, layout.YAxis[0].Y)
	assert.Equal(t, 0.0, layout.YAxis[5].Y)
}

func TestLayoutChartAllZero(t *testing.T) {
	layout := LayoutChart([]models.ChartPoint{{}, {}}, testChartOptions(), nil)
	assert.InDelta(t, 1.2, layout.MaxValue, 1e-9)
	for _, b := range layout.Bars {
		assert.Equal(t, 0.0, b.Height)
	}
}

func TestDisclosureIndependentPerSeriesAndIndex(t *testing.T) {
	d := NewDisclosure()
	assert.True(t, d.Toggle(PointKey{Series: OverlayMax, Index: 1}))

	assert.True(t, d.Visible(PointKey{Series: OverlayMax, Index: 1}))
	assert.False(t, d.Visible(PointKey{Series: OverlayMin, Index: 1}))
	assert.False(t, d.Visible(PointKey{Series: OverlayMax, Index: 2}))

	layout := LayoutChart(chartFixture(), testChartOptions(), d)
	assert.True(t, layout.Overlays[0].Vertices[1].Visible)
	assert.False(t, layout.Overlays[1].Vertices[1].Visible)

	assert.False(t, d.Toggle(PointKey{Series: OverlayMax, Index: 1}))
	assert.Empty(t, d.Keys())

	d.Toggle(PointKey{Series: OverlayMin, Index: 0})
	d.Reset()
	assert.Empty(t, d.Keys())
}

func TestOverlayPoints(t *testing.T) {
	ov := Overlay{Vertices: []Vertex{{X: 7, Y: 10}, {X: 31, Y: 24.5}}}
	assert.Equal(t, "7.00,10.00 31.00,24.50", ov.Points())
}

func TestChartOptionsFromConfig(t *testing.T) {
	opts := ChartOptionsFromConfig(models.ChartConfig{BarWidth: 20, Overlays: []string{"total", "bogus"}})
	assert.Equal(t, 20.0, opts.BarWidth)
	assert.Equal(t, 10.0, opts.Gap)
	assert.Equal(t, 1.2, opts.Headroom)
	assert.Equal(t, []OverlayKind{OverlayTotal}, opts.Overlays)

	opts = ChartOptionsFromConfig(models.ChartConfig{})
	assert.Equal(t, []OverlayKind{OverlayMax, OverlayMin}, opts.Overlays)
	assert.Equal(t, 10.0, opts.Gap)

	zero := 0.0
	opts = ChartOptionsFromConfig(models.ChartConfig{Gap: &zero})
	assert.Equal(t, 0.0, opts.Gap)
}
