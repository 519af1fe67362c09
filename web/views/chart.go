package views

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/a-h/templ"

	"go-history/internal/api/logics"
	"go-history/internal/api/models"
)

const (
	axisWidth   = 44.0
	topMargin   = 18.0
	labelHeight = 24.0
)

// ChartProps is what ChartSVG needs to draw one series.
type ChartProps struct {
	ViewID string
	Series models.ChartSeries
	Layout logics.ChartLayout
}

// ChartSVG draws avg bars, overlay polylines and the y axis of one series.
// Overlay vertices carry data attributes so the page can toggle their labels.
func ChartSVG(p ChartProps) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		l := p.Layout
		width := axisWidth + l.Width + 8
		height := topMargin + l.Height + labelHeight

		var b strings.Builder
		fmt.Fprintf(&b, `<svg xmlns="http://www.w3.org/2000/svg" class="history-chart" width="%.0f" height="%.0f" viewBox="0 0 %.0f %.0f" data-measurement="%s">`,
			width, height, width, height, templ.EscapeString(p.Series.MeasurementID))
		fmt.Fprintf(&b, `<title>%s</title>`, templ.EscapeString(chartTitle(p.Series)))

		for _, t := range l.YAxis {
			y := topMargin + t.Y
			fmt.Fprintf(&b, `<line class="grid" x1="%.0f" y1="%.2f" x2="%.2f" y2="%.2f"/>`, axisWidth, y, width, y)
			fmt.Fprintf(&b, `<text class="y-label" x="%.0f" y="%.2f" text-anchor="end">%s</text>`, axisWidth-6, y+4, t.Label)
		}

		for _, bar := range l.Bars {
			class := "bar"
			if !bar.HasData {
				class = "bar empty"
			}
			x := axisWidth + bar.X
			fmt.Fprintf(&b, `<rect class="%s" x="%.2f" y="%.2f" width="%.2f" height="%.2f"><title>%s: %s</title></rect>`,
				class, x, topMargin+bar.Y, bar.Width, bar.Height, templ.EscapeString(bar.TimeLabel), bar.ValueLabel)
			fmt.Fprintf(&b, `<text class="bar-value" x="%.2f" y="%.2f" text-anchor="middle">%s</text>`,
				x+bar.Width/2, topMargin+bar.Y-4, bar.ValueLabel)
			fmt.Fprintf(&b, `<text class="x-label" x="%.2f" y="%.2f" text-anchor="middle">%s</text>`,
				x+bar.Width/2, topMargin+l.Height+16, templ.EscapeString(bar.TimeLabel))
		}

		for _, ov := range l.Overlays {
			if len(ov.Vertices) == 0 {
				continue
			}
			fmt.Fprintf(&b, `<g class="overlay overlay-%s" transform="translate(%.0f %.0f)">`, ov.Kind, axisWidth, topMargin)
			fmt.Fprintf(&b, `<polyline fill="none" points="%s"/>`, ov.Points())
			for _, v := range ov.Vertices {
				fmt.Fprintf(&b, `<circle class="vertex" cx="%.2f" cy="%.2f" r="3" data-series="%s" data-index="%d"/>`,
					v.X, v.Y, ov.Kind, v.Index)
				if v.Visible {
					fmt.Fprintf(&b, `<text class="vertex-label" x="%.2f" y="%.2f" text-anchor="middle">%s</text>`, v.X, v.Y-6, v.Label)
				}
			}
			b.WriteString(`</g>`)
		}

		b.WriteString(`</svg>`)
		_, err := io.WriteString(w, b.String())
		return err
	})
}

func chartTitle(s models.ChartSeries) string {
	name := s.MeasurementName
	if name == "" {
		name = s.MeasurementID
	}
	if s.Unit != "" {
		name += " (" + s.Unit + ")"
	}
	return name + " - " + s.Subtitle
}
