package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"go-history/internal/api/logics"
	"go-history/internal/api/models"
)

const (
	barAreaWidth = 40
	labelWidth   = 12
)

func renderSnapshot(w io.Writer, snap models.HistorySnapshot, maxBars int) {
	title := color.New(color.FgCyan, color.Bold)
	title.Fprintf(w, "%s | %s", snap.DeviceID, snap.Period)
	if !snap.UpdatedAt.IsZero() {
		title.Fprintf(w, " | %s", snap.UpdatedAt.Format("2006-01-02 15:04:05"))
	}
	fmt.Fprintln(w)

	if len(snap.Series) == 0 {
		fmt.Fprintln(w, "No measurements selected.")
		return
	}
	for _, s := range snap.Series {
		fmt.Fprintln(w)
		renderSeries(w, s, maxBars)
	}
}

func renderSeries(w io.Writer, s models.ChartSeries, maxBars int) {
	name := s.MeasurementName
	if name == "" {
		name = s.MeasurementID
	}
	if s.Unit != "" {
		name += " (" + s.Unit + ")"
	}

	if s.Failed {
		color.New(color.FgRed, color.Bold).Fprintf(w, "%s - %s\n", name, s.Subtitle)
		color.New(color.FgRed).Fprintf(w, "  ERROR: %s\n", s.Error)
		return
	}

	color.New(color.Bold).Fprintf(w, "%s - %s\n", name, s.Subtitle)
	fmt.Fprintf(w, "  avg %.1f | max %.1f | min %.1f | total %.1f\n", s.Stats.Avg, s.Stats.Max, s.Stats.Min, s.Stats.Total)

	points := logics.Downsample(s.Points, maxBars)
	maxValue := logics.ComputeMaxValue(points, nil, 1, 1)
	bar := color.New(color.FgGreen)
	empty := color.New(color.FgHiBlack)
	for _, p := range points {
		n := barLength(p.Avg, maxValue)
		label := truncateString(p.TimeLabel, labelWidth)
		if !p.HasData {
			empty.Fprintf(w, "  %-*s │%s\n", labelWidth, label, "")
			continue
		}
		fmt.Fprintf(w, "  %-*s │", labelWidth, label)
		bar.Fprint(w, strings.Repeat("█", n))
		fmt.Fprintf(w, " %.1f\n", p.Avg)
	}
}

func barLength(value, maxValue float64) int {
	if maxValue <= 0 || value <= 0 {
		return 0
	}
	n := int(value / maxValue * barAreaWidth)
	if n > barAreaWidth {
		n = barAreaWidth
	}
	return n
}

func renderError(w io.Writer, err error) {
	color.New(color.FgRed).Fprintf(w, "ERROR: %s\n", err)
}

func truncateString(s string, length int) string {
	if len(s) <= length {
		return s
	}
	return s[:length-3] + "..."
}
