package views

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/a-h/templ"

	"go-history/internal/api/models"
)

// PageProps configures the history page.
type PageProps struct {
	Title           string
	DefaultPeriod   models.PeriodLabel
	MaxMeasurements int
	MaxBars         int
	Devices         []models.DeviceConfig
}

// HistoryPage renders the shell page. Charts are loaded by /js/history.js
// through the view endpoints.
func HistoryPage(p PageProps) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		title := p.Title
		if title == "" {
			title = "Device history"
		}

		var b strings.Builder
		b.WriteString(`<!DOCTYPE html><html lang="en"><head><meta charset="utf-8">`)
		b.WriteString(`<meta name="viewport" content="width=device-width, initial-scale=1">`)
		fmt.Fprintf(&b, `<title>%s</title>`, templ.EscapeString(title))
		b.WriteString(`<link rel="stylesheet" href="/assets/history.css"></head><body>`)

		fmt.Fprintf(&b, `<main id="history" data-max-measurements="%d" data-max-bars="%d">`, p.MaxMeasurements, p.MaxBars)
		fmt.Fprintf(&b, `<h1>%s</h1>`, templ.EscapeString(title))

		b.WriteString(`<form id="history-controls" class="controls">`)
		b.WriteString(`<label>Device <input id="device" name="device" list="devices" autocomplete="off"></label>`)
		b.WriteString(`<datalist id="devices">`)
		for _, d := range p.Devices {
			label := d.Name
			if label == "" {
				label = d.ID
			}
			fmt.Fprintf(&b, `<option value="%s">%s</option>`, templ.EscapeString(d.ID), templ.EscapeString(label))
		}
		b.WriteString(`</datalist>`)

		b.WriteString(`<label>Period <select id="period" name="period">`)
		for _, label := range models.PeriodLabels {
			selected := ""
			if label == p.DefaultPeriod {
				selected = " selected"
			}
			fmt.Fprintf(&b, `<option value="%s"%s>%s</option>`, templ.EscapeString(string(label)), selected, templ.EscapeString(string(label)))
		}
		b.WriteString(`</select></label>`)
		b.WriteString(`<button type="button" id="refresh">Refresh</button></form>`)

		fmt.Fprintf(&b, `<section id="measurements" class="measurements" aria-label="Measurements (up to %d)"></section>`, p.MaxMeasurements)
		b.WriteString(`<p id="status" class="status" role="status"></p>`)
		b.WriteString(`<section id="charts" class="charts"></section>`)
		b.WriteString(`</main><script src="/js/history.js" defer></script></body></html>`)

		_, err := io.WriteString(w, b.String())
		return err
	})
}
