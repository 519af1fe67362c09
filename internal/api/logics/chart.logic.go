package logics

import (
	"fmt"
	"strings"

	"go-history/internal/api/models"
)

// OverlayKind names a line series drawn over the avg bars.
type OverlayKind string

const (
	OverlayMax   OverlayKind = "max"
	OverlayMin   OverlayKind = "min"
	OverlayTotal OverlayKind = "total"
)

// ParseOverlayKind accepts "max", "min" or "total".
func ParseOverlayKind(value string) (OverlayKind, bool) {
	switch OverlayKind(strings.ToLower(strings.TrimSpace(value))) {
	case OverlayMax:
		return OverlayMax, true
	case OverlayMin:
		return OverlayMin, true
	case OverlayTotal:
		return OverlayTotal, true
	}
	return "", false
}

func (k OverlayKind) valueOf(p models.ChartPoint) float64 {
	switch k {
	case OverlayMax:
		return p.Max
	case OverlayMin:
		return p.Min
	case OverlayTotal:
		return p.Total
	}
	return 0
}

// ChartOptions is the renderer geometry.
type ChartOptions struct {
	BarWidth float64
	Gap      float64
	Height   float64
	Headroom float64
	Floor    float64
	YSteps   int
	Overlays []OverlayKind
}

// DefaultChartOptions draws max and min lines over 14px bars on a 180px plot.
func DefaultChartOptions() ChartOptions {
	return ChartOptions{
		BarWidth: 14,
		Gap:      10,
		Height:   180,
		Headroom: 1.2,
		Floor:    1,
		YSteps:   5,
		Overlays: []OverlayKind{OverlayMax, OverlayMin},
	}
}

func (o ChartOptions) normalized() ChartOptions {
	d := DefaultChartOptions()
	if o.BarWidth <= 0 {
		o.BarWidth = d.BarWidth
	}
	if o.Gap < 0 {
		o.Gap = d.Gap
	}
	if o.Height <= 0 {
		o.Height = d.Height
	}
	if o.Headroom <= 0 {
		o.Headroom = d.Headroom
	}
	if o.Floor <= 0 {
		o.Floor = d.Floor
	}
	if o.YSteps <= 0 {
		o.YSteps = d.YSteps
	}
	return o
}

// ChartOptionsFromConfig converts file configuration into renderer options,
// keeping defaults for anything unset.
func ChartOptionsFromConfig(cfg models.ChartConfig) ChartOptions {
	opts := ChartOptions{
		BarWidth: cfg.BarWidth,
		Gap:      -1,
		Height:   cfg.Height,
		Headroom: cfg.Headroom,
		Floor:    cfg.Floor,
		YSteps:   cfg.YSteps,
	}
	if cfg.Gap != nil {
		opts.Gap = *cfg.Gap
	}
	for _, name := range cfg.Overlays {
		if k, ok := ParseOverlayKind(name); ok {
			opts.Overlays = append(opts.Overlays, k)
		}
	}
	if cfg.Overlays == nil {
		opts.Overlays = DefaultChartOptions().Overlays
	}
	return opts.normalized()
}

// PointKey identifies one overlay vertex.
type PointKey struct {
	Series OverlayKind
	Index  int
}

// Disclosure tracks which overlay vertices show their value label. Each key
// is independent of every other.
type Disclosure struct {
	visible map[PointKey]bool
}

func NewDisclosure() *Disclosure {
	return &Disclosure{visible: make(map[PointKey]bool)}
}

// Toggle flips the label of key and returns the new state.
func (d *Disclosure) Toggle(key PointKey) bool {
	v := !d.visible[key]
	if v {
		d.visible[key] = true
	} else {
		delete(d.visible, key)
	}
	return v
}

func (d *Disclosure) Visible(key PointKey) bool {
	if d == nil {
		return false
	}
	return d.visible[key]
}

func (d *Disclosure) Reset() {
	d.visible = make(map[PointKey]bool)
}

// Keys returns the visible keys.
func (d *Disclosure) Keys() []PointKey {
	if d == nil {
		return nil
	}
	out := make([]PointKey, 0, len(d.visible))
	for k := range d.visible {
		out = append(out, k)
	}
	return out
}

func (d *Disclosure) clone() *Disclosure {
	c := NewDisclosure()
	if d != nil {
		for k, v := range d.visible {
			c.visible[k] = v
		}
	}
	return c
}

// Bar is one avg column.
type Bar struct {
	Index      int     `json:"index"`
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Width      float64 `json:"width"`
	Height     float64 `json:"height"`
	Value      float64 `json:"value"`
	ValueLabel string  `json:"value_label"`
	TimeLabel  string  `json:"time_label"`
	HasData    bool    `json:"has_data"`
}

// Vertex is one point of an overlay polyline.
type Vertex struct {
	Index   int     `json:"index"`
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	Value   float64 `json:"value"`
	Label   string  `json:"label"`
	Visible bool    `json:"visible"`
}

// Overlay is a line series over the bars.
type Overlay struct {
	Kind     OverlayKind `json:"kind"`
	Vertices []Vertex    `json:"vertices"`
}

// Points renders the vertices in SVG polyline syntax.
func (o Overlay) Points() string {
	var b strings.Builder
	for i, v := range o.Vertices {
		if i > 0 {
			b.WriteByte(' ')
		}
		fmt.Fprintf(&b, "%.2f,%.2f", v.X, v.Y)
	}
	return b.String()
}

// AxisTick is one y-axis label.
type AxisTick struct {
	Value float64 `json:"value"`
	Y     float64 `json:"y"`
	Label string  `json:"label"`
}

// ChartLayout is the device independent geometry of one series.
type ChartLayout struct {
	Width    float64    `json:"width"`
	Height   float64    `json:"height"`
	MaxValue float64    `json:"max_value"`
	Bars     []Bar      `json:"bars"`
	Overlays []Overlay  `json:"overlays"`
	YAxis    []AxisTick `json:"y_axis"`
}

// ComputeMaxValue returns the scale top: the largest avg or enabled overlay
// value, replaced by floor when nothing is positive, times headroom.
func ComputeMaxValue(points []models.ChartPoint, overlays []OverlayKind, headroom, floor float64) float64 {
	raw := 0.0
	for _, p := range points {
		if p.Avg > raw {
			raw = p.Avg
		}
		for _, k := range overlays {
			if v := k.valueOf(p); v > raw {
				raw = v
			}
		}
	}
	if raw <= 0 {
		raw = floor
	}
	return raw * headroom
}

// LayoutChart computes bar, overlay and axis geometry for points. Vertices
// whose key is visible in disclosure carry Visible=true.
func LayoutChart(points []models.ChartPoint, opts ChartOptions, disclosure *Disclosure) ChartLayout {
	o := opts.normalized()
	maxValue := ComputeMaxValue(points, o.Overlays, o.Headroom, o.Floor)
	step := o.BarWidth + o.Gap

	layout := ChartLayout{
		Width:    float64(len(points)) * step,
		Height:   o.Height,
		MaxValue: maxValue,
		Bars:     make([]Bar, len(points)),
	}

	for i, p := range points {
		h := clamp(o.Height*p.Avg/maxValue, 0, o.Height)
		layout.Bars[i] = Bar{
			Index:      i,
			X:          float64(i) * step,
			Y:          o.Height - h,
			Width:      o.BarWidth,
			Height:     h,
			Value:      p.Avg,
			ValueLabel: fmt.Sprintf("%.1f", p.Avg),
			TimeLabel:  p.TimeLabel,
			HasData:    p.HasData,
		}
	}

	for _, k := range o.Overlays {
		ov := Overlay{Kind: k, Vertices: make([]Vertex, len(points))}
		for i, p := range points {
			v := k.valueOf(p)
			ov.Vertices[i] = Vertex{
				Index:   i,
				X:       float64(i)*step + o.BarWidth/2,
				Y:       clamp(o.Height*(1-v/maxValue), 0, o.Height),
				Value:   v,
				Label:   fmt.Sprintf("%.1f", v),
				Visible: disclosure.Visible(PointKey{Series: k, Index: i}),
			}
		}
		layout.Overlays = append(layout.Overlays, ov)
	}

	layout.YAxis = make([]AxisTick, o.YSteps+1)
	for k := 0; k <= o.YSteps; k++ {
		v := maxValue / float64(o.YSteps) * float64(k)
		layout.YAxis[k] = AxisTick{
			Value: v,
			Y:     o.Height * (1 - float64(k)/float64(o.YSteps)),
			Label: fmt.Sprintf("%.1f", v),
		}
	}
	return layout
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
