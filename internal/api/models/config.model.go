package models

// HistoryConfig is the optional file based configuration of the chart engine.
type HistoryConfig struct {
	Policy   GranularityPolicy `json:"policy" yaml:"policy"`
	MaxBars  int               `json:"max_bars" yaml:"max_bars"`
	Capacity int               `json:"max_measurements" yaml:"max_measurements"`
	Chart    ChartConfig       `json:"chart" yaml:"chart"`
	Devices  []DeviceConfig    `json:"devices,omitempty" yaml:"devices,omitempty"`
}

// ChartConfig holds renderer geometry. Gap is a pointer so that an explicit
// 0 is distinguishable from unset.
type ChartConfig struct {
	BarWidth float64  `json:"bar_width" yaml:"bar_width"`
	Gap      *float64 `json:"gap,omitempty" yaml:"gap,omitempty"`
	Height   float64  `json:"height" yaml:"height"`
	Headroom float64  `json:"headroom" yaml:"headroom"`
	Floor    float64  `json:"floor" yaml:"floor"`
	YSteps   int      `json:"y_steps" yaml:"y_steps"`
	Overlays []string `json:"overlays" yaml:"overlays"`
}

// DeviceConfig lists measurements known locally for a device, used when the
// upstream catalog is unreachable.
type DeviceConfig struct {
	ID           string        `json:"id" yaml:"id"`
	Name         string        `json:"name" yaml:"name"`
	Measurements []Measurement `json:"measurements" yaml:"measurements"`
}
