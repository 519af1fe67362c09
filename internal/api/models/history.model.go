package models

import (
	"fmt"
	"strings"
	"time"
)

// Granularity is the bucket width family a period is rendered with.
type Granularity int

const (
	GranularityHour15m   Granularity = iota // 15 minute buckets
	GranularityDay                          // hour groups, step from GranularityPolicy.DayStepHours
	GranularityWeekDay                      // one bucket per day
	GranularityMonthDays                    // day groups, step from GranularityPolicy.MonthStepDays
	GranularityYearMonth                    // one bucket per month
)

// String returns the wire name also used as the upstream "type" parameter.
func (g Granularity) String() string {
	switch g {
	case GranularityHour15m:
		return "hour"
	case GranularityDay:
		return "day"
	case GranularityWeekDay:
		return "week"
	case GranularityMonthDays:
		return "month"
	case GranularityYearMonth:
		return "year"
	default:
		return "unknown"
	}
}

func (g Granularity) MarshalText() ([]byte, error) {
	return []byte(g.String()), nil
}

func (g *Granularity) UnmarshalText(text []byte) error {
	parsed, ok := ParseGranularity(string(text))
	if !ok {
		return fmt.Errorf("unknown granularity %q", string(text))
	}
	*g = parsed
	return nil
}

// ParseGranularity maps a wire name back to a Granularity.
func ParseGranularity(value string) (Granularity, bool) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "hour":
		return GranularityHour15m, true
	case "day":
		return GranularityDay, true
	case "week":
		return GranularityWeekDay, true
	case "month":
		return GranularityMonthDays, true
	case "year":
		return GranularityYearMonth, true
	}
	return 0, false
}

// PeriodLabel is one of the user facing period choices.
type PeriodLabel string

const (
	PeriodLastHour  PeriodLabel = "Last hour"
	PeriodLast24h   PeriodLabel = "Last 24h"
	PeriodLast7Days PeriodLabel = "Last 7 days"
	PeriodThisMonth PeriodLabel = "This month"
	PeriodThisYear  PeriodLabel = "This year"
)

// PeriodLabels lists the recognized labels in display order.
var PeriodLabels = []PeriodLabel{
	PeriodLastHour,
	PeriodLast24h,
	PeriodLast7Days,
	PeriodThisMonth,
	PeriodThisYear,
}

// GranularityPolicy carries the configurable step sizes of the grouped granularities.
type GranularityPolicy struct {
	DayStepHours  int `json:"day_step_hours" yaml:"day_step_hours"`
	MonthStepDays int `json:"month_step_days" yaml:"month_step_days"`
}

// DefaultGranularityPolicy groups a day into 4 hour buckets and a month into 2 day buckets.
var DefaultGranularityPolicy = GranularityPolicy{DayStepHours: 4, MonthStepDays: 2}

// Normalized replaces out of range steps with the defaults. The hour step must divide 24.
func (p GranularityPolicy) Normalized() GranularityPolicy {
	out := p
	if out.DayStepHours <= 0 || out.DayStepHours > 24 || 24%out.DayStepHours != 0 {
		out.DayStepHours = DefaultGranularityPolicy.DayStepHours
	}
	if out.MonthStepDays <= 0 || out.MonthStepDays > 31 {
		out.MonthStepDays = DefaultGranularityPolicy.MonthStepDays
	}
	return out
}

// TimeRange is a resolved period window. From never exceeds To.
type TimeRange struct {
	From        time.Time   `json:"from"`
	To          time.Time   `json:"to"`
	Granularity Granularity `json:"granularity"`
}

// RawAggregateRow is one pre-aggregated bucket as reported by the upstream.
type RawAggregateRow struct {
	Bucket time.Time `json:"bucket"`
	Avg    float64   `json:"avg"`
	Max    float64   `json:"max"`
	Min    float64   `json:"min"`
	Total  float64   `json:"total"`
}

// ChartPoint is one bucket of the canonical grid. HasData is false for zero-filled buckets.
type ChartPoint struct {
	Bucket    time.Time `json:"bucket"`
	TimeLabel string    `json:"time_label"`
	Avg       float64   `json:"avg"`
	Max       float64   `json:"max"`
	Min       float64   `json:"min"`
	Total     float64   `json:"total"`
	HasData   bool      `json:"has_data"`
}

// Stats summarizes real rows only, rounded to one decimal.
type Stats struct {
	Avg   float64 `json:"avg"`
	Max   float64 `json:"max"`
	Min   float64 `json:"min"`
	Total float64 `json:"total"`
}

// Measurement describes one selectable channel of a device.
type Measurement struct {
	ID       string `json:"id" yaml:"id"`
	DeviceID string `json:"device_id,omitempty" yaml:"device_id,omitempty"`
	Name     string `json:"name" yaml:"name"`
	Unit     string `json:"unit,omitempty" yaml:"unit,omitempty"`
}

// ChartSeries is the display model of one selected measurement.
type ChartSeries struct {
	MeasurementID   string       `json:"measurement_id"`
	MeasurementName string       `json:"measurement_name"`
	Unit            string       `json:"unit,omitempty"`
	Subtitle        string       `json:"subtitle"`
	Range           TimeRange    `json:"range"`
	Points          []ChartPoint `json:"points"`
	Stats           Stats        `json:"stats"`
	Failed          bool         `json:"failed"`
	Error           string       `json:"error,omitempty"`
}

// HistorySnapshot is the read model of a controller view.
type HistorySnapshot struct {
	ViewID     string        `json:"view_id,omitempty"`
	DeviceID   string        `json:"device_id"`
	Period     PeriodLabel   `json:"period"`
	Selection  []string      `json:"selection"`
	Generation uint64        `json:"generation"`
	Series     []ChartSeries `json:"series"`
	UpdatedAt  time.Time     `json:"updated_at,omitempty"`
}
