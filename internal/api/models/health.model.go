package models

import "time"

type ServerStatus string

const (
	ServerStatusUp   ServerStatus = "up"
	ServerStatusDown ServerStatus = "down"
)

// UpstreamCheck is the result of one heartbeat against the history API.
type UpstreamCheck struct {
	URL          string       `json:"url"`
	Status       ServerStatus `json:"status"`
	ResponseTime string       `json:"response_time"` // Human-readable (e.g., "150ms")
	ResponseMs   int64        `json:"response_ms"`
	LastChecked  time.Time    `json:"last_checked"`
	Error        string       `json:"error,omitempty"`
}

type ProcessStats struct {
	Goroutines int     `json:"goroutines"`
	RSSBytes   uint64  `json:"rss_bytes"`
	RSS        string  `json:"rss"` // Human-readable (e.g., "42.10 MB")
	CPUPercent float64 `json:"cpu_percent"`
}

type HostStats struct {
	RAMTotalBytes uint64  `json:"ram_total_bytes"`
	RAMUsedPct    float64 `json:"ram_used_pct"`
	LoadAverage   string  `json:"load_average,omitempty"` // 1m, 5m, 15m
}

// HealthReport is served by the health endpoint.
type HealthReport struct {
	Status    bool           `json:"status"`
	Timestamp time.Time      `json:"timestamp"`
	Uptime    string         `json:"uptime"`
	Process   ProcessStats   `json:"process"`
	Host      HostStats      `json:"host"`
	Upstream  *UpstreamCheck `json:"upstream,omitempty"`
	Storage   []string       `json:"storage"`
	Views     int            `json:"views"`
}
