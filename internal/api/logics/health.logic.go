package logics

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"os"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"

	"go-history/internal/api/models"
	"go-history/internal/utils"
)

// HealthChecker reports process and host resources plus a heartbeat against
// the upstream history API.
type HealthChecker struct {
	upstreamURL string
	client      *http.Client
	timeout     time.Duration
	started     time.Time
	clock       func() time.Time
}

// NewHealthChecker builds a checker. An empty upstreamURL skips the heartbeat.
func NewHealthChecker(upstreamURL string, client *http.Client, timeout time.Duration) *HealthChecker {
	if client == nil {
		client = http.DefaultClient
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HealthChecker{
		upstreamURL: upstreamURL,
		client:      client,
		timeout:     timeout,
		started:     time.Now(),
		clock:       utils.NowDefault,
	}
}

// Report collects a HealthReport. Status is false only when the upstream is down.
func (p *HealthChecker) Report(ctx context.Context) models.HealthReport {
	report := models.HealthReport{
		Status:    true,
		Timestamp: p.clock(),
		Uptime:    formatDuration(time.Since(p.started).Truncate(time.Second)),
		Process:   processStats(ctx),
		Host:      hostStats(ctx),
		Storage:   []string{},
	}
	if p.upstreamURL != "" {
		check := p.checkUpstream(ctx)
		report.Upstream = &check
		report.Status = check.Status == models.ServerStatusUp
	}
	return report
}

func (p *HealthChecker) checkUpstream(ctx context.Context) models.UpstreamCheck {
	start := time.Now()
	check := models.UpstreamCheck{URL: p.upstreamURL, Status: models.ServerStatusDown}
	finish := func(errMsg string) models.UpstreamCheck {
		elapsed := time.Since(start)
		check.ResponseTime = formatDuration(elapsed)
		check.ResponseMs = elapsed.Milliseconds()
		check.LastChecked = p.clock()
		check.Error = errMsg
		return check
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.upstreamURL, nil)
	if err != nil {
		return finish(err.Error())
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return finish(err.Error())
	}
	defer resp.Body.Close()

	// Any answer below 500 means the API is reachable; the base URL itself may 404.
	if resp.StatusCode >= http.StatusInternalServerError {
		return finish(fmt.Sprintf("HTTP %d", resp.StatusCode))
	}
	check.Status = models.ServerStatusUp
	return finish("")
}

func processStats(ctx context.Context) models.ProcessStats {
	stats := models.ProcessStats{Goroutines: runtime.NumGoroutine()}

	proc, err := process.NewProcessWithContext(ctx, int32(os.Getpid()))
	if err != nil {
		utils.LogDebug("health: process stats unavailable: %v", err)
		return stats
	}
	if info, err := proc.MemoryInfoWithContext(ctx); err == nil {
		stats.RSSBytes = info.RSS
		stats.RSS = formatBytes(info.RSS)
	}
	if pct, err := proc.CPUPercentWithContext(ctx); err == nil {
		stats.CPUPercent = math.Round(pct*100) / 100
	}
	return stats
}

func hostStats(ctx context.Context) models.HostStats {
	var stats models.HostStats
	if vmem, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		stats.RAMTotalBytes = vmem.Total
		stats.RAMUsedPct = math.Round(vmem.UsedPercent*100) / 100
	}
	if avg, err := load.AvgWithContext(ctx); err == nil {
		stats.LoadAverage = fmt.Sprintf("%.2f, %.2f, %.2f", avg.Load1, avg.Load5, avg.Load15)
	}
	return stats
}

func formatBytes(bytes uint64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := uint64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.2f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}

func formatDuration(d time.Duration) string {
	switch {
	case d >= time.Second:
		return fmt.Sprintf("%.2fs", d.Seconds())
	case d >= time.Millisecond:
		return fmt.Sprintf("%dms", d.Milliseconds())
	case d >= time.Microsecond:
		return fmt.Sprintf("%dµs", d.Microseconds())
	default:
		return fmt.Sprintf("%dns", d.Nanoseconds())
	}
}
