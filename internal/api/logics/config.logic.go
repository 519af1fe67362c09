package logics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go-history/internal/api/models"
	"go-history/internal/config"
	"go-history/internal/utils"

	"gopkg.in/yaml.v3"
)

var (
	historyConfig     *models.HistoryConfig
	historyConfigOnce sync.Once
	historyConfigMu   sync.RWMutex
	lastConfigModTime time.Time
)

var configFileNames = []string{"history.yaml", "history.yml", "configs.json"}

// InitHistoryConfig loads the history configuration once at startup.
func InitHistoryConfig() {
	historyConfigOnce.Do(func() {
		cfg := loadMergedConfig()

		historyConfigMu.Lock()
		historyConfig = cfg
		lastConfigModTime = time.Now()
		historyConfigMu.Unlock()
	})
}

// GetHistoryConfig returns the current configuration, reloading it when the
// file changed. Checks happen at most every 30 seconds.
func GetHistoryConfig() *models.HistoryConfig {
	InitHistoryConfig()

	historyConfigMu.RLock()
	shouldCheck := time.Since(lastConfigModTime) > 30*time.Second
	current := historyConfig
	historyConfigMu.RUnlock()

	if shouldCheck {
		path := getConfigPath()
		historyConfigMu.Lock()
		if info, err := os.Stat(path); err == nil && info.ModTime().After(lastConfigModTime) {
			historyConfig = loadMergedConfig()
			current = historyConfig
		}
		lastConfigModTime = time.Now()
		historyConfigMu.Unlock()
	}
	return current
}

func loadMergedConfig() *models.HistoryConfig {
	cfg := defaultHistoryConfig()
	path := getConfigPath()
	if path == "" {
		return cfg
	}
	fileCfg, err := LoadHistoryConfig(path)
	if err != nil {
		if !errors.Is(err, utils.ErrConfigNotFound) {
			utils.LogWarnWithContext("config", fmt.Sprintf("ignoring history config %s", path), err)
		}
		return cfg
	}
	return mergeHistoryConfig(cfg, fileCfg)
}

// defaultHistoryConfig builds the configuration from environment variables only.
func defaultHistoryConfig() *models.HistoryConfig {
	env := config.GetEnvConfig()
	defaults := DefaultChartOptions()
	overlays := make([]string, 0, len(defaults.Overlays))
	for _, k := range defaults.Overlays {
		overlays = append(overlays, string(k))
	}
	return &models.HistoryConfig{
		Policy: models.GranularityPolicy{
			DayStepHours:  env.HistoryDayStepHours,
			MonthStepDays: env.HistoryMonthStepDays,
		}.Normalized(),
		MaxBars:  env.HistoryMaxBars,
		Capacity: env.HistoryMaxMeasurements,
		Chart: models.ChartConfig{
			BarWidth: defaults.BarWidth,
			Gap:      &defaults.Gap,
			Height:   defaults.Height,
			Headroom: defaults.Headroom,
			Floor:    defaults.Floor,
			YSteps:   defaults.YSteps,
			Overlays: overlays,
		},
	}
}

// LoadHistoryConfig reads a YAML or JSON file, chosen by extension.
func LoadHistoryConfig(path string) (*models.HistoryConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, utils.NewConfigError("CONFIG_NOT_FOUND", fmt.Sprintf("%s does not exist", path), errors.Join(utils.ErrConfigNotFound, err))
		}
		return nil, utils.NewConfigError("CONFIG_READ_FAILED", fmt.Sprintf("failed to read %s", path), err)
	}

	var cfg models.HistoryConfig
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &cfg)
	default:
		err = json.Unmarshal(data, &cfg)
	}
	if err != nil {
		return nil, utils.NewConfigError("CONFIG_PARSE_FAILED", fmt.Sprintf("failed to parse %s", filepath.Base(path)), err)
	}
	return &cfg, nil
}

// mergeHistoryConfig overlays the non-zero fields of file onto base.
func mergeHistoryConfig(base, file *models.HistoryConfig) *models.HistoryConfig {
	out := *base
	if file.Policy.DayStepHours > 0 {
		out.Policy.DayStepHours = file.Policy.DayStepHours
	}
	if file.Policy.MonthStepDays > 0 {
		out.Policy.MonthStepDays = file.Policy.MonthStepDays
	}
	out.Policy = out.Policy.Normalized()
	if file.MaxBars > 0 {
		out.MaxBars = file.MaxBars
	}
	if file.Capacity > 0 {
		out.Capacity = file.Capacity
	}

	c := file.Chart
	if c.BarWidth > 0 {
		out.Chart.BarWidth = c.BarWidth
	}
	if c.Gap != nil && *c.Gap >= 0 {
		gap := *c.Gap
		out.Chart.Gap = &gap
	}
	if c.Height > 0 {
		out.Chart.Height = c.Height
	}
	if c.Headroom > 0 {
		out.Chart.Headroom = c.Headroom
	}
	if c.Floor > 0 {
		out.Chart.Floor = c.Floor
	}
	if c.YSteps > 0 {
		out.Chart.YSteps = c.YSteps
	}
	if c.Overlays != nil {
		out.Chart.Overlays = c.Overlays
	}
	if len(file.Devices) > 0 {
		out.Devices = file.Devices
	}
	return &out
}

func getConfigPath() string {
	if p := strings.TrimSpace(config.GetEnvConfig().HistoryConfigPath); p != "" {
		return p
	}

	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}
	root := findProjectRoot(cwd)
	for _, name := range configFileNames {
		candidate := filepath.Join(root, name)
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return ""
}

func findProjectRoot(startPath string) string {
	current := startPath
	for {
		if _, err := os.Stat(filepath.Join(current, "go.mod")); err == nil {
			return current
		}
		parent := filepath.Dir(current)
		if parent == current {
			return startPath
		}
		current = parent
	}
}

// FallbackCatalog asks the primary catalog first and falls back to the
// devices listed in the configuration file.
type FallbackCatalog struct {
	Primary MeasurementCatalog
	Devices func() []models.DeviceConfig
}

func (c FallbackCatalog) ListMeasurements(ctx context.Context, deviceID string) ([]models.Measurement, error) {
	var primaryErr error
	if c.Primary != nil {
		list, err := c.Primary.ListMeasurements(ctx, deviceID)
		if err == nil {
			return list, nil
		}
		primaryErr = err
	}
	if c.Devices != nil {
		for _, d := range c.Devices() {
			if d.ID != deviceID {
				continue
			}
			out := make([]models.Measurement, 0, len(d.Measurements))
			for _, m := range d.Measurements {
				m.DeviceID = deviceID
				if m.Name == "" {
					m.Name = m.ID
				}
				out = append(out, m)
			}
			return out, nil
		}
	}
	if primaryErr != nil {
		return nil, primaryErr
	}
	return []models.Measurement{}, nil
}
