package utils

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"go-history/internal/config"
)

// TimeConfig holds timezone configuration
type TimeConfig struct {
	UseUTC      bool
	DefaultZone *time.Location
}

var (
	timeConfig = &TimeConfig{
		UseUTC:      true,
		DefaultZone: time.UTC,
	}
)

// InitTimeConfig initializes timezone configuration from environment.
// Period windows are resolved against the wall clock of DefaultZone.
func InitTimeConfig() {
	envConfig := config.GetEnvConfig()

	if envConfig.DisableUTCEnforcement {
		timeConfig.UseUTC = false
		timeConfig.DefaultZone = time.Local
		LogInfo("UTC enforcement disabled, using local timezone")
	} else {
		timeConfig.UseUTC = true
		timeConfig.DefaultZone = time.UTC
		LogInfo("using UTC timezone for consistency")
	}

	// Allow custom timezone configuration
	if tz := envConfig.DefaultTimezone; tz != "" && tz != "UTC" {
		if err := ValidateTimezone(tz); err != nil {
			LogWarnWithContext("time-config", fmt.Sprintf("ignoring timezone '%s'", tz), err)
			return
		}
		loc, _ := time.LoadLocation(tz)
		timeConfig.UseUTC = false
		timeConfig.DefaultZone = loc
		LogInfo("using custom timezone: %s", tz)
	}
}

// NowUTC returns the current time in UTC
func NowUTC() time.Time {
	return time.Now().UTC()
}

// NowDefault returns the current time in the configured default timezone
func NowDefault() time.Time {
	if timeConfig.UseUTC {
		return NowUTC()
	}
	return time.Now().In(timeConfig.DefaultZone)
}

// FormatTimestampUTC formats a time consistently using RFC3339Nano in UTC
func FormatTimestampUTC(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// ParseTimestamp parses a timestamp string and returns it in the default timezone.
// Integer strings are read as epoch milliseconds.
func ParseTimestamp(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}

	if ms, err := strconv.ParseInt(value, 10, 64); err == nil {
		return FromEpochMillis(ms), nil
	}

	layouts := []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02 15:04:05.999999999Z07:00",
		"2006-01-02 15:04:05.999999999 -0700 MST",
		"2006-01-02 15:04:05",
		"2006-01-02T15:04:05",
		"2006-01-02",
	}

	for _, layout := range layouts {
		parsed, err := time.ParseInLocation(layout, value, timeConfig.DefaultZone)
		if err == nil {
			// Always return in the configured default timezone
			return parsed.In(timeConfig.DefaultZone), nil
		}
	}

	return time.Time{}, fmt.Errorf("unsupported time format: %s", value)
}

// FromEpochMillis converts epoch milliseconds to a time in the default timezone.
func FromEpochMillis(ms int64) time.Time {
	return time.UnixMilli(ms).In(timeConfig.DefaultZone)
}

// GetDefaultTimezone returns the configured default timezone
func GetDefaultTimezone() *time.Location {
	return timeConfig.DefaultZone
}

// SetDefaultTimezone overrides the configured zone.
func SetDefaultTimezone(loc *time.Location) {
	if loc == nil {
		return
	}
	timeConfig.DefaultZone = loc
	timeConfig.UseUTC = loc == time.UTC
}

// IsUTCEnforced returns whether UTC enforcement is enabled
func IsUTCEnforced() bool {
	return timeConfig.UseUTC
}

// ValidateTimezone validates if a timezone string is valid
func ValidateTimezone(tz string) error {
	if tz == "" {
		return fmt.Errorf("timezone cannot be empty")
	}

	if tz == "UTC" || tz == "Local" {
		return nil
	}

	_, err := time.LoadLocation(tz)
	if err != nil {
		return fmt.Errorf("invalid timezone '%s': %w", tz, err)
	}

	return nil
}
