package utils

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"go-history/internal/api/models"
)

// DecodeHistoryPayload turns an upstream history response into typed rows.
// It accepts payloads in the following shapes:
//   - [ {row}, ... ]
//   - { data: [ {row}, ... ] }
//
// Numeric fields may be JSON numbers, numeric strings or null (read as 0).
// Rows without a readable bucket are skipped and counted in the second return value.
func DecodeHistoryPayload(payload []byte) ([]models.RawAggregateRow, int, error) {
	items, err := extractItems(payload, "data")
	if err != nil {
		return nil, 0, err
	}

	rows := make([]models.RawAggregateRow, 0, len(items))
	skipped := 0
	for _, item := range items {
		row, ok := decodeHistoryItem(item)
		if !ok {
			skipped++
			continue
		}
		rows = append(rows, row)
	}
	return rows, skipped, nil
}

// DecodeCatalogPayload reads the measurement catalog and keeps the entries of deviceID.
// An empty deviceID keeps every entry.
func DecodeCatalogPayload(payload []byte, deviceID string) ([]models.Measurement, error) {
	items, err := extractItems(payload, "measurements")
	if err != nil {
		return nil, err
	}

	out := make([]models.Measurement, 0, len(items))
	seen := make(map[string]struct{}, len(items))
	for _, item := range items {
		device := asString(firstOf(item, "device_id", "deviceId"))
		if deviceID != "" && device != deviceID {
			continue
		}
		id := asString(firstOf(item, "measurement_id", "measurementId"))
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		name := asString(firstOf(item, "measurement_name", "name"))
		if name == "" {
			name = id
		}
		out = append(out, models.Measurement{
			ID:       id,
			DeviceID: device,
			Name:     name,
			Unit:     asString(item["unit"]),
		})
	}
	return out, nil
}

func extractItems(payload []byte, wrapperKey string) ([]map[string]any, error) {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 {
		return nil, nil
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, NewDataError("INVALID_PAYLOAD", "failed to parse upstream payload", fmt.Errorf("%w: %v", ErrDataUnmarshalFailed, err))
	}

	var list []any
	switch v := raw.(type) {
	case []any:
		list = v
	case map[string]any:
		inner, ok := v[wrapperKey]
		if !ok || inner == nil {
			return nil, nil
		}
		arr, ok := asArray(inner)
		if !ok {
			return nil, NewDataError("INVALID_PAYLOAD", fmt.Sprintf("%q is not an array", wrapperKey), ErrInvalidDataFormat)
		}
		list = arr
	case nil:
		return nil, nil
	default:
		return nil, NewDataError("INVALID_PAYLOAD", "unexpected payload shape", ErrInvalidDataFormat)
	}

	items := make([]map[string]any, 0, len(list))
	for _, e := range list {
		if m, ok := asObject(e); ok {
			items = append(items, m)
		}
	}
	return items, nil
}

func decodeHistoryItem(item map[string]any) (models.RawAggregateRow, bool) {
	bucket, ok := asTime(firstOf(item, "bucket", "bucket_time", "timestamp", "time"))
	if !ok {
		return models.RawAggregateRow{}, false
	}
	return models.RawAggregateRow{
		Bucket: bucket,
		Avg:    asNumber(firstOf(item, "avg_value", "avg")),
		Max:    asNumber(firstOf(item, "max_value", "max")),
		Min:    asNumber(firstOf(item, "min_value", "min")),
		Total:  asNumber(firstOf(item, "total_value", "total", "sum_value")),
	}, true
}

func firstOf(item map[string]any, keys ...string) any {
	for _, k := range keys {
		if v, ok := item[k]; ok && v != nil {
			return v
		}
	}
	return nil
}

func asNumber(v any) float64 {
	var f float64
	switch n := v.(type) {
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0
		}
		f = parsed
	case float64:
		f = n
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0
		}
		f = parsed
	default:
		return 0
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

func asTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case json.Number:
		ms, err := t.Int64()
		if err != nil {
			f, ferr := t.Float64()
			if ferr != nil {
				return time.Time{}, false
			}
			ms = int64(f)
		}
		return FromEpochMillis(ms), true
	case float64:
		return FromEpochMillis(int64(t)), true
	case string:
		parsed, err := ParseTimestamp(t)
		if err != nil {
			return time.Time{}, false
		}
		return parsed, true
	}
	return time.Time{}, false
}

func asString(v any) string {
	switch s := v.(type) {
	case string:
		return strings.TrimSpace(s)
	case json.Number:
		return s.String()
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	}
	return ""
}

func asObject(v any) (map[string]any, bool) {
	m, ok := v.(map[string]any)
	return m, ok
}

func asArray(v any) ([]any, bool) {
	a, ok := v.([]any)
	return a, ok
}
