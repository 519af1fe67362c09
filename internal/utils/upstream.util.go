package utils

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"go-history/internal/api/models"
	"go-history/internal/config"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
)

const (
	historyPath = "/api/customer/devices/{device}/measurements/{measurement}/history"
	catalogPath = "/api/customer/history-config"
)

type requestStartKey struct{}

// HistoryClient talks to the upstream aggregate history API.
type HistoryClient struct {
	client      *resty.Client
	catalog     *cache.Cache
	maxResponse int64
}

// NewHistoryClient builds a client on top of httpClient. A zero catalogTTL
// disables catalog caching.
func NewHistoryClient(baseURL, token string, httpClient *http.Client, catalogTTL time.Duration) *HistoryClient {
	var client *resty.Client
	if httpClient != nil {
		client = resty.NewWithClient(httpClient)
	} else {
		client = resty.New()
	}

	client.SetHostURL(baseURL)
	client.SetHeader("Accept", "application/json")
	client.SetHeader("User-Agent", "go-history/1.0")
	if token != "" {
		client.SetAuthToken(token)
	}

	client.OnBeforeRequest(func(c *resty.Client, req *resty.Request) error {
		rctx := context.WithValue(req.Context(), requestStartKey{}, time.Now())
		req.SetContext(rctx)
		rid := uuid.NewString()[:8]
		req.SetHeader("X-Request-Id", rid)
		LogDebug("==> %s %s [%s]", req.Method, req.URL, rid)
		return nil
	})
	client.OnAfterResponse(func(c *resty.Client, resp *resty.Response) error {
		elapsed := 0.0
		if start, ok := resp.Request.Context().Value(requestStartKey{}).(time.Time); ok {
			elapsed = float64(time.Since(start)) / float64(time.Millisecond)
		}
		LogDebug("<== %s %s [%d] (%.2fms)", resp.Request.Method, resp.Request.URL, resp.StatusCode(), elapsed)
		return nil
	})

	hc := &HistoryClient{client: client}
	if catalogTTL > 0 {
		hc.catalog = cache.New(catalogTTL, 2*catalogTTL)
	}
	return hc
}

// NewHistoryClientFromEnv wires the shared HTTP client and the HISTORY_API_* settings.
func NewHistoryClientFromEnv() *HistoryClient {
	env := config.GetEnvConfig()
	hc := NewHistoryClient(env.HistoryAPIBase, env.HistoryAPIToken, GetHTTPClient(), env.HistoryCatalogTTL)
	hc.maxResponse = env.HTTPMaxResponseSize
	return hc
}

// Resty exposes the underlying client.
func (c *HistoryClient) Resty() *resty.Client {
	return c.client
}

// FetchHistory returns the raw aggregate rows of one measurement for r.
// Every failure is reported as a FETCH_FAILURE network error.
func (c *HistoryClient) FetchHistory(ctx context.Context, deviceID, measurementID string, r models.TimeRange) ([]models.RawAggregateRow, error) {
	resp, err := c.client.R().
		SetContext(ctx).
		SetPathParams(map[string]string{
			"device":      deviceID,
			"measurement": measurementID,
		}).
		SetQueryParams(map[string]string{
			"from": strconv.FormatInt(r.From.UnixMilli(), 10),
			"to":   strconv.FormatInt(r.To.UnixMilli(), 10),
			"type": r.Granularity.String(),
		}).
		Get(historyPath)
	if err != nil {
		return nil, NewFetchFailureError(measurementID, fmt.Errorf("%w: %v", ErrHTTPRequestFailed, err))
	}
	if resp.IsError() {
		return nil, NewFetchFailureError(measurementID, fmt.Errorf("%w: status %d: %s", ErrHTTPRequestFailed, resp.StatusCode(), truncate(resp.String(), 256)))
	}
	if c.maxResponse > 0 && int64(len(resp.Body())) > c.maxResponse {
		return nil, NewFetchFailureError(measurementID, ErrResponseTooLarge)
	}

	rows, skipped, err := DecodeHistoryPayload(resp.Body())
	if err != nil {
		return nil, NewFetchFailureError(measurementID, err)
	}
	if skipped > 0 {
		LogWarnWithContext("upstream", fmt.Sprintf("skipped %d history rows without a readable bucket for %s/%s", skipped, deviceID, measurementID), nil)
	}
	return rows, nil
}

// ListMeasurements returns the catalog entries of deviceID, cached per device.
func (c *HistoryClient) ListMeasurements(ctx context.Context, deviceID string) ([]models.Measurement, error) {
	if c.catalog != nil {
		if cached, ok := c.catalog.Get(deviceID); ok {
			return cached.([]models.Measurement), nil
		}
	}

	resp, err := c.client.R().SetContext(ctx).Get(catalogPath)
	if err != nil {
		return nil, NewNetworkError("CATALOG_FAILURE", "measurement catalog request failed", errors.Join(ErrNetworkError, err))
	}
	if resp.IsError() {
		return nil, NewNetworkError("CATALOG_FAILURE", fmt.Sprintf("measurement catalog returned %d", resp.StatusCode()), ErrHTTPRequestFailed)
	}

	measurements, err := DecodeCatalogPayload(resp.Body(), deviceID)
	if err != nil {
		return nil, err
	}
	if c.catalog != nil {
		c.catalog.SetDefault(deviceID, measurements)
	}
	return measurements, nil
}

// InvalidateCatalog drops cached catalog entries.
func (c *HistoryClient) InvalidateCatalog() {
	if c.catalog != nil {
		c.catalog.Flush()
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
