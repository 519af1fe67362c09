package utils

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"go-history/internal/api/models"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testUpstream = "http://upstream.test"

func newMockedClient(t *testing.T, ttl time.Duration) *HistoryClient {
	c := NewHistoryClient(testUpstream, "secret", &http.Client{}, ttl)
	httpmock.ActivateNonDefault(c.Resty().GetClient())
	t.Cleanup(httpmock.DeactivateAndReset)
	return c
}

func TestFetchHistoryOK(t *testing.T) {
	SetDefaultTimezone(time.UTC)
	c := newMockedClient(t, 0)

	from := time.Date(2024, 3, 10, 1, 0, 0, 0, time.UTC)
	to := time.Date(2024, 3, 10, 10, 30, 0, 0, time.UTC)

	httpmock.RegisterResponder("GET", testUpstream+"/api/customer/devices/dev-1/measurements/temp/history",
		func(req *http.Request) (*http.Response, error) {
			assert.Equal(t, "Bearer secret", req.Header.Get("Authorization"))
			assert.Equal(t, "1710032400000", req.URL.Query().Get("from"))
			assert.Equal(t, "1710066600000", req.URL.Query().Get("to"))
			assert.Equal(t, "day", req.URL.Query().Get("type"))
			assert.NotEmpty(t, req.Header.Get("X-Request-Id"))
			return httpmock.NewStringResponse(200, `{"data":[{"bucket":"2024-03-10T04:00:00Z","avg_value":"7.5","max_value":9,"min_value":6,"total_value":30}]}`), nil
		})

	rows, err := c.FetchHistory(context.Background(), "dev-1", "temp", models.TimeRange{From: from, To: to, Granularity: models.GranularityDay})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 7.5, rows[0].Avg)
	assert.Equal(t, 1, httpmock.GetTotalCallCount())
}

func TestFetchHistoryHTTPError(t *testing.T) {
	c := newMockedClient(t, 0)
	httpmock.RegisterResponder("GET", testUpstream+"/api/customer/devices/dev-1/measurements/temp/history",
		httpmock.NewStringResponder(502, `bad gateway`))

	_, err := c.FetchHistory(context.Background(), "dev-1", "temp", models.TimeRange{Granularity: models.GranularityHour15m})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrFetchFailure)
	assert.ErrorIs(t, err, ErrHTTPRequestFailed)
	assert.Equal(t, "FETCH_FAILURE", GetErrorCode(err))
}

func TestFetchHistoryBadPayload(t *testing.T) {
	c := newMockedClient(t, 0)
	httpmock.RegisterResponder("GET", testUpstream+"/api/customer/devices/dev-1/measurements/temp/history",
		httpmock.NewStringResponder(200, `{"data":`))

	_, err := c.FetchHistory(context.Background(), "dev-1", "temp", models.TimeRange{})
	assert.ErrorIs(t, err, ErrFetchFailure)
	assert.ErrorIs(t, err, ErrDataUnmarshalFailed)
}

func TestListMeasurementsCached(t *testing.T) {
	c := newMockedClient(t, time.Minute)
	httpmock.RegisterResponder("GET", testUpstream+"/api/customer/history-config",
		httpmock.NewStringResponder(200, `{"measurements":[{"device_id":"dev-1","measurement_id":"temp","measurement_name":"Temperature","unit":"C"}]}`))

	first, err := c.ListMeasurements(context.Background(), "dev-1")
	require.NoError(t, err)
	second, err := c.ListMeasurements(context.Background(), "dev-1")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, httpmock.GetTotalCallCount())

	c.InvalidateCatalog()
	_, err = c.ListMeasurements(context.Background(), "dev-1")
	require.NoError(t, err)
	assert.Equal(t, 2, httpmock.GetTotalCallCount())
}

func TestListMeasurementsFailure(t *testing.T) {
	c := newMockedClient(t, time.Minute)
	httpmock.RegisterResponder("GET", testUpstream+"/api/customer/history-config",
		httpmock.NewStringResponder(500, `{}`))

	_, err := c.ListMeasurements(context.Background(), "dev-1")
	assert.True(t, IsNetworkError(err))
}

func TestListMeasurementsTransportFailure(t *testing.T) {
	c := newMockedClient(t, 0)
	httpmock.RegisterResponder("GET", testUpstream+"/api/customer/history-config",
		httpmock.NewErrorResponder(errors.New("connection refused")))

	_, err := c.ListMeasurements(context.Background(), "dev-1")
	assert.ErrorIs(t, err, ErrNetworkError)
	assert.Equal(t, "CATALOG_FAILURE", GetErrorCode(err))
}
