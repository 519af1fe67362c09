package logics

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go-history/internal/api/models"
	"go-history/internal/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	mu      sync.Mutex
	rows    map[string][]models.RawAggregateRow
	errs    map[string]error
	ranges  []models.TimeRange
	started chan string
	release chan struct{}
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		rows: make(map[string][]models.RawAggregateRow),
		errs: make(map[string]error),
	}
}

func (f *fakeSource) FetchHistory(ctx context.Context, deviceID, measurementID string, r models.TimeRange) ([]models.RawAggregateRow, error) {
	f.mu.Lock()
	f.ranges = append(f.ranges, r)
	started, release := f.started, f.release
	rows, err := f.rows[measurementID], f.errs[measurementID]
	f.mu.Unlock()

	if started != nil {
		started <- measurementID
	}
	if release != nil {
		select {
		case <-release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return rows, err
}

type fakeCatalog struct {
	items []models.Measurement
	err   error
}

func (f *fakeCatalog) ListMeasurements(ctx context.Context, deviceID string) ([]models.Measurement, error) {
	return f.items, f.err
}

type fakeRecorder struct {
	mu      sync.Mutex
	entries []models.JournalEntry
}

func (f *fakeRecorder) Record(ctx context.Context, entries []models.JournalEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, entries...)
	return nil
}

func fixedClock() time.Time { return testNow }

func newTestController(src HistorySource, opts ControllerOptions) *HistoryController {
	opts.Clock = fixedClock
	if opts.Period == "" {
		opts.Period = models.PeriodLastHour
	}
	return NewHistoryController(src, opts)
}

func TestHistoryControllerRefresh(t *testing.T) {
	src := newFakeSource()
	src.rows["temp"] = []models.RawAggregateRow{
		{Bucket: time.Date(2024, 3, 10, 9, 50, 0, 0, time.UTC), Avg: 4, Max: 6, Min: 2, Total: 12},
		{Bucket: time.Date(2024, 3, 10, 10, 31, 0, 0, time.UTC), Avg: 8, Max: 9, Min: 1, Total: 16},
	}
	src.errs["hum"] = errors.New("connection refused")

	catalog := &fakeCatalog{items: []models.Measurement{{ID: "temp", Name: "Temperature", Unit: "C"}}}
	recorder := &fakeRecorder{}
	c := newTestController(src, ControllerOptions{ViewID: "v1", Catalog: catalog, Recorder: recorder})

	assert.True(t, c.SetDevice("dev-1"))
	assert.True(t, c.SelectMeasurement("temp"))
	assert.True(t, c.SelectMeasurement("hum"))

	snap, err := c.Refresh(context.Background())
	require.NoError(t, err)
	require.Len(t, snap.Series, 2)
	assert.Equal(t, uint64(3), snap.Generation)

	temp := snap.Series[0]
	assert.Equal(t, "Temperature", temp.MeasurementName)
	assert.Equal(t, "C", temp.Unit)
	assert.Equal(t, "Avg / 15 min", temp.Subtitle)
	assert.False(t, temp.Failed)
	require.Len(t, temp.Points, 5)
	assert.Equal(t, 4.0, temp.Points[1].Avg)
	assert.Equal(t, 8.0, temp.Points[4].Avg)
	assert.Equal(t, models.Stats{Avg: 6, Max: 9, Min: 1, Total: 28}, temp.Stats)

	hum := snap.Series[1]
	assert.Equal(t, "hum", hum.MeasurementName)
	assert.True(t, hum.Failed)
	assert.Contains(t, hum.Error, "connection refused")
	assert.Len(t, hum.Points, 5)
	assert.Equal(t, models.Stats{}, hum.Stats)

	require.Len(t, recorder.entries, 2)
	assert.Equal(t, "v1", recorder.entries[0].ViewID)
	assert.Equal(t, 2, recorder.entries[0].Rows)
	assert.Equal(t, 5, recorder.entries[0].Buckets)
	assert.True(t, recorder.entries[1].Failed)

	require.Len(t, src.ranges, 2)
	assert.Equal(t, models.GranularityHour15m, src.ranges[0].Granularity)
}

func TestHistoryControllerDiscardsStaleRefresh(t *testing.T) {
	src := newFakeSource()
	src.rows["temp"] = []models.RawAggregateRow{{Bucket: testNow, Avg: 1}}
	src.started = make(chan string, 1)
	src.release = make(chan struct{})

	c := newTestController(src, ControllerOptions{})
	c.SetDevice("dev-1")
	c.SelectMeasurement("temp")

	type result struct {
		snap models.HistorySnapshot
		err  error
	}
	done := make(chan result, 1)
	go func() {
		snap, err := c.Refresh(context.Background())
		done <- result{snap, err}
	}()

	<-src.started
	require.NoError(t, c.SetPeriod(models.PeriodLast7Days))
	close(src.release)

	res := <-done
	require.Error(t, res.err)
	assert.True(t, utils.IsStaleResponse(res.err))

	snap := c.Snapshot()
	assert.Equal(t, models.PeriodLast7Days, snap.Period)
	assert.Empty(t, snap.Series)
	_, ok := c.Series("temp")
	assert.False(t, ok)
}

// gatedSource holds every fetch until its gate is closed. Call n answers a
// single row with Avg n+1.
type gatedSource struct {
	mu      sync.Mutex
	calls   int
	started chan int
	gates   []chan struct{}
}

func newGatedSource(n int) *gatedSource {
	g := &gatedSource{started: make(chan int, n)}
	for i := 0; i < n; i++ {
		g.gates = append(g.gates, make(chan struct{}))
	}
	return g
}

func (g *gatedSource) FetchHistory(ctx context.Context, deviceID, measurementID string, r models.TimeRange) ([]models.RawAggregateRow, error) {
	g.mu.Lock()
	n := g.calls
	g.calls++
	g.mu.Unlock()

	g.started <- n
	<-g.gates[n]
	return []models.RawAggregateRow{{Bucket: testNow, Avg: float64(n + 1)}}, nil
}

func TestHistoryControllerOlderRefreshDoesNotOverwriteNewer(t *testing.T) {
	src := newGatedSource(2)
	c := newTestController(src, ControllerOptions{})
	c.SetDevice("dev-1")
	c.SelectMeasurement("temp")

	type result struct {
		snap models.HistorySnapshot
		err  error
	}
	refresh := func() chan result {
		done := make(chan result, 1)
		go func() {
			snap, err := c.Refresh(context.Background())
			done <- result{snap, err}
		}()
		return done
	}

	first := refresh()
	require.Equal(t, 0, <-src.started)
	second := refresh()
	require.Equal(t, 1, <-src.started)

	close(src.gates[1])
	res := <-second
	require.NoError(t, res.err)
	require.Len(t, res.snap.Series, 1)
	assert.Equal(t, 2.0, res.snap.Series[0].Stats.Avg)

	close(src.gates[0])
	res = <-first
	require.Error(t, res.err)
	assert.True(t, utils.IsStaleResponse(res.err))

	s, ok := c.Series("temp")
	require.True(t, ok)
	assert.Equal(t, 2.0, s.Stats.Avg)
}

func TestHistoryControllerConcurrentToggles(t *testing.T) {
	c := newTestController(newFakeSource(), ControllerOptions{Capacity: 3})
	c.SetDevice("dev-1")
	start := c.Generation()

	const toggles = 50
	var wg sync.WaitGroup
	var mu sync.Mutex
	effective := 0
	for i := 0; i < toggles; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if c.ToggleMeasurement("temp") {
				mu.Lock()
				effective++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, toggles, effective)
	assert.Equal(t, start+toggles, c.Generation())
	assert.Empty(t, c.Snapshot().Selection)
}

func TestHistoryControllerSelectionCap(t *testing.T) {
	c := newTestController(newFakeSource(), ControllerOptions{Capacity: 3})
	c.SetDevice("dev-1")
	for _, id := range []string{"a", "b", "c"} {
		assert.True(t, c.SelectMeasurement(id))
	}
	gen := c.Generation()

	assert.False(t, c.SelectMeasurement("d"))
	assert.Equal(t, gen, c.Generation())
	assert.Equal(t, []string{"a", "b", "c"}, c.Snapshot().Selection)

	assert.True(t, c.ToggleMeasurement("b"))
	assert.True(t, c.ToggleMeasurement("d"))
	assert.Equal(t, []string{"a", "c", "d"}, c.Snapshot().Selection)
}

func TestHistoryControllerSetPeriodInvalid(t *testing.T) {
	c := newTestController(newFakeSource(), ControllerOptions{})
	gen := c.Generation()

	err := c.SetPeriod("Last decade")
	assert.ErrorIs(t, err, utils.ErrInvalidRange)
	assert.Equal(t, models.PeriodLastHour, c.Snapshot().Period)
	assert.Equal(t, gen, c.Generation())

	require.NoError(t, c.SetPeriod(models.PeriodLastHour))
	assert.Equal(t, gen, c.Generation())
}

func TestHistoryControllerSetDeviceClearsSelection(t *testing.T) {
	src := newFakeSource()
	c := newTestController(src, ControllerOptions{})
	c.SetDevice("dev-1")
	c.SelectMeasurement("temp")
	_, err := c.Refresh(context.Background())
	require.NoError(t, err)

	assert.True(t, c.SetDevice("dev-2"))
	assert.False(t, c.SetDevice("dev-2"))
	snap := c.Snapshot()
	assert.Empty(t, snap.Selection)
	assert.Empty(t, snap.Series)
}

func TestHistoryControllerEmptySelection(t *testing.T) {
	src := newFakeSource()
	c := newTestController(src, ControllerOptions{})
	c.SetDevice("dev-1")

	snap, err := c.Refresh(context.Background())
	require.NoError(t, err)
	assert.Empty(t, snap.Series)
	assert.Empty(t, src.ranges)
}

func TestHistoryControllerCatalogFailureFallsBackToIDs(t *testing.T) {
	src := newFakeSource()
	c := newTestController(src, ControllerOptions{Catalog: &fakeCatalog{err: errors.New("down")}})
	c.SetDevice("dev-1")
	c.SelectMeasurement("temp")

	snap, err := c.Refresh(context.Background())
	require.NoError(t, err)
	require.Len(t, snap.Series, 1)
	assert.Equal(t, "temp", snap.Series[0].MeasurementName)
}

func TestHistoryControllerDisclosureAndLayout(t *testing.T) {
	src := newFakeSource()
	src.rows["temp"] = []models.RawAggregateRow{{Bucket: time.Date(2024, 3, 10, 10, 0, 0, 0, time.UTC), Avg: 5, Max: 10, Min: 1}}
	c := newTestController(src, ControllerOptions{})
	c.SetDevice("dev-1")
	c.SelectMeasurement("temp")

	_, err := c.ToggleDisclosure("temp", PointKey{Series: OverlayMax, Index: 2})
	assert.ErrorIs(t, err, utils.ErrUnknownSeries)

	_, err = c.Refresh(context.Background())
	require.NoError(t, err)

	visible, err := c.ToggleDisclosure("temp", PointKey{Series: OverlayMax, Index: 2})
	require.NoError(t, err)
	assert.True(t, visible)

	layout, series, err := c.Layout("temp", 20, DefaultChartOptions())
	require.NoError(t, err)
	assert.Equal(t, "temp", series.MeasurementID)
	require.Len(t, layout.Bars, 5)
	assert.True(t, layout.Overlays[0].Vertices[2].Visible)
	assert.False(t, layout.Overlays[1].Vertices[2].Visible)
	assert.InDelta(t, 12.0, layout.MaxValue, 1e-9)

	_, _, err = c.Layout("missing", 20, DefaultChartOptions())
	assert.ErrorIs(t, err, utils.ErrUnknownSeries)

	assert.True(t, c.DeselectMeasurement("temp"))
	_, ok := c.Series("temp")
	assert.False(t, ok)
}

func TestLoadSeriesDoesNotCancelSiblings(t *testing.T) {
	src := newFakeSource()
	src.errs["bad"] = errors.New("boom")
	src.rows["good"] = []models.RawAggregateRow{{Bucket: testNow, Avg: 2}}

	r, err := ResolveRange(models.PeriodLastHour, testNow)
	require.NoError(t, err)

	series, counts := LoadSeries(context.Background(), src, "dev-1", []string{"bad", "good"}, nil, r, models.DefaultGranularityPolicy, time.Second)
	require.Len(t, series, 2)
	assert.True(t, series[0].Failed)
	assert.False(t, series[1].Failed)
	assert.Equal(t, []int{0, 1}, counts)
	assert.Equal(t, 2.0, series[1].Stats.Avg)
}
