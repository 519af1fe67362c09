package logics

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go-history/internal/api/models"
	"go-history/internal/utils"

	"golang.org/x/sync/errgroup"
)

// HistorySource fetches raw aggregate rows for one measurement.
type HistorySource interface {
	FetchHistory(ctx context.Context, deviceID, measurementID string, r models.TimeRange) ([]models.RawAggregateRow, error)
}

// MeasurementCatalog names the measurements of a device.
type MeasurementCatalog interface {
	ListMeasurements(ctx context.Context, deviceID string) ([]models.Measurement, error)
}

// SeriesRecorder receives one journal entry per series after each applied refresh.
type SeriesRecorder interface {
	Record(ctx context.Context, entries []models.JournalEntry) error
}

// ControllerOptions configures a HistoryController. Zero values select defaults.
type ControllerOptions struct {
	ViewID       string
	Period       models.PeriodLabel
	Policy       models.GranularityPolicy
	Capacity     int
	FetchTimeout time.Duration
	Clock        func() time.Time
	Catalog      MeasurementCatalog
	Recorder     SeriesRecorder
}

// HistoryController owns the screen state of one history view: device,
// period, selection and the series computed for them. Every effective
// change bumps the generation; a refresh started under an older generation
// is discarded with utils.ErrStaleResponse instead of being applied. Refreshes
// are also numbered so an older one never overwrites the result of a newer
// one that finished first.
type HistoryController struct {
	source HistorySource
	opts   ControllerOptions

	mu         sync.Mutex
	deviceID   string
	period     models.PeriodLabel
	selection  *MeasurementSelection
	generation uint64
	refreshSeq uint64
	appliedSeq uint64
	series     map[string]models.ChartSeries
	disclosure map[string]*Disclosure
	updatedAt  time.Time
}

func NewHistoryController(source HistorySource, opts ControllerOptions) *HistoryController {
	if opts.Clock == nil {
		opts.Clock = utils.NowDefault
	}
	if opts.Period == "" {
		opts.Period = models.PeriodLast24h
	}
	if opts.Policy == (models.GranularityPolicy{}) {
		opts.Policy = models.DefaultGranularityPolicy
	}
	opts.Policy = opts.Policy.Normalized()

	return &HistoryController{
		source:     source,
		opts:       opts,
		period:     opts.Period,
		selection:  NewMeasurementSelection(opts.Capacity),
		series:     make(map[string]models.ChartSeries),
		disclosure: make(map[string]*Disclosure),
	}
}

// ViewID returns the registry id of the view, if any.
func (c *HistoryController) ViewID() string { return c.opts.ViewID }

// Policy returns the granularity policy in effect.
func (c *HistoryController) Policy() models.GranularityPolicy { return c.opts.Policy }

// Generation returns the current request generation.
func (c *HistoryController) Generation() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generation
}

// SetDevice switches the device, clearing the selection and any loaded series.
func (c *HistoryController) SetDevice(deviceID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if deviceID == c.deviceID {
		return false
	}
	c.deviceID = deviceID
	c.selection.Clear()
	c.series = make(map[string]models.ChartSeries)
	c.disclosure = make(map[string]*Disclosure)
	c.generation++
	return true
}

// SetPeriod switches the period. An unknown label fails with
// utils.ErrInvalidRange and leaves the state untouched.
func (c *HistoryController) SetPeriod(label models.PeriodLabel) error {
	if _, err := ResolveRange(label, c.opts.Clock()); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if label == c.period {
		return nil
	}
	c.period = label
	c.series = make(map[string]models.ChartSeries)
	c.disclosure = make(map[string]*Disclosure)
	c.generation++
	return nil
}

// SelectMeasurement adds id to the selection. A full selection or an id
// already selected is a no-op reported as false.
func (c *HistoryController) SelectMeasurement(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.selectLocked(id)
}

func (c *HistoryController) selectLocked(id string) bool {
	if !c.selection.Add(id) {
		return false
	}
	c.generation++
	return true
}

// DeselectMeasurement removes id and drops its series.
func (c *HistoryController) DeselectMeasurement(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.deselectLocked(id)
}

func (c *HistoryController) deselectLocked(id string) bool {
	if !c.selection.Remove(id) {
		return false
	}
	delete(c.series, id)
	delete(c.disclosure, id)
	c.generation++
	return true
}

// ToggleMeasurement selects or deselects id.
func (c *HistoryController) ToggleMeasurement(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.selection.Contains(id) {
		return c.deselectLocked(id)
	}
	return c.selectLocked(id)
}

type refreshRequest struct {
	seq        uint64
	generation uint64
	deviceID   string
	period     models.PeriodLabel
	ids        []string
}

// Refresh resolves the current period, fetches every selected measurement
// in parallel and applies the result if nothing changed meanwhile. A failed
// fetch yields an empty series flagged Failed; the others are unaffected.
func (c *HistoryController) Refresh(ctx context.Context) (models.HistorySnapshot, error) {
	c.mu.Lock()
	c.refreshSeq++
	req := refreshRequest{
		seq:        c.refreshSeq,
		generation: c.generation,
		deviceID:   c.deviceID,
		period:     c.period,
		ids:        c.selection.IDs(),
	}
	c.mu.Unlock()

	now := c.opts.Clock()
	r, err := ResolveRange(req.period, now)
	if err != nil {
		return models.HistorySnapshot{}, err
	}

	var series []models.ChartSeries
	var rowCounts []int
	if req.deviceID != "" && len(req.ids) > 0 {
		names := LookupMeasurements(ctx, c.opts.Catalog, req.deviceID)
		series, rowCounts = LoadSeries(ctx, c.source, req.deviceID, req.ids, names, r, c.opts.Policy, c.opts.FetchTimeout)
	}

	c.mu.Lock()
	if c.generation != req.generation || req.seq < c.appliedSeq {
		current, applied := c.generation, c.appliedSeq
		c.mu.Unlock()
		staleErr := utils.NewStaleResponseError(req.generation, current).
			WithContext("refresh", req.seq).
			WithContext("applied_refresh", applied)
		utils.LogDebugWithContext("history", fmt.Sprintf("discarding refresh for view %q", c.opts.ViewID), staleErr)
		return models.HistorySnapshot{}, staleErr
	}
	c.appliedSeq = req.seq
	c.series = make(map[string]models.ChartSeries, len(series))
	for _, s := range series {
		c.series[s.MeasurementID] = s
	}
	c.updatedAt = now
	snap := c.snapshotLocked()
	c.mu.Unlock()

	if c.opts.Recorder != nil && len(series) > 0 {
		entries := journalEntries(c.opts.ViewID, req, r, series, rowCounts, now)
		if err := c.opts.Recorder.Record(ctx, entries); err != nil {
			utils.LogWarnWithContext("history", "failed to record journal entries", err)
		}
	}
	return snap, nil
}

// Snapshot returns the current state with series in selection order.
func (c *HistoryController) Snapshot() models.HistorySnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *HistoryController) snapshotLocked() models.HistorySnapshot {
	ids := c.selection.IDs()
	snap := models.HistorySnapshot{
		ViewID:     c.opts.ViewID,
		DeviceID:   c.deviceID,
		Period:     c.period,
		Selection:  ids,
		Generation: c.generation,
		Series:     make([]models.ChartSeries, 0, len(ids)),
		UpdatedAt:  c.updatedAt,
	}
	for _, id := range ids {
		if s, ok := c.series[id]; ok {
			snap.Series = append(snap.Series, s)
		}
	}
	return snap
}

// Series returns the loaded series of id.
func (c *HistoryController) Series(id string) (models.ChartSeries, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.series[id]
	return s, ok
}

// ToggleDisclosure flips the value label of one overlay vertex of a loaded series.
func (c *HistoryController) ToggleDisclosure(measurementID string, key PointKey) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.series[measurementID]; !ok {
		return false, utils.NewCategorizedError(utils.ErrorTypeNotFound, "UNKNOWN_SERIES", fmt.Sprintf("series %s is not loaded", measurementID), utils.ErrUnknownSeries)
	}
	d, ok := c.disclosure[measurementID]
	if !ok {
		d = NewDisclosure()
		c.disclosure[measurementID] = d
	}
	return d.Toggle(key), nil
}

// Layout downsamples a loaded series to maxBars and lays it out with the
// current disclosure state.
func (c *HistoryController) Layout(measurementID string, maxBars int, opts ChartOptions) (ChartLayout, models.ChartSeries, error) {
	c.mu.Lock()
	s, ok := c.series[measurementID]
	d := c.disclosure[measurementID].clone()
	c.mu.Unlock()
	if !ok {
		return ChartLayout{}, models.ChartSeries{}, utils.NewCategorizedError(utils.ErrorTypeNotFound, "UNKNOWN_SERIES", fmt.Sprintf("series %s is not loaded", measurementID), utils.ErrUnknownSeries)
	}
	return LayoutChart(Downsample(s.Points, maxBars), opts, d), s, nil
}

// LoadSeries fetches every id in parallel and builds one series per id, in
// order. Fetch errors never cancel sibling fetches. The second result holds
// the raw row count of each series.
func LoadSeries(ctx context.Context, source HistorySource, deviceID string, ids []string, names map[string]models.Measurement, r models.TimeRange, policy models.GranularityPolicy, timeout time.Duration) ([]models.ChartSeries, []int) {
	series := make([]models.ChartSeries, len(ids))
	counts := make([]int, len(ids))
	buckets := GenerateBuckets(r, policy)

	g, gctx := errgroup.WithContext(ctx)
	for i, id := range ids {
		i, id := i, id
		g.Go(func() error {
			fctx := gctx
			if timeout > 0 {
				var cancel context.CancelFunc
				fctx, cancel = context.WithTimeout(gctx, timeout)
				defer cancel()
			}

			m, ok := names[id]
			if !ok {
				m = models.Measurement{ID: id, Name: id}
			}

			rows, err := source.FetchHistory(fctx, deviceID, id, r)
			if err != nil {
				if !utils.IsNetworkError(err) {
					err = utils.NewFetchFailureError(id, err)
				}
				utils.LogWarnWithContext("history", fmt.Sprintf("fetch failed for %s/%s", deviceID, id), err)
				rows = nil
			}
			series[i] = BuildSeries(m, rows, buckets, r, policy, err)
			counts[i] = len(rows)
			return nil
		})
	}
	_ = g.Wait()
	return series, counts
}

// BuildSeries merges rows onto buckets and summarizes them. A non-nil
// fetchErr marks the series as failed.
func BuildSeries(m models.Measurement, rows []models.RawAggregateRow, buckets []time.Time, r models.TimeRange, policy models.GranularityPolicy, fetchErr error) models.ChartSeries {
	rows = AlignRows(rows, r.From.Location())
	s := models.ChartSeries{
		MeasurementID:   m.ID,
		MeasurementName: m.Name,
		Unit:            m.Unit,
		Subtitle:        SubtitleFor(r.Granularity, policy),
		Range:           r,
		Points:          MergeSeries(rows, buckets, r.Granularity, policy),
		Stats:           SummarizeRows(rows),
	}
	if fetchErr != nil {
		s.Failed = true
		s.Error = fetchErr.Error()
	}
	return s
}

// LookupMeasurements indexes the catalog of deviceID by id. Catalog failures
// are logged and yield an empty index.
func LookupMeasurements(ctx context.Context, catalog MeasurementCatalog, deviceID string) map[string]models.Measurement {
	out := make(map[string]models.Measurement)
	if catalog == nil {
		return out
	}
	list, err := catalog.ListMeasurements(ctx, deviceID)
	if err != nil {
		utils.LogWarnWithContext("history", fmt.Sprintf("measurement catalog unavailable for %s", deviceID), err)
		return out
	}
	for _, m := range list {
		out[m.ID] = m
	}
	return out
}

func journalEntries(viewID string, req refreshRequest, r models.TimeRange, series []models.ChartSeries, counts []int, now time.Time) []models.JournalEntry {
	entries := make([]models.JournalEntry, 0, len(series))
	for i, s := range series {
		entries = append(entries, models.JournalEntry{
			Time:          now,
			ViewID:        viewID,
			DeviceID:      req.deviceID,
			MeasurementID: s.MeasurementID,
			Period:        req.period,
			Granularity:   r.Granularity,
			From:          r.From,
			To:            r.To,
			Buckets:       len(s.Points),
			Rows:          counts[i],
			Stats:         s.Stats,
			Failed:        s.Failed,
		})
	}
	return entries
}
