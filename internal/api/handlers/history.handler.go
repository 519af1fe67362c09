package handlers

import (
	"context"
	"fmt"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/a-h/templ"
	"github.com/go-chi/chi/v5"

	"go-history/internal/api/logics"
	"go-history/internal/api/models"
	"go-history/internal/config"
	"go-history/internal/utils"
	"go-history/web/views"
)

// HistoryDeps wires the history handlers to their collaborators.
type HistoryDeps struct {
	Source         logics.HistorySource
	Catalog        logics.MeasurementCatalog
	Journal        *logics.Journal
	Checker        *logics.HealthChecker
	Config         func() *models.HistoryConfig
	Clock          func() time.Time
	DefaultPeriod  models.PeriodLabel
	RefreshTimeout time.Duration
	ViewCapacity   int
}

// HistoryHandler serves the history page, the stateless history endpoint
// and the stateful view endpoints.
type HistoryHandler struct {
	deps     HistoryDeps
	registry *logics.ViewRegistry
}

type deviceRequest struct {
	DeviceID string `json:"device_id"`
}

type periodRequest struct {
	Period string `json:"period"`
}

type createViewRequest struct {
	DeviceID     string   `json:"device_id"`
	Period       string   `json:"period"`
	Measurements []string `json:"measurements"`
}

func NewHistoryHandler(deps HistoryDeps) (*HistoryHandler, error) {
	if deps.Clock == nil {
		deps.Clock = utils.NowDefault
	}
	if deps.Config == nil {
		deps.Config = logics.GetHistoryConfig
	}
	if deps.DefaultPeriod == "" {
		deps.DefaultPeriod = models.PeriodLabel(config.GetEnvConfig().GetDefaultPeriod())
	}

	h := &HistoryHandler{deps: deps}
	registry, err := logics.NewViewRegistry(deps.ViewCapacity, h.newController)
	if err != nil {
		return nil, err
	}
	h.registry = registry
	return h, nil
}

func (h *HistoryHandler) newController(viewID string) *logics.HistoryController {
	cfg := h.deps.Config()
	opts := logics.ControllerOptions{
		ViewID:       viewID,
		Period:       h.deps.DefaultPeriod,
		Policy:       cfg.Policy,
		Capacity:     cfg.Capacity,
		FetchTimeout: h.deps.RefreshTimeout,
		Clock:        h.deps.Clock,
		Catalog:      h.deps.Catalog,
	}
	if h.deps.Journal.Enabled() {
		opts.Recorder = h.deps.Journal
	}
	return logics.NewHistoryController(h.deps.Source, opts)
}

// Routes mounts the API endpoints on r.
func (h *HistoryHandler) Routes(r chi.Router) {
	r.Get("/devices/{device}/measurements", h.Measurements)
	r.Get("/devices/{device}/history", h.History)

	r.Post("/views", h.CreateView)
	r.Route("/views/{view}", func(r chi.Router) {
		r.Get("/", h.GetView)
		r.Delete("/", h.DeleteView)
		r.Put("/device", h.SetDevice)
		r.Put("/period", h.SetPeriod)
		r.Post("/measurements/{measurement}", h.SelectMeasurement)
		r.Delete("/measurements/{measurement}", h.DeselectMeasurement)
		r.Post("/refresh", h.Refresh)
		r.Get("/series", h.GetView)
		r.Get("/chart/{measurement}.svg", h.ChartSVG)
		r.Get("/chart/{measurement}/layout", h.ChartLayout)
		r.Post("/chart/{measurement}/toggle", h.ToggleDisclosure)
	})

	r.Get("/journal", h.Journal)
}

// Page serves the history page.
func (h *HistoryHandler) Page(w http.ResponseWriter, r *http.Request) {
	cfg := h.deps.Config()
	page := views.HistoryPage(views.PageProps{
		Title:           "Device history",
		DefaultPeriod:   h.deps.DefaultPeriod,
		MaxMeasurements: cfg.Capacity,
		MaxBars:         cfg.MaxBars,
		Devices:         cfg.Devices,
	})
	templ.Handler(page).ServeHTTP(w, r)
}

// Measurements lists the measurements of a device.
func (h *HistoryHandler) Measurements(w http.ResponseWriter, r *http.Request) {
	deviceID := chi.URLParam(r, "device")
	if h.deps.Catalog == nil {
		writeJSON(w, http.StatusOK, map[string]any{"device_id": deviceID, "measurements": []models.Measurement{}, "count": 0})
		return
	}
	list, err := h.deps.Catalog.ListMeasurements(r.Context(), deviceID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"device_id":    deviceID,
		"measurements": list,
		"count":        len(list),
	})
}

// History runs the whole pipeline for one request without keeping state.
// Query: period, measurement (repeatable or comma separated), bars.
func (h *HistoryHandler) History(w http.ResponseWriter, r *http.Request) {
	deviceID := chi.URLParam(r, "device")
	cfg := h.deps.Config()
	q := r.URL.Query()

	period := h.deps.DefaultPeriod
	if raw := strings.TrimSpace(q.Get("period")); raw != "" {
		p, err := logics.ParsePeriodLabel(raw)
		if err != nil {
			writeError(w, err)
			return
		}
		period = p
	}

	selection := logics.NewMeasurementSelection(cfg.Capacity)
	for _, raw := range q["measurement"] {
		for _, id := range strings.Split(raw, ",") {
			id = strings.TrimSpace(id)
			if id == "" || selection.Contains(id) {
				continue
			}
			if !selection.Add(id) {
				writeError(w, utils.NewCategorizedError(utils.ErrorTypeValidation, "SELECTION_FULL",
					fmt.Sprintf("at most %d measurements can be requested", selection.Capacity()), utils.ErrSelectionFull))
				return
			}
		}
	}

	bars, err := parseOptionalInt(q.Get("bars"))
	if err != nil {
		writeError(w, err)
		return
	}

	now := h.deps.Clock()
	rng, err := logics.ResolveRange(period, now)
	if err != nil {
		writeError(w, err)
		return
	}

	ctx, cancel := h.refreshContext(r.Context())
	defer cancel()

	snap := models.HistorySnapshot{
		DeviceID:  deviceID,
		Period:    period,
		Selection: selection.IDs(),
		Series:    []models.ChartSeries{},
		UpdatedAt: now,
	}
	if selection.Len() > 0 {
		names := logics.LookupMeasurements(ctx, h.deps.Catalog, deviceID)
		snap.Series, _ = logics.LoadSeries(ctx, h.deps.Source, deviceID, snap.Selection, names, rng, cfg.Policy, h.deps.RefreshTimeout)
	}
	if bars > 0 {
		for i := range snap.Series {
			snap.Series[i].Points = logics.Downsample(snap.Series[i].Points, bars)
		}
	}
	writeJSON(w, http.StatusOK, snap)
}

// CreateView registers a new view, optionally seeded with device, period and selection.
func (h *HistoryHandler) CreateView(w http.ResponseWriter, r *http.Request) {
	var req createViewRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	var period models.PeriodLabel
	if strings.TrimSpace(req.Period) != "" {
		p, err := logics.ParsePeriodLabel(req.Period)
		if err != nil {
			writeError(w, err)
			return
		}
		period = p
	}
	c := h.registry.Create()
	if period != "" {
		_ = c.SetPeriod(period)
	}
	if req.DeviceID != "" {
		c.SetDevice(req.DeviceID)
		for _, id := range req.Measurements {
			c.SelectMeasurement(strings.TrimSpace(id))
		}
	}
	writeJSON(w, http.StatusCreated, c.Snapshot())
}

func (h *HistoryHandler) view(w http.ResponseWriter, r *http.Request) (*logics.HistoryController, bool) {
	c, err := h.registry.Get(chi.URLParam(r, "view"))
	if err != nil {
		writeError(w, err)
		return nil, false
	}
	return c, true
}

func (h *HistoryHandler) GetView(w http.ResponseWriter, r *http.Request) {
	c, ok := h.view(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, c.Snapshot())
}

func (h *HistoryHandler) DeleteView(w http.ResponseWriter, r *http.Request) {
	if !h.registry.Delete(chi.URLParam(r, "view")) {
		writeError(w, utils.NewUnknownViewError(chi.URLParam(r, "view")))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *HistoryHandler) SetDevice(w http.ResponseWriter, r *http.Request) {
	c, ok := h.view(w, r)
	if !ok {
		return
	}
	var req deviceRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if utils.IsEmptyOrWhitespace(req.DeviceID) {
		writeError(w, utils.NewValidationError("MISSING_DEVICE", "device_id is required", utils.ErrValidationFailed))
		return
	}
	c.SetDevice(strings.TrimSpace(req.DeviceID))
	writeJSON(w, http.StatusOK, c.Snapshot())
}

func (h *HistoryHandler) SetPeriod(w http.ResponseWriter, r *http.Request) {
	c, ok := h.view(w, r)
	if !ok {
		return
	}
	var req periodRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	period, err := logics.ParsePeriodLabel(req.Period)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := c.SetPeriod(period); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c.Snapshot())
}

// SelectMeasurement adds a measurement. A full selection answers 409 and
// leaves the state unchanged.
func (h *HistoryHandler) SelectMeasurement(w http.ResponseWriter, r *http.Request) {
	c, ok := h.view(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "measurement")
	if !c.SelectMeasurement(id) {
		snap := c.Snapshot()
		if !slices.Contains(snap.Selection, id) {
			writeError(w, utils.NewCategorizedError(utils.ErrorTypeConflict, "SELECTION_FULL",
				fmt.Sprintf("selection already holds %d measurements", len(snap.Selection)), utils.ErrSelectionFull))
			return
		}
	}
	writeJSON(w, http.StatusOK, c.Snapshot())
}

func (h *HistoryHandler) DeselectMeasurement(w http.ResponseWriter, r *http.Request) {
	c, ok := h.view(w, r)
	if !ok {
		return
	}
	c.DeselectMeasurement(chi.URLParam(r, "measurement"))
	writeJSON(w, http.StatusOK, c.Snapshot())
}

// Refresh reloads every selected series. A refresh overtaken by a newer
// change answers 409.
func (h *HistoryHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	c, ok := h.view(w, r)
	if !ok {
		return
	}
	ctx, cancel := h.refreshContext(r.Context())
	defer cancel()

	snap, err := c.Refresh(ctx)
	if err != nil {
		if utils.IsStaleResponse(err) {
			utils.LogDebugWithContext("history", fmt.Sprintf("refresh of view %s superseded", c.ViewID()), err)
		}
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (h *HistoryHandler) layout(w http.ResponseWriter, r *http.Request) (logics.ChartLayout, models.ChartSeries, bool) {
	c, ok := h.view(w, r)
	if !ok {
		return logics.ChartLayout{}, models.ChartSeries{}, false
	}
	cfg := h.deps.Config()
	maxBars := cfg.MaxBars
	if bars, err := parseOptionalInt(r.URL.Query().Get("bars")); err == nil && bars > 0 {
		maxBars = bars
	}
	layout, series, err := c.Layout(chi.URLParam(r, "measurement"), maxBars, logics.ChartOptionsFromConfig(cfg.Chart))
	if err != nil {
		writeError(w, err)
		return logics.ChartLayout{}, models.ChartSeries{}, false
	}
	return layout, series, true
}

// ChartSVG renders a loaded series as SVG.
func (h *HistoryHandler) ChartSVG(w http.ResponseWriter, r *http.Request) {
	layout, series, ok := h.layout(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "image/svg+xml")
	w.Header().Set("Cache-Control", "no-store")
	if err := views.ChartSVG(views.ChartProps{ViewID: chi.URLParam(r, "view"), Series: series, Layout: layout}).Render(r.Context(), w); err != nil {
		utils.LogWarnWithContext("http", "failed to render chart", err)
	}
}

// ChartLayout returns the chart geometry as JSON.
func (h *HistoryHandler) ChartLayout(w http.ResponseWriter, r *http.Request) {
	layout, series, ok := h.layout(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"measurement_id": series.MeasurementID,
		"subtitle":       series.Subtitle,
		"stats":          series.Stats,
		"layout":         layout,
	})
}

// ToggleDisclosure flips one overlay value label. Query: series, index.
func (h *HistoryHandler) ToggleDisclosure(w http.ResponseWriter, r *http.Request) {
	c, ok := h.view(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	kind, valid := logics.ParseOverlayKind(q.Get("series"))
	if !valid {
		writeError(w, utils.NewValidationError("INVALID_SERIES", fmt.Sprintf("unknown overlay %q", q.Get("series")), utils.ErrValidationFailed))
		return
	}
	index, err := strconv.Atoi(q.Get("index"))
	if err != nil || index < 0 {
		writeError(w, utils.NewValidationError("INVALID_INDEX", "index must be a non-negative integer", utils.ErrValidationFailed))
		return
	}

	measurementID := chi.URLParam(r, "measurement")
	visible, err := c.ToggleDisclosure(measurementID, logics.PointKey{Series: kind, Index: index})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"measurement_id": measurementID,
		"series":         kind,
		"index":          index,
		"visible":        visible,
	})
}

// Health reports resource usage and the upstream heartbeat. A down upstream answers 503.
func (h *HistoryHandler) Health(w http.ResponseWriter, r *http.Request) {
	checker := h.deps.Checker
	if checker == nil {
		checker = logics.NewHealthChecker("", nil, 0)
	}
	report := checker.Report(r.Context())
	report.Storage = h.deps.Journal.Backends()
	report.Views = h.registry.Len()

	status := http.StatusOK
	if !report.Status {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, report)
}

// Journal lists recorded refresh summaries. Query: from, to, device, limit.
func (h *HistoryHandler) Journal(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var filter utils.JournalFilter
	var err error

	if raw := q.Get("from"); raw != "" {
		if filter.From, err = utils.ParseTimestamp(raw); err != nil {
			writeError(w, utils.NewValidationError("INVALID_FROM", "invalid from timestamp", err))
			return
		}
	}
	if raw := q.Get("to"); raw != "" {
		if filter.To, err = utils.ParseTimestamp(raw); err != nil {
			writeError(w, utils.NewValidationError("INVALID_TO", "invalid to timestamp", err))
			return
		}
	}
	if filter.Limit, err = parseOptionalInt(q.Get("limit")); err != nil {
		writeError(w, err)
		return
	}
	filter.DeviceID = strings.TrimSpace(q.Get("device"))

	entries, err := h.deps.Journal.Query(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"entries": entries,
		"count":   len(entries),
	})
}

func (h *HistoryHandler) refreshContext(parent context.Context) (context.Context, context.CancelFunc) {
	if h.deps.RefreshTimeout > 0 {
		return context.WithTimeout(parent, h.deps.RefreshTimeout)
	}
	return context.WithCancel(parent)
}

func parseOptionalInt(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, utils.NewValidationError("INVALID_NUMBER", fmt.Sprintf("invalid number %q", raw), utils.ErrValidationFailed)
	}
	return n, nil
}
