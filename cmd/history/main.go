package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/spf13/cobra"

	"go-history/internal/api/logics"
	"go-history/internal/api/models"
	"go-history/internal/config"
	"go-history/internal/utils"
)

type Options struct {
	ServerURL    string
	DeviceID     string
	Period       string
	Measurements []string
	RefreshRate  time.Duration
	Bars         int
}

// fetchFunc loads one snapshot, either locally or from a remote server.
type fetchFunc func(ctx context.Context) (models.HistorySnapshot, error)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var opts Options

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show aggregated measurement history of a device in the terminal",
		Example: "  history --device dev-1 --period 24h -m temperature -m humidity\n" +
			"  history --url http://localhost:3500 --device dev-1 --period month -m power --refresh 30s",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(context.Background(), opts)
		},
	}

	env := config.GetEnvConfig()
	flags := cmd.Flags()
	flags.StringVar(&opts.ServerURL, "url", "", "go-history server URL (empty queries the upstream directly)")
	flags.StringVarP(&opts.DeviceID, "device", "d", "", "Device id")
	flags.StringVarP(&opts.Period, "period", "p", env.GetDefaultPeriod(), "Period: 1h, 24h, 7d, month, year or a full label")
	flags.StringArrayVarP(&opts.Measurements, "measurement", "m", nil, "Measurement id (repeatable)")
	flags.DurationVar(&opts.RefreshRate, "refresh", 0, "Refresh rate (0 renders once)")
	flags.IntVar(&opts.Bars, "bars", 0, "Maximum number of bars per series (0 uses max_bars of the history config)")
	_ = cmd.MarkFlagRequired("device")

	return cmd
}

func run(ctx context.Context, opts Options) error {
	period, err := logics.ParsePeriodLabel(opts.Period)
	if err != nil {
		return err
	}
	ids := splitMeasurements(opts.Measurements)
	cfg := logics.GetHistoryConfig()
	if len(ids) > cfg.Capacity {
		return fmt.Errorf("at most %d measurements can be shown, got %d: %w", cfg.Capacity, len(ids), utils.ErrSelectionFull)
	}
	if opts.Bars <= 0 {
		opts.Bars = cfg.MaxBars
	}

	var fetch fetchFunc
	if opts.ServerURL == "" {
		fetch = localFetcher(cfg, opts.DeviceID, period, ids)
	} else {
		fetch = remoteFetcher(opts, period, ids)
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if opts.RefreshRate <= 0 {
		snap, err := fetch(ctx)
		if err != nil {
			return err
		}
		renderSnapshot(os.Stdout, snap, opts.Bars)
		return nil
	}

	ticker := time.NewTicker(opts.RefreshRate)
	defer ticker.Stop()
	for {
		snap, err := fetch(ctx)
		clearScreen()
		if err != nil {
			renderError(os.Stdout, err)
		} else {
			renderSnapshot(os.Stdout, snap, opts.Bars)
		}
		fmt.Printf("\nControls: Ctrl+C to exit | Refresh: %v | %s\n", opts.RefreshRate, modeLabel(opts))

		select {
		case <-ctx.Done():
			cleanup()
			return nil
		case <-ticker.C:
		}
	}
}

func splitMeasurements(values []string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, v := range values {
		for _, id := range strings.Split(v, ",") {
			id = strings.TrimSpace(id)
			if id == "" || seen[id] {
				continue
			}
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

// controllerOptions applies the merged history config (env plus history.yaml)
// to a local controller.
func controllerOptions(cfg *models.HistoryConfig, period models.PeriodLabel) logics.ControllerOptions {
	return logics.ControllerOptions{
		Period:       period,
		Policy:       cfg.Policy,
		Capacity:     cfg.Capacity,
		FetchTimeout: config.GetEnvConfig().HistoryRefreshTimeout,
	}
}

// localFetcher drives a controller against the upstream API.
func localFetcher(cfg *models.HistoryConfig, deviceID string, period models.PeriodLabel, ids []string) fetchFunc {
	utils.InitTimeConfig()
	client := utils.NewHistoryClientFromEnv()
	opts := controllerOptions(cfg, period)
	opts.Catalog = client
	c := logics.NewHistoryController(client, opts)
	c.SetDevice(deviceID)
	for _, id := range ids {
		c.SelectMeasurement(id)
	}
	return c.Refresh
}

// remoteFetcher calls the stateless history endpoint of a go-history server.
func remoteFetcher(opts Options, period models.PeriodLabel, ids []string) fetchFunc {
	client := resty.New().
		SetHostURL(strings.TrimRight(opts.ServerURL, "/")).
		SetTimeout(30*time.Second).
		SetHeader("Accept", "application/json")

	return func(ctx context.Context) (models.HistorySnapshot, error) {
		var snap models.HistorySnapshot
		var apiErr struct {
			Error string `json:"error"`
		}
		req := client.R().
			SetContext(ctx).
			SetPathParam("device", opts.DeviceID).
			SetQueryParam("period", string(period)).
			SetResult(&snap).
			SetError(&apiErr)
		for _, id := range ids {
			req.QueryParam.Add("measurement", id)
		}
		if opts.Bars > 0 {
			req.SetQueryParam("bars", fmt.Sprint(opts.Bars))
		}

		resp, err := req.Get("/api/v1/devices/{device}/history")
		if err != nil {
			return snap, utils.NewNetworkError("REMOTE_FAILED", "remote history request failed", err)
		}
		if resp.StatusCode() != http.StatusOK {
			msg := apiErr.Error
			if msg == "" {
				msg = resp.Status()
			}
			return snap, fmt.Errorf("HTTP %d: %s", resp.StatusCode(), msg)
		}
		return snap, nil
	}
}

func modeLabel(opts Options) string {
	if opts.ServerURL != "" {
		return "Remote: " + opts.ServerURL
	}
	return "Mode: Local"
}

func clearScreen() {
	fmt.Print("\033[H\033[2J")
}

func cleanup() {
	fmt.Print("\033[?25h") // Show cursor
	fmt.Print("\033[0m")   // Reset colors
	fmt.Println("\nGoodbye!")
}
