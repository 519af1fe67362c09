package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go-history/internal/api/handlers"
	"go-history/internal/api/logics"
	"go-history/internal/api/models"
	"go-history/internal/api/router"
	"go-history/internal/config"
	"go-history/internal/utils"
)

func main() {
	env := config.GetEnvConfig()
	utils.SetDefaultLogger(utils.NewStructuredLoggerWithOutput(os.Stdout, utils.ParseLogLevel(env.LogLevel)))
	utils.InitTimeConfig()
	utils.InitHTTPConfig()
	if err := utils.ValidateHTTPConfig(); err != nil {
		utils.LogFatal("invalid HTTP client configuration: %v", err)
	}
	logics.InitHistoryConfig()

	if err := handlers.EnsureStorageDirectories(); err != nil {
		utils.LogWarnWithContext("startup", "failed to create storage directories", err)
	}
	journal := logics.OpenJournal(context.Background(), env)
	if err := journal.StartRetention(); err != nil {
		utils.LogWarnWithContext("startup", "journal retention disabled", err)
	}

	client := utils.NewHistoryClientFromEnv()
	h, err := handlers.NewHistoryHandler(handlers.HistoryDeps{
		Source: client,
		Catalog: logics.FallbackCatalog{
			Primary: client,
			Devices: func() []models.DeviceConfig { return logics.GetHistoryConfig().Devices },
		},
		Journal:        journal,
		Checker:        logics.NewHealthChecker(env.HistoryAPIBase, utils.GetHTTPClient(), 5*time.Second),
		DefaultPeriod:  models.PeriodLabel(env.GetDefaultPeriod()),
		RefreshTimeout: env.HistoryRefreshTimeout,
		ViewCapacity:   env.HistoryViewCapacity,
	})
	if err != nil {
		utils.LogFatal("failed to build history handler: %v", err)
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", env.Port),
		Handler:           router.NewRouter(h),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Setup graceful shutdown
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	done := make(chan struct{})

	go func() {
		<-c
		utils.LogInfo("Shutting down server...")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			utils.LogWarnWithContext("shutdown", "server shutdown failed", err)
		}
		if err := journal.Close(); err != nil {
			utils.LogWarnWithContext("shutdown", "failed to close journal", err)
		}
		utils.CloseHTTPClient()
		close(done)
	}()

	utils.LogInfoWithFields("startup", "server running", map[string]any{
		"addr":     srv.Addr,
		"upstream": env.HistoryAPIBase,
		"storage":  journal.Backends(),
		"timezone": utils.GetDefaultTimezone().String(),
		"utc":      utils.IsUTCEnforced(),
	})
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		utils.LogFatal("server failed: %v", err)
	}
	<-done
}
