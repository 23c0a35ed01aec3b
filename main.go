package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dosesegura/dose-segura/config"
	"github.com/dosesegura/dose-segura/data"
	"github.com/dosesegura/dose-segura/handlers"
	"github.com/dosesegura/dose-segura/health"
	"github.com/dosesegura/dose-segura/interfaces"
	"github.com/dosesegura/dose-segura/logging"
	"github.com/dosesegura/dose-segura/metrics"
	"github.com/dosesegura/dose-segura/preferences"
	"github.com/dosesegura/dose-segura/scheduler"
	"github.com/dosesegura/dose-segura/server"
	"github.com/dosesegura/dose-segura/storage"
	"github.com/dosesegura/dose-segura/validation"
)

// openStore returns the SQLite store when a path is configured, otherwise an
// in-memory store that forgets everything on restart
func openStore(ctx context.Context, cfg *config.Config) (interfaces.KeyValueStore, error) {
	if cfg.StateDBPath == "" {
		logging.Warn("STATE_DB_PATH not set, preferences will not survive a restart")
		return storage.NewMemoryStore(), nil
	}
	return storage.OpenSQLite(ctx, cfg.StateDBPath)
}

func main() {
	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}

	logging.InitLoggerWithConfig(cfg.LogDir, cfg.Env, cfg.LogLevel, cfg.LogRetentionWeeks, cfg.MaxLogFileSize)
	defer func() { _ = logging.Close() }()

	logging.Info("Configuration loaded",
		"env", cfg.Env.String(),
		"address", cfg.Address,
		"port", cfg.Port,
		"dataset", cfg.DatasetPath,
	)

	dataContainer := data.NewDataContainer()
	dataContainer.SetServerStartTime(time.Now())
	validator := validation.NewDataValidator()

	startCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	store, err := openStore(startCtx, cfg)
	if err != nil {
		cancel()
		logging.Error("Failed to open state store", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logging.Error("Failed to close state store", "error", err)
		}
	}()

	favorites := preferences.NewFavorites(store)
	theme := preferences.NewTheme(store)
	favorites.Load(startCtx)
	theme.Load(startCtx)
	cancel()
	metrics.FavoritesTotal.Set(float64(len(favorites.List())))

	sched := scheduler.NewScheduler(dataContainer, data.NewFileSource(cfg.DatasetPath), validator, cfg.ReloadIntervalMinutes)
	if err := sched.Start(); err != nil {
		logging.Error("Failed to load dataset", "error", err)
		os.Exit(1)
	}
	defer sched.Stop()

	healthChecker := health.NewHealthChecker(dataContainer, favorites)
	httpHandler := handlers.NewHTTPHandler(dataContainer, validator, favorites, theme, healthChecker)
	srv := server.NewServer(cfg, httpHandler)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- srv.Start()
	}()

	select {
	case <-quit:
	case err := <-serverErr:
		if err != nil {
			logging.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
		return
	}

	ctx, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelShutdown()

	if err := srv.Shutdown(ctx); err != nil {
		logging.Error("Server shutdown error", "error", err)
	}
}
