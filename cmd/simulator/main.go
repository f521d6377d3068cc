package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/voltbench/ocpp-sim/internal/cache"
	"github.com/voltbench/ocpp-sim/internal/ocpp"
	"github.com/voltbench/ocpp-sim/internal/ocpp/schemas"
	"github.com/voltbench/ocpp-sim/internal/registry"
	"github.com/voltbench/ocpp-sim/internal/station"
	"github.com/voltbench/ocpp-sim/internal/storage"
	"github.com/voltbench/ocpp-sim/internal/uiserver"
	"github.com/voltbench/ocpp-sim/pkg/config"
)

func main() {
	// 1. Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("failed to load configuration: ", err)
	}

	// 2. Initialize logger
	logger, err := buildLogger(cfg)
	if err != nil {
		log.Fatal("failed to initialize logger: ", err)
	}
	defer logger.Sync()
	logger.Info("starting charging station simulator",
		zap.String("environment", cfg.App.Environment))

	// 3. Process-wide template cache
	if _, err := cache.Init(cfg.Cache.Size); err != nil {
		logger.Fatal("failed to initialize cache", zap.Error(err))
	}
	defer cache.Teardown()

	// 4. Configuration store
	store, err := storage.NewFileStore(cfg.Storage.Dir, logger)
	if err != nil {
		logger.Fatal("failed to open configuration store", zap.Error(err))
	}

	// 5. Payload schemas; templates opt into strict validation per station
	validator := ocpp.NewSchemaValidator(true)
	if err := schemas.Register(validator); err != nil {
		logger.Fatal("failed to load payload schemas", zap.Error(err))
	}

	// 6. Registry with shared station dependencies
	reg := registry.New(logger, station.Deps{
		Log:       logger,
		Store:     store,
		Validator: validator,
	})

	// 7. Provision stations from the configured templates
	ctx := context.Background()
	for _, sc := range cfg.Stations {
		ids, err := reg.ProvisionFile(sc.TemplateFile, sc.NumberOfStations)
		if err != nil {
			logger.Fatal("failed to provision stations",
				zap.String("template", sc.TemplateFile), zap.Error(err))
		}
		if sc.AutoStart {
			agg := reg.StartStations(ctx, ids)
			if agg.Status != registry.StatusSuccess {
				logger.Warn("some stations failed to start",
					zap.Strings("failed", agg.HashIdsFailed),
					zap.Strings("responses", agg.ResponsesFailed))
			}
		}
	}

	// 8. Control plane
	var ui *uiserver.Server
	if cfg.UI.Enabled {
		ui = uiserver.New(uiserver.Config{
			Addr:          cfg.UI.Addr,
			EnableMetrics: cfg.UI.EnableMetrics,
		}, reg, logger)
		if err := ui.Start(); err != nil {
			logger.Fatal("failed to start control plane", zap.Error(err))
		}
	}

	// 9. Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	logger.Info("shutting down", zap.String("signal", sig.String()))

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Shutdown.Timeout)
	defer cancel()
	if ui != nil {
		if err := ui.Stop(shutdownCtx); err != nil {
			logger.Error("control plane shutdown failed", zap.Error(err))
		}
	}
	reg.Shutdown(shutdownCtx)
	logger.Info("simulator stopped")
}

func buildLogger(cfg *config.Config) (*zap.Logger, error) {
	if cfg.Development() {
		return zap.NewDevelopment()
	}
	zc := zap.NewProductionConfig()
	if err := zc.Level.UnmarshalText([]byte(cfg.Logging.Level)); err == nil {
		return zc.Build()
	}
	return zap.NewProduction()
}
