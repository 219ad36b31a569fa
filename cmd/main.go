package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/ledax/geoetl/internal/config"
	"github.com/ledax/geoetl/internal/geocache"
	"github.com/ledax/geoetl/internal/geocoding"
	"github.com/ledax/geoetl/internal/geofence"
	"github.com/ledax/geoetl/internal/ingest"
	"github.com/ledax/geoetl/internal/intervention"
	"github.com/ledax/geoetl/internal/metrics"
	"github.com/ledax/geoetl/internal/models"
	"github.com/ledax/geoetl/internal/repository"
	"github.com/ledax/geoetl/internal/resolver"
	"github.com/ledax/geoetl/internal/service"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Constants for different environment types.
const (
	envLocal = "local"
	envDev   = "development"
	envProd  = "production"
)

// main is the entry point of the application.
func main() {
	// Create a context that will be canceled when an interrupt signal is received.
	// Cancellation takes effect between records; committed work is retained.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load application configuration.
	cfg := config.MustLoad()

	// Set up the logger based on the environment.
	logger := setupLogger(cfg.Env)

	// Create a separate registry for metrics with exemplar
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	appMetrics := metrics.NewMetrics(reg)

	// Initialize the database connection.
	dtb, err := repository.NewDatabase(
		cfg.Database.Host, cfg.Database.Port, cfg.Database.User, cfg.Database.Password, cfg.Database.Name,
	)
	if err != nil {
		log.Fatalf("Failed to connect to DB: %v", err)
	}
	defer dtb.Close()

	// Create a new repository instance using the database connection.
	repo := repository.NewRepository(dtb, logger)

	// Open the persistent geocache shared by all remote clients.
	cache := geocache.Open(cfg.CachePath, cfg.NegativeTTL, logger)

	// Create the free-text provider using the factory pattern based on
	// configuration. This allows runtime selection between providers
	// (Nominatim, Google).
	freeText, err := geocoding.NewFreeTextProvider(geocoding.ProviderConfig{
		Type:     geocoding.ProviderType(cfg.ProviderType),
		APIKey:   cfg.APIKey,
		MinDelay: cfg.MinRequestDelay,
		Cache:    cache,
		Logger:   logger,
	})
	if err != nil {
		log.Fatalf("Failed to create geocoding provider: %v", err)
	}

	logger.InfoContext(ctx, "Geocoding provider initialized", "type", cfg.ProviderType)

	postal := geocoding.NewBrasilAPIClient(cache, logger)

	anchor := &geofence.Anchor{
		Coordinate:  models.Coordinates{Latitude: cfg.AnchorLat, Longitude: cfg.AnchorLon},
		ToleranceKm: cfg.AnchorToleranceKm,
		Label:       cfg.AnchorLabel,
	}
	fence, err := geofence.NewValidator(
		anchor, freeText, cfg.CityToleranceKm, geofence.Policy(cfg.FencePolicy), logger,
	)
	if err != nil {
		log.Fatalf("Failed to create geofence validator: %v", err)
	}

	engine := resolver.New(postal, freeText, fence, logger)
	operator := intervention.NewTerminal(os.Stdin, os.Stdout, freeText, fence, logger)

	records, err := ingest.ReadRecords(cfg.ExcelPath, logger)
	if err != nil {
		log.Fatalf("Failed to read spreadsheet: %v", err)
	}

	// Rows without a city column still need an anchor city for geofence
	// validation; fall back to scanning the address text.
	for i := range records {
		if records[i].City == "" {
			records[i].City = ingest.ExtractCity(records[i].Address, cfg.AnchorLabel)
		}
	}

	etl := service.NewETLService(logger, repo, engine, operator, cache, appMetrics, cfg.FlushEvery)

	logger.InfoContext(ctx, "Application started. Press Ctrl+C to stop between records.")

	// Start the monitoring server in a goroutine so the run can be observed.
	go startMonitoringServer(ctx, logger, reg, dtb, cfg.Port)

	if err = etl.Run(ctx, records); err != nil {
		logger.ErrorContext(ctx, "ETL run failed", "error", err)
		os.Exit(1)
	}

	logger.InfoContext(ctx, "Application stopped gracefully.")
}

// startMonitoringServer starts an HTTP server that provides health check and metrics endpoints.
// It listens on the specified port and logs the server's status and any errors encountered.
//
// Parameters:
// - ctx: A context.Context for managing cancellation and timeouts.
// - log: A logger for logging server events and errors.
// - reg: A registry with Prometheus collectors.
// - dtb: A pgxpool connector for database methods (ping)
// - port: The port number on which the server will listen.
func startMonitoringServer(
	ctx context.Context,
	log *slog.Logger,
	reg *prometheus.Registry,
	dtb *pgxpool.Pool,
	port int,
) {
	http.HandleFunc("/healthz", func(writer http.ResponseWriter, _ *http.Request) {
		log.DebugContext(ctx, "Performing health checks...")
		status, body := http.StatusOK, "OK"
		if err := dtb.Ping(ctx); err != nil {
			status, body = http.StatusServiceUnavailable, "DB ping failed"
		}
		writer.WriteHeader(status)
		_, err := writer.Write([]byte(body))
		if err != nil {
			log.ErrorContext(ctx, "failed to write reply", "error", err)
		}

		log.DebugContext(ctx, "Health checks completed", "status", http.StatusOK)
	})
	http.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	log.InfoContext(ctx, "Starting monitoring server", "port", port)
	readTimeout := 5
	writeTimeout := 10
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      http.DefaultServeMux,
		ReadTimeout:  time.Duration(readTimeout) * time.Second,
		WriteTimeout: time.Duration(writeTimeout) * time.Second,
	}
	if err := server.ListenAndServe(); err != nil {
		log.ErrorContext(ctx, "Monitoring server failed", "error", err)
	}
}

// setupLogger initializes and returns a logger based on the environment provided.
func setupLogger(env string) *slog.Logger {
	var log *slog.Logger

	switch env {
	case envLocal:
		log = slog.New(
			slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
				Level:     slog.LevelDebug,
				AddSource: true,
			}),
		)
	case envDev:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
				Level:     slog.LevelInfo,
				AddSource: false,
			}),
		)
	case envProd:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
				Level:     slog.LevelWarn,
				AddSource: false,
				ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
					if a.Key == slog.TimeKey {
						return slog.Attr{}
					}
					return a
				},
			}),
		)
	default:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
				Level:     slog.LevelError,
				AddSource: false,
				ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
					if a.Key == slog.TimeKey {
						return slog.Attr{}
					}
					return a
				},
			}),
		)

		log.Error(
			"The env parameter was not specified or was invalid. Logging will be minimal, by default.",
			slog.String("available_envs", "local, development, production"))
	}

	return log
}
