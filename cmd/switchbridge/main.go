// switchbridge mirrors a remote HTTP action registry into local momentary
// switch entities.
//
// Each remote action becomes a switch the host surfaces can see and
// trigger: activating one flips it on, invokes the remote action in the
// background, and resets it to off after a fixed delay regardless of the
// remote outcome. A reconciliation loop keeps the local entity set
// identical to the remote action set.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/nfawbert/switchbridge/migrations"

	"github.com/nfawbert/switchbridge/internal/api"
	"github.com/nfawbert/switchbridge/internal/entity"
	"github.com/nfawbert/switchbridge/internal/infrastructure/config"
	"github.com/nfawbert/switchbridge/internal/infrastructure/database"
	"github.com/nfawbert/switchbridge/internal/infrastructure/influxdb"
	"github.com/nfawbert/switchbridge/internal/infrastructure/logging"
	"github.com/nfawbert/switchbridge/internal/infrastructure/mqtt"
	"github.com/nfawbert/switchbridge/internal/reconciler"
	"github.com/nfawbert/switchbridge/internal/registry"
	"github.com/nfawbert/switchbridge/internal/sink"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	// Cancel on interrupt signals (Ctrl+C, SIGTERM) for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
//
//nolint:gocognit // Linear wiring of infrastructure components
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting switchbridge",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	// Load configuration
	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Open database
	db, err := database.Open(cfg.Database)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	log.Info("database connected", "path", cfg.Database.Path)

	// Run migrations
	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	repo := entity.NewSQLiteRepository(db.DB)
	store := entity.NewStore()

	// Connect to MQTT broker (optional)
	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		mqttClient, err = mqtt.Connect(cfg.MQTT)
		if err != nil {
			return fmt.Errorf("connecting to MQTT: %w", err)
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		mqttClient.SetLogger(log)
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)
	} else {
		log.Info("MQTT disabled")
	}

	// Connect to InfluxDB (optional)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
	} else {
		log.Info("InfluxDB disabled")
	}

	// WebSocket hub, shared between the API server and the sink fan-out
	hub := api.NewHub(cfg.WebSocket, log)
	go hub.Run(ctx)

	// Assemble the host surfaces
	var mqttSink *sink.MQTTSink
	surfaces := []sink.Sink{
		sink.NewPersistSink(repo),
		api.NewBroadcaster(hub),
	}
	if mqttClient != nil {
		mqttSink = sink.NewMQTTSink(mqttClient)
		surfaces = append(surfaces, mqttSink)
	}
	if influxClient != nil {
		surfaces = append(surfaces, sink.NewHistorySink(influxClient))
	}
	composite := sink.NewComposite(surfaces...)

	// Remote registry client and reconciler
	registryClient := registry.NewClient(cfg.Registry)
	rec := reconciler.New(registryClient, store, repo, composite, cfg.GetResetDelay())
	rec.SetLogger(log)
	if influxClient != nil {
		rec.SetRecorder(influxClient)
	}
	defer func() {
		log.Info("closing reconciler")
		if closeErr := rec.Close(); closeErr != nil {
			log.Error("error closing reconciler", "error", closeErr)
		}
	}()

	// Restore the persisted entity set before the first sync, so the host
	// sees the last known switches even if the registry is down right now
	if restoreErr := rec.Restore(ctx); restoreErr != nil {
		return fmt.Errorf("restoring entity set: %w", restoreErr)
	}

	// First reconciliation pass. A failure is not fatal: the restored set
	// keeps serving and a later manual or periodic sync can catch up.
	if syncErr := rec.Sync(ctx); syncErr != nil {
		log.Warn("initial sync failed, serving restored entity set", "error", syncErr)
	}

	// React to switch commands arriving over MQTT
	if mqttSink != nil {
		if listenErr := mqttSink.Listen(rec.Activate); listenErr != nil {
			log.Warn("MQTT command subscription failed", "error", listenErr)
		}
	}

	// Periodic resync (no-op when the interval is zero)
	go func() {
		if runErr := rec.Run(ctx, cfg.GetResyncInterval()); runErr != nil && ctx.Err() == nil {
			log.Error("periodic resync stopped", "error", runErr)
		}
	}()

	// Start the API server
	server, err := api.New(api.Deps{
		Config:   cfg.API,
		WS:       cfg.WebSocket,
		Logger:   log,
		Switches: rec,
		MQTT:     mqttClient,
		DB:       db,
		Hub:      hub,
		Version:  version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if startErr := server.Start(ctx); startErr != nil {
		return fmt.Errorf("starting API server: %w", startErr)
	}
	defer func() {
		log.Info("stopping API server")
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()
	log.Info("API server listening", "host", cfg.API.Host, "port", cfg.API.Port)

	// Verify all connections are healthy
	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal",
		"switches", store.Len())

	// Wait for shutdown signal
	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls run in reverse order:
	// API server, reconciler, InfluxDB, MQTT, database.

	log.Info("switchbridge stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses SWITCHBRIDGE_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("SWITCHBRIDGE_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies all infrastructure connections are healthy.
// The MQTT and InfluxDB clients may be nil when disabled.
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	if mqttClient != nil {
		if err := mqttClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("mqtt: %w", err)
		}
	}

	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}

	return nil
}
