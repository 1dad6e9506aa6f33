// HomeDeck - Smart Home Dashboard Backend
//
// This is the main entry point for the HomeDeck backend. It serves the
// dashboard's REST API and WebSocket feed, manages the device registry
// and room model in SQLite, and optionally mirrors events to MQTT for
// external consumers.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/wrenfold/homedeck/migrations"

	"github.com/wrenfold/homedeck/internal/api"
	"github.com/wrenfold/homedeck/internal/auth"
	"github.com/wrenfold/homedeck/internal/device"
	"github.com/wrenfold/homedeck/internal/infrastructure/config"
	"github.com/wrenfold/homedeck/internal/infrastructure/database"
	"github.com/wrenfold/homedeck/internal/infrastructure/logging"
	"github.com/wrenfold/homedeck/internal/infrastructure/mqtt"
	"github.com/wrenfold/homedeck/internal/room"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	// Create a context that cancels on interrupt signals (Ctrl+C, SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
// Returning an error allows main to handle exit codes consistently.
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting HomeDeck",
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
	db, err := database.Open(database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
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

	// Seed admin account on first boot
	userRepo := auth.NewUserRepository(db.DB)
	if _, seedErr := auth.SeedAdmin(ctx, userRepo, cfg.Auth.Seed, log); seedErr != nil {
		return fmt.Errorf("seeding admin account: %w", seedErr)
	}

	// Initialise device registry and control services
	deviceRepo := device.NewSQLiteRepository(db.DB)
	registry := device.NewRegistry(deviceRepo)
	registry.SetLogger(log)
	if refreshErr := registry.RefreshCache(ctx); refreshErr != nil {
		return fmt.Errorf("loading device registry: %w", refreshErr)
	}
	log.Info("device registry initialised", "devices", registry.GetDeviceCount())

	controller := device.NewController(registry)
	orchestrator := device.NewOrchestrator(registry)

	// Room service, guarded by live device counts for the deletion check
	roomRepo := room.NewSQLiteRepository(db.DB)
	rooms := room.NewService(roomRepo, registry)

	// Connect to MQTT broker (optional outbound event relay)
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
		mqttClient.SetOnConnect(func() {
			log.Info("MQTT reconnected")
		})
		mqttClient.SetOnDisconnect(func(err error) {
			log.Warn("MQTT disconnected", "error", err)
		})
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)
	} else {
		log.Info("MQTT disabled; events stay WebSocket-only")
	}

	// Start API server
	server, err := api.New(api.Deps{
		Config:       cfg.API,
		WS:           cfg.WebSocket,
		Auth:         cfg.Auth,
		Environment:  cfg.Environment,
		Logger:       log,
		Registry:     registry,
		Controller:   controller,
		Orchestrator: orchestrator,
		Rooms:        rooms,
		Users:        userRepo,
		MQTT:         mqttClient,
		Version:      version,
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

	// Verify all connections are healthy
	if err := healthCheck(ctx, db, mqttClient, server); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")

	// Wait for shutdown signal
	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls run in reverse order:
	// 1. API server
	// 2. MQTT (if enabled)
	// 3. Database

	log.Info("HomeDeck stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses HOMEDECK_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("HOMEDECK_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies all infrastructure connections are healthy.
// The MQTT client may be nil when the relay is disabled.
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, server *api.Server) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	if mqttClient != nil {
		if err := mqttClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("mqtt: %w", err)
		}
	}

	if err := server.HealthCheck(ctx); err != nil {
		return fmt.Errorf("api: %w", err)
	}

	return nil
}
