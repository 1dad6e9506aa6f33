// Package api provides the HTTP REST API and WebSocket server for HomeDeck.
//
// It exposes device and room operations, authentication, and real-time
// state updates to dashboard clients.
//
// The server follows the same lifecycle pattern as other infrastructure components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// Thread Safety: All methods are safe for concurrent use from multiple goroutines.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/wrenfold/homedeck/internal/auth"
	"github.com/wrenfold/homedeck/internal/device"
	"github.com/wrenfold/homedeck/internal/infrastructure/config"
	"github.com/wrenfold/homedeck/internal/infrastructure/logging"
	"github.com/wrenfold/homedeck/internal/infrastructure/mqtt"
	"github.com/wrenfold/homedeck/internal/room"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config       config.APIConfig
	WS           config.WebSocketConfig
	Auth         config.AuthConfig
	Environment  string
	Logger       *logging.Logger
	Registry     *device.Registry
	Controller   *device.Controller
	Orchestrator *device.Orchestrator
	Rooms        *room.Service
	Users        auth.UserRepository
	MQTT         *mqtt.Client // Optional outbound event relay
	Version      string
}

// Server is the HTTP API server for HomeDeck.
//
// It manages the HTTP listener, routes, middleware, and WebSocket hub.
// The server is created with New() and started with Start().
type Server struct {
	cfg          config.APIConfig
	wsCfg        config.WebSocketConfig
	authCfg      config.AuthConfig
	environment  string
	logger       *logging.Logger
	registry     *device.Registry
	controller   *device.Controller
	orchestrator *device.Orchestrator
	rooms        *room.Service
	users        auth.UserRepository
	mqtt         *mqtt.Client
	version      string
	startedAt    time.Time
	server       *http.Server
	hub          *Hub
	cancel       context.CancelFunc // cancels background goroutines on Close()
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called. The hub is created
// immediately so the control services can be wired to broadcast through
// it before Start().
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Registry == nil {
		return nil, fmt.Errorf("device registry is required")
	}
	if deps.Controller == nil {
		return nil, fmt.Errorf("device controller is required")
	}
	if deps.Orchestrator == nil {
		return nil, fmt.Errorf("room orchestrator is required")
	}
	if deps.Rooms == nil {
		return nil, fmt.Errorf("room service is required")
	}
	if deps.Users == nil {
		return nil, fmt.Errorf("user repository is required")
	}
	// MQTT is optional; when absent, events stay WebSocket-only

	s := &Server{
		cfg:          deps.Config,
		wsCfg:        deps.WS,
		authCfg:      deps.Auth,
		environment:  deps.Environment,
		logger:       deps.Logger,
		registry:     deps.Registry,
		controller:   deps.Controller,
		orchestrator: deps.Orchestrator,
		rooms:        deps.Rooms,
		users:        deps.Users,
		mqtt:         deps.MQTT,
		version:      deps.Version,
	}
	s.hub = NewHub(deps.WS, deps.Logger)
	s.hub.bind(s.registry, s.controller, s.orchestrator)

	// Control-plane mutations fan out through the hub, and through the
	// MQTT relay when configured.
	s.controller.AddNotifier(s.hub)
	s.orchestrator.AddNotifier(s.hub)
	if s.mqtt != nil {
		relay := &eventRelay{client: s.mqtt}
		s.controller.AddNotifier(relay)
		s.orchestrator.AddNotifier(relay)
	}

	return s, nil
}

// Hub returns the server's WebSocket hub.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Start begins listening for HTTP connections.
//
// It starts the WebSocket hub and launches the HTTP listener in a
// background goroutine. The server can be stopped with Close().
func (s *Server) Start(ctx context.Context) error {
	// Create internal context so Close() can stop background goroutines
	// independently of the parent context.
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	go s.hub.Run(srvCtx)

	s.startedAt = time.Now()

	router := s.buildRouter()

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           router,
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	// Start listening in background
	go func() {
		s.logger.Info("API server starting", "address", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	// Cancel background goroutines (hub)
	if s.cancel != nil {
		s.cancel()
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running and responsive.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return fmt.Errorf("api server not started")
	}

	return nil
}
