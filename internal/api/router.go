package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/wrenfold/homedeck/internal/auth"
	"github.com/wrenfold/homedeck/internal/device"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	// Health check (no auth required)
	r.Get("/health", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		// Auth endpoints (no auth required)
		r.Post("/auth/login", s.handleLogin)

		// WebSocket upgrade. Browsers cannot set headers on WebSocket
		// connects, so the JWT arrives as a query token; the handler
		// validates it before upgrading.
		r.Get("/ws", s.handleWebSocket)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			// Device endpoints. Per-device routes mount the access
			// middleware, which resolves the device and enforces the
			// caller's permission entry.
			r.Route("/devices", func(r chi.Router) {
				r.Get("/", s.handleListDevices)
				r.Post("/", s.handleCreateDevice)

				r.Post("/room/{roomId}/toggle", s.handleRoomToggle)

				r.Group(func(r chi.Router) {
					r.Use(s.requireDeviceAccess(device.PermissionRead))
					r.Get("/{id}", s.handleGetDevice)
				})

				r.Group(func(r chi.Router) {
					r.Use(s.requireDeviceAccess(device.PermissionWrite))
					r.Put("/{id}", s.handleUpdateDevice)
					r.Post("/{id}/toggle", s.handleToggleDevice)
					r.Post("/{id}/status", s.handleDeviceStatus)
					r.Post("/{id}/light", s.handleDeviceLight)
					r.Post("/{id}/thermostat", s.handleDeviceThermostat)
				})

				r.Group(func(r chi.Router) {
					r.Use(s.requireDeviceAccess(device.PermissionAdmin))
					r.Delete("/{id}", s.handleDeleteDevice)
				})
			})

			// Room endpoints. Rooms carry no per-entity permission
			// entries, so routes declare role capabilities instead.
			r.Route("/rooms", func(r chi.Router) {
				r.With(s.requireCapability(auth.CapRoomRead)).Get("/", s.handleListRooms)
				r.With(s.requireCapability(auth.CapRoomManage)).Post("/", s.handleCreateRoom)

				r.Route("/{id}", func(r chi.Router) {
					r.With(s.requireCapability(auth.CapRoomRead)).Get("/", s.handleGetRoom)
					r.With(s.requireCapability(auth.CapRoomRead)).Get("/stats", s.handleRoomStats)
					r.With(s.requireCapability(auth.CapRoomManage)).Put("/", s.handleUpdateRoom)
					r.With(s.requireCapability(auth.CapRoomManage)).Delete("/", s.handleDeleteRoom)
					r.With(s.requireCapability(auth.CapRoomControl)).Put("/temperature", s.handleRoomTemperature)
					r.With(s.requireCapability(auth.CapRoomControl)).Put("/lighting", s.handleRoomLighting)
					r.With(s.requireCapability(auth.CapRoomControl)).Post("/occupancy", s.handleRoomOccupancy)
				})
			})

			// Automation is not implemented yet; the dashboard expects
			// the endpoint to exist.
			r.Get("/automation", s.handleAutomation)
		})
	})

	return r
}
