package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/wrenfold/homedeck/internal/device"
)

// createDeviceRequest is the request body for POST /api/devices.
type createDeviceRequest struct {
	Name       string                   `json:"name"`
	Type       device.DeviceType        `json:"type"`
	RoomID     string                   `json:"roomId"`
	Status     *device.Status           `json:"status,omitempty"`
	Light      *device.LightState       `json:"light,omitempty"`
	Plug       *device.PlugState        `json:"plug,omitempty"`
	Thermostat *device.ThermostatState  `json:"thermostat,omitempty"`
	Camera     *device.CameraState      `json:"camera,omitempty"`
	Sensor     *device.SensorState      `json:"sensor,omitempty"`
	Permission []device.PermissionEntry `json:"permissions,omitempty"`
}

// updateDeviceRequest is the request body for PUT /api/devices/{id}.
// Only supplied fields are applied; type is immutable.
type updateDeviceRequest struct {
	Name       *string                 `json:"name,omitempty"`
	Type       *device.DeviceType      `json:"type,omitempty"`
	RoomID     *string                 `json:"roomId,omitempty"`
	Light      *device.LightState      `json:"light,omitempty"`
	Plug       *device.PlugState       `json:"plug,omitempty"`
	Thermostat *device.ThermostatState `json:"thermostat,omitempty"`
	Camera     *device.CameraState     `json:"camera,omitempty"`
	Sensor     *device.SensorState     `json:"sensor,omitempty"`
}

// roomToggleRequest is the request body for POST /api/devices/room/{roomId}/toggle.
// TurnOn is a pointer so a missing field is distinguishable from false.
type roomToggleRequest struct {
	TurnOn *bool `json:"turnOn"`
}

// handleListDevices returns a paginated device listing with optional
// room, type, and status filters.
func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := device.ListFilter{
		RoomID: q.Get("room"),
		Type:   device.DeviceType(q.Get("type")),
		Status: q.Get("status"),
		Page:   queryInt(q.Get("page")),
		Limit:  queryInt(q.Get("limit")),
	}

	devices, total, err := s.registry.ListDevices(r.Context(), filter)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	filter.Normalize()
	writePaged(w, devices, filter.Page, filter.Limit, total)
}

// handleCreateDevice creates a device. The creator is granted an admin
// permission entry so they can always manage what they made.
func (s *Server) handleCreateDevice(w http.ResponseWriter, r *http.Request) {
	var req createDeviceRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	dev := &device.Device{
		Name:        req.Name,
		Type:        req.Type,
		RoomID:      req.RoomID,
		Light:       req.Light,
		Plug:        req.Plug,
		Thermostat:  req.Thermostat,
		Camera:      req.Camera,
		Sensor:      req.Sensor,
		Permissions: req.Permission,
	}
	if req.Status != nil {
		dev.Status = *req.Status
	}

	claims := claimsFrom(r.Context())
	device.GrantCreator(dev, claims.Subject)

	if err := s.registry.CreateDevice(r.Context(), dev); err != nil {
		writeDomainError(w, err)
		return
	}

	writeSuccess(w, http.StatusCreated, dev)
}

// handleGetDevice returns the device resolved by the access middleware.
func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	writeSuccess(w, http.StatusOK, deviceFrom(r.Context()))
}

// handleUpdateDevice applies a generic update (name, room, payload).
// Changing the type is rejected.
func (s *Server) handleUpdateDevice(w http.ResponseWriter, r *http.Request) {
	var req updateDeviceRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	dev := deviceFrom(r.Context())
	if req.Type != nil && *req.Type != dev.Type {
		writeDomainError(w, device.ErrTypeImmutable)
		return
	}
	if req.Name != nil {
		dev.Name = *req.Name
	}
	if req.RoomID != nil {
		dev.RoomID = *req.RoomID
	}
	if req.Light != nil {
		dev.Light = req.Light
	}
	if req.Plug != nil {
		dev.Plug = req.Plug
	}
	if req.Thermostat != nil {
		dev.Thermostat = req.Thermostat
	}
	if req.Camera != nil {
		dev.Camera = req.Camera
	}
	if req.Sensor != nil {
		dev.Sensor = req.Sensor
	}

	if err := s.registry.UpdateDevice(r.Context(), dev); err != nil {
		writeDomainError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, dev)
}

// handleDeleteDevice soft-deletes a device.
func (s *Server) handleDeleteDevice(w http.ResponseWriter, r *http.Request) {
	dev := deviceFrom(r.Context())
	if err := s.registry.DeactivateDevice(r.Context(), dev.ID); err != nil {
		writeDomainError(w, err)
		return
	}
	writeSuccessMessage(w, http.StatusOK, "device deleted", nil)
}

// handleToggleDevice flips the device's on/off state.
func (s *Server) handleToggleDevice(w http.ResponseWriter, r *http.Request) {
	dev := deviceFrom(r.Context())
	updated, err := s.controller.Toggle(r.Context(), dev.ID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, updated)
}

// handleDeviceStatus applies a partial status merge.
func (s *Server) handleDeviceStatus(w http.ResponseWriter, r *http.Request) {
	var update device.StatusUpdate
	if !decodeJSON(w, r, &update) {
		return
	}

	dev := deviceFrom(r.Context())
	updated, err := s.controller.SetStatus(r.Context(), dev.ID, update)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, updated)
}

// handleDeviceLight applies a partial light-state update.
func (s *Server) handleDeviceLight(w http.ResponseWriter, r *http.Request) {
	var update device.LightUpdate
	if !decodeJSON(w, r, &update) {
		return
	}

	dev := deviceFrom(r.Context())
	updated, err := s.controller.SetLight(r.Context(), dev.ID, update)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, updated)
}

// handleDeviceThermostat applies a partial thermostat update.
func (s *Server) handleDeviceThermostat(w http.ResponseWriter, r *http.Request) {
	var update device.ThermostatUpdate
	if !decodeJSON(w, r, &update) {
		return
	}

	dev := deviceFrom(r.Context())
	updated, err := s.controller.SetThermostat(r.Context(), dev.ID, update)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, updated)
}

// handleRoomToggle applies a bulk on/off action to every eligible device
// in a room. Partial failures return 200 with per-device results.
func (s *Server) handleRoomToggle(w http.ResponseWriter, r *http.Request) {
	var req roomToggleRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.TurnOn == nil {
		writeBadRequest(w, "turnOn boolean is required")
		return
	}

	action := device.ActionTurnOff
	if *req.TurnOn {
		action = device.ActionTurnOn
	}

	roomID := chi.URLParam(r, "roomId")
	result, err := s.orchestrator.ControlRoom(r.Context(), roomID, action, nil)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, result)
}

// queryInt parses a query parameter as an int, returning 0 when absent
// or malformed so filters fall back to defaults.
func queryInt(s string) int {
	if s == "" {
		return 0
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}
