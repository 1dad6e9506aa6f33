package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/wrenfold/homedeck/internal/device"
	"github.com/wrenfold/homedeck/internal/room"
)

// createRoomRequest is the request body for POST /api/rooms.
type createRoomRequest struct {
	Name     string         `json:"name"`
	Category room.Category  `json:"category"`
	Floor    int            `json:"floor"`
	Settings *room.Settings `json:"settings,omitempty"`
}

// updateRoomRequest is the request body for PUT /api/rooms/{id}.
type updateRoomRequest struct {
	Name     *string        `json:"name,omitempty"`
	Category *room.Category `json:"category,omitempty"`
	Floor    *int           `json:"floor,omitempty"`
	Settings *room.Settings `json:"settings,omitempty"`
}

// roomTemperatureRequest is the request body for PUT /api/rooms/{id}/temperature.
type roomTemperatureRequest struct {
	Target *float64 `json:"target"`
}

// roomLightingRequest is the request body for PUT /api/rooms/{id}/lighting.
type roomLightingRequest struct {
	TargetLevel *int `json:"targetLevel"`
}

// roomOccupancyRequest is the request body for POST /api/rooms/{id}/occupancy.
type roomOccupancyRequest struct {
	IsOccupied *bool   `json:"isOccupied"`
	SensorID   *string `json:"sensorId,omitempty"`
}

// roomStatsResponse aggregates live device state for a room.
type roomStatsResponse struct {
	RoomID       string                    `json:"roomId"`
	TotalDevices int                       `json:"totalDevices"`
	ByType       map[device.DeviceType]int `json:"byType"`
	OnCount      int                       `json:"onCount"`
	OnlineCount  int                       `json:"onlineCount"`
}

// handleListRooms returns a paginated room listing with optional
// category and floor filters.
func (s *Server) handleListRooms(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := room.ListFilter{
		Category: room.Category(q.Get("category")),
		Page:     queryInt(q.Get("page")),
		Limit:    queryInt(q.Get("limit")),
	}
	if floor := q.Get("floor"); floor != "" {
		f := queryInt(floor)
		filter.Floor = &f
	}

	rooms, total, err := s.rooms.List(r.Context(), filter)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	filter.Normalize()
	writePaged(w, rooms, filter.Page, filter.Limit, total)
}

// handleCreateRoom creates a room.
func (s *Server) handleCreateRoom(w http.ResponseWriter, r *http.Request) {
	var req createRoomRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	rm := &room.Room{
		Name:     req.Name,
		Category: req.Category,
		Floor:    req.Floor,
	}
	if req.Settings != nil {
		rm.Settings = *req.Settings
	}

	if err := s.rooms.Create(r.Context(), rm); err != nil {
		writeDomainError(w, err)
		return
	}

	writeSuccess(w, http.StatusCreated, rm)
}

// handleGetRoom returns a single room.
func (s *Server) handleGetRoom(w http.ResponseWriter, r *http.Request) {
	rm, err := s.rooms.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, rm)
}

// handleUpdateRoom applies a partial update to a room's metadata.
func (s *Server) handleUpdateRoom(w http.ResponseWriter, r *http.Request) {
	var req updateRoomRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	rm, err := s.rooms.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	if req.Name != nil {
		rm.Name = *req.Name
	}
	if req.Category != nil {
		rm.Category = *req.Category
	}
	if req.Floor != nil {
		rm.Floor = *req.Floor
	}
	if req.Settings != nil {
		rm.Settings = *req.Settings
	}

	if err := s.rooms.Update(r.Context(), rm); err != nil {
		writeDomainError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, rm)
}

// handleDeleteRoom soft-deletes a room. Rooms with active devices
// cannot be deleted.
func (s *Server) handleDeleteRoom(w http.ResponseWriter, r *http.Request) {
	if err := s.rooms.Deactivate(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeDomainError(w, err)
		return
	}
	writeSuccessMessage(w, http.StatusOK, "room deleted", nil)
}

// handleRoomStats aggregates device counts for a room from live
// registry state.
func (s *Server) handleRoomStats(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := s.rooms.Get(r.Context(), id); err != nil {
		writeDomainError(w, err)
		return
	}

	devices, err := s.registry.GetDevicesByRoom(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	stats := roomStatsResponse{
		RoomID:       id,
		TotalDevices: len(devices),
		ByType:       make(map[device.DeviceType]int),
	}
	for i := range devices {
		d := &devices[i]
		stats.ByType[d.Type]++
		if d.Status.IsOn {
			stats.OnCount++
		}
		if d.Status.IsOnline {
			stats.OnlineCount++
		}
	}

	writeSuccess(w, http.StatusOK, stats)
}

// handleRoomTemperature sets the room's target temperature.
func (s *Server) handleRoomTemperature(w http.ResponseWriter, r *http.Request) {
	var req roomTemperatureRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Target == nil {
		writeBadRequest(w, "target temperature is required")
		return
	}

	rm, err := s.rooms.SetTemperature(r.Context(), chi.URLParam(r, "id"), *req.Target)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, rm)
}

// handleRoomLighting sets the room's target lighting level.
func (s *Server) handleRoomLighting(w http.ResponseWriter, r *http.Request) {
	var req roomLightingRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.TargetLevel == nil {
		writeBadRequest(w, "targetLevel is required")
		return
	}

	rm, err := s.rooms.SetLighting(r.Context(), chi.URLParam(r, "id"), *req.TargetLevel)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, rm)
}

// handleRoomOccupancy records a sensor-style occupancy observation.
func (s *Server) handleRoomOccupancy(w http.ResponseWriter, r *http.Request) {
	var req roomOccupancyRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.IsOccupied == nil {
		writeBadRequest(w, "isOccupied boolean is required")
		return
	}

	rm, err := s.rooms.UpdateOccupancy(r.Context(), chi.URLParam(r, "id"), *req.IsOccupied, req.SensorID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, rm)
}
