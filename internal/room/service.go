package room

import (
	"context"
	"fmt"
	"time"
)

// DeviceCounter reports how many active devices a room still owns.
// The device registry satisfies this; it gates room deactivation.
type DeviceCounter interface {
	CountActiveByRoom(ctx context.Context, roomID string) (int, error)
}

// Service implements room operations on top of a Repository.
type Service struct {
	repo    Repository
	devices DeviceCounter
}

// NewService creates a room service.
func NewService(repo Repository, devices DeviceCounter) *Service {
	return &Service{repo: repo, devices: devices}
}

// Create validates and persists a new room. New rooms start active.
func (s *Service) Create(ctx context.Context, room *Room) error {
	if room.ID == "" {
		room.ID = GenerateID()
	}
	room.IsActive = true

	if err := Validate(room); err != nil {
		return err
	}
	return s.repo.Create(ctx, room)
}

// Get retrieves an active room.
func (s *Service) Get(ctx context.Context, id string) (*Room, error) {
	return s.repo.GetByID(ctx, id)
}

// List retrieves active rooms matching the filter with the total count.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Room, int, error) {
	return s.repo.List(ctx, filter)
}

// Update validates and persists changes to a room.
func (s *Service) Update(ctx context.Context, room *Room) error {
	if err := Validate(room); err != nil {
		return err
	}
	return s.repo.Update(ctx, room)
}

// Deactivate soft-deletes a room.
// Refused with ErrRoomHasDevices while the room still owns active
// devices; callers must move or deactivate those first.
func (s *Service) Deactivate(ctx context.Context, id string) error {
	// Existence first, so callers can distinguish 404 from the guard
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		return err
	}

	count, err := s.devices.CountActiveByRoom(ctx, id)
	if err != nil {
		return fmt.Errorf("counting room devices: %w", err)
	}
	if count > 0 {
		return fmt.Errorf("%w: %d active devices in room %s", ErrRoomHasDevices, count, id)
	}

	return s.repo.Deactivate(ctx, id)
}

// SetTemperature updates the room's target temperature.
func (s *Service) SetTemperature(ctx context.Context, id string, target float64) (*Room, error) {
	return s.mutate(ctx, id, func(r *Room) {
		r.Temperature.Target = target
	})
}

// SetLighting updates the room's target lighting level, clamped to [0,100].
func (s *Service) SetLighting(ctx context.Context, id string, targetLevel int) (*Room, error) {
	if targetLevel < 0 {
		targetLevel = 0
	}
	if targetLevel > 100 {
		targetLevel = 100
	}
	return s.mutate(ctx, id, func(r *Room) {
		r.Lighting.TargetLevel = targetLevel
	})
}

// UpdateOccupancy records a sensor-style occupancy observation,
// refreshing lastDetected.
func (s *Service) UpdateOccupancy(ctx context.Context, id string, isOccupied bool, sensorID *string) (*Room, error) {
	return s.mutate(ctx, id, func(r *Room) {
		r.Occupancy.IsOccupied = isOccupied
		r.Occupancy.LastDetected = time.Now().UTC()
		if sensorID != nil {
			r.Occupancy.SensorID = sensorID
		}
	})
}

// mutate runs a read-modify-write cycle on a room.
func (s *Service) mutate(ctx context.Context, id string, apply func(*Room)) (*Room, error) {
	r, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	apply(r)

	if err := s.repo.Update(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}
