package device

import (
	"context"
	"fmt"
	"sync"
)

// Logger defines the logging interface used by the Registry.
// This allows different logging implementations to be used.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Registry provides device management with caching and thread safety.
// It wraps a Repository and adds an in-memory cache for fast lookups,
// plus a per-device control lock so concurrent read-modify-write control
// operations on the same device serialise instead of interleaving.
//
// The cache is populated on startup via RefreshCache() and kept in sync
// by cache-invalidating CRUD operations.
//
// All public methods are thread-safe.
type Registry struct {
	repo    Repository
	cache   map[string]*Device // Cached active devices by ID
	cacheMu sync.RWMutex       // Protects cache

	locks   map[string]*sync.Mutex // Per-device control locks
	locksMu sync.Mutex             // Protects locks

	logger Logger
}

// NewRegistry creates a new device registry.
// The repository is used for persistence; the registry adds caching.
func NewRegistry(repo Repository) *Registry {
	return &Registry{
		repo:   repo,
		cache:  make(map[string]*Device),
		locks:  make(map[string]*sync.Mutex),
		logger: noopLogger{},
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.logger = logger
}

// lockFor returns the control lock for a device, creating it on first use.
// Locks are never removed; the set of device IDs is small and bounded.
func (r *Registry) lockFor(id string) *sync.Mutex {
	r.locksMu.Lock()
	defer r.locksMu.Unlock()

	if mu, ok := r.locks[id]; ok {
		return mu
	}
	mu := &sync.Mutex{}
	r.locks[id] = mu
	return mu
}

// WithControlLock runs fn while holding the device's control lock.
// Control-path mutations (toggle, partial status and payload updates)
// go through here so concurrent writers to one device serialise.
func (r *Registry) WithControlLock(id string, fn func() error) error {
	mu := r.lockFor(id)
	mu.Lock()
	defer mu.Unlock()
	return fn()
}

// RefreshCache reloads all active devices from the repository into the cache.
// This should be called on application startup.
func (r *Registry) RefreshCache(ctx context.Context) error {
	devices, err := r.repo.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("loading devices: %w", err)
	}

	r.cacheMu.Lock()
	defer r.cacheMu.Unlock()

	// Clear and rebuild cache with deep copies
	r.cache = make(map[string]*Device, len(devices))
	for i := range devices {
		d := devices[i]
		r.cache[d.ID] = d.DeepCopy()
	}

	r.logger.Info("device cache refreshed", "count", len(devices))
	return nil
}

// GetDevice retrieves an active device by ID.
// Returns ErrDeviceNotFound if the device does not exist or is inactive.
// The returned device is a deep copy; callers can safely modify it.
func (r *Registry) GetDevice(ctx context.Context, id string) (*Device, error) {
	// Try cache first
	r.cacheMu.RLock()
	cached, ok := r.cache[id]
	r.cacheMu.RUnlock()

	if ok {
		// Return a deep copy to prevent external mutation of cache
		return cached.DeepCopy(), nil
	}

	// Fall back to repository (might be a new device not yet cached)
	device, err := r.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	// Cache for future lookups (store a deep copy)
	r.cacheMu.Lock()
	r.cache[id] = device.DeepCopy()
	r.cacheMu.Unlock()

	return device, nil
}

// ListDevices retrieves active devices matching the filter, paginated,
// with the total match count. Listing always goes to the repository so
// filter and pagination semantics live in one place.
func (r *Registry) ListDevices(ctx context.Context, filter ListFilter) ([]Device, int, error) {
	return r.repo.List(ctx, filter)
}

// GetDevicesByRoom retrieves all active devices in a specific room.
// The returned devices are deep copies; callers can safely modify them.
func (r *Registry) GetDevicesByRoom(ctx context.Context, roomID string) ([]Device, error) {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()

	// Filter from cache if populated
	if len(r.cache) > 0 {
		var devices []Device
		for _, d := range r.cache {
			if d.RoomID == roomID {
				// Deep copy to prevent external mutation of cache
				devices = append(devices, *d.DeepCopy())
			}
		}
		return devices, nil
	}

	return r.repo.ListByRoom(ctx, roomID)
}

// CreateDevice creates a new device.
// It generates an ID if needed, validates, and persists it.
// New devices start active.
func (r *Registry) CreateDevice(ctx context.Context, device *Device) error {
	// Generate ID if not provided
	if device.ID == "" {
		device.ID = GenerateID()
	}

	device.IsActive = true

	// Validate
	if err := ValidateDevice(device); err != nil {
		return err
	}

	// Persist
	if err := r.repo.Create(ctx, device); err != nil {
		return err
	}

	// Update cache (store a deep copy to prevent external modification)
	r.cacheMu.Lock()
	r.cache[device.ID] = device.DeepCopy()
	r.cacheMu.Unlock()

	r.logger.Info("device created", "id", device.ID, "name", device.Name, "type", device.Type)
	return nil
}

// UpdateDevice updates an existing device.
// It validates the device, enforces type immutability, and persists
// the changes.
func (r *Registry) UpdateDevice(ctx context.Context, device *Device) error {
	existing, err := r.GetDevice(ctx, device.ID)
	if err != nil {
		return err
	}
	if device.Type != existing.Type {
		return ErrTypeImmutable
	}

	// Validate
	if err := ValidateDevice(device); err != nil {
		return err
	}

	// Persist
	if err := r.repo.Update(ctx, device); err != nil {
		return err
	}

	// Update cache (store a deep copy to prevent external modification)
	r.cacheMu.Lock()
	r.cache[device.ID] = device.DeepCopy()
	r.cacheMu.Unlock()

	r.logger.Info("device updated", "id", device.ID, "name", device.Name)
	return nil
}

// DeactivateDevice soft-deletes a device. The record survives with
// is_active=0; the cache entry is evicted so the device disappears
// from lookups.
func (r *Registry) DeactivateDevice(ctx context.Context, id string) error {
	if err := r.repo.Deactivate(ctx, id); err != nil {
		return err
	}

	// Update cache
	r.cacheMu.Lock()
	delete(r.cache, id)
	r.cacheMu.Unlock()

	r.logger.Info("device deactivated", "id", id)
	return nil
}

// CountActiveByRoom returns the number of active devices in a room.
func (r *Registry) CountActiveByRoom(ctx context.Context, roomID string) (int, error) {
	return r.repo.CountActiveByRoom(ctx, roomID)
}

// GetDeviceCount returns the number of cached devices.
func (r *Registry) GetDeviceCount() int {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()
	return len(r.cache)
}

// Stats returns registry statistics for monitoring.
type Stats struct {
	TotalDevices int
	ByType       map[DeviceType]int
	OnCount      int
	OnlineCount  int
}

// GetStats returns current registry statistics.
func (r *Registry) GetStats() Stats {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()

	stats := Stats{
		TotalDevices: len(r.cache),
		ByType:       make(map[DeviceType]int),
	}

	for _, d := range r.cache {
		stats.ByType[d.Type]++
		if d.Status.IsOn {
			stats.OnCount++
		}
		if d.Status.IsOnline {
			stats.OnlineCount++
		}
	}

	return stats
}
