package device

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Pagination defaults and limits for device listings.
const (
	DefaultPage  = 1
	DefaultLimit = 50
	MaxLimit     = 200
)

// Status filter values accepted by ListFilter.Status.
const (
	StatusFilterOn      = "isOn"
	StatusFilterOff     = "isOff"
	StatusFilterOnline  = "online"
	StatusFilterOffline = "offline"
)

// ListFilter narrows and paginates device listings.
// Zero values mean "no filter"; Normalize applies pagination defaults.
type ListFilter struct {
	RoomID string
	Type   DeviceType
	Status string
	Page   int
	Limit  int
}

// Normalize applies pagination defaults and caps the page size.
func (f *ListFilter) Normalize() {
	if f.Page < 1 {
		f.Page = DefaultPage
	}
	if f.Limit < 1 {
		f.Limit = DefaultLimit
	}
	if f.Limit > MaxLimit {
		f.Limit = MaxLimit
	}
}

// Repository defines the interface for device persistence operations.
// This abstraction allows for different implementations (SQLite, mock, etc.)
// and enables unit testing without database dependencies.
//
// Deactivated devices are invisible to every method except Update, which
// is how reactivation would be persisted; GetByID and the listing methods
// treat them as absent.
type Repository interface {
	// GetByID retrieves an active device by its unique identifier.
	// Returns ErrDeviceNotFound if the device does not exist or is inactive.
	GetByID(ctx context.Context, id string) (*Device, error)

	// List retrieves active devices matching the filter, with the total
	// count of matches before pagination.
	List(ctx context.Context, filter ListFilter) ([]Device, int, error)

	// ListAll retrieves every active device, unpaginated. Used to warm
	// the registry cache.
	ListAll(ctx context.Context) ([]Device, error)

	// ListByRoom retrieves all active devices in a specific room.
	ListByRoom(ctx context.Context, roomID string) ([]Device, error)

	// Create inserts a new device.
	// Returns ErrDeviceExists if a device with the same ID already exists.
	Create(ctx context.Context, device *Device) error

	// Update modifies an existing device.
	// Returns ErrDeviceNotFound if the device does not exist.
	Update(ctx context.Context, device *Device) error

	// Deactivate soft-deletes a device by setting is_active to false.
	// Returns ErrDeviceNotFound if the device does not exist or is
	// already inactive.
	Deactivate(ctx context.Context, id string) error

	// CountActiveByRoom returns the number of active devices in a room.
	// Used to guard room deletion.
	CountActiveByRoom(ctx context.Context, roomID string) (int, error)
}

// SQLiteRepository implements Repository using SQLite.
// Devices are stored document-style: status, payload and permissions
// live in JSON columns.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed repository.
// The db parameter should be an open SQLite connection.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const deviceColumns = `id, room_id, name, type, status, payload, permissions,
		is_active, created_at, updated_at`

// GetByID retrieves an active device by its unique identifier.
func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*Device, error) {
	query := `
		SELECT ` + deviceColumns + `
		FROM devices
		WHERE id = ? AND is_active = 1`

	row := r.db.QueryRowContext(ctx, query, id)
	device, err := scanDeviceRow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDeviceNotFound
		}
		return nil, fmt.Errorf("querying device by id: %w", err)
	}
	return device, nil
}

// List retrieves active devices matching the filter, newest-stable order
// by name, along with the total match count before pagination.
func (r *SQLiteRepository) List(ctx context.Context, filter ListFilter) ([]Device, int, error) {
	filter.Normalize()

	where, args := buildDeviceWhere(filter)

	var total int
	countQuery := "SELECT COUNT(*) FROM devices " + where
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting devices: %w", err)
	}

	query := `
		SELECT ` + deviceColumns + `
		FROM devices ` + where + `
		ORDER BY name
		LIMIT ? OFFSET ?`
	pageArgs := append(args, filter.Limit, (filter.Page-1)*filter.Limit)

	devices, err := r.queryDevices(ctx, query, pageArgs...)
	if err != nil {
		return nil, 0, err
	}
	return devices, total, nil
}

// ListAll retrieves every active device.
func (r *SQLiteRepository) ListAll(ctx context.Context) ([]Device, error) {
	query := `
		SELECT ` + deviceColumns + `
		FROM devices
		WHERE is_active = 1
		ORDER BY name`

	return r.queryDevices(ctx, query)
}

// ListByRoom retrieves all active devices in a specific room.
func (r *SQLiteRepository) ListByRoom(ctx context.Context, roomID string) ([]Device, error) {
	query := `
		SELECT ` + deviceColumns + `
		FROM devices
		WHERE room_id = ? AND is_active = 1
		ORDER BY name`

	return r.queryDevices(ctx, query, roomID)
}

// buildDeviceWhere translates a ListFilter into a WHERE clause.
// Status filters reach into the status JSON document.
func buildDeviceWhere(filter ListFilter) (string, []any) {
	clauses := []string{"is_active = 1"}
	var args []any

	if filter.RoomID != "" {
		clauses = append(clauses, "room_id = ?")
		args = append(args, filter.RoomID)
	}
	if filter.Type != "" {
		clauses = append(clauses, "type = ?")
		args = append(args, string(filter.Type))
	}
	switch filter.Status {
	case StatusFilterOn:
		clauses = append(clauses, "json_extract(status, '$.isOn') = 1")
	case StatusFilterOff:
		clauses = append(clauses, "json_extract(status, '$.isOn') = 0")
	case StatusFilterOnline:
		clauses = append(clauses, "json_extract(status, '$.isOnline') = 1")
	case StatusFilterOffline:
		clauses = append(clauses, "json_extract(status, '$.isOnline') = 0")
	}

	return "WHERE " + strings.Join(clauses, " AND "), args
}

// Create inserts a new device.
func (r *SQLiteRepository) Create(ctx context.Context, device *Device) error {
	statusJSON, payloadJSON, permissionsJSON, err := marshalDeviceDocs(device)
	if err != nil {
		return err
	}

	// Set timestamps if not set
	now := time.Now().UTC()
	if device.CreatedAt.IsZero() {
		device.CreatedAt = now
	}
	device.UpdatedAt = now

	query := `
		INSERT INTO devices (
			id, room_id, name, type, status, payload, permissions,
			is_active, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = r.db.ExecContext(ctx, query,
		device.ID,
		device.RoomID,
		device.Name,
		string(device.Type),
		statusJSON,
		payloadJSON,
		permissionsJSON,
		boolToInt(device.IsActive),
		device.CreatedAt.Format(time.RFC3339),
		device.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrDeviceExists
		}
		return fmt.Errorf("inserting device: %w", err)
	}

	return nil
}

// Update modifies an existing device. The type column is never written;
// type is immutable after creation.
func (r *SQLiteRepository) Update(ctx context.Context, device *Device) error {
	statusJSON, payloadJSON, permissionsJSON, err := marshalDeviceDocs(device)
	if err != nil {
		return err
	}

	device.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE devices SET
			room_id = ?, name = ?, status = ?, payload = ?,
			permissions = ?, is_active = ?, updated_at = ?
		WHERE id = ?`

	result, err := r.db.ExecContext(ctx, query,
		device.RoomID,
		device.Name,
		statusJSON,
		payloadJSON,
		permissionsJSON,
		boolToInt(device.IsActive),
		device.UpdatedAt.Format(time.RFC3339),
		device.ID,
	)
	if err != nil {
		return fmt.Errorf("updating device: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrDeviceNotFound
	}

	return nil
}

// Deactivate soft-deletes a device.
func (r *SQLiteRepository) Deactivate(ctx context.Context, id string) error {
	now := time.Now().UTC()
	query := `
		UPDATE devices
		SET is_active = 0, updated_at = ?
		WHERE id = ? AND is_active = 1`

	result, err := r.db.ExecContext(ctx, query, now.Format(time.RFC3339), id)
	if err != nil {
		return fmt.Errorf("deactivating device: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrDeviceNotFound
	}

	return nil
}

// CountActiveByRoom returns the number of active devices in a room.
func (r *SQLiteRepository) CountActiveByRoom(ctx context.Context, roomID string) (int, error) {
	var count int
	query := "SELECT COUNT(*) FROM devices WHERE room_id = ? AND is_active = 1"
	if err := r.db.QueryRowContext(ctx, query, roomID).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting room devices: %w", err)
	}
	return count, nil
}

// queryDevices executes a query and returns a slice of devices.
func (r *SQLiteRepository) queryDevices(ctx context.Context, query string, args ...any) ([]Device, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying devices: %w", err)
	}
	defer rows.Close()

	var devices []Device
	for rows.Next() {
		device, err := scanDeviceRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning device: %w", err)
		}
		devices = append(devices, *device)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating devices: %w", err)
	}

	return devices, nil
}

// marshalDeviceDocs serialises the device's JSON document columns.
// The payload column holds the single typed payload (NULL for switches).
func marshalDeviceDocs(d *Device) (status, payload, permissions sql.NullString, err error) {
	statusBytes, err := json.Marshal(d.Status)
	if err != nil {
		return status, payload, permissions, fmt.Errorf("marshalling status: %w", err)
	}
	status = sql.NullString{String: string(statusBytes), Valid: true}

	var payloadValue any
	switch {
	case d.Light != nil:
		payloadValue = d.Light
	case d.Plug != nil:
		payloadValue = d.Plug
	case d.Thermostat != nil:
		payloadValue = d.Thermostat
	case d.Camera != nil:
		payloadValue = d.Camera
	case d.Sensor != nil:
		payloadValue = d.Sensor
	}
	if payloadValue != nil {
		payloadBytes, merr := json.Marshal(payloadValue)
		if merr != nil {
			return status, payload, permissions, fmt.Errorf("marshalling payload: %w", merr)
		}
		payload = sql.NullString{String: string(payloadBytes), Valid: true}
	}

	permissionsBytes, err := json.Marshal(d.Permissions)
	if err != nil {
		return status, payload, permissions, fmt.Errorf("marshalling permissions: %w", err)
	}
	permissions = sql.NullString{String: string(permissionsBytes), Valid: true}

	return status, payload, permissions, nil
}

// rowScanner is an interface that sql.Row and sql.Rows both implement.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanDeviceRow scans a row or rows result into a Device.
func scanDeviceRow(scanner rowScanner) (*Device, error) {
	var d Device
	var deviceType string
	var statusJSON string
	var payloadJSON, permissionsJSON sql.NullString
	var isActive int
	var createdAt, updatedAt string

	err := scanner.Scan(
		&d.ID,
		&d.RoomID,
		&d.Name,
		&deviceType,
		&statusJSON,
		&payloadJSON,
		&permissionsJSON,
		&isActive,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	d.Type = DeviceType(deviceType)
	d.IsActive = isActive != 0

	var parseErr error
	d.CreatedAt, parseErr = time.Parse(time.RFC3339, createdAt)
	if parseErr != nil {
		return nil, fmt.Errorf("parsing created_at: %w", parseErr)
	}
	d.UpdatedAt, parseErr = time.Parse(time.RFC3339, updatedAt)
	if parseErr != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", parseErr)
	}

	if err := json.Unmarshal([]byte(statusJSON), &d.Status); err != nil {
		return nil, fmt.Errorf("unmarshalling status: %w", err)
	}

	if payloadJSON.Valid && payloadJSON.String != "" {
		if err := unmarshalPayload(&d, payloadJSON.String); err != nil {
			return nil, err
		}
	}

	if permissionsJSON.Valid && permissionsJSON.String != "" {
		if err := json.Unmarshal([]byte(permissionsJSON.String), &d.Permissions); err != nil {
			return nil, fmt.Errorf("unmarshalling permissions: %w", err)
		}
	}

	return &d, nil
}

// unmarshalPayload decodes the payload document into the pointer matching
// the device's type.
func unmarshalPayload(d *Device, raw string) error {
	var target any
	switch d.Type {
	case TypeLight:
		d.Light = &LightState{}
		target = d.Light
	case TypePlug:
		d.Plug = &PlugState{}
		target = d.Plug
	case TypeThermostat:
		d.Thermostat = &ThermostatState{}
		target = d.Thermostat
	case TypeCamera:
		d.Camera = &CameraState{}
		target = d.Camera
	case TypeSensor:
		d.Sensor = &SensorState{}
		target = d.Sensor
	case TypeSwitch:
		// Switches store no payload; tolerate stray data.
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrInvalidDeviceType, d.Type)
	}
	if err := json.Unmarshal([]byte(raw), target); err != nil {
		return fmt.Errorf("unmarshalling %s payload: %w", d.Type, err)
	}
	return nil
}

// boolToInt converts a boolean to 0/1 for SQLite storage.
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// isUniqueConstraintError checks if an error is a SQLite unique constraint violation.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "unique constraint")
}
