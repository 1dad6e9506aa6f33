package room

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Pagination defaults and limits for room listings.
const (
	DefaultPage  = 1
	DefaultLimit = 50
	MaxLimit     = 200
)

// ListFilter narrows and paginates room listings.
// Floor is a pointer so floor 0 remains filterable.
type ListFilter struct {
	Category Category
	Floor    *int
	Page     int
	Limit    int
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

// Repository defines the interface for room persistence operations.
// Deactivated rooms are treated as absent everywhere.
type Repository interface {
	// GetByID retrieves an active room.
	// Returns ErrRoomNotFound if the room does not exist or is inactive.
	GetByID(ctx context.Context, id string) (*Room, error)

	// List retrieves active rooms matching the filter, with the total
	// count of matches before pagination.
	List(ctx context.Context, filter ListFilter) ([]Room, int, error)

	// Create inserts a new room.
	// Returns ErrRoomExists if a room with the same ID already exists.
	Create(ctx context.Context, room *Room) error

	// Update modifies an existing room.
	// Returns ErrRoomNotFound if the room does not exist.
	Update(ctx context.Context, room *Room) error

	// Deactivate soft-deletes a room.
	// Returns ErrRoomNotFound if the room does not exist or is already
	// inactive. The active-devices guard lives in the Service.
	Deactivate(ctx context.Context, id string) error
}

// SQLiteRepository implements Repository using SQLite.
// Environmental state, occupancy and settings are stored as JSON columns.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed room repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const roomColumns = `id, name, category, floor, climate, lighting, occupancy,
		settings, is_active, created_at, updated_at`

// GetByID retrieves an active room.
func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*Room, error) {
	query := `
		SELECT ` + roomColumns + `
		FROM rooms
		WHERE id = ? AND is_active = 1`

	row := r.db.QueryRowContext(ctx, query, id)
	room, err := scanRoomRow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRoomNotFound
		}
		return nil, fmt.Errorf("querying room by id: %w", err)
	}
	return room, nil
}

// List retrieves active rooms matching the filter, ordered by floor then
// name, with the total match count before pagination.
func (r *SQLiteRepository) List(ctx context.Context, filter ListFilter) ([]Room, int, error) {
	filter.Normalize()

	clauses := []string{"is_active = 1"}
	var args []any
	if filter.Category != "" {
		clauses = append(clauses, "category = ?")
		args = append(args, string(filter.Category))
	}
	if filter.Floor != nil {
		clauses = append(clauses, "floor = ?")
		args = append(args, *filter.Floor)
	}
	where := "WHERE " + strings.Join(clauses, " AND ")

	var total int
	countQuery := "SELECT COUNT(*) FROM rooms " + where
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting rooms: %w", err)
	}

	query := `
		SELECT ` + roomColumns + `
		FROM rooms ` + where + `
		ORDER BY floor, name
		LIMIT ? OFFSET ?`
	pageArgs := append(args, filter.Limit, (filter.Page-1)*filter.Limit)

	rows, err := r.db.QueryContext(ctx, query, pageArgs...)
	if err != nil {
		return nil, 0, fmt.Errorf("querying rooms: %w", err)
	}
	defer rows.Close()

	var rooms []Room
	for rows.Next() {
		room, err := scanRoomRow(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scanning room: %w", err)
		}
		rooms = append(rooms, *room)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterating rooms: %w", err)
	}

	return rooms, total, nil
}

// climateDoc bundles temperature and humidity into one JSON column.
type climateDoc struct {
	Temperature Reading `json:"temperature"`
	Humidity    Reading `json:"humidity"`
}

// Create inserts a new room.
func (r *SQLiteRepository) Create(ctx context.Context, room *Room) error {
	climate, lighting, occupancy, settings, err := marshalRoomDocs(room)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	if room.CreatedAt.IsZero() {
		room.CreatedAt = now
	}
	room.UpdatedAt = now

	query := `
		INSERT INTO rooms (
			id, name, category, floor, climate, lighting, occupancy,
			settings, is_active, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = r.db.ExecContext(ctx, query,
		room.ID,
		room.Name,
		string(room.Category),
		room.Floor,
		climate,
		lighting,
		occupancy,
		settings,
		boolToInt(room.IsActive),
		room.CreatedAt.Format(time.RFC3339),
		room.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return ErrRoomExists
		}
		return fmt.Errorf("inserting room: %w", err)
	}

	return nil
}

// Update modifies an existing room.
func (r *SQLiteRepository) Update(ctx context.Context, room *Room) error {
	climate, lighting, occupancy, settings, err := marshalRoomDocs(room)
	if err != nil {
		return err
	}

	room.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE rooms SET
			name = ?, category = ?, floor = ?, climate = ?, lighting = ?,
			occupancy = ?, settings = ?, is_active = ?, updated_at = ?
		WHERE id = ?`

	result, err := r.db.ExecContext(ctx, query,
		room.Name,
		string(room.Category),
		room.Floor,
		climate,
		lighting,
		occupancy,
		settings,
		boolToInt(room.IsActive),
		room.UpdatedAt.Format(time.RFC3339),
		room.ID,
	)
	if err != nil {
		return fmt.Errorf("updating room: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrRoomNotFound
	}

	return nil
}

// Deactivate soft-deletes a room.
func (r *SQLiteRepository) Deactivate(ctx context.Context, id string) error {
	now := time.Now().UTC()
	query := `
		UPDATE rooms
		SET is_active = 0, updated_at = ?
		WHERE id = ? AND is_active = 1`

	result, err := r.db.ExecContext(ctx, query, now.Format(time.RFC3339), id)
	if err != nil {
		return fmt.Errorf("deactivating room: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrRoomNotFound
	}

	return nil
}

// marshalRoomDocs serialises the room's JSON document columns.
func marshalRoomDocs(room *Room) (climate, lighting, occupancy, settings string, err error) {
	climateBytes, err := json.Marshal(climateDoc{
		Temperature: room.Temperature,
		Humidity:    room.Humidity,
	})
	if err != nil {
		return "", "", "", "", fmt.Errorf("marshalling climate: %w", err)
	}

	lightingBytes, err := json.Marshal(room.Lighting)
	if err != nil {
		return "", "", "", "", fmt.Errorf("marshalling lighting: %w", err)
	}

	occupancyBytes, err := json.Marshal(room.Occupancy)
	if err != nil {
		return "", "", "", "", fmt.Errorf("marshalling occupancy: %w", err)
	}

	settingsBytes, err := json.Marshal(room.Settings)
	if err != nil {
		return "", "", "", "", fmt.Errorf("marshalling settings: %w", err)
	}

	return string(climateBytes), string(lightingBytes), string(occupancyBytes), string(settingsBytes), nil
}

// rowScanner is an interface that sql.Row and sql.Rows both implement.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanRoomRow scans a row or rows result into a Room.
func scanRoomRow(scanner rowScanner) (*Room, error) {
	var room Room
	var category string
	var climateJSON, lightingJSON, occupancyJSON, settingsJSON string
	var isActive int
	var createdAt, updatedAt string

	err := scanner.Scan(
		&room.ID,
		&room.Name,
		&category,
		&room.Floor,
		&climateJSON,
		&lightingJSON,
		&occupancyJSON,
		&settingsJSON,
		&isActive,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	room.Category = Category(category)
	room.IsActive = isActive != 0

	var parseErr error
	room.CreatedAt, parseErr = time.Parse(time.RFC3339, createdAt)
	if parseErr != nil {
		return nil, fmt.Errorf("parsing created_at: %w", parseErr)
	}
	room.UpdatedAt, parseErr = time.Parse(time.RFC3339, updatedAt)
	if parseErr != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", parseErr)
	}

	var climate climateDoc
	if err := json.Unmarshal([]byte(climateJSON), &climate); err != nil {
		return nil, fmt.Errorf("unmarshalling climate: %w", err)
	}
	room.Temperature = climate.Temperature
	room.Humidity = climate.Humidity

	if err := json.Unmarshal([]byte(lightingJSON), &room.Lighting); err != nil {
		return nil, fmt.Errorf("unmarshalling lighting: %w", err)
	}
	if err := json.Unmarshal([]byte(occupancyJSON), &room.Occupancy); err != nil {
		return nil, fmt.Errorf("unmarshalling occupancy: %w", err)
	}
	if err := json.Unmarshal([]byte(settingsJSON), &room.Settings); err != nil {
		return nil, fmt.Errorf("unmarshalling settings: %w", err)
	}

	return &room, nil
}

// boolToInt converts a boolean to 0/1 for SQLite storage.
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
