package device

import (
	"context"
	"database/sql"
	"os"
	"testing"

	_ "github.com/mattn/go-sqlite3"
)

// testDB creates a temporary SQLite database with the devices schema applied.
// The database file is cleaned up when the test completes.
func testDB(t *testing.T) *sql.DB {
	t.Helper()

	// Use a temp file so WAL mode works (in-memory doesn't support it)
	f, err := os.CreateTemp("", "device-test-*.db")
	if err != nil {
		t.Fatalf("creating temp db: %v", err)
	}
	dbPath := f.Name()
	f.Close()
	t.Cleanup(func() { os.Remove(dbPath) })

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=ON")
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	migrationSQL := `
		CREATE TABLE devices (
			id TEXT PRIMARY KEY,
			room_id TEXT NOT NULL,
			name TEXT NOT NULL,
			type TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT '{}',
			payload TEXT,
			permissions TEXT NOT NULL DEFAULT '[]',
			is_active INTEGER NOT NULL DEFAULT 1,
			created_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now')),
			updated_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now'))
		) STRICT;

		CREATE INDEX idx_devices_room ON devices(room_id);
		CREATE INDEX idx_devices_type ON devices(type);
	`
	if _, err := db.Exec(migrationSQL); err != nil {
		t.Fatalf("applying devices migration: %v", err)
	}

	return db
}

// testLight builds a valid light device in the given room.
func testLight(name, roomID string) *Device {
	return &Device{
		ID:     GenerateID(),
		Name:   name,
		Type:   TypeLight,
		RoomID: roomID,
		Status: Status{IsOnline: true},
		Light: &LightState{
			Brightness: 75,
			Color:      "#ffeedd",
		},
		IsActive: true,
	}
}

// testPlug builds a valid plug device in the given room.
func testPlug(name, roomID string) *Device {
	return &Device{
		ID:     GenerateID(),
		Name:   name,
		Type:   TypePlug,
		RoomID: roomID,
		Status: Status{IsOnline: true},
		Plug: &PlugState{
			PowerConsumption: 12.5,
			Voltage:          230,
		},
		IsActive: true,
	}
}

// testThermostat builds a valid thermostat device in the given room.
func testThermostat(name, roomID string, mode ThermostatMode) *Device {
	return &Device{
		ID:     GenerateID(),
		Name:   name,
		Type:   TypeThermostat,
		RoomID: roomID,
		Status: Status{IsOnline: true, IsOn: mode != ModeOff},
		Thermostat: &ThermostatState{
			CurrentTemp: 20.5,
			TargetTemp:  21,
			Mode:        mode,
			FanSpeed:    FanAuto,
		},
		IsActive: true,
	}
}

// testSensor builds a valid sensor device in the given room.
func testSensor(name, roomID string) *Device {
	return &Device{
		ID:     GenerateID(),
		Name:   name,
		Type:   TypeSensor,
		RoomID: roomID,
		Status: Status{IsOnline: true},
		Sensor: &SensorState{
			SensorType: SensorTemperature,
			Value:      21.3,
			Unit:       "°C",
		},
		IsActive: true,
	}
}

// seedDevice persists a device through the repository, failing the test
// on error.
func seedDevice(t *testing.T, repo Repository, d *Device) *Device {
	t.Helper()

	if err := repo.Create(context.Background(), d); err != nil {
		t.Fatalf("seeding device %s: %v", d.Name, err)
	}
	return d
}

// testRegistry builds a registry over a fresh SQLite repository.
func testRegistry(t *testing.T) (*Registry, Repository) {
	t.Helper()

	repo := NewSQLiteRepository(testDB(t))
	return NewRegistry(repo), repo
}
