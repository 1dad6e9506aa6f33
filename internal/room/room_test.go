package room

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"testing"

	_ "github.com/mattn/go-sqlite3"
)

// testDB creates a temporary SQLite database with the rooms schema applied.
func testDB(t *testing.T) *sql.DB {
	t.Helper()

	f, err := os.CreateTemp("", "room-test-*.db")
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
		CREATE TABLE rooms (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			category TEXT NOT NULL,
			floor INTEGER NOT NULL DEFAULT 0,
			climate TEXT NOT NULL DEFAULT '{}',
			lighting TEXT NOT NULL DEFAULT '{}',
			occupancy TEXT NOT NULL DEFAULT '{}',
			settings TEXT NOT NULL DEFAULT '{}',
			is_active INTEGER NOT NULL DEFAULT 1,
			created_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now')),
			updated_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now'))
		) STRICT;

		CREATE INDEX idx_rooms_category ON rooms(category);
	`
	if _, err := db.Exec(migrationSQL); err != nil {
		t.Fatalf("applying rooms migration: %v", err)
	}

	return db
}

// stubDeviceCounter returns a fixed active device count per room.
type stubDeviceCounter struct {
	counts map[string]int
}

func (s *stubDeviceCounter) CountActiveByRoom(_ context.Context, roomID string) (int, error) {
	return s.counts[roomID], nil
}

// testRoom builds a valid room.
func testRoom(name string, category Category, floor int) *Room {
	return &Room{
		ID:          GenerateID(),
		Name:        name,
		Category:    category,
		Floor:       floor,
		Temperature: Reading{Current: 20.5, Target: 21},
		Humidity:    Reading{Current: 45, Target: 50},
		Lighting:    Lighting{Level: 60, TargetLevel: 60},
		Settings:    Settings{AutoLighting: true},
		IsActive:    true,
	}
}

func testService(t *testing.T, counts map[string]int) (*Service, Repository) {
	t.Helper()

	repo := NewSQLiteRepository(testDB(t))
	if counts == nil {
		counts = map[string]int{}
	}
	return NewService(repo, &stubDeviceCounter{counts: counts}), repo
}

func TestService_CreateAndGet(t *testing.T) {
	svc, _ := testService(t, nil)

	r := testRoom("Living Room", CategoryLivingAreas, 0)
	if err := svc.Create(context.Background(), r); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	got, err := svc.Get(context.Background(), r.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Name != "Living Room" || got.Category != CategoryLivingAreas {
		t.Errorf("Get() = %+v, want created fields", got)
	}
	if got.Temperature.Target != 21 || got.Humidity.Current != 45 {
		t.Errorf("climate not round-tripped: %+v", got)
	}
	if !got.Settings.AutoLighting {
		t.Error("settings not round-tripped")
	}
}

func TestService_Create_Invalid(t *testing.T) {
	svc, _ := testService(t, nil)

	r := testRoom("", CategoryBedrooms, 1)
	if err := svc.Create(context.Background(), r); !errors.Is(err, ErrInvalidRoom) {
		t.Errorf("Create(empty name) = %v, want ErrInvalidRoom", err)
	}

	r = testRoom("Attic", "garage", 2)
	if err := svc.Create(context.Background(), r); !errors.Is(err, ErrInvalidCategory) {
		t.Errorf("Create(bad category) = %v, want ErrInvalidCategory", err)
	}
}

func TestService_Get_NotFound(t *testing.T) {
	svc, _ := testService(t, nil)

	if _, err := svc.Get(context.Background(), "missing"); !errors.Is(err, ErrRoomNotFound) {
		t.Errorf("Get(missing) = %v, want ErrRoomNotFound", err)
	}
}

func TestService_List_Filters(t *testing.T) {
	svc, _ := testService(t, nil)

	for _, r := range []*Room{
		testRoom("Living Room", CategoryLivingAreas, 0),
		testRoom("Kitchen", CategoryKitchenDining, 0),
		testRoom("Master Bedroom", CategoryBedrooms, 1),
		testRoom("Guest Bedroom", CategoryBedrooms, 1),
	} {
		if err := svc.Create(context.Background(), r); err != nil {
			t.Fatalf("Create(%s) error = %v", r.Name, err)
		}
	}

	groundFloor := 0
	tests := []struct {
		name      string
		filter    ListFilter
		wantCount int
		wantTotal int
	}{
		{"no filter", ListFilter{}, 4, 4},
		{"by category", ListFilter{Category: CategoryBedrooms}, 2, 2},
		{"by floor", ListFilter{Floor: &groundFloor}, 2, 2},
		{"paginated", ListFilter{Page: 2, Limit: 3}, 1, 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rooms, total, err := svc.List(context.Background(), tt.filter)
			if err != nil {
				t.Fatalf("List() error = %v", err)
			}
			if len(rooms) != tt.wantCount {
				t.Errorf("List() returned %d rooms, want %d", len(rooms), tt.wantCount)
			}
			if total != tt.wantTotal {
				t.Errorf("List() total = %d, want %d", total, tt.wantTotal)
			}
		})
	}
}

func TestService_Deactivate_Guard(t *testing.T) {
	occupied := testRoom("Living Room", CategoryLivingAreas, 0)
	empty := testRoom("Utility Room", CategoryUtility, 0)

	svc, _ := testService(t, map[string]int{occupied.ID: 3})

	for _, r := range []*Room{occupied, empty} {
		if err := svc.Create(context.Background(), r); err != nil {
			t.Fatalf("Create(%s) error = %v", r.Name, err)
		}
	}

	// Room with active devices is refused
	if err := svc.Deactivate(context.Background(), occupied.ID); !errors.Is(err, ErrRoomHasDevices) {
		t.Errorf("Deactivate(occupied room) = %v, want ErrRoomHasDevices", err)
	}
	if _, err := svc.Get(context.Background(), occupied.ID); err != nil {
		t.Errorf("refused deactivation must not change the room: %v", err)
	}

	// Empty room deactivates and disappears
	if err := svc.Deactivate(context.Background(), empty.ID); err != nil {
		t.Fatalf("Deactivate(empty room) error = %v", err)
	}
	if _, err := svc.Get(context.Background(), empty.ID); !errors.Is(err, ErrRoomNotFound) {
		t.Errorf("Get(deactivated) = %v, want ErrRoomNotFound", err)
	}

	// Missing room reports 404, not the guard
	if err := svc.Deactivate(context.Background(), "missing"); !errors.Is(err, ErrRoomNotFound) {
		t.Errorf("Deactivate(missing) = %v, want ErrRoomNotFound", err)
	}
}

func TestService_SetTemperature(t *testing.T) {
	svc, _ := testService(t, nil)

	r := testRoom("Bedroom", CategoryBedrooms, 1)
	if err := svc.Create(context.Background(), r); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	updated, err := svc.SetTemperature(context.Background(), r.ID, 23.5)
	if err != nil {
		t.Fatalf("SetTemperature() error = %v", err)
	}
	if updated.Temperature.Target != 23.5 {
		t.Errorf("target = %g, want 23.5", updated.Temperature.Target)
	}
	if updated.Temperature.Current != 20.5 {
		t.Error("current temperature should be untouched")
	}
}

func TestService_SetLighting_Clamps(t *testing.T) {
	svc, _ := testService(t, nil)

	r := testRoom("Office", CategoryOffice, 0)
	if err := svc.Create(context.Background(), r); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	updated, err := svc.SetLighting(context.Background(), r.ID, 180)
	if err != nil {
		t.Fatalf("SetLighting() error = %v", err)
	}
	if updated.Lighting.TargetLevel != 100 {
		t.Errorf("targetLevel = %d, want clamped to 100", updated.Lighting.TargetLevel)
	}
}

func TestService_UpdateOccupancy(t *testing.T) {
	svc, _ := testService(t, nil)

	r := testRoom("Hallway", CategoryLivingAreas, 0)
	if err := svc.Create(context.Background(), r); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	sensorID := "sensor-7"
	updated, err := svc.UpdateOccupancy(context.Background(), r.ID, true, &sensorID)
	if err != nil {
		t.Fatalf("UpdateOccupancy() error = %v", err)
	}
	if !updated.Occupancy.IsOccupied {
		t.Error("isOccupied not applied")
	}
	if updated.Occupancy.LastDetected.IsZero() {
		t.Error("lastDetected should refresh")
	}
	if updated.Occupancy.SensorID == nil || *updated.Occupancy.SensorID != "sensor-7" {
		t.Error("sensorId not recorded")
	}
}
