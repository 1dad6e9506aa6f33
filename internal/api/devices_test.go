package api

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"github.com/wrenfold/homedeck/internal/auth"
	"github.com/wrenfold/homedeck/internal/device"
)

// seedLight inserts an active light owned by the given user.
func (e *testEnv) seedLight(t *testing.T, name, roomID, ownerID string) *device.Device {
	t.Helper()

	d := &device.Device{
		Name:   name,
		Type:   device.TypeLight,
		RoomID: roomID,
		Status: device.Status{IsOnline: true},
		Light:  &device.LightState{Brightness: 50, Color: "#ffffff"},
		Permissions: []device.PermissionEntry{
			{UserID: ownerID, Level: device.PermissionAdmin},
		},
	}
	if err := e.registry.CreateDevice(context.Background(), d); err != nil {
		t.Fatalf("seeding light: %v", err)
	}
	return d
}

func TestCreateDevice(t *testing.T) {
	env := testServer(t)
	user := env.seedUser(t, "alice@example.com", auth.RoleUser)
	token := tokenFor(t, user)

	w := env.doJSON(t, http.MethodPost, "/api/devices", token, map[string]any{
		"name":   "Desk Lamp",
		"type":   "light",
		"roomId": "room-1",
		"light":  map[string]any{"brightness": 80, "color": "#ffcc00"},
	})

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d (body: %s)", w.Code, http.StatusCreated, w.Body.String())
	}

	resp := decodeEnvelope(t, w)
	data := resp["data"].(map[string]any)
	if data["id"] == "" || data["id"] == nil {
		t.Error("created device has no id")
	}

	// Creator receives an admin permission entry
	perms, ok := data["permissions"].([]any)
	if !ok || len(perms) == 0 {
		t.Fatalf("permissions missing from created device")
	}
	first := perms[0].(map[string]any)
	if first["userId"] != user.ID || first["level"] != "admin" {
		t.Errorf("creator entry = %v, want admin for %s", first, user.ID)
	}
}

func TestCreateDevice_PayloadMismatch(t *testing.T) {
	env := testServer(t)
	token := tokenFor(t, env.seedUser(t, "alice@example.com", auth.RoleUser))

	w := env.doJSON(t, http.MethodPost, "/api/devices", token, map[string]any{
		"name":       "Confused",
		"type":       "light",
		"roomId":     "room-1",
		"thermostat": map[string]any{"targetTemp": 21},
	})

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestGetDevice(t *testing.T) {
	env := testServer(t)
	user := env.seedUser(t, "alice@example.com", auth.RoleUser)
	token := tokenFor(t, user)
	d := env.seedLight(t, "Desk Lamp", "room-1", user.ID)

	w := env.doJSON(t, http.MethodGet, "/api/devices/"+d.ID, token, nil)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d (body: %s)", w.Code, http.StatusOK, w.Body.String())
	}
	resp := decodeEnvelope(t, w)
	data := resp["data"].(map[string]any)
	if data["id"] != d.ID {
		t.Errorf("id = %v, want %s", data["id"], d.ID)
	}
}

func TestGetDevice_NotFoundBeforeForbidden(t *testing.T) {
	env := testServer(t)
	owner := env.seedUser(t, "owner@example.com", auth.RoleUser)
	stranger := env.seedUser(t, "stranger@example.com", auth.RoleUser)
	strangerToken := tokenFor(t, stranger)
	d := env.seedLight(t, "Desk Lamp", "room-1", owner.ID)

	// Existing device, no permission entry: 403
	w := env.doJSON(t, http.MethodGet, "/api/devices/"+d.ID, strangerToken, nil)
	if w.Code != http.StatusForbidden {
		t.Errorf("no-entry status = %d, want %d", w.Code, http.StatusForbidden)
	}

	// Missing device: 404, never 403
	w = env.doJSON(t, http.MethodGet, "/api/devices/no-such-device", strangerToken, nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("missing-device status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestGetDevice_GlobalAdminBypassesEntries(t *testing.T) {
	env := testServer(t)
	owner := env.seedUser(t, "owner@example.com", auth.RoleUser)
	admin := env.seedUser(t, "admin@example.com", auth.RoleAdmin)
	d := env.seedLight(t, "Desk Lamp", "room-1", owner.ID)

	w := env.doJSON(t, http.MethodGet, "/api/devices/"+d.ID, tokenFor(t, admin), nil)
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
}

func TestListDevices_Pagination(t *testing.T) {
	env := testServer(t)
	user := env.seedUser(t, "alice@example.com", auth.RoleUser)
	token := tokenFor(t, user)
	for i := 0; i < 3; i++ {
		env.seedLight(t, "Lamp", "room-1", user.ID)
	}

	w := env.doJSON(t, http.MethodGet, "/api/devices?page=1&limit=2", token, nil)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	resp := decodeEnvelope(t, w)
	data := resp["data"].([]any)
	if len(data) != 2 {
		t.Errorf("page has %d devices, want 2", len(data))
	}

	pagination, ok := resp["pagination"].(map[string]any)
	if !ok {
		t.Fatalf("pagination missing from list response")
	}
	if pagination["page"] != float64(1) || pagination["limit"] != float64(2) {
		t.Errorf("pagination = %v, want page 1 limit 2", pagination)
	}
	if pagination["total"] != float64(3) || pagination["pages"] != float64(2) {
		t.Errorf("pagination totals = %v, want total 3 pages 2", pagination)
	}
}

func TestUpdateDevice_TypeImmutable(t *testing.T) {
	env := testServer(t)
	user := env.seedUser(t, "alice@example.com", auth.RoleUser)
	token := tokenFor(t, user)
	d := env.seedLight(t, "Desk Lamp", "room-1", user.ID)

	w := env.doJSON(t, http.MethodPut, "/api/devices/"+d.ID, token, map[string]any{
		"type": "plug",
	})

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d (body: %s)", w.Code, http.StatusBadRequest, w.Body.String())
	}
}

func TestUpdateDevice_RenameAndMove(t *testing.T) {
	env := testServer(t)
	user := env.seedUser(t, "alice@example.com", auth.RoleUser)
	token := tokenFor(t, user)
	d := env.seedLight(t, "Desk Lamp", "room-1", user.ID)

	w := env.doJSON(t, http.MethodPut, "/api/devices/"+d.ID, token, map[string]any{
		"name":   "Floor Lamp",
		"roomId": "room-2",
	})

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d (body: %s)", w.Code, http.StatusOK, w.Body.String())
	}

	resp := decodeEnvelope(t, w)
	data := resp["data"].(map[string]any)
	if data["name"] != "Floor Lamp" || data["roomId"] != "room-2" {
		t.Errorf("updated device = %v, want renamed and moved", data)
	}
}

func TestDeleteDevice_SoftDelete(t *testing.T) {
	env := testServer(t)
	user := env.seedUser(t, "alice@example.com", auth.RoleUser)
	token := tokenFor(t, user)
	d := env.seedLight(t, "Desk Lamp", "room-1", user.ID)

	w := env.doJSON(t, http.MethodDelete, "/api/devices/"+d.ID, token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("delete status = %d, want %d", w.Code, http.StatusOK)
	}

	// Deleted devices behave as absent
	w = env.doJSON(t, http.MethodGet, "/api/devices/"+d.ID, token, nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("get-after-delete status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestDeleteDevice_RequiresDeviceAdmin(t *testing.T) {
	env := testServer(t)
	owner := env.seedUser(t, "owner@example.com", auth.RoleUser)
	writer := env.seedUser(t, "writer@example.com", auth.RoleUser)
	d := env.seedLight(t, "Desk Lamp", "room-1", owner.ID)

	d.Permissions = append(d.Permissions, device.PermissionEntry{UserID: writer.ID, Level: device.PermissionWrite})
	if err := env.registry.UpdateDevice(context.Background(), d); err != nil {
		t.Fatalf("granting write: %v", err)
	}

	w := env.doJSON(t, http.MethodDelete, "/api/devices/"+d.ID, tokenFor(t, writer), nil)
	if w.Code != http.StatusForbidden {
		t.Errorf("status = %d, want %d", w.Code, http.StatusForbidden)
	}
}

func TestToggleDevice(t *testing.T) {
	env := testServer(t)
	user := env.seedUser(t, "alice@example.com", auth.RoleUser)
	token := tokenFor(t, user)
	d := env.seedLight(t, "Desk Lamp", "room-1", user.ID)

	w := env.doJSON(t, http.MethodPost, "/api/devices/"+d.ID+"/toggle", token, nil)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d (body: %s)", w.Code, http.StatusOK, w.Body.String())
	}

	resp := decodeEnvelope(t, w)
	data := resp["data"].(map[string]any)
	status := data["status"].(map[string]any)
	if status["isOn"] != true {
		t.Errorf("isOn = %v after toggle, want true", status["isOn"])
	}
}

func TestDeviceLight_ClampsBrightness(t *testing.T) {
	env := testServer(t)
	user := env.seedUser(t, "alice@example.com", auth.RoleUser)
	token := tokenFor(t, user)
	d := env.seedLight(t, "Desk Lamp", "room-1", user.ID)

	w := env.doJSON(t, http.MethodPost, "/api/devices/"+d.ID+"/light", token, map[string]any{
		"brightness": 250,
	})

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d (body: %s)", w.Code, http.StatusOK, w.Body.String())
	}

	resp := decodeEnvelope(t, w)
	data := resp["data"].(map[string]any)
	light := data["light"].(map[string]any)
	if light["brightness"] != float64(100) {
		t.Errorf("brightness = %v, want clamped to 100", light["brightness"])
	}
}

func TestDeviceThermostat_WrongType(t *testing.T) {
	env := testServer(t)
	user := env.seedUser(t, "alice@example.com", auth.RoleUser)
	token := tokenFor(t, user)
	d := env.seedLight(t, "Desk Lamp", "room-1", user.ID)

	w := env.doJSON(t, http.MethodPost, "/api/devices/"+d.ID+"/thermostat", token, map[string]any{
		"targetTemp": 21,
	})

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d (body: %s)", w.Code, http.StatusBadRequest, w.Body.String())
	}
}

func TestRoomToggle(t *testing.T) {
	env := testServer(t)
	user := env.seedUser(t, "alice@example.com", auth.RoleUser)
	token := tokenFor(t, user)
	env.seedLight(t, "Lamp A", "room-1", user.ID)
	env.seedLight(t, "Lamp B", "room-1", user.ID)

	w := env.doJSON(t, http.MethodPost, "/api/devices/room/room-1/toggle", token, map[string]any{
		"turnOn": true,
	})

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d (body: %s)", w.Code, http.StatusOK, w.Body.String())
	}

	resp := decodeEnvelope(t, w)
	data := resp["data"].(map[string]any)
	if data["toggledCount"] != float64(2) {
		t.Errorf("toggledCount = %v, want 2", data["toggledCount"])
	}
	results := data["results"].([]any)
	if len(results) != 2 {
		t.Errorf("results has %d entries, want 2", len(results))
	}
}

func TestRoomToggle_MissingBoolean(t *testing.T) {
	env := testServer(t)
	user := env.seedUser(t, "alice@example.com", auth.RoleUser)
	token := tokenFor(t, user)
	env.seedLight(t, "Lamp", "room-1", user.ID)

	w := env.doJSON(t, http.MethodPost, "/api/devices/room/room-1/toggle", token, map[string]any{})

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestRoomToggle_NoEligibleDevices(t *testing.T) {
	env := testServer(t)
	user := env.seedUser(t, "alice@example.com", auth.RoleUser)
	token := tokenFor(t, user)

	w := env.doJSON(t, http.MethodPost, "/api/devices/room/empty-room/toggle", token, map[string]any{
		"turnOn": true,
	})

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestListDevices_EmptyPageIsArray(t *testing.T) {
	env := testServer(t)
	user := env.seedUser(t, "alice@example.com", auth.RoleUser)

	w := env.doJSON(t, http.MethodGet, "/api/devices", tokenFor(t, user), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"data":[]`) {
		t.Errorf("empty list should serialise data as [], got %s", w.Body.String())
	}
}
