package api

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/wrenfold/homedeck/internal/auth"
	"github.com/wrenfold/homedeck/internal/device"
	"github.com/wrenfold/homedeck/internal/infrastructure/config"
	"github.com/wrenfold/homedeck/internal/infrastructure/logging"
	"github.com/wrenfold/homedeck/internal/room"
)

const testJWTSecret = "test-secret-key-at-least-32-characters-long"

// testEnv bundles the server under test with its collaborators so tests
// can seed state directly.
type testEnv struct {
	srv      *Server
	router   http.Handler
	registry *device.Registry
	rooms    *room.Service
	users    auth.UserRepository
}

// testServer creates a Server backed by a real SQLite database holding
// the devices, rooms, and users schemas.
func testServer(t *testing.T) *testEnv {
	t.Helper()

	db := setupTestDB(t)

	deviceRepo := device.NewSQLiteRepository(db)
	registry := device.NewRegistry(deviceRepo)
	if err := registry.RefreshCache(context.Background()); err != nil {
		t.Fatalf("RefreshCache: %v", err)
	}
	controller := device.NewController(registry)
	orchestrator := device.NewOrchestrator(registry)

	roomRepo := room.NewSQLiteRepository(db)
	rooms := room.NewService(roomRepo, registry)

	users := auth.NewUserRepository(db)

	log := logging.New(config.LoggingConfig{Level: "error", Format: "text", Output: "stdout"}, "test")

	srv, err := New(Deps{
		Config: config.APIConfig{
			Host: "127.0.0.1",
			Port: 0,
			Timeouts: config.APITimeoutConfig{
				Read:  5,
				Write: 5,
				Idle:  5,
			},
		},
		WS: config.WebSocketConfig{
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		Auth: config.AuthConfig{
			JWT: config.JWTConfig{
				Secret:         testJWTSecret,
				AccessTokenTTL: 15,
			},
		},
		Environment:  "test",
		Logger:       log,
		Registry:     registry,
		Controller:   controller,
		Orchestrator: orchestrator,
		Rooms:        rooms,
		Users:        users,
		Version:      "test",
	})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	srv.startedAt = time.Now()
	go srv.hub.Run(context.Background())

	return &testEnv{
		srv:      srv,
		router:   srv.buildRouter(),
		registry: registry,
		rooms:    rooms,
		users:    users,
	}
}

// setupTestDB creates a temporary SQLite database with the full schema.
// A file-backed database is used so WAL mode works.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	f, err := os.CreateTemp("", "api-test-*.db")
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

	schema := `
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

		CREATE TABLE users (
			id TEXT PRIMARY KEY,
			email TEXT NOT NULL UNIQUE,
			name TEXT NOT NULL,
			password_hash TEXT NOT NULL,
			role TEXT NOT NULL DEFAULT 'user',
			is_active INTEGER NOT NULL DEFAULT 1,
			created_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now')),
			updated_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now'))
		) STRICT;
	`
	if _, execErr := db.Exec(schema); execErr != nil {
		db.Close()
		t.Fatalf("creating test schema: %v", execErr)
	}

	return db
}

// seedUser inserts a user with the password "test-password".
func (e *testEnv) seedUser(t *testing.T, email string, role auth.Role) *auth.User {
	t.Helper()

	hash, err := auth.HashPassword("test-password")
	if err != nil {
		t.Fatalf("hashing password: %v", err)
	}
	user := &auth.User{
		Email:        email,
		Name:         "Test User",
		PasswordHash: hash,
		Role:         role,
		IsActive:     true,
	}
	if err := e.users.Create(context.Background(), user); err != nil {
		t.Fatalf("creating user: %v", err)
	}
	return user
}

// tokenFor issues a short-lived access token for a user.
func tokenFor(t *testing.T, user *auth.User) string {
	t.Helper()

	token, err := auth.GenerateAccessToken(user, testJWTSecret, 15*time.Minute)
	if err != nil {
		t.Fatalf("generating token: %v", err)
	}
	return token
}

// doJSON sends a request with an optional JSON body and bearer token.
func (e *testEnv) doJSON(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request body: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

// decodeEnvelope unmarshals a response body into the standard envelope.
func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()

	var resp map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v (body: %s)", err, w.Body.String())
	}
	return resp
}

// ─── Health Endpoint Tests ─────────────────────────────────────────

func TestHealth(t *testing.T) {
	env := testServer(t)

	w := env.doJSON(t, http.MethodGet, "/health", "", nil)

	if w.Code != http.StatusOK {
		t.Fatalf("health status = %d, want %d", w.Code, http.StatusOK)
	}

	resp := decodeEnvelope(t, w)
	if resp["status"] != "ok" {
		t.Errorf("status = %v, want ok", resp["status"])
	}
	if resp["environment"] != "test" {
		t.Errorf("environment = %v, want test", resp["environment"])
	}
	if resp["version"] != "test" {
		t.Errorf("version = %v, want test", resp["version"])
	}
	if _, ok := resp["uptime"]; !ok {
		t.Error("uptime missing from health response")
	}
}

// ─── Auth Tests ────────────────────────────────────────────────────

func TestLogin(t *testing.T) {
	env := testServer(t)
	user := env.seedUser(t, "alice@example.com", auth.RoleUser)

	w := env.doJSON(t, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email":    "alice@example.com",
		"password": "test-password",
	})

	if w.Code != http.StatusOK {
		t.Fatalf("login status = %d, want %d (body: %s)", w.Code, http.StatusOK, w.Body.String())
	}

	resp := decodeEnvelope(t, w)
	if resp["success"] != true {
		t.Error("success = false, want true")
	}
	data, ok := resp["data"].(map[string]any)
	if !ok {
		t.Fatalf("data missing from login response")
	}
	if data["token"] == "" || data["token"] == nil {
		t.Error("token missing from login response")
	}

	userData, ok := data["user"].(map[string]any)
	if !ok {
		t.Fatalf("user missing from login response")
	}
	if userData["id"] != user.ID {
		t.Errorf("user id = %v, want %s", userData["id"], user.ID)
	}
	if _, leaked := userData["passwordHash"]; leaked {
		t.Error("password hash leaked in login response")
	}
}

func TestLogin_WrongPassword(t *testing.T) {
	env := testServer(t)
	env.seedUser(t, "alice@example.com", auth.RoleUser)

	w := env.doJSON(t, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email":    "alice@example.com",
		"password": "wrong",
	})

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}

func TestLogin_UnknownEmailSameResponse(t *testing.T) {
	env := testServer(t)
	env.seedUser(t, "alice@example.com", auth.RoleUser)

	wrongPassword := env.doJSON(t, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email": "alice@example.com", "password": "wrong",
	})
	unknownEmail := env.doJSON(t, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email": "nobody@example.com", "password": "wrong",
	})

	if wrongPassword.Code != unknownEmail.Code {
		t.Errorf("status mismatch: wrong password %d, unknown email %d", wrongPassword.Code, unknownEmail.Code)
	}
	if wrongPassword.Body.String() != unknownEmail.Body.String() {
		t.Error("response bodies differ; account existence is probeable")
	}
}

func TestLogin_InactiveAccount(t *testing.T) {
	env := testServer(t)
	user := env.seedUser(t, "alice@example.com", auth.RoleUser)
	user.IsActive = false
	if err := env.users.Update(context.Background(), user); err != nil {
		t.Fatalf("deactivating user: %v", err)
	}

	w := env.doJSON(t, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email": "alice@example.com", "password": "test-password",
	})

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}

func TestAuthMiddleware_MissingToken(t *testing.T) {
	env := testServer(t)

	w := env.doJSON(t, http.MethodGet, "/api/devices", "", nil)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}

func TestAuthMiddleware_GarbageToken(t *testing.T) {
	env := testServer(t)

	w := env.doJSON(t, http.MethodGet, "/api/devices", "not-a-jwt", nil)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}

// ─── Automation Stub ───────────────────────────────────────────────

func TestAutomationStub(t *testing.T) {
	env := testServer(t)
	token := tokenFor(t, env.seedUser(t, "alice@example.com", auth.RoleUser))

	w := env.doJSON(t, http.MethodGet, "/api/automation", token, nil)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	resp := decodeEnvelope(t, w)
	if resp["success"] != true {
		t.Error("success = false, want true")
	}
	data, ok := resp["data"].([]any)
	if !ok {
		t.Fatalf("data = %T, want empty list", resp["data"])
	}
	if len(data) != 0 {
		t.Errorf("data has %d entries, want 0", len(data))
	}
	if resp["message"] == "" || resp["message"] == nil {
		t.Error("message missing from automation stub")
	}
}
