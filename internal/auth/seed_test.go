package auth

import (
	"context"
	"testing"

	"github.com/wrenfold/homedeck/internal/infrastructure/config"
	"github.com/wrenfold/homedeck/internal/infrastructure/logging"
)

func seedConfig() config.SeedAdminConfig {
	return config.SeedAdminConfig{
		Email: "admin@homedeck.local",
		Name:  "Administrator",
	}
}

func TestSeedAdmin_CreatesOnEmptyDB(t *testing.T) {
	db := testDB(t)
	userRepo := NewUserRepository(db)
	ctx := context.Background()

	password, err := SeedAdmin(ctx, userRepo, seedConfig(), logging.Default())
	if err != nil {
		t.Fatalf("SeedAdmin() error = %v", err)
	}

	if password == "" {
		t.Fatal("SeedAdmin() should return generated password")
	}

	admin, err := userRepo.GetByEmail(ctx, "admin@homedeck.local")
	if err != nil {
		t.Fatalf("GetByEmail(admin) error = %v", err)
	}

	if admin.Role != RoleAdmin {
		t.Errorf("Role = %q, want %q", admin.Role, RoleAdmin)
	}

	if !admin.IsActive {
		t.Error("seed admin should be active")
	}

	ok, err := VerifyPassword(password, admin.PasswordHash)
	if err != nil {
		t.Fatalf("VerifyPassword() error = %v", err)
	}
	if !ok {
		t.Error("generated password should verify against stored hash")
	}
}

func TestSeedAdmin_UsesConfiguredPassword(t *testing.T) {
	db := testDB(t)
	userRepo := NewUserRepository(db)
	ctx := context.Background()

	cfg := seedConfig()
	cfg.Password = "configured-password"

	password, err := SeedAdmin(ctx, userRepo, cfg, logging.Default())
	if err != nil {
		t.Fatalf("SeedAdmin() error = %v", err)
	}

	if password != "configured-password" {
		t.Errorf("password = %q, want configured value", password)
	}

	admin, err := userRepo.GetByEmail(ctx, "admin@homedeck.local")
	if err != nil {
		t.Fatalf("GetByEmail(admin) error = %v", err)
	}

	ok, err := VerifyPassword("configured-password", admin.PasswordHash)
	if err != nil {
		t.Fatalf("VerifyPassword() error = %v", err)
	}
	if !ok {
		t.Error("configured password should verify against stored hash")
	}
}

func TestSeedAdmin_SkipsWhenUsersExist(t *testing.T) {
	db := testDB(t)
	userRepo := NewUserRepository(db)
	ctx := context.Background()

	seedTestUser(t, db, "existing@example.com", RoleAdmin)

	password, err := SeedAdmin(ctx, userRepo, seedConfig(), logging.Default())
	if err != nil {
		t.Fatalf("SeedAdmin() error = %v", err)
	}

	if password != "" {
		t.Error("SeedAdmin() should skip when users exist")
	}

	count, _ := userRepo.Count(ctx)
	if count != 1 {
		t.Errorf("Count() = %d, want 1 (no new user)", count)
	}
}
