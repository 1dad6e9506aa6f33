package auth

import (
	"context"
	"errors"
	"testing"
)

func TestUserRepository_CreateAndGetByID(t *testing.T) {
	db := testDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	hash, _ := HashPassword("password123")
	user := &User{
		Email:        "test@example.com",
		Name:         "Test User",
		PasswordHash: hash,
		Role:         RoleUser,
		IsActive:     true,
	}

	if err := repo.Create(ctx, user); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if user.ID == "" {
		t.Fatal("Create() should generate an ID")
	}

	got, err := repo.GetByID(ctx, user.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}

	if got.Email != "test@example.com" {
		t.Errorf("Email = %q, want %q", got.Email, "test@example.com")
	}
	if got.Name != "Test User" {
		t.Errorf("Name = %q, want %q", got.Name, "Test User")
	}
	if got.Role != RoleUser {
		t.Errorf("Role = %q, want %q", got.Role, RoleUser)
	}
	if !got.IsActive {
		t.Error("IsActive should be true")
	}
	if got.PasswordHash == "" {
		t.Error("PasswordHash should be populated")
	}
}

func TestUserRepository_GetByEmail(t *testing.T) {
	db := testDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	user := seedTestUser(t, db, "admin@example.com", RoleAdmin)

	got, err := repo.GetByEmail(ctx, "admin@example.com")
	if err != nil {
		t.Fatalf("GetByEmail() error = %v", err)
	}

	if got.ID != user.ID {
		t.Errorf("ID = %q, want %q", got.ID, user.ID)
	}
}

func TestUserRepository_GetByEmail_CaseInsensitive(t *testing.T) {
	db := testDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	user := seedTestUser(t, db, "mixed@example.com", RoleUser)

	got, err := repo.GetByEmail(ctx, "Mixed@Example.COM")
	if err != nil {
		t.Fatalf("GetByEmail() error = %v", err)
	}

	if got.ID != user.ID {
		t.Errorf("ID = %q, want %q", got.ID, user.ID)
	}
}

func TestUserRepository_GetByID_NotFound(t *testing.T) {
	db := testDB(t)
	repo := NewUserRepository(db)

	_, err := repo.GetByID(context.Background(), "nonexistent")
	if !errors.Is(err, ErrUserNotFound) {
		t.Errorf("GetByID() error = %v, want ErrUserNotFound", err)
	}
}

func TestUserRepository_Create_DuplicateEmail(t *testing.T) {
	db := testDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	seedTestUser(t, db, "dup@example.com", RoleUser)

	hash, _ := HashPassword("password123")
	dup := &User{
		Email:        "dup@example.com",
		Name:         "Duplicate",
		PasswordHash: hash,
		Role:         RoleUser,
		IsActive:     true,
	}

	err := repo.Create(ctx, dup)
	if !errors.Is(err, ErrEmailExists) {
		t.Errorf("Create() error = %v, want ErrEmailExists", err)
	}
}

func TestUserRepository_Update(t *testing.T) {
	db := testDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	user := seedTestUser(t, db, "update@example.com", RoleUser)

	user.Name = "Updated Name"
	user.Role = RoleAdmin
	user.IsActive = false

	if err := repo.Update(ctx, user); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	got, err := repo.GetByID(ctx, user.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}

	if got.Name != "Updated Name" {
		t.Errorf("Name = %q, want %q", got.Name, "Updated Name")
	}
	if got.Role != RoleAdmin {
		t.Errorf("Role = %q, want %q", got.Role, RoleAdmin)
	}
	if got.IsActive {
		t.Error("IsActive should be false after update")
	}
}

func TestUserRepository_Update_NotFound(t *testing.T) {
	db := testDB(t)
	repo := NewUserRepository(db)

	err := repo.Update(context.Background(), &User{ID: "nonexistent", Name: "x", Role: RoleUser})
	if !errors.Is(err, ErrUserNotFound) {
		t.Errorf("Update() error = %v, want ErrUserNotFound", err)
	}
}

func TestUserRepository_UpdatePassword(t *testing.T) {
	db := testDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	user := seedTestUser(t, db, "pw@example.com", RoleUser)

	newHash, _ := HashPassword("new-password")
	if err := repo.UpdatePassword(ctx, user.ID, newHash); err != nil {
		t.Fatalf("UpdatePassword() error = %v", err)
	}

	got, err := repo.GetByID(ctx, user.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}

	ok, err := VerifyPassword("new-password", got.PasswordHash)
	if err != nil {
		t.Fatalf("VerifyPassword() error = %v", err)
	}
	if !ok {
		t.Error("new password should verify against updated hash")
	}
}

func TestUserRepository_List(t *testing.T) {
	db := testDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	users, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(users) != 0 {
		t.Errorf("List() on empty db = %d users, want 0", len(users))
	}

	seedTestUser(t, db, "one@example.com", RoleUser)
	seedTestUser(t, db, "two@example.com", RoleGuest)

	users, err = repo.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(users) != 2 {
		t.Errorf("List() = %d users, want 2", len(users))
	}
}

func TestUserRepository_Count(t *testing.T) {
	db := testDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	count, err := repo.Count(ctx)
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if count != 0 {
		t.Errorf("Count() = %d, want 0", count)
	}

	seedTestUser(t, db, "count@example.com", RoleUser)

	count, err = repo.Count(ctx)
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if count != 1 {
		t.Errorf("Count() = %d, want 1", count)
	}
}
