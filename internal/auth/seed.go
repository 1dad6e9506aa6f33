package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/wrenfold/homedeck/internal/infrastructure/config"
	"github.com/wrenfold/homedeck/internal/infrastructure/logging"
)

// seedPasswordBytes is the number of random bytes for a generated admin password.
const seedPasswordBytes = 16

// SeedAdmin creates the initial admin account on first boot if no users exist.
// The password comes from configuration; when none is configured a random one
// is generated and logged — it must be changed immediately.
// Returns the password used (empty string if seeding was skipped).
func SeedAdmin(ctx context.Context, userRepo UserRepository, cfg config.SeedAdminConfig, logger *logging.Logger) (string, error) {
	count, err := userRepo.Count(ctx)
	if err != nil {
		return "", fmt.Errorf("checking user count: %w", err)
	}

	if count > 0 {
		logger.Info("users exist, skipping admin seed")
		return "", nil
	}

	password := cfg.Password
	generated := false
	if password == "" {
		passwordBytes := make([]byte, seedPasswordBytes)
		if _, err := rand.Read(passwordBytes); err != nil { //nolint:govet // shadow: err re-declared in nested scope
			return "", fmt.Errorf("generating seed password: %w", err)
		}
		password = hex.EncodeToString(passwordBytes)
		generated = true
	}

	hash, err := HashPassword(password)
	if err != nil {
		return "", fmt.Errorf("hashing seed password: %w", err)
	}

	admin := &User{
		Email:        cfg.Email,
		Name:         cfg.Name,
		PasswordHash: hash,
		Role:         RoleAdmin,
		IsActive:     true,
	}

	if err := userRepo.Create(ctx, admin); err != nil {
		return "", fmt.Errorf("creating seed admin: %w", err)
	}

	if generated {
		logger.Warn("seed admin account created",
			"email", cfg.Email,
			"password", password,
			"action_required", "change this password immediately",
		)
	} else {
		logger.Info("seed admin account created", "email", cfg.Email)
	}

	return password, nil
}
