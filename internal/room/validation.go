package room

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

const maxNameLength = 100

var validCategories map[Category]struct{}

func init() {
	validCategories = make(map[Category]struct{}, len(AllCategories()))
	for _, c := range AllCategories() {
		validCategories[c] = struct{}{}
	}
}

// Validate performs validation on a room.
// Returns an error describing the first validation failure found.
func Validate(r *Room) error {
	if r == nil {
		return ErrInvalidRoom
	}

	name := strings.TrimSpace(r.Name)
	if name == "" {
		return fmt.Errorf("%w: name cannot be empty", ErrInvalidRoom)
	}
	if len(name) > maxNameLength {
		return fmt.Errorf("%w: name exceeds %d characters", ErrInvalidRoom, maxNameLength)
	}

	if err := ValidateCategory(r.Category); err != nil {
		return err
	}

	if r.Lighting.Level < 0 || r.Lighting.Level > 100 ||
		r.Lighting.TargetLevel < 0 || r.Lighting.TargetLevel > 100 {
		return fmt.Errorf("%w: lighting levels must be in [0,100]", ErrInvalidRoom)
	}

	return nil
}

// ValidateCategory checks if a room category is valid.
func ValidateCategory(category Category) error {
	if _, ok := validCategories[category]; ok {
		return nil
	}
	return fmt.Errorf("%w: %q", ErrInvalidCategory, category)
}

// GenerateID creates a new UUID for a room.
func GenerateID() string {
	return uuid.New().String()
}
