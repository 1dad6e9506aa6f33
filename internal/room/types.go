package room

import "time"

// Category classifies a room for dashboard grouping.
type Category string

// Room categories.
const (
	CategoryLivingAreas   Category = "living-areas"
	CategoryBedrooms      Category = "bedrooms"
	CategoryKitchenDining Category = "kitchen-dining"
	CategoryBathrooms     Category = "bathrooms"
	CategoryUtility       Category = "utility"
	CategoryOutdoor       Category = "outdoor"
	CategoryOffice        Category = "office"
)

// AllCategories returns all valid room categories.
func AllCategories() []Category {
	return []Category{
		CategoryLivingAreas, CategoryBedrooms, CategoryKitchenDining,
		CategoryBathrooms, CategoryUtility, CategoryOutdoor, CategoryOffice,
	}
}

// Reading is a current-versus-target pair for an environmental value.
type Reading struct {
	Current float64 `json:"current"`
	Target  float64 `json:"target"`
}

// Lighting is the room-level lighting state.
type Lighting struct {
	Level       int `json:"level"`
	TargetLevel int `json:"targetLevel"`
}

// Occupancy describes presence detection in a room.
type Occupancy struct {
	IsOccupied   bool      `json:"isOccupied"`
	LastDetected time.Time `json:"lastDetected"`
	SensorID     *string   `json:"sensorId,omitempty"`
}

// Settings holds per-room automation preferences.
type Settings struct {
	AutoLighting bool `json:"autoLighting"`
	AutoClimate  bool `json:"autoClimate"`
	PrivacyMode  bool `json:"privacyMode"`
}

// Room represents a physical space devices belong to.
//
// Deletion is soft (IsActive false) and is refused while the room still
// owns active devices.
type Room struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Category Category `json:"category"`
	Floor    int      `json:"floor"`

	Temperature Reading   `json:"temperature"`
	Humidity    Reading   `json:"humidity"`
	Lighting    Lighting  `json:"lighting"`
	Occupancy   Occupancy `json:"occupancy"`
	Settings    Settings  `json:"settings"`

	IsActive  bool      `json:"isActive"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// DeepCopy creates an independent copy of the room.
func (r *Room) DeepCopy() *Room {
	if r == nil {
		return nil
	}
	roomCopy := *r
	if r.Occupancy.SensorID != nil {
		sensorID := *r.Occupancy.SensorID
		roomCopy.Occupancy.SensorID = &sensorID
	}
	return &roomCopy
}
