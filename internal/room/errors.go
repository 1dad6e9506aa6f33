package room

import "errors"

// Domain errors for the room package.
var (
	// ErrRoomNotFound is returned when a room ID does not exist or the
	// room has been deactivated.
	ErrRoomNotFound = errors.New("room: not found")

	// ErrRoomExists is returned when creating a room with an ID that already exists.
	ErrRoomExists = errors.New("room: already exists")

	// ErrInvalidRoom is returned when room validation fails.
	ErrInvalidRoom = errors.New("room: invalid")

	// ErrInvalidCategory is returned when a category value is not recognised.
	ErrInvalidCategory = errors.New("room: invalid category")

	// ErrRoomHasDevices is returned when deactivating a room that still
	// owns active devices.
	ErrRoomHasDevices = errors.New("room: active devices present")
)
