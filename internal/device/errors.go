package device

import "errors"

// Domain errors for the device package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, device.ErrDeviceNotFound) {
//	    // handle not found case
//	}
var (
	// ErrDeviceNotFound is returned when a device ID does not exist or the
	// device has been deactivated. Inactive devices are indistinguishable
	// from absent ones.
	ErrDeviceNotFound = errors.New("device: not found")

	// ErrDeviceExists is returned when creating a device with an ID that already exists.
	ErrDeviceExists = errors.New("device: already exists")

	// ErrInvalidDevice is returned when device validation fails.
	ErrInvalidDevice = errors.New("device: invalid")

	// ErrInvalidDeviceType is returned when a device type is not recognised,
	// or when a typed control operation targets a device of a different type.
	ErrInvalidDeviceType = errors.New("device: invalid type")

	// ErrTypeImmutable is returned when an update attempts to change a
	// device's type after creation.
	ErrTypeImmutable = errors.New("device: type is immutable")

	// ErrPayloadMismatch is returned when a device carries a payload that
	// does not match its type, or more than one payload.
	ErrPayloadMismatch = errors.New("device: payload does not match type")

	// ErrInvalidName is returned when a device name is empty or too long.
	ErrInvalidName = errors.New("device: invalid name")

	// ErrInvalidPermission is returned when a permission entry is malformed
	// or duplicates a user.
	ErrInvalidPermission = errors.New("device: invalid permission entry")

	// ErrAccessDenied is returned when a user lacks the required permission
	// level for an operation.
	ErrAccessDenied = errors.New("device: access denied")

	// ErrNoEligibleDevices is returned by bulk room control when the room
	// contains no device the action can apply to.
	ErrNoEligibleDevices = errors.New("device: no eligible devices")
)
