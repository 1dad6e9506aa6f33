package auth

// Capability represents a named role-level capability in the system.
// Per-device access levels are resolved separately by the device package;
// capabilities gate the route surface itself.
type Capability string

// Capability constants.
const (
	CapDeviceRead   Capability = "device:read"
	CapDeviceWrite  Capability = "device:write"
	CapDeviceManage Capability = "device:manage"
	CapRoomRead     Capability = "room:read"
	CapRoomControl  Capability = "room:control"
	CapRoomManage   Capability = "room:manage"
	CapUserManage   Capability = "user:manage"
)

// roleCapabilities maps each role to its granted capabilities.
// This is the single source of truth for the role-level authorisation model.
var roleCapabilities = map[Role][]Capability{
	RoleGuest: {
		CapDeviceRead,
		CapRoomRead,
	},
	RoleUser: {
		CapDeviceRead,
		CapDeviceWrite,
		CapRoomRead,
		CapRoomControl,
	},
	RoleAdmin: {
		CapDeviceRead,
		CapDeviceWrite,
		CapDeviceManage,
		CapRoomRead,
		CapRoomControl,
		CapRoomManage,
		CapUserManage,
	},
}

// HasCapability returns true if the given role has the specified capability.
func HasCapability(role Role, cap Capability) bool {
	caps, ok := roleCapabilities[role]
	if !ok {
		return false
	}
	for _, c := range caps {
		if c == cap {
			return true
		}
	}
	return false
}

// CapabilitiesForRole returns all capabilities granted to a role.
// Returns nil for unknown roles.
func CapabilitiesForRole(role Role) []Capability {
	caps := roleCapabilities[role]
	if caps == nil {
		return nil
	}
	result := make([]Capability, len(caps))
	copy(result, caps)
	return result
}
