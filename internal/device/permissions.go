package device

import "fmt"

// Actor is the identity a permission decision is made for.
// GlobalAdmin reflects the user's platform role; it overrides any
// per-device entry.
type Actor struct {
	UserID      string
	GlobalAdmin bool
}

// Resolve maps (actor, device) to an effective permission level.
// Global admins always resolve to admin. Otherwise the device's own
// permission entries decide; no entry means no access.
//
// Callers must look the device up first: a missing device is reported
// as NotFound before any permission decision is made.
func Resolve(actor Actor, d *Device) (PermissionLevel, bool) {
	if actor.GlobalAdmin {
		return PermissionAdmin, true
	}
	return d.PermissionFor(actor.UserID)
}

// Authorize checks that the actor holds at least the required level on
// the device. Returns ErrAccessDenied (wrapped with the device ID) when
// the actor has no entry or an insufficient level.
func Authorize(actor Actor, d *Device, required PermissionLevel) error {
	level, ok := Resolve(actor, d)
	if !ok || !level.AtLeast(required) {
		return fmt.Errorf("%w: device %s requires %s", ErrAccessDenied, d.ID, required)
	}
	return nil
}

// GrantCreator prepends an admin permission entry for the creating user,
// replacing any entry the request supplied for the same user.
func GrantCreator(d *Device, userID string) {
	entries := make([]PermissionEntry, 0, len(d.Permissions)+1)
	entries = append(entries, PermissionEntry{UserID: userID, Level: PermissionAdmin})
	for _, entry := range d.Permissions {
		if entry.UserID == userID {
			continue
		}
		entries = append(entries, entry)
	}
	d.Permissions = entries
}
