// Package room implements the room store and room-level operations.
//
// Rooms carry environmental state (temperature and humidity as
// current-versus-target pairs, lighting levels), occupancy detection and
// automation settings, persisted document-style with JSON columns.
//
// Deletion is soft and guarded: a room cannot be deactivated while it
// still owns active devices.
package room
