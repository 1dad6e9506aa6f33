// Package device implements the device store and control plane.
//
// A Device is a tagged union: its Type selects exactly one typed payload
// (light, plug, thermostat, camera, sensor; switches carry none) and the
// payload must match the type at all times. Status carries the
// connectivity and power fields common to every type.
//
// The package is layered:
//
//   - Repository persists devices document-style in SQLite, with status,
//     payload and permissions held in JSON columns.
//   - Registry wraps a Repository with an in-memory cache (deep-copy
//     isolated) and per-device control locks.
//   - Controller applies single-device control operations (toggle,
//     partial status and payload updates) as locked read-modify-write
//     cycles, refreshing status.lastSeen on every successful mutation.
//   - Orchestrator runs bulk room actions with per-device failure
//     isolation and a single room-scoped change event per batch.
//
// Access control is per-device: each device carries ordered permission
// entries (userId, level ∈ read/write/admin); Resolve and Authorize
// apply them, with the platform admin role overriding everything.
// Deletion is soft: deactivated devices are indistinguishable from
// absent ones everywhere in the API.
package device
