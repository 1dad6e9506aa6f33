// Package auth provides authentication and authorisation for HomeDeck.
//
// It implements a 3-tier role model (guest → user → admin) with:
//   - Argon2id password hashing (OWASP 2025 recommendation)
//   - Signed JWT access tokens validated statelessly on every request
//   - Static role-capability mapping (compile-time, no database lookup)
//
// Per-device access levels live in the device package; this package only
// gates the route surface by role. The admin role bypasses per-device
// permission checks entirely.
package auth
