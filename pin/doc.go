// Package pin provides salted PBKDF2-SHA256 credential hashing and the
// PIN lifecycle: set, validate with attempt counting, lockout, and
// clear.
//
// # Architecture boundaries
//
// This package owns the [Hasher] and the persisted [Manager] state. It
// does NOT create sessions, inspect tokens, or drive flow transitions —
// those responsibilities belong to the session package and the Engine.
//
// # What this package must NOT do
//
//   - Store or log a plaintext PIN.
//   - Surface corrupted persisted state as an error (it reads as unset).
//   - Accept any bypass value: every PIN goes through Verify.
package pin
