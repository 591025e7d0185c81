// Package session maintains the locally-unlocked, PIN-verified usage
// window that follows authentication: activity tracking, absolute
// expiry, and automatic idle locking.
//
// # Architecture boundaries
//
// This package owns the persisted [Record] and its idle timer. It
// delegates PIN verification to the pin package and asks the token
// layer whether server authentication holds; it does NOT inspect tokens
// or drive flow transitions.
package session
