// Package kv defines the persistent secure key-value store contract that
// backs credential, token, and session records across restarts, together
// with an in-memory implementation and a Redis-backed one.
//
// # Architecture boundaries
//
// This package stores opaque strings. It does NOT interpret record
// contents, enforce expiry, or encrypt values — encoding and lifecycle
// belong to the pin, token, and session packages.
package kv
