// Package idgen provides opaque request identifiers for server-initiated
// JSON-RPC requests.
package idgen

import "github.com/google/uuid"

// Generator produces opaque, unique string identifiers.
//
// It is injected into the session handler so tests can supply deterministic
// ids instead of random ones.
type Generator interface {
	NewID() string
}

// UUIDGenerator generates RFC 4122 UUIDs.
type UUIDGenerator struct{}

// NewID returns a new random UUID string.
func (UUIDGenerator) NewID() string {
	return uuid.NewString()
}
