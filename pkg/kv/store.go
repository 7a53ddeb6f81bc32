// Package kv defines the key-value storage contract all durable warden
// state lives behind, plus the Redis-backed implementation used in
// production.
//
// The contract is deliberately narrow: independent single-key reads and
// writes with no multi-key transactions. Callers performing
// read-modify-write sequences (role assignment, quota increments,
// rate-limit counting) can lose updates under concurrent mutation of the
// same key. A backend offering conditional writes can be substituted
// behind Store to strengthen those guarantees without touching the
// decision or quota logic.
package kv

import (
	"context"
	"errors"
	"time"
)

// ErrKeyNotFound is returned by Get when no value exists for the key.
var ErrKeyNotFound = errors.New("kv: key not found")

// PutOptions holds optional write parameters.
type PutOptions struct {
	// TTL expires the key after the given duration. Zero means no expiry.
	TTL time.Duration
}

// PutOption configures a Put call.
type PutOption func(*PutOptions)

// WithTTL expires the written key after ttl.
func WithTTL(ttl time.Duration) PutOption {
	return func(o *PutOptions) {
		o.TTL = ttl
	}
}

// Store is the key-value storage contract.
type Store interface {
	// Get returns the value for key, or ErrKeyNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Put writes value under key, overwriting any existing value.
	Put(ctx context.Context, key string, value []byte, opts ...PutOption) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// List returns all keys with the given prefix, sorted ascending.
	List(ctx context.Context, prefix string) ([]string, error)

	// Close releases the underlying connections.
	Close() error
}
