package storage

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a key is missing from storage.
var ErrNotFound = errors.New("storage: record not found")

// Store is a synchronous string-keyed slot store. Each key holds one opaque
// value that is replaced wholesale on Set.
type Store interface {
	// Get returns the value stored under key, or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)
	// Set overwrites the value stored under key.
	Set(ctx context.Context, key string, value []byte) error
	// Delete removes key entirely. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	Close() error
}

// Backend types accepted by the storage configuration.
const (
	TypeMemory = "memory"
	TypeRedis  = "redis"
	TypeBolt   = "bolt"
	TypeSQLite = "sqlite"
)
