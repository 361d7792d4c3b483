// Package archive persists run artifacts: model snapshots, forecast and
// backtest reports. Backends are pluggable; local filesystem for
// development, S3-compatible object storage for shared deployments.
package archive

import "context"

// Backend is a flat key/blob store for archived artifacts.
type Backend interface {
	// Put stores data at the given key, overwriting any existing object.
	Put(ctx context.Context, key string, data []byte) error

	// Get retrieves the object at the given key.
	Get(ctx context.Context, key string) ([]byte, error)

	// List returns all keys under the prefix.
	List(ctx context.Context, prefix string) ([]string, error)

	// Delete removes the object at the given key.
	Delete(ctx context.Context, key string) error

	// Exists reports whether an object exists at the given key.
	Exists(ctx context.Context, key string) (bool, error)
}
