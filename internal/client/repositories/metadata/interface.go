// Package metadata is a small namespaced key/value store used to persist
// client state, such as the session snapshot, between runs.
package metadata

import (
	"context"
)

// Repository stores opaque values under keys of one namespace.
// Get returns (nil, nil) when the key is absent.
type Repository interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	List(ctx context.Context) (map[string][]byte, error)
	Clear(ctx context.Context) error
}
