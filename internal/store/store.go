// internal/store/store.go
// Named-blob persistence for engine state
// The engine treats storage as opaque: every collection is serialized
// and saved under a fixed key, and loaded back wholesale at startup.

package store

import (
	"context"
	"errors"
)

// Common errors
var (
	ErrNotFound = errors.New("blob not found")
)

// Store persists opaque named blobs. Implementations must treat the
// payload as-is; callers own serialization.
type Store interface {
	Load(ctx context.Context, key string) ([]byte, error)
	Save(ctx context.Context, key string, data []byte) error
	Delete(ctx context.Context, key string) error
}
