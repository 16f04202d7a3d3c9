// Package metadata stores small key/value settings of the client cache,
// such as realm checkpoints.
package metadata

import (
	"context"
)

type Repository interface {
	// Get returns common.ErrorNotFound for unknown keys.
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	List(ctx context.Context, prefix string) (map[string][]byte, error)
}
