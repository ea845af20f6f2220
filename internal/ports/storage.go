package ports

import "context"

// KeyValueStore survives process restarts. Get returns domain.ErrKeyNotFound for
// missing keys.
type KeyValueStore interface {
	Get(ctx context.Context, key string) (string, error)
	Put(ctx context.Context, key string, value string) error
	Delete(ctx context.Context, key string) error
}
