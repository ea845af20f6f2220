package ports

import "context"

// SecretStore holds key material such as development signing keys. Keys use the
// "provider://path" form.
type SecretStore interface {
	Get(ctx context.Context, key string) (string, error)
	Put(ctx context.Context, key string, value string) error
	Delete(ctx context.Context, key string) error
}
