package pass

import (
	"context"
	"errors"
	"testing"

	"github.com/bnema/marketplace-wallet/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStorePutUsesPassInsertUnderNamespace(t *testing.T) {
	t.Parallel()

	called := false
	store := &Store{
		namespace: defaultNamespace,
		run: func(ctx context.Context, input string, args ...string) (string, string, error) {
			called = true
			assert.Equal(t, []string{"insert", "-m", "-f", "marketplace-wallet/devkey/main"}, args)
			assert.Equal(t, "0xdeadbeef\n", input)
			return "", "", nil
		},
	}

	err := store.Put(context.Background(), "devkey://main", "0xdeadbeef")
	require.NoError(t, err)
	assert.True(t, called)
}

func TestStoreGetUsesPassShowAndTrimsTrailingNewline(t *testing.T) {
	t.Parallel()

	store := &Store{
		namespace: defaultNamespace,
		run: func(ctx context.Context, input string, args ...string) (string, string, error) {
			assert.Equal(t, []string{"show", "marketplace-wallet/devkey/test"}, args)
			assert.Empty(t, input)
			return "0xdeadbeef\n", "", nil
		},
	}

	value, err := store.Get(context.Background(), "devkey://test")
	require.NoError(t, err)
	assert.Equal(t, "0xdeadbeef", value)
}

func TestStoreDeleteUsesPassRemove(t *testing.T) {
	t.Parallel()

	store := &Store{
		namespace: defaultNamespace,
		run: func(ctx context.Context, input string, args ...string) (string, string, error) {
			assert.Equal(t, []string{"rm", "-f", "marketplace-wallet/devkey/main"}, args)
			return "", "", nil
		},
	}

	require.NoError(t, store.Delete(context.Background(), "devkey://main"))
}

func TestStoreGetMapsMissingEntry(t *testing.T) {
	t.Parallel()

	store := &Store{
		namespace: defaultNamespace,
		run: func(ctx context.Context, input string, args ...string) (string, string, error) {
			return "", "Error: marketplace-wallet/devkey/main is not in the password store.", errors.New("exit status 1")
		},
	}

	_, err := store.Get(context.Background(), "devkey://main")
	require.ErrorIs(t, err, domain.ErrSecretNotFound)
}

func TestStoreGetReturnsClearError(t *testing.T) {
	t.Parallel()

	store := &Store{
		namespace: defaultNamespace,
		run: func(ctx context.Context, input string, args ...string) (string, string, error) {
			return "", "gpg: decryption failed: No secret key", errors.New("exit status 2")
		},
	}

	_, err := store.Get(context.Background(), "devkey://main")
	require.Error(t, err)
	assert.ErrorContains(t, err, "pass get")
	assert.ErrorContains(t, err, "marketplace-wallet/devkey/main")
	assert.ErrorContains(t, err, "decryption failed")
	assert.NotErrorIs(t, err, domain.ErrSecretNotFound)
}
