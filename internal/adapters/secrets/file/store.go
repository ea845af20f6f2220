package file

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/bnema/marketplace-wallet/internal/domain"
	"github.com/bnema/marketplace-wallet/internal/ports"
)

const (
	keyDirMode   = 0o700
	keyFileMode  = 0o600
	keyExtension = ".key"
	tempPattern  = ".key-*.tmp"
)

var errEmptySecret = errors.New("refusing to store an empty secret")

// Store is the on-disk keyring used when pass is not installed. A reference such
// as "devkey://default/test" (label default, TestNet) is kept in
// root/devkey/default/test.key, readable by the owner only. Keys are replaced by
// rename, so a crash mid-write leaves the previous key intact.
type Store struct {
	root string
	mu   sync.RWMutex
}

var _ ports.SecretStore = (*Store)(nil)

func NewStore(root string) *Store {
	return &Store{root: filepath.Clean(root)}
}

func (s *Store) Put(ctx context.Context, ref string, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	material := strings.TrimSpace(value)
	if material == "" {
		return fmt.Errorf("secret %q: %w", ref, errEmptySecret)
	}

	path, err := s.keyPath(ref)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(path), keyDirMode); err != nil {
		return fmt.Errorf("create key directory: %w", err)
	}
	return replaceFile(path, []byte(material))
}

func (s *Store) Get(ctx context.Context, ref string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	path, err := s.keyPath(ref)
	if err != nil {
		return "", err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return "", fmt.Errorf("secret %q: %w", ref, domain.ErrSecretNotFound)
	case err != nil:
		return "", fmt.Errorf("read key file for %q: %w", ref, err)
	}
	return strings.TrimSpace(string(data)), nil
}

// Delete is idempotent.
func (s *Store) Delete(ctx context.Context, ref string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	path, err := s.keyPath(ref)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove key file for %q: %w", ref, err)
	}
	return nil
}

// keyPath maps scheme://a/b to root/scheme/a/b.key and refuses anything that would
// resolve outside root.
func (s *Store) keyPath(ref string) (string, error) {
	trimmed := strings.TrimSpace(ref)
	if trimmed == "" {
		return "", errors.New("secret reference is empty")
	}

	if scheme, rest, found := strings.Cut(trimmed, "://"); found {
		if scheme == "" || rest == "" {
			return "", fmt.Errorf("invalid secret reference %q", ref)
		}
		trimmed = filepath.Join(scheme, rest)
	}

	relative := filepath.Clean(trimmed)
	if filepath.IsAbs(relative) || relative == "." || relative == ".." || strings.HasPrefix(relative, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid secret reference %q", ref)
	}
	return filepath.Join(s.root, relative+keyExtension), nil
}

func replaceFile(path string, data []byte) error {
	temp, err := os.CreateTemp(filepath.Dir(path), tempPattern)
	if err != nil {
		return fmt.Errorf("create temp key file: %w", err)
	}
	tempName := temp.Name()

	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(tempName)
		}
	}()

	if _, err := temp.Write(data); err != nil {
		_ = temp.Close()
		return fmt.Errorf("write temp key file: %w", err)
	}
	if err := temp.Chmod(keyFileMode); err != nil {
		_ = temp.Close()
		return fmt.Errorf("chmod temp key file: %w", err)
	}
	if err := temp.Close(); err != nil {
		return fmt.Errorf("close temp key file: %w", err)
	}
	if err := os.Rename(tempName, path); err != nil {
		return fmt.Errorf("replace key file: %w", err)
	}

	committed = true
	return nil
}
