package devkey

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/bnema/marketplace-wallet/internal/domain"
	"github.com/bnema/marketplace-wallet/internal/ports"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

const DefaultLabel = "default"

// Keyring stores development keys in a secret store, one per label and network.
type Keyring struct {
	Store ports.SecretStore
	Label string
}

func (k Keyring) ref(network domain.NetworkName) string {
	label := strings.TrimSpace(k.Label)
	if label == "" {
		label = DefaultLabel
	}
	return fmt.Sprintf("devkey://%s/%s", label, network)
}

// Generate creates a fresh key for network and returns its address.
func (k Keyring) Generate(ctx context.Context, network domain.NetworkName) (string, error) {
	key, err := crypto.GenerateKey()
	if err != nil {
		return "", fmt.Errorf("generate development key: %w", err)
	}
	return k.store(ctx, network, hexutil.Encode(crypto.FromECDSA(key)))
}

// Import stores an existing hex-encoded private key.
func (k Keyring) Import(ctx context.Context, network domain.NetworkName, privateKey string) (string, error) {
	return k.store(ctx, network, privateKey)
}

func (k Keyring) Address(ctx context.Context, network domain.NetworkName) (string, error) {
	raw, err := k.Store.Get(ctx, k.ref(network))
	if err != nil {
		return "", err
	}
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(raw), "0x"))
	if err != nil {
		return "", fmt.Errorf("parse development key: %w", err)
	}
	return crypto.PubkeyToAddress(key.PublicKey).Hex(), nil
}

func (k Keyring) Remove(ctx context.Context, network domain.NetworkName) error {
	return k.Store.Delete(ctx, k.ref(network))
}

func (k Keyring) store(ctx context.Context, network domain.NetworkName, privateKey string) (string, error) {
	trimmed := strings.TrimPrefix(strings.TrimSpace(privateKey), "0x")
	key, err := crypto.HexToECDSA(trimmed)
	if err != nil {
		return "", fmt.Errorf("parse development key: %w", err)
	}
	if err := k.Store.Put(ctx, k.ref(network), "0x"+trimmed); err != nil {
		return "", fmt.Errorf("store development key: %w", err)
	}
	return crypto.PubkeyToAddress(key.PublicKey).Hex(), nil
}

// Provider hands out signers for the key stored for a network. It is what the
// environment exposes under the "devKey" global.
type Provider struct {
	Keyring Keyring
	Node    ports.NodeClient
	Logger  *slog.Logger
}

var _ ports.DevKeyProvider = Provider{}

func (p Provider) Signer(ctx context.Context, network domain.NetworkDescriptor) (domain.SigningHandle, error) {
	raw, err := p.Keyring.Store.Get(ctx, p.Keyring.ref(network.Name))
	if err != nil {
		if errors.Is(err, domain.ErrSecretNotFound) {
			return nil, fmt.Errorf("%w: no development key for %s", domain.ErrWalletNotInstalled, network.Name.Label())
		}
		return nil, fmt.Errorf("load development key: %w", err)
	}

	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(raw), "0x"))
	if err != nil {
		return nil, fmt.Errorf("parse development key: %w", err)
	}

	return NewSigner(key, network, p.Node, p.Logger)
}

// Available reports whether a key is stored for network.
func (p Provider) Available(ctx context.Context, network domain.NetworkName) bool {
	_, err := p.Keyring.Store.Get(ctx, p.Keyring.ref(network))
	return err == nil
}
