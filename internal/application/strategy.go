package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/bnema/marketplace-wallet/internal/domain"
	"github.com/bnema/marketplace-wallet/internal/ports"
	"github.com/ethereum/go-ethereum/common"
)

const (
	DefaultHandshakeTimeout = 10 * time.Second
	DefaultPollInterval     = 500 * time.Millisecond

	defaultIdentificationMessage = "Sign this certificate to connect your wallet to the marketplace."
)

// Strategy performs the handshake of one wallet family.
type Strategy interface {
	Type() domain.WalletType
	Connect(ctx context.Context, network domain.NetworkDescriptor) (domain.Session, error)
}

type StrategyConfig struct {
	Env              ports.Environment
	Probe            *CapabilityProbe
	Notifier         ports.Notifier
	Clock            ports.Clock
	Logger           *slog.Logger
	HandshakeTimeout time.Duration
	PollInterval     time.Duration
	// AppDomain and IdentificationMessage fill the identification certificate.
	AppDomain             string
	IdentificationMessage string
}

func (c StrategyConfig) withDefaults() StrategyConfig {
	if c.Probe == nil {
		c.Probe = NewCapabilityProbe(c.Env)
	}
	if c.Notifier == nil {
		c.Notifier = ports.NopNotifier{}
	}
	if c.Clock == nil {
		c.Clock = ports.SystemClock{}
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.IdentificationMessage == "" {
		c.IdentificationMessage = defaultIdentificationMessage
	}
	return c
}

// DefaultStrategies builds one strategy per wallet family. A nil modal leaves remote
// pairing unregistered.
func DefaultStrategies(cfg StrategyConfig, modal ports.PairingModal, pairing ports.PairingRequest) []Strategy {
	strategies := []Strategy{
		NewExtensionAStrategy(cfg),
		NewExtensionBStrategy(cfg),
		NewDesktopStrategy(cfg),
		NewLegacyDesktopStrategy(cfg),
		NewDevKeyStrategy(cfg),
	}
	if modal != nil {
		strategies = append(strategies, NewPairingStrategy(cfg, modal, pairing))
	}
	return strategies
}

// resolveAccount proves which address controls the handle. The wallet's documented
// authenticated-address call wins; otherwise an identification certificate is signed
// and verified locally.
func resolveAccount(ctx context.Context, cfg StrategyConfig, walletType domain.WalletType, handle domain.SigningHandle) (string, error) {
	if authenticator, ok := handle.(domain.AccountAuthenticator); ok {
		account, err := authenticator.AuthenticatedAccount(ctx)
		if err == nil && common.IsHexAddress(account) {
			return common.HexToAddress(account).Hex(), nil
		}
		err = classifyError(err)
		if err != nil && (ctx.Err() != nil || isTerminal(err)) {
			return "", err
		}
		cfg.Logger.Warn("authenticated account unavailable, falling back to certificate", "wallet", walletType, "error", err)
	}

	cfg.Notifier.Notify(domain.Notification{
		Kind:        domain.NotificationInfo,
		Title:       "Awaiting approval",
		Description: fmt.Sprintf("Approve the identification request in your %s.", walletType.DisplayName()),
	})

	cert := domain.NewIdentificationCertificate(cfg.AppDomain, cfg.IdentificationMessage, cfg.Clock.Now().Unix())
	signed, err := handle.SignCertificate(ctx, cert)
	if err != nil {
		return "", fmt.Errorf("sign identification certificate: %w", classifyError(err))
	}
	if !signed.SameRequest(cert) {
		return "", fmt.Errorf("%w: wallet signed a different certificate", domain.ErrIdentityVerification)
	}
	if err := signed.Verify(); err != nil {
		return "", err
	}

	return common.HexToAddress(signed.Signer).Hex(), nil
}

func isTerminal(err error) bool {
	return errors.Is(err, domain.ErrUserRejected) || errors.Is(err, domain.ErrHandshakeTimeout)
}

func newSession(cfg StrategyConfig, walletType domain.WalletType, account string, handle domain.SigningHandle, network domain.NetworkDescriptor) domain.Session {
	return domain.Session{
		WalletType:  walletType,
		Account:     account,
		Handle:      handle,
		Network:     network,
		ConnectedAt: cfg.Clock.Now(),
	}
}

// waitForGlobal polls the environment until the named global appears with the
// expected shape and passes accept, or the handshake timeout elapses.
func waitForGlobal[T any](ctx context.Context, cfg StrategyConfig, name string, accept func(T) bool) (T, error) {
	var zero T
	check := func() (T, bool) {
		value, ok := lookup[T](cfg.Env, name)
		if !ok {
			return zero, false
		}
		if accept != nil && !accept(value) {
			return zero, false
		}
		return value, true
	}

	if value, ok := check(); ok {
		return value, nil
	}

	timer := time.NewTimer(cfg.HandshakeTimeout)
	defer timer.Stop()
	ticker := time.NewTicker(cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return zero, classifyError(ctx.Err())
		case <-timer.C:
			return zero, fmt.Errorf("%w: %q did not appear within %s", domain.ErrHandshakeTimeout, name, cfg.HandshakeTimeout)
		case <-ticker.C:
			if value, ok := check(); ok {
				return value, nil
			}
		}
	}
}
