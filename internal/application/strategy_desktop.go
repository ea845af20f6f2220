package application

import (
	"context"
	"fmt"

	"github.com/bnema/marketplace-wallet/internal/domain"
	"github.com/bnema/marketplace-wallet/internal/ports"
)

const minDesktopAppVersion = 2

// DesktopStrategy waits for the desktop companion app to inject its session object
// after the user approves the page in the app.
type DesktopStrategy struct {
	cfg StrategyConfig
}

var _ Strategy = (*DesktopStrategy)(nil)

func NewDesktopStrategy(cfg StrategyConfig) *DesktopStrategy {
	return &DesktopStrategy{cfg: cfg.withDefaults()}
}

func (s *DesktopStrategy) Type() domain.WalletType {
	return domain.WalletDesktopApp
}

func (s *DesktopStrategy) Connect(ctx context.Context, network domain.NetworkDescriptor) (domain.Session, error) {
	if s.cfg.Probe.IsMobile() {
		return domain.Session{}, fmt.Errorf("%w: desktop app is not reachable from a mobile device", domain.ErrWalletNotInstalled)
	}

	s.cfg.Notifier.Notify(domain.Notification{
		Kind:        domain.NotificationInfo,
		Title:       "Waiting for desktop app",
		Description: "Approve the connection in the desktop wallet.",
	})

	session, err := waitForGlobal[ports.DesktopSession](ctx, s.cfg, ports.GlobalDesktopApp, func(d ports.DesktopSession) bool {
		return d.Version() >= minDesktopAppVersion
	})
	if err != nil {
		return domain.Session{}, err
	}

	handle, err := Ladder{
		Wallet: s.Type(),
		Logger: s.cfg.Logger,
		Approaches: []Approach{{
			Name: "desktop-signer",
			Run: func(ctx context.Context) (domain.SigningHandle, error) {
				return session.Signer(ctx, network.ID)
			},
		}},
	}.Climb(ctx)
	if err != nil {
		return domain.Session{}, err
	}

	account, err := resolveAccount(ctx, s.cfg, s.Type(), handle)
	if err != nil {
		return domain.Session{}, err
	}

	return newSession(s.cfg, s.Type(), account, handle, network), nil
}

type LegacyDesktopStrategy struct {
	cfg StrategyConfig
}

var _ Strategy = (*LegacyDesktopStrategy)(nil)

func NewLegacyDesktopStrategy(cfg StrategyConfig) *LegacyDesktopStrategy {
	return &LegacyDesktopStrategy{cfg: cfg.withDefaults()}
}

func (s *LegacyDesktopStrategy) Type() domain.WalletType {
	return domain.WalletDesktopAppLegacy
}

func (s *LegacyDesktopStrategy) Connect(ctx context.Context, network domain.NetworkDescriptor) (domain.Session, error) {
	if s.cfg.Probe.IsMobile() {
		return domain.Session{}, fmt.Errorf("%w: desktop app is not reachable from a mobile device", domain.ErrWalletNotInstalled)
	}

	session, err := waitForGlobal[ports.LegacyDesktopSession](ctx, s.cfg, ports.GlobalDesktopAppLegacy, nil)
	if err != nil {
		return domain.Session{}, err
	}

	handle, err := Ladder{
		Wallet: s.Type(),
		Logger: s.cfg.Logger,
		Approaches: []Approach{{
			Name: "legacy-vendor",
			Run: func(context.Context) (domain.SigningHandle, error) {
				if !network.Matches(session.GenesisID()) {
					return nil, fmt.Errorf("%w: desktop app is on %s", domain.ErrNetworkMismatch, session.GenesisID())
				}
				return session.Vendor(), nil
			},
		}},
	}.Climb(ctx)
	if err != nil {
		return domain.Session{}, err
	}

	account, err := resolveAccount(ctx, s.cfg, s.Type(), handle)
	if err != nil {
		return domain.Session{}, err
	}

	return newSession(s.cfg, s.Type(), account, handle, network), nil
}
