package application

import (
	"context"

	"github.com/bnema/marketplace-wallet/internal/domain"
	"github.com/bnema/marketplace-wallet/internal/ports"
)

type ExtensionAStrategy struct {
	cfg StrategyConfig
}

var _ Strategy = (*ExtensionAStrategy)(nil)

func NewExtensionAStrategy(cfg StrategyConfig) *ExtensionAStrategy {
	return &ExtensionAStrategy{cfg: cfg.withDefaults()}
}

func (s *ExtensionAStrategy) Type() domain.WalletType {
	return domain.WalletExtensionA
}

func (s *ExtensionAStrategy) Connect(ctx context.Context, network domain.NetworkDescriptor) (domain.Session, error) {
	provider, err := waitForGlobal[ports.ExtensionAProvider](ctx, s.cfg, ports.GlobalExtensionA, func(p ports.ExtensionAProvider) bool {
		return p.IsWallet()
	})
	if err != nil {
		return domain.Session{}, err
	}

	injected := Approach{
		Name: "injected-session",
		Run: func(context.Context) (domain.SigningHandle, error) {
			handle, ok := provider.InjectedSigner()
			if !ok {
				return nil, errApproachNotApplicable
			}
			return handle, nil
		},
	}
	mobileParams := Approach{
		Name:    "mobile-params",
		Prompts: true,
		Run: func(ctx context.Context) (domain.SigningHandle, error) {
			return provider.NewSigner(ctx, ports.SignerParams{Network: network.Name})
		},
	}
	desktopParams := Approach{
		Name:    "desktop-params",
		Prompts: true,
		Run: func(ctx context.Context) (domain.SigningHandle, error) {
			return provider.NewSigner(ctx, ports.SignerParams{GenesisID: network.ID, NodeURL: network.NodeURL})
		},
	}

	approaches := []Approach{injected, desktopParams, mobileParams}
	if s.cfg.Probe.IsMobile() {
		approaches = []Approach{injected, mobileParams, desktopParams}
	}

	handle, err := Ladder{Wallet: s.Type(), Approaches: approaches, Logger: s.cfg.Logger}.Climb(ctx)
	if err != nil {
		return domain.Session{}, err
	}

	account, err := resolveAccount(ctx, s.cfg, s.Type(), handle)
	if err != nil {
		return domain.Session{}, err
	}

	return newSession(s.cfg, s.Type(), account, handle, network), nil
}

type ExtensionBStrategy struct {
	cfg StrategyConfig
}

var _ Strategy = (*ExtensionBStrategy)(nil)

func NewExtensionBStrategy(cfg StrategyConfig) *ExtensionBStrategy {
	return &ExtensionBStrategy{cfg: cfg.withDefaults()}
}

func (s *ExtensionBStrategy) Type() domain.WalletType {
	return domain.WalletExtensionB
}

func (s *ExtensionBStrategy) Connect(ctx context.Context, network domain.NetworkDescriptor) (domain.Session, error) {
	provider, err := waitForGlobal[ports.ExtensionBProvider](ctx, s.cfg, ports.GlobalExtensionB, nil)
	if err != nil {
		return domain.Session{}, err
	}

	existing := Approach{
		Name: "existing-session",
		Run: func(context.Context) (domain.SigningHandle, error) {
			handle, ok := provider.Session()
			if !ok {
				return nil, errApproachNotApplicable
			}
			return handle, nil
		},
	}
	enableByNetwork := Approach{
		Name:    "enable-network-name",
		Prompts: true,
		Run: func(ctx context.Context) (domain.SigningHandle, error) {
			return provider.Enable(ctx, ports.ExtensionBRequest{Network: network.Name})
		},
	}
	enableByChain := Approach{
		Name:    "enable-chain-id",
		Prompts: true,
		Run: func(ctx context.Context) (domain.SigningHandle, error) {
			return provider.Enable(ctx, ports.ExtensionBRequest{ChainID: network.ID})
		},
	}

	approaches := []Approach{existing, enableByChain, enableByNetwork}
	if s.cfg.Probe.IsMobile() {
		approaches = []Approach{existing, enableByNetwork, enableByChain}
	}

	handle, err := Ladder{Wallet: s.Type(), Approaches: approaches, Logger: s.cfg.Logger}.Climb(ctx)
	if err != nil {
		return domain.Session{}, err
	}

	account, err := resolveAccount(ctx, s.cfg, s.Type(), handle)
	if err != nil {
		return domain.Session{}, err
	}

	return newSession(s.cfg, s.Type(), account, handle, network), nil
}
