package application

import (
	"context"
	"fmt"

	"github.com/bnema/marketplace-wallet/internal/domain"
	"github.com/bnema/marketplace-wallet/internal/ports"
)

// DevKeyStrategy connects a locally stored development key. It never prompts.
type DevKeyStrategy struct {
	cfg StrategyConfig
}

var _ Strategy = (*DevKeyStrategy)(nil)

func NewDevKeyStrategy(cfg StrategyConfig) *DevKeyStrategy {
	return &DevKeyStrategy{cfg: cfg.withDefaults()}
}

func (s *DevKeyStrategy) Type() domain.WalletType {
	return domain.WalletDevKey
}

func (s *DevKeyStrategy) Connect(ctx context.Context, network domain.NetworkDescriptor) (domain.Session, error) {
	provider, ok := lookup[ports.DevKeyProvider](s.cfg.Env, ports.GlobalDevKey)
	if !ok {
		return domain.Session{}, fmt.Errorf("%w: no development key configured", domain.ErrWalletNotInstalled)
	}

	handle, err := Ladder{
		Wallet: s.Type(),
		Logger: s.cfg.Logger,
		Approaches: []Approach{{
			Name: "local-key",
			Run: func(ctx context.Context) (domain.SigningHandle, error) {
				return provider.Signer(ctx, network)
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
