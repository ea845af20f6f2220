package application

import (
	"context"
	"fmt"

	"github.com/bnema/marketplace-wallet/internal/domain"
	"github.com/bnema/marketplace-wallet/internal/ports"
	"github.com/ethereum/go-ethereum/common"
)

// PairingStrategy hands the handshake to a pairing modal and waits for the remote
// wallet to approve.
type PairingStrategy struct {
	cfg     StrategyConfig
	modal   ports.PairingModal
	request ports.PairingRequest
}

var _ Strategy = (*PairingStrategy)(nil)

func NewPairingStrategy(cfg StrategyConfig, modal ports.PairingModal, request ports.PairingRequest) *PairingStrategy {
	return &PairingStrategy{cfg: cfg.withDefaults(), modal: modal, request: request}
}

func (s *PairingStrategy) Type() domain.WalletType {
	return domain.WalletRemotePairing
}

func (s *PairingStrategy) Connect(ctx context.Context, network domain.NetworkDescriptor) (domain.Session, error) {
	if s.modal == nil {
		return domain.Session{}, fmt.Errorf("%w: pairing is not configured", domain.ErrWalletNotInstalled)
	}

	request := s.request
	request.Network = network

	var paired ports.PairingResult
	handle, err := Ladder{
		Wallet: s.Type(),
		Logger: s.cfg.Logger,
		Approaches: []Approach{{
			Name:    "pairing-modal",
			Prompts: true,
			Run: func(ctx context.Context) (domain.SigningHandle, error) {
				result, err := s.modal.Open(ctx, request)
				if err != nil {
					return nil, err
				}
				paired = result
				return result.Handle, nil
			},
		}},
	}.Climb(ctx)
	if err != nil {
		return domain.Session{}, err
	}

	// The peer approves the account as part of pairing, so it is already authenticated.
	if common.IsHexAddress(paired.Account) {
		return newSession(s.cfg, s.Type(), common.HexToAddress(paired.Account).Hex(), handle, network), nil
	}

	account, err := resolveAccount(ctx, s.cfg, s.Type(), handle)
	if err != nil {
		return domain.Session{}, err
	}

	return newSession(s.cfg, s.Type(), account, handle, network), nil
}
