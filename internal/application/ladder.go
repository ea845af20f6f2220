package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/bnema/marketplace-wallet/internal/domain"
)

var errApproachNotApplicable = errors.New("approach not applicable")

// Approach is one way of obtaining a signing handle from a wallet family.
type Approach struct {
	Name string
	// Prompts marks approaches that raise wallet UI. Once one of them has run, later
	// prompting approaches are skipped.
	Prompts bool
	Run     func(ctx context.Context) (domain.SigningHandle, error)
}

// Ladder tries approaches in order and stops at the first success.
type Ladder struct {
	Wallet     domain.WalletType
	Approaches []Approach
	Logger     *slog.Logger
}

func (l Ladder) Climb(ctx context.Context) (domain.SigningHandle, error) {
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var lastErr error
	prompted := false
	for _, approach := range l.Approaches {
		if err := ctx.Err(); err != nil {
			return nil, classifyError(err)
		}
		if approach.Prompts && prompted {
			logger.Debug("skipping approach, user was already prompted", "wallet", l.Wallet, "approach", approach.Name)
			continue
		}

		handle, err := approach.Run(ctx)
		if err == nil && handle != nil {
			logger.Debug("wallet approach succeeded", "wallet", l.Wallet, "approach", approach.Name)
			return handle, nil
		}
		if err == nil {
			err = fmt.Errorf("approach %s returned no signing handle", approach.Name)
		}
		if errors.Is(err, errApproachNotApplicable) {
			logger.Debug("wallet approach not applicable", "wallet", l.Wallet, "approach", approach.Name)
			continue
		}
		if approach.Prompts && !errors.Is(err, domain.ErrUnsupportedParams) {
			prompted = true
		}

		err = classifyError(err)
		logger.Warn("wallet approach failed", "wallet", l.Wallet, "approach", approach.Name, "error", err)
		lastErr = err

		if errors.Is(err, domain.ErrUserRejected) || ctx.Err() != nil {
			return nil, err
		}
	}

	if lastErr == nil {
		return nil, fmt.Errorf("%w: no connection approach available for %s", domain.ErrWalletNotInstalled, l.Wallet)
	}
	return nil, lastErr
}

var taxonomy = []error{
	domain.ErrWalletNotInstalled,
	domain.ErrUserRejected,
	domain.ErrHandshakeTimeout,
	domain.ErrNetworkMismatch,
	domain.ErrUnknownWalletType,
	domain.ErrAlreadyInProgress,
	domain.ErrAttemptSuperseded,
	domain.ErrIdentityVerification,
	domain.ErrNoActiveSession,
	domain.ErrTransactionReverted,
	domain.ErrTransactionSubmissionFailed,
}

var rejectionMarkers = []string{"rejected", "denied", "declined", "cancelled by user", "user cancel", "user canceled"}

// classifyError maps raw wallet errors onto the failure taxonomy.
func classifyError(err error) error {
	if err == nil {
		return nil
	}
	for _, known := range taxonomy {
		if errors.Is(err, known) {
			return err
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", domain.ErrHandshakeTimeout, err)
	}
	if errors.Is(err, context.Canceled) {
		return err
	}

	message := strings.ToLower(err.Error())
	for _, marker := range rejectionMarkers {
		if strings.Contains(message, marker) {
			return fmt.Errorf("%w: %w", domain.ErrUserRejected, err)
		}
	}

	return err
}
