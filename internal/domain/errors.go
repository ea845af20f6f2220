package domain

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrWalletNotInstalled          = errors.New("wallet not installed")
	ErrUserRejected                = errors.New("user rejected the request")
	ErrHandshakeTimeout            = errors.New("wallet handshake timed out")
	ErrNetworkMismatch             = errors.New("wallet is connected to a different network")
	ErrUnknownWalletType           = errors.New("unknown wallet type")
	ErrAlreadyInProgress           = errors.New("connection already in progress")
	ErrAttemptSuperseded           = errors.New("connection attempt superseded")
	ErrIdentityVerification        = errors.New("wallet identity verification failed")
	ErrNoActiveSession             = errors.New("no active wallet session")
	ErrTransactionReverted         = errors.New("transaction reverted")
	ErrTransactionSubmissionFailed = errors.New("transaction submission failed")
	ErrReceiptTimeout              = errors.New("timed out waiting for transaction receipt")

	// ErrUnsupportedParams is returned by a wallet that refuses a parameter shape
	// before showing any prompt.
	ErrUnsupportedParams = errors.New("wallet does not accept these parameters")

	ErrKeyNotFound    = errors.New("key not found")
	ErrSecretNotFound = errors.New("secret not found")
)

const DefaultRevertReason = "Transaction was reverted"

type TransactionRevertedError struct {
	TxID   string
	Reason string
}

func (e *TransactionRevertedError) Error() string {
	return fmt.Sprintf("%s: %s", ErrTransactionReverted, e.Reason)
}

func (e *TransactionRevertedError) Is(target error) bool {
	return target == ErrTransactionReverted
}

// Describe turns a surfaced error into a message fit for a notification.
func Describe(err error) string {
	var reverted *TransactionRevertedError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &reverted):
		return reverted.Reason
	case errors.Is(err, ErrWalletNotInstalled):
		return "The selected wallet is not installed or cannot be reached from this device."
	case errors.Is(err, ErrUserRejected):
		return "The request was rejected in the wallet."
	case errors.Is(err, ErrHandshakeTimeout):
		return "The wallet did not respond in time. Make sure it is open and unlocked."
	case errors.Is(err, ErrNetworkMismatch):
		return "The wallet is connected to a different network. Switch networks and try again."
	case errors.Is(err, ErrUnknownWalletType):
		return "This wallet type is not supported."
	case errors.Is(err, ErrAlreadyInProgress):
		return "A wallet connection is already in progress."
	case errors.Is(err, ErrAttemptSuperseded):
		return "The connection attempt was cancelled."
	case errors.Is(err, ErrIdentityVerification):
		return "The wallet signature could not be verified."
	case errors.Is(err, ErrNoActiveSession):
		return "Connect a wallet first."
	case errors.Is(err, ErrReceiptTimeout):
		return "The transaction was not confirmed in time."
	case errors.Is(err, ErrTransactionSubmissionFailed):
		return "The transaction could not be submitted."
	case errors.Is(err, context.Canceled):
		return "The operation was cancelled."
	default:
		return err.Error()
	}
}
