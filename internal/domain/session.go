package domain

import (
	"context"
	"time"
)

// SigningHandle is the opaque capability a wallet hands out once connected.
type SigningHandle interface {
	GenesisID(ctx context.Context) (string, error)
	SignCertificate(ctx context.Context, cert Certificate) (SignedCertificate, error)
	SignTransaction(ctx context.Context, clauses []Clause, opts TxOptions) (TxResponse, error)
}

// AccountAuthenticator is implemented by handles whose wallet family documents a call
// returning an already authenticated address.
type AccountAuthenticator interface {
	AuthenticatedAccount(ctx context.Context) (string, error)
}

type Session struct {
	WalletType  WalletType
	Account     string
	Handle      SigningHandle
	Network     NetworkDescriptor
	ConnectedAt time.Time
	AttemptID   uint64
}

func (s Session) Valid() bool {
	return s.WalletType.Valid() && s.Account != "" && s.Handle != nil
}

type PersistedWalletChoice struct {
	WalletType WalletType
	Account    string
	Connected  bool
}
