package application

import (
	"time"

	"github.com/bnema/marketplace-wallet/internal/domain"
)

type ProbeEntry struct {
	WalletType   domain.WalletType
	Availability domain.Availability
}

type ProbeReport struct {
	Mobile      bool
	WebView     bool
	Entries     []ProbeEntry
	Recommended []domain.WalletType
}

type SessionStatus struct {
	WalletType  domain.WalletType
	Account     string
	ConnectedAt time.Time
}

type Status struct {
	Network   domain.NetworkDescriptor
	State     domain.ConnectionState
	Attempt   domain.ConnectionAttempt
	Session   *SessionStatus
	Persisted domain.PersistedWalletChoice
}
