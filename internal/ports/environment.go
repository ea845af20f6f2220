package ports

import (
	"context"

	"github.com/bnema/marketplace-wallet/internal/domain"
)

// Names of the globals each wallet family injects into the runtime.
const (
	GlobalExtensionA       = "vechain"
	GlobalExtensionB       = "connexExtension"
	GlobalDesktopApp       = "connex"
	GlobalDesktopAppLegacy = "thor"
	GlobalDevKey           = "devKey"
)

// Environment is the runtime the wallets inject themselves into. Lookups must not
// have side effects.
type Environment interface {
	Lookup(name string) (any, bool)
	UserAgent() string
	MaxTouchPoints() int
	ViewportWidth() int
}

// SignerParams carries either the coarse network name (mobile shape) or the exact
// genesis id (desktop shape).
type SignerParams struct {
	Network   domain.NetworkName
	GenesisID string
	NodeURL   string
}

type ExtensionAProvider interface {
	IsWallet() bool
	InAppBrowser() bool
	InjectedSigner() (domain.SigningHandle, bool)
	NewSigner(ctx context.Context, params SignerParams) (domain.SigningHandle, error)
}

type ExtensionBRequest struct {
	Network domain.NetworkName
	ChainID string
}

type ExtensionBProvider interface {
	Session() (domain.SigningHandle, bool)
	Enable(ctx context.Context, req ExtensionBRequest) (domain.SigningHandle, error)
}

type DesktopSession interface {
	Version() int
	Signer(ctx context.Context, genesisID string) (domain.SigningHandle, error)
}

type LegacyDesktopSession interface {
	GenesisID() string
	Vendor() domain.SigningHandle
}

type DevKeyProvider interface {
	Signer(ctx context.Context, network domain.NetworkDescriptor) (domain.SigningHandle, error)
}
