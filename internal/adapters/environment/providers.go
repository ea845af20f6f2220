package environment

import (
	"context"
	"errors"
	"net/http"

	"github.com/bnema/marketplace-wallet/internal/adapters/bridge"
	"github.com/bnema/marketplace-wallet/internal/domain"
	"github.com/bnema/marketplace-wallet/internal/ports"
)

type sessionResponse struct {
	Session string `json:"session"`
}

type signerRequest struct {
	Network   domain.NetworkName `json:"network,omitempty"`
	GenesisID string             `json:"genesisId,omitempty"`
	NodeURL   string             `json:"nodeUrl,omitempty"`
}

type enableRequest struct {
	Network domain.NetworkName `json:"network,omitempty"`
	ChainID string             `json:"chainId,omitempty"`
}

// newProvider turns a descriptor into the object a wallet of that kind injects.
func newProvider(descriptor Descriptor, httpClient *http.Client) (any, error) {
	base := bridgeProvider{
		client: bridge.Client{BaseURL: descriptor.Spec.Endpoint, HTTPClient: httpClient},
		spec:   descriptor.Spec,
	}

	switch descriptor.Spec.Kind {
	case domain.WalletExtensionA:
		return &extensionA{base}, nil
	case domain.WalletExtensionB:
		return &extensionB{base}, nil
	case domain.WalletDesktopApp:
		return &desktopApp{base}, nil
	case domain.WalletDesktopAppLegacy:
		handle, err := base.handle(descriptor.Spec.Session)
		if err != nil {
			return nil, err
		}
		return &legacyDesktopApp{genesisID: descriptor.Spec.GenesisID, vendor: handle}, nil
	default:
		return nil, errors.New("unsupported provider kind " + string(descriptor.Spec.Kind))
	}
}

type bridgeProvider struct {
	client bridge.Client
	spec   ProviderSpec
}

func (p bridgeProvider) handle(session string) (domain.SigningHandle, error) {
	handle, err := bridge.NewHandle(p.client, session)
	if err != nil {
		return nil, err
	}
	return bridge.Wrap(handle, p.spec.Flags.AuthenticatedAccount), nil
}

func (p bridgeProvider) injected() (domain.SigningHandle, bool) {
	if p.spec.Session == "" {
		return nil, false
	}
	handle, err := p.handle(p.spec.Session)
	if err != nil {
		return nil, false
	}
	return handle, true
}

// requestSession asks the bridge for a new approved session. The call blocks
// while the wallet shows its approval prompt.
func (p bridgeProvider) requestSession(ctx context.Context, path string, body any) (domain.SigningHandle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var payload sessionResponse
	if err := p.client.Do(ctx, http.MethodPost, path, body, &payload); err != nil {
		return nil, err
	}
	return p.handle(payload.Session)
}

type extensionA struct{ bridgeProvider }

var _ ports.ExtensionAProvider = (*extensionA)(nil)

func (p *extensionA) IsWallet() bool     { return true }
func (p *extensionA) InAppBrowser() bool { return p.spec.Flags.InAppBrowser }

func (p *extensionA) InjectedSigner() (domain.SigningHandle, bool) {
	return p.injected()
}

func (p *extensionA) NewSigner(ctx context.Context, params ports.SignerParams) (domain.SigningHandle, error) {
	return p.requestSession(ctx, "signers", signerRequest{
		Network:   params.Network,
		GenesisID: params.GenesisID,
		NodeURL:   params.NodeURL,
	})
}

type extensionB struct{ bridgeProvider }

var _ ports.ExtensionBProvider = (*extensionB)(nil)

func (p *extensionB) Session() (domain.SigningHandle, bool) {
	return p.injected()
}

func (p *extensionB) Enable(ctx context.Context, req ports.ExtensionBRequest) (domain.SigningHandle, error) {
	return p.requestSession(ctx, "enable", enableRequest{Network: req.Network, ChainID: req.ChainID})
}

type desktopApp struct{ bridgeProvider }

var _ ports.DesktopSession = (*desktopApp)(nil)

func (p *desktopApp) Version() int { return p.spec.Version }

func (p *desktopApp) Signer(ctx context.Context, genesisID string) (domain.SigningHandle, error) {
	return p.requestSession(ctx, "signers", signerRequest{GenesisID: genesisID})
}

type legacyDesktopApp struct {
	genesisID string
	vendor    domain.SigningHandle
}

var _ ports.LegacyDesktopSession = (*legacyDesktopApp)(nil)

func (p *legacyDesktopApp) GenesisID() string            { return p.genesisID }
func (p *legacyDesktopApp) Vendor() domain.SigningHandle { return p.vendor }
