package application

import (
	"fmt"
	"regexp"

	"github.com/bnema/marketplace-wallet/internal/domain"
	"github.com/bnema/marketplace-wallet/internal/ports"
)

const mobileViewportWidth = 768

var mobileUserAgent = regexp.MustCompile(`(?i)android|webos|iphone|ipad|ipod|blackberry|iemobile|opera mini|mobile`)

var (
	mobilePreference  = []domain.WalletType{domain.WalletExtensionA, domain.WalletRemotePairing}
	desktopPreference = []domain.WalletType{
		domain.WalletExtensionA,
		domain.WalletDesktopApp,
		domain.WalletDesktopAppLegacy,
		domain.WalletRemotePairing,
	}
)

// CapabilityProbe inspects the environment for injected wallets without connecting
// to any of them.
type CapabilityProbe struct {
	env ports.Environment
}

func NewCapabilityProbe(env ports.Environment) *CapabilityProbe {
	return &CapabilityProbe{env: env}
}

func (p *CapabilityProbe) Probe() map[domain.WalletType]domain.Availability {
	result := make(map[domain.WalletType]domain.Availability, len(domain.WalletTypes()))
	for _, walletType := range domain.WalletTypes() {
		result[walletType] = p.inspect(walletType)
	}
	return result
}

func (p *CapabilityProbe) Available(walletType domain.WalletType) domain.Availability {
	return p.inspect(walletType)
}

// IsMobile combines the user agent with touch support and viewport width. An
// environment that panics reads as desktop.
func (p *CapabilityProbe) IsMobile() bool {
	return safeBool(p.isMobile)
}

func (p *CapabilityProbe) isMobile() bool {
	if p.env == nil {
		return false
	}
	if mobileUserAgent.MatchString(p.env.UserAgent()) {
		return true
	}
	return p.env.MaxTouchPoints() > 0 && p.env.ViewportWidth() > 0 && p.env.ViewportWidth() < mobileViewportWidth
}

// InMobileWebView reports whether the page runs inside the extension wallet's own
// mobile browser.
func (p *CapabilityProbe) InMobileWebView() bool {
	if !p.IsMobile() {
		return false
	}
	return safeBool(func() bool {
		provider, ok := lookup[ports.ExtensionAProvider](p.env, ports.GlobalExtensionA)
		return ok && provider.InAppBrowser()
	})
}

// Recommended lists available wallet types in auto-selection order.
func (p *CapabilityProbe) Recommended() []domain.WalletType {
	preference := desktopPreference
	mobile := p.IsMobile()
	if mobile {
		preference = mobilePreference
	}

	result := make([]domain.WalletType, 0, len(preference))
	for _, walletType := range preference {
		if mobile && walletType.DesktopOnly() {
			continue
		}
		if p.inspect(walletType).Available {
			result = append(result, walletType)
		}
	}
	return result
}

func (p *CapabilityProbe) inspect(walletType domain.WalletType) (availability domain.Availability) {
	defer func() {
		if r := recover(); r != nil {
			availability = domain.Availability{Available: false, Detail: fmt.Sprintf("inspection failed: %v", r)}
		}
	}()

	if walletType == domain.WalletRemotePairing {
		return domain.Availability{Available: true, Detail: "no local software required"}
	}
	if p.env == nil {
		return domain.Availability{Detail: "no environment"}
	}

	switch walletType {
	case domain.WalletExtensionA:
		provider, ok := lookup[ports.ExtensionAProvider](p.env, ports.GlobalExtensionA)
		if !ok {
			return domain.Availability{Detail: "extension not detected"}
		}
		if !provider.IsWallet() {
			return domain.Availability{Detail: "injected object is not a wallet"}
		}
		if provider.InAppBrowser() {
			return domain.Availability{Available: true, Detail: "running in wallet browser"}
		}
		return domain.Availability{Available: true, Detail: "extension detected"}
	case domain.WalletExtensionB:
		if _, ok := lookup[ports.ExtensionBProvider](p.env, ports.GlobalExtensionB); !ok {
			return domain.Availability{Detail: "extension not detected"}
		}
		return domain.Availability{Available: true, Detail: "extension detected"}
	case domain.WalletDesktopApp:
		session, ok := lookup[ports.DesktopSession](p.env, ports.GlobalDesktopApp)
		if !ok {
			return domain.Availability{Detail: "desktop app not detected"}
		}
		if session.Version() < 2 {
			return domain.Availability{Detail: fmt.Sprintf("unsupported desktop app version %d", session.Version())}
		}
		return domain.Availability{Available: true, Detail: fmt.Sprintf("desktop app v%d detected", session.Version())}
	case domain.WalletDesktopAppLegacy:
		if _, ok := lookup[ports.LegacyDesktopSession](p.env, ports.GlobalDesktopAppLegacy); !ok {
			return domain.Availability{Detail: "legacy desktop app not detected"}
		}
		return domain.Availability{Available: true, Detail: "legacy desktop app detected"}
	case domain.WalletDevKey:
		if _, ok := lookup[ports.DevKeyProvider](p.env, ports.GlobalDevKey); !ok {
			return domain.Availability{Detail: "no development key configured"}
		}
		return domain.Availability{Available: true, Detail: "development key loaded"}
	default:
		return domain.Availability{Detail: "unknown wallet type"}
	}
}

// lookup fetches an injected global and checks its shape.
func lookup[T any](env ports.Environment, name string) (T, bool) {
	var zero T
	if env == nil {
		return zero, false
	}
	raw, ok := env.Lookup(name)
	if !ok || raw == nil {
		return zero, false
	}
	typed, ok := raw.(T)
	return typed, ok
}

func safeBool(fn func() bool) (result bool) {
	defer func() {
		if recover() != nil {
			result = false
		}
	}()
	return fn()
}
