package domain

import (
	"fmt"
	"strings"
)

type WalletType string

const (
	// WalletAuto asks the orchestrator to pick the best available wallet.
	WalletAuto WalletType = ""

	WalletExtensionA       WalletType = "extensionA"
	WalletExtensionB       WalletType = "extensionB"
	WalletDesktopApp       WalletType = "desktopApp"
	WalletDesktopAppLegacy WalletType = "desktopAppLegacy"
	WalletRemotePairing    WalletType = "remotePairing"
	WalletDevKey           WalletType = "devKey"
)

var walletTypes = []WalletType{
	WalletExtensionA,
	WalletExtensionB,
	WalletDesktopApp,
	WalletDesktopAppLegacy,
	WalletRemotePairing,
	WalletDevKey,
}

func WalletTypes() []WalletType {
	out := make([]WalletType, len(walletTypes))
	copy(out, walletTypes)
	return out
}

func ParseWalletType(raw string) (WalletType, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" || strings.EqualFold(trimmed, "auto") {
		return WalletAuto, nil
	}
	for _, candidate := range walletTypes {
		if strings.EqualFold(trimmed, string(candidate)) {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownWalletType, raw)
}

func (w WalletType) Valid() bool {
	for _, candidate := range walletTypes {
		if w == candidate {
			return true
		}
	}
	return false
}

// DesktopOnly reports whether the wallet can only be reached from a desktop.
func (w WalletType) DesktopOnly() bool {
	return w == WalletDesktopApp || w == WalletDesktopAppLegacy
}

func (w WalletType) DisplayName() string {
	switch w {
	case WalletExtensionA:
		return "Browser extension"
	case WalletExtensionB:
		return "Connex extension"
	case WalletDesktopApp:
		return "Desktop app"
	case WalletDesktopAppLegacy:
		return "Desktop app (legacy)"
	case WalletRemotePairing:
		return "Remote pairing"
	case WalletDevKey:
		return "Development key"
	case WalletAuto:
		return "Auto"
	default:
		return string(w)
	}
}

// Availability is the probe verdict for one wallet type.
type Availability struct {
	Available bool
	Detail    string
}
