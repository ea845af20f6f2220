package domain

import (
	"encoding/hex"
	"fmt"
	"net/url"
	"strings"
)

type NetworkName string

const (
	NetworkMain NetworkName = "main"
	NetworkTest NetworkName = "test"
)

func ParseNetworkName(raw string) (NetworkName, error) {
	switch NetworkName(strings.ToLower(strings.TrimSpace(raw))) {
	case NetworkMain:
		return NetworkMain, nil
	case NetworkTest:
		return NetworkTest, nil
	default:
		return "", fmt.Errorf("unsupported network %q", raw)
	}
}

func (n NetworkName) Label() string {
	switch n {
	case NetworkMain:
		return "MainNet"
	case NetworkTest:
		return "TestNet"
	default:
		return string(n)
	}
}

// NetworkDescriptor identifies the ledger the process talks to. It is built once
// from configuration and never mutated.
type NetworkDescriptor struct {
	// ID is the genesis block id, 0x-prefixed hex.
	ID      string
	Name    NetworkName
	NodeURL string
}

func (n NetworkDescriptor) Validate() error {
	if strings.TrimSpace(n.ID) == "" {
		return fmt.Errorf("network genesis id is required")
	}
	if _, err := decodeHex32(n.ID); err != nil {
		return fmt.Errorf("network genesis id: %w", err)
	}
	if n.Name != NetworkMain && n.Name != NetworkTest {
		return fmt.Errorf("unsupported network %q", n.Name)
	}

	parsed, err := url.Parse(n.NodeURL)
	if err != nil {
		return fmt.Errorf("parse node url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("node url must use http or https")
	}
	if parsed.Host == "" {
		return fmt.Errorf("node url host is required")
	}

	return nil
}

// Matches reports whether a wallet-reported genesis id designates this network.
func (n NetworkDescriptor) Matches(genesisID string) bool {
	return normalizeHex(genesisID) == normalizeHex(n.ID)
}

// ChainTag is the last byte of the genesis id.
func (n NetworkDescriptor) ChainTag() byte {
	raw, err := decodeHex32(n.ID)
	if err != nil {
		return 0
	}
	return raw[len(raw)-1]
}

func normalizeHex(value string) string {
	value = strings.ToLower(strings.TrimSpace(value))
	return strings.TrimPrefix(value, "0x")
}

func decodeHex32(value string) ([]byte, error) {
	raw, err := hex.DecodeString(normalizeHex(value))
	if err != nil {
		return nil, fmt.Errorf("invalid hex %q", value)
	}
	if len(raw) != 32 {
		return nil, fmt.Errorf("expected 32 bytes, got %d", len(raw))
	}
	return raw, nil
}
