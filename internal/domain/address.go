package domain

import "strings"

// TruncateAddress shortens an address to 0x1234…abcd for display.
func TruncateAddress(address string) string {
	trimmed := strings.TrimSpace(address)
	if len(trimmed) <= 12 {
		return trimmed
	}
	return trimmed[:6] + "…" + trimmed[len(trimmed)-4:]
}
