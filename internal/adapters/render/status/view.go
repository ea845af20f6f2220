package status

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/bnema/marketplace-wallet/internal/application"
	"github.com/bnema/marketplace-wallet/internal/domain"
)

type RenderOptions struct {
	Now time.Time
	// Width wraps long detail lines when positive.
	Width int
}

func renderStatus(status application.Status, opts RenderOptions, s styles) string {
	lines := []string{
		s.title.Render("Wallet Connection"),
		s.header.Render(fmt.Sprintf("network: %s (%s)", status.Network.Name.Label(), domain.TruncateAddress(status.Network.ID))),
	}

	if status.Session == nil {
		lines = append(lines, s.section.Render(s.empty.Render("Not connected.")))
	} else {
		lines = append(lines, s.section.Render(renderSession(*status.Session, opts, s)))
	}

	if attempt := attemptLine(status.Attempt, status.State, opts, s); attempt != "" {
		lines = append(lines, attempt)
	}
	if status.Persisted.WalletType != domain.WalletAuto {
		lines = append(lines, s.meta.Render(persistedLabel(status.Persisted)))
	}

	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func renderSession(session application.SessionStatus, opts RenderOptions, s styles) string {
	since := lipgloss.NewStyle().Foreground(ageColor(session.ConnectedAt, opts.Now))
	return lipgloss.JoinVertical(
		lipgloss.Left,
		s.wallet.Render(session.WalletType.DisplayName()),
		lipgloss.JoinHorizontal(lipgloss.Top, s.key.Render("account: "), s.detail.Render(session.Account)),
		since.Render(formatConnectedSince(session.ConnectedAt, opts.Now)),
	)
}

func attemptLine(attempt domain.ConnectionAttempt, state domain.ConnectionState, opts RenderOptions, s styles) string {
	if attempt.ID == 0 {
		return ""
	}

	line := s.key.Render(fmt.Sprintf("last attempt #%d: ", attempt.ID)) + s.detail.Render(string(attempt.Status))
	if attempt.Selected != domain.WalletAuto {
		line += s.meta.Render(" via " + attempt.Selected.DisplayName())
	}
	if state == domain.StateFailed && attempt.FailureReason != "" {
		line = lipgloss.JoinVertical(lipgloss.Left, line, s.warning.Render(wrap(attempt.FailureReason, opts.Width)))
	}
	return line
}

func persistedLabel(choice domain.PersistedWalletChoice) string {
	if choice.Connected {
		return "remembered: " + choice.WalletType.DisplayName() + " (reconnects on start)"
	}
	return "remembered: " + choice.WalletType.DisplayName() + " (disconnected)"
}

func renderProbe(report application.ProbeReport, opts RenderOptions, s styles) string {
	device := "desktop"
	if report.Mobile {
		device = "mobile"
	}
	if report.WebView {
		device += ", in-app browser"
	}

	lines := []string{
		s.title.Render("Wallet Availability"),
		s.header.Render("device: " + device),
	}

	entries := make([]string, 0, len(report.Entries))
	for _, entry := range report.Entries {
		entries = append(entries, probeLine(entry, opts, s))
	}
	lines = append(lines, s.section.Render(lipgloss.JoinVertical(lipgloss.Left, entries...)))

	if len(report.Recommended) == 0 {
		lines = append(lines, s.section.Render(s.empty.Render("No wallet can be reached from here.")))
	} else {
		names := make([]string, 0, len(report.Recommended))
		for _, walletType := range report.Recommended {
			names = append(names, string(walletType))
		}
		lines = append(lines, s.section.Render(s.key.Render("auto order: ")+s.detail.Render(strings.Join(names, " > "))))
	}

	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func probeLine(entry application.ProbeEntry, opts RenderOptions, s styles) string {
	marker := s.missing.Render("[ ]")
	if entry.Availability.Available {
		marker = s.available.Render("[x]")
	}

	line := lipgloss.JoinHorizontal(
		lipgloss.Top,
		marker,
		" ",
		s.wallet.Render(fmt.Sprintf("%-16s", entry.WalletType)),
		" ",
		s.detail.Render(entry.WalletType.DisplayName()),
	)
	if entry.Availability.Detail != "" {
		line += s.meta.Render(" (" + wrap(entry.Availability.Detail, opts.Width) + ")")
	}
	return line
}

func renderReceipt(receipt domain.Receipt, opts RenderOptions, s styles) string {
	outcome := s.success.Render("confirmed")
	if receipt.Reverted {
		outcome = s.warning.Render("reverted")
	}

	return lipgloss.JoinVertical(
		lipgloss.Left,
		s.title.Render("Transaction ")+outcome,
		s.key.Render("id:     ")+s.detail.Render(receipt.TxID),
		s.key.Render("origin: ")+s.detail.Render(receipt.Origin),
		s.key.Render("block:  ")+s.detail.Render(fmt.Sprintf("#%d %s", receipt.BlockNumber, domain.TruncateAddress(receipt.BlockID))),
		s.key.Render("gas:    ")+s.detail.Render(fmt.Sprintf("%d", receipt.GasUsed)),
	)
}

func formatConnectedSince(connectedAt, now time.Time) string {
	if connectedAt.IsZero() {
		return "connected"
	}
	if now.IsZero() {
		return "connected at " + connectedAt.Format(time.RFC3339)
	}

	elapsed := now.Sub(connectedAt)
	switch {
	case elapsed < time.Minute:
		return "connected just now"
	case elapsed < time.Hour:
		return plural(int(elapsed.Minutes()), "minute")
	case elapsed < 24*time.Hour:
		return plural(int(elapsed.Hours()), "hour")
	default:
		return plural(int(math.Floor(elapsed.Hours()/24)), "day")
	}
}

func plural(n int, unit string) string {
	if n != 1 {
		unit += "s"
	}
	return fmt.Sprintf("connected %d %s ago", n, unit)
}

// ageColor fades from bright white to grey over the first day of a session.
func ageColor(connectedAt, now time.Time) lipgloss.Color {
	if now.IsZero() || connectedAt.IsZero() || connectedAt.After(now) {
		return lipgloss.Color("255")
	}

	maxAge := 24 * time.Hour
	remaining := maxAge.Seconds() - now.Sub(connectedAt).Seconds()
	return interpolateColor(remaining, 0, maxAge.Seconds())
}

func interpolateColor(value, min, max float64) lipgloss.Color {
	if max == min {
		return lipgloss.Color("255")
	}

	normalized := (value - min) / (max - min)
	if normalized < 0 {
		normalized = 0
	}
	if normalized > 1 {
		normalized = 1
	}

	// ANSI 256 greyscale ramp from 240 to 255.
	baseColor := 240.0
	targetColor := 255.0
	interpolated := baseColor + (targetColor-baseColor)*normalized

	return lipgloss.Color(fmt.Sprintf("%d", int(interpolated)))
}

func wrap(text string, width int) string {
	if width <= 0 || lipgloss.Width(text) <= width {
		return text
	}
	return lipgloss.NewStyle().Width(width).Render(text)
}
