package notify

import (
	"fmt"
	"io"
	"sync"

	"github.com/charmbracelet/lipgloss"

	"github.com/bnema/marketplace-wallet/internal/domain"
	"github.com/bnema/marketplace-wallet/internal/ports"
)

// Terminal prints notifications as one-line toasts. Writes are serialized so
// concurrent notifications never interleave.
type Terminal struct {
	mu    sync.Mutex
	out   io.Writer
	quiet bool

	marker map[domain.NotificationKind]lipgloss.Style
	title  lipgloss.Style
	body   lipgloss.Style
}

var _ ports.Notifier = (*Terminal)(nil)

// NewTerminal returns a notifier writing to out. Quiet drops info toasts.
func NewTerminal(out io.Writer, quiet bool) *Terminal {
	return &Terminal{
		out:   out,
		quiet: quiet,
		marker: map[domain.NotificationKind]lipgloss.Style{
			domain.NotificationInfo:    lipgloss.NewStyle().Foreground(lipgloss.Color("39")).SetString("i"),
			domain.NotificationSuccess: lipgloss.NewStyle().Foreground(lipgloss.Color("114")).SetString("✓"),
			domain.NotificationError:   lipgloss.NewStyle().Foreground(lipgloss.Color("203")).SetString("✗"),
		},
		title: lipgloss.NewStyle().Bold(true),
		body:  lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
	}
}

// SetOutput redirects later toasts to out.
func (t *Terminal) SetOutput(out io.Writer) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.out = out
}

func (t *Terminal) Notify(n domain.Notification) {
	if t == nil {
		return
	}
	if t.quiet && n.Kind == domain.NotificationInfo {
		return
	}

	marker, ok := t.marker[n.Kind]
	if !ok {
		marker = t.marker[domain.NotificationInfo]
	}

	line := marker.String() + " " + t.title.Render(n.Title)
	if n.Description != "" {
		line += " " + t.body.Render(n.Description)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.out == nil {
		return
	}
	_, _ = fmt.Fprintln(t.out, line)
}
