package environment

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/term"

	"github.com/bnema/marketplace-wallet/internal/ports"
)

// terminalCellWidth approximates one terminal column in CSS pixels.
const terminalCellWidth = 8

type Options struct {
	Dir            string
	UserAgent      string
	MaxTouchPoints int
	// ViewportWidth falls back to the terminal width when zero.
	ViewportWidth int
	HTTPClient    *http.Client
	Logger        *slog.Logger
}

// Local is the process runtime wallets inject into. Globals come from provider
// descriptors on disk plus anything set directly, such as the dev-key provider.
type Local struct {
	dir            string
	userAgent      string
	maxTouchPoints int
	viewportWidth  int
	httpClient     *http.Client
	logger         *slog.Logger

	mu       sync.RWMutex
	static   map[string]any
	injected map[string]any
}

var _ ports.Environment = (*Local)(nil)

func NewLocal(opts Options) *Local {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Local{
		dir:            opts.Dir,
		userAgent:      opts.UserAgent,
		maxTouchPoints: opts.MaxTouchPoints,
		viewportWidth:  opts.ViewportWidth,
		httpClient:     opts.HTTPClient,
		logger:         logger,
		static:         map[string]any{},
		injected:       map[string]any{},
	}
}

func (l *Local) Lookup(name string) (any, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if value, ok := l.injected[name]; ok {
		return value, true
	}
	value, ok := l.static[name]
	return value, ok
}

func (l *Local) UserAgent() string   { return l.userAgent }
func (l *Local) MaxTouchPoints() int { return l.maxTouchPoints }

func (l *Local) ViewportWidth() int {
	if l.viewportWidth > 0 {
		return l.viewportWidth
	}
	fd := int(os.Stdout.Fd())
	if !term.IsTerminal(fd) {
		return 0
	}
	columns, _, err := term.GetSize(fd)
	if err != nil {
		return 0
	}
	return columns * terminalCellWidth
}

// Set installs a global that does not come from a descriptor file.
func (l *Local) Set(name string, value any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.static[name] = value
}

func (l *Local) Remove(name string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.static, name)
}

// Globals lists the names currently visible through Lookup.
func (l *Local) Globals() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()

	seen := make(map[string]struct{}, len(l.static)+len(l.injected))
	for name := range l.static {
		seen[name] = struct{}{}
	}
	for name := range l.injected {
		seen[name] = struct{}{}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	return names
}

// Reload replaces the descriptor-backed globals with the current directory
// contents. Valid descriptors are installed even when others fail to load.
func (l *Local) Reload() error {
	if l.dir == "" {
		return nil
	}

	descriptors, loadErr := LoadDescriptors(l.dir)

	injected := make(map[string]any, len(descriptors))
	for _, descriptor := range descriptors {
		provider, err := newProvider(descriptor, l.httpClient)
		if err != nil {
			l.logger.Warn("skipping provider", "name", descriptor.Metadata.Name, "error", err)
			continue
		}
		if _, exists := injected[descriptor.Spec.Global]; exists {
			l.logger.Warn("duplicate provider global", "global", descriptor.Spec.Global, "name", descriptor.Metadata.Name)
			continue
		}
		injected[descriptor.Spec.Global] = provider
	}

	l.mu.Lock()
	l.injected = injected
	l.mu.Unlock()

	l.logger.Debug("reloaded wallet providers", "dir", l.dir, "count", len(injected))
	return loadErr
}

// Watch reloads the providers whenever a descriptor changes, until ctx is done.
// The directory is created if it does not exist yet.
func (l *Local) Watch(ctx context.Context) error {
	if l.dir == "" {
		<-ctx.Done()
		return nil
	}
	if err := os.MkdirAll(l.dir, 0o700); err != nil {
		return fmt.Errorf("create providers dir: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	if err := watcher.Add(l.dir); err != nil {
		return fmt.Errorf("watch providers dir: %w", err)
	}
	if err := l.Reload(); err != nil {
		l.logger.Warn("reload providers", "error", err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !isDescriptorFile(filepath.Base(event.Name)) {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if err := l.Reload(); err != nil {
				l.logger.Warn("reload providers", "error", err)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			l.logger.Warn("providers watcher error", "error", err)
		}
	}
}
