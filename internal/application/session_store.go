package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/bnema/marketplace-wallet/internal/domain"
	"github.com/bnema/marketplace-wallet/internal/ports"
)

const (
	KeyWalletType      = "wallet.type"
	KeyWalletAccount   = "wallet.account"
	KeyWalletConnected = "wallet.connected"
)

// SessionStore owns the single live session. Signing handles never leave memory;
// only the wallet type and account are persisted, as a reconnect hint.
type SessionStore struct {
	network  domain.NetworkDescriptor
	storage  ports.KeyValueStore
	notifier ports.Notifier
	logger   *slog.Logger

	mu      sync.RWMutex
	session *domain.Session

	listenersMu  sync.Mutex
	listeners    map[uint64]func(*domain.Session)
	nextListener uint64
}

func NewSessionStore(network domain.NetworkDescriptor, storage ports.KeyValueStore, notifier ports.Notifier, logger *slog.Logger) *SessionStore {
	if notifier == nil {
		notifier = ports.NopNotifier{}
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &SessionStore{
		network:   network,
		storage:   storage,
		notifier:  notifier,
		logger:    logger,
		listeners: map[uint64]func(*domain.Session){},
	}
}

func (s *SessionStore) Get() (domain.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.session == nil {
		return domain.Session{}, false
	}
	return *s.session, true
}

func (s *SessionStore) Set(session domain.Session) {
	s.swap(&session)
	s.publish()
}

func (s *SessionStore) Clear() {
	if s.swap(nil) {
		s.publish()
	}
}

// swap replaces the session without notifying listeners and reports whether
// anything changed.
func (s *SessionStore) swap(session *domain.Session) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if session == nil && s.session == nil {
		return false
	}
	if session != nil {
		copied := *session
		session = &copied
	}
	s.session = session
	return true
}

func (s *SessionStore) publish() {
	var snapshot *domain.Session
	if current, ok := s.Get(); ok {
		snapshot = &current
	}

	s.listenersMu.Lock()
	listeners := make([]func(*domain.Session), 0, len(s.listeners))
	for _, listener := range s.listeners {
		listeners = append(listeners, listener)
	}
	s.listenersMu.Unlock()

	for _, listener := range listeners {
		listener(snapshot)
	}
}

// OnChange registers a listener for session replacement and removal. The returned
// func unregisters it.
func (s *SessionStore) OnChange(listener func(*domain.Session)) func() {
	s.listenersMu.Lock()
	defer s.listenersMu.Unlock()

	id := s.nextListener
	s.nextListener++
	s.listeners[id] = listener

	return func() {
		s.listenersMu.Lock()
		defer s.listenersMu.Unlock()
		delete(s.listeners, id)
	}
}

func (s *SessionStore) Persist(ctx context.Context, choice domain.PersistedWalletChoice) error {
	if s.storage == nil {
		return nil
	}
	if err := s.storage.Put(ctx, KeyWalletType, string(choice.WalletType)); err != nil {
		return fmt.Errorf("persist wallet type: %w", err)
	}
	if err := s.storage.Put(ctx, KeyWalletAccount, choice.Account); err != nil {
		return fmt.Errorf("persist wallet account: %w", err)
	}
	if err := s.storage.Put(ctx, KeyWalletConnected, strconv.FormatBool(choice.Connected)); err != nil {
		return fmt.Errorf("persist wallet connected flag: %w", err)
	}
	return nil
}

func (s *SessionStore) Forget(ctx context.Context) error {
	if s.storage == nil {
		return nil
	}

	var result error
	for _, key := range []string{KeyWalletType, KeyWalletAccount, KeyWalletConnected} {
		if err := s.storage.Delete(ctx, key); err != nil && !errors.Is(err, domain.ErrKeyNotFound) {
			result = errors.Join(result, fmt.Errorf("delete %s: %w", key, err))
		}
	}
	return result
}

// PersistedChoice reads what was stored on the last successful connect.
func (s *SessionStore) PersistedChoice(ctx context.Context) (domain.PersistedWalletChoice, error) {
	if s.storage == nil {
		return domain.PersistedWalletChoice{}, nil
	}

	connected, err := s.read(ctx, KeyWalletConnected)
	if err != nil {
		return domain.PersistedWalletChoice{}, err
	}
	walletType, err := s.read(ctx, KeyWalletType)
	if err != nil {
		return domain.PersistedWalletChoice{}, err
	}
	account, err := s.read(ctx, KeyWalletAccount)
	if err != nil {
		return domain.PersistedWalletChoice{}, err
	}

	flag, _ := strconv.ParseBool(connected)
	return domain.PersistedWalletChoice{
		WalletType: domain.WalletType(walletType),
		Account:    account,
		Connected:  flag,
	}, nil
}

// RestoreFromPersistence returns the wallet type to reconnect with. It never creates
// a session: the caller must still run that wallet's handshake.
func (s *SessionStore) RestoreFromPersistence(ctx context.Context) (domain.WalletType, bool, error) {
	choice, err := s.PersistedChoice(ctx)
	if err != nil {
		return "", false, err
	}
	if !choice.Connected || !choice.WalletType.Valid() {
		return "", false, nil
	}
	return choice.WalletType, true, nil
}

func (s *SessionStore) read(ctx context.Context, key string) (string, error) {
	value, err := s.storage.Get(ctx, key)
	if err != nil {
		if errors.Is(err, domain.ErrKeyNotFound) {
			return "", nil
		}
		return "", fmt.Errorf("read %s: %w", key, err)
	}
	return value, nil
}

// CheckNetwork asks the live wallet which chain it is on and drops the session when
// it no longer matches the configured network.
func (s *SessionStore) CheckNetwork(ctx context.Context) error {
	session, ok := s.Get()
	if !ok {
		return nil
	}

	genesisID, err := session.Handle.GenesisID(ctx)
	if err != nil {
		return fmt.Errorf("read wallet network: %w", err)
	}
	if s.network.Matches(genesisID) {
		return nil
	}

	if !s.clearIfCurrent(session) {
		return nil
	}
	if err := s.Forget(ctx); err != nil {
		s.logger.Warn("forget persisted wallet after network mismatch", "error", err)
	}

	s.logger.Warn("wallet switched network, session dropped",
		"wallet", session.WalletType,
		"expected", s.network.ID,
		"reported", genesisID)
	s.notifier.Notify(domain.Notification{
		Kind:        domain.NotificationError,
		Title:       "Wallet disconnected",
		Description: domain.Describe(domain.ErrNetworkMismatch),
	})

	return fmt.Errorf("%w: expected %s, wallet reports %s", domain.ErrNetworkMismatch, s.network.ID, genesisID)
}

func (s *SessionStore) clearIfCurrent(expected domain.Session) bool {
	s.mu.Lock()
	if s.session == nil || s.session.AttemptID != expected.AttemptID || s.session.Account != expected.Account {
		s.mu.Unlock()
		return false
	}
	s.session = nil
	s.mu.Unlock()

	s.publish()
	return true
}

// Watch runs CheckNetwork every interval until ctx ends. Mismatches are delivered
// on the returned channel, which is closed when Watch stops.
func (s *SessionStore) Watch(ctx context.Context, interval time.Duration) <-chan error {
	mismatches := make(chan error, 1)
	if interval <= 0 {
		interval = 5 * time.Second
	}

	go func() {
		defer close(mismatches)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				err := s.CheckNetwork(ctx)
				if err == nil {
					continue
				}
				if !errors.Is(err, domain.ErrNetworkMismatch) {
					s.logger.Debug("network check failed", "error", err)
					continue
				}
				select {
				case mismatches <- err:
				default:
				}
			}
		}
	}()

	return mismatches
}
