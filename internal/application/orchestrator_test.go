package application

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/bnema/marketplace-wallet/internal/domain"
	"github.com/bnema/marketplace-wallet/internal/ports"
	"github.com/bnema/marketplace-wallet/internal/ports/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newTestOrchestrator(t *testing.T, env *fakeEnv, kv ports.KeyValueStore, notifier ports.Notifier, strategies ...Strategy) (*Orchestrator, *SessionStore) {
	t.Helper()

	store := NewSessionStore(mainNetwork(), kv, notifier, nil)
	orchestrator, err := NewOrchestrator(OrchestratorConfig{
		Network:    mainNetwork(),
		Probe:      NewCapabilityProbe(env),
		Strategies: strategies,
		Store:      store,
		Notifier:   notifier,
	})
	require.NoError(t, err)
	return orchestrator, store
}

type sessionRecorder struct {
	mu       sync.Mutex
	sessions []*domain.Session
}

func (r *sessionRecorder) record(session *domain.Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions = append(r.sessions, session)
}

func (r *sessionRecorder) all() []*domain.Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*domain.Session(nil), r.sessions...)
}

func TestConnectAutoFallsBackToRemotePairing(t *testing.T) {
	env := newFakeEnv(linuxUA)
	handle := newFakeHandle(t, mainGenesis)
	modal := &fakeModal{result: ports.PairingResult{Handle: handle, Account: handle.Address()}}
	kv := newMemoryKV()
	notifier := &recordingNotifier{}

	orchestrator, store := newTestOrchestrator(t, env, kv, notifier,
		DefaultStrategies(testStrategyConfig(env), modal, ports.PairingRequest{ProjectID: "project"})...)

	session, err := orchestrator.Connect(context.Background(), domain.WalletAuto)

	require.NoError(t, err)
	assert.Equal(t, domain.WalletRemotePairing, session.WalletType)
	assert.Equal(t, handle.Address(), session.Account)
	assert.Equal(t, domain.StateConnected, orchestrator.State())
	assert.EqualValues(t, 1, modal.opened.Load())

	stored, ok := store.Get()
	require.True(t, ok)
	assert.Equal(t, session.Account, stored.Account)
	assert.Equal(t, mainNetwork(), stored.Network)

	walletType, err := kv.Get(context.Background(), KeyWalletType)
	require.NoError(t, err)
	assert.Equal(t, string(domain.WalletRemotePairing), walletType)

	assert.Equal(t, 1, notifier.Count(domain.NotificationSuccess))
	assert.Zero(t, notifier.Count(domain.NotificationError))
}

func TestConnectDesktopAppOnMobileFailsWithoutPolling(t *testing.T) {
	env := newFakeEnv(iphoneUA)
	notifier := mocks.NewMockNotifier(t)
	notifier.EXPECT().Notify(mock.MatchedBy(func(n domain.Notification) bool {
		return n.Kind == domain.NotificationError && n.Title == "Wallet connection failed"
	})).Once()

	cfg := testStrategyConfig(env)
	cfg.HandshakeTimeout = 5 * time.Second
	orchestrator, store := newTestOrchestrator(t, env, newMemoryKV(), notifier, NewDesktopStrategy(cfg))

	start := time.Now()
	_, err := orchestrator.Connect(context.Background(), domain.WalletDesktopApp)

	require.ErrorIs(t, err, domain.ErrWalletNotInstalled)
	assert.Less(t, time.Since(start), time.Second)
	assert.Zero(t, env.LookupCount(ports.GlobalDesktopApp))
	assert.Equal(t, domain.StateFailed, orchestrator.State())
	assert.Equal(t, domain.AttemptFailed, orchestrator.Attempt().Status)
	_, ok := store.Get()
	assert.False(t, ok)
}

func TestConnectExtensionTimesOutWhenNeverInjected(t *testing.T) {
	env := newFakeEnv(linuxUA)
	notifier := &recordingNotifier{}
	cfg := testStrategyConfig(env)
	cfg.HandshakeTimeout = 50 * time.Millisecond

	orchestrator, store := newTestOrchestrator(t, env, newMemoryKV(), notifier, NewExtensionAStrategy(cfg))

	_, err := orchestrator.Connect(context.Background(), domain.WalletExtensionA)

	require.ErrorIs(t, err, domain.ErrHandshakeTimeout)
	assert.Equal(t, domain.StateFailed, orchestrator.State())
	assert.Equal(t, 1, notifier.Count(domain.NotificationError))
	_, ok := store.Get()
	assert.False(t, ok)
}

func TestConnectRejectsConcurrentAttempt(t *testing.T) {
	env := newFakeEnv(linuxUA)
	handle := newFakeHandle(t, mainGenesis)
	blocking := newBlockingStrategy(domain.WalletDevKey, domain.Session{
		WalletType: domain.WalletDevKey,
		Account:    handle.Address(),
		Handle:     handle,
	})
	notifier := &recordingNotifier{}
	orchestrator, _ := newTestOrchestrator(t, env, newMemoryKV(), notifier, blocking)

	first := make(chan error, 1)
	go func() {
		_, err := orchestrator.Connect(context.Background(), domain.WalletDevKey)
		first <- err
	}()
	<-blocking.started

	assert.True(t, orchestrator.State().Busy())
	_, err := orchestrator.Connect(context.Background(), domain.WalletDevKey)
	require.ErrorIs(t, err, domain.ErrAlreadyInProgress)

	close(blocking.release)
	require.NoError(t, <-first)
	assert.EqualValues(t, 1, blocking.calls.Load())
	assert.Equal(t, domain.StateConnected, orchestrator.State())
	assert.Equal(t, 1, notifier.Count(domain.NotificationError))
	assert.Equal(t, 1, notifier.Count(domain.NotificationSuccess))
}

func TestDisconnectSupersedesAttemptInFlight(t *testing.T) {
	env := newFakeEnv(linuxUA)
	stale := newFakeHandle(t, mainGenesis)
	blocking := newBlockingStrategy(domain.WalletExtensionA, domain.Session{
		WalletType: domain.WalletExtensionA,
		Account:    stale.Address(),
		Handle:     stale,
	})
	fresh := newFakeHandle(t, mainGenesis)
	env.Set(ports.GlobalDevKey, fakeDevKey{handle: fresh})

	orchestrator, store := newTestOrchestrator(t, env, newMemoryKV(), &recordingNotifier{},
		blocking, NewDevKeyStrategy(testStrategyConfig(env)))

	first := make(chan error, 1)
	go func() {
		_, err := orchestrator.Connect(context.Background(), domain.WalletExtensionA)
		first <- err
	}()
	<-blocking.started

	require.NoError(t, orchestrator.Disconnect(context.Background()))

	session, err := orchestrator.Connect(context.Background(), domain.WalletDevKey)
	require.NoError(t, err)
	assert.Equal(t, fresh.Address(), session.Account)

	close(blocking.release)
	require.ErrorIs(t, <-first, domain.ErrAttemptSuperseded)

	stored, ok := store.Get()
	require.True(t, ok)
	assert.Equal(t, domain.WalletDevKey, stored.WalletType)
	assert.Equal(t, fresh.Address(), stored.Account)
	assert.Equal(t, domain.StateConnected, orchestrator.State())
}

func TestDisconnectWhilePersistingClearsHint(t *testing.T) {
	env := newFakeEnv(linuxUA)
	env.Set(ports.GlobalDevKey, fakeDevKey{handle: newFakeHandle(t, mainGenesis)})
	kv := newGatedKV()
	notifier := &recordingNotifier{}
	orchestrator, store := newTestOrchestrator(t, env, kv, notifier, NewDevKeyStrategy(testStrategyConfig(env)))

	connected := make(chan error, 1)
	go func() {
		_, err := orchestrator.Connect(context.Background(), domain.WalletDevKey)
		connected <- err
	}()
	<-kv.entered

	disconnected := make(chan error, 1)
	go func() {
		disconnected <- orchestrator.Disconnect(context.Background())
	}()
	require.Eventually(t, func() bool {
		return orchestrator.State() == domain.StateIdle
	}, time.Second, time.Millisecond)
	close(kv.release)

	require.ErrorIs(t, <-connected, domain.ErrAttemptSuperseded)
	require.NoError(t, <-disconnected)

	_, ok := store.Get()
	assert.False(t, ok)
	for _, key := range []string{KeyWalletType, KeyWalletAccount, KeyWalletConnected} {
		_, err := kv.Get(context.Background(), key)
		assert.ErrorIs(t, err, domain.ErrKeyNotFound, key)
	}
	assert.Zero(t, notifier.Count(domain.NotificationSuccess))
	assert.Equal(t, domain.StateIdle, orchestrator.State())
}

func TestNetworkMismatchReturnsToIdle(t *testing.T) {
	env := newFakeEnv(linuxUA)
	handle := newFakeHandle(t, mainGenesis)
	env.Set(ports.GlobalDevKey, fakeDevKey{handle: handle})
	orchestrator, store := newTestOrchestrator(t, env, newMemoryKV(), &recordingNotifier{}, NewDevKeyStrategy(testStrategyConfig(env)))

	_, err := orchestrator.Connect(context.Background(), domain.WalletDevKey)
	require.NoError(t, err)
	require.Equal(t, domain.StateConnected, orchestrator.State())

	handle.SetGenesis(testGenesis)
	require.ErrorIs(t, store.CheckNetwork(context.Background()), domain.ErrNetworkMismatch)

	_, ok := store.Get()
	assert.False(t, ok)
	assert.Equal(t, domain.StateIdle, orchestrator.State())
}

func TestConnectReplacesPreviousSession(t *testing.T) {
	env := newFakeEnv(linuxUA)
	firstHandle := newFakeHandle(t, mainGenesis)
	secondHandle := newFakeHandle(t, mainGenesis)
	orchestrator, store := newTestOrchestrator(t, env, newMemoryKV(), &recordingNotifier{}, NewDevKeyStrategy(testStrategyConfig(env)))

	recorder := &sessionRecorder{}
	unsubscribe := store.OnChange(recorder.record)
	defer unsubscribe()

	env.Set(ports.GlobalDevKey, fakeDevKey{handle: firstHandle})
	_, err := orchestrator.Connect(context.Background(), domain.WalletDevKey)
	require.NoError(t, err)

	env.Set(ports.GlobalDevKey, fakeDevKey{handle: secondHandle})
	_, err = orchestrator.Connect(context.Background(), domain.WalletDevKey)
	require.NoError(t, err)

	stored, ok := store.Get()
	require.True(t, ok)
	assert.Equal(t, secondHandle.Address(), stored.Account)

	sessions := recorder.all()
	require.Len(t, sessions, 2)
	assert.Equal(t, firstHandle.Address(), sessions[0].Account)
	assert.Equal(t, secondHandle.Address(), sessions[1].Account)
	assert.Greater(t, sessions[1].AttemptID, sessions[0].AttemptID)
}

func TestConnectFailureKeepsPreviousSession(t *testing.T) {
	env := newFakeEnv(linuxUA)
	handle := newFakeHandle(t, mainGenesis)
	env.Set(ports.GlobalDevKey, fakeDevKey{handle: handle})
	cfg := testStrategyConfig(env)
	cfg.HandshakeTimeout = 20 * time.Millisecond
	orchestrator, store := newTestOrchestrator(t, env, newMemoryKV(), &recordingNotifier{},
		NewDevKeyStrategy(cfg), NewExtensionAStrategy(cfg))

	_, err := orchestrator.Connect(context.Background(), domain.WalletDevKey)
	require.NoError(t, err)

	_, err = orchestrator.Connect(context.Background(), domain.WalletExtensionA)
	require.ErrorIs(t, err, domain.ErrHandshakeTimeout)

	stored, ok := store.Get()
	require.True(t, ok)
	assert.Equal(t, domain.WalletDevKey, stored.WalletType)
	assert.Equal(t, domain.StateConnected, orchestrator.State())
}

func TestConnectRejectsWalletOnOtherNetwork(t *testing.T) {
	env := newFakeEnv(linuxUA)
	env.Set(ports.GlobalDevKey, fakeDevKey{handle: newFakeHandle(t, testGenesis)})
	kv := newMemoryKV()
	orchestrator, store := newTestOrchestrator(t, env, kv, &recordingNotifier{}, NewDevKeyStrategy(testStrategyConfig(env)))

	_, err := orchestrator.Connect(context.Background(), domain.WalletDevKey)

	require.ErrorIs(t, err, domain.ErrNetworkMismatch)
	_, ok := store.Get()
	assert.False(t, ok)
	_, err = kv.Get(context.Background(), KeyWalletType)
	assert.ErrorIs(t, err, domain.ErrKeyNotFound)
}

func TestConnectRejectsIncompleteSession(t *testing.T) {
	strategy := newBlockingStrategy(domain.WalletExtensionA, domain.Session{
		WalletType: domain.WalletExtensionA,
		Handle:     newFakeHandle(t, mainGenesis),
	})
	close(strategy.release)
	kv := newMemoryKV()
	orchestrator, store := newTestOrchestrator(t, newFakeEnv(linuxUA), kv, &recordingNotifier{}, strategy)

	_, err := orchestrator.Connect(context.Background(), domain.WalletExtensionA)

	require.ErrorIs(t, err, domain.ErrIdentityVerification)
	_, ok := store.Get()
	assert.False(t, ok)
	_, err = kv.Get(context.Background(), KeyWalletType)
	assert.ErrorIs(t, err, domain.ErrKeyNotFound)
	assert.Equal(t, domain.StateFailed, orchestrator.State())
}

func TestConnectUnknownWalletType(t *testing.T) {
	orchestrator, _ := newTestOrchestrator(t, newFakeEnv(linuxUA), newMemoryKV(), &recordingNotifier{})

	_, err := orchestrator.Connect(context.Background(), domain.WalletType("metamask"))
	require.ErrorIs(t, err, domain.ErrUnknownWalletType)

	_, err = orchestrator.Connect(context.Background(), domain.WalletExtensionB)
	require.ErrorIs(t, err, domain.ErrUnknownWalletType, "no strategy registered")
}

func TestConnectAutoWithoutAnyStrategy(t *testing.T) {
	orchestrator, _ := newTestOrchestrator(t, newFakeEnv(linuxUA), newMemoryKV(), &recordingNotifier{})

	_, err := orchestrator.Connect(context.Background(), domain.WalletAuto)
	require.ErrorIs(t, err, domain.ErrWalletNotInstalled)
}

func TestDisconnectIsIdempotent(t *testing.T) {
	env := newFakeEnv(linuxUA)
	env.Set(ports.GlobalDevKey, fakeDevKey{handle: newFakeHandle(t, mainGenesis)})
	kv := newMemoryKV()
	orchestrator, store := newTestOrchestrator(t, env, kv, &recordingNotifier{}, NewDevKeyStrategy(testStrategyConfig(env)))

	recorder := &sessionRecorder{}
	store.OnChange(recorder.record)

	require.NoError(t, orchestrator.Disconnect(context.Background()))
	require.NoError(t, orchestrator.Disconnect(context.Background()))
	assert.Empty(t, recorder.all())
	assert.Equal(t, domain.StateIdle, orchestrator.State())

	_, err := orchestrator.Connect(context.Background(), domain.WalletDevKey)
	require.NoError(t, err)
	require.NoError(t, orchestrator.Disconnect(context.Background()))
	require.NoError(t, orchestrator.Disconnect(context.Background()))

	sessions := recorder.all()
	require.Len(t, sessions, 2)
	assert.Nil(t, sessions[1])
	_, ok := store.Get()
	assert.False(t, ok)
	_, err = kv.Get(context.Background(), KeyWalletConnected)
	assert.ErrorIs(t, err, domain.ErrKeyNotFound)
}

func TestReconnectUsesPersistedWalletType(t *testing.T) {
	env := newFakeEnv(linuxUA)
	env.Set(ports.GlobalDevKey, fakeDevKey{handle: newFakeHandle(t, mainGenesis)})
	kv := newMemoryKV()

	first, _ := newTestOrchestrator(t, env, kv, &recordingNotifier{}, NewDevKeyStrategy(testStrategyConfig(env)))
	_, err := first.Connect(context.Background(), domain.WalletDevKey)
	require.NoError(t, err)

	second, store := newTestOrchestrator(t, env, kv, &recordingNotifier{}, NewDevKeyStrategy(testStrategyConfig(env)))
	_, ok := store.Get()
	require.False(t, ok, "restoring must not create a session by itself")

	session, restored, err := second.Reconnect(context.Background())
	require.NoError(t, err)
	assert.True(t, restored)
	assert.Equal(t, domain.WalletDevKey, session.WalletType)
}

func TestReconnectWithoutHint(t *testing.T) {
	orchestrator, _ := newTestOrchestrator(t, newFakeEnv(linuxUA), newMemoryKV(), &recordingNotifier{})

	_, restored, err := orchestrator.Reconnect(context.Background())
	require.NoError(t, err)
	assert.False(t, restored)
}
