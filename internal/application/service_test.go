package application

import (
	"context"
	"testing"

	"github.com/bnema/marketplace-wallet/internal/domain"
	"github.com/bnema/marketplace-wallet/internal/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T, env *fakeEnv, kv ports.KeyValueStore, node *fakeNode) *Service {
	t.Helper()

	probe := NewCapabilityProbe(env)
	store := NewSessionStore(mainNetwork(), kv, nil, nil)
	cfg := testStrategyConfig(env)
	cfg.Probe = probe
	orchestrator, err := NewOrchestrator(OrchestratorConfig{
		Network:    mainNetwork(),
		Probe:      probe,
		Strategies: DefaultStrategies(cfg, nil, ports.PairingRequest{}),
		Store:      store,
	})
	require.NoError(t, err)
	gateway := newTestGateway(t, store, node, &recordingNotifier{}, 5)

	return NewService(mainNetwork(), probe, orchestrator, store, gateway)
}

func TestServiceEnsureSessionReconnects(t *testing.T) {
	env := newFakeEnv(linuxUA)
	env.Set(ports.GlobalDevKey, fakeDevKey{handle: newFakeHandle(t, mainGenesis)})
	kv := newMemoryKV()

	_, err := newTestService(t, env, kv, &fakeNode{}).EnsureSession(context.Background())
	require.ErrorIs(t, err, domain.ErrNoActiveSession)

	first := newTestService(t, env, kv, &fakeNode{})
	connected, err := first.Connect(context.Background(), domain.WalletDevKey)
	require.NoError(t, err)

	second := newTestService(t, env, kv, &fakeNode{})
	session, err := second.EnsureSession(context.Background())
	require.NoError(t, err)
	assert.Equal(t, connected.Account, session.Account)

	again, err := second.EnsureSession(context.Background())
	require.NoError(t, err)
	assert.Equal(t, session.AttemptID, again.AttemptID)
}

func TestServiceProbeListsWalletsInStableOrder(t *testing.T) {
	env := newFakeEnv(linuxUA)
	env.Set(ports.GlobalDesktopApp, fakeDesktop{version: 2})

	report := newTestService(t, env, newMemoryKV(), &fakeNode{}).Probe()

	require.Len(t, report.Entries, len(domain.WalletTypes()))
	for i, walletType := range domain.WalletTypes() {
		assert.Equal(t, walletType, report.Entries[i].WalletType)
	}
	assert.False(t, report.Mobile)
	assert.Equal(t, []domain.WalletType{domain.WalletDesktopApp, domain.WalletRemotePairing}, report.Recommended)
}

func TestServiceStatus(t *testing.T) {
	env := newFakeEnv(linuxUA)
	handle := newFakeHandle(t, mainGenesis)
	env.Set(ports.GlobalDevKey, fakeDevKey{handle: handle})
	service := newTestService(t, env, newMemoryKV(), &fakeNode{})

	status, err := service.GetStatus(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.StateIdle, status.State)
	assert.Nil(t, status.Session)

	_, err = service.Connect(context.Background(), domain.WalletDevKey)
	require.NoError(t, err)

	status, err = service.GetStatus(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.StateConnected, status.State)
	require.NotNil(t, status.Session)
	assert.Equal(t, handle.Address(), status.Session.Account)
	assert.True(t, status.Persisted.Connected)
	assert.Equal(t, domain.WalletDevKey, status.Persisted.WalletType)
}

func TestSendTransactionCommandValidate(t *testing.T) {
	tests := []struct {
		name    string
		cmd     SendTransactionCommand
		wantErr bool
	}{
		{name: "transfer", cmd: SendTransactionCommand{Clauses: transferClause()}},
		{name: "hex value", cmd: SendTransactionCommand{Clauses: []domain.Clause{{To: "0x7567d83b7b8d80addcb281a71d54fc7b3364ffed", Value: "0x0de0b6b3a7640000"}}}},
		{name: "deploy", cmd: SendTransactionCommand{Clauses: []domain.Clause{{Data: "0x6080"}}}},
		{name: "no clauses", wantErr: true},
		{name: "bad recipient", cmd: SendTransactionCommand{Clauses: []domain.Clause{{To: "bob"}}}, wantErr: true},
		{name: "bad value", cmd: SendTransactionCommand{Clauses: []domain.Clause{{Value: "ten"}}}, wantErr: true},
		{name: "bad data", cmd: SendTransactionCommand{Clauses: []domain.Clause{{Data: "6080"}}}, wantErr: true},
		{name: "bad signer", cmd: SendTransactionCommand{Clauses: transferClause(), Options: domain.TxOptions{Signer: "me"}}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cmd.Validate()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestServiceSubmitValidatesFirst(t *testing.T) {
	service := newTestService(t, newFakeEnv(linuxUA), newMemoryKV(), &fakeNode{})

	_, err := service.SubmitTransaction(context.Background(), SendTransactionCommand{})
	require.ErrorIs(t, err, ErrInvalidClause)

	_, err = service.SubmitTransaction(context.Background(), SendTransactionCommand{Clauses: transferClause()})
	require.ErrorIs(t, err, domain.ErrNoActiveSession)
}
