package pairing

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bnema/marketplace-wallet/internal/adapters/bridge/bridgetest"
	"github.com/bnema/marketplace-wallet/internal/domain"
	"github.com/bnema/marketplace-wallet/internal/ports"
)

const testGenesis = "0x000000000b2bce3c70bc649a02749e8687721b09ed2e15997f466536b20bb127"

func pairingRequest() ports.PairingRequest {
	return ports.PairingRequest{
		ProjectID: "project-1",
		Metadata:  ports.AppMetadata{Name: "Marketplace", IconURL: "https://marketplace.test/icon.png"},
		Network:   domain.NetworkDescriptor{ID: testGenesis, Name: domain.NetworkTest, NodeURL: "https://testnet.example"},
	}
}

type uriRecorder struct {
	mu   sync.Mutex
	uris []string
}

func (r *uriRecorder) Present(uri string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.uris = append(r.uris, uri)
}

func TestOpenReturnsApprovedSession(t *testing.T) {
	t.Parallel()

	server := bridgetest.NewServer(t, testGenesis)
	server.Configure(func(s *bridgetest.Server) { s.PendingPolls = 2 })

	presented := &uriRecorder{}
	relay := &Relay{BaseURL: server.URL, HTTPClient: server.Client(), PollInterval: 5 * time.Millisecond, Present: presented.Present}

	result, err := relay.Open(context.Background(), pairingRequest())
	require.NoError(t, err)
	assert.Equal(t, server.Address(), result.Account)

	require.Len(t, presented.uris, 1)
	assert.True(t, strings.HasPrefix(presented.uris[0], "wc:"))

	genesisID, err := result.Handle.GenesisID(context.Background())
	require.NoError(t, err)
	assert.Equal(t, testGenesis, genesisID)
}

func TestOpenRejected(t *testing.T) {
	t.Parallel()

	server := bridgetest.NewServer(t, testGenesis)
	server.Configure(func(s *bridgetest.Server) { s.RejectPairing = true })

	relay := &Relay{BaseURL: server.URL, HTTPClient: server.Client(), PollInterval: 5 * time.Millisecond}
	_, err := relay.Open(context.Background(), pairingRequest())
	require.ErrorIs(t, err, domain.ErrUserRejected)
}

func TestOpenTimesOutWhilePending(t *testing.T) {
	t.Parallel()

	server := bridgetest.NewServer(t, testGenesis)
	server.Configure(func(s *bridgetest.Server) { s.PendingPolls = 1 << 20 })

	relay := &Relay{
		BaseURL:      server.URL,
		HTTPClient:   server.Client(),
		PollInterval: 5 * time.Millisecond,
		Timeout:      30 * time.Millisecond,
	}
	_, err := relay.Open(context.Background(), pairingRequest())
	require.ErrorIs(t, err, domain.ErrHandshakeTimeout)
}

func TestOpenExpired(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.Method == http.MethodPost {
			assert.Equal(t, "/v1/pairings", r.URL.Path)
			_, _ = w.Write([]byte(`{"uri":"wc:abc@2"}`))
			return
		}
		_, _ = w.Write([]byte(`{"status":"expired"}`))
	}))
	t.Cleanup(server.Close)

	relay := &Relay{BaseURL: server.URL + "/", HTTPClient: server.Client(), PollInterval: 5 * time.Millisecond}
	_, err := relay.Open(context.Background(), pairingRequest())
	require.ErrorIs(t, err, domain.ErrHandshakeTimeout)
}

func TestOpenHonoursCancellation(t *testing.T) {
	t.Parallel()

	server := bridgetest.NewServer(t, testGenesis)
	server.Configure(func(s *bridgetest.Server) { s.PendingPolls = 1 << 20 })

	ctx, cancel := context.WithCancel(context.Background())
	relay := &Relay{
		BaseURL:      server.URL,
		HTTPClient:   server.Client(),
		PollInterval: 5 * time.Millisecond,
		Present:      func(string) { cancel() },
	}
	_, err := relay.Open(ctx, pairingRequest())
	require.ErrorIs(t, err, context.Canceled)
}

func TestOpenRequiresConfiguration(t *testing.T) {
	t.Parallel()

	_, err := (&Relay{}).Open(context.Background(), pairingRequest())
	require.ErrorIs(t, err, domain.ErrWalletNotInstalled)

	request := pairingRequest()
	request.ProjectID = ""
	_, err = (&Relay{BaseURL: "http://127.0.0.1:1"}).Open(context.Background(), request)
	require.ErrorIs(t, err, domain.ErrWalletNotInstalled)
}
