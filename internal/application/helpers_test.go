package application

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/bnema/marketplace-wallet/internal/domain"
	"github.com/bnema/marketplace-wallet/internal/ports"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"
)

const (
	mainGenesis = "0x00000000851caf3cfdb6e899cf5958bfb1ac3413d346d43539627e6be7ec1b4a"
	testGenesis = "0x000000000b2bce3c70bc649a02749e8687721b09ed2e15997f466536b20bb127"

	linuxUA  = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 Chrome/120.0 Safari/537.36"
	iphoneUA = "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 Mobile/15E148"
)

func mainNetwork() domain.NetworkDescriptor {
	return domain.NetworkDescriptor{ID: mainGenesis, Name: domain.NetworkMain, NodeURL: "https://mainnet.example.org"}
}

type fakeEnv struct {
	mu        sync.RWMutex
	globals   map[string]any
	userAgent string
	touch     int
	width     int
	lookups   map[string]int
}

func newFakeEnv(userAgent string) *fakeEnv {
	return &fakeEnv{globals: map[string]any{}, userAgent: userAgent, width: 1440, lookups: map[string]int{}}
}

func (e *fakeEnv) Set(name string, value any) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.globals[name] = value
}

func (e *fakeEnv) Lookup(name string) (any, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.lookups[name]++
	value, ok := e.globals[name]
	return value, ok
}

func (e *fakeEnv) LookupCount(name string) int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.lookups[name]
}

func (e *fakeEnv) UserAgent() string   { return e.userAgent }
func (e *fakeEnv) MaxTouchPoints() int { return e.touch }
func (e *fakeEnv) ViewportWidth() int  { return e.width }

type fakeHandle struct {
	key       *ecdsa.PrivateKey
	mu        sync.Mutex
	genesis   string
	certErr   error
	txID      string
	txErr     error
	certCalls atomic.Int32
	txCalls   atomic.Int32
	lastOpts  domain.TxOptions
}

func newFakeHandle(t *testing.T, genesis string) *fakeHandle {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	return &fakeHandle{key: key, genesis: genesis, txID: "0x" + repeat("ab", 32)}
}

func (h *fakeHandle) Address() string {
	return crypto.PubkeyToAddress(h.key.PublicKey).Hex()
}

func (h *fakeHandle) SetGenesis(genesis string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.genesis = genesis
}

func (h *fakeHandle) GenesisID(context.Context) (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.genesis, nil
}

func (h *fakeHandle) SignCertificate(_ context.Context, cert domain.Certificate) (domain.SignedCertificate, error) {
	h.certCalls.Add(1)
	if h.certErr != nil {
		return domain.SignedCertificate{}, h.certErr
	}
	return signCertificate(h.key, cert)
}

func (h *fakeHandle) SignTransaction(_ context.Context, _ []domain.Clause, opts domain.TxOptions) (domain.TxResponse, error) {
	h.txCalls.Add(1)
	h.mu.Lock()
	h.lastOpts = opts
	h.mu.Unlock()
	if h.txErr != nil {
		return domain.TxResponse{}, h.txErr
	}
	return domain.TxResponse{TxID: h.txID, Signer: h.Address()}, nil
}

func signCertificate(key *ecdsa.PrivateKey, cert domain.Certificate) (domain.SignedCertificate, error) {
	cert.Signer = crypto.PubkeyToAddress(key.PublicKey).Hex()
	hash, err := cert.SigningHash()
	if err != nil {
		return domain.SignedCertificate{}, err
	}
	sig, err := crypto.Sign(hash[:], key)
	if err != nil {
		return domain.SignedCertificate{}, err
	}
	return domain.SignedCertificate{Certificate: cert, Signature: hexutil.Encode(sig)}, nil
}

// authenticatedHandle exposes the documented authenticated-address call.
type authenticatedHandle struct {
	*fakeHandle
	account string
	err     error
}

func (h authenticatedHandle) AuthenticatedAccount(context.Context) (string, error) {
	return h.account, h.err
}

type fakeExtensionA struct {
	mu            sync.Mutex
	handle        domain.SigningHandle
	injected      bool
	inApp         bool
	acceptMobile  bool
	acceptDesktop bool
	signerErr     error
	calls         []ports.SignerParams
}

func (p *fakeExtensionA) IsWallet() bool     { return true }
func (p *fakeExtensionA) InAppBrowser() bool { return p.inApp }

func (p *fakeExtensionA) InjectedSigner() (domain.SigningHandle, bool) {
	if !p.injected {
		return nil, false
	}
	return p.handle, true
}

func (p *fakeExtensionA) NewSigner(_ context.Context, params ports.SignerParams) (domain.SigningHandle, error) {
	p.mu.Lock()
	p.calls = append(p.calls, params)
	p.mu.Unlock()

	if p.signerErr != nil {
		return nil, p.signerErr
	}
	if params.Network != "" && !p.acceptMobile {
		return nil, domain.ErrUnsupportedParams
	}
	if params.GenesisID != "" && !p.acceptDesktop {
		return nil, domain.ErrUnsupportedParams
	}
	return p.handle, nil
}

func (p *fakeExtensionA) Calls() []ports.SignerParams {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]ports.SignerParams, len(p.calls))
	copy(out, p.calls)
	return out
}

type fakeExtensionB struct {
	handle    domain.SigningHandle
	enableErr error
	requests  []ports.ExtensionBRequest
}

func (p *fakeExtensionB) Session() (domain.SigningHandle, bool) { return nil, false }

func (p *fakeExtensionB) Enable(_ context.Context, req ports.ExtensionBRequest) (domain.SigningHandle, error) {
	p.requests = append(p.requests, req)
	if p.enableErr != nil {
		return nil, p.enableErr
	}
	return p.handle, nil
}

type fakeDesktop struct {
	version int
	handle  domain.SigningHandle
}

func (d fakeDesktop) Version() int { return d.version }

func (d fakeDesktop) Signer(context.Context, string) (domain.SigningHandle, error) {
	return d.handle, nil
}

type fakeLegacyDesktop struct {
	genesis string
	handle  domain.SigningHandle
}

func (d fakeLegacyDesktop) GenesisID() string            { return d.genesis }
func (d fakeLegacyDesktop) Vendor() domain.SigningHandle { return d.handle }

type fakeDevKey struct {
	handle domain.SigningHandle
}

func (d fakeDevKey) Signer(context.Context, domain.NetworkDescriptor) (domain.SigningHandle, error) {
	return d.handle, nil
}

type fakeModal struct {
	result   ports.PairingResult
	err      error
	opened   atomic.Int32
	requests chan ports.PairingRequest
}

func (m *fakeModal) Open(_ context.Context, req ports.PairingRequest) (ports.PairingResult, error) {
	m.opened.Add(1)
	if m.requests != nil {
		m.requests <- req
	}
	return m.result, m.err
}

// blockingStrategy parks in Connect until released.
type blockingStrategy struct {
	walletType domain.WalletType
	session    domain.Session
	err        error
	started    chan struct{}
	release    chan struct{}
	calls      atomic.Int32
}

func newBlockingStrategy(walletType domain.WalletType, session domain.Session) *blockingStrategy {
	return &blockingStrategy{
		walletType: walletType,
		session:    session,
		started:    make(chan struct{}, 4),
		release:    make(chan struct{}),
	}
}

func (s *blockingStrategy) Type() domain.WalletType { return s.walletType }

func (s *blockingStrategy) Connect(ctx context.Context, _ domain.NetworkDescriptor) (domain.Session, error) {
	s.calls.Add(1)
	s.started <- struct{}{}
	select {
	case <-ctx.Done():
		return domain.Session{}, ctx.Err()
	case <-s.release:
	}
	if s.err != nil {
		return domain.Session{}, s.err
	}
	return s.session, nil
}

type memoryKV struct {
	mu     sync.Mutex
	values map[string]string
}

func newMemoryKV() *memoryKV {
	return &memoryKV{values: map[string]string{}}
}

func (m *memoryKV) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	value, ok := m.values[key]
	if !ok {
		return "", domain.ErrKeyNotFound
	}
	return value, nil
}

func (m *memoryKV) Put(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

func (m *memoryKV) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.values[key]; !ok {
		return domain.ErrKeyNotFound
	}
	delete(m.values, key)
	return nil
}

// gatedKV parks the first Put until released.
type gatedKV struct {
	*memoryKV
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func newGatedKV() *gatedKV {
	return &gatedKV{memoryKV: newMemoryKV(), entered: make(chan struct{}), release: make(chan struct{})}
}

func (g *gatedKV) Put(ctx context.Context, key, value string) error {
	first := false
	g.once.Do(func() { first = true })
	if first {
		close(g.entered)
		<-g.release
	}
	return g.memoryKV.Put(ctx, key, value)
}

type recordingNotifier struct {
	mu            sync.Mutex
	notifications []domain.Notification
}

func (n *recordingNotifier) Notify(notification domain.Notification) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notifications = append(n.notifications, notification)
}

func (n *recordingNotifier) Count(kind domain.NotificationKind) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	count := 0
	for _, notification := range n.notifications {
		if notification.Kind == kind {
			count++
		}
	}
	return count
}

func repeat(s string, n int) string {
	out := ""
	for i := 0; i < n; i++ {
		out += s
	}
	return out
}

var errBoom = errors.New("boom")
