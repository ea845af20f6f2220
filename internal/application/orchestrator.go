package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/bnema/marketplace-wallet/internal/domain"
	"github.com/bnema/marketplace-wallet/internal/ports"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

const instrumentationName = "github.com/bnema/marketplace-wallet/internal/application"

type OrchestratorConfig struct {
	Network    domain.NetworkDescriptor
	Probe      *CapabilityProbe
	Strategies []Strategy
	Store      *SessionStore
	Notifier   ports.Notifier
	Clock      ports.Clock
	Logger     *slog.Logger
	Tracer     trace.Tracer
}

// Orchestrator runs at most one wallet handshake at a time and commits its result
// to the session store unless a newer attempt or a disconnect overtook it.
type Orchestrator struct {
	network    domain.NetworkDescriptor
	probe      *CapabilityProbe
	strategies map[domain.WalletType]Strategy
	store      *SessionStore
	notifier   ports.Notifier
	clock      ports.Clock
	logger     *slog.Logger
	tracer     trace.Tracer

	// persistMu orders hint writes against Disconnect's forget. It is never taken
	// while mu is held.
	persistMu sync.Mutex

	mu        sync.Mutex
	state     domain.ConnectionState
	inFlight  bool
	currentID uint64
	attempt   domain.ConnectionAttempt
}

func NewOrchestrator(cfg OrchestratorConfig) (*Orchestrator, error) {
	if err := cfg.Network.Validate(); err != nil {
		return nil, fmt.Errorf("validate network: %w", err)
	}
	if cfg.Store == nil {
		return nil, errors.New("session store is required")
	}
	if cfg.Probe == nil {
		return nil, errors.New("capability probe is required")
	}
	if cfg.Notifier == nil {
		cfg.Notifier = ports.NopNotifier{}
	}
	if cfg.Clock == nil {
		cfg.Clock = ports.SystemClock{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Tracer == nil {
		cfg.Tracer = noop.NewTracerProvider().Tracer(instrumentationName)
	}

	strategies := make(map[domain.WalletType]Strategy, len(cfg.Strategies))
	for _, strategy := range cfg.Strategies {
		if !strategy.Type().Valid() {
			return nil, fmt.Errorf("%w: %q", domain.ErrUnknownWalletType, strategy.Type())
		}
		strategies[strategy.Type()] = strategy
	}

	o := &Orchestrator{
		network:    cfg.Network,
		probe:      cfg.Probe,
		strategies: strategies,
		store:      cfg.Store,
		notifier:   cfg.Notifier,
		clock:      cfg.Clock,
		logger:     cfg.Logger,
		tracer:     cfg.Tracer,
		state:      domain.StateIdle,
		attempt:    domain.ConnectionAttempt{Status: domain.AttemptIdle},
	}
	cfg.Store.OnChange(o.sessionChanged)

	return o, nil
}

// State reports where the state machine is. StateFailed behaves like StateIdle: a
// new Connect may start from it.
func (o *Orchestrator) State() domain.ConnectionState {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

func (o *Orchestrator) Attempt() domain.ConnectionAttempt {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.attempt
}

// Connect runs the handshake of the requested wallet, or of the best available one
// when walletType is domain.WalletAuto. A failing wallet is never replaced by
// another type.
func (o *Orchestrator) Connect(ctx context.Context, walletType domain.WalletType) (domain.Session, error) {
	o.mu.Lock()
	if o.inFlight {
		o.mu.Unlock()
		o.logger.Info("connect rejected, attempt in flight", "requested", walletType)
		o.notifyFailure(domain.ErrAlreadyInProgress)
		return domain.Session{}, domain.ErrAlreadyInProgress
	}
	o.currentID++
	id := o.currentID
	o.inFlight = true
	o.state = domain.StateProbing
	o.attempt = domain.ConnectionAttempt{
		ID:        id,
		Requested: walletType,
		Status:    domain.AttemptProbing,
		StartedAt: o.clock.Now(),
	}
	o.mu.Unlock()

	ctx, span := o.tracer.Start(ctx, "wallet.connect", trace.WithAttributes(
		attribute.Int64("wallet.attempt", int64(id)),
		attribute.String("wallet.requested", string(walletType)),
	))
	defer span.End()

	o.logger.Info("connecting wallet", "attempt", id, "requested", walletType)

	session, err := o.run(ctx, id, walletType, span)
	if err != nil {
		o.fail(id, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		o.logger.Warn("wallet connection failed", "attempt", id, "requested", walletType, "error", err)
		o.notifyFailure(err)
		return domain.Session{}, err
	}

	span.SetStatus(codes.Ok, "")
	o.logger.Info("wallet connected", "attempt", id, "wallet", session.WalletType, "account", session.Account)
	o.notifier.Notify(domain.Notification{
		Kind:        domain.NotificationSuccess,
		Title:       "Wallet connected",
		Description: fmt.Sprintf("Connected as %s", domain.TruncateAddress(session.Account)),
	})

	return session, nil
}

func (o *Orchestrator) run(ctx context.Context, id uint64, requested domain.WalletType, span trace.Span) (domain.Session, error) {
	selected, err := o.selectWallet(id, requested)
	if err != nil {
		return domain.Session{}, err
	}
	span.SetAttributes(attribute.String("wallet.selected", string(selected)))

	strategy, ok := o.strategies[selected]
	if !ok {
		return domain.Session{}, fmt.Errorf("%w: no strategy registered for %q", domain.ErrUnknownWalletType, selected)
	}

	o.advance(id, domain.StateHandshaking, domain.AttemptAwaitingUserApproval)
	session, err := strategy.Connect(ctx, o.network)
	if err != nil {
		return domain.Session{}, fmt.Errorf("connect %s: %w", selected, classifyError(err))
	}
	if !session.Valid() {
		return domain.Session{}, fmt.Errorf("%w: %s returned a session without account or handle", domain.ErrIdentityVerification, selected)
	}

	o.advance(id, domain.StateHandshaking, domain.AttemptEstablishing)
	genesisID, err := session.Handle.GenesisID(ctx)
	if err != nil {
		return domain.Session{}, fmt.Errorf("read wallet network: %w", classifyError(err))
	}
	if !o.network.Matches(genesisID) {
		return domain.Session{}, fmt.Errorf("%w: expected %s, wallet reports %s", domain.ErrNetworkMismatch, o.network.ID, genesisID)
	}

	session.AttemptID = id
	session.Network = o.network
	if !o.persistAndCommit(ctx, id, session) {
		o.logger.Info("discarding superseded wallet session", "attempt", id, "wallet", selected)
		return domain.Session{}, domain.ErrAttemptSuperseded
	}
	o.store.publish()

	return session, nil
}

// persistAndCommit writes the reconnect hint and installs the session as one step
// with respect to Disconnect, which forgets the hint under the same lock. A
// disconnect that lands mid-write makes the commit fail and clears the hint after.
func (o *Orchestrator) persistAndCommit(ctx context.Context, id uint64, session domain.Session) bool {
	o.persistMu.Lock()
	defer o.persistMu.Unlock()

	if !o.isCurrent(id) {
		return false
	}
	if err := o.store.Persist(ctx, domain.PersistedWalletChoice{
		WalletType: session.WalletType,
		Account:    session.Account,
		Connected:  true,
	}); err != nil {
		o.logger.Warn("persist wallet choice", "attempt", id, "error", err)
	}
	return o.commit(id, session)
}

func (o *Orchestrator) isCurrent(id uint64) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return id == o.currentID && o.inFlight
}

func (o *Orchestrator) selectWallet(id uint64, requested domain.WalletType) (domain.WalletType, error) {
	o.advance(id, domain.StateSelecting, domain.AttemptProbing)

	if requested != domain.WalletAuto {
		if !requested.Valid() {
			return "", fmt.Errorf("%w: %q", domain.ErrUnknownWalletType, requested)
		}
		o.setSelected(id, requested)
		return requested, nil
	}

	for _, candidate := range o.probe.Recommended() {
		if _, ok := o.strategies[candidate]; ok {
			o.setSelected(id, candidate)
			return candidate, nil
		}
	}

	return "", fmt.Errorf("%w: no wallet detected", domain.ErrWalletNotInstalled)
}

func (o *Orchestrator) advance(id uint64, state domain.ConnectionState, status domain.AttemptStatus) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if id != o.currentID || !o.inFlight {
		return
	}
	o.state = state
	o.attempt.Status = status
}

func (o *Orchestrator) setSelected(id uint64, walletType domain.WalletType) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if id == o.currentID {
		o.attempt.Selected = walletType
	}
}

// commit stores the session only if id is still the current attempt. Listeners are
// not notified; the caller publishes once persistence is settled.
func (o *Orchestrator) commit(id uint64, session domain.Session) bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	if id != o.currentID || !o.inFlight {
		return false
	}
	o.store.swap(&session)
	o.inFlight = false
	o.state = domain.StateConnected
	o.attempt.Status = domain.AttemptSucceeded
	return true
}

// sessionChanged follows drops made by the store itself, such as a network
// mismatch, back into the state machine.
func (o *Orchestrator) sessionChanged(session *domain.Session) {
	if session != nil {
		return
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.inFlight && o.state == domain.StateConnected {
		o.state = domain.StateIdle
	}
}

func (o *Orchestrator) fail(id uint64, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if id != o.currentID || !o.inFlight {
		return
	}
	o.inFlight = false
	o.attempt.Status = domain.AttemptFailed
	o.attempt.FailureReason = err.Error()

	// A failed replacement attempt leaves the previous session in place.
	if _, ok := o.store.Get(); ok {
		o.state = domain.StateConnected
	} else {
		o.state = domain.StateFailed
	}
}

// Disconnect drops the session and the persisted choice. Any attempt still in
// flight is superseded. Safe to call when nothing is connected.
func (o *Orchestrator) Disconnect(ctx context.Context) error {
	o.mu.Lock()
	o.currentID++
	if o.inFlight {
		o.attempt.Status = domain.AttemptFailed
		o.attempt.FailureReason = domain.ErrAttemptSuperseded.Error()
	}
	o.inFlight = false
	o.state = domain.StateIdle
	o.mu.Unlock()

	o.store.Clear()

	o.persistMu.Lock()
	err := o.store.Forget(ctx)
	o.persistMu.Unlock()
	if err != nil {
		return fmt.Errorf("forget wallet choice: %w", err)
	}

	o.logger.Debug("wallet disconnected")
	return nil
}

// Reconnect runs a full handshake with the wallet type remembered from the last
// session. It reports false when nothing was remembered.
func (o *Orchestrator) Reconnect(ctx context.Context) (domain.Session, bool, error) {
	walletType, ok, err := o.store.RestoreFromPersistence(ctx)
	if err != nil {
		return domain.Session{}, false, fmt.Errorf("restore wallet choice: %w", err)
	}
	if !ok {
		return domain.Session{}, false, nil
	}

	session, err := o.Connect(ctx, walletType)
	if err != nil {
		return domain.Session{}, true, err
	}
	return session, true, nil
}

func (o *Orchestrator) notifyFailure(err error) {
	o.notifier.Notify(domain.Notification{
		Kind:        domain.NotificationError,
		Title:       "Wallet connection failed",
		Description: domain.Describe(err),
	})
}
