package application

import (
	"context"
	"fmt"
	"sort"

	"github.com/bnema/marketplace-wallet/internal/domain"
)

// Service is the surface the rest of the marketplace talks to.
type Service struct {
	network      domain.NetworkDescriptor
	probe        *CapabilityProbe
	orchestrator *Orchestrator
	store        *SessionStore
	gateway      *TransactionGateway
}

func NewService(network domain.NetworkDescriptor, probe *CapabilityProbe, orchestrator *Orchestrator, store *SessionStore, gateway *TransactionGateway) *Service {
	return &Service{
		network:      network,
		probe:        probe,
		orchestrator: orchestrator,
		store:        store,
		gateway:      gateway,
	}
}

func (s *Service) Network() domain.NetworkDescriptor {
	return s.network
}

func (s *Service) OnSessionChange(listener func(*domain.Session)) func() {
	return s.store.OnChange(listener)
}

func (s *Service) Session() (domain.Session, bool) {
	return s.store.Get()
}

func (s *Service) Connect(ctx context.Context, walletType domain.WalletType) (domain.Session, error) {
	return s.orchestrator.Connect(ctx, walletType)
}

func (s *Service) Disconnect(ctx context.Context) error {
	return s.orchestrator.Disconnect(ctx)
}

func (s *Service) Reconnect(ctx context.Context) (domain.Session, bool, error) {
	return s.orchestrator.Reconnect(ctx)
}

// EnsureSession returns the live session, reconnecting with the remembered wallet
// when there is none.
func (s *Service) EnsureSession(ctx context.Context) (domain.Session, error) {
	if session, ok := s.store.Get(); ok {
		return session, nil
	}

	session, ok, err := s.orchestrator.Reconnect(ctx)
	if err != nil {
		return domain.Session{}, err
	}
	if !ok {
		return domain.Session{}, domain.ErrNoActiveSession
	}
	return session, nil
}

func (s *Service) CheckNetwork(ctx context.Context) error {
	return s.store.CheckNetwork(ctx)
}

func (s *Service) SubmitTransaction(ctx context.Context, cmd SendTransactionCommand) (string, error) {
	if err := cmd.Validate(); err != nil {
		return "", err
	}
	return s.gateway.Submit(ctx, cmd.Clauses, cmd.Options)
}

func (s *Service) WaitForReceipt(ctx context.Context, txID string) (domain.Receipt, error) {
	return s.gateway.WaitForReceipt(ctx, txID)
}

func (s *Service) SendTransaction(ctx context.Context, cmd SendTransactionCommand) (domain.PendingTransaction, error) {
	if err := cmd.Validate(); err != nil {
		return domain.PendingTransaction{}, err
	}
	return s.gateway.Send(ctx, cmd.Clauses, cmd.Options)
}

func (s *Service) Probe() ProbeReport {
	availability := s.probe.Probe()

	entries := make([]ProbeEntry, 0, len(availability))
	for walletType, verdict := range availability {
		entries = append(entries, ProbeEntry{WalletType: walletType, Availability: verdict})
	}
	order := make(map[domain.WalletType]int, len(domain.WalletTypes()))
	for i, walletType := range domain.WalletTypes() {
		order[walletType] = i
	}
	sort.Slice(entries, func(i, j int) bool {
		return order[entries[i].WalletType] < order[entries[j].WalletType]
	})

	return ProbeReport{
		Mobile:      s.probe.IsMobile(),
		WebView:     s.probe.InMobileWebView(),
		Entries:     entries,
		Recommended: s.probe.Recommended(),
	}
}

func (s *Service) GetStatus(ctx context.Context) (Status, error) {
	persisted, err := s.store.PersistedChoice(ctx)
	if err != nil {
		return Status{}, fmt.Errorf("read persisted wallet choice: %w", err)
	}

	status := Status{
		Network:   s.network,
		State:     s.orchestrator.State(),
		Attempt:   s.orchestrator.Attempt(),
		Persisted: persisted,
	}
	if session, ok := s.store.Get(); ok {
		status.Session = &SessionStatus{
			WalletType:  session.WalletType,
			Account:     session.Account,
			ConnectedAt: session.ConnectedAt,
		}
	}

	return status, nil
}
