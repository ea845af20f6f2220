package ports

import (
	"context"

	"github.com/bnema/marketplace-wallet/internal/domain"
)

type AppMetadata struct {
	Name        string
	Description string
	URL         string
	IconURL     string
}

type PairingRequest struct {
	ProjectID string
	Metadata  AppMetadata
	Network   domain.NetworkDescriptor
}

type PairingResult struct {
	Handle  domain.SigningHandle
	Account string
}

type PairingModal interface {
	Open(ctx context.Context, req PairingRequest) (PairingResult, error)
}
