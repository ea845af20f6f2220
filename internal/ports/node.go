package ports

import (
	"context"

	"github.com/bnema/marketplace-wallet/internal/domain"
)

type NodeClient interface {
	Block(ctx context.Context, revision string) (domain.BlockRef, error)
	Transaction(ctx context.Context, id string) (domain.TransactionDetail, error)
	// Receipt returns nil without error while the transaction is pending.
	Receipt(ctx context.Context, id string) (*domain.Receipt, error)
	Explain(ctx context.Context, req domain.ExplainRequest) ([]domain.ExplainOutput, error)
	SendRawTransaction(ctx context.Context, raw []byte) (string, error)
}
