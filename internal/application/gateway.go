package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/bnema/marketplace-wallet/internal/domain"
	"github.com/bnema/marketplace-wallet/internal/ports"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

const (
	DefaultReceiptPollInterval = 2 * time.Second
	DefaultReceiptMaxAttempts  = 90
)

type GatewayConfig struct {
	Store    *SessionStore
	Node     ports.NodeClient
	Notifier ports.Notifier
	Logger   *slog.Logger
	Tracer   trace.Tracer
	// PollInterval is the fixed delay between receipt lookups.
	PollInterval time.Duration
	// MaxAttempts bounds receipt lookups. Zero selects the default; a negative value
	// polls until the context ends.
	MaxAttempts int
}

// TransactionGateway signs through the live session and follows the transaction
// until the node has a receipt for it.
type TransactionGateway struct {
	store        *SessionStore
	node         ports.NodeClient
	notifier     ports.Notifier
	logger       *slog.Logger
	tracer       trace.Tracer
	pollInterval time.Duration
	maxAttempts  int
}

func NewTransactionGateway(cfg GatewayConfig) (*TransactionGateway, error) {
	if cfg.Store == nil {
		return nil, errors.New("session store is required")
	}
	if cfg.Node == nil {
		return nil, errors.New("node client is required")
	}
	if cfg.Notifier == nil {
		cfg.Notifier = ports.NopNotifier{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Tracer == nil {
		cfg.Tracer = noop.NewTracerProvider().Tracer(instrumentationName)
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultReceiptPollInterval
	}
	if cfg.MaxAttempts == 0 {
		cfg.MaxAttempts = DefaultReceiptMaxAttempts
	}

	return &TransactionGateway{
		store:        cfg.Store,
		node:         cfg.Node,
		notifier:     cfg.Notifier,
		logger:       cfg.Logger,
		tracer:       cfg.Tracer,
		pollInterval: cfg.PollInterval,
		maxAttempts:  cfg.MaxAttempts,
	}, nil
}

func (g *TransactionGateway) Submit(ctx context.Context, clauses []domain.Clause, opts domain.TxOptions) (string, error) {
	ctx, span := g.tracer.Start(ctx, "wallet.submit", trace.WithAttributes(attribute.Int("tx.clauses", len(clauses))))
	defer span.End()

	txID, err := g.submit(ctx, clauses, opts)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		g.notifier.Notify(domain.Notification{
			Kind:        domain.NotificationError,
			Title:       "Transaction failed",
			Description: domain.Describe(err),
		})
		return "", err
	}

	span.SetAttributes(attribute.String("tx.id", txID))
	g.notifier.Notify(domain.Notification{
		Kind:        domain.NotificationInfo,
		Title:       "Transaction submitted",
		Description: fmt.Sprintf("Waiting for %s to be confirmed.", domain.TruncateAddress(txID)),
	})
	return txID, nil
}

func (g *TransactionGateway) submit(ctx context.Context, clauses []domain.Clause, opts domain.TxOptions) (string, error) {
	session, ok := g.store.Get()
	if !ok {
		return "", domain.ErrNoActiveSession
	}
	if len(clauses) == 0 {
		return "", fmt.Errorf("%w: at least one clause is required", domain.ErrTransactionSubmissionFailed)
	}
	if opts.Signer == "" {
		opts.Signer = session.Account
	}

	g.logger.Info("submitting transaction", "wallet", session.WalletType, "signer", opts.Signer, "clauses", len(clauses))

	response, err := session.Handle.SignTransaction(ctx, clauses, opts)
	if err != nil {
		err = classifyError(err)
		if errors.Is(err, domain.ErrUserRejected) || errors.Is(err, context.Canceled) {
			return "", err
		}
		return "", fmt.Errorf("%w: %w", domain.ErrTransactionSubmissionFailed, err)
	}
	if response.TxID == "" {
		return "", fmt.Errorf("%w: wallet returned no transaction id", domain.ErrTransactionSubmissionFailed)
	}

	return response.TxID, nil
}

// WaitForReceipt polls the node until the transaction is included. Node errors are
// retried at the same interval.
func (g *TransactionGateway) WaitForReceipt(ctx context.Context, txID string) (domain.Receipt, error) {
	ctx, span := g.tracer.Start(ctx, "wallet.wait_receipt", trace.WithAttributes(attribute.String("tx.id", txID)))
	defer span.End()

	receipt, err := g.waitForReceipt(ctx, txID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if !errors.Is(err, context.Canceled) {
			g.notifier.Notify(domain.Notification{
				Kind:        domain.NotificationError,
				Title:       "Transaction failed",
				Description: domain.Describe(err),
			})
		}
		return receipt, err
	}

	g.notifier.Notify(domain.Notification{
		Kind:        domain.NotificationSuccess,
		Title:       "Transaction confirmed",
		Description: fmt.Sprintf("Included in block %d.", receipt.BlockNumber),
	})
	return receipt, nil
}

func (g *TransactionGateway) waitForReceipt(ctx context.Context, txID string) (domain.Receipt, error) {
	if txID == "" {
		return domain.Receipt{}, errors.New("transaction id is required")
	}

	attempts := 0
	for {
		attempts++
		receipt, err := g.node.Receipt(ctx, txID)
		switch {
		case err != nil:
			if ctxErr := ctx.Err(); ctxErr != nil {
				return domain.Receipt{}, ctxErr
			}
			g.logger.Warn("receipt lookup failed, retrying", "txid", txID, "attempt", attempts, "error", err)
		case receipt != nil:
			if receipt.TxID == "" {
				receipt.TxID = txID
			}
			if receipt.Reverted {
				reason := g.revertReason(ctx, *receipt)
				return *receipt, &domain.TransactionRevertedError{TxID: txID, Reason: reason}
			}
			return *receipt, nil
		}

		if g.maxAttempts > 0 && attempts >= g.maxAttempts {
			return domain.Receipt{}, fmt.Errorf("%w: %s after %d attempts", domain.ErrReceiptTimeout, txID, attempts)
		}

		timer := time.NewTimer(g.pollInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return domain.Receipt{}, ctx.Err()
		case <-timer.C:
		}
	}
}

// revertReason replays the transaction's clauses through the node's explain call.
// Any failure along the way yields the generic reason.
func (g *TransactionGateway) revertReason(ctx context.Context, receipt domain.Receipt) string {
	tx, err := g.node.Transaction(ctx, receipt.TxID)
	if err != nil {
		g.logger.Warn("load reverted transaction", "txid", receipt.TxID, "error", err)
		return domain.DefaultRevertReason
	}

	caller := tx.Origin
	if caller == "" {
		caller = receipt.Origin
	}

	outputs, err := g.node.Explain(ctx, domain.ExplainRequest{
		Clauses:  tx.Clauses,
		Caller:   caller,
		Revision: receipt.BlockID,
	})
	if err != nil {
		g.logger.Warn("explain reverted transaction", "txid", receipt.TxID, "error", err)
		return domain.DefaultRevertReason
	}

	for _, output := range outputs {
		if !output.Reverted {
			continue
		}
		if reason, ok := decodeRevertData(output.Data); ok {
			return reason
		}
		if output.VMError != "" {
			return output.VMError
		}
	}

	return domain.DefaultRevertReason
}

func decodeRevertData(data string) (string, bool) {
	if data == "" || data == "0x" {
		return "", false
	}
	raw, err := hexutil.Decode(data)
	if err != nil {
		return "", false
	}
	reason, err := abi.UnpackRevert(raw)
	if err != nil || reason == "" {
		return "", false
	}
	return reason, true
}

// Send submits the clauses and waits for their receipt.
func (g *TransactionGateway) Send(ctx context.Context, clauses []domain.Clause, opts domain.TxOptions) (domain.PendingTransaction, error) {
	pending := domain.PendingTransaction{Clauses: clauses}

	txID, err := g.Submit(ctx, clauses, opts)
	if err != nil {
		return pending, err
	}
	pending.TxID = txID

	receipt, err := g.WaitForReceipt(ctx, txID)
	if receipt.TxID != "" {
		pending.Receipt = &receipt
	}
	return pending, err
}
