package devkey

import (
	"context"
	"crypto/ecdsa"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/bnema/marketplace-wallet/internal/domain"
	"github.com/bnema/marketplace-wallet/internal/ports"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// Signer holds a development key in memory and submits transactions straight to
// the node.
type Signer struct {
	key     *ecdsa.PrivateKey
	address common.Address
	network domain.NetworkDescriptor
	node    ports.NodeClient
	logger  *slog.Logger
}

var (
	_ domain.SigningHandle        = (*Signer)(nil)
	_ domain.AccountAuthenticator = (*Signer)(nil)
)

func NewSigner(key *ecdsa.PrivateKey, network domain.NetworkDescriptor, node ports.NodeClient, logger *slog.Logger) (*Signer, error) {
	if key == nil {
		return nil, errors.New("development key is required")
	}
	if node == nil {
		return nil, errors.New("node client is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Signer{
		key:     key,
		address: crypto.PubkeyToAddress(key.PublicKey),
		network: network,
		node:    node,
		logger:  logger,
	}, nil
}

func (s *Signer) Address() string {
	return s.address.Hex()
}

func (s *Signer) AuthenticatedAccount(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return s.address.Hex(), nil
}

// GenesisID asks the node for block zero, so a key pointed at the wrong node is
// reported as a network mismatch.
func (s *Signer) GenesisID(ctx context.Context) (string, error) {
	block, err := s.node.Block(ctx, "0")
	if err != nil {
		return "", fmt.Errorf("read genesis block: %w", err)
	}
	return block.ID, nil
}

func (s *Signer) SignCertificate(ctx context.Context, cert domain.Certificate) (domain.SignedCertificate, error) {
	if err := ctx.Err(); err != nil {
		return domain.SignedCertificate{}, err
	}

	cert.Signer = s.address.Hex()
	hash, err := cert.SigningHash()
	if err != nil {
		return domain.SignedCertificate{}, err
	}
	signature, err := crypto.Sign(hash[:], s.key)
	if err != nil {
		return domain.SignedCertificate{}, fmt.Errorf("sign certificate: %w", err)
	}

	return domain.SignedCertificate{Certificate: cert, Signature: hexutil.Encode(signature)}, nil
}

func (s *Signer) SignTransaction(ctx context.Context, clauses []domain.Clause, opts domain.TxOptions) (domain.TxResponse, error) {
	if err := ctx.Err(); err != nil {
		return domain.TxResponse{}, err
	}
	if opts.Signer != "" && !strings.EqualFold(opts.Signer, s.address.Hex()) {
		return domain.TxResponse{}, fmt.Errorf("development key holds %s, not %s", s.address.Hex(), opts.Signer)
	}
	if opts.Delegator != "" {
		return domain.TxResponse{}, fmt.Errorf("%w: fee delegation is not available for development keys", domain.ErrUnsupportedParams)
	}

	best, err := s.node.Block(ctx, "best")
	if err != nil {
		return domain.TxResponse{}, fmt.Errorf("read best block: %w", err)
	}
	nonce, err := randomNonce()
	if err != nil {
		return domain.TxResponse{}, err
	}

	body, err := buildBody(s.network.ChainTag(), best.ID, clauses, opts.Gas, opts.DependsOn, nonce)
	if err != nil {
		return domain.TxResponse{}, err
	}
	if body.Gas == 0 {
		body.Gas = s.estimateGas(ctx, clauses, body)
	}

	raw, txID, err := body.sign(s.key)
	if err != nil {
		return domain.TxResponse{}, err
	}

	s.logger.Debug("sending development transaction", "txid", txID, "gas", body.Gas, "clauses", len(clauses), "comment", opts.Comment)
	sentID, err := s.node.SendRawTransaction(ctx, raw)
	if err != nil {
		return domain.TxResponse{}, err
	}
	if !strings.EqualFold(sentID, txID) {
		s.logger.Warn("node reported a different transaction id", "expected", txID, "reported", sentID)
	}

	return domain.TxResponse{TxID: sentID, Signer: s.address.Hex()}, nil
}

// estimateGas adds the gas the clauses burn in a dry run to the intrinsic cost.
// A failed dry run falls back to the intrinsic cost alone.
func (s *Signer) estimateGas(ctx context.Context, clauses []domain.Clause, body txBody) uint64 {
	gas := intrinsicGas(body.Clauses)

	outputs, err := s.node.Explain(ctx, domain.ExplainRequest{Clauses: clauses, Caller: s.address.Hex()})
	if err != nil {
		s.logger.Debug("gas dry run failed", "error", err)
		return gas
	}
	for _, output := range outputs {
		gas += output.GasUsed
	}
	return gas
}

func randomNonce() (uint64, error) {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return 0, fmt.Errorf("generate nonce: %w", err)
	}
	return binary.BigEndian.Uint64(buf[:]), nil
}
