package application

import (
	"errors"
	"fmt"

	"github.com/bnema/marketplace-wallet/internal/domain"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/common/math"
)

var ErrInvalidClause = errors.New("invalid clause")

type SendTransactionCommand struct {
	Clauses []domain.Clause
	Options domain.TxOptions
}

func (c SendTransactionCommand) Validate() error {
	if len(c.Clauses) == 0 {
		return fmt.Errorf("%w: at least one clause is required", ErrInvalidClause)
	}
	for i, clause := range c.Clauses {
		if clause.To != "" && !common.IsHexAddress(clause.To) {
			return fmt.Errorf("%w %d: recipient %q is not an address", ErrInvalidClause, i, clause.To)
		}
		if clause.Value != "" {
			if _, ok := math.ParseBig256(clause.Value); !ok {
				return fmt.Errorf("%w %d: value %q is not a number", ErrInvalidClause, i, clause.Value)
			}
		}
		if clause.Data != "" {
			if _, err := hexutil.Decode(clause.Data); err != nil {
				return fmt.Errorf("%w %d: data: %w", ErrInvalidClause, i, err)
			}
		}
	}
	if c.Options.Signer != "" && !common.IsHexAddress(c.Options.Signer) {
		return fmt.Errorf("signer %q is not an address", c.Options.Signer)
	}
	return nil
}
