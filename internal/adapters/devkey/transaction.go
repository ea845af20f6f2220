package devkey

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/bnema/marketplace-wallet/internal/domain"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
	"golang.org/x/crypto/blake2b"
)

const (
	txGas                   = 5000
	clauseGas               = 16000
	clauseGasContractCreate = 48000
	txDataZeroGas           = 4
	txDataNonZeroGas        = 68

	defaultExpiration = 720
)

type txClause struct {
	To    []byte
	Value *big.Int
	Data  []byte
}

// txBody mirrors the ledger's transaction layout. Field order is the wire order.
type txBody struct {
	ChainTag     uint8
	BlockRef     uint64
	Expiration   uint32
	Clauses      []txClause
	GasPriceCoef uint8
	Gas          uint64
	DependsOn    []byte
	Nonce        uint64
	Reserved     []rlp.RawValue
}

type signedTx struct {
	ChainTag     uint8
	BlockRef     uint64
	Expiration   uint32
	Clauses      []txClause
	GasPriceCoef uint8
	Gas          uint64
	DependsOn    []byte
	Nonce        uint64
	Reserved     []rlp.RawValue
	Signature    []byte
}

func buildBody(chainTag byte, blockID string, clauses []domain.Clause, gas uint64, dependsOn string, nonce uint64) (txBody, error) {
	blockRef, err := blockRefFromID(blockID)
	if err != nil {
		return txBody{}, err
	}

	encoded := make([]txClause, 0, len(clauses))
	for i, clause := range clauses {
		converted, err := toTxClause(clause)
		if err != nil {
			return txBody{}, fmt.Errorf("clause %d: %w", i, err)
		}
		encoded = append(encoded, converted)
	}

	var depends []byte
	if strings.TrimSpace(dependsOn) != "" {
		depends, err = hexutil.Decode(dependsOn)
		if err != nil || len(depends) != 32 {
			return txBody{}, fmt.Errorf("dependsOn must be a 32-byte transaction id")
		}
	}

	return txBody{
		ChainTag:   chainTag,
		BlockRef:   blockRef,
		Expiration: defaultExpiration,
		Clauses:    encoded,
		Gas:        gas,
		DependsOn:  depends,
		Nonce:      nonce,
		Reserved:   []rlp.RawValue{},
	}, nil
}

func toTxClause(clause domain.Clause) (txClause, error) {
	out := txClause{Value: new(big.Int)}
	if clause.To != "" {
		if !common.IsHexAddress(clause.To) {
			return txClause{}, fmt.Errorf("recipient %q is not an address", clause.To)
		}
		out.To = common.HexToAddress(clause.To).Bytes()
	}
	if clause.Value != "" {
		value, ok := math.ParseBig256(clause.Value)
		if !ok {
			return txClause{}, fmt.Errorf("value %q is not a number", clause.Value)
		}
		out.Value = value
	}
	if clause.Data != "" && clause.Data != "0x" {
		data, err := hexutil.Decode(clause.Data)
		if err != nil {
			return txClause{}, fmt.Errorf("data: %w", err)
		}
		out.Data = data
	}
	return out, nil
}

// blockRefFromID takes the first eight bytes of a block id.
func blockRefFromID(blockID string) (uint64, error) {
	raw, err := hexutil.Decode(blockID)
	if err != nil {
		return 0, fmt.Errorf("decode block id: %w", err)
	}
	if len(raw) < 8 {
		return 0, errors.New("block id is too short")
	}
	return new(big.Int).SetBytes(raw[:8]).Uint64(), nil
}

func (b txBody) signingHash() ([32]byte, error) {
	encoded, err := rlp.EncodeToBytes(b)
	if err != nil {
		return [32]byte{}, fmt.Errorf("encode transaction: %w", err)
	}
	return blake2b.Sum256(encoded), nil
}

// sign returns the raw signed transaction and its id.
func (b txBody) sign(key *ecdsa.PrivateKey) ([]byte, string, error) {
	hash, err := b.signingHash()
	if err != nil {
		return nil, "", err
	}
	signature, err := crypto.Sign(hash[:], key)
	if err != nil {
		return nil, "", fmt.Errorf("sign transaction: %w", err)
	}

	raw, err := rlp.EncodeToBytes(signedTx{
		ChainTag:     b.ChainTag,
		BlockRef:     b.BlockRef,
		Expiration:   b.Expiration,
		Clauses:      b.Clauses,
		GasPriceCoef: b.GasPriceCoef,
		Gas:          b.Gas,
		DependsOn:    b.DependsOn,
		Nonce:        b.Nonce,
		Reserved:     b.Reserved,
		Signature:    signature,
	})
	if err != nil {
		return nil, "", fmt.Errorf("encode signed transaction: %w", err)
	}

	origin := crypto.PubkeyToAddress(key.PublicKey)
	id := blake2b.Sum256(append(hash[:], origin.Bytes()...))
	return raw, hexutil.Encode(id[:]), nil
}

// intrinsicGas is the gas charged before any clause executes.
func intrinsicGas(clauses []txClause) uint64 {
	if len(clauses) == 0 {
		return txGas + clauseGas
	}

	total := uint64(txGas)
	for _, clause := range clauses {
		if len(clause.To) == 0 {
			total += clauseGasContractCreate
		} else {
			total += clauseGas
		}
		for _, b := range clause.Data {
			if b == 0 {
				total += txDataZeroGas
			} else {
				total += txDataNonZeroGas
			}
		}
	}
	return total
}
