package devkey

import (
	"context"
	"strings"
	"sync"
	"testing"

	filestore "github.com/bnema/marketplace-wallet/internal/adapters/secrets/file"
	"github.com/bnema/marketplace-wallet/internal/domain"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/blake2b"
)

const (
	testGenesis = "0x000000000b2bce3c70bc649a02749e8687721b09ed2e15997f466536b20bb127"
	bestBlockID = "0x00a1b2c3d4e5f6071122334455667788990011223344556677889900aabbccdd"
)

type recordingNode struct {
	mu      sync.Mutex
	raw     []byte
	gasUsed uint64
}

func (n *recordingNode) Block(_ context.Context, revision string) (domain.BlockRef, error) {
	if revision == "0" {
		return domain.BlockRef{ID: testGenesis}, nil
	}
	return domain.BlockRef{ID: bestBlockID, Number: 10597059}, nil
}

func (n *recordingNode) Transaction(context.Context, string) (domain.TransactionDetail, error) {
	return domain.TransactionDetail{}, nil
}

func (n *recordingNode) Receipt(context.Context, string) (*domain.Receipt, error) {
	return nil, nil
}

func (n *recordingNode) Explain(context.Context, domain.ExplainRequest) ([]domain.ExplainOutput, error) {
	return []domain.ExplainOutput{{GasUsed: n.gasUsed}}, nil
}

func (n *recordingNode) SendRawTransaction(_ context.Context, raw []byte) (string, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.raw = raw

	var tx signedTx
	if err := rlp.DecodeBytes(raw, &tx); err != nil {
		return "", err
	}
	hash, err := txBody{
		ChainTag: tx.ChainTag, BlockRef: tx.BlockRef, Expiration: tx.Expiration, Clauses: tx.Clauses,
		GasPriceCoef: tx.GasPriceCoef, Gas: tx.Gas, DependsOn: tx.DependsOn, Nonce: tx.Nonce, Reserved: tx.Reserved,
	}.signingHash()
	if err != nil {
		return "", err
	}
	pub, err := crypto.SigToPub(hash[:], tx.Signature)
	if err != nil {
		return "", err
	}
	id := blake2b.Sum256(append(hash[:], crypto.PubkeyToAddress(*pub).Bytes()...))
	return hexutil.Encode(id[:]), nil
}

func testNetwork() domain.NetworkDescriptor {
	return domain.NetworkDescriptor{ID: testGenesis, Name: domain.NetworkTest, NodeURL: "https://testnet.example.org"}
}

func newTestProvider(t *testing.T, node *recordingNode) (Provider, string) {
	t.Helper()

	keyring := Keyring{Store: filestore.NewStore(t.TempDir()), Label: "ci"}
	address, err := keyring.Generate(context.Background(), domain.NetworkTest)
	require.NoError(t, err)

	return Provider{Keyring: keyring, Node: node}, address
}

func TestKeyringImportAndAddress(t *testing.T) {
	t.Parallel()

	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	keyring := Keyring{Store: filestore.NewStore(t.TempDir())}

	address, err := keyring.Import(context.Background(), domain.NetworkMain, hexutil.Encode(crypto.FromECDSA(key)))
	require.NoError(t, err)
	assert.Equal(t, crypto.PubkeyToAddress(key.PublicKey).Hex(), address)

	stored, err := keyring.Address(context.Background(), domain.NetworkMain)
	require.NoError(t, err)
	assert.Equal(t, address, stored)

	_, err = keyring.Address(context.Background(), domain.NetworkTest)
	require.ErrorIs(t, err, domain.ErrSecretNotFound)

	_, err = keyring.Import(context.Background(), domain.NetworkMain, "not-a-key")
	require.Error(t, err)
}

func TestProviderWithoutKeyReportsNotInstalled(t *testing.T) {
	t.Parallel()

	provider := Provider{Keyring: Keyring{Store: filestore.NewStore(t.TempDir())}, Node: &recordingNode{}}

	_, err := provider.Signer(context.Background(), testNetwork())
	require.ErrorIs(t, err, domain.ErrWalletNotInstalled)
	assert.False(t, provider.Available(context.Background(), domain.NetworkTest))
}

func TestSignerCertificateVerifies(t *testing.T) {
	t.Parallel()

	provider, address := newTestProvider(t, &recordingNode{})
	handle, err := provider.Signer(context.Background(), testNetwork())
	require.NoError(t, err)

	signed, err := handle.SignCertificate(context.Background(), domain.NewIdentificationCertificate("marketplace.test", "hello", 1700000000))
	require.NoError(t, err)
	require.NoError(t, signed.Verify())
	assert.Equal(t, address, signed.Signer)

	genesis, err := handle.GenesisID(context.Background())
	require.NoError(t, err)
	assert.True(t, testNetwork().Matches(genesis))
}

func TestSignerSendsVerifiableTransaction(t *testing.T) {
	t.Parallel()

	node := &recordingNode{gasUsed: 1200}
	provider, address := newTestProvider(t, node)
	handle, err := provider.Signer(context.Background(), testNetwork())
	require.NoError(t, err)

	clauses := []domain.Clause{{To: "0x7567d83b7b8d80addcb281a71d54fc7b3364ffed", Value: "1000000000000000000", Data: "0x00ff"}}
	response, err := handle.SignTransaction(context.Background(), clauses, domain.TxOptions{Signer: strings.ToLower(address)})
	require.NoError(t, err)
	assert.Equal(t, address, response.Signer)
	assert.True(t, strings.HasPrefix(response.TxID, "0x"))
	assert.Len(t, response.TxID, 66)

	var tx signedTx
	require.NoError(t, rlp.DecodeBytes(node.raw, &tx))
	assert.Equal(t, testNetwork().ChainTag(), tx.ChainTag)
	assert.Equal(t, uint64(0x00a1b2c3d4e5f607), tx.BlockRef)
	assert.EqualValues(t, defaultExpiration, tx.Expiration)
	require.Len(t, tx.Clauses, 1)
	assert.Equal(t, "1000000000000000000", tx.Clauses[0].Value.String())
	assert.Equal(t, []byte{0x00, 0xff}, tx.Clauses[0].Data)
	assert.EqualValues(t, txGas+clauseGas+txDataZeroGas+txDataNonZeroGas+1200, tx.Gas)
	assert.Empty(t, tx.DependsOn)
}

func TestSignerRejectsForeignSignerAndDelegation(t *testing.T) {
	t.Parallel()

	provider, _ := newTestProvider(t, &recordingNode{})
	handle, err := provider.Signer(context.Background(), testNetwork())
	require.NoError(t, err)

	clauses := []domain.Clause{{To: "0x7567d83b7b8d80addcb281a71d54fc7b3364ffed"}}

	_, err = handle.SignTransaction(context.Background(), clauses, domain.TxOptions{Signer: "0x0000000000000000000000000000000000000001"})
	require.Error(t, err)

	_, err = handle.SignTransaction(context.Background(), clauses, domain.TxOptions{Delegator: "https://sponsor.example.org"})
	require.ErrorIs(t, err, domain.ErrUnsupportedParams)
}

func TestIntrinsicGas(t *testing.T) {
	t.Parallel()

	transfer := []txClause{{To: make([]byte, 20)}}
	assert.EqualValues(t, 21000, intrinsicGas(transfer))

	deploy := []txClause{{Data: []byte{0x60, 0x00}}}
	assert.EqualValues(t, txGas+clauseGasContractCreate+txDataNonZeroGas+txDataZeroGas, intrinsicGas(deploy))
}

func TestBuildBodyRejectsBadDependsOn(t *testing.T) {
	t.Parallel()

	_, err := buildBody(0x27, bestBlockID, nil, 0, "0x1234", 1)
	require.Error(t, err)

	body, err := buildBody(0x27, bestBlockID, nil, 21000, "0x"+strings.Repeat("ab", 32), 1)
	require.NoError(t, err)
	assert.Len(t, body.DependsOn, 32)
}
