package domain

// Clause is one on-chain operation of a transaction. An empty To deploys a contract.
type Clause struct {
	To    string `json:"to"`
	Value string `json:"value"`
	Data  string `json:"data"`
}

type TxOptions struct {
	Signer    string
	Gas       uint64
	Comment   string
	DependsOn string
	Delegator string
}

type TxResponse struct {
	TxID   string
	Signer string
}

type PendingTransaction struct {
	Clauses []Clause
	TxID    string
	Receipt *Receipt
}

type Receipt struct {
	TxID        string
	Origin      string
	Reverted    bool
	GasUsed     uint64
	BlockID     string
	BlockNumber uint64
}

type TransactionDetail struct {
	ID      string
	Origin  string
	Clauses []Clause
}

type ExplainRequest struct {
	Clauses  []Clause
	Caller   string
	Revision string
}

type ExplainOutput struct {
	Data     string
	Reverted bool
	VMError  string
	GasUsed  uint64
}

type BlockRef struct {
	ID     string
	Number uint64
}
