package domain

import "time"

// Block is a normalized chain block fetched with full transaction objects.
type Block struct {
	Number       uint64
	Timestamp    time.Time
	Miner        string
	TxHashes     []string
	Transactions []Transaction
}

// TransactionCount reports how many transactions the block carries.
func (b Block) TransactionCount() int {
	return len(b.TxHashes)
}

// ThroughputPoint is the transaction count of a single block, used as a TPS proxy.
type ThroughputPoint struct {
	Height           uint64    `json:"height"`
	Timestamp        time.Time `json:"timestamp"`
	TransactionCount int       `json:"transactionCount"`
}

// NetworkStatus is the chain head together with the current gas price.
type NetworkStatus struct {
	Height       uint64  `json:"height"`
	GasPriceGwei float64 `json:"gasPriceGwei"`
}

// BlockTransactions is every transaction of one block, tagged with its height.
type BlockTransactions struct {
	Height       uint64        `json:"height"`
	Transactions []Transaction `json:"transactions"`
}
