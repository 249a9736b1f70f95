package ethrpc

import (
	"fmt"
	"strings"
	"time"

	"avaxdash/internal/domain"
)

const weiPerAVAX = 18

// RawBlock is the eth_getBlockByNumber payload requested with full
// transaction objects. Pointer fields keep a null or absent member apart from
// a zero value.
type RawBlock struct {
	Number       *string           `json:"number"`
	Timestamp    *string           `json:"timestamp"`
	Miner        *string           `json:"miner"`
	Transactions *[]RawTransaction `json:"transactions"`
}

type RawTransaction struct {
	Hash  *string `json:"hash"`
	From  *string `json:"from"`
	To    *string `json:"to"`
	Value *string `json:"value"`
	Gas   *string `json:"gas"`
}

func NormalizeBlock(raw RawBlock) (domain.Block, error) {
	number, err := requireHexUint("block number", raw.Number)
	if err != nil {
		return domain.Block{}, err
	}
	timestamp, err := requireHexUint("block timestamp", raw.Timestamp)
	if err != nil {
		return domain.Block{}, err
	}
	if raw.Transactions == nil {
		return domain.Block{}, fmt.Errorf("%w: block %d transactions are missing", domain.ErrDecode, number)
	}
	transactions, err := NormalizeTransactions(*raw.Transactions)
	if err != nil {
		return domain.Block{}, fmt.Errorf("block %d: %w", number, err)
	}

	hashes := make([]string, 0, len(transactions))
	for _, tx := range transactions {
		hashes = append(hashes, tx.Hash)
	}

	var miner string
	if raw.Miner != nil {
		miner = strings.ToLower(*raw.Miner)
	}
	return domain.Block{
		Number:       number,
		Timestamp:    time.Unix(int64(timestamp), 0).UTC(),
		Miner:        miner,
		TxHashes:     hashes,
		Transactions: transactions,
	}, nil
}

// NormalizeTransactions converts full transaction objects in block order.
// Hashes must be unique within the list.
func NormalizeTransactions(raw []RawTransaction) ([]domain.Transaction, error) {
	transactions := make([]domain.Transaction, 0, len(raw))
	seen := make(map[string]struct{}, len(raw))
	for i, item := range raw {
		tx, err := normalizeTransaction(item)
		if err != nil {
			return nil, fmt.Errorf("transaction %d: %w", i, err)
		}
		if _, ok := seen[tx.Hash]; ok {
			return nil, fmt.Errorf("%w: duplicate transaction hash %s", domain.ErrDecode, tx.Hash)
		}
		seen[tx.Hash] = struct{}{}
		transactions = append(transactions, tx)
	}
	return transactions, nil
}

func normalizeTransaction(raw RawTransaction) (domain.Transaction, error) {
	if raw.Hash == nil || *raw.Hash == "" {
		return domain.Transaction{}, fmt.Errorf("%w: hash is missing", domain.ErrDecode)
	}
	if raw.From == nil {
		return domain.Transaction{}, fmt.Errorf("%w: from is missing", domain.ErrDecode)
	}
	value, err := requireHexBig("value", raw.Value)
	if err != nil {
		return domain.Transaction{}, err
	}
	gas, err := requireHexUint("gas", raw.Gas)
	if err != nil {
		return domain.Transaction{}, err
	}

	var to *string
	if raw.To != nil {
		addr := strings.ToLower(*raw.To)
		to = &addr
	}
	return domain.Transaction{
		Hash:     strings.ToLower(*raw.Hash),
		From:     strings.ToLower(*raw.From),
		To:       to,
		ValueWei: value,
		Value:    scaleDown(value, weiPerAVAX),
		GasUsed:  gas,
	}, nil
}
