package domain

import "math/big"

// Transaction represents a chain transaction normalized for display.
//
// To is nil for contract creation. ValueWei holds the exact amount in the
// smallest unit; Value is the same amount in native-token units and carries at
// most 1e-15 relative error.
type Transaction struct {
	Hash     string   `json:"hash"`
	From     string   `json:"from"`
	To       *string  `json:"to"`
	ValueWei *big.Int `json:"valueWei"`
	Value    float64  `json:"value"`
	GasUsed  uint64   `json:"gasUsed"`
}

// Recipient returns the destination address, or "N/A" for contract creation.
func (t Transaction) Recipient() string {
	if t.To == nil {
		return "N/A"
	}
	return *t.To
}
