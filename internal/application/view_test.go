package application

import (
	"math/big"
	"testing"

	"avaxdash/internal/domain"
)

func txOf(hash string, wei int64, value float64, gas uint64) domain.Transaction {
	return domain.Transaction{Hash: hash, ValueWei: big.NewInt(wei), Value: value, GasUsed: gas}
}

func TestFilterTransactionsByValue(t *testing.T) {
	txs := []domain.Transaction{
		txOf("a", 1, 1, 50),
		txOf("b", 3, 3, 10),
		txOf("c", 2, 2, 30),
		txOf("d", 0, 0, 90),
	}
	got := FilterTransactions(txs, TransactionView{SortBy: SortByValue, MinValue: 1})
	want := []string{"b", "c", "a"}
	if len(got) != len(want) {
		t.Fatalf("expected %d transactions, got %d", len(want), len(got))
	}
	for i, hash := range want {
		if got[i].Hash != hash {
			t.Errorf("position %d: expected %s, got %s", i, hash, got[i].Hash)
		}
	}
	if txs[0].Hash != "a" || txs[1].Hash != "b" {
		t.Error("expected input order to be untouched")
	}
}

func TestFilterTransactionsByGasWithLimit(t *testing.T) {
	txs := []domain.Transaction{
		txOf("a", 1, 1, 50),
		txOf("b", 3, 3, 10),
		txOf("c", 2, 2, 30),
		txOf("d", 0, 0, 90),
	}
	got := FilterTransactions(txs, TransactionView{SortBy: SortByGasUsed, Limit: 2})
	if len(got) != 2 || got[0].Hash != "d" || got[1].Hash != "a" {
		t.Fatalf("unexpected result %+v", got)
	}
}

func TestFilterTransactionsComparesExactWei(t *testing.T) {
	// both round to the same float
	small, _ := new(big.Int).SetString("1000000000000000001", 10)
	large, _ := new(big.Int).SetString("1000000000000000002", 10)
	txs := []domain.Transaction{
		{Hash: "small", ValueWei: small, Value: 1},
		{Hash: "large", ValueWei: large, Value: 1},
	}
	got := FilterTransactions(txs, TransactionView{})
	if got[0].Hash != "large" {
		t.Fatalf("expected exact comparison, got %s first", got[0].Hash)
	}
}

func TestFilterTransactionsEmpty(t *testing.T) {
	if got := FilterTransactions(nil, TransactionView{}); len(got) != 0 {
		t.Fatalf("expected empty result, got %v", got)
	}
}

func TestFilterValidators(t *testing.T) {
	high, low := 99.9, 97.5
	validators := []domain.Validator{
		{Name: "Validator B", Stake: 40000},
		{Name: "Validator A", Stake: 50000, Uptime: &high},
		{Name: "Other", Stake: 60000, Uptime: &low},
	}

	cases := []struct {
		name string
		view ValidatorView
		want []string
	}{
		{"default stake", ValidatorView{}, []string{"Other", "Validator A", "Validator B"}},
		{"search ignores case", ValidatorView{Search: "VALID"}, []string{"Validator A", "Validator B"}},
		{"uptime missing last", ValidatorView{SortBy: SortByUptime}, []string{"Validator A", "Other", "Validator B"}},
		{"name ascending", ValidatorView{SortBy: SortByName}, []string{"Other", "Validator A", "Validator B"}},
		{"no match", ValidatorView{Search: "zzz"}, nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := FilterValidators(validators, tc.view)
			if len(got) != len(tc.want) {
				t.Fatalf("expected %v, got %+v", tc.want, got)
			}
			for i, name := range tc.want {
				if got[i].Name != name {
					t.Errorf("position %d: expected %s, got %s", i, name, got[i].Name)
				}
			}
		})
	}
}

func TestParseSorts(t *testing.T) {
	if s, err := ParseTransactionSort(""); err != nil || s != SortByValue {
		t.Errorf("expected default value sort, got %q %v", s, err)
	}
	if s, err := ParseTransactionSort("gasUsed"); err != nil || s != SortByGasUsed {
		t.Errorf("expected gasUsed sort, got %q %v", s, err)
	}
	if _, err := ParseTransactionSort("fee"); err == nil {
		t.Error("expected error for unknown transaction sort")
	}
	if s, err := ParseValidatorSort("uptime"); err != nil || s != SortByUptime {
		t.Errorf("expected uptime sort, got %q %v", s, err)
	}
	if _, err := ParseValidatorSort("age"); err == nil {
		t.Error("expected error for unknown validator sort")
	}
}
