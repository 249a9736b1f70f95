package application

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"avaxdash/internal/domain"
)

type TransactionSort string

const (
	SortByValue   TransactionSort = "value"
	SortByGasUsed TransactionSort = "gasUsed"
)

type TransactionView struct {
	SortBy   TransactionSort
	MinValue float64
	Limit    int
}

type ValidatorSort string

const (
	SortByStake  ValidatorSort = "stake"
	SortByUptime ValidatorSort = "uptime"
	SortByName   ValidatorSort = "name"
)

type ValidatorView struct {
	Search string
	SortBy ValidatorSort
}

func ParseTransactionSort(raw string) (TransactionSort, error) {
	switch TransactionSort(raw) {
	case "", SortByValue:
		return SortByValue, nil
	case SortByGasUsed:
		return SortByGasUsed, nil
	}
	return "", fmt.Errorf("invalid sort %q", raw)
}

func ParseValidatorSort(raw string) (ValidatorSort, error) {
	switch ValidatorSort(raw) {
	case "", SortByStake:
		return SortByStake, nil
	case SortByUptime, SortByName:
		return ValidatorSort(raw), nil
	}
	return "", fmt.Errorf("invalid sort %q", raw)
}

// FilterTransactions keeps transactions worth at least MinValue and orders
// them by the sort key, largest first. The input is not modified.
func FilterTransactions(txs []domain.Transaction, view TransactionView) []domain.Transaction {
	filtered := make([]domain.Transaction, 0, len(txs))
	for _, tx := range txs {
		if tx.Value >= view.MinValue {
			filtered = append(filtered, tx)
		}
	}

	slices.SortStableFunc(filtered, func(a, b domain.Transaction) int {
		if view.SortBy == SortByGasUsed {
			return cmp.Compare(b.GasUsed, a.GasUsed)
		}
		if a.ValueWei != nil && b.ValueWei != nil {
			return b.ValueWei.Cmp(a.ValueWei)
		}
		return cmp.Compare(b.Value, a.Value)
	})

	if view.Limit > 0 && len(filtered) > view.Limit {
		filtered = filtered[:view.Limit]
	}
	return filtered
}

// FilterValidators keeps validators whose name contains Search, ignoring
// case. Stake and uptime sort descending, name ascending.
func FilterValidators(validators []domain.Validator, view ValidatorView) []domain.Validator {
	needle := strings.ToLower(strings.TrimSpace(view.Search))
	filtered := make([]domain.Validator, 0, len(validators))
	for _, v := range validators {
		if needle == "" || strings.Contains(strings.ToLower(v.Name), needle) {
			filtered = append(filtered, v)
		}
	}

	slices.SortStableFunc(filtered, func(a, b domain.Validator) int {
		switch view.SortBy {
		case SortByName:
			return strings.Compare(a.Name, b.Name)
		case SortByUptime:
			return cmp.Compare(uptimeOf(b), uptimeOf(a))
		default:
			return cmp.Compare(b.Stake, a.Stake)
		}
	})
	return filtered
}

// uptimeOf ranks validators without a reported uptime last.
func uptimeOf(v domain.Validator) float64 {
	if v.Uptime == nil {
		return -1
	}
	return *v.Uptime
}
