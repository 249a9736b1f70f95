package application

import (
	"time"

	"avaxdash/internal/domain"
)

const (
	QueryValidators   = "validators"
	QueryThroughput   = "throughput"
	QueryTransactions = "transactions"
	QueryNetwork      = "network"
)

// QueryNames lists every query in display order.
var QueryNames = []string{QueryValidators, QueryThroughput, QueryTransactions, QueryNetwork}

type PollConfig struct {
	ValidatorsInterval   time.Duration
	ThroughputInterval   time.Duration
	TransactionsInterval time.Duration
	NetworkInterval      time.Duration
}

// QuerySet holds the dashboard queries; every view subscribes to its own copy.
type QuerySet struct {
	Validators   Query[[]domain.Validator]
	Throughput   Query[[]domain.ThroughputPoint]
	Transactions Query[domain.BlockTransactions]
	Network      Query[domain.NetworkStatus]
}

func (a *Aggregator) Queries(cfg PollConfig) QuerySet {
	return QuerySet{
		Validators: Query[[]domain.Validator]{
			Name:     QueryValidators,
			Interval: orDefault(cfg.ValidatorsInterval, 10*time.Second),
			Fetch:    a.Validators,
		},
		Throughput: Query[[]domain.ThroughputPoint]{
			Name:     QueryThroughput,
			Interval: orDefault(cfg.ThroughputInterval, 5*time.Second),
			Fetch:    a.ThroughputSeries,
			Height:   SeriesHeight,
		},
		Transactions: Query[domain.BlockTransactions]{
			Name:     QueryTransactions,
			Interval: orDefault(cfg.TransactionsInterval, 7*time.Second),
			Fetch:    a.HeadTransactions,
			Height:   TransactionsHeight,
		},
		Network: Query[domain.NetworkStatus]{
			Name:     QueryNetwork,
			Interval: orDefault(cfg.NetworkInterval, 6*time.Second),
			Fetch:    a.NetworkStatus,
			Height:   NetworkHeight,
		},
	}
}

// SeriesHeight is the height of the newest point; an empty series has none.
func SeriesHeight(points []domain.ThroughputPoint) (uint64, bool) {
	if len(points) == 0 {
		return 0, false
	}
	return points[len(points)-1].Height, true
}

func TransactionsHeight(block domain.BlockTransactions) (uint64, bool) {
	return block.Height, true
}

func NetworkHeight(status domain.NetworkStatus) (uint64, bool) {
	return status.Height, true
}

func orDefault(value, fallback time.Duration) time.Duration {
	if value <= 0 {
		return fallback
	}
	return value
}
