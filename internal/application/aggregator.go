package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"avaxdash/internal/domain"

	"golang.org/x/sync/errgroup"
)

type ChainSource interface {
	LatestBlockNumber(ctx context.Context) (uint64, error)
	BlockByNumber(ctx context.Context, height uint64) (domain.Block, bool, error)
	GasPrice(ctx context.Context) (float64, error)
}

type ValidatorSource interface {
	ListValidators(ctx context.Context) ([]domain.Validator, error)
}

type AggregatorObserver interface {
	OnLatestBlock(height uint64)
}

type AggregatorConfig struct {
	ThroughputWindow  int
	ThroughputWorkers int
}

// Aggregator runs the multi-call workflows behind every dashboard query. It
// keeps no state between calls.
type Aggregator struct {
	chain      ChainSource
	validators ValidatorSource
	observer   AggregatorObserver
	cfg        AggregatorConfig
}

var ErrBlockUnavailable = errors.New("block unavailable")

func NewAggregator(chain ChainSource, validators ValidatorSource, observer AggregatorObserver, cfg AggregatorConfig) (*Aggregator, error) {
	if chain == nil || validators == nil {
		return nil, errors.New("aggregator dependencies must not be nil")
	}
	if cfg.ThroughputWindow <= 0 {
		cfg.ThroughputWindow = 10
	}
	if cfg.ThroughputWorkers <= 0 || cfg.ThroughputWorkers > cfg.ThroughputWindow {
		cfg.ThroughputWorkers = cfg.ThroughputWindow
	}
	return &Aggregator{chain: chain, validators: validators, observer: observer, cfg: cfg}, nil
}

func (a *Aggregator) latest(ctx context.Context) (uint64, error) {
	height, err := a.chain.LatestBlockNumber(ctx)
	if err != nil {
		return 0, fmt.Errorf("latest block number: %w", err)
	}
	if a.observer != nil {
		a.observer.OnLatestBlock(height)
	}
	return height, nil
}

// LatestTransactions returns every transaction of the chain head. Either call
// failing fails the whole workflow.
func (a *Aggregator) LatestTransactions(ctx context.Context) ([]domain.Transaction, error) {
	block, err := a.HeadTransactions(ctx)
	if err != nil {
		return nil, err
	}
	return block.Transactions, nil
}

// HeadTransactions is LatestTransactions tagged with the height it was read at.
func (a *Aggregator) HeadTransactions(ctx context.Context) (domain.BlockTransactions, error) {
	height, err := a.latest(ctx)
	if err != nil {
		return domain.BlockTransactions{}, err
	}
	block, ok, err := a.chain.BlockByNumber(ctx, height)
	if err != nil {
		return domain.BlockTransactions{}, fmt.Errorf("block %d: %w", height, err)
	}
	if !ok {
		return domain.BlockTransactions{}, fmt.Errorf("block %d: %w", height, ErrBlockUnavailable)
	}
	return domain.BlockTransactions{Height: height, Transactions: block.Transactions}, nil
}

// ThroughputSeries fetches the configured window of blocks ending at the chain
// head concurrently and returns one point per block that could be fetched,
// oldest first. Failed or missing heights are left out of the series; the
// call only fails when no block at all could be fetched.
func (a *Aggregator) ThroughputSeries(ctx context.Context) ([]domain.ThroughputPoint, error) {
	head, err := a.latest(ctx)
	if err != nil {
		return nil, err
	}

	window := a.cfg.ThroughputWindow
	if head < uint64(window-1) {
		window = int(head) + 1
	}

	// slot i holds height head-i
	points := make([]*domain.ThroughputPoint, window)
	errs := make([]error, window)

	var g errgroup.Group
	g.SetLimit(a.cfg.ThroughputWorkers)
	for i := 0; i < window; i++ {
		height := head - uint64(i)
		g.Go(func() error {
			block, ok, err := a.chain.BlockByNumber(ctx, height)
			switch {
			case err != nil:
				errs[i] = fmt.Errorf("block %d: %w", height, err)
			case !ok:
				errs[i] = fmt.Errorf("block %d: %w", height, ErrBlockUnavailable)
			default:
				points[i] = &domain.ThroughputPoint{
					Height:           block.Number,
					Timestamp:        block.Timestamp,
					TransactionCount: block.TransactionCount(),
				}
			}
			return nil
		})
	}
	_ = g.Wait()

	series := make([]domain.ThroughputPoint, 0, window)
	for i := window - 1; i >= 0; i-- {
		if points[i] != nil {
			series = append(series, *points[i])
		}
	}
	if len(series) == 0 {
		return nil, fmt.Errorf("throughput window of %d blocks: %w", window, errors.Join(errs...))
	}
	if skipped := window - len(series); skipped > 0 {
		slog.Debug("throughput series is partial",
			"head", head,
			"requested", window,
			"skipped", skipped,
			"err", errors.Join(errs...),
		)
	}
	return series, nil
}

func (a *Aggregator) Validators(ctx context.Context) ([]domain.Validator, error) {
	validators, err := a.validators.ListValidators(ctx)
	if err != nil {
		return nil, fmt.Errorf("list validators: %w", err)
	}
	return slices.Clone(validators), nil
}

// NetworkStatus reads the chain head and the gas price concurrently; both must succeed.
func (a *Aggregator) NetworkStatus(ctx context.Context) (domain.NetworkStatus, error) {
	var status domain.NetworkStatus
	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		height, err := a.latest(gCtx)
		status.Height = height
		return err
	})
	g.Go(func() error {
		price, err := a.chain.GasPrice(gCtx)
		if err != nil {
			return fmt.Errorf("gas price: %w", err)
		}
		status.GasPriceGwei = price
		return nil
	})
	if err := g.Wait(); err != nil {
		return domain.NetworkStatus{}, err
	}
	return status, nil
}
