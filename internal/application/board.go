package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"avaxdash/internal/domain"
	"avaxdash/internal/streaming"
)

// Emitter receives every published snapshot in wire form.
type Emitter func(msg streaming.Message)

// Board is a view that keeps the latest published result of every query.
// Each result is swapped in whole, so readers never see a partial update.
type Board struct {
	validators   atomic.Pointer[Result[[]domain.Validator]]
	throughput   atomic.Pointer[Result[[]domain.ThroughputPoint]]
	transactions atomic.Pointer[Result[domain.BlockTransactions]]
	network      atomic.Pointer[Result[domain.NetworkStatus]]

	emit Emitter
}

// NewBoard returns an empty board. emit may be nil.
func NewBoard(emit Emitter) *Board {
	return &Board{emit: emit}
}

// Start subscribes the board to every query of qs.
func (b *Board) Start(ctx context.Context, qs QuerySet, observer PollObserver) (*Group, error) {
	group := &Group{}
	starts := []func() (*Subscription, error){
		func() (*Subscription, error) {
			return subscribeStored(ctx, qs.Validators, observer, &b.validators, b.emit)
		},
		func() (*Subscription, error) {
			return subscribeStored(ctx, qs.Throughput, observer, &b.throughput, b.emit)
		},
		func() (*Subscription, error) {
			return subscribeStored(ctx, qs.Transactions, observer, &b.transactions, b.emit)
		},
		func() (*Subscription, error) {
			return subscribeStored(ctx, qs.Network, observer, &b.network, b.emit)
		},
	}
	for _, start := range starts {
		sub, err := start()
		if err != nil {
			group.Stop()
			return nil, err
		}
		group.add(sub)
	}
	return group, nil
}

func (b *Board) Validators() (Result[[]domain.Validator], bool) {
	return load(&b.validators)
}

func (b *Board) Throughput() (Result[[]domain.ThroughputPoint], bool) {
	return load(&b.throughput)
}

func (b *Board) Transactions() (Result[domain.BlockTransactions], bool) {
	return load(&b.transactions)
}

func (b *Board) Network() (Result[domain.NetworkStatus], bool) {
	return load(&b.network)
}

func load[T any](ptr *atomic.Pointer[Result[T]]) (Result[T], bool) {
	current := ptr.Load()
	if current == nil {
		return Result[T]{}, false
	}
	return *current, true
}

func subscribeStored[T any](ctx context.Context, q Query[T], observer PollObserver, store *atomic.Pointer[Result[T]], emit Emitter) (*Subscription, error) {
	return Subscribe(ctx, q, func(result Result[T]) {
		store.Store(&result)
		if emit != nil {
			emitSnapshot(q.Name, result, emit)
		}
	}, observer)
}

// StartStream subscribes the named queries of qs and hands every result to
// emit in wire form. Unknown names are rejected.
func StartStream(ctx context.Context, qs QuerySet, names []string, observer PollObserver, emit Emitter) (*Group, error) {
	if emit == nil {
		return nil, errors.New("stream emitter must not be nil")
	}
	group := &Group{}
	for _, name := range names {
		var (
			sub *Subscription
			err error
		)
		switch name {
		case QueryValidators:
			sub, err = subscribeEmitted(ctx, qs.Validators, observer, emit)
		case QueryThroughput:
			sub, err = subscribeEmitted(ctx, qs.Throughput, observer, emit)
		case QueryTransactions:
			sub, err = subscribeEmitted(ctx, qs.Transactions, observer, emit)
		case QueryNetwork:
			sub, err = subscribeEmitted(ctx, qs.Network, observer, emit)
		default:
			err = fmt.Errorf("unknown query %q", name)
		}
		if err != nil {
			group.Stop()
			return nil, err
		}
		group.add(sub)
	}
	return group, nil
}

func subscribeEmitted[T any](ctx context.Context, q Query[T], observer PollObserver, emit Emitter) (*Subscription, error) {
	return Subscribe(ctx, q, func(result Result[T]) {
		emitSnapshot(q.Name, result, emit)
	}, observer)
}

func emitSnapshot[T any](name string, result Result[T], emit Emitter) {
	msg, err := SnapshotMessage(name, result)
	if err != nil {
		slog.Error("snapshot encode failed", "query", name, "err", err)
		return
	}
	emit(msg)
}

// SnapshotMessage converts a query result into its streaming form.
func SnapshotMessage[T any](name string, result Result[T]) (streaming.Message, error) {
	var (
		body   any = result.Data
		height uint64
	)
	switch data := any(result.Data).(type) {
	case []domain.ThroughputPoint:
		height, _ = SeriesHeight(data)
	case domain.BlockTransactions:
		// the wire payload stays the bare transaction list
		body, height = data.Transactions, data.Height
	case domain.NetworkStatus:
		height = data.Height
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return streaming.Message{}, err
	}
	msg := streaming.Message{
		Type:      streaming.MessageType(name),
		Height:    height,
		FetchedAt: result.FetchedAt,
		Payload:   payload,
	}
	if result.Err != nil {
		msg.Failed = true
		msg.Error = domain.FailureKind(result.Err)
	}
	return msg, nil
}

// Group stops a set of subscriptions together.
type Group struct {
	subs []*Subscription
}

func (g *Group) add(sub *Subscription) {
	g.subs = append(g.subs, sub)
}

func (g *Group) Names() []string {
	names := make([]string, 0, len(g.subs))
	for _, sub := range g.subs {
		names = append(names, sub.Name())
	}
	return names
}

func (g *Group) Stop() {
	for _, sub := range g.subs {
		sub.Stop()
	}
}

// Wait blocks until every polling goroutine has exited or ctx ends.
func (g *Group) Wait(ctx context.Context) error {
	for _, sub := range g.subs {
		select {
		case <-sub.Done():
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}
