package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"avaxdash/internal/domain"
	"avaxdash/internal/streaming"
)

type messageSink struct {
	mu       sync.Mutex
	messages []streaming.Message
}

func (s *messageSink) emit(msg streaming.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, msg)
}

func (s *messageSink) types() map[streaming.MessageType]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := map[streaming.MessageType]int{}
	for _, msg := range s.messages {
		seen[msg.Type]++
	}
	return seen
}

func testQuerySet(t *testing.T) QuerySet {
	t.Helper()
	chain := chainOf(101, map[uint64]int{100: 16, 101: 23})
	chain.gasPrice = 25
	validators := &fakeValidators{validators: []domain.Validator{{Name: "Validator A", Stake: 50000}}}
	agg, err := NewAggregator(chain, validators, nil, AggregatorConfig{ThroughputWindow: 2})
	if err != nil {
		t.Fatalf("new aggregator: %v", err)
	}
	return agg.Queries(PollConfig{
		ValidatorsInterval:   time.Hour,
		ThroughputInterval:   time.Hour,
		TransactionsInterval: time.Hour,
		NetworkInterval:      time.Hour,
	})
}

func waitUntil(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func TestBoardStoresEveryQuery(t *testing.T) {
	sink := &messageSink{}
	board := NewBoard(sink.emit)
	group, err := board.Start(context.Background(), testQuerySet(t), nil)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer group.Stop()

	waitUntil(t, func() bool {
		_, v := board.Validators()
		_, th := board.Throughput()
		_, tx := board.Transactions()
		_, n := board.Network()
		return v && th && tx && n
	})

	throughput, _ := board.Throughput()
	if len(throughput.Data) != 2 || throughput.Data[1].TransactionCount != 23 {
		t.Errorf("unexpected throughput %+v", throughput.Data)
	}
	transactions, _ := board.Transactions()
	if len(transactions.Data.Transactions) != 23 || transactions.Data.Height != 101 {
		t.Errorf("expected 23 transactions at 101, got %d at %d", len(transactions.Data.Transactions), transactions.Data.Height)
	}
	network, _ := board.Network()
	if network.Data.Height != 101 || network.Data.GasPriceGwei != 25 {
		t.Errorf("unexpected network %+v", network.Data)
	}
	waitUntil(t, func() bool { return len(sink.types()) == 4 })

	group.Stop()
	if err := group.Wait(context.Background()); err != nil {
		t.Fatalf("Wait: %v", err)
	}
}

func TestBoardEmptyBeforeFirstTick(t *testing.T) {
	board := NewBoard(nil)
	if _, ok := board.Validators(); ok {
		t.Fatal("expected no validators before start")
	}
}

func TestStartStreamSubscribesNamedQueries(t *testing.T) {
	sink := &messageSink{}
	group, err := StartStream(context.Background(), testQuerySet(t), []string{QueryNetwork, QueryThroughput}, nil, sink.emit)
	if err != nil {
		t.Fatalf("StartStream: %v", err)
	}
	defer group.Stop()

	names := group.Names()
	if len(names) != 2 || names[0] != QueryNetwork || names[1] != QueryThroughput {
		t.Fatalf("unexpected names %v", names)
	}
	waitUntil(t, func() bool { return len(sink.types()) == 2 })
	if seen := sink.types(); seen[streaming.MessageTypeValidators] != 0 {
		t.Errorf("unexpected validators message in %v", seen)
	}
}

func TestStartStreamRejectsUnknownQuery(t *testing.T) {
	sink := &messageSink{}
	if _, err := StartStream(context.Background(), testQuerySet(t), []string{QueryNetwork, "blocks"}, nil, sink.emit); err == nil {
		t.Fatal("expected error for unknown query")
	}
	if _, err := StartStream(context.Background(), testQuerySet(t), []string{QueryNetwork}, nil, nil); err == nil {
		t.Fatal("expected error for nil emitter")
	}
}

func TestIndependentViewsStopSeparately(t *testing.T) {
	qs := testQuerySet(t)
	qs.Network.Interval = 5 * time.Millisecond
	first, second := &messageSink{}, &messageSink{}

	g1, err := StartStream(context.Background(), qs, []string{QueryNetwork}, nil, first.emit)
	if err != nil {
		t.Fatalf("StartStream: %v", err)
	}
	g2, err := StartStream(context.Background(), qs, []string{QueryNetwork}, nil, second.emit)
	if err != nil {
		t.Fatalf("StartStream: %v", err)
	}
	defer g2.Stop()

	g1.Stop()
	if err := g1.Wait(context.Background()); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	stopped := first.types()[streaming.MessageTypeNetwork]
	before := second.types()[streaming.MessageTypeNetwork]
	waitUntil(t, func() bool { return second.types()[streaming.MessageTypeNetwork] > before+2 })
	if got := first.types()[streaming.MessageTypeNetwork]; got != stopped {
		t.Fatalf("stopped view kept receiving: %d -> %d", stopped, got)
	}
}

func TestSnapshotMessage(t *testing.T) {
	fetched := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	points := []domain.ThroughputPoint{{Height: 100, TransactionCount: 16}, {Height: 101, TransactionCount: 23}}

	msg, err := SnapshotMessage(QueryThroughput, Result[[]domain.ThroughputPoint]{Data: points, FetchedAt: fetched})
	if err != nil {
		t.Fatalf("SnapshotMessage: %v", err)
	}
	if msg.Type != streaming.MessageTypeThroughput || msg.Height != 101 || msg.Failed {
		t.Errorf("unexpected message %+v", msg)
	}
	var decoded []domain.ThroughputPoint
	if err := json.Unmarshal(msg.Payload, &decoded); err != nil {
		t.Fatalf("payload: %v", err)
	}
	if len(decoded) != 2 || decoded[0].TransactionCount != 16 {
		t.Errorf("unexpected payload %s", msg.Payload)
	}

	failed, err := SnapshotMessage(QueryNetwork, Result[domain.NetworkStatus]{
		Data: domain.NetworkStatus{Height: 9},
		Err:  fmt.Errorf("gas price: %w", domain.ErrTransport),
	})
	if err != nil {
		t.Fatalf("SnapshotMessage: %v", err)
	}
	if !failed.Failed || failed.Error != "transport" || failed.Height != 9 {
		t.Errorf("unexpected failed message %+v", failed)
	}

	block, err := SnapshotMessage(QueryTransactions, Result[domain.BlockTransactions]{
		Data: domain.BlockTransactions{Height: 42, Transactions: []domain.Transaction{{Hash: "0xa"}}},
	})
	if err != nil {
		t.Fatalf("SnapshotMessage: %v", err)
	}
	var txs []domain.Transaction
	if err := json.Unmarshal(block.Payload, &txs); err != nil {
		t.Fatalf("transactions payload: %v", err)
	}
	if block.Height != 42 || len(txs) != 1 || txs[0].Hash != "0xa" {
		t.Errorf("unexpected transactions message %+v", block)
	}
}

func TestGroupWaitHonoursContext(t *testing.T) {
	started := make(chan struct{})
	block := make(chan struct{})
	defer close(block)
	sub, err := Subscribe(context.Background(), Query[int]{
		Name:     "stuck",
		Interval: time.Hour,
		Fetch: func(context.Context) (int, error) {
			close(started)
			<-block
			return 0, errors.New("released")
		},
	}, func(Result[int]) {}, nil)
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	group := &Group{}
	group.add(sub)

	// stop only once the fetch is in flight
	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("fetch did not start")
	}
	group.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := group.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}
