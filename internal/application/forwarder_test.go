package application

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"avaxdash/internal/streaming"
)

type recordingSink struct {
	name string
	err  error

	mu   sync.Mutex
	sent []streaming.Message
}

func (s *recordingSink) Name() string { return s.name }

func (s *recordingSink) PublishSnapshot(ctx context.Context, msg streaming.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, msg)
	return s.err
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}

type sinkResults struct {
	mu     sync.Mutex
	errors map[string]int
}

func (r *sinkResults) OnSinkResult(sink string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.errors == nil {
		r.errors = map[string]int{}
	}
	if err != nil {
		r.errors[sink]++
	}
}

func (r *sinkResults) failures(sink string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.errors[sink]
}

func TestForwarderFansOut(t *testing.T) {
	good := &recordingSink{name: "kafka"}
	bad := &recordingSink{name: "redis", err: errors.New("down")}
	results := &sinkResults{}
	f := NewForwarder([]SnapshotSink{good, bad}, results, 8)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		f.Run(ctx)
		close(done)
	}()

	f.Emit(streaming.Message{Type: streaming.MessageTypeNetwork})
	f.Emit(streaming.Message{Type: streaming.MessageTypeThroughput})
	waitUntil(t, func() bool { return good.count() == 2 && bad.count() == 2 })
	if results.failures("redis") != 2 || results.failures("kafka") != 0 {
		t.Errorf("unexpected sink failures %v", results.errors)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("forwarder did not stop")
	}
}

func TestForwarderDropsWhenFull(t *testing.T) {
	sink := &recordingSink{name: "kafka"}
	f := NewForwarder([]SnapshotSink{sink}, nil, 1)

	f.Emit(streaming.Message{Type: streaming.MessageTypeNetwork})
	f.Emit(streaming.Message{Type: streaming.MessageTypeNetwork})
	if len(f.queue) != 1 {
		t.Fatalf("expected one queued message, got %d", len(f.queue))
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	f.Run(ctx)
	if sink.count() != 1 {
		t.Fatalf("expected queued message to be drained, got %d", sink.count())
	}
}

func TestForwarderWithoutSinks(t *testing.T) {
	f := NewForwarder(nil, nil, 1)
	if f.Enabled() {
		t.Fatal("expected forwarder without sinks to be disabled")
	}
	f.Emit(streaming.Message{Type: streaming.MessageTypeNetwork})
	if len(f.queue) != 0 {
		t.Fatal("expected nothing queued")
	}
}
