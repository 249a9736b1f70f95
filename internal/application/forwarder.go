package application

import (
	"context"
	"log/slog"
	"time"

	"avaxdash/internal/streaming"
)

// SnapshotSink ships published snapshots outside the process.
type SnapshotSink interface {
	Name() string
	PublishSnapshot(ctx context.Context, msg streaming.Message) error
}

type SinkObserver interface {
	OnSinkResult(sink string, err error)
}

// Forwarder decouples polling from sink latency: Emit never blocks and drops
// the snapshot when the queue is full.
type Forwarder struct {
	sinks    []SnapshotSink
	observer SinkObserver
	queue    chan streaming.Message
	timeout  time.Duration
}

func NewForwarder(sinks []SnapshotSink, observer SinkObserver, capacity int) *Forwarder {
	if capacity <= 0 {
		capacity = 64
	}
	return &Forwarder{
		sinks:    sinks,
		observer: observer,
		queue:    make(chan streaming.Message, capacity),
		timeout:  5 * time.Second,
	}
}

func (f *Forwarder) Enabled() bool {
	return len(f.sinks) > 0
}

func (f *Forwarder) Emit(msg streaming.Message) {
	if !f.Enabled() {
		return
	}
	select {
	case f.queue <- msg:
	default:
		slog.Warn("snapshot queue full, dropping", "type", msg.Type)
	}
}

// Run delivers queued snapshots until ctx ends, then drains what is left.
func (f *Forwarder) Run(ctx context.Context) {
	for {
		select {
		case msg := <-f.queue:
			f.deliver(ctx, msg)
		case <-ctx.Done():
			f.drain()
			return
		}
	}
}

func (f *Forwarder) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), f.timeout)
	defer cancel()
	for {
		select {
		case msg := <-f.queue:
			f.deliver(ctx, msg)
		default:
			return
		}
	}
}

func (f *Forwarder) deliver(ctx context.Context, msg streaming.Message) {
	for _, sink := range f.sinks {
		sendCtx, cancel := context.WithTimeout(ctx, f.timeout)
		err := sink.PublishSnapshot(sendCtx, msg)
		cancel()
		if err != nil {
			slog.Warn("snapshot publish failed", "sink", sink.Name(), "type", msg.Type, "err", err)
		}
		if f.observer != nil {
			f.observer.OnSinkResult(sink.Name(), err)
		}
	}
}
