package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"avaxdash/internal/domain"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// Query is one dashboard data source refreshed on its own fixed period.
type Query[T any] struct {
	Name     string
	Interval time.Duration
	// Timeout bounds a single fetch. Zero means Interval.
	Timeout time.Duration
	Fetch   func(ctx context.Context) (T, error)
	// Height reports the chain head a result was taken at. When set, a
	// result behind the last published head is treated as a failed tick.
	Height func(data T) (uint64, bool)
}

// Result is what a subscriber sees after every tick. When the latest fetch
// failed, Err is set and Data still holds the last successful collection.
type Result[T any] struct {
	Data      T
	FetchedAt time.Time
	Err       error
}

func (r Result[T]) Failed() bool {
	return r.Err != nil
}

type PollObserver interface {
	OnTick(query string, duration time.Duration, err error)
}

// Subscription is the handle of one running query. Stopping it is the only
// way to halt the repetition.
type Subscription struct {
	name    string
	mu      sync.Mutex
	stopped bool
	stop    chan struct{}
	done    chan struct{}
}

// Subscribe fetches q immediately and then once per q.Interval, handing every
// result to publish until the subscription is stopped or ctx ends. Ticks of
// one subscription never overlap. publish must not call Stop.
func Subscribe[T any](ctx context.Context, q Query[T], publish func(Result[T]), observer PollObserver) (*Subscription, error) {
	if q.Fetch == nil || publish == nil {
		return nil, errors.New("query fetch and publish must not be nil")
	}
	if q.Interval <= 0 {
		return nil, errors.New("query interval must be positive")
	}
	if q.Timeout <= 0 {
		q.Timeout = q.Interval
	}

	s := &Subscription{
		name: q.Name,
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
	p := &poll[T]{query: q, publish: publish, observer: observer, sub: s}
	go p.run(ctx)
	return s, nil
}

func (s *Subscription) Name() string {
	return s.name
}

// Stop cancels the repetition. Once Stop returns no further publish happens;
// a fetch already in flight completes and its result is dropped.
func (s *Subscription) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	s.stopped = true
	close(s.stop)
}

// Done is closed when the polling goroutine has exited.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

func (s *Subscription) deliver(fn func()) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return false
	}
	fn()
	return true
}

type poll[T any] struct {
	query    Query[T]
	publish  func(Result[T])
	observer PollObserver
	sub      *Subscription

	last    Result[T]
	head    uint64
	hasHead bool
}

func (p *poll[T]) run(ctx context.Context) {
	defer close(p.sub.done)

	p.tick(ctx)

	ticker := time.NewTicker(p.query.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-p.sub.stop:
			return
		case <-ticker.C:
			p.tick(ctx)
		}
	}
}

func (p *poll[T]) tick(ctx context.Context) {
	select {
	case <-p.sub.stop:
		return
	default:
	}

	tickCtx, cancel := context.WithTimeout(ctx, p.query.Timeout)
	defer cancel()
	tickCtx, span := otel.Tracer("avaxdash/poller").Start(tickCtx, "poller.tick")
	span.SetAttributes(attribute.String("query.name", p.query.Name))
	defer span.End()

	start := time.Now()
	data, err := p.query.Fetch(tickCtx)
	elapsed := time.Since(start)

	if ctx.Err() != nil {
		return
	}
	if err == nil {
		err = p.checkHead(data)
	}
	if p.observer != nil {
		p.observer.OnTick(p.query.Name, elapsed, err)
	}

	result := Result[T]{Data: data, FetchedAt: time.Now()}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		slog.Warn("poll tick failed",
			"query", p.query.Name,
			"kind", domain.FailureKind(err),
			"duration", elapsed,
			"err", err,
		)
		result = p.last
		result.Err = err
	} else {
		p.last = result
	}

	if !p.sub.deliver(func() { p.publish(result) }) {
		slog.Debug("dropped result of stopped subscription", "query", p.query.Name)
	}
}

// checkHead keeps published heads non-decreasing across successful ticks.
func (p *poll[T]) checkHead(data T) error {
	if p.query.Height == nil {
		return nil
	}
	height, ok := p.query.Height(data)
	if !ok {
		return nil
	}
	if p.hasHead && height < p.head {
		return fmt.Errorf("%w: node returned head %d after %d", domain.ErrStaleHead, height, p.head)
	}
	p.head = height
	p.hasHead = true
	return nil
}
