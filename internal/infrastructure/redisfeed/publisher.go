package redisfeed

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"avaxdash/internal/streaming"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const defaultMaxLen = 1000

type streamClient interface {
	XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd
	XLen(ctx context.Context, stream string) *redis.IntCmd
	Close() error
}

type Config struct {
	Addr   string
	Prefix string
	MaxLen int64
}

// Publisher appends dashboard snapshots to capped Redis streams, one stream
// per query.
type Publisher struct {
	client streamClient
	prefix string
	maxLen int64
}

func NewPublisher(ctx context.Context, cfg Config) (*Publisher, error) {
	if strings.TrimSpace(cfg.Addr) == "" {
		return nil, errors.New("redis addr is required")
	}
	client := redis.NewClient(&redis.Options{Addr: cfg.Addr})
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return newPublisher(client, cfg), nil
}

func newPublisher(client streamClient, cfg Config) *Publisher {
	if strings.TrimSpace(cfg.Prefix) == "" {
		cfg.Prefix = "avaxdash"
	}
	if cfg.MaxLen <= 0 {
		cfg.MaxLen = defaultMaxLen
	}
	return &Publisher{client: client, prefix: cfg.Prefix, maxLen: cfg.MaxLen}
}

func (p *Publisher) Name() string {
	return "redis"
}

func (p *Publisher) PublishSnapshot(ctx context.Context, msg streaming.Message) error {
	stream := p.StreamFor(msg.Type)
	ctx, span := otel.Tracer("avaxdash/redisfeed").Start(ctx, "redis.publish_snapshot", trace.WithSpanKind(trace.SpanKindProducer))
	defer span.End()
	span.SetAttributes(
		attribute.String("messaging.destination", stream),
		attribute.String("snapshot.type", string(msg.Type)),
	)

	payload, err := streaming.Encode(msg)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	start := time.Now()
	id, err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		MaxLen: p.maxLen,
		Approx: true,
		Values: map[string]any{
			"type":    string(msg.Type),
			"payload": payload,
		},
	}).Result()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	slog.Debug("redis publish ok",
		"stream", stream,
		"id", id,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

// StreamLength returns the number of entries kept for one query.
func (p *Publisher) StreamLength(ctx context.Context, t streaming.MessageType) (int64, error) {
	return p.client.XLen(ctx, p.StreamFor(t)).Result()
}

func (p *Publisher) StreamFor(t streaming.MessageType) string {
	return p.prefix + ":" + string(t)
}

func (p *Publisher) Close() error {
	return p.client.Close()
}
