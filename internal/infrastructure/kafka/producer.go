package kafka

import (
	"context"
	"errors"
	"strings"
	"time"

	"avaxdash/internal/infrastructure/telemetry"
	"avaxdash/internal/streaming"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer publishes dashboard snapshots, one topic per query.
type Producer struct {
	writer messageWriter
	prefix string
}

type ProducerConfig struct {
	Brokers     []string
	TopicPrefix string
}

func NewProducer(cfg ProducerConfig) (*Producer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka brokers are required")
	}
	if strings.TrimSpace(cfg.TopicPrefix) == "" {
		cfg.TopicPrefix = "avaxdash"
	}
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Balancer:               &kafka.Hash{},
		BatchTimeout:           100 * time.Millisecond,
		AllowAutoTopicCreation: true,
	}
	return &Producer{writer: writer, prefix: cfg.TopicPrefix}, nil
}

func (p *Producer) Name() string {
	return "kafka"
}

func (p *Producer) Close() error {
	return p.writer.Close()
}

// PublishSnapshot writes msg keyed by its query so snapshots of one query stay ordered.
func (p *Producer) PublishSnapshot(ctx context.Context, msg streaming.Message) error {
	ctx, span := otel.Tracer("avaxdash/kafka").Start(ctx, "kafka.publish_snapshot", trace.WithSpanKind(trace.SpanKindProducer))
	defer span.End()

	topic := p.TopicFor(msg.Type)
	span.SetAttributes(
		attribute.String("messaging.destination", topic),
		attribute.String("snapshot.type", string(msg.Type)),
		attribute.Int64("block.number", int64(msg.Height)),
		attribute.Bool("snapshot.failed", msg.Failed),
	)

	payload, err := streaming.Encode(msg)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	err = p.writer.WriteMessages(ctx, kafka.Message{
		Topic:   topic,
		Key:     []byte(msg.Type),
		Value:   payload,
		Headers: telemetry.KafkaHeaders(ctx),
		Time:    msg.FetchedAt,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (p *Producer) TopicFor(t streaming.MessageType) string {
	return p.prefix + "-" + string(t)
}
