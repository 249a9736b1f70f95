package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"avaxdash/internal/config"
	"avaxdash/internal/infrastructure/logging"
	"avaxdash/internal/infrastructure/telemetry"
	"avaxdash/internal/streaming"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var (
	version   = "dev"
	commit    = "none"
	buildTime = "unknown"
)

// snapshot-tail follows the snapshot topics the dashboard publishes and logs
// one line per snapshot.
func main() {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		slog.Error("config error", "err", err)
		os.Exit(1)
	}
	if _, err := logging.Init(logging.Config{
		Level:   cfg.LogLevel,
		File:    cfg.LogFile,
		Service: "avaxdash-tail",
	}); err != nil {
		slog.Error("logger init error", "err", err)
	}
	if len(cfg.KafkaBrokers) == 0 {
		slog.Error("KAFKA_BROKERS is required for snapshot tailing")
		os.Exit(1)
	}

	shutdownTracing, err := telemetry.InitTracer(context.Background(), "avaxdash-tail", version, cfg.OtelEndpoint)
	if err != nil {
		slog.Warn("tracing init error", "err", err)
	} else {
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdownTracing(ctx); err != nil {
				slog.Warn("tracing shutdown error", "err", err)
			}
		}()
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	types := []streaming.MessageType{
		streaming.MessageTypeValidators,
		streaming.MessageTypeThroughput,
		streaming.MessageTypeTransactions,
		streaming.MessageTypeNetwork,
	}

	var wg sync.WaitGroup
	readers := make([]*kafka.Reader, 0, len(types))
	for _, t := range types {
		reader := kafka.NewReader(kafka.ReaderConfig{
			Brokers:  cfg.KafkaBrokers,
			GroupID:  cfg.KafkaGroupID,
			Topic:    cfg.KafkaTopicPrefix + "-" + string(t),
			MinBytes: 1,
			MaxBytes: 10e6,
		})
		readers = append(readers, reader)

		wg.Add(1)
		go func(r *kafka.Reader) {
			defer wg.Done()
			tail(ctx, r)
		}(reader)
	}

	slog.Info("snapshot tail started",
		"topics", len(types),
		"group", cfg.KafkaGroupID,
		"version", version,
		"commit", commit,
		"build_time", buildTime,
	)
	<-ctx.Done()
	for _, reader := range readers {
		_ = reader.Close()
	}
	wg.Wait()
}

func tail(ctx context.Context, reader *kafka.Reader) {
	tracer := otel.Tracer("avaxdash/tail")
	for {
		message, err := reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, io.EOF) {
				return
			}
			slog.Error("kafka fetch error", "topic", reader.Config().Topic, "err", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(500 * time.Millisecond):
			}
			continue
		}

		messageCtx := telemetry.ExtractKafkaHeaders(ctx, message.Headers)
		_, span := tracer.Start(messageCtx, "tail.process_snapshot", trace.WithSpanKind(trace.SpanKindConsumer))
		span.SetAttributes(
			attribute.String("messaging.source", message.Topic),
			attribute.Int64("messaging.offset", message.Offset),
		)

		decoded, err := streaming.Decode(message.Value)
		if err != nil {
			slog.Warn("snapshot decode error", "topic", message.Topic, "offset", message.Offset, "err", err)
		} else {
			slog.Info("snapshot",
				"type", decoded.Type,
				"height", decoded.Height,
				"fetched_at", decoded.FetchedAt,
				"failed", decoded.Failed,
				"error", decoded.Error,
				"bytes", len(decoded.Payload),
				"lag", time.Since(message.Time).Round(time.Millisecond),
			)
		}
		span.End()

		if err := reader.CommitMessages(ctx, message); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("kafka commit error", "topic", message.Topic, "err", err)
		}
	}
}
