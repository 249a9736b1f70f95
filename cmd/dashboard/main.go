package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"avaxdash/internal/application"
	"avaxdash/internal/config"
	"avaxdash/internal/infrastructure/ethrpc"
	"avaxdash/internal/infrastructure/kafka"
	"avaxdash/internal/infrastructure/logging"
	"avaxdash/internal/infrastructure/redisfeed"
	"avaxdash/internal/infrastructure/telemetry"
	"avaxdash/internal/infrastructure/validators"
	"avaxdash/internal/interfaces/httpapi"
)

var (
	version   = "dev"
	commit    = "none"
	buildTime = "unknown"
)

func main() {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		slog.Error("config error", "err", err)
		os.Exit(1)
	}

	logFile := cfg.LogFile
	if logFile == "" {
		logFile = "logs/dashboard.log"
	}
	rotating, err := logging.Init(logging.Config{
		Level:      cfg.LogLevel,
		File:       logFile,
		MaxSizeMB:  cfg.LogMaxSizeMB,
		MaxBackups: cfg.LogMaxBackups,
		Service:    "avaxdash",
	})
	if err != nil {
		slog.Error("logger init error", "err", err)
	}
	if rotating != nil {
		defer rotating.Close()
	}

	shutdownTracing, err := telemetry.InitTracer(context.Background(), "avaxdash", version, cfg.OtelEndpoint)
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

	rpcClient, err := ethrpc.NewClient(ethrpc.Config{
		URL:     cfg.RPCURL,
		Timeout: cfg.RPCTimeout,
	})
	if err != nil {
		slog.Error("rpc error", "err", err)
		os.Exit(1)
	}

	validatorSource, err := validators.Open(ctx, cfg.ValidatorsDSN)
	if err != nil {
		slog.Error("validators registry error", "err", err)
		os.Exit(1)
	}
	defer validatorSource.Close()

	metrics := httpapi.NewMetrics()

	aggregator, err := application.NewAggregator(rpcClient, validatorSource, metrics, application.AggregatorConfig{
		ThroughputWindow:  cfg.ThroughputWindow,
		ThroughputWorkers: cfg.ThroughputWorkers,
	})
	if err != nil {
		slog.Error("aggregator error", "err", err)
		os.Exit(1)
	}

	var sinks []application.SnapshotSink
	if len(cfg.KafkaBrokers) > 0 {
		producer, err := kafka.NewProducer(kafka.ProducerConfig{
			Brokers:     cfg.KafkaBrokers,
			TopicPrefix: cfg.KafkaTopicPrefix,
		})
		if err != nil {
			slog.Error("kafka error", "err", err)
			os.Exit(1)
		}
		defer producer.Close()
		sinks = append(sinks, producer)
	}
	if cfg.RedisAddr != "" {
		publisher, err := redisfeed.NewPublisher(ctx, redisfeed.Config{
			Addr:   cfg.RedisAddr,
			Prefix: cfg.RedisStreamPrefix,
			MaxLen: cfg.RedisStreamMaxLen,
		})
		if err != nil {
			slog.Warn("redis feed disabled", "err", err)
		} else {
			defer publisher.Close()
			sinks = append(sinks, publisher)
		}
	}

	forwarder := application.NewForwarder(sinks, metrics, 256)
	forwarderDone := make(chan struct{})
	go func() {
		defer close(forwarderDone)
		forwarder.Run(ctx)
	}()

	queries := aggregator.Queries(application.PollConfig{
		ValidatorsInterval:   cfg.ValidatorsInterval,
		ThroughputInterval:   cfg.ThroughputInterval,
		TransactionsInterval: cfg.TransactionsInterval,
		NetworkInterval:      cfg.NetworkInterval,
	})

	board := application.NewBoard(forwarder.Emit)
	group, err := board.Start(ctx, queries, metrics)
	if err != nil {
		slog.Error("board start error", "err", err)
		os.Exit(1)
	}

	httpServer, err := httpapi.NewServer(cfg, board, queries, rpcClient, validatorSource, metrics, httpapi.BuildInfo{
		Version:   version,
		Commit:    commit,
		BuildTime: buildTime,
	})
	if err != nil {
		slog.Error("http server error", "err", err)
		os.Exit(1)
	}

	go func() {
		slog.Info("http server listening", "addr", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(ctx, cfg.HTTPAddr); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("http server error", "err", err)
			cancel()
		}
	}()

	slog.Info("dashboard started",
		"rpc", cfg.RPCURL,
		"window", cfg.ThroughputWindow,
		"queries", group.Names(),
		"sinks", len(sinks),
		"version", version,
	)

	<-ctx.Done()
	group.Stop()

	waitCtx, waitCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer waitCancel()
	if err := group.Wait(waitCtx); err != nil {
		slog.Warn("pollers did not stop in time", "err", err)
	}
	select {
	case <-forwarderDone:
	case <-waitCtx.Done():
		slog.Warn("snapshot forwarder did not drain in time")
	}
	slog.Info("dashboard stopped")
}
