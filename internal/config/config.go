package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const DefaultRPCURL = "https://api.avax.network/ext/bc/C/rpc"

type Config struct {
	RPCURL               string
	RPCTimeout           time.Duration
	HTTPAddr             string
	ThroughputWindow     int
	ThroughputWorkers    int
	ValidatorsInterval   time.Duration
	ThroughputInterval   time.Duration
	TransactionsInterval time.Duration
	NetworkInterval      time.Duration
	ValidatorsDSN        string
	RedisAddr            string
	RedisStreamPrefix    string
	RedisStreamMaxLen    int64
	KafkaBrokers         []string
	KafkaTopicPrefix     string
	KafkaGroupID         string
	OtelEndpoint         string
	LogLevel             string
	LogFile              string
	LogMaxSizeMB         int
	LogMaxBackups        int
}

type EnvSource interface {
	Lookup(key string) (string, bool)
}

type EnvMap map[string]string

func (e EnvMap) Lookup(key string) (string, bool) {
	value, ok := e[key]
	return value, ok
}

func FromEnviron() EnvSource {
	env := make(EnvMap)
	for _, entry := range os.Environ() {
		if entry == "" {
			continue
		}
		parts := strings.SplitN(entry, "=", 2)
		if len(parts) != 2 {
			continue
		}
		env[parts[0]] = parts[1]
	}
	return env
}

func Load(source EnvSource) (Config, error) {
	if source == nil {
		return Config{}, errors.New("env source is required")
	}

	rpcURL, ok := source.Lookup("RPC_URL")
	if !ok || strings.TrimSpace(rpcURL) == "" {
		rpcURL = DefaultRPCURL
	}
	rpcURL = strings.TrimSpace(rpcURL)
	if !strings.HasPrefix(rpcURL, "http://") && !strings.HasPrefix(rpcURL, "https://") {
		return Config{}, fmt.Errorf("invalid RPC_URL %q: scheme must be http or https", rpcURL)
	}

	rpcTimeout, err := parseDurationEnv(source, "RPC_TIMEOUT", 10*time.Second)
	if err != nil {
		return Config{}, err
	}

	window, err := parseUintEnv(source, "THROUGHPUT_WINDOW", 10)
	if err != nil {
		return Config{}, err
	}
	if window == 0 {
		return Config{}, errors.New("THROUGHPUT_WINDOW must be positive")
	}
	workers, err := parseUintEnv(source, "THROUGHPUT_WORKERS", 0)
	if err != nil {
		return Config{}, err
	}

	validatorsInterval, err := parseDurationEnv(source, "VALIDATORS_INTERVAL", 10*time.Second)
	if err != nil {
		return Config{}, err
	}
	throughputInterval, err := parseDurationEnv(source, "THROUGHPUT_INTERVAL", 5*time.Second)
	if err != nil {
		return Config{}, err
	}
	transactionsInterval, err := parseDurationEnv(source, "TRANSACTIONS_INTERVAL", 7*time.Second)
	if err != nil {
		return Config{}, err
	}
	networkInterval, err := parseDurationEnv(source, "NETWORK_INTERVAL", 6*time.Second)
	if err != nil {
		return Config{}, err
	}

	httpAddr := ":8080"
	if raw, ok := source.Lookup("HTTP_ADDR"); ok && raw != "" {
		httpAddr = raw
	}

	validatorsDSN, _ := source.Lookup("VALIDATORS_DSN")

	redisAddr, _ := source.Lookup("REDIS_ADDR")
	redisStreamPrefix, ok := source.Lookup("REDIS_STREAM_PREFIX")
	if !ok || strings.TrimSpace(redisStreamPrefix) == "" {
		redisStreamPrefix = "avaxdash"
	}
	redisStreamMaxLen, err := parseUintEnv(source, "REDIS_STREAM_MAXLEN", 1000)
	if err != nil {
		return Config{}, err
	}

	kafkaBrokers, err := parseList(source, "KAFKA_BROKERS")
	if err != nil {
		return Config{}, err
	}
	kafkaTopicPrefix, ok := source.Lookup("KAFKA_TOPIC_PREFIX")
	if !ok || kafkaTopicPrefix == "" {
		kafkaTopicPrefix = "avaxdash"
	}
	kafkaGroupID, ok := source.Lookup("KAFKA_GROUP_ID")
	if !ok || strings.TrimSpace(kafkaGroupID) == "" {
		kafkaGroupID = "avaxdash-tail"
	}

	otelEndpoint, _ := source.Lookup("OTEL_EXPORTER_OTLP_ENDPOINT")

	logLevel, _ := source.Lookup("LOG_LEVEL")
	logFile, _ := source.Lookup("LOG_FILE")
	logMaxSize, err := parseUintEnv(source, "LOG_MAX_SIZE_MB", 100)
	if err != nil {
		return Config{}, err
	}
	logMaxBackups, err := parseUintEnv(source, "LOG_MAX_BACKUPS", 3)
	if err != nil {
		return Config{}, err
	}

	return Config{
		RPCURL:               rpcURL,
		RPCTimeout:           rpcTimeout,
		HTTPAddr:             httpAddr,
		ThroughputWindow:     int(window),
		ThroughputWorkers:    int(workers),
		ValidatorsInterval:   validatorsInterval,
		ThroughputInterval:   throughputInterval,
		TransactionsInterval: transactionsInterval,
		NetworkInterval:      networkInterval,
		ValidatorsDSN:        strings.TrimSpace(validatorsDSN),
		RedisAddr:            strings.TrimSpace(redisAddr),
		RedisStreamPrefix:    redisStreamPrefix,
		RedisStreamMaxLen:    int64(redisStreamMaxLen),
		KafkaBrokers:         kafkaBrokers,
		KafkaTopicPrefix:     kafkaTopicPrefix,
		KafkaGroupID:         strings.TrimSpace(kafkaGroupID),
		OtelEndpoint:         strings.TrimSpace(otelEndpoint),
		LogLevel:             strings.TrimSpace(logLevel),
		LogFile:              strings.TrimSpace(logFile),
		LogMaxSizeMB:         int(logMaxSize),
		LogMaxBackups:        int(logMaxBackups),
	}, nil
}

func parseUintEnv(source EnvSource, key string, defaultValue uint64) (uint64, error) {
	raw, ok := source.Lookup(key)
	if !ok || raw == "" {
		return defaultValue, nil
	}
	value, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return value, nil
}

func parseDurationEnv(source EnvSource, key string, defaultValue time.Duration) (time.Duration, error) {
	raw, ok := source.Lookup(key)
	if !ok || raw == "" {
		return defaultValue, nil
	}
	duration, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if duration <= 0 {
		return 0, fmt.Errorf("invalid %s: must be positive", key)
	}
	return duration, nil
}

func parseList(source EnvSource, key string) ([]string, error) {
	raw, ok := source.Lookup(key)
	if !ok || strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	var values []string
	for _, item := range strings.Split(raw, ",") {
		value := strings.TrimSpace(item)
		if value == "" {
			continue
		}
		values = append(values, value)
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("invalid %s: no entries", key)
	}
	return values, nil
}
