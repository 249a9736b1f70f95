package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(EnvMap{})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.RPCURL != DefaultRPCURL {
		t.Errorf("expected default rpc url, got %s", cfg.RPCURL)
	}
	if cfg.ValidatorsInterval != 10*time.Second || cfg.ThroughputInterval != 5*time.Second || cfg.TransactionsInterval != 7*time.Second {
		t.Errorf("unexpected poll intervals %s %s %s", cfg.ValidatorsInterval, cfg.ThroughputInterval, cfg.TransactionsInterval)
	}
	if cfg.ThroughputWindow != 10 {
		t.Errorf("expected window 10, got %d", cfg.ThroughputWindow)
	}
	if cfg.HTTPAddr != ":8080" {
		t.Errorf("expected :8080, got %s", cfg.HTTPAddr)
	}
	if cfg.KafkaBrokers != nil || cfg.RedisAddr != "" {
		t.Errorf("sinks must be disabled by default")
	}
	if cfg.KafkaGroupID != "avaxdash-tail" {
		t.Errorf("unexpected kafka group %q", cfg.KafkaGroupID)
	}
}

func TestLoadOverrides(t *testing.T) {
	cfg, err := Load(EnvMap{
		"RPC_URL":             "http://localhost:9650/ext/bc/C/rpc",
		"THROUGHPUT_WINDOW":   "20",
		"THROUGHPUT_INTERVAL": "2s",
		"KAFKA_BROKERS":       "a:9092, b:9092,",
		"REDIS_ADDR":          " 127.0.0.1:6379 ",
		"VALIDATORS_DSN":      "sqlite://validators.db",
	})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.RPCURL != "http://localhost:9650/ext/bc/C/rpc" {
		t.Errorf("unexpected rpc url %s", cfg.RPCURL)
	}
	if cfg.ThroughputWindow != 20 || cfg.ThroughputInterval != 2*time.Second {
		t.Errorf("unexpected throughput settings %d %s", cfg.ThroughputWindow, cfg.ThroughputInterval)
	}
	if len(cfg.KafkaBrokers) != 2 || cfg.KafkaBrokers[1] != "b:9092" {
		t.Errorf("unexpected brokers %v", cfg.KafkaBrokers)
	}
	if cfg.RedisAddr != "127.0.0.1:6379" {
		t.Errorf("unexpected redis addr %q", cfg.RedisAddr)
	}
	if cfg.ValidatorsDSN != "sqlite://validators.db" {
		t.Errorf("unexpected validators dsn %q", cfg.ValidatorsDSN)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	cases := map[string]EnvMap{
		"bad scheme":   {"RPC_URL": "ws://node"},
		"zero window":  {"THROUGHPUT_WINDOW": "0"},
		"bad interval": {"VALIDATORS_INTERVAL": "soon"},
		"neg interval": {"NETWORK_INTERVAL": "-1s"},
		"bad timeout":  {"RPC_TIMEOUT": "10"},
		"empty list":   {"KAFKA_BROKERS": " , "},
	}
	for name, env := range cases {
		if _, err := Load(env); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

func TestLoadRequiresSource(t *testing.T) {
	if _, err := Load(nil); err == nil {
		t.Fatal("expected error for nil source")
	}
}
