package config

import (
	"testing"
	"time"
)

func TestLoadRateLimitConfigDefaults(t *testing.T) {
	cfg := LoadRateLimitConfig()
	if !cfg.Enabled || cfg.Capacity != 60 || cfg.Prefix != "rl" || cfg.KeyStrategy != "ip_user_route" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
}

func TestLoadLoginRateLimitOverrides(t *testing.T) {
	t.Setenv("LOGIN_RATE_LIMIT_BURST", "3")
	t.Setenv("LOGIN_RATE_LIMIT_REFILL_EVERY", "1m")
	t.Setenv("LOGIN_RATE_LIMIT_TTL", "1s")
	t.Setenv("LOGIN_RATE_LIMIT_ENABLED", "off")

	cfg := LoadLoginRateLimitConfig()
	if cfg.Enabled {
		t.Fatal("expected disabled")
	}
	if cfg.Capacity != 3 || cfg.RefillTokens != 1 || cfg.RefillInterval != time.Minute {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
	if cfg.TTL != 5*time.Minute {
		t.Fatalf("ttl should be clamped to 5 intervals, got %s", cfg.TTL)
	}
	if cfg.Prefix != "rl:login" || cfg.KeyStrategy != "ip" {
		t.Fatalf("login bucket identity changed: %+v", cfg)
	}
}

func TestLoadCacheConfig(t *testing.T) {
	t.Setenv("CACHE_METHODS", "get, head")
	t.Setenv("CACHE_TTL", "-1s")
	cfg := LoadCacheConfig()
	if !cfg.Methods["GET"] || !cfg.Methods["HEAD"] || cfg.Methods["POST"] {
		t.Fatalf("methods: %v", cfg.Methods)
	}
	if cfg.TTL != 5*time.Minute {
		t.Fatalf("ttl: %s", cfg.TTL)
	}
}

func TestConfigValidate(t *testing.T) {
	good := Config{JWTSecret: "0123456789abcdef", SessionTTL: time.Hour, EditWindow: 24 * time.Hour, DefaultPageSize: 50, MaxPageSize: 200}
	if err := good.Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}
	bad := good
	bad.JWTSecret = "short"
	bad.MaxPageSize = 10
	if err := bad.Validate(); err == nil {
		t.Fatal("invalid config accepted")
	}
}

func TestAMQPURLFallbacks(t *testing.T) {
	t.Setenv("RABBITMQ_URL", "")
	t.Setenv("AMQP_URL", "amqp://u:p@broker:5672/")
	if got := AMQPURL(); got != "amqp://u:p@broker:5672/" {
		t.Fatalf("got %q", got)
	}
	t.Setenv("RABBITMQ_URL", "amqp://primary/")
	if got := AMQPURL(); got != "amqp://primary/" {
		t.Fatalf("got %q", got)
	}
}

func TestRedisOptions(t *testing.T) {
	t.Setenv("REDIS_ADDR", "cache:6380")
	t.Setenv("REDIS_HOST", "")
	t.Setenv("REDIS_DB", "2")
	opts := RedisOptions()
	if opts.Addr != "cache:6380" || opts.DB != 2 || opts.TLSConfig != nil {
		t.Fatalf("unexpected options: %+v", opts)
	}
}
