package infra

import (
	"testing"
	"time"
)

func setBaseEnv(t *testing.T) {
	t.Helper()
	t.Setenv("DATABASE_URL", "postgres://example")
	t.Setenv("JWT_SECRET", "test-secret")
}

func TestLoadConfigDefaults(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("PORT", "")
	t.Setenv("QUOTA_STORE", "")
	t.Setenv("STAGE_TIMEOUT_SECONDS", "")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.Port != "8080" {
		t.Fatalf("Port = %q, want 8080", cfg.Port)
	}
	if cfg.QuotaStore != "postgres" {
		t.Fatalf("QuotaStore = %q, want postgres", cfg.QuotaStore)
	}
	if cfg.StageTimeout != 120*time.Second {
		t.Fatalf("StageTimeout = %v, want 120s", cfg.StageTimeout)
	}
	if cfg.HTTPWriteTimeout != 300*time.Second {
		t.Fatalf("HTTPWriteTimeout = %v, want 300s", cfg.HTTPWriteTimeout)
	}
	if cfg.DeepSeekBaseURL != "https://api.deepseek.com/v1" {
		t.Fatalf("DeepSeekBaseURL = %q", cfg.DeepSeekBaseURL)
	}
}

func TestLoadConfigRequiresDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("JWT_SECRET", "test-secret")

	if _, err := LoadConfig(); err == nil {
		t.Fatal("LoadConfig accepted empty DATABASE_URL")
	}
}

func TestLoadConfigRequiresJWTSecret(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://example")
	t.Setenv("JWT_SECRET", "")

	if _, err := LoadConfig(); err == nil {
		t.Fatal("LoadConfig accepted empty JWT_SECRET")
	}
}

func TestLoadConfigRejectsUnknownQuotaStore(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("QUOTA_STORE", "dynamodb")

	if _, err := LoadConfig(); err == nil {
		t.Fatal("LoadConfig accepted unsupported QUOTA_STORE")
	}
}

func TestLoadConfigRedisStoreNeedsAddr(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("QUOTA_STORE", "redis")
	t.Setenv("REDIS_ADDR", "")

	if _, err := LoadConfig(); err == nil {
		t.Fatal("LoadConfig accepted QUOTA_STORE=redis without REDIS_ADDR")
	}

	t.Setenv("REDIS_ADDR", "localhost:6379")
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.QuotaStore != "redis" || cfg.RedisAddr != "localhost:6379" {
		t.Fatalf("cfg = %+v, want redis store wired", cfg)
	}
}

func TestLoadConfigParsesOrigins(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("ALLOWED_ORIGINS", "https://app.example.com, https://staging.example.com ,")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	want := []string{"https://app.example.com", "https://staging.example.com"}
	if len(cfg.AllowedOrigins) != len(want) {
		t.Fatalf("AllowedOrigins = %#v, want %#v", cfg.AllowedOrigins, want)
	}
	for i := range want {
		if cfg.AllowedOrigins[i] != want[i] {
			t.Fatalf("AllowedOrigins[%d] = %q, want %q", i, cfg.AllowedOrigins[i], want[i])
		}
	}
}
