package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()
	if cfg.ServerPort == "" {
		t.Fatalf("expected default server port")
	}
	if cfg.PostgresURL == "" {
		t.Fatalf("expected default postgres url")
	}
	if cfg.RouteRateLimit != 300 || cfg.RouteRateWindow != time.Minute {
		t.Fatalf("unexpected route throttle defaults: %d per %s", cfg.RouteRateLimit, cfg.RouteRateWindow)
	}
	if cfg.SegmentWindow != 5*time.Second {
		t.Fatalf("expected 5s segment window, got %s", cfg.SegmentWindow)
	}
	if cfg.SegmentMaxSpeedMPS != 70 || cfg.SegmentMinDistanceM != 1 {
		t.Fatalf("unexpected segment thresholds")
	}
	if cfg.ProcessConcurrency != 4 {
		t.Fatalf("expected default concurrency 4, got %d", cfg.ProcessConcurrency)
	}
	if cfg.Location() != time.UTC {
		t.Fatalf("expected UTC default zone")
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("SERVER_PORT", ":9000")
	t.Setenv("POSTGRES_URL", "postgres://example")
	t.Setenv("REDIS_ADDR", "redis:6379")
	t.Setenv("REDIS_DB", "2")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("ROUTE_RATE_LIMIT", "10")
	t.Setenv("ROUTE_RATE_WINDOW", "2s")
	t.Setenv("SEGMENT_MAX_SPEED_MPS", "50.5")

	cfg := Load()
	if cfg.ServerPort != ":9000" {
		t.Fatalf("expected override port")
	}
	if cfg.PostgresURL != "postgres://example" {
		t.Fatalf("expected override postgres")
	}
	if cfg.RedisAddr != "redis:6379" || cfg.RedisDB != 2 {
		t.Fatalf("expected override redis")
	}
	if cfg.JWTSecret != "secret" {
		t.Fatalf("expected override secret")
	}
	if cfg.RouteRateLimit != 10 || cfg.RouteRateWindow != 2*time.Second {
		t.Fatalf("expected override throttle, got %d per %s", cfg.RouteRateLimit, cfg.RouteRateWindow)
	}
	if cfg.SegmentMaxSpeedMPS != 50.5 {
		t.Fatalf("expected override max speed, got %v", cfg.SegmentMaxSpeedMPS)
	}
}

func TestLocation(t *testing.T) {
	cfg := Config{AnalyticsTimezone: "Europe/Berlin"}
	if cfg.Location().String() != "Europe/Berlin" {
		t.Fatalf("expected Europe/Berlin, got %s", cfg.Location())
	}
	cfg.AnalyticsTimezone = "Not/AZone"
	if cfg.Location() != time.UTC {
		t.Fatalf("expected UTC fallback")
	}
}
