package config

import (
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	cfg, err := LoadServerConfig()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.DispatchRadiusKm != 10 {
		t.Fatalf("expected default radius 10, got %f", cfg.DispatchRadiusKm)
	}
	if cfg.DispatchMaxCandidates != 5 {
		t.Fatalf("expected default candidate cap 5, got %d", cfg.DispatchMaxCandidates)
	}
	if cfg.OfferTimeout != 30*time.Second {
		t.Fatalf("expected default offer timeout 30s, got %s", cfg.OfferTimeout)
	}
	if cfg.RedisGeoKey != "riders_geo" {
		t.Fatalf("unexpected geo key %q", cfg.RedisGeoKey)
	}
}

func TestEnvOverridesAndValidation(t *testing.T) {
	t.Setenv("DISPATCH_RADIUS_KM", "3.5")
	t.Setenv("DISPATCH_MAX_CANDIDATES", "8")
	t.Setenv("OFFER_TIMEOUT", "15s")
	t.Setenv("KAFKA_BROKERS", "a:9092, b:9092,")

	cfg, err := LoadServerConfig()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.DispatchRadiusKm != 3.5 || cfg.DispatchMaxCandidates != 8 {
		t.Fatalf("env overrides not applied: %+v", cfg)
	}
	if cfg.OfferTimeout != 15*time.Second {
		t.Fatalf("expected 15s, got %s", cfg.OfferTimeout)
	}
	if len(cfg.KafkaBrokers) != 2 {
		t.Fatalf("expected two brokers, got %v", cfg.KafkaBrokers)
	}
}

func TestRejectsNonPositiveBounds(t *testing.T) {
	t.Setenv("DISPATCH_MAX_CANDIDATES", "0")
	if _, err := LoadServerConfig(); err == nil {
		t.Fatal("expected validation error for zero candidate cap")
	}
}
