package config_test

import (
	"testing"

	"github.com/brokerops/commission-engine/config"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.ServerPort != 8080 {
		t.Errorf("expected default port 8080, got %d", cfg.ServerPort)
	}
	if cfg.DBPath != "./data/commission.db" {
		t.Errorf("unexpected default db path: %s", cfg.DBPath)
	}
	if cfg.AuditWorkers != 4 {
		t.Errorf("expected default 4 workers, got %d", cfg.AuditWorkers)
	}
	if len(cfg.CORSOrigins) != 2 {
		t.Errorf("expected 2 default origins, got %v", cfg.CORSOrigins)
	}
	if cfg.Addr() != ":8080" {
		t.Errorf("unexpected addr: %s", cfg.Addr())
	}
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("DB_PATH", ":memory:")
	t.Setenv("CORS_ORIGINS", "https://audit.broker.test, https://ops.broker.test")
	t.Setenv("AUDIT_WORKERS", "16")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.ServerPort != 9090 {
		t.Errorf("expected port 9090, got %d", cfg.ServerPort)
	}
	if cfg.DBPath != ":memory:" {
		t.Errorf("expected :memory:, got %s", cfg.DBPath)
	}
	if cfg.AuditWorkers != 16 {
		t.Errorf("expected 16 workers, got %d", cfg.AuditWorkers)
	}
	if len(cfg.CORSOrigins) != 2 || cfg.CORSOrigins[1] != "https://ops.broker.test" {
		t.Errorf("origins must split and trim: %v", cfg.CORSOrigins)
	}
}

func TestLoad_RejectsBadPort(t *testing.T) {
	t.Setenv("SERVER_PORT", "-1")

	if _, err := config.Load(); err == nil {
		t.Fatal("expected error for negative port")
	}
}
