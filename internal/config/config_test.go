package config

import (
	"log/slog"
	"strings"
	"testing"
	"time"
)

func mapLookup(values map[string]string) LookupFunc {
	return func(key string) (string, bool) {
		value, ok := values[key]
		return value, ok
	}
}

func TestLoadDefaultsForDevProfile(t *testing.T) {
	cfg, err := Load("sqlbridge-api", mapLookup(map[string]string{}))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Profile != ProfileDev {
		t.Fatalf("Profile = %q, want %q", cfg.Profile, ProfileDev)
	}
	if cfg.HTTP.Address != ":8080" {
		t.Fatalf("HTTP.Address = %q", cfg.HTTP.Address)
	}
	if cfg.Backend.Dialect != "mysql" {
		t.Fatalf("Backend.Dialect = %q", cfg.Backend.Dialect)
	}
	if cfg.Backend.TransportSecurity != "verify_ca_and_host" {
		t.Fatalf("Backend.TransportSecurity = %q", cfg.Backend.TransportSecurity)
	}
	if cfg.Backend.MaxRows != 1000 {
		t.Fatalf("Backend.MaxRows = %d", cfg.Backend.MaxRows)
	}
	if cfg.Pool.RecycleAge != time.Hour {
		t.Fatalf("Pool.RecycleAge = %v", cfg.Pool.RecycleAge)
	}
	if cfg.Pool.ConnectTimeout != 10*time.Second {
		t.Fatalf("Pool.ConnectTimeout = %v", cfg.Pool.ConnectTimeout)
	}
	if cfg.AI.Enabled {
		t.Fatal("AI.Enabled should default to false")
	}
	if cfg.AI.MaxOutputTokens != 500 {
		t.Fatalf("AI.MaxOutputTokens = %d", cfg.AI.MaxOutputTokens)
	}
	if cfg.History.Limit != 10 {
		t.Fatalf("History.Limit = %d", cfg.History.Limit)
	}
	if cfg.Observability.LogLevel != slog.LevelDebug {
		t.Fatalf("LogLevel = %v", cfg.Observability.LogLevel)
	}
}

func TestLoadProdProfileDefaults(t *testing.T) {
	cfg, err := Load("sqlbridge-api", mapLookup(map[string]string{"SQLBRIDGE_PROFILE": "prod"}))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Observability.LogLevel != slog.LevelInfo {
		t.Fatalf("LogLevel = %v", cfg.Observability.LogLevel)
	}
}

func TestLoadAppliesOverrides(t *testing.T) {
	cfg, err := Load("sqlbridge-api", mapLookup(map[string]string{
		"SQLBRIDGE_DB_HOST":              "db.internal",
		"SQLBRIDGE_DB_PORT":              "20138",
		"SQLBRIDGE_DB_DEFAULT_DATABASES": "defaultdb, healthcare ,ecommerce",
		"SQLBRIDGE_POOL_RECYCLE_AGE":     "30m",
		"SQLBRIDGE_AI_ENABLED":           "true",
	}))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Backend.Host != "db.internal" {
		t.Fatalf("Backend.Host = %q", cfg.Backend.Host)
	}
	if cfg.Backend.Port != 20138 {
		t.Fatalf("Backend.Port = %d", cfg.Backend.Port)
	}
	if len(cfg.Backend.DefaultDatabases) != 3 || cfg.Backend.DefaultDatabases[1] != "healthcare" {
		t.Fatalf("Backend.DefaultDatabases = %v", cfg.Backend.DefaultDatabases)
	}
	if cfg.Pool.RecycleAge != 30*time.Minute {
		t.Fatalf("Pool.RecycleAge = %v", cfg.Pool.RecycleAge)
	}
	if !cfg.AI.Enabled {
		t.Fatal("AI.Enabled should be true")
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	_, err := Load("sqlbridge-api", mapLookup(map[string]string{"SQLBRIDGE_POOL_CONNECT_TIMEOUT": "soon"}))
	if err == nil || !strings.Contains(err.Error(), "SQLBRIDGE_POOL_CONNECT_TIMEOUT") {
		t.Fatalf("error = %v, want invalid duration error", err)
	}

	_, err = Load("sqlbridge-api", mapLookup(map[string]string{"SQLBRIDGE_PROFILE": "staging"}))
	if err == nil {
		t.Fatal("expected error for unknown profile")
	}
}
