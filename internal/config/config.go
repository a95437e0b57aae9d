package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

type LookupFunc func(string) (string, bool)

type Profile string

const (
	ProfileDev  Profile = "dev"
	ProfileTest Profile = "test"
	ProfileProd Profile = "prod"
)

type Config struct {
	Profile       Profile
	Service       ServiceConfig
	HTTP          HTTPConfig
	Backend       BackendConfig
	Pool          PoolConfig
	AI            AIConfig
	History       HistoryConfig
	Observability ObservabilityConfig
}

type ServiceConfig struct {
	Name string
}

type HTTPConfig struct {
	Address      string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// BackendConfig describes the process-default database backend. The secret
// is deliberately allowed to be empty at load time: the service starts and
// reports a degraded health state, and every connection attempt validates
// the profile before dialing.
type BackendConfig struct {
	Dialect           string
	Host              string
	Port              int
	User              string
	Password          string
	Database          string
	TransportSecurity string
	CAFile            string
	DefaultDatabases  []string
	MaxRows           int
}

type PoolConfig struct {
	MaxOpen        int
	MaxOverflow    int
	MaxIdle        int
	RecycleAge     time.Duration
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
}

type AIConfig struct {
	Enabled         bool
	BaseURL         string
	APIKey          string
	Model           string
	Temperature     float64
	MaxOutputTokens int
	Timeout         time.Duration
}

type HistoryConfig struct {
	Limit int
}

type ObservabilityConfig struct {
	LogLevel slog.Level
	LogJSON  bool
}

func LoadFromEnv(serviceName string) (Config, error) {
	return Load(serviceName, os.LookupEnv)
}

func Load(serviceName string, lookup LookupFunc) (Config, error) {
	if lookup == nil {
		return Config{}, fmt.Errorf("lookup function is required")
	}

	profile := ProfileDev
	if raw, ok := lookup("SQLBRIDGE_PROFILE"); ok {
		profile = Profile(strings.ToLower(strings.TrimSpace(raw)))
	}
	if !isValidProfile(profile) {
		return Config{}, fmt.Errorf("invalid SQLBRIDGE_PROFILE: %q", profile)
	}

	cfg := defaultsForProfile(profile)
	if serviceName != "" {
		cfg.Service.Name = serviceName
	}

	if err := applyString(lookup, "SQLBRIDGE_SERVICE_NAME", &cfg.Service.Name); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "SQLBRIDGE_HTTP_ADDR", &cfg.HTTP.Address); err != nil {
		return Config{}, err
	}
	if err := applyDuration(lookup, "SQLBRIDGE_HTTP_READ_TIMEOUT", &cfg.HTTP.ReadTimeout); err != nil {
		return Config{}, err
	}
	if err := applyDuration(lookup, "SQLBRIDGE_HTTP_WRITE_TIMEOUT", &cfg.HTTP.WriteTimeout); err != nil {
		return Config{}, err
	}
	if err := applyDuration(lookup, "SQLBRIDGE_HTTP_IDLE_TIMEOUT", &cfg.HTTP.IdleTimeout); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "SQLBRIDGE_DB_DIALECT", &cfg.Backend.Dialect); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "SQLBRIDGE_DB_HOST", &cfg.Backend.Host); err != nil {
		return Config{}, err
	}
	if err := applyInt(lookup, "SQLBRIDGE_DB_PORT", &cfg.Backend.Port); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "SQLBRIDGE_DB_USER", &cfg.Backend.User); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "SQLBRIDGE_DB_PASSWORD", &cfg.Backend.Password); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "SQLBRIDGE_DB_DATABASE", &cfg.Backend.Database); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "SQLBRIDGE_DB_TRANSPORT_SECURITY", &cfg.Backend.TransportSecurity); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "SQLBRIDGE_DB_CA_FILE", &cfg.Backend.CAFile); err != nil {
		return Config{}, err
	}
	if err := applyStringList(lookup, "SQLBRIDGE_DB_DEFAULT_DATABASES", &cfg.Backend.DefaultDatabases); err != nil {
		return Config{}, err
	}
	if err := applyInt(lookup, "SQLBRIDGE_DB_MAX_ROWS", &cfg.Backend.MaxRows); err != nil {
		return Config{}, err
	}
	if err := applyInt(lookup, "SQLBRIDGE_POOL_MAX_OPEN", &cfg.Pool.MaxOpen); err != nil {
		return Config{}, err
	}
	if err := applyInt(lookup, "SQLBRIDGE_POOL_MAX_OVERFLOW", &cfg.Pool.MaxOverflow); err != nil {
		return Config{}, err
	}
	if err := applyInt(lookup, "SQLBRIDGE_POOL_MAX_IDLE", &cfg.Pool.MaxIdle); err != nil {
		return Config{}, err
	}
	if err := applyDuration(lookup, "SQLBRIDGE_POOL_RECYCLE_AGE", &cfg.Pool.RecycleAge); err != nil {
		return Config{}, err
	}
	if err := applyDuration(lookup, "SQLBRIDGE_POOL_CONNECT_TIMEOUT", &cfg.Pool.ConnectTimeout); err != nil {
		return Config{}, err
	}
	if err := applyDuration(lookup, "SQLBRIDGE_POOL_READ_TIMEOUT", &cfg.Pool.ReadTimeout); err != nil {
		return Config{}, err
	}
	if err := applyDuration(lookup, "SQLBRIDGE_POOL_WRITE_TIMEOUT", &cfg.Pool.WriteTimeout); err != nil {
		return Config{}, err
	}
	if err := applyBool(lookup, "SQLBRIDGE_AI_ENABLED", &cfg.AI.Enabled); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "SQLBRIDGE_AI_BASE_URL", &cfg.AI.BaseURL); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "SQLBRIDGE_AI_API_KEY", &cfg.AI.APIKey); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "SQLBRIDGE_AI_MODEL", &cfg.AI.Model); err != nil {
		return Config{}, err
	}
	if err := applyFloat(lookup, "SQLBRIDGE_AI_TEMPERATURE", &cfg.AI.Temperature); err != nil {
		return Config{}, err
	}
	if err := applyInt(lookup, "SQLBRIDGE_AI_MAX_OUTPUT_TOKENS", &cfg.AI.MaxOutputTokens); err != nil {
		return Config{}, err
	}
	if err := applyDuration(lookup, "SQLBRIDGE_AI_TIMEOUT", &cfg.AI.Timeout); err != nil {
		return Config{}, err
	}
	if err := applyInt(lookup, "SQLBRIDGE_HISTORY_LIMIT", &cfg.History.Limit); err != nil {
		return Config{}, err
	}
	if err := applyBool(lookup, "SQLBRIDGE_LOG_JSON", &cfg.Observability.LogJSON); err != nil {
		return Config{}, err
	}
	if err := applyLogLevel(lookup, "SQLBRIDGE_LOG_LEVEL", &cfg.Observability.LogLevel); err != nil {
		return Config{}, err
	}

	if cfg.Service.Name == "" {
		return Config{}, fmt.Errorf("service name is required")
	}
	if cfg.HTTP.Address == "" {
		return Config{}, fmt.Errorf("http address is required")
	}
	if cfg.History.Limit <= 0 {
		return Config{}, fmt.Errorf("history limit must be positive")
	}
	return cfg, nil
}

func defaultsForProfile(profile Profile) Config {
	cfg := Config{
		Profile: profile,
		Service: ServiceConfig{Name: "sqlbridge-api"},
		HTTP: HTTPConfig{
			Address:      ":8080",
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 60 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		Backend: BackendConfig{
			Dialect:           "mysql",
			Host:              "localhost",
			Port:              3306,
			User:              "root",
			Password:          "",
			Database:          "",
			TransportSecurity: "verify_ca_and_host",
			CAFile:            "",
			DefaultDatabases:  []string{"defaultdb"},
			MaxRows:           1000,
		},
		Pool: PoolConfig{
			MaxOpen:        5,
			MaxOverflow:    10,
			MaxIdle:        5,
			RecycleAge:     time.Hour,
			ConnectTimeout: 10 * time.Second,
			ReadTimeout:    30 * time.Second,
			WriteTimeout:   30 * time.Second,
		},
		AI: AIConfig{
			Enabled:         false,
			BaseURL:         "https://api.openai.com",
			Model:           "gpt-5",
			Temperature:     0.1,
			MaxOutputTokens: 500,
			Timeout:         15 * time.Second,
		},
		History: HistoryConfig{Limit: 10},
		Observability: ObservabilityConfig{
			LogLevel: slog.LevelDebug,
			LogJSON:  true,
		},
	}

	switch profile {
	case ProfileTest:
		cfg.HTTP.Address = ":18080"
		cfg.Observability.LogLevel = slog.LevelWarn
	case ProfileProd:
		cfg.Observability.LogLevel = slog.LevelInfo
	}

	return cfg
}

func isValidProfile(profile Profile) bool {
	switch profile {
	case ProfileDev, ProfileTest, ProfileProd:
		return true
	default:
		return false
	}
}

func applyString(lookup LookupFunc, key string, dst *string) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	*dst = strings.TrimSpace(raw)
	return nil
}

func applyStringList(lookup LookupFunc, key string, dst *[]string) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	parts := strings.Split(raw, ",")
	values := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			values = append(values, trimmed)
		}
	}
	*dst = values
	return nil
}

func applyDuration(lookup LookupFunc, key string, dst *time.Duration) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyBool(lookup LookupFunc, key string, dst *bool) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := strconv.ParseBool(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyInt(lookup LookupFunc, key string, dst *int) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyFloat(lookup LookupFunc, key string, dst *float64) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyLogLevel(lookup LookupFunc, key string, dst *slog.Level) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	level := strings.ToLower(strings.TrimSpace(raw))
	switch level {
	case "debug":
		*dst = slog.LevelDebug
	case "info":
		*dst = slog.LevelInfo
	case "warn", "warning":
		*dst = slog.LevelWarn
	case "error":
		*dst = slog.LevelError
	default:
		return fmt.Errorf("invalid %s: %q", key, raw)
	}
	return nil
}
