package config

import (
	"errors"
	"os"
	"time"
)

type ServerConfig struct {
	ServerPort  string
	DatabaseURL string
	RedisURL    string
	JWTSecret   string
	JWTExpiry   time.Duration
}

func LoadServerConfig() (*ServerConfig, error) {
	expiryStr := getEnv("JWT_EXPIRY", "24h")
	expiry, err := time.ParseDuration(expiryStr)
	if err != nil {
		return nil, errors.New("invalid JWT_EXPIRY format")
	}

	cfg := &ServerConfig{
		ServerPort:  getEnv("SERVER_PORT", "8080"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		RedisURL:    os.Getenv("REDIS_URL"),
		JWTSecret:   os.Getenv("JWT_SECRET"),
		JWTExpiry:   expiry,
	}

	// Validate required fields
	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required")
	}
	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}

	return cfg, nil
}

// AgentConfig configures the field device agent: where the authoritative
// server lives, where local durable state goes, and the sync cadence.
type AgentConfig struct {
	ServerURL     string
	APIToken      string
	DataDir       string
	ShellPort     string
	ManifestPath  string
	ProbeInterval time.Duration
	SyncInterval  time.Duration
	SyncDebounce  time.Duration
}

func LoadAgentConfig() (*AgentConfig, error) {
	probe, err := time.ParseDuration(getEnv("PROBE_INTERVAL", "15s"))
	if err != nil {
		return nil, errors.New("invalid PROBE_INTERVAL format")
	}
	syncInterval, err := time.ParseDuration(getEnv("SYNC_INTERVAL", "30s"))
	if err != nil {
		return nil, errors.New("invalid SYNC_INTERVAL format")
	}
	debounce, err := time.ParseDuration(getEnv("SYNC_DEBOUNCE", "2s"))
	if err != nil {
		return nil, errors.New("invalid SYNC_DEBOUNCE format")
	}

	cfg := &AgentConfig{
		ServerURL:     os.Getenv("SERVER_URL"),
		APIToken:      os.Getenv("API_TOKEN"),
		DataDir:       getEnv("DATA_DIR", "./data"),
		ShellPort:     getEnv("SHELL_PORT", "9090"),
		ManifestPath:  getEnv("MANIFEST_PATH", "./manifest.yaml"),
		ProbeInterval: probe,
		SyncInterval:  syncInterval,
		SyncDebounce:  debounce,
	}

	if cfg.ServerURL == "" {
		return nil, errors.New("SERVER_URL is required")
	}

	return cfg, nil
}

// Helper: get env with default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
