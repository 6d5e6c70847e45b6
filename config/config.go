/*
Package config loads runtime configuration from the environment.

PURPOSE:
  One place resolves every knob the server needs: defaults first, then an
  optional .env file, then real environment variables. Nothing else in
  the codebase reads os.Getenv.

KEYS:
  SERVER_PORT    HTTP listen port                    (default 8080)
  DB_PATH        SQLite database path, ":memory:" ok (default ./data/commission.db)
  CORS_ORIGINS   Comma-separated allowed origins
  AUDIT_WORKERS  Concurrent agents per audit run     (default 4)

SEE ALSO:
  - cmd/server/main.go: The only consumer
*/
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Config holds application configuration.
type Config struct {
	ServerPort   int
	DBPath       string
	CORSOrigins  []string
	AuditWorkers int
}

// Load reads configuration from defaults, an optional .env file, and the
// environment, in increasing precedence.
func Load() (*Config, error) {
	v := viper.New()

	v.SetDefault("SERVER_PORT", 8080)
	v.SetDefault("DB_PATH", "./data/commission.db")
	v.SetDefault("CORS_ORIGINS", "http://localhost:5173,http://localhost:8080")
	v.SetDefault("AUDIT_WORKERS", 4)

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()

	if _, err := os.Stat(".env"); err == nil {
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	cfg := &Config{
		ServerPort:   v.GetInt("SERVER_PORT"),
		DBPath:       v.GetString("DB_PATH"),
		CORSOrigins:  splitOrigins(v.GetString("CORS_ORIGINS")),
		AuditWorkers: v.GetInt("AUDIT_WORKERS"),
	}

	if cfg.ServerPort <= 0 || cfg.ServerPort > 65535 {
		return nil, fmt.Errorf("invalid SERVER_PORT: %d", cfg.ServerPort)
	}
	if cfg.DBPath == "" {
		return nil, fmt.Errorf("DB_PATH must not be empty")
	}

	return cfg, nil
}

// Addr returns the listen address for the HTTP server.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.ServerPort)
}

func splitOrigins(raw string) []string {
	var origins []string
	for _, o := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(o); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	return origins
}
