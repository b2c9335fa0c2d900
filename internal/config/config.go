// Package config loads the process configuration from the environment and an
// optional YAML file.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"

	"github.com/you/agentdesk/internal/identity"
)

type Config struct {
	DatabaseURL            string        `yaml:"database_url" env:"DATABASE_URL"`
	PerformanceDatabaseURL string        `yaml:"performance_database_url" env:"PERFORMANCE_DATABASE_URL"`
	AuthMode               identity.Mode `yaml:"auth_mode" env:"AUTH_MODE" env-default:"delegated"`
	TrustedAgentCIF        string        `yaml:"trusted_agent_cif" env:"TRUSTED_AGENT_CIF"`
	QueryTO                time.Duration `yaml:"query_timeout" env:"QUERY_TIMEOUT" env-default:"25s"`
	ConnectTO              time.Duration `yaml:"connect_timeout" env:"CONNECT_TIMEOUT" env-default:"5s"`
	MaxRows                int           `yaml:"max_rows" env:"MAX_ROWS" env-default:"200"`
	ServiceName            string        `yaml:"service_name" env:"SERVICE_NAME" env-default:"agentdesk-api"`
	LogLevel               string        `yaml:"log_level" env:"LOG_LEVEL" env-default:"info"`
	HTTP                   HTTP          `yaml:"http"`
	MCP                    MCP           `yaml:"mcp"`
}

// HTTP configures the JSON API.
type HTTP struct {
	Addr           string        `yaml:"addr" env:"HTTP_ADDR" env-default:":8000"`
	ReadTimeout    time.Duration `yaml:"read_timeout" env:"HTTP_READ_TIMEOUT" env-default:"30s"`
	WriteTimeout   time.Duration `yaml:"write_timeout" env:"HTTP_WRITE_TIMEOUT" env-default:"30s"`
	IdleTimeout    time.Duration `yaml:"idle_timeout" env:"HTTP_IDLE_TIMEOUT" env-default:"60s"`
	RateLimitRPS   float64       `yaml:"rate_limit_rps" env:"RATE_LIMIT_RPS" env-default:"0"`
	RateLimitBurst int           `yaml:"rate_limit_burst" env:"RATE_LIMIT_BURST" env-default:"10"`
}

// MCP configures the tool server.
type MCP struct {
	Transport string `yaml:"transport" env:"MCP_TRANSPORT" env-default:"stdio"`
	Addr      string `yaml:"addr" env:"MCP_ADDR" env-default:":8080"`
	Path      string `yaml:"path" env:"MCP_PATH" env-default:"/mcp/sse"`
	Bearer    string `yaml:"bearer" env:"AUTH_BEARER"`
}

// Load reads path when set, then the environment, then validates.
func Load(path string) (Config, error) {
	var cfg Config
	var err error
	if path != "" {
		err = cleanenv.ReadConfig(path, &cfg)
	} else {
		err = cleanenv.ReadEnv(&cfg)
	}
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	cfg.MCP.Bearer = strings.TrimSpace(cfg.MCP.Bearer)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// PerformanceDSN falls back to the billing database.
func (c *Config) PerformanceDSN() string {
	if c.PerformanceDatabaseURL != "" {
		return c.PerformanceDatabaseURL
	}
	return c.DatabaseURL
}

// Validate checks if the configuration is valid and returns detailed errors
func (c *Config) Validate() error {
	var errs []string

	if c.DatabaseURL == "" {
		errs = append(errs, "DATABASE_URL is required")
	}

	switch c.AuthMode {
	case identity.ModeTrusted:
		if strings.TrimSpace(c.TrustedAgentCIF) == "" {
			errs = append(errs, "TRUSTED_AGENT_CIF is required when AUTH_MODE=trusted")
		}
	case identity.ModeDelegated:
	default:
		errs = append(errs, fmt.Sprintf("AUTH_MODE must be %q or %q, got %q", identity.ModeTrusted, identity.ModeDelegated, c.AuthMode))
	}

	if c.MaxRows <= 0 {
		errs = append(errs, "MAX_ROWS must be greater than 0")
	} else if c.MaxRows > 10000 {
		errs = append(errs, "MAX_ROWS cannot exceed 10000 (too many rows could cause memory issues)")
	}

	if c.QueryTO < time.Second {
		errs = append(errs, "QUERY_TIMEOUT must be at least 1 second")
	} else if c.QueryTO > 5*time.Minute {
		errs = append(errs, "QUERY_TIMEOUT cannot exceed 5 minutes")
	}

	if c.ConnectTO <= 0 {
		errs = append(errs, "CONNECT_TIMEOUT must be positive")
	}

	if c.HTTP.RateLimitRPS < 0 {
		errs = append(errs, "RATE_LIMIT_RPS cannot be negative")
	}
	if c.HTTP.RateLimitRPS > 0 && c.HTTP.RateLimitBurst < 1 {
		errs = append(errs, "RATE_LIMIT_BURST must be at least 1 when rate limiting is enabled")
	}

	switch c.MCP.Transport {
	case "stdio", "sse":
	default:
		errs = append(errs, fmt.Sprintf("MCP_TRANSPORT must be stdio or sse, got %q", c.MCP.Transport))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}
