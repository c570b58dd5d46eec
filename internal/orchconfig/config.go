// Package orchconfig loads the orchestration core's runtime
// configuration: provider credentials, default turn/timeout budgets,
// and the logging/metrics ambient stack.
//
// Grounded on the teacher's internal/config/config.go: a single
// YAML-tagged struct tree, loaded with a strict (KnownFields) decoder,
// environment-variable expansion, default-filling, and validation.
package orchconfig

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Worlds        WorldsConfig        `yaml:"worlds"`
	HITL          HITLConfig          `yaml:"hitl"`
	Shell         ShellConfig         `yaml:"shell"`
	MCP           MCPConfig           `yaml:"mcp"`
	Logging       LoggingConfig       `yaml:"logging"`
	Metrics       MetricsConfig       `yaml:"metrics"`
	Telemetry     TelemetryConfig     `yaml:"telemetry"`
	Housekeeping  HousekeepingConfig  `yaml:"housekeeping"`
	Providers     ProvidersConfig     `yaml:"providers"`
}

// ServerConfig configures the CLI/server entry point's listen address.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// WorldsConfig supplies the default budgets new worlds are created with.
type WorldsConfig struct {
	DefaultTurnLimit int    `yaml:"default_turn_limit"`
	StorageDir       string `yaml:"storage_dir"`
}

// HITLConfig tunes the human-in-the-loop runtime.
type HITLConfig struct {
	DefaultTimeout time.Duration `yaml:"default_timeout"`
}

// ShellConfig tunes the shell command tool.
type ShellConfig struct {
	DefaultTimeout time.Duration `yaml:"default_timeout"`
	HistoryCap     int           `yaml:"history_cap"`
	TrustedRoot    string        `yaml:"trusted_root"`
}

// MCPConfig tunes MCP tool discovery.
type MCPConfig struct {
	ListTimeout time.Duration            `yaml:"list_timeout"`
	Servers     map[string]MCPServerSpec `yaml:"servers"`
}

// MCPServerSpec is one configured MCP server endpoint.
type MCPServerSpec struct {
	Command string   `yaml:"command"`
	Args    []string `yaml:"args"`
	URL     string   `yaml:"url"`
}

// LoggingConfig configures the ambient log/slog stack.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "json" | "text"
}

// MetricsConfig configures the Prometheus exporter.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// TelemetryConfig configures the OpenTelemetry tracer.
type TelemetryConfig struct {
	Enabled     bool    `yaml:"enabled"`
	Endpoint    string  `yaml:"endpoint"`
	Environment string  `yaml:"environment"`
	SampleRate  float64 `yaml:"sample_rate"`
	Insecure    bool    `yaml:"insecure"`
}

// HousekeepingConfig schedules the stale-untitled-chat sweep.
type HousekeepingConfig struct {
	Schedule   string        `yaml:"schedule"`
	MaxChatAge time.Duration `yaml:"max_chat_age"`
}

// ProvidersConfig carries per-provider credentials/endpoints.
type ProvidersConfig struct {
	OpenAI    ProviderCreds `yaml:"openai"`
	Anthropic ProviderCreds `yaml:"anthropic"`
}

// ProviderCreds is one provider's API key and optional base URL
// override (for OpenAI-compatible gateways).
type ProviderCreds struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`
}

// Load reads and parses path, expanding ${VAR} references against the
// process environment, filling defaults, and validating the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("orchconfig: read %s: %w", path, err)
	}

	expanded := os.ExpandEnv(string(data))

	var cfg Config
	decoder := yaml.NewDecoder(strings.NewReader(expanded))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("orchconfig: parse %s: %w", path, err)
	}
	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return nil, fmt.Errorf("orchconfig: %s: expected a single YAML document", path)
	}

	applyDefaults(&cfg)
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8099
	}
	if cfg.Worlds.DefaultTurnLimit == 0 {
		cfg.Worlds.DefaultTurnLimit = 5
	}
	if cfg.Worlds.StorageDir == "" {
		cfg.Worlds.StorageDir = "./data/worlds"
	}
	if cfg.HITL.DefaultTimeout == 0 {
		cfg.HITL.DefaultTimeout = 120 * time.Second
	}
	if cfg.Shell.DefaultTimeout == 0 {
		cfg.Shell.DefaultTimeout = 10 * time.Minute
	}
	if cfg.Shell.HistoryCap == 0 {
		cfg.Shell.HistoryCap = 2000
	}
	if cfg.MCP.ListTimeout == 0 {
		cfg.MCP.ListTimeout = 5 * time.Second
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Metrics.Addr == "" {
		cfg.Metrics.Addr = ":9090"
	}
	if cfg.Telemetry.SampleRate == 0 {
		cfg.Telemetry.SampleRate = 1.0
	}
	if cfg.Housekeeping.Schedule == "" {
		cfg.Housekeeping.Schedule = "@hourly"
	}
	if cfg.Housekeeping.MaxChatAge == 0 {
		cfg.Housekeeping.MaxChatAge = 24 * time.Hour
	}
}

func validate(cfg *Config) error {
	switch cfg.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("orchconfig: invalid logging level %q", cfg.Logging.Level)
	}
	switch cfg.Logging.Format {
	case "json", "text":
	default:
		return fmt.Errorf("orchconfig: invalid logging format %q", cfg.Logging.Format)
	}
	if cfg.Worlds.DefaultTurnLimit <= 0 {
		return fmt.Errorf("orchconfig: worlds.default_turn_limit must be positive")
	}
	if cfg.Shell.HistoryCap <= 0 {
		return fmt.Errorf("orchconfig: shell.history_cap must be positive")
	}
	return nil
}
