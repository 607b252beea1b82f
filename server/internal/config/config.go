package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Default values for the server configuration.
const (
	DefaultHTTPPort       = 8000
	DefaultDataPath       = "HR-Employee-Attrition.csv"
	DefaultIDColumn       = "EmployeeNumber"
	DefaultStreamInterval = 5 * time.Second
	DefaultJournalPath    = "journal.db"
	DefaultRetention      = 30 * 24 * time.Hour
)

// Environment variables that override the file.
const (
	EnvDataPath = "TALENTMANAGER_DATA_PATH"
	EnvPort     = "PORT"
)

// Config holds the server configuration parsed from config.yaml.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Data    DataConfig    `yaml:"data"`
	Alerts  AlertsConfig  `yaml:"alerts"`
	Storage StorageConfig `yaml:"storage"`
}

// ServerConfig holds listener and transport settings.
type ServerConfig struct {
	// HTTPPort is the port the REST API, metrics and WebSocket stream listen on.
	HTTPPort int `yaml:"http_port"`

	// GRPCPort is the port of the gRPC health service. 0 disables it.
	GRPCPort int `yaml:"grpc_port"`

	// Auth protects the write path (POST /employees) and the gRPC listener.
	Auth AuthConfig `yaml:"auth"`

	// Stream controls the WebSocket stats broadcast.
	Stream StreamConfig `yaml:"stream"`
}

// AuthConfig controls client authentication.
type AuthConfig struct {
	// Mode is one of: apikey | none.
	Mode string `yaml:"mode"`

	// KeyEnv is the name of the environment variable that holds the expected API key.
	KeyEnv string `yaml:"key_env"`

	// Header is the HTTP header (and gRPC metadata key) carrying the key.
	// Defaults to "x-api-key" if empty.
	Header string `yaml:"header"`
}

// Key returns the expected API key resolved from the environment.
func (a AuthConfig) Key() string {
	if a.KeyEnv == "" {
		return ""
	}
	return os.Getenv(a.KeyEnv)
}

// EffectiveHeader returns the configured header name, or the default "x-api-key".
func (a AuthConfig) EffectiveHeader() string {
	if a.Header != "" {
		return a.Header
	}
	return "x-api-key"
}

// StreamConfig controls the WebSocket hub.
type StreamConfig struct {
	// Interval between periodic broadcasts. Table changes are pushed immediately.
	Interval time.Duration `yaml:"interval"`
}

// DataConfig locates the backing file of the employee table.
type DataConfig struct {
	// Path is the delimited file loaded at startup and rewritten on every append.
	Path string `yaml:"path"`

	// IDColumn names the identifier column. Its values are always treated as text.
	IDColumn string `yaml:"id_column"`

	// Watch reloads the table when the file is changed by another process.
	Watch bool `yaml:"watch"`
}

// AlertsConfig holds alert rules and webhook delivery targets.
type AlertsConfig struct {
	Rules    []AlertRule     `yaml:"rules"`
	Webhooks []WebhookConfig `yaml:"webhooks"`
}

// AlertRule flags an employee record.
type AlertRule struct {
	// Name identifies the rule in notifications.
	Name string `yaml:"name"`

	// Condition is "column op value", e.g. "PerformanceRating <= 2" or
	// "OverTime == Yes". Operators: < <= > >= == !=.
	Condition string `yaml:"condition"`
}

// WebhookConfig defines one webhook delivery target.
type WebhookConfig struct {
	// Type is one of: teams | slack | http.
	Type string `yaml:"type"`

	// URLEnv is the name of the environment variable that holds the webhook URL.
	URLEnv string `yaml:"url_env"`
}

// URL returns the webhook URL resolved from the environment.
func (w WebhookConfig) URL() string {
	if w.URLEnv == "" {
		return ""
	}
	return os.Getenv(w.URLEnv)
}

// StorageConfig configures the optional journal of appended records.
type StorageConfig struct {
	// Backend is one of: sqlite | postgres. Empty disables the journal.
	Backend string `yaml:"backend"`

	// Path is the SQLite database file.
	Path string `yaml:"path"`

	// DSNEnv is the name of the environment variable holding the Postgres DSN.
	DSNEnv string `yaml:"dsn_env"`

	// Retention is how long journal entries are kept. 0 keeps them forever.
	Retention time.Duration `yaml:"retention"`
}

// DSN returns the data source name for the configured backend.
func (s StorageConfig) DSN() string {
	switch s.Backend {
	case "sqlite":
		return s.Path
	case "postgres":
		if s.DSNEnv == "" {
			return ""
		}
		return os.Getenv(s.DSNEnv)
	default:
		return ""
	}
}

// DefaultAlertRules are the rules used when the config declares none.
func DefaultAlertRules() []AlertRule {
	return []AlertRule{
		{Name: "low_performance", Condition: "PerformanceRating <= 2"},
		{Name: "low_work_life_balance", Condition: "WorkLifeBalance <= 2"},
		{Name: "overtime", Condition: "OverTime == Yes"},
	}
}

// Load reads and parses the config file at path. An empty path yields the
// defaults. Environment overrides are applied before validation.
func Load(path string) (*Config, error) {
	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("server config: read %q: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("server config: parse yaml: %w", err)
		}
	}

	if len(cfg.Alerts.Rules) == 0 {
		cfg.Alerts.Rules = DefaultAlertRules()
	}

	if err := applyEnv(cfg); err != nil {
		return nil, fmt.Errorf("server config: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("server config: %w", err)
	}

	return cfg, nil
}

// defaults returns a Config pre-populated with default values.
func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			HTTPPort: DefaultHTTPPort,
			Auth:     AuthConfig{Mode: "none"},
			Stream: StreamConfig{
				Interval: DefaultStreamInterval,
			},
		},
		Data: DataConfig{
			Path:     DefaultDataPath,
			IDColumn: DefaultIDColumn,
			Watch:    true,
		},
		Storage: StorageConfig{
			Path:      DefaultJournalPath,
			Retention: DefaultRetention,
		},
	}
}

func applyEnv(cfg *Config) error {
	if p := os.Getenv(EnvDataPath); p != "" {
		cfg.Data.Path = p
	}
	if p := os.Getenv(EnvPort); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil {
			return fmt.Errorf("%s=%q is not a port number", EnvPort, p)
		}
		cfg.Server.HTTPPort = port
	}
	return nil
}

// validate checks structural constraints on the parsed configuration.
func validate(cfg *Config) error {
	if cfg.Server.HTTPPort <= 0 || cfg.Server.HTTPPort > 65535 {
		return fmt.Errorf("server.http_port %d is out of range [1, 65535]", cfg.Server.HTTPPort)
	}
	if cfg.Server.GRPCPort < 0 || cfg.Server.GRPCPort > 65535 {
		return fmt.Errorf("server.grpc_port %d is out of range [0, 65535]", cfg.Server.GRPCPort)
	}
	switch cfg.Server.Auth.Mode {
	case "apikey", "none", "":
	default:
		return fmt.Errorf("server.auth.mode %q unknown: want apikey|none", cfg.Server.Auth.Mode)
	}
	if cfg.Server.Stream.Interval <= 0 {
		return fmt.Errorf("server.stream.interval must be positive")
	}
	if cfg.Data.Path == "" {
		return fmt.Errorf("data.path is required")
	}
	if cfg.Data.IDColumn == "" {
		return fmt.Errorf("data.id_column is required")
	}
	for i, r := range cfg.Alerts.Rules {
		if r.Name == "" || r.Condition == "" {
			return fmt.Errorf("alerts.rules[%d]: name and condition are required", i)
		}
	}
	for i, w := range cfg.Alerts.Webhooks {
		switch w.Type {
		case "slack", "teams", "http":
		default:
			return fmt.Errorf("alerts.webhooks[%d].type %q unknown: want slack|teams|http", i, w.Type)
		}
	}
	switch cfg.Storage.Backend {
	case "", "sqlite", "postgres":
	default:
		return fmt.Errorf("storage.backend %q unknown: want sqlite|postgres", cfg.Storage.Backend)
	}
	if cfg.Storage.Backend == "sqlite" && cfg.Storage.Path == "" {
		return fmt.Errorf("storage.path is required for the sqlite backend")
	}
	if cfg.Storage.Backend == "postgres" && cfg.Storage.DSNEnv == "" {
		return fmt.Errorf("storage.dsn_env is required for the postgres backend")
	}
	if cfg.Storage.Retention < 0 {
		return fmt.Errorf("storage.retention must not be negative")
	}
	return nil
}
