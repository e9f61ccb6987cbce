package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
)

// EnvPrefix prefixes every environment override, e.g. GRPM_SERVER_PORT.
const EnvPrefix = "GRPM_"

// Config holds all application configuration
type Config struct {
	Server   ServerConfig   `json:"server" envPrefix:"SERVER_"`
	Database DatabaseConfig `json:"database" envPrefix:"DATABASE_"`
	GRPM     GRPMConfig     `json:"grpm" envPrefix:"INDEX_"`
	Scoring  ScoringConfig  `json:"scoring" envPrefix:"SCORING_"`
	Auth     AuthConfig     `json:"auth" envPrefix:"AUTH_"`
	Advisor  AdvisorConfig  `json:"advisor" envPrefix:"ADVISOR_"`
	Logging  LoggingConfig  `json:"logging" envPrefix:"LOG_"`
}

type ServerConfig struct {
	Host            string   `json:"host" env:"HOST"`
	Port            string   `json:"port" env:"PORT"`
	StaticDir       string   `json:"static_dir" env:"STATIC_DIR"`
	Debug           bool     `json:"debug" env:"DEBUG"`
	ShutdownTimeout Duration `json:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
	AllowedOrigins  []string `json:"allowed_origins" env:"ALLOWED_ORIGINS" envSeparator:","`
}

type DatabaseConfig struct {
	Path string `json:"path" env:"PATH"`
}

// GRPMConfig locates the index resource. An empty path uses the built-in index.
type GRPMConfig struct {
	IndexPath string `json:"index_path" env:"PATH"`
}

type ScoringConfig struct {
	Baseline  float64 `json:"baseline" env:"BASELINE"`
	Excellent float64 `json:"excellent" env:"EXCELLENT"`
	Good      float64 `json:"good" env:"GOOD"`
	Fair      float64 `json:"fair" env:"FAIR"`
}

type AuthConfig struct {
	TokenSecret string   `json:"token_secret" env:"TOKEN_SECRET"`
	TokenTTL    Duration `json:"token_ttl" env:"TOKEN_TTL"`
}

// AdvisorConfig selects the advice generator: "none", "local" or "google".
type AdvisorConfig struct {
	Type            string `json:"type" env:"TYPE"`
	ProjectID       string `json:"project_id" env:"PROJECT_ID"`
	Location        string `json:"location" env:"LOCATION"`
	CredentialsFile string `json:"credentials_file" env:"CREDENTIALS_FILE"`
	Model           string `json:"model" env:"MODEL"`
}

type LoggingConfig struct {
	Level         string `json:"level" env:"LEVEL"`
	Format        string `json:"format" env:"FORMAT"` // text|json
	IncludeCaller bool   `json:"include_caller" env:"INCLUDE_CALLER"`
}

// Duration is a time.Duration read as "10s" in JSON and env.
type Duration time.Duration

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Host:            "",
			Port:            "8080",
			StaticDir:       "./static",
			ShutdownTimeout: Duration(10 * time.Second),
		},
		Database: DatabaseConfig{Path: "grpm.db"},
		Scoring: ScoringConfig{
			Baseline:  50,
			Excellent: 80,
			Good:      60,
			Fair:      40,
		},
		Auth: AuthConfig{TokenTTL: Duration(72 * time.Hour)},
		Advisor: AdvisorConfig{
			Type:     "local",
			Location: "us-central1",
			Model:    "gemini-1.5-flash",
		},
		Logging: LoggingConfig{Level: "info", Format: "text"},
	}
}

// LoadConfig loads configuration from a JSON file over the defaults, then
// applies GRPM_* environment overrides. A missing file is not an error.
func LoadConfig(configPath string) (*Config, error) {
	config := Default()

	data, err := os.ReadFile(configPath)
	switch {
	case err == nil:
		if err := json.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := env.ParseWithOptions(&config, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// Validate rejects configurations the server cannot run with.
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is not set")
	}
	if c.Server.StaticDir == "" {
		c.Server.StaticDir = "./static"
	}
	if c.Database.Path == "" {
		c.Database.Path = "grpm.db"
	}
	if c.Server.Debug {
		c.Logging.Level = "debug"
	}
	s := c.Scoring
	if s.Baseline < 0 || s.Baseline > 100 {
		return fmt.Errorf("scoring baseline %v outside [0,100]", s.Baseline)
	}
	if !(s.Excellent <= 100 && s.Excellent > s.Good && s.Good > s.Fair && s.Fair >= 0) {
		return fmt.Errorf("scoring thresholds must be descending within [0,100]")
	}
	switch c.Advisor.Type {
	case "", "none", "local", "google":
	default:
		return fmt.Errorf("unsupported advisor type: %s", c.Advisor.Type)
	}
	return nil
}

// GetConfigPath returns the path to the configuration file
func GetConfigPath() string {
	// First try environment variable
	if path := os.Getenv("GRPM_CONFIG"); path != "" {
		return path
	}

	// Then try config directory
	configDir := "config"
	if _, err := os.Stat(configDir); err == nil {
		return filepath.Join(configDir, "config.json")
	}

	// Finally, try current directory
	return "config.json"
}
