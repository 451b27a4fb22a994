// Package config reads process configuration from DRIVALYZE_* environment
// variables. Command-line flags override what is read here.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config is shared by the server and the client commands.
type Config struct {
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
	LogDev   bool   `env:"LOG_DEV"`

	// APIURL is the catalog/prediction service the client commands talk to.
	APIURL string `env:"API_URL" envDefault:"http://localhost:5001"`

	// DataDir holds the session store and the prediction history database.
	DataDir     string `env:"DATA_DIR"`
	HistoryPath string `env:"HISTORY_DB"`
	SessionPath string `env:"SESSION_DIR"`

	Auth     AuthConfig
	Server   ServerConfig
	Activity ActivityConfig
}

// AuthConfig selects the identity provider. Without an API key an in-process
// provider is used, which only knows accounts created during the run.
type AuthConfig struct {
	APIKey   string `env:"AUTH_API_KEY"`
	Endpoint string `env:"AUTH_ENDPOINT"`
}

type ServerConfig struct {
	Addr        string        `env:"ADDR" envDefault:":5001"`
	DatasetPath string        `env:"DATASET"`
	Watch       bool          `env:"WATCH" envDefault:"true"`
	Engine      string        `env:"PRICING_ENGINE" envDefault:"expr"`
	Expression  string        `env:"PRICING_EXPR"`
	CORSOrigins []string      `env:"CORS_ORIGINS" envSeparator:"," envDefault:"*"`
	Shutdown    time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
	Metrics     bool          `env:"METRICS" envDefault:"true"`
}

type ActivityConfig struct {
	Enabled   bool   `env:"ACTIVITY_ENABLED" envDefault:"true"`
	Channel   string `env:"ACTIVITY_CHANNEL" envDefault:"predictions"`
	Anonymous bool   `env:"RECORD_ANONYMOUS"`
}

// Load parses the environment.
func Load() (Config, error) {
	return parse(env.Options{Prefix: "DRIVALYZE_"})
}

// LoadFrom parses vars instead of the process environment.
func LoadFrom(vars map[string]string) (Config, error) {
	return parse(env.Options{Prefix: "DRIVALYZE_", Environment: vars})
}

func parse(opts env.Options) (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return Config{}, fmt.Errorf("config: parse env: %w", err)
	}
	cfg.fillPaths()
	return cfg, nil
}

// SetDataDir moves every local file under dir.
func (c *Config) SetDataDir(dir string) {
	c.DataDir = dir
	c.HistoryPath = ""
	c.SessionPath = ""
	c.fillPaths()
}

// ActivityFeedPath is where the activity feed is appended.
func (c Config) ActivityFeedPath() string {
	return filepath.Join(c.DataDir, "activity.jsonl")
}

func (c *Config) fillPaths() {
	if c.DataDir == "" {
		base, err := os.UserConfigDir()
		if err != nil {
			base = os.TempDir()
		}
		c.DataDir = filepath.Join(base, "drivalyze")
	}
	if c.HistoryPath == "" {
		c.HistoryPath = filepath.Join(c.DataDir, "history.db")
	}
	if c.SessionPath == "" {
		c.SessionPath = filepath.Join(c.DataDir, "session")
	}
}
