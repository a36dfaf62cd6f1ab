// Package config loads application configuration from file,
// environment, and defaults.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Queue      QueueConfig      `mapstructure:"queue"`
	Matching   MatchingConfig   `mapstructure:"matching"`
	Resolver   ResolverConfig   `mapstructure:"resolver"`
	Credential CredentialConfig `mapstructure:"credential"`
	Metadata   MetadataConfig   `mapstructure:"metadata"`
	Remote     RemoteConfig     `mapstructure:"remote"`
	Requester  RequesterConfig  `mapstructure:"requester"`
	Scheduler  SchedulerConfig  `mapstructure:"scheduler"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// DatabaseConfig holds the resolution journal database settings.
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Path   string `mapstructure:"path"`
}

// QueueConfig holds admission queue and worker pool settings.
type QueueConfig struct {
	Capacity       int           `mapstructure:"capacity"`
	Workers        int           `mapstructure:"workers"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// MatchingConfig holds title matching thresholds.
type MatchingConfig struct {
	RelaxedThreshold int `mapstructure:"relaxed_threshold"`
	StrictThreshold  int `mapstructure:"strict_threshold"`
}

// ResolverConfig holds the resolution state machine tunables.
type ResolverConfig struct {
	AvailabilityWait time.Duration `mapstructure:"availability_wait"`
	ClaimPollTimeout time.Duration `mapstructure:"claim_poll_timeout"`
	MaxFileCount     int           `mapstructure:"max_file_count"`
}

// CredentialConfig holds the access token lifecycle settings.
type CredentialConfig struct {
	Path            string        `mapstructure:"path"`
	TokenURL        string        `mapstructure:"token_url"`
	ClientID        string        `mapstructure:"client_id"`
	ClientSecret    string        `mapstructure:"client_secret"`
	RefreshMargin   time.Duration `mapstructure:"refresh_margin"`
	RefreshInterval time.Duration `mapstructure:"refresh_interval"`
}

// MetadataConfig holds the metadata provider settings.
type MetadataConfig struct {
	BaseURL         string        `mapstructure:"base_url"`
	APIKey          string        `mapstructure:"api_key"`
	RateLimit       int           `mapstructure:"rate_limit"`
	RateLimitWindow time.Duration `mapstructure:"rate_limit_window"`
}

// RemoteConfig holds the remote target settings. With Mock set, a
// scriptable in-process target replaces the browser agent.
type RemoteConfig struct {
	AgentURL      string `mapstructure:"agent_url"`
	DefaultFilter string `mapstructure:"default_filter"`
	Mock          bool   `mapstructure:"mock"`
}

// RequesterConfig holds the requesting system's API settings.
type RequesterConfig struct {
	BaseURL string `mapstructure:"base_url"`
	APIKey  string `mapstructure:"api_key"`
}

// SchedulerConfig holds background task intervals.
type SchedulerConfig struct {
	RescanInterval time.Duration `mapstructure:"rescan_interval"`
}

// Load reads configuration from file and environment variables.
// Priority: environment variables > config file > defaults
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("$HOME/.bridgarr")
	}

	v.SetEnvPrefix("BRIDGARR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found, using defaults + env vars
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return cfg, nil
}

// setDefaults sets default values in viper
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8777)

	v.SetDefault("database.path", "./data/bridgarr.db")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.path", "./logs")

	v.SetDefault("queue.capacity", 500)
	v.SetDefault("queue.workers", 1)
	v.SetDefault("queue.request_timeout", "60s")

	v.SetDefault("matching.relaxed_threshold", 70)
	v.SetDefault("matching.strict_threshold", 90)

	v.SetDefault("resolver.availability_wait", "15s")
	v.SetDefault("resolver.claim_poll_timeout", "10s")
	v.SetDefault("resolver.max_file_count", 1)

	v.SetDefault("credential.path", "./data/credential.json")
	v.SetDefault("credential.token_url", "https://api.real-debrid.com/oauth/v2/token")
	v.SetDefault("credential.client_id", "")
	v.SetDefault("credential.client_secret", "")
	v.SetDefault("credential.refresh_margin", "10m")
	v.SetDefault("credential.refresh_interval", "10m")

	v.SetDefault("metadata.base_url", "https://api.themoviedb.org/3")
	v.SetDefault("metadata.api_key", "")
	v.SetDefault("metadata.rate_limit", 40)
	v.SetDefault("metadata.rate_limit_window", "10s")

	v.SetDefault("remote.agent_url", "http://localhost:8778")
	v.SetDefault("remote.default_filter", "")
	v.SetDefault("remote.mock", false)

	v.SetDefault("requester.base_url", "")
	v.SetDefault("requester.api_key", "")

	v.SetDefault("scheduler.rescan_interval", "15m")
}

// Address returns the server address string.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
