package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	ModeLocal   = "local"
	ModeGraphQL = "graphql"

	EnvConfig = "RESTAURANT_CONFIG"
	EnvPrefix = "RESTAURANT"
)

// Config: holds application configuration.
type Config struct {
	Backend  BackendConfig
	GraphQL  GraphQLConfig
	Database DatabaseConfig
	Auth     AuthConfig
	Sync     SyncConfig
	Log      LogConfig
}

// BackendConfig: selects the gateway implementation.
type BackendConfig struct {
	Mode string
}

// GraphQLConfig: addresses the managed GraphQL API.
type GraphQLConfig struct {
	Endpoint         string
	RealtimeEndpoint string `mapstructure:"realtime_endpoint"`
	Timeout          time.Duration
}

// DatabaseConfig: holds sqlite settings for the local backend.
type DatabaseConfig struct {
	Path string
}

// AuthConfig: holds the bearer token handed to the backend. Secret is only needed to verify or
// issue tokens locally.
type AuthConfig struct {
	Token  string
	Secret string
}

type SyncConfig struct {
	DedupEvents    bool          `mapstructure:"dedup_events"`
	RemoveOnDelete bool          `mapstructure:"remove_on_delete"`
	PollInterval   time.Duration `mapstructure:"poll_interval"`
}

type LogConfig struct {
	Level string
}

// Load: reads configuration from file and env. Env var overrides use prefix RESTAURANT_.
func Load() (Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigType("toml")

	cfgPath := os.Getenv(EnvConfig)
	if cfgPath != "" {
		v.SetConfigFile(cfgPath)
	} else {
		v.AddConfigPath(filepath.Join(os.Getenv("HOME"), ".config", "restaurant_live"))
		v.SetConfigName("config")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		// an explicit path must exist; the default location is optional
		if cfgPath != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	c.Backend.Mode = strings.ToLower(strings.TrimSpace(c.Backend.Mode))
	if err := Validate(c); err != nil {
		return Config{}, err
	}
	return c, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("backend.mode", ModeLocal)
	v.SetDefault("graphql.endpoint", "")
	v.SetDefault("graphql.realtime_endpoint", "")
	v.SetDefault("graphql.timeout", 30*time.Second)
	v.SetDefault("database.path", filepath.Join(os.Getenv("HOME"), ".local", "share", "restaurant_live", "restaurants.db"))
	v.SetDefault("auth.token", "")
	v.SetDefault("auth.secret", "")
	v.SetDefault("sync.dedup_events", true)
	v.SetDefault("sync.remove_on_delete", true)
	v.SetDefault("sync.poll_interval", 500*time.Millisecond)
	v.SetDefault("log.level", "info")
}

// Validate: checks the settings the selected backend needs.
func Validate(c Config) error {
	switch c.Backend.Mode {
	case ModeLocal:
		if strings.TrimSpace(c.Database.Path) == "" {
			return fmt.Errorf("config: database.path is required for the local backend")
		}
		if c.Sync.PollInterval <= 0 {
			return fmt.Errorf("config: sync.poll_interval must be positive")
		}
	case ModeGraphQL:
		if err := validateURL("graphql.endpoint", c.GraphQL.Endpoint, "http", "https"); err != nil {
			return err
		}
		if c.GraphQL.RealtimeEndpoint != "" {
			if err := validateURL("graphql.realtime_endpoint", c.GraphQL.RealtimeEndpoint, "ws", "wss"); err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("config: unknown backend.mode %q", c.Backend.Mode)
	}
	return nil
}

func validateURL(key, raw string, schemes ...string) error {
	if strings.TrimSpace(raw) == "" {
		return fmt.Errorf("config: %s is required", key)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("config: %s: %w", key, err)
	}
	for _, s := range schemes {
		if u.Scheme == s {
			return nil
		}
	}
	return fmt.Errorf("config: %s must use one of %v, got %q", key, schemes, u.Scheme)
}

// RealtimeURL: returns the websocket endpoint, deriving it from the HTTP endpoint when unset.
func (g GraphQLConfig) RealtimeURL() string {
	if g.RealtimeEndpoint != "" {
		return g.RealtimeEndpoint
	}
	switch {
	case strings.HasPrefix(g.Endpoint, "https://"):
		return "wss://" + strings.TrimPrefix(g.Endpoint, "https://")
	case strings.HasPrefix(g.Endpoint, "http://"):
		return "ws://" + strings.TrimPrefix(g.Endpoint, "http://")
	default:
		return g.Endpoint
	}
}
