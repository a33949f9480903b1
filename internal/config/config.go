// Package config loads client and stub-service settings from an optional
// YAML file, the BACKEND_URL environment variable, and defaults.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/viper"
)

// EnvBackendURL is the only environment variable consulted.
const EnvBackendURL = "BACKEND_URL"

// Transports.
const (
	TransportHTTP = "http"
	TransportWS   = "ws"
)

// Config holds all application configuration.
type Config struct {
	BackendURL     string        `mapstructure:"backend_url"`
	Transport      string        `mapstructure:"transport"`
	UserID         string        `mapstructure:"user_id"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`

	MQTT    MQTTConfig    `mapstructure:"mqtt"`
	Redis   RedisConfig   `mapstructure:"redis"`
	History HistoryConfig `mapstructure:"history"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Log     LogConfig     `mapstructure:"log"`
	Stub    StubConfig    `mapstructure:"stub"`
}

// MQTTConfig configures the renderer bridge. Empty Broker disables it.
type MQTTConfig struct {
	Broker      string `mapstructure:"broker"`
	ClientID    string `mapstructure:"client_id"`
	Username    string `mapstructure:"username"`
	Password    string `mapstructure:"password"`
	TopicPrefix string `mapstructure:"topic_prefix"`
}

// RedisConfig configures the history store. Empty Addr disables it.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// HistoryConfig configures the history panel.
type HistoryConfig struct {
	Limit int `mapstructure:"limit"`
}

// MetricsConfig configures the Prometheus endpoint. Empty Addr disables it.
type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

// LogConfig configures log output.
type LogConfig struct {
	File string `mapstructure:"file"`
}

// StubConfig configures the development conversation service.
type StubConfig struct {
	Addr string `mapstructure:"addr"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("backend_url", "http://localhost:8000")
	v.SetDefault("transport", TransportHTTP)
	v.SetDefault("user_id", "")
	v.SetDefault("request_timeout", 30*time.Second)
	v.SetDefault("mqtt.broker", "")
	v.SetDefault("mqtt.client_id", "")
	v.SetDefault("mqtt.username", "")
	v.SetDefault("mqtt.password", "")
	v.SetDefault("mqtt.topic_prefix", "armate")
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("history.limit", 20)
	v.SetDefault("metrics.addr", "")
	v.SetDefault("log.file", filepath.Join(".armate-logs", "armate.log"))
	v.SetDefault("stub.addr", ":8000")
}

// Load reads configuration. With an explicit path that file must exist;
// otherwise armate.yaml is looked up in the working directory and in
// $HOME/.armate, and a missing file just means defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	if err := v.BindEnv("backend_url", EnvBackendURL); err != nil {
		return nil, fmt.Errorf("config: bind env: %w", err)
	}

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("armate")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".armate"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config: read: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	if cfg.UserID == "" {
		cfg.UserID = "user-" + uuid.NewString()[:8]
	}
	if cfg.MQTT.ClientID == "" {
		cfg.MQTT.ClientID = "armate-" + uuid.NewString()[:8]
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that would otherwise fail much later.
func (c *Config) Validate() error {
	u, err := url.Parse(c.BackendURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("config: backend_url %q must be an http(s) URL", c.BackendURL)
	}
	if c.Transport != TransportHTTP && c.Transport != TransportWS {
		return fmt.Errorf("config: transport %q must be %q or %q", c.Transport, TransportHTTP, TransportWS)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("config: request_timeout must be positive")
	}
	if c.History.Limit <= 0 {
		return fmt.Errorf("config: history.limit must be positive")
	}
	return nil
}
