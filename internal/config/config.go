package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

type VoiceConfig struct {
	SpeakingThreshold float64       `mapstructure:"speaking_threshold"`
	SpeakingSmoothing float64       `mapstructure:"speaking_smoothing"`
	SpeakingHold      time.Duration `mapstructure:"speaking_hold"`
	Volume            int           `mapstructure:"volume"`
}

type Config struct {
	ServerURL     string        `mapstructure:"server_url"`
	SocketURL     string        `mapstructure:"socket_url"`
	Email         string        `mapstructure:"email"`
	LogLevel      string        `mapstructure:"log_level"`
	HistoryLimit  int           `mapstructure:"history_limit"`
	TypingTimeout time.Duration `mapstructure:"typing_timeout"`
	Voice         VoiceConfig   `mapstructure:"voice"`
}

// Load reads ~/.linguaroom.yaml (or the explicit path) merged with
// LINGUAROOM_* environment variables over the defaults. A missing
// config file is not an error; the defaults are usable as-is.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	if path != "" {
		v.SetConfigFile(path)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			v.SetConfigFile(filepath.Join(home, ".linguaroom.yaml"))
		}
	}

	v.SetEnvPrefix("linguaroom")
	v.AutomaticEnv()

	v.SetDefault("server_url", "http://localhost:8080/api")
	v.SetDefault("socket_url", "")
	v.SetDefault("log_level", "info")
	v.SetDefault("history_limit", 50)
	v.SetDefault("typing_timeout", "2s")
	v.SetDefault("voice.speaking_threshold", 10.0)
	v.SetDefault("voice.speaking_smoothing", 0.6)
	v.SetDefault("voice.speaking_hold", "250ms")
	v.SetDefault("voice.volume", 100)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}

// SocketEndpoint returns the websocket URL, derived from the server
// URL when not set explicitly.
func (c *Config) SocketEndpoint() string {
	if c.SocketURL != "" {
		return c.SocketURL
	}
	u := c.ServerURL
	switch {
	case len(u) > 8 && u[:8] == "https://":
		u = "wss://" + u[8:]
	case len(u) > 7 && u[:7] == "http://":
		u = "ws://" + u[7:]
	}
	return u + "/socket"
}
