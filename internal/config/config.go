// Package config provides configuration management for the terminal bridge.
// It supports loading from defaults, an optional YAML file, and environment
// variables prefixed with JHT_.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/L1NNA/jupyter-http-terminal/internal/logger"
)

// Config holds all configuration sections.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Attach  AttachConfig  `mapstructure:"attach"`
	Logging logger.Config `mapstructure:"logging"`
}

// ServerConfig holds the HTTP terminal server configuration.
type ServerConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	Command      string `mapstructure:"command"`
	DBPath       string `mapstructure:"dbPath"`
	RecordingDir string `mapstructure:"recordingDir"`
	BufferCap    int    `mapstructure:"bufferCap"`
	MaxSessions  int    `mapstructure:"maxSessions"`
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// AttachConfig holds the client configuration.
type AttachConfig struct {
	ServerURL      string        `mapstructure:"serverUrl"`
	PollInterval   time.Duration `mapstructure:"pollInterval"`
	GraceDelay     time.Duration `mapstructure:"graceDelay"`
	RequestTimeout time.Duration `mapstructure:"requestTimeout"`
	StateFile      string        `mapstructure:"stateFile"`
}

// Load reads configuration from defaults, the optional file at path (empty
// means no file), and JHT_-prefixed environment variables.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8866)
	v.SetDefault("server.command", "/bin/bash")
	v.SetDefault("server.dbPath", "data/sessions.db")
	v.SetDefault("server.recordingDir", "data/recordings")
	v.SetDefault("server.bufferCap", 256*1024)
	v.SetDefault("server.maxSessions", 16)

	v.SetDefault("attach.serverUrl", "http://127.0.0.1:8866")
	v.SetDefault("attach.pollInterval", 100*time.Millisecond)
	v.SetDefault("attach.graceDelay", 500*time.Millisecond)
	v.SetDefault("attach.requestTimeout", 10*time.Second)
	v.SetDefault("attach.stateFile", "")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.outputPath", "stderr")

	v.SetEnvPrefix("JHT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}
